package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
)

type ProposalRepository interface {
	Create(ctx context.Context, proposal *entity.Proposal) error
	// Update сохраняет предложение, только если в хранилище всё ещё статус expected.
	Update(ctx context.Context, proposal *entity.Proposal, expected valueobject.ProposalStatus) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Proposal, error)
	FindByParticipant(ctx context.Context, userID uuid.UUID, email string) ([]*entity.Proposal, error)
}
