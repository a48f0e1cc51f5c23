package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
)

type DisputeRepository interface {
	Create(ctx context.Context, dispute *entity.Dispute) error
	Update(ctx context.Context, dispute *entity.Dispute) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Dispute, error)
	FindByDealID(ctx context.Context, dealID uuid.UUID) ([]*entity.Dispute, error)
	FindByParticipant(ctx context.Context, userID uuid.UUID) ([]*entity.Dispute, error)
	ListOpen(ctx context.Context) ([]*entity.Dispute, error)
}
