package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
)

// DealMutation меняет сделку под блокировкой. Репозитории, вызванные
// с переданным ctx, пишут в ту же транзакцию.
type DealMutation func(ctx context.Context, deal *entity.Deal) error

// CountdownRef указывает на этап с истёкшим таймером.
type CountdownRef struct {
	DealID         uuid.UUID
	MilestoneIndex int
}

type DealRepository interface {
	Create(ctx context.Context, deal *entity.Deal) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Deal, error)
	FindByProposalID(ctx context.Context, proposalID uuid.UUID) (*entity.Deal, error)
	FindByParticipant(ctx context.Context, userID uuid.UUID) ([]*entity.Deal, error)
	// Mutate сериализует изменения одной сделки. Если fn вернула ошибку,
	// сделка не сохраняется.
	Mutate(ctx context.Context, id uuid.UUID, fn DealMutation) (*entity.Deal, error)
	FindDueCountdowns(ctx context.Context, now time.Time) ([]CountdownRef, error)
}
