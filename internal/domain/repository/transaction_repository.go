package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
)

type WalletTransactionRepository interface {
	// Create возвращает false, если запись с таким ProviderRef уже есть.
	Create(ctx context.Context, tx *entity.WalletTransaction) (bool, error)
	FindByProviderRef(ctx context.Context, providerRef string) (*entity.WalletTransaction, error)
	// MarkSettled переводит pending запись в финальный статус.
	// false означает, что запись уже была завершена.
	MarkSettled(ctx context.Context, providerRef string, status valueobject.TransactionStatus, providerTxID string, at time.Time) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.WalletTransaction, int, error)
	ListByDeal(ctx context.Context, dealID uuid.UUID) ([]*entity.WalletTransaction, error)
}
