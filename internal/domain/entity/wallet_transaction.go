package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
)

// WalletTransaction запись о движении денег. ProviderRef уникален,
// статус меняется с pending на финальный ровно один раз.
type WalletTransaction struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	DealID         *uuid.UUID
	MilestoneIndex *int
	Type           valueobject.TransactionType
	Amount         decimal.Decimal
	Status         valueobject.TransactionStatus
	ProviderRef    string
	ProviderTxID   string
	CreatedAt      time.Time
	SettledAt      *time.Time
}

func NewWalletTransaction(userID uuid.UUID, dealID *uuid.UUID, milestoneIndex *int,
	txType valueobject.TransactionType, amount decimal.Decimal, providerRef string, now time.Time) *WalletTransaction {
	return &WalletTransaction{
		ID:             uuid.New(),
		UserID:         userID,
		DealID:         dealID,
		MilestoneIndex: milestoneIndex,
		Type:           txType,
		Amount:         amount,
		Status:         valueobject.TransactionStatusPending,
		ProviderRef:    providerRef,
		CreatedAt:      now,
	}
}

func (t *WalletTransaction) Settle(status valueobject.TransactionStatus, providerTxID string, now time.Time) error {
	if t.Status.IsTerminal() {
		return apperror.New(apperror.ErrCodeInvalidState, "транзакция уже завершена")
	}
	if !status.IsTerminal() {
		return apperror.New(apperror.ErrCodeValidation, "некорректный итоговый статус транзакции")
	}
	t.Status = status
	if providerTxID != "" {
		t.ProviderTxID = providerTxID
	}
	t.SettledAt = &now
	return nil
}

// IsMilestonePayout выплата продавцу за конкретный этап.
func (t *WalletTransaction) IsMilestonePayout() bool {
	return t.Type == valueobject.TransactionTypeRelease && t.DealID != nil && t.MilestoneIndex != nil
}
