package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
)

type BalanceResponse struct {
	UserID   uuid.UUID       `json:"user_id"`
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

type TransactionResponse struct {
	ID             uuid.UUID       `json:"id"`
	DealID         *uuid.UUID      `json:"deal_id"`
	MilestoneIndex *int            `json:"milestone_index"`
	Type           string          `json:"type"`
	Amount         decimal.Decimal `json:"amount"`
	Status         string          `json:"status"`
	Reference      string          `json:"reference"`
	CreatedAt      time.Time       `json:"created_at"`
	SettledAt      *time.Time      `json:"settled_at"`
}

func ToTransactionResponses(txs []*entity.WalletTransaction) []TransactionResponse {
	responses := make([]TransactionResponse, 0, len(txs))
	for _, t := range txs {
		responses = append(responses, TransactionResponse{
			ID:             t.ID,
			DealID:         t.DealID,
			MilestoneIndex: t.MilestoneIndex,
			Type:           string(t.Type),
			Amount:         t.Amount,
			Status:         string(t.Status),
			Reference:      t.ProviderRef,
			CreatedAt:      t.CreatedAt,
			SettledAt:      t.SettledAt,
		})
	}
	return responses
}

type UploadResponse struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}
