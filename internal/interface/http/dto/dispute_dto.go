package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
)

type OpenDisputeRequest struct {
	MilestoneIndex *int     `json:"milestone_index" binding:"omitempty,min=0"`
	Category       string   `json:"category" binding:"required"`
	Priority       string   `json:"priority"`
	Reason         string   `json:"reason" binding:"required"`
	Evidence       []string `json:"evidence" binding:"max=10,dive,required"`
}

type ResolveDisputeRequest struct {
	Type   string          `json:"type" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
	Notes  string          `json:"notes"`
}

type DisputeResponse struct {
	ID             uuid.UUID          `json:"id"`
	DealID         uuid.UUID          `json:"deal_id"`
	MilestoneIndex *int               `json:"milestone_index"`
	RaisedBy       uuid.UUID          `json:"raised_by"`
	RaisedByRole   string             `json:"raised_by_role"`
	Category       string             `json:"category"`
	Priority       string             `json:"priority"`
	Reason         string             `json:"reason"`
	Evidence       []string           `json:"evidence"`
	Status         string             `json:"status"`
	Resolution     *entity.Resolution `json:"resolution,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

func ToDisputeResponse(d *entity.Dispute) DisputeResponse {
	evidence := d.Evidence
	if evidence == nil {
		evidence = []string{}
	}
	return DisputeResponse{
		ID:             d.ID,
		DealID:         d.DealID,
		MilestoneIndex: d.MilestoneIndex,
		RaisedBy:       d.RaisedBy,
		RaisedByRole:   string(d.RaisedByRole),
		Category:       string(d.Category),
		Priority:       string(d.Priority),
		Reason:         d.Reason,
		Evidence:       evidence,
		Status:         string(d.Status),
		Resolution:     d.Resolution,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func ToDisputeResponses(disputes []*entity.Dispute) []DisputeResponse {
	responses := make([]DisputeResponse, 0, len(disputes))
	for _, d := range disputes {
		responses = append(responses, ToDisputeResponse(d))
	}
	return responses
}
