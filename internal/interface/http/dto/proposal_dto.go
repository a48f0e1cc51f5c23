// Package dto описывает JSON тела запросов и ответов API эскроу.
package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
)

type MilestoneSpecRequest struct {
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     time.Time       `json:"due_date" binding:"required"`
}

type CreateProposalRequest struct {
	Title             string                 `json:"title" binding:"required"`
	Description       string                 `json:"description"`
	Milestones        []MilestoneSpecRequest `json:"milestones" binding:"required,min=1,dive"`
	TotalAmount       decimal.Decimal        `json:"total_amount"`
	FeeSplit          *int                   `json:"fee_split" binding:"required"`
	CreatorRole       string                 `json:"creator_role" binding:"required,oneof=buyer seller"`
	CounterpartyEmail string                 `json:"counterparty_email" binding:"required,email"`
}

func (r *CreateProposalRequest) Specs() []entity.MilestoneSpec {
	specs := make([]entity.MilestoneSpec, 0, len(r.Milestones))
	for _, m := range r.Milestones {
		specs = append(specs, entity.MilestoneSpec{
			Title:       m.Title,
			Description: m.Description,
			Amount:      m.Amount,
			DueDate:     m.DueDate,
		})
	}
	return specs
}

type UpdateProposalStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=accepted declined"`
}

type ProposalResponse struct {
	ID             uuid.UUID               `json:"id"`
	Title          string                  `json:"title"`
	Description    string                  `json:"description"`
	Milestones     []entity.MilestoneSpec  `json:"milestones"`
	TotalAmount    decimal.Decimal         `json:"total_amount"`
	EscrowFee      decimal.Decimal         `json:"escrow_fee"`
	BuyerFeeShare  decimal.Decimal         `json:"buyer_fee_share"`
	SellerFeeShare decimal.Decimal         `json:"seller_fee_share"`
	FeeSplit       int                     `json:"fee_split"`
	CreatorRole    string                  `json:"creator_role"`
	BuyerID        *uuid.UUID              `json:"buyer_id"`
	SellerID       *uuid.UUID              `json:"seller_id"`
	BuyerEmail     string                  `json:"buyer_email"`
	SellerEmail    string                  `json:"seller_email"`
	Status         string                  `json:"status"`
	DealID         *uuid.UUID              `json:"deal_id"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
}

func ToProposalResponse(p *entity.Proposal) ProposalResponse {
	return ProposalResponse{
		ID:             p.ID,
		Title:          p.Title,
		Description:    p.Description,
		Milestones:     p.Milestones,
		TotalAmount:    p.TotalAmount,
		EscrowFee:      p.EscrowFee,
		BuyerFeeShare:  p.BuyerFeeShare,
		SellerFeeShare: p.SellerFeeShare,
		FeeSplit:       int(p.FeeSplit),
		CreatorRole:    string(p.CreatorRole),
		BuyerID:        p.BuyerID,
		SellerID:       p.SellerID,
		BuyerEmail:     p.BuyerEmail,
		SellerEmail:    p.SellerEmail,
		Status:         string(p.Status),
		DealID:         p.DealID,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func ToProposalResponses(proposals []*entity.Proposal) []ProposalResponse {
	responses := make([]ProposalResponse, 0, len(proposals))
	for _, p := range proposals {
		responses = append(responses, ToProposalResponse(p))
	}
	return responses
}

// UpdateProposalStatusResponse несёт сделку и ссылку на оплату, если они появились.
type UpdateProposalStatusResponse struct {
	Proposal ProposalResponse  `json:"proposal"`
	Deal     *DealResponse     `json:"deal,omitempty"`
	Funding  *FundingResponse  `json:"funding,omitempty"`
}
