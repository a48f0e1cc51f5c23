package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/deal"
)

type CountdownResponse struct {
	Active      bool       `json:"active"`
	StartedAt   time.Time  `json:"started_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

type MilestoneResponse struct {
	Index       int                     `json:"index"`
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Amount      decimal.Decimal         `json:"amount"`
	DueDate     time.Time               `json:"due_date"`
	Status      string                  `json:"status"`
	Submission  *entity.Submission      `json:"submission,omitempty"`
	Revision    *entity.RevisionRequest `json:"revision,omitempty"`
	Countdown   *CountdownResponse      `json:"countdown,omitempty"`
	FundedAt    *time.Time              `json:"funded_at,omitempty"`
	CompletedAt *time.Time              `json:"completed_at,omitempty"`
	ApprovedBy  string                  `json:"approved_by,omitempty"`
}

type DealResponse struct {
	ID             uuid.UUID           `json:"id"`
	ProposalID     uuid.UUID           `json:"proposal_id"`
	Title          string              `json:"title"`
	Description    string              `json:"description"`
	BuyerID        uuid.UUID           `json:"buyer_id"`
	SellerID       uuid.UUID           `json:"seller_id"`
	BuyerEmail     string              `json:"buyer_email"`
	SellerEmail    string              `json:"seller_email"`
	TotalAmount    decimal.Decimal     `json:"total_amount"`
	EscrowFee      decimal.Decimal     `json:"escrow_fee"`
	BuyerFeeShare  decimal.Decimal     `json:"buyer_fee_share"`
	SellerFeeShare decimal.Decimal     `json:"seller_fee_share"`
	FundingAmount  decimal.Decimal     `json:"funding_amount"`
	FeeSplit       int                 `json:"fee_split"`
	HeldAmount     decimal.Decimal     `json:"held_amount"`
	Status         string              `json:"status"`
	OpenDisputeID  *uuid.UUID          `json:"open_dispute_id"`
	Milestones     []MilestoneResponse `json:"milestones"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func ToDealResponse(d *entity.Deal) DealResponse {
	milestones := make([]MilestoneResponse, 0, len(d.Milestones))
	for _, m := range d.Milestones {
		mr := MilestoneResponse{
			Index:       m.Index,
			Title:       m.Title,
			Description: m.Description,
			Amount:      m.Amount,
			DueDate:     m.DueDate,
			Status:      string(m.Status),
			Submission:  m.Submission,
			Revision:    m.Revision,
			FundedAt:    m.FundedAt,
			CompletedAt: m.CompletedAt,
			ApprovedBy:  m.ApprovedBy,
		}
		if m.Countdown != nil {
			mr.Countdown = &CountdownResponse{
				Active:      m.Countdown.Active,
				StartedAt:   m.Countdown.StartedAt,
				ExpiresAt:   m.Countdown.ExpiresAt,
				CancelledAt: m.Countdown.CancelledAt,
			}
		}
		milestones = append(milestones, mr)
	}

	return DealResponse{
		ID:             d.ID,
		ProposalID:     d.ProposalID,
		Title:          d.Title,
		Description:    d.Description,
		BuyerID:        d.BuyerID,
		SellerID:       d.SellerID,
		BuyerEmail:     d.BuyerEmail,
		SellerEmail:    d.SellerEmail,
		TotalAmount:    d.TotalAmount,
		EscrowFee:      d.EscrowFee,
		BuyerFeeShare:  d.BuyerFeeShare,
		SellerFeeShare: d.SellerFeeShare,
		FundingAmount:  d.FundingAmount(),
		FeeSplit:       int(d.FeeSplit),
		HeldAmount:     d.HeldAmount,
		Status:         string(d.Status),
		OpenDisputeID:  d.OpenDisputeID,
		Milestones:     milestones,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func ToDealResponsePtr(d *entity.Deal) *DealResponse {
	if d == nil {
		return nil
	}
	r := ToDealResponse(d)
	return &r
}

func ToDealResponses(deals []*entity.Deal) []DealResponse {
	responses := make([]DealResponse, 0, len(deals))
	for _, d := range deals {
		responses = append(responses, ToDealResponse(d))
	}
	return responses
}

type FundingResponse struct {
	DealID      uuid.UUID       `json:"deal_id"`
	Amount      decimal.Decimal `json:"amount"`
	EscrowFee   decimal.Decimal `json:"escrow_fee"`
	BuyerShare  decimal.Decimal `json:"buyer_fee_share"`
	Reference   string          `json:"reference"`
	CheckoutURL string          `json:"checkout_url"`
}

func ToFundingResponse(r *deal.FundingResult) *FundingResponse {
	if r == nil {
		return nil
	}
	return &FundingResponse{
		DealID:      r.Deal.ID,
		Amount:      r.Amount,
		EscrowFee:   r.Fee.Total,
		BuyerShare:  r.Fee.BuyerShare,
		Reference:   r.Reference,
		CheckoutURL: r.CheckoutURL,
	}
}

type SubmitMilestoneRequest struct {
	Message string   `json:"message" binding:"required,max=5000"`
	Files   []string `json:"files" binding:"max=10,dive,required"`
}

type RevisionRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type CountdownCancelResponse struct {
	Deal      DealResponse `json:"deal"`
	Cancelled bool         `json:"cancelled"`
}

type QuoteResponse struct {
	Total         decimal.Decimal `json:"total"`
	BaseRate      decimal.Decimal `json:"base_rate"`
	EscrowFee     decimal.Decimal `json:"escrow_fee"`
	BuyerShare    decimal.Decimal `json:"buyer_fee_share"`
	SellerShare   decimal.Decimal `json:"seller_fee_share"`
	FundingAmount decimal.Decimal `json:"funding_amount"`
}

func ToQuoteResponse(q *deal.Quote) QuoteResponse {
	return QuoteResponse{
		Total:         q.Total,
		BaseRate:      q.BaseRate,
		EscrowFee:     q.Fee.Total,
		BuyerShare:    q.Fee.BuyerShare,
		SellerShare:   q.Fee.SellerShare,
		FundingAmount: q.FundingAmount,
	}
}
