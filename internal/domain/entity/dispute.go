package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/validation"
)

type Resolution struct {
	Type       valueobject.ResolutionType `json:"type"`
	Amount     decimal.Decimal            `json:"amount"`
	Notes      string                     `json:"notes"`
	ResolvedBy uuid.UUID                  `json:"resolved_by"`
	ResolvedAt time.Time                  `json:"resolved_at"`
}

type Dispute struct {
	ID             uuid.UUID
	DealID         uuid.UUID
	MilestoneIndex *int
	RaisedBy       uuid.UUID
	RaisedByRole   valueobject.PartyRole
	Category       valueobject.DisputeCategory
	Priority       valueobject.DisputePriority
	Reason         string
	Evidence       []string
	Status         valueobject.DisputeStatus
	Resolution     *Resolution
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewDispute(dealID uuid.UUID, milestoneIndex *int, raisedBy uuid.UUID, role valueobject.PartyRole,
	category, priority, reason string, evidence []string, now time.Time) (*Dispute, error) {
	cat, err := valueobject.NewDisputeCategory(category)
	if err != nil {
		return nil, err
	}
	prio, err := valueobject.NewDisputePriority(priority)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if err := validation.ValidateLength("причина спора", reason, validation.MinDisputeReasonLength, validation.MaxDisputeReasonLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateAttachments(evidence); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	return &Dispute{
		ID:             uuid.New(),
		DealID:         dealID,
		MilestoneIndex: milestoneIndex,
		RaisedBy:       raisedBy,
		RaisedByRole:   role,
		Category:       cat,
		Priority:       prio,
		Reason:         reason,
		Evidence:       evidence,
		Status:         valueobject.DisputeStatusOpen,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (d *Dispute) IsOpen() bool {
	return d.Status == valueobject.DisputeStatusOpen
}

func (d *Dispute) Resolve(res Resolution) error {
	if !d.IsOpen() {
		return apperror.New(apperror.ErrCodeInvalidState, "спор уже закрыт")
	}
	d.Resolution = &res
	d.Status = valueobject.DisputeStatusResolved
	d.UpdatedAt = res.ResolvedAt
	return nil
}
