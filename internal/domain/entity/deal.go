package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
)

type Deal struct {
	ID             uuid.UUID
	ProposalID     uuid.UUID
	Title          string
	Description    string
	BuyerID        uuid.UUID
	SellerID       uuid.UUID
	BuyerEmail     string
	SellerEmail    string
	TotalAmount    decimal.Decimal
	EscrowFee      decimal.Decimal
	BuyerFeeShare  decimal.Decimal
	SellerFeeShare decimal.Decimal
	FeeSplit       valueobject.FeeSplit
	HeldAmount     decimal.Decimal
	Status         valueobject.DealStatus
	OpenDisputeID  *uuid.UUID
	Milestones     []*Milestone
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewDealFromProposal копирует финансовые условия принятого предложения.
func NewDealFromProposal(p *Proposal, now time.Time) (*Deal, error) {
	if !p.IsAccepted() {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "сделку можно создать только из принятого предложения")
	}
	if p.BuyerID == nil || p.SellerID == nil {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "у предложения не определены обе стороны")
	}

	d := &Deal{
		ID:             uuid.New(),
		ProposalID:     p.ID,
		Title:          p.Title,
		Description:    p.Description,
		BuyerID:        *p.BuyerID,
		SellerID:       *p.SellerID,
		BuyerEmail:     p.BuyerEmail,
		SellerEmail:    p.SellerEmail,
		TotalAmount:    p.TotalAmount,
		EscrowFee:      p.EscrowFee,
		BuyerFeeShare:  p.BuyerFeeShare,
		SellerFeeShare: p.SellerFeeShare,
		FeeSplit:       p.FeeSplit,
		HeldAmount:     decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for i, spec := range p.Milestones {
		d.Milestones = append(d.Milestones, &Milestone{
			Index:       i,
			Title:       spec.Title,
			Description: spec.Description,
			Amount:      spec.Amount,
			DueDate:     spec.DueDate,
			Status:      valueobject.MilestoneStatusPending,
		})
	}
	d.Refresh(now)
	return d, nil
}

// DerivedStatus вычисляет статус сделки только по статусам этапов.
func (d *Deal) DerivedStatus() valueobject.DealStatus {
	if len(d.Milestones) == 0 || d.Milestones[0].Status == valueobject.MilestoneStatusPending {
		return valueobject.DealStatusAwaitingFunding
	}
	for _, m := range d.Milestones {
		if m.Status != valueobject.MilestoneStatusCompleted {
			return valueobject.DealStatusInProgress
		}
	}
	return valueobject.DealStatusCompleted
}

// Refresh пересчитывает статус; открытый спор перекрывает вычисленное значение.
func (d *Deal) Refresh(now time.Time) {
	if d.OpenDisputeID != nil {
		d.Status = valueobject.DealStatusInDispute
	} else {
		d.Status = d.DerivedStatus()
	}
	d.UpdatedAt = now
}

func (d *Deal) Milestone(index int) (*Milestone, error) {
	if index < 0 || index >= len(d.Milestones) {
		return nil, apperror.New(apperror.ErrCodeValidation, "этап не найден")
	}
	return d.Milestones[index], nil
}

// CurrentMilestone первый незавершённый этап, nil если все завершены.
func (d *Deal) CurrentMilestone() *Milestone {
	for _, m := range d.Milestones {
		if m.Status != valueobject.MilestoneStatusCompleted {
			return m
		}
	}
	return nil
}

func (d *Deal) RoleOf(userID uuid.UUID) (valueobject.PartyRole, bool) {
	switch userID {
	case d.BuyerID:
		return valueobject.RoleBuyer, true
	case d.SellerID:
		return valueobject.RoleSeller, true
	}
	return "", false
}

func (d *Deal) IsParticipant(userID uuid.UUID) bool {
	_, ok := d.RoleOf(userID)
	return ok
}

func (d *Deal) CounterpartyOf(userID uuid.UUID) (uuid.UUID, string) {
	if userID == d.BuyerID {
		return d.SellerID, d.SellerEmail
	}
	return d.BuyerID, d.BuyerEmail
}

func (d *Deal) EnsureUnlocked() error {
	if d.OpenDisputeID != nil {
		return apperror.ErrDealLocked
	}
	return nil
}

// FundingAmount всегда пересчитывается заново, а не читается из сохранённой комиссии.
func (d *Deal) FundingAmount() decimal.Decimal {
	return valueobject.FundingAmount(d.TotalAmount, d.FeeSplit)
}

func (d *Deal) ReleaseAmountFor(m *Milestone) decimal.Decimal {
	return valueobject.ReleaseAmount(m.Amount, d.TotalAmount, d.SellerFeeShare)
}

// FundInitial отмечает поступление первого платежа покупателя.
func (d *Deal) FundInitial(now time.Time) error {
	if len(d.Milestones) == 0 {
		return apperror.New(apperror.ErrCodeValidation, "у сделки нет этапов")
	}
	if err := d.EnsureUnlocked(); err != nil {
		return err
	}
	if d.DerivedStatus() != valueobject.DealStatusAwaitingFunding {
		return apperror.New(apperror.ErrCodeInvalidState, "сделка уже профинансирована")
	}
	if err := d.Milestones[0].Fund(now); err != nil {
		return err
	}
	d.HeldAmount = d.TotalAmount
	d.Refresh(now)
	return nil
}

// FundNext финансирует следующий этап из удержанных средств.
// Повторный вызов ничего не меняет.
func (d *Deal) FundNext(completedIndex int, now time.Time) bool {
	next := completedIndex + 1
	if completedIndex < 0 || next >= len(d.Milestones) {
		return false
	}
	if d.Milestones[completedIndex].Status != valueobject.MilestoneStatusCompleted {
		return false
	}
	if d.Milestones[next].Status != valueobject.MilestoneStatusPending {
		return false
	}
	if err := d.Milestones[next].Fund(now); err != nil {
		return false
	}
	d.Refresh(now)
	return true
}

// Hold списывает сумму из удержанных средств.
func (d *Deal) Hold(amount decimal.Decimal) error {
	if amount.GreaterThan(d.HeldAmount) {
		return apperror.New(apperror.ErrCodeInvalidState, "недостаточно средств на эскроу сделки")
	}
	d.HeldAmount = d.HeldAmount.Sub(amount)
	return nil
}

// CancelCountdowns останавливает все активные таймеры сделки.
func (d *Deal) CancelCountdowns(now time.Time) {
	for _, m := range d.Milestones {
		if m.Countdown != nil {
			m.Countdown.Cancel(now)
		}
	}
}

func (d *Deal) Clone() *Deal {
	c := *d
	if d.OpenDisputeID != nil {
		id := *d.OpenDisputeID
		c.OpenDisputeID = &id
	}
	c.Milestones = make([]*Milestone, len(d.Milestones))
	for i, m := range d.Milestones {
		c.Milestones[i] = m.clone()
	}
	return &c
}

// Ссылки на операции детерминированы, чтобы повторные вызовы провайдер склеивал в один.

func FundingReference(dealID uuid.UUID) string {
	return "fund-" + dealID.String()
}

func ReleaseReference(dealID uuid.UUID, index int) string {
	return fmt.Sprintf("release-%s-%d", dealID, index)
}

func RefundReference(disputeID uuid.UUID) string {
	return "refund-" + disputeID.String()
}

// ParseFundingReference извлекает ID сделки из ссылки платежа.
func ParseFundingReference(ref string) (uuid.UUID, error) {
	raw, ok := strings.CutPrefix(ref, "fund-")
	if !ok {
		return uuid.Nil, apperror.New(apperror.ErrCodeValidation, "неизвестная ссылка платежа")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperror.New(apperror.ErrCodeValidation, "неизвестная ссылка платежа")
	}
	return id, nil
}
