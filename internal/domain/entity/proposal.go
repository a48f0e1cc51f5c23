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

type MilestoneSpec struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	DueDate     time.Time       `json:"due_date"`
}

type Proposal struct {
	ID             uuid.UUID
	Title          string
	Description    string
	Milestones     []MilestoneSpec
	TotalAmount    decimal.Decimal
	EscrowFee      decimal.Decimal
	BuyerFeeShare  decimal.Decimal
	SellerFeeShare decimal.Decimal
	FeeSplit       valueobject.FeeSplit
	CreatorRole    valueobject.PartyRole
	BuyerID        *uuid.UUID
	SellerID       *uuid.UUID
	BuyerEmail     string
	SellerEmail    string
	Status         valueobject.ProposalStatus
	DealID         *uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type ProposalDraft struct {
	Title             string
	Description       string
	Milestones        []MilestoneSpec
	TotalAmount       decimal.Decimal
	FeeSplit          int
	CreatorRole       string
	Creator           Actor
	CounterpartyEmail string
}

func NewProposal(draft ProposalDraft, now time.Time) (*Proposal, error) {
	role, err := valueobject.NewPartyRole(draft.CreatorRole)
	if err != nil {
		return nil, err
	}
	split, err := valueobject.NewFeeSplit(draft.FeeSplit)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(draft.Title)
	if err := validation.ValidateLength("название проекта", title, validation.MinProjectTitleLength, validation.MaxProjectTitleLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateLength("описание проекта", draft.Description, 0, validation.MaxProjectDescriptionLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	counterparty := strings.ToLower(strings.TrimSpace(draft.CounterpartyEmail))
	if err := validation.ValidateEmail(counterparty); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, "некорректный email второй стороны")
	}
	if sameEmail(counterparty, draft.Creator.Email) {
		return nil, apperror.New(apperror.ErrCodeValidation, "нельзя создать предложение самому себе")
	}

	if !draft.TotalAmount.IsPositive() {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма проекта должна быть положительной")
	}
	if err := validateMilestoneSpecs(draft.Milestones, draft.TotalAmount, now); err != nil {
		return nil, err
	}

	fee := valueobject.EscrowFeeFor(draft.TotalAmount, split)
	creatorID := draft.Creator.UserID

	p := &Proposal{
		ID:             uuid.New(),
		Title:          title,
		Description:    draft.Description,
		Milestones:     draft.Milestones,
		TotalAmount:    draft.TotalAmount,
		EscrowFee:      fee.Total,
		BuyerFeeShare:  fee.BuyerShare,
		SellerFeeShare: fee.SellerShare,
		FeeSplit:       split,
		CreatorRole:    role,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if role == valueobject.RoleBuyer {
		p.BuyerID = &creatorID
		p.BuyerEmail = strings.ToLower(draft.Creator.Email)
		p.SellerEmail = counterparty
		p.Status = valueobject.ProposalStatusPending
	} else {
		p.SellerID = &creatorID
		p.SellerEmail = strings.ToLower(draft.Creator.Email)
		p.BuyerEmail = counterparty
		p.Status = valueobject.ProposalStatusAwaitingBuyerAcceptance
	}

	return p, nil
}

func validateMilestoneSpecs(specs []MilestoneSpec, total decimal.Decimal, now time.Time) error {
	if len(specs) == 0 {
		return apperror.New(apperror.ErrCodeValidation, "нужен хотя бы один этап")
	}
	if len(specs) > validation.MaxMilestones {
		return apperror.New(apperror.ErrCodeValidation, "слишком много этапов")
	}

	sum := decimal.Zero
	for _, m := range specs {
		if strings.TrimSpace(m.Title) == "" {
			return apperror.New(apperror.ErrCodeValidation, "у каждого этапа должно быть название")
		}
		if !m.Amount.IsPositive() {
			return apperror.New(apperror.ErrCodeValidation, "сумма этапа должна быть положительной")
		}
		if !m.DueDate.After(now) {
			return apperror.New(apperror.ErrCodeValidation, "срок этапа не может быть в прошлом")
		}
		sum = sum.Add(m.Amount)
	}

	if !sum.Equal(total) {
		return apperror.New(apperror.ErrCodeValidation, "сумма этапов должна совпадать с суммой проекта")
	}
	return nil
}

// CounterpartyRole роль стороны, которая отвечает на предложение.
func (p *Proposal) CounterpartyRole() valueobject.PartyRole {
	return p.CreatorRole.Counterpart()
}

func (p *Proposal) CreatorID() uuid.UUID {
	if p.CreatorRole == valueobject.RoleBuyer && p.BuyerID != nil {
		return *p.BuyerID
	}
	if p.SellerID != nil {
		return *p.SellerID
	}
	return uuid.Nil
}

func (p *Proposal) CreatorEmail() string {
	if p.CreatorRole == valueobject.RoleBuyer {
		return p.BuyerEmail
	}
	return p.SellerEmail
}

func (p *Proposal) CounterpartyEmail() string {
	if p.CreatorRole == valueobject.RoleBuyer {
		return p.SellerEmail
	}
	return p.BuyerEmail
}

// IsCounterparty проверяет, что actor — приглашённая сторона, а не автор.
func (p *Proposal) IsCounterparty(actor Actor) bool {
	if actor.UserID == p.CreatorID() {
		return false
	}
	var bound *uuid.UUID
	if p.CounterpartyRole() == valueobject.RoleBuyer {
		bound = p.BuyerID
	} else {
		bound = p.SellerID
	}
	if bound != nil {
		return *bound == actor.UserID
	}
	return sameEmail(p.CounterpartyEmail(), actor.Email)
}

func (p *Proposal) IsParticipant(actor Actor) bool {
	return actor.UserID == p.CreatorID() || p.IsCounterparty(actor)
}

// Accept привязывает принявшего пользователя к роли второй стороны.
func (p *Proposal) Accept(actor Actor, now time.Time) error {
	if !p.Status.CanTransitionTo(valueobject.ProposalStatusAccepted) {
		return apperror.New(apperror.ErrCodeInvalidState, "принять можно только ожидающее предложение")
	}
	id := actor.UserID
	if p.CounterpartyRole() == valueobject.RoleBuyer {
		p.BuyerID = &id
	} else {
		p.SellerID = &id
	}
	p.Status = valueobject.ProposalStatusAccepted
	p.UpdatedAt = now
	return nil
}

func (p *Proposal) Decline(now time.Time) error {
	if !p.Status.CanTransitionTo(valueobject.ProposalStatusDeclined) {
		return apperror.New(apperror.ErrCodeInvalidState, "отклонить можно только ожидающее предложение")
	}
	p.Status = valueobject.ProposalStatusDeclined
	p.UpdatedAt = now
	return nil
}

// MarkConverted закрывает предложение после создания сделки.
func (p *Proposal) MarkConverted(dealID uuid.UUID, now time.Time) error {
	if !p.Status.CanTransitionTo(valueobject.ProposalStatusCompleted) {
		return apperror.New(apperror.ErrCodeInvalidState, "сделку можно создать только из принятого предложения")
	}
	p.DealID = &dealID
	p.Status = valueobject.ProposalStatusCompleted
	p.UpdatedAt = now
	return nil
}

func (p *Proposal) IsAccepted() bool {
	return p.Status == valueobject.ProposalStatusAccepted
}
