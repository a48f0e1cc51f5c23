package valueobject

import (
	"strings"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
)

type PartyRole string

const (
	RoleBuyer  PartyRole = "buyer"
	RoleSeller PartyRole = "seller"
)

func (r PartyRole) IsValid() bool {
	return r == RoleBuyer || r == RoleSeller
}

// Counterpart возвращает роль второй стороны сделки.
func (r PartyRole) Counterpart() PartyRole {
	if r == RoleBuyer {
		return RoleSeller
	}
	return RoleBuyer
}

func NewPartyRole(role string) (PartyRole, error) {
	r := PartyRole(role)
	if !r.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "роль должна быть buyer или seller")
	}
	return r, nil
}

type ProposalStatus string

const (
	ProposalStatusPending                 ProposalStatus = "pending"
	ProposalStatusAwaitingBuyerAcceptance ProposalStatus = "awaiting_buyer_acceptance"
	ProposalStatusAccepted                ProposalStatus = "accepted"
	ProposalStatusDeclined                ProposalStatus = "declined"
	ProposalStatusCompleted               ProposalStatus = "completed"
)

func (s ProposalStatus) IsValid() bool {
	switch s {
	case ProposalStatusPending, ProposalStatusAwaitingBuyerAcceptance, ProposalStatusAccepted,
		ProposalStatusDeclined, ProposalStatusCompleted:
		return true
	}
	return false
}

// IsOpen сообщает, ждёт ли предложение ответа второй стороны.
func (s ProposalStatus) IsOpen() bool {
	return s == ProposalStatusPending || s == ProposalStatusAwaitingBuyerAcceptance
}

func (s ProposalStatus) CanTransitionTo(newStatus ProposalStatus) bool {
	transitions := map[ProposalStatus][]ProposalStatus{
		ProposalStatusPending:                 {ProposalStatusAccepted, ProposalStatusDeclined},
		ProposalStatusAwaitingBuyerAcceptance: {ProposalStatusAccepted, ProposalStatusDeclined},
		ProposalStatusAccepted:                {ProposalStatusCompleted},
		ProposalStatusDeclined:                {},
		ProposalStatusCompleted:               {},
	}

	for _, status := range transitions[s] {
		if status == newStatus {
			return true
		}
	}
	return false
}

func NewProposalStatus(status string) (ProposalStatus, error) {
	s := ProposalStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус предложения")
	}
	return s, nil
}

type DealStatus string

const (
	DealStatusAwaitingFunding DealStatus = "awaiting_funding"
	DealStatusInProgress      DealStatus = "in_progress"
	DealStatusCompleted       DealStatus = "completed"
	DealStatusInDispute       DealStatus = "in_dispute"
)

func (s DealStatus) IsValid() bool {
	switch s {
	case DealStatusAwaitingFunding, DealStatusInProgress, DealStatusCompleted, DealStatusInDispute:
		return true
	}
	return false
}

type MilestoneStatus string

const (
	MilestoneStatusPending              MilestoneStatus = "pending"
	MilestoneStatusFunded               MilestoneStatus = "funded"
	MilestoneStatusSubmittedForApproval MilestoneStatus = "submitted_for_approval"
	MilestoneStatusRevisionRequested    MilestoneStatus = "revision_requested"
	MilestoneStatusCompleted            MilestoneStatus = "completed"
)

func (s MilestoneStatus) IsValid() bool {
	switch s {
	case MilestoneStatusPending, MilestoneStatusFunded, MilestoneStatusSubmittedForApproval,
		MilestoneStatusRevisionRequested, MilestoneStatusCompleted:
		return true
	}
	return false
}

// CanTransitionTo описывает граф переходов этапа.
// Из Completed переходов нет.
func (s MilestoneStatus) CanTransitionTo(next MilestoneStatus) bool {
	switch s {
	case MilestoneStatusPending:
		return next == MilestoneStatusFunded
	case MilestoneStatusFunded:
		return next == MilestoneStatusSubmittedForApproval
	case MilestoneStatusSubmittedForApproval:
		return next == MilestoneStatusCompleted || next == MilestoneStatusRevisionRequested
	case MilestoneStatusRevisionRequested:
		return next == MilestoneStatusSubmittedForApproval
	case MilestoneStatusCompleted:
		return false
	}
	return false
}

func NewMilestoneStatus(status string) (MilestoneStatus, error) {
	s := MilestoneStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "некорректный статус этапа")
	}
	return s, nil
}

type DisputeStatus string

const (
	DisputeStatusOpen     DisputeStatus = "open"
	DisputeStatusResolved DisputeStatus = "resolved"
)

type DisputeCategory string

const (
	DisputeCategoryQuality       DisputeCategory = "quality"
	DisputeCategoryDelivery      DisputeCategory = "delivery"
	DisputeCategoryPayment       DisputeCategory = "payment"
	DisputeCategoryCommunication DisputeCategory = "communication"
	DisputeCategoryOther         DisputeCategory = "other"
)

func NewDisputeCategory(category string) (DisputeCategory, error) {
	c := DisputeCategory(category)
	switch c {
	case DisputeCategoryQuality, DisputeCategoryDelivery, DisputeCategoryPayment,
		DisputeCategoryCommunication, DisputeCategoryOther:
		return c, nil
	}
	return "", apperror.New(apperror.ErrCodeValidation, "некорректная категория спора")
}

type DisputePriority string

const (
	DisputePriorityLow    DisputePriority = "low"
	DisputePriorityMedium DisputePriority = "medium"
	DisputePriorityHigh   DisputePriority = "high"
)

func NewDisputePriority(priority string) (DisputePriority, error) {
	if priority == "" {
		return DisputePriorityMedium, nil
	}
	p := DisputePriority(priority)
	switch p {
	case DisputePriorityLow, DisputePriorityMedium, DisputePriorityHigh:
		return p, nil
	}
	return "", apperror.New(apperror.ErrCodeValidation, "некорректный приоритет спора")
}

type ResolutionType string

const (
	ResolutionRefundBuyer   ResolutionType = "refund_buyer"
	ResolutionReleaseSeller ResolutionType = "release_seller"
	ResolutionPartialRefund ResolutionType = "partial_refund"
	ResolutionNoAction      ResolutionType = "no_action"
)

func NewResolutionType(value string) (ResolutionType, error) {
	r := ResolutionType(value)
	switch r {
	case ResolutionRefundBuyer, ResolutionReleaseSeller, ResolutionPartialRefund, ResolutionNoAction:
		return r, nil
	}
	return "", apperror.New(apperror.ErrCodeValidation, "некорректный тип решения спора")
}

type TransactionType string

const (
	TransactionTypeFund       TransactionType = "fund"
	TransactionTypeRelease    TransactionType = "release"
	TransactionTypeRefund     TransactionType = "refund"
	TransactionTypeAdjustment TransactionType = "adjustment"
)

type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
)

func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusSuccess || s == TransactionStatusFailed
}

type KYCStatus string

const (
	KYCStatusPending  KYCStatus = "pending"
	KYCStatusApproved KYCStatus = "approved"
	KYCStatusRejected KYCStatus = "rejected"
)

// KYCStatusNone пользователь ещё не подавал документы.
const KYCStatusNone KYCStatus = "none"

func ParseKYCStatus(s string) KYCStatus {
	switch st := KYCStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case KYCStatusPending, KYCStatusApproved, KYCStatusRejected:
		return st
	default:
		return KYCStatusNone
	}
}
