// Package gateway описывает внешние сервисы, с которыми работает эскроу:
// кошелёк провайдера, проверку личности, уведомления и хранилище файлов.
package gateway

import (
	"context"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
)

type FundRequest struct {
	DealID     uuid.UUID
	BuyerID    uuid.UUID
	BuyerEmail string
	Amount     decimal.Decimal
	Reference  string
}

type FundResult struct {
	ProviderRef string
	CheckoutURL string
}

type TransferRequest struct {
	DealID         uuid.UUID
	RecipientID    uuid.UUID
	MilestoneIndex *int
	Amount         decimal.Decimal
	Reference      string
	Narration      string
}

type TransferResult struct {
	ProviderRef  string
	ProviderTxID string
}

// ChargeVerification данные платежа, полученные напрямую у провайдера.
type ChargeVerification struct {
	ID        string
	Reference string
	Status    string
	Amount    decimal.Decimal
	Currency  string
	BuyerID   uuid.UUID
}

func (c *ChargeVerification) Successful() bool {
	return strings.EqualFold(c.Status, "successful")
}

func (c *ChargeVerification) Failed() bool {
	return strings.EqualFold(c.Status, "failed")
}

// Ledger перемещает деньги через кошелёк провайдера. Бизнес-отказы
// приходят ошибкой с кодом EXTERNAL_PROVIDER_ERROR.
type Ledger interface {
	Fund(ctx context.Context, req FundRequest) (*FundResult, error)
	Release(ctx context.Context, req TransferRequest) (*TransferResult, error)
	Refund(ctx context.Context, req TransferRequest) (*TransferResult, error)
	Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
	VerifyCharge(ctx context.Context, chargeID string) (*ChargeVerification, error)
}

type IdentityVerifier interface {
	Status(ctx context.Context, userID uuid.UUID) (valueobject.KYCStatus, error)
}

type NotificationKind string

const (
	NotifyProposalReceived   NotificationKind = "proposal_received"
	NotifyProposalAccepted   NotificationKind = "proposal_accepted"
	NotifyProposalDeclined   NotificationKind = "proposal_declined"
	NotifyFundDeal           NotificationKind = "fund_deal"
	NotifyDealFunded         NotificationKind = "deal_funded"
	NotifyMilestoneSubmitted NotificationKind = "milestone_submitted"
	NotifyRevisionRequested  NotificationKind = "revision_requested"
	NotifyMilestoneApproved  NotificationKind = "milestone_approved"
	NotifyMilestoneFunded    NotificationKind = "milestone_funded"
	NotifyDealCompleted      NotificationKind = "deal_completed"
	NotifyDisputeOpened      NotificationKind = "dispute_opened"
	NotifyDisputeResolved    NotificationKind = "dispute_resolved"
)

type Notification struct {
	RecipientEmail string
	RecipientID    uuid.UUID
	Kind           NotificationKind
	Context        map[string]any
}

// Notifier отправляет уведомление. Ошибка только логируется вызывающей стороной.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

type FileMeta struct {
	OwnerID     uuid.UUID
	Name        string
	ContentType string
	Size        int64
}

type FileStore interface {
	Store(ctx context.Context, r io.Reader, meta FileMeta) (string, error)
}
