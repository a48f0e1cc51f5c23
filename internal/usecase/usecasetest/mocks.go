// Package usecasetest содержит моки внешних сервисов и фикстуры для тестов сценариев.
package usecasetest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/gateway"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
)

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Fund(ctx context.Context, req gateway.FundRequest) (*gateway.FundResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.FundResult), args.Error(1)
}

func (m *MockLedger) Release(ctx context.Context, req gateway.TransferRequest) (*gateway.TransferResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.TransferResult), args.Error(1)
}

func (m *MockLedger) Refund(ctx context.Context, req gateway.TransferRequest) (*gateway.TransferResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.TransferResult), args.Error(1)
}

func (m *MockLedger) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedger) VerifyCharge(ctx context.Context, chargeID string) (*gateway.ChargeVerification, error) {
	args := m.Called(ctx, chargeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.ChargeVerification), args.Error(1)
}

type MockIdentity struct {
	mock.Mock
}

func (m *MockIdentity) Status(ctx context.Context, userID uuid.UUID) (valueobject.KYCStatus, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(valueobject.KYCStatus), args.Error(1)
}

// ApprovedIdentity одобряет любого пользователя.
func ApprovedIdentity() *MockIdentity {
	m := new(MockIdentity)
	m.On("Status", mock.Anything, mock.Anything).Return(valueobject.KYCStatusApproved, nil)
	return m
}

// RecordingNotifier запоминает отправленные уведомления.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []gateway.Notification
}

func (n *RecordingNotifier) Notify(ctx context.Context, msg gateway.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return nil
}

func (n *RecordingNotifier) Kinds() []gateway.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]gateway.NotificationKind, 0, len(n.sent))
	for _, msg := range n.sent {
		kinds = append(kinds, msg.Kind)
	}
	return kinds
}

func (n *RecordingNotifier) Sent() []gateway.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]gateway.Notification(nil), n.sent...)
}

// Parties покупатель и продавец тестовой сделки.
type Parties struct {
	Buyer  entity.Actor
	Seller entity.Actor
}

func NewParties() Parties {
	return Parties{
		Buyer:  entity.Actor{UserID: uuid.New(), Email: "buyer@example.com"},
		Seller: entity.Actor{UserID: uuid.New(), Email: "seller@example.com"},
	}
}

// NewDeal собирает сделку с этапами указанных сумм в статусе ожидания оплаты.
func NewDeal(p Parties, split valueobject.FeeSplit, amounts ...int64) *entity.Deal {
	now := time.Now()
	total := decimal.Zero
	var specs []entity.MilestoneSpec
	for i, a := range amounts {
		amount := decimal.NewFromInt(a)
		total = total.Add(amount)
		specs = append(specs, entity.MilestoneSpec{
			Title:   "этап " + string(rune('A'+i)),
			Amount:  amount,
			DueDate: now.Add(time.Duration(i+1) * 24 * time.Hour),
		})
	}
	fee := valueobject.EscrowFeeFor(total, split)
	buyerID, sellerID := p.Buyer.UserID, p.Seller.UserID
	proposal := &entity.Proposal{
		ID:             uuid.New(),
		Title:          "Тестовый проект",
		Milestones:     specs,
		TotalAmount:    total,
		EscrowFee:      fee.Total,
		BuyerFeeShare:  fee.BuyerShare,
		SellerFeeShare: fee.SellerShare,
		FeeSplit:       split,
		CreatorRole:    valueobject.RoleBuyer,
		BuyerID:        &buyerID,
		SellerID:       &sellerID,
		BuyerEmail:     p.Buyer.Email,
		SellerEmail:    p.Seller.Email,
		Status:         valueobject.ProposalStatusAccepted,
	}
	deal, err := entity.NewDealFromProposal(proposal, now)
	if err != nil {
		panic(err)
	}
	return deal
}
