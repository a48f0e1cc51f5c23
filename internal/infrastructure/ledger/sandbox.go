package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/gateway"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
)

// Sandbox держит кошельки в памяти. Включается, когда LEDGER_BASE_URL пуст
// вне production: оплата считается прошедшей сразу после Fund.
type Sandbox struct {
	mu       sync.Mutex
	balances map[uuid.UUID]decimal.Decimal
	charges  map[string]*gateway.ChargeVerification
	moves    map[string]*gateway.TransferResult
	seq      int
}

func NewSandbox() *Sandbox {
	return &Sandbox{
		balances: make(map[uuid.UUID]decimal.Decimal),
		charges:  make(map[string]*gateway.ChargeVerification),
		moves:    make(map[string]*gateway.TransferResult),
	}
}

func (s *Sandbox) Fund(ctx context.Context, req gateway.FundRequest) (*gateway.FundResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, ch := range s.charges {
		if ch.Reference == req.Reference {
			return &gateway.FundResult{ProviderRef: req.Reference, CheckoutURL: "sandbox://checkout/" + id}, nil
		}
	}

	s.seq++
	id := fmt.Sprintf("sbx-%d", s.seq)
	s.charges[id] = &gateway.ChargeVerification{
		ID:        id,
		Reference: req.Reference,
		Status:    "successful",
		Amount:    req.Amount,
		Currency:  valueobject.CurrencyNGN,
		BuyerID:   req.BuyerID,
	}
	return &gateway.FundResult{ProviderRef: req.Reference, CheckoutURL: "sandbox://checkout/" + id}, nil
}

func (s *Sandbox) Release(ctx context.Context, req gateway.TransferRequest) (*gateway.TransferResult, error) {
	return s.credit(req)
}

func (s *Sandbox) Refund(ctx context.Context, req gateway.TransferRequest) (*gateway.TransferResult, error) {
	return s.credit(req)
}

func (s *Sandbox) credit(req gateway.TransferRequest) (*gateway.TransferResult, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.New(apperror.ErrCodeExternalProvider, "sandbox: сумма перевода должна быть положительной")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// повтор с той же ссылкой возвращает исходный перевод
	if prev, ok := s.moves[req.Reference]; ok {
		res := *prev
		return &res, nil
	}

	s.balances[req.RecipientID] = s.balances[req.RecipientID].Add(req.Amount)
	s.seq++
	res := &gateway.TransferResult{ProviderRef: req.Reference, ProviderTxID: fmt.Sprintf("sbx-%d", s.seq)}
	s.moves[req.Reference] = res
	out := *res
	return &out, nil
}

func (s *Sandbox) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[userID], nil
}

func (s *Sandbox) VerifyCharge(ctx context.Context, chargeID string) (*gateway.ChargeVerification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.charges[chargeID]
	if !ok {
		return nil, apperror.New(apperror.ErrCodeExternalProvider, "sandbox: платёж не найден")
	}
	c := *ch
	return &c, nil
}
