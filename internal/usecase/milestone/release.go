package milestone

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/gateway"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/logger"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/shared"
)

type ReleaseOutcome struct {
	Amount      decimal.Decimal
	Reference   string
	NextFunded  bool
	DealClosed  bool
	ProviderRef string
}

// ReleaseLocked выплачивает продавцу сумму этапа и завершает его.
// Вызывается только внутри DealRepository.Mutate.
func (s *Machine) ReleaseLocked(ctx context.Context, d *entity.Deal, index int, approvedBy string) (*ReleaseOutcome, error) {
	m, err := d.Milestone(index)
	if err != nil {
		return nil, err
	}
	if m.Status != valueobject.MilestoneStatusSubmittedForApproval {
		return nil, apperror.ErrInvalidMilestoneState
	}

	amount := d.ReleaseAmountFor(m)
	if amount.GreaterThan(d.HeldAmount) {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "недостаточно средств на эскроу сделки")
	}
	reference := entity.ReleaseReference(d.ID, index)

	ledgerCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	idx := index
	res, err := s.ledger.Release(ledgerCtx, gateway.TransferRequest{
		DealID:         d.ID,
		RecipientID:    d.SellerID,
		MilestoneIndex: &idx,
		Amount:         amount,
		Reference:      reference,
		Narration:      fmt.Sprintf("%s: этап %d", d.Title, index+1),
	})
	if err != nil {
		logger.Log.WithFields(logrus.Fields{
			"deal_id":         d.ID,
			"milestone_index": index,
			"reference":       reference,
		}).WithError(err).Error("провайдер не выполнил выплату")
		return nil, shared.ProviderError(err, "не удалось выплатить средства продавцу")
	}

	now := s.now()
	dealID := d.ID
	tx := entity.NewWalletTransaction(d.SellerID, &dealID, &idx, valueobject.TransactionTypeRelease, amount, reference, now)
	if res.ProviderTxID != "" {
		tx.ProviderTxID = res.ProviderTxID
	}
	if _, err := s.txRepo.Create(ctx, tx); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить транзакцию выплаты")
	}

	if err := d.Hold(amount); err != nil {
		return nil, err
	}
	if err := m.Complete(approvedBy, now); err != nil {
		return nil, err
	}
	outcome := &ReleaseOutcome{
		Amount:      amount,
		Reference:   reference,
		ProviderRef: res.ProviderRef,
	}
	outcome.NextFunded = d.FundNext(index, now)
	d.Refresh(now)
	outcome.DealClosed = d.DerivedStatus() == valueobject.DealStatusCompleted
	return outcome, nil
}

// NotifyRelease рассылает уведомления после успешной выплаты.
func (s *Machine) NotifyRelease(ctx context.Context, d *entity.Deal, index int, outcome *ReleaseOutcome) {
	approved := dealContext(d, index)
	approved["amount"] = outcome.Amount.StringFixed(2)
	shared.Notify(ctx, s.notifier, gateway.Notification{
		RecipientEmail: d.SellerEmail,
		RecipientID:    d.SellerID,
		Kind:           gateway.NotifyMilestoneApproved,
		Context:        approved,
	})

	if outcome.NextFunded {
		shared.Notify(ctx, s.notifier, gateway.Notification{
			RecipientEmail: d.SellerEmail,
			RecipientID:    d.SellerID,
			Kind:           gateway.NotifyMilestoneFunded,
			Context:        dealContext(d, index+1),
		})
	}

	if outcome.DealClosed {
		shared.Notify(ctx, s.notifier, gateway.Notification{
			RecipientEmail: d.BuyerEmail,
			RecipientID:    d.BuyerID,
			Kind:           gateway.NotifyDealCompleted,
			Context:        dealContext(d, -1),
		})
		shared.Notify(ctx, s.notifier, gateway.Notification{
			RecipientEmail: d.SellerEmail,
			RecipientID:    d.SellerID,
			Kind:           gateway.NotifyDealCompleted,
			Context:        dealContext(d, -1),
		})
	}
}
