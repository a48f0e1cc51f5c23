// Package dispute открывает споры по сделкам и применяет решения администратора.
package dispute

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/gateway"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/repository"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/logger"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/milestone"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/shared"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/validation"
)

// Releaser выплачивает продавцу этап внутри блокировки сделки.
type Releaser interface {
	ReleaseLocked(ctx context.Context, d *entity.Deal, index int, approvedBy string) (*milestone.ReleaseOutcome, error)
	NotifyRelease(ctx context.Context, d *entity.Deal, index int, outcome *milestone.ReleaseOutcome)
}

type OpenInput struct {
	DealID         uuid.UUID
	MilestoneIndex *int
	Category       string
	Priority       string
	Reason         string
	Evidence       []string
}

type ResolveInput struct {
	Type   string
	Amount decimal.Decimal
	Notes  string
}

type Manager struct {
	dealRepo    repository.DealRepository
	disputeRepo repository.DisputeRepository
	txRepo      repository.WalletTransactionRepository
	ledger      gateway.Ledger
	kyc         gateway.IdentityVerifier
	releaser    Releaser
	notifier    gateway.Notifier
	timeout     time.Duration
	now         func() time.Time
}

func NewManager(
	dealRepo repository.DealRepository,
	disputeRepo repository.DisputeRepository,
	txRepo repository.WalletTransactionRepository,
	ledger gateway.Ledger,
	kyc gateway.IdentityVerifier,
	releaser Releaser,
	notifier gateway.Notifier,
	timeout time.Duration,
) *Manager {
	if timeout <= 0 {
		timeout = shared.DefaultExternalTimeout
	}
	return &Manager{
		dealRepo:    dealRepo,
		disputeRepo: disputeRepo,
		txRepo:      txRepo,
		ledger:      ledger,
		kyc:         kyc,
		releaser:    releaser,
		notifier:    notifier,
		timeout:     timeout,
		now:         time.Now,
	}
}

// Open блокирует сделку спором. Активные таймеры автоодобрения останавливаются.
func (m *Manager) Open(ctx context.Context, input OpenInput, actor entity.Actor) (*entity.Dispute, error) {
	current, err := m.dealRepo.FindByID(ctx, input.DealID)
	if err != nil {
		return nil, err
	}
	role, ok := current.RoleOf(actor.UserID)
	if !ok {
		return nil, apperror.ErrForbidden
	}
	if err := shared.RequireKYC(ctx, m.kyc, actor.UserID, m.timeout); err != nil {
		return nil, err
	}

	dispute, err := entity.NewDispute(input.DealID, input.MilestoneIndex, actor.UserID, role,
		input.Category, input.Priority, input.Reason, input.Evidence, m.now())
	if err != nil {
		return nil, err
	}

	deal, err := m.dealRepo.Mutate(ctx, input.DealID, func(ctx context.Context, d *entity.Deal) error {
		if d.DerivedStatus() == valueobject.DealStatusCompleted {
			return apperror.New(apperror.ErrCodeInvalidState, "по завершённой сделке спор открыть нельзя")
		}
		if err := d.EnsureUnlocked(); err != nil {
			return err
		}
		if input.MilestoneIndex != nil {
			if _, err := d.Milestone(*input.MilestoneIndex); err != nil {
				return err
			}
		}
		if err := m.disputeRepo.Create(ctx, dispute); err != nil {
			return err
		}
		now := m.now()
		d.OpenDisputeID = &dispute.ID
		d.CancelCountdowns(now)
		d.Refresh(now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{
		"deal_id":    deal.ID,
		"dispute_id": dispute.ID,
		"category":   dispute.Category,
		"raised_by":  role,
	}).Info("открыт спор")

	counterpartyID, counterpartyEmail := deal.CounterpartyOf(actor.UserID)
	shared.Notify(ctx, m.notifier, gateway.Notification{
		RecipientEmail: counterpartyEmail,
		RecipientID:    counterpartyID,
		Kind:           gateway.NotifyDisputeOpened,
		Context: map[string]any{
			"deal_id":    deal.ID.String(),
			"dispute_id": dispute.ID.String(),
			"title":      deal.Title,
			"category":   string(dispute.Category),
			"reason":     dispute.Reason,
		},
	})
	return dispute, nil
}

// Resolve применяет решение администратора. Деньги двигаются до закрытия
// спора: при ошибке провайдера спор остаётся открытым.
func (m *Manager) Resolve(ctx context.Context, disputeID uuid.UUID, input ResolveInput, resolver entity.Actor) (*entity.Dispute, error) {
	if !resolver.IsAdmin() {
		return nil, apperror.New(apperror.ErrCodeForbidden, "решать споры может только администратор")
	}
	resolution, err := valueobject.NewResolutionType(input.Type)
	if err != nil {
		return nil, err
	}
	notes := strings.TrimSpace(input.Notes)
	if err := validation.ValidateLength("комментарий к решению", notes, 0, validation.MaxResolutionNotesLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	dispute, err := m.disputeRepo.FindByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if !dispute.IsOpen() {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "спор уже закрыт")
	}

	var (
		released     *milestone.ReleaseOutcome
		releaseIndex int
	)
	deal, err := m.dealRepo.Mutate(ctx, dispute.DealID, func(ctx context.Context, d *entity.Deal) error {
		if d.OpenDisputeID == nil || *d.OpenDisputeID != dispute.ID {
			return apperror.New(apperror.ErrCodeInvalidState, "спор уже закрыт")
		}

		now := m.now()
		moved := decimal.Zero

		switch resolution {
		case valueobject.ResolutionRefundBuyer:
			amount, err := m.refund(ctx, d, dispute, d.HeldAmount)
			if err != nil {
				return err
			}
			moved = amount
		case valueobject.ResolutionPartialRefund:
			if !input.Amount.IsPositive() || input.Amount.GreaterThan(d.HeldAmount) {
				return apperror.New(apperror.ErrCodeValidation, "сумма возврата должна быть больше нуля и не больше удержанной")
			}
			amount, err := m.refund(ctx, d, dispute, input.Amount.Round(2))
			if err != nil {
				return err
			}
			moved = amount
		case valueobject.ResolutionReleaseSeller:
			idx, err := disputedIndex(d, dispute)
			if err != nil {
				return err
			}
			outcome, err := m.releaser.ReleaseLocked(ctx, d, idx, resolver.Name())
			if err != nil {
				return err
			}
			released, releaseIndex = outcome, idx
			moved = outcome.Amount
		case valueobject.ResolutionNoAction:
		}

		if err := dispute.Resolve(entity.Resolution{
			Type:       resolution,
			Amount:     moved,
			Notes:      notes,
			ResolvedBy: resolver.UserID,
			ResolvedAt: now,
		}); err != nil {
			return err
		}
		if err := m.disputeRepo.Update(ctx, dispute); err != nil {
			return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить решение спора")
		}

		d.OpenDisputeID = nil
		d.Refresh(now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{
		"deal_id":    deal.ID,
		"dispute_id": dispute.ID,
		"resolution": resolution,
		"amount":     dispute.Resolution.Amount.StringFixed(2),
		"resolver":   resolver.UserID,
	}).Info("спор разрешён")

	notifyCtx := map[string]any{
		"deal_id":    deal.ID.String(),
		"dispute_id": dispute.ID.String(),
		"title":      deal.Title,
		"resolution": string(resolution),
		"amount":     dispute.Resolution.Amount.StringFixed(2),
		"notes":      notes,
	}
	shared.Notify(ctx, m.notifier, gateway.Notification{
		RecipientEmail: deal.BuyerEmail, RecipientID: deal.BuyerID,
		Kind: gateway.NotifyDisputeResolved, Context: notifyCtx,
	})
	shared.Notify(ctx, m.notifier, gateway.Notification{
		RecipientEmail: deal.SellerEmail, RecipientID: deal.SellerID,
		Kind: gateway.NotifyDisputeResolved, Context: notifyCtx,
	})
	if released != nil {
		m.releaser.NotifyRelease(ctx, deal, releaseIndex, released)
	}
	return dispute, nil
}

// refund возвращает покупателю amount из удержанных средств. Нулевой
// остаток ничего не отправляет провайдеру.
func (m *Manager) refund(ctx context.Context, d *entity.Deal, dispute *entity.Dispute, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, nil
	}
	reference := entity.RefundReference(dispute.ID)

	ledgerCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	res, err := m.ledger.Refund(ledgerCtx, gateway.TransferRequest{
		DealID:      d.ID,
		RecipientID: d.BuyerID,
		Amount:      amount,
		Reference:   reference,
		Narration:   "Возврат по спору: " + d.Title,
	})
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"deal_id": d.ID, "dispute_id": dispute.ID}).WithError(err).Error("провайдер не выполнил возврат")
		return decimal.Zero, shared.ProviderError(err, "не удалось вернуть средства покупателю")
	}

	dealID := d.ID
	tx := entity.NewWalletTransaction(d.BuyerID, &dealID, dispute.MilestoneIndex, valueobject.TransactionTypeRefund, amount, reference, m.now())
	tx.ProviderTxID = res.ProviderTxID
	if _, err := m.txRepo.Create(ctx, tx); err != nil {
		return decimal.Zero, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить транзакцию возврата")
	}
	if err := d.Hold(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// disputedIndex этап спора, либо текущий незавершённый этап.
func disputedIndex(d *entity.Deal, dispute *entity.Dispute) (int, error) {
	if dispute.MilestoneIndex != nil {
		return *dispute.MilestoneIndex, nil
	}
	current := d.CurrentMilestone()
	if current == nil {
		return 0, apperror.New(apperror.ErrCodeInvalidState, "в сделке нет незавершённых этапов")
	}
	return current.Index, nil
}

func (m *Manager) Get(ctx context.Context, disputeID uuid.UUID, actor entity.Actor) (*entity.Dispute, error) {
	dispute, err := m.disputeRepo.FindByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() {
		return dispute, nil
	}
	deal, err := m.dealRepo.FindByID(ctx, dispute.DealID)
	if err != nil {
		return nil, err
	}
	if !deal.IsParticipant(actor.UserID) {
		return nil, apperror.ErrForbidden
	}
	return dispute, nil
}

func (m *Manager) ListForDeal(ctx context.Context, dealID uuid.UUID, actor entity.Actor) ([]*entity.Dispute, error) {
	deal, err := m.dealRepo.FindByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !deal.IsParticipant(actor.UserID) && !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	disputes, err := m.disputeRepo.FindByDealID(ctx, dealID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить споры сделки")
	}
	return disputes, nil
}

func (m *Manager) ListMine(ctx context.Context, actor entity.Actor) ([]*entity.Dispute, error) {
	disputes, err := m.disputeRepo.FindByParticipant(ctx, actor.UserID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить споры")
	}
	return disputes, nil
}

func (m *Manager) ListOpen(ctx context.Context, actor entity.Actor) ([]*entity.Dispute, error) {
	if !actor.IsAdmin() {
		return nil, apperror.ErrForbidden
	}
	disputes, err := m.disputeRepo.ListOpen(ctx)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить открытые споры")
	}
	return disputes, nil
}
