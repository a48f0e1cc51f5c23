// Package milestone реализует жизненный цикл этапов сделки: финансирование,
// сдачу работы, доработку и одобрение с выплатой продавцу.
package milestone

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/gateway"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/repository"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/logger"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/shared"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/validation"
)

const DefaultCountdownTTL = 72 * time.Hour

// errAlreadyCompleted прерывает Mutate без записи, когда этап уже одобрен.
var errAlreadyCompleted = errors.New("milestone already completed")

type Machine struct {
	dealRepo repository.DealRepository
	txRepo   repository.WalletTransactionRepository
	ledger   gateway.Ledger
	notifier gateway.Notifier
	ttl      time.Duration
	timeout  time.Duration
	now      func() time.Time
}

type Option func(*Machine)

func WithCountdownTTL(ttl time.Duration) Option {
	return func(m *Machine) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

func WithLedgerTimeout(timeout time.Duration) Option {
	return func(m *Machine) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// WithClock подменяет текущее время, используется в тестах таймеров.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

func NewMachine(
	dealRepo repository.DealRepository,
	txRepo repository.WalletTransactionRepository,
	ledger gateway.Ledger,
	notifier gateway.Notifier,
	opts ...Option,
) *Machine {
	m := &Machine{
		dealRepo: dealRepo,
		txRepo:   txRepo,
		ledger:   ledger,
		notifier: notifier,
		ttl:      DefaultCountdownTTL,
		timeout:  shared.DefaultExternalTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FundInitial отмечает поступление денег покупателя по первому этапу.
func (s *Machine) FundInitial(ctx context.Context, dealID uuid.UUID) (*entity.Deal, error) {
	deal, err := s.dealRepo.Mutate(ctx, dealID, func(ctx context.Context, d *entity.Deal) error {
		return d.FundInitial(s.now())
	})
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{
		"deal_id": deal.ID,
		"held":    deal.HeldAmount.StringFixed(2),
	}).Info("сделка профинансирована")

	for _, party := range []struct {
		id    uuid.UUID
		email string
	}{{deal.BuyerID, deal.BuyerEmail}, {deal.SellerID, deal.SellerEmail}} {
		shared.Notify(ctx, s.notifier, gateway.Notification{
			RecipientEmail: party.email,
			RecipientID:    party.id,
			Kind:           gateway.NotifyDealFunded,
			Context:        dealContext(deal, 0),
		})
	}
	return deal, nil
}

func (s *Machine) Submit(ctx context.Context, dealID uuid.UUID, index int, actor entity.Actor, message string, files []string) (*entity.Deal, error) {
	message = strings.TrimSpace(message)
	if err := validation.ValidateLength("сообщение к сдаче", message, 0, validation.MaxSubmissionMessageLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}
	if err := validation.ValidateAttachments(files); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	deal, err := s.dealRepo.Mutate(ctx, dealID, func(ctx context.Context, d *entity.Deal) error {
		if err := d.EnsureUnlocked(); err != nil {
			return err
		}
		if actor.UserID != d.SellerID {
			return apperror.New(apperror.ErrCodeForbidden, "сдать этап может только продавец")
		}
		m, err := d.Milestone(index)
		if err != nil {
			return err
		}
		if d.DerivedStatus() != valueobject.DealStatusInProgress {
			return apperror.New(apperror.ErrCodeInvalidState, "сделка не в работе")
		}
		now := s.now()
		if err := m.Submit(message, files, now, s.ttl); err != nil {
			return err
		}
		d.Refresh(now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	m := deal.Milestones[index]
	logger.Log.WithFields(logrus.Fields{
		"deal_id":         deal.ID,
		"milestone_index": index,
		"expires_at":      m.Countdown.ExpiresAt,
	}).Info("этап сдан на проверку")

	notifyCtx := dealContext(deal, index)
	notifyCtx["auto_approve_at"] = m.Countdown.ExpiresAt.Format(time.RFC3339)
	shared.Notify(ctx, s.notifier, gateway.Notification{
		RecipientEmail: deal.BuyerEmail,
		RecipientID:    deal.BuyerID,
		Kind:           gateway.NotifyMilestoneSubmitted,
		Context:        notifyCtx,
	})
	return deal, nil
}

func (s *Machine) RequestRevision(ctx context.Context, dealID uuid.UUID, index int, actor entity.Actor, reason string) (*entity.Deal, error) {
	reason = strings.TrimSpace(reason)
	if err := validation.ValidateLength("причина доработки", reason, validation.MinRevisionReasonLength, validation.MaxRevisionReasonLength); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeValidation, err.Error())
	}

	deal, err := s.dealRepo.Mutate(ctx, dealID, func(ctx context.Context, d *entity.Deal) error {
		if err := d.EnsureUnlocked(); err != nil {
			return err
		}
		if actor.UserID != d.BuyerID {
			return apperror.New(apperror.ErrCodeForbidden, "запросить доработку может только покупатель")
		}
		m, err := d.Milestone(index)
		if err != nil {
			return err
		}
		now := s.now()
		if err := m.RequestRevision(reason, now); err != nil {
			return err
		}
		d.Refresh(now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	notifyCtx := dealContext(deal, index)
	notifyCtx["reason"] = reason
	shared.Notify(ctx, s.notifier, gateway.Notification{
		RecipientEmail: deal.SellerEmail,
		RecipientID:    deal.SellerID,
		Kind:           gateway.NotifyRevisionRequested,
		Context:        notifyCtx,
	})
	return deal, nil
}

// Approve одобряет этап и выплачивает продавцу его часть. Деньги уходят
// до смены статуса: при ошибке провайдера сделка не меняется.
func (s *Machine) Approve(ctx context.Context, dealID uuid.UUID, index int, actor entity.Actor) (*entity.Deal, error) {
	var outcome *ReleaseOutcome
	deal, err := s.dealRepo.Mutate(ctx, dealID, func(ctx context.Context, d *entity.Deal) error {
		if err := d.EnsureUnlocked(); err != nil {
			return err
		}
		if !actor.System && actor.UserID != d.BuyerID {
			return apperror.New(apperror.ErrCodeForbidden, "одобрить этап может только покупатель")
		}
		m, err := d.Milestone(index)
		if err != nil {
			return err
		}
		if m.Status == valueobject.MilestoneStatusCompleted {
			return errAlreadyCompleted
		}
		outcome, err = s.ReleaseLocked(ctx, d, index, actor.Name())
		return err
	})
	if errors.Is(err, errAlreadyCompleted) {
		// проигравший в гонке с автоодобрением получает текущее состояние сделки
		logger.Log.WithFields(logrus.Fields{
			"deal_id":         dealID,
			"milestone_index": index,
			"actor":           actor.Name(),
		}).Debug("этап уже одобрен, повторная выплата не нужна")
		return s.dealRepo.FindByID(ctx, dealID)
	}
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{
		"deal_id":         deal.ID,
		"milestone_index": index,
		"amount":          outcome.Amount.StringFixed(2),
		"actor":           actor.Name(),
	}).Info("этап одобрен, выплата отправлена")

	s.NotifyRelease(ctx, deal, index, outcome)
	return deal, nil
}

// FundNext финансирует этап, следующий за завершённым. Повторный вызов
// ничего не меняет.
func (s *Machine) FundNext(ctx context.Context, dealID uuid.UUID, completedIndex int) (*entity.Deal, bool, error) {
	var funded bool
	deal, err := s.dealRepo.Mutate(ctx, dealID, func(ctx context.Context, d *entity.Deal) error {
		funded = d.FundNext(completedIndex, s.now())
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if funded {
		shared.Notify(ctx, s.notifier, gateway.Notification{
			RecipientEmail: deal.SellerEmail,
			RecipientID:    deal.SellerID,
			Kind:           gateway.NotifyMilestoneFunded,
			Context:        dealContext(deal, completedIndex+1),
		})
	}
	return deal, funded, nil
}

func dealContext(d *entity.Deal, index int) map[string]any {
	ctx := map[string]any{
		"deal_id": d.ID.String(),
		"title":   d.Title,
		"status":  string(d.Status),
	}
	if index >= 0 && index < len(d.Milestones) {
		ctx["milestone_index"] = index
		ctx["milestone_title"] = d.Milestones[index].Title
		ctx["milestone_amount"] = d.Milestones[index].Amount.StringFixed(2)
	}
	return ctx
}
