// Package countdown автоматически одобряет этапы, которые покупатель
// не проверил до истечения таймера.
package countdown

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/repository"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/goroutine"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/logger"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
)

const DefaultPollInterval = time.Minute

// Approver одобряет этап, в том числе от имени системы.
type Approver interface {
	Approve(ctx context.Context, dealID uuid.UUID, index int, actor entity.Actor) (*entity.Deal, error)
}

type Scheduler struct {
	dealRepo repository.DealRepository
	approver Approver
	interval time.Duration
	now      func() time.Time
}

func NewScheduler(dealRepo repository.DealRepository, approver Approver, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Scheduler{
		dealRepo: dealRepo,
		approver: approver,
		interval: interval,
		now:      time.Now,
	}
}

// Tick одобряет все этапы с истёкшим таймером и возвращает число одобренных.
// Проигравшие гонку с ручным одобрением или спором пропускаются.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) int {
	due, err := s.dealRepo.FindDueCountdowns(ctx, now)
	if err != nil {
		logger.Log.WithError(err).Error("не удалось получить истёкшие таймеры")
		return 0
	}

	approved := 0
	for _, ref := range due {
		if ctx.Err() != nil {
			break
		}
		fields := logrus.Fields{"deal_id": ref.DealID, "milestone_index": ref.MilestoneIndex}

		d, err := s.approver.Approve(ctx, ref.DealID, ref.MilestoneIndex, entity.SystemActor())
		switch {
		case err == nil && d.Milestones[ref.MilestoneIndex].ApprovedBy == entity.SystemAutoApprove:
			approved++
			logger.Log.WithFields(fields).Info("этап одобрен автоматически")
		case err == nil, apperror.IsInvalidState(err), apperror.IsDealLocked(err):
			logger.Log.WithFields(fields).WithError(err).Debug("автоодобрение пропущено")
		default:
			logger.Log.WithFields(fields).WithError(err).Warn("автоодобрение не удалось, повтор на следующем тике")
		}
	}
	return approved
}

// Run проверяет таймеры каждые interval, пока ctx не отменён.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx, s.now())
		}
	}
}

// Start запускает Run в отдельной горутине.
func (s *Scheduler) Start(ctx context.Context) {
	logger.Log.WithField("interval", s.interval.String()).Info("планировщик автоодобрения запущен")
	goroutine.SafeGoWithContext(ctx, s.Run)
}

// Cancel останавливает таймер этапа по просьбе покупателя. Статус этапа
// не меняется. Повторная отмена ничего не делает.
func (s *Scheduler) Cancel(ctx context.Context, dealID uuid.UUID, index int, actor entity.Actor) (*entity.Deal, bool, error) {
	var cancelled bool
	deal, err := s.dealRepo.Mutate(ctx, dealID, func(ctx context.Context, d *entity.Deal) error {
		if actor.UserID != d.BuyerID {
			return apperror.New(apperror.ErrCodeForbidden, "остановить таймер может только покупатель")
		}
		m, err := d.Milestone(index)
		if err != nil {
			return err
		}
		if m.Countdown == nil {
			return nil
		}
		now := s.now()
		cancelled = m.Countdown.Cancel(now)
		if cancelled {
			d.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if cancelled {
		logger.Log.WithFields(logrus.Fields{"deal_id": dealID, "milestone_index": index}).Info("таймер автоодобрения остановлен")
	}
	return deal, cancelled, nil
}
