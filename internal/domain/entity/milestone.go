package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
)

type Submission struct {
	Message     string    `json:"message"`
	Files       []string  `json:"files"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type RevisionRequest struct {
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

// Countdown таймер автоматического одобрения этапа.
type Countdown struct {
	Active      bool
	StartedAt   time.Time
	ExpiresAt   time.Time
	CancelledAt *time.Time
}

func (c *Countdown) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// OnHold покупатель остановил таймер, статус этапа при этом не меняется.
func (c *Countdown) OnHold() bool {
	return c.CancelledAt != nil
}

// Cancel возвращает false, если отменять уже нечего.
func (c *Countdown) Cancel(now time.Time) bool {
	if !c.Active || c.CancelledAt != nil || c.Expired(now) {
		return false
	}
	c.Active = false
	c.CancelledAt = &now
	return true
}

type Milestone struct {
	Index       int
	Title       string
	Description string
	Amount      decimal.Decimal
	DueDate     time.Time
	Status      valueobject.MilestoneStatus
	Submission  *Submission
	Revision    *RevisionRequest
	Countdown   *Countdown
	FundedAt    *time.Time
	CompletedAt *time.Time
	ApprovedBy  string
}

func (m *Milestone) transition(next valueobject.MilestoneStatus) error {
	if !m.Status.CanTransitionTo(next) {
		return apperror.ErrInvalidMilestoneState
	}
	m.Status = next
	return nil
}

func (m *Milestone) Fund(now time.Time) error {
	if err := m.transition(valueobject.MilestoneStatusFunded); err != nil {
		return err
	}
	m.FundedAt = &now
	return nil
}

// Submit переводит этап на проверку и взводит таймер автоодобрения.
func (m *Milestone) Submit(message string, files []string, now time.Time, ttl time.Duration) error {
	if err := m.transition(valueobject.MilestoneStatusSubmittedForApproval); err != nil {
		return err
	}
	m.Submission = &Submission{Message: message, Files: files, SubmittedAt: now}
	m.Countdown = &Countdown{Active: true, StartedAt: now, ExpiresAt: now.Add(ttl)}
	return nil
}

func (m *Milestone) RequestRevision(reason string, now time.Time) error {
	if err := m.transition(valueobject.MilestoneStatusRevisionRequested); err != nil {
		return err
	}
	m.Revision = &RevisionRequest{Reason: reason, RequestedAt: now}
	if m.Countdown != nil {
		m.Countdown.Cancel(now)
	}
	return nil
}

func (m *Milestone) Complete(approvedBy string, now time.Time) error {
	if err := m.transition(valueobject.MilestoneStatusCompleted); err != nil {
		return err
	}
	m.CompletedAt = &now
	m.ApprovedBy = approvedBy
	if m.Countdown != nil {
		m.Countdown.Active = false
	}
	return nil
}

// CountdownDue сообщает, что таймер истёк и этап всё ещё ждёт одобрения.
func (m *Milestone) CountdownDue(now time.Time) bool {
	return m.Status == valueobject.MilestoneStatusSubmittedForApproval &&
		m.Countdown != nil && m.Countdown.Active && m.Countdown.CancelledAt == nil &&
		m.Countdown.Expired(now)
}

func (m *Milestone) clone() *Milestone {
	c := *m
	if m.Submission != nil {
		s := *m.Submission
		s.Files = append([]string(nil), m.Submission.Files...)
		c.Submission = &s
	}
	if m.Revision != nil {
		r := *m.Revision
		c.Revision = &r
	}
	if m.Countdown != nil {
		cd := *m.Countdown
		c.Countdown = &cd
	}
	return &c
}
