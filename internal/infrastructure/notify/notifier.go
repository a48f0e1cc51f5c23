// Package notify рассылает уведомления об этапах сделки: письма, логи, websocket.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/gateway"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/goroutine"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/logger"
)

// EmailNotifier рендерит уведомление и отдаёт его Mailer.
type EmailNotifier struct {
	mailer   Mailer
	renderer *Renderer
}

func NewEmailNotifier(mailer Mailer, renderer *Renderer) *EmailNotifier {
	return &EmailNotifier{mailer: mailer, renderer: renderer}
}

func (n *EmailNotifier) Notify(ctx context.Context, note gateway.Notification) error {
	if note.RecipientEmail == "" {
		return nil
	}
	subject, body, err := n.renderer.Render(note)
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, note.RecipientEmail, subject, body)
}

// LogNotifier только пишет уведомление в лог. Режим MAIL_DRIVER=log.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, note gateway.Notification) error {
	logger.Log.WithFields(logrus.Fields{
		"kind":      note.Kind,
		"recipient": note.RecipientID,
		"email":     note.RecipientEmail,
	}).Info("уведомление")
	return nil
}

// Fanout отправляет уведомление во все каналы и собирает их ошибки.
type Fanout []gateway.Notifier

func (f Fanout) Notify(ctx context.Context, note gateway.Notification) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, note); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Async отправляет уведомления в фоне, не задерживая переход сделки.
type Async struct {
	next    gateway.Notifier
	timeout time.Duration
}

func NewAsync(next gateway.Notifier, timeout time.Duration) *Async {
	return &Async{next: next, timeout: timeout}
}

func (a *Async) Notify(ctx context.Context, note gateway.Notification) error {
	goroutine.Detached(ctx, a.timeout, func(ctx context.Context) {
		if err := a.next.Notify(ctx, note); err != nil {
			logger.Log.WithFields(logrus.Fields{
				"kind":      note.Kind,
				"recipient": note.RecipientID,
			}).WithError(err).Warn("уведомление не доставлено")
		}
	})
	return nil
}
