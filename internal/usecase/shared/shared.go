// Package shared содержит вспомогательные функции, общие для сценариев.
package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/gateway"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/logger"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
)

// DefaultExternalTimeout ограничивает любой вызов внешнего сервиса.
const DefaultExternalTimeout = 15 * time.Second

// Notify отправляет уведомление и только логирует ошибку.
func Notify(ctx context.Context, notifier gateway.Notifier, n gateway.Notification) {
	if notifier == nil {
		return
	}
	if err := notifier.Notify(ctx, n); err != nil {
		logger.Log.WithFields(logrus.Fields{
			"kind":      n.Kind,
			"recipient": n.RecipientID,
		}).WithError(err).Warn("не удалось отправить уведомление")
	}
}

// RequireKYC пропускает только пользователей с подтверждённой личностью.
func RequireKYC(ctx context.Context, verifier gateway.IdentityVerifier, userID uuid.UUID, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	status, err := verifier.Status(ctx, userID)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeExternalProvider, "не удалось проверить верификацию личности")
	}
	if status != valueobject.KYCStatusApproved {
		return apperror.ErrKYCNotApproved
	}
	return nil
}

// ProviderError оборачивает ошибку провайдера, сохраняя уже типизированные ошибки.
func ProviderError(err error, message string) error {
	if apperror.CodeOf(err) != "" {
		return err
	}
	return apperror.Wrap(err, apperror.ErrCodeExternalProvider, message)
}
