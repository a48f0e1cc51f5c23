package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/infrastructure/ledger"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/interface/http/response"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/webhook"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	reconciler *webhook.Reconciler
}

func NewWebhookHandler(reconciler *webhook.Reconciler) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler}
}

// HandlePayments обрабатывает POST /webhooks/payments. Любой не-200 ответ
// провайдер считает сигналом повторить доставку.
func (h *WebhookHandler) HandlePayments(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(c, "не удалось прочитать тело запроса")
		return
	}

	outcome, err := h.reconciler.Handle(c.Request.Context(), body, c.GetHeader(ledger.SignatureHeader))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"outcome": outcome})
}
