package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/gateway"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/repository"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/interface/http/dto"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/interface/http/response"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/deal"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/shared"
)

const maxTransactionsPage = 100

// WalletHandler показывает баланс кошелька у провайдера и историю движений.
type WalletHandler struct {
	ledger  gateway.Ledger
	txRepo  repository.WalletTransactionRepository
	timeout time.Duration
}

func NewWalletHandler(ledger gateway.Ledger, txRepo repository.WalletTransactionRepository, timeout time.Duration) *WalletHandler {
	if timeout <= 0 {
		timeout = shared.DefaultExternalTimeout
	}
	return &WalletHandler{ledger: ledger, txRepo: txRepo, timeout: timeout}
}

func (h *WalletHandler) GetBalance(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	balance, err := h.ledger.Balance(ctx, actor.UserID)
	if err != nil {
		response.Error(c, shared.ProviderError(err, "не удалось получить баланс кошелька"))
		return
	}
	response.Success(c, dto.BalanceResponse{
		UserID:   actor.UserID,
		Balance:  balance,
		Currency: "NGN",
	})
}

func (h *WalletHandler) ListTransactions(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	limit := parseIntQuery(c, "limit", 20)
	if limit <= 0 || limit > maxTransactionsPage {
		limit = 20
	}
	offset := parseIntQuery(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	txs, total, err := h.txRepo.ListByUser(c.Request.Context(), actor.UserID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, dto.ToTransactionResponses(txs), total, limit, offset)
}

// QuoteFee обрабатывает GET /api/fees/quote?amount=&split=. Авторизация не нужна.
func QuoteFee(c *gin.Context) {
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		response.BadRequest(c, "некорректная сумма")
		return
	}
	split := parseIntQuery(c, "split", -1)

	quote, err := deal.QuoteFee(amount, split)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToQuoteResponse(quote))
}
