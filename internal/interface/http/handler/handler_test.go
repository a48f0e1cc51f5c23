package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/entity"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/http/middleware"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/infrastructure/identity"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/infrastructure/ledger"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/infrastructure/memory"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/infrastructure/notify"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/storage"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/countdown"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/deal"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/dispute"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/milestone"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/proposal"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/webhook"
)

const webhookSecret = "test-webhook-secret"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testServer struct {
	engine  *gin.Engine
	sandbox *ledger.Sandbox
	buyer   entity.Actor
	seller  entity.Actor
	admin   entity.Actor
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	sandbox := ledger.NewSandbox()
	kyc := identity.NewStaticVerifier(valueobject.KYCStatusApproved)
	notifier := notify.LogNotifier{}

	factory := deal.NewFactory(store.Deals(), notifier)
	funding := deal.NewFundDealUseCase(store.Deals(), store.Transactions(), sandbox, kyc, time.Second)
	machine := milestone.NewMachine(store.Deals(), store.Transactions(), sandbox, notifier)
	scheduler := countdown.NewScheduler(store.Deals(), machine, time.Minute)
	manager := dispute.NewManager(store.Deals(), store.Disputes(), store.Transactions(), sandbox, kyc, machine, notifier, time.Second)
	reconciler := webhook.NewReconciler(ledger.NewSignatureVerifier(webhookSecret), nil, sandbox,
		store.Deals(), store.Transactions(), machine, time.Second)

	files, err := storage.NewLocalStore(t.TempDir(), "/media", 1)
	require.NoError(t, err)

	proposals := NewProposalHandler(
		proposal.NewCreateProposalUseCase(store.Proposals(), notifier),
		proposal.NewUpdateProposalStatusUseCase(store.Proposals(), factory, funding, kyc, notifier, time.Second),
		proposal.NewGetProposalUseCase(store.Proposals()),
		proposal.NewListMyProposalsUseCase(store.Proposals()),
	)
	deals := NewDealHandler(deal.NewGetDealUseCase(store.Deals(), store.Transactions()), deal.NewListMyDealsUseCase(store.Deals()), funding)
	milestones := NewMilestoneHandler(machine, scheduler)
	disputes := NewDisputeHandler(manager)
	wallet := NewWalletHandler(sandbox, store.Transactions(), time.Second)
	upload := NewFileHandler(files, 1)
	hooks := NewWebhookHandler(reconciler)

	s := &testServer{
		sandbox: sandbox,
		buyer:   entity.Actor{UserID: uuid.New(), Email: "buyer@example.com"},
		seller:  entity.Actor{UserID: uuid.New(), Email: "seller@example.com"},
		admin:   entity.Actor{UserID: uuid.New(), Email: "admin@example.com", Role: entity.RoleAdmin},
	}
	actors := map[string]entity.Actor{"buyer": s.buyer, "seller": s.seller, "admin": s.admin}

	r := gin.New()
	r.GET("/health", NewHealthHandler(nil, "memory").Health)
	r.POST("/webhooks/payments", hooks.HandlePayments)
	r.GET("/api/fees/quote", QuoteFee)

	api := r.Group("/api", func(c *gin.Context) {
		if actor, ok := actors[c.GetHeader("X-Test-Actor")]; ok {
			c.Set(middleware.ContextActorKey, actor)
			c.Set(middleware.ContextRoleKey, actor.Role)
		}
		c.Next()
	})
	api.POST("/proposals", proposals.CreateProposal)
	api.GET("/proposals", proposals.ListMyProposals)
	api.GET("/proposals/:id", proposals.GetProposal)
	api.PATCH("/proposals/:id/status", proposals.UpdateProposalStatus)
	api.GET("/deals", deals.ListMyDeals)
	api.GET("/deals/:id", deals.GetDeal)
	api.GET("/deals/:id/transactions", deals.ListTransactions)
	api.POST("/deals/:id/fund", deals.FundDeal)
	api.POST("/deals/:id/milestones/:index/submit", milestones.Submit)
	api.POST("/deals/:id/milestones/:index/revision", milestones.RequestRevision)
	api.POST("/deals/:id/milestones/:index/approve", milestones.Approve)
	api.DELETE("/deals/:id/milestones/:index/countdown", milestones.CancelCountdown)
	api.POST("/deals/:id/disputes", disputes.OpenDispute)
	api.GET("/disputes/:id", disputes.GetDispute)
	api.POST("/admin/disputes/:id/resolve", disputes.ResolveDispute)
	api.GET("/wallet/balance", wallet.GetBalance)
	api.GET("/wallet/transactions", wallet.ListTransactions)
	api.POST("/files", upload.Upload)

	s.engine = r
	return s
}

func (s *testServer) do(t *testing.T, method, path, actor string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-Test-Actor", actor)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func (s *testServer) webhook(t *testing.T, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(body))
	req.Header.Set(ledger.SignatureHeader, signature)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func proposalBody(counterparty string) map[string]any {
	return map[string]any{
		"title":       "Лендинг для кофейни",
		"description": "Дизайн и вёрстка",
		"milestones": []map[string]any{
			{"title": "Дизайн", "amount": "40000", "due_date": time.Now().Add(72 * time.Hour)},
			{"title": "Вёрстка", "amount": "60000", "due_date": time.Now().Add(240 * time.Hour)},
		},
		"total_amount":       "100000",
		"fee_split":          50,
		"creator_role":       "buyer",
		"counterparty_email": counterparty,
	}
}

// createDeal проводит предложение покупателя до сделки, ожидающей оплаты.
func (s *testServer) createDeal(t *testing.T) (proposalID, dealID string) {
	t.Helper()
	w, env := s.do(t, http.MethodPost, "/api/proposals", "buyer", proposalBody(s.seller.Email))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "pending", created.Status)

	w, env = s.do(t, http.MethodPatch, "/api/proposals/"+created.ID+"/status", "seller", map[string]string{"status": "accepted"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated struct {
		Proposal struct {
			Status string `json:"status"`
		} `json:"proposal"`
		Deal *struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"deal"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	require.NotNil(t, updated.Deal)
	assert.Equal(t, "completed", updated.Proposal.Status)
	assert.Equal(t, "awaiting_funding", updated.Deal.Status)
	return created.ID, updated.Deal.ID
}

func chargeEvent(id string) []byte {
	raw, _ := json.Marshal(map[string]any{
		"event": webhook.EventChargeCompleted,
		"data":  map[string]any{"id": id, "status": "successful"},
	})
	return raw
}

func TestHealth_MemoryDriver(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"storage":"memory"`)
}

func TestQuoteFee(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodGet, "/api/fees/quote?amount=1000000&split=50", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var quote struct {
		EscrowFee     decimal.Decimal `json:"escrow_fee"`
		BuyerShare    decimal.Decimal `json:"buyer_fee_share"`
		FundingAmount decimal.Decimal `json:"funding_amount"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &quote))
	assert.True(t, decimal.NewFromInt(107500).Equal(quote.EscrowFee), quote.EscrowFee.String())
	assert.True(t, decimal.NewFromInt(53750).Equal(quote.BuyerShare))
	assert.True(t, decimal.NewFromInt(1053750).Equal(quote.FundingAmount))
}

func TestQuoteFee_RejectsBadInput(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodGet, "/api/fees/quote?amount=abc&split=50", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/fees/quote?amount=1000&split=30", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProposal_RequiresActor(t *testing.T) {
	s := newTestServer(t)
	w, env := s.do(t, http.MethodPost, "/api/proposals", "", proposalBody(s.seller.Email))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
}

func TestProposal_InvalidBody(t *testing.T) {
	s := newTestServer(t)
	body := proposalBody(s.seller.Email)
	delete(body, "fee_split")

	w, _ := s.do(t, http.MethodPost, "/api/proposals", "buyer", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProposal_MilestoneSumMismatch(t *testing.T) {
	s := newTestServer(t)
	body := proposalBody(s.seller.Email)
	body["total_amount"] = "90000"

	w, env := s.do(t, http.MethodPost, "/api/proposals", "buyer", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestProposal_CreatorCannotAccept(t *testing.T) {
	s := newTestServer(t)
	w, env := s.do(t, http.MethodPost, "/api/proposals", "buyer", proposalBody(s.seller.Email))
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	w, _ = s.do(t, http.MethodPatch, "/api/proposals/"+created.ID+"/status", "buyer", map[string]string{"status": "accepted"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodPatch, "/api/proposals/"+created.ID+"/status", "seller", map[string]string{"status": "maybe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetDeal_InvalidID(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(t, http.MethodGet, "/api/deals/not-a-uuid", "buyer", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDealFlow_FundWebhookSubmitApprove(t *testing.T) {
	s := newTestServer(t)
	_, dealID := s.createDeal(t)

	w, _ := s.do(t, http.MethodPost, "/api/deals/"+dealID+"/fund", "seller", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := s.do(t, http.MethodPost, "/api/deals/"+dealID+"/fund", "buyer", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var funding struct {
		Amount      decimal.Decimal `json:"amount"`
		Reference   string          `json:"reference"`
		CheckoutURL string          `json:"checkout_url"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &funding))
	assert.Equal(t, "fund-"+dealID, funding.Reference)
	assert.Equal(t, "sandbox://checkout/sbx-1", funding.CheckoutURL)

	body := chargeEvent("sbx-1")
	w = s.webhook(t, body, "deadbeef")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.webhook(t, body, ledger.SignHex(webhookSecret, body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"outcome":"processed"`)

	// повтор доставки не меняет сделку
	w = s.webhook(t, body, ledger.SignHex(webhookSecret, body))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"duplicate"`)

	w, env = s.do(t, http.MethodGet, "/api/deals/"+dealID, "seller", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Status     string `json:"status"`
		Milestones []struct {
			Status string `json:"status"`
		} `json:"milestones"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "in_progress", got.Status)
	assert.Equal(t, "funded", got.Milestones[0].Status)

	w, _ = s.do(t, http.MethodPost, "/api/deals/"+dealID+"/milestones/0/submit", "buyer",
		map[string]any{"message": "готово"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/deals/"+dealID+"/milestones/0/submit", "seller",
		map[string]any{"message": "Макеты готовы", "files": []string{"/media/x/design.png"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = s.do(t, http.MethodDelete, "/api/deals/"+dealID+"/milestones/0/countdown", "buyer", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var cancel struct {
		Cancelled bool `json:"cancelled"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &cancel))
	assert.True(t, cancel.Cancelled)

	w, env = s.do(t, http.MethodDelete, "/api/deals/"+dealID+"/milestones/0/countdown", "buyer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &cancel))
	assert.False(t, cancel.Cancelled)

	w, _ = s.do(t, http.MethodPost, "/api/deals/"+dealID+"/milestones/0/approve", "buyer", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// повторное одобрение ничего не выплачивает и не считается ошибкой
	w, _ = s.do(t, http.MethodPost, "/api/deals/"+dealID+"/milestones/0/approve", "buyer", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(t, http.MethodGet, "/api/wallet/balance", "seller", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var balance struct {
		Balance decimal.Decimal `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &balance))
	assert.True(t, balance.Balance.IsPositive())

	w, env = s.do(t, http.MethodGet, "/api/deals/"+dealID+"/transactions", "buyer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var txs []struct {
		Type string `json:"type"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &txs))
	assert.Len(t, txs, 2)
}

func TestDealFlow_DisputeLocksDeal(t *testing.T) {
	s := newTestServer(t)
	_, dealID := s.createDeal(t)

	w, _ := s.do(t, http.MethodPost, "/api/deals/"+dealID+"/fund", "buyer", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	body := chargeEvent("sbx-1")
	w = s.webhook(t, body, ledger.SignHex(webhookSecret, body))
	require.Equal(t, http.StatusOK, w.Code)

	w, env := s.do(t, http.MethodPost, "/api/deals/"+dealID+"/disputes", "buyer", map[string]any{
		"category": "delivery",
		"priority": "high",
		"reason":   "Продавец не выходит на связь вторую неделю",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var opened struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &opened))
	assert.Equal(t, "open", opened.Status)

	w, env = s.do(t, http.MethodPost, "/api/deals/"+dealID+"/milestones/0/submit", "seller",
		map[string]any{"message": "Макеты готовы"})
	assert.Equal(t, http.StatusLocked, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "DEAL_LOCKED", env.Error.Code)

	w, _ = s.do(t, http.MethodPost, "/api/admin/disputes/"+opened.ID+"/resolve", "buyer",
		map[string]any{"type": "no_action"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = s.do(t, http.MethodPost, "/api/admin/disputes/"+opened.ID+"/resolve", "admin",
		map[string]any{"type": "no_action", "notes": "стороны договорились"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resolved struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resolved))
	assert.Equal(t, "resolved", resolved.Status)

	w, _ = s.do(t, http.MethodPost, "/api/deals/"+dealID+"/milestones/0/submit", "seller",
		map[string]any{"message": "Макеты готовы"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWebhook_MalformedAndProviderFailure(t *testing.T) {
	s := newTestServer(t)

	body := []byte(`{"event":`)
	w := s.webhook(t, body, ledger.SignHex(webhookSecret, body))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	unknown := chargeEvent("sbx-404")
	w = s.webhook(t, unknown, ledger.SignHex(webhookSecret, unknown))
	assert.Equal(t, http.StatusBadGateway, w.Code)

	other := []byte(`{"event":"subscription.cancelled","data":{"id":"1"}}`)
	w = s.webhook(t, other, ledger.SignHex(webhookSecret, other))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"outcome":"ignored"`)
}

func TestWalletTransactions_Paginated(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(t, http.MethodGet, "/api/wallet/transactions?limit=500", "buyer", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"limit":20`)
}

func multipartFile(t *testing.T, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	s := newTestServer(t)
	png := append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, bytes.Repeat([]byte{0}, 64)...)

	body, contentType := multipartFile(t, "design.png", png)
	req := httptest.NewRequest(http.MethodPost, "/api/files", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Test-Actor", "seller")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "/media/"+s.seller.UserID.String()+"/")
	assert.Contains(t, w.Body.String(), "image/png")

	body, contentType = multipartFile(t, "notes.txt", []byte("просто текст без сигнатуры"))
	req = httptest.NewRequest(http.MethodPost, "/api/files", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Test-Actor", "seller")
	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
