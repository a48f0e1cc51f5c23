package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/gateway"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "sk_test", "https://app.example.com/deals", time.Second)
}

func writeEnvelope(w http.ResponseWriter, code int, status, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": status, "message": message, "data": data})
}

func TestClient_FundSendsReferenceAndAuth(t *testing.T) {
	dealID := uuid.New()
	var got map[string]any

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/charges", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeEnvelope(w, http.StatusOK, "success", "", map[string]any{
			"id": "ch_1", "tx_ref": "fund-" + dealID.String(), "link": "https://pay.example.com/ch_1",
		})
	})

	res, err := c.Fund(context.Background(), gateway.FundRequest{
		DealID:     dealID,
		BuyerID:    uuid.New(),
		BuyerEmail: "buyer@example.com",
		Amount:     decimal.RequireFromString("526875"),
		Reference:  "fund-" + dealID.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/ch_1", res.CheckoutURL)
	assert.Equal(t, "fund-"+dealID.String(), res.ProviderRef)
	assert.Equal(t, "fund-"+dealID.String(), got["tx_ref"])
	assert.Equal(t, "NGN", got["currency"])
	assert.Equal(t, "buyer@example.com", got["customer_email"])
}

func TestClient_ReleaseProviderRejection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transfers", r.URL.Path)
		writeEnvelope(w, http.StatusBadRequest, "error", "insufficient escrow balance", nil)
	})

	idx := 0
	_, err := c.Release(context.Background(), gateway.TransferRequest{
		DealID: uuid.New(), RecipientID: uuid.New(), MilestoneIndex: &idx,
		Amount: decimal.NewFromInt(100), Reference: "release-x-0",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsExternalProvider(err))
	assert.Contains(t, err.Error(), "insufficient escrow balance")
}

func TestClient_FailedTransferStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, "success", "", map[string]any{"id": "tr_1", "status": "FAILED"})
	})

	_, err := c.Refund(context.Background(), gateway.TransferRequest{
		DealID: uuid.New(), RecipientID: uuid.New(), Amount: decimal.NewFromInt(5), Reference: "refund-x",
	})
	assert.True(t, apperror.IsExternalProvider(err))
}

func TestClient_VerifyCharge(t *testing.T) {
	buyerID := uuid.New()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/charges/ch_9/verify", r.URL.Path)
		writeEnvelope(w, http.StatusOK, "success", "", map[string]any{
			"id": "ch_9", "tx_ref": "fund-abc", "status": "successful",
			"amount": "526875.00", "currency": "NGN",
			"meta": map[string]any{"buyer_id": buyerID.String()},
		})
	})

	v, err := c.VerifyCharge(context.Background(), "ch_9")
	require.NoError(t, err)
	assert.True(t, v.Successful())
	assert.True(t, decimal.NewFromInt(526875).Equal(v.Amount))
	assert.Equal(t, buyerID, v.BuyerID)
	assert.Equal(t, "fund-abc", v.Reference)
}

func TestClient_Balance(t *testing.T) {
	userID := uuid.New()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wallets/"+userID.String()+"/balance", r.URL.Path)
		writeEnvelope(w, http.StatusOK, "success", "", map[string]any{"available_balance": 1500.5, "currency": "NGN"})
	})

	bal, err := c.Balance(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1500.5").Equal(bal))
}

func TestClient_UnreachableProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, "", "", 200*time.Millisecond)
	_, err := c.Balance(context.Background(), uuid.New())
	assert.True(t, apperror.IsExternalProvider(err))
}

func TestSignatureVerifier(t *testing.T) {
	body := []byte(`{"event":"charge.completed","data":{"id":"ch_1"}}`)
	v := NewSignatureVerifier("whsec")

	assert.NoError(t, v.Verify(body, SignHex("whsec", body)))
	assert.True(t, apperror.IsSignatureInvalid(v.Verify(body, SignHex("other", body))))
	assert.True(t, apperror.IsSignatureInvalid(v.Verify(body, "not-hex")))
	assert.True(t, apperror.IsSignatureInvalid(v.Verify(body, "")))
	assert.True(t, apperror.IsSignatureInvalid(NewSignatureVerifier("").Verify(body, SignHex("", body))))
}

func TestSandbox_FundThenVerify(t *testing.T) {
	s := NewSandbox()
	ctx := context.Background()
	buyer := uuid.New()

	res, err := s.Fund(ctx, gateway.FundRequest{BuyerID: buyer, Amount: decimal.NewFromInt(10), Reference: "fund-1"})
	require.NoError(t, err)

	again, err := s.Fund(ctx, gateway.FundRequest{BuyerID: buyer, Amount: decimal.NewFromInt(10), Reference: "fund-1"})
	require.NoError(t, err)
	assert.Equal(t, res.CheckoutURL, again.CheckoutURL)

	v, err := s.VerifyCharge(ctx, "sbx-1")
	require.NoError(t, err)
	assert.True(t, v.Successful())
	assert.Equal(t, "fund-1", v.Reference)

	seller := uuid.New()
	_, err = s.Release(ctx, gateway.TransferRequest{RecipientID: seller, Amount: decimal.NewFromInt(4), Reference: "release-1-0"})
	require.NoError(t, err)
	bal, _ := s.Balance(ctx, seller)
	assert.True(t, decimal.NewFromInt(4).Equal(bal))
}

func TestSandbox_TransferRetryWithSameReference(t *testing.T) {
	s := NewSandbox()
	ctx := context.Background()
	seller, buyer := uuid.New(), uuid.New()

	first, err := s.Release(ctx, gateway.TransferRequest{RecipientID: seller, Amount: decimal.NewFromInt(4), Reference: "release-1-0"})
	require.NoError(t, err)
	second, err := s.Release(ctx, gateway.TransferRequest{RecipientID: seller, Amount: decimal.NewFromInt(4), Reference: "release-1-0"})
	require.NoError(t, err)
	assert.Equal(t, first.ProviderTxID, second.ProviderTxID)

	bal, _ := s.Balance(ctx, seller)
	assert.True(t, decimal.NewFromInt(4).Equal(bal))

	for i := 0; i < 2; i++ {
		_, err = s.Refund(ctx, gateway.TransferRequest{RecipientID: buyer, Amount: decimal.NewFromInt(6), Reference: "refund-1"})
		require.NoError(t, err)
	}
	bal, _ = s.Balance(ctx, buyer)
	assert.True(t, decimal.NewFromInt(6).Equal(bal))
}
