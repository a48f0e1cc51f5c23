// Package ledger ходит в кошелёк BaaS провайдера по HTTP и проверяет подписи его вебхуков.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/gateway"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/logger"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
)

// Client реализует gateway.Ledger поверх REST API провайдера.
type Client struct {
	baseURL     string
	secretKey   string
	redirectURL string
	httpClient  *http.Client
}

func NewClient(baseURL, secretKey, redirectURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		secretKey:   secretKey,
		redirectURL: redirectURL,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// envelope общий формат ответа провайдера.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type meta struct {
	DealID         string `json:"deal_id,omitempty"`
	BuyerID        string `json:"buyer_id,omitempty"`
	MilestoneIndex *int   `json:"milestone_index,omitempty"`
}

type chargeRequest struct {
	Reference   string          `json:"tx_ref"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Email       string          `json:"customer_email"`
	RedirectURL string          `json:"redirect_url,omitempty"`
	Meta        meta            `json:"meta"`
}

type chargeResponse struct {
	ID          string `json:"id"`
	Reference   string `json:"tx_ref"`
	CheckoutURL string `json:"link"`
}

type transferRequest struct {
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Recipient string          `json:"recipient_id"`
	Narration string          `json:"narration"`
	Meta      meta            `json:"meta"`
}

type transferResponse struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

type balanceResponse struct {
	Available decimal.Decimal `json:"available_balance"`
	Currency  string          `json:"currency"`
}

type verifyResponse struct {
	ID        string          `json:"id"`
	Reference string          `json:"tx_ref"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Meta      meta            `json:"meta"`
}

func (c *Client) Fund(ctx context.Context, req gateway.FundRequest) (*gateway.FundResult, error) {
	payload := chargeRequest{
		Reference:   req.Reference,
		Amount:      req.Amount.Round(2),
		Currency:    valueobject.CurrencyNGN,
		Email:       req.BuyerEmail,
		RedirectURL: c.redirectURL,
		Meta:        meta{DealID: req.DealID.String(), BuyerID: req.BuyerID.String()},
	}

	var resp chargeResponse
	if err := c.do(ctx, http.MethodPost, "/charges", payload, &resp); err != nil {
		return nil, err
	}
	ref := resp.Reference
	if ref == "" {
		ref = req.Reference
	}
	return &gateway.FundResult{ProviderRef: ref, CheckoutURL: resp.CheckoutURL}, nil
}

func (c *Client) Release(ctx context.Context, req gateway.TransferRequest) (*gateway.TransferResult, error) {
	return c.transfer(ctx, "/transfers", req)
}

func (c *Client) Refund(ctx context.Context, req gateway.TransferRequest) (*gateway.TransferResult, error) {
	return c.transfer(ctx, "/refunds", req)
}

func (c *Client) transfer(ctx context.Context, path string, req gateway.TransferRequest) (*gateway.TransferResult, error) {
	payload := transferRequest{
		Reference: req.Reference,
		Amount:    req.Amount.Round(2),
		Currency:  valueobject.CurrencyNGN,
		Recipient: req.RecipientID.String(),
		Narration: req.Narration,
		Meta:      meta{DealID: req.DealID.String(), MilestoneIndex: req.MilestoneIndex},
	}

	var resp transferResponse
	if err := c.do(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return nil, err
	}
	if strings.EqualFold(resp.Status, "failed") {
		return nil, apperror.New(apperror.ErrCodeExternalProvider, "провайдер отклонил перевод")
	}
	ref := resp.Reference
	if ref == "" {
		ref = req.Reference
	}
	return &gateway.TransferResult{ProviderRef: ref, ProviderTxID: resp.ID}, nil
}

func (c *Client) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var resp balanceResponse
	if err := c.do(ctx, http.MethodGet, "/wallets/"+url.PathEscape(userID.String())+"/balance", nil, &resp); err != nil {
		return decimal.Zero, err
	}
	return resp.Available, nil
}

func (c *Client) VerifyCharge(ctx context.Context, chargeID string) (*gateway.ChargeVerification, error) {
	var resp verifyResponse
	if err := c.do(ctx, http.MethodGet, "/charges/"+url.PathEscape(chargeID)+"/verify", nil, &resp); err != nil {
		return nil, err
	}

	v := &gateway.ChargeVerification{
		ID:        resp.ID,
		Reference: resp.Reference,
		Status:    resp.Status,
		Amount:    resp.Amount,
		Currency:  resp.Currency,
	}
	if resp.Meta.BuyerID != "" {
		buyerID, err := uuid.Parse(resp.Meta.BuyerID)
		if err != nil {
			return nil, apperror.New(apperror.ErrCodeExternalProvider, "провайдер вернул некорректный buyer_id")
		}
		v.BuyerID = buyerID
	}
	return v, nil
}

// do выполняет запрос и раскладывает data в out. Любой отказ провайдера
// превращается в EXTERNAL_PROVIDER_ERROR.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	if c.baseURL == "" {
		return apperror.New(apperror.ErrCodeExternalProvider, "ledger: baseURL не задан")
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return apperror.Wrap(err, apperror.ErrCodeInternal, "ledger: не удалось сериализовать запрос")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeInternal, "ledger: не удалось собрать запрос")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.secretKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.secretKey)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperror.Wrap(err, apperror.ErrCodeExternalProvider, "ledger: провайдер недоступен")
	}
	defer resp.Body.Close()

	log := logger.Log.WithFields(logrus.Fields{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(started).String(),
	})

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err != nil {
		log.WithError(err).Warn("ledger: не удалось разобрать ответ")
		return apperror.Wrap(err, apperror.ErrCodeExternalProvider, fmt.Sprintf("ledger: некорректный ответ (код %d)", resp.StatusCode))
	}

	if resp.StatusCode >= 400 || !strings.EqualFold(env.Status, "success") {
		log.WithField("provider_message", env.Message).Warn("ledger: провайдер отклонил запрос")
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("код ответа %d", resp.StatusCode)
		}
		return apperror.New(apperror.ErrCodeExternalProvider, "ledger: "+msg)
	}
	log.Debug("ledger: запрос выполнен")

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return apperror.Wrap(err, apperror.ErrCodeExternalProvider, "ledger: некорректные данные ответа")
	}
	return nil
}
