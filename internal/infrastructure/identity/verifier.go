// Package identity узнаёт статус верификации личности пользователя.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
)

// HTTPVerifier спрашивает статус у внешнего KYC сервиса.
type HTTPVerifier struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPVerifier(baseURL, apiKey string, timeout time.Duration) *HTTPVerifier {
	return &HTTPVerifier{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (v *HTTPVerifier) Status(ctx context.Context, userID uuid.UUID) (valueobject.KYCStatus, error) {
	endpoint := fmt.Sprintf("%s/users/%s/kyc", v.baseURL, url.PathEscape(userID.String()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	if v.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+v.apiKey)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return "", apperror.Wrap(err, apperror.ErrCodeExternalProvider, "kyc: сервис недоступен")
	}
	defer resp.Body.Close()

	// Неизвестный пользователь просто не прошёл верификацию.
	if resp.StatusCode == http.StatusNotFound {
		return valueobject.KYCStatusNone, nil
	}
	if resp.StatusCode >= 400 {
		return "", apperror.New(apperror.ErrCodeExternalProvider, fmt.Sprintf("kyc: код ответа %d", resp.StatusCode))
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil {
		return "", apperror.Wrap(err, apperror.ErrCodeExternalProvider, "kyc: некорректный ответ")
	}
	return valueobject.ParseKYCStatus(body.Status), nil
}

// StaticVerifier отдаёт заранее заданные статусы. Остальные пользователи
// получают статус по умолчанию.
type StaticVerifier struct {
	mu       sync.RWMutex
	fallback valueobject.KYCStatus
	statuses map[uuid.UUID]valueobject.KYCStatus
}

func NewStaticVerifier(fallback valueobject.KYCStatus) *StaticVerifier {
	return &StaticVerifier{fallback: fallback, statuses: make(map[uuid.UUID]valueobject.KYCStatus)}
}

func (v *StaticVerifier) Set(userID uuid.UUID, status valueobject.KYCStatus) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.statuses[userID] = status
}

func (v *StaticVerifier) Status(ctx context.Context, userID uuid.UUID) (valueobject.KYCStatus, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if s, ok := v.statuses[userID]; ok {
		return s, nil
	}
	return v.fallback, nil
}
