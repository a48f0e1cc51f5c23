package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
)

func TestHTTPVerifier_Status(t *testing.T) {
	approved := uuid.New()
	unknown := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer kyc-key", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/users/" + approved.String() + "/kyc":
			_, _ = w.Write([]byte(`{"status":"APPROVED"}`))
		case "/users/" + unknown.String() + "/kyc":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	v := NewHTTPVerifier(srv.URL+"/", "kyc-key", time.Second)
	ctx := context.Background()

	status, err := v.Status(ctx, approved)
	require.NoError(t, err)
	assert.Equal(t, valueobject.KYCStatusApproved, status)

	status, err = v.Status(ctx, unknown)
	require.NoError(t, err)
	assert.Equal(t, valueobject.KYCStatusNone, status)

	_, err = v.Status(ctx, uuid.New())
	assert.True(t, apperror.IsExternalProvider(err))
}

func TestStaticVerifier(t *testing.T) {
	v := NewStaticVerifier(valueobject.KYCStatusApproved)
	blocked := uuid.New()
	v.Set(blocked, valueobject.KYCStatusRejected)

	s, _ := v.Status(context.Background(), uuid.New())
	assert.Equal(t, valueobject.KYCStatusApproved, s)
	s, _ = v.Status(context.Background(), blocked)
	assert.Equal(t, valueobject.KYCStatusRejected, s)
}
