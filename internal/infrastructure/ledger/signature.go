package ledger

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
)

// SignatureHeader заголовок, в котором провайдер присылает подпись тела.
const SignatureHeader = "X-Ledger-Signature"

// SignatureVerifier сверяет HMAC-SHA256 сырого тела вебхука.
type SignatureVerifier struct {
	secret []byte
}

func NewSignatureVerifier(secret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(secret)}
}

func (v *SignatureVerifier) Verify(body []byte, signature string) error {
	if len(v.secret) == 0 || signature == "" {
		return apperror.ErrSignatureInvalid
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return apperror.ErrSignatureInvalid
	}
	if !hmac.Equal(got, Sign(v.secret, body)) {
		return apperror.ErrSignatureInvalid
	}
	return nil
}

// Sign считает подпись тела. Используется и в тестах для сборки валидных вебхуков.
func Sign(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}

func SignHex(secret string, body []byte) string {
	return hex.EncodeToString(Sign([]byte(secret), body))
}
