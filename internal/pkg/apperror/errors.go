package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden        ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest       ErrorCode = "BAD_REQUEST"
	ErrCodeConflict         ErrorCode = "CONFLICT"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation       ErrorCode = "VALIDATION_ERROR"
	ErrCodeDatabaseError    ErrorCode = "DATABASE_ERROR"
	ErrCodeInvalidState     ErrorCode = "INVALID_STATE"
	ErrCodeDealLocked       ErrorCode = "DEAL_LOCKED"
	ErrCodeExternalProvider ErrorCode = "EXTERNAL_PROVIDER_ERROR"
	ErrCodeSignatureInvalid ErrorCode = "SIGNATURE_INVALID"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized, ErrCodeSignatureInvalid:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict, ErrCodeInvalidState:
		return http.StatusConflict
	case ErrCodeDealLocked:
		return http.StatusLocked
	case ErrCodeExternalProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки или пустую строку для чужих ошибок.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

func IsForbidden(err error) bool {
	return CodeOf(err) == ErrCodeForbidden
}

func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeValidation
}

func IsInvalidState(err error) bool {
	return CodeOf(err) == ErrCodeInvalidState
}

func IsDealLocked(err error) bool {
	return CodeOf(err) == ErrCodeDealLocked
}

func IsExternalProvider(err error) bool {
	return CodeOf(err) == ErrCodeExternalProvider
}

func IsSignatureInvalid(err error) bool {
	return CodeOf(err) == ErrCodeSignatureInvalid
}

var (
	ErrProposalNotFound      = New(ErrCodeNotFound, "предложение не найдено")
	ErrDealNotFound          = New(ErrCodeNotFound, "сделка не найдена")
	ErrDisputeNotFound       = New(ErrCodeNotFound, "спор не найден")
	ErrTransactionNotFound   = New(ErrCodeNotFound, "транзакция не найдена")
	ErrUnauthorized          = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden             = New(ErrCodeForbidden, "недостаточно прав")
	ErrInvalidMilestoneState = New(ErrCodeInvalidState, "этап находится в неподходящем статусе")
	ErrDealLocked            = New(ErrCodeDealLocked, "сделка заблокирована открытым спором")
	ErrSignatureInvalid      = New(ErrCodeSignatureInvalid, "подпись вебхука недействительна")
	ErrKYCNotApproved        = New(ErrCodeForbidden, "верификация личности не пройдена")
)
