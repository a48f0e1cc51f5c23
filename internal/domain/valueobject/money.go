package valueobject

import (
	"github.com/shopspring/decimal"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
)

// CurrencyNGN единственная валюта, в которой провайдер держит эскроу.
const CurrencyNGN = "NGN"

// ParseAmount разбирает строковую сумму из запроса.
func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.ErrCodeValidation, "некорректная сумма")
	}
	if !amount.IsPositive() {
		return decimal.Zero, apperror.New(apperror.ErrCodeValidation, "сумма должна быть положительной")
	}
	return amount, nil
}
