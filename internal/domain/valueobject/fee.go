package valueobject

import (
	"github.com/shopspring/decimal"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/pkg/apperror"
)

// VATRate добавляется поверх базовой комиссии.
var VATRate = decimal.RequireFromString("0.075")

type feeTier struct {
	upTo decimal.Decimal
	rate decimal.Decimal
}

// Границы включительные: сумма ровно на границе попадает в нижний ярус.
var feeTiers = []feeTier{
	{upTo: decimal.NewFromInt(1_000_000), rate: decimal.RequireFromString("0.10")},
	{upTo: decimal.NewFromInt(5_000_000), rate: decimal.RequireFromString("0.05")},
	{upTo: decimal.NewFromInt(50_000_000), rate: decimal.RequireFromString("0.04")},
	{upTo: decimal.NewFromInt(200_000_000), rate: decimal.RequireFromString("0.03")},
	{upTo: decimal.NewFromInt(1_000_000_000), rate: decimal.RequireFromString("0.02")},
}

var feeFloorRate = decimal.RequireFromString("0.01")

// FeeFor возвращает базовую ставку комиссии для суммы сделки.
func FeeFor(total decimal.Decimal) decimal.Decimal {
	for _, tier := range feeTiers {
		if total.LessThanOrEqual(tier.upTo) {
			return tier.rate
		}
	}
	return feeFloorRate
}

// FeeSplit доля комиссии, которую платит покупатель, в процентах.
type FeeSplit int

const (
	FeeSplitSellerPays FeeSplit = 0
	FeeSplitShared     FeeSplit = 50
	FeeSplitBuyerPays  FeeSplit = 100
)

func NewFeeSplit(percent int) (FeeSplit, error) {
	s := FeeSplit(percent)
	switch s {
	case FeeSplitSellerPays, FeeSplitShared, FeeSplitBuyerPays:
		return s, nil
	}
	return 0, apperror.New(apperror.ErrCodeValidation, "распределение комиссии должно быть 0, 50 или 100")
}

type EscrowFee struct {
	Total       decimal.Decimal
	BuyerShare  decimal.Decimal
	SellerShare decimal.Decimal
}

// EscrowFeeFor считает полную комиссию с НДС и делит её между сторонами.
// Доля продавца берётся как остаток, чтобы сумма долей всегда совпадала с Total.
func EscrowFeeFor(total decimal.Decimal, split FeeSplit) EscrowFee {
	fee := total.Mul(FeeFor(total)).Mul(decimal.NewFromInt(1).Add(VATRate)).Round(2)
	buyer := fee.Mul(decimal.NewFromInt(int64(split))).Div(decimal.NewFromInt(100)).Round(2)
	return EscrowFee{
		Total:       fee,
		BuyerShare:  buyer,
		SellerShare: fee.Sub(buyer),
	}
}

// FundingAmount сумма, которую покупатель вносит при финансировании сделки.
func FundingAmount(total decimal.Decimal, split FeeSplit) decimal.Decimal {
	return total.Add(EscrowFeeFor(total, split).BuyerShare)
}

// MilestoneSellerFee пропорциональная часть комиссии продавца для этапа.
// Предполагает, что суммы этапов не меняются после создания сделки.
func MilestoneSellerFee(milestoneAmount, total, sellerShare decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return milestoneAmount.Div(total).Mul(sellerShare).Round(2)
}

// ReleaseAmount сумма выплаты продавцу за этап.
func ReleaseAmount(milestoneAmount, total, sellerShare decimal.Decimal) decimal.Decimal {
	return milestoneAmount.Sub(MilestoneSellerFee(milestoneAmount, total, sellerShare))
}
