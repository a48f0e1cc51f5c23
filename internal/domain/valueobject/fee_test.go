package valueobject

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestFeeFor_TierEdges(t *testing.T) {
	cases := []struct {
		total string
		rate  string
	}{
		{"1", "0.10"},
		{"1000000", "0.10"},
		{"1000001", "0.05"},
		{"5000000", "0.05"},
		{"5000001", "0.04"},
		{"50000000", "0.04"},
		{"50000001", "0.03"},
		{"200000000", "0.03"},
		{"200000001", "0.02"},
		{"1000000000", "0.02"},
		{"1000000001", "0.01"},
	}

	for _, tc := range cases {
		got := FeeFor(d(tc.total))
		assert.True(t, d(tc.rate).Equal(got), "total %s: want %s, got %s", tc.total, tc.rate, got)
	}
}

func TestFeeFor_Deterministic(t *testing.T) {
	x := d("777777.77")
	assert.True(t, FeeFor(x).Equal(FeeFor(x)))
	assert.Equal(t, EscrowFeeFor(x, FeeSplitShared), EscrowFeeFor(x, FeeSplitShared))
}

func TestFundingAmount_RoundTrip(t *testing.T) {
	total := d("500000")
	want := total.Add(total.Mul(FeeFor(total)).Mul(d("1.075")).Mul(d("0.5")))

	got := FundingAmount(total, FeeSplitShared)
	assert.True(t, want.Equal(got), "want %s, got %s", want, got)
	assert.True(t, d("526875").Equal(got))
}

func TestEscrowFeeFor_SplitSharesSumToTotal(t *testing.T) {
	for _, split := range []FeeSplit{FeeSplitSellerPays, FeeSplitShared, FeeSplitBuyerPays} {
		fee := EscrowFeeFor(d("1234567.89"), split)
		assert.True(t, fee.Total.Equal(fee.BuyerShare.Add(fee.SellerShare)), "split %d", split)
	}

	sellerPays := EscrowFeeFor(d("100000"), FeeSplitSellerPays)
	assert.True(t, sellerPays.BuyerShare.IsZero())
	assert.True(t, d("10750").Equal(sellerPays.SellerShare))
}

func TestNewFeeSplit(t *testing.T) {
	_, err := NewFeeSplit(30)
	require.Error(t, err)

	s, err := NewFeeSplit(100)
	require.NoError(t, err)
	assert.Equal(t, FeeSplitBuyerPays, s)
}

func TestReleaseAmount_ProportionalSellerFee(t *testing.T) {
	fee := EscrowFeeFor(d("500000"), FeeSplitShared)

	assert.True(t, d("10750").Equal(MilestoneSellerFee(d("200000"), d("500000"), fee.SellerShare)))
	assert.True(t, d("189250").Equal(ReleaseAmount(d("200000"), d("500000"), fee.SellerShare)))
	assert.True(t, MilestoneSellerFee(d("1"), decimal.Zero, fee.SellerShare).IsZero())
}
