package gst

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmaledger/backend/internal/domain"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "expected %s, got %s", want, got)
}

func TestComputeLineIntraStateSplitsEvenly(t *testing.T) {
	line := ComputeLine(LineInput{Quantity: 10, UnitPrice: dec("100"), GSTRate: 18})

	assertDec(t, "1000", line.TaxableAmount)
	assertDec(t, "90", line.CGSTAmount)
	assertDec(t, "90", line.SGSTAmount)
	assertDec(t, "0", line.IGSTAmount)
	assertDec(t, "1180", line.TotalAmount)
}

func TestComputeLineInterStateUsesIGST(t *testing.T) {
	line := ComputeLine(LineInput{Quantity: 10, UnitPrice: dec("100"), GSTRate: 18, Interstate: true})

	assertDec(t, "0", line.CGSTAmount)
	assertDec(t, "0", line.SGSTAmount)
	assertDec(t, "180", line.IGSTAmount)
	assertDec(t, "1180", line.TotalAmount)
}

func TestComputeLineAppliesDiscountBeforeTax(t *testing.T) {
	line := ComputeLine(LineInput{Quantity: 4, UnitPrice: dec("62.50"), DiscountPercent: dec("10"), GSTRate: 12})

	assertDec(t, "250", line.Base)
	assertDec(t, "25", line.DiscountAmount)
	assertDec(t, "225", line.TaxableAmount)
	assertDec(t, "13.5", line.CGSTAmount)
	assertDec(t, "13.5", line.SGSTAmount)
	assertDec(t, "252", line.TotalAmount)
}

func TestSummarizeRoundOffBounds(t *testing.T) {
	cases := []struct {
		price   string
		qty     int
		rate    int
		freight string
	}{
		{"33.33", 3, 5, "0"},
		{"10.49", 7, 12, "12.25"},
		{"99.99", 1, 28, "0.5"},
		{"0.01", 1, 0, "0"},
		{"249.75", 2, 18, "0"},
	}
	for _, tc := range cases {
		lines := []LineAmounts{
			ComputeLine(LineInput{Quantity: tc.qty, UnitPrice: dec(tc.price), GSTRate: tc.rate}),
			ComputeLine(LineInput{Quantity: 1, UnitPrice: dec("17.17"), GSTRate: 12, DiscountPercent: dec("2.5")}),
		}
		totals := Summarize(lines, dec(tc.freight), decimal.Zero)

		unrounded := totals.TaxableAmount.Add(totals.TotalGST).Add(totals.FreightCharges).Add(totals.OtherCharges)
		require.True(t, totals.GrandTotal.Sub(totals.RoundOff).Equal(unrounded), "grand - roundOff must equal unrounded")
		require.True(t, totals.RoundOff.GreaterThanOrEqual(dec("-0.5")) && totals.RoundOff.LessThanOrEqual(dec("0.5")), "roundOff %s out of bounds", totals.RoundOff)
		require.True(t, totals.GrandTotal.Equal(totals.GrandTotal.Round(0)))
		require.True(t, Unrounded(totals).Equal(unrounded))
	}
}

func TestSummarizeAccumulatesTotals(t *testing.T) {
	lines := []LineAmounts{
		ComputeLine(LineInput{Quantity: 10, UnitPrice: dec("100"), GSTRate: 18}),
		ComputeLine(LineInput{Quantity: 1, UnitPrice: dec("50"), GSTRate: 5}),
	}
	totals := Summarize(lines, dec("20"), dec("5"))

	assertDec(t, "1050", totals.TaxableAmount)
	assertDec(t, "91.25", totals.TotalCGST)
	assertDec(t, "91.25", totals.TotalSGST)
	assertDec(t, "182.5", totals.TotalGST)
	assertDec(t, "1258", totals.GrandTotal)
	assertDec(t, "0.5", totals.RoundOff)
}

func TestValidRate(t *testing.T) {
	for _, rate := range []int{0, 5, 12, 18, 28} {
		assert.True(t, ValidRate(rate))
	}
	for _, rate := range []int{-5, 3, 10, 40} {
		assert.False(t, ValidRate(rate))
	}
}

func TestSettle(t *testing.T) {
	assert.Equal(t, domain.PaymentStatusUnpaid, Settle(dec("100"), decimal.Zero).PaymentStatus)
	assert.Equal(t, domain.PaymentStatusPartial, Settle(dec("100"), dec("40")).PaymentStatus)
	paid := Settle(dec("100"), dec("100"))
	assert.Equal(t, domain.PaymentStatusPaid, paid.PaymentStatus)
	assertDec(t, "0", paid.BalanceAmount)
	assertDec(t, "60", Settle(dec("100"), dec("40")).BalanceAmount)
	assert.Equal(t, domain.PaymentStatusPaid, Settle(decimal.Zero, decimal.Zero).PaymentStatus)
}
