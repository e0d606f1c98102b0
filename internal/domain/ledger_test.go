package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestNextBalanceSignConvention(t *testing.T) {
	require.True(t, NextBalance(PartyTypeCustomer, d("100"), d("50"), d("0")).Equal(d("150")))
	require.True(t, NextBalance(PartyTypeCustomer, d("100"), d("0"), d("30")).Equal(d("70")))
	require.True(t, NextBalance(PartyTypeVendor, d("100"), d("0"), d("50")).Equal(d("150")))
	require.True(t, NextBalance(PartyTypeVendor, d("100"), d("30"), d("0")).Equal(d("70")))
}

func TestLedgerVerify(t *testing.T) {
	ledger := Ledger{
		ID:             "ledger-1",
		LedgerType:     PartyTypeCustomer,
		OpeningBalance: d("10"),
		Entries: []LedgerEntry{
			{Debit: d("1180"), Credit: decimal.Zero, Balance: d("1190")},
			{Debit: decimal.Zero, Credit: d("500"), Balance: d("690")},
		},
		TotalDebit:     d("1180"),
		TotalCredit:    d("500"),
		ClosingBalance: d("690"),
		EntryCount:     2,
	}
	require.NoError(t, ledger.Verify())
	require.True(t, ledger.LastBalance().Equal(d("690")))

	ledger.Entries[1].Balance = d("700")
	require.Error(t, ledger.Verify())
}

func TestLedgerLastBalanceUsesOpeningWhenEmpty(t *testing.T) {
	ledger := Ledger{OpeningBalance: d("42"), ClosingBalance: d("42")}
	require.True(t, ledger.LastBalance().Equal(d("42")))
}
