package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// NextBalance applies one entry to a running balance. A customer ledger tracks a
// receivable (debit raises it), a vendor ledger tracks a payable (credit raises it).
func NextBalance(ledgerType string, previous, debit, credit decimal.Decimal) decimal.Decimal {
	if ledgerType == PartyTypeVendor {
		return previous.Add(credit).Sub(debit)
	}
	return previous.Add(debit).Sub(credit)
}

// LastBalance is the balance the next appended entry builds on.
func (l Ledger) LastBalance() decimal.Decimal {
	if l.EntryCount == 0 {
		return l.OpeningBalance
	}
	return l.ClosingBalance
}

// Verify checks that entry balances form a prefix sum seeded by the opening
// balance and that the header totals agree with the entries.
func (l Ledger) Verify() error {
	balance := l.OpeningBalance
	debit := decimal.Zero
	credit := decimal.Zero
	for i, entry := range l.Entries {
		balance = NextBalance(l.LedgerType, balance, entry.Debit, entry.Credit)
		if !entry.Balance.Equal(balance) {
			return fmt.Errorf("ledger %s entry %d: balance %s, expected %s", l.ID, i, entry.Balance, balance)
		}
		debit = debit.Add(entry.Debit)
		credit = credit.Add(entry.Credit)
	}
	if !debit.Equal(l.TotalDebit) || !credit.Equal(l.TotalCredit) {
		return fmt.Errorf("ledger %s: totals debit=%s credit=%s do not match entries debit=%s credit=%s", l.ID, l.TotalDebit, l.TotalCredit, debit, credit)
	}
	if !balance.Equal(l.ClosingBalance) {
		return fmt.Errorf("ledger %s: closing balance %s, expected %s", l.ID, l.ClosingBalance, balance)
	}
	return nil
}
