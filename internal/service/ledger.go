package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"pharmaledger/backend/internal/domain"
	"pharmaledger/backend/internal/fiscal"
	"pharmaledger/backend/internal/store"
	"pharmaledger/backend/internal/xid"
)

// appendLedgerEntry posts one financial side effect to the party's ledger for
// the financial year of in.Date. Call it once per effect: each entry builds on
// the balance left by the previous one.
func (s *Service) appendLedgerEntry(ctx context.Context, tx store.Tx, in domain.LedgerEntryInput) (*domain.Ledger, error) {
	fy := fiscal.FinancialYear(in.Date)
	if err := requireOpenYear(ctx, tx, in.LedgerType, in.Party, in.Date, "date"); err != nil {
		return nil, err
	}

	ledger, err := tx.LockLedger(ctx, in.LedgerType, in.Party, fy)
	if errors.Is(err, store.ErrNotFound) {
		ledger, err = s.openLedger(ctx, tx, in, fy)
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	debit := in.Debit.Round(2)
	credit := in.Credit.Round(2)
	balance := domain.NextBalance(in.LedgerType, ledger.LastBalance(), debit, credit)

	ledger.EntryCount++
	ledger.TotalDebit = ledger.TotalDebit.Add(debit)
	ledger.TotalCredit = ledger.TotalCredit.Add(credit)
	ledger.ClosingBalance = balance
	ledger.UpdatedAt = now
	if in.PartyName != "" {
		ledger.PartyName = in.PartyName
	}

	entry := domain.LedgerEntry{
		LedgerID:        ledger.ID,
		Position:        ledger.EntryCount,
		Date:            in.Date,
		Particulars:     in.Particulars,
		ReferenceType:   in.ReferenceType,
		ReferenceID:     in.ReferenceID,
		ReferenceNumber: in.ReferenceNumber,
		Debit:           debit,
		Credit:          credit,
		Balance:         balance,
		CreatedAt:       now,
	}
	if err := tx.AppendLedgerEntry(ctx, *ledger, entry); err != nil {
		return nil, err
	}
	ledger.Entries = append(ledger.Entries, entry)

	s.log.WithFields(logrus.Fields{
		"party":     in.Party,
		"fy":        fy,
		"reference": in.ReferenceNumber,
		"balance":   balance.StringFixed(2),
	}).Debug("ledger entry appended")
	return ledger, nil
}

// requireOpenYear rejects a posting dated into a financial year the party
// has already moved past. Ledger entries are append-only, so a later year's
// opening balance cannot absorb it.
func requireOpenYear(ctx context.Context, tx store.Tx, ledgerType string, partyID string, date time.Time, field string) error {
	fy := fiscal.FinancialYear(date)
	latest, err := tx.LatestLedger(ctx, ledgerType, partyID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return err
	}
	if latest.FinancialYear > fy {
		return store.Invalid(field, fmt.Sprintf("financial year %s is closed for this party, ledger %s is already open", fy, latest.FinancialYear))
	}
	return nil
}

// openLedger creates the party's ledger for fy, carrying forward the closing
// balance of its latest earlier ledger.
func (s *Service) openLedger(ctx context.Context, tx store.Tx, in domain.LedgerEntryInput, fy string) (*domain.Ledger, error) {
	opening := decimal.Zero
	previous, err := tx.LatestLedgerBefore(ctx, in.LedgerType, in.Party, fy)
	switch {
	case err == nil:
		opening = previous.ClosingBalance
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	now := s.now()
	ledger := domain.Ledger{
		ID:             xid.New("ledger"),
		LedgerType:     in.LedgerType,
		Party:          in.Party,
		PartyName:      in.PartyName,
		FinancialYear:  fy,
		OpeningBalance: opening,
		TotalDebit:     decimal.Zero,
		TotalCredit:    decimal.Zero,
		ClosingBalance: opening,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := tx.CreateLedger(ctx, ledger); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: ledger %s/%s/%s created concurrently", store.ErrConcurrencyConflict, in.LedgerType, in.Party, fy)
		}
		return nil, err
	}
	return tx.LockLedger(ctx, in.LedgerType, in.Party, fy)
}

// GetLedger returns a party ledger after checking its running balances.
func (s *Service) GetLedger(ctx context.Context, partyID string, fy string) (domain.Ledger, error) {
	party, err := s.repo.GetParty(ctx, partyID)
	if err != nil {
		return domain.Ledger{}, err
	}
	if fy == "" {
		fy = fiscal.FinancialYear(s.now())
	}
	if _, _, err := fiscal.Bounds(fy); err != nil {
		return domain.Ledger{}, store.Invalid("fy", "must look like 2025-26")
	}

	ledger, err := s.repo.GetLedger(ctx, party.Type, partyID, fy)
	if errors.Is(err, store.ErrNotFound) {
		// nothing posted yet this year; show what the ledger would open at
		opening := decimal.Zero
		previous, prevErr := s.repo.LatestLedgerBefore(ctx, party.Type, partyID, fy)
		if prevErr == nil {
			opening = previous.ClosingBalance
		} else if !errors.Is(prevErr, store.ErrNotFound) {
			return domain.Ledger{}, prevErr
		}
		return domain.Ledger{
			LedgerType:     party.Type,
			Party:          party.ID,
			PartyName:      party.Name,
			FinancialYear:  fy,
			OpeningBalance: opening,
			TotalDebit:     decimal.Zero,
			TotalCredit:    decimal.Zero,
			ClosingBalance: opening,
			Entries:        []domain.LedgerEntry{},
		}, nil
	}
	if err != nil {
		return domain.Ledger{}, err
	}
	if err := ledger.Verify(); err != nil {
		s.log.WithError(err).WithField("party", partyID).Error("ledger failed verification")
	}
	return *ledger, nil
}
