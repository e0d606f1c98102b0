package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"pharmaledger/backend/internal/domain"
	"pharmaledger/backend/internal/events"
	"pharmaledger/backend/internal/store"
)

// totalsFromLedgers rebuilds a party's running totals from every ledger entry
// it has ever received.
func totalsFromLedgers(partyType string, ledgers []domain.Ledger) domain.PartyTotals {
	totals := domain.PartyTotals{
		TotalSales:     decimal.Zero,
		TotalPurchases: decimal.Zero,
		TotalReceipts:  decimal.Zero,
		TotalPayments:  decimal.Zero,
	}
	for _, ledger := range ledgers {
		for _, entry := range ledger.Entries {
			switch partyType {
			case domain.PartyTypeCustomer:
				if entry.ReferenceType == domain.ReferenceSale {
					totals.TotalSales = totals.TotalSales.Add(entry.Debit)
				}
				totals.TotalReceipts = totals.TotalReceipts.Add(entry.Credit)
			case domain.PartyTypeVendor:
				if entry.ReferenceType == domain.ReferencePurchase {
					totals.TotalPurchases = totals.TotalPurchases.Add(entry.Credit)
				}
				totals.TotalPayments = totals.TotalPayments.Add(entry.Debit)
			}
		}
	}
	if partyType == domain.PartyTypeVendor {
		totals.OutstandingBalance = totals.TotalPurchases.Sub(totals.TotalPayments)
	} else {
		totals.OutstandingBalance = totals.TotalSales.Sub(totals.TotalReceipts)
	}
	return totals
}

// ReconcileParty recomputes a party's totals from its ledgers and overwrites
// the stored totals when they drifted.
func (s *Service) ReconcileParty(ctx context.Context, partyID string) (domain.PartyReconciliation, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.PartyReconciliation{}, err
	}
	party, err := s.repo.GetParty(ctx, partyID)
	if err != nil {
		return domain.PartyReconciliation{}, err
	}

	var result domain.PartyReconciliation
	err = s.post(ctx, "party_reconcile", []string{ledgerLockKey(party.Type, partyID)}, func(ctx context.Context, tx store.Tx) error {
		current, err := tx.GetParty(ctx, partyID)
		if err != nil {
			return err
		}
		ledgers, err := tx.ListLedgers(ctx, current.Type, current.ID)
		if err != nil {
			return err
		}

		before := current.Totals()
		after := totalsFromLedgers(current.Type, ledgers)
		result = domain.PartyReconciliation{
			Party:  current.ID,
			Before: before,
			After:  after,
			Drift:  !before.Equal(after),
		}
		if !result.Drift {
			return nil
		}
		return tx.SetPartyTotals(ctx, current.ID, after)
	})
	if err != nil {
		return domain.PartyReconciliation{}, err
	}

	if result.Drift {
		s.log.WithFields(logrus.Fields{
			"party":       partyID,
			"outstanding": result.Before.OutstandingBalance.StringFixed(2),
			"rebuilt":     result.After.OutstandingBalance.StringFixed(2),
		}).Warn("party totals drift corrected")
		s.afterCommit(ctx, events.Event{Type: events.PartyReconciled, Key: partyID, Payload: result}, false)
	}
	s.logAudit(ctx, "party_reconcile", "party", partyID, fmt.Sprintf("drift=%t,outstanding=%s", result.Drift, result.After.OutstandingBalance.StringFixed(2)))
	return result, nil
}
