package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"pharmaledger/backend/internal/domain"
	"pharmaledger/backend/internal/events"
	"pharmaledger/backend/internal/gst"
	"pharmaledger/backend/internal/store"
	"pharmaledger/backend/internal/xid"
)

// paymentKind separates money received from customers and money paid to vendors.
type paymentKind struct {
	operation   string
	paymentType string
	partyType   string
	sequence    string
	prefix      string
	event       string
}

var (
	customerReceipt = paymentKind{
		operation:   "receipt_create",
		paymentType: domain.PaymentTypeReceipt,
		partyType:   domain.PartyTypeCustomer,
		sequence:    domain.SequenceReceipt,
		prefix:      domain.PrefixReceipt,
		event:       events.ReceiptRecorded,
	}
	vendorPayment = paymentKind{
		operation:   "payment_create",
		paymentType: domain.PaymentTypePayment,
		partyType:   domain.PartyTypeVendor,
		sequence:    domain.SequencePayment,
		prefix:      domain.PrefixPayment,
		event:       events.PaymentRecorded,
	}
)

// RecordReceipt books money received from a customer and credits their ledger.
func (s *Service) RecordReceipt(ctx context.Context, req domain.PaymentCreateRequest) (domain.Payment, error) {
	return s.recordPayment(ctx, customerReceipt, req)
}

// RecordPayment books money paid to a vendor and debits their ledger.
func (s *Service) RecordPayment(ctx context.Context, req domain.PaymentCreateRequest) (domain.Payment, error) {
	return s.recordPayment(ctx, vendorPayment, req)
}

func (s *Service) recordPayment(ctx context.Context, kind paymentKind, req domain.PaymentCreateRequest) (domain.Payment, error) {
	req.Mode = strings.ToLower(strings.TrimSpace(req.Mode))
	verr := s.check(req)
	checkMoney(verr, "amount", req.Amount)
	if !req.Amount.IsPositive() {
		verr.Add("amount", "must be greater than 0")
	}
	allocated := decimal.Zero
	seen := make(map[string]int, len(req.LinkedInvoices))
	for i, link := range req.LinkedInvoices {
		field := fmt.Sprintf("linkedInvoices[%d]", i)
		checkMoney(verr, field+".allocatedAmount", link.AllocatedAmount)
		if !link.AllocatedAmount.IsPositive() {
			verr.Add(field+".allocatedAmount", "must be greater than 0")
		}
		if first, dup := seen[link.Invoice]; dup {
			verr.Add(field+".invoice", fmt.Sprintf("repeats linkedInvoices[%d]", first))
		} else {
			seen[link.Invoice] = i
		}
		allocated = allocated.Add(link.AllocatedAmount)
	}
	if allocated.GreaterThan(req.Amount) {
		verr.Add("linkedInvoices", "allocations exceed the payment amount")
	}
	if err := verr.OrNil(); err != nil {
		return domain.Payment{}, err
	}

	date := s.now()
	if req.Date != nil {
		date = req.Date.UTC()
	}

	var payment domain.Payment
	err := s.post(ctx, kind.operation, []string{ledgerLockKey(kind.partyType, req.Party)}, func(ctx context.Context, tx store.Tx) error {
		party, err := loadParty(ctx, tx, req.Party, kind.partyType)
		if err != nil {
			return err
		}
		if err := requireOpenYear(ctx, tx, kind.partyType, party.ID, date, "date"); err != nil {
			return err
		}

		links, err := s.applyAllocations(ctx, tx, kind, party, req.LinkedInvoices)
		if err != nil {
			return err
		}

		number, err := nextNumber(ctx, tx, kind.sequence, kind.prefix, date)
		if err != nil {
			return err
		}

		payment = domain.Payment{
			ID:                  xid.New(kind.paymentType),
			PaymentNumber:       number.Formatted,
			PaymentType:         kind.paymentType,
			FinancialYear:       number.FinancialYear,
			Party:               party.ID,
			PartyName:           party.Name,
			Amount:              req.Amount,
			Mode:                req.Mode,
			Date:                date,
			Reference:           strings.TrimSpace(req.Reference),
			LinkedInvoices:      links,
			PreviousOutstanding: party.OutstandingBalance,
			Notes:               strings.TrimSpace(req.Notes),
			CreatedBy:           actorName(ctx),
			CreatedAt:           s.now(),
		}
		if err := tx.CreatePayment(ctx, payment); err != nil {
			return err
		}

		delta := domain.PartyTotalsDelta{Outstanding: req.Amount.Neg()}
		entry := domain.LedgerEntryInput{
			LedgerType:      kind.partyType,
			Party:           party.ID,
			PartyName:       party.Name,
			Date:            date,
			ReferenceType:   kind.paymentType,
			ReferenceID:     payment.ID,
			ReferenceNumber: payment.PaymentNumber,
		}
		if kind.partyType == domain.PartyTypeCustomer {
			delta.Receipts = req.Amount
			entry.Credit = req.Amount
			entry.Particulars = fmt.Sprintf("Receipt %s (%s)", payment.PaymentNumber, payment.Mode)
		} else {
			delta.Payments = req.Amount
			entry.Debit = req.Amount
			entry.Particulars = fmt.Sprintf("Payment %s (%s)", payment.PaymentNumber, payment.Mode)
		}
		if payment.Reference != "" {
			entry.Particulars += " ref " + payment.Reference
		}
		if err := tx.ApplyPartyTotals(ctx, party.ID, delta); err != nil {
			return err
		}
		_, err = s.appendLedgerEntry(ctx, tx, entry)
		return err
	})
	if err != nil {
		return domain.Payment{}, err
	}

	s.log.WithFields(logrus.Fields{
		"payment": payment.PaymentNumber,
		"party":   payment.Party,
		"amount":  payment.Amount.StringFixed(2),
		"linked":  len(payment.LinkedInvoices),
	}).Info("payment recorded")
	s.afterCommit(ctx, events.Event{Type: kind.event, Key: payment.Party, Payload: payment}, false)
	s.logAudit(ctx, kind.operation, kind.paymentType, payment.ID, fmt.Sprintf("number=%s,party=%s,amount=%s,previous=%s", payment.PaymentNumber, payment.Party, payment.Amount.StringFixed(2), payment.PreviousOutstanding.StringFixed(2)))
	return payment, nil
}

// applyAllocations raises the paid amount of every linked invoice. An invoice
// paid past its grand total is accepted and logged.
func (s *Service) applyAllocations(ctx context.Context, tx store.Tx, kind paymentKind, party *domain.Party, requests []domain.PaymentAllocationRequest) ([]domain.PaymentAllocation, error) {
	links := make([]domain.PaymentAllocation, 0, len(requests))
	for i, link := range requests {
		field := fmt.Sprintf("linkedInvoices[%d].invoice", i)

		var owner, number string
		var grandTotal, paid decimal.Decimal
		if kind.partyType == domain.PartyTypeCustomer {
			sale, err := tx.LockSale(ctx, link.Invoice)
			if err != nil {
				return nil, fmt.Errorf("sale %s: %w", link.Invoice, err)
			}
			owner, number, grandTotal, paid = sale.Customer, sale.InvoiceNumber, sale.GrandTotal, sale.PaidAmount
		} else {
			purchase, err := tx.LockPurchase(ctx, link.Invoice)
			if err != nil {
				return nil, fmt.Errorf("purchase %s: %w", link.Invoice, err)
			}
			owner, number, grandTotal, paid = purchase.Vendor, purchase.PurchaseNumber, purchase.GrandTotal, purchase.PaidAmount
		}
		if owner != party.ID {
			return nil, store.Invalid(field, fmt.Sprintf("%s belongs to another party", number))
		}

		paid = paid.Add(link.AllocatedAmount)
		if paid.GreaterThan(grandTotal) {
			s.log.WithFields(logrus.Fields{
				"invoice":    number,
				"party":      party.ID,
				"paid":       paid.StringFixed(2),
				"grandTotal": grandTotal.StringFixed(2),
			}).Warn("invoice allocation exceeds grand total")
		}
		settled := gst.Settle(grandTotal, paid)

		var err error
		if kind.partyType == domain.PartyTypeCustomer {
			err = tx.UpdateSalePayment(ctx, link.Invoice, settled)
		} else {
			err = tx.UpdatePurchasePayment(ctx, link.Invoice, settled)
		}
		if err != nil {
			return nil, err
		}

		links = append(links, domain.PaymentAllocation{
			Invoice:         link.Invoice,
			InvoiceNumber:   number,
			AllocatedAmount: link.AllocatedAmount,
		})
	}
	return links, nil
}

func (s *Service) GetPayment(ctx context.Context, id string) (domain.Payment, error) {
	payment, err := s.repo.GetPayment(ctx, id)
	if err != nil {
		return domain.Payment{}, err
	}
	return *payment, nil
}

func (s *Service) ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error) {
	switch filter.PaymentType {
	case "", domain.PaymentTypeReceipt, domain.PaymentTypePayment:
	default:
		return nil, store.Invalid("type", "must be receipt or payment")
	}
	if filter.Limit < 1 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.ListPayments(ctx, filter)
}
