package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"pharmaledger/backend/internal/domain"
	"pharmaledger/backend/internal/events"
	"pharmaledger/backend/internal/fiscal"
	"pharmaledger/backend/internal/gst"
	"pharmaledger/backend/internal/inventory"
	"pharmaledger/backend/internal/store"
	"pharmaledger/backend/internal/xid"
)

var hundred = decimal.NewFromInt(100)

// saleLine is one resolved pick from one batch. A requested line without a
// batch may resolve into several of these.
type saleLine struct {
	medicine        *domain.Medicine
	batch           *domain.Batch
	quantity        int
	unitPrice       decimal.Decimal
	discountPercent decimal.Decimal
}

// lineResolver loads each medicine and batch once per posting and tracks how
// many units of every batch the posting has claimed so far.
type lineResolver struct {
	tx        store.Tx
	now       time.Time
	medicines map[string]*domain.Medicine
	batches   map[string]*domain.Batch
	listed    map[string][]string
	claimed   map[string]int
	order     []string
}

func newLineResolver(tx store.Tx, now time.Time) *lineResolver {
	return &lineResolver{
		tx:        tx,
		now:       now,
		medicines: map[string]*domain.Medicine{},
		batches:   map[string]*domain.Batch{},
		listed:    map[string][]string{},
		claimed:   map[string]int{},
	}
}

func (r *lineResolver) medicine(ctx context.Context, id string) (*domain.Medicine, error) {
	if m, ok := r.medicines[id]; ok {
		return m, nil
	}
	m, err := r.tx.GetMedicine(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("medicine %s: %w", id, err)
	}
	r.medicines[id] = m
	return m, nil
}

func (r *lineResolver) batch(ctx context.Context, id string) (*domain.Batch, error) {
	if b, ok := r.batches[id]; ok {
		return b, nil
	}
	b, err := r.tx.GetBatch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("batch %s: %w", id, err)
	}
	r.batches[id] = b
	return b, nil
}

// available lists the medicine's batches with quantities net of what this
// posting already claimed.
func (r *lineResolver) available(ctx context.Context, medicineID string) ([]domain.Batch, error) {
	ids, ok := r.listed[medicineID]
	if !ok {
		batches, err := r.tx.ListBatchesForMedicine(ctx, medicineID)
		if err != nil {
			return nil, err
		}
		ids = make([]string, 0, len(batches))
		for i := range batches {
			if _, seen := r.batches[batches[i].ID]; !seen {
				b := batches[i]
				r.batches[b.ID] = &b
			}
			ids = append(ids, batches[i].ID)
		}
		r.listed[medicineID] = ids
	}

	view := make([]domain.Batch, 0, len(ids))
	for _, id := range ids {
		b := *r.batches[id]
		b.Quantity -= r.claimed[id]
		view = append(view, b)
	}
	return view, nil
}

func (r *lineResolver) claim(batchID string, qty int) {
	if _, ok := r.claimed[batchID]; !ok {
		r.order = append(r.order, batchID)
	}
	r.claimed[batchID] += qty
}

// checkClaims fails on the first batch the posting wants more of than it holds.
func (r *lineResolver) checkClaims() error {
	for _, id := range r.order {
		b := r.batches[id]
		if r.claimed[id] > b.Quantity {
			return &store.InsufficientStockError{
				BatchID:     b.ID,
				BatchNumber: b.BatchNumber,
				Requested:   r.claimed[id],
				Available:   b.Quantity,
			}
		}
	}
	return nil
}

func checkDiscount(verr *store.ValidationError, field string, pct decimal.Decimal) {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		verr.Add(field, "must be between 0 and 100")
	}
}

// resolveSaleLines turns requested lines into batch picks and checks every
// line before the caller mutates anything.
func (s *Service) resolveSaleLines(ctx context.Context, tx store.Tx, items []domain.SaleLineRequest) ([]saleLine, error) {
	r := newLineResolver(tx, s.now())
	verr := store.NewValidationError()
	lines := make([]saleLine, 0, len(items))

	for i, item := range items {
		field := fmt.Sprintf("items[%d]", i)
		start := len(lines)
		medicine, err := r.medicine(ctx, item.Medicine)
		if err != nil {
			return nil, err
		}
		if !medicine.Active {
			verr.Add(field+".medicine", "is inactive")
			continue
		}

		if item.Batch != "" {
			batch, err := r.batch(ctx, item.Batch)
			if err != nil {
				return nil, err
			}
			if batch.Medicine != medicine.ID {
				verr.Add(field+".batch", "belongs to another medicine")
				continue
			}
			if batch.ExpiredAt(r.now) {
				verr.Add(field+".batch", "expired on "+batch.ExpiryDate.Format("2006-01-02"))
				continue
			}
			r.claim(batch.ID, item.Quantity)
			lines = append(lines, saleLine{medicine: medicine, batch: batch, quantity: item.Quantity})
		} else {
			view, err := r.available(ctx, medicine.ID)
			if err != nil {
				return nil, err
			}
			plan := inventory.Allocate(medicine.ID, view, item.Quantity, r.now)
			if plan.Shortfall > 0 {
				return nil, &store.InsufficientStockError{
					Medicine:  medicine.ID,
					Requested: item.Quantity,
					Available: plan.TotalAllocated,
				}
			}
			for _, pick := range plan.Allocations {
				r.claim(pick.Batch, pick.AllocatedQty)
				lines = append(lines, saleLine{medicine: medicine, batch: r.batches[pick.Batch], quantity: pick.AllocatedQty})
			}
		}

		for j := start; j < len(lines); j++ {
			price := lines[j].batch.SellingPrice
			if item.UnitPrice != nil {
				price = *item.UnitPrice
			} else if price.IsZero() {
				price = medicine.MRP
			}
			if !price.IsPositive() {
				verr.Add(field+".unitPrice", "is required when the batch has no selling price")
			}
			lines[j].unitPrice = price
			lines[j].discountPercent = item.DiscountPercent
		}
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	if err := r.checkClaims(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *Service) resolveGSTType(requested string, partyState string) string {
	if requested != "" {
		return requested
	}
	if partyState != "" && partyState != s.companyState {
		return domain.GSTTypeInter
	}
	return domain.GSTTypeIntra
}

func dueDate(requested *time.Time, invoiceDate time.Time, terms int) *time.Time {
	if requested != nil {
		due := requested.UTC()
		return &due
	}
	if terms <= 0 {
		return nil
	}
	due := invoiceDate.AddDate(0, 0, terms)
	return &due
}

// CreateSale posts a sale as one unit of work: stock deduction, the invoice,
// customer totals and the ledger entries either all land or none do.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	req.PaymentMode = strings.ToLower(strings.TrimSpace(req.PaymentMode))
	verr := s.check(req)
	checkMoney(verr, "freightCharges", req.FreightCharges)
	checkMoney(verr, "otherCharges", req.OtherCharges)
	checkMoney(verr, "paidAmount", req.PaidAmount)
	for i, item := range req.Items {
		if item.UnitPrice != nil {
			checkMoney(verr, fmt.Sprintf("items[%d].unitPrice", i), *item.UnitPrice)
		}
		checkDiscount(verr, fmt.Sprintf("items[%d].discountPercent", i), item.DiscountPercent)
	}
	if err := verr.OrNil(); err != nil {
		return domain.Sale{}, err
	}

	invoiceDate := s.now()
	if req.InvoiceDate != nil {
		invoiceDate = req.InvoiceDate.UTC()
	}
	paymentMode := req.PaymentMode
	if paymentMode == "" && req.PaidAmount.IsPositive() {
		paymentMode = "cash"
	}

	var sale domain.Sale
	err := s.post(ctx, "sale_create", []string{ledgerLockKey(domain.PartyTypeCustomer, req.Customer)}, func(ctx context.Context, tx store.Tx) error {
		customer, err := loadParty(ctx, tx, req.Customer, domain.PartyTypeCustomer)
		if err != nil {
			return err
		}
		if err := requireOpenYear(ctx, tx, domain.PartyTypeCustomer, customer.ID, invoiceDate, "invoiceDate"); err != nil {
			return err
		}
		gstType := s.resolveGSTType(req.GSTType, customer.StateCode)

		lines, err := s.resolveSaleLines(ctx, tx, req.Items)
		if err != nil {
			return err
		}

		items := make([]domain.LineItem, 0, len(lines))
		amounts := make([]gst.LineAmounts, 0, len(lines))
		for _, line := range lines {
			computed := gst.ComputeLine(gst.LineInput{
				Quantity:        line.quantity,
				UnitPrice:       line.unitPrice,
				DiscountPercent: line.discountPercent,
				GSTRate:         line.medicine.GSTRate,
				Interstate:      gstType == domain.GSTTypeInter,
			})
			item := domain.LineItem{
				Medicine:        line.medicine.ID,
				MedicineName:    line.medicine.Name,
				HSNCode:         line.medicine.HSNCode,
				Batch:           line.batch.ID,
				BatchNumber:     line.batch.BatchNumber,
				ExpiryDate:      line.batch.ExpiryDate,
				Quantity:        line.quantity,
				UnitPrice:       line.unitPrice,
				MRP:             line.batch.MRP,
				DiscountPercent: line.discountPercent,
				GSTRate:         line.medicine.GSTRate,
			}
			computed.Apply(&item)
			items = append(items, item)
			amounts = append(amounts, computed)
		}

		totals := gst.Summarize(amounts, req.FreightCharges, req.OtherCharges)
		if req.PaidAmount.GreaterThan(totals.GrandTotal) {
			return store.Invalid("paidAmount", fmt.Sprintf("must not exceed grand total %s", totals.GrandTotal.StringFixed(2)))
		}

		for _, line := range lines {
			if _, err := tx.DeductBatch(ctx, line.batch.ID, line.quantity); err != nil {
				return err
			}
			if err := tx.AddMedicineStock(ctx, line.medicine.ID, -line.quantity); err != nil {
				return err
			}
		}

		number, err := nextNumber(ctx, tx, domain.SequenceSale, domain.PrefixSale, invoiceDate)
		if err != nil {
			return err
		}

		now := s.now()
		settled := gst.Settle(totals.GrandTotal, req.PaidAmount)
		sale = domain.Sale{
			ID:            xid.New("sale"),
			InvoiceNumber: number.Formatted,
			InvoiceDate:   invoiceDate,
			FinancialYear: number.FinancialYear,
			Customer:      customer.ID,
			CustomerName:  customer.Name,
			GSTType:       gstType,
			Items:         items,
			InvoiceTotals: totals,
			PaidAmount:    settled.PaidAmount,
			BalanceAmount: settled.BalanceAmount,
			PaymentStatus: settled.PaymentStatus,
			PaymentMode:   paymentMode,
			DueDate:       dueDate(req.DueDate, invoiceDate, customer.PaymentTerms),
			Notes:         strings.TrimSpace(req.Notes),
			CreatedBy:     actorName(ctx),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := tx.CreateSale(ctx, sale); err != nil {
			return err
		}

		if err := tx.ApplyPartyTotals(ctx, customer.ID, domain.PartyTotalsDelta{
			Sales:       totals.GrandTotal,
			Receipts:    req.PaidAmount,
			Outstanding: totals.GrandTotal.Sub(req.PaidAmount),
		}); err != nil {
			return err
		}

		if _, err := s.appendLedgerEntry(ctx, tx, domain.LedgerEntryInput{
			LedgerType:      domain.PartyTypeCustomer,
			Party:           customer.ID,
			PartyName:       customer.Name,
			Date:            invoiceDate,
			Particulars:     "Sales invoice " + sale.InvoiceNumber,
			ReferenceType:   domain.ReferenceSale,
			ReferenceID:     sale.ID,
			ReferenceNumber: sale.InvoiceNumber,
			Debit:           totals.GrandTotal,
		}); err != nil {
			return err
		}
		if req.PaidAmount.IsPositive() {
			if _, err := s.appendLedgerEntry(ctx, tx, domain.LedgerEntryInput{
				LedgerType:      domain.PartyTypeCustomer,
				Party:           customer.ID,
				PartyName:       customer.Name,
				Date:            invoiceDate,
				Particulars:     fmt.Sprintf("Payment received (%s) against %s", paymentMode, sale.InvoiceNumber),
				ReferenceType:   domain.ReferenceSale,
				ReferenceID:     sale.ID,
				ReferenceNumber: sale.InvoiceNumber,
				Credit:          req.PaidAmount,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Sale{}, err
	}

	s.log.WithFields(logrus.Fields{
		"invoice":    sale.InvoiceNumber,
		"party":      sale.Customer,
		"lines":      len(sale.Items),
		"grandTotal": sale.GrandTotal.StringFixed(2),
	}).Info("sale posted")
	s.afterCommit(ctx, events.Event{Type: events.SalePosted, Key: sale.Customer, Payload: sale}, true)
	s.logAudit(ctx, "sale_create", "sale", sale.ID, fmt.Sprintf("invoice=%s,customer=%s,total=%s,paid=%s", sale.InvoiceNumber, sale.Customer, sale.GrandTotal.StringFixed(2), sale.PaidAmount.StringFixed(2)))
	return sale, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	if err := checkListFilter(filter.Status, filter.FinancialYear); err != nil {
		return nil, err
	}
	if filter.Limit < 1 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.ListSales(ctx, filter)
}

func checkListFilter(status string, fy string) error {
	verr := store.NewValidationError()
	switch status {
	case "", domain.PaymentStatusUnpaid, domain.PaymentStatusPartial, domain.PaymentStatusPaid:
	default:
		verr.Add("status", "must be unpaid, partial or paid")
	}
	if fy != "" {
		if _, _, err := fiscal.Bounds(fy); err != nil {
			verr.Add("fy", "must look like 2025-26")
		}
	}
	return verr.OrNil()
}
