package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"pharmaledger/backend/internal/domain"
	"pharmaledger/backend/internal/inventory"
	"pharmaledger/backend/internal/store"
)

// memTx operates on the maps directly. The caller holds Store.mu.
type memTx struct {
	s        *Store
	tracking bool
	undo     []func()
}

func (t *memTx) record(fn func()) {
	if t.tracking {
		t.undo = append(t.undo, fn)
	}
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) NextSequence(_ context.Context, name string, scope string) (int64, error) {
	key := name + "|" + scope
	prev, existed := t.s.counters[key]
	t.s.counters[key] = prev + 1
	t.record(func() {
		if existed {
			t.s.counters[key] = prev
		} else {
			delete(t.s.counters, key)
		}
	})
	return prev + 1, nil
}

func (t *memTx) CreateMedicine(_ context.Context, medicine domain.Medicine) error {
	if _, exists := t.s.medicines[medicine.ID]; exists {
		return store.ErrConflict
	}
	for _, existing := range t.s.medicines {
		if existing.Code == medicine.Code {
			return store.ErrConflict
		}
	}
	t.s.medicines[medicine.ID] = medicine
	t.record(func() { delete(t.s.medicines, medicine.ID) })
	return nil
}

func (t *memTx) GetMedicine(_ context.Context, id string) (*domain.Medicine, error) {
	medicine, ok := t.s.medicines[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &medicine, nil
}

// LockMedicine is GetMedicine: a unit already holds the store exclusively.
func (t *memTx) LockMedicine(ctx context.Context, id string) (*domain.Medicine, error) {
	return t.GetMedicine(ctx, id)
}

func (t *memTx) UpdateMedicine(_ context.Context, medicine domain.Medicine) error {
	prev, ok := t.s.medicines[medicine.ID]
	if !ok {
		return store.ErrNotFound
	}
	medicine.CurrentStock = prev.CurrentStock
	medicine.Code = prev.Code
	medicine.CreatedAt = prev.CreatedAt
	medicine.CreatedBy = prev.CreatedBy
	t.s.medicines[medicine.ID] = medicine
	t.record(func() { t.s.medicines[prev.ID] = prev })
	return nil
}

func (t *memTx) DeleteMedicine(_ context.Context, id string) error {
	prev, ok := t.s.medicines[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(t.s.medicines, id)
	t.record(func() { t.s.medicines[id] = prev })
	return nil
}

func (t *memTx) AddMedicineStock(_ context.Context, id string, delta int) error {
	medicine, ok := t.s.medicines[id]
	if !ok {
		return store.ErrNotFound
	}
	prev := medicine
	medicine.CurrentStock += delta
	medicine.UpdatedAt = time.Now().UTC()
	t.s.medicines[id] = medicine
	t.record(func() { t.s.medicines[id] = prev })
	return nil
}

func (t *memTx) SetMedicineStock(_ context.Context, id string, qty int) error {
	medicine, ok := t.s.medicines[id]
	if !ok {
		return store.ErrNotFound
	}
	prev := medicine
	medicine.CurrentStock = qty
	medicine.UpdatedAt = time.Now().UTC()
	t.s.medicines[id] = medicine
	t.record(func() { t.s.medicines[id] = prev })
	return nil
}

func (t *memTx) CreateBatch(_ context.Context, batch domain.Batch) error {
	if _, ok := t.s.medicines[batch.Medicine]; !ok {
		return store.ErrNotFound
	}
	key := batchKey(batch.Medicine, batch.BatchNumber)
	if _, exists := t.s.batchKeys[key]; exists {
		return store.ErrConflict
	}
	if _, exists := t.s.batches[batch.ID]; exists {
		return store.ErrConflict
	}
	t.s.batches[batch.ID] = batch
	t.s.batchKeys[key] = batch.ID
	t.record(func() {
		delete(t.s.batches, batch.ID)
		delete(t.s.batchKeys, key)
	})
	return nil
}

func (t *memTx) GetBatch(_ context.Context, id string) (*domain.Batch, error) {
	batch, ok := t.s.batches[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &batch, nil
}

func (t *memTx) ListBatchesForMedicine(_ context.Context, medicineID string) ([]domain.Batch, error) {
	out := make([]domain.Batch, 0, 8)
	for _, batch := range t.s.batches {
		if batch.Medicine == medicineID {
			out = append(out, batch)
		}
	}
	inventory.SortFIFO(out)
	return out, nil
}

func (t *memTx) DeductBatch(_ context.Context, id string, qty int) (*domain.Batch, error) {
	batch, ok := t.s.batches[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if qty <= 0 {
		return nil, store.Invalid("quantity", "must be positive")
	}
	if batch.Quantity < qty {
		return nil, &store.InsufficientStockError{
			BatchID:     batch.ID,
			BatchNumber: batch.BatchNumber,
			Requested:   qty,
			Available:   batch.Quantity,
		}
	}
	prev := batch
	batch.Quantity -= qty
	batch.UpdatedAt = time.Now().UTC()
	t.s.batches[id] = batch
	t.record(func() { t.s.batches[id] = prev })
	return &batch, nil
}

func (t *memTx) SetBatchQuantity(_ context.Context, id string, expected int, qty int) error {
	batch, ok := t.s.batches[id]
	if !ok {
		return store.ErrNotFound
	}
	if batch.Quantity != expected {
		return store.ErrConcurrencyConflict
	}
	if qty < 0 || qty > batch.InitialQuantity {
		return store.Invalid("quantity", "must stay between 0 and the initial quantity")
	}
	prev := batch
	batch.Quantity = qty
	batch.UpdatedAt = time.Now().UTC()
	t.s.batches[id] = batch
	t.record(func() { t.s.batches[id] = prev })
	return nil
}

func (t *memTx) CreateParty(_ context.Context, party domain.Party) error {
	if _, exists := t.s.parties[party.ID]; exists {
		return store.ErrConflict
	}
	for _, existing := range t.s.parties {
		if existing.Code == party.Code {
			return store.ErrConflict
		}
	}
	t.s.parties[party.ID] = party
	t.record(func() { delete(t.s.parties, party.ID) })
	return nil
}

func (t *memTx) GetParty(_ context.Context, id string) (*domain.Party, error) {
	party, ok := t.s.parties[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &party, nil
}

func (t *memTx) UpdateParty(_ context.Context, party domain.Party) error {
	prev, ok := t.s.parties[party.ID]
	if !ok {
		return store.ErrNotFound
	}
	// running totals only move through ApplyPartyTotals and SetPartyTotals
	totals := prev.Totals()
	party.TotalSales = totals.TotalSales
	party.TotalPurchases = totals.TotalPurchases
	party.TotalReceipts = totals.TotalReceipts
	party.TotalPayments = totals.TotalPayments
	party.OutstandingBalance = totals.OutstandingBalance
	party.Code = prev.Code
	party.Type = prev.Type
	party.CreatedAt = prev.CreatedAt
	party.CreatedBy = prev.CreatedBy
	t.s.parties[party.ID] = party
	t.record(func() { t.s.parties[prev.ID] = prev })
	return nil
}

func (t *memTx) ApplyPartyTotals(_ context.Context, id string, delta domain.PartyTotalsDelta) error {
	party, ok := t.s.parties[id]
	if !ok {
		return store.ErrNotFound
	}
	prev := party
	addTotals(&party, delta)
	party.UpdatedAt = time.Now().UTC()
	t.s.parties[id] = party
	t.record(func() { t.s.parties[id] = prev })
	return nil
}

func (t *memTx) SetPartyTotals(_ context.Context, id string, totals domain.PartyTotals) error {
	party, ok := t.s.parties[id]
	if !ok {
		return store.ErrNotFound
	}
	prev := party
	party.TotalSales = totals.TotalSales
	party.TotalPurchases = totals.TotalPurchases
	party.TotalReceipts = totals.TotalReceipts
	party.TotalPayments = totals.TotalPayments
	party.OutstandingBalance = totals.OutstandingBalance
	party.UpdatedAt = time.Now().UTC()
	t.s.parties[id] = party
	t.record(func() { t.s.parties[id] = prev })
	return nil
}

func (t *memTx) DeleteParty(_ context.Context, id string) error {
	prev, ok := t.s.parties[id]
	if !ok {
		return store.ErrNotFound
	}
	delete(t.s.parties, id)
	t.record(func() { t.s.parties[id] = prev })
	return nil
}

func (t *memTx) LockLedger(_ context.Context, ledgerType string, partyID string, fy string) (*domain.Ledger, error) {
	id, ok := t.s.ledgerKeys[ledgerKey(ledgerType, partyID, fy)]
	if !ok {
		return nil, store.ErrNotFound
	}
	ledger := cloneLedger(t.s.ledgers[id])
	return &ledger, nil
}

func (t *memTx) LatestLedgerBefore(_ context.Context, ledgerType string, partyID string, fy string) (*domain.Ledger, error) {
	var latest *domain.Ledger
	for _, ledger := range t.s.ledgers {
		if ledger.LedgerType != ledgerType || ledger.Party != partyID || ledger.FinancialYear >= fy {
			continue
		}
		if latest == nil || ledger.FinancialYear > latest.FinancialYear {
			candidate := cloneLedger(ledger)
			latest = &candidate
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	return latest, nil
}

func (t *memTx) LatestLedger(_ context.Context, ledgerType string, partyID string) (*domain.Ledger, error) {
	var latest *domain.Ledger
	for _, ledger := range t.s.ledgers {
		if ledger.LedgerType != ledgerType || ledger.Party != partyID {
			continue
		}
		if latest == nil || ledger.FinancialYear > latest.FinancialYear {
			candidate := cloneLedger(ledger)
			latest = &candidate
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	return latest, nil
}

func (t *memTx) CreateLedger(_ context.Context, ledger domain.Ledger) error {
	key := ledgerKey(ledger.LedgerType, ledger.Party, ledger.FinancialYear)
	if _, exists := t.s.ledgerKeys[key]; exists {
		return store.ErrConflict
	}
	ledger.Entries = nil
	t.s.ledgers[ledger.ID] = ledger
	t.s.ledgerKeys[key] = ledger.ID
	t.record(func() {
		delete(t.s.ledgers, ledger.ID)
		delete(t.s.ledgerKeys, key)
	})
	return nil
}

func (t *memTx) AppendLedgerEntry(_ context.Context, ledger domain.Ledger, entry domain.LedgerEntry) error {
	prev, ok := t.s.ledgers[ledger.ID]
	if !ok {
		return store.ErrNotFound
	}
	if ledger.EntryCount != len(prev.Entries)+1 {
		return store.ErrConcurrencyConflict
	}
	next := prev
	next.TotalDebit = ledger.TotalDebit
	next.TotalCredit = ledger.TotalCredit
	next.ClosingBalance = ledger.ClosingBalance
	next.EntryCount = ledger.EntryCount
	next.UpdatedAt = ledger.UpdatedAt
	entry.LedgerID = ledger.ID
	entry.Position = ledger.EntryCount
	next.Entries = append(slices.Clip(prev.Entries), entry)
	t.s.ledgers[ledger.ID] = next
	t.record(func() { t.s.ledgers[prev.ID] = prev })
	return nil
}

func (t *memTx) ListLedgers(_ context.Context, ledgerType string, partyID string) ([]domain.Ledger, error) {
	out := make([]domain.Ledger, 0, 4)
	for _, ledger := range t.s.ledgers {
		if ledger.Party != partyID || (ledgerType != "" && ledger.LedgerType != ledgerType) {
			continue
		}
		out = append(out, cloneLedger(ledger))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].FinancialYear < out[j].FinancialYear
	})
	return out, nil
}

func (t *memTx) CreateSale(_ context.Context, sale domain.Sale) error {
	if _, exists := t.s.sales[sale.ID]; exists {
		return store.ErrConflict
	}
	for _, existing := range t.s.sales {
		if existing.InvoiceNumber == sale.InvoiceNumber {
			return store.ErrConflict
		}
	}
	sale.Items = slices.Clone(sale.Items)
	t.s.sales[sale.ID] = sale
	t.record(func() { delete(t.s.sales, sale.ID) })
	return nil
}

func (t *memTx) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	sale, ok := t.s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	sale.Items = slices.Clone(sale.Items)
	return &sale, nil
}

func (t *memTx) LockSale(ctx context.Context, id string) (*domain.Sale, error) {
	return t.GetSale(ctx, id)
}

func (t *memTx) UpdateSalePayment(_ context.Context, id string, payment domain.InvoicePayment) error {
	sale, ok := t.s.sales[id]
	if !ok {
		return store.ErrNotFound
	}
	prev := sale
	sale.PaidAmount = payment.PaidAmount
	sale.BalanceAmount = payment.BalanceAmount
	sale.PaymentStatus = payment.PaymentStatus
	sale.UpdatedAt = time.Now().UTC()
	t.s.sales[id] = sale
	t.record(func() { t.s.sales[id] = prev })
	return nil
}

func (t *memTx) CreatePurchase(_ context.Context, purchase domain.Purchase) error {
	if _, exists := t.s.purchases[purchase.ID]; exists {
		return store.ErrConflict
	}
	for _, existing := range t.s.purchases {
		if existing.PurchaseNumber == purchase.PurchaseNumber {
			return store.ErrConflict
		}
	}
	purchase.Items = slices.Clone(purchase.Items)
	t.s.purchases[purchase.ID] = purchase
	t.record(func() { delete(t.s.purchases, purchase.ID) })
	return nil
}

func (t *memTx) GetPurchase(_ context.Context, id string) (*domain.Purchase, error) {
	purchase, ok := t.s.purchases[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	purchase.Items = slices.Clone(purchase.Items)
	return &purchase, nil
}

func (t *memTx) LockPurchase(ctx context.Context, id string) (*domain.Purchase, error) {
	return t.GetPurchase(ctx, id)
}

func (t *memTx) UpdatePurchasePayment(_ context.Context, id string, payment domain.InvoicePayment) error {
	purchase, ok := t.s.purchases[id]
	if !ok {
		return store.ErrNotFound
	}
	prev := purchase
	purchase.PaidAmount = payment.PaidAmount
	purchase.BalanceAmount = payment.BalanceAmount
	purchase.PaymentStatus = payment.PaymentStatus
	purchase.UpdatedAt = time.Now().UTC()
	t.s.purchases[id] = purchase
	t.record(func() { t.s.purchases[id] = prev })
	return nil
}

func (t *memTx) CreatePayment(_ context.Context, payment domain.Payment) error {
	if _, exists := t.s.payments[payment.ID]; exists {
		return store.ErrConflict
	}
	payment.LinkedInvoices = slices.Clone(payment.LinkedInvoices)
	t.s.payments[payment.ID] = payment
	t.record(func() { delete(t.s.payments, payment.ID) })
	return nil
}

func (t *memTx) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	n := len(t.s.auditLogs)
	t.s.auditLogs = append(t.s.auditLogs, entry)
	t.record(func() { t.s.auditLogs = t.s.auditLogs[:n] })
	return nil
}
