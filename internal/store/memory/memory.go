package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"pharmaledger/backend/internal/domain"
	"pharmaledger/backend/internal/inventory"
	"pharmaledger/backend/internal/store"
)

// Store keeps every collection in process memory. RunInTx holds the write
// lock for the whole unit and replays an undo journal when the unit fails.
type Store struct {
	mu          sync.RWMutex
	counters    map[string]int64
	medicines   map[string]domain.Medicine
	batches     map[string]domain.Batch
	batchKeys   map[string]string
	parties     map[string]domain.Party
	ledgers     map[string]domain.Ledger
	ledgerKeys  map[string]string
	sales       map[string]domain.Sale
	purchases   map[string]domain.Purchase
	payments    map[string]domain.Payment
	auditLogs   []domain.AuditLog
	usersByName map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		counters:    make(map[string]int64),
		medicines:   make(map[string]domain.Medicine),
		batches:     make(map[string]domain.Batch),
		batchKeys:   make(map[string]string),
		parties:     make(map[string]domain.Party),
		ledgers:     make(map[string]domain.Ledger),
		ledgerKeys:  make(map[string]string),
		sales:       make(map[string]domain.Sale),
		purchases:   make(map[string]domain.Purchase),
		payments:    make(map[string]domain.Payment),
		usersByName: make(map[string]domain.UserAccount),
	}
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s, tracking: true}
	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *Store) read(fn func(tx *memTx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memTx{s: s})
}

func (s *Store) write(fn func(tx *memTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memTx{s: s})
}

func (s *Store) NextSequence(ctx context.Context, name string, scope string) (int64, error) {
	var seq int64
	err := s.write(func(tx *memTx) error {
		var err error
		seq, err = tx.NextSequence(ctx, name, scope)
		return err
	})
	return seq, err
}

func (s *Store) CreateMedicine(ctx context.Context, medicine domain.Medicine) error {
	return s.write(func(tx *memTx) error { return tx.CreateMedicine(ctx, medicine) })
}

func (s *Store) GetMedicine(ctx context.Context, id string) (*domain.Medicine, error) {
	var out *domain.Medicine
	err := s.read(func(tx *memTx) error {
		var err error
		out, err = tx.GetMedicine(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) UpdateMedicine(ctx context.Context, medicine domain.Medicine) error {
	return s.write(func(tx *memTx) error { return tx.UpdateMedicine(ctx, medicine) })
}

func (s *Store) DeleteMedicine(ctx context.Context, id string) error {
	return s.write(func(tx *memTx) error { return tx.DeleteMedicine(ctx, id) })
}

func (s *Store) AddMedicineStock(ctx context.Context, id string, delta int) error {
	return s.write(func(tx *memTx) error { return tx.AddMedicineStock(ctx, id, delta) })
}

func (s *Store) SetMedicineStock(ctx context.Context, id string, qty int) error {
	return s.write(func(tx *memTx) error { return tx.SetMedicineStock(ctx, id, qty) })
}

func (s *Store) CreateBatch(ctx context.Context, batch domain.Batch) error {
	return s.write(func(tx *memTx) error { return tx.CreateBatch(ctx, batch) })
}

func (s *Store) GetBatch(ctx context.Context, id string) (*domain.Batch, error) {
	var out *domain.Batch
	err := s.read(func(tx *memTx) error {
		var err error
		out, err = tx.GetBatch(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) ListBatchesForMedicine(ctx context.Context, medicineID string) ([]domain.Batch, error) {
	var out []domain.Batch
	err := s.read(func(tx *memTx) error {
		var err error
		out, err = tx.ListBatchesForMedicine(ctx, medicineID)
		return err
	})
	return out, err
}

func (s *Store) DeductBatch(ctx context.Context, id string, qty int) (*domain.Batch, error) {
	var out *domain.Batch
	err := s.write(func(tx *memTx) error {
		var err error
		out, err = tx.DeductBatch(ctx, id, qty)
		return err
	})
	return out, err
}

func (s *Store) SetBatchQuantity(ctx context.Context, id string, expected int, qty int) error {
	return s.write(func(tx *memTx) error { return tx.SetBatchQuantity(ctx, id, expected, qty) })
}

func (s *Store) CreateParty(ctx context.Context, party domain.Party) error {
	return s.write(func(tx *memTx) error { return tx.CreateParty(ctx, party) })
}

func (s *Store) GetParty(ctx context.Context, id string) (*domain.Party, error) {
	var out *domain.Party
	err := s.read(func(tx *memTx) error {
		var err error
		out, err = tx.GetParty(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) UpdateParty(ctx context.Context, party domain.Party) error {
	return s.write(func(tx *memTx) error { return tx.UpdateParty(ctx, party) })
}

func (s *Store) ApplyPartyTotals(ctx context.Context, id string, delta domain.PartyTotalsDelta) error {
	return s.write(func(tx *memTx) error { return tx.ApplyPartyTotals(ctx, id, delta) })
}

func (s *Store) SetPartyTotals(ctx context.Context, id string, totals domain.PartyTotals) error {
	return s.write(func(tx *memTx) error { return tx.SetPartyTotals(ctx, id, totals) })
}

func (s *Store) DeleteParty(ctx context.Context, id string) error {
	return s.write(func(tx *memTx) error { return tx.DeleteParty(ctx, id) })
}

func (s *Store) LockLedger(ctx context.Context, ledgerType string, partyID string, fy string) (*domain.Ledger, error) {
	var out *domain.Ledger
	err := s.read(func(tx *memTx) error {
		var err error
		out, err = tx.LockLedger(ctx, ledgerType, partyID, fy)
		return err
	})
	return out, err
}

func (s *Store) LatestLedgerBefore(ctx context.Context, ledgerType string, partyID string, fy string) (*domain.Ledger, error) {
	var out *domain.Ledger
	err := s.read(func(tx *memTx) error {
		var err error
		out, err = tx.LatestLedgerBefore(ctx, ledgerType, partyID, fy)
		return err
	})
	return out, err
}

func (s *Store) LatestLedger(ctx context.Context, ledgerType string, partyID string) (*domain.Ledger, error) {
	var out *domain.Ledger
	err := s.read(func(tx *memTx) error {
		var err error
		out, err = tx.LatestLedger(ctx, ledgerType, partyID)
		return err
	})
	return out, err
}

func (s *Store) CreateLedger(ctx context.Context, ledger domain.Ledger) error {
	return s.write(func(tx *memTx) error { return tx.CreateLedger(ctx, ledger) })
}

func (s *Store) AppendLedgerEntry(ctx context.Context, ledger domain.Ledger, entry domain.LedgerEntry) error {
	return s.write(func(tx *memTx) error { return tx.AppendLedgerEntry(ctx, ledger, entry) })
}

func (s *Store) ListLedgers(ctx context.Context, ledgerType string, partyID string) ([]domain.Ledger, error) {
	var out []domain.Ledger
	err := s.read(func(tx *memTx) error {
		var err error
		out, err = tx.ListLedgers(ctx, ledgerType, partyID)
		return err
	})
	return out, err
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) error {
	return s.write(func(tx *memTx) error { return tx.CreateSale(ctx, sale) })
}

func (s *Store) LockMedicine(ctx context.Context, id string) (*domain.Medicine, error) {
	var out *domain.Medicine
	err := s.read(func(tx *memTx) error {
		var err error
		out, err = tx.LockMedicine(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	var out *domain.Sale
	err := s.read(func(tx *memTx) error {
		var err error
		out, err = tx.GetSale(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) UpdateSalePayment(ctx context.Context, id string, payment domain.InvoicePayment) error {
	return s.write(func(tx *memTx) error { return tx.UpdateSalePayment(ctx, id, payment) })
}

func (s *Store) CreatePurchase(ctx context.Context, purchase domain.Purchase) error {
	return s.write(func(tx *memTx) error { return tx.CreatePurchase(ctx, purchase) })
}

func (s *Store) LockSale(ctx context.Context, id string) (*domain.Sale, error) {
	var out *domain.Sale
	err := s.read(func(tx *memTx) error {
		var err error
		out, err = tx.LockSale(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) GetPurchase(ctx context.Context, id string) (*domain.Purchase, error) {
	var out *domain.Purchase
	err := s.read(func(tx *memTx) error {
		var err error
		out, err = tx.GetPurchase(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) LockPurchase(ctx context.Context, id string) (*domain.Purchase, error) {
	var out *domain.Purchase
	err := s.read(func(tx *memTx) error {
		var err error
		out, err = tx.LockPurchase(ctx, id)
		return err
	})
	return out, err
}

func (s *Store) UpdatePurchasePayment(ctx context.Context, id string, payment domain.InvoicePayment) error {
	return s.write(func(tx *memTx) error { return tx.UpdatePurchasePayment(ctx, id, payment) })
}

func (s *Store) CreatePayment(ctx context.Context, payment domain.Payment) error {
	return s.write(func(tx *memTx) error { return tx.CreatePayment(ctx, payment) })
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	return s.write(func(tx *memTx) error { return tx.CreateAuditLog(ctx, entry) })
}

func (s *Store) ListMedicines(_ context.Context, includeInactive bool) ([]domain.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Medicine, 0, len(s.medicines))
	for _, medicine := range s.medicines {
		if !includeInactive && !medicine.Active {
			continue
		}
		out = append(out, medicine)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (s *Store) ListBatchesExpiringBefore(_ context.Context, before time.Time) ([]domain.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Batch, 0, 16)
	for _, batch := range s.batches {
		if batch.Quantity <= 0 || !batch.ExpiryDate.Before(before) {
			continue
		}
		out = append(out, batch)
	}
	inventory.SortFIFO(out)
	return out, nil
}

func (s *Store) ListParties(_ context.Context, partyType string) ([]domain.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Party, 0, len(s.parties))
	for _, party := range s.parties {
		if partyType != "" && party.Type != partyType {
			continue
		}
		out = append(out, party)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (s *Store) GetLedger(_ context.Context, ledgerType string, partyID string, fy string) (*domain.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.ledgerKeys[ledgerKey(ledgerType, partyID, fy)]
	if !ok {
		return nil, store.ErrNotFound
	}
	ledger := cloneLedger(s.ledgers[id])
	return &ledger, nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Sale, 0, 32)
	for _, sale := range s.sales {
		if filter.Customer != "" && sale.Customer != filter.Customer {
			continue
		}
		if filter.FinancialYear != "" && sale.FinancialYear != filter.FinancialYear {
			continue
		}
		if filter.Status != "" && sale.PaymentStatus != filter.Status {
			continue
		}
		sale.Items = slices.Clone(sale.Items)
		out = append(out, sale)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return limitSlice(out, filter.Limit), nil
}

func (s *Store) ListPurchases(_ context.Context, filter domain.PurchaseFilter) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Purchase, 0, 32)
	for _, purchase := range s.purchases {
		if filter.Vendor != "" && purchase.Vendor != filter.Vendor {
			continue
		}
		if filter.FinancialYear != "" && purchase.FinancialYear != filter.FinancialYear {
			continue
		}
		if filter.Status != "" && purchase.PaymentStatus != filter.Status {
			continue
		}
		purchase.Items = slices.Clone(purchase.Items)
		out = append(out, purchase)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return limitSlice(out, filter.Limit), nil
}

func (s *Store) GetPayment(_ context.Context, id string) (*domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payment, ok := s.payments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	payment.LinkedInvoices = slices.Clone(payment.LinkedInvoices)
	return &payment, nil
}

func (s *Store) ListPayments(_ context.Context, filter domain.PaymentFilter) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Payment, 0, 32)
	for _, payment := range s.payments {
		if filter.Party != "" && payment.Party != filter.Party {
			continue
		}
		if filter.PaymentType != "" && payment.PaymentType != filter.PaymentType {
			continue
		}
		payment.LinkedInvoices = slices.Clone(payment.LinkedInvoices)
		out = append(out, payment)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return limitSlice(out, filter.Limit), nil
}

func (s *Store) ListAuditLogs(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		entry := s.auditLogs[i]
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		out = append(out, entry)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByName[user.Username]; exists {
		return store.ErrConflict
	}
	s.usersByName[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.UserAccount, 0, len(s.usersByName))
	for _, user := range s.usersByName {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Username < out[j].Username
	})
	return out, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByName[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByName[username] = user
	return nil
}

func limitSlice[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func ledgerKey(ledgerType string, partyID string, fy string) string {
	return ledgerType + "|" + partyID + "|" + fy
}

func batchKey(medicineID string, batchNumber string) string {
	return medicineID + "|" + batchNumber
}

func cloneLedger(ledger domain.Ledger) domain.Ledger {
	ledger.Entries = slices.Clone(ledger.Entries)
	if ledger.Entries == nil {
		ledger.Entries = []domain.LedgerEntry{}
	}
	return ledger
}

func addTotals(party *domain.Party, delta domain.PartyTotalsDelta) {
	party.TotalSales = party.TotalSales.Add(delta.Sales)
	party.TotalPurchases = party.TotalPurchases.Add(delta.Purchases)
	party.TotalReceipts = party.TotalReceipts.Add(delta.Receipts)
	party.TotalPayments = party.TotalPayments.Add(delta.Payments)
	party.OutstandingBalance = party.OutstandingBalance.Add(delta.Outstanding)
}
