package store

import (
	"context"
	"time"

	"pharmaledger/backend/internal/domain"
)

// Tx is the unit of work a posting runs in. Every method observes the writes
// made earlier in the same unit and none of them are visible to other callers
// until RunInTx returns nil.
type Tx interface {
	// NextSequence atomically increments the (name, scope) counter, creating it at 1.
	NextSequence(ctx context.Context, name string, scope string) (int64, error)

	CreateMedicine(ctx context.Context, medicine domain.Medicine) error
	GetMedicine(ctx context.Context, id string) (*domain.Medicine, error)
	// LockMedicine reads the medicine and holds its row until the unit ends.
	LockMedicine(ctx context.Context, id string) (*domain.Medicine, error)
	UpdateMedicine(ctx context.Context, medicine domain.Medicine) error
	DeleteMedicine(ctx context.Context, id string) error
	AddMedicineStock(ctx context.Context, id string, delta int) error
	SetMedicineStock(ctx context.Context, id string, qty int) error

	// CreateBatch returns ErrConflict when the medicine already has the batch number.
	CreateBatch(ctx context.Context, batch domain.Batch) error
	GetBatch(ctx context.Context, id string) (*domain.Batch, error)
	ListBatchesForMedicine(ctx context.Context, medicineID string) ([]domain.Batch, error)
	// DeductBatch decrements only when enough quantity remains and returns an
	// *InsufficientStockError otherwise.
	DeductBatch(ctx context.Context, id string, qty int) (*domain.Batch, error)
	// SetBatchQuantity overwrites the quantity only while it still equals expected
	// and returns ErrConcurrencyConflict otherwise.
	SetBatchQuantity(ctx context.Context, id string, expected int, qty int) error

	CreateParty(ctx context.Context, party domain.Party) error
	GetParty(ctx context.Context, id string) (*domain.Party, error)
	UpdateParty(ctx context.Context, party domain.Party) error
	ApplyPartyTotals(ctx context.Context, id string, delta domain.PartyTotalsDelta) error
	SetPartyTotals(ctx context.Context, id string, totals domain.PartyTotals) error
	DeleteParty(ctx context.Context, id string) error

	// LockLedger returns the ledger header, held exclusively until the unit ends.
	LockLedger(ctx context.Context, ledgerType string, partyID string, fy string) (*domain.Ledger, error)
	// LatestLedgerBefore returns the party's most recent ledger of an earlier financial year.
	LatestLedgerBefore(ctx context.Context, ledgerType string, partyID string, fy string) (*domain.Ledger, error)
	// LatestLedger returns the party's ledger with the highest financial year.
	LatestLedger(ctx context.Context, ledgerType string, partyID string) (*domain.Ledger, error)
	CreateLedger(ctx context.Context, ledger domain.Ledger) error
	AppendLedgerEntry(ctx context.Context, ledger domain.Ledger, entry domain.LedgerEntry) error
	ListLedgers(ctx context.Context, ledgerType string, partyID string) ([]domain.Ledger, error)

	CreateSale(ctx context.Context, sale domain.Sale) error
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	// LockSale reads the sale and holds its row until the unit ends.
	LockSale(ctx context.Context, id string) (*domain.Sale, error)
	UpdateSalePayment(ctx context.Context, id string, payment domain.InvoicePayment) error

	CreatePurchase(ctx context.Context, purchase domain.Purchase) error
	GetPurchase(ctx context.Context, id string) (*domain.Purchase, error)
	LockPurchase(ctx context.Context, id string) (*domain.Purchase, error)
	UpdatePurchasePayment(ctx context.Context, id string, payment domain.InvoicePayment) error

	CreatePayment(ctx context.Context, payment domain.Payment) error

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
}

type Repository interface {
	Tx

	// RunInTx applies fn atomically. When fn fails nothing it wrote survives.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	ListMedicines(ctx context.Context, includeInactive bool) ([]domain.Medicine, error)
	ListBatchesExpiringBefore(ctx context.Context, before time.Time) ([]domain.Batch, error)
	ListParties(ctx context.Context, partyType string) ([]domain.Party, error)
	GetLedger(ctx context.Context, ledgerType string, partyID string, fy string) (*domain.Ledger, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)
	ListPurchases(ctx context.Context, filter domain.PurchaseFilter) ([]domain.Purchase, error)
	GetPayment(ctx context.Context, id string) (*domain.Payment, error)
	ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error)
	ListAuditLogs(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
