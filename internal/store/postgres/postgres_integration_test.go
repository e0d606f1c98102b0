package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"pharmaledger/backend/internal/domain"
	"pharmaledger/backend/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("PHARMA_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set PHARMA_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL, logrus.New())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestDeductBatchIsConditionalAndRollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	medicineID := fmt.Sprintf("med-it-%d", stamp)
	batchID := fmt.Sprintf("batch-it-%d", stamp)
	now := time.Now().UTC()

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM batches WHERE id = $1`, batchID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM medicines WHERE id = $1`, medicineID)
	})

	if err := s.CreateMedicine(ctx, domain.Medicine{
		ID: medicineID, Code: fmt.Sprintf("MEDIT%d", stamp), Name: "Integration Tab", Category: "tablet",
		GSTRate: 12, MRP: decimal.NewFromInt(10), CurrentStock: 10, Active: true, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("create medicine: %v", err)
	}
	if err := s.CreateBatch(ctx, domain.Batch{
		ID: batchID, Medicine: medicineID, BatchNumber: "IT-1", ExpiryDate: now.AddDate(1, 0, 0),
		Quantity: 10, InitialQuantity: 10, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("create batch: %v", err)
	}

	_, err := s.DeductBatch(ctx, batchID, 11)
	var stockErr *store.InsufficientStockError
	if !errors.As(err, &stockErr) || stockErr.Available != 10 {
		t.Fatalf("expected insufficient stock with 10 available, got %v", err)
	}

	boom := errors.New("boom")
	err = s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.DeductBatch(ctx, batchID, 4); err != nil {
			return err
		}
		if err := tx.AddMedicineStock(ctx, medicineID, -4); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	batch, err := s.GetBatch(ctx, batchID)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if batch.Quantity != 10 {
		t.Fatalf("expected rolled back quantity 10, got %d", batch.Quantity)
	}
	medicine, err := s.GetMedicine(ctx, medicineID)
	if err != nil {
		t.Fatalf("get medicine: %v", err)
	}
	if medicine.CurrentStock != 10 {
		t.Fatalf("expected rolled back stock 10, got %d", medicine.CurrentStock)
	}
}

func TestNextSequenceIncrementsPerScope(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	name := fmt.Sprintf("it-seq-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM counters WHERE name = $1`, name)
	})

	for want := int64(1); want <= 3; want++ {
		got, err := s.NextSequence(ctx, name, "2025-26")
		if err != nil {
			t.Fatalf("next sequence: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}
	got, err := s.NextSequence(ctx, name, "2026-27")
	if err != nil {
		t.Fatalf("next sequence: %v", err)
	}
	if got != 1 {
		t.Fatalf("expected new scope to start at 1, got %d", got)
	}
}

func TestLockSaleSerialisesPaymentUpdates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	saleID := fmt.Sprintf("sale-it-%d", stamp)
	now := time.Now().UTC()
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, saleID)
	})

	if err := s.CreateSale(ctx, domain.Sale{
		ID: saleID, InvoiceNumber: fmt.Sprintf("IT/%d", stamp), InvoiceDate: now, FinancialYear: "2025-26",
		Customer: "party-it", CustomerName: "Integration Chemists", GSTType: domain.GSTTypeIntra,
		Items:         []domain.LineItem{},
		InvoiceTotals: domain.InvoiceTotals{GrandTotal: decimal.NewFromInt(100)},
		BalanceAmount: decimal.NewFromInt(100), PaymentStatus: domain.PaymentStatusUnpaid,
		CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	const writers = 2
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		go func() {
			errs <- s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
				sale, err := tx.LockSale(ctx, saleID)
				if err != nil {
					return err
				}
				time.Sleep(50 * time.Millisecond)
				paid := sale.PaidAmount.Add(decimal.NewFromInt(10))
				return tx.UpdateSalePayment(ctx, saleID, domain.InvoicePayment{
					PaidAmount:    paid,
					BalanceAmount: sale.GrandTotal.Sub(paid),
					PaymentStatus: domain.PaymentStatusPartial,
				})
			})
		}()
	}
	for i := 0; i < writers; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("update payment: %v", err)
		}
	}

	sale, err := s.GetSale(ctx, saleID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if !sale.PaidAmount.Equal(decimal.NewFromInt(20)) || !sale.BalanceAmount.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("expected paid 20 balance 80, got %s and %s", sale.PaidAmount, sale.BalanceAmount)
	}
}

func TestLockMedicineHoldsConcurrentStockDelta(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	stamp := time.Now().UnixNano()
	medicineID := fmt.Sprintf("med-lock-%d", stamp)
	now := time.Now().UTC()
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM medicines WHERE id = $1`, medicineID)
	})

	if err := s.CreateMedicine(ctx, domain.Medicine{
		ID: medicineID, Code: fmt.Sprintf("MEDLK%d", stamp), Name: "Lock Tab", Category: "tablet",
		GSTRate: 12, MRP: decimal.NewFromInt(10), CurrentStock: 4, Active: true, CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("create medicine: %v", err)
	}

	locked := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			if _, err := tx.LockMedicine(ctx, medicineID); err != nil {
				return err
			}
			close(locked)
			time.Sleep(100 * time.Millisecond)
			return tx.SetMedicineStock(ctx, medicineID, 10)
		})
	}()

	<-locked
	if err := s.AddMedicineStock(ctx, medicineID, -3); err != nil {
		t.Fatalf("add stock: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("locked overwrite: %v", err)
	}

	medicine, err := s.GetMedicine(ctx, medicineID)
	if err != nil {
		t.Fatalf("get medicine: %v", err)
	}
	if medicine.CurrentStock != 7 {
		t.Fatalf("expected the delta to apply after the overwrite, got %d", medicine.CurrentStock)
	}
}
