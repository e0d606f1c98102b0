package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pharmaledger/backend/internal/domain"
	"pharmaledger/backend/internal/store"
)

func money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestRunInTxRollsBackEveryWriteOnError(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.NextSequence(ctx, domain.SequenceSale, "2025-26"); err != nil {
			return err
		}
		if _, err := tx.DeductBatch(ctx, "batch-pcm-a", 50); err != nil {
			return err
		}
		if err := tx.AddMedicineStock(ctx, "med-paracetamol", -50); err != nil {
			return err
		}
		if err := tx.ApplyPartyTotals(ctx, "party-apollo", domain.PartyTotalsDelta{Sales: money("10"), Outstanding: money("10")}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	batch, _ := s.GetBatch(ctx, "batch-pcm-a")
	if batch.Quantity != 200 {
		t.Fatalf("expected batch quantity restored to 200, got %d", batch.Quantity)
	}
	medicine, _ := s.GetMedicine(ctx, "med-paracetamol")
	if medicine.CurrentStock != 500 {
		t.Fatalf("expected medicine stock restored to 500, got %d", medicine.CurrentStock)
	}
	party, _ := s.GetParty(ctx, "party-apollo")
	if !party.TotalSales.IsZero() || !party.OutstandingBalance.IsZero() {
		t.Fatalf("expected party totals restored, got %+v", party.Totals())
	}
	seq, _ := s.NextSequence(ctx, domain.SequenceSale, "2025-26")
	if seq != 1 {
		t.Fatalf("expected rolled back counter to restart at 1, got %d", seq)
	}
}

func TestDeductBatchRefusesToGoNegative(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	_, err := s.DeductBatch(ctx, "batch-amx-a", 121)
	var stockErr *store.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stockErr.Available != 120 {
		t.Fatalf("expected available 120, got %d", stockErr.Available)
	}
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected error to match ErrInsufficientStock")
	}

	batch, err := s.DeductBatch(ctx, "batch-amx-a", 120)
	if err != nil {
		t.Fatalf("deduct full quantity: %v", err)
	}
	if batch.Quantity != 0 {
		t.Fatalf("expected 0 remaining, got %d", batch.Quantity)
	}
}

func TestCreateBatchRejectsDuplicateBatchNumber(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	err := s.CreateBatch(ctx, domain.Batch{
		ID:              "batch-dup",
		Medicine:        "med-paracetamol",
		BatchNumber:     "PCM2401",
		ExpiryDate:      time.Now().AddDate(1, 0, 0),
		Quantity:        10,
		InitialQuantity: 10,
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// the same batch number under another medicine is fine
	err = s.CreateBatch(ctx, domain.Batch{
		ID:              "batch-other",
		Medicine:        "med-amoxicillin",
		BatchNumber:     "PCM2401",
		ExpiryDate:      time.Now().AddDate(1, 0, 0),
		Quantity:        10,
		InitialQuantity: 10,
	})
	if err != nil {
		t.Fatalf("expected batch under another medicine to be accepted, got %v", err)
	}
}

func TestListBatchesForMedicineIsFIFOOrdered(t *testing.T) {
	s := NewSeeded()

	batches, err := s.ListBatchesForMedicine(context.Background(), "med-paracetamol")
	if err != nil {
		t.Fatalf("list batches: %v", err)
	}
	if len(batches) != 2 || batches[0].ID != "batch-pcm-a" || batches[1].ID != "batch-pcm-b" {
		t.Fatalf("unexpected batch order: %+v", batches)
	}
}

func TestSetBatchQuantityKeepsBounds(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	if err := s.SetBatchQuantity(ctx, "batch-pcm-a", 200, 201); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error above initial quantity, got %v", err)
	}
	if err := s.SetBatchQuantity(ctx, "batch-pcm-a", 200, -1); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error below zero, got %v", err)
	}
	if err := s.SetBatchQuantity(ctx, "batch-pcm-a", 199, 150); !errors.Is(err, store.ErrConcurrencyConflict) {
		t.Fatalf("expected conflict on stale expected quantity, got %v", err)
	}
	if err := s.SetBatchQuantity(ctx, "batch-pcm-a", 200, 150); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
}
