package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"pharmaledger/backend/internal/domain"
	"pharmaledger/backend/internal/events"
	"pharmaledger/backend/internal/inventory"
	"pharmaledger/backend/internal/store"
	"pharmaledger/backend/internal/xid"
)

const maxExpiryWindowDays = 730

// batchInput is what every stock receipt needs, standalone or from a purchase line.
type batchInput struct {
	Medicine          string
	BatchNumber       string
	ExpiryDate        time.Time
	ManufacturingDate *time.Time
	PurchasePrice     decimal.Decimal
	SellingPrice      decimal.Decimal
	MRP               decimal.Decimal
	Quantity          int
	Vendor            string
	Purchase          string
}

func checkBatchInput(verr *store.ValidationError, prefix string, in batchInput) {
	checkMoney(verr, prefix+"purchasePrice", in.PurchasePrice)
	checkMoney(verr, prefix+"sellingPrice", in.SellingPrice)
	checkMoney(verr, prefix+"mrp", in.MRP)
	if in.ManufacturingDate != nil && !in.ManufacturingDate.Before(in.ExpiryDate) {
		verr.Add(prefix+"manufacturingDate", "must be before expiryDate")
	}
	if in.MRP.IsPositive() && in.SellingPrice.GreaterThan(in.MRP) {
		verr.Add(prefix+"sellingPrice", "must not exceed mrp")
	}
}

// createBatch creates the batch and raises the medicine's aggregate stock in
// the same unit of work.
func (s *Service) createBatch(ctx context.Context, tx store.Tx, in batchInput) (domain.Batch, error) {
	now := s.now()
	batch := domain.Batch{
		ID:                xid.New("batch"),
		Medicine:          in.Medicine,
		BatchNumber:       strings.ToUpper(strings.TrimSpace(in.BatchNumber)),
		ExpiryDate:        in.ExpiryDate.UTC(),
		ManufacturingDate: in.ManufacturingDate,
		PurchasePrice:     in.PurchasePrice,
		SellingPrice:      in.SellingPrice,
		MRP:               in.MRP,
		Quantity:          in.Quantity,
		InitialQuantity:   in.Quantity,
		Vendor:            in.Vendor,
		Purchase:          in.Purchase,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := tx.CreateBatch(ctx, batch); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Batch{}, fmt.Errorf("%w: batch %s already exists for medicine %s", store.ErrConflict, batch.BatchNumber, batch.Medicine)
		}
		return domain.Batch{}, err
	}
	if err := tx.AddMedicineStock(ctx, batch.Medicine, batch.Quantity); err != nil {
		return domain.Batch{}, err
	}
	batch.IsExpired = batch.ExpiredAt(now)
	return batch, nil
}

// ReceiveBatch books a lot received outside a purchase, such as opening stock.
func (s *Service) ReceiveBatch(ctx context.Context, req domain.BatchReceiptRequest) (domain.Batch, error) {
	in := batchInput{
		Medicine:          req.Medicine,
		BatchNumber:       req.BatchNumber,
		ExpiryDate:        req.ExpiryDate,
		ManufacturingDate: req.ManufacturingDate,
		PurchasePrice:     req.PurchasePrice,
		SellingPrice:      req.SellingPrice,
		MRP:               req.MRP,
		Quantity:          req.Quantity,
		Vendor:            req.Vendor,
		Purchase:          req.Purchase,
	}
	verr := s.check(req)
	checkBatchInput(verr, "", in)
	if err := verr.OrNil(); err != nil {
		return domain.Batch{}, err
	}

	var batch domain.Batch
	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.GetMedicine(ctx, in.Medicine); err != nil {
			return err
		}
		if in.Vendor != "" {
			if _, err := loadParty(ctx, tx, in.Vendor, domain.PartyTypeVendor); err != nil {
				return err
			}
		}
		var err error
		batch, err = s.createBatch(ctx, tx, in)
		return err
	})
	if err != nil {
		return domain.Batch{}, err
	}

	s.afterCommit(ctx, events.Event{Type: events.BatchReceived, Key: batch.Medicine, Payload: batch}, true)
	s.logAudit(ctx, "batch_receive", "batch", batch.ID, fmt.Sprintf("medicine=%s,batch=%s,qty=%d", batch.Medicine, batch.BatchNumber, batch.Quantity))
	return batch, nil
}

func (s *Service) GetBatch(ctx context.Context, id string) (domain.BatchExpiry, error) {
	batch, err := s.repo.GetBatch(ctx, id)
	if err != nil {
		return domain.BatchExpiry{}, err
	}
	return inventory.Describe(*batch, s.now()), nil
}

// AllocateForSale plans a FIFO pick across unexpired batches without touching quantities.
func (s *Service) AllocateForSale(ctx context.Context, medicineID string, quantity int) (domain.Allocation, error) {
	if quantity <= 0 {
		return domain.Allocation{}, store.Invalid("quantity", "must be greater than 0")
	}
	if _, err := s.repo.GetMedicine(ctx, medicineID); err != nil {
		return domain.Allocation{}, err
	}
	batches, err := s.repo.ListBatchesForMedicine(ctx, medicineID)
	if err != nil {
		return domain.Allocation{}, err
	}
	return inventory.Allocate(medicineID, batches, quantity, s.now()), nil
}

// DeductBatch removes units from one batch outside a sale, e.g. samples or breakage.
func (s *Service) DeductBatch(ctx context.Context, batchID string, quantity int, reason string) (domain.Batch, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Batch{}, err
	}

	verr := store.NewValidationError()
	if quantity <= 0 {
		verr.Add("quantity", "must be greater than 0")
	}
	if strings.TrimSpace(reason) == "" {
		verr.Add("reason", "is required")
	}
	if err := verr.OrNil(); err != nil {
		return domain.Batch{}, err
	}

	var batch domain.Batch
	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		deducted, err := tx.DeductBatch(ctx, batchID, quantity)
		if err != nil {
			return err
		}
		batch = *deducted
		return tx.AddMedicineStock(ctx, batch.Medicine, -quantity)
	})
	if err != nil {
		return domain.Batch{}, err
	}

	s.afterCommit(ctx, events.Event{Type: events.StockAdjusted, Key: batch.Medicine, Payload: batch}, true)
	s.logAudit(ctx, "batch_deduct", "batch", batch.ID, fmt.Sprintf("qty=%d,remaining=%d,reason=%s", quantity, batch.Quantity, strings.TrimSpace(reason)))
	return batch, nil
}

// AdjustBatch applies a manual stock correction. The result must stay within
// 0 and the batch's initial quantity, and the medicine aggregate moves by the
// same delta in the same unit of work.
func (s *Service) AdjustBatch(ctx context.Context, batchID string, req domain.BatchAdjustRequest) (domain.Batch, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Batch{}, err
	}
	if err := s.check(req).OrNil(); err != nil {
		return domain.Batch{}, err
	}
	if req.Mode != domain.AdjustSet && req.Quantity == 0 {
		return domain.Batch{}, store.Invalid("quantity", "must be greater than 0")
	}

	var batch domain.Batch
	var delta int
	err := s.post(ctx, "batch_adjust", []string{"batch:" + batchID}, func(ctx context.Context, tx store.Tx) error {
		current, err := tx.GetBatch(ctx, batchID)
		if err != nil {
			return err
		}

		target := current.Quantity
		switch req.Mode {
		case domain.AdjustAdd:
			target += req.Quantity
		case domain.AdjustSubtract:
			target -= req.Quantity
			if target < 0 {
				return &store.InsufficientStockError{
					BatchID:     current.ID,
					BatchNumber: current.BatchNumber,
					Requested:   req.Quantity,
					Available:   current.Quantity,
				}
			}
		case domain.AdjustSet:
			target = req.Quantity
		}
		if target > current.InitialQuantity {
			return store.Invalid("quantity", fmt.Sprintf("would exceed the initial quantity %d", current.InitialQuantity))
		}

		if err := tx.SetBatchQuantity(ctx, batchID, current.Quantity, target); err != nil {
			return err
		}
		delta = target - current.Quantity
		if delta != 0 {
			if err := tx.AddMedicineStock(ctx, current.Medicine, delta); err != nil {
				return err
			}
		}
		batch = *current
		batch.Quantity = target
		batch.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return domain.Batch{}, err
	}

	s.log.WithFields(logrus.Fields{"batch": batch.ID, "mode": req.Mode, "delta": delta}).Info("batch adjusted")
	s.afterCommit(ctx, events.Event{Type: events.StockAdjusted, Key: batch.Medicine, Payload: map[string]any{
		"batch":    batch.ID,
		"mode":     req.Mode,
		"delta":    delta,
		"quantity": batch.Quantity,
		"reason":   req.Reason,
	}}, true)
	s.logAudit(ctx, "batch_adjust", "batch", batch.ID, fmt.Sprintf("mode=%s,qty=%d,delta=%d,reason=%s", req.Mode, req.Quantity, delta, req.Reason))
	return batch, nil
}

// ExpiryReport reports stocked batches expiring within days, expired ones
// included. Reports are cached until the next stock mutation.
func (s *Service) ExpiryReport(ctx context.Context, days int) (domain.ExpiryReport, error) {
	if days < 1 || days > maxExpiryWindowDays {
		return domain.ExpiryReport{}, store.Invalid("days", fmt.Sprintf("must be between 1 and %d", maxExpiryWindowDays))
	}

	cached, ok, err := s.cache.Get(ctx, days)
	if err != nil {
		s.log.WithError(err).Warn("expiry report cache read failed")
	} else if ok {
		return *cached, nil
	}

	now := s.now()
	batches, err := s.repo.ListBatchesExpiringBefore(ctx, now.Add(time.Duration(days)*24*time.Hour))
	if err != nil {
		return domain.ExpiryReport{}, err
	}

	report := domain.ExpiryReport{
		WithinDays:  days,
		GeneratedAt: now,
		Batches:     make([]domain.BatchExpiry, 0, len(batches)),
		Counts:      map[string]int{},
	}
	for _, batch := range batches {
		described := inventory.Describe(batch, now)
		report.Batches = append(report.Batches, described)
		report.Counts[described.ExpiryStatus]++
	}

	if err := s.cache.Set(ctx, days, &report, s.expiryTTL); err != nil {
		s.log.WithError(err).Warn("expiry report cache write failed")
	}
	return report, nil
}
