package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"pharmaledger/backend/internal/domain"
	"pharmaledger/backend/internal/events"
	"pharmaledger/backend/internal/inventory"
	"pharmaledger/backend/internal/store"
	"pharmaledger/backend/internal/xid"
)

func (s *Service) CreateMedicine(ctx context.Context, req domain.MedicineCreateRequest) (domain.Medicine, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.ToLower(strings.TrimSpace(req.Category))

	verr := s.check(req)
	checkMoney(verr, "mrp", req.MRP)
	if req.MaxStock > 0 && req.MinStock > req.MaxStock {
		verr.Add("minStock", "must not exceed maxStock")
	}
	if err := verr.OrNil(); err != nil {
		return domain.Medicine{}, err
	}

	now := s.now()
	medicine := domain.Medicine{
		ID:           xid.New("med"),
		Name:         req.Name,
		GenericName:  strings.TrimSpace(req.GenericName),
		Manufacturer: strings.TrimSpace(req.Manufacturer),
		Category:     req.Category,
		HSNCode:      strings.TrimSpace(req.HSNCode),
		PackSize:     strings.TrimSpace(req.PackSize),
		GSTRate:      req.GSTRate,
		MRP:          req.MRP,
		MinStock:     req.MinStock,
		MaxStock:     req.MaxStock,
		ReorderLevel: req.ReorderLevel,
		Active:       true,
		CreatedBy:    actorName(ctx),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		code, err := nextCode(ctx, tx, domain.SequenceMedicine, domain.PrefixMedicine)
		if err != nil {
			return err
		}
		medicine.Code = code
		return tx.CreateMedicine(ctx, medicine)
	})
	if err != nil {
		return domain.Medicine{}, err
	}

	s.logAudit(ctx, "medicine_create", "medicine", medicine.ID, fmt.Sprintf("code=%s,name=%s,gst=%d", medicine.Code, medicine.Name, medicine.GSTRate))
	return medicine, nil
}

func (s *Service) GetMedicine(ctx context.Context, id string) (domain.Medicine, error) {
	medicine, err := s.repo.GetMedicine(ctx, id)
	if err != nil {
		return domain.Medicine{}, err
	}
	return *medicine, nil
}

func (s *Service) ListMedicines(ctx context.Context, includeInactive bool) ([]domain.Medicine, error) {
	return s.repo.ListMedicines(ctx, includeInactive)
}

func (s *Service) UpdateMedicine(ctx context.Context, id string, req domain.MedicineUpdateRequest) (domain.Medicine, error) {
	verr := s.check(req)
	if req.MRP != nil {
		checkMoney(verr, "mrp", *req.MRP)
	}
	if err := verr.OrNil(); err != nil {
		return domain.Medicine{}, err
	}

	var updated domain.Medicine
	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		existing, err := tx.GetMedicine(ctx, id)
		if err != nil {
			return err
		}
		updated = *existing
		if req.Name != nil {
			updated.Name = strings.TrimSpace(*req.Name)
		}
		if req.GenericName != nil {
			updated.GenericName = strings.TrimSpace(*req.GenericName)
		}
		if req.Manufacturer != nil {
			updated.Manufacturer = strings.TrimSpace(*req.Manufacturer)
		}
		if req.Category != nil {
			updated.Category = strings.ToLower(strings.TrimSpace(*req.Category))
		}
		if req.HSNCode != nil {
			updated.HSNCode = strings.TrimSpace(*req.HSNCode)
		}
		if req.PackSize != nil {
			updated.PackSize = strings.TrimSpace(*req.PackSize)
		}
		if req.GSTRate != nil {
			updated.GSTRate = *req.GSTRate
		}
		if req.MRP != nil {
			updated.MRP = *req.MRP
		}
		if req.MinStock != nil {
			updated.MinStock = *req.MinStock
		}
		if req.MaxStock != nil {
			updated.MaxStock = *req.MaxStock
		}
		if req.ReorderLevel != nil {
			updated.ReorderLevel = *req.ReorderLevel
		}
		if updated.Name == "" {
			return store.Invalid("name", "is required")
		}
		if updated.MaxStock > 0 && updated.MinStock > updated.MaxStock {
			return store.Invalid("minStock", "must not exceed maxStock")
		}
		updated.UpdatedAt = s.now()
		return tx.UpdateMedicine(ctx, updated)
	})
	if err != nil {
		return domain.Medicine{}, err
	}

	s.logAudit(ctx, "medicine_update", "medicine", updated.ID, fmt.Sprintf("name=%s,gst=%d,mrp=%s", updated.Name, updated.GSTRate, updated.MRP))
	return updated, nil
}

// DeactivateMedicine hides a medicine from the catalog. Its batches and stock are untouched.
func (s *Service) DeactivateMedicine(ctx context.Context, id string) (domain.Medicine, error) {
	var updated domain.Medicine
	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		existing, err := tx.GetMedicine(ctx, id)
		if err != nil {
			return err
		}
		updated = *existing
		updated.Active = false
		updated.UpdatedAt = s.now()
		return tx.UpdateMedicine(ctx, updated)
	})
	if err != nil {
		return domain.Medicine{}, err
	}

	s.logAudit(ctx, "medicine_deactivate", "medicine", id, "active=false")
	return updated, nil
}

// DeleteMedicine removes a catalog entry that never held stock. Batches are
// historical cost records, so a medicine with any batch can only be deactivated.
func (s *Service) DeleteMedicine(ctx context.Context, id string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}

	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		medicine, err := tx.GetMedicine(ctx, id)
		if err != nil {
			return err
		}
		if medicine.CurrentStock > 0 {
			return fmt.Errorf("%w: medicine %s still has %d units in stock", store.ErrConflict, medicine.Code, medicine.CurrentStock)
		}
		batches, err := tx.ListBatchesForMedicine(ctx, id)
		if err != nil {
			return err
		}
		if len(batches) > 0 {
			return fmt.Errorf("%w: medicine %s has %d batches, deactivate it instead", store.ErrConflict, medicine.Code, len(batches))
		}
		return tx.DeleteMedicine(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logAudit(ctx, "medicine_delete", "medicine", id, "deleted")
	return nil
}

func (s *Service) ListMedicineBatches(ctx context.Context, medicineID string) ([]domain.BatchExpiry, error) {
	if _, err := s.repo.GetMedicine(ctx, medicineID); err != nil {
		return nil, err
	}
	batches, err := s.repo.ListBatchesForMedicine(ctx, medicineID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]domain.BatchExpiry, 0, len(batches))
	for _, batch := range batches {
		out = append(out, inventory.Describe(batch, now))
	}
	return out, nil
}

// MedicineStock splits physical stock into sellable and expired units.
func (s *Service) MedicineStock(ctx context.Context, medicineID string) (domain.StockSummary, error) {
	medicine, err := s.repo.GetMedicine(ctx, medicineID)
	if err != nil {
		return domain.StockSummary{}, err
	}
	batches, err := s.repo.ListBatchesForMedicine(ctx, medicineID)
	if err != nil {
		return domain.StockSummary{}, err
	}
	return inventory.Summarize(*medicine, batches, s.now()), nil
}

// RecomputeMedicineStock resets the aggregate stock of a medicine to the sum over its
// batches, expired units included.
func (s *Service) RecomputeMedicineStock(ctx context.Context, medicineID string) (domain.StockRecompute, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.StockRecompute{}, err
	}

	var result domain.StockRecompute
	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		result, err = recomputeMedicine(ctx, tx, medicineID)
		return err
	})
	if err != nil {
		return domain.StockRecompute{}, err
	}

	if result.Before != result.After {
		s.log.WithFields(logrus.Fields{"medicine": medicineID, "before": result.Before, "after": result.After}).Warn("medicine stock drift corrected")
		s.afterCommit(ctx, events.Event{Type: events.StockRecomputed, Key: medicineID, Payload: result}, false)
	}
	s.logAudit(ctx, "stock_recompute", "medicine", medicineID, fmt.Sprintf("before=%d,after=%d", result.Before, result.After))
	return result, nil
}

// RecomputeAllStock recomputes every medicine and returns only those that drifted.
func (s *Service) RecomputeAllStock(ctx context.Context) ([]domain.StockRecompute, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}

	medicines, err := s.repo.ListMedicines(ctx, true)
	if err != nil {
		return nil, err
	}

	drifted := make([]domain.StockRecompute, 0)
	for _, medicine := range medicines {
		var result domain.StockRecompute
		err := s.repo.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			result, err = recomputeMedicine(ctx, tx, medicine.ID)
			return err
		})
		if err != nil {
			return nil, err
		}
		if result.Before != result.After {
			drifted = append(drifted, result)
		}
	}

	if len(drifted) > 0 {
		s.log.WithField("medicines", len(drifted)).Warn("medicine stock drift corrected")
		s.afterCommit(ctx, events.Event{Type: events.StockRecomputed, Key: "all", Payload: drifted}, false)
	}
	s.logAudit(ctx, "stock_recompute_all", "medicine", "*", fmt.Sprintf("checked=%d,drifted=%d", len(medicines), len(drifted)))
	return drifted, nil
}

// recomputeMedicine holds the medicine row before summing its batches so a
// concurrent stock delta lands after the overwrite instead of under it.
func recomputeMedicine(ctx context.Context, tx store.Tx, medicineID string) (domain.StockRecompute, error) {
	medicine, err := tx.LockMedicine(ctx, medicineID)
	if err != nil {
		return domain.StockRecompute{}, err
	}
	batches, err := tx.ListBatchesForMedicine(ctx, medicineID)
	if err != nil {
		return domain.StockRecompute{}, err
	}
	total := inventory.TotalQuantity(batches)
	if total != medicine.CurrentStock {
		if err := tx.SetMedicineStock(ctx, medicineID, total); err != nil {
			return domain.StockRecompute{}, err
		}
	}
	return domain.StockRecompute{Medicine: medicineID, Before: medicine.CurrentStock, After: total}, nil
}
