// Package inventory holds the batch allocation and expiry rules shared by
// every store implementation.
package inventory

import (
	"sort"
	"time"

	"pharmaledger/backend/internal/domain"
)

const day = 24 * time.Hour

// Expiry bucket thresholds, in days until expiry.
const (
	CriticalDays  = 30
	WarningDays   = 60
	AttentionDays = 90
)

// DaysUntilExpiry rounds the remaining time up to whole days.
func DaysUntilExpiry(expiry time.Time, now time.Time) int {
	remaining := expiry.Sub(now)
	days := int(remaining / day)
	if remaining%day > 0 {
		days++
	}
	return days
}

// Classify returns the days left and the expiry bucket for a batch.
func Classify(expiry time.Time, now time.Time) (int, string) {
	days := DaysUntilExpiry(expiry, now)
	switch {
	case days <= 0:
		return days, domain.ExpiryExpired
	case days <= CriticalDays:
		return days, domain.ExpiryCritical
	case days <= WarningDays:
		return days, domain.ExpiryWarning
	case days <= AttentionDays:
		return days, domain.ExpiryAttention
	default:
		return days, domain.ExpiryGood
	}
}

// Describe annotates a batch with its expiry status.
func Describe(batch domain.Batch, now time.Time) domain.BatchExpiry {
	batch.IsExpired = batch.ExpiredAt(now)
	days, status := Classify(batch.ExpiryDate, now)
	return domain.BatchExpiry{Batch: batch, DaysUntilExpiry: days, ExpiryStatus: status}
}

// SortFIFO orders batches earliest expiry first, ties broken by receipt order.
func SortFIFO(batches []domain.Batch) {
	sort.SliceStable(batches, func(i, j int) bool {
		if !batches[i].ExpiryDate.Equal(batches[j].ExpiryDate) {
			return batches[i].ExpiryDate.Before(batches[j].ExpiryDate)
		}
		return batches[i].CreatedAt.Before(batches[j].CreatedAt)
	})
}

// Allocate plans which batches cover required units without mutating them.
// Expired and empty batches are skipped. Any uncovered remainder is reported
// as Shortfall.
func Allocate(medicineID string, batches []domain.Batch, required int, now time.Time) domain.Allocation {
	candidates := make([]domain.Batch, 0, len(batches))
	for _, batch := range batches {
		if batch.Quantity <= 0 || batch.ExpiredAt(now) {
			continue
		}
		candidates = append(candidates, batch)
	}
	SortFIFO(candidates)

	result := domain.Allocation{
		Medicine:    medicineID,
		Requested:   required,
		Allocations: make([]domain.BatchAllocation, 0, len(candidates)),
	}
	remaining := required
	for _, batch := range candidates {
		if remaining <= 0 {
			break
		}
		take := min(batch.Quantity, remaining)
		result.Allocations = append(result.Allocations, domain.BatchAllocation{
			Batch:        batch.ID,
			BatchNumber:  batch.BatchNumber,
			AllocatedQty: take,
			ExpiryDate:   batch.ExpiryDate,
			SellingPrice: batch.SellingPrice,
			MRP:          batch.MRP,
		})
		result.TotalAllocated += take
		remaining -= take
	}
	if remaining > 0 {
		result.Shortfall = remaining
	}
	return result
}

// Summarize splits physical stock into sellable and expired units.
func Summarize(medicine domain.Medicine, batches []domain.Batch, now time.Time) domain.StockSummary {
	summary := domain.StockSummary{
		Medicine:     medicine.ID,
		CurrentStock: medicine.CurrentStock,
		BatchCount:   len(batches),
	}
	for _, batch := range batches {
		summary.TotalQuantity += batch.Quantity
		if batch.ExpiredAt(now) {
			summary.ExpiredQuantity += batch.Quantity
		} else {
			summary.SellableQuantity += batch.Quantity
		}
	}
	summary.BelowReorder = medicine.ReorderLevel > 0 && summary.SellableQuantity <= medicine.ReorderLevel
	return summary
}

// TotalQuantity counts all physical units, expired ones included.
func TotalQuantity(batches []domain.Batch) int {
	total := 0
	for _, batch := range batches {
		total += batch.Quantity
	}
	return total
}
