package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmaledger/backend/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAllocateSkipsExpiredAndConsumesEarliestExpiryFirst(t *testing.T) {
	now := date(2024, time.December, 15)
	received := date(2024, time.June, 1)
	batches := []domain.Batch{
		{ID: "b-jun", BatchNumber: "JUN", ExpiryDate: date(2025, time.June, 30), Quantity: 5, CreatedAt: received},
		{ID: "b-dec", BatchNumber: "DEC", ExpiryDate: date(2024, time.December, 1), Quantity: 5, CreatedAt: received},
		{ID: "b-jan", BatchNumber: "JAN", ExpiryDate: date(2025, time.January, 31), Quantity: 5, CreatedAt: received},
	}

	alloc := Allocate("med-1", batches, 7, now)

	require.Len(t, alloc.Allocations, 2)
	assert.Equal(t, "b-jan", alloc.Allocations[0].Batch)
	assert.Equal(t, 5, alloc.Allocations[0].AllocatedQty)
	assert.Equal(t, "b-jun", alloc.Allocations[1].Batch)
	assert.Equal(t, 2, alloc.Allocations[1].AllocatedQty)
	assert.Equal(t, 7, alloc.TotalAllocated)
	assert.Equal(t, 0, alloc.Shortfall)

	// planning never touches quantities
	assert.Equal(t, 5, batches[0].Quantity)
	assert.Equal(t, 5, batches[2].Quantity)
}

func TestAllocateReportsShortfall(t *testing.T) {
	now := date(2025, time.January, 1)
	batches := []domain.Batch{
		{ID: "a", ExpiryDate: date(2026, time.January, 1), Quantity: 3},
		{ID: "b", ExpiryDate: date(2026, time.February, 1), Quantity: 0},
	}

	alloc := Allocate("med-1", batches, 10, now)

	assert.Equal(t, 3, alloc.TotalAllocated)
	assert.Equal(t, 7, alloc.Shortfall)
	require.Len(t, alloc.Allocations, 1)
}

func TestAllocateBreaksExpiryTiesByReceiptOrder(t *testing.T) {
	now := date(2025, time.January, 1)
	expiry := date(2026, time.January, 1)
	batches := []domain.Batch{
		{ID: "later", ExpiryDate: expiry, Quantity: 4, CreatedAt: date(2024, time.May, 2)},
		{ID: "earlier", ExpiryDate: expiry, Quantity: 4, CreatedAt: date(2024, time.May, 1)},
	}

	alloc := Allocate("med-1", batches, 5, now)

	require.Len(t, alloc.Allocations, 2)
	assert.Equal(t, "earlier", alloc.Allocations[0].Batch)
	assert.Equal(t, 4, alloc.Allocations[0].AllocatedQty)
	assert.Equal(t, "later", alloc.Allocations[1].Batch)
	assert.Equal(t, 1, alloc.Allocations[1].AllocatedQty)
}

func TestClassifyThresholds(t *testing.T) {
	now := date(2025, time.January, 1)
	cases := []struct {
		expiry time.Time
		days   int
		status string
	}{
		{now.Add(-48 * time.Hour), -2, domain.ExpiryExpired},
		{now, 0, domain.ExpiryExpired},
		{now.Add(time.Hour), 1, domain.ExpiryCritical},
		{now.AddDate(0, 0, 30), 30, domain.ExpiryCritical},
		{now.AddDate(0, 0, 30).Add(time.Minute), 31, domain.ExpiryWarning},
		{now.AddDate(0, 0, 60), 60, domain.ExpiryWarning},
		{now.AddDate(0, 0, 61), 61, domain.ExpiryAttention},
		{now.AddDate(0, 0, 90), 90, domain.ExpiryAttention},
		{now.AddDate(0, 0, 91), 91, domain.ExpiryGood},
	}
	for _, tc := range cases {
		days, status := Classify(tc.expiry, now)
		assert.Equal(t, tc.days, days, "days for %s", tc.expiry)
		assert.Equal(t, tc.status, status, "status for %s", tc.expiry)
	}
}

func TestSummarizeSeparatesExpiredUnits(t *testing.T) {
	now := date(2025, time.January, 1)
	medicine := domain.Medicine{ID: "med-1", CurrentStock: 15, ReorderLevel: 12}
	batches := []domain.Batch{
		{ID: "a", ExpiryDate: date(2024, time.December, 1), Quantity: 5},
		{ID: "b", ExpiryDate: date(2026, time.December, 1), Quantity: 10},
	}

	summary := Summarize(medicine, batches, now)

	assert.Equal(t, 15, summary.TotalQuantity)
	assert.Equal(t, 10, summary.SellableQuantity)
	assert.Equal(t, 5, summary.ExpiredQuantity)
	assert.True(t, summary.BelowReorder)
	assert.Equal(t, 15, TotalQuantity(batches))
}
