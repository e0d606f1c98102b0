package cache

import (
	"context"
	"time"

	"pharmaledger/backend/internal/domain"
)

// ExpiryCache holds computed expiry reports keyed by their window in days.
type ExpiryCache interface {
	Get(ctx context.Context, withinDays int) (*domain.ExpiryReport, bool, error)
	Set(ctx context.Context, withinDays int, report *domain.ExpiryReport, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type NoopExpiryCache struct{}

func (NoopExpiryCache) Get(_ context.Context, _ int) (*domain.ExpiryReport, bool, error) {
	return nil, false, nil
}

func (NoopExpiryCache) Set(_ context.Context, _ int, _ *domain.ExpiryReport, _ time.Duration) error {
	return nil
}

func (NoopExpiryCache) Invalidate(_ context.Context) error {
	return nil
}
