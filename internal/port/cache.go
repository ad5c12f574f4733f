package port

import (
	"context"

	"github.com/akeller/storefront/internal/core/domain"
)

type CacheStore interface {
	// SetIdempotency sets a key for idempotency check, returns false if it
	// already exists.
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency deletes a key so the caller may retry with it.
	ReleaseIdempotency(ctx context.Context, key string) error

	// RecordPlacement appends a committed placement to the capped
	// recent-placements feed.
	RecordPlacement(ctx context.Context, ev domain.OrderPlaced) error

	// RecentPlacements returns the feed newest first.
	RecentPlacements(ctx context.Context) ([]domain.OrderPlaced, error)
}
