package port

import (
	"context"
	"time"

	"github.com/rl1809/autoparts-inventory/internal/core/domain"
)

type CacheRepository interface {
	// SetIdempotency claims key, returns false if it was already claimed.
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency drops a claim so the request can be retried.
	ReleaseIdempotency(ctx context.Context, key string) error

	// GetChangeSet returns a cached extraction result; ok is false on a miss.
	GetChangeSet(ctx context.Context, key string) (cs domain.ChangeSet, ok bool, err error)

	SetChangeSet(ctx context.Context, key string, cs domain.ChangeSet, ttl time.Duration) error
}
