package port

import (
	"context"

	"github.com/rl1809/autoparts-inventory/internal/core/domain"
)

type PartRepository interface {
	// FindByTriple returns the row matching t exactly, or nil when none exists.
	FindByTriple(ctx context.Context, t domain.Triple) (*domain.Part, error)

	// AdjustQuantity atomically adds delta to the row's quantity. It returns
	// false without touching the row when the result would be negative or the
	// row no longer exists.
	AdjustQuantity(ctx context.Context, id int64, delta int) (bool, error)

	// CreatePart inserts a new row and returns its id. Returns
	// domain.ErrDuplicatePart when the triple is already taken.
	CreatePart(ctx context.Context, part domain.Part) (int64, error)

	ListParts(ctx context.Context) ([]domain.Part, error)

	// UpdatePart overwrites every field of the row with part.ID.
	UpdatePart(ctx context.Context, part domain.Part) error

	// DeleteParts removes the given rows and reports how many existed.
	DeleteParts(ctx context.Context, ids []int64) (int64, error)
}

// TxRunner runs fn against a repository bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(repo PartRepository) error) error
}
