package inventory

import (
	"context"
	"errors"
)

var (
	// ErrOutOfStock indicates no claimable code exists for the product: the
	// pool is exhausted, or every remaining candidate is transiently locked
	// by a concurrent dispense. Callers must not charge the buyer.
	ErrOutOfStock = errors.New("out of stock")

	// ErrCodeNotFound indicates no card code matches the identifier.
	ErrCodeNotFound = errors.New("card code not found")

	// ErrCodeNotReleasable indicates the code is not in a state that permits
	// releasing it back to the pool.
	ErrCodeNotReleasable = errors.New("card code not releasable")
)

// Store is the contract implemented by inventory backends. ClaimOneAvailable
// atomically selects the oldest AVAILABLE code for the product, skipping
// rows locked by concurrent claims instead of waiting on them, and marks the
// winner SOLD with the order attached.
type Store interface {
	ClaimOneAvailable(ctx context.Context, productID, orderID string) (CardCode, error)
	CodeByOrder(ctx context.Context, orderID string) (CardCode, error)
	Import(ctx context.Context, productID, batchID string, items []ImportItem) (int, error)
	Release(ctx context.Context, codeID string, status Status) (CardCode, error)
	Stats(ctx context.Context, productID string) (Stats, error)
}
