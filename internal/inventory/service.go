package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Service hands out card codes under concurrent demand and manages the pool.
// A nil sealer stores codes in the clear (development only).
type Service struct {
	store  Store
	sealer *Sealer
	logger *slog.Logger
}

// NewService builds an inventory service instance.
func NewService(store Store, sealer *Sealer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, sealer: sealer, logger: logger}
}

// Dispense claims exactly one AVAILABLE code for the product, oldest stock
// first, and binds it to the order. Retrying with the same order id returns
// the already-claimed code instead of claiming a second one.
func (s *Service) Dispense(ctx context.Context, productID, orderID string) (CardCode, error) {
	if productID == "" {
		return CardCode{}, fmt.Errorf("product id is required")
	}
	if orderID == "" {
		return CardCode{}, fmt.Errorf("order id is required")
	}

	if existing, err := s.store.CodeByOrder(ctx, orderID); err == nil {
		return s.open(existing)
	} else if !errors.Is(err, ErrCodeNotFound) {
		return CardCode{}, err
	}

	code, err := s.store.ClaimOneAvailable(ctx, productID, orderID)
	if err != nil {
		if errors.Is(err, ErrOutOfStock) {
			return CardCode{}, ErrOutOfStock
		}
		return CardCode{}, err
	}

	s.logger.Info("card code dispensed",
		slog.String("code_id", code.ID),
		slog.String("product_id", productID),
		slog.String("order_id", orderID))
	return s.open(code)
}

// ImportResult reports the outcome of a bulk import.
type ImportResult struct {
	BatchID string
	Count   int
}

// ImportBatch loads a batch of codes as AVAILABLE stock under a fresh batch
// id. Codes are sealed before they touch the store.
func (s *Service) ImportBatch(ctx context.Context, productID string, items []ImportItem) (ImportResult, error) {
	if productID == "" {
		return ImportResult{}, fmt.Errorf("product id is required")
	}
	if len(items) == 0 {
		return ImportResult{}, fmt.Errorf("import batch is empty")
	}
	sealed := make([]ImportItem, len(items))
	for i, item := range items {
		if item.Code == "" || item.Serial == "" {
			return ImportResult{}, fmt.Errorf("item %d: code and serial are required", i)
		}
		if item.Value <= 0 {
			return ImportResult{}, fmt.Errorf("item %d: value must be positive", i)
		}
		sealed[i] = item
		if s.sealer != nil {
			enc, err := s.sealer.Seal(item.Code)
			if err != nil {
				return ImportResult{}, fmt.Errorf("seal item %d: %w", i, err)
			}
			sealed[i].Code = enc
		}
	}

	batchID := uuid.NewString()
	count, err := s.store.Import(ctx, productID, batchID, sealed)
	if err != nil {
		return ImportResult{}, err
	}

	s.logger.Info("card codes imported",
		slog.String("product_id", productID),
		slog.String("batch_id", batchID),
		slog.Int("count", count))
	return ImportResult{BatchID: batchID, Count: count}, nil
}

// Release returns a claimed code to the pool (AVAILABLE) or parks it for
// manual review (ERROR, HELD). Used by purchase compensation and defect
// handling.
func (s *Service) Release(ctx context.Context, codeID string, status Status) (CardCode, error) {
	switch status {
	case StatusAvailable, StatusError, StatusHeld:
	default:
		return CardCode{}, fmt.Errorf("cannot release to status %s", status)
	}
	code, err := s.store.Release(ctx, codeID, status)
	if err != nil {
		return CardCode{}, err
	}
	s.logger.Info("card code released",
		slog.String("code_id", codeID),
		slog.String("status", string(status)))
	return code, nil
}

// Stats reports pool numbers for a product.
func (s *Service) Stats(ctx context.Context, productID string) (Stats, error) {
	return s.store.Stats(ctx, productID)
}

func (s *Service) open(code CardCode) (CardCode, error) {
	if s.sealer == nil {
		return code, nil
	}
	plain, err := s.sealer.Open(code.Code)
	if err != nil {
		return CardCode{}, fmt.Errorf("open code %s: %w", code.ID, err)
	}
	code.Code = plain
	return code, nil
}
