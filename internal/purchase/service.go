package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/doithe/doithe/internal/inventory"
	"github.com/doithe/doithe/internal/ledger"
	"github.com/doithe/doithe/internal/notification"
)

// Service composes the buy-card saga: dispense a code from inventory, then
// charge the buyer through the ledger. The two steps are separate atomic
// units; on a failed charge the claimed code is released back to the pool.
// Both steps are keyed by the order id, so a caller retry after a partial
// failure is reconciled rather than double-applied.
type Service struct {
	inventory *inventory.Service
	ledger    *ledger.Service
	notifier  notification.Notifier
	logger    *slog.Logger
}

// NewService builds a purchase service.
func NewService(inventorySvc *inventory.Service, ledgerSvc *ledger.Service, notifier notification.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{inventory: inventorySvc, ledger: ledgerSvc, notifier: notifier, logger: logger}
}

// Input captures one buy-card request. Price is the final settled amount to
// charge; pricing-matrix computation happens upstream.
type Input struct {
	UserID    string
	ProductID string
	OrderID   string
	Price     int64
}

// Result is the outcome of a completed purchase.
type Result struct {
	Code        inventory.CardCode
	Transaction ledger.Transaction
	CompletedAt time.Time
}

// Purchase dispenses one code and charges the buyer. Out of stock never
// charges; a charge rejection releases the code; a duplicate order returns
// the already-completed purchase.
func (s *Service) Purchase(ctx context.Context, input Input) (Result, error) {
	if input.UserID == "" {
		return Result{}, fmt.Errorf("user id is required")
	}
	if input.Price <= 0 {
		return Result{}, fmt.Errorf("price must be positive")
	}
	if input.OrderID == "" {
		input.OrderID = uuid.NewString()
	}

	code, err := s.inventory.Dispense(ctx, input.ProductID, input.OrderID)
	if err != nil {
		return Result{}, err
	}

	tx, err := s.ledger.RecordTransaction(ctx, ledger.RecordInput{
		UserID:      input.UserID,
		Amount:      input.Price,
		Type:        ledger.TypeCardPurchase,
		Flow:        ledger.FlowOut,
		ReferenceID: input.OrderID,
		Description: fmt.Sprintf("card purchase %s %d", code.ProviderCode, code.Value),
		Metadata: map[string]any{
			"productId": input.ProductID,
			"codeId":    code.ID,
			"serial":    code.Serial,
		},
	})
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicateReference) {
			// The charge already went through on an earlier attempt; the
			// dispensed code is the one bound to this order.
			return Result{Code: code, Transaction: tx, CompletedAt: tx.CreatedAt}, nil
		}
		s.compensate(ctx, code.ID, input.OrderID, err)
		return Result{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindCardPurchase,
			Destination: input.UserID,
			Body:        fmt.Sprintf("You bought a %s %d card", code.ProviderCode, code.Value),
		})
	}

	return Result{Code: code, Transaction: tx, CompletedAt: time.Now().UTC()}, nil
}

// compensate returns the claimed code to the pool after a failed charge. A
// failed release leaves the code SOLD against an unpaid order; that is
// surfaced loudly for manual review rather than retried here.
func (s *Service) compensate(ctx context.Context, codeID, orderID string, cause error) {
	if _, err := s.inventory.Release(ctx, codeID, inventory.StatusAvailable); err != nil {
		s.logger.Error("purchase compensation failed",
			slog.String("code_id", codeID),
			slog.String("order_id", orderID),
			slog.Any("charge_error", cause),
			slog.Any("release_error", err))
		return
	}
	s.logger.Warn("purchase rolled back",
		slog.String("code_id", codeID),
		slog.String("order_id", orderID),
		slog.Any("cause", cause))
}
