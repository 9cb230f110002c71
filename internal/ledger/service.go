package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Service is the single path through which any wallet balance may change.
// It validates inputs, delegates the atomic unit to the store and translates
// duplicate reference ids into the already-processed result.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService builds a ledger service instance.
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// RecordInput captures the data required to post one ledger entry.
type RecordInput struct {
	UserID      string
	Amount      int64
	Type        Type
	Flow        Flow
	ReferenceID string
	Description string
	Metadata    map[string]any
	// Status defaults to SUCCESS, the immediate-consistency path for amounts
	// that are already settled. Settlement flows pass WRONG_VALUE, FAILED or
	// INVALID_FORMAT explicitly.
	Status Status
}

// EnsureWallet provisions the user's wallet if it does not exist yet.
// Idempotent, one wallet per user.
func (s *Service) EnsureWallet(ctx context.Context, userID, currency string) (Wallet, error) {
	if userID == "" {
		return Wallet{}, fmt.Errorf("user id is required")
	}
	return s.store.EnsureWallet(ctx, userID, currency)
}

// GetWallet returns the user's wallet.
func (s *Service) GetWallet(ctx context.Context, userID string) (Wallet, error) {
	return s.store.Wallet(ctx, userID)
}

// RecordTransaction posts one balance-affecting entry atomically. A repeat
// call with the same reference id returns the previously recorded
// transaction together with ErrDuplicateReference, so callers can treat the
// retry as already processed.
func (s *Service) RecordTransaction(ctx context.Context, input RecordInput) (Transaction, error) {
	if input.Amount <= 0 {
		return Transaction{}, fmt.Errorf("amount must be positive")
	}
	if input.ReferenceID == "" {
		return Transaction{}, fmt.Errorf("reference id is required")
	}
	if input.Flow != FlowIn && input.Flow != FlowOut {
		return Transaction{}, fmt.Errorf("flow must be IN or OUT")
	}
	if input.Type == "" {
		return Transaction{}, fmt.Errorf("transaction type is required")
	}
	status := input.Status
	if status == "" {
		status = StatusSuccess
	}
	switch status {
	case StatusSuccess, StatusWrongValue, StatusFailed, StatusInvalidFormat:
	default:
		return Transaction{}, fmt.Errorf("status %s cannot be recorded directly", status)
	}

	tx, err := s.store.Apply(ctx, Entry{
		UserID:      input.UserID,
		Amount:      input.Amount,
		Type:        input.Type,
		Flow:        input.Flow,
		Status:      status,
		ReferenceID: input.ReferenceID,
		Description: input.Description,
		Metadata:    input.Metadata,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateReference) {
			existing, lookupErr := s.store.TransactionByReference(ctx, input.ReferenceID)
			if lookupErr != nil {
				return Transaction{}, fmt.Errorf("lookup duplicate reference %s: %w", input.ReferenceID, lookupErr)
			}
			return existing, ErrDuplicateReference
		}
		return Transaction{}, err
	}

	s.logger.Info("transaction recorded",
		slog.String("transaction_id", tx.ID),
		slog.String("user_id", tx.UserID),
		slog.String("type", string(tx.Type)),
		slog.String("flow", string(tx.Flow)),
		slog.Int64("amount", tx.Amount))
	return tx, nil
}

// RefundTransaction reverses a settled entry by posting a new REFUND row with
// the inverse flow. The original row is never mutated; the refund row's
// reference id is the original transaction id, so the unique index enforces
// at most one refund per original.
func (s *Service) RefundTransaction(ctx context.Context, originalTransactionID, reason string) (Transaction, error) {
	original, err := s.store.Transaction(ctx, originalTransactionID)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			return Transaction{}, ErrInvalidRefundTarget
		}
		return Transaction{}, err
	}
	if original.Type == TypeRefund {
		return Transaction{}, ErrInvalidRefundTarget
	}
	if original.Status != StatusSuccess && original.Status != StatusWrongValue {
		return Transaction{}, ErrInvalidRefundTarget
	}

	inverse := FlowIn
	if original.Flow == FlowIn {
		inverse = FlowOut
	}

	refund, err := s.store.Apply(ctx, Entry{
		UserID:      original.UserID,
		Amount:      original.Amount,
		Type:        TypeRefund,
		Flow:        inverse,
		Status:      StatusSuccess,
		ReferenceID: original.ID,
		Description: fmt.Sprintf("refund of transaction %s", original.ID),
		Metadata:    map[string]any{"reason": reason, "originalTransactionId": original.ID},
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateReference) {
			existing, lookupErr := s.store.TransactionByReference(ctx, original.ID)
			if lookupErr != nil {
				return Transaction{}, fmt.Errorf("lookup existing refund for %s: %w", original.ID, lookupErr)
			}
			return existing, ErrDuplicateReference
		}
		return Transaction{}, err
	}

	s.logger.Info("transaction refunded",
		slog.String("original_id", original.ID),
		slog.String("refund_id", refund.ID),
		slog.String("reason", reason))
	return refund, nil
}

// GetTransaction returns one ledger entry by id.
func (s *Service) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	return s.store.Transaction(ctx, id)
}

// ListTransactions returns a user's history, newest first.
func (s *Service) ListTransactions(ctx context.Context, userID string, filter Filter) ([]Transaction, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	return s.store.Transactions(ctx, userID, filter)
}
