package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrWalletNotFound indicates no wallet exists for the user. Fatal for the
	// requested operation, never retried.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrWalletInactive indicates the wallet has been deactivated and no
	// longer accepts balance mutations.
	ErrWalletInactive = errors.New("wallet inactive")

	// ErrInsufficientBalance is the business rejection for an OUT entry larger
	// than the available balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrDuplicateReference indicates the reference id was already processed.
	// Callers treat it as "already done" and use the returned transaction.
	ErrDuplicateReference = errors.New("duplicate reference id")

	// ErrWalletBusy indicates the wallet row lock could not be acquired within
	// the configured deadline. Safe to retry with backoff.
	ErrWalletBusy = errors.New("wallet busy")

	// ErrInvalidRefundTarget indicates the refund target does not exist or is
	// not in a refundable status.
	ErrInvalidRefundTarget = errors.New("invalid refund target")

	// ErrTransactionNotFound indicates no ledger entry matches the id.
	ErrTransactionNotFound = errors.New("transaction not found")
)

// Entry is the input to the atomic apply primitive: one balance delta plus
// the ledger row documenting it. Both the settlement path and the refund
// path build an Entry and apply it exactly once per atomic unit, never
// nested.
type Entry struct {
	UserID      string
	Amount      int64
	Type        Type
	Flow        Flow
	Status      Status
	ReferenceID string
	Description string
	Metadata    map[string]any
}

// Filter narrows a transaction history listing. Zero fields are ignored.
type Filter struct {
	Type   Type
	Status Status
	Since  time.Time
	Until  time.Time
	Limit  int
}

// Store is the contract implemented by ledger backends (Postgres, in-memory).
// Apply executes the whole mutate-wallet-plus-append-entry unit atomically:
// either both the balance change and the row commit, or neither does.
type Store interface {
	EnsureWallet(ctx context.Context, userID, currency string) (Wallet, error)
	Wallet(ctx context.Context, userID string) (Wallet, error)
	Apply(ctx context.Context, entry Entry) (Transaction, error)
	Transaction(ctx context.Context, id string) (Transaction, error)
	TransactionByReference(ctx context.Context, referenceID string) (Transaction, error)
	Transactions(ctx context.Context, userID string, filter Filter) ([]Transaction, error)
}
