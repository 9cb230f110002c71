package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgUniqueViolation  = "23505"
	pgLockNotAvailable = "55P03"
)

// PostgresStore persists wallets and transactions in PostgreSQL. The wallet
// row lock (SELECT ... FOR UPDATE) serializes mutations per user while
// leaving other users fully parallel.
type PostgresStore struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPostgresStore constructs a Postgres-backed ledger store. lockTimeout
// bounds the wait for the wallet row lock; past it Apply fails ErrWalletBusy.
func NewPostgresStore(db *pgxpool.Pool, lockTimeout time.Duration) *PostgresStore {
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	return &PostgresStore{db: db, lockTimeout: lockTimeout}
}

// EnsureWallet creates the user's wallet if missing and returns it. Safe to
// call repeatedly during onboarding.
func (s *PostgresStore) EnsureWallet(ctx context.Context, userID, currency string) (Wallet, error) {
	if currency == "" {
		currency = "VND"
	}
	_, err := s.db.Exec(ctx, `INSERT INTO wallets (id, user_id, currency) VALUES ($1, $2, $3)
        ON CONFLICT (user_id) DO NOTHING`, uuid.New(), userID, currency)
	if err != nil {
		return Wallet{}, fmt.Errorf("ensure wallet: %w", err)
	}
	return s.Wallet(ctx, userID)
}

// Wallet fetches the wallet for a user.
func (s *PostgresStore) Wallet(ctx context.Context, userID string) (Wallet, error) {
	row := s.db.QueryRow(ctx, `SELECT id, user_id, balance, frozen_balance, currency, is_active, updated_at
        FROM wallets WHERE user_id = $1`, userID)
	return scanWallet(row)
}

// Apply locks the wallet row, validates the delta against the snapshot,
// persists the new balance and inserts the ledger row, all in one database
// transaction.
func (s *PostgresStore) Apply(ctx context.Context, entry Entry) (Transaction, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
		return Transaction{}, fmt.Errorf("set lock timeout: %w", err)
	}

	row := tx.QueryRow(ctx, `SELECT id, user_id, balance, frozen_balance, currency, is_active, updated_at
        FROM wallets WHERE user_id = $1 FOR UPDATE`, entry.UserID)
	wallet, err := scanWallet(row)
	if err != nil {
		if pgCode(err) == pgLockNotAvailable {
			return Transaction{}, ErrWalletBusy
		}
		return Transaction{}, err
	}
	if !wallet.IsActive {
		return Transaction{}, ErrWalletInactive
	}

	balanceBefore := wallet.Balance
	balanceAfter := balanceBefore
	if entry.Status.AffectsBalance() {
		if entry.Flow == FlowOut {
			if balanceBefore < entry.Amount {
				return Transaction{}, ErrInsufficientBalance
			}
			balanceAfter = balanceBefore - entry.Amount
		} else {
			balanceAfter = balanceBefore + entry.Amount
		}
		if _, err := tx.Exec(ctx, `UPDATE wallets SET balance = $1, updated_at = now() WHERE id = $2`,
			balanceAfter, wallet.ID); err != nil {
			return Transaction{}, fmt.Errorf("update wallet balance: %w", err)
		}
	}

	var metadata []byte
	if entry.Metadata != nil {
		metadata, err = json.Marshal(entry.Metadata)
		if err != nil {
			return Transaction{}, fmt.Errorf("encode metadata: %w", err)
		}
	}

	txID := uuid.New()
	var createdAt time.Time
	err = tx.QueryRow(ctx, `INSERT INTO transactions
        (id, user_id, amount, type, flow, status, balance_before, balance_after, reference_id, description, metadata)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING created_at`,
		txID, entry.UserID, entry.Amount, entry.Type, entry.Flow, entry.Status,
		balanceBefore, balanceAfter, entry.ReferenceID, entry.Description, metadata).Scan(&createdAt)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return Transaction{}, ErrDuplicateReference
		}
		return Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}

	return Transaction{
		ID:            txID.String(),
		UserID:        entry.UserID,
		Amount:        entry.Amount,
		Type:          entry.Type,
		Flow:          entry.Flow,
		Status:        entry.Status,
		BalanceBefore: balanceBefore,
		BalanceAfter:  balanceAfter,
		ReferenceID:   entry.ReferenceID,
		Description:   entry.Description,
		Metadata:      entry.Metadata,
		CreatedAt:     createdAt.UTC(),
	}, nil
}

// Transaction fetches one ledger entry by id.
func (s *PostgresStore) Transaction(ctx context.Context, id string) (Transaction, error) {
	txID, err := uuid.Parse(id)
	if err != nil {
		return Transaction{}, ErrTransactionNotFound
	}
	row := s.db.QueryRow(ctx, selectTransaction+` WHERE id = $1`, txID)
	return scanTransaction(row)
}

// TransactionByReference fetches the entry recorded under a reference id.
func (s *PostgresStore) TransactionByReference(ctx context.Context, referenceID string) (Transaction, error) {
	row := s.db.QueryRow(ctx, selectTransaction+` WHERE reference_id = $1`, referenceID)
	return scanTransaction(row)
}

// Transactions lists a user's history, newest first.
func (s *PostgresStore) Transactions(ctx context.Context, userID string, filter Filter) ([]Transaction, error) {
	query := selectTransaction + ` WHERE user_id = $1`
	args := []any{userID}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !filter.Until.IsZero() {
		args = append(args, filter.Until)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

const selectTransaction = `SELECT id, user_id, amount, type, flow, status,
    balance_before, balance_after, reference_id, description, metadata, created_at
    FROM transactions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWallet(row rowScanner) (Wallet, error) {
	var w Wallet
	var id uuid.UUID
	var updatedAt time.Time
	if err := row.Scan(&id, &w.UserID, &w.Balance, &w.FrozenBalance, &w.Currency, &w.IsActive, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, err
	}
	w.ID = id.String()
	w.UpdatedAt = updatedAt.UTC()
	return w, nil
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var t Transaction
	var id uuid.UUID
	var metadata []byte
	var createdAt time.Time
	if err := row.Scan(&id, &t.UserID, &t.Amount, &t.Type, &t.Flow, &t.Status,
		&t.BalanceBefore, &t.BalanceAfter, &t.ReferenceID, &t.Description, &metadata, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	t.ID = id.String()
	t.CreatedAt = createdAt.UTC()
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
			return Transaction{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return t, nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
