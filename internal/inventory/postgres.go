package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists card codes in PostgreSQL. Claims rely on
// FOR UPDATE SKIP LOCKED so that N concurrent dispenses for the same product
// each lock a different row instead of queueing behind one.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed inventory store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectCode = `SELECT id, product_id, provider_code, value, code, serial,
    expiry_date, status, order_id, import_batch_id, sold_at, created_at
    FROM card_codes`

// ClaimOneAvailable marks the oldest unclaimed AVAILABLE code SOLD and
// attaches the order, in one statement. Rows locked by concurrent claims are
// skipped; no eligible row means out of stock.
func (s *PostgresStore) ClaimOneAvailable(ctx context.Context, productID, orderID string) (CardCode, error) {
	row := s.db.QueryRow(ctx, `UPDATE card_codes
        SET status = 'SOLD', order_id = $2, sold_at = now(), updated_at = now()
        WHERE id = (
            SELECT id FROM card_codes
            WHERE product_id = $1 AND status = 'AVAILABLE'
            ORDER BY created_at
            LIMIT 1
            FOR UPDATE SKIP LOCKED
        )
        RETURNING id, product_id, provider_code, value, code, serial,
            expiry_date, status, order_id, import_batch_id, sold_at, created_at`,
		productID, orderID)
	code, err := scanCode(row)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return CardCode{}, ErrOutOfStock
		}
		return CardCode{}, err
	}
	return code, nil
}

// CodeByOrder returns the code already claimed under an order id, if any.
func (s *PostgresStore) CodeByOrder(ctx context.Context, orderID string) (CardCode, error) {
	row := s.db.QueryRow(ctx, selectCode+` WHERE order_id = $1`, orderID)
	return scanCode(row)
}

// Import inserts a batch of codes as AVAILABLE stock in one round trip.
func (s *PostgresStore) Import(ctx context.Context, productID, batchID string, items []ImportItem) (int, error) {
	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`INSERT INTO card_codes
            (id, product_id, provider_code, value, code, serial, expiry_date, import_batch_id)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.New(), productID, item.ProviderCode, item.Value, item.Code, item.Serial,
			nullTime(item.ExpiryDate), batchID)
	}
	results := s.db.SendBatch(ctx, batch)
	defer results.Close() // nolint:errcheck
	for range items {
		if _, err := results.Exec(); err != nil {
			return 0, fmt.Errorf("import card code: %w", err)
		}
	}
	return len(items), nil
}

// Release moves a non-AVAILABLE code to the given status. Releasing back to
// AVAILABLE clears the order linkage; releasing to ERROR keeps it for manual
// review.
func (s *PostgresStore) Release(ctx context.Context, codeID string, status Status) (CardCode, error) {
	id, err := uuid.Parse(codeID)
	if err != nil {
		return CardCode{}, ErrCodeNotFound
	}
	row := s.db.QueryRow(ctx, `UPDATE card_codes
        SET status = $2,
            order_id = CASE WHEN $2 = 'AVAILABLE' THEN NULL ELSE order_id END,
            sold_at  = CASE WHEN $2 = 'AVAILABLE' THEN NULL ELSE sold_at END,
            updated_at = now()
        WHERE id = $1 AND status <> 'AVAILABLE'
        RETURNING id, product_id, provider_code, value, code, serial,
            expiry_date, status, order_id, import_batch_id, sold_at, created_at`,
		id, status)
	code, err := scanCode(row)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			var exists bool
			if checkErr := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM card_codes WHERE id = $1)`, id).Scan(&exists); checkErr != nil {
				return CardCode{}, checkErr
			}
			if exists {
				return CardCode{}, ErrCodeNotReleasable
			}
			return CardCode{}, ErrCodeNotFound
		}
		return CardCode{}, err
	}
	return code, nil
}

// Stats reports available count and total sold value for a product.
func (s *PostgresStore) Stats(ctx context.Context, productID string) (Stats, error) {
	stats := Stats{ProductID: productID}
	err := s.db.QueryRow(ctx, `SELECT
        COUNT(*) FILTER (WHERE status = 'AVAILABLE'),
        COALESCE(SUM(value) FILTER (WHERE status = 'SOLD'), 0)
        FROM card_codes WHERE product_id = $1`, productID).
		Scan(&stats.Available, &stats.SoldValue)
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func scanCode(row interface{ Scan(dest ...any) error }) (CardCode, error) {
	var c CardCode
	var id uuid.UUID
	var expiry, soldAt *time.Time
	var orderID, batchID *string
	var createdAt time.Time
	if err := row.Scan(&id, &c.ProductID, &c.ProviderCode, &c.Value, &c.Code, &c.Serial,
		&expiry, &c.Status, &orderID, &batchID, &soldAt, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CardCode{}, ErrCodeNotFound
		}
		return CardCode{}, err
	}
	c.ID = id.String()
	c.CreatedAt = createdAt.UTC()
	if expiry != nil {
		c.ExpiryDate = expiry.UTC()
	}
	if soldAt != nil {
		c.SoldAt = soldAt.UTC()
	}
	if orderID != nil {
		c.OrderID = *orderID
	}
	if batchID != nil {
		c.ImportBatchID = *batchID
	}
	return c, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
