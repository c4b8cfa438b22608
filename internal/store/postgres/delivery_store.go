package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predictstack/indexer/internal/domain"
)

// DeliveryStore implements domain.DeliveryStore using PostgreSQL.
type DeliveryStore struct {
	pool *pgxpool.Pool
}

// NewDeliveryStore creates a DeliveryStore backed by the given pool.
func NewDeliveryStore(pool *pgxpool.Pool) *DeliveryStore {
	return &DeliveryStore{pool: pool}
}

// Insert appends one delivery. The payload is stored verbatim as JSONB.
func (s *DeliveryStore) Insert(ctx context.Context, d domain.Delivery) error {
	const query = `
		INSERT INTO deliveries (id, received_at, blocks, rollbacks, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`
	if _, err := s.pool.Exec(ctx, query, d.ID, d.ReceivedAt, d.Blocks, d.Rollbacks, d.Payload); err != nil {
		return fmt.Errorf("postgres: insert delivery %s: %w", d.ID, err)
	}
	return nil
}

// ListBefore returns deliveries received strictly before the cutoff, oldest
// first. The archiver offloads these to cold storage.
func (s *DeliveryStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Delivery, error) {
	const query = `
		SELECT id, received_at, blocks, rollbacks, payload
		FROM deliveries
		WHERE received_at < $1
		ORDER BY received_at ASC`
	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list deliveries before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()

	var out []domain.Delivery
	for rows.Next() {
		var d domain.Delivery
		if err := rows.Scan(&d.ID, &d.ReceivedAt, &d.Blocks, &d.Rollbacks, &d.Payload); err != nil {
			return nil, fmt.Errorf("postgres: scan delivery: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate deliveries: %w", err)
	}
	return out, nil
}

// DeleteBefore removes deliveries received strictly before the cutoff and
// returns the number deleted.
func (s *DeliveryStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM deliveries WHERE received_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete deliveries before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.DeliveryStore = (*DeliveryStore)(nil)
