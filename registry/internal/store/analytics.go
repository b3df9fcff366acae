package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// IncrementCounter bumps a named analytics counter by delta, creating the
// row on first use.
func (s *Store) IncrementCounter(ctx context.Context, metric string, delta int64) error {
	now := time.Now().UnixMilli()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO analytics (metric, value, updated_at) VALUES (?,?,?)
		ON CONFLICT(metric) DO UPDATE SET
			value = value + excluded.value,
			updated_at = excluded.updated_at`,
		metric, delta, now)
	return err
}

// GetCounter returns the current value of a counter, zero when absent.
func (s *Store) GetCounter(ctx context.Context, metric string) (int64, error) {
	var v int64
	err := s.DB.QueryRowContext(ctx,
		`SELECT value FROM analytics WHERE metric = ?`, metric).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return v, err
}
