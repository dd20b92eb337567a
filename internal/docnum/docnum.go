// Package docnum issues gapless document numbers from a database-backed
// series. Concurrent callers serialise on the series row, so two documents
// can never share a number.
package docnum

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Source draws the next value for a prefix and period.
type Source interface {
	NextValue(ctx context.Context, prefix string, period int) (int64, error)
}

// Service formats document numbers as PREFIX-YYYY-NNNNNN, one series per
// prefix and calendar year.
type Service struct {
	source Source
	now    func() time.Time
}

// NewService constructs the service.
func NewService(source Source) *Service {
	return &Service{source: source, now: time.Now}
}

// Next returns the next number for prefix in the current year's series.
func (s *Service) Next(ctx context.Context, prefix string) (string, error) {
	year := s.now().UTC().Year()
	value, err := s.source.NextValue(ctx, prefix, year)
	if err != nil {
		return "", fmt.Errorf("docnum: next %s: %w", prefix, err)
	}
	return fmt.Sprintf("%s-%d-%06d", prefix, year, value), nil
}

// PgSource stores series counters in the number_series table.
type PgSource struct {
	pool *pgxpool.Pool
}

// NewPgSource constructs the store.
func NewPgSource(pool *pgxpool.Pool) *PgSource {
	return &PgSource{pool: pool}
}

// NextValue atomically increments and returns the counter for one series.
// The upsert takes a row lock on the series, so concurrent drawers queue
// rather than read the same value.
func (s *PgSource) NextValue(ctx context.Context, prefix string, period int) (int64, error) {
	var value int64
	err := s.pool.QueryRow(ctx, `INSERT INTO number_series (prefix, period, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (prefix, period)
		DO UPDATE SET last_value = number_series.last_value + 1
		RETURNING last_value`, prefix, period).Scan(&value)
	if err != nil {
		return 0, err
	}
	return value, nil
}
