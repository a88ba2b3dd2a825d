package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/SuzukiTakamasa/solana-trading-bot/internal/domain"
	"github.com/SuzukiTakamasa/solana-trading-bot/internal/storage"
)

// PriceStore implements storage.PriceStore using PostgreSQL.
type PriceStore struct {
	pool *Pool
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(pool *Pool) *PriceStore {
	return &PriceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// Append adds a price point. Re-appending an existing (observed_at, source)
// pair is a no-op: history is never rewritten.
func (s *PriceStore) Append(ctx context.Context, p *domain.PricePoint) error {
	if p == nil || p.Source == "" || p.Timestamp.IsZero() {
		return storage.ErrInvalidInput
	}
	if err := domain.ValidatePrice(p.Price); err != nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO price_points (observed_at, source, price)
		VALUES ($1, $2, $3)
		ON CONFLICT (observed_at, source) DO NOTHING
	`

	_, err := s.pool.Exec(ctx, query, p.Timestamp.UTC(), p.Source, p.Price.String())
	if err != nil {
		return fmt.Errorf("append price point: %w", err)
	}
	return nil
}

// GetSince retrieves points observed at or after since, ordered ASC.
func (s *PriceStore) GetSince(ctx context.Context, since time.Time) ([]*domain.PricePoint, error) {
	query := `
		SELECT observed_at, source, price::text
		FROM price_points
		WHERE observed_at >= $1
		ORDER BY observed_at ASC
	`

	rows, err := s.pool.Query(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("get price points since: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// Latest retrieves the most recent point.
func (s *PriceStore) Latest(ctx context.Context) (*domain.PricePoint, error) {
	query := `
		SELECT observed_at, source, price::text
		FROM price_points
		ORDER BY observed_at DESC
		LIMIT 1
	`

	var (
		p        domain.PricePoint
		priceStr string
	)
	err := s.pool.QueryRow(ctx, query).Scan(&p.Timestamp, &p.Source, &priceStr)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest price point: %w", err)
	}

	p.Price, err = decimal.NewFromString(priceStr)
	if err != nil {
		return nil, fmt.Errorf("parse price %q: %w", priceStr, err)
	}
	return &p, nil
}

// DeleteOlderThan removes points observed before cutoff.
func (s *PriceStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM price_points WHERE observed_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete old price points: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanPricePoints scans multiple rows into a slice of PricePoint.
func scanPricePoints(rows pgx.Rows) ([]*domain.PricePoint, error) {
	var points []*domain.PricePoint

	for rows.Next() {
		var (
			p        domain.PricePoint
			priceStr string
		)
		if err := rows.Scan(&p.Timestamp, &p.Source, &priceStr); err != nil {
			return nil, fmt.Errorf("scan price point: %w", err)
		}

		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("parse price %q: %w", priceStr, err)
		}
		p.Price = price
		points = append(points, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price points: %w", err)
	}
	return points, nil
}
