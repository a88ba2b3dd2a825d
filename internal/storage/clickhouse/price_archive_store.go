package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SuzukiTakamasa/solana-trading-bot/internal/domain"
	"github.com/SuzukiTakamasa/solana-trading-bot/internal/storage"
)

// PriceArchiveStore implements storage.PriceArchive using ClickHouse.
// The archive backs analytics reads over long price histories; the Postgres
// ledger remains the source of truth for trading decisions. Duplicates
// collapse in the ReplacingMergeTree, so archival is safe to repeat.
type PriceArchiveStore struct {
	conn *Conn
}

// NewPriceArchiveStore creates a new PriceArchiveStore.
func NewPriceArchiveStore(conn *Conn) *PriceArchiveStore {
	return &PriceArchiveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceArchive = (*PriceArchiveStore)(nil)

// Archive appends a batch of points to the archive.
func (s *PriceArchiveStore) Archive(ctx context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_archive (observed_at, source, price)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if err := batch.Append(p.Timestamp.UTC(), p.Source, p.Price); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetSince retrieves archived points at or after since, ordered ASC.
func (s *PriceArchiveStore) GetSince(ctx context.Context, since time.Time) ([]*domain.PricePoint, error) {
	query := `
		SELECT observed_at, source, price
		FROM price_archive FINAL
		WHERE observed_at >= ?
		ORDER BY observed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("get archived prices: %w", err)
	}
	defer rows.Close()

	var points []*domain.PricePoint
	for rows.Next() {
		var (
			p     domain.PricePoint
			price decimal.Decimal
		)
		if err := rows.Scan(&p.Timestamp, &p.Source, &price); err != nil {
			return nil, fmt.Errorf("scan archived price: %w", err)
		}
		p.Price = price
		points = append(points, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archived prices: %w", err)
	}
	return points, nil
}
