package storage

import (
	"context"
	"time"

	"github.com/SuzukiTakamasa/solana-trading-bot/internal/domain"
)

// PriceStore provides access to the append-only price history ledger.
type PriceStore interface {
	// Append adds a price point. Appending an existing (timestamp, source)
	// pair is a no-op: the call succeeds without modifying history.
	Append(ctx context.Context, p *domain.PricePoint) error

	// GetSince retrieves points observed at or after since, ordered by
	// timestamp ASC.
	GetSince(ctx context.Context, since time.Time) ([]*domain.PricePoint, error)

	// Latest retrieves the most recent point. Returns ErrNotFound when the
	// ledger is empty.
	Latest(ctx context.Context) (*domain.PricePoint, error)

	// DeleteOlderThan removes points observed before cutoff and returns the
	// number removed. Retention cleanup is the only permitted deletion.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionStore provides access to the trading session ledger and the
// position derived from it.
type SessionStore interface {
	// Commit atomically appends a session and installs the resulting
	// position: both happen or neither does. The commit is rejected with
	// ErrPositionConflict unless the stored position's LastSessionID still
	// equals the session's PrevSessionID, which serializes concurrent cycles
	// at the position-update boundary. Returns ErrDuplicateKey for a reused
	// session ID.
	Commit(ctx context.Context, s *domain.TradingSession, after domain.Position) error

	// GetAll retrieves every session ordered by timestamp ASC, for ledger
	// replay.
	GetAll(ctx context.Context) ([]*domain.TradingSession, error)

	// GetRecent retrieves up to limit sessions, newest first.
	GetRecent(ctx context.Context, limit int) ([]*domain.TradingSession, error)

	// GetLatest retrieves the most recent session. Returns ErrNotFound when
	// the ledger is empty.
	GetLatest(ctx context.Context) (*domain.TradingSession, error)

	// CurrentPosition reconstructs the position by replaying the session
	// ledger. Cached snapshots are never consulted: recovery correctness is
	// independent of how the process died.
	CurrentPosition(ctx context.Context) (domain.Position, error)

	// DeleteOlderThan removes sessions recorded before cutoff, preserving
	// the most recent successful session so the position stays derivable.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PriceArchive is a secondary analytics sink for price points. Archival is
// best-effort and out of the cycle's critical path.
type PriceArchive interface {
	// Archive appends a batch of points to the archive.
	Archive(ctx context.Context, points []*domain.PricePoint) error

	// GetSince retrieves archived points at or after since, ordered ASC.
	GetSince(ctx context.Context, since time.Time) ([]*domain.PricePoint, error)
}
