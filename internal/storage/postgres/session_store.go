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

// SessionStore implements storage.SessionStore using PostgreSQL. The session
// append and the position snapshot update share one transaction, so a crash
// between the two can never leave the ledger and the derived position
// disagreeing.
type SessionStore struct {
	pool *Pool
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(pool *Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SessionStore = (*SessionStore)(nil)

const sessionColumns = `
	id, recorded_at, action, amount_in::text, amount_out::text,
	tx_signature, outcome, fail_reason, price_at_trade::text,
	profit::text, prev_session_id
`

// Commit atomically appends the session and installs the resulting position.
// The snapshot row is locked FOR UPDATE and the commit is rejected with
// ErrPositionConflict when the position advanced since the session was
// prepared.
func (s *SessionStore) Commit(ctx context.Context, sess *domain.TradingSession, after domain.Position) error {
	if sess == nil || sess.ID == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var lastSessionID string
	err = tx.QueryRow(ctx,
		`SELECT last_session_id FROM position_snapshot WHERE singleton FOR UPDATE`,
	).Scan(&lastSessionID)
	if err != nil {
		return fmt.Errorf("lock position snapshot: %w", err)
	}

	if lastSessionID != sess.PrevSessionID {
		return storage.ErrPositionConflict
	}

	var profit *string
	if sess.Profit != nil {
		v := sess.Profit.String()
		profit = &v
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO trading_sessions (
			id, recorded_at, action, amount_in, amount_out,
			tx_signature, outcome, fail_reason, price_at_trade,
			profit, prev_session_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		sess.ID,
		sess.Timestamp.UTC(),
		string(sess.Action),
		sess.AmountIn.String(),
		sess.AmountOut.String(),
		sess.TxSignature,
		string(sess.Outcome),
		sess.FailReason,
		sess.PriceAtTrade.String(),
		profit,
		sess.PrevSessionID,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trading session: %w", err)
	}

	var (
		entryPrice *string
		entryTime  *time.Time
	)
	if after.EntryPrice != nil {
		v := after.EntryPrice.String()
		entryPrice = &v
	}
	if !after.EntryTime.IsZero() {
		t := after.EntryTime.UTC()
		entryTime = &t
	}

	_, err = tx.Exec(ctx, `
		UPDATE position_snapshot
		SET state = $1, entry_price = $2, entry_time = $3,
		    last_session_id = $4, updated_at = now()
		WHERE singleton
	`,
		string(after.State), entryPrice, entryTime, after.LastSessionID,
	)
	if err != nil {
		return fmt.Errorf("update position snapshot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetAll retrieves every session ordered by timestamp ASC.
func (s *SessionStore) GetAll(ctx context.Context) ([]*domain.TradingSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM trading_sessions
		ORDER BY recorded_at ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all sessions: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// GetRecent retrieves up to limit sessions, newest first.
func (s *SessionStore) GetRecent(ctx context.Context, limit int) ([]*domain.TradingSession, error) {
	query := `SELECT ` + sessionColumns + `
		FROM trading_sessions
		ORDER BY recorded_at DESC, id DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent sessions: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// GetLatest retrieves the most recent session.
func (s *SessionStore) GetLatest(ctx context.Context) (*domain.TradingSession, error) {
	sessions, err := s.GetRecent(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, storage.ErrNotFound
	}
	return sessions[0], nil
}

// CurrentPosition reconstructs the position by replaying the session ledger.
// The snapshot row is deliberately not consulted: on recovery only the
// ledger is trusted.
func (s *SessionStore) CurrentPosition(ctx context.Context) (domain.Position, error) {
	sessions, err := s.GetAll(ctx)
	if err != nil {
		return domain.Position{}, err
	}
	return domain.ReplaySessions(sessions).Position, nil
}

// DeleteOlderThan removes sessions recorded before cutoff, preserving the
// session the current position derives from.
func (s *SessionStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM trading_sessions
		WHERE recorded_at < $1
		  AND id <> (SELECT last_session_id FROM position_snapshot WHERE singleton)
	`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete old sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanSessions scans multiple rows into a slice of TradingSession.
func scanSessions(rows pgx.Rows) ([]*domain.TradingSession, error) {
	var sessions []*domain.TradingSession

	for rows.Next() {
		var (
			sess                       domain.TradingSession
			action, outcome            string
			amountIn, amountOut, price string
			profit                     *string
		)
		err := rows.Scan(
			&sess.ID, &sess.Timestamp, &action, &amountIn, &amountOut,
			&sess.TxSignature, &outcome, &sess.FailReason, &price,
			&profit, &sess.PrevSessionID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}

		sess.Action = domain.Action(action)
		sess.Outcome = domain.Outcome(outcome)
		if sess.AmountIn, err = decimal.NewFromString(amountIn); err != nil {
			return nil, fmt.Errorf("parse amount_in %q: %w", amountIn, err)
		}
		if sess.AmountOut, err = decimal.NewFromString(amountOut); err != nil {
			return nil, fmt.Errorf("parse amount_out %q: %w", amountOut, err)
		}
		if sess.PriceAtTrade, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse price_at_trade %q: %w", price, err)
		}
		if profit != nil {
			p, err := decimal.NewFromString(*profit)
			if err != nil {
				return nil, fmt.Errorf("parse profit %q: %w", *profit, err)
			}
			sess.Profit = &p
		}

		sessions = append(sessions, &sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}
