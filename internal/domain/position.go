package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionState is the agent's holding stance.
type PositionState string

const (
	// PositionFlat means the agent holds the quote asset (no directional bet).
	PositionFlat PositionState = "FLAT"
	// PositionLong means the agent holds the base asset.
	PositionLong PositionState = "LONG"
)

// Position is the single logical position of the agent. It is derived from
// the trading session ledger: the store must be able to reconstruct it by
// replaying sessions, and any cached snapshot is an optimization only.
type Position struct {
	State      PositionState
	EntryPrice *decimal.Decimal // set iff State == PositionLong
	EntryTime  time.Time        // zero iff State == PositionFlat

	// LastSessionID is the ID of the last successful session that produced
	// this position. Used as the optimistic-concurrency token for the atomic
	// session+position commit. Empty before the first trade.
	LastSessionID string
}

// FlatPosition returns the initial position before any trade.
func FlatPosition() Position {
	return Position{State: PositionFlat}
}

// IsLong reports whether the agent currently holds the base asset.
func (p Position) IsLong() bool { return p.State == PositionLong }

// Apply returns the position after a successful session. Failed sessions
// never change the position; callers must only pass Success outcomes.
func (p Position) Apply(s *TradingSession) Position {
	switch s.Action {
	case ActionBuy:
		entry := s.PriceAtTrade
		return Position{
			State:         PositionLong,
			EntryPrice:    &entry,
			EntryTime:     s.Timestamp,
			LastSessionID: s.ID,
		}
	case ActionSell:
		return Position{
			State:         PositionFlat,
			LastSessionID: s.ID,
		}
	}
	return p
}
