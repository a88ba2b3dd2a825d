package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SuzukiTakamasa/solana-trading-bot/internal/domain"
	"github.com/SuzukiTakamasa/solana-trading-bot/internal/storage"
)

func buySession(id, prev string, ts time.Time, price string) *domain.TradingSession {
	return &domain.TradingSession{
		ID:            id,
		Timestamp:     ts,
		Action:        domain.ActionBuy,
		AmountIn:      decimal.RequireFromString("50"),
		AmountOut:     decimal.RequireFromString("0.5"),
		TxSignature:   "sig-" + id,
		Outcome:       domain.OutcomeSuccess,
		PriceAtTrade:  decimal.RequireFromString(price),
		PrevSessionID: prev,
	}
}

func TestSessionStore_CommitTransitionsPosition(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	sess := buySession("s1", "", ts, "100.00")
	after := domain.FlatPosition().Apply(sess)

	if err := store.Commit(ctx, sess, after); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	pos, err := store.CurrentPosition(ctx)
	if err != nil {
		t.Fatalf("CurrentPosition failed: %v", err)
	}
	if pos.State != domain.PositionLong {
		t.Errorf("Expected LONG, got %s", pos.State)
	}
	if pos.LastSessionID != "s1" {
		t.Errorf("Expected LastSessionID s1, got %q", pos.LastSessionID)
	}
	if pos.EntryPrice == nil || !pos.EntryPrice.Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("Entry price not recorded: %v", pos.EntryPrice)
	}
}

func TestSessionStore_FailedSessionLeavesPosition(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	before, _ := store.CurrentPosition(ctx)

	failed := &domain.TradingSession{
		ID:            "f1",
		Timestamp:     ts,
		Action:        domain.ActionBuy,
		AmountIn:      decimal.RequireFromString("50"),
		Outcome:       domain.OutcomeFailed,
		FailReason:    domain.FailReasonSubmissionRejected,
		PriceAtTrade:  decimal.RequireFromString("100.00"),
		PrevSessionID: "",
	}

	// Position unchanged on failure.
	if err := store.Commit(ctx, failed, before); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	pos, err := store.CurrentPosition(ctx)
	if err != nil {
		t.Fatalf("CurrentPosition failed: %v", err)
	}
	if pos.State != domain.PositionFlat {
		t.Errorf("Failed session moved position: %s", pos.State)
	}

	sessions, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Errorf("Failed attempt must still be recorded, got %d sessions", len(sessions))
	}
}

func TestSessionStore_PositionConflict(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Two cycles prepared against the same flat position.
	first := buySession("s1", "", ts, "100.00")
	second := buySession("s2", "", ts.Add(time.Second), "100.10")

	if err := store.Commit(ctx, first, domain.FlatPosition().Apply(first)); err != nil {
		t.Fatalf("First commit failed: %v", err)
	}

	err := store.Commit(ctx, second, domain.FlatPosition().Apply(second))
	if !errors.Is(err, storage.ErrPositionConflict) {
		t.Errorf("Expected ErrPositionConflict, got %v", err)
	}

	// Only one swap may win.
	sessions, _ := store.GetAll(ctx)
	if len(sessions) != 1 {
		t.Errorf("Expected exactly 1 committed session, got %d", len(sessions))
	}
}

func TestSessionStore_DuplicateID(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	sess := buySession("s1", "", ts, "100.00")
	if err := store.Commit(ctx, sess, domain.FlatPosition().Apply(sess)); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	dup := buySession("s1", "s1", ts.Add(time.Minute), "101.00")
	err := store.Commit(ctx, dup, domain.FlatPosition())
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestSessionStore_ReplayMatchesCommittedPosition(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	buy := buySession("s1", "", base, "100.00")
	pos := domain.FlatPosition().Apply(buy)
	if err := store.Commit(ctx, buy, pos); err != nil {
		t.Fatalf("Commit buy failed: %v", err)
	}

	profit := decimal.RequireFromString("1.00")
	sell := &domain.TradingSession{
		ID:            "s2",
		Timestamp:     base.Add(time.Hour),
		Action:        domain.ActionSell,
		AmountIn:      decimal.RequireFromString("0.5"),
		AmountOut:     decimal.RequireFromString("51"),
		TxSignature:   "sig-s2",
		Outcome:       domain.OutcomeSuccess,
		PriceAtTrade:  decimal.RequireFromString("102.00"),
		Profit:        &profit,
		PrevSessionID: "s1",
	}
	if err := store.Commit(ctx, sell, pos.Apply(sell)); err != nil {
		t.Fatalf("Commit sell failed: %v", err)
	}

	pos, err := store.CurrentPosition(ctx)
	if err != nil {
		t.Fatalf("CurrentPosition failed: %v", err)
	}
	if pos.State != domain.PositionFlat {
		t.Errorf("Expected FLAT after sell, got %s", pos.State)
	}
	if pos.LastSessionID != "s2" {
		t.Errorf("Expected LastSessionID s2, got %q", pos.LastSessionID)
	}

	sessions, _ := store.GetAll(ctx)
	state := domain.ReplaySessions(sessions)
	if !state.CumulativeProfit.Equal(profit) {
		t.Errorf("Cumulative profit: got %s, want %s", state.CumulativeProfit, profit)
	}
	if state.TradeCount != 2 || state.WinningTrades != 1 {
		t.Errorf("Counters: trades=%d winning=%d", state.TradeCount, state.WinningTrades)
	}
}

func TestSessionStore_DeleteOlderThanKeepsLastSuccess(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	buy := buySession("s1", "", base, "100.00")
	if err := store.Commit(ctx, buy, domain.FlatPosition().Apply(buy)); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	// Cutoff after the only session: it must survive so the position stays
	// derivable from the ledger.
	deleted, err := store.DeleteOlderThan(ctx, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("Expected 0 deleted, got %d", deleted)
	}

	pos, err := store.CurrentPosition(ctx)
	if err != nil {
		t.Fatalf("CurrentPosition failed: %v", err)
	}
	if pos.State != domain.PositionLong {
		t.Errorf("Position lost after cleanup: %s", pos.State)
	}
}
