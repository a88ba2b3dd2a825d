// Package trader runs the trading cycle: observe price, analyze trend,
// decide, execute, record. One cycle is in flight at a time.
package trader

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/SuzukiTakamasa/solana-trading-bot/internal/decision"
	"github.com/SuzukiTakamasa/solana-trading-bot/internal/domain"
	"github.com/SuzukiTakamasa/solana-trading-bot/internal/executor"
	"github.com/SuzukiTakamasa/solana-trading-bot/internal/jupiter"
	"github.com/SuzukiTakamasa/solana-trading-bot/internal/notify"
	"github.com/SuzukiTakamasa/solana-trading-bot/internal/observability"
	"github.com/SuzukiTakamasa/solana-trading-bot/internal/solana"
	"github.com/SuzukiTakamasa/solana-trading-bot/internal/storage"
	"github.com/SuzukiTakamasa/solana-trading-bot/internal/trend"
)

// ErrCycleInProgress is returned when a trigger arrives while a cycle is
// already running. The caller gets an immediate structured rejection, not
// a queued run.
var ErrCycleInProgress = errors.New("trading cycle already in progress")

// PriceOracle observes the current base/quote price.
type PriceOracle interface {
	SpotPrice(ctx context.Context, baseMint, quoteMint string, baseDecimals, quoteDecimals int32) (decimal.Decimal, error)
}

// Swapper executes trade decisions.
type Swapper interface {
	ExecuteBuy(ctx context.Context, quoteAmount decimal.Decimal) (*executor.Result, error)
	ExecuteSell(ctx context.Context) (*executor.Result, error)
}

// StatusChecker re-checks submitted transactions from previous cycles.
type StatusChecker interface {
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*solana.SignatureStatus, error)
}

// Config holds the pair and cycle policy.
type Config struct {
	BaseMint      string
	QuoteMint     string
	BaseDecimals  int32
	QuoteDecimals int32

	// TradeAmountQuote is the fixed buy size in whole quote units.
	TradeAmountQuote decimal.Decimal

	// CycleDeadline bounds one full cycle; zero means no deadline.
	CycleDeadline time.Duration

	// RetentionDays prunes price points and sessions older than this
	// after a cycle. Zero disables cleanup.
	RetentionDays int
}

// Options wires the Trader's collaborators.
type Options struct {
	PriceStore   storage.PriceStore
	SessionStore storage.SessionStore
	Archive      storage.PriceArchive // optional analytics sink
	Oracle       PriceOracle
	Swapper      Swapper
	Status       StatusChecker
	Analyzer     *trend.Analyzer
	Engine       *decision.Engine
	Notifier     notify.Notifier
	Metrics      *observability.Metrics // optional
	Logger       *log.Logger
	Config       Config
}

// Trader orchestrates trading cycles.
type Trader struct {
	prices   storage.PriceStore
	sessions storage.SessionStore
	archive  storage.PriceArchive
	oracle   PriceOracle
	swapper  Swapper
	status   StatusChecker
	analyzer *trend.Analyzer
	engine   *decision.Engine
	notifier notify.Notifier
	metrics  *observability.Metrics
	log      *log.Logger
	cfg      Config

	running atomic.Bool

	// overridable in tests
	now   func() time.Time
	newID func() string
}

// New creates a Trader.
func New(opts Options) *Trader {
	return &Trader{
		prices:   opts.PriceStore,
		sessions: opts.SessionStore,
		archive:  opts.Archive,
		oracle:   opts.Oracle,
		swapper:  opts.Swapper,
		status:   opts.Status,
		analyzer: opts.Analyzer,
		engine:   opts.Engine,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		log:      opts.Logger,
		cfg:      opts.Config,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// RunResult summarizes one trigger invocation.
type RunResult struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Skipped    bool   `json:"skipped"`
	SkipReason string `json:"skip_reason,omitempty"`

	Price      decimal.Decimal `json:"price"`
	TrendPct   decimal.Decimal `json:"trend_pct"`
	Action     domain.Action   `json:"action"`
	Reason     string          `json:"reason,omitempty"`
	Outcome    domain.Outcome  `json:"outcome,omitempty"`
	FailReason string          `json:"fail_reason,omitempty"`

	SessionID   string           `json:"session_id,omitempty"`
	TxSignature string           `json:"tx_signature,omitempty"`
	Profit      *decimal.Decimal `json:"profit,omitempty"`

	Resolved string `json:"resolved_session,omitempty"`
}

// RunCycle runs one trading cycle. A concurrent invocation returns
// ErrCycleInProgress immediately.
func (t *Trader) RunCycle(ctx context.Context) (*RunResult, error) {
	if !t.running.CompareAndSwap(false, true) {
		if t.metrics != nil {
			t.metrics.CyclesSkipped.Inc()
		}
		return nil, ErrCycleInProgress
	}
	defer t.running.Store(false)

	if t.cfg.CycleDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.CycleDeadline)
		defer cancel()
	}

	started := t.now()
	result, err := t.runCycle(ctx, started)
	if result != nil {
		result.StartedAt = started
		result.FinishedAt = t.now()
	}

	if t.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		t.metrics.CyclesTotal.WithLabelValues(outcome).Inc()
		t.metrics.CycleDuration.Observe(t.now().Sub(started).Seconds())
		if err == nil {
			t.metrics.LastSuccessfulCycle.Set(float64(t.now().Unix()))
		}
	}

	return result, err
}

func (t *Trader) runCycle(ctx context.Context, now time.Time) (*RunResult, error) {
	result := &RunResult{Action: domain.ActionNone}

	pos, err := t.sessions.CurrentPosition(ctx)
	if err != nil {
		return result, fmt.Errorf("recover position: %w", err)
	}

	resolved, pos, err := t.resolvePending(ctx, pos, now)
	if err != nil {
		return result, err
	}
	result.Resolved = resolved

	price, err := t.observePrice(ctx, now)
	if err != nil {
		return result, err
	}
	result.Price = price

	report, err := t.analyzeTrend(ctx, now)
	if err != nil {
		return result, err
	}

	dec := t.engine.Decide(pos, report)
	result.Action = dec.Action
	result.Reason = dec.Reason
	result.TrendPct = dec.ChangePct
	if t.metrics != nil {
		t.metrics.DecisionsTotal.WithLabelValues(string(dec.Action)).Inc()
	}

	if dec.Action == domain.ActionNone {
		t.cleanup(ctx, now)
		return result, nil
	}

	t.log.Printf("decision %s: %s", dec.Action, dec.Reason)

	sess, err := t.executeDecision(ctx, pos, dec, price, now)
	if err != nil {
		// Route unavailability is a market condition, not an attempt:
		// nothing was committed, so no session is recorded.
		if errors.Is(err, jupiter.ErrRouteUnavailable) {
			result.SkipReason = "no swap route available"
			t.cleanup(ctx, now)
			return result, nil
		}
		return result, err
	}

	if err := t.sessions.Commit(ctx, sess, nextPosition(pos, sess)); err != nil {
		if errors.Is(err, storage.ErrPositionConflict) {
			if t.metrics != nil {
				t.metrics.CommitConflicts.Inc()
			}
			return result, fmt.Errorf("position changed under this cycle: %w", err)
		}
		return result, fmt.Errorf("commit session: %w", err)
	}

	result.SessionID = sess.ID
	result.TxSignature = sess.TxSignature
	result.Outcome = sess.Outcome
	result.FailReason = sess.FailReason
	result.Profit = sess.Profit
	if t.metrics != nil {
		t.metrics.SessionsTotal.WithLabelValues(string(sess.Action), string(sess.Outcome)).Inc()
	}

	t.notifySession(ctx, sess)
	t.cleanup(ctx, now)
	return result, nil
}

// resolvePending re-checks the latest session if it was submitted but
// never confirmed. A transaction that actually landed gets a corrective
// Success session so the ledger matches the chain.
func (t *Trader) resolvePending(ctx context.Context, pos domain.Position, now time.Time) (string, domain.Position, error) {
	last, err := t.sessions.GetLatest(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return "", pos, nil
	}
	if err != nil {
		return "", pos, fmt.Errorf("load latest session: %w", err)
	}
	if !last.Unresolved() {
		return "", pos, nil
	}

	statuses, err := t.status.GetSignatureStatuses(ctx, []string{last.TxSignature})
	if err != nil {
		return "", pos, fmt.Errorf("re-check signature %s: %w", last.TxSignature, err)
	}
	if len(statuses) == 0 || !statuses[0].Confirmed() {
		t.log.Printf("signature %s still unconfirmed, leaving session %s unresolved", last.TxSignature, last.ID)
		return "", pos, nil
	}

	corrective := &domain.TradingSession{
		ID:            t.newID(),
		Timestamp:     now,
		Action:        last.Action,
		AmountIn:      last.AmountIn,
		AmountOut:     last.AmountOut,
		TxSignature:   last.TxSignature,
		Outcome:       domain.OutcomeSuccess,
		PriceAtTrade:  last.PriceAtTrade,
		PrevSessionID: pos.LastSessionID,
	}
	if last.Action == domain.ActionSell {
		corrective.Profit = sellProfit(pos, last.AmountIn, last.AmountOut)
	}

	after := pos.Apply(corrective)
	if err := t.sessions.Commit(ctx, corrective, after); err != nil {
		return "", pos, fmt.Errorf("commit corrective session: %w", err)
	}

	t.log.Printf("resolved session %s: transaction %s confirmed after timeout", last.ID, last.TxSignature)
	t.notifySession(ctx, corrective)
	return corrective.ID, after, nil
}

// priceJumpFactor bounds how far one observation may move relative to the
// last recorded point. A larger jump is treated as oracle garbage, not a
// market move.
var priceJumpFactor = decimal.NewFromInt(10)

// observePrice fetches, validates and records the current price. Besides
// the absolute bounds check, the observation is cross-checked against the
// last recorded point so a corrupt quote cannot poison the ledger.
func (t *Trader) observePrice(ctx context.Context, now time.Time) (decimal.Decimal, error) {
	price, err := t.oracle.SpotPrice(ctx, t.cfg.BaseMint, t.cfg.QuoteMint, t.cfg.BaseDecimals, t.cfg.QuoteDecimals)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("observe price: %w", err)
	}
	if err := domain.ValidatePrice(price); err != nil {
		return decimal.Decimal{}, fmt.Errorf("observed price rejected: %w", err)
	}

	last, err := t.prices.Latest(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		// first observation, nothing to compare against
	case err != nil:
		return decimal.Decimal{}, fmt.Errorf("load last recorded price: %w", err)
	default:
		ratio := price.Div(last.Price)
		if ratio.GreaterThan(priceJumpFactor) || ratio.LessThan(decimal.NewFromInt(1).Div(priceJumpFactor)) {
			return decimal.Decimal{}, fmt.Errorf("observed price rejected: %s implausible against last recorded %s", price, last.Price)
		}
	}

	point := &domain.PricePoint{Timestamp: now, Price: price, Source: domain.PriceSourceJupiter}
	if err := t.prices.Append(ctx, point); err != nil {
		return decimal.Decimal{}, fmt.Errorf("append price: %w", err)
	}

	if t.archive != nil {
		if err := t.archive.Archive(ctx, []*domain.PricePoint{point}); err != nil {
			t.log.Printf("price archive write failed: %v", err)
		}
	}

	if t.metrics != nil {
		f, _ := price.Float64()
		t.metrics.LastObservedPrice.Set(f)
	}
	return price, nil
}

// analyzeTrend loads the whole retained price history. A window's
// reference is the point at or before its boundary, which after an
// observation gap can be arbitrarily far past the window itself;
// retention cleanup bounds how much history exists.
func (t *Trader) analyzeTrend(ctx context.Context, now time.Time) (domain.TrendReport, error) {
	points, err := t.prices.GetSince(ctx, time.Time{})
	if err != nil {
		return domain.TrendReport{}, fmt.Errorf("load price history: %w", err)
	}
	return t.analyzer.Analyze(points, now), nil
}

// executeDecision runs the swap and builds the session record. Typed
// executor failures become failed sessions; unexpected errors propagate.
func (t *Trader) executeDecision(ctx context.Context, pos domain.Position, dec decision.Decision, price decimal.Decimal, now time.Time) (*domain.TradingSession, error) {
	sess := &domain.TradingSession{
		ID:            t.newID(),
		Timestamp:     now,
		Action:        dec.Action,
		PriceAtTrade:  price,
		PrevSessionID: pos.LastSessionID,
	}

	var res *executor.Result
	var err error
	switch dec.Action {
	case domain.ActionBuy:
		sess.AmountIn = t.cfg.TradeAmountQuote
		res, err = t.swapper.ExecuteBuy(ctx, t.cfg.TradeAmountQuote)
	case domain.ActionSell:
		res, err = t.swapper.ExecuteSell(ctx)
	default:
		return nil, fmt.Errorf("unexpected action %q", dec.Action)
	}

	if res != nil {
		sess.AmountIn = res.AmountIn
		sess.AmountOut = res.AmountOut
		sess.TxSignature = res.Signature
	}

	if err == nil {
		sess.Outcome = domain.OutcomeSuccess
		if dec.Action == domain.ActionSell {
			sess.Profit = sellProfit(pos, sess.AmountIn, sess.AmountOut)
		}
		return sess, nil
	}

	sess.Outcome = domain.OutcomeFailed
	sess.AmountOut = decimal.Zero

	var timeout *executor.ConfirmationTimeoutError
	switch {
	case errors.As(err, &timeout):
		sess.FailReason = domain.FailReasonConfirmationTimeout
		sess.TxSignature = timeout.Signature
		if res != nil {
			// Keep the quoted amounts: the corrective path reuses them if
			// the transaction turns out to have landed.
			sess.AmountOut = res.AmountOut
		}
	case errors.Is(err, executor.ErrInsufficientBalance):
		sess.FailReason = domain.FailReasonInsufficientBalance
	case errors.Is(err, executor.ErrSubmissionRejected):
		sess.FailReason = domain.FailReasonSubmissionRejected
	default:
		return nil, err
	}

	t.log.Printf("%s failed (%s): %v", dec.Action, sess.FailReason, err)
	return sess, nil
}

// nextPosition computes the position to install with a session commit.
// Failed sessions are appended to the ledger but leave the position as is.
func nextPosition(pos domain.Position, sess *domain.TradingSession) domain.Position {
	if !sess.Succeeded() {
		return pos
	}
	return pos.Apply(sess)
}

// sellProfit is realized profit in quote units: proceeds minus the entry
// cost of the base amount sold. Nil when the entry price is unknown.
func sellProfit(pos domain.Position, baseSold, quoteReceived decimal.Decimal) *decimal.Decimal {
	if pos.EntryPrice == nil {
		return nil
	}
	profit := quoteReceived.Sub(pos.EntryPrice.Mul(baseSold))
	return &profit
}

// notifySession pushes a trade notification. Delivery failures are logged
// and swallowed: notifications never fail a cycle.
func (t *Trader) notifySession(ctx context.Context, sess *domain.TradingSession) {
	if t.notifier == nil {
		return
	}

	var msg string
	switch {
	case sess.Succeeded() && sess.Action == domain.ActionBuy:
		msg = fmt.Sprintf("BUY filled: %s quote -> %s base at %s", sess.AmountIn, sess.AmountOut, sess.PriceAtTrade)
	case sess.Succeeded() && sess.Action == domain.ActionSell:
		profit := "n/a"
		if sess.Profit != nil {
			profit = sess.Profit.String()
		}
		msg = fmt.Sprintf("SELL filled: %s base -> %s quote at %s (profit %s)", sess.AmountIn, sess.AmountOut, sess.PriceAtTrade, profit)
	default:
		msg = fmt.Sprintf("%s failed: %s", sess.Action, sess.FailReason)
	}

	if err := t.notifier.Notify(ctx, msg); err != nil {
		if t.metrics != nil {
			t.metrics.NotificationErrors.Inc()
		}
		t.log.Printf("notification failed: %v", err)
	}
}

// cleanup prunes old ledger entries after the cycle's real work is done.
func (t *Trader) cleanup(ctx context.Context, now time.Time) {
	if t.cfg.RetentionDays <= 0 {
		return
	}
	cutoff := now.AddDate(0, 0, -t.cfg.RetentionDays)

	if n, err := t.prices.DeleteOlderThan(ctx, cutoff); err != nil {
		t.log.Printf("price retention cleanup failed: %v", err)
	} else if n > 0 {
		t.log.Printf("pruned %d price points older than %s", n, cutoff.Format(time.RFC3339))
	}

	if n, err := t.sessions.DeleteOlderThan(ctx, cutoff); err != nil {
		t.log.Printf("session retention cleanup failed: %v", err)
	} else if n > 0 {
		t.log.Printf("pruned %d sessions older than %s", n, cutoff.Format(time.RFC3339))
	}
}

// Performance recomputes the aggregate trading state from the ledger.
// The position always comes from a full replay; when days > 0 the profit
// and trade counters cover only sessions from that window.
func (t *Trader) Performance(ctx context.Context, days int) (domain.TradingState, error) {
	sessions, err := t.sessions.GetAll(ctx)
	if err != nil {
		return domain.TradingState{}, fmt.Errorf("load sessions: %w", err)
	}
	state := domain.ReplaySessions(sessions)

	if days > 0 {
		cutoff := t.now().AddDate(0, 0, -days)
		var windowed []*domain.TradingSession
		for _, s := range sessions {
			if !s.Timestamp.Before(cutoff) {
				windowed = append(windowed, s)
			}
		}
		ws := domain.ReplaySessions(windowed)
		ws.Position = state.Position
		state = ws
	}

	if t.metrics != nil {
		profit, _ := state.CumulativeProfit.Float64()
		t.metrics.RealizedProfit.Set(profit)
		if state.Position.IsLong() {
			t.metrics.PositionState.Set(1)
		} else {
			t.metrics.PositionState.Set(0)
		}
	}
	return state, nil
}

// PriceHistory returns price points from the last given number of hours.
// A configured archive serves reads because it retains history past the
// hot store's retention window; archive failures fall back to the hot
// store so history stays readable while the archive is down.
func (t *Trader) PriceHistory(ctx context.Context, hours int) ([]*domain.PricePoint, error) {
	if hours <= 0 {
		hours = 24
	}
	since := t.now().Add(-time.Duration(hours) * time.Hour)

	if t.archive != nil {
		points, err := t.archive.GetSince(ctx, since)
		if err == nil {
			return points, nil
		}
		t.log.Printf("price archive read failed, serving from hot store: %v", err)
	}
	return t.prices.GetSince(ctx, since)
}

// RecentSessions returns up to limit sessions, newest first.
func (t *Trader) RecentSessions(ctx context.Context, limit int) ([]*domain.TradingSession, error) {
	if limit <= 0 {
		limit = 20
	}
	return t.sessions.GetRecent(ctx, limit)
}
