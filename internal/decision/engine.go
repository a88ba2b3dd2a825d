// Package decision turns position and trend signals into trade actions.
package decision

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SuzukiTakamasa/solana-trading-bot/internal/domain"
)

// SellBasis selects what a Long position's rise is measured against.
type SellBasis string

const (
	// SellBasisWindow compares the trend change against the lookback
	// window's reference price.
	SellBasisWindow SellBasis = "window"
	// SellBasisEntry compares the latest price against the position's
	// entry price.
	SellBasisEntry SellBasis = "entry"
)

// ParseSellBasis validates a configured basis string.
func ParseSellBasis(s string) (SellBasis, error) {
	switch SellBasis(s) {
	case SellBasisWindow, SellBasisEntry:
		return SellBasis(s), nil
	default:
		return "", fmt.Errorf("invalid sell basis %q (want %q or %q)", s, SellBasisWindow, SellBasisEntry)
	}
}

// Decision is the engine's verdict for one cycle, with the numbers it
// was based on.
type Decision struct {
	Action    domain.Action
	Window    time.Duration
	ChangePct decimal.Decimal
	Basis     SellBasis
	Reason    string
}

// Engine applies the momentum rules. The shortest configured window
// drives decisions; longer windows are advisory context only.
type Engine struct {
	thresholdPct decimal.Decimal
	window       time.Duration
	sellBasis    SellBasis
}

// NewEngine creates an Engine. thresholdPct is the magnitude (positive)
// of the drop/rise that triggers a trade, in percent.
func NewEngine(thresholdPct decimal.Decimal, window time.Duration, sellBasis SellBasis) (*Engine, error) {
	if thresholdPct.Sign() <= 0 {
		return nil, fmt.Errorf("threshold must be positive, got %s", thresholdPct)
	}
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %s", window)
	}
	if sellBasis != SellBasisWindow && sellBasis != SellBasisEntry {
		return nil, fmt.Errorf("invalid sell basis %q", sellBasis)
	}
	return &Engine{
		thresholdPct: thresholdPct,
		window:       window,
		sellBasis:    sellBasis,
	}, nil
}

// Decide evaluates one cycle. Rules in priority order:
// Flat and drop at or past -threshold buys; Long and rise at or past
// +threshold sells; anything else is a no-op. An unavailable signal
// skips its rule rather than counting as zero change.
func (e *Engine) Decide(pos domain.Position, report domain.TrendReport) Decision {
	sig := report.Signal(e.window)

	switch pos.State {
	case domain.PositionFlat:
		if !sig.Available {
			return e.noop("trend unavailable")
		}
		if sig.ChangePct.LessThanOrEqual(e.thresholdPct.Neg()) {
			return Decision{
				Action:    domain.ActionBuy,
				Window:    e.window,
				ChangePct: sig.ChangePct,
				Basis:     SellBasisWindow,
				Reason:    fmt.Sprintf("drop %s%% over %s at or past -%s%%", sig.ChangePct, e.window, e.thresholdPct),
			}
		}
		return e.noop("drop below threshold")

	case domain.PositionLong:
		change, ok := e.riseChange(pos, report, sig)
		if !ok {
			return e.noop("rise basis unavailable")
		}
		if change.GreaterThanOrEqual(e.thresholdPct) {
			return Decision{
				Action:    domain.ActionSell,
				Window:    e.window,
				ChangePct: change,
				Basis:     e.sellBasis,
				Reason:    fmt.Sprintf("rise %s%% (%s basis) at or past +%s%%", change, e.sellBasis, e.thresholdPct),
			}
		}
		return e.noop("rise below threshold")
	}

	return e.noop(fmt.Sprintf("unknown position state %q", pos.State))
}

// riseChange computes the Sell comparison per the configured basis.
func (e *Engine) riseChange(pos domain.Position, report domain.TrendReport, sig domain.TrendSignal) (decimal.Decimal, bool) {
	switch e.sellBasis {
	case SellBasisEntry:
		if pos.EntryPrice == nil || pos.EntryPrice.IsZero() || report.Latest.IsZero() {
			return decimal.Decimal{}, false
		}
		change := report.Latest.Sub(*pos.EntryPrice).Div(*pos.EntryPrice).Mul(decimal.NewFromInt(100))
		return change, true
	default:
		if !sig.Available {
			return decimal.Decimal{}, false
		}
		return sig.ChangePct, true
	}
}

func (e *Engine) noop(reason string) Decision {
	return Decision{
		Action: domain.ActionNone,
		Window: e.window,
		Basis:  e.sellBasis,
		Reason: reason,
	}
}
