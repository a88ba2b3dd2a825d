package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrendSignal is the percentage price change over one lookback window.
// Available is false on cold start or history gaps: a missing reference
// is never treated as zero change.
type TrendSignal struct {
	Window    time.Duration
	ChangePct decimal.Decimal // signed percentage, e.g. -0.606
	Reference decimal.Decimal // price at or before now-window
	Available bool
}

// TrendReport maps lookback windows to their signals for one cycle.
type TrendReport struct {
	ObservedAt time.Time
	Latest     decimal.Decimal
	Signals    map[time.Duration]TrendSignal
}

// Signal returns the signal for a window. Missing windows come back as
// unavailable.
func (r TrendReport) Signal(w time.Duration) TrendSignal {
	if s, ok := r.Signals[w]; ok {
		return s
	}
	return TrendSignal{Window: w}
}
