// Package trend computes percentage price change over lookback windows.
package trend

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SuzukiTakamasa/solana-trading-bot/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Analyzer computes trend signals for a fixed set of lookback windows.
type Analyzer struct {
	windows []time.Duration
}

// NewAnalyzer creates an Analyzer. Windows are deduplicated and sorted
// ascending, so Windows()[0] is always the shortest.
func NewAnalyzer(windows []time.Duration) *Analyzer {
	seen := make(map[time.Duration]struct{}, len(windows))
	var ws []time.Duration
	for _, w := range windows {
		if w <= 0 {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		ws = append(ws, w)
	}
	sort.Slice(ws, func(i, j int) bool { return ws[i] < ws[j] })
	return &Analyzer{windows: ws}
}

// Windows returns the configured lookback windows, shortest first.
func (a *Analyzer) Windows() []time.Duration {
	return a.windows
}

// Analyze computes signals for every window from an ascending price
// history. A window with no reference point at or before now-window is
// reported unavailable, never as zero change.
func (a *Analyzer) Analyze(points []*domain.PricePoint, now time.Time) domain.TrendReport {
	report := domain.TrendReport{
		ObservedAt: now,
		Signals:    make(map[time.Duration]domain.TrendSignal, len(a.windows)),
	}

	if len(points) == 0 {
		for _, w := range a.windows {
			report.Signals[w] = domain.TrendSignal{Window: w}
		}
		return report
	}

	latest := points[len(points)-1]
	report.Latest = latest.Price

	for _, w := range a.windows {
		ref, ok := priceAt(points, now.Add(-w))
		if !ok || ref.IsZero() {
			report.Signals[w] = domain.TrendSignal{Window: w}
			continue
		}

		change := latest.Price.Sub(ref).Div(ref).Mul(hundred)
		report.Signals[w] = domain.TrendSignal{
			Window:    w,
			ChangePct: change,
			Reference: ref,
			Available: true,
		}
	}

	return report
}

// priceAt returns the price at or before target from an ascending history.
// Strictly at-or-before: a history that starts after target yields no
// reference, which keeps cold-start trends unavailable.
func priceAt(points []*domain.PricePoint, target time.Time) (decimal.Decimal, bool) {
	for i := len(points) - 1; i >= 0; i-- {
		if !points[i].Timestamp.After(target) {
			return points[i].Price, true
		}
	}
	return decimal.Decimal{}, false
}
