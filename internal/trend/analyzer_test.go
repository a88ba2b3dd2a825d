package trend

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SuzukiTakamasa/solana-trading-bot/internal/domain"
)

func point(ts time.Time, price string) *domain.PricePoint {
	return &domain.PricePoint{
		Timestamp: ts,
		Price:     decimal.RequireFromString(price),
		Source:    domain.PriceSourceJupiter,
	}
}

// dipHistory is a day of prices with a slow rise and a dip over the
// last hour.
func dipHistory(now time.Time, latest string) []*domain.PricePoint {
	return []*domain.PricePoint{
		point(now.Add(-24*time.Hour), "100.00"),
		point(now.Add(-6*time.Hour), "102.00"),
		point(now.Add(-1*time.Hour), "99.00"),
		point(now, latest),
	}
}

func TestAnalyzer_DipOverOneHour(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := NewAnalyzer([]time.Duration{time.Hour, 24 * time.Hour})

	report := a.Analyze(dipHistory(now, "98.40"), now)

	sig := report.Signal(time.Hour)
	if !sig.Available {
		t.Fatal("expected 1h signal available")
	}
	if !sig.Reference.Equal(decimal.RequireFromString("99.00")) {
		t.Errorf("expected reference 99.00, got %s", sig.Reference)
	}
	// (98.40 - 99.00) / 99.00 * 100 = -0.6060...
	if got := sig.ChangePct.Round(3); !got.Equal(decimal.RequireFromString("-0.606")) {
		t.Errorf("expected 1h change -0.606, got %s", got)
	}

	day := report.Signal(24 * time.Hour)
	if !day.Available {
		t.Fatal("expected 24h signal available")
	}
	if !day.Reference.Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("expected 24h reference 100.00, got %s", day.Reference)
	}
	if got := day.ChangePct.Round(1); !got.Equal(decimal.RequireFromString("-1.6")) {
		t.Errorf("expected 24h change -1.6, got %s", got)
	}
}

func TestAnalyzer_SmallRiseOverOneHour(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := NewAnalyzer([]time.Duration{time.Hour})

	report := a.Analyze(dipHistory(now, "99.30"), now)

	sig := report.Signal(time.Hour)
	if !sig.Available {
		t.Fatal("expected 1h signal available")
	}
	// (99.30 - 99.00) / 99.00 * 100 = +0.3030...
	if got := sig.ChangePct.Round(3); !got.Equal(decimal.RequireFromString("0.303")) {
		t.Errorf("expected 1h change 0.303, got %s", got)
	}
}

func TestAnalyzer_ColdStartUnavailable(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := NewAnalyzer([]time.Duration{time.Hour})

	// Only 10 minutes of history: no point at or before now-1h.
	points := []*domain.PricePoint{
		point(now.Add(-10*time.Minute), "100.00"),
		point(now, "99.00"),
	}

	report := a.Analyze(points, now)

	sig := report.Signal(time.Hour)
	if sig.Available {
		t.Fatal("expected signal unavailable on cold start")
	}
	if !sig.ChangePct.IsZero() {
		t.Errorf("unavailable signal must not carry a change, got %s", sig.ChangePct)
	}
}

func TestAnalyzer_EmptyHistory(t *testing.T) {
	now := time.Now().UTC()
	a := NewAnalyzer([]time.Duration{time.Hour, 6 * time.Hour})

	report := a.Analyze(nil, now)

	for _, w := range a.Windows() {
		if report.Signal(w).Available {
			t.Errorf("window %s: expected unavailable on empty history", w)
		}
	}
}

func TestAnalyzer_ReferenceExactlyAtBoundary(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := NewAnalyzer([]time.Duration{time.Hour})

	// A point exactly at now-1h counts as the reference.
	points := []*domain.PricePoint{
		point(now.Add(-time.Hour), "200.00"),
		point(now, "202.00"),
	}

	sig := a.Analyze(points, now).Signal(time.Hour)
	if !sig.Available {
		t.Fatal("boundary point must serve as reference")
	}
	if !sig.ChangePct.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected +1%% change, got %s", sig.ChangePct)
	}
}

func TestNewAnalyzer_SortsAndDeduplicates(t *testing.T) {
	a := NewAnalyzer([]time.Duration{6 * time.Hour, time.Hour, 6 * time.Hour, 0, -time.Minute})

	ws := a.Windows()
	if len(ws) != 2 {
		t.Fatalf("expected 2 windows, got %v", ws)
	}
	if ws[0] != time.Hour || ws[1] != 6*time.Hour {
		t.Errorf("expected [1h 6h] ascending, got %v", ws)
	}
}

func TestAnalyzer_MissingWindowSignal(t *testing.T) {
	a := NewAnalyzer([]time.Duration{time.Hour})
	report := a.Analyze(nil, time.Now().UTC())

	if report.Signal(48 * time.Hour).Available {
		t.Error("unconfigured window must be unavailable")
	}
}
