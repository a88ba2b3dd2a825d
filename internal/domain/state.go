package domain

import "github.com/shopspring/decimal"

// TradingState is the derived aggregate view over the session ledger:
// current position plus cumulative performance counters. It is recomputed
// from sessions on recovery and never treated as authoritative.
type TradingState struct {
	Position          Position
	CumulativeProfit  decimal.Decimal // quote units
	TradeCount        int64           // successful trades
	WinningTrades     int64
	LosingTrades      int64
	AttemptedSessions int64 // all sessions including failures
}

// NewTradingState returns the state before any recorded session.
func NewTradingState() TradingState {
	return TradingState{Position: FlatPosition()}
}

// ReplaySessions reconstructs trading state from the session ledger, oldest
// first. Failed sessions count as attempts but never move the position;
// position and profit come only from Success outcomes.
func ReplaySessions(sessions []*TradingSession) TradingState {
	st := NewTradingState()
	for _, s := range sessions {
		st.AttemptedSessions++
		if !s.Succeeded() {
			continue
		}
		st.Position = st.Position.Apply(s)
		st.TradeCount++
		if s.Profit != nil {
			st.CumulativeProfit = st.CumulativeProfit.Add(*s.Profit)
			switch s.Profit.Sign() {
			case 1:
				st.WinningTrades++
			case -1:
				st.LosingTrades++
			}
		}
	}
	return st
}

// WinRatePct returns the percentage of successful trades with positive
// realized profit, zero when nothing has completed yet.
func (st TradingState) WinRatePct() decimal.Decimal {
	decided := st.WinningTrades + st.LosingTrades
	if decided == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(st.WinningTrades).
		Div(decimal.NewFromInt(decided)).
		Mul(decimal.NewFromInt(100))
}
