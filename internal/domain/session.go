package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action is the swap direction chosen by the decision engine.
type Action string

const (
	// ActionBuy converts quote asset into base asset (enter long).
	ActionBuy Action = "BUY"
	// ActionSell converts base asset back into quote asset (exit long).
	ActionSell Action = "SELL"
	// ActionNone means no trade this cycle. Never recorded as a session.
	ActionNone Action = "NONE"
)

// Outcome of an attempted swap execution.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailed  Outcome = "FAILED"
)

// Failure reason codes recorded on failed sessions.
const (
	FailReasonInsufficientBalance = "INSUFFICIENT_BALANCE"
	FailReasonSubmissionRejected  = "SUBMISSION_REJECTED"
	FailReasonConfirmationTimeout = "CONFIRMATION_TIMEOUT"
)

// TradingSession records one attempted swap execution, success or failure.
// The ledger is append-only: exactly one record per attempt, written before
// the position may change.
type TradingSession struct {
	ID        string
	Timestamp time.Time
	Action    Action

	AmountIn  decimal.Decimal // input asset units (quote for Buy, base for Sell)
	AmountOut decimal.Decimal // output asset units, zero on failure

	// TxSignature is the on-chain transaction reference. Present whenever the
	// transaction was submitted, including failures after submission.
	TxSignature string

	Outcome    Outcome
	FailReason string // set iff Outcome == OutcomeFailed

	// PriceAtTrade is the observed price when the decision was made.
	PriceAtTrade decimal.Decimal

	// Profit is realized profit in quote units. Set iff Action == ActionSell
	// and Outcome == OutcomeSuccess.
	Profit *decimal.Decimal

	// PrevSessionID is the position's LastSessionID at decision time; the
	// store rejects the commit if the position moved in between.
	PrevSessionID string
}

// Succeeded reports whether the session executed and confirmed.
func (s *TradingSession) Succeeded() bool { return s.Outcome == OutcomeSuccess }

// Unresolved reports whether the session was submitted on-chain but never
// confirmed within its cycle. Such sessions must be re-checked before the
// next trade: the transaction may still land.
func (s *TradingSession) Unresolved() bool {
	return s.Outcome == OutcomeFailed &&
		s.FailReason == FailReasonConfirmationTimeout &&
		s.TxSignature != ""
}
