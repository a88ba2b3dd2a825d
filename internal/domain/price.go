package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PriceSourceJupiter is the source tag for prices derived from Jupiter quotes.
const PriceSourceJupiter = "jupiter"

// maxReasonablePrice rejects obviously corrupt oracle data.
var maxReasonablePrice = decimal.NewFromInt(1_000_000)

// PricePoint is a single observed exchange rate (quote units per one base unit).
// Price history is append-only; points are never mutated or deleted except by
// retention cleanup.
type PricePoint struct {
	Timestamp time.Time       // UTC observation instant
	Price     decimal.Decimal // quote per base
	Source    string          // e.g. "jupiter"
}

// Key returns the idempotency key for a price point.
// Appending the same (timestamp, source) twice is a no-op.
func (p PricePoint) Key() string {
	return fmt.Sprintf("%d|%s", p.Timestamp.UnixMilli(), p.Source)
}

// ValidatePrice rejects non-positive or implausibly large prices before they
// reach the ledger or the decision engine.
func ValidatePrice(price decimal.Decimal) error {
	if price.Sign() <= 0 {
		return fmt.Errorf("invalid price %s: must be greater than zero", price)
	}
	if price.GreaterThan(maxReasonablePrice) {
		return fmt.Errorf("invalid price %s: exceeds maximum allowed value", price)
	}
	return nil
}
