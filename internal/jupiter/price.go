package jupiter

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// probeLamports is the quote size used for price discovery (1 SOL).
// Small enough that route depth doesn't distort the observed price.
const probeLamports = 1_000_000_000

// DerivePrice computes the execution price of a quote in quote-token
// units per one whole base token, adjusting both legs for mint decimals.
func DerivePrice(q *Quote, inDecimals, outDecimals int32) (decimal.Decimal, error) {
	if q.InAmount == 0 {
		return decimal.Zero, fmt.Errorf("quote has zero input amount")
	}

	in := decimal.New(int64(q.InAmount), -inDecimals)
	out := decimal.New(int64(q.OutAmount), -outDecimals)
	return out.DivRound(in, 12), nil
}

// SpotPrice fetches the current base/quote price by quoting a one-SOL
// probe swap. No transaction is built; this is read-only price discovery.
func (c *Client) SpotPrice(ctx context.Context, baseMint, quoteMint string, baseDecimals, quoteDecimals int32) (decimal.Decimal, error) {
	quote, err := c.GetQuote(ctx, baseMint, quoteMint, probeLamports, 0)
	if err != nil {
		return decimal.Zero, fmt.Errorf("probe quote: %w", err)
	}
	return DerivePrice(quote, baseDecimals, quoteDecimals)
}
