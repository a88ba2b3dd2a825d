// Package executor carries a trade decision through the swap pipeline:
// quote, balance check, transaction build, local signing, submission and
// bounded confirmation wait.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SuzukiTakamasa/solana-trading-bot/internal/jupiter"
	"github.com/SuzukiTakamasa/solana-trading-bot/internal/solana"
	"github.com/SuzukiTakamasa/solana-trading-bot/internal/wallet"
)

// Default confirmation wait policy.
const (
	DefaultConfirmMaxAttempts  = 10
	DefaultConfirmInitialDelay = 500 * time.Millisecond
	DefaultConfirmMaxDelay     = 10 * time.Second
)

// Typed failures. The caller maps these to session failure reasons; the
// position never changes on any of them.
var (
	// ErrInsufficientBalance means the wallet cannot fund the swap
	// (including the fee reserve).
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrSubmissionRejected means the transaction was rejected before or
	// at submission, or landed with an on-chain error. No asset moved.
	ErrSubmissionRejected = errors.New("transaction submission rejected")
)

// ConfirmationTimeoutError means the transaction was submitted but its
// confirmation was not observed within the bounded wait. The transaction
// may still land; callers must record the signature and re-check it.
type ConfirmationTimeoutError struct {
	Signature string
	Attempts  int
}

func (e *ConfirmationTimeoutError) Error() string {
	return fmt.Sprintf("confirmation timeout after %d attempts (signature %s)", e.Attempts, e.Signature)
}

// Aggregator is the swap route provider.
type Aggregator interface {
	GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*jupiter.Quote, error)
	BuildSwap(ctx context.Context, quote *jupiter.Quote, userPublicKey string) (*jupiter.SwapTransaction, error)
}

// Config holds the pair and execution policy.
type Config struct {
	BaseMint      string
	QuoteMint     string
	BaseDecimals  int32
	QuoteDecimals int32
	SlippageBps   int

	// FeeReserve is the amount of native base asset kept aside for
	// transaction fees, never sold.
	FeeReserve decimal.Decimal

	// WalletSecret is the base58-encoded keypair. The executor builds a
	// wallet per execution and wipes it on every exit path.
	WalletSecret string

	ConfirmMaxAttempts  int
	ConfirmInitialDelay time.Duration
	ConfirmMaxDelay     time.Duration
}

// Result is a submitted swap. Amounts are the quoted legs; AmountOut is
// subject to slippage within the configured tolerance.
type Result struct {
	Signature string
	AmountIn  decimal.Decimal // whole units of the input asset
	AmountOut decimal.Decimal // whole units of the output asset
}

// Executor runs swaps for one configured pair.
type Executor struct {
	rpc solana.RPCClient
	ws  solana.WSClient // optional confirmation fast path, may be nil
	agg Aggregator
	cfg Config
	log *log.Logger
}

// New creates an Executor. ws may be nil; confirmation then relies on
// HTTP polling alone.
func New(rpc solana.RPCClient, ws solana.WSClient, agg Aggregator, cfg Config, logger *log.Logger) *Executor {
	if cfg.ConfirmMaxAttempts <= 0 {
		cfg.ConfirmMaxAttempts = DefaultConfirmMaxAttempts
	}
	if cfg.ConfirmInitialDelay <= 0 {
		cfg.ConfirmInitialDelay = DefaultConfirmInitialDelay
	}
	if cfg.ConfirmMaxDelay <= 0 {
		cfg.ConfirmMaxDelay = DefaultConfirmMaxDelay
	}
	return &Executor{rpc: rpc, ws: ws, agg: agg, cfg: cfg, log: logger}
}

// ExecuteBuy swaps quoteAmount (whole quote units) into the base asset.
func (e *Executor) ExecuteBuy(ctx context.Context, quoteAmount decimal.Decimal) (*Result, error) {
	if quoteAmount.Sign() <= 0 {
		return nil, fmt.Errorf("buy amount must be positive, got %s", quoteAmount)
	}
	amountRaw := rawUnits(quoteAmount, e.cfg.QuoteDecimals)

	quote, err := e.agg.GetQuote(ctx, e.cfg.QuoteMint, e.cfg.BaseMint, amountRaw, e.cfg.SlippageBps)
	if err != nil {
		return nil, fmt.Errorf("quote buy: %w", err)
	}

	w, err := wallet.NewFromBase58(e.cfg.WalletSecret)
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	defer w.Zero()

	balance, err := e.rpc.GetTokenBalance(ctx, w.PublicKey(), e.cfg.QuoteMint)
	if err != nil {
		return nil, fmt.Errorf("read quote balance: %w", err)
	}
	if balance.Amount < amountRaw {
		return nil, fmt.Errorf("quote balance %d below trade size %d: %w",
			balance.Amount, amountRaw, ErrInsufficientBalance)
	}

	return e.swap(ctx, w, quote, quoteAmount, wholeUnits(quote.OutAmount, e.cfg.BaseDecimals))
}

// ExecuteSell swaps the wallet's base asset holdings, minus the fee
// reserve, back into the quote asset.
func (e *Executor) ExecuteSell(ctx context.Context) (*Result, error) {
	w, err := wallet.NewFromBase58(e.cfg.WalletSecret)
	if err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	defer w.Zero()

	lamports, err := e.rpc.GetBalance(ctx, w.PublicKey())
	if err != nil {
		return nil, fmt.Errorf("read base balance: %w", err)
	}

	reserveRaw := rawUnits(e.cfg.FeeReserve, e.cfg.BaseDecimals)
	if lamports <= reserveRaw {
		return nil, fmt.Errorf("base balance %d at or below fee reserve %d: %w",
			lamports, reserveRaw, ErrInsufficientBalance)
	}
	sellRaw := lamports - reserveRaw

	quote, err := e.agg.GetQuote(ctx, e.cfg.BaseMint, e.cfg.QuoteMint, sellRaw, e.cfg.SlippageBps)
	if err != nil {
		return nil, fmt.Errorf("quote sell: %w", err)
	}

	return e.swap(ctx, w, quote, wholeUnits(sellRaw, e.cfg.BaseDecimals), wholeUnits(quote.OutAmount, e.cfg.QuoteDecimals))
}

// swap builds, signs, submits and confirms a quoted route.
func (e *Executor) swap(ctx context.Context, w *wallet.Wallet, quote *jupiter.Quote, amountIn, amountOut decimal.Decimal) (*Result, error) {
	tx, err := e.agg.BuildSwap(ctx, quote, w.PublicKey())
	if err != nil {
		return nil, fmt.Errorf("build swap: %w", err)
	}

	signed, err := w.SignTransaction(tx.TransactionBase64)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	signature, err := e.rpc.SendTransaction(ctx, signed)
	if err != nil {
		var rpcErr *solana.RPCError
		if errors.As(err, &rpcErr) {
			return nil, fmt.Errorf("%s: %w", rpcErr.Message, ErrSubmissionRejected)
		}
		return nil, fmt.Errorf("send transaction: %w", err)
	}

	e.log.Printf("submitted %s swap %d -> %d (signature %s)",
		quote.InputMint, quote.InAmount, quote.OutAmount, signature)

	result := &Result{Signature: signature, AmountIn: amountIn, AmountOut: amountOut}

	if err := e.confirm(ctx, signature); err != nil {
		// The transaction was submitted, so the caller gets the partial
		// result alongside the error: on a timeout it may still land and
		// the signature must be re-checked, and an on-chain failure keeps
		// its reference on the recorded session.
		return result, err
	}

	return result, nil
}

// confirm waits for the signature to reach confirmed commitment. A
// WebSocket subscription is the fast path; HTTP status polling with
// exponential backoff runs regardless and bounds the wait.
func (e *Executor) confirm(ctx context.Context, signature string) error {
	var wsCh <-chan solana.SignatureNotification
	if e.ws != nil {
		ch, err := e.ws.SubscribeSignature(ctx, signature)
		if err != nil {
			e.log.Printf("signature subscribe failed, polling only: %v", err)
		} else {
			wsCh = ch
		}
	}

	delay := e.cfg.ConfirmInitialDelay
	for attempt := 1; attempt <= e.cfg.ConfirmMaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return &ConfirmationTimeoutError{Signature: signature, Attempts: attempt - 1}
		case n, ok := <-wsCh:
			if ok {
				if n.Err != nil {
					return fmt.Errorf("transaction %s failed on-chain: %v: %w", signature, n.Err, ErrSubmissionRejected)
				}
				return nil
			}
			wsCh = nil
		case <-time.After(delay):
		}

		delay = delay * 2
		if delay > e.cfg.ConfirmMaxDelay {
			delay = e.cfg.ConfirmMaxDelay
		}

		statuses, err := e.rpc.GetSignatureStatuses(ctx, []string{signature})
		if err != nil {
			e.log.Printf("status poll %d/%d: %v", attempt, e.cfg.ConfirmMaxAttempts, err)
			continue
		}
		if len(statuses) == 0 || statuses[0] == nil {
			continue
		}
		if statuses[0].Failed() {
			return fmt.Errorf("transaction %s failed on-chain: %v: %w", signature, statuses[0].Err, ErrSubmissionRejected)
		}
		if statuses[0].Confirmed() {
			return nil
		}
	}

	return &ConfirmationTimeoutError{Signature: signature, Attempts: e.cfg.ConfirmMaxAttempts}
}

// rawUnits converts whole units to the mint's raw integer representation,
// truncating sub-raw dust.
func rawUnits(amount decimal.Decimal, decimals int32) uint64 {
	return uint64(amount.Shift(decimals).IntPart())
}

// wholeUnits converts a raw integer amount to whole units.
func wholeUnits(raw uint64, decimals int32) decimal.Decimal {
	return decimal.New(int64(raw), -decimals)
}
