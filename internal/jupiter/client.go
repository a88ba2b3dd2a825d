// Package jupiter talks to the Jupiter aggregator HTTP API for quotes
// and swap transaction building.
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultAPIURL is the public Jupiter swap API.
const DefaultAPIURL = "https://quote-api.jup.ag/v6"

// DefaultTimeout bounds a single API call.
const DefaultTimeout = 15 * time.Second

// ErrRouteUnavailable means the aggregator found no route for the pair
// and amount. Callers treat it as a transient market condition.
var ErrRouteUnavailable = errors.New("no swap route available")

// Client is a Jupiter API client.
type Client struct {
	baseURL string
	client  *http.Client
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.client = hc
	}
}

// NewClient creates a Jupiter client. An empty baseURL uses the public API.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	c := &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Quote is an aggregator route quote. Raw keeps the untouched response
// body because the swap endpoint requires it verbatim.
type Quote struct {
	InputMint      string
	OutputMint     string
	InAmount       uint64
	OutAmount      uint64
	PriceImpactPct decimal.Decimal
	SlippageBps    int

	Raw json.RawMessage
}

// quoteResponse mirrors the relevant fields of the /quote payload.
type quoteResponse struct {
	InputMint      string `json:"inputMint"`
	OutputMint     string `json:"outputMint"`
	InAmount       string `json:"inAmount"`
	OutAmount      string `json:"outAmount"`
	PriceImpactPct string `json:"priceImpactPct"`
	SlippageBps    int    `json:"slippageBps"`
}

// apiError is the error body the aggregator returns on 4xx.
type apiError struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

// GetQuote requests a route for swapping amount (raw units of inputMint)
// into outputMint with the given slippage tolerance.
func (c *Client) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*Quote, error) {
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", strconv.FormatUint(amount, 10))
	q.Set("slippageBps", strconv.Itoa(slippageBps))

	body, err := c.get(ctx, "/quote?"+q.Encode())
	if err != nil {
		return nil, err
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal quote: %w", err)
	}

	inAmount, err := strconv.ParseUint(resp.InAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse inAmount %q: %w", resp.InAmount, err)
	}
	outAmount, err := strconv.ParseUint(resp.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse outAmount %q: %w", resp.OutAmount, err)
	}
	if outAmount == 0 {
		return nil, ErrRouteUnavailable
	}

	impact := decimal.Zero
	if resp.PriceImpactPct != "" {
		impact, err = decimal.NewFromString(resp.PriceImpactPct)
		if err != nil {
			return nil, fmt.Errorf("parse priceImpactPct %q: %w", resp.PriceImpactPct, err)
		}
	}

	return &Quote{
		InputMint:      resp.InputMint,
		OutputMint:     resp.OutputMint,
		InAmount:       inAmount,
		OutAmount:      outAmount,
		PriceImpactPct: impact,
		SlippageBps:    resp.SlippageBps,
		Raw:            body,
	}, nil
}

// SwapTransaction is an unsigned serialized transaction from /swap.
type SwapTransaction struct {
	TransactionBase64    string
	LastValidBlockHeight uint64
}

type swapRequest struct {
	QuoteResponse    json.RawMessage `json:"quoteResponse"`
	UserPublicKey    string          `json:"userPublicKey"`
	WrapAndUnwrapSol bool            `json:"wrapAndUnwrapSol"`
}

type swapResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// BuildSwap exchanges a quote for an unsigned transaction with
// userPublicKey as fee payer.
func (c *Client) BuildSwap(ctx context.Context, quote *Quote, userPublicKey string) (*SwapTransaction, error) {
	reqBody, err := json.Marshal(swapRequest{
		QuoteResponse:    quote.Raw,
		UserPublicKey:    userPublicKey,
		WrapAndUnwrapSol: true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swap", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var resp swapResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal swap: %w", err)
	}
	if resp.SwapTransaction == "" {
		return nil, fmt.Errorf("swap response missing transaction")
	}

	return &SwapTransaction{
		TransactionBase64:    resp.SwapTransaction,
		LastValidBlockHeight: resp.LastValidBlockHeight,
	}, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusOK {
		return body, nil
	}

	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.ErrorCode == "COULD_NOT_FIND_ANY_ROUTE" {
		return nil, ErrRouteUnavailable
	}
	return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
}
