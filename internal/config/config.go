// Package config loads the agent configuration from flags and
// environment variables. Flags win; env vars supply defaults; a .env
// file fills in missing env vars.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/SuzukiTakamasa/solana-trading-bot/internal/decision"
	"github.com/SuzukiTakamasa/solana-trading-bot/internal/solana"
)

// Config is the full agent configuration.
type Config struct {
	// Endpoints
	RPCEndpoint   string
	WSEndpoint    string
	JupiterAPIURL string
	PostgresDSN   string
	ClickhouseDSN string
	UseMemory     bool

	// Credentials
	WalletSecret     string
	LINEChannelToken string
	LINEUserID       string

	// Pair
	BaseMint      string
	QuoteMint     string
	BaseDecimals  int32
	QuoteDecimals int32

	// Trading policy
	SlippageBps       int
	TrendWindows      []time.Duration
	TrendThresholdPct decimal.Decimal
	SellBasis         decision.SellBasis
	TradeAmountQuote  decimal.Decimal
	FeeReserve        decimal.Decimal

	// Execution policy
	ConfirmMaxAttempts  int
	ConfirmInitialDelay time.Duration
	CycleDeadline       time.Duration
	RetentionDays       int

	// HTTP
	Addr        string
	MetricsAddr string
}

// Load parses configuration from args (flags) with env-var defaults.
func Load(args []string) (*Config, error) {
	// Missing .env is fine, system env vars apply
	_ = godotenv.Load()

	fs := flag.NewFlagSet("trading-bot", flag.ContinueOnError)

	rpcEndpoint := fs.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	wsEndpoint := fs.String("ws-endpoint", os.Getenv("SOLANA_WS_ENDPOINT"), "Solana WebSocket endpoint (optional)")
	jupiterURL := fs.String("jupiter-api-url", os.Getenv("JUPITER_API_URL"), "Jupiter API base URL (default public API)")
	postgresDSN := fs.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := fs.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional price archive)")
	useMemory := fs.Bool("use-memory", envBool("USE_MEMORY", false), "Use in-memory storage instead of PostgreSQL")

	walletSecret := fs.String("wallet-private-key", os.Getenv("WALLET_PRIVATE_KEY"), "Base58-encoded wallet private key")
	lineToken := fs.String("line-channel-token", os.Getenv("LINE_CHANNEL_TOKEN"), "LINE channel access token (optional)")
	lineUserID := fs.String("line-user-id", os.Getenv("LINE_USER_ID"), "LINE user ID to notify (optional)")

	baseMint := fs.String("base-mint", envOr("BASE_MINT", solana.SOLMint), "Base asset mint address")
	quoteMint := fs.String("quote-mint", envOr("QUOTE_MINT", solana.USDCMint), "Quote asset mint address")

	slippageBps := fs.Int("slippage-bps", envInt("SLIPPAGE_BPS", 50), "Swap slippage tolerance in basis points")
	trendWindows := fs.String("trend-windows", envOr("TREND_WINDOWS", "1h,6h,24h"), "Comma-separated lookback windows")
	threshold := fs.String("trend-threshold-pct", envOr("TREND_THRESHOLD_PCT", "0.5"), "Trend threshold magnitude in percent")
	sellBasis := fs.String("sell-basis", envOr("SELL_BASIS", "window"), "Sell comparison basis: window or entry")
	tradeAmount := fs.String("trade-amount-quote", envOr("TRADE_AMOUNT_QUOTE", "10"), "Buy size in whole quote units")
	feeReserve := fs.String("fee-reserve", envOr("FEE_RESERVE_SOL", "0.01"), "Base asset kept aside for fees")

	confirmAttempts := fs.Int("confirm-max-attempts", envInt("CONFIRM_MAX_ATTEMPTS", 10), "Confirmation poll attempts")
	confirmDelay := fs.Duration("confirm-initial-delay", envDuration("CONFIRM_INITIAL_DELAY", 500*time.Millisecond), "Initial confirmation poll delay")
	cycleDeadline := fs.Duration("cycle-deadline", envDuration("CYCLE_DEADLINE", 2*time.Minute), "Deadline for one trading cycle")
	retentionDays := fs.Int("retention-days", envInt("RETENTION_DAYS", 30), "Ledger retention in days (0 disables cleanup)")

	addr := fs.String("addr", ":"+envOr("PORT", "8080"), "HTTP listen address")
	metricsAddr := fs.String("metrics-addr", envOr("METRICS_ADDR", ":9090"), "Prometheus metrics HTTP address")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	windows, err := ParseWindows(*trendWindows)
	if err != nil {
		return nil, fmt.Errorf("parse trend windows: %w", err)
	}

	thresholdDec, err := decimal.NewFromString(*threshold)
	if err != nil {
		return nil, fmt.Errorf("parse trend threshold %q: %w", *threshold, err)
	}

	basis, err := decision.ParseSellBasis(*sellBasis)
	if err != nil {
		return nil, err
	}

	amountDec, err := decimal.NewFromString(*tradeAmount)
	if err != nil {
		return nil, fmt.Errorf("parse trade amount %q: %w", *tradeAmount, err)
	}

	reserveDec, err := decimal.NewFromString(*feeReserve)
	if err != nil {
		return nil, fmt.Errorf("parse fee reserve %q: %w", *feeReserve, err)
	}

	cfg := &Config{
		RPCEndpoint:         *rpcEndpoint,
		WSEndpoint:          *wsEndpoint,
		JupiterAPIURL:       *jupiterURL,
		PostgresDSN:         *postgresDSN,
		ClickhouseDSN:       *clickhouseDSN,
		UseMemory:           *useMemory,
		WalletSecret:        *walletSecret,
		LINEChannelToken:    *lineToken,
		LINEUserID:          *lineUserID,
		BaseMint:            *baseMint,
		QuoteMint:           *quoteMint,
		BaseDecimals:        solana.SOLDecimals,
		QuoteDecimals:       solana.USDCDecimals,
		SlippageBps:         *slippageBps,
		TrendWindows:        windows,
		TrendThresholdPct:   thresholdDec,
		SellBasis:           basis,
		TradeAmountQuote:    amountDec,
		FeeReserve:          reserveDec,
		ConfirmMaxAttempts:  *confirmAttempts,
		ConfirmInitialDelay: *confirmDelay,
		CycleDeadline:       *cycleDeadline,
		RetentionDays:       *retentionDays,
		Addr:                *addr,
		MetricsAddr:         *metricsAddr,
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.RPCEndpoint == "" {
		return fmt.Errorf("SOLANA_RPC_ENDPOINT is required")
	}
	if c.WalletSecret == "" {
		return fmt.Errorf("WALLET_PRIVATE_KEY is required")
	}
	if !c.UseMemory && c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required (or use --use-memory)")
	}
	if len(c.TrendWindows) == 0 {
		return fmt.Errorf("at least one trend window is required")
	}
	if c.TrendThresholdPct.Sign() <= 0 {
		return fmt.Errorf("trend threshold must be positive, got %s", c.TrendThresholdPct)
	}
	if c.TradeAmountQuote.Sign() <= 0 {
		return fmt.Errorf("trade amount must be positive, got %s", c.TradeAmountQuote)
	}
	if c.SlippageBps < 0 || c.SlippageBps > 10_000 {
		return fmt.Errorf("slippage must be within [0, 10000] bps, got %d", c.SlippageBps)
	}
	return nil
}

// ParseWindows parses a comma-separated duration list, e.g. "1h,6h,24h".
func ParseWindows(s string) ([]time.Duration, error) {
	var windows []time.Duration
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.ParseDuration(part)
		if err != nil {
			return nil, fmt.Errorf("invalid window %q: %w", part, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("window %q must be positive", part)
		}
		windows = append(windows, d)
	}
	return windows, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
