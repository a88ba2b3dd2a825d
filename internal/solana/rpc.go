package solana

import "context"

// Well-known mint addresses.
const (
	SOLMint  = "So11111111111111111111111111111111111111112"
	USDCMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

// Decimal precision of the native mints.
const (
	SOLDecimals  = 9
	USDCDecimals = 6
)

// RPCClient abstracts Solana JSON-RPC for trading and confirmation.
type RPCClient interface {
	// GetBalance retrieves the lamport balance of a wallet.
	GetBalance(ctx context.Context, pubkey string) (uint64, error)

	// GetTokenBalance retrieves the total raw token balance held by owner
	// for the given mint, summed across token accounts.
	GetTokenBalance(ctx context.Context, owner, mint string) (*TokenBalance, error)

	// SendTransaction submits a base64-encoded signed transaction and
	// returns its signature.
	SendTransaction(ctx context.Context, txBase64 string) (string, error)

	// GetSignatureStatuses retrieves confirmation status for signatures.
	// Entries are nil for signatures the cluster does not know about.
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)
}

// TokenBalance is a raw token amount with its mint decimals.
type TokenBalance struct {
	Amount   uint64
	Decimals int32
}

// SignatureStatus describes the cluster's view of a submitted transaction.
type SignatureStatus struct {
	Slot               int64
	Confirmations      *uint64
	ConfirmationStatus string
	Err                interface{}
}

// Confirmed reports whether the transaction reached at least the
// confirmed commitment level without an execution error.
func (s *SignatureStatus) Confirmed() bool {
	if s == nil || s.Err != nil {
		return false
	}
	return s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized"
}

// Failed reports whether the transaction landed with an execution error.
func (s *SignatureStatus) Failed() bool {
	return s != nil && s.Err != nil
}
