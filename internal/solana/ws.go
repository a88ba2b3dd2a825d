package solana

import "context"

// WSClient abstracts WebSocket signature confirmation.
type WSClient interface {
	// SubscribeSignature subscribes to confirmation of a single signature
	// at confirmed commitment. The returned channel receives exactly one
	// notification when the transaction is processed, then closes. The
	// node auto-unsubscribes after the first notification.
	SubscribeSignature(ctx context.Context, signature string) (<-chan SignatureNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// SignatureNotification is a one-shot signatureSubscribe result.
type SignatureNotification struct {
	Signature string
	Slot      int64
	// Err is non-nil when the transaction landed but failed on-chain.
	Err interface{}
}
