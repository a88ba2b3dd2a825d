// Package wallet holds the trading keypair and signs serialized
// transactions produced by the swap aggregator.
package wallet

import (
	"crypto/ed25519"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Wallet wraps an ed25519 keypair. The private key never leaves this
// package; callers get the public key and signing only.
type Wallet struct {
	priv   ed25519.PrivateKey
	pubkey string
}

// NewFromBase58 builds a Wallet from a base58-encoded 64-byte secret key
// (seed followed by public key, the standard Solana export format).
// The embedded public key is validated against the seed and checked to be
// a canonical curve point.
func NewFromBase58(secret string) (*Wallet, error) {
	raw, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	defer zero(raw)

	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}

	priv := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	pub := priv.Public().(ed25519.PublicKey)

	if subtle.ConstantTimeCompare(pub, raw[ed25519.SeedSize:]) != 1 {
		return nil, fmt.Errorf("private key public half does not match seed")
	}

	if _, err := new(edwards25519.Point).SetBytes(pub); err != nil {
		return nil, fmt.Errorf("public key is not a canonical curve point: %w", err)
	}

	return &Wallet{
		priv:   priv,
		pubkey: base58.Encode(pub),
	}, nil
}

// PublicKey returns the base58-encoded public key.
func (w *Wallet) PublicKey() string {
	return w.pubkey
}

// SignTransaction signs a base64-encoded serialized transaction and
// returns it with the fee payer signature filled in. The aggregator
// builds transactions with the wallet as fee payer, so the signature
// goes into the first slot.
func (w *Wallet) SignTransaction(txBase64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return "", fmt.Errorf("decode transaction: %w", err)
	}

	numSigs, offset, err := decodeShortVecLen(raw)
	if err != nil {
		return "", fmt.Errorf("parse signature count: %w", err)
	}
	if numSigs == 0 {
		return "", fmt.Errorf("transaction has no signature slots")
	}

	sigEnd := offset + numSigs*ed25519.SignatureSize
	if sigEnd > len(raw) {
		return "", fmt.Errorf("transaction truncated: %d signature slots in %d bytes", numSigs, len(raw))
	}

	message := raw[sigEnd:]
	sig := ed25519.Sign(w.priv, message)
	copy(raw[offset:offset+ed25519.SignatureSize], sig)

	return base64.StdEncoding.EncodeToString(raw), nil
}

// Zero wipes the private key material. The wallet is unusable afterwards.
func (w *Wallet) Zero() {
	zero(w.priv)
}

// decodeShortVecLen decodes the compact-u16 length prefix used by the
// Solana wire format. Returns the length and the number of bytes consumed.
func decodeShortVecLen(data []byte) (int, int, error) {
	var length, shift int
	for i := 0; i < 3; i++ {
		if i >= len(data) {
			return 0, 0, fmt.Errorf("short input")
		}
		b := data[i]
		length |= int(b&0x7f) << shift
		if b&0x80 == 0 {
			return length, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, fmt.Errorf("compact-u16 too long")
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
