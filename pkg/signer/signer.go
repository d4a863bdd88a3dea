// Package signer wraps the server's secp256k1 signing identity. Messages are
// signed with the EIP-191 personal-message convention so receipt signatures
// can never be replayed as transactions, and signatures are recoverable: the
// signer address is derived from the message + signature pair alone.
package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/scrapesafe/scrapesafe-backend/pkg/canonical"
	"github.com/scrapesafe/scrapesafe-backend/pkg/config"
	"github.com/scrapesafe/scrapesafe-backend/pkg/logger"
)

// Verification reports the outcome of a signature check.
type Verification struct {
	Valid  bool   `json:"valid"`
	Signer string `json:"signer,omitempty"`
}

// Signer holds the process-wide signing identity. It is constructed once at
// startup and passed into every component that signs or verifies; signing is
// a pure function of the key and the message, so concurrent use is safe.
type Signer struct {
	key     *ecdsa.PrivateKey
	address string
}

// New materializes the signing identity from the configured secret. A missing
// or malformed secret is fatal to the caller; there is no unsigned mode.
func New(cfg config.SignerConfig, logg *logger.Logger) (*Signer, error) {
	secret := strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKeyHex), "0x")
	if secret == "" {
		return nil, fmt.Errorf("signer private key is required")
	}

	key, err := crypto.HexToECDSA(secret)
	if err != nil {
		return nil, fmt.Errorf("parsing signer private key: %w", err)
	}

	s := &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey).Hex(),
	}

	if logg != nil {
		ctx := logg.WithField(context.Background(), "signer_address", s.address)
		logg.Info(ctx, "signing identity initialized")
	}
	return s, nil
}

// Address returns the identity's public address.
func (s *Signer) Address() string {
	return s.address
}

// SignMessage signs the exact string with the EIP-191 personal-message scheme
// and returns the 65-byte signature hex-encoded with a 0x prefix.
func (s *Signer) SignMessage(message string) (string, error) {
	digest := accounts.TextHash([]byte(message))
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return "", fmt.Errorf("signing message: %w", err)
	}
	// Shift the recovery id to the 27/28 convention used by wallets.
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// SignCanonical signs the canonical JSON form of the value.
func (s *Signer) SignCanonical(value any) (string, error) {
	message, err := canonical.Marshal(value)
	if err != nil {
		return "", err
	}
	return s.SignMessage(message)
}

// VerifyReceipt checks that the signature over the value's canonical form was
// produced by this server identity. Malformed signatures yield an invalid
// result, never an error.
func (s *Signer) VerifyReceipt(value any, signature string) Verification {
	return VerifyOwner(value, signature, s.address)
}

// RecoverSigner recovers the address that signed the message. It returns an
// error only for malformed input; callers treat that as an invalid signature.
func RecoverSigner(message, signature string) (string, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return "", fmt.Errorf("decoding signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return "", fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}

	// Accept both the raw 0/1 recovery id and the 27/28 wallet convention.
	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}

	digest := accounts.TextHash([]byte(message))
	pub, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return "", fmt.Errorf("recovering public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

// VerifyOwner checks that the signature over the value's canonical form was
// produced by the expected address. Used for owner-authored artifacts such as
// rights files; comparison is case-insensitive.
func VerifyOwner(value any, signature, expectedAddress string) Verification {
	message, err := canonical.Marshal(value)
	if err != nil {
		return Verification{}
	}
	recovered, err := RecoverSigner(message, signature)
	if err != nil {
		return Verification{}
	}
	return Verification{
		Valid:  strings.EqualFold(recovered, expectedAddress),
		Signer: recovered,
	}
}
