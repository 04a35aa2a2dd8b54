package sdk

import (
	"bytes"
	"context"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/twistededwards/eddsa"

	"github.com/setavenger/zkwizard/internal/rollup"
	"github.com/setavenger/zkwizard/internal/wallet"
)

// PublicKey is an account public key on the rollup.
type PublicKey = rollup.PublicKey

// Messages signed by the chain account to derive the rollup keys. Changing
// them changes every derived key.
const (
	AccountKeyMessage = "Sign this message to generate your privacy key. This key lets the application decrypt your balance.\n\n" +
		"IMPORTANT: Only sign this message if you trust the application."
	SpendingKeyMessage = "Sign this message to generate your spending key. This key lets the application spend your funds.\n\n" +
		"IMPORTANT: Only sign this message if you trust the application."
)

// KeyPair is an account key pair. PrivateKey is the serialised eddsa key.
type KeyPair struct {
	PublicKey  PublicKey
	PrivateKey []byte
}

// GenerateAccountKeyPair derives the privacy key pair of addr. The same
// account always yields the same pair.
func (c *Client) GenerateAccountKeyPair(ctx context.Context, addr wallet.EthAddress) (*KeyPair, error) {
	return c.deriveKeyPair(ctx, addr, AccountKeyMessage)
}

// GenerateSpendingKeyPair derives the spending key pair of addr.
func (c *Client) GenerateSpendingKeyPair(ctx context.Context, addr wallet.EthAddress) (*KeyPair, error) {
	return c.deriveKeyPair(ctx, addr, SpendingKeyMessage)
}

func (c *Client) deriveKeyPair(ctx context.Context, addr wallet.EthAddress, message string) (*KeyPair, error) {
	sig, err := c.provider.SignPersonalMessage(ctx, addr, []byte(message))
	if err != nil {
		return nil, fmt.Errorf("failed to sign key derivation message: %w", err)
	}
	if len(sig) != wallet.SignatureLength {
		return nil, wallet.ErrInvalidSignature
	}
	// V is not part of the seed, wallets disagree on its encoding
	return KeyPairFromSeed(wallet.Keccak256(sig[:64]))
}

// KeyPairFromSeed deterministically derives a key pair from a 32 byte seed.
func KeyPairFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) < 32 {
		return nil, fmt.Errorf("seed too short: %d bytes", len(seed))
	}
	priv, err := eddsa.GenerateKey(bytes.NewReader(seed[:32]))
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return keyPairOf(priv), nil
}

func keyPairOf(priv *eddsa.PrivateKey) *KeyPair {
	var pub PublicKey
	copy(pub[:], priv.PublicKey.Bytes())
	return &KeyPair{
		PublicKey:  pub,
		PrivateKey: priv.Bytes(),
	}
}

func parsePrivateKey(b []byte) (*eddsa.PrivateKey, error) {
	priv := new(eddsa.PrivateKey)
	if _, err := priv.SetBytes(b); err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return priv, nil
}
