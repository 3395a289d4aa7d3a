package sol

import (
	"fmt"

	solana "github.com/gagliardetto/solana-go"
)

// Signer holds the faucet's Ed25519 keypair. It is loaded once at startup
// and shared read-only across all requests.
type Signer struct {
	key solana.PrivateKey
}

// NewSignerFromBase58 parses a base58-encoded Solana private key.
func NewSignerFromBase58(privateKeyBase58 string) (*Signer, error) {
	key, err := solana.PrivateKeyFromBase58(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("invalid faucet private key: %w", err)
	}
	return &Signer{key: key}, nil
}

// PublicKey returns the faucet's primary address.
func (s *Signer) PublicKey() solana.PublicKey {
	return s.key.PublicKey()
}

// Sign signs the transaction with the faucet key. The faucet is the fee
// payer and sole required signer for every transaction this service builds.
func (s *Signer) Sign(tx *solana.Transaction) error {
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(s.key.PublicKey()) {
			return &s.key
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}
