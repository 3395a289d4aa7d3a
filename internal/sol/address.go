// Package sol owns everything that touches the Solana network: address
// validation, the faucet signing key, transaction assembly for the
// SOL + CASH disbursement, and treasury balance reads.
package sol

import (
	solana "github.com/gagliardetto/solana-go"
)

// IsValidAddress reports whether candidate parses as a structurally valid
// Solana address (base58, 32 bytes). Pure; never panics.
func IsValidAddress(candidate string) bool {
	_, err := solana.PublicKeyFromBase58(candidate)
	return err == nil
}
