// Package faucet sequences a claim: validate the wallet, check for a prior
// claim, dispatch funds, record the claim. Each stage can short-circuit
// with a terminal outcome from a small error-code taxonomy.
package faucet

import (
	"fmt"
)

// Error codes surfaced to callers. NoWallet, InvalidWallet and
// AlreadyClaimed are client errors and are never retried; ServerError
// covers store and dispatch failures and the caller may retry the whole
// request.
const (
	CodeNoWallet       = "no_wallet"
	CodeInvalidWallet  = "invalid_wallet"
	CodeAlreadyClaimed = "already_claimed"
	CodeServerError    = "server_error"
)

// ClaimError is a terminal pipeline outcome with a machine-readable code
// and a human-readable message. Internal causes are kept for logging and
// never exposed to callers.
type ClaimError struct {
	Code    string
	Message string
	Err     error
}

func (e *ClaimError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ClaimError) Unwrap() error {
	return e.Err
}

func newClaimError(code, message string, cause error) *ClaimError {
	return &ClaimError{Code: code, Message: message, Err: cause}
}
