// Package claims persists the one-claim-per-wallet record that gates the
// faucet. A wallet address maps to at most one ClaimRecord, written once at
// the end of a successful dispatch and never mutated or deleted.
package claims

import (
	"context"
	"errors"
	"time"
)

// DefaultKeyPrefix namespaces claim keys in the backing store.
const DefaultKeyPrefix = "claim:"

var (
	// ErrStoreUnavailable indicates the backing store could not be reached.
	ErrStoreUnavailable = errors.New("claim store unavailable")
	// ErrCorruptRecord indicates a stored value failed to deserialize.
	ErrCorruptRecord = errors.New("corrupt claim record")
)

// ClaimRecord is a completed disbursement. SolTx and CashTx are opaque
// transaction signatures; they are equal when both transfers were bundled
// into a single submission.
type ClaimRecord struct {
	WalletAddress string    `json:"walletAddress"`
	SolTx         string    `json:"solTx"`
	CashTx        string    `json:"cashTx"`
	ClaimedAt     time.Time `json:"claimedAt"`
}

// Store abstracts claim persistence. Implementations must be safe for
// concurrent use.
//
// Note that Has followed by Record is not atomic: two concurrent claims for
// the same wallet can both observe no prior record before either writes.
// The one-claim guarantee is only as strong as that window allows.
type Store interface {
	// Has reports whether a claim record exists for the wallet.
	Has(ctx context.Context, wallet string) (bool, error)

	// Get fetches the claim record for the wallet, or (nil, nil) when
	// the wallet has never claimed.
	Get(ctx context.Context, wallet string) (*ClaimRecord, error)

	// Record writes a new claim record stamped with the current time,
	// unconditionally overwriting any existing value at that key.
	Record(ctx context.Context, wallet, solTx, cashTx string) (*ClaimRecord, error)
}
