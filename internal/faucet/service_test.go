package faucet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clayrobbins/brokeagent-cash/internal/claims"
	"github.com/clayrobbins/brokeagent-cash/internal/sol"
)

const validWallet = "11111111111111111111111111111111"

type stubDispatcher struct {
	calls  int
	result sol.DispatchResult
	err    error
}

func (d *stubDispatcher) Dispatch(_ context.Context, _ string) (*sol.DispatchResult, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	result := d.result
	return &result, nil
}

// failingStore wraps a memory store and fails selected operations.
type failingStore struct {
	*claims.MemoryStore
	hasErr    error
	recordErr error
	hasCalls  int
}

func (s *failingStore) Has(ctx context.Context, wallet string) (bool, error) {
	s.hasCalls++
	if s.hasErr != nil {
		return false, s.hasErr
	}
	return s.MemoryStore.Has(ctx, wallet)
}

func (s *failingStore) Record(ctx context.Context, wallet, solTx, cashTx string) (*claims.ClaimRecord, error) {
	if s.recordErr != nil {
		return nil, s.recordErr
	}
	return s.MemoryStore.Record(ctx, wallet, solTx, cashTx)
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var claimErr *ClaimError
	require.ErrorAs(t, err, &claimErr)
	require.Equal(t, code, claimErr.Code)
}

func TestClaimSuccess(t *testing.T) {
	ctx := context.Background()
	store := claims.NewMemoryStore()
	dispatcher := &stubDispatcher{result: sol.DispatchResult{SolTx: "sig", CashTx: "sig"}}
	service := NewService(store, dispatcher, nil)

	record, err := service.Claim(ctx, validWallet)
	require.NoError(t, err)
	require.Equal(t, 1, dispatcher.calls)
	require.Equal(t, validWallet, record.WalletAddress)
	require.Equal(t, "sig", record.SolTx)
	require.Equal(t, "sig", record.CashTx)

	stored, err := store.Get(ctx, validWallet)
	require.NoError(t, err)
	require.Equal(t, record, stored)
}

func TestClaimRejectsMissingWallet(t *testing.T) {
	store := &failingStore{MemoryStore: claims.NewMemoryStore()}
	dispatcher := &stubDispatcher{}
	service := NewService(store, dispatcher, nil)

	_, err := service.Claim(context.Background(), "")
	requireCode(t, err, CodeNoWallet)
	require.Zero(t, dispatcher.calls)
	require.Zero(t, store.hasCalls)
}

func TestClaimRejectsInvalidWallet(t *testing.T) {
	store := &failingStore{MemoryStore: claims.NewMemoryStore()}
	dispatcher := &stubDispatcher{}
	service := NewService(store, dispatcher, nil)

	for _, wallet := range []string{"not-base58!!", "0xabc", "123"} {
		_, err := service.Claim(context.Background(), wallet)
		requireCode(t, err, CodeInvalidWallet)
	}
	require.Zero(t, dispatcher.calls)
	require.Zero(t, store.hasCalls)
}

func TestClaimRejectsSecondClaim(t *testing.T) {
	ctx := context.Background()
	store := claims.NewMemoryStore()
	dispatcher := &stubDispatcher{result: sol.DispatchResult{SolTx: "a", CashTx: "b"}}
	service := NewService(store, dispatcher, nil)

	_, err := service.Claim(ctx, validWallet)
	require.NoError(t, err)

	_, err = service.Claim(ctx, validWallet)
	requireCode(t, err, CodeAlreadyClaimed)
	require.Equal(t, 1, dispatcher.calls, "second claim must not dispatch")
}

func TestClaimStoreUnavailable(t *testing.T) {
	store := &failingStore{
		MemoryStore: claims.NewMemoryStore(),
		hasErr:      claims.ErrStoreUnavailable,
	}
	dispatcher := &stubDispatcher{}
	service := NewService(store, dispatcher, nil)

	_, err := service.Claim(context.Background(), validWallet)
	requireCode(t, err, CodeServerError)
	require.Zero(t, dispatcher.calls)
}

func TestClaimDispatchFailure(t *testing.T) {
	ctx := context.Background()
	store := claims.NewMemoryStore()
	dispatcher := &stubDispatcher{err: sol.ErrDispatchFailed}
	service := NewService(store, dispatcher, nil)

	_, err := service.Claim(ctx, validWallet)
	requireCode(t, err, CodeServerError)

	// No record is written on dispatch failure; the wallet may retry.
	record, err := store.Get(ctx, validWallet)
	require.NoError(t, err)
	require.Nil(t, record)
}

func TestClaimRecordWriteFailureAfterDispatch(t *testing.T) {
	store := &failingStore{
		MemoryStore: claims.NewMemoryStore(),
		recordErr:   claims.ErrStoreUnavailable,
	}
	dispatcher := &stubDispatcher{result: sol.DispatchResult{SolTx: "sig", CashTx: "sig"}}
	service := NewService(store, dispatcher, nil)

	_, err := service.Claim(context.Background(), validWallet)
	requireCode(t, err, CodeServerError)
	require.Equal(t, 1, dispatcher.calls, "funds were dispatched before the write failed")
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	store := claims.NewMemoryStore()
	service := NewService(store, &stubDispatcher{}, nil)

	t.Run("invalid wallet", func(t *testing.T) {
		_, err := service.Status(ctx, "nope")
		requireCode(t, err, CodeInvalidWallet)
	})

	t.Run("unclaimed", func(t *testing.T) {
		record, err := service.Status(ctx, validWallet)
		require.NoError(t, err)
		require.Nil(t, record)
	})

	t.Run("claimed", func(t *testing.T) {
		written, err := store.Record(ctx, validWallet, "sol-sig", "cash-sig")
		require.NoError(t, err)

		record, err := service.Status(ctx, validWallet)
		require.NoError(t, err)
		require.Equal(t, written, record)
	})
}
