package claims

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testWallet = "9ZWCK5JzfQjy2WUS6csCBPj9aeyZzBZyUhjJ9RaTnKz6"

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	claimed, err := store.Has(ctx, testWallet)
	require.NoError(t, err)
	require.False(t, claimed)

	record, err := store.Get(ctx, testWallet)
	require.NoError(t, err)
	require.Nil(t, record)

	written, err := store.Record(ctx, testWallet, "sig-sol", "sig-cash")
	require.NoError(t, err)
	require.Equal(t, testWallet, written.WalletAddress)
	require.Equal(t, "sig-sol", written.SolTx)
	require.Equal(t, "sig-cash", written.CashTx)
	require.WithinDuration(t, time.Now(), written.ClaimedAt, time.Second)

	claimed, err = store.Has(ctx, testWallet)
	require.NoError(t, err)
	require.True(t, claimed)

	read, err := store.Get(ctx, testWallet)
	require.NoError(t, err)
	require.Equal(t, written, read)
}

func TestMemoryStoreRecordOverwrites(t *testing.T) {
	// Record is an unconditional write; the last writer wins.
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Record(ctx, testWallet, "first", "first")
	require.NoError(t, err)
	_, err = store.Record(ctx, testWallet, "second", "second")
	require.NoError(t, err)

	read, err := store.Get(ctx, testWallet)
	require.NoError(t, err)
	require.Equal(t, "second", read.SolTx)
}

func TestClaimRecordJSONShape(t *testing.T) {
	record := ClaimRecord{
		WalletAddress: testWallet,
		SolTx:         "sig",
		CashTx:        "sig",
		ClaimedAt:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	data, err := json.Marshal(record)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	require.Contains(t, fields, "walletAddress")
	require.Contains(t, fields, "solTx")
	require.Contains(t, fields, "cashTx")
	require.Equal(t, "2026-03-01T12:00:00Z", fields["claimedAt"])

	var back ClaimRecord
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, record, back)
}
