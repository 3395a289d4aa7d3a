package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clayrobbins/brokeagent-cash/internal/claims"
	"github.com/clayrobbins/brokeagent-cash/internal/faucet"
	"github.com/clayrobbins/brokeagent-cash/internal/sol"
)

const validWallet = "11111111111111111111111111111111"

type stubDispatcher struct {
	calls  int
	result sol.DispatchResult
	err    error
}

func (d *stubDispatcher) Dispatch(context.Context, string) (*sol.DispatchResult, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	result := d.result
	return &result, nil
}

type stubTreasury struct {
	balances sol.TreasuryBalances
	err      error
}

func (s *stubTreasury) Balances(context.Context) (*sol.TreasuryBalances, error) {
	if s.err != nil {
		return nil, s.err
	}
	balances := s.balances
	return &balances, nil
}

func newTestServer(t *testing.T, dispatcher faucet.Dispatcher, treasury TreasuryReader) (*Server, *claims.MemoryStore) {
	t.Helper()
	store := claims.NewMemoryStore()
	service := faucet.NewService(store, dispatcher, nil)
	srv := New(service, treasury, nil, Config{
		ClaimMessage:   "Claimed $1 CASH + 0.001 SOL",
		WalletSetupURL: "https://agentwallet.mcpay.tech/skill.md",
	}, nil)
	return srv, store
}

func doJSON(t *testing.T, srv *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	return rec, parsed
}

func TestClaimEndpoint(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		dispatcher := &stubDispatcher{result: sol.DispatchResult{SolTx: "sig123", CashTx: "sig123"}}
		srv, store := newTestServer(t, dispatcher, nil)

		rec, body := doJSON(t, srv, http.MethodPost, "/claim", `{"walletAddress":"`+validWallet+`"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, true, body["success"])
		require.Equal(t, "sig123", body["solTx"])
		require.Equal(t, "sig123", body["cashTx"])
		require.Equal(t, "Claimed $1 CASH + 0.001 SOL", body["message"])

		record, err := store.Get(context.Background(), validWallet)
		require.NoError(t, err)
		require.NotNil(t, record)
	})

	t.Run("empty body is no_wallet", func(t *testing.T) {
		dispatcher := &stubDispatcher{}
		srv, _ := newTestServer(t, dispatcher, nil)

		rec, body := doJSON(t, srv, http.MethodPost, "/claim", `{}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, false, body["success"])
		require.Equal(t, "no_wallet", body["error"])
		require.Equal(t, "https://agentwallet.mcpay.tech/skill.md", body["setupUrl"])
		require.Zero(t, dispatcher.calls)
	})

	t.Run("invalid wallet", func(t *testing.T) {
		dispatcher := &stubDispatcher{}
		srv, _ := newTestServer(t, dispatcher, nil)

		rec, body := doJSON(t, srv, http.MethodPost, "/claim", `{"walletAddress":"not-a-wallet"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "invalid_wallet", body["error"])
		require.Zero(t, dispatcher.calls)
	})

	t.Run("second claim is already_claimed", func(t *testing.T) {
		dispatcher := &stubDispatcher{result: sol.DispatchResult{SolTx: "sig", CashTx: "sig"}}
		srv, _ := newTestServer(t, dispatcher, nil)

		rec, _ := doJSON(t, srv, http.MethodPost, "/claim", `{"walletAddress":"`+validWallet+`"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		rec, body := doJSON(t, srv, http.MethodPost, "/claim", `{"walletAddress":"`+validWallet+`"}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "already_claimed", body["error"])
		require.Equal(t, 1, dispatcher.calls)
	})

	t.Run("dispatch failure is server_error", func(t *testing.T) {
		dispatcher := &stubDispatcher{err: errors.New("rpc down")}
		srv, _ := newTestServer(t, dispatcher, nil)

		rec, body := doJSON(t, srv, http.MethodPost, "/claim", `{"walletAddress":"`+validWallet+`"}`)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		require.Equal(t, "server_error", body["error"])
		// Internal detail must not leak to the caller.
		require.NotContains(t, body["message"], "rpc down")
	})
}

func TestStatusEndpoint(t *testing.T) {
	dispatcher := &stubDispatcher{result: sol.DispatchResult{SolTx: "sol-sig", CashTx: "cash-sig"}}
	srv, store := newTestServer(t, dispatcher, nil)

	t.Run("invalid wallet", func(t *testing.T) {
		rec, body := doJSON(t, srv, http.MethodGet, "/status/bogus", "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "invalid_wallet", body["error"])
	})

	t.Run("unclaimed", func(t *testing.T) {
		rec, body := doJSON(t, srv, http.MethodGet, "/status/"+validWallet, "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, false, body["claimed"])
		require.NotContains(t, body, "solTx")
	})

	t.Run("claimed", func(t *testing.T) {
		written, err := store.Record(context.Background(), validWallet, "sol-sig", "cash-sig")
		require.NoError(t, err)

		rec, body := doJSON(t, srv, http.MethodGet, "/status/"+validWallet, "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, true, body["claimed"])
		require.Equal(t, "sol-sig", body["solTx"])
		require.Equal(t, "cash-sig", body["cashTx"])
		require.Equal(t, written.ClaimedAt.UTC().Format("2006-01-02T15:04:05Z07:00"), body["claimedAt"])
	})
}

func TestBalanceEndpoint(t *testing.T) {
	t.Run("reports balances", func(t *testing.T) {
		treasury := &stubTreasury{balances: sol.TreasuryBalances{Sol: 2.5, Cash: 41.5}}
		srv, _ := newTestServer(t, &stubDispatcher{}, treasury)

		rec, body := doJSON(t, srv, http.MethodGet, "/balance", "")
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, true, body["success"])
		require.Equal(t, "2.5000", body["solFormatted"])
		require.Equal(t, "41.50", body["cashFormatted"])
		require.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
	})

	t.Run("treasury error", func(t *testing.T) {
		treasury := &stubTreasury{err: errors.New("rpc down")}
		srv, _ := newTestServer(t, &stubDispatcher{}, treasury)

		rec, body := doJSON(t, srv, http.MethodGet, "/balance", "")
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		require.Equal(t, "server_error", body["error"])
	})
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &stubDispatcher{}, nil)
	rec, body := doJSON(t, srv, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", body["status"])
}
