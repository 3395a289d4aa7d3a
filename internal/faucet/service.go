package faucet

import (
	"context"
	"log/slog"

	"github.com/clayrobbins/brokeagent-cash/internal/claims"
	"github.com/clayrobbins/brokeagent-cash/internal/sol"
)

// Dispatcher sends the faucet disbursement to a recipient.
type Dispatcher interface {
	Dispatch(ctx context.Context, recipientAddress string) (*sol.DispatchResult, error)
}

// Service orchestrates claims. It owns sequencing only; the store owns
// persistence and the dispatcher owns transaction construction. No retries:
// every external failure terminates the flow and is returned to the caller.
type Service struct {
	store      claims.Store
	dispatcher Dispatcher
	validate   func(string) bool
	log        *slog.Logger
}

// NewService wires the claim pipeline.
func NewService(store claims.Store, dispatcher Dispatcher, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		validate:   sol.IsValidAddress,
		log:        log,
	}
}

// Claim runs validate -> prior-claim check -> dispatch -> record for the
// wallet and returns the persisted record on success, or a *ClaimError.
//
// The check and the record write are not one atomic operation: two
// concurrent claims for the same wallet can both pass the check and both
// dispatch, with the last record write winning. Ordering is
// dispatch-then-record: if the record write fails after a successful
// dispatch, the wallet has received funds that the store does not know
// about.
func (s *Service) Claim(ctx context.Context, wallet string) (*claims.ClaimRecord, error) {
	if wallet == "" {
		return nil, newClaimError(CodeNoWallet, "Create an AgentWallet first", nil)
	}
	if !s.validate(wallet) {
		return nil, newClaimError(CodeInvalidWallet, "Invalid Solana wallet address", nil)
	}

	claimed, err := s.store.Has(ctx, wallet)
	if err != nil {
		s.log.Error("claim check failed", "wallet", wallet, "error", err)
		return nil, newClaimError(CodeServerError, "An unknown error occurred", err)
	}
	if claimed {
		return nil, newClaimError(CodeAlreadyClaimed, "This wallet has already claimed from the faucet", nil)
	}

	result, err := s.dispatcher.Dispatch(ctx, wallet)
	if err != nil {
		s.log.Error("dispatch failed", "wallet", wallet, "error", err)
		return nil, newClaimError(CodeServerError, "An unknown error occurred", err)
	}

	record, err := s.store.Record(ctx, wallet, result.SolTx, result.CashTx)
	if err != nil {
		// Funds were submitted but the claim was not recorded: this
		// wallet can pass the prior-claim check again on retry.
		s.log.Error("claim record write failed after dispatch",
			"wallet", wallet, "solTx", result.SolTx, "cashTx", result.CashTx, "error", err)
		return nil, newClaimError(CodeServerError, "An unknown error occurred", err)
	}

	s.log.Info("claim dispatched", "wallet", wallet, "solTx", record.SolTx, "cashTx", record.CashTx)
	return record, nil
}

// Status reports whether the wallet has claimed, with the stored record
// when it has.
func (s *Service) Status(ctx context.Context, wallet string) (*claims.ClaimRecord, error) {
	if !s.validate(wallet) {
		return nil, newClaimError(CodeInvalidWallet, "Invalid Solana wallet address", nil)
	}
	record, err := s.store.Get(ctx, wallet)
	if err != nil {
		s.log.Error("status check failed", "wallet", wallet, "error", err)
		return nil, newClaimError(CodeServerError, "An unknown error occurred", err)
	}
	return record, nil
}
