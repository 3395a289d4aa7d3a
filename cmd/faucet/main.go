package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/joho/godotenv"

	"github.com/clayrobbins/brokeagent-cash/internal/claims"
	"github.com/clayrobbins/brokeagent-cash/internal/config"
	"github.com/clayrobbins/brokeagent-cash/internal/faucet"
	"github.com/clayrobbins/brokeagent-cash/internal/server"
	"github.com/clayrobbins/brokeagent-cash/internal/sol"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	if err := run(log); err != nil {
		log.Error("faucet exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	signer, err := sol.NewSignerFromBase58(cfg.FaucetPrivateKey)
	if err != nil {
		return err
	}

	mint, err := solana.PublicKeyFromBase58(cfg.CashMint)
	if err != nil {
		return fmt.Errorf("invalid CASH_MINT: %w", err)
	}
	tokenProgram := solana.Token2022ProgramID
	if cfg.TokenProgram != "" {
		tokenProgram, err = solana.PublicKeyFromBase58(cfg.TokenProgram)
		if err != nil {
			return fmt.Errorf("invalid TOKEN_PROGRAM_ID: %w", err)
		}
	}

	dispatcher, err := sol.NewDispatcher(rpc.New(cfg.SolanaRPCURL), signer, sol.DispatchPolicy{
		Mint:              mint,
		TokenProgram:      tokenProgram,
		SolAmountLamports: cfg.SolAmountLamports,
		CashAmount:        cfg.CashAmount,
		CashDecimals:      cfg.CashDecimals,
		Confirmation:      cfg.ConfirmationMode,
		Bundling:          cfg.BundlingMode,
		ComputeUnitLimit:  cfg.ComputeUnitLimit,
		ComputeUnitPrice:  cfg.ComputeUnitPrice,
	})
	if err != nil {
		return err
	}

	store, err := claims.NewRedisStore(context.Background(), cfg.RedisURL, cfg.ClaimKeyPrefix)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("failed to close claim store", "error", err)
		}
	}()

	service := faucet.NewService(store, dispatcher, log)

	srv := server.New(service, dispatcher, store, server.Config{
		ClaimMessage:   claimMessage(cfg),
		WalletSetupURL: cfg.WalletSetupURL,
	}, log)

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Info("faucet listening",
		"addr", addr,
		"faucet", signer.PublicKey(),
		"mint", cfg.CashMint,
		"confirmation", string(cfg.ConfirmationMode),
		"bundling", string(cfg.BundlingMode),
	)
	return srv.Run(addr)
}

func claimMessage(cfg *config.Config) string {
	cash := float64(cfg.CashAmount)
	for i := uint8(0); i < cfg.CashDecimals; i++ {
		cash /= 10
	}
	solAmount := float64(cfg.SolAmountLamports) / 1e9
	return fmt.Sprintf("Claimed $%g CASH + %g SOL", cash, solAmount)
}
