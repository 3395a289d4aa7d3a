// Package config loads the faucet's configuration from the environment.
// Policy constants (transfer amounts, mint, token program, dispatch modes)
// live here, not in the core logic.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/clayrobbins/brokeagent-cash/internal/sol"
)

// Defaults for the CASH faucet: $1 CASH (6 decimals) and 0.001 SOL per
// claim.
const (
	defaultCashMint          = "CASHx9KJUStyftLFWGvEVf59SGeG9sh5FfcnZMVPCASH"
	defaultCashDecimals      = 6
	defaultCashAmount        = 1_000_000
	defaultSolAmountLamports = 1_000_000
	defaultPort              = 3000
	defaultComputeUnitLimit  = 200_000
	defaultWalletSetupURL    = "https://agentwallet.mcpay.tech/skill.md"
)

// Config is the full service configuration.
type Config struct {
	Port int

	SolanaRPCURL     string
	RedisURL         string
	FaucetPrivateKey string

	CashMint          string
	TokenProgram      string
	CashDecimals      uint8
	CashAmount        uint64
	SolAmountLamports uint64

	ConfirmationMode sol.ConfirmationMode
	BundlingMode     sol.BundlingMode
	ComputeUnitLimit uint32
	ComputeUnitPrice uint64

	ClaimKeyPrefix string
	WalletSetupURL string
}

// Load reads configuration from environment variables, applying defaults
// for everything except the three required secrets/endpoints:
// SOLANA_RPC_URL, REDIS_URL and FAUCET_PRIVATE_KEY.
func Load() (*Config, error) {
	cfg := &Config{
		Port:             defaultPort,
		SolanaRPCURL:     os.Getenv("SOLANA_RPC_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		FaucetPrivateKey: os.Getenv("FAUCET_PRIVATE_KEY"),

		CashMint:          envOr("CASH_MINT", defaultCashMint),
		TokenProgram:      os.Getenv("TOKEN_PROGRAM_ID"),
		CashDecimals:      defaultCashDecimals,
		CashAmount:        defaultCashAmount,
		SolAmountLamports: defaultSolAmountLamports,

		ConfirmationMode: sol.ConfirmFireAndForget,
		BundlingMode:     sol.BundleCombined,
		ComputeUnitLimit: defaultComputeUnitLimit,

		ClaimKeyPrefix: os.Getenv("CLAIM_KEY_PREFIX"),
		WalletSetupURL: envOr("WALLET_SETUP_URL", defaultWalletSetupURL),
	}

	if cfg.SolanaRPCURL == "" {
		return nil, fmt.Errorf("SOLANA_RPC_URL environment variable not set")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL environment variable not set")
	}
	if cfg.FaucetPrivateKey == "" {
		return nil, fmt.Errorf("FAUCET_PRIVATE_KEY environment variable not set")
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid PORT: %q", v)
		}
		cfg.Port = port
	}

	if v := os.Getenv("CASH_DECIMALS"); v != "" {
		decimals, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid CASH_DECIMALS: %q", v)
		}
		cfg.CashDecimals = uint8(decimals)
	}
	if v := os.Getenv("CASH_AMOUNT"); v != "" {
		amount, err := strconv.ParseUint(v, 10, 64)
		if err != nil || amount == 0 {
			return nil, fmt.Errorf("invalid CASH_AMOUNT: %q", v)
		}
		cfg.CashAmount = amount
	}
	if v := os.Getenv("SOL_AMOUNT_LAMPORTS"); v != "" {
		amount, err := strconv.ParseUint(v, 10, 64)
		if err != nil || amount == 0 {
			return nil, fmt.Errorf("invalid SOL_AMOUNT_LAMPORTS: %q", v)
		}
		cfg.SolAmountLamports = amount
	}

	if v := os.Getenv("CONFIRMATION_MODE"); v != "" {
		switch sol.ConfirmationMode(v) {
		case sol.ConfirmFireAndForget, sol.ConfirmWait:
			cfg.ConfirmationMode = sol.ConfirmationMode(v)
		default:
			return nil, fmt.Errorf("invalid CONFIRMATION_MODE: %q", v)
		}
	}
	if v := os.Getenv("TX_BUNDLING"); v != "" {
		switch sol.BundlingMode(v) {
		case sol.BundleCombined, sol.BundleSeparate:
			cfg.BundlingMode = sol.BundlingMode(v)
		default:
			return nil, fmt.Errorf("invalid TX_BUNDLING: %q", v)
		}
	}

	if v := os.Getenv("COMPUTE_UNIT_LIMIT"); v != "" {
		limit, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid COMPUTE_UNIT_LIMIT: %q", v)
		}
		cfg.ComputeUnitLimit = uint32(limit)
	}
	if v := os.Getenv("COMPUTE_UNIT_PRICE"); v != "" {
		price, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid COMPUTE_UNIT_PRICE: %q", v)
		}
		cfg.ComputeUnitPrice = price
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
