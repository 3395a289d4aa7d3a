package sol

import (
	"context"
	"errors"
	"fmt"
	"time"

	bin "github.com/gagliardetto/binary"
	solana "github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
)

// ErrDispatchFailed wraps every downstream dispatch error: network errors,
// insufficient faucet balance, rejected transactions, hook resolution
// failures.
var ErrDispatchFailed = errors.New("dispatch failed")

// ConfirmationMode selects the submission policy.
type ConfirmationMode string

const (
	// ConfirmFireAndForget submits without waiting for inclusion. The
	// caller receives a submission reference, not a finality guarantee.
	ConfirmFireAndForget ConfirmationMode = "fire-and-forget"
	// ConfirmWait polls signature status until the transaction is
	// confirmed or the context deadline expires.
	ConfirmWait ConfirmationMode = "wait"
)

// BundlingMode selects how the two transfers are packaged.
type BundlingMode string

const (
	// BundleCombined sends SOL transfer, token-account create and token
	// transfer as one atomic transaction; both refs are the same
	// signature and partial disbursement is impossible.
	BundleCombined BundlingMode = "combined"
	// BundleSeparate sends the SOL transfer and the token transfer as two
	// transactions with distinct signatures.
	BundleSeparate BundlingMode = "separate"
)

const (
	lamportsPerSol     = 1_000_000_000
	defaultWaitTimeout = 60 * time.Second
	statusPollInterval = 500 * time.Millisecond
)

// DispatchPolicy carries the policy constants and mode switches the
// dispatcher operates under. All values come from configuration.
type DispatchPolicy struct {
	Mint              solana.PublicKey
	TokenProgram      solana.PublicKey
	SolAmountLamports uint64
	CashAmount        uint64
	CashDecimals      uint8
	Confirmation      ConfirmationMode
	Bundling          BundlingMode
	// ComputeUnitLimit caps the transaction's compute budget; 0 omits the
	// instruction. ComputeUnitPrice is in micro-lamports; 0 omits it.
	ComputeUnitLimit uint32
	ComputeUnitPrice uint64
}

// DispatchResult references the submitted transfer(s). SolTx equals CashTx
// in combined bundling mode.
type DispatchResult struct {
	SolTx  string
	CashTx string
}

// rpcClient is the subset of the Solana RPC surface the dispatcher uses.
// *rpc.Client satisfies it; tests substitute a fake.
type rpcClient interface {
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
}

// Dispatcher assembles, signs and submits the faucet disbursement. It holds
// no per-request state and is safe for concurrent use.
type Dispatcher struct {
	rpc    rpcClient
	signer *Signer
	policy DispatchPolicy

	faucetTokenAccount solana.PublicKey
}

// NewDispatcher wires a dispatcher against an RPC endpoint.
func NewDispatcher(client rpcClient, signer *Signer, policy DispatchPolicy) (*Dispatcher, error) {
	if client == nil {
		return nil, errors.New("rpc client is required")
	}
	if signer == nil {
		return nil, errors.New("signer is required")
	}
	if policy.Mint.IsZero() {
		return nil, errors.New("mint is required")
	}
	if policy.TokenProgram.IsZero() {
		policy.TokenProgram = solana.Token2022ProgramID
	}
	if policy.Confirmation == "" {
		policy.Confirmation = ConfirmFireAndForget
	}
	if policy.Bundling == "" {
		policy.Bundling = BundleCombined
	}

	faucetATA, err := findTokenAddress(signer.PublicKey(), policy.Mint, policy.TokenProgram)
	if err != nil {
		return nil, err
	}

	return &Dispatcher{
		rpc:                client,
		signer:             signer,
		policy:             policy,
		faucetTokenAccount: faucetATA,
	}, nil
}

// Dispatch sends the fixed SOL and CASH amounts to the recipient. The SOL
// transfer, an idempotent token-account create and the token transfer are
// packaged per the configured bundling mode, signed with the faucet key and
// submitted per the configured confirmation mode.
func (d *Dispatcher) Dispatch(ctx context.Context, recipientAddress string) (*DispatchResult, error) {
	result, err := d.dispatch(ctx, recipientAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}
	return result, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, recipientAddress string) (*DispatchResult, error) {
	recipient, err := solana.PublicKeyFromBase58(recipientAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	faucet := d.signer.PublicKey()

	recipientATA, err := findTokenAddress(recipient, d.policy.Mint, d.policy.TokenProgram)
	if err != nil {
		return nil, err
	}

	hookAccounts, err := d.resolveHookAccounts(ctx, d.faucetTokenAccount, recipientATA, faucet)
	if err != nil {
		return nil, err
	}

	nativeIx := system.NewTransferInstruction(
		d.policy.SolAmountLamports,
		faucet,
		recipient,
	).Build()

	createIx := newCreateTokenAccountIdempotent(
		faucet, recipientATA, recipient, d.policy.Mint, d.policy.TokenProgram,
	)

	transferIx := newTransferChecked(
		d.faucetTokenAccount, d.policy.Mint, recipientATA, faucet,
		d.policy.CashAmount, d.policy.CashDecimals,
		d.policy.TokenProgram, hookAccounts,
	)

	budget, err := d.computeBudgetInstructions()
	if err != nil {
		return nil, err
	}

	latest, err := d.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	blockhash := latest.Value.Blockhash

	switch d.policy.Bundling {
	case BundleSeparate:
		solIxs := append(append([]solana.Instruction{}, budget...), nativeIx)
		cashIxs := append(append([]solana.Instruction{}, budget...), createIx, transferIx)
		solSig, err := d.submit(ctx, solIxs, blockhash)
		if err != nil {
			return nil, err
		}
		cashSig, err := d.submit(ctx, cashIxs, blockhash)
		if err != nil {
			return nil, err
		}
		if err := d.confirm(ctx, solSig, cashSig); err != nil {
			return nil, err
		}
		return &DispatchResult{SolTx: solSig.String(), CashTx: cashSig.String()}, nil

	default:
		sig, err := d.submit(ctx, append(budget, nativeIx, createIx, transferIx), blockhash)
		if err != nil {
			return nil, err
		}
		if err := d.confirm(ctx, sig); err != nil {
			return nil, err
		}
		return &DispatchResult{SolTx: sig.String(), CashTx: sig.String()}, nil
	}
}

// resolveHookAccounts reads the mint, and when it is a Token-2022 mint with
// a transfer hook configured, resolves the hook's extra accounts. The
// returned slice is ready to append to the TransferChecked instruction:
// resolved extras, then the hook program, then the validation account.
func (d *Dispatcher) resolveHookAccounts(
	ctx context.Context,
	source, destination, owner solana.PublicKey,
) ([]*solana.AccountMeta, error) {
	mintAccount, found, err := d.lookupAccount(ctx, d.policy.Mint)
	if err != nil {
		return nil, fmt.Errorf("failed to get mint account: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("mint %s does not exist", d.policy.Mint)
	}
	if !mintAccount.Owner.Equals(d.policy.TokenProgram) {
		return nil, fmt.Errorf("mint %s owned by %s, not configured token program %s",
			d.policy.Mint, mintAccount.Owner, d.policy.TokenProgram)
	}

	mintData := mintAccount.Data.GetBinary()
	var mint token.Mint
	if err := bin.NewBinDecoder(mintData).Decode(&mint); err != nil {
		return nil, fmt.Errorf("failed to decode mint data: %w", err)
	}
	if mint.Decimals != d.policy.CashDecimals {
		return nil, fmt.Errorf("mint has %d decimals, policy expects %d", mint.Decimals, d.policy.CashDecimals)
	}

	// Hooks only exist on Token-2022 mints.
	if !d.policy.TokenProgram.Equals(solana.Token2022ProgramID) {
		return nil, nil
	}

	hookProgram, ok := transferHookProgram(mintData)
	if !ok {
		return nil, nil
	}

	validation, err := findValidationAddress(d.policy.Mint, hookProgram)
	if err != nil {
		return nil, err
	}
	validationAccount, found, err := d.lookupAccount(ctx, validation)
	if err != nil {
		return nil, fmt.Errorf("failed to get validation account: %w", err)
	}
	if !found {
		// Hook program configured but no extra accounts registered.
		return nil, nil
	}

	metas, err := decodeExtraAccountMetaList(validationAccount.Data.GetBinary())
	if err != nil {
		return nil, fmt.Errorf("hook resolution failed: %w", err)
	}

	executeKeys := []*solana.AccountMeta{
		solana.Meta(source).WRITE(),
		solana.Meta(d.policy.Mint),
		solana.Meta(destination).WRITE(),
		solana.Meta(owner).SIGNER(),
		solana.Meta(validation),
	}
	resolved, err := resolveExtraAccountMetas(
		metas, hookProgram, executeKeys, executeInstructionData(d.policy.CashAmount),
	)
	if err != nil {
		return nil, fmt.Errorf("hook resolution failed: %w", err)
	}

	resolved = append(resolved, solana.Meta(hookProgram), solana.Meta(validation))
	return resolved, nil
}

func (d *Dispatcher) computeBudgetInstructions() ([]solana.Instruction, error) {
	var out []solana.Instruction
	if d.policy.ComputeUnitLimit > 0 {
		limit, err := computebudget.NewSetComputeUnitLimitInstructionBuilder().
			SetUnits(d.policy.ComputeUnitLimit).
			ValidateAndBuild()
		if err != nil {
			return nil, fmt.Errorf("failed to build compute limit instruction: %w", err)
		}
		out = append(out, limit)
	}
	if d.policy.ComputeUnitPrice > 0 {
		price, err := computebudget.NewSetComputeUnitPriceInstructionBuilder().
			SetMicroLamports(d.policy.ComputeUnitPrice).
			ValidateAndBuild()
		if err != nil {
			return nil, fmt.Errorf("failed to build compute price instruction: %w", err)
		}
		out = append(out, price)
	}
	return out, nil
}

// submit builds, signs and sends one transaction. Preflight simulation is
// skipped; inputs were validated upstream.
func (d *Dispatcher) submit(ctx context.Context, instructions []solana.Instruction, blockhash solana.Hash) (solana.Signature, error) {
	builder := solana.NewTransactionBuilder().
		SetRecentBlockHash(blockhash).
		SetFeePayer(d.signer.PublicKey())
	for _, ix := range instructions {
		builder.AddInstruction(ix)
	}
	tx, err := builder.Build()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to create transaction: %w", err)
	}
	if err := d.signer.Sign(tx); err != nil {
		return solana.Signature{}, err
	}

	sig, err := d.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       true,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}

// confirm applies the confirmation policy to the submitted signatures.
func (d *Dispatcher) confirm(ctx context.Context, sigs ...solana.Signature) error {
	if d.policy.Confirmation != ConfirmWait {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultWaitTimeout)
		defer cancel()
	}
	for _, sig := range sigs {
		if err := d.waitForConfirmation(ctx, sig); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) waitForConfirmation(ctx context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("confirmation of %s: %w", sig, ctx.Err())
		case <-ticker.C:
			out, err := d.rpc.GetSignatureStatuses(ctx, false, sig)
			if err != nil || out == nil || len(out.Value) == 0 || out.Value[0] == nil {
				continue
			}
			status := out.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction %s failed on chain: %v", sig, status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}
	}
}

// lookupAccount fetches an account, distinguishing absence from failure.
func (d *Dispatcher) lookupAccount(ctx context.Context, key solana.PublicKey) (*rpc.Account, bool, error) {
	res, err := d.rpc.GetAccountInfo(ctx, key)
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if res == nil || res.Value == nil {
		return nil, false, nil
	}
	return res.Value, true, nil
}

// TreasuryBalances reports the faucet's funding balances.
type TreasuryBalances struct {
	Sol  float64
	Cash float64
}

// Balances reads the faucet's SOL balance and CASH token balance. A missing
// faucet token account reads as zero CASH.
func (d *Dispatcher) Balances(ctx context.Context) (*TreasuryBalances, error) {
	solRes, err := d.rpc.GetBalance(ctx, d.signer.PublicKey(), rpc.CommitmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to get SOL balance: %w", err)
	}
	balances := &TreasuryBalances{
		Sol: float64(solRes.Value) / lamportsPerSol,
	}

	_, found, err := d.lookupAccount(ctx, d.faucetTokenAccount)
	if err != nil {
		return nil, fmt.Errorf("failed to get faucet token account: %w", err)
	}
	if !found {
		return balances, nil
	}

	tokenRes, err := d.rpc.GetTokenAccountBalance(ctx, d.faucetTokenAccount, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to get CASH balance: %w", err)
	}
	if tokenRes.Value != nil && tokenRes.Value.UiAmount != nil {
		balances.Cash = *tokenRes.Value.UiAmount
	}
	return balances, nil
}
