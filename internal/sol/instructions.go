package sol

import (
	"encoding/binary"
	"fmt"

	solana "github.com/gagliardetto/solana-go"
)

// Token instruction opcode shared by Token and Token-2022.
const tokenInstructionTransferChecked = 12

// Associated-token-account program instruction discriminators.
const ataInstructionCreateIdempotent = 1

// findTokenAddress derives the associated token account for owner under the
// given token program. Pure; no network call.
func findTokenAddress(owner, mint, tokenProgram solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{owner.Bytes(), tokenProgram.Bytes(), mint.Bytes()},
		solana.SPLAssociatedTokenAccountProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive token address for %s: %w", owner, err)
	}
	return addr, nil
}

// newCreateTokenAccountIdempotent builds an ATA CreateIdempotent
// instruction: it creates the recipient's token account when missing and is
// a no-op when the account already exists, so it can be included in every
// disbursement unconditionally.
func newCreateTokenAccountIdempotent(payer, tokenAccount, owner, mint, tokenProgram solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		solana.SPLAssociatedTokenAccountProgramID,
		solana.AccountMetaSlice{
			solana.Meta(payer).WRITE().SIGNER(),
			solana.Meta(tokenAccount).WRITE(),
			solana.Meta(owner),
			solana.Meta(mint),
			solana.Meta(solana.SystemProgramID),
			solana.Meta(tokenProgram),
		},
		[]byte{ataInstructionCreateIdempotent},
	)
}

// newTransferChecked builds a TransferChecked instruction against the given
// token program, appending any transfer-hook accounts after the base four.
func newTransferChecked(
	source, mint, destination, owner solana.PublicKey,
	amount uint64, decimals uint8,
	tokenProgram solana.PublicKey,
	hookAccounts []*solana.AccountMeta,
) solana.Instruction {
	data := make([]byte, 10)
	data[0] = tokenInstructionTransferChecked
	binary.LittleEndian.PutUint64(data[1:9], amount)
	data[9] = decimals

	accounts := solana.AccountMetaSlice{
		solana.Meta(source).WRITE(),
		solana.Meta(mint),
		solana.Meta(destination).WRITE(),
		solana.Meta(owner).SIGNER(),
	}
	accounts = append(accounts, hookAccounts...)

	return solana.NewInstruction(tokenProgram, accounts, data)
}

// executeInstructionData synthesizes the transfer-hook Execute instruction
// data (discriminator + amount) that instruction-data seeds resolve
// against.
func executeInstructionData(amount uint64) []byte {
	data := make([]byte, 16)
	copy(data[:8], executeDiscriminator())
	binary.LittleEndian.PutUint64(data[8:16], amount)
	return data
}
