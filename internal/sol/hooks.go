package sol

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	solana "github.com/gagliardetto/solana-go"
)

// Token-2022 mints carry optional extensions as TLV entries after the base
// mint layout. A mint configured with a transfer hook requires extra
// accounts, enumerated in a per-mint validation account owned by the hook
// program, to be attached to every transfer instruction.

const (
	// Base Token/Token-2022 mint layout size.
	baseMintLen = 82
	// Offset of the account-type byte in an extended mint account.
	accountTypeOffset = 165
	accountTypeMint   = 1

	// TLV extension type for TransferHook.
	transferHookExtension = 14
)

// executeDiscriminator is the 8-byte TLV discriminator of the transfer-hook
// Execute instruction, used both as the validation account's type tag and
// as the prefix of the synthetic instruction data seeds resolve against.
func executeDiscriminator() []byte {
	sum := sha256.Sum256([]byte("spl-transfer-hook-interface:execute"))
	return sum[:8]
}

// transferHookProgram extracts the transfer-hook program from a Token-2022
// mint account's TLV extensions. Returns false when the mint carries no
// extensions, no TransferHook entry, or a cleared (zero) hook program.
func transferHookProgram(mintData []byte) (solana.PublicKey, bool) {
	if len(mintData) <= accountTypeOffset || mintData[accountTypeOffset] != accountTypeMint {
		return solana.PublicKey{}, false
	}

	offset := accountTypeOffset + 1
	for offset+4 <= len(mintData) {
		extType := binary.LittleEndian.Uint16(mintData[offset : offset+2])
		extLen := int(binary.LittleEndian.Uint16(mintData[offset+2 : offset+4]))
		offset += 4
		if extType == 0 || offset+extLen > len(mintData) {
			break
		}
		// TransferHook value: authority (32 bytes) + program id (32 bytes).
		if extType == transferHookExtension && extLen >= 64 {
			program := solana.PublicKeyFromBytes(mintData[offset+32 : offset+64])
			if program.IsZero() {
				return solana.PublicKey{}, false
			}
			return program, true
		}
		offset += extLen
	}
	return solana.PublicKey{}, false
}

// findValidationAddress derives the hook program's extra-account-metas PDA
// for a mint.
func findValidationAddress(mint, hookProgram solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("extra-account-metas"), mint.Bytes()},
		hookProgram,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive validation address: %w", err)
	}
	return addr, nil
}

// extraAccountMeta is one decoded entry of the validation account's
// ExtraAccountMetaList.
//
// Layout (35 bytes):
//
//	[0]      discriminator  U8   (0: literal key, 1: PDA of hook program,
//	                              128+i: PDA of the program at account index i)
//	[1..32]  addressConfig  [32]U8 (literal key, or packed seed configs)
//	[33]     isSigner       U8
//	[34]     isWritable     U8
type extraAccountMeta struct {
	Discriminator uint8
	AddressConfig [32]byte
	IsSigner      bool
	IsWritable    bool
}

const extraAccountMetaLen = 35

// decodeExtraAccountMetaList parses a validation account's data.
//
// Account layout:
//
//	[0..7]   execute discriminator  (TLV type tag)
//	[8..11]  value length           U32 LE
//	[12..15] entry count            U32 LE
//	[16..]   entries                count * 35 bytes
func decodeExtraAccountMetaList(data []byte) ([]extraAccountMeta, error) {
	if len(data) < 16 {
		return nil, fmt.Errorf("validation account too short: %d bytes", len(data))
	}
	disc := executeDiscriminator()
	for i := range disc {
		if data[i] != disc[i] {
			return nil, fmt.Errorf("validation account has unexpected discriminator")
		}
	}

	count := int(binary.LittleEndian.Uint32(data[12:16]))
	need := 16 + count*extraAccountMetaLen
	if len(data) < need {
		return nil, fmt.Errorf("validation account truncated: %d entries need %d bytes, have %d", count, need, len(data))
	}

	metas := make([]extraAccountMeta, 0, count)
	offset := 16
	for i := 0; i < count; i++ {
		var meta extraAccountMeta
		meta.Discriminator = data[offset]
		copy(meta.AddressConfig[:], data[offset+1:offset+33])
		meta.IsSigner = data[offset+33] != 0
		meta.IsWritable = data[offset+34] != 0
		metas = append(metas, meta)
		offset += extraAccountMetaLen
	}
	return metas, nil
}

// Seed config kinds packed into addressConfig for PDA-derived entries.
const (
	seedLiteral         = 1
	seedInstructionData = 2
	seedAccountKey      = 3
	seedAccountData     = 4
)

// resolveExtraAccountMetas resolves decoded entries into concrete account
// metas. keys is the Execute instruction's account list (source, mint,
// destination, owner, validation account) and grows as entries resolve, so
// later entries may reference earlier ones. instructionData is the
// synthetic Execute data (discriminator + amount) that instruction-data
// seeds slice into.
//
// AccountData seeds require fetching referenced account contents and are
// not supported; a mint that declares them fails the dispatch.
func resolveExtraAccountMetas(
	metas []extraAccountMeta,
	hookProgram solana.PublicKey,
	keys []*solana.AccountMeta,
	instructionData []byte,
) ([]*solana.AccountMeta, error) {
	resolved := make([]*solana.AccountMeta, 0, len(metas))
	all := keys

	for i, meta := range metas {
		var key solana.PublicKey

		switch {
		case meta.Discriminator == 0:
			key = solana.PublicKeyFromBytes(meta.AddressConfig[:])

		case meta.Discriminator == 1 || meta.Discriminator >= 128:
			program := hookProgram
			if meta.Discriminator >= 128 {
				idx := int(meta.Discriminator & 0x7f)
				if idx >= len(all) {
					return nil, fmt.Errorf("extra account %d: program index %d out of range", i, idx)
				}
				program = all[idx].PublicKey
			}
			seeds, err := unpackSeeds(meta.AddressConfig[:], all, instructionData)
			if err != nil {
				return nil, fmt.Errorf("extra account %d: %w", i, err)
			}
			pda, _, err := solana.FindProgramAddress(seeds, program)
			if err != nil {
				return nil, fmt.Errorf("extra account %d: %w", i, err)
			}
			key = pda

		default:
			return nil, fmt.Errorf("extra account %d: unsupported discriminator %d", i, meta.Discriminator)
		}

		accountMeta := &solana.AccountMeta{
			PublicKey:  key,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
		}
		resolved = append(resolved, accountMeta)
		all = append(all, accountMeta)
	}
	return resolved, nil
}

// unpackSeeds decodes the packed seed configs of a PDA-derived entry. A
// zero kind terminates the list (remaining bytes are padding).
func unpackSeeds(config []byte, keys []*solana.AccountMeta, instructionData []byte) ([][]byte, error) {
	var seeds [][]byte
	offset := 0
	for offset < len(config) {
		kind := config[offset]
		if kind == 0 {
			break
		}
		offset++

		switch kind {
		case seedLiteral:
			if offset >= len(config) {
				return nil, fmt.Errorf("literal seed missing length")
			}
			length := int(config[offset])
			offset++
			if offset+length > len(config) {
				return nil, fmt.Errorf("literal seed overruns config")
			}
			seeds = append(seeds, config[offset:offset+length])
			offset += length

		case seedInstructionData:
			if offset+2 > len(config) {
				return nil, fmt.Errorf("instruction data seed missing index/length")
			}
			index := int(config[offset])
			length := int(config[offset+1])
			offset += 2
			if index+length > len(instructionData) {
				return nil, fmt.Errorf("instruction data seed out of range")
			}
			seeds = append(seeds, instructionData[index:index+length])

		case seedAccountKey:
			if offset >= len(config) {
				return nil, fmt.Errorf("account key seed missing index")
			}
			index := int(config[offset])
			offset++
			if index >= len(keys) {
				return nil, fmt.Errorf("account key seed index %d out of range", index)
			}
			seeds = append(seeds, keys[index].PublicKey.Bytes())

		case seedAccountData:
			return nil, fmt.Errorf("account data seeds are not supported")

		default:
			return nil, fmt.Errorf("unknown seed kind %d", kind)
		}
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("pda entry has no seeds")
	}
	return seeds, nil
}
