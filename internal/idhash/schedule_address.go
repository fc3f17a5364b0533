package idhash

import (
	"fmt"

	"solana-vesting/internal/solana"
)

// VestingProgramID is the default program id schedule addresses are derived under.
const VestingProgramID = "Fg6PaFpoGXkYsidMpWTK6W2BeZ7FEfcYkg476zPFsLnS"

// ScheduleSeed is the namespace tag of schedule addresses.
const ScheduleSeed = "vesting_schedule"

// DeriveScheduleAddress computes the schedule address for a (authority, beneficiary, mint) triple.
// Formula: FindProgramAddress([ScheduleSeed, authority, beneficiary, mint], programID)
// Returns the base58 address and its bump seed.
func DeriveScheduleAddress(programID, authority, beneficiary, mint string) (string, uint8, error) {
	program, err := solana.ParsePublicKey(programID)
	if err != nil {
		return "", 0, fmt.Errorf("program id: %w", err)
	}
	keys := make([][]byte, 0, 3)
	for _, field := range []struct{ name, value string }{
		{"authority", authority},
		{"beneficiary", beneficiary},
		{"mint", mint},
	} {
		pk, err := solana.ParsePublicKey(field.value)
		if err != nil {
			return "", 0, fmt.Errorf("%s: %w", field.name, err)
		}
		keys = append(keys, pk.Bytes())
	}

	seeds := append([][]byte{[]byte(ScheduleSeed)}, keys...)
	addr, bump, err := solana.FindProgramAddress(seeds, program)
	if err != nil {
		return "", 0, err
	}
	return addr.String(), bump, nil
}

// DeriveAssociatedTokenAddress computes the associated token account of owner for mint.
func DeriveAssociatedTokenAddress(owner, mint string) (string, error) {
	ownerKey, err := solana.ParsePublicKey(owner)
	if err != nil {
		return "", fmt.Errorf("owner: %w", err)
	}
	mintKey, err := solana.ParsePublicKey(mint)
	if err != nil {
		return "", fmt.Errorf("mint: %w", err)
	}
	addr, _, err := solana.FindAssociatedTokenAddress(ownerKey, mintKey)
	if err != nil {
		return "", err
	}
	return addr.String(), nil
}
