package vesting

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"solana-vesting/internal/domain"
	"solana-vesting/internal/solana"
)

// ScheduleAccountSize is the encoded size of a schedule account:
// discriminator(8) + 4 keys(32) + start(8) + end(8) + total(8) + claimed(8) + bump(1).
const ScheduleAccountSize = 8 + 4*32 + 4*8 + 1

// ErrInvalidAccountData is returned when bytes do not hold a schedule account.
var ErrInvalidAccountData = errors.New("invalid schedule account data")

// scheduleDiscriminator tags schedule accounts: sha256("account:VestingSchedule")[:8].
var scheduleDiscriminator = func() [8]byte {
	sum := sha256.Sum256([]byte("account:VestingSchedule"))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}()

// Field offsets.
const (
	offAuthority   = 8
	offBeneficiary = offAuthority + 32
	offMint        = offBeneficiary + 32
	offSource      = offMint + 32
	offStart       = offSource + 32
	offEnd         = offStart + 8
	offTotal       = offEnd + 8
	offClaimed     = offTotal + 8
	offBump        = offClaimed + 8
)

// EncodeScheduleAccount serializes s into its fixed-size account layout.
// Bookkeeping fields (Address, CreatedAt, LastClaimedAt) are not part of the layout.
func EncodeScheduleAccount(s *domain.VestingSchedule) ([]byte, error) {
	buf := make([]byte, ScheduleAccountSize)
	copy(buf[:8], scheduleDiscriminator[:])

	for _, field := range []struct {
		name  string
		value string
		off   int
	}{
		{"authority", s.Authority, offAuthority},
		{"beneficiary", s.Beneficiary, offBeneficiary},
		{"mint", s.Mint, offMint},
		{"source account", s.SourceAccount, offSource},
	} {
		pk, err := solana.ParsePublicKey(field.value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field.name, err)
		}
		copy(buf[field.off:field.off+32], pk[:])
	}

	binary.LittleEndian.PutUint64(buf[offStart:], uint64(s.StartTime))
	binary.LittleEndian.PutUint64(buf[offEnd:], uint64(s.EndTime))
	binary.LittleEndian.PutUint64(buf[offTotal:], s.TotalAmount)
	binary.LittleEndian.PutUint64(buf[offClaimed:], s.ClaimedAmount)
	buf[offBump] = s.Bump

	return buf, nil
}

// DecodeScheduleAccount parses a schedule account stored at address.
func DecodeScheduleAccount(address string, data []byte) (*domain.VestingSchedule, error) {
	if len(data) != ScheduleAccountSize {
		return nil, fmt.Errorf("%w: size %d, want %d", ErrInvalidAccountData, len(data), ScheduleAccountSize)
	}
	if [8]byte(data[:8]) != scheduleDiscriminator {
		return nil, fmt.Errorf("%w: discriminator mismatch", ErrInvalidAccountData)
	}

	key := func(off int) string {
		return solana.PublicKey(data[off : off+32]).String()
	}

	return &domain.VestingSchedule{
		Address:       address,
		Authority:     key(offAuthority),
		Beneficiary:   key(offBeneficiary),
		Mint:          key(offMint),
		SourceAccount: key(offSource),
		StartTime:     int64(binary.LittleEndian.Uint64(data[offStart:])),
		EndTime:       int64(binary.LittleEndian.Uint64(data[offEnd:])),
		TotalAmount:   binary.LittleEndian.Uint64(data[offTotal:]),
		ClaimedAmount: binary.LittleEndian.Uint64(data[offClaimed:]),
		Bump:          data[offBump],
	}, nil
}
