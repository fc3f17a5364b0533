package vesting

import (
	"math/bits"

	"solana-vesting/internal/domain"
)

// ReleasableAt returns the cumulative quantity unlocked by now.
// Linear between StartTime and EndTime, floored to whole base units.
func ReleasableAt(s *domain.VestingSchedule, now int64) uint64 {
	if now < s.StartTime {
		return 0
	}
	if now >= s.EndTime {
		return s.TotalAmount
	}

	// Differences are taken in uint64 so that spans wider than MaxInt64 stay exact.
	elapsed := uint64(now) - uint64(s.StartTime)
	duration := uint64(s.EndTime) - uint64(s.StartTime)

	// elapsed < duration, so the quotient is < TotalAmount and Div64 cannot overflow.
	hi, lo := bits.Mul64(s.TotalAmount, elapsed)
	quo, _ := bits.Div64(hi, lo, duration)
	return quo
}

// ClaimableAt returns the quantity unlocked by now that has not been claimed yet.
func ClaimableAt(s *domain.VestingSchedule, now int64) uint64 {
	releasable := ReleasableAt(s, now)
	if releasable <= s.ClaimedAmount {
		return 0
	}
	return releasable - s.ClaimedAmount
}

// StatusAt returns the lifecycle stage of s at now.
func StatusAt(s *domain.VestingSchedule, now int64) domain.Status {
	switch {
	case now < s.StartTime:
		return domain.StatusPending
	case now >= s.EndTime && s.ClaimedAmount == s.TotalAmount:
		return domain.StatusCompleted
	default:
		return domain.StatusActive
	}
}
