package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeClaimID computes a deterministic claim_id using SHA256.
// Formula: SHA256(schedule_address|claimed_total)
// claimed_total strictly increases with every claim, so the pair is unique per schedule.
// Returns hex-encoded hash (64 characters).
func ComputeClaimID(scheduleAddress string, claimedTotal uint64) string {
	data := fmt.Sprintf("%s|%d", scheduleAddress, claimedTotal)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
