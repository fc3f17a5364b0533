package domain

// ClaimEvent records one successful claim against a schedule.
// Corresponds to claim_events table in PostgreSQL and ClickHouse.
type ClaimEvent struct {
	ClaimID            string // PRIMARY KEY, deterministic hash
	ScheduleAddress    string
	Authority          string
	Beneficiary        string
	Mint               string
	SourceAccount      string
	DestinationAccount string
	Amount             uint64 // base units transferred by this claim
	ClaimedTotal       uint64 // schedule ClaimedAmount after this claim
	ClaimedAt          int64  // vesting clock time (unix seconds)
	CreatedAt          int64  // record creation timestamp (unix seconds)
}
