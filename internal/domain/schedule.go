package domain

// VestingSchedule is a linear vesting record.
// Corresponds to vesting_schedules table in PostgreSQL.
type VestingSchedule struct {
	Address       string // PRIMARY KEY, program-derived address
	Authority     string // principal that creates the schedule and authorizes claims
	Beneficiary   string // principal receiving unlocked tokens
	Mint          string // token mint address
	SourceAccount string // funding token account, owned by Authority
	StartTime     int64  // unix seconds
	EndTime       int64  // unix seconds, > StartTime
	TotalAmount   uint64 // base units, fixed at creation
	ClaimedAmount uint64 // base units released so far, <= TotalAmount
	Bump          uint8  // address derivation bump seed
	CreatedAt     int64  // unix seconds
	LastClaimedAt *int64 // unix seconds of the latest claim (nullable)
}

// Locked returns the quantity not yet released to the beneficiary.
func (s *VestingSchedule) Locked() uint64 {
	return s.TotalAmount - s.ClaimedAmount
}

// Status is the lifecycle stage of a schedule at a given time.
type Status string

// Schedule status values
const (
	StatusPending   Status = "pending"   // before StartTime
	StatusActive    Status = "active"    // unlocking, or unlocked but not fully claimed
	StatusCompleted Status = "completed" // past EndTime and fully claimed
)
