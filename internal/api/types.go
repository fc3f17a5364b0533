package api

import (
	"strconv"

	"solana-vesting/internal/auth"
	"solana-vesting/internal/domain"
	"solana-vesting/internal/vesting"
)

// Amounts are encoded as decimal strings so that full uint64 values survive JSON clients.

// CreateScheduleRequest is the body of POST /v1/schedules.
type CreateScheduleRequest struct {
	Beneficiary   string             `json:"beneficiary"`
	Mint          string             `json:"mint"`
	SourceAccount string             `json:"source_account"`
	StartTime     int64              `json:"start_time"`
	EndTime       int64              `json:"end_time"`
	TotalAmount   uint64             `json:"total_amount,string"`
	Auth          auth.SignedRequest `json:"auth"`
}

// CreateFields returns the signed fields of a create request, in signing order.
func CreateFields(beneficiary, mint, sourceAccount string, start, end int64, total uint64) []string {
	return []string{
		beneficiary,
		mint,
		sourceAccount,
		strconv.FormatInt(start, 10),
		strconv.FormatInt(end, 10),
		strconv.FormatUint(total, 10),
	}
}

// ClaimRequest is the body of POST /v1/claims.
type ClaimRequest struct {
	Beneficiary      string             `json:"beneficiary"`
	Mint             string             `json:"mint"`
	ReceivingAccount string             `json:"receiving_account,omitempty"`
	Auth             auth.SignedRequest `json:"auth"`
}

// ClaimFields returns the signed fields of a claim request, in signing order.
// An omitted receiving account is signed as the empty string.
func ClaimFields(beneficiary, mint, receivingAccount string) []string {
	return []string{beneficiary, mint, receivingAccount}
}

// OpenTokenAccountRequest is the body of POST /v1/dev/token-accounts.
type OpenTokenAccountRequest struct {
	Address string `json:"address,omitempty"`
	Owner   string `json:"owner"`
	Mint    string `json:"mint"`
	Amount  uint64 `json:"amount,string"`
}

// ScheduleResponse is the JSON form of a schedule.
type ScheduleResponse struct {
	Address       string `json:"address"`
	Authority     string `json:"authority"`
	Beneficiary   string `json:"beneficiary"`
	Mint          string `json:"mint"`
	SourceAccount string `json:"source_account"`
	StartTime     int64  `json:"start_time"`
	EndTime       int64  `json:"end_time"`
	TotalAmount   uint64 `json:"total_amount,string"`
	ClaimedAmount uint64 `json:"claimed_amount,string"`
	Bump          uint8  `json:"bump"`
	CreatedAt     int64  `json:"created_at"`
	LastClaimedAt *int64 `json:"last_claimed_at"`
}

func newScheduleResponse(s *domain.VestingSchedule) ScheduleResponse {
	return ScheduleResponse{
		Address:       s.Address,
		Authority:     s.Authority,
		Beneficiary:   s.Beneficiary,
		Mint:          s.Mint,
		SourceAccount: s.SourceAccount,
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		TotalAmount:   s.TotalAmount,
		ClaimedAmount: s.ClaimedAmount,
		Bump:          s.Bump,
		CreatedAt:     s.CreatedAt,
		LastClaimedAt: s.LastClaimedAt,
	}
}

func newScheduleList(list []*domain.VestingSchedule) []ScheduleResponse {
	out := make([]ScheduleResponse, 0, len(list))
	for _, s := range list {
		out = append(out, newScheduleResponse(s))
	}
	return out
}

// ClaimEventResponse is the JSON form of a claim event.
type ClaimEventResponse struct {
	ClaimID            string `json:"claim_id"`
	ScheduleAddress    string `json:"schedule_address"`
	Beneficiary        string `json:"beneficiary"`
	Mint               string `json:"mint"`
	SourceAccount      string `json:"source_account"`
	DestinationAccount string `json:"destination_account"`
	Amount             uint64 `json:"amount,string"`
	ClaimedTotal       uint64 `json:"claimed_total,string"`
	ClaimedAt          int64  `json:"claimed_at"`
}

func newClaimEventResponse(e *domain.ClaimEvent) ClaimEventResponse {
	return ClaimEventResponse{
		ClaimID:            e.ClaimID,
		ScheduleAddress:    e.ScheduleAddress,
		Beneficiary:        e.Beneficiary,
		Mint:               e.Mint,
		SourceAccount:      e.SourceAccount,
		DestinationAccount: e.DestinationAccount,
		Amount:             e.Amount,
		ClaimedTotal:       e.ClaimedTotal,
		ClaimedAt:          e.ClaimedAt,
	}
}

// ClaimResponse is the result of POST /v1/claims.
type ClaimResponse struct {
	Schedule ScheduleResponse   `json:"schedule"`
	Claim    ClaimEventResponse `json:"claim"`
}

// PreviewResponse is the result of GET /v1/schedules/:address/preview.
type PreviewResponse struct {
	Schedule   ScheduleResponse `json:"schedule"`
	Now        int64            `json:"now"`
	Releasable uint64           `json:"releasable,string"`
	Claimable  uint64           `json:"claimable,string"`
	Status     domain.Status    `json:"status"`
}

func newPreviewResponse(p *vesting.Preview) PreviewResponse {
	return PreviewResponse{
		Schedule:   newScheduleResponse(p.Schedule),
		Now:        p.Now,
		Releasable: p.Releasable,
		Claimable:  p.Claimable,
		Status:     p.Status,
	}
}

// AccountResponse is the fixed-size account encoding of a schedule.
type AccountResponse struct {
	Address  string `json:"address"`
	Size     int    `json:"size"`
	Encoding string `json:"encoding"`
	Data     string `json:"data"`
}

// StatsResponse is the result of GET /v1/owners/:owner/stats.
type StatsResponse struct {
	Owner          string `json:"owner"`
	Now            int64  `json:"now"`
	Total          int    `json:"total"`
	Pending        int    `json:"pending"`
	Active         int    `json:"active"`
	Completed      int    `json:"completed"`
	AsAuthority    int    `json:"as_authority"`
	AsBeneficiary  int    `json:"as_beneficiary"`
	TotalLocked    uint64 `json:"total_locked,string"`
	TotalClaimable uint64 `json:"total_claimable,string"`
}

func newStatsResponse(s *vesting.OwnerStats) StatsResponse {
	return StatsResponse{
		Owner:          s.Owner,
		Now:            s.Now,
		Total:          s.Total,
		Pending:        s.Pending,
		Active:         s.Active,
		Completed:      s.Completed,
		AsAuthority:    s.AsAuthority,
		AsBeneficiary:  s.AsBeneficiary,
		TotalLocked:    s.TotalLocked,
		TotalClaimable: s.TotalClaimable,
	}
}

// MintClaimedResponse is the result of GET /v1/mints/:mint/claimed.
type MintClaimedResponse struct {
	Mint         string `json:"mint"`
	TotalClaimed uint64 `json:"total_claimed,string"`
}

// TokenAccountResponse is the JSON form of a local token account.
type TokenAccountResponse struct {
	Address string `json:"address"`
	Owner   string `json:"owner"`
	Mint    string `json:"mint"`
	Amount  uint64 `json:"amount,string"`
}
