package vesting

import "errors"

var (
	// ErrUnauthorized is returned when the caller is not the schedule authority,
	// or the request beneficiary does not match the stored one.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidSourceAccount is returned when the funding account is not owned
	// by the authority or is denominated in another mint.
	ErrInvalidSourceAccount = errors.New("invalid source account")

	// ErrDuplicateSchedule is returned when a schedule already exists for the triple.
	ErrDuplicateSchedule = errors.New("schedule already exists")

	// ErrInvalidTimeRange is returned when EndTime <= StartTime.
	ErrInvalidTimeRange = errors.New("end time must be after start time")

	// ErrInvalidAmount is returned when TotalAmount is zero.
	ErrInvalidAmount = errors.New("total amount must be positive")

	// ErrInvalidAddress is returned when a key or account is not a valid public key.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrScheduleNotFound is returned when no schedule exists at the derived address.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrVestingNotStarted is returned when claiming before StartTime.
	ErrVestingNotStarted = errors.New("vesting has not started")

	// ErrNoTokensToClaim is returned when nothing is claimable now.
	// Retrying after more of the schedule has unlocked may succeed.
	ErrNoTokensToClaim = errors.New("no tokens to claim")

	// ErrTransferFailed wraps an error reported by the token ledger.
	ErrTransferFailed = errors.New("token transfer failed")

	// ErrReceivingAccountMismatch is returned when the receiving account is not
	// owned by the beneficiary or holds another mint.
	ErrReceivingAccountMismatch = errors.New("receiving account mismatch")

	// ErrDuplicateAccount is returned when opening a token account at a taken address.
	ErrDuplicateAccount = errors.New("token account already exists")

	// ErrAnalyticsDisabled is returned by analytics queries when no analytics store is configured.
	ErrAnalyticsDisabled = errors.New("analytics disabled")
)

// Kind classifies engine errors for callers that map them to responses.
type Kind string

// Error kinds.
const (
	KindAuthorization Kind = "authorization"
	KindValidation    Kind = "validation"
	KindTiming        Kind = "timing"
	KindExternal      Kind = "external"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindInternal      Kind = "internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrUnauthorized, KindAuthorization},
	{ErrInvalidSourceAccount, KindValidation},
	{ErrInvalidTimeRange, KindValidation},
	{ErrInvalidAmount, KindValidation},
	{ErrInvalidAddress, KindValidation},
	{ErrReceivingAccountMismatch, KindValidation},
	{ErrDuplicateSchedule, KindConflict},
	{ErrDuplicateAccount, KindConflict},
	{ErrVestingNotStarted, KindTiming},
	{ErrNoTokensToClaim, KindTiming},
	{ErrTransferFailed, KindExternal},
	{ErrScheduleNotFound, KindNotFound},
	{ErrAnalyticsDisabled, KindNotFound},
}

// KindOf returns the kind of err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
