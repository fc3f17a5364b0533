// Package vesting implements linear token vesting schedules.
//
// A schedule locks TotalAmount of a mint in the authority's source account
// and releases it to the beneficiary linearly between StartTime and EndTime.
// Claims move the unlocked, unclaimed quantity through a ledger.TokenLedger
// in the same storage transaction that advances ClaimedAmount.
package vesting

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"solana-vesting/internal/auth"
	"solana-vesting/internal/clock"
	"solana-vesting/internal/domain"
	"solana-vesting/internal/idhash"
	"solana-vesting/internal/ledger"
	"solana-vesting/internal/observability"
	"solana-vesting/internal/solana"
	"solana-vesting/internal/storage"
)

// LedgerFactory binds a TokenLedger to the token accounts of one transaction.
type LedgerFactory func(accounts storage.TokenAccountStore) ledger.TokenLedger

// LocalLedger is the default LedgerFactory.
func LocalLedger(accounts storage.TokenAccountStore) ledger.TokenLedger {
	return ledger.NewLocal(accounts)
}

// Engine creates schedules and processes claims.
type Engine struct {
	tx        storage.Transactor
	ledger    LedgerFactory
	clock     clock.Clock
	programID string
	analytics storage.ClaimAnalyticsStore
	log       logrus.FieldLogger
}

// Options for creating Engine.
type Options struct {
	// Required
	Transactor storage.Transactor

	// Optional, defaults applied by NewEngine
	Ledger    LedgerFactory               // LocalLedger
	Clock     clock.Clock                 // clock.System
	ProgramID string                      // idhash.VestingProgramID
	Analytics storage.ClaimAnalyticsStore // nil disables the claim mirror
	Logger    logrus.FieldLogger          // nil discards logs
}

// NewEngine creates a new Engine.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		tx:        opts.Transactor,
		ledger:    opts.Ledger,
		clock:     opts.Clock,
		programID: opts.ProgramID,
		analytics: opts.Analytics,
		log:       opts.Logger,
	}
	if e.ledger == nil {
		e.ledger = LocalLedger
	}
	if e.clock == nil {
		e.clock = clock.System{}
	}
	if e.programID == "" {
		e.programID = idhash.VestingProgramID
	}
	if e.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		e.log = l
	}
	return e
}

// ProgramID returns the program id schedule addresses are derived under.
func (e *Engine) ProgramID() string {
	return e.programID
}

// CreateParams describes a new schedule.
type CreateParams struct {
	Beneficiary   string
	Mint          string
	SourceAccount string
	StartTime     int64
	EndTime       int64
	TotalAmount   uint64
}

// CreateSchedule records a new schedule for (authority, Beneficiary, Mint).
// No tokens move until the beneficiary side claims.
func (e *Engine) CreateSchedule(ctx context.Context, authority auth.Signer, p CreateParams) (*domain.VestingSchedule, error) {
	s, err := e.createSchedule(ctx, authority, p)
	if err != nil {
		observability.RecordScheduleCreated(resultOf(err))
		e.log.WithError(err).WithFields(logrus.Fields{
			"authority":   authority.Key(),
			"beneficiary": p.Beneficiary,
			"mint":        p.Mint,
		}).Warn("create schedule rejected")
		return nil, err
	}

	observability.RecordScheduleCreated(observability.ClaimResultSuccess)
	e.log.WithFields(logrus.Fields{
		"schedule":    s.Address,
		"authority":   s.Authority,
		"beneficiary": s.Beneficiary,
		"mint":        s.Mint,
		"total":       s.TotalAmount,
		"start":       s.StartTime,
		"end":         s.EndTime,
	}).Info("schedule created")
	return s, nil
}

func (e *Engine) createSchedule(ctx context.Context, authority auth.Signer, p CreateParams) (*domain.VestingSchedule, error) {
	if !authority.Verified() {
		return nil, ErrUnauthorized
	}
	if p.EndTime <= p.StartTime {
		return nil, ErrInvalidTimeRange
	}
	if p.TotalAmount == 0 {
		return nil, ErrInvalidAmount
	}
	if _, err := solana.ParsePublicKey(p.SourceAccount); err != nil {
		return nil, fmt.Errorf("%w: source account: %w", ErrInvalidAddress, err)
	}

	address, bump, err := idhash.DeriveScheduleAddress(e.programID, authority.Key(), p.Beneficiary, p.Mint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}

	now, err := e.clock.Now(ctx)
	if err != nil {
		return nil, fmt.Errorf("read clock: %w", err)
	}

	s := &domain.VestingSchedule{
		Address:       address,
		Authority:     authority.Key(),
		Beneficiary:   p.Beneficiary,
		Mint:          p.Mint,
		SourceAccount: p.SourceAccount,
		StartTime:     p.StartTime,
		EndTime:       p.EndTime,
		TotalAmount:   p.TotalAmount,
		Bump:          bump,
		CreatedAt:     now,
	}

	err = e.tx.InTx(ctx, func(ctx context.Context, st storage.Stores) error {
		ok, err := e.ledger(st.TokenAccounts).VerifyAccount(ctx, p.SourceAccount, authority.Key(), p.Mint)
		if err != nil {
			return fmt.Errorf("verify source account: %w", err)
		}
		if !ok {
			return ErrInvalidSourceAccount
		}

		if err := st.Schedules.Insert(ctx, s); err != nil {
			if errors.Is(err, storage.ErrDuplicateKey) {
				return ErrDuplicateSchedule
			}
			return fmt.Errorf("insert schedule: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ClaimParams identifies the schedule to claim from and where to send tokens.
type ClaimParams struct {
	Beneficiary string
	Mint        string
	// ReceivingAccount defaults to the beneficiary's associated token account.
	ReceivingAccount string
}

// ClaimResult is the outcome of a successful claim.
type ClaimResult struct {
	Schedule *domain.VestingSchedule
	Event    *domain.ClaimEvent
}

// ClaimTokens releases everything unlocked and unclaimed at the current clock time.
// The transfer and the schedule update commit together or not at all.
func (e *Engine) ClaimTokens(ctx context.Context, authority auth.Signer, p ClaimParams) (*ClaimResult, error) {
	started := time.Now()

	res, err := e.claimTokens(ctx, authority, p)
	latency := time.Since(started).Seconds()
	if err != nil {
		observability.RecordClaim(resultOf(err), 0, latency, 0)
		e.log.WithError(err).WithFields(logrus.Fields{
			"authority":   authority.Key(),
			"beneficiary": p.Beneficiary,
			"mint":        p.Mint,
		}).Warn("claim rejected")
		return nil, err
	}

	observability.RecordClaim(observability.ClaimResultSuccess, res.Event.Amount, latency, res.Event.ClaimedAt)
	e.log.WithFields(logrus.Fields{
		"schedule":      res.Schedule.Address,
		"claim_id":      res.Event.ClaimID,
		"amount":        res.Event.Amount,
		"claimed_total": res.Event.ClaimedTotal,
		"destination":   res.Event.DestinationAccount,
	}).Info("claim processed")

	e.mirror(ctx, res.Event)
	return res, nil
}

func (e *Engine) claimTokens(ctx context.Context, authority auth.Signer, p ClaimParams) (*ClaimResult, error) {
	if !authority.Verified() {
		return nil, ErrUnauthorized
	}

	address, _, err := idhash.DeriveScheduleAddress(e.programID, authority.Key(), p.Beneficiary, p.Mint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}

	receiving := p.ReceivingAccount
	if receiving == "" {
		receiving, err = idhash.DeriveAssociatedTokenAddress(p.Beneficiary, p.Mint)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
		}
	} else if _, err := solana.ParsePublicKey(receiving); err != nil {
		return nil, fmt.Errorf("%w: receiving account: %w", ErrInvalidAddress, err)
	}

	var res *ClaimResult
	err = e.tx.InTx(ctx, func(ctx context.Context, st storage.Stores) error {
		s, err := st.Schedules.GetForUpdate(ctx, address)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrScheduleNotFound
			}
			return fmt.Errorf("get schedule %s: %w", address, err)
		}
		if s.Authority != authority.Key() || s.Beneficiary != p.Beneficiary {
			return ErrUnauthorized
		}

		now, err := e.clock.Now(ctx)
		if err != nil {
			return fmt.Errorf("read clock: %w", err)
		}
		if now < s.StartTime {
			return ErrVestingNotStarted
		}

		amount := ClaimableAt(s, now)
		if amount == 0 {
			return ErrNoTokensToClaim
		}

		l := e.ledger(st.TokenAccounts)

		ok, err := l.VerifyAccount(ctx, receiving, s.Beneficiary, s.Mint)
		if err != nil {
			return fmt.Errorf("verify receiving account: %w", err)
		}
		if !ok {
			return ErrReceivingAccountMismatch
		}

		err = l.Transfer(ctx, ledger.TransferRequest{
			From:         s.SourceAccount,
			To:           receiving,
			Mint:         s.Mint,
			Amount:       amount,
			AuthorizedBy: s.Authority,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTransferFailed, err)
		}

		claimedTotal := s.ClaimedAmount + amount
		if err := st.Schedules.UpdateClaimed(ctx, s.Address, claimedTotal, now); err != nil {
			return fmt.Errorf("update schedule %s: %w", s.Address, err)
		}
		s.ClaimedAmount = claimedTotal
		s.LastClaimedAt = &now

		event := &domain.ClaimEvent{
			ClaimID:            idhash.ComputeClaimID(s.Address, claimedTotal),
			ScheduleAddress:    s.Address,
			Authority:          s.Authority,
			Beneficiary:        s.Beneficiary,
			Mint:               s.Mint,
			SourceAccount:      s.SourceAccount,
			DestinationAccount: receiving,
			Amount:             amount,
			ClaimedTotal:       claimedTotal,
			ClaimedAt:          now,
			CreatedAt:          now,
		}
		if err := st.Claims.Insert(ctx, event); err != nil {
			return fmt.Errorf("insert claim event: %w", err)
		}

		res = &ClaimResult{Schedule: s, Event: event}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// mirror copies a committed claim event to the analytics store.
// Failures are logged and counted; the claim itself already succeeded.
func (e *Engine) mirror(ctx context.Context, event *domain.ClaimEvent) {
	if e.analytics == nil {
		return
	}
	if err := e.analytics.Insert(ctx, event); err != nil {
		observability.RecordAnalyticsFailure()
		e.log.WithError(err).WithFields(logrus.Fields{
			"schedule": event.ScheduleAddress,
			"claim_id": event.ClaimID,
		}).Error("mirror claim event to analytics")
	}
}

// resultOf maps a failed operation to a metrics label.
func resultOf(err error) string {
	if KindOf(err) == KindInternal || KindOf(err) == KindExternal {
		return observability.ClaimResultFailed
	}
	return observability.ClaimResultRejected
}

// GetSchedule returns the schedule stored at address.
func (e *Engine) GetSchedule(ctx context.Context, address string) (*domain.VestingSchedule, error) {
	var s *domain.VestingSchedule
	err := e.tx.InTx(ctx, func(ctx context.Context, st storage.Stores) error {
		var err error
		s, err = st.Schedules.GetByAddress(ctx, address)
		return err
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("get schedule %s: %w", address, err)
	}
	return s, nil
}

// LookupSchedule derives the schedule address of a triple and returns the schedule.
func (e *Engine) LookupSchedule(ctx context.Context, authority, beneficiary, mint string) (*domain.VestingSchedule, error) {
	address, _, err := idhash.DeriveScheduleAddress(e.programID, authority, beneficiary, mint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	return e.GetSchedule(ctx, address)
}

// ScheduleAccount returns the fixed-size account encoding of the schedule at address.
func (e *Engine) ScheduleAccount(ctx context.Context, address string) ([]byte, error) {
	s, err := e.GetSchedule(ctx, address)
	if err != nil {
		return nil, err
	}
	return EncodeScheduleAccount(s)
}

// Preview is the state of a schedule at a point in time.
type Preview struct {
	Schedule   *domain.VestingSchedule
	Now        int64
	Releasable uint64
	Claimable  uint64
	Status     domain.Status
}

// Preview computes what the schedule at address would release at the current clock time.
func (e *Engine) Preview(ctx context.Context, address string) (*Preview, error) {
	s, err := e.GetSchedule(ctx, address)
	if err != nil {
		return nil, err
	}
	now, err := e.clock.Now(ctx)
	if err != nil {
		return nil, fmt.Errorf("read clock: %w", err)
	}
	return &Preview{
		Schedule:   s,
		Now:        now,
		Releasable: ReleasableAt(s, now),
		Claimable:  ClaimableAt(s, now),
		Status:     StatusAt(s, now),
	}, nil
}

// ClaimHistory returns the claims of the schedule at address, oldest first.
func (e *Engine) ClaimHistory(ctx context.Context, address string) ([]*domain.ClaimEvent, error) {
	var events []*domain.ClaimEvent
	err := e.tx.InTx(ctx, func(ctx context.Context, st storage.Stores) error {
		if _, err := st.Schedules.GetByAddress(ctx, address); err != nil {
			return err
		}
		var err error
		events, err = st.Claims.GetBySchedule(ctx, address)
		return err
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("claim history %s: %w", address, err)
	}
	return events, nil
}

// SchedulesFor returns schedules where owner is the authority or the beneficiary,
// ordered by creation time.
func (e *Engine) SchedulesFor(ctx context.Context, owner string) ([]*domain.VestingSchedule, error) {
	if _, err := solana.ParsePublicKey(owner); err != nil {
		return nil, fmt.Errorf("%w: owner: %w", ErrInvalidAddress, err)
	}

	var asAuthority, asBeneficiary []*domain.VestingSchedule
	err := e.tx.InTx(ctx, func(ctx context.Context, st storage.Stores) error {
		var err error
		if asAuthority, err = st.Schedules.GetByAuthority(ctx, owner); err != nil {
			return err
		}
		asBeneficiary, err = st.Schedules.GetByBeneficiary(ctx, owner)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list schedules for %s: %w", owner, err)
	}

	seen := make(map[string]bool, len(asAuthority)+len(asBeneficiary))
	result := make([]*domain.VestingSchedule, 0, len(asAuthority)+len(asBeneficiary))
	for _, list := range [][]*domain.VestingSchedule{asAuthority, asBeneficiary} {
		for _, s := range list {
			if seen[s.Address] {
				continue
			}
			seen[s.Address] = true
			result = append(result, s)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].Address < result[j].Address
	})
	return result, nil
}

// OwnerStats summarizes the schedules of an owner at a point in time.
type OwnerStats struct {
	Owner          string
	Now            int64
	Total          int
	Pending        int
	Active         int
	Completed      int
	AsAuthority    int
	AsBeneficiary  int
	TotalLocked    uint64 // sum of TotalAmount - ClaimedAmount, saturating
	TotalClaimable uint64 // sum of claimable now, saturating
}

// Stats computes dashboard statistics for owner at the current clock time.
func (e *Engine) Stats(ctx context.Context, owner string) (*OwnerStats, error) {
	schedules, err := e.SchedulesFor(ctx, owner)
	if err != nil {
		return nil, err
	}
	now, err := e.clock.Now(ctx)
	if err != nil {
		return nil, fmt.Errorf("read clock: %w", err)
	}

	stats := &OwnerStats{Owner: owner, Now: now, Total: len(schedules)}
	for _, s := range schedules {
		switch StatusAt(s, now) {
		case domain.StatusPending:
			stats.Pending++
		case domain.StatusActive:
			stats.Active++
		case domain.StatusCompleted:
			stats.Completed++
		}
		if s.Authority == owner {
			stats.AsAuthority++
		}
		if s.Beneficiary == owner {
			stats.AsBeneficiary++
		}
		stats.TotalLocked = addSaturating(stats.TotalLocked, s.Locked())
		stats.TotalClaimable = addSaturating(stats.TotalClaimable, ClaimableAt(s, now))
	}
	return stats, nil
}

func addSaturating(a, b uint64) uint64 {
	if sum := a + b; sum >= a {
		return sum
	}
	return ^uint64(0)
}

// MintClaimedTotal returns the total claimed for mint according to the analytics mirror.
func (e *Engine) MintClaimedTotal(ctx context.Context, mint string) (uint64, error) {
	if e.analytics == nil {
		return 0, ErrAnalyticsDisabled
	}
	if _, err := solana.ParsePublicKey(mint); err != nil {
		return 0, fmt.Errorf("%w: mint: %w", ErrInvalidAddress, err)
	}
	total, err := e.analytics.TotalClaimedByMint(ctx, mint)
	if err != nil {
		return 0, fmt.Errorf("total claimed for mint %s: %w", mint, err)
	}
	return total, nil
}

// OpenAccountParams describes a locally held token account.
type OpenAccountParams struct {
	// Address defaults to the owner's associated token account for Mint.
	Address string
	Owner   string
	Mint    string
	Amount  uint64
}

// OpenTokenAccount creates a funded token account in the local ledger.
// It backs development setups where no chain holds the balances.
func (e *Engine) OpenTokenAccount(ctx context.Context, p OpenAccountParams) (*domain.TokenAccount, error) {
	for _, field := range []struct{ name, value string }{
		{"owner", p.Owner},
		{"mint", p.Mint},
	} {
		if _, err := solana.ParsePublicKey(field.value); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidAddress, field.name, err)
		}
	}

	address := p.Address
	if address == "" {
		ata, err := idhash.DeriveAssociatedTokenAddress(p.Owner, p.Mint)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
		}
		address = ata
	} else if _, err := solana.ParsePublicKey(address); err != nil {
		return nil, fmt.Errorf("%w: address: %w", ErrInvalidAddress, err)
	}

	acct := &domain.TokenAccount{
		Address: address,
		Mint:    p.Mint,
		Owner:   p.Owner,
		Amount:  p.Amount,
	}
	err := e.tx.InTx(ctx, func(ctx context.Context, st storage.Stores) error {
		return st.TokenAccounts.Insert(ctx, acct)
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, ErrDuplicateAccount
		}
		return nil, fmt.Errorf("open token account %s: %w", address, err)
	}

	e.log.WithFields(logrus.Fields{
		"account": address,
		"owner":   p.Owner,
		"mint":    p.Mint,
		"amount":  p.Amount,
	}).Info("token account opened")
	return acct, nil
}
