package vesting

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-vesting/internal/auth"
	"solana-vesting/internal/clock"
	"solana-vesting/internal/domain"
	"solana-vesting/internal/idhash"
	"solana-vesting/internal/storage"
	"solana-vesting/internal/storage/memory"
)

const testExpiry = int64(1) << 40

type party struct {
	key  string
	priv ed25519.PrivateKey
}

func newParty(t *testing.T) party {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return party{key: base58.Encode(pub), priv: priv}
}

// signer returns a verified capability for p.
func (p party) signer(t *testing.T) auth.Signer {
	t.Helper()
	fields := []string{"test"}
	s, err := auth.Verify(auth.OpClaim, fields, auth.Sign(p.priv, auth.OpClaim, fields, testExpiry), 0)
	require.NoError(t, err)
	return s
}

type fixture struct {
	backend     *memory.Backend
	clock       *clock.Manual
	engine      *Engine
	authority   party
	beneficiary party
	mint        string
	source      string
	receiving   string
}

// newFixture funds a source account of the authority with sourceBalance
// and opens the beneficiary's associated token account.
func newFixture(t *testing.T, sourceBalance uint64, opts ...func(*Options)) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		backend:     memory.NewBackend(),
		clock:       clock.NewManual(0),
		authority:   newParty(t),
		beneficiary: newParty(t),
		mint:        randomKey(t),
		source:      randomKey(t),
	}

	o := Options{Transactor: f.backend, Clock: f.clock}
	for _, opt := range opts {
		opt(&o)
	}
	f.engine = NewEngine(o)

	_, err := f.engine.OpenTokenAccount(ctx, OpenAccountParams{
		Address: f.source,
		Owner:   f.authority.key,
		Mint:    f.mint,
		Amount:  sourceBalance,
	})
	require.NoError(t, err)

	acct, err := f.engine.OpenTokenAccount(ctx, OpenAccountParams{
		Owner: f.beneficiary.key,
		Mint:  f.mint,
	})
	require.NoError(t, err)
	f.receiving = acct.Address

	return f
}

func (f *fixture) create(t *testing.T, total uint64, start, end int64) (*domain.VestingSchedule, error) {
	t.Helper()
	return f.engine.CreateSchedule(context.Background(), f.authority.signer(t), CreateParams{
		Beneficiary:   f.beneficiary.key,
		Mint:          f.mint,
		SourceAccount: f.source,
		StartTime:     start,
		EndTime:       end,
		TotalAmount:   total,
	})
}

func (f *fixture) claim(t *testing.T) (*ClaimResult, error) {
	t.Helper()
	return f.engine.ClaimTokens(context.Background(), f.authority.signer(t), ClaimParams{
		Beneficiary: f.beneficiary.key,
		Mint:        f.mint,
	})
}

func (f *fixture) balance(t *testing.T, address string) uint64 {
	t.Helper()
	acct, err := f.backend.TokenAccounts.GetByAddress(context.Background(), address)
	require.NoError(t, err)
	return acct.Amount
}

func TestCreateSchedule(t *testing.T) {
	f := newFixture(t, 1000)
	f.clock.Set(42)

	s, err := f.create(t, 1000, 100, 200)
	require.NoError(t, err)

	wantAddr, wantBump, err := idhash.DeriveScheduleAddress(idhash.VestingProgramID, f.authority.key, f.beneficiary.key, f.mint)
	require.NoError(t, err)

	assert.Equal(t, wantAddr, s.Address)
	assert.Equal(t, wantBump, s.Bump)
	assert.Equal(t, f.authority.key, s.Authority)
	assert.Equal(t, uint64(0), s.ClaimedAmount)
	assert.Equal(t, int64(42), s.CreatedAt)

	stored, err := f.engine.GetSchedule(context.Background(), s.Address)
	require.NoError(t, err)
	assert.Equal(t, s, stored)

	// Creation moves no tokens.
	assert.Equal(t, uint64(1000), f.balance(t, f.source))
}

func TestCreateSchedule_Validation(t *testing.T) {
	tests := []struct {
		name    string
		total   uint64
		start   int64
		end     int64
		wantErr error
	}{
		{"end equals start", 1000, 100, 100, ErrInvalidTimeRange},
		{"end before start", 1000, 200, 100, ErrInvalidTimeRange},
		{"zero amount", 0, 100, 200, ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 1000)
			_, err := f.create(t, tt.total, tt.start, tt.end)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}
}

func TestCreateSchedule_Unverified(t *testing.T) {
	f := newFixture(t, 1000)

	_, err := f.engine.CreateSchedule(context.Background(), auth.Signer{}, CreateParams{
		Beneficiary:   f.beneficiary.key,
		Mint:          f.mint,
		SourceAccount: f.source,
		StartTime:     0,
		EndTime:       100,
		TotalAmount:   1000,
	})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, KindAuthorization, KindOf(err))
}

func TestCreateSchedule_InvalidSourceAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)

	otherMint := randomKey(t)
	foreign := randomKey(t)
	_, err := f.engine.OpenTokenAccount(ctx, OpenAccountParams{
		Address: foreign,
		Owner:   f.beneficiary.key,
		Mint:    f.mint,
		Amount:  1000,
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		source string
		mint   string
	}{
		{"not owned by authority", foreign, f.mint},
		{"wrong mint", f.source, otherMint},
		{"missing account", randomKey(t), f.mint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.CreateSchedule(ctx, f.authority.signer(t), CreateParams{
				Beneficiary:   f.beneficiary.key,
				Mint:          tt.mint,
				SourceAccount: tt.source,
				StartTime:     0,
				EndTime:       100,
				TotalAmount:   1000,
			})
			assert.ErrorIs(t, err, ErrInvalidSourceAccount)
		})
	}
}

func TestCreateSchedule_Duplicate(t *testing.T) {
	f := newFixture(t, 5000)

	_, err := f.create(t, 1000, 0, 100)
	require.NoError(t, err)

	_, err = f.create(t, 2000, 50, 500)
	assert.ErrorIs(t, err, ErrDuplicateSchedule)
	assert.Equal(t, KindConflict, KindOf(err))

	// The first record is untouched.
	s, err := f.engine.LookupSchedule(context.Background(), f.authority.key, f.beneficiary.key, f.mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), s.TotalAmount)
}

func TestCreateSchedule_InvalidAddress(t *testing.T) {
	f := newFixture(t, 1000)

	_, err := f.engine.CreateSchedule(context.Background(), f.authority.signer(t), CreateParams{
		Beneficiary:   "bogus",
		Mint:          f.mint,
		SourceAccount: f.source,
		StartTime:     0,
		EndTime:       100,
		TotalAmount:   1000,
	})
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestClaimTokens_Scenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)

	s, err := f.create(t, 1000, 0, 100)
	require.NoError(t, err)

	f.clock.Set(50)
	res, err := f.claim(t)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), res.Event.Amount)
	assert.Equal(t, uint64(500), res.Schedule.ClaimedAmount)
	assert.Equal(t, f.receiving, res.Event.DestinationAccount)
	assert.Equal(t, idhash.ComputeClaimID(s.Address, 500), res.Event.ClaimID)
	assert.Equal(t, int64(50), res.Event.ClaimedAt)
	assert.Equal(t, int64(50), res.Event.CreatedAt, "event timestamps come from the engine clock")

	// A second claim at the same instant has nothing left.
	_, err = f.claim(t)
	assert.ErrorIs(t, err, ErrNoTokensToClaim)
	assert.Equal(t, KindTiming, KindOf(err))

	f.clock.Set(100)
	res, err = f.claim(t)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), res.Event.Amount)
	assert.Equal(t, uint64(1000), res.Schedule.ClaimedAmount)

	f.clock.Set(150)
	_, err = f.claim(t)
	assert.ErrorIs(t, err, ErrNoTokensToClaim)

	assert.Equal(t, uint64(0), f.balance(t, f.source))
	assert.Equal(t, uint64(1000), f.balance(t, f.receiving))

	history, err := f.engine.ClaimHistory(ctx, s.Address)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(50), history[0].ClaimedAt)
	assert.Equal(t, int64(100), history[1].ClaimedAt)

	stored, err := f.engine.GetSchedule(ctx, s.Address)
	require.NoError(t, err)
	require.NotNil(t, stored.LastClaimedAt)
	assert.Equal(t, int64(100), *stored.LastClaimedAt)
}

func TestClaimTokens_ClaimedEqualsTransferred(t *testing.T) {
	f := newFixture(t, 10_007)

	_, err := f.create(t, 10_007, 1_000, 1_337)
	require.NoError(t, err)

	var transferred uint64
	for now := int64(1_000); now <= 1_400; now += 13 {
		f.clock.Set(now)
		res, err := f.claim(t)
		if errors.Is(err, ErrNoTokensToClaim) {
			continue
		}
		require.NoError(t, err)
		transferred += res.Event.Amount
		assert.Equal(t, transferred, res.Schedule.ClaimedAmount)
		assert.LessOrEqual(t, res.Schedule.ClaimedAmount, res.Schedule.TotalAmount)
	}

	assert.Equal(t, uint64(10_007), transferred)
	assert.Equal(t, transferred, f.balance(t, f.receiving))
}

func TestClaimTokens_NotStarted(t *testing.T) {
	f := newFixture(t, 1000)

	_, err := f.create(t, 1000, 100, 200)
	require.NoError(t, err)

	f.clock.Set(99)
	_, err = f.claim(t)
	assert.ErrorIs(t, err, ErrVestingNotStarted)
	assert.Equal(t, KindTiming, KindOf(err))

	// At start nothing has unlocked yet.
	f.clock.Set(100)
	_, err = f.claim(t)
	assert.ErrorIs(t, err, ErrNoTokensToClaim)
}

func TestClaimTokens_ScheduleNotFound(t *testing.T) {
	f := newFixture(t, 1000)

	_, err := f.claim(t)
	assert.ErrorIs(t, err, ErrScheduleNotFound)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestClaimTokens_WrongAuthority(t *testing.T) {
	f := newFixture(t, 1000)

	_, err := f.create(t, 1000, 0, 100)
	require.NoError(t, err)
	f.clock.Set(50)

	// Another key derives another address, so the schedule is not visible to it.
	intruder := newParty(t)
	_, err = f.engine.ClaimTokens(context.Background(), intruder.signer(t), ClaimParams{
		Beneficiary: f.beneficiary.key,
		Mint:        f.mint,
	})
	assert.ErrorIs(t, err, ErrScheduleNotFound)

	_, err = f.engine.ClaimTokens(context.Background(), auth.Signer{}, ClaimParams{
		Beneficiary: f.beneficiary.key,
		Mint:        f.mint,
	})
	assert.ErrorIs(t, err, ErrUnauthorized)

	assert.Equal(t, uint64(1000), f.balance(t, f.source))
}

func TestClaimTokens_BeneficiaryMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)

	s, err := f.create(t, 1000, 0, 100)
	require.NoError(t, err)

	// Corrupt the stored beneficiary to simulate a record that no longer matches its address.
	tampered := *s
	tampered.Beneficiary = randomKey(t)
	f.backend.Schedules = memory.NewScheduleStore()
	require.NoError(t, f.backend.Schedules.Insert(ctx, &tampered))

	f.clock.Set(50)
	_, err = f.claim(t)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestClaimTokens_ReceivingAccountMismatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)

	_, err := f.create(t, 1000, 0, 100)
	require.NoError(t, err)
	f.clock.Set(50)

	strangers := randomKey(t)
	_, err = f.engine.OpenTokenAccount(ctx, OpenAccountParams{
		Address: strangers,
		Owner:   newParty(t).key,
		Mint:    f.mint,
	})
	require.NoError(t, err)

	_, err = f.engine.ClaimTokens(ctx, f.authority.signer(t), ClaimParams{
		Beneficiary:      f.beneficiary.key,
		Mint:             f.mint,
		ReceivingAccount: strangers,
	})
	assert.ErrorIs(t, err, ErrReceivingAccountMismatch)

	_, err = f.engine.ClaimTokens(ctx, f.authority.signer(t), ClaimParams{
		Beneficiary:      f.beneficiary.key,
		Mint:             f.mint,
		ReceivingAccount: randomKey(t),
	})
	assert.ErrorIs(t, err, ErrReceivingAccountMismatch, "missing account")

	assert.Equal(t, uint64(1000), f.balance(t, f.source))
}

func TestClaimTokens_ExplicitReceivingAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)

	_, err := f.create(t, 1000, 0, 100)
	require.NoError(t, err)
	f.clock.Set(25)

	wallet := randomKey(t)
	_, err = f.engine.OpenTokenAccount(ctx, OpenAccountParams{
		Address: wallet,
		Owner:   f.beneficiary.key,
		Mint:    f.mint,
	})
	require.NoError(t, err)

	res, err := f.engine.ClaimTokens(ctx, f.authority.signer(t), ClaimParams{
		Beneficiary:      f.beneficiary.key,
		Mint:             f.mint,
		ReceivingAccount: wallet,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(250), res.Event.Amount)
	assert.Equal(t, uint64(250), f.balance(t, wallet))
	assert.Equal(t, uint64(0), f.balance(t, f.receiving))
}

func TestClaimTokens_TransferFailureLeavesRecordUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100)

	s, err := f.create(t, 1000, 0, 100)
	require.NoError(t, err)

	f.clock.Set(50)
	_, err = f.claim(t)
	assert.ErrorIs(t, err, ErrTransferFailed)
	assert.Equal(t, KindExternal, KindOf(err))

	stored, err := f.engine.GetSchedule(ctx, s.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), stored.ClaimedAmount)
	assert.Nil(t, stored.LastClaimedAt)

	history, err := f.engine.ClaimHistory(ctx, s.Address)
	require.NoError(t, err)
	assert.Empty(t, history)

	assert.Equal(t, uint64(100), f.balance(t, f.source))
	assert.Equal(t, uint64(0), f.balance(t, f.receiving))
}

func TestClaimTokens_ConcurrentSingleRelease(t *testing.T) {
	f := newFixture(t, 1000)

	_, err := f.create(t, 1000, 0, 100)
	require.NoError(t, err)
	f.clock.Set(40)

	signer := f.authority.signer(t)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.ClaimTokens(context.Background(), signer, ClaimParams{
				Beneficiary: f.beneficiary.key,
				Mint:        f.mint,
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, uint64(400), f.balance(t, f.receiving))
}

type recordingAnalytics struct {
	mu     sync.Mutex
	events []*domain.ClaimEvent
	err    error
}

func (r *recordingAnalytics) Insert(_ context.Context, e *domain.ClaimEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *recordingAnalytics) TotalClaimedByMint(_ context.Context, mint string) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total uint64
	for _, e := range r.events {
		if e.Mint == mint {
			total += e.Amount
		}
	}
	return total, nil
}

var _ storage.ClaimAnalyticsStore = (*recordingAnalytics)(nil)

func TestClaimTokens_MirrorsToAnalytics(t *testing.T) {
	ctx := context.Background()
	analytics := &recordingAnalytics{}
	f := newFixture(t, 1000, func(o *Options) { o.Analytics = analytics })

	_, err := f.create(t, 1000, 0, 100)
	require.NoError(t, err)

	f.clock.Set(30)
	res, err := f.claim(t)
	require.NoError(t, err)

	require.Len(t, analytics.events, 1)
	assert.Equal(t, res.Event.ClaimID, analytics.events[0].ClaimID)

	total, err := f.engine.MintClaimedTotal(ctx, f.mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), total)
}

func TestClaimTokens_AnalyticsFailureIsNotFatal(t *testing.T) {
	analytics := &recordingAnalytics{err: errors.New("clickhouse down")}
	f := newFixture(t, 1000, func(o *Options) { o.Analytics = analytics })

	_, err := f.create(t, 1000, 0, 100)
	require.NoError(t, err)

	f.clock.Set(30)
	res, err := f.claim(t)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), res.Event.Amount)
	assert.Equal(t, uint64(300), f.balance(t, f.receiving))
}

func TestMintClaimedTotal_Disabled(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.engine.MintClaimedTotal(context.Background(), f.mint)
	assert.ErrorIs(t, err, ErrAnalyticsDisabled)
}

func TestPreview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1000)

	s, err := f.create(t, 1000, 100, 200)
	require.NoError(t, err)

	f.clock.Set(50)
	p, err := f.engine.Preview(ctx, s.Address)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, p.Status)
	assert.Equal(t, uint64(0), p.Claimable)

	f.clock.Set(175)
	p, err = f.engine.Preview(ctx, s.Address)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, p.Status)
	assert.Equal(t, uint64(750), p.Releasable)
	assert.Equal(t, uint64(750), p.Claimable)
	assert.Equal(t, int64(175), p.Now)

	f.clock.Set(200)
	_, err = f.claim(t)
	require.NoError(t, err)

	p, err = f.engine.Preview(ctx, s.Address)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, p.Status)
	assert.Equal(t, uint64(0), p.Claimable)

	_, err = f.engine.Preview(ctx, randomKey(t))
	assert.ErrorIs(t, err, ErrScheduleNotFound)
}

func TestScheduleAccount(t *testing.T) {
	f := newFixture(t, 1000)

	s, err := f.create(t, 1000, 0, 100)
	require.NoError(t, err)

	data, err := f.engine.ScheduleAccount(context.Background(), s.Address)
	require.NoError(t, err)

	decoded, err := DecodeScheduleAccount(s.Address, data)
	require.NoError(t, err)
	assert.Equal(t, s.Authority, decoded.Authority)
	assert.Equal(t, s.TotalAmount, decoded.TotalAmount)
	assert.Equal(t, s.Bump, decoded.Bump)
}

func TestSchedulesForAndStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 10_000)

	// authority -> beneficiary, active at t=50
	_, err := f.create(t, 1000, 0, 100)
	require.NoError(t, err)

	// authority -> authority (self vesting), pending at t=50
	f.clock.Set(1)
	_, err = f.engine.CreateSchedule(ctx, f.authority.signer(t), CreateParams{
		Beneficiary:   f.authority.key,
		Mint:          f.mint,
		SourceAccount: f.source,
		StartTime:     60,
		EndTime:       120,
		TotalAmount:   600,
	})
	require.NoError(t, err)

	// unrelated schedule from another authority
	other := newParty(t)
	otherSource := randomKey(t)
	_, err = f.engine.OpenTokenAccount(ctx, OpenAccountParams{Address: otherSource, Owner: other.key, Mint: f.mint, Amount: 10})
	require.NoError(t, err)
	_, err = f.engine.CreateSchedule(ctx, other.signer(t), CreateParams{
		Beneficiary:   newParty(t).key,
		Mint:          f.mint,
		SourceAccount: otherSource,
		StartTime:     0,
		EndTime:       10,
		TotalAmount:   10,
	})
	require.NoError(t, err)

	list, err := f.engine.SchedulesFor(ctx, f.authority.key)
	require.NoError(t, err)
	require.Len(t, list, 2, "self vesting schedule is listed once")
	assert.Equal(t, f.beneficiary.key, list[0].Beneficiary)
	assert.Equal(t, f.authority.key, list[1].Beneficiary)

	f.clock.Set(50)
	stats, err := f.engine.Stats(ctx, f.authority.key)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 0, stats.Completed)
	assert.Equal(t, 2, stats.AsAuthority)
	assert.Equal(t, 1, stats.AsBeneficiary)
	assert.Equal(t, uint64(1600), stats.TotalLocked)
	assert.Equal(t, uint64(500), stats.TotalClaimable)

	benefStats, err := f.engine.Stats(ctx, f.beneficiary.key)
	require.NoError(t, err)
	assert.Equal(t, 1, benefStats.Total)
	assert.Equal(t, 0, benefStats.AsAuthority)

	_, err = f.engine.SchedulesFor(ctx, "nope")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestOpenTokenAccount_Duplicate(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.engine.OpenTokenAccount(context.Background(), OpenAccountParams{
		Owner: f.beneficiary.key,
		Mint:  f.mint,
	})
	assert.ErrorIs(t, err, ErrDuplicateAccount)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{ErrUnauthorized, KindAuthorization},
		{ErrInvalidTimeRange, KindValidation},
		{ErrReceivingAccountMismatch, KindValidation},
		{ErrVestingNotStarted, KindTiming},
		{ErrNoTokensToClaim, KindTiming},
		{fmt.Errorf("%w: rpc down", ErrTransferFailed), KindExternal},
		{ErrScheduleNotFound, KindNotFound},
		{ErrDuplicateSchedule, KindConflict},
		{errors.New("boom"), KindInternal},
		{nil, KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), "%v", tt.err)
	}
}
