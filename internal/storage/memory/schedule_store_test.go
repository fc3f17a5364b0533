package memory

import (
	"context"
	"errors"
	"testing"

	"solana-vesting/internal/domain"
	"solana-vesting/internal/storage"
)

func testSchedule(address string, createdAt int64) *domain.VestingSchedule {
	return &domain.VestingSchedule{
		Address:       address,
		Authority:     "authority1",
		Beneficiary:   "beneficiary1",
		Mint:          "mint1",
		SourceAccount: "source1",
		StartTime:     0,
		EndTime:       100,
		TotalAmount:   1000,
		Bump:          254,
		CreatedAt:     createdAt,
	}
}

func TestScheduleStore_InsertAndGet(t *testing.T) {
	store := NewScheduleStore()
	ctx := context.Background()

	s := testSchedule("sched1", 10)
	if err := store.Insert(ctx, s); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByAddress(ctx, "sched1")
	if err != nil {
		t.Fatalf("GetByAddress failed: %v", err)
	}

	if *got != *s {
		t.Errorf("schedule mismatch: got %+v, want %+v", got, s)
	}
}

func TestScheduleStore_DuplicateKey(t *testing.T) {
	store := NewScheduleStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testSchedule("sched1", 10)); err != nil {
		t.Fatalf("first Insert failed: %v", err)
	}

	err := store.Insert(ctx, testSchedule("sched1", 20))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestScheduleStore_NotFound(t *testing.T) {
	store := NewScheduleStore()

	_, err := store.GetByAddress(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestScheduleStore_InvalidInput(t *testing.T) {
	store := NewScheduleStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("nil: expected ErrInvalidInput, got %v", err)
	}

	if err := store.Insert(ctx, testSchedule("", 0)); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("empty address: expected ErrInvalidInput, got %v", err)
	}

	over := testSchedule("over", 0)
	over.ClaimedAmount = over.TotalAmount + 1
	if err := store.Insert(ctx, over); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("claimed > total: expected ErrInvalidInput, got %v", err)
	}
}

func TestScheduleStore_UpdateClaimed(t *testing.T) {
	store := NewScheduleStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testSchedule("sched1", 10)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if err := store.UpdateClaimed(ctx, "sched1", 500, 50); err != nil {
		t.Fatalf("UpdateClaimed failed: %v", err)
	}

	got, _ := store.GetByAddress(ctx, "sched1")
	if got.ClaimedAmount != 500 {
		t.Errorf("ClaimedAmount = %d, want 500", got.ClaimedAmount)
	}
	if got.LastClaimedAt == nil || *got.LastClaimedAt != 50 {
		t.Errorf("LastClaimedAt = %v, want 50", got.LastClaimedAt)
	}

	// Decrease is rejected
	if err := store.UpdateClaimed(ctx, "sched1", 400, 60); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("decrease: expected ErrInvalidInput, got %v", err)
	}

	// Above total is rejected
	if err := store.UpdateClaimed(ctx, "sched1", 1001, 60); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("over total: expected ErrInvalidInput, got %v", err)
	}

	if err := store.UpdateClaimed(ctx, "missing", 1, 60); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing: expected ErrNotFound, got %v", err)
	}
}

func TestScheduleStore_CopyOnRead(t *testing.T) {
	store := NewScheduleStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testSchedule("sched1", 10)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.UpdateClaimed(ctx, "sched1", 100, 20); err != nil {
		t.Fatalf("UpdateClaimed failed: %v", err)
	}

	got, _ := store.GetByAddress(ctx, "sched1")
	got.ClaimedAmount = 999
	*got.LastClaimedAt = 999

	again, _ := store.GetByAddress(ctx, "sched1")
	if again.ClaimedAmount != 100 || *again.LastClaimedAt != 20 {
		t.Errorf("stored schedule mutated through returned copy: %+v", again)
	}
}

func TestScheduleStore_GetByAuthorityAndBeneficiary(t *testing.T) {
	store := NewScheduleStore()
	ctx := context.Background()

	a := testSchedule("b-sched", 20)
	b := testSchedule("a-sched", 20)
	c := testSchedule("c-sched", 10)
	c.Authority = "authority2"
	c.Beneficiary = "authority1"

	for _, s := range []*domain.VestingSchedule{a, b, c} {
		if err := store.Insert(ctx, s); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	byAuthority, err := store.GetByAuthority(ctx, "authority1")
	if err != nil {
		t.Fatalf("GetByAuthority failed: %v", err)
	}
	if len(byAuthority) != 2 {
		t.Fatalf("expected 2 schedules, got %d", len(byAuthority))
	}
	// Same created_at: ordered by address
	if byAuthority[0].Address != "a-sched" || byAuthority[1].Address != "b-sched" {
		t.Errorf("unexpected order: %s, %s", byAuthority[0].Address, byAuthority[1].Address)
	}

	byBeneficiary, err := store.GetByBeneficiary(ctx, "authority1")
	if err != nil {
		t.Fatalf("GetByBeneficiary failed: %v", err)
	}
	if len(byBeneficiary) != 1 || byBeneficiary[0].Address != "c-sched" {
		t.Errorf("unexpected beneficiary result: %+v", byBeneficiary)
	}
}
