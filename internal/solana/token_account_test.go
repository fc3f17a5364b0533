package solana

import "testing"

func TestTokenAccount_RoundTrip(t *testing.T) {
	want := &TokenAccount{
		Mint:   newTestKey(t),
		Owner:  newTestKey(t),
		Amount: 42_000,
		State:  TokenAccountInitialized,
	}

	data := EncodeTokenAccount(want)
	if len(data) != TokenAccountSize {
		t.Fatalf("encoded size = %d, want %d", len(data), TokenAccountSize)
	}

	got, err := ParseTokenAccount(data[:TokenAccountPrefixLen])
	if err != nil {
		t.Fatalf("ParseTokenAccount: %v", err)
	}
	if *got != *want {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if !got.CanReceive() {
		t.Error("initialized account should receive")
	}
}

func TestTokenAccount_States(t *testing.T) {
	for _, state := range []TokenAccountState{TokenAccountUninitialized, TokenAccountFrozen} {
		data := EncodeTokenAccount(&TokenAccount{State: state})
		acct, err := ParseTokenAccount(data)
		if err != nil {
			t.Fatalf("ParseTokenAccount: %v", err)
		}
		if acct.CanReceive() {
			t.Errorf("%s account should not receive", state)
		}
	}
}

func TestParseTokenAccount_TooShort(t *testing.T) {
	// mint, owner and amount alone do not carry the state byte.
	if _, err := ParseTokenAccount(make([]byte, 72)); err == nil {
		t.Error("expected error for short data")
	}
}
