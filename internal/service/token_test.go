package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brewline-pos/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// fakeTokenStore records the persisted counter state instead of hitting a DB.
type fakeTokenStore struct {
	active  []int32
	listErr error

	updated *database.UpdateBranchTokenParams
	reset   *database.ResetBranchTokenParams
}

func (f *fakeTokenStore) ListActiveTokenNumbers(_ context.Context, _ database.ListActiveTokenNumbersParams) ([]int32, error) {
	return f.active, f.listErr
}

func (f *fakeTokenStore) UpdateBranchToken(_ context.Context, arg database.UpdateBranchTokenParams) error {
	f.updated = &arg
	return nil
}

func (f *fakeTokenStore) ResetBranchToken(_ context.Context, arg database.ResetBranchTokenParams) error {
	f.reset = &arg
	return nil
}

func tokenBranch(max, current int32, lastReset time.Time) database.Branch {
	b := database.Branch{
		ID:             uuid.New(),
		TenantID:       uuid.New(),
		Name:           "Main",
		IsActive:       true,
		HasTokenSystem: true,
		MaxTokenNumber: max,
		CurrentToken:   current,
	}
	if !lastReset.IsZero() {
		b.LastTokenReset = pgtype.Timestamptz{Time: lastReset, Valid: true}
	}
	return b
}

func mustToken(t *testing.T, tok pgtype.Int4, err error) int32 {
	t.Helper()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if !tok.Valid {
		t.Fatal("allocate: got NULL token, want a number")
	}
	return tok.Int32
}

func TestAllocateTokenNoTokenSystem(t *testing.T) {
	store := &fakeTokenStore{}
	branch := tokenBranch(99, 5, time.Now())
	branch.HasTokenSystem = false

	tok, err := AllocateToken(context.Background(), store, branch, time.Now())
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if tok.Valid {
		t.Fatalf("got token %d, want NULL for token-less branch", tok.Int32)
	}
	if store.updated != nil || store.reset != nil {
		t.Fatal("counter must not be touched for token-less branches")
	}
}

func TestAllocateTokenFirstEver(t *testing.T) {
	store := &fakeTokenStore{}
	branch := tokenBranch(5, 0, time.Time{}) // never reset

	tok, err := AllocateToken(context.Background(), store, branch, time.Now())
	got := mustToken(t, tok, err)
	if got != 1 {
		t.Fatalf("got token %d, want 1", got)
	}
	if store.reset == nil {
		t.Fatal("first allocation must stamp last_token_reset")
	}
}

func TestAllocateTokenDailyReset(t *testing.T) {
	now := time.Now()
	store := &fakeTokenStore{}
	branch := tokenBranch(99, 47, now.AddDate(0, 0, -1)) // reset yesterday

	tok, err := AllocateToken(context.Background(), store, branch, now)
	got := mustToken(t, tok, err)
	if got != 1 {
		t.Fatalf("got token %d, want 1 after daily reset", got)
	}
	if store.reset == nil {
		t.Fatal("reset allocation must persist last_token_reset")
	}
	if !store.reset.LastTokenReset.Equal(now) {
		t.Fatalf("last_token_reset = %v, want %v", store.reset.LastTokenReset, now)
	}
	if store.reset.CurrentToken != 1 {
		t.Fatalf("persisted current_token = %d, want 1", store.reset.CurrentToken)
	}
}

func TestAllocateTokenSequential(t *testing.T) {
	now := time.Now()
	store := &fakeTokenStore{}
	branch := tokenBranch(5, 1, now)

	tok, err := AllocateToken(context.Background(), store, branch, now)
	got := mustToken(t, tok, err)
	if got != 2 {
		t.Fatalf("got token %d, want 2", got)
	}
	if store.reset != nil {
		t.Fatal("same-day allocation must not touch last_token_reset")
	}
	if store.updated == nil || store.updated.CurrentToken != 2 {
		t.Fatalf("persisted update = %+v, want current_token 2", store.updated)
	}
}

func TestAllocateTokenWrapsCircularly(t *testing.T) {
	now := time.Now()
	store := &fakeTokenStore{}
	branch := tokenBranch(5, 5, now)

	tok, err := AllocateToken(context.Background(), store, branch, now)
	got := mustToken(t, tok, err)
	if got != 1 {
		t.Fatalf("got token %d, want 1 after wrapping past max", got)
	}
}

func TestAllocateTokenSkipsActiveTokens(t *testing.T) {
	now := time.Now()
	store := &fakeTokenStore{active: []int32{1, 2}}
	branch := tokenBranch(3, 0, now)

	tok, err := AllocateToken(context.Background(), store, branch, now)
	got := mustToken(t, tok, err)
	if got != 3 {
		t.Fatalf("got token %d, want 3 (1 and 2 are in use)", got)
	}
}

func TestAllocateTokenExhaustion(t *testing.T) {
	now := time.Now()
	store := &fakeTokenStore{active: []int32{1, 2, 3}}
	branch := tokenBranch(3, 0, now)

	_, err := AllocateToken(context.Background(), store, branch, now)
	if !errors.Is(err, ErrNoTokensAvailable) {
		t.Fatalf("err = %v, want ErrNoTokensAvailable", err)
	}
	if store.updated != nil || store.reset != nil {
		t.Fatal("exhaustion must not persist anything")
	}
}

// Tokens cycle through [1, max] and never leave the range when orders keep
// completing (empty used set each round).
func TestAllocateTokenCircularity(t *testing.T) {
	now := time.Now()
	branch := tokenBranch(4, 0, now)

	want := []int32{1, 2, 3, 4, 1, 2, 3, 4, 1, 2}
	for i, expected := range want {
		store := &fakeTokenStore{}
		tok, err := AllocateToken(context.Background(), store, branch, now)
		got := mustToken(t, tok, err)
		if got != expected {
			t.Fatalf("round %d: got token %d, want %d", i, got, expected)
		}
		if got < 1 || got > branch.MaxTokenNumber {
			t.Fatalf("round %d: token %d outside [1, %d]", i, got, branch.MaxTokenNumber)
		}
		branch.CurrentToken = got
	}
}

func TestAllocateTokenStoreError(t *testing.T) {
	now := time.Now()
	store := &fakeTokenStore{listErr: errors.New("boom")}
	branch := tokenBranch(5, 0, now)

	if _, err := AllocateToken(context.Background(), store, branch, now); err == nil {
		t.Fatal("expected error when the used-token query fails")
	}
}
