package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brewline-pos/api/internal/database"
	"github.com/jackc/pgx/v5/pgtype"
)

// ErrNoTokensAvailable means every token number in the branch's range is held
// by an active order. A business-rule failure, not a bug: the order cannot be
// created until a token frees up.
var ErrNoTokensAvailable = errors.New("no token numbers available for this branch")

// TokenStore defines the DB methods needed to allocate branch tokens.
// Satisfied by *database.Queries (and its WithTx variant).
type TokenStore interface {
	ListActiveTokenNumbers(ctx context.Context, arg database.ListActiveTokenNumbersParams) ([]int32, error)
	UpdateBranchToken(ctx context.Context, arg database.UpdateBranchTokenParams) error
	ResetBranchToken(ctx context.Context, arg database.ResetBranchTokenParams) error
}

// AllocateToken issues the next dine-in token number for a branch.
//
// Tokens cycle through [1, max_token_number] and reset to 1 on the first
// allocation of each calendar day (server local time). Numbers held by
// today's still-active orders are skipped by probing forward circularly.
// Yesterday's orders are outside the query window, so their tokens are
// reusable after midnight even if still active; the daily hard reset wins.
//
// Returns an invalid Int4 (SQL NULL) when the branch has no token system.
// Callers run this inside the order-creation transaction so the branch
// counter update commits or rolls back with the order itself.
func AllocateToken(ctx context.Context, store TokenStore, branch database.Branch, now time.Time) (pgtype.Int4, error) {
	if !branch.HasTokenSystem {
		return pgtype.Int4{}, nil
	}

	maxToken := branch.MaxTokenNumber
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	shouldReset := true
	if branch.LastTokenReset.Valid {
		shouldReset = branch.LastTokenReset.Time.In(now.Location()).Before(dayStart)
	}

	candidate := int32(1)
	if !shouldReset {
		candidate = branch.CurrentToken%maxToken + 1
	}

	active, err := store.ListActiveTokenNumbers(ctx, database.ListActiveTokenNumbersParams{
		BranchID:     branch.ID,
		CreatedAfter: dayStart,
	})
	if err != nil {
		return pgtype.Int4{}, fmt.Errorf("list active tokens: %w", err)
	}

	used := make(map[int32]bool, len(active))
	for _, n := range active {
		used[n] = true
	}

	token := int32(0)
	for attempt := int32(0); attempt < maxToken; attempt++ {
		probe := (candidate-1+attempt)%maxToken + 1
		if !used[probe] {
			token = probe
			break
		}
	}
	if token == 0 {
		return pgtype.Int4{}, ErrNoTokensAvailable
	}

	if shouldReset {
		err = store.ResetBranchToken(ctx, database.ResetBranchTokenParams{
			CurrentToken:   token,
			LastTokenReset: now,
			ID:             branch.ID,
		})
	} else {
		err = store.UpdateBranchToken(ctx, database.UpdateBranchTokenParams{
			CurrentToken: token,
			ID:           branch.ID,
		})
	}
	if err != nil {
		return pgtype.Int4{}, fmt.Errorf("persist branch token: %w", err)
	}

	return pgtype.Int4{Int32: token, Valid: true}, nil
}
