package service

import (
	"context"
	"errors"
	"testing"

	"github.com/brewline-pos/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type mockMenuStore struct {
	items          map[uuid.UUID]database.MenuItem
	activeBranches []uuid.UUID

	lastSharingUpdate *database.UpdateMenuItemSharingParams
}

func (m *mockMenuStore) GetMenuItem(_ context.Context, arg database.GetMenuItemParams) (database.MenuItem, error) {
	item, ok := m.items[arg.ID]
	if !ok || item.TenantID != arg.TenantID {
		return database.MenuItem{}, pgx.ErrNoRows
	}
	return item, nil
}

func (m *mockMenuStore) ListActiveBranchIDs(_ context.Context, _ uuid.UUID) ([]uuid.UUID, error) {
	return m.activeBranches, nil
}

func (m *mockMenuStore) UpdateMenuItemSharing(_ context.Context, arg database.UpdateMenuItemSharingParams) (database.MenuItem, error) {
	m.lastSharingUpdate = &arg
	item, ok := m.items[arg.ID]
	if !ok || item.TenantID != arg.TenantID {
		return database.MenuItem{}, pgx.ErrNoRows
	}
	item.IsTransferable = arg.IsTransferable
	item.SharedBranchIds = arg.SharedBranchIds
	m.items[arg.ID] = item
	return item, nil
}

func TestIsSellableAt(t *testing.T) {
	owner := uuid.New()
	granted := uuid.New()
	stranger := uuid.New()

	tests := []struct {
		name           string
		isTransferable bool
		shared         []uuid.UUID
		branchID       uuid.UUID
		want           bool
	}{
		{"owning branch", false, nil, owner, true},
		{"granted branch", false, []uuid.UUID{granted}, granted, true},
		{"ungranted branch", false, []uuid.UUID{granted}, stranger, false},
		{"transferable opens all branches", true, nil, stranger, true},
		{"private item elsewhere", false, nil, stranger, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := database.MenuItem{
				BranchID:        owner,
				IsTransferable:  tt.isTransferable,
				SharedBranchIds: tt.shared,
			}
			if got := IsSellableAt(item, tt.branchID); got != tt.want {
				t.Errorf("IsSellableAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUpdateSharingGrants(t *testing.T) {
	tenantID := uuid.New()
	ownerBranch := uuid.New()
	branchA := uuid.New()
	branchB := uuid.New()
	itemID := uuid.New()

	newStore := func() *mockMenuStore {
		return &mockMenuStore{
			items: map[uuid.UUID]database.MenuItem{
				itemID: {ID: itemID, TenantID: tenantID, BranchID: ownerBranch, Name: "Cold Brew"},
			},
			activeBranches: []uuid.UUID{ownerBranch, branchA, branchB},
		}
	}

	t.Run("valid grants persist deduplicated", func(t *testing.T) {
		store := newStore()
		svc := NewMenuService(store)
		item, err := svc.UpdateSharing(context.Background(), tenantID, itemID, true, []uuid.UUID{branchA, branchB, branchA})
		if err != nil {
			t.Fatalf("UpdateSharing: %v", err)
		}
		if !item.IsTransferable {
			t.Fatal("transferable flag not set")
		}
		if len(item.SharedBranchIds) != 2 {
			t.Fatalf("got %d grants, want 2 (duplicates dropped)", len(item.SharedBranchIds))
		}
	})

	t.Run("unknown branch rejected", func(t *testing.T) {
		store := newStore()
		svc := NewMenuService(store)
		_, err := svc.UpdateSharing(context.Background(), tenantID, itemID, true, []uuid.UUID{uuid.New()})
		if !errors.Is(err, ErrGrantUnknownBranch) {
			t.Fatalf("err = %v, want ErrGrantUnknownBranch", err)
		}
		if store.lastSharingUpdate != nil {
			t.Fatal("sharing must not be written when validation fails")
		}
	})

	t.Run("owning branch cannot be a grant target", func(t *testing.T) {
		store := newStore()
		svc := NewMenuService(store)
		_, err := svc.UpdateSharing(context.Background(), tenantID, itemID, true, []uuid.UUID{ownerBranch})
		if !errors.Is(err, ErrGrantOwnBranch) {
			t.Fatalf("err = %v, want ErrGrantOwnBranch", err)
		}
	})

	t.Run("turning transferable off clears grants", func(t *testing.T) {
		store := newStore()
		svc := NewMenuService(store)
		if _, err := svc.UpdateSharing(context.Background(), tenantID, itemID, true, []uuid.UUID{branchA}); err != nil {
			t.Fatalf("seed grants: %v", err)
		}
		item, err := svc.UpdateSharing(context.Background(), tenantID, itemID, false, []uuid.UUID{branchA})
		if err != nil {
			t.Fatalf("UpdateSharing: %v", err)
		}
		if item.IsTransferable {
			t.Fatal("transferable flag still set")
		}
		if len(item.SharedBranchIds) != 0 {
			t.Fatalf("grants = %v, want empty after disabling transfer", item.SharedBranchIds)
		}
	})

	t.Run("unknown item", func(t *testing.T) {
		store := newStore()
		svc := NewMenuService(store)
		_, err := svc.UpdateSharing(context.Background(), tenantID, uuid.New(), true, nil)
		if !errors.Is(err, ErrMenuItemNotFound) {
			t.Fatalf("err = %v, want ErrMenuItemNotFound", err)
		}
	})

	t.Run("cross-tenant item invisible", func(t *testing.T) {
		store := newStore()
		svc := NewMenuService(store)
		_, err := svc.UpdateSharing(context.Background(), uuid.New(), itemID, true, nil)
		if !errors.Is(err, ErrMenuItemNotFound) {
			t.Fatalf("err = %v, want ErrMenuItemNotFound", err)
		}
	})
}
