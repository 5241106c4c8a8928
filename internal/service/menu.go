package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/brewline-pos/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Errors returned by the menu service.
var (
	ErrMenuItemNotFound   = errors.New("menu item not found")
	ErrGrantUnknownBranch = errors.New("share grant references an unknown or inactive branch")
	ErrGrantOwnBranch     = errors.New("cannot grant an item to its owning branch")
)

// MenuStore defines the DB methods needed to manage menu item sharing.
// Satisfied by *database.Queries.
type MenuStore interface {
	GetMenuItem(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error)
	ListActiveBranchIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error)
	UpdateMenuItemSharing(ctx context.Context, arg database.UpdateMenuItemSharingParams) (database.MenuItem, error)
}

// MenuService manages cross-branch menu item sharing. Ownership never moves:
// a grant or the transferable flag only changes which branches may sell the
// item, the owning branch stays on the row.
type MenuService struct {
	store MenuStore
}

func NewMenuService(store MenuStore) *MenuService {
	return &MenuService{store: store}
}

// UpdateSharing replaces an item's sharing configuration wholesale. Grants
// are validated against the tenant's active branch set; turning the
// transferable flag off discards all grants.
func (s *MenuService) UpdateSharing(ctx context.Context, tenantID, itemID uuid.UUID, isTransferable bool, grants []uuid.UUID) (database.MenuItem, error) {
	item, err := s.store.GetMenuItem(ctx, database.GetMenuItemParams{ID: itemID, TenantID: tenantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.MenuItem{}, ErrMenuItemNotFound
		}
		return database.MenuItem{}, fmt.Errorf("get menu item: %w", err)
	}

	validated := []uuid.UUID{}
	if isTransferable && len(grants) > 0 {
		branchIDs, err := s.store.ListActiveBranchIDs(ctx, tenantID)
		if err != nil {
			return database.MenuItem{}, fmt.Errorf("list branches: %w", err)
		}
		active := make(map[uuid.UUID]bool, len(branchIDs))
		for _, id := range branchIDs {
			active[id] = true
		}

		seen := make(map[uuid.UUID]bool, len(grants))
		for _, g := range grants {
			if g == item.BranchID {
				return database.MenuItem{}, ErrGrantOwnBranch
			}
			if !active[g] {
				return database.MenuItem{}, ErrGrantUnknownBranch
			}
			if seen[g] {
				continue
			}
			seen[g] = true
			validated = append(validated, g)
		}
	}

	updated, err := s.store.UpdateMenuItemSharing(ctx, database.UpdateMenuItemSharingParams{
		IsTransferable:  isTransferable,
		SharedBranchIds: validated,
		ID:              itemID,
		TenantID:        tenantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.MenuItem{}, ErrMenuItemNotFound
		}
		return database.MenuItem{}, fmt.Errorf("update sharing: %w", err)
	}
	return updated, nil
}

// IsSellableAt reports whether an item may be sold through the given branch:
// the branch owns it, holds an explicit grant, or the item is transferable
// tenant-wide.
func IsSellableAt(item database.MenuItem, branchID uuid.UUID) bool {
	if item.BranchID == branchID {
		return true
	}
	for _, id := range item.SharedBranchIds {
		if id == branchID {
			return true
		}
	}
	return item.IsTransferable
}
