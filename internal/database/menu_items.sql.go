package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const createMenuItem = `-- name: CreateMenuItem :one
INSERT INTO menu_items (tenant_id, branch_id, category_id, name, price, is_available)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, tenant_id, branch_id, category_id, name, price, is_available, is_transferable, shared_branch_ids, is_active, created_at, updated_at
`

type CreateMenuItemParams struct {
	TenantID    uuid.UUID
	BranchID    uuid.UUID
	CategoryID  pgtype.UUID
	Name        string
	Price       pgtype.Numeric
	IsAvailable bool
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, createMenuItem,
		arg.TenantID,
		arg.BranchID,
		arg.CategoryID,
		arg.Name,
		arg.Price,
		arg.IsAvailable,
	)
	var i MenuItem
	err := row.Scan(
		&i.ID,
		&i.TenantID,
		&i.BranchID,
		&i.CategoryID,
		&i.Name,
		&i.Price,
		&i.IsAvailable,
		&i.IsTransferable,
		&i.SharedBranchIds,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getMenuItem = `-- name: GetMenuItem :one
SELECT id, tenant_id, branch_id, category_id, name, price, is_available, is_transferable, shared_branch_ids, is_active, created_at, updated_at
FROM menu_items
WHERE id = $1 AND tenant_id = $2 AND is_active = TRUE
`

type GetMenuItemParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) GetMenuItem(ctx context.Context, arg GetMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, getMenuItem, arg.ID, arg.TenantID)
	var i MenuItem
	err := row.Scan(
		&i.ID,
		&i.TenantID,
		&i.BranchID,
		&i.CategoryID,
		&i.Name,
		&i.Price,
		&i.IsAvailable,
		&i.IsTransferable,
		&i.SharedBranchIds,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listMenuItemsByBranch = `-- name: ListMenuItemsByBranch :many
SELECT id, tenant_id, branch_id, category_id, name, price, is_available, is_transferable, shared_branch_ids, is_active, created_at, updated_at
FROM menu_items
WHERE branch_id = $1 AND tenant_id = $2 AND is_active = TRUE
ORDER BY name
`

type ListMenuItemsByBranchParams struct {
	BranchID uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) ListMenuItemsByBranch(ctx context.Context, arg ListMenuItemsByBranchParams) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItemsByBranch, arg.BranchID, arg.TenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMenuItems(rows)
}

const listSellableMenuItems = `-- name: ListSellableMenuItems :many
SELECT id, tenant_id, branch_id, category_id, name, price, is_available, is_transferable, shared_branch_ids, is_active, created_at, updated_at
FROM menu_items
WHERE tenant_id = $2
  AND is_active = TRUE
  AND is_available = TRUE
  AND (branch_id = $1 OR $1 = ANY(shared_branch_ids) OR is_transferable = TRUE)
ORDER BY name
`

type ListSellableMenuItemsParams struct {
	BranchID uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) ListSellableMenuItems(ctx context.Context, arg ListSellableMenuItemsParams) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listSellableMenuItems, arg.BranchID, arg.TenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMenuItems(rows)
}

const getMenuItemsByIDs = `-- name: GetMenuItemsByIDs :many
SELECT id, tenant_id, branch_id, category_id, name, price, is_available, is_transferable, shared_branch_ids, is_active, created_at, updated_at
FROM menu_items
WHERE id = ANY($2::uuid[])
  AND tenant_id = $1
  AND is_active = TRUE
`

type GetMenuItemsByIDsParams struct {
	TenantID uuid.UUID
	Ids      []uuid.UUID
}

// GetMenuItemsByIDs fetches items tenant-scoped only; availability and
// branch sellability are decided by the caller.
func (q *Queries) GetMenuItemsByIDs(ctx context.Context, arg GetMenuItemsByIDsParams) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, getMenuItemsByIDs, arg.TenantID, arg.Ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMenuItems(rows)
}

const updateMenuItem = `-- name: UpdateMenuItem :one
UPDATE menu_items
SET category_id = $1, name = $2, price = $3, is_available = $4, updated_at = now()
WHERE id = $5 AND tenant_id = $6 AND is_active = TRUE
RETURNING id, tenant_id, branch_id, category_id, name, price, is_available, is_transferable, shared_branch_ids, is_active, created_at, updated_at
`

type UpdateMenuItemParams struct {
	CategoryID  pgtype.UUID
	Name        string
	Price       pgtype.Numeric
	IsAvailable bool
	ID          uuid.UUID
	TenantID    uuid.UUID
}

func (q *Queries) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, updateMenuItem,
		arg.CategoryID,
		arg.Name,
		arg.Price,
		arg.IsAvailable,
		arg.ID,
		arg.TenantID,
	)
	var i MenuItem
	err := row.Scan(
		&i.ID,
		&i.TenantID,
		&i.BranchID,
		&i.CategoryID,
		&i.Name,
		&i.Price,
		&i.IsAvailable,
		&i.IsTransferable,
		&i.SharedBranchIds,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const updateMenuItemSharing = `-- name: UpdateMenuItemSharing :one
UPDATE menu_items
SET is_transferable = $1, shared_branch_ids = $2, updated_at = now()
WHERE id = $3 AND tenant_id = $4 AND is_active = TRUE
RETURNING id, tenant_id, branch_id, category_id, name, price, is_available, is_transferable, shared_branch_ids, is_active, created_at, updated_at
`

type UpdateMenuItemSharingParams struct {
	IsTransferable  bool
	SharedBranchIds []uuid.UUID
	ID              uuid.UUID
	TenantID        uuid.UUID
}

func (q *Queries) UpdateMenuItemSharing(ctx context.Context, arg UpdateMenuItemSharingParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, updateMenuItemSharing,
		arg.IsTransferable,
		arg.SharedBranchIds,
		arg.ID,
		arg.TenantID,
	)
	var i MenuItem
	err := row.Scan(
		&i.ID,
		&i.TenantID,
		&i.BranchID,
		&i.CategoryID,
		&i.Name,
		&i.Price,
		&i.IsAvailable,
		&i.IsTransferable,
		&i.SharedBranchIds,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const softDeleteMenuItem = `-- name: SoftDeleteMenuItem :one
UPDATE menu_items
SET is_active = FALSE, is_available = FALSE, updated_at = now()
WHERE id = $1 AND tenant_id = $2 AND is_active = TRUE
RETURNING id
`

type SoftDeleteMenuItemParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) SoftDeleteMenuItem(ctx context.Context, arg SoftDeleteMenuItemParams) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, softDeleteMenuItem, arg.ID, arg.TenantID)
	var id uuid.UUID
	err := row.Scan(&id)
	return id, err
}

const countMenuItemsByTenant = `-- name: CountMenuItemsByTenant :one
SELECT count(*) FROM menu_items
WHERE tenant_id = $1 AND is_active = TRUE
`

func (q *Queries) CountMenuItemsByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countMenuItemsByTenant, tenantID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

func scanMenuItems(rows pgx.Rows) ([]MenuItem, error) {
	var items []MenuItem
	for rows.Next() {
		var i MenuItem
		if err := rows.Scan(
			&i.ID,
			&i.TenantID,
			&i.BranchID,
			&i.CategoryID,
			&i.Name,
			&i.Price,
			&i.IsAvailable,
			&i.IsTransferable,
			&i.SharedBranchIds,
			&i.IsActive,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
