package database

import (
	"context"

	"github.com/google/uuid"
)

const createTenant = `-- name: CreateTenant :one
INSERT INTO tenants (name, max_branches, max_users, max_menu_items)
VALUES ($1, $2, $3, $4)
RETURNING id, name, max_branches, max_users, max_menu_items, is_active, created_at
`

type CreateTenantParams struct {
	Name         string
	MaxBranches  int32
	MaxUsers     int32
	MaxMenuItems int32
}

func (q *Queries) CreateTenant(ctx context.Context, arg CreateTenantParams) (Tenant, error) {
	row := q.db.QueryRow(ctx, createTenant, arg.Name, arg.MaxBranches, arg.MaxUsers, arg.MaxMenuItems)
	var i Tenant
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.MaxBranches,
		&i.MaxUsers,
		&i.MaxMenuItems,
		&i.IsActive,
		&i.CreatedAt,
	)
	return i, err
}

const getTenant = `-- name: GetTenant :one
SELECT id, name, max_branches, max_users, max_menu_items, is_active, created_at
FROM tenants
WHERE id = $1 AND is_active = TRUE
`

func (q *Queries) GetTenant(ctx context.Context, id uuid.UUID) (Tenant, error) {
	row := q.db.QueryRow(ctx, getTenant, id)
	var i Tenant
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.MaxBranches,
		&i.MaxUsers,
		&i.MaxMenuItems,
		&i.IsActive,
		&i.CreatedAt,
	)
	return i, err
}
