package database

import (
	"context"

	"github.com/google/uuid"
)

const createCategory = `-- name: CreateCategory :one
INSERT INTO categories (tenant_id, name, sort_order)
VALUES ($1, $2, $3)
RETURNING id, tenant_id, name, sort_order, is_active, created_at
`

type CreateCategoryParams struct {
	TenantID  uuid.UUID
	Name      string
	SortOrder int32
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	row := q.db.QueryRow(ctx, createCategory, arg.TenantID, arg.Name, arg.SortOrder)
	var i Category
	err := row.Scan(
		&i.ID,
		&i.TenantID,
		&i.Name,
		&i.SortOrder,
		&i.IsActive,
		&i.CreatedAt,
	)
	return i, err
}

const listCategoriesByTenant = `-- name: ListCategoriesByTenant :many
SELECT id, tenant_id, name, sort_order, is_active, created_at
FROM categories
WHERE tenant_id = $1 AND is_active = TRUE
ORDER BY sort_order, name
`

func (q *Queries) ListCategoriesByTenant(ctx context.Context, tenantID uuid.UUID) ([]Category, error) {
	rows, err := q.db.Query(ctx, listCategoriesByTenant, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		var i Category
		if err := rows.Scan(
			&i.ID,
			&i.TenantID,
			&i.Name,
			&i.SortOrder,
			&i.IsActive,
			&i.CreatedAt,
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

const updateCategory = `-- name: UpdateCategory :one
UPDATE categories
SET name = $1, sort_order = $2
WHERE id = $3 AND tenant_id = $4 AND is_active = TRUE
RETURNING id, tenant_id, name, sort_order, is_active, created_at
`

type UpdateCategoryParams struct {
	Name      string
	SortOrder int32
	ID        uuid.UUID
	TenantID  uuid.UUID
}

func (q *Queries) UpdateCategory(ctx context.Context, arg UpdateCategoryParams) (Category, error) {
	row := q.db.QueryRow(ctx, updateCategory, arg.Name, arg.SortOrder, arg.ID, arg.TenantID)
	var i Category
	err := row.Scan(
		&i.ID,
		&i.TenantID,
		&i.Name,
		&i.SortOrder,
		&i.IsActive,
		&i.CreatedAt,
	)
	return i, err
}

const softDeleteCategory = `-- name: SoftDeleteCategory :one
UPDATE categories
SET is_active = FALSE
WHERE id = $1 AND tenant_id = $2 AND is_active = TRUE
RETURNING id
`

type SoftDeleteCategoryParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) SoftDeleteCategory(ctx context.Context, arg SoftDeleteCategoryParams) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, softDeleteCategory, arg.ID, arg.TenantID)
	var id uuid.UUID
	err := row.Scan(&id)
	return id, err
}
