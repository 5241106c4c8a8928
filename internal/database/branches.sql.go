package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createBranch = `-- name: CreateBranch :one
INSERT INTO branches (tenant_id, name, location, has_token_system, max_token_number)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, tenant_id, name, location, is_active, has_token_system, max_token_number, current_token, last_token_reset, created_at, updated_at
`

type CreateBranchParams struct {
	TenantID       uuid.UUID
	Name           string
	Location       pgtype.Text
	HasTokenSystem bool
	MaxTokenNumber int32
}

func (q *Queries) CreateBranch(ctx context.Context, arg CreateBranchParams) (Branch, error) {
	row := q.db.QueryRow(ctx, createBranch,
		arg.TenantID,
		arg.Name,
		arg.Location,
		arg.HasTokenSystem,
		arg.MaxTokenNumber,
	)
	var i Branch
	err := row.Scan(
		&i.ID,
		&i.TenantID,
		&i.Name,
		&i.Location,
		&i.IsActive,
		&i.HasTokenSystem,
		&i.MaxTokenNumber,
		&i.CurrentToken,
		&i.LastTokenReset,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getBranch = `-- name: GetBranch :one
SELECT id, tenant_id, name, location, is_active, has_token_system, max_token_number, current_token, last_token_reset, created_at, updated_at
FROM branches
WHERE id = $1 AND tenant_id = $2
`

type GetBranchParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) GetBranch(ctx context.Context, arg GetBranchParams) (Branch, error) {
	row := q.db.QueryRow(ctx, getBranch, arg.ID, arg.TenantID)
	var i Branch
	err := row.Scan(
		&i.ID,
		&i.TenantID,
		&i.Name,
		&i.Location,
		&i.IsActive,
		&i.HasTokenSystem,
		&i.MaxTokenNumber,
		&i.CurrentToken,
		&i.LastTokenReset,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getBranchForUpdate = `-- name: GetBranchForUpdate :one
SELECT id, tenant_id, name, location, is_active, has_token_system, max_token_number, current_token, last_token_reset, created_at, updated_at
FROM branches
WHERE id = $1 AND tenant_id = $2
FOR UPDATE
`

type GetBranchForUpdateParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

// GetBranchForUpdate locks the branch row for the rest of the transaction,
// serializing token allocation per branch.
func (q *Queries) GetBranchForUpdate(ctx context.Context, arg GetBranchForUpdateParams) (Branch, error) {
	row := q.db.QueryRow(ctx, getBranchForUpdate, arg.ID, arg.TenantID)
	var i Branch
	err := row.Scan(
		&i.ID,
		&i.TenantID,
		&i.Name,
		&i.Location,
		&i.IsActive,
		&i.HasTokenSystem,
		&i.MaxTokenNumber,
		&i.CurrentToken,
		&i.LastTokenReset,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listBranchesByTenant = `-- name: ListBranchesByTenant :many
SELECT id, tenant_id, name, location, is_active, has_token_system, max_token_number, current_token, last_token_reset, created_at, updated_at
FROM branches
WHERE tenant_id = $1 AND is_active = TRUE
ORDER BY created_at
`

func (q *Queries) ListBranchesByTenant(ctx context.Context, tenantID uuid.UUID) ([]Branch, error) {
	rows, err := q.db.Query(ctx, listBranchesByTenant, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Branch
	for rows.Next() {
		var i Branch
		if err := rows.Scan(
			&i.ID,
			&i.TenantID,
			&i.Name,
			&i.Location,
			&i.IsActive,
			&i.HasTokenSystem,
			&i.MaxTokenNumber,
			&i.CurrentToken,
			&i.LastTokenReset,
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

const listActiveBranchIDs = `-- name: ListActiveBranchIDs :many
SELECT id
FROM branches
WHERE tenant_id = $1 AND is_active = TRUE
`

func (q *Queries) ListActiveBranchIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.db.Query(ctx, listActiveBranchIDs, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countBranchesByTenant = `-- name: CountBranchesByTenant :one
SELECT count(*) FROM branches
WHERE tenant_id = $1 AND is_active = TRUE
`

func (q *Queries) CountBranchesByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countBranchesByTenant, tenantID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const updateBranch = `-- name: UpdateBranch :one
UPDATE branches
SET name = $1, location = $2, has_token_system = $3, max_token_number = $4, updated_at = now()
WHERE id = $5 AND tenant_id = $6 AND is_active = TRUE
RETURNING id, tenant_id, name, location, is_active, has_token_system, max_token_number, current_token, last_token_reset, created_at, updated_at
`

type UpdateBranchParams struct {
	Name           string
	Location       pgtype.Text
	HasTokenSystem bool
	MaxTokenNumber int32
	ID             uuid.UUID
	TenantID       uuid.UUID
}

func (q *Queries) UpdateBranch(ctx context.Context, arg UpdateBranchParams) (Branch, error) {
	row := q.db.QueryRow(ctx, updateBranch,
		arg.Name,
		arg.Location,
		arg.HasTokenSystem,
		arg.MaxTokenNumber,
		arg.ID,
		arg.TenantID,
	)
	var i Branch
	err := row.Scan(
		&i.ID,
		&i.TenantID,
		&i.Name,
		&i.Location,
		&i.IsActive,
		&i.HasTokenSystem,
		&i.MaxTokenNumber,
		&i.CurrentToken,
		&i.LastTokenReset,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const softDeleteBranch = `-- name: SoftDeleteBranch :one
UPDATE branches
SET is_active = FALSE, updated_at = now()
WHERE id = $1 AND tenant_id = $2 AND is_active = TRUE
RETURNING id
`

type SoftDeleteBranchParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) SoftDeleteBranch(ctx context.Context, arg SoftDeleteBranchParams) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, softDeleteBranch, arg.ID, arg.TenantID)
	var id uuid.UUID
	err := row.Scan(&id)
	return id, err
}

const updateBranchToken = `-- name: UpdateBranchToken :exec
UPDATE branches
SET current_token = $1, updated_at = now()
WHERE id = $2
`

type UpdateBranchTokenParams struct {
	CurrentToken int32
	ID           uuid.UUID
}

func (q *Queries) UpdateBranchToken(ctx context.Context, arg UpdateBranchTokenParams) error {
	_, err := q.db.Exec(ctx, updateBranchToken, arg.CurrentToken, arg.ID)
	return err
}

const resetBranchToken = `-- name: ResetBranchToken :exec
UPDATE branches
SET current_token = $1, last_token_reset = $2, updated_at = now()
WHERE id = $3
`

type ResetBranchTokenParams struct {
	CurrentToken   int32
	LastTokenReset time.Time
	ID             uuid.UUID
}

func (q *Queries) ResetBranchToken(ctx context.Context, arg ResetBranchTokenParams) error {
	_, err := q.db.Exec(ctx, resetBranchToken, arg.CurrentToken, arg.LastTokenReset, arg.ID)
	return err
}
