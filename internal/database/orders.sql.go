package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, tenant_id, branch_id, status, order_type, token_number, customer_name, customer_phone, total_amount, cancellation_requested_at, cancellation_requested_by, cancellation_expires_at, cancellation_previous_status, cancellation_finalized_at, completed_at, completed_by, created_by, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.TenantID,
		&i.BranchID,
		&i.Status,
		&i.OrderType,
		&i.TokenNumber,
		&i.CustomerName,
		&i.CustomerPhone,
		&i.TotalAmount,
		&i.CancellationRequestedAt,
		&i.CancellationRequestedBy,
		&i.CancellationExpiresAt,
		&i.CancellationPreviousStatus,
		&i.CancellationFinalizedAt,
		&i.CompletedAt,
		&i.CompletedBy,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func scanOrders(rows pgx.Rows) ([]Order, error) {
	var items []Order
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (tenant_id, branch_id, order_type, token_number, customer_name, customer_phone, total_amount, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	TenantID      uuid.UUID
	BranchID      uuid.UUID
	OrderType     OrderType
	TokenNumber   pgtype.Int4
	CustomerName  pgtype.Text
	CustomerPhone pgtype.Text
	TotalAmount   pgtype.Numeric
	CreatedBy     uuid.UUID
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.TenantID,
		arg.BranchID,
		arg.OrderType,
		arg.TokenNumber,
		arg.CustomerName,
		arg.CustomerPhone,
		arg.TotalAmount,
		arg.CreatedBy,
	)
	return scanOrder(row)
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (order_id, menu_item_id, source_branch_id, quantity, unit_price, line_total)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, order_id, menu_item_id, source_branch_id, quantity, unit_price, line_total
`

type CreateOrderItemParams struct {
	OrderID        uuid.UUID
	MenuItemID     uuid.UUID
	SourceBranchID uuid.UUID
	Quantity       int32
	UnitPrice      pgtype.Numeric
	LineTotal      pgtype.Numeric
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.MenuItemID,
		arg.SourceBranchID,
		arg.Quantity,
		arg.UnitPrice,
		arg.LineTotal,
	)
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.MenuItemID,
		&i.SourceBranchID,
		&i.Quantity,
		&i.UnitPrice,
		&i.LineTotal,
	)
	return i, err
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1 AND tenant_id = $2
`

type GetOrderParams struct {
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, getOrder, arg.ID, arg.TenantID)
	return scanOrder(row)
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + `
FROM orders
WHERE branch_id = $1
  AND tenant_id = $2
  AND ($3::order_status IS NULL OR status = $3)
  AND ($4::order_type IS NULL OR order_type = $4)
  AND ($5::timestamptz IS NULL OR created_at >= $5)
  AND ($6::timestamptz IS NULL OR created_at < $6)
ORDER BY created_at DESC
LIMIT $7 OFFSET $8
`

type ListOrdersParams struct {
	BranchID  uuid.UUID
	TenantID  uuid.UUID
	Status    NullOrderStatus
	OrderType NullOrderType
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
	Limit     int32
	Offset    int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders,
		arg.BranchID,
		arg.TenantID,
		arg.Status,
		arg.OrderType,
		arg.StartDate,
		arg.EndDate,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

const listActiveOrders = `-- name: ListActiveOrders :many
SELECT ` + orderColumns + `
FROM orders
WHERE branch_id = $1
  AND tenant_id = $2
  AND status IN ('PENDING', 'PREPARING', 'READY', 'CANCELLATION_PENDING')
ORDER BY created_at
`

type ListActiveOrdersParams struct {
	BranchID uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) ListActiveOrders(ctx context.Context, arg ListActiveOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listActiveOrders, arg.BranchID, arg.TenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

const listOrderItemsByOrder = `-- name: ListOrderItemsByOrder :many
SELECT id, order_id, menu_item_id, source_branch_id, quantity, unit_price, line_total
FROM order_items
WHERE order_id = $1
`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.MenuItemID,
			&i.SourceBranchID,
			&i.Quantity,
			&i.UnitPrice,
			&i.LineTotal,
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

const listActiveTokenNumbers = `-- name: ListActiveTokenNumbers :many
SELECT token_number
FROM orders
WHERE branch_id = $1
  AND token_number IS NOT NULL
  AND status IN ('PENDING', 'PREPARING', 'READY', 'CANCELLATION_PENDING')
  AND created_at >= $2
`

type ListActiveTokenNumbersParams struct {
	BranchID     uuid.UUID
	CreatedAfter time.Time
}

func (q *Queries) ListActiveTokenNumbers(ctx context.Context, arg ListActiveTokenNumbersParams) ([]int32, error) {
	rows, err := q.db.Query(ctx, listActiveTokenNumbers, arg.BranchID, arg.CreatedAfter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []int32
	for rows.Next() {
		var n int32
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const transitionOrderStatus = `-- name: TransitionOrderStatus :one
UPDATE orders
SET status = $1,
    cancellation_requested_at = NULL,
    cancellation_requested_by = NULL,
    cancellation_expires_at = NULL,
    cancellation_previous_status = NULL,
    cancellation_finalized_at = NULL,
    updated_at = now()
WHERE id = $2 AND tenant_id = $3 AND status = $4
RETURNING ` + orderColumns

type TransitionOrderStatusParams struct {
	Status     OrderStatus
	ID         uuid.UUID
	TenantID   uuid.UUID
	FromStatus OrderStatus
}

// TransitionOrderStatus moves an order to a non-cancellation status.
// The WHERE clause guards against races: zero rows means the status changed
// between the caller's read and this write. Cancellation fields are always
// cleared on a forward transition.
func (q *Queries) TransitionOrderStatus(ctx context.Context, arg TransitionOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, transitionOrderStatus, arg.Status, arg.ID, arg.TenantID, arg.FromStatus)
	return scanOrder(row)
}

const completeOrder = `-- name: CompleteOrder :one
UPDATE orders
SET status = 'COMPLETED',
    completed_at = now(),
    completed_by = $1,
    cancellation_requested_at = NULL,
    cancellation_requested_by = NULL,
    cancellation_expires_at = NULL,
    cancellation_previous_status = NULL,
    cancellation_finalized_at = NULL,
    updated_at = now()
WHERE id = $2 AND tenant_id = $3 AND status = $4
RETURNING ` + orderColumns

type CompleteOrderParams struct {
	CompletedBy uuid.UUID
	ID          uuid.UUID
	TenantID    uuid.UUID
	FromStatus  OrderStatus
}

func (q *Queries) CompleteOrder(ctx context.Context, arg CompleteOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, completeOrder, arg.CompletedBy, arg.ID, arg.TenantID, arg.FromStatus)
	return scanOrder(row)
}

const requestOrderCancellation = `-- name: RequestOrderCancellation :one
UPDATE orders
SET cancellation_previous_status = status,
    status = 'CANCELLATION_PENDING',
    cancellation_requested_at = now(),
    cancellation_requested_by = $1,
    cancellation_expires_at = $2,
    updated_at = now()
WHERE id = $3 AND tenant_id = $4
  AND status NOT IN ('COMPLETED', 'CANCELLED', 'CANCELLATION_PENDING')
RETURNING ` + orderColumns

type RequestOrderCancellationParams struct {
	RequestedBy uuid.UUID
	ExpiresAt   time.Time
	ID          uuid.UUID
	TenantID    uuid.UUID
}

func (q *Queries) RequestOrderCancellation(ctx context.Context, arg RequestOrderCancellationParams) (Order, error) {
	row := q.db.QueryRow(ctx, requestOrderCancellation, arg.RequestedBy, arg.ExpiresAt, arg.ID, arg.TenantID)
	return scanOrder(row)
}

const undoOrderCancellation = `-- name: UndoOrderCancellation :one
UPDATE orders
SET status = $1,
    cancellation_requested_at = NULL,
    cancellation_requested_by = NULL,
    cancellation_expires_at = NULL,
    cancellation_previous_status = NULL,
    cancellation_finalized_at = NULL,
    updated_at = now()
WHERE id = $2 AND tenant_id = $3
  AND status = 'CANCELLATION_PENDING'
  AND cancellation_expires_at > now()
RETURNING ` + orderColumns

type UndoOrderCancellationParams struct {
	Status   OrderStatus
	ID       uuid.UUID
	TenantID uuid.UUID
}

func (q *Queries) UndoOrderCancellation(ctx context.Context, arg UndoOrderCancellationParams) (Order, error) {
	row := q.db.QueryRow(ctx, undoOrderCancellation, arg.Status, arg.ID, arg.TenantID)
	return scanOrder(row)
}

const finalizeOrderCancellation = `-- name: FinalizeOrderCancellation :one
UPDATE orders
SET status = 'CANCELLED',
    cancellation_finalized_at = now(),
    updated_at = now()
WHERE id = $1 AND status = 'CANCELLATION_PENDING'
RETURNING ` + orderColumns

func (q *Queries) FinalizeOrderCancellation(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, finalizeOrderCancellation, id)
	return scanOrder(row)
}

const finalizeExpiredCancellations = `-- name: FinalizeExpiredCancellations :exec
UPDATE orders
SET status = 'CANCELLED',
    cancellation_finalized_at = now(),
    updated_at = now()
WHERE status = 'CANCELLATION_PENDING'
  AND cancellation_expires_at <= now()
`

func (q *Queries) FinalizeExpiredCancellations(ctx context.Context) error {
	_, err := q.db.Exec(ctx, finalizeExpiredCancellations)
	return err
}
