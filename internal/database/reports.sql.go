package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getDailySalesSummary = `-- name: GetDailySalesSummary :one
SELECT
    count(*) FILTER (WHERE status = 'COMPLETED')                          AS completed_orders,
    count(*) FILTER (WHERE status = 'CANCELLED')                          AS cancelled_orders,
    COALESCE(sum(total_amount) FILTER (WHERE status = 'COMPLETED'), 0)    AS gross_sales,
    count(*) FILTER (WHERE order_type = 'DINE_IN')                        AS dine_in_orders,
    count(*) FILTER (WHERE order_type = 'TAKEAWAY')                       AS takeaway_orders
FROM orders
WHERE branch_id = $1
  AND tenant_id = $2
  AND created_at >= $3
  AND created_at < $4
`

type GetDailySalesSummaryParams struct {
	BranchID uuid.UUID
	TenantID uuid.UUID
	DayStart time.Time
	DayEnd   time.Time
}

type GetDailySalesSummaryRow struct {
	CompletedOrders int64
	CancelledOrders int64
	GrossSales      pgtype.Numeric
	DineInOrders    int64
	TakeawayOrders  int64
}

func (q *Queries) GetDailySalesSummary(ctx context.Context, arg GetDailySalesSummaryParams) (GetDailySalesSummaryRow, error) {
	row := q.db.QueryRow(ctx, getDailySalesSummary, arg.BranchID, arg.TenantID, arg.DayStart, arg.DayEnd)
	var i GetDailySalesSummaryRow
	err := row.Scan(
		&i.CompletedOrders,
		&i.CancelledOrders,
		&i.GrossSales,
		&i.DineInOrders,
		&i.TakeawayOrders,
	)
	return i, err
}
