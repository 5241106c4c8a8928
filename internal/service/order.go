package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brewline-pos/api/internal/database"
	"github.com/brewline-pos/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Errors returned by the order service.
var (
	ErrEmptyItems        = errors.New("items are required")
	ErrInvalidOrderType  = errors.New("invalid order_type")
	ErrInvalidQuantity   = errors.New("quantity must be >= 1")
	ErrInvalidMenuItemID = errors.New("invalid menu_item_id")
	ErrBranchNotFound    = errors.New("branch not found")
	ErrBranchInactive    = errors.New("branch is not active")
	ErrItemNotSellable   = errors.New("menu item is unavailable or not sellable at this branch")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to create orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	TokenStore
	GetBranchForUpdate(ctx context.Context, arg database.GetBranchForUpdateParams) (database.Branch, error)
	GetMenuItemsByIDs(ctx context.Context, arg database.GetMenuItemsByIDsParams) ([]database.MenuItem, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx), so the
// service can bind store instances to transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	TenantID      uuid.UUID
	BranchID      uuid.UUID
	CreatedBy     uuid.UUID
	OrderType     string
	CustomerName  string
	CustomerPhone string
	Items         []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single line in the order.
type CreateOrderItemRequest struct {
	MenuItemID string
	Quantity   int32
}

// CreateOrderResult is the created order with its lines.
type CreateOrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// OrderService handles order creation.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
}

func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// orderLine is a deduplicated requested line with its resolved menu item.
type orderLine struct {
	menuItemID uuid.UUID
	quantity   int32
	item       database.MenuItem
}

// CreateOrder validates the branch and item selection, snapshots prices,
// allocates a dine-in token, and persists the order with its lines in a
// single transaction. All-or-nothing: any failure leaves no rows behind.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if req.OrderType != enum.OrderTypeDineIn && req.OrderType != enum.OrderTypeTakeaway {
		return nil, ErrInvalidOrderType
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	// Merge duplicate item ids up front so validation is set-based.
	var lines []*orderLine
	byID := make(map[uuid.UUID]*orderLine, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity < 1 {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
		id, err := uuid.Parse(item.MenuItemID)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidMenuItemID)
		}
		if line, ok := byID[id]; ok {
			line.quantity += item.Quantity
			continue
		}
		line := &orderLine{menuItemID: id, quantity: item.Quantity}
		byID[id] = line
		lines = append(lines, line)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// The branch row is locked for the rest of the transaction, serializing
	// token allocation per branch.
	branch, err := store.GetBranchForUpdate(ctx, database.GetBranchForUpdateParams{ID: req.BranchID, TenantID: req.TenantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBranchNotFound
		}
		return nil, fmt.Errorf("get branch: %w", err)
	}
	if !branch.IsActive {
		return nil, ErrBranchInactive
	}

	// Every distinct requested id must resolve to an available item sellable
	// at this branch, else the whole order is rejected. No partial orders.
	ids := make([]uuid.UUID, len(lines))
	for i, line := range lines {
		ids[i] = line.menuItemID
	}
	found, err := store.GetMenuItemsByIDs(ctx, database.GetMenuItemsByIDsParams{
		TenantID: req.TenantID,
		Ids:      ids,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve menu items: %w", err)
	}
	if len(found) != len(lines) {
		return nil, ErrItemNotSellable
	}
	for _, item := range found {
		if !item.IsAvailable || !IsSellableAt(item, req.BranchID) {
			return nil, ErrItemNotSellable
		}
		byID[item.ID].item = item
	}

	// Price snapshot: the order keeps the menu price as of now, immune to
	// later menu edits.
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(numericToDecimal(line.item.Price).Mul(decimal.NewFromInt32(line.quantity)))
	}

	// Takeaway orders never carry a token; dine-in gets one only when the
	// branch runs a token system.
	tokenNumber := pgtype.Int4{}
	if req.OrderType == enum.OrderTypeDineIn {
		tokenNumber, err = AllocateToken(ctx, store, branch, time.Now())
		if err != nil {
			return nil, err
		}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		TenantID:      req.TenantID,
		BranchID:      req.BranchID,
		OrderType:     database.OrderType(req.OrderType),
		TokenNumber:   tokenNumber,
		CustomerName:  textOrNull(req.CustomerName),
		CustomerPhone: textOrNull(req.CustomerPhone),
		TotalAmount:   decimalToNumeric(total),
		CreatedBy:     req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	items := make([]database.OrderItem, 0, len(lines))
	for _, line := range lines {
		unitPrice := numericToDecimal(line.item.Price)
		lineTotal := unitPrice.Mul(decimal.NewFromInt32(line.quantity))
		row, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:        order.ID,
			MenuItemID:     line.menuItemID,
			SourceBranchID: line.item.BranchID,
			Quantity:       line.quantity,
			UnitPrice:      decimalToNumeric(unitPrice),
			LineTotal:      decimalToNumeric(lineTotal),
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		items = append(items, row)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{Order: order, Items: items}, nil
}

// --- Helpers ---

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
