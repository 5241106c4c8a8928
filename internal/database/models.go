package database

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type OrderStatus string

const (
	OrderStatusPENDING             OrderStatus = "PENDING"
	OrderStatusPREPARING           OrderStatus = "PREPARING"
	OrderStatusREADY               OrderStatus = "READY"
	OrderStatusCOMPLETED           OrderStatus = "COMPLETED"
	OrderStatusCANCELLATIONPENDING OrderStatus = "CANCELLATION_PENDING"
	OrderStatusCANCELLED           OrderStatus = "CANCELLED"
)

func (e *OrderStatus) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = OrderStatus(s)
	case string:
		*e = OrderStatus(s)
	default:
		return fmt.Errorf("unsupported scan type for OrderStatus: %T", src)
	}
	return nil
}

type NullOrderStatus struct {
	OrderStatus OrderStatus
	Valid       bool
}

func (ns *NullOrderStatus) Scan(value interface{}) error {
	if value == nil {
		ns.OrderStatus, ns.Valid = "", false
		return nil
	}
	ns.Valid = true
	return ns.OrderStatus.Scan(value)
}

func (ns NullOrderStatus) Value() (driver.Value, error) {
	if !ns.Valid {
		return nil, nil
	}
	return string(ns.OrderStatus), nil
}

type OrderType string

const (
	OrderTypeDINEIN   OrderType = "DINE_IN"
	OrderTypeTAKEAWAY OrderType = "TAKEAWAY"
)

func (e *OrderType) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = OrderType(s)
	case string:
		*e = OrderType(s)
	default:
		return fmt.Errorf("unsupported scan type for OrderType: %T", src)
	}
	return nil
}

type NullOrderType struct {
	OrderType OrderType
	Valid     bool
}

func (ns *NullOrderType) Scan(value interface{}) error {
	if value == nil {
		ns.OrderType, ns.Valid = "", false
		return nil
	}
	ns.Valid = true
	return ns.OrderType.Scan(value)
}

func (ns NullOrderType) Value() (driver.Value, error) {
	if !ns.Valid {
		return nil, nil
	}
	return string(ns.OrderType), nil
}

type UserRole string

const (
	UserRoleOWNER   UserRole = "OWNER"
	UserRoleMANAGER UserRole = "MANAGER"
	UserRoleSTAFF   UserRole = "STAFF"
)

func (e *UserRole) Scan(src interface{}) error {
	switch s := src.(type) {
	case []byte:
		*e = UserRole(s)
	case string:
		*e = UserRole(s)
	default:
		return fmt.Errorf("unsupported scan type for UserRole: %T", src)
	}
	return nil
}

type Tenant struct {
	ID           uuid.UUID
	Name         string
	MaxBranches  int32
	MaxUsers     int32
	MaxMenuItems int32
	IsActive     bool
	CreatedAt    time.Time
}

type Branch struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	Name           string
	Location       pgtype.Text
	IsActive       bool
	HasTokenSystem bool
	MaxTokenNumber int32
	CurrentToken   int32
	LastTokenReset pgtype.Timestamptz
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type User struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	BranchID     pgtype.UUID
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	IsActive     bool
	CreatedAt    time.Time
}

type Category struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	SortOrder int32
	IsActive  bool
	CreatedAt time.Time
}

type MenuItem struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	BranchID        uuid.UUID
	CategoryID      pgtype.UUID
	Name            string
	Price           pgtype.Numeric
	IsAvailable     bool
	IsTransferable  bool
	SharedBranchIds []uuid.UUID
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Order struct {
	ID                         uuid.UUID
	TenantID                   uuid.UUID
	BranchID                   uuid.UUID
	Status                     OrderStatus
	OrderType                  OrderType
	TokenNumber                pgtype.Int4
	CustomerName               pgtype.Text
	CustomerPhone              pgtype.Text
	TotalAmount                pgtype.Numeric
	CancellationRequestedAt    pgtype.Timestamptz
	CancellationRequestedBy    pgtype.UUID
	CancellationExpiresAt      pgtype.Timestamptz
	CancellationPreviousStatus NullOrderStatus
	CancellationFinalizedAt    pgtype.Timestamptz
	CompletedAt                pgtype.Timestamptz
	CompletedBy                pgtype.UUID
	CreatedBy                  uuid.UUID
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

type OrderItem struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	MenuItemID     uuid.UUID
	SourceBranchID uuid.UUID
	Quantity       int32
	UnitPrice      pgtype.Numeric
	LineTotal      pgtype.Numeric
}
