package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brewline-pos/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CancellationGracePeriod is the window after a cancellation request during
// which the order can still be restored to its prior status.
const CancellationGracePeriod = 60 * time.Second

// Errors returned by the lifecycle service.
var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrOrderTerminal         = errors.New("completed or cancelled orders cannot be updated")
	ErrAlreadyCancelled      = errors.New("order is already cancelled")
	ErrCancellationRequested = errors.New("cancellation already requested for this order")
	ErrNoPendingCancellation = errors.New("order has no pending cancellation")
	ErrCancellationFinalized = errors.New("cancellation window elapsed, order is already cancelled")
	ErrInvalidStatus         = errors.New("invalid status")
	ErrStatusConflict        = errors.New("order status changed, please retry")
)

// LifecycleStore defines the DB methods needed for status transitions.
// Satisfied by *database.Queries.
type LifecycleStore interface {
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	TransitionOrderStatus(ctx context.Context, arg database.TransitionOrderStatusParams) (database.Order, error)
	CompleteOrder(ctx context.Context, arg database.CompleteOrderParams) (database.Order, error)
	RequestOrderCancellation(ctx context.Context, arg database.RequestOrderCancellationParams) (database.Order, error)
	UndoOrderCancellation(ctx context.Context, arg database.UndoOrderCancellationParams) (database.Order, error)
	FinalizeOrderCancellation(ctx context.Context, id uuid.UUID) (database.Order, error)
	FinalizeExpiredCancellations(ctx context.Context) error
}

// Scope narrows lifecycle operations to the caller's reach. TenantID is
// mandatory; BranchID is uuid.Nil for tenant-level callers and pins
// branch-scoped staff to their own branch.
type Scope struct {
	TenantID uuid.UUID
	BranchID uuid.UUID
}

func (sc Scope) covers(o database.Order) bool {
	return sc.BranchID == uuid.Nil || sc.BranchID == o.BranchID
}

// LifecycleService owns order status transitions, including the
// cancellation-request / grace-period / finalize / undo flow.
type LifecycleService struct {
	store LifecycleStore
}

func NewLifecycleService(store LifecycleStore) *LifecycleService {
	return &LifecycleService{store: store}
}

// forwardTransitions is the happy path. Cancellation is not here on purpose:
// a CANCELLED target always goes through RequestCancellation.
var forwardTransitions = map[database.OrderStatus]database.OrderStatus{
	database.OrderStatusPENDING:   database.OrderStatusPREPARING,
	database.OrderStatusPREPARING: database.OrderStatusREADY,
	database.OrderStatusREADY:     database.OrderStatusCOMPLETED,
}

func isTerminal(s database.OrderStatus) bool {
	return s == database.OrderStatusCOMPLETED || s == database.OrderStatusCANCELLED
}

// UpdateStatus applies a generic status-change request. A CANCELLED target
// is routed through the cancellation grace-period flow; same-state requests
// on terminal orders are rejected like any other terminal mutation.
func (s *LifecycleService) UpdateStatus(ctx context.Context, scope Scope, orderID, actorID uuid.UUID, target database.OrderStatus) (database.Order, error) {
	switch target {
	case database.OrderStatusPENDING, database.OrderStatusPREPARING,
		database.OrderStatusREADY, database.OrderStatusCOMPLETED:
	case database.OrderStatusCANCELLED:
		return s.RequestCancellation(ctx, scope, orderID, actorID)
	case database.OrderStatusCANCELLATIONPENDING:
		return database.Order{}, ErrInvalidStatus
	default:
		return database.Order{}, ErrInvalidStatus
	}

	order, err := s.getScoped(ctx, scope, orderID)
	if err != nil {
		return database.Order{}, err
	}
	if isTerminal(order.Status) {
		return database.Order{}, ErrOrderTerminal
	}
	if next, ok := forwardTransitions[order.Status]; !ok || next != target {
		return database.Order{}, fmt.Errorf("%w: cannot move from %s to %s", ErrInvalidStatus, order.Status, target)
	}

	var updated database.Order
	if target == database.OrderStatusCOMPLETED {
		updated, err = s.store.CompleteOrder(ctx, database.CompleteOrderParams{
			CompletedBy: actorID,
			ID:          orderID,
			TenantID:    scope.TenantID,
			FromStatus:  order.Status,
		})
	} else {
		updated, err = s.store.TransitionOrderStatus(ctx, database.TransitionOrderStatusParams{
			Status:     target,
			ID:         orderID,
			TenantID:   scope.TenantID,
			FromStatus: order.Status,
		})
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrStatusConflict
		}
		return database.Order{}, fmt.Errorf("transition order: %w", err)
	}
	return updated, nil
}

// RequestCancellation puts an order into the cancellation grace period.
// The current status is snapshotted so an undo can restore it; after the
// grace period the order finalizes to CANCELLED.
func (s *LifecycleService) RequestCancellation(ctx context.Context, scope Scope, orderID, actorID uuid.UUID) (database.Order, error) {
	order, err := s.getScoped(ctx, scope, orderID)
	if err != nil {
		return database.Order{}, err
	}
	switch order.Status {
	case database.OrderStatusCANCELLED:
		return database.Order{}, ErrAlreadyCancelled
	case database.OrderStatusCOMPLETED:
		return database.Order{}, ErrOrderTerminal
	case database.OrderStatusCANCELLATIONPENDING:
		return database.Order{}, ErrCancellationRequested
	}

	updated, err := s.store.RequestOrderCancellation(ctx, database.RequestOrderCancellationParams{
		RequestedBy: actorID,
		ExpiresAt:   time.Now().Add(CancellationGracePeriod),
		ID:          orderID,
		TenantID:    scope.TenantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrStatusConflict
		}
		return database.Order{}, fmt.Errorf("request cancellation: %w", err)
	}
	return updated, nil
}

// UndoCancellation restores an order from CANCELLATION_PENDING to the status
// it held before the request. If the grace period has already elapsed the
// undo attempt itself finalizes the order to CANCELLED and fails with
// ErrCancellationFinalized rather than silently succeeding.
func (s *LifecycleService) UndoCancellation(ctx context.Context, scope Scope, orderID uuid.UUID) (database.Order, error) {
	order, err := s.getScoped(ctx, scope, orderID)
	if err != nil {
		return database.Order{}, err
	}
	if order.Status != database.OrderStatusCANCELLATIONPENDING {
		return database.Order{}, ErrNoPendingCancellation
	}

	if order.CancellationExpiresAt.Valid && !order.CancellationExpiresAt.Time.After(time.Now()) {
		if _, err := s.store.FinalizeOrderCancellation(ctx, orderID); err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, fmt.Errorf("finalize cancellation: %w", err)
		}
		return database.Order{}, ErrCancellationFinalized
	}

	previous := database.OrderStatusPENDING
	if order.CancellationPreviousStatus.Valid {
		previous = order.CancellationPreviousStatus.OrderStatus
	}

	updated, err := s.store.UndoOrderCancellation(ctx, database.UndoOrderCancellationParams{
		Status:   previous,
		ID:       orderID,
		TenantID: scope.TenantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The guarded update lost a race: the window expired (or the order
			// moved) between our read and the write. Finalize and report it.
			if _, ferr := s.store.FinalizeOrderCancellation(ctx, orderID); ferr == nil {
				return database.Order{}, ErrCancellationFinalized
			}
			return database.Order{}, ErrStatusConflict
		}
		return database.Order{}, fmt.Errorf("undo cancellation: %w", err)
	}
	return updated, nil
}

// Sweep finalizes every pending cancellation whose grace period has elapsed.
// Idempotent bulk update; read handlers call it first so stale
// CANCELLATION_PENDING orders never leak into active views. There is no
// background timer; an order nobody reads stays pending until the next read.
func (s *LifecycleService) Sweep(ctx context.Context) error {
	return s.store.FinalizeExpiredCancellations(ctx)
}

func (s *LifecycleService) getScoped(ctx context.Context, scope Scope, orderID uuid.UUID) (database.Order, error) {
	order, err := s.store.GetOrder(ctx, database.GetOrderParams{ID: orderID, TenantID: scope.TenantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, ErrOrderNotFound
		}
		return database.Order{}, fmt.Errorf("get order: %w", err)
	}
	// Out-of-scope reads report not-found so nothing leaks across branches.
	if !scope.covers(order) {
		return database.Order{}, ErrOrderNotFound
	}
	return order, nil
}
