package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/brewline-pos/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Errors returned by the entitlement service.
var (
	ErrTenantNotFound       = errors.New("tenant not found")
	ErrBranchLimitReached   = errors.New("branch limit reached for this plan")
	ErrUserLimitReached     = errors.New("user limit reached for this plan")
	ErrMenuItemLimitReached = errors.New("menu item limit reached for this plan")
)

// EntitlementStore defines the DB methods needed to check plan limits.
// Satisfied by *database.Queries.
type EntitlementStore interface {
	GetTenant(ctx context.Context, id uuid.UUID) (database.Tenant, error)
	CountBranchesByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
	CountUsersByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
	CountMenuItemsByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// EntitlementService enforces per-tenant plan limits. Consulted by branch,
// employee, and menu item creation. Order creation is never limited.
type EntitlementService struct {
	store EntitlementStore
}

func NewEntitlementService(store EntitlementStore) *EntitlementService {
	return &EntitlementService{store: store}
}

func (s *EntitlementService) CanAddBranch(ctx context.Context, tenantID uuid.UUID) error {
	tenant, err := s.tenant(ctx, tenantID)
	if err != nil {
		return err
	}
	count, err := s.store.CountBranchesByTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("count branches: %w", err)
	}
	if count >= int64(tenant.MaxBranches) {
		return ErrBranchLimitReached
	}
	return nil
}

func (s *EntitlementService) CanAddUser(ctx context.Context, tenantID uuid.UUID) error {
	tenant, err := s.tenant(ctx, tenantID)
	if err != nil {
		return err
	}
	count, err := s.store.CountUsersByTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count >= int64(tenant.MaxUsers) {
		return ErrUserLimitReached
	}
	return nil
}

func (s *EntitlementService) CanAddMenuItem(ctx context.Context, tenantID uuid.UUID) error {
	tenant, err := s.tenant(ctx, tenantID)
	if err != nil {
		return err
	}
	count, err := s.store.CountMenuItemsByTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("count menu items: %w", err)
	}
	if count >= int64(tenant.MaxMenuItems) {
		return ErrMenuItemLimitReached
	}
	return nil
}

func (s *EntitlementService) tenant(ctx context.Context, tenantID uuid.UUID) (database.Tenant, error) {
	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Tenant{}, ErrTenantNotFound
		}
		return database.Tenant{}, fmt.Errorf("get tenant: %w", err)
	}
	return tenant, nil
}
