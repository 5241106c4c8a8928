package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/brewline-pos/api/internal/database"
	"github.com/brewline-pos/api/internal/middleware"
	"github.com/brewline-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// MenuItemStore defines the database methods needed by menu item handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type MenuItemStore interface {
	CreateMenuItem(ctx context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error)
	GetMenuItem(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error)
	ListMenuItemsByBranch(ctx context.Context, arg database.ListMenuItemsByBranchParams) ([]database.MenuItem, error)
	ListSellableMenuItems(ctx context.Context, arg database.ListSellableMenuItemsParams) ([]database.MenuItem, error)
	UpdateMenuItem(ctx context.Context, arg database.UpdateMenuItemParams) (database.MenuItem, error)
	SoftDeleteMenuItem(ctx context.Context, arg database.SoftDeleteMenuItemParams) (uuid.UUID, error)
}

// MenuSharer updates an item's cross-branch sharing configuration.
// Satisfied by *service.MenuService.
type MenuSharer interface {
	UpdateSharing(ctx context.Context, tenantID, itemID uuid.UUID, isTransferable bool, grants []uuid.UUID) (database.MenuItem, error)
}

// MenuEntitlements checks plan limits before menu item creation.
// Satisfied by *service.EntitlementService.
type MenuEntitlements interface {
	CanAddMenuItem(ctx context.Context, tenantID uuid.UUID) error
}

// MenuItemHandler handles menu item endpoints.
type MenuItemHandler struct {
	store        MenuItemStore
	sharer       MenuSharer
	entitlements MenuEntitlements
}

// NewMenuItemHandler creates a new MenuItemHandler.
func NewMenuItemHandler(store MenuItemStore, sharer MenuSharer, entitlements MenuEntitlements) *MenuItemHandler {
	return &MenuItemHandler{store: store, sharer: sharer, entitlements: entitlements}
}

// Menu item routes are wired directly in the router so that reads stay open
// to all branch roles while mutations require OWNER or MANAGER.

// --- Request / Response types ---

type menuItemRequest struct {
	CategoryID  string `json:"category_id"`
	Name        string `json:"name"`
	Price       string `json:"price"`
	IsAvailable bool   `json:"is_available"`
}

type sharingRequest struct {
	IsTransferable  bool     `json:"is_transferable"`
	SharedBranchIDs []string `json:"shared_branch_ids"`
}

type menuItemResponse struct {
	ID              uuid.UUID   `json:"id"`
	TenantID        uuid.UUID   `json:"tenant_id"`
	BranchID        uuid.UUID   `json:"branch_id"`
	CategoryID      *string     `json:"category_id"`
	Name            string      `json:"name"`
	Price           string      `json:"price"`
	IsAvailable     bool        `json:"is_available"`
	IsTransferable  bool        `json:"is_transferable"`
	SharedBranchIDs []uuid.UUID `json:"shared_branch_ids"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

func toMenuItemResponse(m database.MenuItem) menuItemResponse {
	resp := menuItemResponse{
		ID:              m.ID,
		TenantID:        m.TenantID,
		BranchID:        m.BranchID,
		Name:            m.Name,
		Price:           numericToString(m.Price),
		IsAvailable:     m.IsAvailable,
		IsTransferable:  m.IsTransferable,
		SharedBranchIDs: m.SharedBranchIds,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if resp.SharedBranchIDs == nil {
		resp.SharedBranchIDs = []uuid.UUID{}
	}
	if m.CategoryID.Valid {
		s := uuid.UUID(m.CategoryID.Bytes).String()
		resp.CategoryID = &s
	}
	return resp
}

func parsePrice(s string) (pgtype.Numeric, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return pgtype.Numeric{}, false
	}
	var n pgtype.Numeric
	if err := n.Scan(d.StringFixed(2)); err != nil {
		return pgtype.Numeric{}, false
	}
	return n, true
}

func parseCategoryID(s string) (pgtype.UUID, bool) {
	if s == "" {
		return pgtype.UUID{}, true
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}, false
	}
	return pgtype.UUID{Bytes: id, Valid: true}, true
}

// --- Handlers ---

// List handles GET /branches/{bid}/menu-items. Returns only items owned by
// the branch, for menu management screens.
func (h *MenuItemHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	items, err := h.store.ListMenuItemsByBranch(r.Context(), database.ListMenuItemsByBranchParams{
		BranchID: branchID,
		TenantID: claims.TenantID,
	})
	if err != nil {
		log.Error().Err(err).Msg("list menu items")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]menuItemResponse, len(items))
	for i, m := range items {
		resp[i] = toMenuItemResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListSellable handles GET /branches/{bid}/menu-items/sellable. Returns
// everything the branch may sell: its own items plus borrowed ones.
func (h *MenuItemHandler) ListSellable(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	items, err := h.store.ListSellableMenuItems(r.Context(), database.ListSellableMenuItemsParams{
		BranchID: branchID,
		TenantID: claims.TenantID,
	})
	if err != nil {
		log.Error().Err(err).Msg("list sellable menu items")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]menuItemResponse, len(items))
	for i, m := range items {
		resp[i] = toMenuItemResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /branches/{bid}/menu-items.
func (h *MenuItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	var req menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	price, ok := parsePrice(req.Price)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "price must be a non-negative decimal"})
		return
	}
	categoryID, ok := parseCategoryID(req.CategoryID)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category_id"})
		return
	}

	if err := h.entitlements.CanAddMenuItem(r.Context(), claims.TenantID); err != nil {
		if errors.Is(err, service.ErrMenuItemLimitReached) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		log.Error().Err(err).Msg("check menu item entitlement")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	item, err := h.store.CreateMenuItem(r.Context(), database.CreateMenuItemParams{
		TenantID:    claims.TenantID,
		BranchID:    branchID,
		CategoryID:  categoryID,
		Name:        req.Name,
		Price:       price,
		IsAvailable: req.IsAvailable,
	})
	if err != nil {
		log.Error().Err(err).Msg("create menu item")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toMenuItemResponse(item))
}

// Update handles PUT /branches/{bid}/menu-items/{id}. Price changes here do
// not touch past orders; those keep the price captured at order time.
func (h *MenuItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	var req menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	price, ok := parsePrice(req.Price)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "price must be a non-negative decimal"})
		return
	}
	categoryID, ok := parseCategoryID(req.CategoryID)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category_id"})
		return
	}

	item, err := h.store.UpdateMenuItem(r.Context(), database.UpdateMenuItemParams{
		CategoryID:  categoryID,
		Name:        req.Name,
		Price:       price,
		IsAvailable: req.IsAvailable,
		ID:          itemID,
		TenantID:    claims.TenantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Error().Err(err).Msg("update menu item")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toMenuItemResponse(item))
}

// UpdateSharing handles PUT /branches/{bid}/menu-items/{id}/sharing.
func (h *MenuItemHandler) UpdateSharing(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	var req sharingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	grants := make([]uuid.UUID, 0, len(req.SharedBranchIDs))
	for _, s := range req.SharedBranchIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID in shared_branch_ids"})
			return
		}
		grants = append(grants, id)
	}

	item, err := h.sharer.UpdateSharing(r.Context(), claims.TenantID, itemID, req.IsTransferable, grants)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMenuItemNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
		case errors.Is(err, service.ErrGrantUnknownBranch), errors.Is(err, service.ErrGrantOwnBranch):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			log.Error().Err(err).Msg("update menu item sharing")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, toMenuItemResponse(item))
}

// Delete handles DELETE /branches/{bid}/menu-items/{id}.
func (h *MenuItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	if _, err := h.store.SoftDeleteMenuItem(r.Context(), database.SoftDeleteMenuItemParams{ID: itemID, TenantID: claims.TenantID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Error().Err(err).Msg("delete menu item")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
