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
)

// BranchStore defines the database methods needed by branch handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type BranchStore interface {
	CreateBranch(ctx context.Context, arg database.CreateBranchParams) (database.Branch, error)
	GetBranch(ctx context.Context, arg database.GetBranchParams) (database.Branch, error)
	ListBranchesByTenant(ctx context.Context, tenantID uuid.UUID) ([]database.Branch, error)
	UpdateBranch(ctx context.Context, arg database.UpdateBranchParams) (database.Branch, error)
	SoftDeleteBranch(ctx context.Context, arg database.SoftDeleteBranchParams) (uuid.UUID, error)
}

// BranchEntitlements checks plan limits before branch creation.
// Satisfied by *service.EntitlementService.
type BranchEntitlements interface {
	CanAddBranch(ctx context.Context, tenantID uuid.UUID) error
}

// BranchHandler handles branch CRUD endpoints.
type BranchHandler struct {
	store        BranchStore
	entitlements BranchEntitlements
}

// NewBranchHandler creates a new BranchHandler.
func NewBranchHandler(store BranchStore, entitlements BranchEntitlements) *BranchHandler {
	return &BranchHandler{store: store, entitlements: entitlements}
}

// Branch routes are wired directly in the router: the /branches/{bid} node
// carries both the branch resource and the branch-scoped subrouters.

// --- Request / Response types ---

// defaultMaxTokenNumber is applied when the field is omitted, matching the
// schema default. The column CHECK requires >= 1 whether or not the branch
// runs a token system.
const defaultMaxTokenNumber = 99

type branchRequest struct {
	Name           string `json:"name"`
	Location       string `json:"location"`
	HasTokenSystem bool   `json:"has_token_system"`
	MaxTokenNumber int32  `json:"max_token_number"`
}

type branchResponse struct {
	ID             uuid.UUID `json:"id"`
	TenantID       uuid.UUID `json:"tenant_id"`
	Name           string    `json:"name"`
	Location       *string   `json:"location"`
	IsActive       bool      `json:"is_active"`
	HasTokenSystem bool      `json:"has_token_system"`
	MaxTokenNumber int32     `json:"max_token_number"`
	CurrentToken   int32     `json:"current_token"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toBranchResponse(b database.Branch) branchResponse {
	resp := branchResponse{
		ID:             b.ID,
		TenantID:       b.TenantID,
		Name:           b.Name,
		IsActive:       b.IsActive,
		HasTokenSystem: b.HasTokenSystem,
		MaxTokenNumber: b.MaxTokenNumber,
		CurrentToken:   b.CurrentToken,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
	if b.Location.Valid {
		resp.Location = &b.Location.String
	}
	return resp
}

// --- Handlers ---

// Create handles POST /branches.
func (h *BranchHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req branchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if req.MaxTokenNumber == 0 {
		req.MaxTokenNumber = defaultMaxTokenNumber
	}
	if req.MaxTokenNumber < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "max_token_number must be >= 1"})
		return
	}

	if err := h.entitlements.CanAddBranch(r.Context(), claims.TenantID); err != nil {
		if errors.Is(err, service.ErrBranchLimitReached) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		log.Error().Err(err).Msg("check branch entitlement")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	branch, err := h.store.CreateBranch(r.Context(), database.CreateBranchParams{
		TenantID:       claims.TenantID,
		Name:           req.Name,
		Location:       textOrNull(req.Location),
		HasTokenSystem: req.HasTokenSystem,
		MaxTokenNumber: req.MaxTokenNumber,
	})
	if err != nil {
		log.Error().Err(err).Msg("create branch")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toBranchResponse(branch))
}

// List handles GET /branches.
func (h *BranchHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	branches, err := h.store.ListBranchesByTenant(r.Context(), claims.TenantID)
	if err != nil {
		log.Error().Err(err).Msg("list branches")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]branchResponse, len(branches))
	for i, b := range branches {
		resp[i] = toBranchResponse(b)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /branches/{bid}.
func (h *BranchHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	branch, err := h.store.GetBranch(r.Context(), database.GetBranchParams{ID: branchID, TenantID: claims.TenantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "branch not found"})
			return
		}
		log.Error().Err(err).Msg("get branch")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toBranchResponse(branch))
}

// Update handles PUT /branches/{bid}. Token settings are editable here;
// the current counter position is never client-writable.
func (h *BranchHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	var req branchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	existing, err := h.store.GetBranch(r.Context(), database.GetBranchParams{ID: branchID, TenantID: claims.TenantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "branch not found"})
			return
		}
		log.Error().Err(err).Msg("get branch")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if req.MaxTokenNumber == 0 {
		req.MaxTokenNumber = existing.MaxTokenNumber
	}
	if req.MaxTokenNumber < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "max_token_number must be >= 1"})
		return
	}
	// The counter never moves backwards on its own; shrinking the pool below
	// the current position must wait until the counter wraps or resets.
	if req.MaxTokenNumber < existing.CurrentToken {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "max_token_number cannot be below the current token position"})
		return
	}

	branch, err := h.store.UpdateBranch(r.Context(), database.UpdateBranchParams{
		Name:           req.Name,
		Location:       textOrNull(req.Location),
		HasTokenSystem: req.HasTokenSystem,
		MaxTokenNumber: req.MaxTokenNumber,
		ID:             branchID,
		TenantID:       claims.TenantID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "branch not found"})
			return
		}
		log.Error().Err(err).Msg("update branch")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toBranchResponse(branch))
}

// Delete handles DELETE /branches/{bid}.
func (h *BranchHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	if _, err := h.store.SoftDeleteBranch(r.Context(), database.SoftDeleteBranchParams{ID: branchID, TenantID: claims.TenantID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "branch not found"})
			return
		}
		log.Error().Err(err).Msg("delete branch")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
