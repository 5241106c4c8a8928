package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/brewline-pos/api/internal/database"
	"github.com/brewline-pos/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ReportStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries.
type ReportStore interface {
	GetDailySalesSummary(ctx context.Context, arg database.GetDailySalesSummaryParams) (database.GetDailySalesSummaryRow, error)
}

// Sweeper finalizes expired cancellation requests before the report reads.
// Satisfied by *service.LifecycleService.
type Sweeper interface {
	Sweep(ctx context.Context) error
}

// ReportsHandler handles reporting endpoints.
type ReportsHandler struct {
	store   ReportStore
	sweeper Sweeper
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(store ReportStore, sweeper Sweeper) *ReportsHandler {
	return &ReportsHandler{store: store, sweeper: sweeper}
}

// RegisterRoutes registers report endpoints on the given Chi router.
// Expected to be mounted inside a branch-scoped subrouter: /branches/{bid}/reports
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/daily", h.Daily)
}

type dailySummaryResponse struct {
	Date            string `json:"date"`
	CompletedOrders int64  `json:"completed_orders"`
	CancelledOrders int64  `json:"cancelled_orders"`
	GrossSales      string `json:"gross_sales"`
	DineInOrders    int64  `json:"dine_in_orders"`
	TakeawayOrders  int64  `json:"takeaway_orders"`
}

// Daily handles GET /branches/{bid}/reports/daily?date=YYYY-MM-DD.
// Defaults to today when no date is given.
func (h *ReportsHandler) Daily(w http.ResponseWriter, r *http.Request) {
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

	day := time.Now()
	if s := r.URL.Query().Get("date"); s != "" {
		day, err = time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date format, use YYYY-MM-DD"})
			return
		}
	}
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	if err := h.sweeper.Sweep(r.Context()); err != nil {
		log.Error().Err(err).Msg("sweep expired cancellations")
	}

	row, err := h.store.GetDailySalesSummary(r.Context(), database.GetDailySalesSummaryParams{
		BranchID: branchID,
		TenantID: claims.TenantID,
		DayStart: dayStart,
		DayEnd:   dayEnd,
	})
	if err != nil {
		log.Error().Err(err).Msg("daily sales summary")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dailySummaryResponse{
		Date:            dayStart.Format("2006-01-02"),
		CompletedOrders: row.CompletedOrders,
		CancelledOrders: row.CancelledOrders,
		GrossSales:      numericToString(row.GrossSales),
		DineInOrders:    row.DineInOrders,
		TakeawayOrders:  row.TakeawayOrders,
	})
}
