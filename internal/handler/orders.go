package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/brewline-pos/api/internal/database"
	"github.com/brewline-pos/api/internal/middleware"
	"github.com/brewline-pos/api/internal/service"
	"github.com/brewline-pos/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
}

// OrderLifecycle drives status transitions and the cancellation flow.
// Satisfied by *service.LifecycleService.
type OrderLifecycle interface {
	UpdateStatus(ctx context.Context, scope service.Scope, orderID, actorID uuid.UUID, target database.OrderStatus) (database.Order, error)
	RequestCancellation(ctx context.Context, scope service.Scope, orderID, actorID uuid.UUID) (database.Order, error)
	UndoCancellation(ctx context.Context, scope service.Scope, orderID uuid.UUID) (database.Order, error)
	Sweep(ctx context.Context) error
}

// OrderStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListActiveOrders(ctx context.Context, arg database.ListActiveOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
}

// Broadcaster pushes order events to connected kitchen/counter displays.
// Satisfied by *ws.Hub; nil-safe via the handler's broadcast helper.
type Broadcaster interface {
	BroadcastToBranch(branchID uuid.UUID, event ws.Event)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc       OrderServicer
	lifecycle OrderLifecycle
	store     OrderStore
	hub       Broadcaster
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, lifecycle OrderLifecycle, store OrderStore, hub Broadcaster) *OrderHandler {
	return &OrderHandler{svc: svc, lifecycle: lifecycle, store: store, hub: hub}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside a branch-scoped subrouter: /branches/{bid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/active", h.ListActive)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Delete("/{id}", h.Cancel)
	r.Post("/{id}/cancellation/undo", h.UndoCancellation)
}

// --- Request / Response types ---

type createOrderRequest struct {
	OrderType     string                   `json:"order_type"`
	CustomerName  string                   `json:"customer_name"`
	CustomerPhone string                   `json:"customer_phone"`
	Items         []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int32  `json:"quantity"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type orderResponse struct {
	ID                    uuid.UUID           `json:"id"`
	BranchID              uuid.UUID           `json:"branch_id"`
	Status                string              `json:"status"`
	OrderType             string              `json:"order_type"`
	TokenNumber           *int32              `json:"token_number"`
	CustomerName          *string             `json:"customer_name"`
	CustomerPhone         *string             `json:"customer_phone"`
	TotalAmount           string              `json:"total_amount"`
	CancellationExpiresAt *time.Time          `json:"cancellation_expires_at,omitempty"`
	CompletedAt           *time.Time          `json:"completed_at,omitempty"`
	CreatedBy             uuid.UUID           `json:"created_by"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
	Items                 []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID             uuid.UUID `json:"id"`
	MenuItemID     uuid.UUID `json:"menu_item_id"`
	SourceBranchID uuid.UUID `json:"source_branch_id"`
	Quantity       int32     `json:"quantity"`
	UnitPrice      string    `json:"unit_price"`
	LineTotal      string    `json:"line_total"`
}

// orderListResponse wraps a list of orders with pagination metadata.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

func dbOrderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:          o.ID,
		BranchID:    o.BranchID,
		Status:      string(o.Status),
		OrderType:   string(o.OrderType),
		TotalAmount: numericToString(o.TotalAmount),
		CreatedBy:   o.CreatedBy,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
	if o.TokenNumber.Valid {
		n := o.TokenNumber.Int32
		resp.TokenNumber = &n
	}
	if o.CustomerName.Valid {
		resp.CustomerName = &o.CustomerName.String
	}
	if o.CustomerPhone.Valid {
		resp.CustomerPhone = &o.CustomerPhone.String
	}
	if o.CancellationExpiresAt.Valid && o.Status == database.OrderStatusCANCELLATIONPENDING {
		resp.CancellationExpiresAt = &o.CancellationExpiresAt.Time
	}
	if o.CompletedAt.Valid {
		resp.CompletedAt = &o.CompletedAt.Time
	}
	return resp
}

func dbOrderItemToResponse(i database.OrderItem) orderItemResponse {
	return orderItemResponse{
		ID:             i.ID,
		MenuItemID:     i.MenuItemID,
		SourceBranchID: i.SourceBranchID,
		Quantity:       i.Quantity,
		UnitPrice:      numericToString(i.UnitPrice),
		LineTotal:      numericToString(i.LineTotal),
	}
}

// --- Handlers ---

// Create handles POST /branches/{bid}/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.OrderType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order_type is required"})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}
	for i, item := range req.Items {
		if item.MenuItemID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": formatItemError(i, "menu_item_id is required")})
			return
		}
		if item.Quantity <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": formatItemError(i, "quantity must be > 0")})
			return
		}
	}

	svcItems := make([]service.CreateOrderItemRequest, len(req.Items))
	for i, item := range req.Items {
		svcItems[i] = service.CreateOrderItemRequest{
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
		}
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		TenantID:      claims.TenantID,
		BranchID:      branchID,
		CreatedBy:     claims.UserID,
		OrderType:     req.OrderType,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Items:         svcItems,
	})
	if err != nil {
		switch {
		case isOrderValidationError(err):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrBranchNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "branch not found"})
		case errors.Is(err, service.ErrBranchInactive):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrItemNotSellable):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrNoTokensAvailable):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Error().Err(err).Msg("create order")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	resp := dbOrderToResponse(result.Order)
	resp.Items = make([]orderItemResponse, len(result.Items))
	for i, item := range result.Items {
		resp.Items[i] = dbOrderItemToResponse(item)
	}

	h.broadcast(branchID, "order.created", resp)
	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /branches/{bid}/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	h.sweep(r.Context())

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	params := database.ListOrdersParams{
		BranchID: branchID,
		TenantID: claims.TenantID,
		Limit:    int32(limit),
		Offset:   int32(offset),
	}

	if s := r.URL.Query().Get("status"); s != "" {
		params.Status = database.NullOrderStatus{OrderStatus: database.OrderStatus(s), Valid: true}
	}
	if s := r.URL.Query().Get("type"); s != "" {
		params.OrderType = database.NullOrderType{OrderType: database.OrderType(s), Valid: true}
	}
	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date format, use YYYY-MM-DD"})
			return
		}
		params.StartDate = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date format, use YYYY-MM-DD"})
			return
		}
		params.EndDate = pgtype.Timestamptz{Time: t, Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Error().Err(err).Msg("list orders")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}

	writeJSON(w, http.StatusOK, orderListResponse{Orders: resp, Limit: limit, Offset: offset})
}

// ListActive handles GET /branches/{bid}/orders/active. The kitchen display
// polls this endpoint; it returns only orders still in flight.
func (h *OrderHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	h.sweep(r.Context())

	orders, err := h.store.ListActiveOrders(r.Context(), database.ListActiveOrdersParams{
		BranchID: branchID,
		TenantID: claims.TenantID,
	})
	if err != nil {
		log.Error().Err(err).Msg("list active orders")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /branches/{bid}/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	h.sweep(r.Context())

	order, err := h.store.GetOrder(r.Context(), database.GetOrderParams{ID: orderID, TenantID: claims.TenantID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Error().Err(err).Msg("get order")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if order.BranchID != branchID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), orderID)
	if err != nil {
		log.Error().Err(err).Msg("list order items")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := dbOrderToResponse(order)
	resp.Items = make([]orderItemResponse, len(items))
	for i, item := range items {
		resp.Items[i] = dbOrderItemToResponse(item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateStatus handles PATCH /branches/{bid}/orders/{id}/status. A CANCELLED
// target is redirected into the cancellation grace-period flow by the service.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	target := database.OrderStatus(req.Status)
	if !isValidOrderStatus(target) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	scope := service.Scope{TenantID: claims.TenantID, BranchID: branchID}
	updated, err := h.lifecycle.UpdateStatus(r.Context(), scope, orderID, claims.UserID, target)
	if err != nil {
		h.writeLifecycleError(w, err, "update order status")
		return
	}

	resp := dbOrderToResponse(updated)
	eventType := "order.status_changed"
	if updated.Status == database.OrderStatusCANCELLATIONPENDING {
		eventType = "order.cancellation_requested"
	}
	h.broadcast(branchID, eventType, resp)
	writeJSON(w, http.StatusOK, resp)
}

// Cancel handles DELETE /branches/{bid}/orders/{id}. This never cancels
// outright: it opens the grace window and returns the pending order.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	scope := service.Scope{TenantID: claims.TenantID, BranchID: branchID}
	pending, err := h.lifecycle.RequestCancellation(r.Context(), scope, orderID, claims.UserID)
	if err != nil {
		h.writeLifecycleError(w, err, "request order cancellation")
		return
	}

	resp := dbOrderToResponse(pending)
	h.broadcast(branchID, "order.cancellation_requested", resp)
	writeJSON(w, http.StatusOK, resp)
}

// UndoCancellation handles POST /branches/{bid}/orders/{id}/cancellation/undo.
func (h *OrderHandler) UndoCancellation(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	scope := service.Scope{TenantID: claims.TenantID, BranchID: branchID}
	restored, err := h.lifecycle.UndoCancellation(r.Context(), scope, orderID)
	if err != nil {
		h.writeLifecycleError(w, err, "undo order cancellation")
		return
	}

	resp := dbOrderToResponse(restored)
	h.broadcast(branchID, "order.status_changed", resp)
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

// sweep finalizes any expired cancellation requests before a read, so
// clients never see a stale CANCELLATION_PENDING past its window. A sweep
// failure is logged but does not fail the read.
func (h *OrderHandler) sweep(ctx context.Context) {
	if err := h.lifecycle.Sweep(ctx); err != nil {
		log.Error().Err(err).Msg("sweep expired cancellations")
	}
}

func (h *OrderHandler) broadcast(branchID uuid.UUID, eventType string, payload interface{}) {
	if h.hub == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("marshal ws payload")
		return
	}
	h.hub.BroadcastToBranch(branchID, ws.Event{Type: eventType, Payload: raw})
}

func (h *OrderHandler) writeLifecycleError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
	case errors.Is(err, service.ErrInvalidStatus):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrOrderTerminal),
		errors.Is(err, service.ErrAlreadyCancelled),
		errors.Is(err, service.ErrCancellationRequested),
		errors.Is(err, service.ErrNoPendingCancellation),
		errors.Is(err, service.ErrCancellationFinalized),
		errors.Is(err, service.ErrStatusConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Error().Err(err).Msg(logMsg)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func formatItemError(idx int, msg string) string {
	return "items[" + strconv.Itoa(idx) + "]: " + msg
}

// isOrderValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request. Unsellable
// items are not validation failures; they map to 409 alongside the other
// business-rule conflicts.
func isOrderValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidOrderType) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidMenuItemID)
}

func isValidOrderStatus(s database.OrderStatus) bool {
	switch s {
	case database.OrderStatusPENDING,
		database.OrderStatusPREPARING,
		database.OrderStatusREADY,
		database.OrderStatusCOMPLETED,
		database.OrderStatusCANCELLED,
		database.OrderStatusCANCELLATIONPENDING:
		return true
	}
	return false
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}
