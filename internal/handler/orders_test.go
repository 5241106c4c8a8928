package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brewline-pos/api/internal/auth"
	"github.com/brewline-pos/api/internal/database"
	"github.com/brewline-pos/api/internal/enum"
	"github.com/brewline-pos/api/internal/handler"
	"github.com/brewline-pos/api/internal/middleware"
	"github.com/brewline-pos/api/internal/service"
	"github.com/brewline-pos/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// --- Mocks ---

type mockOrderService struct {
	createFn func(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
}

func (m *mockOrderService) CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
	return m.createFn(ctx, req)
}

type mockLifecycle struct {
	updateStatusFn func(ctx context.Context, scope service.Scope, orderID, actorID uuid.UUID, target database.OrderStatus) (database.Order, error)
	requestFn      func(ctx context.Context, scope service.Scope, orderID, actorID uuid.UUID) (database.Order, error)
	undoFn         func(ctx context.Context, scope service.Scope, orderID uuid.UUID) (database.Order, error)
	sweepCount     int
}

func (m *mockLifecycle) UpdateStatus(ctx context.Context, scope service.Scope, orderID, actorID uuid.UUID, target database.OrderStatus) (database.Order, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, scope, orderID, actorID, target)
	}
	return database.Order{}, service.ErrOrderNotFound
}

func (m *mockLifecycle) RequestCancellation(ctx context.Context, scope service.Scope, orderID, actorID uuid.UUID) (database.Order, error) {
	if m.requestFn != nil {
		return m.requestFn(ctx, scope, orderID, actorID)
	}
	return database.Order{}, service.ErrOrderNotFound
}

func (m *mockLifecycle) UndoCancellation(ctx context.Context, scope service.Scope, orderID uuid.UUID) (database.Order, error) {
	if m.undoFn != nil {
		return m.undoFn(ctx, scope, orderID)
	}
	return database.Order{}, service.ErrOrderNotFound
}

func (m *mockLifecycle) Sweep(ctx context.Context) error {
	m.sweepCount++
	return nil
}

type mockOrderStore struct {
	getOrderFn              func(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	listOrdersFn            func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	listActiveOrdersFn      func(ctx context.Context, arg database.ListActiveOrdersParams) ([]database.Order, error)
	listOrderItemsByOrderFn func(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
}

func (m *mockOrderStore) GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
	if m.getOrderFn != nil {
		return m.getOrderFn(ctx, arg)
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *mockOrderStore) ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	if m.listOrdersFn != nil {
		return m.listOrdersFn(ctx, arg)
	}
	return []database.Order{}, nil
}

func (m *mockOrderStore) ListActiveOrders(ctx context.Context, arg database.ListActiveOrdersParams) ([]database.Order, error) {
	if m.listActiveOrdersFn != nil {
		return m.listActiveOrdersFn(ctx, arg)
	}
	return []database.Order{}, nil
}

func (m *mockOrderStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	if m.listOrderItemsByOrderFn != nil {
		return m.listOrderItemsByOrderFn(ctx, orderID)
	}
	return []database.OrderItem{}, nil
}

type mockBroadcaster struct {
	events   []ws.Event
	branches []uuid.UUID
}

func (m *mockBroadcaster) BroadcastToBranch(branchID uuid.UUID, event ws.Event) {
	m.branches = append(m.branches, branchID)
	m.events = append(m.events, event)
}

// --- Test helpers ---

const testJWTSecret = "test-secret-for-orders"

type orderTestEnv struct {
	svc       *mockOrderService
	lifecycle *mockLifecycle
	store     *mockOrderStore
	hub       *mockBroadcaster
	router    *chi.Mux
}

func setupOrderRouter(svc *mockOrderService, lifecycle *mockLifecycle, store *mockOrderStore) *orderTestEnv {
	env := &orderTestEnv{svc: svc, lifecycle: lifecycle, store: store, hub: &mockBroadcaster{}}
	if env.lifecycle == nil {
		env.lifecycle = &mockLifecycle{}
	}
	if env.store == nil {
		env.store = &mockOrderStore{}
	}
	h := handler.NewOrderHandler(env.svc, env.lifecycle, env.store, env.hub)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/branches/{bid}", func(r chi.Router) {
		r.Use(middleware.RequireBranch)
		r.Route("/orders", h.RegisterRoutes)
	})
	env.router = r
	return env
}

func doAuthRequest(t *testing.T, router http.Handler, method, path string, body interface{}, claims *auth.Claims) *httptest.ResponseRecorder {
	t.Helper()

	token, err := auth.GenerateToken(testJWTSecret, claims.UserID, claims.TenantID, claims.BranchID, claims.Role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func staffClaims(tenantID, branchID uuid.UUID) *auth.Claims {
	return &auth.Claims{
		UserID:   uuid.New(),
		TenantID: tenantID,
		BranchID: branchID,
		Role:     enum.UserRoleStaff,
	}
}

func testNumeric(t *testing.T, s string) pgtype.Numeric {
	t.Helper()
	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		t.Fatalf("scan numeric %q: %v", s, err)
	}
	return n
}

func testOrder(t *testing.T, tenantID, branchID, userID uuid.UUID, status database.OrderStatus) database.Order {
	t.Helper()
	now := time.Now()
	return database.Order{
		ID:          uuid.New(),
		TenantID:    tenantID,
		BranchID:    branchID,
		Status:      status,
		OrderType:   database.OrderTypeDINEIN,
		TokenNumber: pgtype.Int4{Int32: 4, Valid: true},
		TotalAmount: testNumeric(t, "17.00"),
		CreatedBy:   userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// --- Tests ---

func TestOrderCreate_HappyPath(t *testing.T) {
	tenantID := uuid.New()
	branchID := uuid.New()
	claims := staffClaims(tenantID, branchID)

	var created database.Order
	svc := &mockOrderService{
		createFn: func(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
			if req.TenantID != tenantID {
				t.Errorf("tenant_id: got %v, want %v", req.TenantID, tenantID)
			}
			if req.BranchID != branchID {
				t.Errorf("branch_id: got %v, want %v", req.BranchID, branchID)
			}
			if req.CreatedBy != claims.UserID {
				t.Errorf("created_by: got %v, want %v", req.CreatedBy, claims.UserID)
			}
			if req.OrderType != "DINE_IN" {
				t.Errorf("order_type: got %v, want DINE_IN", req.OrderType)
			}
			created = testOrder(t, tenantID, branchID, claims.UserID, database.OrderStatusPENDING)
			return &service.CreateOrderResult{
				Order: created,
				Items: []database.OrderItem{{
					ID:             uuid.New(),
					OrderID:        created.ID,
					MenuItemID:     uuid.New(),
					SourceBranchID: branchID,
					Quantity:       2,
					UnitPrice:      testNumeric(t, "8.50"),
					LineTotal:      testNumeric(t, "17.00"),
				}},
			}, nil
		},
	}

	env := setupOrderRouter(svc, nil, nil)
	rr := doAuthRequest(t, env.router, "POST", "/branches/"+branchID.String()+"/orders", map[string]interface{}{
		"order_type": "DINE_IN",
		"items": []map[string]interface{}{
			{"menu_item_id": uuid.New().String(), "quantity": 2},
		},
	}, claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeBody(t, rr)
	if resp["status"] != "PENDING" {
		t.Errorf("status: got %v, want PENDING", resp["status"])
	}
	if resp["token_number"] != float64(4) {
		t.Errorf("token_number: got %v, want 4", resp["token_number"])
	}
	if resp["total_amount"] != "17.00" {
		t.Errorf("total_amount: got %v, want 17.00", resp["total_amount"])
	}
	items, ok := resp["items"].([]interface{})
	if !ok || len(items) != 1 {
		t.Fatalf("items: got %v, want 1 entry", resp["items"])
	}
	item := items[0].(map[string]interface{})
	if item["unit_price"] != "8.50" {
		t.Errorf("unit_price: got %v, want 8.50", item["unit_price"])
	}

	if len(env.hub.events) != 1 || env.hub.events[0].Type != "order.created" {
		t.Fatalf("broadcast events: got %+v, want one order.created", env.hub.events)
	}
	if env.hub.branches[0] != branchID {
		t.Errorf("broadcast branch: got %v, want %v", env.hub.branches[0], branchID)
	}
}

func TestOrderCreate_ErrorMapping(t *testing.T) {
	tenantID := uuid.New()
	branchID := uuid.New()
	claims := staffClaims(tenantID, branchID)

	tests := []struct {
		name     string
		svcErr   error
		wantCode int
	}{
		{"unsellable item", service.ErrItemNotSellable, http.StatusConflict},
		{"unknown branch", service.ErrBranchNotFound, http.StatusNotFound},
		{"inactive branch", service.ErrBranchInactive, http.StatusConflict},
		{"token numbers exhausted", service.ErrNoTokensAvailable, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockOrderService{
				createFn: func(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
					return nil, tt.svcErr
				},
			}
			env := setupOrderRouter(svc, nil, nil)
			rr := doAuthRequest(t, env.router, "POST", "/branches/"+branchID.String()+"/orders", map[string]interface{}{
				"order_type": "DINE_IN",
				"items": []map[string]interface{}{
					{"menu_item_id": uuid.New().String(), "quantity": 1},
				},
			}, claims)

			if rr.Code != tt.wantCode {
				t.Fatalf("status: got %d, want %d; body: %s", rr.Code, tt.wantCode, rr.Body.String())
			}
			if len(env.hub.events) != 0 {
				t.Errorf("no broadcast expected on failure, got %+v", env.hub.events)
			}
		})
	}
}

func TestOrderCreate_RejectsEmptyItems(t *testing.T) {
	tenantID := uuid.New()
	branchID := uuid.New()
	claims := staffClaims(tenantID, branchID)

	env := setupOrderRouter(&mockOrderService{
		createFn: func(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error) {
			t.Fatal("service must not be called for an empty item list")
			return nil, nil
		},
	}, nil, nil)

	rr := doAuthRequest(t, env.router, "POST", "/branches/"+branchID.String()+"/orders", map[string]interface{}{
		"order_type": "DINE_IN",
		"items":      []map[string]interface{}{},
	}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestOrderList_SweepsBeforeReading(t *testing.T) {
	tenantID := uuid.New()
	branchID := uuid.New()
	claims := staffClaims(tenantID, branchID)

	lifecycle := &mockLifecycle{}
	store := &mockOrderStore{
		listOrdersFn: func(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
			if arg.BranchID != branchID || arg.TenantID != tenantID {
				t.Errorf("scope: got %v/%v, want %v/%v", arg.TenantID, arg.BranchID, tenantID, branchID)
			}
			if !arg.Status.Valid || arg.Status.OrderStatus != database.OrderStatusREADY {
				t.Errorf("status filter: got %+v, want READY", arg.Status)
			}
			return []database.Order{testOrder(t, tenantID, branchID, claims.UserID, database.OrderStatusREADY)}, nil
		},
	}

	env := setupOrderRouter(&mockOrderService{}, lifecycle, store)
	rr := doAuthRequest(t, env.router, "GET", "/branches/"+branchID.String()+"/orders?status=READY", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if lifecycle.sweepCount != 1 {
		t.Fatalf("sweep count: got %d, want 1 (reads must finalize expired cancellations first)", lifecycle.sweepCount)
	}

	resp := decodeBody(t, rr)
	orders := resp["orders"].([]interface{})
	if len(orders) != 1 {
		t.Fatalf("orders: got %d, want 1", len(orders))
	}
}

func TestOrderListActive_SweepsBeforeReading(t *testing.T) {
	tenantID := uuid.New()
	branchID := uuid.New()
	claims := staffClaims(tenantID, branchID)

	lifecycle := &mockLifecycle{}
	store := &mockOrderStore{
		listActiveOrdersFn: func(ctx context.Context, arg database.ListActiveOrdersParams) ([]database.Order, error) {
			return []database.Order{testOrder(t, tenantID, branchID, claims.UserID, database.OrderStatusPREPARING)}, nil
		},
	}

	env := setupOrderRouter(&mockOrderService{}, lifecycle, store)
	rr := doAuthRequest(t, env.router, "GET", "/branches/"+branchID.String()+"/orders/active", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if lifecycle.sweepCount != 1 {
		t.Fatalf("sweep count: got %d, want 1", lifecycle.sweepCount)
	}
}

func TestOrderGet_WrongBranchIsNotFound(t *testing.T) {
	tenantID := uuid.New()
	branchID := uuid.New()
	otherBranch := uuid.New()
	claims := &auth.Claims{UserID: uuid.New(), TenantID: tenantID, Role: enum.UserRoleManager}

	order := testOrder(t, tenantID, otherBranch, claims.UserID, database.OrderStatusPENDING)
	store := &mockOrderStore{
		getOrderFn: func(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
			if arg.ID == order.ID && arg.TenantID == tenantID {
				return order, nil
			}
			return database.Order{}, pgx.ErrNoRows
		},
	}

	env := setupOrderRouter(&mockOrderService{}, nil, store)
	rr := doAuthRequest(t, env.router, "GET", "/branches/"+branchID.String()+"/orders/"+order.ID.String(), nil, claims)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d; a branch must not see another branch's orders", rr.Code, http.StatusNotFound)
	}
}

func TestOrderUpdateStatus_HappyPath(t *testing.T) {
	tenantID := uuid.New()
	branchID := uuid.New()
	claims := staffClaims(tenantID, branchID)
	orderID := uuid.New()

	lifecycle := &mockLifecycle{
		updateStatusFn: func(ctx context.Context, scope service.Scope, id, actorID uuid.UUID, target database.OrderStatus) (database.Order, error) {
			if scope.TenantID != tenantID || scope.BranchID != branchID {
				t.Errorf("scope: got %+v", scope)
			}
			if id != orderID {
				t.Errorf("order id: got %v, want %v", id, orderID)
			}
			if target != database.OrderStatusPREPARING {
				t.Errorf("target: got %v, want PREPARING", target)
			}
			o := testOrder(t, tenantID, branchID, actorID, database.OrderStatusPREPARING)
			o.ID = id
			return o, nil
		},
	}

	env := setupOrderRouter(&mockOrderService{}, lifecycle, nil)
	rr := doAuthRequest(t, env.router, "PATCH", "/branches/"+branchID.String()+"/orders/"+orderID.String()+"/status",
		map[string]string{"status": "PREPARING"}, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if len(env.hub.events) != 1 || env.hub.events[0].Type != "order.status_changed" {
		t.Fatalf("broadcast events: got %+v, want one order.status_changed", env.hub.events)
	}
}

func TestOrderUpdateStatus_ErrorMapping(t *testing.T) {
	tenantID := uuid.New()
	branchID := uuid.New()
	claims := staffClaims(tenantID, branchID)

	tests := []struct {
		name     string
		svcErr   error
		wantCode int
	}{
		{"unknown order", service.ErrOrderNotFound, http.StatusNotFound},
		{"terminal order", service.ErrOrderTerminal, http.StatusConflict},
		{"skipped step", service.ErrInvalidStatus, http.StatusBadRequest},
		{"concurrent change", service.ErrStatusConflict, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lifecycle := &mockLifecycle{
				updateStatusFn: func(ctx context.Context, scope service.Scope, id, actorID uuid.UUID, target database.OrderStatus) (database.Order, error) {
					return database.Order{}, tt.svcErr
				},
			}
			env := setupOrderRouter(&mockOrderService{}, lifecycle, nil)
			rr := doAuthRequest(t, env.router, "PATCH", "/branches/"+branchID.String()+"/orders/"+uuid.New().String()+"/status",
				map[string]string{"status": "PREPARING"}, claims)

			if rr.Code != tt.wantCode {
				t.Fatalf("status: got %d, want %d; body: %s", rr.Code, tt.wantCode, rr.Body.String())
			}
		})
	}
}

func TestOrderUpdateStatus_RejectsUnknownStatus(t *testing.T) {
	tenantID := uuid.New()
	branchID := uuid.New()
	claims := staffClaims(tenantID, branchID)

	env := setupOrderRouter(&mockOrderService{}, nil, nil)
	rr := doAuthRequest(t, env.router, "PATCH", "/branches/"+branchID.String()+"/orders/"+uuid.New().String()+"/status",
		map[string]string{"status": "SHIPPED"}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestOrderCancel_OpensGraceWindow(t *testing.T) {
	tenantID := uuid.New()
	branchID := uuid.New()
	claims := staffClaims(tenantID, branchID)
	orderID := uuid.New()

	lifecycle := &mockLifecycle{
		requestFn: func(ctx context.Context, scope service.Scope, id, actorID uuid.UUID) (database.Order, error) {
			o := testOrder(t, tenantID, branchID, actorID, database.OrderStatusCANCELLATIONPENDING)
			o.ID = id
			o.CancellationExpiresAt = pgtype.Timestamptz{Time: time.Now().Add(service.CancellationGracePeriod), Valid: true}
			return o, nil
		},
	}

	env := setupOrderRouter(&mockOrderService{}, lifecycle, nil)
	rr := doAuthRequest(t, env.router, "DELETE", "/branches/"+branchID.String()+"/orders/"+orderID.String(), nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeBody(t, rr)
	if resp["status"] != "CANCELLATION_PENDING" {
		t.Errorf("status: got %v, want CANCELLATION_PENDING (cancellation is never immediate)", resp["status"])
	}
	if resp["cancellation_expires_at"] == nil {
		t.Error("cancellation_expires_at missing from response")
	}
	if len(env.hub.events) != 1 || env.hub.events[0].Type != "order.cancellation_requested" {
		t.Fatalf("broadcast events: got %+v, want one order.cancellation_requested", env.hub.events)
	}
}

func TestOrderUndoCancellation(t *testing.T) {
	tenantID := uuid.New()
	branchID := uuid.New()
	claims := staffClaims(tenantID, branchID)
	orderID := uuid.New()

	t.Run("within window", func(t *testing.T) {
		lifecycle := &mockLifecycle{
			undoFn: func(ctx context.Context, scope service.Scope, id uuid.UUID) (database.Order, error) {
				o := testOrder(t, tenantID, branchID, claims.UserID, database.OrderStatusPREPARING)
				o.ID = id
				return o, nil
			},
		}
		env := setupOrderRouter(&mockOrderService{}, lifecycle, nil)
		rr := doAuthRequest(t, env.router, "POST", "/branches/"+branchID.String()+"/orders/"+orderID.String()+"/cancellation/undo", nil, claims)

		if rr.Code != http.StatusOK {
			t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
		}
		resp := decodeBody(t, rr)
		if resp["status"] != "PREPARING" {
			t.Errorf("status: got %v, want PREPARING", resp["status"])
		}
	})

	t.Run("window elapsed", func(t *testing.T) {
		lifecycle := &mockLifecycle{
			undoFn: func(ctx context.Context, scope service.Scope, id uuid.UUID) (database.Order, error) {
				return database.Order{}, service.ErrCancellationFinalized
			},
		}
		env := setupOrderRouter(&mockOrderService{}, lifecycle, nil)
		rr := doAuthRequest(t, env.router, "POST", "/branches/"+branchID.String()+"/orders/"+orderID.String()+"/cancellation/undo", nil, claims)

		if rr.Code != http.StatusConflict {
			t.Fatalf("status: got %d, want %d", rr.Code, http.StatusConflict)
		}
		if len(env.hub.events) != 0 {
			t.Errorf("no broadcast expected on failed undo, got %+v", env.hub.events)
		}
	})
}

func TestOrderRoutes_StaffLockedToOwnBranch(t *testing.T) {
	tenantID := uuid.New()
	homeBranch := uuid.New()
	otherBranch := uuid.New()
	claims := staffClaims(tenantID, homeBranch)

	env := setupOrderRouter(&mockOrderService{}, nil, nil)
	rr := doAuthRequest(t, env.router, "GET", "/branches/"+otherBranch.String()+"/orders/active", nil, claims)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestOrderRoutes_RequireAuth(t *testing.T) {
	env := setupOrderRouter(&mockOrderService{}, nil, nil)

	req := httptest.NewRequest("GET", "/branches/"+uuid.New().String()+"/orders", nil)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}
