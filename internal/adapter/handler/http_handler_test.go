package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/adapter/storage"
	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/core/service"
)

func newTestServices(t *testing.T) (Services, *prometheus.Registry) {
	t.Helper()
	ctx := context.Background()

	store := storage.NewMemoryStore()
	cache := storage.NewLocalAdapter()
	reg := prometheus.NewRegistry()
	metrics := service.NewMetrics(reg)
	exec := service.NewTransactionExecutor(store, metrics, nil)
	ledger := service.NewStockLedger(store, exec, metrics, nil)
	engine, err := service.NewNotificationEngine(ctx, store, cache, metrics, nil)
	require.NoError(t, err)

	return Services{
		Catalog:       service.NewCatalogService(store, nil),
		Ledger:        ledger,
		Orders:        service.NewPurchaseOrderService(store, exec, ledger, metrics, nil),
		Returns:       service.NewPurchaseReturnService(store, exec, ledger, metrics, nil),
		Sales:         service.NewSalesService(store, exec, ledger, cache, metrics, nil),
		Notifications: engine,
	}, reg
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testAPI struct {
	t      *testing.T
	router *gin.Engine
}

func newTestAPI(t *testing.T) *testAPI {
	gin.SetMode(gin.TestMode)
	svc, reg := newTestServices(t)
	return &testAPI{t: t, router: NewHTTPHandler(svc, nil).Router(reg)}
}

func (a *testAPI) do(method, path string, body any, headers ...string) (int, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Code != http.StatusNoContent {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w.Code, env
}

// id creates a resource and returns its id.
func (a *testAPI) id(path string, body any) int64 {
	a.t.Helper()
	code, env := a.do(http.MethodPost, path, body)
	require.Equal(a.t, http.StatusCreated, code, env.Error)
	var out struct {
		ID int64 `json:"id"`
	}
	require.NoError(a.t, json.Unmarshal(env.Data, &out))
	return out.ID
}

func (a *testAPI) quantity(itemID int64) int {
	a.t.Helper()
	code, env := a.do(http.MethodGet, fmt.Sprintf("/api/v1/items/%d/quantity", itemID), nil)
	require.Equal(a.t, http.StatusOK, code)
	var out struct {
		Quantity int `json:"quantity"`
	}
	require.NoError(a.t, json.Unmarshal(env.Data, &out))
	return out.Quantity
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t)

	code, _ := api.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)

	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInvoiceFlow(t *testing.T) {
	api := newTestAPI(t)
	customerID := api.id("/api/v1/customers", map[string]any{"name": "Jane Doe"})
	itemID := api.id("/api/v1/items", map[string]any{"name": "Ibuprofen", "quantity": 2, "unit_price": "10.00"})

	sale := func(qty int) map[string]any {
		return map[string]any{
			"customer_id": customerID,
			"lines":       []map[string]any{{"item_id": itemID, "quantity": qty}},
		}
	}

	code, env := api.do(http.MethodPost, "/api/v1/invoices", sale(3))
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.False(t, env.Success)
	assert.Equal(t, 2, api.quantity(itemID))

	code, env = api.do(http.MethodPost, "/api/v1/invoices", sale(1), "Idempotency-Key", "abc")
	require.Equal(t, http.StatusCreated, code, env.Error)
	var inv struct {
		ID         int64  `json:"id"`
		Status     string `json:"status"`
		BalanceDue string `json:"balance_due"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &inv))
	assert.Equal(t, "Pending", inv.Status)
	assert.Equal(t, "10", inv.BalanceDue)

	code, _ = api.do(http.MethodPost, "/api/v1/invoices", sale(1), "Idempotency-Key", "abc")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, 1, api.quantity(itemID))

	code, env = api.do(http.MethodPost, fmt.Sprintf("/api/v1/invoices/%d/payments", inv.ID), map[string]any{"amount": "10", "method": "Cash"})
	require.Equal(t, http.StatusOK, code, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, &inv))
	assert.Equal(t, "Paid", inv.Status)

	code, _ = api.do(http.MethodPost, fmt.Sprintf("/api/v1/invoices/%d/cancel", inv.ID), nil)
	assert.Equal(t, http.StatusConflict, code)

	code, env = api.do(http.MethodGet, "/api/v1/invoices?status=Paid", nil)
	require.Equal(t, http.StatusOK, code)
	var list []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)
}

func TestPurchaseOrderFlow(t *testing.T) {
	api := newTestAPI(t)
	supplierID := api.id("/api/v1/suppliers", map[string]any{"name": "Acme"})
	itemID := api.id("/api/v1/items", map[string]any{"name": "Cetirizine", "unit_price": "1.50"})

	now := time.Now().UTC()
	orderID := api.id("/api/v1/purchase-orders", map[string]any{
		"supplier_id": supplierID,
		"lines":       []map[string]any{{"item_id": itemID, "quantity": 10, "unit_cost": "0.80"}},
		"ordered_at":  now.Format(time.RFC3339),
		"expected_at": now.AddDate(0, 0, 3).Format(time.RFC3339),
	})

	path := fmt.Sprintf("/api/v1/purchase-orders/%d", orderID)
	code, env := api.do(http.MethodPost, path+"/receive", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, 10, api.quantity(itemID))

	code, _ = api.do(http.MethodPost, path+"/receive", nil)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = api.do(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusConflict, code)

	ret := map[string]any{"order_id": orderID, "item_id": itemID, "quantity": 4, "reason": "damaged"}
	code, env = api.do(http.MethodPost, "/api/v1/purchase-returns", ret)
	require.Equal(t, http.StatusCreated, code, env.Error)

	ret["quantity"] = 7
	code, _ = api.do(http.MethodPost, "/api/v1/purchase-returns", ret)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, env = api.do(http.MethodGet, fmt.Sprintf("%s/returnable/%d", path, itemID), nil)
	require.Equal(t, http.StatusOK, code)
	var left struct {
		Returnable int `json:"returnable"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &left))
	assert.Equal(t, 6, left.Returnable)
	assert.Equal(t, 6, api.quantity(itemID))
}

func TestCorrectQuantity(t *testing.T) {
	api := newTestAPI(t)
	itemID := api.id("/api/v1/items", map[string]any{"name": "Saline", "quantity": 5})
	path := fmt.Sprintf("/api/v1/items/%d/quantity", itemID)

	code, _ := api.do(http.MethodPut, path, map[string]any{"quantity": 40})
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 40, api.quantity(itemID))

	code, _ = api.do(http.MethodPut, path, map[string]any{"quantity": -1})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, 40, api.quantity(itemID))
}

func TestCatalogMaintenance(t *testing.T) {
	api := newTestAPI(t)
	supplierID := api.id("/api/v1/suppliers", map[string]any{"name": "Acme"})
	customerID := api.id("/api/v1/customers", map[string]any{"name": "Jane Doe"})
	itemID := api.id("/api/v1/items", map[string]any{"name": "Ibuprofen", "quantity": 5, "unit_price": "3.00"})
	itemPath := fmt.Sprintf("/api/v1/items/%d", itemID)

	code, env := api.do(http.MethodPut, itemPath, map[string]any{"name": "Ibuprofen 400mg", "unit_price": "3.25", "supplier_id": supplierID})
	require.Equal(t, http.StatusOK, code, env.Error)
	var item struct {
		Name     string `json:"name"`
		Quantity int    `json:"quantity"`
		Active   bool   `json:"active"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &item))
	assert.Equal(t, "Ibuprofen 400mg", item.Name)
	assert.Equal(t, 5, item.Quantity)
	assert.True(t, item.Active)

	code, _ = api.do(http.MethodDelete, itemPath, nil)
	assert.Equal(t, http.StatusOK, code)
	sale := map[string]any{
		"customer_id": customerID,
		"lines":       []map[string]any{{"item_id": itemID, "quantity": 1}},
	}
	code, _ = api.do(http.MethodPost, "/api/v1/invoices", sale)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(http.MethodPut, itemPath, map[string]any{"name": "Ibuprofen 400mg", "unit_price": "3.25", "active": true})
	require.Equal(t, http.StatusOK, code)
	code, env = api.do(http.MethodPost, "/api/v1/invoices", sale)
	require.Equal(t, http.StatusCreated, code, env.Error)

	code, _ = api.do(http.MethodDelete, fmt.Sprintf("/api/v1/customers/%d", customerID), nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = api.do(http.MethodPost, "/api/v1/invoices", sale)
	assert.Equal(t, http.StatusBadRequest, code)

	supplierPath := fmt.Sprintf("/api/v1/suppliers/%d", supplierID)
	code, env = api.do(http.MethodPut, supplierPath, map[string]any{"name": "Acme Ltd", "email": "orders@acme.test"})
	require.Equal(t, http.StatusOK, code, env.Error)
	code, _ = api.do(http.MethodDelete, supplierPath, nil)
	assert.Equal(t, http.StatusOK, code)
	code, env = api.do(http.MethodGet, supplierPath, nil)
	require.Equal(t, http.StatusOK, code)
	var supplier struct {
		Name   string `json:"name"`
		Active bool   `json:"active"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &supplier))
	assert.Equal(t, "Acme Ltd", supplier.Name)
	assert.False(t, supplier.Active)

	now := time.Now().UTC()
	code, _ = api.do(http.MethodPost, "/api/v1/purchase-orders", map[string]any{
		"supplier_id": supplierID,
		"lines":       []map[string]any{{"item_id": itemID, "quantity": 1}},
		"ordered_at":  now.Format(time.RFC3339),
		"expected_at": now.Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(http.MethodDelete, "/api/v1/customers/99", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestNotificationEndpoints(t *testing.T) {
	api := newTestAPI(t)
	api.id("/api/v1/items", map[string]any{"name": "Aspirin", "quantity": 2})
	api.id("/api/v1/items", map[string]any{"name": "Vitamin C", "quantity": 8})

	code, env := api.do(http.MethodPost, "/api/v1/notifications/scan", nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	var res service.ScanResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, 2, res.Created)

	var list []struct {
		ID       int64  `json:"id"`
		Severity string `json:"severity"`
	}
	code, env = api.do(http.MethodGet, "/api/v1/notifications?category=Inventory,Finance&severity=High", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "High", list[0].Severity)

	code, _ = api.do(http.MethodPost, fmt.Sprintf("/api/v1/notifications/%d/read", list[0].ID), nil)
	assert.Equal(t, http.StatusOK, code)

	code, env = api.do(http.MethodPost, "/api/v1/notifications/read-all", nil)
	require.Equal(t, http.StatusOK, code)
	var updated struct {
		Updated int64 `json:"updated"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.EqualValues(t, 1, updated.Updated)

	code, env = api.do(http.MethodGet, "/api/v1/notifications?status=Unread", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "null", string(env.Data))
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"bad id", http.MethodGet, "/api/v1/items/abc", nil, http.StatusBadRequest},
		{"unknown item", http.MethodGet, "/api/v1/items/99", nil, http.StatusNotFound},
		{"unknown order", http.MethodPost, "/api/v1/purchase-orders/99/receive", nil, http.StatusNotFound},
		{"invalid body", http.MethodPost, "/api/v1/items", "not an object", http.StatusBadRequest},
		{"failed validation", http.MethodPost, "/api/v1/items", map[string]any{"quantity": 1}, http.StatusBadRequest},
		{"unknown notification", http.MethodPost, "/api/v1/notifications/99/read", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := api.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, code)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}
}
