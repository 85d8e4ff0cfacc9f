package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/core/domain"
	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/core/service"
)

// Services bundles what the transport handlers dispatch to.
type Services struct {
	Catalog       *service.CatalogService
	Ledger        *service.StockLedger
	Orders        *service.PurchaseOrderService
	Returns       *service.PurchaseReturnService
	Sales         *service.SalesService
	Notifications *service.NotificationEngine
}

type HTTPHandler struct {
	svc Services
	log logrus.FieldLogger
}

type QuantityHTTPRequest struct {
	Quantity int `json:"quantity"`
}

type PaymentHTTPRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
}

func NewHTTPHandler(svc Services, log logrus.FieldLogger) *HTTPHandler {
	return &HTTPHandler{svc: svc, log: log}
}

// Router wires every route. gatherer may be nil to leave /metrics out.
func (h *HTTPHandler) Router(gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", h.HealthCheck)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api/v1")
	{
		items := api.Group("/items")
		items.POST("", h.CreateItem)
		items.GET("", h.ListItems)
		items.GET("/:id", h.GetItem)
		items.PUT("/:id", h.UpdateItem)
		items.DELETE("/:id", h.DeactivateItem)
		items.GET("/:id/quantity", h.CurrentQuantity)
		items.PUT("/:id/quantity", h.CorrectQuantity)

		api.POST("/suppliers", h.CreateSupplier)
		api.GET("/suppliers", h.ListSuppliers)
		api.GET("/suppliers/:id", h.GetSupplier)
		api.PUT("/suppliers/:id", h.UpdateSupplier)
		api.DELETE("/suppliers/:id", h.DeactivateSupplier)
		api.POST("/customers", h.CreateCustomer)
		api.GET("/customers/:id", h.GetCustomer)
		api.DELETE("/customers/:id", h.DeactivateCustomer)

		orders := api.Group("/purchase-orders")
		orders.POST("", h.CreatePurchaseOrder)
		orders.GET("", h.ListPurchaseOrders)
		orders.GET("/:id", h.GetPurchaseOrder)
		orders.PUT("/:id", h.EditPurchaseOrder)
		orders.DELETE("/:id", h.DeletePurchaseOrder)
		orders.POST("/:id/receive", h.ReceivePurchaseOrder)
		orders.GET("/:id/returns", h.ListPurchaseReturns)
		orders.GET("/:id/returnable/:item_id", h.Returnable)

		api.POST("/purchase-returns", h.CreatePurchaseReturn)

		invoices := api.Group("/invoices")
		invoices.POST("", h.FinalizeInvoice)
		invoices.GET("", h.ListInvoices)
		invoices.GET("/:id", h.GetInvoice)
		invoices.GET("/:id/payments", h.ListPayments)
		invoices.POST("/:id/payments", h.RecordPayment)
		invoices.POST("/:id/cancel", h.CancelInvoice)

		notifications := api.Group("/notifications")
		notifications.GET("", h.ListNotifications)
		notifications.POST("/scan", h.ScanNotifications)
		notifications.POST("/read-all", h.MarkAllNotificationsRead)
		notifications.POST("/:id/read", h.MarkNotificationRead)
	}
	return r
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) success(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func (h *HTTPHandler) error(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{
		"success": false,
		"error":   message,
	})
}

// fail maps err onto a status code. Infrastructure detail stays in the log.
func (h *HTTPHandler) fail(c *gin.Context, err error) {
	kind := domain.Kind(err)
	status := statusForKind(kind)
	if kind == domain.KindUnknown || kind == domain.KindTransaction {
		if h.log != nil {
			h.log.WithFields(logrus.Fields{
				"method": c.Request.Method,
				"path":   c.FullPath(),
			}).WithError(err).Error("HTTP:REQUEST_FAILED")
		}
		h.error(c, status, http.StatusText(status))
		return
	}
	h.error(c, status, err.Error())
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindState:
		return http.StatusConflict
	case domain.KindIntegrity:
		return http.StatusUnprocessableEntity
	case domain.KindTransaction:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func parseIDParam(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *HTTPHandler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.error(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (h *HTTPHandler) CreateItem(c *gin.Context) {
	var req service.CreateItemInput
	if !h.bind(c, &req) {
		return
	}
	item, err := h.svc.Catalog.CreateItem(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusCreated, item)
}

func (h *HTTPHandler) ListItems(c *gin.Context) {
	activeOnly, _ := strconv.ParseBool(c.DefaultQuery("active", "false"))
	items, err := h.svc.Catalog.ListItems(c.Request.Context(), activeOnly)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusOK, items)
}

func (h *HTTPHandler) GetItem(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.error(c, http.StatusBadRequest, "invalid item id")
		return
	}
	item, err := h.svc.Catalog.GetItem(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusOK, item)
}

func (h *HTTPHandler) UpdateItem(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.error(c, http.StatusBadRequest, "invalid item id")
		return
	}
	var req service.UpdateItemInput
	if !h.bind(c, &req) {
		return
	}
	item, err := h.svc.Catalog.UpdateItem(c.Request.Context(), id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusOK, item)
}

func (h *HTTPHandler) DeactivateItem(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.error(c, http.StatusBadRequest, "invalid item id")
		return
	}
	if err := h.svc.Catalog.DeactivateItem(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusOK, gin.H{"item_id": id, "active": false})
}

func (h *HTTPHandler) CurrentQuantity(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.error(c, http.StatusBadRequest, "invalid item id")
		return
	}
	qty, err := h.svc.Ledger.Quantity(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusOK, gin.H{"item_id": id, "quantity": qty})
}

func (h *HTTPHandler) CorrectQuantity(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.error(c, http.StatusBadRequest, "invalid item id")
		return
	}
	var req QuantityHTTPRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.svc.Ledger.Correct(c.Request.Context(), id, req.Quantity); err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusOK, gin.H{"item_id": id, "quantity": req.Quantity})
}

func (h *HTTPHandler) CreateSupplier(c *gin.Context) {
	var req service.CreateSupplierInput
	if !h.bind(c, &req) {
		return
	}
	s, err := h.svc.Catalog.CreateSupplier(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusCreated, s)
}

func (h *HTTPHandler) ListSuppliers(c *gin.Context) {
	out, err := h.svc.Catalog.ListSuppliers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusOK, out)
}

func (h *HTTPHandler) GetSupplier(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.error(c, http.StatusBadRequest, "invalid supplier id")
		return
	}
	s, err := h.svc.Catalog.GetSupplier(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusOK, s)
}

func (h *HTTPHandler) UpdateSupplier(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.error(c, http.StatusBadRequest, "invalid supplier id")
		return
	}
	var req service.UpdateSupplierInput
	if !h.bind(c, &req) {
		return
	}
	s, err := h.svc.Catalog.UpdateSupplier(c.Request.Context(), id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusOK, s)
}

func (h *HTTPHandler) DeactivateSupplier(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.error(c, http.StatusBadRequest, "invalid supplier id")
		return
	}
	if err := h.svc.Catalog.DeactivateSupplier(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusOK, gin.H{"supplier_id": id, "active": false})
}

func (h *HTTPHandler) CreateCustomer(c *gin.Context) {
	var req service.CreateCustomerInput
	if !h.bind(c, &req) {
		return
	}
	cust, err := h.svc.Catalog.CreateCustomer(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusCreated, cust)
}

func (h *HTTPHandler) GetCustomer(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.error(c, http.StatusBadRequest, "invalid customer id")
		return
	}
	cust, err := h.svc.Catalog.GetCustomer(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusOK, cust)
}

func (h *HTTPHandler) DeactivateCustomer(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.error(c, http.StatusBadRequest, "invalid customer id")
		return
	}
	if err := h.svc.Catalog.DeactivateCustomer(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusOK, gin.H{"customer_id": id, "status": domain.CustomerStatusInactive})
}

func (h *HTTPHandler) CreatePurchaseOrder(c *gin.Context) {
	var req service.PurchaseOrderInput
	if !h.bind(c, &req) {
		return
	}
	po, err := h.svc.Orders.Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusCreated, po)
}

func (h *HTTPHandler) ListPurchaseOrders(c *gin.Context) {
	filter := domain.PurchaseOrderFilter{Status: domain.OrderStatus(c.Query("status"))}
	if s := c.Query("supplier_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			h.error(c, http.StatusBadRequest, "invalid supplier_id")
			return
		}
		filter.SupplierID = id
	}
	out, err := h.svc.Orders.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusOK, out)
}

func (h *HTTPHandler) GetPurchaseOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.error(c, http.StatusBadRequest, "invalid order id")
		return
	}
	po, err := h.svc.Orders.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusOK, po)
}

func (h *HTTPHandler) EditPurchaseOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.error(c, http.StatusBadRequest, "invalid order id")
		return
	}
	var req service.PurchaseOrderInput
	if !h.bind(c, &req) {
		return
	}
	po, err := h.svc.Orders.Edit(c.Request.Context(), id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusOK, po)
}

func (h *HTTPHandler) DeletePurchaseOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.error(c, http.StatusBadRequest, "invalid order id")
		return
	}
	if err := h.svc.Orders.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) ReceivePurchaseOrder(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.error(c, http.StatusBadRequest, "invalid order id")
		return
	}
	po, err := h.svc.Orders.Receive(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusOK, po)
}

func (h *HTTPHandler) ListPurchaseReturns(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.error(c, http.StatusBadRequest, "invalid order id")
		return
	}
	out, err := h.svc.Returns.List(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusOK, out)
}

func (h *HTTPHandler) Returnable(c *gin.Context) {
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		h.error(c, http.StatusBadRequest, "invalid order id")
		return
	}
	itemID, ok := parseIDParam(c, "item_id")
	if !ok {
		h.error(c, http.StatusBadRequest, "invalid item id")
		return
	}
	n, err := h.svc.Returns.Returnable(c.Request.Context(), orderID, itemID)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusOK, gin.H{"order_id": orderID, "item_id": itemID, "returnable": n})
}

func (h *HTTPHandler) CreatePurchaseReturn(c *gin.Context) {
	var req service.PurchaseReturnInput
	if !h.bind(c, &req) {
		return
	}
	ret, err := h.svc.Returns.Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusCreated, ret)
}

func (h *HTTPHandler) FinalizeInvoice(c *gin.Context) {
	var req service.FinalizeInput
	if !h.bind(c, &req) {
		return
	}
	if req.RequestID == "" {
		req.RequestID = c.GetHeader("Idempotency-Key")
	}
	inv, err := h.svc.Sales.Finalize(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusCreated, inv)
}

func (h *HTTPHandler) ListInvoices(c *gin.Context) {
	out, err := h.svc.Sales.List(c.Request.Context(), domain.InvoiceFilter{
		Status:  domain.InvoiceStatus(c.Query("status")),
		Keyword: c.Query("q"),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusOK, out)
}

func (h *HTTPHandler) GetInvoice(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.error(c, http.StatusBadRequest, "invalid invoice id")
		return
	}
	inv, err := h.svc.Sales.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusOK, inv)
}

func (h *HTTPHandler) ListPayments(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.error(c, http.StatusBadRequest, "invalid invoice id")
		return
	}
	out, err := h.svc.Sales.Payments(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusOK, out)
}

func (h *HTTPHandler) RecordPayment(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.error(c, http.StatusBadRequest, "invalid invoice id")
		return
	}
	var req PaymentHTTPRequest
	if !h.bind(c, &req) {
		return
	}
	inv, err := h.svc.Sales.RecordPayment(c.Request.Context(), id, req.Amount, req.Method)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusOK, inv)
}

func (h *HTTPHandler) CancelInvoice(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.error(c, http.StatusBadRequest, "invalid invoice id")
		return
	}
	inv, err := h.svc.Sales.Cancel(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusOK, inv)
}

// ListNotifications accepts repeated or comma separated category and
// severity values.
func (h *HTTPHandler) ListNotifications(c *gin.Context) {
	filter := domain.NotificationFilter{
		Status:  domain.NotificationStatus(c.Query("status")),
		Keyword: c.Query("q"),
	}
	for _, v := range splitQuery(c.QueryArray("category")) {
		filter.Categories = append(filter.Categories, domain.Category(v))
	}
	for _, v := range splitQuery(c.QueryArray("severity")) {
		filter.Severities = append(filter.Severities, domain.Severity(v))
	}

	out, err := h.svc.Notifications.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusOK, out)
}

func (h *HTTPHandler) ScanNotifications(c *gin.Context) {
	res, err := h.svc.Notifications.Scan(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusOK, res)
}

func (h *HTTPHandler) MarkNotificationRead(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		h.error(c, http.StatusBadRequest, "invalid notification id")
		return
	}
	if err := h.svc.Notifications.MarkRead(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusOK, gin.H{"id": id, "status": domain.NotificationRead})
}

func (h *HTTPHandler) MarkAllNotificationsRead(c *gin.Context) {
	n, err := h.svc.Notifications.MarkAllRead(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.success(c, http.StatusOK, gin.H{"updated": n})
}

func splitQuery(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
