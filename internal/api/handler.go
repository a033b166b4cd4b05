package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"inventory-billing/internal/models"
	"inventory-billing/internal/service"
	"inventory-billing/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Handler contains HTTP handlers
type Handler struct {
	inventory *service.InventoryService
	resolver  *service.RecipeResolver
	orders    *service.PurchaseOrderService
	batches   *service.BatchService
	billing   *service.BillingService
}

// NewHandler creates a new HTTP handler
func NewHandler(
	inventory *service.InventoryService,
	resolver *service.RecipeResolver,
	orders *service.PurchaseOrderService,
	batches *service.BatchService,
	billing *service.BillingService,
) *Handler {
	return &Handler{
		inventory: inventory,
		resolver:  resolver,
		orders:    orders,
		batches:   batches,
		billing:   billing,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/dishes/:id/availability", h.checkAvailability)
		v1.GET("/dishes/:id/cost", h.dishCost)

		v1.POST("/sales", h.recordSale)
		v1.POST("/sales/bulk", h.recordBulkSale)

		v1.GET("/ingredients/low-stock", h.lowStockIngredients)
		v1.GET("/ingredients/:id/stock", h.stockLevel)

		v1.POST("/purchase-orders", h.createPurchaseOrder)
		v1.GET("/purchase-orders/:id", h.getPurchaseOrder)
		v1.PUT("/purchase-orders/:id", h.updatePurchaseOrder)
		v1.POST("/purchase-orders/:id/submit", h.submitPurchaseOrder)
		v1.POST("/purchase-orders/:id/approve", h.approvePurchaseOrder)
		v1.POST("/purchase-orders/:id/cancel", h.cancelPurchaseOrder)
		v1.POST("/purchase-orders/:id/receive", h.receivePurchaseOrder)
		v1.POST("/purchase-orders/:id/process", h.processPurchaseOrder)

		v1.GET("/batches/expiring", h.expiringBatches)
		v1.GET("/batches/:id", h.getBatch)
		v1.POST("/batches/:id/transfer", h.transferToKitchen)

		v1.GET("/transfers/expiring", h.expiringTransfers)
		v1.GET("/transfers/:id", h.getTransfer)
		v1.POST("/transfers/:id/use", h.useTransfer)
		v1.POST("/transfers/:id/return", h.returnTransfer)
		v1.POST("/transfers/:id/expire", h.expireTransfer)

		v1.POST("/bills/generate", h.generateBill)
		v1.POST("/bills/bulk", h.generateBulkBills)
		v1.POST("/bills/mark-overdue", h.markOverdueBills)
		v1.GET("/bills/:id", h.getBill)
		v1.GET("/bills/:id/payments", h.listPayments)
		v1.POST("/bills/:id/payments", h.recordPayment)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) checkAvailability(c *gin.Context) {
	dishID, ok := pathID(c, "id")
	if !ok {
		return
	}
	quantity, ok := queryQuantity(c)
	if !ok {
		return
	}

	report, err := h.inventory.CheckStockAvailability(c.Request.Context(), dishID, quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) dishCost(c *gin.Context) {
	dishID, ok := pathID(c, "id")
	if !ok {
		return
	}
	quantity, ok := queryQuantity(c)
	if !ok {
		return
	}

	report, err := h.resolver.Cost(c.Request.Context(), dishID, quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type saleRequest struct {
	DishID   int64 `json:"dish_id" binding:"required"`
	Quantity int64 `json:"quantity" binding:"required,min=1"`
	ActorID  int64 `json:"actor_id"`
}

func (h *Handler) recordSale(c *gin.Context) {
	var req saleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.inventory.SubtractStockFromDishSale(c.Request.Context(), req.DishID, req.Quantity, req.ActorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type bulkSaleRequest struct {
	Items   []service.SaleItem `json:"items" binding:"required,min=1"`
	ActorID int64              `json:"actor_id"`
}

func (h *Handler) recordBulkSale(c *gin.Context) {
	var req bulkSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result := h.inventory.SubtractStockBulk(c.Request.Context(), req.Items, req.ActorID)
	status := http.StatusOK
	if result.SuccessCount == 0 && result.ErrorCount > 0 {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, result)
}

func (h *Handler) lowStockIngredients(c *gin.Context) {
	ingredients, err := h.inventory.GetLowStockIngredients(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":       len(ingredients),
		"ingredients": ingredients,
	})
}

func (h *Handler) stockLevel(c *gin.Context) {
	ingredientID, ok := pathID(c, "id")
	if !ok {
		return
	}

	level, err := h.inventory.GetStockLevel(c.Request.Context(), ingredientID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, level)
}

func (h *Handler) createPurchaseOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	order, err := h.orders.Create(c.Request.Context(), &req, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) getPurchaseOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, err := h.orders.Get(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) updatePurchaseOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.UpdateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	order, err := h.orders.Update(c.Request.Context(), orderID, &req, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) submitPurchaseOrder(c *gin.Context) {
	h.transitionPurchaseOrder(c, h.orders.Submit)
}

func (h *Handler) approvePurchaseOrder(c *gin.Context) {
	h.transitionPurchaseOrder(c, h.orders.Approve)
}

func (h *Handler) cancelPurchaseOrder(c *gin.Context) {
	h.transitionPurchaseOrder(c, h.orders.Cancel)
}

func (h *Handler) transitionPurchaseOrder(c *gin.Context, op func(ctx context.Context, orderID, actorID int64) (*models.PurchaseOrder, error)) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, err := op(c.Request.Context(), orderID, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) receivePurchaseOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req service.ReceiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.ReceiptID == "" {
		req.ReceiptID = c.GetHeader("Idempotency-Key")
	}

	result, err := h.orders.ProcessReceive(c.Request.Context(), orderID, &req, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type processRequest struct {
	ReceiptID string               `json:"receipt_id"`
	Options   *service.BillOptions `json:"options"`
}

func (h *Handler) processPurchaseOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.ReceiptID == "" {
		req.ReceiptID = c.GetHeader("Idempotency-Key")
	}

	result, err := h.billing.ProcessReceivedPurchaseOrder(c.Request.Context(), orderID, req.ReceiptID, req.Options, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func queryDays(c *gin.Context, fallback int64) (int64, bool) {
	days := fallback
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid days parameter"})
			return 0, false
		}
		days = parsed
	}
	return days, true
}

func (h *Handler) expiringBatches(c *gin.Context) {
	days, ok := queryDays(c, 3)
	if !ok {
		return
	}

	batches, err := h.batches.GetExpiringBatches(c.Request.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(batches),
		"batches": batches,
	})
}

func (h *Handler) expiringTransfers(c *gin.Context) {
	days, ok := queryDays(c, 3)
	if !ok {
		return
	}

	transfers, err := h.batches.GetExpiringTransfers(c.Request.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":     len(transfers),
		"transfers": transfers,
	})
}

func (h *Handler) getBatch(c *gin.Context) {
	batchID, ok := pathID(c, "id")
	if !ok {
		return
	}

	batch, err := h.batches.GetBatch(c.Request.Context(), batchID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

type transferRequest struct {
	Quantity decimal.Decimal `json:"quantity" binding:"required"`
	ActorID  int64           `json:"actor_id"`
	Notes    string          `json:"notes"`
}

func (h *Handler) transferToKitchen(c *gin.Context) {
	batchID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	transfer, err := h.batches.TransferToKitchen(c.Request.Context(), batchID, req.Quantity, req.ActorID, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, transfer)
}

func (h *Handler) getTransfer(c *gin.Context) {
	transferID, ok := pathID(c, "id")
	if !ok {
		return
	}

	transfer, err := h.batches.GetTransfer(c.Request.Context(), transferID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, transfer)
}

type transferQuantityRequest struct {
	Quantity decimal.Decimal `json:"quantity" binding:"required"`
	ActorID  int64           `json:"actor_id"`
	Notes    string          `json:"notes"`
}

func (h *Handler) useTransfer(c *gin.Context) {
	transferID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req transferQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	transfer, err := h.batches.UseTransfer(c.Request.Context(), transferID, req.Quantity, req.ActorID, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, transfer)
}

func (h *Handler) returnTransfer(c *gin.Context) {
	transferID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req transferQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	transfer, err := h.batches.ReturnToStock(c.Request.Context(), transferID, req.Quantity, req.ActorID, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, transfer)
}

func (h *Handler) expireTransfer(c *gin.Context) {
	transferID, ok := pathID(c, "id")
	if !ok {
		return
	}

	transfer, err := h.batches.MarkTransferExpired(c.Request.Context(), transferID, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, transfer)
}

type generateBillRequest struct {
	PurchaseOrderID int64                `json:"purchase_order_id" binding:"required"`
	Options         *service.BillOptions `json:"options"`
}

func (h *Handler) generateBill(c *gin.Context) {
	var req generateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	bill, err := h.billing.GenerateBillFromPurchaseOrder(c.Request.Context(), req.PurchaseOrderID, req.Options, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bill)
}

type bulkBillRequest struct {
	PurchaseOrderIDs []int64              `json:"purchase_order_ids" binding:"required,min=1"`
	Options          *service.BillOptions `json:"options"`
}

func (h *Handler) generateBulkBills(c *gin.Context) {
	var req bulkBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result := h.billing.GenerateBulkBills(c.Request.Context(), req.PurchaseOrderIDs, req.Options, actorID(c))
	c.JSON(http.StatusOK, result)
}

func (h *Handler) markOverdueBills(c *gin.Context) {
	marked, err := h.billing.MarkOverdueBills(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked_overdue": marked})
}

func (h *Handler) getBill(c *gin.Context) {
	billID, ok := pathID(c, "id")
	if !ok {
		return
	}

	bill, err := h.billing.GetBill(c.Request.Context(), billID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bill)
}

func (h *Handler) listPayments(c *gin.Context) {
	billID, ok := pathID(c, "id")
	if !ok {
		return
	}

	payments, err := h.billing.GetPayments(c.Request.Context(), billID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    len(payments),
		"payments": payments,
	})
}

func (h *Handler) recordPayment(c *gin.Context) {
	billID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req struct {
		service.PaymentRequest
		ActorID int64 `json:"actor_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.billing.RecordPayment(c.Request.Context(), billID, &req.PaymentRequest, req.ActorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name + " parameter"})
		return 0, false
	}
	return id, true
}

func queryQuantity(c *gin.Context) (int64, bool) {
	quantity := int64(1)
	if raw := c.Query("quantity"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid quantity parameter"})
			return 0, false
		}
		quantity = parsed
	}
	return quantity, true
}

func actorID(c *gin.Context) int64 {
	id, _ := strconv.ParseInt(c.GetHeader("X-Actor-ID"), 10, 64)
	return id
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

// respondError maps domain errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	var notFound *models.NotFoundError
	var validation *models.ValidationError
	var insufficient *models.InsufficientStockError
	var transition *models.InvalidStateTransitionError
	var overLimit *models.OverLimitError

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &insufficient):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      err.Error(),
			"shortfalls": insufficient.Shortfalls,
		})
	case errors.As(err, &transition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &overLimit):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"details": err.Error(),
		})
	}
}
