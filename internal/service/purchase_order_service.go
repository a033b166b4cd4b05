package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"inventory-billing/internal/models"
	"inventory-billing/internal/store"
	"inventory-billing/internal/util"
)

// PurchaseOrderService owns the purchase-order lifecycle from draft through
// delivery, including receipt processing against confirmed orders.
type PurchaseOrderService struct {
	store     *store.Store
	inventory *InventoryService
	logger    *zap.Logger
}

// NewPurchaseOrderService creates a new purchase order service
func NewPurchaseOrderService(store *store.Store, inventory *InventoryService) *PurchaseOrderService {
	return &PurchaseOrderService{
		store:     store,
		inventory: inventory,
		logger:    util.GetLogger(),
	}
}

// OrderItemRequest is one requested line of a purchase order.
type OrderItemRequest struct {
	IngredientID     int64           `json:"ingredient_id" binding:"required"`
	OrderedQuantity  decimal.Decimal `json:"ordered_quantity" binding:"required"`
	UnitPrice        decimal.Decimal `json:"unit_price" binding:"required"`
	UnitOfMeasure    string          `json:"unit_of_measure" binding:"required"`
	ConversionFactor decimal.Decimal `json:"conversion_factor"`
	Notes            string          `json:"notes"`
}

// CreateOrderRequest is the payload for creating a purchase order.
type CreateOrderRequest struct {
	SupplierID       int64              `json:"supplier_id" binding:"required"`
	OrderDate        time.Time          `json:"order_date"`
	ExpectedDelivery *time.Time         `json:"expected_delivery"`
	TaxRate          *decimal.Decimal   `json:"tax_rate"`
	Notes            string             `json:"notes"`
	Items            []OrderItemRequest `json:"items" binding:"required,min=1"`
}

// UpdateOrderRequest replaces the mutable fields of a draft or pending order.
type UpdateOrderRequest struct {
	ExpectedDelivery *time.Time         `json:"expected_delivery"`
	TaxRate          *decimal.Decimal   `json:"tax_rate"`
	Notes            string             `json:"notes"`
	Items            []OrderItemRequest `json:"items" binding:"required,min=1"`
}

// ReceiveItemRequest is one received line of a delivery.
type ReceiveItemRequest struct {
	ItemID     int64           `json:"item_id" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity" binding:"required"`
	ExpiryDate *time.Time      `json:"expiry_date"`
}

// ReceiveRequest records one delivery against a purchase order. ReceiptID is
// the caller's idempotency key: resubmitting the same receipt is a no-op.
type ReceiveRequest struct {
	ReceiptID    string               `json:"receipt_id" binding:"required"`
	DeliveryDate *time.Time           `json:"delivery_date"`
	Items        []ReceiveItemRequest `json:"items" binding:"required,min=1"`
}

// ReceiveResult is the outcome of one receive call.
type ReceiveResult struct {
	PurchaseOrderID  int64               `json:"purchase_order_id"`
	OrderNumber      string              `json:"order_number"`
	Status           string              `json:"status"`
	ReceiptID        string              `json:"receipt_id"`
	AlreadyProcessed bool                `json:"already_processed,omitempty"`
	Items            []ReceiptItemResult `json:"items,omitempty"`
}

// OrderWithItems bundles an order with its lines for read endpoints.
type OrderWithItems struct {
	models.PurchaseOrder
	Items []models.PurchaseOrderItem `json:"items"`
}

func buildOrderItems(requests []OrderItemRequest) ([]models.PurchaseOrderItem, decimal.Decimal, error) {
	items := make([]models.PurchaseOrderItem, 0, len(requests))
	subtotal := decimal.Zero
	for i, req := range requests {
		if !req.OrderedQuantity.IsPositive() {
			return nil, decimal.Zero, &models.ValidationError{
				Field:  fmt.Sprintf("items[%d].ordered_quantity", i),
				Reason: "must be positive",
			}
		}
		if req.UnitPrice.IsNegative() {
			return nil, decimal.Zero, &models.ValidationError{
				Field:  fmt.Sprintf("items[%d].unit_price", i),
				Reason: "must not be negative",
			}
		}
		factor := req.ConversionFactor
		if factor.IsZero() {
			factor = decimal.NewFromInt(1)
		}
		if !factor.IsPositive() {
			return nil, decimal.Zero, &models.ValidationError{
				Field:  fmt.Sprintf("items[%d].conversion_factor", i),
				Reason: "must be positive",
			}
		}
		total := req.OrderedQuantity.Mul(req.UnitPrice).Round(2)
		subtotal = subtotal.Add(total)
		items = append(items, models.PurchaseOrderItem{
			IngredientID:     req.IngredientID,
			OrderedQuantity:  req.OrderedQuantity,
			ReceivedQuantity: decimal.Zero,
			UnitPrice:        req.UnitPrice,
			TotalPrice:       total,
			UnitOfMeasure:    req.UnitOfMeasure,
			ConversionFactor: factor,
			Notes:            req.Notes,
		})
	}
	return items, subtotal, nil
}

func orderTotals(subtotal decimal.Decimal, taxRate *decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	rate := decimal.Zero
	if taxRate != nil {
		rate = *taxRate
	}
	tax := subtotal.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
	return tax, subtotal.Add(tax)
}

// Create opens a new draft order against an active supplier.
func (s *PurchaseOrderService) Create(ctx context.Context, req *CreateOrderRequest, actorID int64) (*OrderWithItems, error) {
	ctx, span := util.StartSpan(ctx, "PurchaseOrderService.Create")
	defer span.End()

	supplier, err := s.store.GetSupplier(ctx, req.SupplierID)
	if err != nil {
		return nil, err
	}
	if !supplier.IsActive {
		return nil, &models.ValidationError{Field: "supplier_id", Reason: "supplier is inactive"}
	}

	items, subtotal, err := buildOrderItems(req.Items)
	if err != nil {
		return nil, err
	}
	tax, total := orderTotals(subtotal, req.TaxRate)

	orderDate := req.OrderDate
	if orderDate.IsZero() {
		orderDate = time.Now()
	}

	order := &models.PurchaseOrder{
		OrderNumber:      newOrderNumber(orderDate),
		SupplierID:       supplier.ID,
		Status:           models.OrderStatusDraft,
		OrderDate:        orderDate,
		ExpectedDelivery: req.ExpectedDelivery,
		Subtotal:         subtotal,
		TaxAmount:        tax,
		TotalAmount:      total,
		Notes:            req.Notes,
		CreatedBy:        actorID,
	}

	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.store.CreatePurchaseOrderTx(ctx, tx, order, items)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Purchase order created",
		zap.Int64("purchase_order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("supplier_id", supplier.ID),
		zap.String("total_amount", total.String()),
		zap.Int64("actor_id", actorID))

	util.PurchaseOrdersCreatedTotal.Inc()
	return &OrderWithItems{PurchaseOrder: *order, Items: items}, nil
}

// Get returns an order with its lines.
func (s *PurchaseOrderService) Get(ctx context.Context, orderID int64) (*OrderWithItems, error) {
	order, err := s.store.GetPurchaseOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.GetPurchaseOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &OrderWithItems{PurchaseOrder: *order, Items: items}, nil
}

// Update replaces the lines and mutable fields of a draft or pending order.
// Totals are recomputed from the new lines.
func (s *PurchaseOrderService) Update(ctx context.Context, orderID int64, req *UpdateOrderRequest, actorID int64) (*OrderWithItems, error) {
	ctx, span := util.StartSpan(ctx, "PurchaseOrderService.Update")
	defer span.End()

	items, subtotal, err := buildOrderItems(req.Items)
	if err != nil {
		return nil, err
	}
	tax, total := orderTotals(subtotal, req.TaxRate)

	var order *models.PurchaseOrder
	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		order, err = s.store.LockPurchaseOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !order.Editable() {
			return &models.InvalidStateTransitionError{
				Entity: "purchase_order", EntityID: order.ID, From: order.Status, Action: "update",
			}
		}

		order.ExpectedDelivery = req.ExpectedDelivery
		order.Subtotal = subtotal
		order.TaxAmount = tax
		order.TotalAmount = total
		order.Notes = req.Notes

		if err := s.store.ReplacePurchaseOrderItemsTx(ctx, tx, order.ID, items); err != nil {
			return err
		}
		return s.store.UpdatePurchaseOrderTx(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Purchase order updated",
		zap.Int64("purchase_order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("actor_id", actorID))

	return &OrderWithItems{PurchaseOrder: *order, Items: items}, nil
}

// Submit moves a draft order to pending approval.
func (s *PurchaseOrderService) Submit(ctx context.Context, orderID, actorID int64) (*models.PurchaseOrder, error) {
	return s.transition(ctx, orderID, actorID, "submitted", func(o *models.PurchaseOrder) error {
		return o.Submit()
	})
}

// Approve confirms a pending order with the supplier.
func (s *PurchaseOrderService) Approve(ctx context.Context, orderID, actorID int64) (*models.PurchaseOrder, error) {
	return s.transition(ctx, orderID, actorID, "approved", func(o *models.PurchaseOrder) error {
		return o.Approve()
	})
}

// Cancel cancels any order that has not reached a terminal state.
func (s *PurchaseOrderService) Cancel(ctx context.Context, orderID, actorID int64) (*models.PurchaseOrder, error) {
	return s.transition(ctx, orderID, actorID, "cancelled", func(o *models.PurchaseOrder) error {
		return o.Cancel()
	})
}

func (s *PurchaseOrderService) transition(ctx context.Context, orderID, actorID int64, verb string, apply func(*models.PurchaseOrder) error) (*models.PurchaseOrder, error) {
	ctx, span := util.StartSpan(ctx, "PurchaseOrderService.transition")
	defer span.End()

	var order *models.PurchaseOrder
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		order, err = s.store.LockPurchaseOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if err := apply(order); err != nil {
			return err
		}
		return s.store.UpdatePurchaseOrderTx(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Purchase order "+verb,
		zap.Int64("purchase_order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("status", order.Status),
		zap.Int64("actor_id", actorID))
	return order, nil
}

// ProcessReceive records one delivery: per item it bumps the cumulative
// received quantity, credits the ingredient ledger in base units and creates
// a stock batch, then settles the order's delivery status. All of it happens
// in one transaction keyed by the receipt id.
func (s *PurchaseOrderService) ProcessReceive(ctx context.Context, orderID int64, req *ReceiveRequest, actorID int64) (*ReceiveResult, error) {
	ctx, span := util.StartSpan(ctx, "PurchaseOrderService.ProcessReceive")
	defer span.End()

	start := time.Now()
	defer func() {
		util.ReceiveProcessingLatency.Observe(time.Since(start).Seconds())
	}()

	var result *ReceiveResult
	var stock *ReceiptStockResult
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		result, stock, err = s.processReceiveTx(ctx, tx, orderID, req, actorID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if stock != nil {
		s.inventory.afterReceipt(ctx, stock)
	}
	return result, nil
}

func (s *PurchaseOrderService) processReceiveTx(ctx context.Context, tx *sqlx.Tx, orderID int64, req *ReceiveRequest, actorID int64) (*ReceiveResult, *ReceiptStockResult, error) {
	if strings.TrimSpace(req.ReceiptID) == "" {
		return nil, nil, &models.ValidationError{Field: "receipt_id", Reason: "is required"}
	}

	fresh, err := s.store.MarkReceiptProcessedTx(ctx, tx, orderID, req.ReceiptID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to record receipt: %w", err)
	}
	if !fresh {
		util.DuplicateReceiptsTotal.Inc()
		s.logger.Info("Duplicate delivery receipt ignored",
			zap.Int64("purchase_order_id", orderID),
			zap.String("receipt_id", req.ReceiptID))
		return &ReceiveResult{PurchaseOrderID: orderID, ReceiptID: req.ReceiptID, AlreadyProcessed: true}, nil, nil
	}

	order, err := s.store.LockPurchaseOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if !order.Receivable() {
		return nil, nil, &models.InvalidStateTransitionError{
			Entity: "purchase_order", EntityID: order.ID, From: order.Status, Action: "receive against",
		}
	}

	items, err := s.store.LockPurchaseOrderItemsTx(ctx, tx, orderID)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[int64]*models.PurchaseOrderItem, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}

	stock := &ReceiptStockResult{PurchaseOrderID: orderID, SupplierID: order.SupplierID, ReceiptID: req.ReceiptID}
	result := &ReceiveResult{
		PurchaseOrderID: order.ID,
		OrderNumber:     order.OrderNumber,
		ReceiptID:       req.ReceiptID,
	}

	for _, line := range req.Items {
		item, ok := byID[line.ItemID]
		if !ok || item.PurchaseOrderID != order.ID {
			return nil, nil, &models.NotFoundError{Entity: "purchase order item", ID: line.ItemID}
		}
		if line.Quantity.IsZero() {
			result.Items = append(result.Items, ReceiptItemResult{
				ItemID:  item.ID,
				Message: "no received quantity to process",
			})
			continue
		}

		if _, err := item.Receive(line.Quantity); err != nil {
			return nil, nil, err
		}
		if err := s.store.UpdateItemReceivedTx(ctx, tx, item); err != nil {
			return nil, nil, err
		}

		lineResult, err := s.inventory.creditItemTx(ctx, tx, order, item, line.Quantity, line.ExpiryDate, actorID)
		if err != nil {
			return nil, nil, err
		}
		result.Items = append(result.Items, *lineResult)
		stock.Results = append(stock.Results, *lineResult)
		stock.ItemsProcessed++
	}

	allReceived := true
	anyReceived := false
	for i := range items {
		if items[i].ReceivedQuantity.IsPositive() {
			anyReceived = true
		}
		if !items[i].FullyReceived() {
			allReceived = false
		}
	}

	switch {
	case allReceived:
		order.Status = models.OrderStatusDelivered
	case anyReceived:
		order.Status = models.OrderStatusPartiallyDelivered
	}

	settleDelivery(order, stock.ItemsProcessed, req.DeliveryDate, time.Now())

	if err := s.store.UpdatePurchaseOrderTx(ctx, tx, order); err != nil {
		return nil, nil, err
	}
	result.Status = order.Status

	s.logger.Info("Delivery received against purchase order",
		zap.Int64("purchase_order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("receipt_id", req.ReceiptID),
		zap.String("status", order.Status),
		zap.Int("items_received", stock.ItemsProcessed),
		zap.Int64("actor_id", actorID))

	return result, stock, nil
}

// settleDelivery stamps the order's actual delivery date once a receipt has
// credited at least one item. A receipt whose lines were all zero quantity
// leaves the date untouched.
func settleDelivery(order *models.PurchaseOrder, itemsProcessed int, requested *time.Time, now time.Time) {
	if itemsProcessed == 0 {
		return
	}
	deliveredAt := now
	if requested != nil {
		deliveredAt = *requested
	}
	order.ActualDeliveryDate = &deliveredAt
}

func newOrderNumber(orderDate time.Time) string {
	return fmt.Sprintf("PO-%s-%s", orderDate.Format("20060102"), strings.ToUpper(uuid.New().String()[:8]))
}
