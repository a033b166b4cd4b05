package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeDishSaleRequested = "DISH_SALE_REQUESTED"
	EventTypeStockDeducted     = "STOCK_DEDUCTED"
	EventTypeStockDeductFailed = "STOCK_DEDUCT_FAILED"
	EventTypeLowStockAlert     = "LOW_STOCK_ALERT"
	EventTypeStockReceived     = "STOCK_RECEIVED"
	EventTypeTransferCreated   = "KITCHEN_TRANSFER_CREATED"
	EventTypeBillGenerated     = "BILL_GENERATED"
	EventTypePaymentRecorded   = "PAYMENT_RECORDED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// DishSaleRequestedEvent asks the service to deduct stock for a sold dish.
// Published by the order-taking system, consumed by the sale worker.
type DishSaleRequestedEvent struct {
	BaseEvent
	DishID   int64 `json:"dish_id"`
	Quantity int64 `json:"quantity"`
	ActorID  int64 `json:"actor_id"`
}

// StockDeductedEvent published after a dish sale deduction commits.
type StockDeductedEvent struct {
	BaseEvent
	DishID       int64           `json:"dish_id"`
	DishName     string          `json:"dish_name"`
	QuantitySold int64           `json:"quantity_sold"`
	Ingredients  []StockMovement `json:"ingredients"`
}

// StockDeductFailedEvent published when a dish sale deduction aborts.
type StockDeductFailedEvent struct {
	BaseEvent
	DishID     int64            `json:"dish_id"`
	Quantity   int64            `json:"quantity"`
	Reason     string           `json:"reason"`
	Shortfalls []StockShortfall `json:"shortfalls,omitempty"`
}

// LowStockAlertEvent published when an ingredient crosses at or below its
// reorder level.
type LowStockAlertEvent struct {
	BaseEvent
	IngredientID   int64           `json:"ingredient_id"`
	IngredientName string          `json:"ingredient_name"`
	CurrentStock   decimal.Decimal `json:"current_stock"`
	ReorderLevel   decimal.Decimal `json:"reorder_level"`
}

// StockReceivedEvent published after purchase-order receipt processing.
type StockReceivedEvent struct {
	BaseEvent
	PurchaseOrderID int64           `json:"purchase_order_id"`
	ReceiptID       string          `json:"receipt_id"`
	SupplierID      int64           `json:"supplier_id"`
	Items           []StockMovement `json:"items"`
}

// TransferCreatedEvent published when stock is issued to the kitchen.
type TransferCreatedEvent struct {
	BaseEvent
	TransferID   int64           `json:"transfer_id"`
	StockBatchID int64           `json:"stock_batch_id"`
	IngredientID int64           `json:"ingredient_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	ActorID      int64           `json:"actor_id"`
}

// BillGeneratedEvent published when a bill is derived from a purchase order.
type BillGeneratedEvent struct {
	BaseEvent
	BillID          int64           `json:"bill_id"`
	BillNumber      string          `json:"bill_number"`
	PurchaseOrderID int64           `json:"purchase_order_id"`
	SupplierID      int64           `json:"supplier_id"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	DueDate         time.Time       `json:"due_date"`
}

// PaymentRecordedEvent published after a payment is applied to a bill.
type PaymentRecordedEvent struct {
	BaseEvent
	PaymentID   int64           `json:"payment_id"`
	BillID      int64           `json:"bill_id"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
	BillStatus  string          `json:"bill_status"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// StockMovement is one ingredient-level stock change inside an event payload.
type StockMovement struct {
	IngredientID   int64           `json:"ingredient_id"`
	IngredientName string          `json:"ingredient_name"`
	Quantity       decimal.Decimal `json:"quantity"`
	NewStock       decimal.Decimal `json:"new_stock"`
	BaseUnit       string          `json:"base_unit"`
}
