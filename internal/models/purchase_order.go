package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase order statuses
const (
	OrderStatusDraft              = "draft"
	OrderStatusPending            = "pending"
	OrderStatusConfirmed          = "confirmed"
	OrderStatusPartiallyDelivered = "partially_delivered"
	OrderStatusDelivered          = "delivered"
	OrderStatusCancelled          = "cancelled"
)

// PurchaseOrder accumulates received quantities over one or more receive
// calls. Edits are permitted only before confirmation.
type PurchaseOrder struct {
	ID                 int64           `db:"id" json:"id"`
	OrderNumber        string          `db:"order_number" json:"order_number"`
	SupplierID         int64           `db:"supplier_id" json:"supplier_id"`
	Status             string          `db:"status" json:"status"`
	OrderDate          time.Time       `db:"order_date" json:"order_date"`
	ExpectedDelivery   *time.Time      `db:"expected_delivery" json:"expected_delivery,omitempty"`
	ActualDeliveryDate *time.Time      `db:"actual_delivery_date" json:"actual_delivery_date,omitempty"`
	Subtotal           decimal.Decimal `db:"subtotal" json:"subtotal"`
	TaxAmount          decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	TotalAmount        decimal.Decimal `db:"total_amount" json:"total_amount"`
	Notes              string          `db:"notes" json:"notes,omitempty"`
	CreatedBy          int64           `db:"created_by" json:"created_by"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// Editable reports whether the order may still be modified.
func (o *PurchaseOrder) Editable() bool {
	return o.Status == OrderStatusDraft || o.Status == OrderStatusPending
}

// Receivable reports whether goods may be received against the order.
func (o *PurchaseOrder) Receivable() bool {
	return o.Status == OrderStatusConfirmed || o.Status == OrderStatusPartiallyDelivered
}

// Terminal reports whether the order reached an end state.
func (o *PurchaseOrder) Terminal() bool {
	return o.Status == OrderStatusDelivered || o.Status == OrderStatusCancelled
}

// Submit moves draft → pending.
func (o *PurchaseOrder) Submit() error {
	if o.Status != OrderStatusDraft {
		return &InvalidStateTransitionError{Entity: "purchase_order", EntityID: o.ID, From: o.Status, Action: "submit"}
	}
	o.Status = OrderStatusPending
	return nil
}

// Approve moves pending → confirmed.
func (o *PurchaseOrder) Approve() error {
	if o.Status != OrderStatusPending {
		return &InvalidStateTransitionError{Entity: "purchase_order", EntityID: o.ID, From: o.Status, Action: "approve"}
	}
	o.Status = OrderStatusConfirmed
	return nil
}

// Cancel moves any non-terminal state → cancelled.
func (o *PurchaseOrder) Cancel() error {
	if o.Terminal() {
		return &InvalidStateTransitionError{Entity: "purchase_order", EntityID: o.ID, From: o.Status, Action: "cancel"}
	}
	o.Status = OrderStatusCancelled
	return nil
}

// PurchaseOrderItem is one line on an order. ReceivedQuantity is cumulative
// across receive calls and is capped at OrderedQuantity. ConversionFactor
// converts one purchase unit into ingredient base units (a case of 24 → 24).
type PurchaseOrderItem struct {
	ID               int64           `db:"id" json:"id"`
	PurchaseOrderID  int64           `db:"purchase_order_id" json:"purchase_order_id"`
	IngredientID     int64           `db:"ingredient_id" json:"ingredient_id"`
	OrderedQuantity  decimal.Decimal `db:"ordered_quantity" json:"ordered_quantity"`
	ReceivedQuantity decimal.Decimal `db:"received_quantity" json:"received_quantity"`
	UnitPrice        decimal.Decimal `db:"unit_price" json:"unit_price"`
	TotalPrice       decimal.Decimal `db:"total_price" json:"total_price"`
	UnitOfMeasure    string          `db:"unit_of_measure" json:"unit_of_measure"`
	ConversionFactor decimal.Decimal `db:"conversion_factor" json:"conversion_factor"`
	Notes            string          `db:"notes" json:"notes,omitempty"`
}

// FullyReceived reports whether the line's cumulative receipts cover the
// ordered quantity.
func (it *PurchaseOrderItem) FullyReceived() bool {
	return it.ReceivedQuantity.GreaterThanOrEqual(it.OrderedQuantity)
}

// Receive adds qty to the cumulative received quantity and returns the stock
// credit in ingredient base units. Negative deltas are rejected, and the
// cumulative total may not pass the ordered quantity.
func (it *PurchaseOrderItem) Receive(qty decimal.Decimal) (decimal.Decimal, error) {
	if qty.IsNegative() {
		return decimal.Zero, &ValidationError{Field: "received_quantity", Reason: "must not be negative"}
	}
	newReceived := it.ReceivedQuantity.Add(qty)
	if newReceived.GreaterThan(it.OrderedQuantity) {
		return decimal.Zero, &OverLimitError{
			Entity:    "purchase_order_item",
			EntityID:  it.ID,
			Action:    "receive",
			Limit:     it.OrderedQuantity.Sub(it.ReceivedQuantity),
			Requested: qty,
		}
	}
	it.ReceivedQuantity = newReceived
	return qty.Mul(it.ConversionFactor), nil
}
