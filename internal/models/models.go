package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ingredient is the authoritative running stock record for one ingredient,
// kept in base units. current_stock is the single source of truth consumed at
// sale time.
type Ingredient struct {
	ID           int64           `db:"id" json:"id"`
	Name         string          `db:"name" json:"name"`
	BaseUnit     string          `db:"base_unit" json:"base_unit"`
	CurrentStock decimal.Decimal `db:"current_stock" json:"current_stock"`
	ReorderLevel decimal.Decimal `db:"reorder_level" json:"reorder_level"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// IsLowStock reports whether the ingredient is at or below its reorder level.
func (i *Ingredient) IsLowStock() bool {
	return i.CurrentStock.LessThanOrEqual(i.ReorderLevel)
}

// Stock batch statuses
const (
	BatchStatusAvailable   = "available"
	BatchStatusTransferred = "transferred"
	BatchStatusExpired     = "expired"
	BatchStatusDamaged     = "damaged"
)

// StockBatch is a discrete received lot with its own cost and expiry. Batches
// are bookkept independently of the sale-time ledger; they exist for expiry
// tracking, waste accounting and physical reconciliation.
type StockBatch struct {
	ID           int64           `db:"id" json:"id"`
	IngredientID int64           `db:"ingredient_id" json:"ingredient_id"`
	BatchNumber  string          `db:"batch_number" json:"batch_number"`
	Quantity     decimal.Decimal `db:"quantity" json:"quantity"`
	Unit         string          `db:"unit" json:"unit"`
	UnitCost     decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	ExpiryDate   *time.Time      `db:"expiry_date" json:"expiry_date,omitempty"`
	ReceivedDate time.Time       `db:"received_date" json:"received_date"`
	Status       string          `db:"status" json:"status"`
	Notes        string          `db:"notes" json:"notes,omitempty"`
	CreatedBy    int64           `db:"created_by" json:"created_by"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// IsExpired reports whether the batch's expiry date has passed.
func (b *StockBatch) IsExpired(now time.Time) bool {
	return b.ExpiryDate != nil && now.After(*b.ExpiryDate)
}

// TransferOut removes qty from the batch for a kitchen transfer. The batch
// flips to transferred when its quantity reaches zero.
func (b *StockBatch) TransferOut(qty decimal.Decimal) error {
	if b.Status != BatchStatusAvailable {
		return &InvalidStateTransitionError{Entity: "stock_batch", EntityID: b.ID, From: b.Status, Action: "transfer"}
	}
	if !qty.IsPositive() {
		return &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if qty.GreaterThan(b.Quantity) {
		return &OverLimitError{Entity: "stock_batch", EntityID: b.ID, Action: "transfer", Limit: b.Quantity, Requested: qty}
	}
	b.Quantity = b.Quantity.Sub(qty)
	if b.Quantity.IsZero() {
		b.Status = BatchStatusTransferred
	}
	return nil
}

// Restock returns qty to the batch (kitchen return path) and reactivates a
// fully transferred batch.
func (b *StockBatch) Restock(qty decimal.Decimal) {
	b.Quantity = b.Quantity.Add(qty)
	if b.Status == BatchStatusTransferred && b.Quantity.IsPositive() {
		b.Status = BatchStatusAvailable
	}
}

// Kitchen transfer statuses
const (
	TransferStatusActive   = "active"
	TransferStatusUsedUp   = "used_up"
	TransferStatusExpired  = "expired"
	TransferStatusReturned = "returned"
)

// KitchenTransfer is a sub-allocation of a batch issued to active kitchen
// use, depleted independently of the ingredient ledger.
type KitchenTransfer struct {
	ID                  int64           `db:"id" json:"id"`
	StockBatchID        int64           `db:"stock_batch_id" json:"stock_batch_id"`
	IngredientID        int64           `db:"ingredient_id" json:"ingredient_id"`
	QuantityTransferred decimal.Decimal `db:"quantity_transferred" json:"quantity_transferred"`
	QuantityRemaining   decimal.Decimal `db:"quantity_remaining" json:"quantity_remaining"`
	Unit                string          `db:"unit" json:"unit"`
	TransferDate        time.Time       `db:"transfer_date" json:"transfer_date"`
	ExpiryDate          *time.Time      `db:"expiry_date" json:"expiry_date,omitempty"`
	TransferredBy       int64           `db:"transferred_by" json:"transferred_by"`
	Status              string          `db:"status" json:"status"`
	Notes               string          `db:"notes" json:"notes,omitempty"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

// UsedQuantity is how much of the transfer has been consumed so far.
func (t *KitchenTransfer) UsedQuantity() decimal.Decimal {
	return t.QuantityTransferred.Sub(t.QuantityRemaining)
}

// IsExpired reports whether the transfer's inherited expiry date has passed.
func (t *KitchenTransfer) IsExpired(now time.Time) bool {
	return t.ExpiryDate != nil && now.After(*t.ExpiryDate)
}

// Use consumes qty from the transfer. The transfer flips to used_up when
// nothing remains.
func (t *KitchenTransfer) Use(qty decimal.Decimal) error {
	if t.Status != TransferStatusActive {
		return &InvalidStateTransitionError{Entity: "kitchen_transfer", EntityID: t.ID, From: t.Status, Action: "use"}
	}
	if !qty.IsPositive() {
		return &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if qty.GreaterThan(t.QuantityRemaining) {
		return &OverLimitError{Entity: "kitchen_transfer", EntityID: t.ID, Action: "use", Limit: t.QuantityRemaining, Requested: qty}
	}
	t.QuantityRemaining = t.QuantityRemaining.Sub(qty)
	if t.QuantityRemaining.IsZero() {
		t.Status = TransferStatusUsedUp
	}
	return nil
}

// Return puts qty back onto the transfer, undoing prior use. At most the
// already-used quantity can be returned; a terminal transfer reactivates when
// quantity becomes positive again. The originating batch must be restocked
// symmetrically by the caller.
func (t *KitchenTransfer) Return(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if qty.GreaterThan(t.UsedQuantity()) {
		return &OverLimitError{Entity: "kitchen_transfer", EntityID: t.ID, Action: "return", Limit: t.UsedQuantity(), Requested: qty}
	}
	t.QuantityRemaining = t.QuantityRemaining.Add(qty)
	if (t.Status == TransferStatusUsedUp || t.Status == TransferStatusReturned) && t.QuantityRemaining.IsPositive() {
		t.Status = TransferStatusActive
	}
	return nil
}

// MarkExpired is the forced terminal transition, applied manually or by the
// expiry sweep regardless of remaining quantity.
func (t *KitchenTransfer) MarkExpired() error {
	if t.Status == TransferStatusExpired {
		return &InvalidStateTransitionError{Entity: "kitchen_transfer", EntityID: t.ID, From: t.Status, Action: "expire"}
	}
	t.Status = TransferStatusExpired
	return nil
}

// Dish statuses
const (
	DishStatusActive   = "active"
	DishStatusInactive = "inactive"
)

// Dish is a menu item, consumed from menu management.
type Dish struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DishIngredient maps a dish to one required ingredient per serving.
type DishIngredient struct {
	ID                 int64           `db:"id" json:"id"`
	DishID             int64           `db:"dish_id" json:"dish_id"`
	IngredientID       int64           `db:"ingredient_id" json:"ingredient_id"`
	QuantityPerServing decimal.Decimal `db:"quantity_per_serving" json:"quantity_per_serving"`
	Unit               string          `db:"unit" json:"unit"`
	IsOptional         bool            `db:"is_optional" json:"is_optional"`
}

// Supplier is consumed from the supplier directory; only identity and payment
// terms matter here.
type Supplier struct {
	ID           int64        `db:"id" json:"id"`
	Name         string       `db:"name" json:"name"`
	PaymentTerms PaymentTerms `db:"payment_terms" json:"payment_terms"`
	IsActive     bool         `db:"is_active" json:"is_active"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

// SupplierOffer is a priced package offer of one ingredient by one supplier.
// Package quantity is expressed in the ingredient's base unit.
type SupplierOffer struct {
	ID                   int64           `db:"id" json:"id"`
	SupplierID           int64           `db:"supplier_id" json:"supplier_id"`
	IngredientID         int64           `db:"ingredient_id" json:"ingredient_id"`
	PackageUnit          string          `db:"package_unit" json:"package_unit"`
	PackageQuantity      decimal.Decimal `db:"package_quantity" json:"package_quantity"`
	PackagePrice         decimal.Decimal `db:"package_price" json:"package_price"`
	LeadTimeDays         int             `db:"lead_time_days" json:"lead_time_days"`
	MinimumOrderQuantity decimal.Decimal `db:"minimum_order_quantity" json:"minimum_order_quantity"`
	IsActive             bool            `db:"is_active" json:"is_active"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}

// CostPerBaseUnit is the offer's package price spread over its package
// quantity. Returns zero for a degenerate package quantity.
func (o *SupplierOffer) CostPerBaseUnit() decimal.Decimal {
	if !o.PackageQuantity.IsPositive() {
		return decimal.Zero
	}
	return o.PackagePrice.Div(o.PackageQuantity)
}

// ProcessedReceipt records a handled purchase-order receipt so replays of the
// same payload cannot double-count stock.
type ProcessedReceipt struct {
	PurchaseOrderID int64     `db:"purchase_order_id"`
	ReceiptID       string    `db:"receipt_id"`
	ProcessedAt     time.Time `db:"processed_at"`
}
