package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"inventory-billing/internal/models"
)

// CreatePurchaseOrderTx inserts an order and its items in one transaction
func (s *Store) CreatePurchaseOrderTx(ctx context.Context, tx *sqlx.Tx, order *models.PurchaseOrder, items []models.PurchaseOrderItem) error {
	query := `
		INSERT INTO purchase_orders
			(order_number, supplier_id, status, order_date, expected_delivery, subtotal, tax_amount, total_amount, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	err := tx.QueryRowxContext(ctx, query,
		order.OrderNumber, order.SupplierID, order.Status, order.OrderDate, order.ExpectedDelivery,
		order.Subtotal, order.TaxAmount, order.TotalAmount, order.Notes, order.CreatedBy,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create purchase order: %w", err)
	}

	for i := range items {
		items[i].PurchaseOrderID = order.ID
		if err := s.createPurchaseOrderItemTx(ctx, tx, &items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) createPurchaseOrderItemTx(ctx context.Context, tx *sqlx.Tx, item *models.PurchaseOrderItem) error {
	query := `
		INSERT INTO purchase_order_items
			(purchase_order_id, ingredient_id, ordered_quantity, received_quantity, unit_price,
			 total_price, unit_of_measure, conversion_factor, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	return tx.QueryRowxContext(ctx, query,
		item.PurchaseOrderID, item.IngredientID, item.OrderedQuantity, item.ReceivedQuantity,
		item.UnitPrice, item.TotalPrice, item.UnitOfMeasure, item.ConversionFactor, item.Notes,
	).Scan(&item.ID)
}

// GetPurchaseOrder retrieves a purchase order by ID
func (s *Store) GetPurchaseOrder(ctx context.Context, id int64) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	err := s.db.GetContext(ctx, &order, "SELECT * FROM purchase_orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Entity: "purchase_order", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetPurchaseOrderItems retrieves all line items of an order
func (s *Store) GetPurchaseOrderItems(ctx context.Context, orderID int64) ([]models.PurchaseOrderItem, error) {
	var items []models.PurchaseOrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM purchase_order_items WHERE purchase_order_id = $1 ORDER BY id", orderID)
	return items, err
}

// LockPurchaseOrderTx loads an order row under FOR UPDATE so concurrent
// receives and cancellations serialize on it.
func (s *Store) LockPurchaseOrderTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.PurchaseOrder, error) {
	var order models.PurchaseOrder
	err := tx.GetContext(ctx, &order, "SELECT * FROM purchase_orders WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Entity: "purchase_order", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock purchase order %d: %w", id, err)
	}
	return &order, nil
}

// LockPurchaseOrderItemsTx loads all items of an order under FOR UPDATE
func (s *Store) LockPurchaseOrderItemsTx(ctx context.Context, tx *sqlx.Tx, orderID int64) ([]models.PurchaseOrderItem, error) {
	var items []models.PurchaseOrderItem
	err := tx.SelectContext(ctx, &items,
		"SELECT * FROM purchase_order_items WHERE purchase_order_id = $1 ORDER BY id FOR UPDATE", orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock items of purchase order %d: %w", orderID, err)
	}
	return items, nil
}

// UpdatePurchaseOrderTx persists header changes on an order
func (s *Store) UpdatePurchaseOrderTx(ctx context.Context, tx *sqlx.Tx, order *models.PurchaseOrder) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE purchase_orders
		SET status = $1, expected_delivery = $2, actual_delivery_date = $3,
		    subtotal = $4, tax_amount = $5, total_amount = $6, notes = $7, updated_at = NOW()
		WHERE id = $8`,
		order.Status, order.ExpectedDelivery, order.ActualDeliveryDate,
		order.Subtotal, order.TaxAmount, order.TotalAmount, order.Notes, order.ID)
	return err
}

// UpdateItemReceivedTx persists the cumulative received quantity of one item
func (s *Store) UpdateItemReceivedTx(ctx context.Context, tx *sqlx.Tx, item *models.PurchaseOrderItem) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE purchase_order_items SET received_quantity = $1 WHERE id = $2",
		item.ReceivedQuantity, item.ID)
	return err
}

// ReplacePurchaseOrderItemsTx swaps the full item set of a draft/pending order
func (s *Store) ReplacePurchaseOrderItemsTx(ctx context.Context, tx *sqlx.Tx, orderID int64, items []models.PurchaseOrderItem) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM purchase_order_items WHERE purchase_order_id = $1", orderID); err != nil {
		return fmt.Errorf("failed to clear items of purchase order %d: %w", orderID, err)
	}
	for i := range items {
		items[i].PurchaseOrderID = orderID
		if err := s.createPurchaseOrderItemTx(ctx, tx, &items[i]); err != nil {
			return err
		}
	}
	return nil
}

// MarkReceiptProcessedTx records a receipt id for an order. Returns false
// when the receipt was already processed (duplicate submission).
func (s *Store) MarkReceiptProcessedTx(ctx context.Context, tx *sqlx.Tx, orderID int64, receiptID string) (bool, error) {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO processed_receipts (purchase_order_id, receipt_id) VALUES ($1, $2) ON CONFLICT (purchase_order_id, receipt_id) DO NOTHING",
		orderID, receiptID)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// IsReceiptProcessed checks whether a receipt id was already handled
func (s *Store) IsReceiptProcessed(ctx context.Context, orderID int64, receiptID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_receipts WHERE purchase_order_id = $1 AND receipt_id = $2)",
		orderID, receiptID)
	return exists, err
}
