package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"inventory-billing/internal/models"
)

// GetBill retrieves a bill by ID
func (s *Store) GetBill(ctx context.Context, id int64) (*models.Bill, error) {
	var bill models.Bill
	err := s.db.GetContext(ctx, &bill, "SELECT * FROM bills WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Entity: "bill", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

// GetBillByPurchaseOrderTx checks for an existing bill on an order. Returns
// nil when no bill exists yet; at most one ever does.
func (s *Store) GetBillByPurchaseOrderTx(ctx context.Context, tx *sqlx.Tx, orderID int64) (*models.Bill, error) {
	var bill models.Bill
	err := tx.GetContext(ctx, &bill, "SELECT * FROM bills WHERE purchase_order_id = $1", orderID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bill, nil
}

// CreateBillTx inserts a new bill. A unique index on purchase_order_id backs
// up the one-bill-per-order invariant under concurrency.
func (s *Store) CreateBillTx(ctx context.Context, tx *sqlx.Tx, bill *models.Bill) error {
	query := `
		INSERT INTO bills
			(bill_number, purchase_order_id, supplier_id, supplier_invoice_number, bill_date, due_date,
			 subtotal, tax_amount, discount_amount, total_amount, paid_amount, outstanding_amount, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at, updated_at`

	return tx.QueryRowxContext(ctx, query,
		bill.BillNumber, bill.PurchaseOrderID, bill.SupplierID, bill.SupplierInvoiceNumber,
		bill.BillDate, bill.DueDate, bill.Subtotal, bill.TaxAmount, bill.DiscountAmount,
		bill.TotalAmount, bill.PaidAmount, bill.OutstandingAmount, bill.Status, bill.Notes,
	).Scan(&bill.ID, &bill.CreatedAt, &bill.UpdatedAt)
}

// LockBillTx loads a bill row under FOR UPDATE so concurrent payments against
// the same bill serialize.
func (s *Store) LockBillTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Bill, error) {
	var bill models.Bill
	err := tx.GetContext(ctx, &bill, "SELECT * FROM bills WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Entity: "bill", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock bill %d: %w", id, err)
	}
	return &bill, nil
}

// UpdateBillTx persists amount and status changes on a bill
func (s *Store) UpdateBillTx(ctx context.Context, tx *sqlx.Tx, bill *models.Bill) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE bills SET paid_amount = $1, outstanding_amount = $2, status = $3, updated_at = NOW() WHERE id = $4",
		bill.PaidAmount, bill.OutstandingAmount, bill.Status, bill.ID)
	return err
}

// CreatePaymentTx appends an immutable payment row
func (s *Store) CreatePaymentTx(ctx context.Context, tx *sqlx.Tx, payment *models.Payment) error {
	query := `
		INSERT INTO payments
			(payment_reference, bill_id, supplier_id, payment_date, amount, method, transaction_reference, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	return tx.QueryRowxContext(ctx, query,
		payment.PaymentReference, payment.BillID, payment.SupplierID, payment.PaymentDate,
		payment.Amount, payment.Method, payment.TransactionReference, payment.Notes, payment.CreatedBy,
	).Scan(&payment.ID, &payment.CreatedAt)
}

// GetPaymentsByBill retrieves the payment ledger of a bill, oldest first
func (s *Store) GetPaymentsByBill(ctx context.Context, billID int64) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.SelectContext(ctx, &payments,
		"SELECT * FROM payments WHERE bill_id = $1 ORDER BY created_at", billID)
	return payments, err
}

// MarkOverdueBillsTx sweeps bills past due with money outstanding into the
// overdue status. Idempotent; returns rows affected.
func (s *Store) MarkOverdueBillsTx(ctx context.Context, tx *sqlx.Tx, now time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE bills SET status = $1, updated_at = NOW()
		WHERE due_date < $2 AND outstanding_amount > 0 AND status NOT IN ($1, $3, $4)`,
		models.BillStatusOverdue, now, models.BillStatusPaid, models.BillStatusCancelled)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
