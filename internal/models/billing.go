package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentTerms is a supplier-level policy fixing a bill's due-date offset.
type PaymentTerms string

// Supported payment terms
const (
	TermsCOD   PaymentTerms = "COD"
	TermsNet7  PaymentTerms = "NET_7"
	TermsNet15 PaymentTerms = "NET_15"
	TermsNet30 PaymentTerms = "NET_30"
	TermsNet60 PaymentTerms = "NET_60"
	TermsNet90 PaymentTerms = "NET_90"
)

// OffsetDays is the number of days between bill date and due date. Unknown
// terms default to 30 days.
func (pt PaymentTerms) OffsetDays() int {
	switch pt {
	case TermsCOD:
		return 0
	case TermsNet7:
		return 7
	case TermsNet15:
		return 15
	case TermsNet30:
		return 30
	case TermsNet60:
		return 60
	case TermsNet90:
		return 90
	default:
		return 30
	}
}

// DueDate applies the terms offset to a bill date.
func (pt PaymentTerms) DueDate(billDate time.Time) time.Time {
	return billDate.AddDate(0, 0, pt.OffsetDays())
}

// Bill statuses
const (
	BillStatusPending       = "pending"
	BillStatusPartiallyPaid = "partially_paid"
	BillStatusPaid          = "paid"
	BillStatusOverdue       = "overdue"
	BillStatusCancelled     = "cancelled"
)

// Bill is derived from a received purchase order; at most one exists per
// order. outstanding_amount == total_amount - paid_amount at all times.
type Bill struct {
	ID                    int64           `db:"id" json:"id"`
	BillNumber            string          `db:"bill_number" json:"bill_number"`
	PurchaseOrderID       int64           `db:"purchase_order_id" json:"purchase_order_id"`
	SupplierID            int64           `db:"supplier_id" json:"supplier_id"`
	SupplierInvoiceNumber string          `db:"supplier_invoice_number" json:"supplier_invoice_number,omitempty"`
	BillDate              time.Time       `db:"bill_date" json:"bill_date"`
	DueDate               time.Time       `db:"due_date" json:"due_date"`
	Subtotal              decimal.Decimal `db:"subtotal" json:"subtotal"`
	TaxAmount             decimal.Decimal `db:"tax_amount" json:"tax_amount"`
	DiscountAmount        decimal.Decimal `db:"discount_amount" json:"discount_amount"`
	TotalAmount           decimal.Decimal `db:"total_amount" json:"total_amount"`
	PaidAmount            decimal.Decimal `db:"paid_amount" json:"paid_amount"`
	OutstandingAmount     decimal.Decimal `db:"outstanding_amount" json:"outstanding_amount"`
	Status                string          `db:"status" json:"status"`
	Notes                 string          `db:"notes" json:"notes,omitempty"`
	CreatedAt             time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at" json:"updated_at"`
}

// CanReceivePayment reports whether the bill accepts further payments.
func (b *Bill) CanReceivePayment() bool {
	return b.Status != BillStatusPaid && b.Status != BillStatusCancelled && b.OutstandingAmount.IsPositive()
}

// IsOverdue reports whether the bill is past due with money outstanding.
func (b *Bill) IsOverdue(now time.Time) bool {
	return b.DueDate.Before(now) && b.OutstandingAmount.IsPositive() &&
		b.Status != BillStatusPaid && b.Status != BillStatusCancelled
}

// ApplyPayment validates amount against the outstanding balance, then
// recomputes paid/outstanding amounts and the bill status.
func (b *Bill) ApplyPayment(amount decimal.Decimal, now time.Time) error {
	if !amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	if !b.CanReceivePayment() {
		return &InvalidStateTransitionError{Entity: "bill", EntityID: b.ID, From: b.Status, Action: "pay"}
	}
	if amount.GreaterThan(b.OutstandingAmount) {
		return &OverLimitError{Entity: "bill", EntityID: b.ID, Action: "pay", Limit: b.OutstandingAmount, Requested: amount}
	}

	b.PaidAmount = b.PaidAmount.Add(amount)
	b.OutstandingAmount = b.TotalAmount.Sub(b.PaidAmount)

	switch {
	case !b.OutstandingAmount.IsPositive():
		b.Status = BillStatusPaid
	case b.DueDate.Before(now):
		b.Status = BillStatusOverdue
	default:
		b.Status = BillStatusPartiallyPaid
	}
	return nil
}

// Payment methods
const (
	PaymentMethodCash     = "cash"
	PaymentMethodBank     = "bank_transfer"
	PaymentMethodCheck    = "check"
	PaymentMethodCard     = "card"
	PaymentMethodExternal = "external_gateway"
)

// Payment is one append-only payment applied against a bill. Rows are never
// edited after creation.
type Payment struct {
	ID                   int64           `db:"id" json:"id"`
	PaymentReference     string          `db:"payment_reference" json:"payment_reference"`
	BillID               int64           `db:"bill_id" json:"bill_id"`
	SupplierID           int64           `db:"supplier_id" json:"supplier_id"`
	PaymentDate          time.Time       `db:"payment_date" json:"payment_date"`
	Amount               decimal.Decimal `db:"amount" json:"amount"`
	Method               string          `db:"method" json:"method"`
	TransactionReference string          `db:"transaction_reference" json:"transaction_reference,omitempty"`
	Notes                string          `db:"notes" json:"notes,omitempty"`
	CreatedBy            int64           `db:"created_by" json:"created_by"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
}
