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

	"inventory-billing/internal/broker"
	"inventory-billing/internal/models"
	"inventory-billing/internal/store"
	"inventory-billing/internal/util"
)

// BillingService derives supplier bills from received purchase orders and
// keeps the append-only payment ledger against them.
type BillingService struct {
	store          *store.Store
	inventory      *InventoryService
	events         *broker.EventPublisher
	defaultTaxRate decimal.Decimal
	logger         *zap.Logger
}

// NewBillingService creates a new billing service
func NewBillingService(store *store.Store, inventory *InventoryService, events *broker.EventPublisher, defaultTaxRate decimal.Decimal) *BillingService {
	return &BillingService{
		store:          store,
		inventory:      inventory,
		events:         events,
		defaultTaxRate: defaultTaxRate,
		logger:         util.GetLogger(),
	}
}

// BillOptions are the caller-supplied knobs of bill generation. A nil TaxRate
// falls back to the configured default; the zero BillDate means today.
type BillOptions struct {
	BillDate              time.Time        `json:"bill_date"`
	SupplierInvoiceNumber string           `json:"supplier_invoice_number"`
	Notes                 string           `json:"notes"`
	TaxRate               *decimal.Decimal `json:"tax_rate"`
	DiscountAmount        decimal.Decimal  `json:"discount_amount"`
}

// billAmounts computes subtotal, tax, discount and total for a bill. The
// subtotal covers received quantities only, the discount applies before tax.
func billAmounts(items []models.PurchaseOrderItem, taxRate, discount decimal.Decimal) (subtotal, tax, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.ReceivedQuantity.Mul(item.UnitPrice))
	}
	subtotal = subtotal.Round(2)

	taxable := subtotal.Sub(discount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	tax = taxable.Mul(taxRate).Div(decimal.NewFromInt(100)).Round(2)
	total = taxable.Add(tax)
	return subtotal, tax, total
}

// GenerateBillFromPurchaseOrder creates the bill for a delivered or partially
// delivered order. At most one bill exists per order; the due date follows
// the supplier's payment terms.
func (s *BillingService) GenerateBillFromPurchaseOrder(ctx context.Context, orderID int64, opts *BillOptions, actorID int64) (*models.Bill, error) {
	ctx, span := util.StartSpan(ctx, "BillingService.GenerateBillFromPurchaseOrder")
	defer span.End()

	var bill *models.Bill
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		bill, err = s.generateBillTx(ctx, tx, orderID, opts, actorID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterBillGenerated(ctx, bill)
	return bill, nil
}

// generateBillTx is the transaction-scoped body of bill generation, shared
// with the combined receive-and-bill flow.
func (s *BillingService) generateBillTx(ctx context.Context, tx *sqlx.Tx, orderID int64, opts *BillOptions, actorID int64) (*models.Bill, error) {
	if opts == nil {
		opts = &BillOptions{}
	}
	if opts.DiscountAmount.IsNegative() {
		return nil, &models.ValidationError{Field: "discount_amount", Reason: "must not be negative"}
	}

	order, err := s.store.LockPurchaseOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusDelivered && order.Status != models.OrderStatusPartiallyDelivered {
		util.BillsFailedTotal.WithLabelValues("not_delivered").Inc()
		return nil, &models.InvalidStateTransitionError{
			Entity: "purchase_order", EntityID: order.ID, From: order.Status, Action: "generate bill from",
		}
	}

	existing, err := s.store.GetBillByPurchaseOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		util.BillsFailedTotal.WithLabelValues("already_billed").Inc()
		return nil, &models.ValidationError{
			Field:  "purchase_order_id",
			Reason: fmt.Sprintf("order already billed by %s", existing.BillNumber),
		}
	}

	supplier, err := s.store.GetSupplier(ctx, order.SupplierID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.GetPurchaseOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}

	taxRate := s.defaultTaxRate
	if opts.TaxRate != nil {
		taxRate = *opts.TaxRate
	}
	subtotal, tax, total := billAmounts(items, taxRate, opts.DiscountAmount)

	billDate := opts.BillDate
	if billDate.IsZero() {
		billDate = time.Now()
	}

	bill := &models.Bill{
		BillNumber:            newBillNumber(billDate),
		PurchaseOrderID:       order.ID,
		SupplierID:            supplier.ID,
		SupplierInvoiceNumber: opts.SupplierInvoiceNumber,
		BillDate:              billDate,
		DueDate:               supplier.PaymentTerms.DueDate(billDate),
		Subtotal:              subtotal,
		TaxAmount:             tax,
		DiscountAmount:        opts.DiscountAmount,
		TotalAmount:           total,
		PaidAmount:            decimal.Zero,
		OutstandingAmount:     total,
		Status:                models.BillStatusPending,
		Notes:                 opts.Notes,
	}
	if err := s.store.CreateBillTx(ctx, tx, bill); err != nil {
		return nil, err
	}

	s.logger.Info("Bill generated from purchase order",
		zap.Int64("bill_id", bill.ID),
		zap.String("bill_number", bill.BillNumber),
		zap.Int64("purchase_order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("total_amount", total.String()),
		zap.Time("due_date", bill.DueDate),
		zap.Int64("actor_id", actorID))
	return bill, nil
}

func (s *BillingService) afterBillGenerated(ctx context.Context, bill *models.Bill) {
	util.BillsGeneratedTotal.Inc()
	event := &models.BillGeneratedEvent{
		BaseEvent:       newBaseEvent(models.EventTypeBillGenerated),
		BillID:          bill.ID,
		BillNumber:      bill.BillNumber,
		PurchaseOrderID: bill.PurchaseOrderID,
		SupplierID:      bill.SupplierID,
		TotalAmount:     bill.TotalAmount,
		DueDate:         bill.DueDate,
	}
	if err := s.events.PublishBillGenerated(ctx, event); err != nil {
		s.logger.Error("Failed to publish BillGenerated event", zap.Error(err))
	}
}

// BulkBillItemResult is the per-order outcome of bulk bill generation.
type BulkBillItemResult struct {
	PurchaseOrderID int64        `json:"purchase_order_id"`
	Success         bool         `json:"success"`
	Error           string       `json:"error,omitempty"`
	Bill            *models.Bill `json:"bill,omitempty"`
}

// BulkBillResult collects per-order outcomes of bulk bill generation.
type BulkBillResult struct {
	SuccessCount int                  `json:"success_count"`
	ErrorCount   int                  `json:"error_count"`
	Items        []BulkBillItemResult `json:"items"`
}

// GenerateBulkBills generates bills for many orders, each independently: one
// ineligible order does not abort the rest.
func (s *BillingService) GenerateBulkBills(ctx context.Context, orderIDs []int64, opts *BillOptions, actorID int64) *BulkBillResult {
	ctx, span := util.StartSpan(ctx, "BillingService.GenerateBulkBills")
	defer span.End()

	bulk := &BulkBillResult{Items: make([]BulkBillItemResult, 0, len(orderIDs))}
	for _, orderID := range orderIDs {
		bill, err := s.GenerateBillFromPurchaseOrder(ctx, orderID, opts, actorID)
		if err != nil {
			bulk.ErrorCount++
			bulk.Items = append(bulk.Items, BulkBillItemResult{PurchaseOrderID: orderID, Error: err.Error()})
			continue
		}
		bulk.SuccessCount++
		bulk.Items = append(bulk.Items, BulkBillItemResult{PurchaseOrderID: orderID, Success: true, Bill: bill})
	}
	return bulk
}

// PaymentRequest records one payment against a bill.
type PaymentRequest struct {
	Amount               decimal.Decimal `json:"amount" binding:"required"`
	Method               string          `json:"method" binding:"required"`
	PaymentDate          *time.Time      `json:"payment_date"`
	TransactionReference string          `json:"transaction_reference"`
	Notes                string          `json:"notes"`
}

// PaymentResult bundles the appended payment with the bill it settled into.
type PaymentResult struct {
	Payment *models.Payment `json:"payment"`
	Bill    *models.Bill    `json:"bill"`
}

// RecordPayment applies a payment to a bill under a row lock and appends the
// immutable payment record in the same transaction. Overpayment is rejected,
// never clamped.
func (s *BillingService) RecordPayment(ctx context.Context, billID int64, req *PaymentRequest, actorID int64) (*PaymentResult, error) {
	ctx, span := util.StartSpan(ctx, "BillingService.RecordPayment")
	defer span.End()

	switch req.Method {
	case models.PaymentMethodCash, models.PaymentMethodBank, models.PaymentMethodCheck,
		models.PaymentMethodCard, models.PaymentMethodExternal:
	default:
		return nil, &models.ValidationError{Field: "method", Reason: "unsupported payment method"}
	}

	paymentDate := time.Now()
	if req.PaymentDate != nil {
		paymentDate = *req.PaymentDate
	}

	var result *PaymentResult
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		bill, err := s.store.LockBillTx(ctx, tx, billID)
		if err != nil {
			return err
		}
		if err := bill.ApplyPayment(req.Amount, time.Now()); err != nil {
			return err
		}

		payment := &models.Payment{
			PaymentReference:     newPaymentReference(paymentDate),
			BillID:               bill.ID,
			SupplierID:           bill.SupplierID,
			PaymentDate:          paymentDate,
			Amount:               req.Amount,
			Method:               req.Method,
			TransactionReference: req.TransactionReference,
			Notes:                req.Notes,
			CreatedBy:            actorID,
		}
		if err := s.store.CreatePaymentTx(ctx, tx, payment); err != nil {
			return err
		}
		if err := s.store.UpdateBillTx(ctx, tx, bill); err != nil {
			return err
		}
		result = &PaymentResult{Payment: payment, Bill: bill}
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.PaymentsRecordedTotal.Inc()
	s.logger.Info("Payment recorded",
		zap.Int64("payment_id", result.Payment.ID),
		zap.String("payment_reference", result.Payment.PaymentReference),
		zap.Int64("bill_id", result.Bill.ID),
		zap.String("amount", req.Amount.String()),
		zap.String("bill_status", result.Bill.Status),
		zap.Int64("actor_id", actorID))

	event := &models.PaymentRecordedEvent{
		BaseEvent:   newBaseEvent(models.EventTypePaymentRecorded),
		PaymentID:   result.Payment.ID,
		BillID:      result.Bill.ID,
		Amount:      req.Amount,
		Method:      req.Method,
		BillStatus:  result.Bill.Status,
		Outstanding: result.Bill.OutstandingAmount,
	}
	if err := s.events.PublishPaymentRecorded(ctx, event); err != nil {
		s.logger.Error("Failed to publish PaymentRecorded event", zap.Error(err))
	}

	return result, nil
}

// GetBill returns one bill.
func (s *BillingService) GetBill(ctx context.Context, id int64) (*models.Bill, error) {
	return s.store.GetBill(ctx, id)
}

// GetPayments lists the payment ledger of a bill, oldest first.
func (s *BillingService) GetPayments(ctx context.Context, billID int64) ([]models.Payment, error) {
	if _, err := s.store.GetBill(ctx, billID); err != nil {
		return nil, err
	}
	return s.store.GetPaymentsByBill(ctx, billID)
}

// MarkOverdueBills flips every past-due bill with an outstanding balance to
// overdue. Idempotent; run by the periodic sweep.
func (s *BillingService) MarkOverdueBills(ctx context.Context) (int64, error) {
	ctx, span := util.StartSpan(ctx, "BillingService.MarkOverdueBills")
	defer span.End()

	var marked int64
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		marked, err = s.store.MarkOverdueBillsTx(ctx, tx, time.Now())
		return err
	})
	if err != nil {
		return 0, err
	}

	if marked > 0 {
		util.OverdueBillsMarkedTotal.Add(float64(marked))
		s.logger.Info("Bills marked overdue", zap.Int64("count", marked))
	}
	return marked, nil
}

// ProcessReceivedResult is the outcome of the combined stock-and-bill flow.
type ProcessReceivedResult struct {
	Stock *ReceiptStockResult `json:"stock"`
	Bill  *models.Bill        `json:"bill,omitempty"`
}

// ProcessReceivedPurchaseOrder runs receipt stock crediting and bill
// generation as one transaction: either the ledger credit, the batches and
// the bill all commit, or none do.
func (s *BillingService) ProcessReceivedPurchaseOrder(ctx context.Context, orderID int64, receiptID string, opts *BillOptions, actorID int64) (*ProcessReceivedResult, error) {
	ctx, span := util.StartSpan(ctx, "BillingService.ProcessReceivedPurchaseOrder")
	defer span.End()

	result := &ProcessReceivedResult{}
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		stock, err := s.inventory.AddStockTx(ctx, tx, orderID, receiptID, actorID)
		if err != nil {
			return err
		}
		result.Stock = stock
		if stock.AlreadyProcessed {
			return nil
		}

		bill, err := s.generateBillTx(ctx, tx, orderID, opts, actorID)
		if err != nil {
			return err
		}
		result.Bill = bill
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.inventory.afterReceipt(ctx, result.Stock)
	if result.Bill != nil {
		s.afterBillGenerated(ctx, result.Bill)
	}
	return result, nil
}

func newBillNumber(billDate time.Time) string {
	return fmt.Sprintf("BILL-%d-%s", billDate.Year(), strings.ToUpper(uuid.New().String()[:8]))
}

func newPaymentReference(paymentDate time.Time) string {
	return fmt.Sprintf("PAY-%d-%s", paymentDate.Year(), strings.ToUpper(uuid.New().String()[:8]))
}
