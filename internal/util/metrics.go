package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SalesProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dish_sales_processed_total",
		Help: "Total number of dish sales with stock deducted",
	})

	SalesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dish_sales_failed_total",
		Help: "Total number of dish sales rejected",
	}, []string{"reason"})

	LowStockAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "low_stock_alerts_total",
		Help: "Total number of ingredients that crossed their reorder level",
	})

	PurchaseOrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchase_orders_created_total",
		Help: "Total number of purchase orders created",
	})

	StockReceiptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchase_order_receipts_total",
		Help: "Total number of purchase order receipts processed",
	})

	DuplicateReceiptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchase_order_receipts_duplicate_total",
		Help: "Total number of replayed receipts rejected by dedup",
	})

	KitchenTransfersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kitchen_transfers_total",
		Help: "Total number of stock batch transfers to the kitchen",
	})

	KitchenReturnsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kitchen_returns_total",
		Help: "Total number of kitchen returns back to stock",
	})

	BillsGeneratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bills_generated_total",
		Help: "Total number of bills derived from purchase orders",
	})

	BillsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bills_failed_total",
		Help: "Total number of failed bill generations",
	}, []string{"reason"})

	PaymentsRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_recorded_total",
		Help: "Total number of supplier payments recorded",
	})

	OverdueBillsMarkedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "overdue_bills_marked_total",
		Help: "Total number of bills flipped to overdue by the sweep",
	})

	ExpiredRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "expired_records_total",
		Help: "Total number of batches and transfers expired by the sweep",
	}, []string{"tier"})

	SaleDeductionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dish_sale_deduction_latency_seconds",
		Help:    "Latency of dish sale stock deductions",
		Buckets: prometheus.DefBuckets,
	})

	ReceiveProcessingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "purchase_order_receive_latency_seconds",
		Help:    "Latency of purchase order receipt processing",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
