package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"inventory-billing/internal/broker"
	"inventory-billing/internal/models"
	"inventory-billing/internal/redisclient"
	"inventory-billing/internal/service"
	"inventory-billing/internal/util"
)

// SaleWorker consumes dish sale events and deducts ingredient stock.
type SaleWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	inventory    *service.InventoryService
	logger       *zap.Logger
}

// NewSaleWorker creates a new sale worker
func NewSaleWorker(consumer *broker.Consumer, inventory *service.InventoryService) *SaleWorker {
	eventHandler := broker.NewEventHandler()
	logger := util.GetLogger()

	eventHandler.OnDishSaleRequested(func(ctx context.Context, event *models.DishSaleRequestedEvent) error {
		_, err := inventory.SubtractStockFromDishSale(ctx, event.DishID, event.Quantity, event.ActorID)
		if err != nil {
			// Insufficient stock is a terminal outcome for the sale, not a
			// transient failure; commit the message instead of redelivering.
			var insufficient *models.InsufficientStockError
			if errors.As(err, &insufficient) {
				logger.Warn("Sale event rejected for insufficient stock",
					zap.String("event_id", event.EventID),
					zap.Int64("dish_id", event.DishID))
				return nil
			}
			return err
		}
		return nil
	})

	return &SaleWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		inventory:    inventory,
		logger:       logger,
	}
}

// Start starts the worker
func (w *SaleWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting sale worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *SaleWorker) Stop() error {
	w.logger.Info("Stopping sale worker")
	return w.consumer.Close()
}

// SweepWorker periodically marks overdue bills and expires stale batches and
// transfers. A redis lock keeps concurrent replicas from sweeping at once.
type SweepWorker struct {
	batches  *service.BatchService
	billing  *service.BillingService
	redis    *redisclient.Client
	interval time.Duration
	logger   *zap.Logger
}

// NewSweepWorker creates a new sweep worker
func NewSweepWorker(
	batches *service.BatchService,
	billing *service.BillingService,
	redis *redisclient.Client,
	interval time.Duration,
) *SweepWorker {
	return &SweepWorker{
		batches:  batches,
		billing:  billing,
		redis:    redis,
		interval: interval,
		logger:   util.GetLogger(),
	}
}

// Start runs the sweep loop until the context is cancelled. One pass runs
// immediately on startup.
func (w *SweepWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting sweep worker", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Sweep worker context cancelled, stopping")
			return ctx.Err()
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *SweepWorker) sweep(ctx context.Context) {
	acquired, err := w.redis.AcquireLock(ctx, "sweep", w.interval)
	if err != nil {
		w.logger.Warn("Failed to acquire sweep lock", zap.Error(err))
		return
	}
	if !acquired {
		w.logger.Debug("Sweep lock held elsewhere, skipping pass")
		return
	}
	defer func() {
		if err := w.redis.ReleaseLock(ctx, "sweep"); err != nil {
			w.logger.Warn("Failed to release sweep lock", zap.Error(err))
		}
	}()

	if _, err := w.billing.MarkOverdueBills(ctx); err != nil {
		w.logger.Error("Overdue bill sweep failed", zap.Error(err))
	}
	if _, err := w.batches.SweepExpired(ctx); err != nil {
		w.logger.Error("Expired stock sweep failed", zap.Error(err))
	}
}
