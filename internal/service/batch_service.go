package service

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"inventory-billing/internal/broker"
	"inventory-billing/internal/models"
	"inventory-billing/internal/store"
	"inventory-billing/internal/util"
)

// BatchService manages the second inventory tier: discrete stock batches and
// the kitchen transfers drawn from them.
type BatchService struct {
	store  *store.Store
	events *broker.EventPublisher
	logger *zap.Logger
}

// NewBatchService creates a new batch service
func NewBatchService(store *store.Store, events *broker.EventPublisher) *BatchService {
	return &BatchService{
		store:  store,
		events: events,
		logger: util.GetLogger(),
	}
}

// TransferToKitchen issues qty from an available batch to the kitchen. The
// transfer inherits the batch's expiry date, and the batch flips to
// transferred when drained.
func (s *BatchService) TransferToKitchen(ctx context.Context, batchID int64, qty decimal.Decimal, actorID int64, notes string) (*models.KitchenTransfer, error) {
	ctx, span := util.StartSpan(ctx, "BatchService.TransferToKitchen")
	defer span.End()

	if !qty.IsPositive() {
		return nil, &models.ValidationError{Field: "quantity", Reason: "must be positive"}
	}

	var transfer *models.KitchenTransfer
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		batch, err := s.store.LockStockBatchTx(ctx, tx, batchID)
		if err != nil {
			return err
		}
		if batch.IsExpired(time.Now()) {
			return &models.InvalidStateTransitionError{
				Entity: "stock_batch", EntityID: batch.ID, From: models.BatchStatusExpired, Action: "transfer",
			}
		}
		if err := batch.TransferOut(qty); err != nil {
			return err
		}

		transfer = &models.KitchenTransfer{
			StockBatchID:        batch.ID,
			IngredientID:        batch.IngredientID,
			QuantityTransferred: qty,
			QuantityRemaining:   qty,
			Unit:                batch.Unit,
			TransferDate:        time.Now(),
			ExpiryDate:          batch.ExpiryDate,
			TransferredBy:       actorID,
			Status:              models.TransferStatusActive,
			Notes:               notes,
		}
		if err := s.store.CreateKitchenTransferTx(ctx, tx, transfer); err != nil {
			return err
		}
		return s.store.UpdateStockBatchTx(ctx, tx, batch)
	})
	if err != nil {
		return nil, err
	}

	util.KitchenTransfersTotal.Inc()
	s.logger.Info("Stock transferred to kitchen",
		zap.Int64("transfer_id", transfer.ID),
		zap.Int64("stock_batch_id", transfer.StockBatchID),
		zap.Int64("ingredient_id", transfer.IngredientID),
		zap.String("quantity", qty.String()),
		zap.Int64("actor_id", actorID))

	event := &models.TransferCreatedEvent{
		BaseEvent:    newBaseEvent(models.EventTypeTransferCreated),
		TransferID:   transfer.ID,
		StockBatchID: transfer.StockBatchID,
		IngredientID: transfer.IngredientID,
		Quantity:     qty,
		ActorID:      actorID,
	}
	if err := s.events.PublishTransferCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish TransferCreated event", zap.Error(err))
	}

	return transfer, nil
}

// appendNote joins an additional note onto an existing notes field, one note
// per line. Blank notes leave the field untouched.
func appendNote(existing, note string) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return existing
	}
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}

// UseTransfer consumes qty from an active kitchen transfer.
func (s *BatchService) UseTransfer(ctx context.Context, transferID int64, qty decimal.Decimal, actorID int64, notes string) (*models.KitchenTransfer, error) {
	ctx, span := util.StartSpan(ctx, "BatchService.UseTransfer")
	defer span.End()

	var transfer *models.KitchenTransfer
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		transfer, err = s.store.LockKitchenTransferTx(ctx, tx, transferID)
		if err != nil {
			return err
		}
		if err := transfer.Use(qty); err != nil {
			return err
		}
		transfer.Notes = appendNote(transfer.Notes, notes)
		return s.store.UpdateKitchenTransferTx(ctx, tx, transfer)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Kitchen transfer used",
		zap.Int64("transfer_id", transfer.ID),
		zap.String("quantity_used", qty.String()),
		zap.String("quantity_remaining", transfer.QuantityRemaining.String()),
		zap.Int64("actor_id", actorID))
	return transfer, nil
}

// ReturnToStock undoes prior kitchen use: the transfer's remaining quantity
// and the source batch are credited symmetrically, capped at what was used.
// Both updates commit together so the two tiers cannot drift apart.
func (s *BatchService) ReturnToStock(ctx context.Context, transferID int64, qty decimal.Decimal, actorID int64, notes string) (*models.KitchenTransfer, error) {
	ctx, span := util.StartSpan(ctx, "BatchService.ReturnToStock")
	defer span.End()

	var transfer *models.KitchenTransfer
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		transfer, err = s.store.LockKitchenTransferTx(ctx, tx, transferID)
		if err != nil {
			return err
		}
		batch, err := s.store.LockStockBatchTx(ctx, tx, transfer.StockBatchID)
		if err != nil {
			return err
		}
		if err := transfer.Return(qty); err != nil {
			return err
		}
		batch.Restock(qty)
		transfer.Notes = appendNote(transfer.Notes, notes)
		if err := s.store.UpdateKitchenTransferTx(ctx, tx, transfer); err != nil {
			return err
		}
		return s.store.UpdateStockBatchTx(ctx, tx, batch)
	})
	if err != nil {
		return nil, err
	}

	util.KitchenReturnsTotal.Inc()
	s.logger.Info("Kitchen transfer returned to stock",
		zap.Int64("transfer_id", transfer.ID),
		zap.Int64("stock_batch_id", transfer.StockBatchID),
		zap.String("quantity_returned", qty.String()),
		zap.Int64("actor_id", actorID))
	return transfer, nil
}

// MarkTransferExpired flips an active transfer to expired once its inherited
// expiry date has passed.
func (s *BatchService) MarkTransferExpired(ctx context.Context, transferID, actorID int64) (*models.KitchenTransfer, error) {
	ctx, span := util.StartSpan(ctx, "BatchService.MarkTransferExpired")
	defer span.End()

	var transfer *models.KitchenTransfer
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		transfer, err = s.store.LockKitchenTransferTx(ctx, tx, transferID)
		if err != nil {
			return err
		}
		if err := transfer.MarkExpired(); err != nil {
			return err
		}
		return s.store.UpdateKitchenTransferTx(ctx, tx, transfer)
	})
	if err != nil {
		return nil, err
	}

	util.ExpiredRecordsTotal.WithLabelValues("transfer").Inc()
	s.logger.Info("Kitchen transfer marked expired",
		zap.Int64("transfer_id", transfer.ID),
		zap.Int64("actor_id", actorID))
	return transfer, nil
}

// SweepResult counts records flipped to expired by one sweep pass.
type SweepResult struct {
	ExpiredBatches   int64 `json:"expired_batches"`
	ExpiredTransfers int64 `json:"expired_transfers"`
}

// SweepExpired expires every available batch and active transfer whose
// expiry date has passed. Safe to run repeatedly.
func (s *BatchService) SweepExpired(ctx context.Context) (*SweepResult, error) {
	ctx, span := util.StartSpan(ctx, "BatchService.SweepExpired")
	defer span.End()

	now := time.Now()
	result := &SweepResult{}
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		result.ExpiredBatches, err = s.store.ExpireBatchesTx(ctx, tx, now)
		if err != nil {
			return err
		}
		result.ExpiredTransfers, err = s.store.ExpireTransfersTx(ctx, tx, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	if result.ExpiredBatches > 0 || result.ExpiredTransfers > 0 {
		util.ExpiredRecordsTotal.WithLabelValues("batch").Add(float64(result.ExpiredBatches))
		util.ExpiredRecordsTotal.WithLabelValues("transfer").Add(float64(result.ExpiredTransfers))
		s.logger.Info("Expired stock sweep completed",
			zap.Int64("expired_batches", result.ExpiredBatches),
			zap.Int64("expired_transfers", result.ExpiredTransfers))
	}
	return result, nil
}

// GetExpiringBatches lists available batches expiring within the window.
func (s *BatchService) GetExpiringBatches(ctx context.Context, within time.Duration) ([]models.StockBatch, error) {
	return s.store.GetExpiringBatches(ctx, within)
}

// GetExpiringTransfers lists active kitchen transfers expiring within the window.
func (s *BatchService) GetExpiringTransfers(ctx context.Context, within time.Duration) ([]models.KitchenTransfer, error) {
	return s.store.GetExpiringTransfers(ctx, within)
}

// GetBatch returns one stock batch.
func (s *BatchService) GetBatch(ctx context.Context, id int64) (*models.StockBatch, error) {
	return s.store.GetStockBatch(ctx, id)
}

// GetTransfer returns one kitchen transfer.
func (s *BatchService) GetTransfer(ctx context.Context, id int64) (*models.KitchenTransfer, error) {
	return s.store.GetKitchenTransfer(ctx, id)
}
