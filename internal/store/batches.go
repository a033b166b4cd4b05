package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"inventory-billing/internal/models"
)

// GetStockBatch retrieves a stock batch by ID
func (s *Store) GetStockBatch(ctx context.Context, id int64) (*models.StockBatch, error) {
	var batch models.StockBatch
	err := s.db.GetContext(ctx, &batch, "SELECT * FROM stock_batches WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Entity: "stock_batch", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &batch, nil
}

// LockStockBatchTx loads a batch row under FOR UPDATE
func (s *Store) LockStockBatchTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.StockBatch, error) {
	var batch models.StockBatch
	err := tx.GetContext(ctx, &batch, "SELECT * FROM stock_batches WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Entity: "stock_batch", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock stock batch %d: %w", id, err)
	}
	return &batch, nil
}

// CreateStockBatchTx inserts a new batch row
func (s *Store) CreateStockBatchTx(ctx context.Context, tx *sqlx.Tx, batch *models.StockBatch) error {
	query := `
		INSERT INTO stock_batches
			(ingredient_id, batch_number, quantity, unit, unit_cost, expiry_date, received_date, status, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	return tx.QueryRowxContext(ctx, query,
		batch.IngredientID, batch.BatchNumber, batch.Quantity, batch.Unit, batch.UnitCost,
		batch.ExpiryDate, batch.ReceivedDate, batch.Status, batch.Notes, batch.CreatedBy,
	).Scan(&batch.ID, &batch.CreatedAt, &batch.UpdatedAt)
}

// UpdateStockBatchTx persists quantity and status changes on a batch
func (s *Store) UpdateStockBatchTx(ctx context.Context, tx *sqlx.Tx, batch *models.StockBatch) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE stock_batches SET quantity = $1, status = $2, notes = $3, updated_at = NOW() WHERE id = $4",
		batch.Quantity, batch.Status, batch.Notes, batch.ID)
	return err
}

// GetKitchenTransfer retrieves a kitchen transfer by ID
func (s *Store) GetKitchenTransfer(ctx context.Context, id int64) (*models.KitchenTransfer, error) {
	var transfer models.KitchenTransfer
	err := s.db.GetContext(ctx, &transfer, "SELECT * FROM kitchen_transfers WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Entity: "kitchen_transfer", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

// LockKitchenTransferTx loads a transfer row under FOR UPDATE
func (s *Store) LockKitchenTransferTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.KitchenTransfer, error) {
	var transfer models.KitchenTransfer
	err := tx.GetContext(ctx, &transfer, "SELECT * FROM kitchen_transfers WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Entity: "kitchen_transfer", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock kitchen transfer %d: %w", id, err)
	}
	return &transfer, nil
}

// CreateKitchenTransferTx inserts a new transfer row
func (s *Store) CreateKitchenTransferTx(ctx context.Context, tx *sqlx.Tx, transfer *models.KitchenTransfer) error {
	query := `
		INSERT INTO kitchen_transfers
			(stock_batch_id, ingredient_id, quantity_transferred, quantity_remaining, unit,
			 transfer_date, expiry_date, transferred_by, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	return tx.QueryRowxContext(ctx, query,
		transfer.StockBatchID, transfer.IngredientID, transfer.QuantityTransferred, transfer.QuantityRemaining,
		transfer.Unit, transfer.TransferDate, transfer.ExpiryDate, transfer.TransferredBy,
		transfer.Status, transfer.Notes,
	).Scan(&transfer.ID, &transfer.CreatedAt, &transfer.UpdatedAt)
}

// UpdateKitchenTransferTx persists remaining quantity and status changes
func (s *Store) UpdateKitchenTransferTx(ctx context.Context, tx *sqlx.Tx, transfer *models.KitchenTransfer) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE kitchen_transfers SET quantity_remaining = $1, status = $2, notes = $3, updated_at = NOW() WHERE id = $4",
		transfer.QuantityRemaining, transfer.Status, transfer.Notes, transfer.ID)
	return err
}

// ExpireBatchesTx flips every available batch whose expiry date has passed,
// regardless of remaining quantity. Returns rows affected.
func (s *Store) ExpireBatchesTx(ctx context.Context, tx *sqlx.Tx, now time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE stock_batches SET status = $1, updated_at = NOW() WHERE status = $2 AND expiry_date IS NOT NULL AND expiry_date < $3",
		models.BatchStatusExpired, models.BatchStatusAvailable, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ExpireTransfersTx flips every active transfer whose expiry date has passed.
// Returns rows affected.
func (s *Store) ExpireTransfersTx(ctx context.Context, tx *sqlx.Tx, now time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx,
		"UPDATE kitchen_transfers SET status = $1, updated_at = NOW() WHERE status = $2 AND expiry_date IS NOT NULL AND expiry_date < $3",
		models.TransferStatusExpired, models.TransferStatusActive, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetExpiringBatches retrieves available batches expiring within the window
func (s *Store) GetExpiringBatches(ctx context.Context, within time.Duration) ([]models.StockBatch, error) {
	var batches []models.StockBatch
	err := s.db.SelectContext(ctx, &batches,
		"SELECT * FROM stock_batches WHERE status = $1 AND expiry_date IS NOT NULL AND expiry_date <= $2 ORDER BY expiry_date",
		models.BatchStatusAvailable, time.Now().Add(within))
	return batches, err
}

// GetExpiringTransfers retrieves active kitchen transfers expiring within the window
func (s *Store) GetExpiringTransfers(ctx context.Context, within time.Duration) ([]models.KitchenTransfer, error) {
	var transfers []models.KitchenTransfer
	err := s.db.SelectContext(ctx, &transfers,
		"SELECT * FROM kitchen_transfers WHERE status = $1 AND expiry_date IS NOT NULL AND expiry_date <= $2 ORDER BY expiry_date",
		models.TransferStatusActive, time.Now().Add(within))
	return transfers, err
}
