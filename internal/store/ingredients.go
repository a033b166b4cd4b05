package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"inventory-billing/internal/models"
)

// GetIngredient retrieves an ingredient by ID
func (s *Store) GetIngredient(ctx context.Context, id int64) (*models.Ingredient, error) {
	var ing models.Ingredient
	err := s.db.GetContext(ctx, &ing, "SELECT * FROM ingredients WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Entity: "ingredient", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &ing, nil
}

// GetIngredientsByIDs retrieves multiple ingredients by IDs
func (s *Store) GetIngredientsByIDs(ctx context.Context, ids []int64) ([]models.Ingredient, error) {
	if len(ids) == 0 {
		return []models.Ingredient{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM ingredients WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var ingredients []models.Ingredient
	err = s.db.SelectContext(ctx, &ingredients, query, args...)
	return ingredients, err
}

// LockIngredientTx loads an ingredient row under FOR UPDATE so concurrent
// sales targeting the same ingredient serialize on it.
func (s *Store) LockIngredientTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Ingredient, error) {
	var ing models.Ingredient
	err := tx.GetContext(ctx, &ing, "SELECT * FROM ingredients WHERE id = $1 FOR UPDATE", id)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Entity: "ingredient", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock ingredient %d: %w", id, err)
	}
	return &ing, nil
}

// IncreaseStockTx atomically adds amount to current_stock and returns the new
// balance. amount must be positive.
func (s *Store) IncreaseStockTx(ctx context.Context, tx *sqlx.Tx, id int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, &models.ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}

	var newStock decimal.Decimal
	err := tx.GetContext(ctx, &newStock,
		"UPDATE ingredients SET current_stock = current_stock + $1, updated_at = NOW() WHERE id = $2 RETURNING current_stock",
		amount, id)
	if err == sql.ErrNoRows {
		return decimal.Zero, &models.NotFoundError{Entity: "ingredient", ID: id}
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to increase stock for ingredient %d: %w", id, err)
	}
	return newStock, nil
}

// DecreaseStockTx atomically subtracts amount from current_stock. The guard
// in the WHERE clause rejects the whole decrement when stock is insufficient;
// there is no partial decrement.
func (s *Store) DecreaseStockTx(ctx context.Context, tx *sqlx.Tx, id int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, &models.ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}

	var newStock decimal.Decimal
	err := tx.GetContext(ctx, &newStock,
		"UPDATE ingredients SET current_stock = current_stock - $1, updated_at = NOW() WHERE id = $2 AND current_stock >= $1 RETURNING current_stock",
		amount, id)
	if err == sql.ErrNoRows {
		ing, lookupErr := s.LockIngredientTx(ctx, tx, id)
		if lookupErr != nil {
			return decimal.Zero, lookupErr
		}
		return decimal.Zero, &models.InsufficientStockError{Shortfalls: []models.StockShortfall{{
			IngredientID:   ing.ID,
			IngredientName: ing.Name,
			Required:       amount,
			Available:      ing.CurrentStock,
			Shortage:       amount.Sub(ing.CurrentStock),
		}}}
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to decrease stock for ingredient %d: %w", id, err)
	}
	return newStock, nil
}

// GetLowStockIngredients retrieves ingredients at or below their reorder
// level, lowest stock first.
func (s *Store) GetLowStockIngredients(ctx context.Context) ([]models.Ingredient, error) {
	var ingredients []models.Ingredient
	err := s.db.SelectContext(ctx, &ingredients,
		"SELECT * FROM ingredients WHERE current_stock <= reorder_level ORDER BY current_stock ASC")
	return ingredients, err
}
