package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError rejects malformed or out-of-range input before any
// mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Entity, e.ID)
}

// StockShortfall details one ingredient that cannot cover a requirement.
type StockShortfall struct {
	IngredientID   int64           `json:"ingredient_id"`
	IngredientName string          `json:"ingredient_name"`
	Required       decimal.Decimal `json:"required"`
	Available      decimal.Decimal `json:"available"`
	Shortage       decimal.Decimal `json:"shortage"`
}

// InsufficientStockError aborts a decrement that would drive an ingredient
// negative. For dish sales it names the dish and every shortfall; for direct
// ledger decrements it carries a single shortfall.
type InsufficientStockError struct {
	DishID     int64
	DishName   string
	Shortfalls []StockShortfall
}

func (e *InsufficientStockError) Error() string {
	if e.DishName != "" {
		return fmt.Sprintf("insufficient stock for dish %q: %d ingredient(s) short", e.DishName, len(e.Shortfalls))
	}
	if len(e.Shortfalls) == 1 {
		s := e.Shortfalls[0]
		return fmt.Sprintf("insufficient stock for ingredient %d: required=%s, available=%s",
			s.IngredientID, s.Required, s.Available)
	}
	return fmt.Sprintf("insufficient stock: %d ingredient(s) short", len(e.Shortfalls))
}

// InvalidStateTransitionError rejects an action that the entity's current
// status does not permit.
type InvalidStateTransitionError struct {
	Entity   string
	EntityID int64
	From     string
	Action   string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s %d in status %q", e.Action, e.Entity, e.EntityID, e.From)
}

// OverLimitError rejects a quantity or amount that exceeds what the entity
// allows: transferring more than available, returning more than was used,
// paying more than outstanding.
type OverLimitError struct {
	Entity    string
	EntityID  int64
	Action    string
	Limit     decimal.Decimal
	Requested decimal.Decimal
}

func (e *OverLimitError) Error() string {
	return fmt.Sprintf("%s on %s %d exceeds limit: requested=%s, limit=%s",
		e.Action, e.Entity, e.EntityID, e.Requested, e.Limit)
}
