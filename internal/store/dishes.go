package store

import (
	"context"
	"database/sql"

	"inventory-billing/internal/models"
)

// GetDish retrieves a dish by ID
func (s *Store) GetDish(ctx context.Context, id int64) (*models.Dish, error) {
	var dish models.Dish
	err := s.db.GetContext(ctx, &dish, "SELECT * FROM dishes WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Entity: "dish", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &dish, nil
}

// GetDishIngredients retrieves the recipe lines for a dish
func (s *Store) GetDishIngredients(ctx context.Context, dishID int64) ([]models.DishIngredient, error) {
	var lines []models.DishIngredient
	err := s.db.SelectContext(ctx, &lines,
		"SELECT * FROM dish_ingredients WHERE dish_id = $1 ORDER BY id", dishID)
	return lines, err
}

// GetSupplier retrieves a supplier by ID
func (s *Store) GetSupplier(ctx context.Context, id int64) (*models.Supplier, error) {
	var sup models.Supplier
	err := s.db.GetContext(ctx, &sup, "SELECT * FROM suppliers WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Entity: "supplier", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &sup, nil
}

// GetCheapestActiveOffer retrieves the lowest-priced active supplier offer
// for an ingredient, or nil when nobody offers it.
func (s *Store) GetCheapestActiveOffer(ctx context.Context, ingredientID int64) (*models.SupplierOffer, error) {
	var offer models.SupplierOffer
	err := s.db.GetContext(ctx, &offer, `
		SELECT o.* FROM supplier_offers o
		JOIN suppliers sup ON sup.id = o.supplier_id
		WHERE o.ingredient_id = $1 AND o.is_active AND sup.is_active
		ORDER BY o.package_price / o.package_quantity ASC
		LIMIT 1`, ingredientID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &offer, nil
}
