package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"inventory-billing/internal/models"
	"inventory-billing/internal/store"
)

// RecipeResolver maps a dish and quantity sold to the ingredient quantities
// the sale requires.
type RecipeResolver struct {
	store *store.Store
}

// NewRecipeResolver creates a new recipe resolver
func NewRecipeResolver(store *store.Store) *RecipeResolver {
	return &RecipeResolver{store: store}
}

// RequirementLine is one resolved ingredient requirement for a sale.
type RequirementLine struct {
	Recipe     models.DishIngredient
	Ingredient models.Ingredient
	Required   decimal.Decimal
}

// Resolve loads the dish, its recipe and the referenced ingredients, and
// scales each per-serving quantity by the quantity sold.
func (r *RecipeResolver) Resolve(ctx context.Context, dishID, quantity int64) (*models.Dish, []RequirementLine, error) {
	if quantity <= 0 {
		return nil, nil, &models.ValidationError{Field: "quantity", Reason: "must be greater than zero"}
	}

	dish, err := r.store.GetDish(ctx, dishID)
	if err != nil {
		return nil, nil, err
	}

	recipe, err := r.store.GetDishIngredients(ctx, dishID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load recipe for dish %d: %w", dishID, err)
	}

	ids := make([]int64, len(recipe))
	for i, line := range recipe {
		ids[i] = line.IngredientID
	}

	ingredients, err := r.store.GetIngredientsByIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load ingredients for dish %d: %w", dishID, err)
	}

	byID := make(map[int64]models.Ingredient, len(ingredients))
	for _, ing := range ingredients {
		byID[ing.ID] = ing
	}

	qty := decimal.NewFromInt(quantity)
	lines := make([]RequirementLine, 0, len(recipe))
	for _, rec := range recipe {
		ing, ok := byID[rec.IngredientID]
		if !ok {
			return nil, nil, &models.NotFoundError{Entity: "ingredient", ID: rec.IngredientID}
		}
		lines = append(lines, RequirementLine{
			Recipe:     rec,
			Ingredient: ing,
			Required:   rec.QuantityPerServing.Mul(qty),
		})
	}
	return dish, lines, nil
}

// IngredientAvailability reports one ingredient's ability to cover a sale.
// Optional ingredients carry the same fields but never block fulfillment.
type IngredientAvailability struct {
	IngredientID   int64           `json:"ingredient_id"`
	IngredientName string          `json:"ingredient_name"`
	BaseUnit       string          `json:"base_unit"`
	Required       decimal.Decimal `json:"required_quantity"`
	CurrentStock   decimal.Decimal `json:"current_stock"`
	IsAvailable    bool            `json:"is_available"`
	IsOptional     bool            `json:"is_optional"`
	Shortage       decimal.Decimal `json:"shortage"`
}

// AvailabilityReport is the outcome of a stock availability check.
type AvailabilityReport struct {
	DishID            int64                    `json:"dish_id"`
	DishName          string                   `json:"dish_name"`
	QuantityRequested int64                    `json:"quantity_requested"`
	CanFulfill        bool                     `json:"can_fulfill"`
	Ingredients       []IngredientAvailability `json:"ingredients"`
}

// buildAvailability evaluates resolved requirement lines against current
// stock. A shortfall on an optional line is reported but does not flip
// can_fulfill.
func buildAvailability(dish *models.Dish, quantity int64, lines []RequirementLine) *AvailabilityReport {
	report := &AvailabilityReport{
		DishID:            dish.ID,
		DishName:          dish.Name,
		QuantityRequested: quantity,
		CanFulfill:        true,
		Ingredients:       make([]IngredientAvailability, 0, len(lines)),
	}

	for _, line := range lines {
		available := line.Ingredient.CurrentStock.GreaterThanOrEqual(line.Required)
		shortage := decimal.Zero
		if !available {
			shortage = line.Required.Sub(line.Ingredient.CurrentStock)
			if !line.Recipe.IsOptional {
				report.CanFulfill = false
			}
		}
		report.Ingredients = append(report.Ingredients, IngredientAvailability{
			IngredientID:   line.Ingredient.ID,
			IngredientName: line.Ingredient.Name,
			BaseUnit:       line.Ingredient.BaseUnit,
			Required:       line.Required,
			CurrentStock:   line.Ingredient.CurrentStock,
			IsAvailable:    available,
			IsOptional:     line.Recipe.IsOptional,
			Shortage:       shortage,
		})
	}
	return report
}

// IngredientCost is one line of a dish cost breakdown.
type IngredientCost struct {
	IngredientID   int64            `json:"ingredient_id"`
	IngredientName string           `json:"ingredient_name"`
	Required       decimal.Decimal  `json:"required_quantity"`
	BaseUnit       string           `json:"base_unit"`
	CostPerUnit    *decimal.Decimal `json:"cost_per_unit,omitempty"`
	TotalCost      decimal.Decimal  `json:"total_cost"`
	SupplierID     int64            `json:"supplier_id,omitempty"`
}

// DishCostReport totals the ingredient cost of a dish sale using each
// ingredient's cheapest active supplier offer.
type DishCostReport struct {
	DishID      int64            `json:"dish_id"`
	DishName    string           `json:"dish_name"`
	Quantity    int64            `json:"quantity"`
	TotalCost   decimal.Decimal  `json:"total_ingredient_cost"`
	Ingredients []IngredientCost `json:"ingredients"`
}

// Cost resolves the dish requirements and prices them with the cheapest
// active offer per ingredient. Ingredients nobody offers are listed with no
// unit cost.
func (r *RecipeResolver) Cost(ctx context.Context, dishID, quantity int64) (*DishCostReport, error) {
	dish, lines, err := r.Resolve(ctx, dishID, quantity)
	if err != nil {
		return nil, err
	}

	report := &DishCostReport{
		DishID:      dish.ID,
		DishName:    dish.Name,
		Quantity:    quantity,
		TotalCost:   decimal.Zero,
		Ingredients: make([]IngredientCost, 0, len(lines)),
	}

	for _, line := range lines {
		cost := IngredientCost{
			IngredientID:   line.Ingredient.ID,
			IngredientName: line.Ingredient.Name,
			Required:       line.Required,
			BaseUnit:       line.Ingredient.BaseUnit,
			TotalCost:      decimal.Zero,
		}

		offer, err := r.store.GetCheapestActiveOffer(ctx, line.Ingredient.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load offers for ingredient %d: %w", line.Ingredient.ID, err)
		}
		if offer != nil {
			perUnit := offer.CostPerBaseUnit()
			cost.CostPerUnit = &perUnit
			cost.TotalCost = line.Required.Mul(perUnit)
			cost.SupplierID = offer.SupplierID
			report.TotalCost = report.TotalCost.Add(cost.TotalCost)
		}

		report.Ingredients = append(report.Ingredients, cost)
	}
	report.TotalCost = report.TotalCost.Round(2)
	return report, nil
}
