package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory-billing/internal/models"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func line(id int64, name, stock, required string, optional bool) RequirementLine {
	return RequirementLine{
		Recipe: models.DishIngredient{
			IngredientID: id,
			IsOptional:   optional,
		},
		Ingredient: models.Ingredient{
			ID:           id,
			Name:         name,
			BaseUnit:     "g",
			CurrentStock: d(stock),
		},
		Required: d(required),
	}
}

func TestBuildAvailabilityAllInStock(t *testing.T) {
	dish := &models.Dish{ID: 1, Name: "Nasi Goreng"}
	lines := []RequirementLine{
		line(10, "Rice", "5000", "600", false),
		line(11, "Egg", "40", "6", false),
	}

	report := buildAvailability(dish, 3, lines)
	assert.True(t, report.CanFulfill)
	require.Len(t, report.Ingredients, 2)
	for _, ing := range report.Ingredients {
		assert.True(t, ing.IsAvailable)
		assert.True(t, ing.Shortage.IsZero())
	}
}

func TestBuildAvailabilityRequiredShortfallBlocks(t *testing.T) {
	dish := &models.Dish{ID: 1, Name: "Nasi Goreng"}
	lines := []RequirementLine{
		line(10, "Rice", "100", "600", false),
		line(11, "Egg", "40", "6", false),
	}

	report := buildAvailability(dish, 3, lines)
	assert.False(t, report.CanFulfill)

	rice := report.Ingredients[0]
	assert.False(t, rice.IsAvailable)
	assert.True(t, rice.Shortage.Equal(d("500")))

	egg := report.Ingredients[1]
	assert.True(t, egg.IsAvailable)
}

func TestBuildAvailabilityOptionalShortfallDoesNotBlock(t *testing.T) {
	dish := &models.Dish{ID: 1, Name: "Nasi Goreng"}
	lines := []RequirementLine{
		line(10, "Rice", "5000", "600", false),
		line(12, "Fried Shallots", "1", "15", true),
	}

	report := buildAvailability(dish, 3, lines)
	assert.True(t, report.CanFulfill, "short optional ingredient must not block fulfillment")

	shallots := report.Ingredients[1]
	assert.False(t, shallots.IsAvailable)
	assert.True(t, shallots.IsOptional)
	assert.True(t, shallots.Shortage.Equal(d("14")))
}

func TestBuildAvailabilityExactStock(t *testing.T) {
	dish := &models.Dish{ID: 1, Name: "Soto"}
	lines := []RequirementLine{
		line(10, "Chicken", "750", "750", false),
	}

	report := buildAvailability(dish, 5, lines)
	assert.True(t, report.CanFulfill, "stock exactly equal to requirement suffices")
}
