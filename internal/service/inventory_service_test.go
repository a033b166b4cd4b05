package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventory-billing/internal/models"
)

// lockedFrom mimics the fresh row reads taken under lock during a sale: one
// ingredient per requirement line, positionally parallel.
func lockedFrom(lines []RequirementLine) []*models.Ingredient {
	locked := make([]*models.Ingredient, len(lines))
	for i := range lines {
		ing := lines[i].Ingredient
		locked[i] = &ing
	}
	return locked
}

func TestCollectShortfallsAggregatesEveryShortRequired(t *testing.T) {
	lines := []RequirementLine{
		line(10, "Rice", "5000", "600", false),
		line(11, "Egg", "4", "6", false),
		line(12, "Chicken", "100", "450", false),
	}

	shortfalls := collectShortfalls(lines, lockedFrom(lines))
	require.Len(t, shortfalls, 2)

	assert.Equal(t, int64(11), shortfalls[0].IngredientID)
	assert.Equal(t, "Egg", shortfalls[0].IngredientName)
	assert.True(t, shortfalls[0].Shortage.Equal(d("2")))

	assert.Equal(t, int64(12), shortfalls[1].IngredientID)
	assert.True(t, shortfalls[1].Required.Equal(d("450")))
	assert.True(t, shortfalls[1].Available.Equal(d("100")))
	assert.True(t, shortfalls[1].Shortage.Equal(d("350")))
}

func TestCollectShortfallsIgnoresOptionalLines(t *testing.T) {
	lines := []RequirementLine{
		line(10, "Rice", "5000", "600", false),
		line(20, "Truffle Oil", "1", "15", true),
	}

	shortfalls := collectShortfalls(lines, lockedFrom(lines))
	assert.Empty(t, shortfalls)
}

func TestCollectShortfallsUsesLockedStock(t *testing.T) {
	// The resolver read saw enough stock, but a concurrent sale drained the
	// row before the lock was taken. The locked value decides.
	lines := []RequirementLine{
		line(10, "Rice", "5000", "600", false),
	}
	locked := lockedFrom(lines)
	locked[0].CurrentStock = d("100")

	shortfalls := collectShortfalls(lines, locked)
	require.Len(t, shortfalls, 1)
	assert.True(t, shortfalls[0].Available.Equal(d("100")))
	assert.True(t, shortfalls[0].Shortage.Equal(d("500")))
}

func TestCollectShortfallsExactStockIsEnough(t *testing.T) {
	lines := []RequirementLine{
		line(10, "Rice", "600", "600", false),
	}

	assert.Empty(t, collectShortfalls(lines, lockedFrom(lines)))
}

func TestCrossedReorderLevel(t *testing.T) {
	cases := []struct {
		name                string
		prev, next, reorder string
		want                bool
	}{
		{"stays well above", "10", "4", "2", false},
		{"drops to exactly the level", "10", "2", "2", true},
		{"drops below the level", "10", "1.5", "2", true},
		{"already at the level", "2", "1", "2", false},
		{"already below the level", "1", "0.5", "2", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, crossedReorderLevel(d(tc.prev), d(tc.next), d(tc.reorder)))
		})
	}
}
