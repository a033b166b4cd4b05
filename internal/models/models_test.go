package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestIngredientIsLowStock(t *testing.T) {
	ing := &Ingredient{CurrentStock: d("5"), ReorderLevel: d("10")}
	assert.True(t, ing.IsLowStock())

	ing.CurrentStock = d("10")
	assert.True(t, ing.IsLowStock(), "stock exactly at reorder level counts as low")

	ing.CurrentStock = d("10.01")
	assert.False(t, ing.IsLowStock())
}

func TestBatchTransferOut(t *testing.T) {
	batch := &StockBatch{ID: 1, Quantity: d("10"), Status: BatchStatusAvailable}

	require.NoError(t, batch.TransferOut(d("4")))
	assert.True(t, batch.Quantity.Equal(d("6")))
	assert.Equal(t, BatchStatusAvailable, batch.Status)

	require.NoError(t, batch.TransferOut(d("6")))
	assert.True(t, batch.Quantity.IsZero())
	assert.Equal(t, BatchStatusTransferred, batch.Status)
}

func TestBatchTransferOutOverLimit(t *testing.T) {
	batch := &StockBatch{ID: 1, Quantity: d("3"), Status: BatchStatusAvailable}

	err := batch.TransferOut(d("5"))
	var overLimit *OverLimitError
	require.ErrorAs(t, err, &overLimit)
	assert.True(t, batch.Quantity.Equal(d("3")), "failed transfer must not change quantity")
}

func TestBatchTransferOutRejectsNonAvailable(t *testing.T) {
	for _, status := range []string{BatchStatusTransferred, BatchStatusExpired, BatchStatusDamaged} {
		batch := &StockBatch{ID: 1, Quantity: d("10"), Status: status}
		err := batch.TransferOut(d("1"))
		var transition *InvalidStateTransitionError
		assert.ErrorAs(t, err, &transition, "status %s must reject transfers", status)
	}
}

func TestBatchRestockReactivates(t *testing.T) {
	batch := &StockBatch{ID: 1, Quantity: d("5"), Status: BatchStatusAvailable}
	require.NoError(t, batch.TransferOut(d("5")))
	require.Equal(t, BatchStatusTransferred, batch.Status)

	batch.Restock(d("2"))
	assert.True(t, batch.Quantity.Equal(d("2")))
	assert.Equal(t, BatchStatusAvailable, batch.Status)
}

func TestBatchIsExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.False(t, (&StockBatch{}).IsExpired(now), "no expiry date means never expired")
	assert.True(t, (&StockBatch{ExpiryDate: &past}).IsExpired(now))
	assert.False(t, (&StockBatch{ExpiryDate: &future}).IsExpired(now))
}

func TestTransferUse(t *testing.T) {
	transfer := &KitchenTransfer{
		ID:                  1,
		QuantityTransferred: d("10"),
		QuantityRemaining:   d("10"),
		Status:              TransferStatusActive,
	}

	require.NoError(t, transfer.Use(d("3.5")))
	assert.True(t, transfer.QuantityRemaining.Equal(d("6.5")))
	assert.True(t, transfer.UsedQuantity().Equal(d("3.5")))
	assert.Equal(t, TransferStatusActive, transfer.Status)

	require.NoError(t, transfer.Use(d("6.5")))
	assert.True(t, transfer.QuantityRemaining.IsZero())
	assert.Equal(t, TransferStatusUsedUp, transfer.Status)

	err := transfer.Use(d("1"))
	var transition *InvalidStateTransitionError
	assert.ErrorAs(t, err, &transition)
}

func TestTransferUseOverRemaining(t *testing.T) {
	transfer := &KitchenTransfer{
		ID:                  1,
		QuantityTransferred: d("10"),
		QuantityRemaining:   d("2"),
		Status:              TransferStatusActive,
	}

	err := transfer.Use(d("2.1"))
	var overLimit *OverLimitError
	require.ErrorAs(t, err, &overLimit)
	assert.True(t, transfer.QuantityRemaining.Equal(d("2")))
}

func TestTransferReturnUndoesUse(t *testing.T) {
	transfer := &KitchenTransfer{
		ID:                  1,
		QuantityTransferred: d("10"),
		QuantityRemaining:   d("10"),
		Status:              TransferStatusActive,
	}

	require.NoError(t, transfer.Use(d("4")))
	require.NoError(t, transfer.Return(d("2")))
	assert.True(t, transfer.QuantityRemaining.Equal(d("8")))
	assert.True(t, transfer.UsedQuantity().Equal(d("2")))
	assert.Equal(t, TransferStatusActive, transfer.Status)
}

func TestTransferReturnReactivatesUsedUp(t *testing.T) {
	transfer := &KitchenTransfer{
		ID:                  1,
		QuantityTransferred: d("10"),
		QuantityRemaining:   d("10"),
		Status:              TransferStatusActive,
	}

	require.NoError(t, transfer.Use(d("10")))
	require.Equal(t, TransferStatusUsedUp, transfer.Status)

	require.NoError(t, transfer.Return(d("3")))
	assert.True(t, transfer.QuantityRemaining.Equal(d("3")))
	assert.Equal(t, TransferStatusActive, transfer.Status)
}

func TestTransferReturnCapsAtUsed(t *testing.T) {
	transfer := &KitchenTransfer{
		ID:                  1,
		QuantityTransferred: d("10"),
		QuantityRemaining:   d("7"),
		Status:              TransferStatusActive,
	}

	err := transfer.Return(d("3.01"))
	var overLimit *OverLimitError
	require.ErrorAs(t, err, &overLimit)
	assert.True(t, transfer.QuantityRemaining.Equal(d("7")), "failed return must not change the transfer")
}

func TestTransferReturnThenUseRoundTrip(t *testing.T) {
	transfer := &KitchenTransfer{
		ID:                  1,
		QuantityTransferred: d("10"),
		QuantityRemaining:   d("6"),
		Status:              TransferStatusActive,
	}

	require.NoError(t, transfer.Return(d("2")))
	require.NoError(t, transfer.Use(d("2")))
	assert.True(t, transfer.QuantityRemaining.Equal(d("6")), "return then use restores the prior quantity")
}

func TestTransferMarkExpired(t *testing.T) {
	transfer := &KitchenTransfer{ID: 1, Status: TransferStatusActive, QuantityRemaining: d("5")}
	require.NoError(t, transfer.MarkExpired(), "forced expiry ignores remaining quantity")
	assert.Equal(t, TransferStatusExpired, transfer.Status)

	var transition *InvalidStateTransitionError
	assert.ErrorAs(t, transfer.MarkExpired(), &transition)
}

func TestSupplierOfferCostPerBaseUnit(t *testing.T) {
	offer := &SupplierOffer{PackageQuantity: d("25"), PackagePrice: d("500")}
	assert.True(t, offer.CostPerBaseUnit().Equal(d("20")))

	degenerate := &SupplierOffer{PackageQuantity: d("0"), PackagePrice: d("500")}
	assert.True(t, degenerate.CostPerBaseUnit().IsZero())
}
