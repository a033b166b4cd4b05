package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchaseOrderLifecycle(t *testing.T) {
	order := &PurchaseOrder{ID: 1, Status: OrderStatusDraft}
	assert.True(t, order.Editable())

	require.NoError(t, order.Submit())
	assert.Equal(t, OrderStatusPending, order.Status)
	assert.True(t, order.Editable())

	require.NoError(t, order.Approve())
	assert.Equal(t, OrderStatusConfirmed, order.Status)
	assert.False(t, order.Editable())
	assert.True(t, order.Receivable())
}

func TestPurchaseOrderInvalidTransitions(t *testing.T) {
	var transition *InvalidStateTransitionError

	order := &PurchaseOrder{ID: 1, Status: OrderStatusPending}
	assert.ErrorAs(t, order.Submit(), &transition, "pending cannot be submitted again")

	order.Status = OrderStatusConfirmed
	assert.ErrorAs(t, order.Approve(), &transition, "confirmed cannot be approved again")

	order.Status = OrderStatusDraft
	assert.ErrorAs(t, order.Approve(), &transition, "draft cannot skip approval")
}

func TestPurchaseOrderCancel(t *testing.T) {
	for _, status := range []string{
		OrderStatusDraft, OrderStatusPending, OrderStatusConfirmed, OrderStatusPartiallyDelivered,
	} {
		order := &PurchaseOrder{ID: 1, Status: status}
		require.NoError(t, order.Cancel(), "status %s must be cancellable", status)
		assert.Equal(t, OrderStatusCancelled, order.Status)
	}

	var transition *InvalidStateTransitionError
	for _, status := range []string{OrderStatusDelivered, OrderStatusCancelled} {
		order := &PurchaseOrder{ID: 1, Status: status}
		assert.ErrorAs(t, order.Cancel(), &transition, "terminal status %s must reject cancel", status)
	}
}

func TestItemReceiveConvertsToBaseUnits(t *testing.T) {
	// 5 cases ordered, each case holds 10 base units.
	item := &PurchaseOrderItem{
		ID:               1,
		OrderedQuantity:  d("5"),
		ConversionFactor: d("10"),
	}

	credit, err := item.Receive(d("3"))
	require.NoError(t, err)
	assert.True(t, credit.Equal(d("30")))
	assert.True(t, item.ReceivedQuantity.Equal(d("3")))
	assert.False(t, item.FullyReceived())

	credit, err = item.Receive(d("2"))
	require.NoError(t, err)
	assert.True(t, credit.Equal(d("20")))
	assert.True(t, item.FullyReceived())
}

func TestItemReceiveCapsAtOrdered(t *testing.T) {
	item := &PurchaseOrderItem{
		ID:               1,
		OrderedQuantity:  d("5"),
		ReceivedQuantity: d("4"),
		ConversionFactor: d("1"),
	}

	_, err := item.Receive(d("2"))
	var overLimit *OverLimitError
	require.ErrorAs(t, err, &overLimit)
	assert.True(t, overLimit.Limit.Equal(d("1")), "error reports the remaining receivable quantity")
	assert.True(t, item.ReceivedQuantity.Equal(d("4")), "failed receive must not change the item")
}

func TestItemReceiveRejectsNegative(t *testing.T) {
	item := &PurchaseOrderItem{ID: 1, OrderedQuantity: d("5"), ConversionFactor: d("1")}

	_, err := item.Receive(d("-1"))
	var validation *ValidationError
	assert.ErrorAs(t, err, &validation)
}

func TestItemReceiveZeroIsNoop(t *testing.T) {
	item := &PurchaseOrderItem{ID: 1, OrderedQuantity: d("5"), ConversionFactor: d("10")}

	credit, err := item.Receive(d("0"))
	require.NoError(t, err)
	assert.True(t, credit.IsZero())
	assert.True(t, item.ReceivedQuantity.IsZero())
}

func TestItemReceiveFractionalConversion(t *testing.T) {
	// 2.5 kg sacks converted to grams.
	item := &PurchaseOrderItem{
		ID:               1,
		OrderedQuantity:  d("4"),
		ConversionFactor: d("2500"),
	}

	credit, err := item.Receive(d("1.5"))
	require.NoError(t, err)
	assert.True(t, credit.Equal(d("3750")))
}
