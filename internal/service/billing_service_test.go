package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"inventory-billing/internal/models"
)

func TestBillAmounts(t *testing.T) {
	items := []models.PurchaseOrderItem{
		{ReceivedQuantity: d("10"), OrderedQuantity: d("10"), UnitPrice: d("50")},
		{ReceivedQuantity: d("3"), OrderedQuantity: d("5"), UnitPrice: d("100")},
	}

	subtotal, tax, total := billAmounts(items, d("12"), d("0"))
	assert.True(t, subtotal.Equal(d("800")), "only received quantities are billed")
	assert.True(t, tax.Equal(d("96")))
	assert.True(t, total.Equal(d("896")))
}

func TestBillAmountsDiscountBeforeTax(t *testing.T) {
	items := []models.PurchaseOrderItem{
		{ReceivedQuantity: d("10"), UnitPrice: d("100")},
	}

	subtotal, tax, total := billAmounts(items, d("10"), d("200"))
	assert.True(t, subtotal.Equal(d("1000")))
	assert.True(t, tax.Equal(d("80")), "tax applies to the discounted amount")
	assert.True(t, total.Equal(d("880")))
}

func TestBillAmountsDiscountExceedsSubtotal(t *testing.T) {
	items := []models.PurchaseOrderItem{
		{ReceivedQuantity: d("1"), UnitPrice: d("100")},
	}

	_, tax, total := billAmounts(items, d("12"), d("500"))
	assert.True(t, tax.IsZero())
	assert.True(t, total.IsZero(), "discount never drives the total negative")
}

func TestBillAmountsNothingReceived(t *testing.T) {
	items := []models.PurchaseOrderItem{
		{ReceivedQuantity: d("0"), OrderedQuantity: d("10"), UnitPrice: d("50")},
	}

	subtotal, tax, total := billAmounts(items, d("12"), d("0"))
	assert.True(t, subtotal.IsZero())
	assert.True(t, tax.IsZero())
	assert.True(t, total.IsZero())
}

func TestBillAmountsRounding(t *testing.T) {
	items := []models.PurchaseOrderItem{
		{ReceivedQuantity: d("3"), UnitPrice: d("33.335")},
	}

	subtotal, tax, total := billAmounts(items, d("12"), d("0"))
	assert.True(t, subtotal.Equal(d("100.01")))
	assert.True(t, tax.Equal(d("12.00")))
	assert.True(t, total.Equal(d("112.01")))
}

func TestBillAndPaymentNumbering(t *testing.T) {
	billDate := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	n := newBillNumber(billDate)
	assert.True(t, strings.HasPrefix(n, "BILL-2024-"))
	assert.NotEqual(t, n, newBillNumber(billDate))

	p := newPaymentReference(billDate)
	assert.True(t, strings.HasPrefix(p, "PAY-2024-"))
	assert.NotEqual(t, p, newPaymentReference(billDate))
}

func TestGenerateBillIntegration(t *testing.T) {
	t.Skip("Integration test - requires database")
}
