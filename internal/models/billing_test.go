package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentTermsOffsetDays(t *testing.T) {
	assert.Equal(t, 0, TermsCOD.OffsetDays())
	assert.Equal(t, 7, TermsNet7.OffsetDays())
	assert.Equal(t, 15, TermsNet15.OffsetDays())
	assert.Equal(t, 30, TermsNet30.OffsetDays())
	assert.Equal(t, 60, TermsNet60.OffsetDays())
	assert.Equal(t, 90, TermsNet90.OffsetDays())

	assert.Equal(t, 30, PaymentTerms("NET_45").OffsetDays(), "unknown terms fall back to 30 days")
	assert.Equal(t, 30, PaymentTerms("").OffsetDays())
}

func TestPaymentTermsDueDate(t *testing.T) {
	billDate := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), TermsNet30.DueDate(billDate))
	assert.Equal(t, billDate, TermsCOD.DueDate(billDate))
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), TermsNet90.DueDate(billDate))
}

func newBill(total string, due time.Time) *Bill {
	return &Bill{
		ID:                1,
		TotalAmount:       d(total),
		PaidAmount:        d("0"),
		OutstandingAmount: d(total),
		DueDate:           due,
		Status:            BillStatusPending,
	}
}

func TestBillApplyPaymentPartialThenFull(t *testing.T) {
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	bill := newBill("1000", now.AddDate(0, 0, 21))

	require.NoError(t, bill.ApplyPayment(d("400"), now))
	assert.True(t, bill.PaidAmount.Equal(d("400")))
	assert.True(t, bill.OutstandingAmount.Equal(d("600")))
	assert.Equal(t, BillStatusPartiallyPaid, bill.Status)

	require.NoError(t, bill.ApplyPayment(d("600"), now))
	assert.True(t, bill.OutstandingAmount.IsZero())
	assert.Equal(t, BillStatusPaid, bill.Status)
}

func TestBillApplyPaymentPastDueStaysOverdue(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bill := newBill("1000", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	bill.Status = BillStatusOverdue

	require.NoError(t, bill.ApplyPayment(d("100"), now))
	assert.Equal(t, BillStatusOverdue, bill.Status, "partial payment after due date keeps the bill overdue")

	require.NoError(t, bill.ApplyPayment(d("900"), now))
	assert.Equal(t, BillStatusPaid, bill.Status, "full settlement clears overdue")
}

func TestBillApplyPaymentRejectsOverpayment(t *testing.T) {
	now := time.Now()
	bill := newBill("500", now.AddDate(0, 0, 30))

	err := bill.ApplyPayment(d("500.01"), now)
	var overLimit *OverLimitError
	require.ErrorAs(t, err, &overLimit)
	assert.True(t, bill.PaidAmount.IsZero(), "rejected payment must not change the bill")
	assert.Equal(t, BillStatusPending, bill.Status)
}

func TestBillApplyPaymentRejectsNonPositive(t *testing.T) {
	now := time.Now()
	bill := newBill("500", now.AddDate(0, 0, 30))

	var validation *ValidationError
	assert.ErrorAs(t, bill.ApplyPayment(d("0"), now), &validation)
	assert.ErrorAs(t, bill.ApplyPayment(d("-10"), now), &validation)
}

func TestBillApplyPaymentRejectsSettledAndCancelled(t *testing.T) {
	now := time.Now()
	var transition *InvalidStateTransitionError

	paid := newBill("100", now.AddDate(0, 0, 30))
	require.NoError(t, paid.ApplyPayment(d("100"), now))
	assert.ErrorAs(t, paid.ApplyPayment(d("1"), now), &transition)

	cancelled := newBill("100", now.AddDate(0, 0, 30))
	cancelled.Status = BillStatusCancelled
	assert.ErrorAs(t, cancelled.ApplyPayment(d("1"), now), &transition)
}

func TestBillIsOverdue(t *testing.T) {
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	bill := newBill("100", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	assert.True(t, bill.IsOverdue(now))

	bill.DueDate = now.AddDate(0, 0, 1)
	assert.False(t, bill.IsOverdue(now))

	settled := newBill("100", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, settled.ApplyPayment(d("100"), now))
	assert.False(t, settled.IsOverdue(now), "a settled bill is never overdue")
}
