package services

import (
	"bytes"
	"testing"

	"skillup-lms/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildReceiptPDF(t *testing.T) {
	payment := newTestPayment(models.PaymentStatusCompleted, 800)
	payment.DiscountAmount = 200

	pdf, err := BuildReceiptPDF(ReceiptData{
		Payment: payment,
		Course:  &models.Course{Title: "Go in Practice", Price: 1000},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
}

func TestBuildReceiptPDF_RequiresPaymentAndCourse(t *testing.T) {
	_, err := BuildReceiptPDF(ReceiptData{})
	assert.Error(t, err)
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "INR 799.50", formatMoney(799.5, "INR"))
}
