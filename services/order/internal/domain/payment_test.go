package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOrderPayment_MarkSucceeded тестирует подтверждение платежа.
func TestOrderPayment_MarkSucceeded(t *testing.T) {
	t.Run("PENDING -> SUCCEEDED", func(t *testing.T) {
		payment := &OrderPayment{Status: PaymentStatusPending}

		payment.MarkSucceeded()

		assert.Equal(t, PaymentStatusSucceeded, payment.Status)
		assert.Nil(t, payment.FailureReason)
	})

	t.Run("повторный вызов идемпотентен", func(t *testing.T) {
		payment := &OrderPayment{Status: PaymentStatusSucceeded}
		before := payment.UpdatedAt

		payment.MarkSucceeded()

		assert.Equal(t, PaymentStatusSucceeded, payment.Status)
		assert.Equal(t, before, payment.UpdatedAt)
	})

	t.Run("FAILED -> SUCCEEDED при позднем подтверждении", func(t *testing.T) {
		reason := "timeout"
		payment := &OrderPayment{Status: PaymentStatusFailed, FailureReason: &reason}

		payment.MarkSucceeded()

		assert.Equal(t, PaymentStatusSucceeded, payment.Status)
		assert.Nil(t, payment.FailureReason)
	})
}

// TestOrderPayment_MarkFailed тестирует отклонение платежа.
func TestOrderPayment_MarkFailed(t *testing.T) {
	t.Run("PENDING -> FAILED", func(t *testing.T) {
		payment := &OrderPayment{Status: PaymentStatusPending}

		err := payment.MarkFailed("недостаточно средств")

		require.NoError(t, err)
		assert.Equal(t, PaymentStatusFailed, payment.Status)
		require.NotNil(t, payment.FailureReason)
		assert.Equal(t, "недостаточно средств", *payment.FailureReason)
	})

	t.Run("успех не откатывается", func(t *testing.T) {
		payment := &OrderPayment{Status: PaymentStatusSucceeded}

		err := payment.MarkFailed("поздний отказ")

		assert.ErrorIs(t, err, ErrPaymentAlreadySucceeded)
		assert.Equal(t, PaymentStatusSucceeded, payment.Status)
	})
}
