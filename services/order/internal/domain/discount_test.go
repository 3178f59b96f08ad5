package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =====================================
// Тесты Coupon
// =====================================

// TestCoupon_CheckApplicable тестирует проверку применимости купона.
func TestCoupon_CheckApplicable(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	expired := now.Add(-time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name        string
		coupon      Coupon
		subtotal    int64
		userUsed    int64
		expectedErr error
	}{
		{
			name:     "применимый купон",
			coupon:   Coupon{Status: CouponStatusActive, ExpiresAt: &future, UsageLimit: 10, UsedCount: 5, MinOrderAmount: 1000},
			subtotal: 5000,
		},
		{
			name:        "отключённый купон",
			coupon:      Coupon{Status: CouponStatusDisabled},
			subtotal:    5000,
			expectedErr: ErrCouponInactive,
		},
		{
			name:        "срок действия ещё не начался",
			coupon:      Coupon{Status: CouponStatusActive, ValidFrom: &future},
			subtotal:    5000,
			expectedErr: ErrCouponNotYetActive,
		},
		{
			name:        "просроченный купон",
			coupon:      Coupon{Status: CouponStatusActive, ExpiresAt: &expired},
			subtotal:    5000,
			expectedErr: ErrCouponExpired,
		},
		{
			name:        "лимит использований исчерпан",
			coupon:      Coupon{Status: CouponStatusActive, UsageLimit: 10, UsedCount: 10},
			subtotal:    5000,
			expectedErr: ErrCouponLimitExceeded,
		},
		{
			name:        "персональный лимит исчерпан",
			coupon:      Coupon{Status: CouponStatusActive, UserUsageLimit: 2},
			subtotal:    5000,
			userUsed:    2,
			expectedErr: ErrCouponUserLimitExceeded,
		},
		{
			name:     "персональный лимит не достигнут",
			coupon:   Coupon{Status: CouponStatusActive, UserUsageLimit: 2},
			subtotal: 5000,
			userUsed: 1,
		},
		{
			name:        "сумма меньше минимальной",
			coupon:      Coupon{Status: CouponStatusActive, MinOrderAmount: 10000},
			subtotal:    5000,
			expectedErr: ErrMinOrderAmountNotMet,
		},
		{
			name:     "без лимитов и срока",
			coupon:   Coupon{Status: CouponStatusActive, UsedCount: 1000},
			subtotal: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.coupon.CheckApplicable(tt.subtotal, tt.userUsed, now)

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestCoupon_Discount тестирует расчёт скидки купона.
func TestCoupon_Discount(t *testing.T) {
	tests := []struct {
		name     string
		coupon   Coupon
		subtotal int64
		expected int64
	}{
		{
			name:     "процентная скидка",
			coupon:   Coupon{Type: CouponTypePercent, Value: 10},
			subtotal: 20000,
			expected: 2000,
		},
		{
			name:     "процентная скидка с потолком",
			coupon:   Coupon{Type: CouponTypePercent, Value: 10, MaxDiscount: 5000},
			subtotal: 100000,
			expected: 5000,
		},
		{
			name:     "фиксированная скидка",
			coupon:   Coupon{Type: CouponTypeFixed, Value: 3000},
			subtotal: 20000,
			expected: 3000,
		},
		{
			name:     "фиксированная скидка больше суммы",
			coupon:   Coupon{Type: CouponTypeFixed, Value: 30000},
			subtotal: 20000,
			expected: 20000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.coupon.Discount(tt.subtotal))
		})
	}
}

// =====================================
// Тесты GiftCard и RewardAccount
// =====================================

// TestGiftCard_Debit тестирует списание с подарочной карты.
func TestGiftCard_Debit(t *testing.T) {
	t.Run("успешное списание", func(t *testing.T) {
		card := &GiftCard{Balance: 10000, Active: true}

		err := card.Debit(3000)

		require.NoError(t, err)
		assert.Equal(t, int64(7000), card.Balance)
	})

	t.Run("недостаточно баланса", func(t *testing.T) {
		card := &GiftCard{Balance: 1000, Active: true}

		err := card.Debit(3000)

		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.Equal(t, int64(1000), card.Balance)
	})

	t.Run("неактивная карта", func(t *testing.T) {
		card := &GiftCard{Balance: 10000, Active: false}

		err := card.Debit(3000)

		assert.ErrorIs(t, err, ErrGiftCardInactive)
	})
}

// TestGiftCard_Credit тестирует возврат на подарочную карту.
func TestGiftCard_Credit(t *testing.T) {
	card := &GiftCard{Balance: 1000, Active: true}

	card.Credit(500)

	assert.Equal(t, int64(1500), card.Balance)
}

// TestRewardAccount тестирует операции со счётом баллов.
func TestRewardAccount(t *testing.T) {
	account := &RewardAccount{UserID: "user-1", Points: 100}

	require.NoError(t, account.Debit(40))
	assert.Equal(t, int64(60), account.Points)

	assert.ErrorIs(t, account.Debit(61), ErrInsufficientBalance)

	account.Credit(40)
	assert.Equal(t, int64(100), account.Points)
}

// TestAppliedDiscount_Total тестирует сумму применённых скидок.
func TestAppliedDiscount_Total(t *testing.T) {
	applied := &AppliedDiscount{
		CouponDiscount: 5000,
		PointsDiscount: 2000,
		GiftCardAmount: 1500,
	}

	assert.Equal(t, int64(8500), applied.Total())
}
