// Package domain содержит unit тесты для доменных сущностей Order Core.
package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOrder() *Order {
	return &Order{
		ID:     "order-uuid-123",
		UserID: "user-uuid-123",
		Status: OrderStatusPending,
		Items: []OrderItem{
			{
				ProductID:   "product-123",
				ProductName: "Молоко 3.2%",
				Quantity:    2,
				UnitPrice:   Money{Amount: 8990, Currency: "RUB"},
			},
			{
				ProductID:   "product-456",
				ProductName: "Хлеб бородинский",
				Quantity:    1,
				UnitPrice:   Money{Amount: 4500, Currency: "RUB"},
			},
		},
	}
}

// =====================================
// Тесты Order.Validate
// =====================================

// TestOrder_Validate тестирует валидацию заказа.
func TestOrder_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(o *Order)
		expectedErr error
	}{
		{
			name:        "валидные данные",
			mutate:      func(o *Order) {},
			expectedErr: nil,
		},
		{
			name:        "пустой UserID",
			mutate:      func(o *Order) { o.UserID = "" },
			expectedErr: ErrInvalidUserID,
		},
		{
			name:        "UserID только пробелы",
			mutate:      func(o *Order) { o.UserID = "   " },
			expectedErr: ErrInvalidUserID,
		},
		{
			name:        "пустой список позиций",
			mutate:      func(o *Order) { o.Items = []OrderItem{} },
			expectedErr: ErrEmptyOrderItems,
		},
		{
			name:        "nil список позиций",
			mutate:      func(o *Order) { o.Items = nil },
			expectedErr: ErrEmptyOrderItems,
		},
		{
			name:        "пустой ProductID",
			mutate:      func(o *Order) { o.Items[0].ProductID = "" },
			expectedErr: ErrInvalidProductID,
		},
		{
			name:        "нулевое количество",
			mutate:      func(o *Order) { o.Items[1].Quantity = 0 },
			expectedErr: ErrInvalidQuantity,
		},
		{
			name:        "отрицательная цена",
			mutate:      func(o *Order) { o.Items[0].UnitPrice.Amount = -100 },
			expectedErr: ErrInvalidPrice,
		},
		{
			name:        "разные валюты позиций",
			mutate:      func(o *Order) { o.Items[1].UnitPrice.Currency = "USD" },
			expectedErr: ErrCurrencyMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := validOrder()
			tt.mutate(order)

			err := order.Validate()

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// =====================================
// Тесты Order.RecomputeTotals
// =====================================

// TestOrder_RecomputeTotals тестирует расчёт сумм заказа.
func TestOrder_RecomputeTotals(t *testing.T) {
	t.Run("сумма позиций без скидок", func(t *testing.T) {
		order := validOrder()

		order.RecomputeTotals()

		// 2*8990 + 1*4500 = 22480
		assert.Equal(t, int64(22480), order.Subtotal.Amount)
		assert.Equal(t, int64(22480), order.GrandTotal.Amount)
		assert.Equal(t, "RUB", order.GrandTotal.Currency)
	})

	t.Run("скидка и доставка", func(t *testing.T) {
		order := validOrder()
		order.DiscountTotal = Money{Amount: 5000}
		order.ShippingTotal = Money{Amount: 3000}

		order.RecomputeTotals()

		assert.Equal(t, int64(22480-5000+3000), order.GrandTotal.Amount)
	})

	t.Run("скидка ограничивается суммой позиций", func(t *testing.T) {
		order := validOrder()
		order.DiscountTotal = Money{Amount: 1000000}

		order.RecomputeTotals()

		assert.Equal(t, order.Subtotal.Amount, order.DiscountTotal.Amount)
		assert.Equal(t, int64(0), order.GrandTotal.Amount)
	})

	t.Run("пустой заказ", func(t *testing.T) {
		order := &Order{}

		order.RecomputeTotals()

		assert.Equal(t, int64(0), order.Subtotal.Amount)
		assert.Equal(t, int64(0), order.GrandTotal.Amount)
	})
}

// =====================================
// Тесты state machine заказа
// =====================================

// TestOrder_TransitionTo тестирует переходы статусов заказа.
func TestOrder_TransitionTo(t *testing.T) {
	tests := []struct {
		name        string
		from        OrderStatus
		to          OrderStatus
		expectedErr error
	}{
		{name: "PENDING -> PAID", from: OrderStatusPending, to: OrderStatusPaid},
		{name: "PENDING -> CANCELLED", from: OrderStatusPending, to: OrderStatusCancelled},
		{name: "PAID -> PROCESSING", from: OrderStatusPaid, to: OrderStatusProcessing},
		{name: "PAID -> REFUNDED", from: OrderStatusPaid, to: OrderStatusRefunded},
		{name: "PROCESSING -> SHIPPED", from: OrderStatusProcessing, to: OrderStatusShipped},
		{name: "SHIPPED -> DELIVERED", from: OrderStatusShipped, to: OrderStatusDelivered},
		{name: "DELIVERED -> REFUNDED", from: OrderStatusDelivered, to: OrderStatusRefunded},
		{name: "PENDING -> SHIPPED запрещён", from: OrderStatusPending, to: OrderStatusShipped, expectedErr: ErrInvalidTransition},
		{name: "PAID -> CANCELLED запрещён", from: OrderStatusPaid, to: OrderStatusCancelled, expectedErr: ErrInvalidTransition},
		{name: "PAID -> PENDING запрещён", from: OrderStatusPaid, to: OrderStatusPending, expectedErr: ErrInvalidTransition},
		{name: "CANCELLED терминальный", from: OrderStatusCancelled, to: OrderStatusPaid, expectedErr: ErrInvalidTransition},
		{name: "REFUNDED терминальный", from: OrderStatusRefunded, to: OrderStatusProcessing, expectedErr: ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := validOrder()
			order.Status = tt.from
			order.Version = 3

			err := order.TransitionTo(tt.to)

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Equal(t, tt.from, order.Status, "статус не должен меняться при ошибке")
				assert.Equal(t, int64(3), order.Version)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.to, order.Status)
				assert.Equal(t, int64(4), order.Version, "версия растёт при каждом переходе")
			}
		})
	}
}

// TestOrderStatus_IsTerminal тестирует определение терминальных статусов.
func TestOrderStatus_IsTerminal(t *testing.T) {
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.True(t, OrderStatusRefunded.IsTerminal())
	assert.False(t, OrderStatusPending.IsTerminal())
	assert.False(t, OrderStatusDelivered.IsTerminal())
}

// TestOrder_CanCancel тестирует проверку возможности отмены.
func TestOrder_CanCancel(t *testing.T) {
	order := validOrder()
	assert.True(t, order.CanCancel())

	order.Status = OrderStatusPaid
	assert.False(t, order.CanCancel(), "оплаченный заказ не отменяется, только возврат")
}

// TestOrder_Item тестирует поиск позиции по товару.
func TestOrder_Item(t *testing.T) {
	order := validOrder()

	item := order.Item("product-456")
	require.NotNil(t, item)
	assert.Equal(t, "Хлеб бородинский", item.ProductName)

	assert.Nil(t, order.Item("product-999"))
}
