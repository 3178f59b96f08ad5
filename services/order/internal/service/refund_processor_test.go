package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/grocery-core/services/order/internal/domain"
	"example.com/grocery-core/services/order/internal/repository"
)

func deliveredOrder() *domain.Order {
	return &domain.Order{
		ID:     "order-1",
		UserID: "user-1",
		Status: domain.OrderStatusDelivered,
		Items: []domain.OrderItem{
			{ProductID: "product-1", ProductName: "Молоко", Quantity: 2, UnitPrice: domain.Money{Amount: 8990, Currency: "RUB"}},
		},
		GrandTotal: domain.Money{Amount: 17980, Currency: "RUB"},
		Version:    5,
	}
}

func succeededPayment() *domain.OrderPayment {
	return &domain.OrderPayment{
		ID:      "payment-1",
		OrderID: "order-1",
		Amount:  domain.Money{Amount: 17980, Currency: "RUB"},
		Status:  domain.PaymentStatusSucceeded,
	}
}

// TestRefundProcessor_CreateRefund_Partial тестирует частичный возврат.
func TestRefundProcessor_CreateRefund_Partial(t *testing.T) {
	mockRefunds := new(MockRefundRepository)
	mockPayments := new(MockPaymentRepository)
	mockOrders := new(MockOrderRepository)
	mockDiscounts := new(MockDiscountRepository)

	mockOrders.On("GetByID", mock.Anything, "order-1").Return(deliveredOrder(), nil)
	mockPayments.On("GetSucceededByOrderID", mock.Anything, "order-1").Return(succeededPayment(), nil)
	mockRefunds.On("SumByPaymentID", mock.Anything, "payment-1").Return(int64(0), nil)
	mockRefunds.On("ListByOrderID", mock.Anything, "order-1").Return([]*domain.Refund{}, nil)

	var capturedComp *repository.RefundCompensation
	mockRefunds.On("CreateWithCompensation", mock.Anything,
		mock.AnythingOfType("*domain.Refund"), mock.AnythingOfType("*repository.RefundCompensation")).
		Run(func(args mock.Arguments) {
			capturedComp = args.Get(2).(*repository.RefundCompensation)
		}).
		Return(nil)

	processor := NewRefundProcessor(mockRefunds, mockPayments, mockOrders, mockDiscounts)

	refund, err := processor.CreateRefund(context.Background(), "order-1", RefundRequest{
		Amount: 8990,
		Reason: "повреждена упаковка",
		Lines:  []RefundLineRequest{{ProductID: "product-1", Quantity: 1, Amount: 8990}},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(8990), refund.Amount.Amount)
	assert.Equal(t, "payment-1", refund.PaymentID)

	// Частичный возврат не трогает статус заказа и балансы скидок
	require.NotNil(t, capturedComp)
	assert.Nil(t, capturedComp.OrderStatus)
	assert.Nil(t, capturedComp.GiftCardID)
	require.Len(t, capturedComp.Movements, 1)
	assert.Equal(t, int64(1), capturedComp.Movements[0].Delta)
	assert.Equal(t, domain.StockReasonRefundReturn, capturedComp.Movements[0].Reason)
	mockDiscounts.AssertNotCalled(t, "GetAppliedByOrderID", mock.Anything, mock.Anything)
}

// TestRefundProcessor_CreateRefund_Full тестирует полный возврат с компенсацией скидок.
func TestRefundProcessor_CreateRefund_Full(t *testing.T) {
	giftCardID := "gift-1"
	couponID := "coupon-1"
	applied := &domain.AppliedDiscount{
		ID:             "applied-1",
		OrderID:        "order-1",
		CouponID:       &couponID,
		CouponDiscount: 1000,
		PointsSpent:    20,
		PointsDiscount: 2000,
		GiftCardID:     &giftCardID,
		GiftCardAmount: 3000,
	}

	mockRefunds := new(MockRefundRepository)
	mockPayments := new(MockPaymentRepository)
	mockOrders := new(MockOrderRepository)
	mockDiscounts := new(MockDiscountRepository)

	mockOrders.On("GetByID", mock.Anything, "order-1").Return(deliveredOrder(), nil)
	mockPayments.On("GetSucceededByOrderID", mock.Anything, "order-1").Return(succeededPayment(), nil)
	mockRefunds.On("SumByPaymentID", mock.Anything, "payment-1").Return(int64(0), nil)
	mockRefunds.On("ListByOrderID", mock.Anything, "order-1").Return([]*domain.Refund{}, nil)
	mockDiscounts.On("GetAppliedByOrderID", mock.Anything, "order-1").Return(applied, nil)

	var capturedComp *repository.RefundCompensation
	mockRefunds.On("CreateWithCompensation", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			capturedComp = args.Get(2).(*repository.RefundCompensation)
		}).
		Return(nil)

	processor := NewRefundProcessor(mockRefunds, mockPayments, mockOrders, mockDiscounts)

	refund, err := processor.CreateRefund(context.Background(), "order-1", RefundRequest{
		Amount: 17980,
		Reason: "заказ не подошёл",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(17980), refund.Amount.Amount)

	// Полный возврат переводит заказ в REFUNDED и восстанавливает балансы
	require.NotNil(t, capturedComp)
	require.NotNil(t, capturedComp.OrderStatus)
	assert.Equal(t, domain.OrderStatusRefunded, *capturedComp.OrderStatus)
	assert.Equal(t, int64(5), capturedComp.FromVersion)
	require.NotNil(t, capturedComp.GiftCardID)
	assert.Equal(t, "gift-1", *capturedComp.GiftCardID)
	assert.Equal(t, int64(3000), capturedComp.GiftCardAmount)
	require.NotNil(t, capturedComp.PointsUserID)
	assert.Equal(t, int64(20), capturedComp.Points)

	// Без строк возврата на склад возвращаются все позиции заказа
	require.Len(t, capturedComp.Movements, 1)
	assert.Equal(t, "product-1", capturedComp.Movements[0].ProductID)
	assert.Equal(t, int64(2), capturedComp.Movements[0].Delta)
	assert.Equal(t, domain.StockReasonRefundReturn, capturedComp.Movements[0].Reason)
}

// TestRefundProcessor_CreateRefund_LimitExceeded тестирует превышение остатка платежа.
func TestRefundProcessor_CreateRefund_LimitExceeded(t *testing.T) {
	mockRefunds := new(MockRefundRepository)
	mockPayments := new(MockPaymentRepository)
	mockOrders := new(MockOrderRepository)

	mockOrders.On("GetByID", mock.Anything, "order-1").Return(deliveredOrder(), nil)
	mockPayments.On("GetSucceededByOrderID", mock.Anything, "order-1").Return(succeededPayment(), nil)
	// 10000 уже возвращено, остаток 7980
	mockRefunds.On("SumByPaymentID", mock.Anything, "payment-1").Return(int64(10000), nil)

	processor := NewRefundProcessor(mockRefunds, mockPayments, mockOrders, new(MockDiscountRepository))

	_, err := processor.CreateRefund(context.Background(), "order-1", RefundRequest{Amount: 8000, Reason: "x"})

	assert.ErrorIs(t, err, domain.ErrRefundLimitExceeded)
	mockRefunds.AssertNotCalled(t, "CreateWithCompensation", mock.Anything, mock.Anything, mock.Anything)
}

// TestRefundProcessor_CreateRefund_NotAllowed тестирует возврат без успешного платежа.
func TestRefundProcessor_CreateRefund_NotAllowed(t *testing.T) {
	mockPayments := new(MockPaymentRepository)
	mockOrders := new(MockOrderRepository)
	mockOrders.On("GetByID", mock.Anything, "order-1").Return(deliveredOrder(), nil)
	mockPayments.On("GetSucceededByOrderID", mock.Anything, "order-1").
		Return(nil, domain.ErrPaymentNotFound)

	processor := NewRefundProcessor(new(MockRefundRepository), mockPayments, mockOrders, new(MockDiscountRepository))

	_, err := processor.CreateRefund(context.Background(), "order-1", RefundRequest{Amount: 100, Reason: "x"})

	assert.ErrorIs(t, err, domain.ErrRefundNotAllowed)
}

// TestRefundProcessor_CreateRefund_LineMismatch тестирует отклонение строк возврата.
func TestRefundProcessor_CreateRefund_LineMismatch(t *testing.T) {
	t.Run("несуществующий товар", func(t *testing.T) {
		mockRefunds := new(MockRefundRepository)
		mockPayments := new(MockPaymentRepository)
		mockOrders := new(MockOrderRepository)

		mockOrders.On("GetByID", mock.Anything, "order-1").Return(deliveredOrder(), nil)
		mockPayments.On("GetSucceededByOrderID", mock.Anything, "order-1").Return(succeededPayment(), nil)
		mockRefunds.On("SumByPaymentID", mock.Anything, "payment-1").Return(int64(0), nil)
		mockRefunds.On("ListByOrderID", mock.Anything, "order-1").Return([]*domain.Refund{}, nil)

		processor := NewRefundProcessor(mockRefunds, mockPayments, mockOrders, new(MockDiscountRepository))

		_, err := processor.CreateRefund(context.Background(), "order-1", RefundRequest{
			Amount: 100,
			Reason: "x",
			Lines:  []RefundLineRequest{{ProductID: "product-999", Quantity: 1, Amount: 100}},
		})

		assert.ErrorIs(t, err, domain.ErrRefundLineMismatch)
	})

	t.Run("количество с учётом прошлых возвратов превышает позицию", func(t *testing.T) {
		// Первый частичный возврат уже вернул обе единицы product-1
		prior := &domain.Refund{
			ID:        "refund-1",
			OrderID:   "order-1",
			PaymentID: "payment-1",
			Amount:    domain.Money{Amount: 8990, Currency: "RUB"},
			Lines: []domain.RefundLine{
				{ProductID: "product-1", Quantity: 2, Amount: domain.Money{Amount: 8990, Currency: "RUB"}},
			},
		}

		mockRefunds := new(MockRefundRepository)
		mockPayments := new(MockPaymentRepository)
		mockOrders := new(MockOrderRepository)

		mockOrders.On("GetByID", mock.Anything, "order-1").Return(deliveredOrder(), nil)
		mockPayments.On("GetSucceededByOrderID", mock.Anything, "order-1").Return(succeededPayment(), nil)
		mockRefunds.On("SumByPaymentID", mock.Anything, "payment-1").Return(int64(8990), nil)
		mockRefunds.On("ListByOrderID", mock.Anything, "order-1").Return([]*domain.Refund{prior}, nil)

		processor := NewRefundProcessor(mockRefunds, mockPayments, mockOrders, new(MockDiscountRepository))

		_, err := processor.CreateRefund(context.Background(), "order-1", RefundRequest{
			Amount: 100,
			Reason: "x",
			Lines:  []RefundLineRequest{{ProductID: "product-1", Quantity: 1, Amount: 100}},
		})

		assert.ErrorIs(t, err, domain.ErrRefundLineMismatch)
		mockRefunds.AssertNotCalled(t, "CreateWithCompensation", mock.Anything, mock.Anything, mock.Anything)
	})
}

// TestRefundProcessor_CreateRefund_FullAfterPartial тестирует полный возврат
// остатка без строк: на склад возвращается только невозвращённое количество.
func TestRefundProcessor_CreateRefund_FullAfterPartial(t *testing.T) {
	prior := &domain.Refund{
		ID:        "refund-1",
		OrderID:   "order-1",
		PaymentID: "payment-1",
		Amount:    domain.Money{Amount: 8990, Currency: "RUB"},
		Lines: []domain.RefundLine{
			{ProductID: "product-1", Quantity: 1, Amount: domain.Money{Amount: 8990, Currency: "RUB"}},
		},
	}

	mockRefunds := new(MockRefundRepository)
	mockPayments := new(MockPaymentRepository)
	mockOrders := new(MockOrderRepository)
	mockDiscounts := new(MockDiscountRepository)

	mockOrders.On("GetByID", mock.Anything, "order-1").Return(deliveredOrder(), nil)
	mockPayments.On("GetSucceededByOrderID", mock.Anything, "order-1").Return(succeededPayment(), nil)
	mockRefunds.On("SumByPaymentID", mock.Anything, "payment-1").Return(int64(8990), nil)
	mockRefunds.On("ListByOrderID", mock.Anything, "order-1").Return([]*domain.Refund{prior}, nil)
	mockDiscounts.On("GetAppliedByOrderID", mock.Anything, "order-1").Return(nil, nil)

	var capturedComp *repository.RefundCompensation
	mockRefunds.On("CreateWithCompensation", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			capturedComp = args.Get(2).(*repository.RefundCompensation)
		}).
		Return(nil)

	processor := NewRefundProcessor(mockRefunds, mockPayments, mockOrders, mockDiscounts)

	// Остаток платежа 17980 - 8990 = 8990, возврат полный
	refund, err := processor.CreateRefund(context.Background(), "order-1", RefundRequest{
		Amount: 8990,
		Reason: "возврат остатка",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(8990), refund.Amount.Amount)

	require.NotNil(t, capturedComp)
	require.NotNil(t, capturedComp.OrderStatus)
	assert.Equal(t, domain.OrderStatusRefunded, *capturedComp.OrderStatus)
	// Из двух единиц product-1 одна уже возвращена
	require.Len(t, capturedComp.Movements, 1)
	assert.Equal(t, "product-1", capturedComp.Movements[0].ProductID)
	assert.Equal(t, int64(1), capturedComp.Movements[0].Delta)
}
