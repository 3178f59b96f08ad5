// Package service содержит unit тесты для OrderService.
package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/grocery-core/services/order/internal/discount"
	"example.com/grocery-core/services/order/internal/domain"
	"example.com/grocery-core/services/order/internal/repository"
	"example.com/grocery-core/services/order/internal/stock"
	"example.com/grocery-core/services/order/internal/testutil"
)

// =====================================
// Алиасы моков из testutil (DRY)
// =====================================

type MockOrderRepository = testutil.MockOrderRepository
type MockPaymentRepository = testutil.MockPaymentRepository
type MockRefundRepository = testutil.MockRefundRepository
type MockDiscountRepository = testutil.MockDiscountRepository
type MockHistoryRepository = testutil.MockHistoryRepository
type MockCartRepository = testutil.MockCartRepository
type MockStockRepository = testutil.MockStockRepository

// fakeCatalog — каталог товаров в памяти для тестов.
type fakeCatalog struct {
	products map[string]*ProductInfo
}

func (f *fakeCatalog) GetProduct(_ context.Context, productID string) (*ProductInfo, error) {
	if p, ok := f.products[productID]; ok {
		return p, nil
	}
	return nil, errors.New("товар не найден в каталоге")
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{products: map[string]*ProductInfo{
		"product-1":        {ID: "product-1", Name: "Молоко 3.2%", Price: 8990, Currency: "RUB", Active: true},
		"product-2":        {ID: "product-2", Name: "Хлеб бородинский", Price: 4500, Currency: "RUB", Active: true},
		"product-inactive": {ID: "product-inactive", Name: "Снятый товар", Price: 100, Currency: "RUB", Active: false},
	}}
}

func newTestOrderService(orderRepo *MockOrderRepository, discountRepo *MockDiscountRepository, shippingFee int64) OrderService {
	ledger := stock.NewLedger(new(MockStockRepository))
	engine := discount.NewEngine(discountRepo, 100)
	return NewOrderService(orderRepo, new(MockHistoryRepository), ledger, engine, testCatalog(), shippingFee)
}

// =====================================
// Тесты CreateOrder
// =====================================

// TestOrderService_CreateOrder тестирует успешное создание заказа.
func TestOrderService_CreateOrder(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	mockRepo.On("GetByIdempotencyKey", mock.Anything, "idem-key-123").
		Return(nil, domain.ErrOrderNotFound)

	var capturedEffects *repository.CreateEffects
	mockRepo.On("CreateWithSideEffects", mock.Anything, mock.AnythingOfType("*domain.Order"), mock.AnythingOfType("*repository.CreateEffects")).
		Run(func(args mock.Arguments) {
			capturedEffects = args.Get(2).(*repository.CreateEffects)
		}).
		Return(nil)

	svc := newTestOrderService(mockRepo, new(MockDiscountRepository), 3000)

	order, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID:         "user-123",
		IdempotencyKey: "idem-key-123",
		Items: []RequestedItem{
			{ProductID: "product-1", Quantity: 2},
			{ProductID: "product-2", Quantity: 1},
		},
	})

	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, int64(1), order.Version)
	// 2*8990 + 4500 = 22480, доставка 3000
	assert.Equal(t, int64(22480), order.Subtotal.Amount)
	assert.Equal(t, int64(25480), order.GrandTotal.Amount)
	// Название и цена взяты из каталога
	assert.Equal(t, "Молоко 3.2%", order.Items[0].ProductName)

	// Резерв склада создаётся в транзакции заказа
	require.NotNil(t, capturedEffects)
	require.Len(t, capturedEffects.Movements, 2)
	assert.Equal(t, int64(-2), capturedEffects.Movements[0].Delta)
	assert.Equal(t, domain.StockReasonReserve, capturedEffects.Movements[0].Reason)
	require.NotNil(t, capturedEffects.History)
	assert.Equal(t, domain.OrderStatusPending, capturedEffects.History.ToStatus)

	mockRepo.AssertExpectations(t)
}

// TestOrderService_CreateOrder_Idempotency тестирует возврат существующего заказа.
func TestOrderService_CreateOrder_Idempotency(t *testing.T) {
	existing := &domain.Order{ID: "order-1", UserID: "user-123", Status: domain.OrderStatusPending}

	mockRepo := new(MockOrderRepository)
	mockRepo.On("GetByIdempotencyKey", mock.Anything, "idem-key-123").
		Return(existing, nil)

	svc := newTestOrderService(mockRepo, new(MockDiscountRepository), 0)

	order, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID:         "user-123",
		IdempotencyKey: "idem-key-123",
		Items:          []RequestedItem{{ProductID: "product-1", Quantity: 1}},
	})

	require.NoError(t, err)
	assert.Equal(t, "order-1", order.ID)
	mockRepo.AssertNotCalled(t, "CreateWithSideEffects", mock.Anything, mock.Anything, mock.Anything)
}

// TestOrderService_CreateOrder_ConcurrentDuplicate тестирует гонку двух запросов
// с одним ключом: перечитывание заказа конкурента переживает лаг реплики.
func TestOrderService_CreateOrder_ConcurrentDuplicate(t *testing.T) {
	existing := &domain.Order{ID: "order-1", UserID: "user-123", Status: domain.OrderStatusPending}

	mockRepo := new(MockOrderRepository)
	// Предварительная проверка: заказа ещё нет
	mockRepo.On("GetByIdempotencyKey", mock.Anything, "idem-key-123").
		Return(nil, domain.ErrOrderNotFound).Once()
	// Конкурент вставил заказ первым
	mockRepo.On("CreateWithSideEffects", mock.Anything, mock.Anything, mock.Anything).
		Return(domain.ErrDuplicateOrder)
	// Реплика отстаёт: первое перечитывание пустое, второе находит заказ
	mockRepo.On("GetByIdempotencyKey", mock.Anything, "idem-key-123").
		Return(nil, domain.ErrOrderNotFound).Once()
	mockRepo.On("GetByIdempotencyKey", mock.Anything, "idem-key-123").
		Return(existing, nil).Once()

	svc := newTestOrderService(mockRepo, new(MockDiscountRepository), 0)

	order, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID:         "user-123",
		IdempotencyKey: "idem-key-123",
		Items:          []RequestedItem{{ProductID: "product-1", Quantity: 1}},
	})

	require.NoError(t, err)
	assert.Equal(t, "order-1", order.ID)
	mockRepo.AssertExpectations(t)
}

// TestOrderService_CreateOrder_ConcurrentDuplicateExhausted тестирует исчерпание
// попыток перечитывания: клиент получает конфликт, а не "не найдено".
func TestOrderService_CreateOrder_ConcurrentDuplicateExhausted(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	mockRepo.On("GetByIdempotencyKey", mock.Anything, "idem-key-123").
		Return(nil, domain.ErrOrderNotFound)
	mockRepo.On("CreateWithSideEffects", mock.Anything, mock.Anything, mock.Anything).
		Return(domain.ErrDuplicateOrder)

	svc := newTestOrderService(mockRepo, new(MockDiscountRepository), 0)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID:         "user-123",
		IdempotencyKey: "idem-key-123",
		Items:          []RequestedItem{{ProductID: "product-1", Quantity: 1}},
	})

	assert.ErrorIs(t, err, domain.ErrDuplicateOrder)
}

// TestOrderService_CreateOrder_InsufficientStock тестирует отказ при нехватке товара.
func TestOrderService_CreateOrder_InsufficientStock(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	mockRepo.On("GetByIdempotencyKey", mock.Anything, mock.Anything).
		Return(nil, domain.ErrOrderNotFound)
	mockRepo.On("CreateWithSideEffects", mock.Anything, mock.Anything, mock.Anything).
		Return(domain.ErrInsufficientStock)

	svc := newTestOrderService(mockRepo, new(MockDiscountRepository), 0)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID:         "user-123",
		IdempotencyKey: "key",
		Items:          []RequestedItem{{ProductID: "product-1", Quantity: 100}},
	})

	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

// TestOrderService_CreateOrder_WithDiscounts тестирует применение скидок при создании.
func TestOrderService_CreateOrder_WithDiscounts(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	mockRepo.On("GetByIdempotencyKey", mock.Anything, mock.Anything).
		Return(nil, domain.ErrOrderNotFound)

	var capturedEffects *repository.CreateEffects
	mockRepo.On("CreateWithSideEffects", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			capturedEffects = args.Get(2).(*repository.CreateEffects)
		}).
		Return(nil)

	mockDiscounts := new(MockDiscountRepository)
	mockDiscounts.On("GetCouponByCode", mock.Anything, "SAVE10").
		Return(&domain.Coupon{ID: "coupon-1", Code: "SAVE10", Status: domain.CouponStatusActive, Type: domain.CouponTypePercent, Value: 10, MaxDiscount: 5000}, nil)

	svc := newTestOrderService(mockRepo, mockDiscounts, 0)

	order, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID:         "user-123",
		IdempotencyKey: "key",
		Items:          []RequestedItem{{ProductID: "product-1", Quantity: 2}},
		Discounts:      domain.DiscountRequest{CouponCode: "SAVE10"},
	})

	require.NoError(t, err)
	// 2*8990 = 17980, купон 10% = 1798
	assert.Equal(t, int64(1798), order.DiscountTotal.Amount)
	assert.Equal(t, int64(17980-1798), order.GrandTotal.Amount)

	require.NotNil(t, capturedEffects)
	require.NotNil(t, capturedEffects.CouponID)
	assert.Equal(t, "coupon-1", *capturedEffects.CouponID)
	require.NotNil(t, capturedEffects.Applied)
	assert.Equal(t, int64(1798), capturedEffects.Applied.CouponDiscount)
}

// TestOrderService_CreateOrder_InactiveProduct тестирует отказ по недоступному товару.
func TestOrderService_CreateOrder_InactiveProduct(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	mockRepo.On("GetByIdempotencyKey", mock.Anything, mock.Anything).
		Return(nil, domain.ErrOrderNotFound)

	svc := newTestOrderService(mockRepo, new(MockDiscountRepository), 0)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		UserID:         "user-123",
		IdempotencyKey: "key",
		Items:          []RequestedItem{{ProductID: "product-inactive", Quantity: 1}},
	})

	assert.ErrorIs(t, err, domain.ErrInvalidProductID)
}

// =====================================
// Тесты Transition / CancelOrder
// =====================================

// TestOrderService_Transition тестирует переходы статусов через сервис.
func TestOrderService_Transition(t *testing.T) {
	t.Run("допустимый переход", func(t *testing.T) {
		order := &domain.Order{
			ID: "order-1", UserID: "user-1",
			Status: domain.OrderStatusPaid, Version: 2,
		}
		mockRepo := new(MockOrderRepository)
		mockRepo.On("GetByID", mock.Anything, "order-1").Return(order, nil)
		mockRepo.On("TransitionStatus", mock.Anything, "order-1", int64(2), domain.OrderStatusProcessing,
			mock.AnythingOfType("*domain.OrderStatusHistory"), mock.Anything).
			Return(nil)

		svc := newTestOrderService(mockRepo, new(MockDiscountRepository), 0)

		updated, err := svc.Transition(context.Background(), "order-1", domain.OrderStatusProcessing, domain.ActorUser, "сборка начата")

		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusProcessing, updated.Status)
		mockRepo.AssertExpectations(t)
	})

	t.Run("недопустимый переход", func(t *testing.T) {
		order := &domain.Order{ID: "order-1", Status: domain.OrderStatusPending, Version: 1}
		mockRepo := new(MockOrderRepository)
		mockRepo.On("GetByID", mock.Anything, "order-1").Return(order, nil)

		svc := newTestOrderService(mockRepo, new(MockDiscountRepository), 0)

		_, err := svc.Transition(context.Background(), "order-1", domain.OrderStatusShipped, domain.ActorUser, "")

		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		mockRepo.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("конфликт версий прокидывается", func(t *testing.T) {
		order := &domain.Order{ID: "order-1", Status: domain.OrderStatusPending, Version: 1}
		mockRepo := new(MockOrderRepository)
		mockRepo.On("GetByID", mock.Anything, "order-1").Return(order, nil)
		mockRepo.On("TransitionStatus", mock.Anything, "order-1", int64(1), domain.OrderStatusCancelled,
			mock.Anything, mock.Anything).
			Return(domain.ErrVersionConflict)

		svc := newTestOrderService(mockRepo, new(MockDiscountRepository), 0)

		_, err := svc.Transition(context.Background(), "order-1", domain.OrderStatusCancelled, domain.ActorUser, "")

		assert.ErrorIs(t, err, domain.ErrVersionConflict)
	})
}

// TestOrderService_CancelOrder тестирует отмену с возвратом резерва.
func TestOrderService_CancelOrder(t *testing.T) {
	order := &domain.Order{
		ID: "order-1", UserID: "user-1",
		Status: domain.OrderStatusPending, Version: 1,
		Items: []domain.OrderItem{
			{ProductID: "product-1", ProductName: "Молоко", Quantity: 2, UnitPrice: domain.Money{Amount: 8990, Currency: "RUB"}},
		},
	}

	mockRepo := new(MockOrderRepository)
	mockRepo.On("GetByID", mock.Anything, "order-1").Return(order, nil)

	var capturedMovements []*domain.StockMovement
	mockRepo.On("TransitionStatus", mock.Anything, "order-1", int64(1), domain.OrderStatusCancelled,
		mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			capturedMovements = args.Get(5).([]*domain.StockMovement)
		}).
		Return(nil)

	svc := newTestOrderService(mockRepo, new(MockDiscountRepository), 0)

	err := svc.CancelOrder(context.Background(), "order-1", domain.ActorUser, "передумал")

	require.NoError(t, err)
	require.Len(t, capturedMovements, 1)
	assert.Equal(t, int64(2), capturedMovements[0].Delta)
	assert.Equal(t, domain.StockReasonRelease, capturedMovements[0].Reason)
}

// =====================================
// Тесты ListOrders
// =====================================

// TestOrderService_ListOrders тестирует нормализацию пагинации.
func TestOrderService_ListOrders(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	// page=0 -> page=1, pageSize=1000 -> 100
	mockRepo.On("ListByUserID", mock.Anything, "user-1", (*domain.OrderStatus)(nil), 0, maxPageSize).
		Return([]*domain.Order{}, int64(0), nil)

	svc := newTestOrderService(mockRepo, new(MockDiscountRepository), 0)

	_, _, err := svc.ListOrders(context.Background(), "user-1", nil, 0, 1000)

	require.NoError(t, err)
	mockRepo.AssertExpectations(t)
}
