// Package testutil содержит общие моки репозиториев для unit тестов.
package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"example.com/grocery-core/pkg/outbox"
	"example.com/grocery-core/services/order/internal/domain"
	"example.com/grocery-core/services/order/internal/repository"
)

// =====================================
// MockOrderRepository
// =====================================

// MockOrderRepository — мок для repository.OrderRepository.
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) CreateWithSideEffects(ctx context.Context, order *domain.Order, effects *repository.CreateEffects) error {
	return m.Called(ctx, order, effects).Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) ListByUserID(ctx context.Context, userID string, status *domain.OrderStatus, offset, limit int) ([]*domain.Order, int64, error) {
	args := m.Called(ctx, userID, status, offset, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*domain.Order), args.Get(1).(int64), args.Error(2)
}

func (m *MockOrderRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Order, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Order), args.Error(1)
}

func (m *MockOrderRepository) TransitionStatus(ctx context.Context, orderID string, fromVersion int64, to domain.OrderStatus, history *domain.OrderStatusHistory, movements []*domain.StockMovement) error {
	return m.Called(ctx, orderID, fromVersion, to, history, movements).Error(0)
}

// =====================================
// MockPaymentRepository
// =====================================

// MockPaymentRepository — мок для repository.PaymentRepository.
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) GetByProviderTxID(ctx context.Context, providerTxID string) (*domain.OrderPayment, error) {
	args := m.Called(ctx, providerTxID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OrderPayment), args.Error(1)
}

func (m *MockPaymentRepository) GetSucceededByOrderID(ctx context.Context, orderID string) (*domain.OrderPayment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OrderPayment), args.Error(1)
}

func (m *MockPaymentRepository) SaveSucceededWithOrder(ctx context.Context, payment *domain.OrderPayment, orderID string, fromVersion int64, history *domain.OrderStatusHistory, event *outbox.Outbox) error {
	return m.Called(ctx, payment, orderID, fromVersion, history, event).Error(0)
}

func (m *MockPaymentRepository) SaveFailed(ctx context.Context, payment *domain.OrderPayment, event *outbox.Outbox) error {
	return m.Called(ctx, payment, event).Error(0)
}

func (m *MockPaymentRepository) SaveFailedWithOrder(ctx context.Context, payment *domain.OrderPayment, orderID string, fromVersion int64, history *domain.OrderStatusHistory, movements []*domain.StockMovement, event *outbox.Outbox) error {
	return m.Called(ctx, payment, orderID, fromVersion, history, movements, event).Error(0)
}

// =====================================
// MockRefundRepository
// =====================================

// MockRefundRepository — мок для repository.RefundRepository.
type MockRefundRepository struct {
	mock.Mock
}

func (m *MockRefundRepository) CreateWithCompensation(ctx context.Context, refund *domain.Refund, comp *repository.RefundCompensation) error {
	return m.Called(ctx, refund, comp).Error(0)
}

func (m *MockRefundRepository) SumByPaymentID(ctx context.Context, paymentID string) (int64, error) {
	args := m.Called(ctx, paymentID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRefundRepository) ListByOrderID(ctx context.Context, orderID string) ([]*domain.Refund, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Refund), args.Error(1)
}

// =====================================
// MockDiscountRepository
// =====================================

// MockDiscountRepository — мок для repository.DiscountRepository.
type MockDiscountRepository struct {
	mock.Mock
}

func (m *MockDiscountRepository) GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Coupon), args.Error(1)
}

func (m *MockDiscountRepository) GetGiftCardByCode(ctx context.Context, code string) (*domain.GiftCard, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GiftCard), args.Error(1)
}

func (m *MockDiscountRepository) GetRewardAccount(ctx context.Context, userID string) (*domain.RewardAccount, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RewardAccount), args.Error(1)
}

func (m *MockDiscountRepository) GetAppliedByOrderID(ctx context.Context, orderID string) (*domain.AppliedDiscount, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AppliedDiscount), args.Error(1)
}

func (m *MockDiscountRepository) CountCouponUsageByUser(ctx context.Context, couponID, userID string) (int64, error) {
	args := m.Called(ctx, couponID, userID)
	return args.Get(0).(int64), args.Error(1)
}

// =====================================
// MockHistoryRepository
// =====================================

// MockHistoryRepository — мок для repository.HistoryRepository.
type MockHistoryRepository struct {
	mock.Mock
}

func (m *MockHistoryRepository) ListByOrderID(ctx context.Context, orderID string) ([]*domain.OrderStatusHistory, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.OrderStatusHistory), args.Error(1)
}

// =====================================
// MockCartRepository
// =====================================

// MockCartRepository — мок для repository.CartRepository.
type MockCartRepository struct {
	mock.Mock
}

func (m *MockCartRepository) Upsert(ctx context.Context, cart *domain.CartSnapshot) error {
	return m.Called(ctx, cart).Error(0)
}

func (m *MockCartRepository) GetByUserID(ctx context.Context, userID string) (*domain.CartSnapshot, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CartSnapshot), args.Error(1)
}

func (m *MockCartRepository) ListNotifiable(ctx context.Context, cutoff time.Time, limit int) ([]*domain.CartSnapshot, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.CartSnapshot), args.Error(1)
}

func (m *MockCartRepository) MarkNotifiedWithOutbox(ctx context.Context, cartID string, at time.Time, event *outbox.Outbox) error {
	return m.Called(ctx, cartID, at, event).Error(0)
}

// =====================================
// MockStockRepository
// =====================================

// MockStockRepository — мок для repository.StockRepository.
type MockStockRepository struct {
	mock.Mock
}

func (m *MockStockRepository) Append(ctx context.Context, movements []*domain.StockMovement) error {
	return m.Called(ctx, movements).Error(0)
}

func (m *MockStockRepository) CurrentStock(ctx context.Context, productID string) (int64, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStockRepository) ListMovements(ctx context.Context, productID string, limit int) ([]*domain.StockMovement, error) {
	args := m.Called(ctx, productID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.StockMovement), args.Error(1)
}
