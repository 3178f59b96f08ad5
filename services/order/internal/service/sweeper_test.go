package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"example.com/grocery-core/services/order/internal/domain"
)

func expiredOrder(id string, version int64) *domain.Order {
	return &domain.Order{
		ID:      id,
		UserID:  "user-1",
		Status:  domain.OrderStatusPending,
		Version: version,
		Items: []domain.OrderItem{
			{ProductID: "product-1", ProductName: "Молоко", Quantity: 3, UnitPrice: domain.Money{Amount: 8990, Currency: "RUB"}},
		},
		CreatedAt: time.Now().Add(-time.Hour),
	}
}

// TestPendingSweeper_Sweep тестирует отмену просроченных заказов.
func TestPendingSweeper_Sweep(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	mockRepo.On("ListPendingOlderThan", mock.Anything, mock.AnythingOfType("time.Time"), sweepBatchSize).
		Return([]*domain.Order{expiredOrder("order-1", 1), expiredOrder("order-2", 3)}, nil)

	var capturedMovements []*domain.StockMovement
	mockRepo.On("TransitionStatus", mock.Anything, "order-1", int64(1), domain.OrderStatusCancelled,
		mock.AnythingOfType("*domain.OrderStatusHistory"), mock.Anything).
		Run(func(args mock.Arguments) {
			capturedMovements = args.Get(5).([]*domain.StockMovement)
		}).
		Return(nil)
	mockRepo.On("TransitionStatus", mock.Anything, "order-2", int64(3), domain.OrderStatusCancelled,
		mock.Anything, mock.Anything).
		Return(nil)

	sweeper := NewPendingSweeper(mockRepo, 15*time.Minute, time.Minute)
	sweeper.Sweep(context.Background())

	mockRepo.AssertExpectations(t)
	// Резерв возвращается в той же транзакции
	assert.Len(t, capturedMovements, 1)
	assert.Equal(t, int64(3), capturedMovements[0].Delta)
	assert.Equal(t, domain.StockReasonRelease, capturedMovements[0].Reason)
}

// TestPendingSweeper_Sweep_VersionConflict тестирует гонку с конкурентной оплатой.
func TestPendingSweeper_Sweep_VersionConflict(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	mockRepo.On("ListPendingOlderThan", mock.Anything, mock.Anything, sweepBatchSize).
		Return([]*domain.Order{expiredOrder("order-1", 1), expiredOrder("order-2", 1)}, nil)

	// Первый заказ успели оплатить — конфликт версии пропускается,
	// второй заказ всё равно обрабатывается
	mockRepo.On("TransitionStatus", mock.Anything, "order-1", int64(1), domain.OrderStatusCancelled,
		mock.Anything, mock.Anything).
		Return(domain.ErrVersionConflict)
	mockRepo.On("TransitionStatus", mock.Anything, "order-2", int64(1), domain.OrderStatusCancelled,
		mock.Anything, mock.Anything).
		Return(nil)

	sweeper := NewPendingSweeper(mockRepo, 15*time.Minute, time.Minute)
	sweeper.Sweep(context.Background())

	mockRepo.AssertExpectations(t)
}

// TestPendingSweeper_Sweep_Empty тестирует проход без просроченных заказов.
func TestPendingSweeper_Sweep_Empty(t *testing.T) {
	mockRepo := new(MockOrderRepository)
	mockRepo.On("ListPendingOlderThan", mock.Anything, mock.Anything, sweepBatchSize).
		Return([]*domain.Order{}, nil)

	sweeper := NewPendingSweeper(mockRepo, 15*time.Minute, time.Minute)
	sweeper.Sweep(context.Background())

	mockRepo.AssertNotCalled(t, "TransitionStatus",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
