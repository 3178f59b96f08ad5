package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"example.com/grocery-core/pkg/logger"
	"example.com/grocery-core/pkg/metrics"
	"example.com/grocery-core/services/order/internal/domain"
	"example.com/grocery-core/services/order/internal/repository"
	"example.com/grocery-core/services/order/internal/stock"
)

// sweepBatchSize — максимум заказов, обрабатываемых за один проход.
const sweepBatchSize = 100

// PendingSweeper отменяет заказы, не оплаченные в отведённое окно.
// Резерв возвращается на склад в той же транзакции, что и смена статуса.
type PendingSweeper struct {
	repo     repository.OrderRepository
	timeout  time.Duration
	interval time.Duration
}

// NewPendingSweeper создаёт новый фоновый процесс отмены просроченных заказов.
func NewPendingSweeper(repo repository.OrderRepository, timeout, interval time.Duration) *PendingSweeper {
	return &PendingSweeper{
		repo:     repo,
		timeout:  timeout,
		interval: interval,
	}
}

// Run запускает периодические проходы. Блокируется до отмены контекста.
func (s *PendingSweeper) Run(ctx context.Context) {
	log := logger.With().Str("component", "pending_sweeper").Logger()
	log.Info().
		Dur("timeout", s.timeout).
		Dur("interval", s.interval).
		Msg("Фоновая отмена просроченных заказов запущена")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Фоновая отмена остановлена")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep выполняет один проход: находит просроченные PENDING заказы
// и отменяет их. Конфликт версии не ошибка — заказ успели оплатить
// или отменить конкурентно, следующий проход его уже не увидит.
func (s *PendingSweeper) Sweep(ctx context.Context) {
	log := logger.FromContext(ctx)

	cutoff := time.Now().Add(-s.timeout)
	orders, err := s.repo.ListPendingOlderThan(ctx, cutoff, sweepBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("Ошибка выборки просроченных заказов")
		return
	}

	for _, order := range orders {
		history := &domain.OrderStatusHistory{
			ID:         uuid.New().String(),
			OrderID:    order.ID,
			FromStatus: order.Status,
			ToStatus:   domain.OrderStatusCancelled,
			Actor:      domain.ActorSystem,
			Reason:     "оплата не подтверждена в отведённое время",
		}
		movements := stock.ReleaseMovements(order.ID, order.Items)

		err := s.repo.TransitionStatus(ctx, order.ID, order.Version, domain.OrderStatusCancelled, history, movements)
		if err != nil {
			if errors.Is(err, domain.ErrVersionConflict) || errors.Is(err, domain.ErrOrderNotFound) {
				// Гонка с оплатой или ручной отменой — пропускаем
				log.Debug().Str("order_id", order.ID).Msg("Заказ изменён конкурентно, пропуск")
				continue
			}
			log.Error().Err(err).Str("order_id", order.ID).Msg("Ошибка отмены просроченного заказа")
			continue
		}

		metrics.PendingOrdersCancelledTotal.Inc()
		log.Info().
			Str("order_id", order.ID).
			Time("created_at", order.CreatedAt).
			Msg("Просроченный заказ отменён, резерв возвращён")
	}
}
