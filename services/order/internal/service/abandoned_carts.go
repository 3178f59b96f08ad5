package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"example.com/grocery-core/pkg/kafka"
	"example.com/grocery-core/pkg/logger"
	"example.com/grocery-core/pkg/metrics"
	"example.com/grocery-core/pkg/outbox"
	"example.com/grocery-core/services/order/internal/domain"
	"example.com/grocery-core/services/order/internal/repository"
)

// cartBatchSize — максимум корзин, обрабатываемых за один проход.
const cartBatchSize = 100

// AbandonedCartEvent — payload события брошенной корзины для Kafka.
type AbandonedCartEvent struct {
	CartID    string    `json:"cart_id"`
	UserID    string    `json:"user_id"`
	ItemCount int       `json:"item_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CartService определяет интерфейс работы с корзинами.
type CartService interface {
	// UpdateCart сохраняет снимок корзины пользователя.
	// Любое обновление сбрасывает отметку об отправленном напоминании.
	UpdateCart(ctx context.Context, userID string, items []domain.CartItem) (*domain.CartSnapshot, error)

	// GetCart возвращает корзину пользователя.
	GetCart(ctx context.Context, userID string) (*domain.CartSnapshot, error)
}

// AbandonedCartDetector находит брошенные корзины и публикует по ним
// события уведомлений через outbox. Также реализует CartService.
type AbandonedCartDetector struct {
	repo      repository.CartRepository
	threshold time.Duration
	interval  time.Duration
}

// NewAbandonedCartDetector создаёт новый детектор брошенных корзин.
func NewAbandonedCartDetector(repo repository.CartRepository, threshold, interval time.Duration) *AbandonedCartDetector {
	return &AbandonedCartDetector{
		repo:      repo,
		threshold: threshold,
		interval:  interval,
	}
}

// UpdateCart сохраняет снимок корзины пользователя.
func (d *AbandonedCartDetector) UpdateCart(ctx context.Context, userID string, items []domain.CartItem) (*domain.CartSnapshot, error) {
	cart := &domain.CartSnapshot{
		ID:        uuid.New().String(),
		UserID:    userID,
		Items:     items,
		UpdatedAt: time.Now(),
	}
	if err := d.repo.Upsert(ctx, cart); err != nil {
		return nil, err
	}
	return d.repo.GetByUserID(ctx, userID)
}

// GetCart возвращает корзину пользователя.
func (d *AbandonedCartDetector) GetCart(ctx context.Context, userID string) (*domain.CartSnapshot, error) {
	return d.repo.GetByUserID(ctx, userID)
}

// Run запускает периодические проходы детектора. Блокируется до отмены контекста.
func (d *AbandonedCartDetector) Run(ctx context.Context) {
	log := logger.With().Str("component", "abandoned_cart_detector").Logger()
	log.Info().
		Dur("threshold", d.threshold).
		Dur("interval", d.interval).
		Msg("Детектор брошенных корзин запущен")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Детектор брошенных корзин остановлен")
			return
		case <-ticker.C:
			d.Detect(ctx)
		}
	}
}

// Detect выполняет один проход: находит корзины без активности дольше
// порога и фиксирует напоминание вместе с событием outbox атомарно.
// Повторное напоминание по той же корзине не отправляется, пока
// пользователь её не изменит.
func (d *AbandonedCartDetector) Detect(ctx context.Context) {
	log := logger.FromContext(ctx)

	cutoff := time.Now().Add(-d.threshold)
	carts, err := d.repo.ListNotifiable(ctx, cutoff, cartBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("Ошибка выборки брошенных корзин")
		return
	}

	now := time.Now()
	for _, cart := range carts {
		payload, err := json.Marshal(AbandonedCartEvent{
			CartID:    cart.ID,
			UserID:    cart.UserID,
			ItemCount: len(cart.Items),
			UpdatedAt: cart.UpdatedAt,
		})
		if err != nil {
			log.Error().Err(err).Str("cart_id", cart.ID).Msg("Ошибка сериализации события корзины")
			continue
		}

		event := outbox.NewOutbox(outbox.AggregateTypeCart, cart.ID, outbox.EventTypeCartAbandoned, kafka.TopicCartsAbandoned, payload)

		if err := d.repo.MarkNotifiedWithOutbox(ctx, cart.ID, now, event); err != nil {
			// ErrCartNotFound здесь — конкурентный проход уже отметил корзину
			log.Debug().Err(err).Str("cart_id", cart.ID).Msg("Корзина пропущена")
			continue
		}

		metrics.AbandonedCartsDetectedTotal.Inc()
		log.Info().
			Str("cart_id", cart.ID).
			Str("user_id", cart.UserID).
			Msg("Брошенная корзина, событие уведомления записано")
	}
}
