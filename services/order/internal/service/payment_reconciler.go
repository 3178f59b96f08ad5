package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"example.com/grocery-core/pkg/kafka"
	"example.com/grocery-core/pkg/logger"
	"example.com/grocery-core/pkg/metrics"
	"example.com/grocery-core/pkg/outbox"
	"example.com/grocery-core/services/order/internal/domain"
	"example.com/grocery-core/services/order/internal/repository"
	"example.com/grocery-core/services/order/internal/stock"
)

// Результаты обработки подтверждения для метрик.
const (
	reconcileResultSucceeded = "succeeded"
	reconcileResultFailed    = "failed"
	reconcileResultDuplicate = "duplicate"
	reconcileResultMismatch  = "mismatch"
)

// idempotencyKeyTTL — время жизни ключа идемпотентности в Redis.
// Авторитетный источник — уникальный индекс provider_tx_id в БД,
// Redis лишь отсекает повторные вебхуки без похода в MySQL.
const idempotencyKeyTTL = 24 * time.Hour

// PaymentNotice — уведомление платёжного провайдера о результате платежа.
type PaymentNotice struct {
	ProviderTxID  string // ID транзакции у провайдера
	OrderID       string // ID заказа
	Amount        int64  // Подтверждённая сумма в минимальных единицах
	Currency      string // ISO 4217 код валюты
	Succeeded     bool   // Результат платежа
	FailureReason string // Причина отказа (при неуспехе)
}

// PaymentResultEvent — payload события результата платежа для Kafka.
type PaymentResultEvent struct {
	OrderID       string `json:"order_id"`
	UserID        string `json:"user_id"`
	ProviderTxID  string `json:"provider_tx_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Succeeded     bool   `json:"succeeded"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// PaymentReconciler определяет интерфейс сверки платежей.
type PaymentReconciler interface {
	// Confirm обрабатывает уведомление провайдера. Идемпотентен по
	// provider_tx_id: повторное уведомление с той же суммой возвращает
	// сохранённый платёж без побочных эффектов, повтор с другой суммой
	// отклоняется как расхождение. Успешный статус платежа липкий.
	Confirm(ctx context.Context, notice PaymentNotice) (*domain.OrderPayment, error)
}

// paymentReconciler — реализация PaymentReconciler.
type paymentReconciler struct {
	payments repository.PaymentRepository
	orders   repository.OrderRepository
	redis    *redis.Client // nil — без fast path, идемпотентность даёт БД
}

// NewPaymentReconciler создаёт новый сервис сверки платежей.
func NewPaymentReconciler(payments repository.PaymentRepository, orders repository.OrderRepository, redisClient *redis.Client) PaymentReconciler {
	return &paymentReconciler{
		payments: payments,
		orders:   orders,
		redis:    redisClient,
	}
}

// Confirm обрабатывает уведомление платёжного провайдера.
func (r *paymentReconciler) Confirm(ctx context.Context, notice PaymentNotice) (*domain.OrderPayment, error) {
	log := logger.FromContext(ctx)

	// Fast path: Redis SETNX отсекает повторные вебхуки без похода в БД.
	// Ошибки Redis не фатальны — авторитетна проверка в БД.
	if r.redis != nil {
		key := "payment:tx:" + notice.ProviderTxID
		acquired, err := r.redis.SetNX(ctx, key, notice.OrderID, idempotencyKeyTTL).Result()
		if err != nil {
			log.Warn().Err(err).Msg("Redis недоступен, идемпотентность только через БД")
		} else if !acquired {
			return r.handleDuplicate(ctx, notice)
		}
	}

	existing, err := r.payments.GetByProviderTxID(ctx, notice.ProviderTxID)
	if err != nil && !errors.Is(err, domain.ErrPaymentNotFound) {
		return nil, fmt.Errorf("ошибка поиска платежа: %w", err)
	}
	if existing != nil {
		// Повтор с той же транзакцией, но другой суммой — не повтор,
		// а расхождение: ручной разбор
		if err := r.checkNoticeMatches(ctx, existing, notice); err != nil {
			return nil, err
		}
		// Поздний успех после отказа перезаписывает статус,
		// всё остальное — повтор
		if notice.Succeeded && existing.Status == domain.PaymentStatusFailed {
			return r.confirmSucceeded(ctx, existing, notice)
		}
		metrics.PaymentsConfirmedTotal.WithLabelValues(reconcileResultDuplicate).Inc()
		log.Info().
			Str("provider_tx_id", notice.ProviderTxID).
			Str("status", string(existing.Status)).
			Msg("Повторное уведомление, платёж уже обработан")
		return existing, nil
	}

	payment := &domain.OrderPayment{
		ID:           uuid.New().String(),
		OrderID:      notice.OrderID,
		ProviderTxID: notice.ProviderTxID,
		Amount:       domain.Money{Amount: notice.Amount, Currency: notice.Currency},
		Status:       domain.PaymentStatusPending,
	}

	if notice.Succeeded {
		return r.confirmSucceeded(ctx, payment, notice)
	}
	return r.confirmFailed(ctx, payment, notice)
}

// handleDuplicate возвращает сохранённый платёж для повторного вебхука.
func (r *paymentReconciler) handleDuplicate(ctx context.Context, notice PaymentNotice) (*domain.OrderPayment, error) {
	existing, err := r.payments.GetByProviderTxID(ctx, notice.ProviderTxID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			// Ключ в Redis есть, записи в БД нет: первый вебхук ещё в полёте
			// либо упал до коммита. Отдаём конфликт, провайдер повторит.
			return nil, domain.ErrDuplicatePayment
		}
		return nil, err
	}
	if err := r.checkNoticeMatches(ctx, existing, notice); err != nil {
		return nil, err
	}
	metrics.PaymentsConfirmedTotal.WithLabelValues(reconcileResultDuplicate).Inc()
	return existing, nil
}

// checkNoticeMatches сверяет повторное уведомление с сохранённым платежом.
// Та же транзакция с другой суммой или валютой не считается повтором.
func (r *paymentReconciler) checkNoticeMatches(ctx context.Context, existing *domain.OrderPayment, notice PaymentNotice) error {
	if notice.Amount == existing.Amount.Amount && notice.Currency == existing.Amount.Currency {
		return nil
	}
	metrics.PaymentsConfirmedTotal.WithLabelValues(reconcileResultMismatch).Inc()
	log := logger.FromContext(ctx)
	log.Error().
		Str("provider_tx_id", notice.ProviderTxID).
		Int64("stored", existing.Amount.Amount).
		Int64("got", notice.Amount).
		Msg("Повторное уведомление расходится с сохранённым платежом")
	return domain.ErrPaymentAmountMismatch
}

// confirmSucceeded сохраняет успешный платёж и переводит заказ в PAID.
func (r *paymentReconciler) confirmSucceeded(ctx context.Context, payment *domain.OrderPayment, notice PaymentNotice) (*domain.OrderPayment, error) {
	log := logger.FromContext(ctx)

	order, err := r.orders.GetByID(ctx, notice.OrderID)
	if err != nil {
		return nil, err
	}

	// Сумма должна совпадать с итогом заказа копейка в копейку.
	// Расхождение — ручной разбор, автоматически не исправляется.
	if notice.Amount != order.GrandTotal.Amount || notice.Currency != order.GrandTotal.Currency {
		metrics.PaymentsConfirmedTotal.WithLabelValues(reconcileResultMismatch).Inc()
		log.Error().
			Str("order_id", order.ID).
			Int64("expected", order.GrandTotal.Amount).
			Int64("got", notice.Amount).
			Msg("Сумма платежа не совпадает с суммой заказа")
		return nil, domain.ErrPaymentAmountMismatch
	}

	if !order.CanTransitionTo(domain.OrderStatusPaid) {
		return nil, domain.ErrInvalidTransition
	}

	payment.MarkSucceeded()

	history := &domain.OrderStatusHistory{
		ID:         uuid.New().String(),
		OrderID:    order.ID,
		FromStatus: order.Status,
		ToStatus:   domain.OrderStatusPaid,
		Actor:      domain.ActorWebhook,
		Reason:     "оплата подтверждена провайдером",
	}

	event, err := r.buildResultEvent(order, notice)
	if err != nil {
		return nil, err
	}

	if err := r.payments.SaveSucceededWithOrder(ctx, payment, order.ID, order.Version, history, event); err != nil {
		if errors.Is(err, domain.ErrDuplicatePayment) {
			// Конкурентный вебхук успел первым — отдаём его результат
			return r.handleDuplicate(ctx, notice)
		}
		return nil, err
	}

	metrics.PaymentsConfirmedTotal.WithLabelValues(reconcileResultSucceeded).Inc()
	log.Info().
		Str("order_id", order.ID).
		Str("provider_tx_id", notice.ProviderTxID).
		Msg("Платёж подтверждён, заказ оплачен")

	return payment, nil
}

// confirmFailed сохраняет отклонённый платёж. Неоплаченный заказ отменяется
// сразу с возвратом резерва на склад, фоновый процесс остаётся подстраховкой
// для заказов, по которым провайдер вообще не ответил.
func (r *paymentReconciler) confirmFailed(ctx context.Context, payment *domain.OrderPayment, notice PaymentNotice) (*domain.OrderPayment, error) {
	log := logger.FromContext(ctx)

	order, err := r.orders.GetByID(ctx, notice.OrderID)
	if err != nil {
		return nil, err
	}

	if err := payment.MarkFailed(notice.FailureReason); err != nil {
		return nil, err
	}

	event, err := r.buildResultEvent(order, notice)
	if err != nil {
		return nil, err
	}

	if order.Status == domain.OrderStatusPending {
		history := &domain.OrderStatusHistory{
			ID:         uuid.New().String(),
			OrderID:    order.ID,
			FromStatus: order.Status,
			ToStatus:   domain.OrderStatusCancelled,
			Actor:      domain.ActorWebhook,
			Reason:     "платёж отклонён провайдером",
		}
		movements := stock.ReleaseMovements(order.ID, order.Items)
		err = r.payments.SaveFailedWithOrder(ctx, payment, order.ID, order.Version, history, movements, event)
		if errors.Is(err, domain.ErrVersionConflict) {
			// Конкурентный успех или отмена успели первыми — фиксируем только платёж
			err = r.payments.SaveFailed(ctx, payment, event)
		}
	} else {
		// Заказ уже оплачен другой попыткой либо закрыт — статус не трогаем
		err = r.payments.SaveFailed(ctx, payment, event)
	}
	if err != nil {
		if errors.Is(err, domain.ErrDuplicatePayment) {
			return r.handleDuplicate(ctx, notice)
		}
		return nil, err
	}

	metrics.PaymentsConfirmedTotal.WithLabelValues(reconcileResultFailed).Inc()
	log.Info().
		Str("order_id", order.ID).
		Str("provider_tx_id", notice.ProviderTxID).
		Str("reason", notice.FailureReason).
		Msg("Платёж отклонён провайдером")

	return payment, nil
}

// buildResultEvent строит запись outbox с результатом платежа.
func (r *paymentReconciler) buildResultEvent(order *domain.Order, notice PaymentNotice) (*outbox.Outbox, error) {
	payload, err := json.Marshal(PaymentResultEvent{
		OrderID:       order.ID,
		UserID:        order.UserID,
		ProviderTxID:  notice.ProviderTxID,
		Amount:        notice.Amount,
		Currency:      notice.Currency,
		Succeeded:     notice.Succeeded,
		FailureReason: notice.FailureReason,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации события: %w", err)
	}

	eventType := outbox.EventTypePaymentSucceeded
	if !notice.Succeeded {
		eventType = outbox.EventTypePaymentFailed
	}

	return outbox.NewOutbox(outbox.AggregateTypeOrder, order.ID, eventType, kafka.TopicPaymentResults, payload), nil
}
