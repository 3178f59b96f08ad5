// Package notifier содержит обработку событий Order Core для уведомлений
// пользователей. События приходят из Kafka: результаты платежей и
// брошенные корзины.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"example.com/grocery-core/pkg/kafka"
	"example.com/grocery-core/pkg/logger"
	"example.com/grocery-core/pkg/metrics"
)

// Типы уведомлений для метрик.
const (
	kindPaymentSucceeded = "payment_succeeded"
	kindPaymentFailed    = "payment_failed"
	kindCartAbandoned    = "cart_abandoned"
)

// Sender отправляет уведомление пользователю. Реализация — почта, push,
// мессенджер; здесь важен только контракт.
type Sender interface {
	Send(ctx context.Context, userID, subject, body string) error
}

// LogSender пишет уведомления в лог. Используется, пока реальный канал
// доставки не подключён.
type LogSender struct{}

// Send логирует уведомление вместо реальной отправки.
func (LogSender) Send(ctx context.Context, userID, subject, body string) error {
	log := logger.FromContext(ctx)
	log.Info().
		Str("user_id", userID).
		Str("subject", subject).
		Str("body", body).
		Msg("Уведомление отправлено")
	return nil
}

// paymentResultEvent — событие результата платежа из payments.results.
type paymentResultEvent struct {
	OrderID       string `json:"order_id"`
	UserID        string `json:"user_id"`
	ProviderTxID  string `json:"provider_tx_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Succeeded     bool   `json:"succeeded"`
	FailureReason string `json:"failure_reason"`
}

// cartAbandonedEvent — событие брошенной корзины из carts.abandoned.
type cartAbandonedEvent struct {
	CartID    string `json:"cart_id"`
	UserID    string `json:"user_id"`
	ItemCount int    `json:"item_count"`
}

// Notifier превращает события Kafka в уведомления пользователям.
type Notifier struct {
	sender Sender
}

// NewNotifier создаёт новый Notifier.
func NewNotifier(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

// HandlePaymentResult обрабатывает сообщение из payments.results.
// Используется как kafka.MessageHandler.
func (n *Notifier) HandlePaymentResult(ctx context.Context, msg *kafka.Message) error {
	var event paymentResultEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("ошибка разбора события платежа: %w", err)
	}
	if event.UserID == "" {
		return fmt.Errorf("событие платежа без user_id (order_id=%s)", event.OrderID)
	}

	var subject, body, kind string
	if event.Succeeded {
		subject = "Заказ оплачен"
		body = fmt.Sprintf("Оплата заказа %s на сумму %d %s прошла успешно.",
			event.OrderID, event.Amount, event.Currency)
		kind = kindPaymentSucceeded
	} else {
		subject = "Оплата не прошла"
		body = fmt.Sprintf("Оплата заказа %s отклонена: %s. Попробуйте ещё раз.",
			event.OrderID, event.FailureReason)
		kind = kindPaymentFailed
	}

	if err := n.sender.Send(ctx, event.UserID, subject, body); err != nil {
		return fmt.Errorf("ошибка отправки уведомления о платеже: %w", err)
	}

	metrics.NotificationsSentTotal.WithLabelValues(kind).Inc()
	return nil
}

// HandleCartAbandoned обрабатывает сообщение из carts.abandoned.
// Напоминание по корзине одноразовое — повторную отправку отсекает
// Order Core, здесь каждое сообщение просто доставляется.
func (n *Notifier) HandleCartAbandoned(ctx context.Context, msg *kafka.Message) error {
	var event cartAbandonedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("ошибка разбора события корзины: %w", err)
	}
	if event.UserID == "" {
		return fmt.Errorf("событие корзины без user_id (cart_id=%s)", event.CartID)
	}

	body := fmt.Sprintf("В вашей корзине осталось товаров: %d. Завершите оформление заказа.", event.ItemCount)
	if err := n.sender.Send(ctx, event.UserID, "Вы забыли корзину", body); err != nil {
		return fmt.Errorf("ошибка отправки напоминания о корзине: %w", err)
	}

	metrics.NotificationsSentTotal.WithLabelValues(kindCartAbandoned).Inc()
	return nil
}
