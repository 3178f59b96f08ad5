// Package outbox реализует Outbox Pattern для гарантированной доставки событий в Kafka.
// Order Core пишет событие (результат платежа, брошенная корзина) в таблицу outbox
// в одной транзакции с бизнес-данными; отдельный OutboxWorker читает outbox
// и отправляет события в Kafka. Корректность заказа не зависит от доставки.
package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Типы агрегатов outbox.
const (
	AggregateTypeOrder = "order"
	AggregateTypeCart  = "cart"
)

// Типы событий outbox.
const (
	EventTypePaymentSucceeded = "payment.succeeded"
	EventTypePaymentFailed    = "payment.failed"
	EventTypeOrderCancelled   = "order.cancelled"
	EventTypeOrderRefunded    = "order.refunded"
	EventTypeCartAbandoned    = "cart.abandoned"
)

// Outbox — запись в таблице outbox для гарантированной доставки в Kafka.
type Outbox struct {
	ID            string            // UUID записи
	AggregateType string            // Тип агрегата (order / cart)
	AggregateID   string            // ID агрегата (order_id / cart_id)
	EventType     string            // Тип события (payment.succeeded / payment.failed / cart.abandoned)
	Topic         string            // Kafka топик
	MessageKey    string            // Ключ сообщения (для партиционирования)
	Payload       []byte            // JSON payload
	Headers       map[string]string // Headers для Kafka (trace_id, order_id)
	CreatedAt     time.Time         // Время создания
	ProcessedAt   *time.Time        // Время обработки (nil = не обработана)
	RetryCount    int               // Количество попыток отправки
	LastError     *string           // Последняя ошибка
}

// NewOutbox создаёт запись outbox для события агрегата.
// Ключом сообщения становится ID агрегата: события одного заказа
// попадают в одну партицию и сохраняют порядок.
func NewOutbox(aggregateType, aggregateID, eventType, topic string, payload []byte) *Outbox {
	return &Outbox{
		ID:            uuid.New().String(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Topic:         topic,
		MessageKey:    aggregateID,
		Payload:       payload,
	}
}

// HeadersJSON возвращает headers в формате JSON для БД.
func (o *Outbox) HeadersJSON() ([]byte, error) {
	if o.Headers == nil {
		return nil, nil
	}
	return json.Marshal(o.Headers)
}

// SetHeadersFromJSON устанавливает headers из JSON.
func (o *Outbox) SetHeadersFromJSON(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &o.Headers)
}
