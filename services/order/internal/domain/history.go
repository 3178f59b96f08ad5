package domain

import "time"

// Источники изменения статуса заказа.
const (
	// ActorUser — статус изменён пользователем через API.
	ActorUser = "user"

	// ActorWebhook — статус изменён вебхуком платёжного провайдера.
	ActorWebhook = "webhook"

	// ActorSystem — статус изменён фоновым процессом (таймаут оплаты и т.д.).
	ActorSystem = "system"
)

// OrderStatusHistory — запись истории смены статуса заказа.
// История append-only: записи не изменяются и не удаляются.
type OrderStatusHistory struct {
	ID         string      // UUID записи
	OrderID    string      // ID заказа
	FromStatus OrderStatus // Статус до перехода
	ToStatus   OrderStatus // Статус после перехода
	Actor      string      // Кто инициировал переход (user/webhook/system)
	Reason     string      // Причина перехода (опционально)
	CreatedAt  time.Time   // Момент перехода
}
