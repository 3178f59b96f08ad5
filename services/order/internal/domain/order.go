package domain

import (
	"strings"
	"time"
)

// OrderStatus — статус заказа в системе.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, ожидает подтверждения оплаты.
	OrderStatusPending OrderStatus = "PENDING"

	// OrderStatusPaid — оплата подтверждена провайдером.
	OrderStatusPaid OrderStatus = "PAID"

	// OrderStatusProcessing — заказ собирается на складе.
	OrderStatusProcessing OrderStatus = "PROCESSING"

	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "SHIPPED"

	// OrderStatusDelivered — заказ доставлен покупателю.
	OrderStatusDelivered OrderStatus = "DELIVERED"

	// OrderStatusCancelled — заказ отменён до оплаты (пользователем или таймаутом).
	OrderStatusCancelled OrderStatus = "CANCELLED"

	// OrderStatusRefunded — платёж по заказу полностью возвращён.
	OrderStatusRefunded OrderStatus = "REFUNDED"
)

// IsTerminal возвращает true, если заказ в финальном состоянии.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusRefunded
}

// IsValid возвращает true для известного статуса заказа.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// =============================================================================
// Допустимые переходы статусов (State Machine)
// =============================================================================

// allowedTransitions определяет валидные переходы статуса заказа.
// REFUNDED достижим из любого оплаченного статуса — полный возврат
// возможен и после доставки.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:       {OrderStatusProcessing, OrderStatusRefunded},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusRefunded},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusRefunded},
	OrderStatusDelivered:  {OrderStatusRefunded},
	// OrderStatusCancelled и OrderStatusRefunded — терминальные состояния
}

// Money — денежная сумма с валютой.
// Хранит сумму в минимальных единицах (копейки, центы) для избежания проблем с плавающей точкой.
type Money struct {
	Currency string // ISO 4217 код валюты (USD, RUB, EUR)
	Amount   int64  // Сумма в минимальных единицах (копейки/центы)
}

// Multiply умножает сумму на количество.
// Используется для расчёта стоимости позиции (цена * количество).
func (m Money) Multiply(quantity int32) Money {
	return Money{
		Currency: m.Currency,
		Amount:   m.Amount * int64(quantity),
	}
}

// Order — заказ в системе.
// Это доменная сущность без зависимостей от инфраструктуры (GORM, HTTP).
type Order struct {
	ID             string      // Уникальный идентификатор заказа (UUID)
	UserID         string      // ID пользователя, создавшего заказ
	Items          []OrderItem // Позиции заказа
	Status         OrderStatus // Текущий статус заказа
	Subtotal       Money       // Сумма позиций до скидок
	DiscountTotal  Money       // Суммарная скидка (купон + баллы + подарочная карта)
	ShippingTotal  Money       // Стоимость доставки
	GrandTotal     Money       // Итог к оплате: Subtotal - DiscountTotal + ShippingTotal
	Version        int64       // Версия для optimistic lock, растёт при каждом изменении
	IdempotencyKey string      // Ключ идемпотентности для предотвращения дубликатов
	CreatedAt      time.Time   // Дата создания заказа
	UpdatedAt      time.Time   // Дата последнего обновления
}

// Validate проверяет корректность полей заказа.
// Вызывается перед созданием заказа.
func (o *Order) Validate() error {
	if strings.TrimSpace(o.UserID) == "" {
		return ErrInvalidUserID
	}

	if len(o.Items) == 0 {
		return ErrEmptyOrderItems
	}

	currency := o.Items[0].UnitPrice.Currency
	for i := range o.Items {
		if err := o.Items[i].Validate(); err != nil {
			return err
		}
		if o.Items[i].UnitPrice.Currency != currency {
			return ErrCurrencyMismatch
		}
	}

	return nil
}

// RecomputeTotals пересчитывает суммы заказа из позиций и скидки.
// Скидка ограничивается суммой позиций, итог не бывает отрицательным.
func (o *Order) RecomputeTotals() {
	if len(o.Items) == 0 {
		o.Subtotal = Money{Amount: 0}
		o.GrandTotal = Money{Amount: 0}
		return
	}

	// Валюта берётся из первой позиции
	currency := o.Items[0].UnitPrice.Currency
	var subtotal int64
	for i := range o.Items {
		subtotal += o.Items[i].Total().Amount
	}

	discount := o.DiscountTotal.Amount
	if discount > subtotal {
		discount = subtotal
	}

	o.Subtotal = Money{Currency: currency, Amount: subtotal}
	o.DiscountTotal = Money{Currency: currency, Amount: discount}
	o.ShippingTotal.Currency = currency
	o.GrandTotal = Money{
		Currency: currency,
		Amount:   subtotal - discount + o.ShippingTotal.Amount,
	}
}

// CanTransitionTo проверяет, допустим ли переход в указанный статус.
func (o *Order) CanTransitionTo(newStatus OrderStatus) bool {
	allowed, ok := allowedTransitions[o.Status]
	if !ok {
		return false // Терминальное состояние
	}
	for _, status := range allowed {
		if status == newStatus {
			return true
		}
	}
	return false
}

// TransitionTo выполняет переход в новый статус и инкрементирует версию.
// Возвращает ErrInvalidTransition при недопустимом переходе.
func (o *Order) TransitionTo(newStatus OrderStatus) error {
	if !o.CanTransitionTo(newStatus) {
		return ErrInvalidTransition
	}
	o.Status = newStatus
	o.Version++
	o.UpdatedAt = time.Now()
	return nil
}

// CanCancel проверяет, можно ли отменить заказ.
// Отменить можно только неоплаченный заказ.
func (o *Order) CanCancel() bool {
	return o.CanTransitionTo(OrderStatusCancelled)
}

// Item возвращает позицию заказа по ID товара.
// Возвращает nil, если товар в заказе отсутствует.
func (o *Order) Item(productID string) *OrderItem {
	for i := range o.Items {
		if o.Items[i].ProductID == productID {
			return &o.Items[i]
		}
	}
	return nil
}

// OrderItem — позиция заказа.
// Содержит информацию о товаре, количестве и цене.
type OrderItem struct {
	ID          string // Уникальный идентификатор позиции (UUID)
	OrderID     string // ID заказа, к которому относится позиция
	ProductID   string // ID товара
	ProductName string // Название товара (денормализовано для истории)
	Quantity    int32  // Количество единиц товара
	UnitPrice   Money  // Цена за единицу товара
}

// Validate проверяет корректность полей позиции заказа.
func (oi *OrderItem) Validate() error {
	if strings.TrimSpace(oi.ProductID) == "" {
		return ErrInvalidProductID
	}

	if strings.TrimSpace(oi.ProductName) == "" {
		return ErrInvalidProductName
	}

	if oi.Quantity <= 0 {
		return ErrInvalidQuantity
	}

	if oi.UnitPrice.Amount <= 0 {
		return ErrInvalidPrice
	}

	return nil
}

// Total возвращает общую стоимость позиции (количество * цена за единицу).
func (oi *OrderItem) Total() Money {
	return oi.UnitPrice.Multiply(oi.Quantity)
}
