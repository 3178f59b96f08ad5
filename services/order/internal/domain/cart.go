package domain

import "time"

// CartSnapshot — снимок корзины пользователя.
// Обновляется при каждом изменении корзины, используется детектором
// брошенных корзин.
type CartSnapshot struct {
	ID         string     // UUID корзины
	UserID     string     // ID пользователя
	Items      []CartItem // Текущее содержимое корзины
	UpdatedAt  time.Time  // Момент последней активности пользователя
	NotifiedAt *time.Time // Когда отправлено напоминание (nil — ещё не отправлялось)
}

// CartItem — товар в корзине.
type CartItem struct {
	ProductID string // ID товара
	Quantity  int32  // Количество
}

// IsAbandoned возвращает true, если корзина непуста и пользователь
// не проявлял активности дольше порога.
func (c *CartSnapshot) IsAbandoned(threshold time.Duration, now time.Time) bool {
	return len(c.Items) > 0 && now.Sub(c.UpdatedAt) >= threshold
}

// ShouldNotify возвращает true, если по корзине пора отправить напоминание.
// Повторное напоминание не отправляется, пока корзина не изменится снова:
// NotifiedAt сбрасывается при каждом обновлении корзины.
func (c *CartSnapshot) ShouldNotify(threshold time.Duration, now time.Time) bool {
	return c.IsAbandoned(threshold, now) && c.NotifiedAt == nil
}

// MarkNotified фиксирует отправку напоминания.
func (c *CartSnapshot) MarkNotified(now time.Time) {
	c.NotifiedAt = &now
}

// Touch фиксирует активность пользователя и сбрасывает флаг напоминания.
func (c *CartSnapshot) Touch(now time.Time) {
	c.UpdatedAt = now
	c.NotifiedAt = nil
}
