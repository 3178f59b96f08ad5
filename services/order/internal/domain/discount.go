package domain

import (
	"strings"
	"time"
)

// CouponType — тип скидки купона.
type CouponType string

const (
	// CouponTypePercent — процентная скидка от суммы позиций, с потолком MaxDiscount.
	CouponTypePercent CouponType = "percent"

	// CouponTypeFixed — фиксированная скидка в минимальных единицах.
	CouponTypeFixed CouponType = "fixed"
)

// CouponStatus — статус жизненного цикла купона.
type CouponStatus string

const (
	// CouponStatusActive — купон доступен для применения.
	CouponStatusActive CouponStatus = "active"

	// CouponStatusDisabled — купон отключён оператором.
	CouponStatusDisabled CouponStatus = "disabled"
)

// Coupon — промо-купон.
type Coupon struct {
	ID             string       // UUID купона
	Code           string       // Код купона, вводимый пользователем (уникальный)
	Type           CouponType   // Тип скидки
	Status         CouponStatus // Статус купона
	Value          int64        // Процент (1..100) для percent, сумма для fixed
	MaxDiscount    int64        // Потолок скидки для percent (0 — без потолка)
	MinOrderAmount int64        // Минимальная сумма позиций для применения
	UsageLimit     int32        // Максимум применений всеми пользователями (0 — без лимита)
	UserUsageLimit int32        // Максимум применений одним пользователем (0 — без лимита)
	UsedCount      int32        // Сколько раз купон уже применён
	ValidFrom      *time.Time   // Начало срока действия (nil — действует сразу)
	ExpiresAt      *time.Time   // Срок действия (nil — бессрочный)
	CreatedAt      time.Time    // Дата создания
}

// CheckApplicable проверяет применимость купона к заказу с указанной суммой
// позиций. userUsed — сколько раз этот пользователь уже применял купон.
func (c *Coupon) CheckApplicable(subtotal, userUsed int64, now time.Time) error {
	if c.Status != CouponStatusActive {
		return ErrCouponInactive
	}
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return ErrCouponNotYetActive
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return ErrCouponExpired
	}
	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return ErrCouponLimitExceeded
	}
	if c.UserUsageLimit > 0 && userUsed >= int64(c.UserUsageLimit) {
		return ErrCouponUserLimitExceeded
	}
	if subtotal < c.MinOrderAmount {
		return ErrMinOrderAmountNotMet
	}
	return nil
}

// Discount вычисляет размер скидки купона для указанной суммы позиций.
// Скидка не превышает саму сумму.
func (c *Coupon) Discount(subtotal int64) int64 {
	var discount int64
	switch c.Type {
	case CouponTypePercent:
		discount = subtotal * c.Value / 100
		if c.MaxDiscount > 0 && discount > c.MaxDiscount {
			discount = c.MaxDiscount
		}
	case CouponTypeFixed:
		discount = c.Value
	}
	if discount > subtotal {
		discount = subtotal
	}
	return discount
}

// GiftCard — подарочная карта с балансом.
type GiftCard struct {
	ID        string    // UUID карты
	Code      string    // Код карты (уникальный)
	Balance   int64     // Остаток в минимальных единицах
	Active    bool      // Активна ли карта
	CreatedAt time.Time // Дата выпуска
	UpdatedAt time.Time // Дата обновления
}

// Debit списывает сумму с баланса карты.
func (g *GiftCard) Debit(amount int64) error {
	if !g.Active {
		return ErrGiftCardInactive
	}
	if amount > g.Balance {
		return ErrInsufficientBalance
	}
	g.Balance -= amount
	g.UpdatedAt = time.Now()
	return nil
}

// Credit возвращает сумму на баланс карты (при возврате заказа).
func (g *GiftCard) Credit(amount int64) {
	g.Balance += amount
	g.UpdatedAt = time.Now()
}

// RewardAccount — счёт бонусных баллов пользователя.
// Баллы конвертируются в деньги по курсу из конфигурации.
type RewardAccount struct {
	UserID    string    // ID пользователя
	Points    int64     // Текущий баланс баллов
	UpdatedAt time.Time // Дата обновления
}

// Debit списывает баллы со счёта.
func (a *RewardAccount) Debit(points int64) error {
	if points > a.Points {
		return ErrInsufficientBalance
	}
	a.Points -= points
	a.UpdatedAt = time.Now()
	return nil
}

// Credit начисляет баллы на счёт.
func (a *RewardAccount) Credit(points int64) {
	a.Points += points
	a.UpdatedAt = time.Now()
}

// DiscountRequest — запрошенные пользователем скидки при создании заказа.
type DiscountRequest struct {
	CouponCode   string // Код купона (пустой — купон не применяется)
	RewardPoints int64  // Сколько баллов списать (0 — не списывать)
	GiftCardCode string // Код подарочной карты (пустой — не применяется)
}

// IsEmpty возвращает true, если скидки не запрошены.
func (r DiscountRequest) IsEmpty() bool {
	return strings.TrimSpace(r.CouponCode) == "" && r.RewardPoints == 0 &&
		strings.TrimSpace(r.GiftCardCode) == ""
}

// AppliedDiscount — результат применения скидок к заказу.
// Скидки применяются в фиксированном порядке: купон, баллы, подарочная карта.
// Запись хранится для обратимости при возврате.
type AppliedDiscount struct {
	ID             string    // UUID записи
	OrderID        string    // ID заказа
	CouponID       *string   // ID применённого купона (nil если не применялся)
	CouponDiscount int64     // Скидка купона
	PointsSpent    int64     // Списанные баллы
	PointsDiscount int64     // Денежный эквивалент списанных баллов
	GiftCardID     *string   // ID подарочной карты (nil если не применялась)
	GiftCardAmount int64     // Списание с подарочной карты
	CreatedAt      time.Time // Дата применения
}

// Total возвращает суммарную скидку по всем источникам.
func (d *AppliedDiscount) Total() int64 {
	return d.CouponDiscount + d.PointsDiscount + d.GiftCardAmount
}
