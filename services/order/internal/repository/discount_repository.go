package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"example.com/grocery-core/services/order/internal/domain"
)

// DiscountRepository определяет интерфейс для чтения источников скидок.
// Списания и восстановления балансов выполняются условными UPDATE внутри
// транзакций заказа/возврата (см. OrderRepository и RefundRepository),
// здесь — чтения для валидации и запись применённых скидок.
type DiscountRepository interface {
	// GetCouponByCode возвращает купон по коду.
	GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error)

	// GetGiftCardByCode возвращает подарочную карту по коду.
	GetGiftCardByCode(ctx context.Context, code string) (*domain.GiftCard, error)

	// GetRewardAccount возвращает счёт бонусных баллов пользователя.
	// Для пользователя без счёта возвращает нулевой баланс.
	GetRewardAccount(ctx context.Context, userID string) (*domain.RewardAccount, error)

	// GetAppliedByOrderID возвращает применённые скидки заказа.
	// Возвращает nil без ошибки, если скидки не применялись.
	GetAppliedByOrderID(ctx context.Context, orderID string) (*domain.AppliedDiscount, error)

	// CountCouponUsageByUser возвращает, сколько раз пользователь применял купон.
	// Используется для проверки персонального лимита применений.
	CountCouponUsageByUser(ctx context.Context, couponID, userID string) (int64, error)
}

// CouponModel — GORM модель для таблицы coupons.
type CouponModel struct {
	ID             string     `gorm:"column:id;type:varchar(36);primaryKey"`
	Code           string     `gorm:"column:code;type:varchar(64);not null;uniqueIndex"`
	Type           string     `gorm:"column:type;type:varchar(10);not null"`
	Status         string     `gorm:"column:status;type:varchar(10);not null;default:active"`
	Value          int64      `gorm:"column:value;not null"`
	MaxDiscount    int64      `gorm:"column:max_discount;not null;default:0"`
	MinOrderAmount int64      `gorm:"column:min_order_amount;not null;default:0"`
	UsageLimit     int32      `gorm:"column:usage_limit;not null;default:0"`
	UserUsageLimit int32      `gorm:"column:user_usage_limit;not null;default:0"`
	UsedCount      int32      `gorm:"column:used_count;not null;default:0"`
	ValidFrom      *time.Time `gorm:"column:valid_from"`
	ExpiresAt      *time.Time `gorm:"column:expires_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// TableName возвращает имя таблицы в БД.
func (CouponModel) TableName() string {
	return "coupons"
}

// GiftCardModel — GORM модель для таблицы gift_cards.
type GiftCardModel struct {
	ID        string    `gorm:"column:id;type:varchar(36);primaryKey"`
	Code      string    `gorm:"column:code;type:varchar(64);not null;uniqueIndex"`
	Balance   int64     `gorm:"column:balance;not null"`
	Active    bool      `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы в БД.
func (GiftCardModel) TableName() string {
	return "gift_cards"
}

// RewardAccountModel — GORM модель для таблицы reward_accounts.
type RewardAccountModel struct {
	UserID    string    `gorm:"column:user_id;type:varchar(36);primaryKey"`
	Points    int64     `gorm:"column:points;not null;default:0"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы в БД.
func (RewardAccountModel) TableName() string {
	return "reward_accounts"
}

// AppliedDiscountModel — GORM модель для таблицы applied_discounts.
type AppliedDiscountModel struct {
	ID             string    `gorm:"column:id;type:varchar(36);primaryKey"`
	OrderID        string    `gorm:"column:order_id;type:varchar(36);not null;uniqueIndex"`
	CouponID       *string   `gorm:"column:coupon_id;type:varchar(36)"`
	CouponDiscount int64     `gorm:"column:coupon_discount;not null;default:0"`
	PointsSpent    int64     `gorm:"column:points_spent;not null;default:0"`
	PointsDiscount int64     `gorm:"column:points_discount;not null;default:0"`
	GiftCardID     *string   `gorm:"column:gift_card_id;type:varchar(36)"`
	GiftCardAmount int64     `gorm:"column:gift_card_amount;not null;default:0"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName возвращает имя таблицы в БД.
func (AppliedDiscountModel) TableName() string {
	return "applied_discounts"
}

// toDomain конвертирует GORM модель купона в доменную сущность.
func (m *CouponModel) toDomain() *domain.Coupon {
	return &domain.Coupon{
		ID:             m.ID,
		Code:           m.Code,
		Type:           domain.CouponType(m.Type),
		Status:         domain.CouponStatus(m.Status),
		Value:          m.Value,
		MaxDiscount:    m.MaxDiscount,
		MinOrderAmount: m.MinOrderAmount,
		UsageLimit:     m.UsageLimit,
		UserUsageLimit: m.UserUsageLimit,
		UsedCount:      m.UsedCount,
		ValidFrom:      m.ValidFrom,
		ExpiresAt:      m.ExpiresAt,
		CreatedAt:      m.CreatedAt,
	}
}

// toDomain конвертирует GORM модель подарочной карты в доменную сущность.
func (m *GiftCardModel) toDomain() *domain.GiftCard {
	return &domain.GiftCard{
		ID:        m.ID,
		Code:      m.Code,
		Balance:   m.Balance,
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// toDomain конвертирует GORM модель применённых скидок в доменную сущность.
func (m *AppliedDiscountModel) toDomain() *domain.AppliedDiscount {
	return &domain.AppliedDiscount{
		ID:             m.ID,
		OrderID:        m.OrderID,
		CouponID:       m.CouponID,
		CouponDiscount: m.CouponDiscount,
		PointsSpent:    m.PointsSpent,
		PointsDiscount: m.PointsDiscount,
		GiftCardID:     m.GiftCardID,
		GiftCardAmount: m.GiftCardAmount,
		CreatedAt:      m.CreatedAt,
	}
}

// appliedDiscountModelFromDomain конвертирует доменную сущность в GORM модель.
func appliedDiscountModelFromDomain(d *domain.AppliedDiscount) *AppliedDiscountModel {
	return &AppliedDiscountModel{
		ID:             d.ID,
		OrderID:        d.OrderID,
		CouponID:       d.CouponID,
		CouponDiscount: d.CouponDiscount,
		PointsSpent:    d.PointsSpent,
		PointsDiscount: d.PointsDiscount,
		GiftCardID:     d.GiftCardID,
		GiftCardAmount: d.GiftCardAmount,
	}
}

// discountRepository — GORM реализация DiscountRepository.
type discountRepository struct {
	db *gorm.DB
}

// NewDiscountRepository создаёт новый репозиторий скидок.
func NewDiscountRepository(db *gorm.DB) DiscountRepository {
	return &discountRepository{db: db}
}

// GetCouponByCode возвращает купон по коду.
func (r *discountRepository) GetCouponByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	var model CouponModel

	if err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCouponNotFound
		}
		return nil, err
	}

	return model.toDomain(), nil
}

// GetGiftCardByCode возвращает подарочную карту по коду.
func (r *discountRepository) GetGiftCardByCode(ctx context.Context, code string) (*domain.GiftCard, error) {
	var model GiftCardModel

	if err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrGiftCardNotFound
		}
		return nil, err
	}

	return model.toDomain(), nil
}

// GetRewardAccount возвращает счёт бонусных баллов пользователя.
func (r *discountRepository) GetRewardAccount(ctx context.Context, userID string) (*domain.RewardAccount, error) {
	var model RewardAccountModel

	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Счёт создаётся лениво, отсутствие записи — нулевой баланс
			return &domain.RewardAccount{UserID: userID}, nil
		}
		return nil, err
	}

	return &domain.RewardAccount{
		UserID:    model.UserID,
		Points:    model.Points,
		UpdatedAt: model.UpdatedAt,
	}, nil
}

// CountCouponUsageByUser возвращает число применений купона пользователем.
// Применение фиксируется записью applied_discounts, пользователь берётся из заказа.
func (r *discountRepository) CountCouponUsageByUser(ctx context.Context, couponID, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&AppliedDiscountModel{}).
		Joins("JOIN orders ON orders.id = applied_discounts.order_id").
		Where("applied_discounts.coupon_id = ? AND orders.user_id = ?", couponID, userID).
		Count(&count).Error
	return count, err
}

// GetAppliedByOrderID возвращает применённые скидки заказа.
func (r *discountRepository) GetAppliedByOrderID(ctx context.Context, orderID string) (*domain.AppliedDiscount, error) {
	var model AppliedDiscountModel

	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return model.toDomain(), nil
}
