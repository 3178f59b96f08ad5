package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"example.com/grocery-core/services/order/internal/domain"
)

// OrderRepository определяет интерфейс для работы с заказами в БД.
type OrderRepository interface {
	// CreateWithSideEffects атомарно создаёт заказ вместе с сопутствующими
	// записями: резервами склада, применёнными скидками, списаниями балансов
	// и первой записью истории. Если любая часть падает — откатывается всё.
	CreateWithSideEffects(ctx context.Context, order *domain.Order, effects *CreateEffects) error

	// GetByID возвращает заказ по ID с загруженными позициями.
	GetByID(ctx context.Context, orderID string) (*domain.Order, error)

	// GetByIdempotencyKey возвращает заказ по ключу идемпотентности.
	// Используется для предотвращения дублирования заказов.
	GetByIdempotencyKey(ctx context.Context, idempotencyKey string) (*domain.Order, error)

	// ListByUserID возвращает заказы пользователя с пагинацией.
	// status может быть nil для получения заказов во всех статусах.
	// Возвращает список заказов и общее количество (для пагинации).
	ListByUserID(ctx context.Context, userID string, status *domain.OrderStatus, offset, limit int) ([]*domain.Order, int64, error)

	// ListPendingOlderThan возвращает неоплаченные заказы, созданные до cutoff.
	// Используется фоновым процессом отмены просроченных заказов.
	ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Order, error)

	// TransitionStatus атомарно переводит заказ в новый статус с проверкой
	// версии (CAS), записью истории и опциональными движениями склада
	// (возврат резерва при отмене). Возвращает ErrVersionConflict при
	// конкурентном изменении.
	TransitionStatus(ctx context.Context, orderID string, fromVersion int64, to domain.OrderStatus, history *domain.OrderStatusHistory, movements []*domain.StockMovement) error
}

// CreateEffects — сопутствующие записи, создаваемые в одной транзакции с заказом.
type CreateEffects struct {
	Movements []*domain.StockMovement // Резервы склада (отрицательные дельты)
	Applied   *domain.AppliedDiscount // Применённые скидки (nil — без скидок)
	History   *domain.OrderStatusHistory

	// Списания источников скидок. Выполняются условными UPDATE,
	// чтобы баланс и лимит проверялись атомарно на стороне БД.
	CouponID       *string // Инкремент used_count купона
	GiftCardID     *string // Списание с подарочной карты
	GiftCardAmount int64
	PointsUserID   *string // Списание бонусных баллов
	Points         int64
}

// =============================================================================
// GORM модели
// =============================================================================

// OrderModel — GORM модель для таблицы orders.
// Отделена от доменной сущности для гибкости.
type OrderModel struct {
	ID             string           `gorm:"column:id;type:varchar(36);primaryKey"`
	UserID         string           `gorm:"column:user_id;type:varchar(36);not null;index"`
	Status         string           `gorm:"column:status;type:varchar(20);not null;index"`
	Subtotal       int64            `gorm:"column:subtotal;not null"`
	DiscountTotal  int64            `gorm:"column:discount_total;not null"`
	ShippingTotal  int64            `gorm:"column:shipping_total;not null"`
	GrandTotal     int64            `gorm:"column:grand_total;not null"`
	Currency       string           `gorm:"column:currency;type:varchar(3);not null"`
	Version        int64            `gorm:"column:version;not null;default:1"`
	IdempotencyKey *string          `gorm:"column:idempotency_key;type:varchar(64);uniqueIndex"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time        `gorm:"column:updated_at;autoUpdateTime"`
	Items          []OrderItemModel `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName возвращает имя таблицы в БД.
func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel — GORM модель для таблицы order_items.
type OrderItemModel struct {
	ID          string    `gorm:"column:id;type:varchar(36);primaryKey"`
	OrderID     string    `gorm:"column:order_id;type:varchar(36);not null;index"`
	ProductID   string    `gorm:"column:product_id;type:varchar(36);not null"`
	ProductName string    `gorm:"column:product_name;type:varchar(255);not null"`
	Quantity    int32     `gorm:"column:quantity;not null"`
	UnitPrice   int64     `gorm:"column:unit_price;not null"`
	Currency    string    `gorm:"column:currency;type:varchar(3);not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы в БД.
func (OrderItemModel) TableName() string {
	return "order_items"
}

// toDomain конвертирует GORM модель заказа в доменную сущность.
func (m *OrderModel) toDomain() *domain.Order {
	order := &domain.Order{
		ID:            m.ID,
		UserID:        m.UserID,
		Status:        domain.OrderStatus(m.Status),
		Subtotal:      domain.Money{Amount: m.Subtotal, Currency: m.Currency},
		DiscountTotal: domain.Money{Amount: m.DiscountTotal, Currency: m.Currency},
		ShippingTotal: domain.Money{Amount: m.ShippingTotal, Currency: m.Currency},
		GrandTotal:    domain.Money{Amount: m.GrandTotal, Currency: m.Currency},
		Version:       m.Version,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		Items:         make([]domain.OrderItem, len(m.Items)),
	}

	if m.IdempotencyKey != nil {
		order.IdempotencyKey = *m.IdempotencyKey
	}

	for i, item := range m.Items {
		order.Items[i] = *item.toDomain()
	}

	return order
}

// toDomain конвертирует GORM модель позиции в доменную сущность.
func (m *OrderItemModel) toDomain() *domain.OrderItem {
	return &domain.OrderItem{
		ID:          m.ID,
		OrderID:     m.OrderID,
		ProductID:   m.ProductID,
		ProductName: m.ProductName,
		Quantity:    m.Quantity,
		UnitPrice: domain.Money{
			Amount:   m.UnitPrice,
			Currency: m.Currency,
		},
	}
}

// orderModelFromDomain конвертирует доменную сущность заказа в GORM модель.
func orderModelFromDomain(o *domain.Order) *OrderModel {
	model := &OrderModel{
		ID:             o.ID,
		UserID:         o.UserID,
		Status:         string(o.Status),
		Subtotal:       o.Subtotal.Amount,
		DiscountTotal:  o.DiscountTotal.Amount,
		ShippingTotal:  o.ShippingTotal.Amount,
		GrandTotal:     o.GrandTotal.Amount,
		Currency:       o.GrandTotal.Currency,
		Version:        o.Version,
		IdempotencyKey: nullableString(o.IdempotencyKey),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
		Items:          make([]OrderItemModel, len(o.Items)),
	}

	for i, item := range o.Items {
		model.Items[i] = OrderItemModel{
			ID:          item.ID,
			OrderID:     o.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.Amount,
			Currency:    item.UnitPrice.Currency,
		}
	}

	return model
}

// =============================================================================
// Реализация
// =============================================================================

// orderRepository — GORM реализация OrderRepository.
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository создаёт новый репозиторий заказов.
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

// CreateWithSideEffects атомарно создаёт заказ и все сопутствующие записи.
func (r *orderRepository) CreateWithSideEffects(ctx context.Context, order *domain.Order, effects *CreateEffects) error {
	model := orderModelFromDomain(order)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Заказ с позициями (GORM создаст позиции через ассоциацию)
		if err := tx.Create(model).Error; err != nil {
			return err
		}

		if effects == nil {
			return nil
		}

		// 2. Резервы склада с проверкой остатков
		if err := insertMovementsTx(tx, effects.Movements); err != nil {
			return err
		}

		// 3. Списание источников скидок условными UPDATE
		if effects.CouponID != nil {
			result := tx.Table("coupons").
				Where("id = ? AND (usage_limit = 0 OR used_count < usage_limit)", *effects.CouponID).
				Update("used_count", gorm.Expr("used_count + 1"))
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return domain.ErrCouponLimitExceeded
			}
		}
		if effects.GiftCardID != nil && effects.GiftCardAmount > 0 {
			result := tx.Table("gift_cards").
				Where("id = ? AND active = ? AND balance >= ?", *effects.GiftCardID, true, effects.GiftCardAmount).
				Updates(map[string]interface{}{
					"balance":    gorm.Expr("balance - ?", effects.GiftCardAmount),
					"updated_at": time.Now(),
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return domain.ErrInsufficientBalance
			}
		}
		if effects.PointsUserID != nil && effects.Points > 0 {
			result := tx.Table("reward_accounts").
				Where("user_id = ? AND points >= ?", *effects.PointsUserID, effects.Points).
				Updates(map[string]interface{}{
					"points":     gorm.Expr("points - ?", effects.Points),
					"updated_at": time.Now(),
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return domain.ErrInsufficientBalance
			}
		}

		// 4. Запись применённых скидок
		if effects.Applied != nil {
			if err := tx.Create(appliedDiscountModelFromDomain(effects.Applied)).Error; err != nil {
				return err
			}
		}

		// 5. Первая запись истории статусов
		if effects.History != nil {
			if err := insertHistoryTx(tx, effects.History); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		// Дубликат idempotency_key (MySQL error 1062)
		if isDuplicateKeyError(err) {
			return domain.ErrDuplicateOrder
		}
		return err
	}

	order.CreatedAt = model.CreatedAt
	order.UpdatedAt = model.UpdatedAt

	return nil
}

// GetByID возвращает заказ по ID с загруженными позициями.
func (r *orderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel

	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}

	return model.toDomain(), nil
}

// GetByIdempotencyKey возвращает заказ по ключу идемпотентности.
func (r *orderRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	var model OrderModel

	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("idempotency_key = ?", key).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}

	return model.toDomain(), nil
}

// ListByUserID возвращает список заказов пользователя с пагинацией.
// Опциональный фильтр по статусу, возвращает также общее количество записей.
func (r *orderRepository) ListByUserID(ctx context.Context, userID string, status *domain.OrderStatus, offset, limit int) ([]*domain.Order, int64, error) {
	var models []OrderModel
	var totalCount int64

	query := r.db.WithContext(ctx).Model(&OrderModel{}).Where("user_id = ?", userID)

	if status != nil {
		query = query.Where("status = ?", string(*status))
	}

	// Подсчёт общего количества записей (до пагинации)
	if err := query.Count(&totalCount).Error; err != nil {
		return nil, 0, err
	}

	// Пагинация и сортировка (новые заказы первыми)
	if err := query.
		Preload("Items").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}

	orders := make([]*domain.Order, len(models))
	for i := range models {
		orders[i] = models[i].toDomain()
	}

	return orders, totalCount, nil
}

// ListPendingOlderThan возвращает просроченные неоплаченные заказы.
func (r *orderRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Order, error) {
	var models []OrderModel

	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("status = ? AND created_at < ?", string(domain.OrderStatusPending), cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}

	orders := make([]*domain.Order, len(models))
	for i := range models {
		orders[i] = models[i].toDomain()
	}

	return orders, nil
}

// TransitionStatus атомарно переводит заказ в новый статус.
// CAS по версии, запись истории и опциональный возврат резервов — в одной транзакции.
func (r *orderRepository) TransitionStatus(ctx context.Context, orderID string, fromVersion int64, to domain.OrderStatus, history *domain.OrderStatusHistory, movements []*domain.StockMovement) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := casOrderStatusTx(tx, orderID, fromVersion, to); err != nil {
			return err
		}

		if history != nil {
			if err := insertHistoryTx(tx, history); err != nil {
				return err
			}
		}

		return insertMovementsTx(tx, movements)
	})
}
