package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"example.com/grocery-core/services/order/internal/domain"
)

// RefundRepository определяет интерфейс для работы с возвратами.
type RefundRepository interface {
	// CreateWithCompensation атомарно создаёт возврат со строками и выполняет
	// компенсации: возврат товара на склад, восстановление балансов скидок,
	// перевод заказа в REFUNDED при полном возврате.
	CreateWithCompensation(ctx context.Context, refund *domain.Refund, comp *RefundCompensation) error

	// SumByPaymentID возвращает сумму уже оформленных возвратов по платежу.
	// Используется для вычисления невозвращённого остатка.
	SumByPaymentID(ctx context.Context, paymentID string) (int64, error)

	// ListByOrderID возвращает возвраты заказа со строками.
	ListByOrderID(ctx context.Context, orderID string) ([]*domain.Refund, error)
}

// RefundCompensation — компенсирующие записи, создаваемые в транзакции возврата.
type RefundCompensation struct {
	Movements []*domain.StockMovement // Возврат товара на склад (положительные дельты)
	History   *domain.OrderStatusHistory

	// Перевод заказа в REFUNDED при полном возврате (nil — частичный возврат)
	OrderStatus *domain.OrderStatus
	OrderID     string
	FromVersion int64

	// Восстановление балансов источников скидок
	GiftCardID     *string
	GiftCardAmount int64
	PointsUserID   *string
	Points         int64
}

// RefundModel — GORM модель для таблицы refunds.
type RefundModel struct {
	ID        string            `gorm:"column:id;type:varchar(36);primaryKey"`
	OrderID   string            `gorm:"column:order_id;type:varchar(36);not null;index"`
	PaymentID string            `gorm:"column:payment_id;type:varchar(36);not null;index"`
	Amount    int64             `gorm:"column:amount;not null"`
	Currency  string            `gorm:"column:currency;type:varchar(3);not null"`
	Reason    string            `gorm:"column:reason;type:text"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	Lines     []RefundLineModel `gorm:"foreignKey:RefundID;references:ID"`
}

// TableName возвращает имя таблицы в БД.
func (RefundModel) TableName() string {
	return "refunds"
}

// RefundLineModel — GORM модель для таблицы refund_lines.
type RefundLineModel struct {
	ID        string `gorm:"column:id;type:varchar(36);primaryKey"`
	RefundID  string `gorm:"column:refund_id;type:varchar(36);not null;index"`
	ProductID string `gorm:"column:product_id;type:varchar(36);not null"`
	Quantity  int32  `gorm:"column:quantity;not null"`
	Amount    int64  `gorm:"column:amount;not null"`
}

// TableName возвращает имя таблицы в БД.
func (RefundLineModel) TableName() string {
	return "refund_lines"
}

// toDomain конвертирует GORM модель возврата в доменную сущность.
func (m *RefundModel) toDomain() *domain.Refund {
	refund := &domain.Refund{
		ID:        m.ID,
		OrderID:   m.OrderID,
		PaymentID: m.PaymentID,
		Amount:    domain.Money{Amount: m.Amount, Currency: m.Currency},
		Reason:    m.Reason,
		CreatedAt: m.CreatedAt,
		Lines:     make([]domain.RefundLine, len(m.Lines)),
	}
	for i, line := range m.Lines {
		refund.Lines[i] = domain.RefundLine{
			ID:        line.ID,
			RefundID:  line.RefundID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Amount:    domain.Money{Amount: line.Amount, Currency: m.Currency},
		}
	}
	return refund
}

// refundModelFromDomain конвертирует доменную сущность возврата в GORM модель.
func refundModelFromDomain(r *domain.Refund) *RefundModel {
	model := &RefundModel{
		ID:        r.ID,
		OrderID:   r.OrderID,
		PaymentID: r.PaymentID,
		Amount:    r.Amount.Amount,
		Currency:  r.Amount.Currency,
		Reason:    r.Reason,
		Lines:     make([]RefundLineModel, len(r.Lines)),
	}
	for i, line := range r.Lines {
		model.Lines[i] = RefundLineModel{
			ID:        line.ID,
			RefundID:  r.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Amount:    line.Amount.Amount,
		}
	}
	return model
}

// refundRepository — GORM реализация RefundRepository.
type refundRepository struct {
	db *gorm.DB
}

// NewRefundRepository создаёт новый репозиторий возвратов.
func NewRefundRepository(db *gorm.DB) RefundRepository {
	return &refundRepository{db: db}
}

// CreateWithCompensation атомарно создаёт возврат и компенсации.
func (r *refundRepository) CreateWithCompensation(ctx context.Context, refund *domain.Refund, comp *RefundCompensation) error {
	model := refundModelFromDomain(refund)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Возврат со строками
		if err := tx.Create(model).Error; err != nil {
			return err
		}

		if comp == nil {
			return nil
		}

		// 2. Товар обратно на склад
		if err := insertMovementsTx(tx, comp.Movements); err != nil {
			return err
		}

		// 3. Полный возврат переводит заказ в REFUNDED (CAS по версии)
		if comp.OrderStatus != nil {
			if err := casOrderStatusTx(tx, comp.OrderID, comp.FromVersion, *comp.OrderStatus); err != nil {
				return err
			}
		}

		// 4. История статусов
		if comp.History != nil {
			if err := insertHistoryTx(tx, comp.History); err != nil {
				return err
			}
		}

		// 5. Восстановление балансов скидок
		if comp.GiftCardID != nil && comp.GiftCardAmount > 0 {
			if err := tx.Table("gift_cards").
				Where("id = ?", *comp.GiftCardID).
				Updates(map[string]interface{}{
					"balance":    gorm.Expr("balance + ?", comp.GiftCardAmount),
					"updated_at": time.Now(),
				}).Error; err != nil {
				return err
			}
		}
		if comp.PointsUserID != nil && comp.Points > 0 {
			if err := tx.Table("reward_accounts").
				Where("user_id = ?", *comp.PointsUserID).
				Updates(map[string]interface{}{
					"points":     gorm.Expr("points + ?", comp.Points),
					"updated_at": time.Now(),
				}).Error; err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		return err
	}

	refund.CreatedAt = model.CreatedAt
	return nil
}

// SumByPaymentID возвращает сумму возвратов по платежу.
func (r *refundRepository) SumByPaymentID(ctx context.Context, paymentID string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&RefundModel{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("payment_id = ?", paymentID).
		Scan(&total).Error
	return total, err
}

// ListByOrderID возвращает возвраты заказа со строками.
func (r *refundRepository) ListByOrderID(ctx context.Context, orderID string) ([]*domain.Refund, error) {
	var models []RefundModel

	if err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	refunds := make([]*domain.Refund, len(models))
	for i := range models {
		refunds[i] = models[i].toDomain()
	}
	return refunds, nil
}
