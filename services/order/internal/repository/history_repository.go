package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"example.com/grocery-core/services/order/internal/domain"
)

// HistoryRepository определяет интерфейс для чтения истории статусов.
// Записи создаются только внутри транзакций переходов, отдельного
// метода вставки наружу не предоставляется: история append-only.
type HistoryRepository interface {
	// ListByOrderID возвращает историю статусов заказа в хронологическом порядке.
	ListByOrderID(ctx context.Context, orderID string) ([]*domain.OrderStatusHistory, error)
}

// OrderStatusHistoryModel — GORM модель для таблицы order_status_history.
type OrderStatusHistoryModel struct {
	ID         string    `gorm:"column:id;type:varchar(36);primaryKey"`
	OrderID    string    `gorm:"column:order_id;type:varchar(36);not null;index"`
	FromStatus string    `gorm:"column:from_status;type:varchar(20);not null"`
	ToStatus   string    `gorm:"column:to_status;type:varchar(20);not null"`
	Actor      string    `gorm:"column:actor;type:varchar(20);not null"`
	Reason     string    `gorm:"column:reason;type:text"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName возвращает имя таблицы в БД.
func (OrderStatusHistoryModel) TableName() string {
	return "order_status_history"
}

// toDomain конвертирует GORM модель записи истории в доменную сущность.
func (m *OrderStatusHistoryModel) toDomain() *domain.OrderStatusHistory {
	return &domain.OrderStatusHistory{
		ID:         m.ID,
		OrderID:    m.OrderID,
		FromStatus: domain.OrderStatus(m.FromStatus),
		ToStatus:   domain.OrderStatus(m.ToStatus),
		Actor:      m.Actor,
		Reason:     m.Reason,
		CreatedAt:  m.CreatedAt,
	}
}

// historyModelFromDomain конвертирует доменную сущность записи истории в GORM модель.
func historyModelFromDomain(h *domain.OrderStatusHistory) *OrderStatusHistoryModel {
	return &OrderStatusHistoryModel{
		ID:         h.ID,
		OrderID:    h.OrderID,
		FromStatus: string(h.FromStatus),
		ToStatus:   string(h.ToStatus),
		Actor:      h.Actor,
		Reason:     h.Reason,
	}
}

// historyRepository — GORM реализация HistoryRepository.
type historyRepository struct {
	db *gorm.DB
}

// NewHistoryRepository создаёт новый репозиторий истории статусов.
func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

// ListByOrderID возвращает историю статусов заказа.
func (r *historyRepository) ListByOrderID(ctx context.Context, orderID string) ([]*domain.OrderStatusHistory, error) {
	var models []OrderStatusHistoryModel

	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	history := make([]*domain.OrderStatusHistory, len(models))
	for i := range models {
		history[i] = models[i].toDomain()
	}
	return history, nil
}
