package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"example.com/grocery-core/services/order/internal/domain"
)

// StockRepository определяет интерфейс для работы с журналом движений склада.
// Журнал append-only: движения не изменяются и не удаляются, текущий
// остаток — сумма дельт по товару.
type StockRepository interface {
	// Append добавляет движения в журнал. Для отрицательных дельт
	// проверяет достаточность остатка в той же транзакции и возвращает
	// ErrInsufficientStock, если остаток ушёл бы в минус.
	Append(ctx context.Context, movements []*domain.StockMovement) error

	// CurrentStock возвращает текущий остаток товара.
	CurrentStock(ctx context.Context, productID string) (int64, error)

	// ListMovements возвращает последние движения товара.
	ListMovements(ctx context.Context, productID string, limit int) ([]*domain.StockMovement, error)
}

// StockMovementModel — GORM модель для таблицы stock_movements.
type StockMovementModel struct {
	ID        string    `gorm:"column:id;type:varchar(36);primaryKey"`
	ProductID string    `gorm:"column:product_id;type:varchar(36);not null;index"`
	Delta     int64     `gorm:"column:delta;not null"`
	Reason    string    `gorm:"column:reason;type:varchar(20);not null"`
	OrderID   *string   `gorm:"column:order_id;type:varchar(36);index"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName возвращает имя таблицы в БД.
func (StockMovementModel) TableName() string {
	return "stock_movements"
}

// toDomain конвертирует GORM модель движения в доменную сущность.
func (m *StockMovementModel) toDomain() *domain.StockMovement {
	return &domain.StockMovement{
		ID:        m.ID,
		ProductID: m.ProductID,
		Delta:     m.Delta,
		Reason:    domain.StockMovementReason(m.Reason),
		OrderID:   m.OrderID,
		CreatedAt: m.CreatedAt,
	}
}

// stockMovementModelFromDomain конвертирует доменную сущность движения в GORM модель.
func stockMovementModelFromDomain(m *domain.StockMovement) *StockMovementModel {
	return &StockMovementModel{
		ID:        m.ID,
		ProductID: m.ProductID,
		Delta:     m.Delta,
		Reason:    string(m.Reason),
		OrderID:   m.OrderID,
	}
}

// stockRepository — GORM реализация StockRepository.
type stockRepository struct {
	db *gorm.DB
}

// NewStockRepository создаёт новый репозиторий движений склада.
func NewStockRepository(db *gorm.DB) StockRepository {
	return &stockRepository{db: db}
}

// Append добавляет движения в журнал с проверкой остатков.
func (r *stockRepository) Append(ctx context.Context, movements []*domain.StockMovement) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return insertMovementsTx(tx, movements)
	})
}

// CurrentStock возвращает текущий остаток товара.
func (r *stockRepository) CurrentStock(ctx context.Context, productID string) (int64, error) {
	return stockBalanceTx(r.db.WithContext(ctx), productID)
}

// ListMovements возвращает последние движения товара (новые первыми).
func (r *stockRepository) ListMovements(ctx context.Context, productID string, limit int) ([]*domain.StockMovement, error) {
	var models []StockMovementModel

	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}

	movements := make([]*domain.StockMovement, len(models))
	for i := range models {
		movements[i] = models[i].toDomain()
	}
	return movements, nil
}
