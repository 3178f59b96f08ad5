package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/grocery-core/pkg/outbox"
	"example.com/grocery-core/services/order/internal/domain"
)

// CartRepository определяет интерфейс для работы со снимками корзин.
type CartRepository interface {
	// Upsert сохраняет снимок корзины пользователя, перезаписывая предыдущий.
	// Сбрасывает отметку об отправленном напоминании.
	Upsert(ctx context.Context, cart *domain.CartSnapshot) error

	// GetByUserID возвращает снимок корзины пользователя.
	GetByUserID(ctx context.Context, userID string) (*domain.CartSnapshot, error)

	// ListNotifiable возвращает непустые корзины без активности с cutoff,
	// по которым ещё не отправлялось напоминание.
	ListNotifiable(ctx context.Context, cutoff time.Time, limit int) ([]*domain.CartSnapshot, error)

	// MarkNotifiedWithOutbox атомарно фиксирует отправку напоминания и
	// создаёт событие outbox для уведомления пользователя.
	MarkNotifiedWithOutbox(ctx context.Context, cartID string, at time.Time, event *outbox.Outbox) error
}

// CartSnapshotModel — GORM модель для таблицы cart_snapshots.
// Содержимое корзины хранится как JSON: позиции корзины читаются и
// пишутся только целиком, реляционная разбивка не нужна.
type CartSnapshotModel struct {
	ID         string     `gorm:"column:id;type:varchar(36);primaryKey"`
	UserID     string     `gorm:"column:user_id;type:varchar(36);not null;uniqueIndex"`
	Items      []byte     `gorm:"column:items;type:json;not null"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;index"`
	NotifiedAt *time.Time `gorm:"column:notified_at"`
}

// TableName возвращает имя таблицы в БД.
func (CartSnapshotModel) TableName() string {
	return "cart_snapshots"
}

// toDomain конвертирует GORM модель корзины в доменную сущность.
func (m *CartSnapshotModel) toDomain() (*domain.CartSnapshot, error) {
	var items []domain.CartItem
	if len(m.Items) > 0 {
		if err := json.Unmarshal(m.Items, &items); err != nil {
			return nil, err
		}
	}
	return &domain.CartSnapshot{
		ID:         m.ID,
		UserID:     m.UserID,
		Items:      items,
		UpdatedAt:  m.UpdatedAt,
		NotifiedAt: m.NotifiedAt,
	}, nil
}

// cartModelFromDomain конвертирует доменную сущность корзины в GORM модель.
func cartModelFromDomain(c *domain.CartSnapshot) (*CartSnapshotModel, error) {
	items, err := json.Marshal(c.Items)
	if err != nil {
		return nil, err
	}
	return &CartSnapshotModel{
		ID:         c.ID,
		UserID:     c.UserID,
		Items:      items,
		UpdatedAt:  c.UpdatedAt,
		NotifiedAt: c.NotifiedAt,
	}, nil
}

// cartRepository — GORM реализация CartRepository.
type cartRepository struct {
	db *gorm.DB
}

// NewCartRepository создаёт новый репозиторий корзин.
func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

// Upsert сохраняет снимок корзины, перезаписывая предыдущий по user_id.
func (r *cartRepository) Upsert(ctx context.Context, cart *domain.CartSnapshot) error {
	model, err := cartModelFromDomain(cart)
	if err != nil {
		return err
	}

	// Любое обновление корзины сбрасывает отметку о напоминании
	model.NotifiedAt = nil

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"items", "updated_at", "notified_at"}),
		}).
		Create(model).Error
}

// GetByUserID возвращает снимок корзины пользователя.
func (r *cartRepository) GetByUserID(ctx context.Context, userID string) (*domain.CartSnapshot, error) {
	var model CartSnapshotModel

	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCartNotFound
		}
		return nil, err
	}

	return model.toDomain()
}

// ListNotifiable возвращает брошенные корзины без отправленного напоминания.
func (r *cartRepository) ListNotifiable(ctx context.Context, cutoff time.Time, limit int) ([]*domain.CartSnapshot, error) {
	var models []CartSnapshotModel

	if err := r.db.WithContext(ctx).
		Where("updated_at < ? AND notified_at IS NULL AND items != ?", cutoff, "[]").
		Order("updated_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}

	carts := make([]*domain.CartSnapshot, 0, len(models))
	for i := range models {
		cart, err := models[i].toDomain()
		if err != nil {
			return nil, err
		}
		carts = append(carts, cart)
	}
	return carts, nil
}

// MarkNotifiedWithOutbox атомарно фиксирует напоминание и пишет событие outbox.
// Условие notified_at IS NULL защищает от двойной отправки при
// конкурентных проходах детектора.
func (r *cartRepository) MarkNotifiedWithOutbox(ctx context.Context, cartID string, at time.Time, event *outbox.Outbox) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&CartSnapshotModel{}).
			Where("id = ? AND notified_at IS NULL", cartID).
			Update("notified_at", at)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrCartNotFound
		}

		if event != nil {
			if err := tx.Create(outbox.ModelFromDomain(event)).Error; err != nil {
				return err
			}
		}

		return nil
	})
}
