package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"example.com/grocery-core/pkg/outbox"
	"example.com/grocery-core/services/order/internal/domain"
)

// PaymentRepository определяет интерфейс для работы с платежами заказов.
type PaymentRepository interface {
	// GetByProviderTxID возвращает платёж по ID транзакции провайдера.
	// Используется для идемпотентной обработки вебхуков.
	GetByProviderTxID(ctx context.Context, providerTxID string) (*domain.OrderPayment, error)

	// GetSucceededByOrderID возвращает успешный платёж заказа.
	// Поздний отказ другой попытки оплаты не скрывает успешный платёж:
	// именно по нему считается невозвращённый остаток для возвратов.
	GetSucceededByOrderID(ctx context.Context, orderID string) (*domain.OrderPayment, error)

	// SaveSucceededWithOrder атомарно сохраняет успешный платёж, переводит
	// заказ в PAID (CAS по версии), пишет историю и событие outbox.
	// Решает проблему dual write: платёж+заказ+outbox в одной транзакции.
	SaveSucceededWithOrder(ctx context.Context, payment *domain.OrderPayment, orderID string, fromVersion int64, history *domain.OrderStatusHistory, event *outbox.Outbox) error

	// SaveFailed атомарно сохраняет отклонённый платёж и событие outbox.
	// Статус заказа не меняется.
	SaveFailed(ctx context.Context, payment *domain.OrderPayment, event *outbox.Outbox) error

	// SaveFailedWithOrder атомарно сохраняет отклонённый платёж, отменяет
	// заказ (CAS по версии), возвращает резерв на склад и пишет историю
	// с событием outbox.
	SaveFailedWithOrder(ctx context.Context, payment *domain.OrderPayment, orderID string, fromVersion int64, history *domain.OrderStatusHistory, movements []*domain.StockMovement, event *outbox.Outbox) error
}

// OrderPaymentModel — GORM модель для таблицы order_payments.
type OrderPaymentModel struct {
	ID            string    `gorm:"column:id;type:varchar(36);primaryKey"`
	OrderID       string    `gorm:"column:order_id;type:varchar(36);not null;index"`
	ProviderTxID  string    `gorm:"column:provider_tx_id;type:varchar(64);not null;uniqueIndex"`
	Amount        int64     `gorm:"column:amount;not null"`
	Currency      string    `gorm:"column:currency;type:varchar(3);not null"`
	Status        string    `gorm:"column:status;type:varchar(20);not null"`
	FailureReason *string   `gorm:"column:failure_reason;type:text"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName возвращает имя таблицы в БД.
func (OrderPaymentModel) TableName() string {
	return "order_payments"
}

// toDomain конвертирует GORM модель платежа в доменную сущность.
func (m *OrderPaymentModel) toDomain() *domain.OrderPayment {
	return &domain.OrderPayment{
		ID:            m.ID,
		OrderID:       m.OrderID,
		ProviderTxID:  m.ProviderTxID,
		Amount:        domain.Money{Amount: m.Amount, Currency: m.Currency},
		Status:        domain.PaymentStatus(m.Status),
		FailureReason: m.FailureReason,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// paymentModelFromDomain конвертирует доменную сущность платежа в GORM модель.
func paymentModelFromDomain(p *domain.OrderPayment) *OrderPaymentModel {
	return &OrderPaymentModel{
		ID:            p.ID,
		OrderID:       p.OrderID,
		ProviderTxID:  p.ProviderTxID,
		Amount:        p.Amount.Amount,
		Currency:      p.Amount.Currency,
		Status:        string(p.Status),
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

// paymentRepository — GORM реализация PaymentRepository.
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository создаёт новый репозиторий платежей.
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// GetByProviderTxID возвращает платёж по ID транзакции провайдера.
func (r *paymentRepository) GetByProviderTxID(ctx context.Context, providerTxID string) (*domain.OrderPayment, error) {
	var model OrderPaymentModel

	if err := r.db.WithContext(ctx).
		Where("provider_tx_id = ?", providerTxID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}

	return model.toDomain(), nil
}

// GetSucceededByOrderID возвращает успешный платёж заказа.
func (r *paymentRepository) GetSucceededByOrderID(ctx context.Context, orderID string) (*domain.OrderPayment, error) {
	var model OrderPaymentModel

	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, string(domain.PaymentStatusSucceeded)).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}

	return model.toDomain(), nil
}

// SaveSucceededWithOrder атомарно подтверждает платёж и переводит заказ в PAID.
// Платёж сохраняется upsert'ом: поздний успех после FAILED перезаписывает статус.
func (r *paymentRepository) SaveSucceededWithOrder(ctx context.Context, payment *domain.OrderPayment, orderID string, fromVersion int64, history *domain.OrderStatusHistory, event *outbox.Outbox) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. Сохраняем платёж (INSERT или UPDATE существующей записи)
		model := paymentModelFromDomain(payment)
		if model.CreatedAt.IsZero() {
			if err := tx.Create(model).Error; err != nil {
				return err
			}
		} else {
			result := tx.Model(&OrderPaymentModel{}).
				Where("id = ?", model.ID).
				Updates(map[string]interface{}{
					"status":         model.Status,
					"failure_reason": nil,
					"updated_at":     time.Now(),
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return domain.ErrPaymentNotFound
			}
		}

		// 2. Переводим заказ в PAID с проверкой версии
		if err := casOrderStatusTx(tx, orderID, fromVersion, domain.OrderStatusPaid); err != nil {
			return err
		}

		// 3. История статусов
		if history != nil {
			if err := insertHistoryTx(tx, history); err != nil {
				return err
			}
		}

		// 4. Событие для воркера outbox
		if event != nil {
			if err := tx.Create(outbox.ModelFromDomain(event)).Error; err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		// Конкурентный вебхук успел вставить тот же provider_tx_id
		if isDuplicateKeyError(err) {
			return domain.ErrDuplicatePayment
		}
		return err
	}

	return nil
}

// SaveFailed атомарно сохраняет отклонённый платёж и событие outbox.
func (r *paymentRepository) SaveFailed(ctx context.Context, payment *domain.OrderPayment, event *outbox.Outbox) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(paymentModelFromDomain(payment)).Error; err != nil {
			return err
		}

		if event != nil {
			if err := tx.Create(outbox.ModelFromDomain(event)).Error; err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		if isDuplicateKeyError(err) {
			return domain.ErrDuplicatePayment
		}
		return err
	}

	return nil
}

// SaveFailedWithOrder атомарно сохраняет отклонённый платёж и отменяет заказ.
func (r *paymentRepository) SaveFailedWithOrder(ctx context.Context, payment *domain.OrderPayment, orderID string, fromVersion int64, history *domain.OrderStatusHistory, movements []*domain.StockMovement, event *outbox.Outbox) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(paymentModelFromDomain(payment)).Error; err != nil {
			return err
		}

		// Отмена заказа с проверкой версии
		if err := casOrderStatusTx(tx, orderID, fromVersion, domain.OrderStatusCancelled); err != nil {
			return err
		}

		// Резерв обратно на склад
		if err := insertMovementsTx(tx, movements); err != nil {
			return err
		}

		if history != nil {
			if err := insertHistoryTx(tx, history); err != nil {
				return err
			}
		}

		if event != nil {
			if err := tx.Create(outbox.ModelFromDomain(event)).Error; err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		if isDuplicateKeyError(err) {
			return domain.ErrDuplicatePayment
		}
		return err
	}

	return nil
}
