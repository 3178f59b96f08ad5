// Package repository содержит реализацию доступа к данным Order Core.
package repository

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"example.com/grocery-core/services/order/internal/domain"
)

// =============================================================================
// Общие помощники для составных транзакций
// =============================================================================

// isDuplicateKeyError проверяет, является ли ошибка дубликатом ключа.
// MySQL возвращает ошибку с кодом 1062 при попытке вставить дубликат.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	// GORM v2 имеет ErrDuplicatedKey, также проверяем текст ошибки MySQL
	errMsg := err.Error()
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(errMsg, "Duplicate entry") ||
		strings.Contains(errMsg, "1062")
}

// nullableString возвращает nil для пустой строки.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// casOrderStatusTx выполняет CAS-обновление статуса заказа внутри транзакции.
// Обновление проходит только при совпадении версии (optimistic lock).
// При несовпадении различает отсутствие заказа и конкурентное изменение.
func casOrderStatusTx(tx *gorm.DB, orderID string, fromVersion int64, to domain.OrderStatus) error {
	result := tx.Table("orders").
		Where("id = ? AND version = ?", orderID, fromVersion).
		Updates(map[string]interface{}{
			"status":     string(to),
			"version":    fromVersion + 1,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := tx.Table("orders").Where("id = ?", orderID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrOrderNotFound
		}
		return domain.ErrVersionConflict
	}
	return nil
}

// insertHistoryTx добавляет запись истории статусов внутри транзакции.
func insertHistoryTx(tx *gorm.DB, h *domain.OrderStatusHistory) error {
	model := historyModelFromDomain(h)
	if err := tx.Create(model).Error; err != nil {
		return err
	}
	h.CreatedAt = model.CreatedAt
	return nil
}

// insertMovementsTx добавляет движения склада внутри транзакции.
// Для отрицательных дельт проверяет достаточность остатка: сумма дельт
// по товару после записи не должна уходить в минус.
func insertMovementsTx(tx *gorm.DB, movements []*domain.StockMovement) error {
	for _, m := range movements {
		if m.Delta < 0 {
			balance, err := stockBalanceTx(tx, m.ProductID)
			if err != nil {
				return err
			}
			if balance+m.Delta < 0 {
				return domain.ErrInsufficientStock
			}
		}
		if err := tx.Create(stockMovementModelFromDomain(m)).Error; err != nil {
			return err
		}
	}
	return nil
}

// stockBalanceTx возвращает текущий остаток товара как сумму дельт журнала.
func stockBalanceTx(tx *gorm.DB, productID string) (int64, error) {
	var balance int64
	err := tx.Table("stock_movements").
		Select("COALESCE(SUM(delta), 0)").
		Where("product_id = ?", productID).
		Scan(&balance).Error
	return balance, err
}
