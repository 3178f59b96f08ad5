package domain

import "time"

// StockMovementReason — причина движения товара по складу.
type StockMovementReason string

const (
	// StockReasonReserve — резервирование под создаваемый заказ (отрицательная дельта).
	StockReasonReserve StockMovementReason = "reserve"

	// StockReasonRelease — возврат резерва при отмене заказа (положительная дельта).
	StockReasonRelease StockMovementReason = "release"

	// StockReasonAdjust — ручная корректировка остатка оператором.
	StockReasonAdjust StockMovementReason = "adjust"

	// StockReasonRefundReturn — возврат товара на склад при оформлении возврата.
	StockReasonRefundReturn StockMovementReason = "refund_return"
)

// IsValid возвращает true для известной причины движения.
func (r StockMovementReason) IsValid() bool {
	switch r {
	case StockReasonReserve, StockReasonRelease, StockReasonAdjust, StockReasonRefundReturn:
		return true
	}
	return false
}

// StockMovement — движение товара по складу.
// Журнал движений append-only, текущий остаток — сумма дельт по товару.
type StockMovement struct {
	ID        string              // UUID движения
	ProductID string              // ID товара
	Delta     int64               // Изменение остатка (отрицательное при резерве)
	Reason    StockMovementReason // Причина движения
	OrderID   *string             // ID связанного заказа (nil для ручных корректировок)
	CreatedAt time.Time           // Момент движения
}
