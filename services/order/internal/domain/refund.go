package domain

import "time"

// Refund — возврат средств по заказу.
// Сумма возврата никогда не превышает невозвращённый остаток платежа.
type Refund struct {
	ID        string       // UUID возврата
	OrderID   string       // ID заказа
	PaymentID string       // ID платежа, по которому возвращаются средства
	Amount    Money        // Сумма возврата
	Reason    string       // Причина возврата (указывает оператор)
	Lines     []RefundLine // Построчная расшифровка возврата
	CreatedAt time.Time    // Дата оформления возврата
}

// RefundLine — строка возврата, привязанная к позиции заказа.
// Товар по строке возвращается на склад движением refund_return.
type RefundLine struct {
	ID        string // UUID строки
	RefundID  string // ID возврата
	ProductID string // ID возвращаемого товара
	Quantity  int32  // Возвращаемое количество
	Amount    Money  // Возвращаемая сумма по строке
}

// Validate проверяет корректность строк возврата относительно позиций заказа.
// Каждая строка должна ссылаться на позицию заказа и вместе с уже возвращённым
// количеством (refunded, по product_id) не превышать количество позиции.
func (r *Refund) Validate(order *Order, refunded map[string]int32) error {
	if r.Amount.Amount <= 0 {
		return ErrInvalidPrice
	}

	var linesTotal int64
	for i := range r.Lines {
		line := &r.Lines[i]
		if line.Quantity <= 0 {
			return ErrInvalidQuantity
		}
		item := order.Item(line.ProductID)
		if item == nil || line.Quantity > item.Quantity-refunded[line.ProductID] {
			return ErrRefundLineMismatch
		}
		linesTotal += line.Amount.Amount
	}

	// Строки расшифровывают сумму возврата целиком либо отсутствуют
	if len(r.Lines) > 0 && linesTotal != r.Amount.Amount {
		return ErrRefundLineMismatch
	}

	return nil
}
