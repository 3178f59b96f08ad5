package domain

import "time"

// PaymentStatus — статус платежа по заказу.
type PaymentStatus string

const (
	// PaymentStatusPending — платёж создан, ожидает подтверждения провайдера.
	PaymentStatusPending PaymentStatus = "PENDING"

	// PaymentStatusSucceeded — провайдер подтвердил списание.
	// Статус липкий: из SUCCEEDED обратных переходов нет.
	PaymentStatusSucceeded PaymentStatus = "SUCCEEDED"

	// PaymentStatusFailed — провайдер отклонил платёж.
	PaymentStatusFailed PaymentStatus = "FAILED"
)

// OrderPayment — платёжная запись заказа.
// Заполняется по вебхукам платёжного провайдера, provider_tx_id уникален.
type OrderPayment struct {
	ID            string        // UUID платёжной записи
	OrderID       string        // ID связанного заказа
	ProviderTxID  string        // ID транзакции у провайдера, ключ идемпотентности вебхука
	Amount        Money         // Подтверждённая провайдером сумма
	Status        PaymentStatus // Текущий статус платежа
	FailureReason *string       // Причина отклонения (при FAILED)
	CreatedAt     time.Time     // Дата создания записи
	UpdatedAt     time.Time     // Дата обновления
}

// MarkSucceeded помечает платёж успешным.
// Повторный вызов идемпотентен, на успешном платеже ничего не меняет.
func (p *OrderPayment) MarkSucceeded() {
	if p.Status == PaymentStatusSucceeded {
		return
	}
	p.Status = PaymentStatusSucceeded
	p.FailureReason = nil
	p.UpdatedAt = time.Now()
}

// MarkFailed помечает платёж отклонённым с указанием причины.
// Успешный платёж пометить неудачным нельзя — успех не откатывается.
func (p *OrderPayment) MarkFailed(reason string) error {
	if p.Status == PaymentStatusSucceeded {
		return ErrPaymentAlreadySucceeded
	}
	p.Status = PaymentStatusFailed
	p.FailureReason = &reason
	p.UpdatedAt = time.Now()
	return nil
}
