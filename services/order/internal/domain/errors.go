// Package domain содержит бизнес-сущности и доменные ошибки Order Core.
package domain

import "errors"

// Доменные ошибки Order Core.
// Используются для передачи бизнес-ошибок между слоями приложения.
var (
	// ErrOrderNotFound возвращается, когда заказ не найден в базе данных.
	ErrOrderNotFound = errors.New("заказ не найден")

	// ErrEmptyOrderItems возвращается при попытке создать заказ без позиций.
	ErrEmptyOrderItems = errors.New("заказ должен содержать хотя бы одну позицию")

	// ErrInvalidUserID возвращается при пустом или некорректном идентификаторе пользователя.
	ErrInvalidUserID = errors.New("некорректный идентификатор пользователя")

	// ErrInvalidProductID возвращается при пустом или некорректном идентификаторе товара.
	ErrInvalidProductID = errors.New("некорректный идентификатор товара")

	// ErrInvalidProductName возвращается при пустом названии товара.
	ErrInvalidProductName = errors.New("название товара не может быть пустым")

	// ErrInvalidQuantity возвращается, когда количество товара меньше или равно нулю.
	ErrInvalidQuantity = errors.New("количество должно быть больше нуля")

	// ErrInvalidPrice возвращается, когда цена товара меньше или равна нулю.
	ErrInvalidPrice = errors.New("цена должна быть больше нуля")

	// ErrCurrencyMismatch возвращается, когда позиции заказа имеют разные валюты.
	ErrCurrencyMismatch = errors.New("все позиции заказа должны быть в одной валюте")

	// ErrInvalidTransition возвращается при недопустимом переходе статуса заказа.
	ErrInvalidTransition = errors.New("недопустимый переход статуса заказа")

	// ErrVersionConflict возвращается при конкурентном изменении заказа (optimistic lock).
	// Клиент должен перечитать заказ и повторить операцию.
	ErrVersionConflict = errors.New("заказ был изменён конкурентно, повторите операцию")

	// ErrDuplicateOrder возвращается при попытке создать заказ с уже существующим idempotency_key.
	ErrDuplicateOrder = errors.New("заказ с таким idempotency_key уже существует")

	// ErrInsufficientStock возвращается, когда на складе недостаточно товара для резервирования.
	ErrInsufficientStock = errors.New("недостаточно товара на складе")

	// ErrPaymentNotFound возвращается, когда платёж не найден.
	ErrPaymentNotFound = errors.New("платёж не найден")

	// ErrPaymentAmountMismatch возвращается, когда сумма подтверждения платежа
	// не совпадает с суммой заказа. Требует ручного разбора, автоматически не исправляется.
	ErrPaymentAmountMismatch = errors.New("сумма платежа не совпадает с суммой заказа")

	// ErrDuplicatePayment возвращается при повторном подтверждении с тем же provider_tx_id.
	ErrDuplicatePayment = errors.New("платёж с таким provider_tx_id уже обработан")

	// ErrPaymentAlreadySucceeded возвращается при попытке пометить успешный платёж как неудачный.
	// Успешный статус платежа не откатывается.
	ErrPaymentAlreadySucceeded = errors.New("платёж уже успешно завершён")

	// ErrCouponNotFound возвращается, когда купон не найден.
	ErrCouponNotFound = errors.New("купон не найден")

	// ErrCouponInactive возвращается при попытке применить отключённый купон.
	ErrCouponInactive = errors.New("купон не активен")

	// ErrCouponExpired возвращается при попытке применить просроченный купон.
	ErrCouponExpired = errors.New("срок действия купона истёк")

	// ErrCouponNotYetActive возвращается, когда срок действия купона ещё не начался.
	ErrCouponNotYetActive = errors.New("срок действия купона ещё не начался")

	// ErrCouponLimitExceeded возвращается, когда лимит использований купона исчерпан.
	ErrCouponLimitExceeded = errors.New("лимит использований купона исчерпан")

	// ErrCouponUserLimitExceeded возвращается, когда пользователь исчерпал
	// персональный лимит применений купона.
	ErrCouponUserLimitExceeded = errors.New("персональный лимит применений купона исчерпан")

	// ErrMinOrderAmountNotMet возвращается, когда сумма заказа меньше минимальной для купона.
	ErrMinOrderAmountNotMet = errors.New("сумма заказа меньше минимальной для применения купона")

	// ErrGiftCardNotFound возвращается, когда подарочная карта не найдена.
	ErrGiftCardNotFound = errors.New("подарочная карта не найдена")

	// ErrGiftCardInactive возвращается при попытке использовать деактивированную карту.
	ErrGiftCardInactive = errors.New("подарочная карта не активна")

	// ErrInsufficientBalance возвращается, когда баланса подарочной карты или
	// бонусных баллов недостаточно для запрошенного списания.
	ErrInsufficientBalance = errors.New("недостаточно средств на балансе")

	// ErrRefundNotAllowed возвращается при попытке возврата по неоплаченному заказу.
	ErrRefundNotAllowed = errors.New("возврат возможен только по оплаченному заказу")

	// ErrRefundLimitExceeded возвращается, когда сумма возврата превышает
	// невозвращённый остаток платежа.
	ErrRefundLimitExceeded = errors.New("сумма возврата превышает остаток платежа")

	// ErrRefundLineMismatch возвращается, когда строка возврата ссылается на
	// отсутствующую позицию заказа или превышает её количество.
	ErrRefundLineMismatch = errors.New("строка возврата не соответствует позициям заказа")

	// ErrCartNotFound возвращается, когда снимок корзины не найден.
	ErrCartNotFound = errors.New("корзина не найдена")
)
