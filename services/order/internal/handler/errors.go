// Package handler содержит HTTP обработчики REST API Order Core.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/grocery-core/pkg/circuitbreaker"
	"example.com/grocery-core/pkg/logger"
	"example.com/grocery-core/services/order/internal/domain"
)

// ErrorResponse — стандартный формат ошибки API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HandleDomainError преобразует доменную ошибку в HTTP ответ.
// Используется всеми handlers для единообразной обработки ошибок.
func HandleDomainError(c *gin.Context, err error, method string) {
	log := logger.FromContext(c.Request.Context())

	if err == nil {
		log.Error().Str("method", method).Msg("HandleDomainError вызван с nil ошибкой — баг в коде")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Внутренняя ошибка сервера",
		})
		return
	}

	httpStatus, errorCode := mapDomainError(err)
	if httpStatus == http.StatusInternalServerError {
		log.Error().Err(err).Str("method", method).Msg("Внутренняя ошибка")
		c.JSON(httpStatus, ErrorResponse{
			Error:   errorCode,
			Message: "Внутренняя ошибка сервера",
		})
		return
	}

	c.JSON(httpStatus, ErrorResponse{
		Error:   errorCode,
		Message: err.Error(),
	})
}

// mapDomainError возвращает HTTP статус и машинный код для доменной ошибки.
func mapDomainError(err error) (int, string) {
	switch {
	// 404 — сущность не найдена
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrPaymentNotFound),
		errors.Is(err, domain.ErrCouponNotFound),
		errors.Is(err, domain.ErrGiftCardNotFound),
		errors.Is(err, domain.ErrCartNotFound):
		return http.StatusNotFound, "not_found"

	// 409 — конфликт состояния, клиент может повторить или перечитать
	case errors.Is(err, domain.ErrVersionConflict):
		return http.StatusConflict, "version_conflict"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrDuplicatePayment):
		return http.StatusConflict, "duplicate_payment"
	case errors.Is(err, domain.ErrDuplicateOrder):
		return http.StatusConflict, "duplicate_order"
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusConflict, "insufficient_stock"

	// 422 — запрос разобран, но бизнес-правила его отвергают
	case errors.Is(err, domain.ErrPaymentAmountMismatch):
		return http.StatusUnprocessableEntity, "amount_mismatch"
	case errors.Is(err, domain.ErrRefundNotAllowed),
		errors.Is(err, domain.ErrRefundLimitExceeded),
		errors.Is(err, domain.ErrRefundLineMismatch):
		return http.StatusUnprocessableEntity, "refund_rejected"
	case errors.Is(err, domain.ErrCouponInactive),
		errors.Is(err, domain.ErrCouponExpired),
		errors.Is(err, domain.ErrCouponNotYetActive),
		errors.Is(err, domain.ErrCouponLimitExceeded),
		errors.Is(err, domain.ErrCouponUserLimitExceeded),
		errors.Is(err, domain.ErrMinOrderAmountNotMet),
		errors.Is(err, domain.ErrGiftCardInactive),
		errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, "discount_rejected"

	// 400 — невалидные данные запроса
	case errors.Is(err, domain.ErrEmptyOrderItems),
		errors.Is(err, domain.ErrInvalidUserID),
		errors.Is(err, domain.ErrInvalidProductID),
		errors.Is(err, domain.ErrInvalidProductName),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrCurrencyMismatch):
		return http.StatusBadRequest, "invalid_request"

	// 503 — внешняя зависимость недоступна
	case errors.Is(err, circuitbreaker.ErrUnavailable):
		return http.StatusServiceUnavailable, "service_unavailable"

	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
