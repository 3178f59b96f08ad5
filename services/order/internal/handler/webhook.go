package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/grocery-core/pkg/logger"
	"example.com/grocery-core/services/order/internal/service"
)

// signatureHeader — заголовок с HMAC-SHA256 подписью тела запроса.
const signatureHeader = "X-Webhook-Signature"

// maxWebhookBody — предел размера тела webhook запроса.
const maxWebhookBody = 64 << 10

// WebhookHandler — обработчик входящих уведомлений платёжного провайдера.
type WebhookHandler struct {
	reconciler service.PaymentReconciler
	secret     []byte
}

// NewWebhookHandler создаёт новый обработчик платёжных webhook.
func NewWebhookHandler(reconciler service.PaymentReconciler, secret string) *WebhookHandler {
	return &WebhookHandler{
		reconciler: reconciler,
		secret:     []byte(secret),
	}
}

// paymentWebhookPayload — тело уведомления провайдера.
type paymentWebhookPayload struct {
	ProviderTxID  string `json:"provider_tx_id" binding:"required"`
	OrderID       string `json:"order_id" binding:"required"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Status        string `json:"status"` // succeeded / failed
	FailureReason string `json:"failure_reason"`
}

// PaymentWebhookResponse — ответ провайдеру.
type PaymentWebhookResponse struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

// HandlePayment обрабатывает уведомление о результате платежа.
// POST /webhooks/payment
//
// Подпись проверяется до разбора тела: запрос без валидной подписи
// не должен влиять на состояние заказов.
func (h *WebhookHandler) HandlePayment(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Ошибка чтения тела запроса",
		})
		return
	}

	if !h.verifySignature(body, c.GetHeader(signatureHeader)) {
		log.Warn().Str("remote_addr", c.ClientIP()).Msg("Невалидная подпись webhook")
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_signature",
			Message: "Невалидная подпись запроса",
		})
		return
	}

	var payload paymentWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Невалидный JSON",
		})
		return
	}
	if payload.ProviderTxID == "" || payload.OrderID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "provider_tx_id и order_id обязательны",
		})
		return
	}

	payment, err := h.reconciler.Confirm(ctx, service.PaymentNotice{
		ProviderTxID:  payload.ProviderTxID,
		OrderID:       payload.OrderID,
		Amount:        payload.Amount,
		Currency:      payload.Currency,
		Succeeded:     payload.Status == "succeeded",
		FailureReason: payload.FailureReason,
	})
	if err != nil {
		HandleDomainError(c, err, "PaymentWebhook")
		return
	}

	c.JSON(http.StatusOK, PaymentWebhookResponse{
		PaymentID: payment.ID,
		Status:    string(payment.Status),
	})
}

// verifySignature сверяет HMAC-SHA256 подпись тела запроса.
func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), provided)
}
