package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"example.com/grocery-core/pkg/auth"
	"example.com/grocery-core/pkg/logger"
	"example.com/grocery-core/services/order/internal/domain"
	"example.com/grocery-core/services/order/internal/middleware"
	"example.com/grocery-core/services/order/internal/service"
)

// OrderHandler — обработчик заказов.
type OrderHandler struct {
	orders  service.OrderService
	refunds service.RefundProcessor
}

// NewOrderHandler создаёт новый обработчик заказов.
func NewOrderHandler(orders service.OrderService, refunds service.RefundProcessor) *OrderHandler {
	return &OrderHandler{
		orders:  orders,
		refunds: refunds,
	}
}

// === Request/Response DTOs ===

// CreateOrderRequest — запрос на создание заказа. Цены не принимаются:
// стоимость позиций определяет каталог.
type CreateOrderRequest struct {
	Items        []CreateOrderItemRequest `json:"items" binding:"required,min=1,dive"`
	CouponCode   string                   `json:"coupon_code"`
	RewardPoints int64                    `json:"reward_points" binding:"min=0"`
	GiftCardCode string                   `json:"gift_card_code"`
}

// CreateOrderItemRequest — позиция в запросе на создание заказа.
type CreateOrderItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int32  `json:"quantity" binding:"required,min=1"`
}

// TransitionRequest — запрос на смену статуса заказа.
type TransitionRequest struct {
	To     string `json:"to" binding:"required"`
	Reason string `json:"reason"`
}

// CreateRefundRequest — запрос на возврат средств.
type CreateRefundRequest struct {
	Amount int64               `json:"amount" binding:"required,min=1"`
	Reason string              `json:"reason" binding:"required"`
	Lines  []RefundLineRequest `json:"lines" binding:"dive"`
}

// RefundLineRequest — строка возврата.
type RefundLineRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int32  `json:"quantity" binding:"required,min=1"`
	Amount    int64  `json:"amount" binding:"required,min=1"`
}

// MoneyResponse — денежная сумма в ответе.
type MoneyResponse struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// OrderItemResponse — позиция заказа в ответе.
type OrderItemResponse struct {
	ProductID   string        `json:"product_id"`
	ProductName string        `json:"product_name"`
	Quantity    int32         `json:"quantity"`
	UnitPrice   MoneyResponse `json:"unit_price"`
}

// OrderResponse — информация о заказе в ответе.
type OrderResponse struct {
	ID            string              `json:"id"`
	UserID        string              `json:"user_id"`
	Items         []OrderItemResponse `json:"items"`
	Status        string              `json:"status"`
	Subtotal      MoneyResponse       `json:"subtotal"`
	DiscountTotal MoneyResponse       `json:"discount_total"`
	ShippingTotal MoneyResponse       `json:"shipping_total"`
	GrandTotal    MoneyResponse       `json:"grand_total"`
	Version       int64               `json:"version"`
	CreatedAt     int64               `json:"created_at"`
	UpdatedAt     int64               `json:"updated_at"`
}

// ListOrdersResponse — ответ на запрос списка заказов.
type ListOrdersResponse struct {
	Orders     []OrderResponse    `json:"orders"`
	Pagination PaginationResponse `json:"pagination"`
}

// PaginationResponse — информация о пагинации.
type PaginationResponse struct {
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
	TotalItems  int64 `json:"total_items"`
}

// HistoryEntryResponse — запись истории статусов заказа.
type HistoryEntryResponse struct {
	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status"`
	Actor      string `json:"actor"`
	Reason     string `json:"reason,omitempty"`
	CreatedAt  int64  `json:"created_at"`
}

// RefundResponse — информация о возврате в ответе.
type RefundResponse struct {
	ID        string               `json:"id"`
	OrderID   string               `json:"order_id"`
	Amount    MoneyResponse        `json:"amount"`
	Reason    string               `json:"reason"`
	Lines     []RefundLineResponse `json:"lines,omitempty"`
	CreatedAt int64                `json:"created_at"`
}

// RefundLineResponse — строка возврата в ответе.
type RefundLineResponse struct {
	ProductID string        `json:"product_id"`
	Quantity  int32         `json:"quantity"`
	Amount    MoneyResponse `json:"amount"`
}

func moneyToResponse(m domain.Money) MoneyResponse {
	return MoneyResponse{Amount: m.Amount, Currency: m.Currency}
}

func orderToResponse(o *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = OrderItemResponse{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   moneyToResponse(item.UnitPrice),
		}
	}
	return OrderResponse{
		ID:            o.ID,
		UserID:        o.UserID,
		Items:         items,
		Status:        string(o.Status),
		Subtotal:      moneyToResponse(o.Subtotal),
		DiscountTotal: moneyToResponse(o.DiscountTotal),
		ShippingTotal: moneyToResponse(o.ShippingTotal),
		GrandTotal:    moneyToResponse(o.GrandTotal),
		Version:       o.Version,
		CreatedAt:     o.CreatedAt.Unix(),
		UpdatedAt:     o.UpdatedAt.Unix(),
	}
}

func refundToResponse(r *domain.Refund) RefundResponse {
	lines := make([]RefundLineResponse, len(r.Lines))
	for i, line := range r.Lines {
		lines[i] = RefundLineResponse{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Amount:    moneyToResponse(line.Amount),
		}
	}
	return RefundResponse{
		ID:        r.ID,
		OrderID:   r.OrderID,
		Amount:    moneyToResponse(r.Amount),
		Reason:    r.Reason,
		Lines:     lines,
		CreatedAt: r.CreatedAt.Unix(),
	}
}

// === Handlers ===

// CreateOrder создаёт новый заказ.
// POST /api/v1/orders, ключ идемпотентности — заголовок X-Idempotency-Key.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	idempotencyKey := c.GetHeader("X-Idempotency-Key")
	if idempotencyKey == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Заголовок X-Idempotency-Key обязателен",
		})
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Debug().Err(err).Msg("Невалидный запрос на создание заказа")
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Невалидные данные запроса",
		})
		return
	}

	items := make([]service.RequestedItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = service.RequestedItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
	}

	order, err := h.orders.CreateOrder(ctx, service.CreateOrderRequest{
		UserID:         userID,
		IdempotencyKey: idempotencyKey,
		Items:          items,
		Discounts: domain.DiscountRequest{
			CouponCode:   req.CouponCode,
			RewardPoints: req.RewardPoints,
			GiftCardCode: req.GiftCardCode,
		},
	})
	if err != nil {
		HandleDomainError(c, err, "CreateOrder")
		return
	}

	c.JSON(http.StatusCreated, orderToResponse(order))
}

// GetOrder возвращает заказ по ID.
// GET /api/v1/orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, ok := h.loadOwnedOrder(c, "GetOrder")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, orderToResponse(order))
}

// ListOrders возвращает список заказов текущего пользователя.
// GET /api/v1/orders?page=1&page_size=20&status=PENDING
func (h *OrderHandler) ListOrders(c *gin.Context) {
	ctx := c.Request.Context()

	userID, ok := h.getUserID(c)
	if !ok {
		return
	}

	page := 1
	pageSize := 20
	if v, err := strconv.Atoi(c.Query("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(c.Query("page_size")); err == nil && v > 0 {
		pageSize = v
	}

	var status *domain.OrderStatus
	if raw := c.Query("status"); raw != "" {
		st := domain.OrderStatus(raw)
		if !st.IsValid() {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_request",
				Message: "Невалидный статус фильтра",
			})
			return
		}
		status = &st
	}

	orders, total, err := h.orders.ListOrders(ctx, userID, status, page, pageSize)
	if err != nil {
		HandleDomainError(c, err, "ListOrders")
		return
	}

	resp := ListOrdersResponse{
		Orders: make([]OrderResponse, len(orders)),
		Pagination: PaginationResponse{
			CurrentPage: page,
			PageSize:    pageSize,
			TotalItems:  total,
		},
	}
	for i, o := range orders {
		resp.Orders[i] = orderToResponse(o)
	}

	c.JSON(http.StatusOK, resp)
}

// GetHistory возвращает историю статусов заказа.
// GET /api/v1/orders/:id/history
func (h *OrderHandler) GetHistory(c *gin.Context) {
	order, ok := h.loadOwnedOrder(c, "GetHistory")
	if !ok {
		return
	}

	history, err := h.orders.GetOrderHistory(c.Request.Context(), order.ID)
	if err != nil {
		HandleDomainError(c, err, "GetHistory")
		return
	}

	entries := make([]HistoryEntryResponse, len(history))
	for i, entry := range history {
		entries[i] = HistoryEntryResponse{
			FromStatus: string(entry.FromStatus),
			ToStatus:   string(entry.ToStatus),
			Actor:      entry.Actor,
			Reason:     entry.Reason,
			CreatedAt:  entry.CreatedAt.Unix(),
		}
	}

	c.JSON(http.StatusOK, gin.H{"history": entries})
}

// Transition переводит заказ в новый статус. Административная операция.
// POST /api/v1/orders/:id/transition
func (h *OrderHandler) Transition(c *gin.Context) {
	ctx := c.Request.Context()

	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Невалидные данные запроса",
		})
		return
	}

	to := domain.OrderStatus(req.To)
	if !to.IsValid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Невалидный целевой статус",
		})
		return
	}

	order, err := h.orders.Transition(ctx, c.Param("id"), to, domain.ActorUser, req.Reason)
	if err != nil {
		HandleDomainError(c, err, "Transition")
		return
	}

	c.JSON(http.StatusOK, orderToResponse(order))
}

// CancelOrder отменяет заказ текущего пользователя.
// DELETE /api/v1/orders/:id
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	order, ok := h.loadOwnedOrder(c, "CancelOrder")
	if !ok {
		return
	}

	if err := h.orders.CancelOrder(c.Request.Context(), order.ID, domain.ActorUser, "отменён пользователем"); err != nil {
		HandleDomainError(c, err, "CancelOrder")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": string(domain.OrderStatusCancelled)})
}

// CreateRefund оформляет возврат по заказу. Административная операция.
// POST /api/v1/orders/:id/refunds
func (h *OrderHandler) CreateRefund(c *gin.Context) {
	ctx := c.Request.Context()

	var req CreateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Невалидные данные запроса",
		})
		return
	}

	lines := make([]service.RefundLineRequest, len(req.Lines))
	for i, line := range req.Lines {
		lines[i] = service.RefundLineRequest{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Amount:    line.Amount,
		}
	}

	refund, err := h.refunds.CreateRefund(ctx, c.Param("id"), service.RefundRequest{
		Amount: req.Amount,
		Reason: req.Reason,
		Lines:  lines,
	})
	if err != nil {
		HandleDomainError(c, err, "CreateRefund")
		return
	}

	c.JSON(http.StatusCreated, refundToResponse(refund))
}

// ListRefunds возвращает возвраты заказа.
// GET /api/v1/orders/:id/refunds
func (h *OrderHandler) ListRefunds(c *gin.Context) {
	order, ok := h.loadOwnedOrder(c, "ListRefunds")
	if !ok {
		return
	}

	refunds, err := h.refunds.ListRefunds(c.Request.Context(), order.ID)
	if err != nil {
		HandleDomainError(c, err, "ListRefunds")
		return
	}

	resp := make([]RefundResponse, len(refunds))
	for i, r := range refunds {
		resp[i] = refundToResponse(r)
	}
	c.JSON(http.StatusOK, gin.H{"refunds": resp})
}

// getUserID извлекает user_id, установленный auth middleware.
func (h *OrderHandler) getUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(middleware.ContextUserID)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "Требуется авторизация",
		})
		return "", false
	}
	return userID, true
}

// loadOwnedOrder загружает заказ и проверяет, что он принадлежит текущему
// пользователю. Администратору доступны любые заказы.
func (h *OrderHandler) loadOwnedOrder(c *gin.Context, method string) (*domain.Order, bool) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	userID, ok := h.getUserID(c)
	if !ok {
		return nil, false
	}

	order, err := h.orders.GetOrder(ctx, c.Param("id"))
	if err != nil {
		HandleDomainError(c, err, method)
		return nil, false
	}

	if order.UserID != userID && c.GetString(middleware.ContextRole) != auth.RoleAdmin {
		log.Warn().
			Str("order_id", order.ID).
			Str("request_user_id", userID).
			Msg("Попытка доступа к чужому заказу")
		c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "forbidden",
			Message: "Доступ к заказу запрещён",
		})
		return nil, false
	}

	return order, true
}
