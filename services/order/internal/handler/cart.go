package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/grocery-core/services/order/internal/domain"
	"example.com/grocery-core/services/order/internal/service"
)

// CartHandler — обработчик корзины пользователя.
type CartHandler struct {
	carts service.CartService
}

// NewCartHandler создаёт новый обработчик корзины.
func NewCartHandler(carts service.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

// UpdateCartRequest — снимок корзины от клиента. Пустой список позиций
// валиден: пользователь очистил корзину.
type UpdateCartRequest struct {
	Items []CartItemRequest `json:"items" binding:"dive"`
}

// CartItemRequest — позиция корзины.
type CartItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int32  `json:"quantity" binding:"required,min=1"`
}

// CartResponse — корзина в ответе.
type CartResponse struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	Items     []CartItemResponse `json:"items"`
	UpdatedAt int64              `json:"updated_at"`
}

// CartItemResponse — позиция корзины в ответе.
type CartItemResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

func cartToResponse(cart *domain.CartSnapshot) CartResponse {
	items := make([]CartItemResponse, len(cart.Items))
	for i, item := range cart.Items {
		items[i] = CartItemResponse{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return CartResponse{
		ID:        cart.ID,
		UserID:    cart.UserID,
		Items:     items,
		UpdatedAt: cart.UpdatedAt.Unix(),
	}
}

// UpdateCart сохраняет снимок корзины текущего пользователя.
// PUT /api/v1/cart
func (h *CartHandler) UpdateCart(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "Требуется авторизация",
		})
		return
	}

	var req UpdateCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Невалидные данные запроса",
		})
		return
	}

	items := make([]domain.CartItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = domain.CartItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	cart, err := h.carts.UpdateCart(c.Request.Context(), userID, items)
	if err != nil {
		HandleDomainError(c, err, "UpdateCart")
		return
	}

	c.JSON(http.StatusOK, cartToResponse(cart))
}

// GetCart возвращает корзину текущего пользователя.
// GET /api/v1/cart
func (h *CartHandler) GetCart(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "Требуется авторизация",
		})
		return
	}

	cart, err := h.carts.GetCart(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrCartNotFound) {
			// Отсутствие корзины — пустая корзина, не ошибка
			c.JSON(http.StatusOK, CartResponse{
				UserID: userID,
				Items:  []CartItemResponse{},
			})
			return
		}
		HandleDomainError(c, err, "GetCart")
		return
	}

	c.JSON(http.StatusOK, cartToResponse(cart))
}
