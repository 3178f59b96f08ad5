package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/grocery-core/pkg/logger"
	"example.com/grocery-core/services/order/internal/stock"
)

// StockHandler — обработчик операций со складом.
type StockHandler struct {
	ledger *stock.Ledger
}

// NewStockHandler создаёт новый обработчик склада.
func NewStockHandler(ledger *stock.Ledger) *StockHandler {
	return &StockHandler{ledger: ledger}
}

// AdjustStockRequest — запрос ручной корректировки остатка.
type AdjustStockRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Delta     int64  `json:"delta" binding:"required"`
}

// StockResponse — текущий остаток товара.
type StockResponse struct {
	ProductID string `json:"product_id"`
	Available int64  `json:"available"`
}

// MovementResponse — движение товара по складу.
type MovementResponse struct {
	ID        string  `json:"id"`
	ProductID string  `json:"product_id"`
	Delta     int64   `json:"delta"`
	Reason    string  `json:"reason"`
	OrderID   *string `json:"order_id,omitempty"`
	CreatedAt int64   `json:"created_at"`
}

// Adjust выполняет ручную корректировку остатка. Административная операция.
// POST /api/v1/stock/adjust
func (h *StockHandler) Adjust(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	var req AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Невалидные данные запроса",
		})
		return
	}

	movement, err := h.ledger.Adjust(ctx, req.ProductID, req.Delta)
	if err != nil {
		HandleDomainError(c, err, "AdjustStock")
		return
	}

	log.Info().
		Str("product_id", req.ProductID).
		Int64("delta", req.Delta).
		Msg("Остаток скорректирован вручную")

	c.JSON(http.StatusCreated, MovementResponse{
		ID:        movement.ID,
		ProductID: movement.ProductID,
		Delta:     movement.Delta,
		Reason:    string(movement.Reason),
		OrderID:   movement.OrderID,
		CreatedAt: movement.CreatedAt.Unix(),
	})
}

// GetStock возвращает текущий остаток товара.
// GET /api/v1/stock/:product_id
func (h *StockHandler) GetStock(c *gin.Context) {
	productID := c.Param("product_id")

	available, err := h.ledger.CurrentStock(c.Request.Context(), productID)
	if err != nil {
		HandleDomainError(c, err, "GetStock")
		return
	}

	c.JSON(http.StatusOK, StockResponse{
		ProductID: productID,
		Available: available,
	})
}
