// Package service содержит бизнес-логику Order Core.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"example.com/grocery-core/pkg/logger"
	"example.com/grocery-core/pkg/metrics"
	"example.com/grocery-core/services/order/internal/discount"
	"example.com/grocery-core/services/order/internal/domain"
	"example.com/grocery-core/services/order/internal/repository"
	"example.com/grocery-core/services/order/internal/stock"
)

// Константы для валидации пагинации.
const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
	minPageSize     = 1
)

// Перечитывание заказа конкурента по ключу идемпотентности: короткий retry
// покрывает лаг реплики между вставкой конкурента и нашим чтением.
const (
	duplicateReadAttempts = 3
	duplicateReadBackoff  = 50 * time.Millisecond
)

// ProductInfo — данные товара из каталога.
type ProductInfo struct {
	ID       string // ID товара
	Name     string // Название товара
	Price    int64  // Цена в минимальных единицах
	Currency string // ISO 4217 код валюты
	Active   bool   // Доступен ли товар для заказа
}

// CatalogClient определяет интерфейс клиента каталога товаров.
type CatalogClient interface {
	// GetProduct возвращает данные товара по ID.
	GetProduct(ctx context.Context, productID string) (*ProductInfo, error)
}

// CreateOrderRequest — запрос на создание заказа.
type CreateOrderRequest struct {
	UserID         string
	IdempotencyKey string
	Items          []RequestedItem
	Discounts      domain.DiscountRequest
}

// RequestedItem — запрошенная позиция заказа. Цена и название
// берутся из каталога, клиентским данным о ценах не доверяем.
type RequestedItem struct {
	ProductID string
	Quantity  int32
}

// OrderService определяет интерфейс бизнес-логики заказов.
type OrderService interface {
	// CreateOrder создаёт новый заказ с идемпотентностью.
	// Если заказ с таким idempotencyKey уже существует, возвращает существующий заказ.
	// Резервы склада, скидки и заказ создаются в одной транзакции.
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error)

	// GetOrder возвращает заказ по ID.
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// GetOrderHistory возвращает историю статусов заказа.
	GetOrderHistory(ctx context.Context, orderID string) ([]*domain.OrderStatusHistory, error)

	// ListOrders возвращает заказы пользователя с пагинацией.
	// status может быть nil для получения всех заказов.
	ListOrders(ctx context.Context, userID string, status *domain.OrderStatus, page, pageSize int) ([]*domain.Order, int64, error)

	// Transition переводит заказ в новый статус по запросу оператора.
	// Переход проверяется state machine, конкурентные изменения
	// отсекаются проверкой версии.
	Transition(ctx context.Context, orderID string, to domain.OrderStatus, actor, reason string) (*domain.Order, error)

	// CancelOrder отменяет неоплаченный заказ и возвращает резерв на склад.
	CancelOrder(ctx context.Context, orderID, actor, reason string) error
}

// orderService — реализация OrderService.
type orderService struct {
	repo        repository.OrderRepository
	historyRepo repository.HistoryRepository
	ledger      *stock.Ledger
	discounts   *discount.Engine
	catalog     CatalogClient
	shippingFee int64
}

// NewOrderService создаёт новый сервис заказов.
func NewOrderService(
	repo repository.OrderRepository,
	historyRepo repository.HistoryRepository,
	ledger *stock.Ledger,
	discounts *discount.Engine,
	catalog CatalogClient,
	shippingFee int64,
) OrderService {
	return &orderService{
		repo:        repo,
		historyRepo: historyRepo,
		ledger:      ledger,
		discounts:   discounts,
		catalog:     catalog,
		shippingFee: shippingFee,
	}
}

// CreateOrder создаёт новый заказ с идемпотентностью.
func (s *orderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error) {
	log := logger.FromContext(ctx)

	// Проверяем идемпотентность — если заказ с таким ключом существует, возвращаем его
	if req.IdempotencyKey != "" {
		existing, err := s.repo.GetByIdempotencyKey(ctx, req.IdempotencyKey)
		if err == nil && existing != nil {
			log.Info().
				Str("order_id", existing.ID).
				Str("idempotency_key", req.IdempotencyKey).
				Msg("Возвращён существующий заказ по ключу идемпотентности")
			return existing, nil
		}
		if err != nil && !errors.Is(err, domain.ErrOrderNotFound) {
			return nil, fmt.Errorf("ошибка проверки идемпотентности: %w", err)
		}
	}

	if len(req.Items) == 0 {
		return nil, domain.ErrEmptyOrderItems
	}

	orderID := uuid.New().String()
	now := time.Now()

	// Цены и названия берём из каталога
	orderItems := make([]domain.OrderItem, len(req.Items))
	for i, item := range req.Items {
		product, err := s.catalog.GetProduct(ctx, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("ошибка запроса каталога: %w", err)
		}
		if !product.Active {
			return nil, domain.ErrInvalidProductID
		}
		orderItems[i] = domain.OrderItem{
			ID:          uuid.New().String(),
			OrderID:     orderID,
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   domain.Money{Amount: product.Price, Currency: product.Currency},
		}
	}

	order := &domain.Order{
		ID:             orderID,
		UserID:         req.UserID,
		Items:          orderItems,
		Status:         domain.OrderStatusPending,
		Version:        1,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := order.Validate(); err != nil {
		log.Warn().Err(err).Str("user_id", req.UserID).Msg("Ошибка валидации заказа")
		return nil, err
	}

	// Сумма позиций нужна движку скидок до финального пересчёта
	order.RecomputeTotals()

	applied, err := s.discounts.Apply(ctx, req.UserID, order.Subtotal.Amount, req.Discounts)
	if err != nil {
		return nil, err
	}
	applied.OrderID = orderID

	order.DiscountTotal = domain.Money{Amount: applied.Total(), Currency: order.Subtotal.Currency}
	order.ShippingTotal = domain.Money{Amount: s.shippingFee, Currency: order.Subtotal.Currency}
	order.RecomputeTotals()

	effects := &repository.CreateEffects{
		Movements: stock.ReservationMovements(orderID, orderItems),
		History: &domain.OrderStatusHistory{
			ID:       uuid.New().String(),
			OrderID:  orderID,
			ToStatus: domain.OrderStatusPending,
			Actor:    domain.ActorUser,
			Reason:   "заказ создан",
		},
		CouponID:       applied.CouponID,
		GiftCardID:     applied.GiftCardID,
		GiftCardAmount: applied.GiftCardAmount,
	}
	if applied.Total() > 0 {
		effects.Applied = applied
	}
	if applied.PointsSpent > 0 {
		effects.PointsUserID = &req.UserID
		effects.Points = applied.PointsSpent
	}

	// Транзакция создания выполняется под мьютексами товаров: проверка
	// остатков и запись резервов не гонятся с конкурентными заказами.
	productIDs := make([]string, len(orderItems))
	for i := range orderItems {
		productIDs[i] = orderItems[i].ProductID
	}
	err = s.ledger.WithLock(productIDs, func() error {
		return s.repo.CreateWithSideEffects(ctx, order, effects)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			metrics.StockReservationsRejectedTotal.Inc()
		}
		if errors.Is(err, domain.ErrDuplicateOrder) {
			// Конкурентный запрос с тем же ключом успел первым
			return s.getConcurrentDuplicate(ctx, req.IdempotencyKey)
		}
		log.Error().Err(err).Str("user_id", req.UserID).Msg("Ошибка создания заказа")
		return nil, err
	}

	metrics.OrdersCreatedTotal.Inc()
	log.Info().
		Str("order_id", orderID).
		Str("user_id", req.UserID).
		Int64("grand_total", order.GrandTotal.Amount).
		Msg("Заказ создан")

	return order, nil
}

// getConcurrentDuplicate перечитывает заказ, созданный конкурентным запросом
// с тем же ключом идемпотентности. Если заказ так и не прочитался, отдаём
// конфликт вместо "не найдено": заказ существует, клиент может повторить.
func (s *orderService) getConcurrentDuplicate(ctx context.Context, key string) (*domain.Order, error) {
	for attempt := 0; attempt < duplicateReadAttempts; attempt++ {
		order, err := s.repo.GetByIdempotencyKey(ctx, key)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, domain.ErrOrderNotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(duplicateReadBackoff):
		}
	}
	return nil, domain.ErrDuplicateOrder
}

// GetOrder возвращает заказ по ID.
func (s *orderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.repo.GetByID(ctx, orderID)
}

// GetOrderHistory возвращает историю статусов заказа.
func (s *orderService) GetOrderHistory(ctx context.Context, orderID string) ([]*domain.OrderStatusHistory, error) {
	if _, err := s.repo.GetByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.historyRepo.ListByOrderID(ctx, orderID)
}

// ListOrders возвращает заказы пользователя с пагинацией.
func (s *orderService) ListOrders(ctx context.Context, userID string, status *domain.OrderStatus, page, pageSize int) ([]*domain.Order, int64, error) {
	if page < defaultPage {
		page = defaultPage
	}
	if pageSize < minPageSize {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	offset := (page - 1) * pageSize
	return s.repo.ListByUserID(ctx, userID, status, offset, pageSize)
}

// Transition переводит заказ в новый статус по запросу оператора.
func (s *orderService) Transition(ctx context.Context, orderID string, to domain.OrderStatus, actor, reason string) (*domain.Order, error) {
	log := logger.FromContext(ctx)

	if !to.IsValid() {
		return nil, domain.ErrInvalidTransition
	}

	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	fromVersion := order.Version
	fromStatus := order.Status
	if err := order.TransitionTo(to); err != nil {
		return nil, err
	}

	history := &domain.OrderStatusHistory{
		ID:         uuid.New().String(),
		OrderID:    orderID,
		FromStatus: fromStatus,
		ToStatus:   to,
		Actor:      actor,
		Reason:     reason,
	}

	// Отмена возвращает резерв на склад в той же транзакции
	var movements []*domain.StockMovement
	if to == domain.OrderStatusCancelled {
		movements = stock.ReleaseMovements(orderID, order.Items)
	}

	if err := s.repo.TransitionStatus(ctx, orderID, fromVersion, to, history, movements); err != nil {
		return nil, err
	}

	log.Info().
		Str("order_id", orderID).
		Str("from", string(fromStatus)).
		Str("to", string(to)).
		Str("actor", actor).
		Msg("Статус заказа изменён")

	return order, nil
}

// CancelOrder отменяет неоплаченный заказ.
func (s *orderService) CancelOrder(ctx context.Context, orderID, actor, reason string) error {
	_, err := s.Transition(ctx, orderID, domain.OrderStatusCancelled, actor, reason)
	return err
}
