package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"example.com/grocery-core/pkg/logger"
	"example.com/grocery-core/pkg/metrics"
	"example.com/grocery-core/services/order/internal/discount"
	"example.com/grocery-core/services/order/internal/domain"
	"example.com/grocery-core/services/order/internal/repository"
	"example.com/grocery-core/services/order/internal/stock"
)

// RefundRequest — запрос на возврат средств по заказу.
type RefundRequest struct {
	Amount int64  // Сумма возврата в минимальных единицах
	Reason string // Причина возврата
	Lines  []RefundLineRequest
}

// RefundLineRequest — строка возврата с привязкой к позиции заказа.
type RefundLineRequest struct {
	ProductID string
	Quantity  int32
	Amount    int64
}

// RefundProcessor определяет интерфейс оформления возвратов.
type RefundProcessor interface {
	// CreateRefund оформляет возврат по заказу. Сумма не может превышать
	// невозвращённый остаток платежа. Товар по строкам возврата
	// возвращается на склад, при полном возврате заказ переходит в
	// REFUNDED и восстанавливаются балансы скидок.
	CreateRefund(ctx context.Context, orderID string, req RefundRequest) (*domain.Refund, error)

	// ListRefunds возвращает возвраты заказа.
	ListRefunds(ctx context.Context, orderID string) ([]*domain.Refund, error)
}

// refundProcessor — реализация RefundProcessor.
type refundProcessor struct {
	refunds   repository.RefundRepository
	payments  repository.PaymentRepository
	orders    repository.OrderRepository
	discounts repository.DiscountRepository
}

// NewRefundProcessor создаёт новый сервис возвратов.
func NewRefundProcessor(
	refunds repository.RefundRepository,
	payments repository.PaymentRepository,
	orders repository.OrderRepository,
	discounts repository.DiscountRepository,
) RefundProcessor {
	return &refundProcessor{
		refunds:   refunds,
		payments:  payments,
		orders:    orders,
		discounts: discounts,
	}
}

// CreateRefund оформляет возврат по заказу.
func (p *refundProcessor) CreateRefund(ctx context.Context, orderID string, req RefundRequest) (*domain.Refund, error) {
	log := logger.FromContext(ctx)

	order, err := p.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	// Возврат возможен только по заказу с успешным платежом. Ищем именно
	// успешный платёж: поздний отказ другой попытки оплаты возврат не блокирует.
	payment, err := p.payments.GetSucceededByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			return nil, domain.ErrRefundNotAllowed
		}
		return nil, err
	}

	// Невозвращённый остаток — верхняя граница суммы возврата
	alreadyRefunded, err := p.refunds.SumByPaymentID(ctx, payment.ID)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта возвратов: %w", err)
	}
	remaining := payment.Amount.Amount - alreadyRefunded
	if req.Amount > remaining {
		log.Warn().
			Str("order_id", orderID).
			Int64("requested", req.Amount).
			Int64("remaining", remaining).
			Msg("Сумма возврата превышает остаток платежа")
		return nil, domain.ErrRefundLimitExceeded
	}

	refund := &domain.Refund{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		PaymentID: payment.ID,
		Amount:    domain.Money{Amount: req.Amount, Currency: payment.Amount.Currency},
		Reason:    req.Reason,
		Lines:     make([]domain.RefundLine, len(req.Lines)),
	}
	for i, line := range req.Lines {
		refund.Lines[i] = domain.RefundLine{
			ID:        uuid.New().String(),
			RefundID:  refund.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Amount:    domain.Money{Amount: line.Amount, Currency: payment.Amount.Currency},
		}
	}

	// Сколько каждого товара уже вернули предыдущие возвраты: строки нового
	// возврата проверяются против остатка, а не против исходного количества
	refundedQty, err := p.refundedQuantities(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := refund.Validate(order, refundedQty); err != nil {
		return nil, err
	}

	full := req.Amount == remaining
	movements := stock.ReturnMovements(orderID, refund.Lines)
	if full && len(refund.Lines) == 0 {
		// Полный возврат без расшифровки возвращает на склад всё,
		// что ещё не вернули частичные возвраты
		movements = stock.RemainingReturnMovements(orderID, order.Items, refundedQty)
	}
	comp := &repository.RefundCompensation{Movements: movements}
	if full {
		if !order.CanTransitionTo(domain.OrderStatusRefunded) {
			return nil, domain.ErrInvalidTransition
		}
		status := domain.OrderStatusRefunded
		comp.OrderStatus = &status
		comp.OrderID = orderID
		comp.FromVersion = order.Version
		comp.History = &domain.OrderStatusHistory{
			ID:         uuid.New().String(),
			OrderID:    orderID,
			FromStatus: order.Status,
			ToStatus:   domain.OrderStatusRefunded,
			Actor:      domain.ActorUser,
			Reason:     req.Reason,
		}

		// Полный возврат восстанавливает балансы источников скидок
		applied, err := p.discounts.GetAppliedByOrderID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		rev := discount.ReversalFor(order.UserID, applied)
		comp.GiftCardID = rev.GiftCardID
		comp.GiftCardAmount = rev.GiftCardAmount
		comp.PointsUserID = rev.PointsUserID
		comp.Points = rev.Points
	}

	if err := p.refunds.CreateWithCompensation(ctx, refund, comp); err != nil {
		return nil, err
	}

	kind := "partial"
	if full {
		kind = "full"
	}
	metrics.RefundsProcessedTotal.WithLabelValues(kind).Inc()
	log.Info().
		Str("order_id", orderID).
		Str("refund_id", refund.ID).
		Int64("amount", req.Amount).
		Bool("full", full).
		Msg("Возврат оформлен")

	return refund, nil
}

// refundedQuantities возвращает уже возвращённое количество по каждому товару заказа.
func (p *refundProcessor) refundedQuantities(ctx context.Context, orderID string) (map[string]int32, error) {
	prior, err := p.refunds.ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения возвратов: %w", err)
	}
	refunded := make(map[string]int32)
	for _, r := range prior {
		for i := range r.Lines {
			refunded[r.Lines[i].ProductID] += r.Lines[i].Quantity
		}
	}
	return refunded, nil
}

// ListRefunds возвращает возвраты заказа.
func (p *refundProcessor) ListRefunds(ctx context.Context, orderID string) ([]*domain.Refund, error) {
	if _, err := p.orders.GetByID(ctx, orderID); err != nil {
		return nil, err
	}
	return p.refunds.ListByOrderID(ctx, orderID)
}
