// Package discount реализует расчёт скидок заказа.
// Источники применяются в фиксированном порядке: купон, затем бонусные
// баллы, затем подарочная карта. Каждый следующий источник работает
// с остатком после предыдущего, суммарная скидка не превышает сумму позиций.
package discount

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"example.com/grocery-core/pkg/logger"
	"example.com/grocery-core/services/order/internal/domain"
	"example.com/grocery-core/services/order/internal/repository"
)

// Engine — движок расчёта скидок.
type Engine struct {
	repo       repository.DiscountRepository
	pointValue int64 // Денежный эквивалент одного балла в минимальных единицах
}

// NewEngine создаёт новый движок скидок.
func NewEngine(repo repository.DiscountRepository, pointValue int64) *Engine {
	if pointValue <= 0 {
		pointValue = 1
	}
	return &Engine{repo: repo, pointValue: pointValue}
}

// Apply рассчитывает скидки для заказа с указанной суммой позиций.
// Балансы здесь не списываются — только проверяются: списание выполняется
// условными UPDATE в транзакции создания заказа, чтобы конкурентные заказы
// не потратили один баланс дважды.
func (e *Engine) Apply(ctx context.Context, userID string, subtotal int64, req domain.DiscountRequest) (*domain.AppliedDiscount, error) {
	applied := &domain.AppliedDiscount{ID: uuid.New().String()}
	if req.IsEmpty() {
		return applied, nil
	}

	log := logger.FromContext(ctx)
	remaining := subtotal

	// 1. Купон
	if code := strings.TrimSpace(req.CouponCode); code != "" {
		coupon, err := e.repo.GetCouponByCode(ctx, code)
		if err != nil {
			return nil, err
		}

		var userUsed int64
		if coupon.UserUsageLimit > 0 {
			userUsed, err = e.repo.CountCouponUsageByUser(ctx, coupon.ID, userID)
			if err != nil {
				return nil, err
			}
		}
		if err := coupon.CheckApplicable(subtotal, userUsed, time.Now()); err != nil {
			return nil, err
		}

		discount := coupon.Discount(subtotal)
		if discount > remaining {
			discount = remaining
		}
		applied.CouponID = &coupon.ID
		applied.CouponDiscount = discount
		remaining -= discount

		log.Debug().Str("coupon_code", code).Int64("discount", discount).Msg("Купон применён")
	}

	// 2. Бонусные баллы
	if req.RewardPoints > 0 {
		account, err := e.repo.GetRewardAccount(ctx, userID)
		if err != nil {
			return nil, err
		}
		if req.RewardPoints > account.Points {
			return nil, domain.ErrInsufficientBalance
		}

		// Не тратим больше баллов, чем осталось покрывать
		points := req.RewardPoints
		if points*e.pointValue > remaining {
			points = remaining / e.pointValue
		}
		applied.PointsSpent = points
		applied.PointsDiscount = points * e.pointValue
		remaining -= applied.PointsDiscount
	}

	// 3. Подарочная карта
	if code := strings.TrimSpace(req.GiftCardCode); code != "" {
		card, err := e.repo.GetGiftCardByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		if !card.Active {
			return nil, domain.ErrGiftCardInactive
		}

		amount := card.Balance
		if amount > remaining {
			amount = remaining
		}
		if amount > 0 {
			applied.GiftCardID = &card.ID
			applied.GiftCardAmount = amount
			remaining -= amount
		}
	}

	return applied, nil
}

// Reversal — восстановление балансов при возврате заказа.
// Купонные скидки не восстанавливаются: использование купона сгорает.
type Reversal struct {
	GiftCardID     *string
	GiftCardAmount int64
	PointsUserID   *string
	Points         int64
}

// ReversalFor строит восстановление балансов для полного возврата.
func ReversalFor(userID string, applied *domain.AppliedDiscount) Reversal {
	if applied == nil {
		return Reversal{}
	}
	rev := Reversal{
		GiftCardID:     applied.GiftCardID,
		GiftCardAmount: applied.GiftCardAmount,
	}
	if applied.PointsSpent > 0 {
		rev.PointsUserID = &userID
		rev.Points = applied.PointsSpent
	}
	return rev
}
