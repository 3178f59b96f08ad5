// Package stock реализует складской учёт поверх append-only журнала движений.
// Конкурентные резервы одного товара сериализуются striped-мьютексами,
// поэтому проверка остатка и запись резерва не гонятся между собой.
package stock

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/google/uuid"

	"example.com/grocery-core/pkg/logger"
	"example.com/grocery-core/services/order/internal/domain"
	"example.com/grocery-core/services/order/internal/repository"
)

// stripeCount — количество мьютексов, между которыми распределяются товары.
const stripeCount = 64

// Ledger — складской учёт с сериализацией по товару.
type Ledger struct {
	repo    repository.StockRepository
	stripes [stripeCount]sync.Mutex
}

// NewLedger создаёт новый складской учёт.
func NewLedger(repo repository.StockRepository) *Ledger {
	return &Ledger{repo: repo}
}

// stripeFor возвращает индекс мьютекса для товара.
func stripeFor(productID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(productID))
	return int(h.Sum32() % stripeCount)
}

// lockProducts захватывает мьютексы всех товаров в стабильном порядке.
// Сортировка индексов исключает взаимные блокировки между конкурентными
// заказами с пересекающимися наборами товаров.
func (l *Ledger) lockProducts(productIDs []string) func() {
	seen := make(map[int]struct{}, len(productIDs))
	indices := make([]int, 0, len(productIDs))
	for _, id := range productIDs {
		idx := stripeFor(id)
		if _, ok := seen[idx]; !ok {
			seen[idx] = struct{}{}
			indices = append(indices, idx)
		}
	}
	sort.Ints(indices)

	for _, idx := range indices {
		l.stripes[idx].Lock()
	}
	return func() {
		for i := len(indices) - 1; i >= 0; i-- {
			l.stripes[indices[i]].Unlock()
		}
	}
}

// Reserve резервирует товары под заказ. Всё или ничего: при нехватке
// любого товара транзакция откатывается и возвращается ErrInsufficientStock.
func (l *Ledger) Reserve(ctx context.Context, orderID string, items []domain.OrderItem) error {
	productIDs := make([]string, len(items))
	movements := make([]*domain.StockMovement, len(items))
	for i := range items {
		productIDs[i] = items[i].ProductID
		movements[i] = &domain.StockMovement{
			ID:        uuid.New().String(),
			ProductID: items[i].ProductID,
			Delta:     -int64(items[i].Quantity),
			Reason:    domain.StockReasonReserve,
			OrderID:   &orderID,
		}
	}

	unlock := l.lockProducts(productIDs)
	defer unlock()

	if err := l.repo.Append(ctx, movements); err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("order_id", orderID).
		Int("items", len(items)).
		Msg("Товары зарезервированы")

	return nil
}

// ReservationMovements строит движения резерва без записи в журнал.
// Используется при создании заказа, когда резерв пишется в одной
// транзакции с самим заказом.
func ReservationMovements(orderID string, items []domain.OrderItem) []*domain.StockMovement {
	movements := make([]*domain.StockMovement, len(items))
	for i := range items {
		movements[i] = &domain.StockMovement{
			ID:        uuid.New().String(),
			ProductID: items[i].ProductID,
			Delta:     -int64(items[i].Quantity),
			Reason:    domain.StockReasonReserve,
			OrderID:   &orderID,
		}
	}
	return movements
}

// ReleaseMovements строит движения возврата резерва при отмене заказа.
func ReleaseMovements(orderID string, items []domain.OrderItem) []*domain.StockMovement {
	movements := make([]*domain.StockMovement, len(items))
	for i := range items {
		movements[i] = &domain.StockMovement{
			ID:        uuid.New().String(),
			ProductID: items[i].ProductID,
			Delta:     int64(items[i].Quantity),
			Reason:    domain.StockReasonRelease,
			OrderID:   &orderID,
		}
	}
	return movements
}

// ReturnMovements строит движения возврата товара на склад по строкам возврата.
func ReturnMovements(orderID string, lines []domain.RefundLine) []*domain.StockMovement {
	movements := make([]*domain.StockMovement, len(lines))
	for i := range lines {
		movements[i] = &domain.StockMovement{
			ID:        uuid.New().String(),
			ProductID: lines[i].ProductID,
			Delta:     int64(lines[i].Quantity),
			Reason:    domain.StockReasonRefundReturn,
			OrderID:   &orderID,
		}
	}
	return movements
}

// RemainingReturnMovements строит движения возврата позиций заказа,
// ещё не возвращённых предыдущими возвратами. refunded — уже возвращённое
// количество по product_id. Используется при полном возврате без строк.
func RemainingReturnMovements(orderID string, items []domain.OrderItem, refunded map[string]int32) []*domain.StockMovement {
	movements := make([]*domain.StockMovement, 0, len(items))
	for i := range items {
		quantity := items[i].Quantity - refunded[items[i].ProductID]
		if quantity <= 0 {
			continue
		}
		movements = append(movements, &domain.StockMovement{
			ID:        uuid.New().String(),
			ProductID: items[i].ProductID,
			Delta:     int64(quantity),
			Reason:    domain.StockReasonRefundReturn,
			OrderID:   &orderID,
		})
	}
	return movements
}

// WithLock выполняет fn под мьютексами указанных товаров.
// Используется сервисом заказов, чтобы включить в критическую секцию
// транзакцию создания заказа вместе с резервами.
func (l *Ledger) WithLock(productIDs []string, fn func() error) error {
	unlock := l.lockProducts(productIDs)
	defer unlock()
	return fn()
}

// Release возвращает резерв на склад при отмене заказа.
func (l *Ledger) Release(ctx context.Context, orderID string, items []domain.OrderItem) error {
	return l.repo.Append(ctx, ReleaseMovements(orderID, items))
}

// Adjust выполняет ручную корректировку остатка.
// Отрицательная дельта проверяется на достаточность остатка.
func (l *Ledger) Adjust(ctx context.Context, productID string, delta int64) (*domain.StockMovement, error) {
	movement := &domain.StockMovement{
		ID:        uuid.New().String(),
		ProductID: productID,
		Delta:     delta,
		Reason:    domain.StockReasonAdjust,
	}

	unlock := l.lockProducts([]string{productID})
	defer unlock()

	if err := l.repo.Append(ctx, []*domain.StockMovement{movement}); err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("product_id", productID).
		Int64("delta", delta).
		Msg("Остаток скорректирован")

	return movement, nil
}

// CurrentStock возвращает текущий остаток товара.
func (l *Ledger) CurrentStock(ctx context.Context, productID string) (int64, error) {
	return l.repo.CurrentStock(ctx, productID)
}

// Movements возвращает последние движения товара.
func (l *Ledger) Movements(ctx context.Context, productID string, limit int) ([]*domain.StockMovement, error) {
	return l.repo.ListMovements(ctx, productID, limit)
}
