package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/grocery-core/pkg/kafka"
)

// recordingSender запоминает отправленные уведомления.
type recordingSender struct {
	userIDs  []string
	subjects []string
	bodies   []string
	err      error
}

func (s *recordingSender) Send(_ context.Context, userID, subject, body string) error {
	if s.err != nil {
		return s.err
	}
	s.userIDs = append(s.userIDs, userID)
	s.subjects = append(s.subjects, subject)
	s.bodies = append(s.bodies, body)
	return nil
}

// TestNotifier_HandlePaymentResult тестирует уведомления о платежах.
func TestNotifier_HandlePaymentResult(t *testing.T) {
	t.Run("успешный платёж", func(t *testing.T) {
		sender := &recordingSender{}
		n := NewNotifier(sender)

		err := n.HandlePaymentResult(context.Background(), &kafka.Message{
			Value: []byte(`{"order_id":"order-1","user_id":"user-1","amount":17980,"currency":"RUB","succeeded":true}`),
		})

		require.NoError(t, err)
		require.Len(t, sender.subjects, 1)
		assert.Equal(t, "user-1", sender.userIDs[0])
		assert.Equal(t, "Заказ оплачен", sender.subjects[0])
		assert.Contains(t, sender.bodies[0], "order-1")
	})

	t.Run("отклонённый платёж", func(t *testing.T) {
		sender := &recordingSender{}
		n := NewNotifier(sender)

		err := n.HandlePaymentResult(context.Background(), &kafka.Message{
			Value: []byte(`{"order_id":"order-1","user_id":"user-1","succeeded":false,"failure_reason":"недостаточно средств"}`),
		})

		require.NoError(t, err)
		require.Len(t, sender.subjects, 1)
		assert.Equal(t, "Оплата не прошла", sender.subjects[0])
		assert.Contains(t, sender.bodies[0], "недостаточно средств")
	})

	t.Run("битый JSON — ошибка для DLQ", func(t *testing.T) {
		n := NewNotifier(&recordingSender{})

		err := n.HandlePaymentResult(context.Background(), &kafka.Message{Value: []byte(`{broken`)})

		assert.Error(t, err)
	})

	t.Run("без user_id — ошибка для DLQ", func(t *testing.T) {
		n := NewNotifier(&recordingSender{})

		err := n.HandlePaymentResult(context.Background(), &kafka.Message{
			Value: []byte(`{"order_id":"order-1","succeeded":true}`),
		})

		assert.Error(t, err)
	})

	t.Run("ошибка отправки прокидывается", func(t *testing.T) {
		n := NewNotifier(&recordingSender{err: errors.New("SMTP недоступен")})

		err := n.HandlePaymentResult(context.Background(), &kafka.Message{
			Value: []byte(`{"order_id":"order-1","user_id":"user-1","succeeded":true}`),
		})

		assert.Error(t, err)
	})
}

// TestNotifier_HandleCartAbandoned тестирует напоминания о корзинах.
func TestNotifier_HandleCartAbandoned(t *testing.T) {
	sender := &recordingSender{}
	n := NewNotifier(sender)

	err := n.HandleCartAbandoned(context.Background(), &kafka.Message{
		Value: []byte(`{"cart_id":"cart-1","user_id":"user-1","item_count":3}`),
	})

	require.NoError(t, err)
	require.Len(t, sender.subjects, 1)
	assert.Equal(t, "Вы забыли корзину", sender.subjects[0])
	assert.Contains(t, sender.bodies[0], "3")
}
