package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/grocery-core/pkg/kafka"
)

// =============================================================================
// Моки для тестов Outbox Worker
// =============================================================================

type mockOutboxRepository struct {
	mock.Mock
}

func (m *mockOutboxRepository) Create(ctx context.Context, o *Outbox) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *mockOutboxRepository) GetUnprocessed(ctx context.Context, limit int) ([]*Outbox, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Outbox), args.Error(1)
}

func (m *mockOutboxRepository) MarkProcessed(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockOutboxRepository) MarkFailed(ctx context.Context, id string, err error) error {
	args := m.Called(ctx, id, err)
	return args.Error(0)
}

func (m *mockOutboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type mockKafkaProducer struct {
	mock.Mock
}

func (m *mockKafkaProducer) SendMessage(ctx context.Context, msg *kafka.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func newTestWorker(repo OutboxRepository, producer KafkaProducer) *OutboxWorker {
	cfg := WorkerConfig{
		PollInterval: 10 * time.Millisecond,
		BatchSize:    10,
		MaxRetries:   3,
	}
	return NewOutboxWorker(repo, producer, cfg, AggregateTypeOrder)
}

func orderEvent(id string) *Outbox {
	return &Outbox{
		ID:            id,
		AggregateType: AggregateTypeOrder,
		AggregateID:   "order-456",
		EventType:     EventTypePaymentSucceeded,
		Topic:         kafka.TopicPaymentResults,
		MessageKey:    "order-456",
		Payload:       []byte(`{"status":"SUCCEEDED"}`),
	}
}

// =============================================================================
// Тесты OutboxWorker
// =============================================================================

func TestOutboxWorker_ProcessSingle(t *testing.T) {
	ctx := context.Background()

	t.Run("успешная отправка помечает запись обработанной", func(t *testing.T) {
		outboxRepo := new(mockOutboxRepository)
		producer := new(mockKafkaProducer)
		worker := newTestWorker(outboxRepo, producer)

		record := orderEvent("outbox-123")
		record.Headers = map[string]string{"trace_id": "trace-789"}

		var sent *kafka.Message
		producer.On("SendMessage", ctx, mock.AnythingOfType("*kafka.Message")).
			Run(func(args mock.Arguments) { sent = args.Get(1).(*kafka.Message) }).
			Return(nil)
		outboxRepo.On("MarkProcessed", ctx, "outbox-123").Return(nil)

		err := worker.ProcessSingle(ctx, record)

		require.NoError(t, err)
		producer.AssertExpectations(t)
		outboxRepo.AssertExpectations(t)

		// Ключ сообщения — aggregate_id: события одного заказа в одной партиции
		require.NotNil(t, sent)
		assert.Equal(t, kafka.TopicPaymentResults, sent.Topic)
		assert.Equal(t, []byte("order-456"), sent.Key)
	})

	t.Run("ошибка отправки помечает запись как failed", func(t *testing.T) {
		outboxRepo := new(mockOutboxRepository)
		producer := new(mockKafkaProducer)
		worker := newTestWorker(outboxRepo, producer)

		sendErr := errors.New("kafka unavailable")
		producer.On("SendMessage", ctx, mock.AnythingOfType("*kafka.Message")).Return(sendErr)
		outboxRepo.On("MarkFailed", ctx, "outbox-123", sendErr).Return(nil)

		err := worker.ProcessSingle(ctx, orderEvent("outbox-123"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "kafka unavailable")
		outboxRepo.AssertExpectations(t)
		// Необработанная запись не выводится из очереди
		outboxRepo.AssertNotCalled(t, "MarkProcessed")
	})
}

func TestOutboxWorker_DrainBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("пачка отправляется целиком", func(t *testing.T) {
		outboxRepo := new(mockOutboxRepository)
		producer := new(mockKafkaProducer)
		worker := newTestWorker(outboxRepo, producer)

		records := []*Outbox{orderEvent("outbox-1"), orderEvent("outbox-2")}
		outboxRepo.On("GetUnprocessed", ctx, 10).Return(records, nil)
		producer.On("SendMessage", ctx, mock.AnythingOfType("*kafka.Message")).Return(nil).Times(2)
		outboxRepo.On("MarkProcessed", ctx, "outbox-1").Return(nil)
		outboxRepo.On("MarkProcessed", ctx, "outbox-2").Return(nil)

		worker.drainBatch(ctx)

		outboxRepo.AssertExpectations(t)
		producer.AssertExpectations(t)
	})

	t.Run("запись с исчерпанными попытками уходит в dead letter", func(t *testing.T) {
		outboxRepo := new(mockOutboxRepository)
		producer := new(mockKafkaProducer)
		worker := newTestWorker(outboxRepo, producer)

		dead := orderEvent("outbox-dead")
		dead.RetryCount = 5 // >= MaxRetries (3)

		outboxRepo.On("GetUnprocessed", ctx, 10).Return([]*Outbox{dead}, nil)
		outboxRepo.On("MarkProcessed", ctx, "outbox-dead").Return(nil)

		worker.drainBatch(ctx)

		outboxRepo.AssertExpectations(t)
		// Dead letter не отправляется в Kafka
		producer.AssertNotCalled(t, "SendMessage")
	})

	t.Run("пустой outbox ничего не отправляет", func(t *testing.T) {
		outboxRepo := new(mockOutboxRepository)
		producer := new(mockKafkaProducer)
		worker := newTestWorker(outboxRepo, producer)

		outboxRepo.On("GetUnprocessed", ctx, mock.AnythingOfType("int")).Return([]*Outbox{}, nil)

		worker.drainBatch(ctx)

		outboxRepo.AssertExpectations(t)
		producer.AssertNotCalled(t, "SendMessage")
	})
}

func TestOutboxWorker_Run_ContextCancel(t *testing.T) {
	outboxRepo := new(mockOutboxRepository)
	producer := new(mockKafkaProducer)
	worker := newTestWorker(outboxRepo, producer)

	ctx, cancel := context.WithCancel(context.Background())
	outboxRepo.On("GetUnprocessed", mock.Anything, 10).Return([]*Outbox{}, nil)

	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
		// Worker остановился
	case <-time.After(time.Second):
		t.Fatal("Worker не остановился после отмены context")
	}
}

func TestDefaultWorkerConfig(t *testing.T) {
	cfg := DefaultWorkerConfig()

	assert.Equal(t, 1*time.Second, cfg.PollInterval)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 5, cfg.MaxRetries)
}
