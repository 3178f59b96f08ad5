package outbox

import (
	"context"
	"time"

	"example.com/grocery-core/pkg/kafka"
	"example.com/grocery-core/pkg/logger"
	"example.com/grocery-core/pkg/metrics"
)

// KafkaProducer — интерфейс для отправки сообщений в Kafka.
// Позволяет замокать kafka.Producer в unit-тестах (Dependency Inversion).
type KafkaProducer interface {
	SendMessage(ctx context.Context, msg *kafka.Message) error
}

// WorkerConfig — настройки Outbox Worker.
type WorkerConfig struct {
	// PollInterval — интервал между опросами таблицы outbox.
	PollInterval time.Duration

	// BatchSize — количество записей за один запрос.
	BatchSize int

	// MaxRetries — максимальное количество попыток отправки.
	// После превышения запись выводится из очереди как dead letter.
	MaxRetries int
}

// DefaultWorkerConfig возвращает конфигурацию по умолчанию.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval: 1 * time.Second,
		BatchSize:    100,
		MaxRetries:   5,
	}
}

// cleanupInterval — интервал очистки обработанных записей outbox.
const cleanupInterval = 1 * time.Hour

// cleanupRetention — срок хранения обработанных записей outbox.
const cleanupRetention = 7 * 24 * time.Hour

// OutboxWorker читает записи из outbox и доставляет их в Kafka.
// Запись помечается обработанной только после успешной отправки:
// гарантия at-least-once, дедупликация на стороне потребителя.
type OutboxWorker struct {
	repo      OutboxRepository
	producer  KafkaProducer
	cfg       WorkerConfig
	aggregate string // Тип агрегата для логов и метрик (order / cart)
}

// NewOutboxWorker создаёт новый Outbox Worker.
// aggregate — тип агрегата, чьи события обслуживает worker ("order" / "cart").
func NewOutboxWorker(repo OutboxRepository, producer KafkaProducer, cfg WorkerConfig, aggregate string) *OutboxWorker {
	return &OutboxWorker{
		repo:      repo,
		producer:  producer,
		cfg:       cfg,
		aggregate: aggregate,
	}
}

// Run запускает Worker. Блокирует выполнение до отмены контекста.
func (w *OutboxWorker) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info().
		Str("aggregate", w.aggregate).
		Dur("poll_interval", w.cfg.PollInterval).
		Int("batch_size", w.cfg.BatchSize).
		Msg("Запуск Outbox Worker")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("aggregate", w.aggregate).Msg("Остановка Outbox Worker")
			return
		case <-ticker.C:
			w.drainBatch(ctx)
		case <-cleanupTicker.C:
			w.cleanupProcessed(ctx)
		}
	}
}

// drainBatch обрабатывает пачку необработанных записей.
func (w *OutboxWorker) drainBatch(ctx context.Context) {
	log := logger.FromContext(ctx)

	records, err := w.repo.GetUnprocessed(ctx, w.cfg.BatchSize)
	if err != nil {
		log.Error().Err(err).Str("aggregate", w.aggregate).Msg("Ошибка чтения outbox")
		return
	}
	if len(records) == 0 {
		return
	}

	log.Debug().Int("count", len(records)).Str("aggregate", w.aggregate).Msg("Обработка записей outbox")

	for _, record := range records {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if record.RetryCount >= w.cfg.MaxRetries {
			w.deadLetter(ctx, record)
			continue
		}

		w.publish(ctx, record)
	}
}

// deadLetter выводит запись из очереди после исчерпания попыток.
// Запись остаётся в таблице с last_error для ручного разбора.
func (w *OutboxWorker) deadLetter(ctx context.Context, record *Outbox) {
	log := logger.FromContext(ctx)
	log.Warn().
		Str("outbox_id", record.ID).
		Str("event_type", record.EventType).
		Str("aggregate_id", record.AggregateID).
		Int("retry_count", record.RetryCount).
		Msg("Dead letter: превышен лимит попыток, запись выведена из очереди")

	if err := w.repo.MarkProcessed(ctx, record.ID); err != nil {
		log.Error().Err(err).Str("outbox_id", record.ID).Msg("Ошибка пометки dead letter")
		return
	}
	metrics.OutboxDeadLetteredTotal.WithLabelValues(w.aggregate).Inc()
}

// publish отправляет запись в Kafka и помечает её обработанной.
func (w *OutboxWorker) publish(ctx context.Context, record *Outbox) {
	log := logger.FromContext(ctx)

	if err := w.producer.SendMessage(ctx, record.toMessage()); err != nil {
		log.Error().
			Err(err).
			Str("outbox_id", record.ID).
			Str("topic", record.Topic).
			Msg("Ошибка отправки в Kafka")

		if markErr := w.repo.MarkFailed(ctx, record.ID, err); markErr != nil {
			log.Error().Err(markErr).Str("outbox_id", record.ID).Msg("Ошибка пометки outbox как failed")
		}
		return
	}

	if err := w.repo.MarkProcessed(ctx, record.ID); err != nil {
		log.Error().
			Err(err).
			Str("outbox_id", record.ID).
			Msg("Ошибка пометки outbox как обработанной")
		return
	}

	metrics.OutboxPublishedTotal.WithLabelValues(w.aggregate).Inc()
	log.Debug().
		Str("outbox_id", record.ID).
		Str("topic", record.Topic).
		Str("event_type", record.EventType).
		Msg("Сообщение отправлено в Kafka")
}

// cleanupProcessed удаляет обработанные записи outbox старше срока хранения.
func (w *OutboxWorker) cleanupProcessed(ctx context.Context) {
	log := logger.FromContext(ctx)

	deleted, err := w.repo.DeleteProcessedBefore(ctx, time.Now().Add(-cleanupRetention))
	if err != nil {
		log.Error().Err(err).Str("aggregate", w.aggregate).Msg("Ошибка очистки outbox")
		return
	}
	if deleted > 0 {
		log.Info().Int64("deleted", deleted).Str("aggregate", w.aggregate).Msg("Очистка обработанных записей outbox")
	}
}

// ProcessSingle обрабатывает одну запись outbox (для тестирования).
func (w *OutboxWorker) ProcessSingle(ctx context.Context, record *Outbox) error {
	if err := w.producer.SendMessage(ctx, record.toMessage()); err != nil {
		_ = w.repo.MarkFailed(ctx, record.ID, err)
		return err
	}
	return w.repo.MarkProcessed(ctx, record.ID)
}

// toMessage собирает Kafka сообщение из записи outbox.
// Ключ — aggregate_id: события одного заказа попадают в одну партицию
// и сохраняют порядок.
func (o *Outbox) toMessage() *kafka.Message {
	return &kafka.Message{
		Topic:   o.Topic,
		Key:     []byte(o.MessageKey),
		Value:   o.Payload,
		Headers: o.Headers,
	}
}
