package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/grocery-core/pkg/logger"
)

// MessageHandler — функция обработки сообщений.
// Получает context с headers (trace_id, order_id) и сообщение.
// Возврат ошибки означает, что сообщение обработать не удалось.
type MessageHandler func(ctx context.Context, msg *Message) error

// Consumer читает сообщения из одного топика в составе consumer group.
// Offset коммитится после обработки независимо от её результата:
// неудачные сообщения уходят в DLQ, топик не блокируется.
type Consumer struct {
	reader *kafka.Reader
	dlq    *Producer // nil — DLQ отключён
	topic  string
}

// NewConsumer создаёт Consumer для указанного топика и consumer group.
// Несколько инстансов с одним groupID распределяют партиции между собой.
func NewConsumer(cfg Config, topic string, groupID string) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("не указаны брокеры Kafka")
	}
	if topic == "" {
		return nil, fmt.Errorf("не указан топик")
	}
	if groupID == "" {
		return nil, fmt.Errorf("не указан group ID")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        250 * time.Millisecond,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})

	logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", topic).
		Str("group_id", groupID).
		Msg("Создан Kafka Consumer")

	return &Consumer{reader: reader, topic: topic}, nil
}

// SetDLQProducer включает отправку необработанных сообщений в DLQ.
func (c *Consumer) SetDLQProducer(p *Producer) {
	c.dlq = p
}

// Consume читает сообщения и передаёт их обработчику.
// Блокирует выполнение до отмены context.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	logger.Info().Str("topic", c.topic).Msg("Запуск чтения сообщений из Kafka")

	for {
		kafkaMsg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				logger.Info().Str("topic", c.topic).Msg("Остановка Kafka Consumer")
				return err
			}
			logger.Error().Err(err).Str("topic", c.topic).Msg("Ошибка чтения сообщения из Kafka")
			continue
		}

		msg := fromKafkaMessage(kafkaMsg)
		c.handle(ctx, msg, handler)

		// Offset коммитится всегда: ошибочные сообщения уже в DLQ
		if err := c.reader.CommitMessages(ctx, kafkaMsg); err != nil {
			logger.Error().Err(err).Str("topic", c.topic).Msg("Ошибка коммита offset")
		}
	}
}

// ConsumeWithRetry оборачивает обработчик повторами с экспоненциальной
// задержкой (100ms, 200ms, 400ms...). После исчерпания повторов сообщение
// уходит в DLQ, если он настроен.
func (c *Consumer) ConsumeWithRetry(ctx context.Context, handler MessageHandler, maxRetries int) error {
	return c.Consume(ctx, func(ctx context.Context, msg *Message) error {
		var lastErr error
		for attempt := 0; attempt <= maxRetries; attempt++ {
			if attempt > 0 {
				delay := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
				logger.Warn().
					Int("attempt", attempt).
					Str("key", string(msg.Key)).
					Dur("delay", delay).
					Msg("Повторная попытка обработки сообщения")

				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}

			if lastErr = handler(ctx, msg); lastErr == nil {
				return nil
			}
		}
		return fmt.Errorf("исчерпаны попытки обработки: %w", lastErr)
	})
}

// handle прогоняет сообщение через обработчик и отправляет его в DLQ
// при неудаче.
func (c *Consumer) handle(ctx context.Context, msg *Message, handler MessageHandler) {
	msgCtx := c.contextFromHeaders(ctx, msg)

	logger.Debug().
		Str("topic", msg.Topic).
		Str("key", string(msg.Key)).
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Str("trace_id", TraceIDFromContext(msgCtx)).
		Msg("Получено сообщение из Kafka")

	err := handler(msgCtx, msg)
	if err == nil {
		return
	}

	logger.Error().
		Err(err).
		Str("topic", msg.Topic).
		Str("key", string(msg.Key)).
		Int("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Msg("Ошибка обработки сообщения")

	if c.dlq == nil {
		return
	}
	if dlqErr := c.dlq.SendToDLQ(ctx, msg, err); dlqErr != nil {
		logger.Error().Err(dlqErr).Str("key", string(msg.Key)).Msg("Ошибка отправки в DLQ")
	}
}

// contextFromHeaders переносит trace_id и order_id из headers сообщения
// в context обработчика.
func (c *Consumer) contextFromHeaders(ctx context.Context, msg *Message) context.Context {
	if traceID, ok := msg.Headers[HeaderTraceID]; ok {
		ctx = ContextWithTraceID(ctx, traceID)
	}
	if orderID, ok := msg.Headers[HeaderOrderID]; ok {
		ctx = ContextWithOrderID(ctx, orderID)
	}
	return ctx
}

// Close закрывает reader. Вызывается при завершении работы приложения.
func (c *Consumer) Close() error {
	logger.Info().Str("topic", c.topic).Msg("Закрытие Kafka Consumer")

	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия consumer: %w", err)
	}
	return nil
}

// Lag возвращает текущее отставание Consumer от конца топика.
func (c *Consumer) Lag() int64 {
	return c.reader.Stats().Lag
}
