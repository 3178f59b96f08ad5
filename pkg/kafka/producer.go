package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/grocery-core/pkg/logger"
)

// Producer отправляет сообщения в Kafka.
// Пишет синхронно с подтверждением от лидера партиции: для событий
// заказов потеря при отправке хуже лишней задержки.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer создаёт новый Producer.
func NewProducer(cfg Config) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("не указаны брокеры Kafka")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	logger.Info().
		Strs("brokers", cfg.Brokers).
		Msg("Создан Kafka Producer")

	return &Producer{writer: writer}, nil
}

// SendMessage отправляет подготовленный Message.
// Используется Outbox Worker: payload и headers уже сохранены вместе
// с записью outbox, здесь только дополняются trace context и timestamp.
func (p *Producer) SendMessage(ctx context.Context, msg *Message) error {
	p.enrichHeaders(ctx, msg)

	if err := p.writer.WriteMessages(ctx, msg.toKafkaMessage()); err != nil {
		logger.Error().
			Err(err).
			Str("topic", msg.Topic).
			Str("key", string(msg.Key)).
			Msg("Ошибка отправки сообщения в Kafka")
		return fmt.Errorf("ошибка отправки в Kafka: %w", err)
	}

	logger.Debug().
		Str("topic", msg.Topic).
		Str("key", string(msg.Key)).
		Msg("Сообщение отправлено в Kafka")
	return nil
}

// SendToDLQ отправляет сообщение в Dead Letter Queue.
// Исходные headers сохраняются, текст ошибки и исходный топик добавляются
// как dlq_* headers для ручного разбора.
func (p *Producer) SendToDLQ(ctx context.Context, originalMsg *Message, processingError error) error {
	headers := make(map[string]string, len(originalMsg.Headers)+3)
	for k, v := range originalMsg.Headers {
		headers[k] = v
	}
	headers["dlq_error"] = processingError.Error()
	headers["dlq_original_topic"] = originalMsg.Topic
	headers["dlq_timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)

	return p.SendMessage(ctx, &Message{
		Topic:   TopicDLQ,
		Key:     originalMsg.Key,
		Value:   originalMsg.Value,
		Headers: headers,
		Time:    time.Now(),
	})
}

// enrichHeaders дополняет headers сообщения значениями из context.
// Уже заданные headers не перезаписываются.
func (p *Producer) enrichHeaders(ctx context.Context, msg *Message) {
	if msg.Headers == nil {
		msg.Headers = make(map[string]string, 3)
	}
	if _, ok := msg.Headers[HeaderTraceID]; !ok {
		if traceID := TraceIDFromContext(ctx); traceID != "" {
			msg.Headers[HeaderTraceID] = traceID
		}
	}
	if _, ok := msg.Headers[HeaderOrderID]; !ok {
		if orderID := OrderIDFromContext(ctx); orderID != "" {
			msg.Headers[HeaderOrderID] = orderID
		}
	}
	if _, ok := msg.Headers[HeaderTimestamp]; !ok {
		msg.Headers[HeaderTimestamp] = time.Now().UTC().Format(time.RFC3339Nano)
	}
}

// Close закрывает соединение с Kafka.
func (p *Producer) Close() error {
	logger.Info().Msg("Закрытие Kafka Producer")

	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия producer: %w", err)
	}
	return nil
}
