package kafka

import (
	"fmt"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"

	"example.com/grocery-core/pkg/logger"
)

// Топики исходящих событий Order Core.
const (
	// TopicPaymentResults — результаты платежей (успех/отказ) для Notification сервиса.
	TopicPaymentResults = "payments.results"

	// TopicCartsAbandoned — брошенные корзины для одноразового напоминания.
	TopicCartsAbandoned = "carts.abandoned"

	// TopicDLQ — Dead Letter Queue для необработанных сообщений.
	TopicDLQ = "dlq.events"
)

// DefaultTopics возвращает список топиков Order Core.
func DefaultTopics() []string {
	return []string{TopicPaymentResults, TopicCartsAbandoned, TopicDLQ}
}

// EnsureTopics создаёт топики, если они не существуют.
// Используется при старте сервисов в development — в production
// топики создаёт инфраструктура.
func EnsureTopics(brokers []string, topics []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("не указаны брокеры Kafka")
	}

	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("ошибка подключения к Kafka: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("ошибка получения контроллера Kafka: %w", err)
	}

	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("ошибка подключения к контроллеру Kafka: %w", err)
	}
	defer controllerConn.Close()

	configs := make([]kafka.TopicConfig, len(topics))
	for i, topic := range topics {
		configs[i] = kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     3,
			ReplicationFactor: 1,
		}
	}

	// CreateTopics идемпотентен: существующие топики не пересоздаются
	if err := controllerConn.CreateTopics(configs...); err != nil {
		return fmt.Errorf("ошибка создания топиков: %w", err)
	}

	logger.Info().Strs("topics", topics).Msg("Топики Kafka проверены")
	return nil
}
