// Notification Service — сервис уведомлений пользователей.
// Читает payments.results и carts.abandoned из Kafka и доставляет
// уведомления. Ошибочные сообщения уходят в DLQ.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"example.com/grocery-core/pkg/config"
	"example.com/grocery-core/pkg/kafka"
	"example.com/grocery-core/pkg/logger"
	"example.com/grocery-core/pkg/metrics"
	"example.com/grocery-core/pkg/tracing"
	"example.com/grocery-core/services/notification/internal/notifier"
)

// maxHandlerRetries — количество повторов обработки сообщения до DLQ.
const maxHandlerRetries = 3

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Pretty: cfg.App.LogPretty,
	})
	log := logger.With().Str("service", "notification-service").Logger()

	log.Info().
		Str("env", cfg.App.Env).
		Strs("brokers", cfg.Kafka.Brokers).
		Msg("Запуск Notification Service")

	if len(cfg.Kafka.Brokers) == 0 {
		log.Fatal().Msg("Kafka не настроена — Notification Service без неё бесполезен")
	}

	// === Observability: Tracing ===

	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName:    "notification-service",
		JaegerEndpoint: cfg.Jaeger.OTLPEndpoint(),
		Enabled:        cfg.Jaeger.Enabled,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Не удалось инициализировать tracing")
	}

	// === Observability: Metrics ===

	var metricsServer *metrics.Server
	var metricsWg sync.WaitGroup
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Addr(), "notification-service")
		metricsWg.Add(1)
		go func() {
			defer metricsWg.Done()
			if err := metricsServer.Start(); err != nil {
				log.Error().Err(err).Msg("Ошибка Metrics Server")
			}
		}()
	}

	// === Kafka ===

	if err := kafka.EnsureTopics(cfg.Kafka.Brokers, kafka.DefaultTopics()); err != nil {
		log.Warn().Err(err).Msg("Не удалось создать топики (возможно Kafka недоступна)")
	}

	// Producer нужен только для отправки необработанных сообщений в DLQ
	dlqProducer, err := kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers})
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка создания Kafka Producer")
	}

	paymentsConsumer, err := kafka.NewConsumer(
		kafka.Config{Brokers: cfg.Kafka.Brokers},
		kafka.TopicPaymentResults,
		"notification-service-payments",
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка создания Consumer payments.results")
	}
	paymentsConsumer.SetDLQProducer(dlqProducer)

	cartsConsumer, err := kafka.NewConsumer(
		kafka.Config{Brokers: cfg.Kafka.Brokers},
		kafka.TopicCartsAbandoned,
		"notification-service-carts",
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка создания Consumer carts.abandoned")
	}
	cartsConsumer.SetDLQProducer(dlqProducer)

	// === Обработка событий ===

	n := notifier.NewNotifier(notifier.LogSender{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var workersWg sync.WaitGroup

	workersWg.Add(1)
	go func() {
		defer workersWg.Done()
		log.Info().Msg("Запуск обработки payments.results")
		if err := paymentsConsumer.ConsumeWithRetry(ctx, n.HandlePaymentResult, maxHandlerRetries); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Ошибка обработки payments.results")
		}
	}()

	workersWg.Add(1)
	go func() {
		defer workersWg.Done()
		log.Info().Msg("Запуск обработки carts.abandoned")
		if err := cartsConsumer.ConsumeWithRetry(ctx, n.HandleCartAbandoned, maxHandlerRetries); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Ошибка обработки carts.abandoned")
		}
	}()

	// Ожидаем сигнал завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Получен сигнал завершения, останавливаем сервис...")
	cancel()
	workersWg.Wait()

	if err := paymentsConsumer.Close(); err != nil {
		log.Error().Err(err).Msg("Ошибка закрытия Consumer payments.results")
	}
	if err := cartsConsumer.Close(); err != nil {
		log.Error().Err(err).Msg("Ошибка закрытия Consumer carts.abandoned")
	}
	if err := dlqProducer.Close(); err != nil {
		log.Error().Err(err).Msg("Ошибка закрытия Kafka Producer")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Metrics Server")
		}
		metricsWg.Wait()
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Tracing")
		}
	}

	log.Info().Msg("Notification Service остановлен")
}
