// Order Core — сервис жизненного цикла заказов интернет-магазина продуктов.
// REST API для заказов, корзин и склада, webhook платёжного провайдера,
// фоновые процессы отмены просроченных заказов и брошенных корзин.
// События для Notification сервиса уходят через outbox в Kafka.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"example.com/grocery-core/pkg/auth"
	"example.com/grocery-core/pkg/config"
	dbpkg "example.com/grocery-core/pkg/db"
	"example.com/grocery-core/pkg/healthcheck"
	"example.com/grocery-core/pkg/kafka"
	"example.com/grocery-core/pkg/logger"
	"example.com/grocery-core/pkg/metrics"
	"example.com/grocery-core/pkg/outbox"
	"example.com/grocery-core/pkg/tracing"
	"example.com/grocery-core/services/order/internal/client"
	"example.com/grocery-core/services/order/internal/discount"
	"example.com/grocery-core/services/order/internal/handler"
	"example.com/grocery-core/services/order/internal/middleware"
	"example.com/grocery-core/services/order/internal/repository"
	"example.com/grocery-core/services/order/internal/service"
	"example.com/grocery-core/services/order/internal/stock"
)

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
	log := logger.With().Str("service", "order-core").Logger()

	log.Info().
		Str("env", cfg.App.Env).
		Int("port", cfg.HTTP.Port).
		Msg("Запуск Order Core")

	// === Observability: Tracing ===

	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName:    "order-core",
		JaegerEndpoint: cfg.Jaeger.OTLPEndpoint(),
		Enabled:        cfg.Jaeger.Enabled,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Не удалось инициализировать tracing")
	}

	// === Подключение к зависимостям ===

	db, err := dbpkg.ConnectMySQL(cfg.MySQL, cfg.IsDevelopment())
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка подключения к MySQL")
	}
	log.Info().Msg("Подключение к MySQL установлено")

	rdb := dbpkg.ConnectRedis(cfg.Redis)
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия Redis")
		}
	}()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		pingCancel()
		log.Fatal().Err(err).Msg("Ошибка подключения к Redis")
	}
	pingCancel()
	log.Info().Msg("Подключение к Redis установлено")

	readinessCheck := healthcheck.All(
		healthcheck.MySQL(db),
		healthcheck.Redis(rdb),
	)

	// === Observability: Metrics ===

	var metricsServer *metrics.Server
	var metricsWg sync.WaitGroup
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(
			cfg.Metrics.Addr(),
			"order-core",
			metrics.WithReadinessCheck(readinessCheck),
		)
		metricsWg.Add(1)
		go func() {
			defer metricsWg.Done()
			if err := metricsServer.Start(); err != nil {
				log.Error().Err(err).Msg("Ошибка Metrics Server")
			}
		}()
	}

	// === Слои приложения ===

	orderRepo := repository.NewOrderRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	refundRepo := repository.NewRefundRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	stockRepo := repository.NewStockRepository(db)
	discountRepo := repository.NewDiscountRepository(db)
	cartRepo := repository.NewCartRepository(db)

	ledger := stock.NewLedger(stockRepo)
	discountEngine := discount.NewEngine(discountRepo, cfg.Checkout.PointValue)
	catalogClient := client.NewCatalogClient(cfg.Catalog)

	orderService := service.NewOrderService(
		orderRepo, historyRepo, ledger, discountEngine, catalogClient,
		cfg.Checkout.ShippingFee,
	)
	reconciler := service.NewPaymentReconciler(paymentRepo, orderRepo, rdb)
	refundProcessor := service.NewRefundProcessor(refundRepo, paymentRepo, orderRepo, discountRepo)
	cartDetector := service.NewAbandonedCartDetector(
		cartRepo,
		cfg.Checkout.AbandonedCartAfter,
		cfg.Checkout.AbandonedCartInterval,
	)
	sweeper := service.NewPendingSweeper(
		orderRepo,
		cfg.Checkout.PendingPaymentTimeout,
		cfg.Checkout.SweepInterval,
	)

	// === Аутентификация ===

	verifier, err := auth.NewVerifier(auth.Config{
		Secret: cfg.Auth.Secret,
		Issuer: cfg.Auth.Issuer,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка создания JWT verifier")
	}
	authMW := middleware.NewAuthMiddleware(verifier)
	rateLimitMW := middleware.NewRateLimitMiddleware(middleware.RateLimitConfig{Redis: rdb})

	// Контекст фоновых процессов — отменяется при shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var workersWg sync.WaitGroup

	// === Kafka + Outbox Worker ===

	var kafkaProducer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("Инициализация Kafka")

		if err := kafka.EnsureTopics(cfg.Kafka.Brokers, kafka.DefaultTopics()); err != nil {
			log.Warn().Err(err).Msg("Не удалось создать топики (возможно Kafka недоступна)")
		}

		kafkaProducer, err = kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers})
		if err != nil {
			log.Fatal().Err(err).Msg("Ошибка создания Kafka Producer")
		}

		// Отдельный worker на каждый тип агрегата: события заказов и корзин
		// не блокируют друг друга при проблемах с топиком
		for _, aggregateType := range []string{outbox.AggregateTypeOrder, outbox.AggregateTypeCart} {
			worker := outbox.NewOutboxWorker(
				outbox.NewOutboxRepository(db, aggregateType),
				kafkaProducer,
				outbox.DefaultWorkerConfig(),
				aggregateType,
			)
			workersWg.Add(1)
			go func() {
				defer workersWg.Done()
				defer func() {
					if r := recover(); r != nil {
						log.Error().Interface("panic", r).Msg("Паника в Outbox Worker")
					}
				}()
				worker.Run(ctx)
			}()
		}
		log.Info().Msg("Outbox Workers запущены")
	} else {
		log.Warn().Msg("Kafka не настроена — события останутся в outbox до перезапуска с Kafka")
	}

	// === Фоновые процессы ===

	workersWg.Add(1)
	go func() {
		defer workersWg.Done()
		sweeper.Run(ctx)
	}()

	workersWg.Add(1)
	go func() {
		defer workersWg.Done()
		cartDetector.Run(ctx)
	}()

	// === HTTP сервер ===

	router := handler.NewRouter(handler.RouterConfig{
		Orders:         orderService,
		Refunds:        refundProcessor,
		Carts:          cartDetector,
		Reconciler:     reconciler,
		Ledger:         ledger,
		WebhookSecret:  cfg.Webhook.Secret,
		AuthMW:         authMW,
		RateLimitMW:    rateLimitMW,
		ReadinessCheck: readinessCheck,
		Debug:          cfg.IsDevelopment(),
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router.Engine(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP сервер запущен")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Ошибка HTTP сервера")
		}
	}()

	// Ожидаем сигнал завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Получен сигнал завершения, останавливаем сервер...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Ошибка остановки HTTP сервера")
	}

	// Останавливаем фоновые процессы и ждём их завершения
	cancel()
	workersWg.Wait()

	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия Kafka Producer")
		}
	}

	if sqlDB, err := db.DB(); err == nil && sqlDB != nil {
		if err := sqlDB.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия MySQL")
		}
	}

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

	log.Info().Msg("Order Core остановлен")
}
