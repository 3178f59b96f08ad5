package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"example.com/grocery-core/pkg/metrics"
	"example.com/grocery-core/services/order/internal/middleware"
	"example.com/grocery-core/services/order/internal/service"
	"example.com/grocery-core/services/order/internal/stock"
)

// ReadinessChecker — функция проверки готовности сервиса.
type ReadinessChecker func(ctx context.Context) error

// Router — конфигурация HTTP роутера Order Core.
type Router struct {
	engine         *gin.Engine
	orders         service.OrderService
	refunds        service.RefundProcessor
	carts          service.CartService
	reconciler     service.PaymentReconciler
	ledger         *stock.Ledger
	webhookSecret  string
	authMW         *middleware.AuthMiddleware
	rateLimitMW    *middleware.RateLimitMiddleware
	readinessCheck ReadinessChecker
}

// RouterConfig — параметры для создания роутера.
type RouterConfig struct {
	Orders         service.OrderService
	Refunds        service.RefundProcessor
	Carts          service.CartService
	Reconciler     service.PaymentReconciler
	Ledger         *stock.Ledger
	WebhookSecret  string
	AuthMW         *middleware.AuthMiddleware
	RateLimitMW    *middleware.RateLimitMiddleware
	ReadinessCheck ReadinessChecker
	Debug          bool // режим отладки Gin
}

// NewRouter создаёт и настраивает HTTP роутер.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	engine.Use(middleware.SecurityHeaders())

	// OpenTelemetry tracing — spans для Jaeger
	engine.Use(otelgin.Middleware("order-core"))

	// Prometheus метрики — requests_total, request_duration_seconds
	engine.Use(metrics.GinMetricsMiddleware("order-core"))

	r := &Router{
		engine:         engine,
		orders:         cfg.Orders,
		refunds:        cfg.Refunds,
		carts:          cfg.Carts,
		reconciler:     cfg.Reconciler,
		ledger:         cfg.Ledger,
		webhookSecret:  cfg.WebhookSecret,
		authMW:         cfg.AuthMW,
		rateLimitMW:    cfg.RateLimitMW,
		readinessCheck: cfg.ReadinessCheck,
	}

	r.setupRoutes()
	return r
}

// setupRoutes настраивает все маршруты API.
func (r *Router) setupRoutes() {
	// Health endpoints (без rate limiting и auth)
	r.engine.GET("/healthz", r.livenessCheck)
	r.engine.GET("/readyz", r.readinessCheckHandler)

	// Webhook платёжного провайдера: аутентификация подписью тела,
	// JWT middleware здесь не применяется
	webhookHandler := NewWebhookHandler(r.reconciler, r.webhookSecret)
	r.engine.POST("/webhooks/payment", webhookHandler.HandlePayment)

	v1 := r.engine.Group("/api/v1")
	if r.rateLimitMW != nil {
		v1.Use(r.rateLimitMW.Handle())
	}
	if r.authMW != nil {
		v1.Use(r.authMW.Handle())
	}

	// === Order routes ===
	orderHandler := NewOrderHandler(r.orders, r.refunds)
	orders := v1.Group("/orders")
	{
		orders.POST("", orderHandler.CreateOrder)
		orders.GET("", orderHandler.ListOrders)
		orders.GET("/:id", orderHandler.GetOrder)
		orders.GET("/:id/history", orderHandler.GetHistory)
		orders.GET("/:id/refunds", orderHandler.ListRefunds)
		orders.DELETE("/:id", orderHandler.CancelOrder)
	}

	// === Cart routes ===
	cartHandler := NewCartHandler(r.carts)
	cart := v1.Group("/cart")
	{
		cart.PUT("", cartHandler.UpdateCart)
		cart.GET("", cartHandler.GetCart)
	}

	// === Stock routes ===
	stockHandler := NewStockHandler(r.ledger)
	stockGroup := v1.Group("/stock")
	{
		stockGroup.GET("/:product_id", stockHandler.GetStock)
	}

	// === Административные операции ===
	if r.authMW != nil {
		admin := v1.Group("")
		admin.Use(r.authMW.RequireAdmin())
		{
			admin.POST("/orders/:id/transition", orderHandler.Transition)
			admin.POST("/orders/:id/refunds", orderHandler.CreateRefund)
			admin.POST("/stock/adjust", stockHandler.Adjust)
		}
	} else {
		orders.POST("/:id/transition", orderHandler.Transition)
		orders.POST("/:id/refunds", orderHandler.CreateRefund)
		stockGroup.POST("/adjust", stockHandler.Adjust)
	}
}

// Engine возвращает Gin engine для запуска сервера.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// livenessCheck — liveness probe для Kubernetes.
func (r *Router) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// readinessCheckHandler — readiness probe для Kubernetes.
func (r *Router) readinessCheckHandler(c *gin.Context) {
	if r.readinessCheck == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := r.readinessCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
