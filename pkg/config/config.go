// Package config предоставляет загрузку конфигурации из переменных окружения.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config содержит полную конфигурацию приложения.
type Config struct {
	App      AppConfig
	HTTP     HTTPConfig
	MySQL    MySQLConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Catalog  CatalogConfig
	Checkout CheckoutConfig
	Webhook  WebhookConfig
	Jaeger   JaegerConfig
	Metrics  MetricsConfig
}

// AppConfig содержит общие настройки приложения.
type AppConfig struct {
	Name      string `env:"APP_NAME" envDefault:"grocery-core"`
	Env       string `env:"APP_ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// HTTPConfig содержит настройки HTTP сервера Order Core.
type HTTPConfig struct {
	Port            int           `env:"HTTP_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Addr возвращает адрес для HTTP сервера.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// MySQLConfig содержит настройки подключения к MySQL.
type MySQLConfig struct {
	Host            string        `env:"MYSQL_HOST" envDefault:"localhost"`
	Port            int           `env:"MYSQL_PORT" envDefault:"3306"`
	User            string        `env:"MYSQL_USER" envDefault:"root"`
	Password        string        `env:"MYSQL_PASSWORD" envDefault:"root"`
	Database        string        `env:"MYSQL_DATABASE" envDefault:"grocery_core"`
	MaxOpenConns    int           `env:"MYSQL_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"MYSQL_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"MYSQL_CONN_MAX_LIFETIME" envDefault:"5m"`
}

// DSN возвращает строку подключения к MySQL.
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// RedisConfig содержит настройки подключения к Redis.
type RedisConfig struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// Addr возвращает адрес Redis сервера.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig содержит настройки подключения к Kafka.
type KafkaConfig struct {
	Brokers       []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	ConsumerGroup string   `env:"KAFKA_CONSUMER_GROUP" envDefault:"grocery-core"`
}

// AuthConfig содержит настройки проверки JWT токенов.
// Order Core только валидирует токены — выдаёт их внешний Identity сервис.
type AuthConfig struct {
	Secret string `env:"AUTH_JWT_SECRET,required"`              // Секрет подписи HMAC (общий с Identity сервисом)
	Issuer string `env:"AUTH_JWT_ISSUER" envDefault:"identity"` // Ожидаемый издатель токена
}

// CatalogConfig содержит настройки клиента Catalog сервиса.
// Catalog — внешний read-only коллаборатор (цены, существование товаров).
type CatalogConfig struct {
	BaseURL string        `env:"CATALOG_BASE_URL" envDefault:"http://localhost:8090"`
	Timeout time.Duration `env:"CATALOG_TIMEOUT" envDefault:"3s"`
}

// CheckoutConfig содержит бизнес-настройки оформления заказа.
type CheckoutConfig struct {
	// PointValue — стоимость одного бонусного балла в минимальных
	// денежных единицах (копейках/центах).
	PointValue int64 `env:"CHECKOUT_POINT_VALUE" envDefault:"100"`

	// ShippingFee — фиксированная стоимость доставки в минимальных единицах.
	ShippingFee int64 `env:"CHECKOUT_SHIPPING_FEE" envDefault:"0"`

	// PendingPaymentTimeout — окно ожидания подтверждения оплаты.
	// PENDING заказы старше окна отменяются фоновым процессом.
	PendingPaymentTimeout time.Duration `env:"CHECKOUT_PENDING_TIMEOUT" envDefault:"30m"`

	// SweepInterval — интервал между проходами фоновой отмены.
	SweepInterval time.Duration `env:"CHECKOUT_SWEEP_INTERVAL" envDefault:"1m"`

	// AbandonedCartAfter — порог неактивности корзины, после которого
	// она считается брошенной.
	AbandonedCartAfter time.Duration `env:"CHECKOUT_ABANDONED_CART_AFTER" envDefault:"24h"`

	// AbandonedCartInterval — интервал между проходами детектора брошенных корзин.
	AbandonedCartInterval time.Duration `env:"CHECKOUT_ABANDONED_CART_INTERVAL" envDefault:"15m"`
}

// WebhookConfig содержит настройки входящего webhook платёжного провайдера.
type WebhookConfig struct {
	// Secret — общий секрет для проверки подписи webhook (HMAC-SHA256).
	Secret string `env:"PAYMENT_WEBHOOK_SECRET,required"`
}

// JaegerConfig содержит настройки трассировки Jaeger.
type JaegerConfig struct {
	Enabled  bool   `env:"JAEGER_ENABLED" envDefault:"true"`
	Host     string `env:"JAEGER_HOST" envDefault:"localhost"`
	OTLPPort int    `env:"JAEGER_OTLP_PORT" envDefault:"4317"` // OTLP gRPC порт
}

// OTLPEndpoint возвращает OTLP gRPC endpoint для Jaeger.
func (c JaegerConfig) OTLPEndpoint() string {
	return fmt.Sprintf("%s:%d", c.Host, c.OTLPPort)
}

// MetricsConfig содержит настройки Prometheus метрик.
type MetricsConfig struct {
	Enabled bool `env:"METRICS_ENABLED" envDefault:"true"` // Включить metrics endpoint
	Port    int  `env:"METRICS_PORT" envDefault:"9090"`    // Порт для /metrics
}

// Addr возвращает адрес для Metrics HTTP сервера.
func (c MetricsConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Load загружает конфигурацию из переменных окружения.
// Опционально загружает .env файл, если он существует.
func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файл не найден)
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга конфигурации: %w", err)
	}

	return cfg, nil
}

// LoadFromFile загружает конфигурацию из указанного .env файла.
func LoadFromFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("ошибка загрузки .env файла %s: %w", path, err)
	}

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга конфигурации: %w", err)
	}

	return cfg, nil
}

// IsDevelopment возвращает true, если приложение запущено в development режиме.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction возвращает true, если приложение запущено в production режиме.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
