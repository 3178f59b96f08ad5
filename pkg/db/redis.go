package db

import (
	"time"

	"github.com/redis/go-redis/v9"

	"example.com/grocery-core/pkg/config"
)

// ConnectRedis создаёт клиент Redis с консервативными таймаутами.
// Redis здесь вспомогательный (идемпотентность, rate limiting): лучше
// быстро получить ошибку и сработать fallback, чем висеть на запросе.
func ConnectRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
}
