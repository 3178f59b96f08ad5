// Package healthcheck собирает проверки готовности зависимостей сервиса.
// Результат отдаётся через /readyz (Kubernetes readiness probe).
package healthcheck

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Check — одна проверка готовности зависимости.
// Алиас, чтобы проверки подставлялись в любые callback-поля без конверсий.
type Check = func(ctx context.Context) error

// MySQL возвращает проверку доступности MySQL через пинг пула соединений.
func MySQL(db *gorm.DB) Check {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("mysql: %w", err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("mysql ping: %w", err)
		}
		return nil
	}
}

// Redis возвращает проверку доступности Redis.
func Redis(rdb *redis.Client) Check {
	return func(ctx context.Context) error {
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		return nil
	}
}

// All объединяет проверки: сервис готов, когда готова каждая зависимость.
// Возвращается первая ошибка, остальные проверки не выполняются.
func All(checks ...Check) Check {
	return func(ctx context.Context) error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}
