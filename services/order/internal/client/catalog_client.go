// Package client содержит HTTP клиенты внешних коллабораторов Order Core.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"example.com/grocery-core/pkg/circuitbreaker"
	"example.com/grocery-core/pkg/config"
	"example.com/grocery-core/pkg/logger"
	"example.com/grocery-core/services/order/internal/domain"
	"example.com/grocery-core/services/order/internal/service"
)

// maxErrorBody — предел чтения тела ответа при ошибке.
const maxErrorBody = 4 << 10

// CatalogClient — HTTP клиент Catalog сервиса. Обёрнут в Circuit Breaker:
// при недоступности каталога запросы отклоняются мгновенно, оформление
// заказов не виснет на таймаутах.
type CatalogClient struct {
	baseURL string
	http    *http.Client
	breaker *circuitbreaker.Breaker
}

// catalogProduct — ответ каталога по одному товару.
type catalogProduct struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Currency string `json:"currency"`
	Active   bool   `json:"active"`
}

// NewCatalogClient создаёт новый клиент Catalog сервиса.
func NewCatalogClient(cfg config.CatalogConfig) *CatalogClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 3 * time.Second
	}

	logger.Info().
		Str("base_url", cfg.BaseURL).
		Dur("timeout", timeout).
		Msg("Клиент Catalog сервиса создан")

	return &CatalogClient{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
		breaker: circuitbreaker.New("catalog"),
	}
}

// GetProduct возвращает данные товара из каталога.
// Неизвестный товар — ErrInvalidProductID, недоступность каталога —
// circuitbreaker.ErrUnavailable.
func (c *CatalogClient) GetProduct(ctx context.Context, productID string) (*service.ProductInfo, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		return c.fetchProduct(ctx, productID)
	})
	if err != nil {
		return nil, err
	}
	return result.(*service.ProductInfo), nil
}

// fetchProduct выполняет сам HTTP запрос к каталогу.
func (c *CatalogClient) fetchProduct(ctx context.Context, productID string) (*service.ProductInfo, error) {
	url := fmt.Sprintf("%s/api/v1/products/%s", c.baseURL, productID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса к каталогу: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("каталог недоступен: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// Продолжаем разбор тела
	case http.StatusNotFound:
		return nil, domain.ErrInvalidProductID
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("каталог вернул статус %d: %s", resp.StatusCode, string(body))
	}

	var product catalogProduct
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return nil, fmt.Errorf("ошибка разбора ответа каталога: %w", err)
	}

	return &service.ProductInfo{
		ID:       product.ID,
		Name:     product.Name,
		Price:    product.Price,
		Currency: product.Currency,
		Active:   product.Active,
	}, nil
}
