package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/grocery-core/pkg/circuitbreaker"
	"example.com/grocery-core/pkg/config"
	"example.com/grocery-core/services/order/internal/domain"
)

func newTestClient(baseURL string) *CatalogClient {
	return NewCatalogClient(config.CatalogConfig{
		BaseURL: baseURL,
		Timeout: time.Second,
	})
}

// TestCatalogClient_GetProduct тестирует успешный запрос товара.
func TestCatalogClient_GetProduct(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/products/product-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"product-1","name":"Молоко 3.2%","price":8990,"currency":"RUB","active":true}`))
	}))
	defer server.Close()

	product, err := newTestClient(server.URL).GetProduct(context.Background(), "product-1")

	require.NoError(t, err)
	assert.Equal(t, "product-1", product.ID)
	assert.Equal(t, "Молоко 3.2%", product.Name)
	assert.Equal(t, int64(8990), product.Price)
	assert.True(t, product.Active)
}

// TestCatalogClient_GetProduct_NotFound тестирует неизвестный товар.
func TestCatalogClient_GetProduct_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetProduct(context.Background(), "product-999")

	assert.ErrorIs(t, err, domain.ErrInvalidProductID)
}

// TestCatalogClient_GetProduct_ServerError тестирует ошибку каталога.
func TestCatalogClient_GetProduct_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetProduct(context.Background(), "product-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

// TestCatalogClient_CircuitBreaker тестирует открытие breaker при недоступности.
func TestCatalogClient_CircuitBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	// Настройки по умолчанию: breaker открывается после 5 неудачных запросов
	for i := 0; i < 6; i++ {
		_, _ = client.GetProduct(context.Background(), "product-1")
	}

	_, err := client.GetProduct(context.Background(), "product-1")
	assert.ErrorIs(t, err, circuitbreaker.ErrUnavailable)
}
