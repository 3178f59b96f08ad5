// Package middleware содержит HTTP middleware Order Core.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"example.com/grocery-core/pkg/auth"
	"example.com/grocery-core/pkg/logger"
)

// Ключи контекста Gin, устанавливаемые после аутентификации.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// AuthMiddleware — middleware проверки JWT токенов. Токены выдаёт
// внешний Identity сервис, здесь только локальная проверка подписи
// общим секретом — без сетевых вызовов на каждый запрос.
type AuthMiddleware struct {
	verifier *auth.Verifier
}

// NewAuthMiddleware создаёт новый middleware аутентификации.
func NewAuthMiddleware(verifier *auth.Verifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Handle возвращает Gin handler function для middleware.
func (m *AuthMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.FromContext(c.Request.Context())

		token := ExtractBearerToken(c)
		if token == "" {
			log.Debug().Msg("Отсутствует токен авторизации")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Требуется авторизация",
			})
			return
		}

		claims, err := m.verifier.ValidateToken(token)
		if err != nil {
			log.Warn().Err(err).Msg("Ошибка валидации токена")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Невалидный токен",
			})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)

		log.Debug().
			Str("user_id", claims.UserID).
			Str("role", claims.Role).
			Msg("Пользователь аутентифицирован")

		c.Next()
	}
}

// RequireAdmin возвращает middleware, пропускающий только администраторов.
// Должен стоять после Handle.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(ContextRole)
		if role != auth.RoleAdmin {
			log := logger.FromContext(c.Request.Context())
			log.Warn().
				Str("user_id", c.GetString(ContextUserID)).
				Str("role", role).
				Msg("Попытка доступа к административной операции")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Операция доступна только администратору",
			})
			return
		}
		c.Next()
	}
}

// ExtractBearerToken извлекает токен из Authorization header.
// Формат: "Bearer <token>", префикс регистронезависимый.
func ExtractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
