// Package auth предоставляет валидацию JWT токенов внешнего Identity сервиса.
// Order Core токены не выдаёт — только проверяет подпись и извлекает
// идентификатор и роль пользователя.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Роли пользователей, известные Order Core.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// ErrInvalidToken возвращается при невалидном или просроченном токене.
var ErrInvalidToken = errors.New("невалидный токен")

// Claims содержит данные JWT токена Identity сервиса.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`        // ID пользователя
	Role   string `json:"role,omitempty"` // Роль пользователя (опционально)
}

// IsAdmin возвращает true для административной роли.
func (c *Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// Verifier проверяет токены, подписанные Identity сервисом (HS256, общий секрет).
type Verifier struct {
	secret []byte
	issuer string
}

// Config содержит параметры для создания Verifier.
type Config struct {
	Secret string // Секрет подписи HMAC (общий с Identity сервисом)
	Issuer string // Ожидаемый издатель токена
}

// NewVerifier создаёт новый Verifier.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("не задан секрет подписи JWT")
	}
	return &Verifier{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
	}, nil
}

// ValidateToken проверяет подпись, срок действия и издателя токена.
// Возвращает claims с идентификатором пользователя.
func (v *Verifier) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Проверяем, что используется правильный алгоритм
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный алгоритм подписи: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, fmt.Errorf("%w: неожиданный издатель %q", ErrInvalidToken, claims.Issuer)
	}

	if claims.UserID == "" {
		// Fallback на стандартный subject, если user_id не задан.
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: отсутствует идентификатор пользователя", ErrInvalidToken)
	}

	return claims, nil
}
