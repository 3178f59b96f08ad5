package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-unit-tests"

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func validClaims() *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "identity",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID: "user-123",
		Role:   RoleCustomer,
	}
}

func TestVerifier_ValidateToken(t *testing.T) {
	v, err := NewVerifier(Config{Secret: testSecret, Issuer: "identity"})
	require.NoError(t, err)

	t.Run("валидный токен", func(t *testing.T) {
		tokenString := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims())

		claims, err := v.ValidateToken(tokenString)
		require.NoError(t, err)
		assert.Equal(t, "user-123", claims.UserID)
		assert.Equal(t, RoleCustomer, claims.Role)
		assert.False(t, claims.IsAdmin())
	})

	t.Run("просроченный токен", func(t *testing.T) {
		claims := validClaims()
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
		tokenString := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), claims)

		_, err := v.ValidateToken(tokenString)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("неверный секрет", func(t *testing.T) {
		tokenString := signToken(t, jwt.SigningMethodHS256, []byte("wrong-secret"), validClaims())

		_, err := v.ValidateToken(tokenString)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("неверный издатель", func(t *testing.T) {
		claims := validClaims()
		claims.Issuer = "someone-else"
		tokenString := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), claims)

		_, err := v.ValidateToken(tokenString)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none алгоритм отклоняется", func(t *testing.T) {
		tokenString := signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims())

		_, err := v.ValidateToken(tokenString)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("fallback на subject", func(t *testing.T) {
		claims := validClaims()
		claims.UserID = ""
		claims.Subject = "user-456"
		tokenString := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), claims)

		got, err := v.ValidateToken(tokenString)
		require.NoError(t, err)
		assert.Equal(t, "user-456", got.UserID)
	})

	t.Run("без идентификатора пользователя", func(t *testing.T) {
		claims := validClaims()
		claims.UserID = ""
		tokenString := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), claims)

		_, err := v.ValidateToken(tokenString)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestNewVerifier_EmptySecret(t *testing.T) {
	_, err := NewVerifier(Config{Secret: ""})
	assert.Error(t, err)
}

func TestClaims_IsAdmin(t *testing.T) {
	assert.True(t, (&Claims{Role: RoleAdmin}).IsAdmin())
	assert.False(t, (&Claims{Role: RoleCustomer}).IsAdmin())
	assert.False(t, (&Claims{}).IsAdmin())
}
