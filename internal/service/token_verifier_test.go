package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/defense-allocation-api/internal/models"
	appErrors "github.com/noah-isme/defense-allocation-api/pkg/errors"
)

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims models.JWTClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestTokenVerifierAcceptsValidToken(t *testing.T) {
	verifier := NewTokenVerifier("secret")
	token := signToken(t, jwt.SigningMethodHS256, []byte("secret"), models.JWTClaims{
		UserID: "u-1",
		Role:   models.RoleCoordinator,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := verifier.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, models.RoleCoordinator, claims.Role)
}

func TestTokenVerifierRejects(t *testing.T) {
	verifier := NewTokenVerifier("secret")
	tests := map[string]string{
		"wrong secret": signToken(t, jwt.SigningMethodHS256, []byte("other"), models.JWTClaims{UserID: "u-1"}),
		"wrong method": signToken(t, jwt.SigningMethodHS512, []byte("secret"), models.JWTClaims{UserID: "u-1"}),
		"expired": signToken(t, jwt.SigningMethodHS256, []byte("secret"), models.JWTClaims{
			UserID:           "u-1",
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))},
		}),
		"garbage": "not-a-token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := verifier.ValidateToken(token)
			requireAppError(t, err, appErrors.ErrUnauthorized)
		})
	}
}
