package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bus-dispatch-api/internal/models"
	appErrors "github.com/noah-isme/bus-dispatch-api/pkg/errors"
)

func signToken(t *testing.T, method jwt.SigningMethod, secret string, claims models.JWTClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func officerClaims(expiresIn time.Duration) models.JWTClaims {
	return models.JWTClaims{
		UserID: "O1",
		Role:   models.RoleOfficer,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
}

func TestTokenVerifierAcceptsValidToken(t *testing.T) {
	verifier := NewTokenVerifier("secret")

	claims, err := verifier.ValidateToken(signToken(t, jwt.SigningMethodHS256, "secret", officerClaims(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, models.Actor{ID: "O1", Role: models.RoleOfficer}, claims.Actor())
}

func TestTokenVerifierRejectsBadTokens(t *testing.T) {
	verifier := NewTokenVerifier("secret")
	noUser := officerClaims(time.Hour)
	noUser.UserID = ""

	cases := map[string]string{
		"wrong secret": signToken(t, jwt.SigningMethodHS256, "other", officerClaims(time.Hour)),
		"expired":      signToken(t, jwt.SigningMethodHS256, "secret", officerClaims(-time.Minute)),
		"wrong method": signToken(t, jwt.SigningMethodHS512, "secret", officerClaims(time.Hour)),
		"no user":      signToken(t, jwt.SigningMethodHS256, "secret", noUser),
		"garbage":      "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := verifier.ValidateToken(token)
			requireAppError(t, err, appErrors.ErrUnauthorized.Code)
		})
	}
}
