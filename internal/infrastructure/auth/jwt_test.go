package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pharmapos/backend/internal/domain/ledger"
	"github.com/pharmapos/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-chars",
		AccessTokenExpiration: 15 * time.Minute,
		Issuer:                "test-issuer",
	})
}

func TestGenerateAndValidateAccessToken(t *testing.T) {
	svc := newTestJWTService()

	token, expiresAt, err := svc.GenerateAccessToken(GenerateTokenInput{
		UserID:         "owner-a",
		OrganizationID: "org-1",
		Username:       "pharmacist",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "owner-a", claims.UserID)
	assert.Equal(t, "owner-a", claims.Subject)
	assert.Equal(t, "pharmacist", claims.Username)
	assert.Equal(t, ledger.Scope{OwnerID: "owner-a", OrganizationID: "org-1"}, claims.Scope())
	assert.WithinDuration(t, expiresAt, claims.ExpiresAtTime(), time.Second)
}

func TestGenerateAccessToken_Errors(t *testing.T) {
	_, _, err := newTestJWTService().GenerateAccessToken(GenerateTokenInput{})
	assert.ErrorIs(t, err, ErrMissingUserID)

	_, _, err = NewJWTService(config.JWTConfig{}).GenerateAccessToken(GenerateTokenInput{UserID: "owner-a"})
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestValidateAccessToken_Rejects(t *testing.T) {
	svc := newTestJWTService()

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateAccessToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTService(config.JWTConfig{Secret: "another-secret-key-32-characters!", AccessTokenExpiration: time.Minute, Issuer: "test-issuer"})
		token, _, err := other.GenerateAccessToken(GenerateTokenInput{UserID: "owner-a"})
		require.NoError(t, err)
		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewJWTService(config.JWTConfig{Secret: "test-secret-key-at-least-32-chars", AccessTokenExpiration: time.Minute, Issuer: "someone-else"})
		token, _, err := other.GenerateAccessToken(GenerateTokenInput{UserID: "owner-a"})
		require.NoError(t, err)
		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		issuer := newTestJWTService()
		issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, _, err := issuer.GenerateAccessToken(GenerateTokenInput{UserID: "owner-a"})
		require.NoError(t, err)
		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("not yet valid", func(t *testing.T) {
		issuer := newTestJWTService()
		issuer.now = func() time.Time { return time.Now().Add(time.Hour) }
		token, _, err := issuer.GenerateAccessToken(GenerateTokenInput{UserID: "owner-a"})
		require.NoError(t, err)
		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrTokenNotYetValid)
	})

	t.Run("signing method none", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "owner-a"}).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing user id", func(t *testing.T) {
		now := time.Now()
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "test-issuer",
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
			},
		}).SignedString([]byte("test-secret-key-at-least-32-chars"))
		require.NoError(t, err)
		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrMissingUserID)
	})
}
