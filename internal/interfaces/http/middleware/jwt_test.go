package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pharmapos/backend/internal/domain/ledger"
	"github.com/pharmapos/backend/internal/infrastructure/auth"
	"github.com/pharmapos/backend/internal/infrastructure/config"
	"github.com/pharmapos/backend/internal/infrastructure/logger"
	"github.com/pharmapos/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const testSecret = "test-secret-key-at-least-32-chars"

func newTestJWTService(expiry time.Duration, issuer string) *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                testSecret,
		AccessTokenExpiration: expiry,
		Issuer:                issuer,
	})
}

func signToken(t *testing.T, svc *auth.JWTService, owner, org string) string {
	t.Helper()
	token, _, err := svc.GenerateAccessToken(auth.GenerateTokenInput{UserID: owner, OrganizationID: org})
	require.NoError(t, err)
	return token
}

// jwtLedgerRouter echoes the scope the ledger group resolves for the caller
func jwtLedgerRouter(svc *auth.JWTService, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(JWTAuthMiddlewareWithConfig(JWTMiddlewareConfig{
		JWTService:       svc,
		SkipPathPrefixes: []string{"/api/v1/system"},
		Logger:           log,
	}))
	router.GET("/api/v1/system/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	g := router.Group("/api/v1/ledger", LedgerScope(ScopeConfig{}))
	g.GET("/integrity/report", func(c *gin.Context) {
		scope, _ := GetLedgerScope(c)
		c.JSON(http.StatusOK, gin.H{
			"scope":     scope.String(),
			"log_owner": logger.GetOwnerID(c.Request.Context()),
		})
	})
	return router
}

func TestJWTAuthMiddleware_Accepts(t *testing.T) {
	svc := newTestJWTService(15*time.Minute, "pharmapos")
	router := jwtLedgerRouter(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/integrity/report", nil)
	req.Header.Set(AuthHeaderKey, BearerPrefix+signToken(t, svc, "owner-a", "branch-1"))
	req.Header.Set(OwnerIDHeader, "owner-b")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"scope":"owner-a/branch-1","log_owner":"owner-a"}`, w.Body.String(),
		"claims decide the scope and headers are ignored")
}

func TestJWTAuthMiddleware_Rejects(t *testing.T) {
	valid := newTestJWTService(15*time.Minute, "pharmapos")
	expired := newTestJWTService(-time.Minute, "pharmapos")
	otherIssuer := newTestJWTService(15*time.Minute, "someone-else")

	tests := []struct {
		name   string
		header string
		code   string
	}{
		{"missing header", "", dto.ErrCodeUnauthorized},
		{"basic auth", "Basic b3duZXI6cGFzcw==", dto.ErrCodeUnauthorized},
		{"empty bearer", "Bearer   ", dto.ErrCodeUnauthorized},
		{"garbage token", "Bearer not.a.jwt", dto.ErrCodeTokenInvalid},
		{"expired token", "Bearer " + signToken(t, expired, "owner-a", ""), dto.ErrCodeTokenExpired},
		{"foreign issuer", "Bearer " + signToken(t, otherIssuer, "owner-a", ""), dto.ErrCodeTokenInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.WarnLevel)
			router := jwtLedgerRouter(valid, zap.New(core))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/ledger/integrity/report", nil)
			if tt.header != "" {
				req.Header.Set(AuthHeaderKey, tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
			require.Equal(t, 1, logs.Len())
			assert.Equal(t, "JWT authentication failed", logs.All()[0].Message)
		})
	}
}

func TestJWTAuthMiddleware_SkipsSystemRoutes(t *testing.T) {
	router := jwtLedgerRouter(newTestJWTService(time.Minute, ""), nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/system/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestJWTAccessors(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, GetJWTClaims(c))
	assert.Empty(t, GetJWTUserID(c))
	assert.Empty(t, GetJWTOrganizationID(c))

	claims := &auth.Claims{UserID: "owner-a", OrganizationID: "branch-1"}
	setClaims(c, claims)
	assert.Same(t, claims, GetJWTClaims(c))
	assert.Equal(t, ledger.Scope{OwnerID: "owner-a", OrganizationID: "branch-1"}, claims.Scope())
	assert.Equal(t, "owner-a", GetJWTUserID(c))
	assert.Equal(t, "branch-1", GetJWTOrganizationID(c))
}
