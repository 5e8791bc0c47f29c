package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pharmapos/backend/internal/infrastructure/auth"
	"github.com/pharmapos/backend/internal/infrastructure/logger"
	"github.com/pharmapos/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// JWT context keys
const (
	JWTClaimsKey         = "jwt_claims"
	JWTUserIDKey         = "jwt_user_id"
	JWTOrganizationIDKey = "jwt_organization_id"
	AuthHeaderKey        = "Authorization"
	BearerPrefix         = "Bearer "
)

// JWTMiddlewareConfig holds configuration for JWT middleware
type JWTMiddlewareConfig struct {
	JWTService *auth.JWTService
	// SkipPathPrefixes are served without a token, e.g. the system endpoints
	SkipPathPrefixes []string
	Logger           *zap.Logger
}

// authFailure is the response for one class of token error
type authFailure struct {
	code    string
	message string
}

var authFailures = []struct {
	err     error
	failure authFailure
}{
	{auth.ErrExpiredToken, authFailure{dto.ErrCodeTokenExpired, "Token has expired"}},
	{auth.ErrTokenNotYetValid, authFailure{dto.ErrCodeTokenInvalid, "Token is not yet valid"}},
	{auth.ErrInvalidClaims, authFailure{dto.ErrCodeTokenInvalid, "Token claims are incomplete"}},
	{auth.ErrMissingUserID, authFailure{dto.ErrCodeTokenInvalid, "Token does not name a ledger owner"}},
	{auth.ErrInvalidToken, authFailure{dto.ErrCodeTokenInvalid, "Invalid token"}},
}

var errMissingBearer = errors.New("missing bearer token")

// JWTAuthMiddlewareWithConfig requires a valid bearer token. The token's user id
// becomes the ledger owner and its organization id pins the organization.
func JWTAuthMiddlewareWithConfig(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		for _, prefix := range cfg.SkipPathPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}

		token, ok := bearerToken(c.GetHeader(AuthHeaderKey))
		if !ok {
			rejectToken(c, log, errMissingBearer)
			return
		}
		claims, err := cfg.JWTService.ValidateAccessToken(token)
		if err != nil {
			rejectToken(c, log, err)
			return
		}

		setClaims(c, claims)
		ctx := c.Request.Context()
		ctxLog := logger.FromContext(ctx)
		ctx, ctxLog = logger.WithOwnerID(ctx, ctxLog, claims.UserID)
		if claims.OrganizationID != "" {
			ctx, _ = logger.WithOrganizationID(ctx, ctxLog, claims.OrganizationID)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, BearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
	return token, token != ""
}

func rejectToken(c *gin.Context, log *zap.Logger, err error) {
	failure := authFailure{dto.ErrCodeUnauthorized, "Authentication required"}
	for _, f := range authFailures {
		if errors.Is(err, f.err) {
			failure = f.failure
			break
		}
	}
	log.Warn("JWT authentication failed",
		zap.Error(err),
		zap.String("code", failure.code),
		zap.String("path", c.Request.URL.Path),
	)
	abortWithError(c, http.StatusUnauthorized, failure.code, failure.message)
}

// GetJWTClaims returns the claims stored by the JWT middleware, or nil
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if v, exists := c.Get(JWTClaimsKey); exists {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}

// GetJWTUserID returns the authenticated ledger owner, or ""
func GetJWTUserID(c *gin.Context) string {
	return c.GetString(JWTUserIDKey)
}

// GetJWTOrganizationID returns the organization the token is pinned to, or ""
func GetJWTOrganizationID(c *gin.Context) string {
	return c.GetString(JWTOrganizationIDKey)
}

func setClaims(c *gin.Context, claims *auth.Claims) {
	c.Set(JWTClaimsKey, claims)
	c.Set(JWTUserIDKey, claims.UserID)
	c.Set(JWTOrganizationIDKey, claims.OrganizationID)
}
