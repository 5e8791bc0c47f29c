package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pharmapos/backend/internal/domain/ledger"
	"github.com/pharmapos/backend/internal/domain/shared"
	"github.com/pharmapos/backend/internal/infrastructure/logger"
	"github.com/pharmapos/backend/internal/interfaces/http/dto"
	"github.com/pharmapos/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

func getRequestID(c *gin.Context) string {
	if id := c.GetString(logger.GinRequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// requestScope returns the ledger scope of the request, narrowed to the
// organization named in the request when the caller is not already pinned to one.
// It writes the error response and returns false when no usable scope exists.
func (h *BaseHandler) requestScope(c *gin.Context, requestedOrg string) (ledger.Scope, bool) {
	scope, ok := middleware.GetLedgerScope(c)
	if !ok {
		scope = middleware.ResolveScope(c, false)
	}
	if scope.OwnerID == "" {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Ledger owner could not be determined")
		return ledger.Scope{}, false
	}
	if requestedOrg != "" {
		if scope.OrganizationID != "" && scope.OrganizationID != requestedOrg {
			h.Forbidden(c, "Requested organization does not match the caller's organization")
			return ledger.Scope{}, false
		}
		scope.OrganizationID = requestedOrg
	}
	return scope, true
}

// Success sends a 200 response wrapping data
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Error sends an error envelope and records its code for the metrics middleware
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	middleware.SetErrorCode(c, code)
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// Forbidden sends a 403 response
func (h *BaseHandler) Forbidden(c *gin.Context, message string) {
	h.Error(c, http.StatusForbidden, dto.ErrCodeForbidden, message)
}

// asDomainError maps err onto a domain error. Ledger load failures keep the
// underlying message under the SNAPSHOT_UNAVAILABLE code.
func asDomainError(err error) (*shared.DomainError, bool) {
	var loadErr *ledger.SnapshotLoadError
	if errors.As(err, &loadErr) {
		return shared.NewDomainError(shared.ErrSnapshotUnavailable.Code, loadErr.Error()), true
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}

// HandleError writes the response for err. Domain errors keep their code and
// message; anything else is logged and hidden behind a generic 500.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	if domainErr, ok := asDomainError(err); ok {
		code := dto.NormalizeErrorCode(domainErr.Code)
		h.Error(c, dto.GetHTTPStatus(code), code, domainErr.Message)
		return
	}

	logger.FromContext(c.Request.Context()).Error("Unhandled request error", zap.Error(err))
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
}
