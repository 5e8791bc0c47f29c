package handler

import (
	"github.com/gin-gonic/gin"
	ledgerapp "github.com/pharmapos/backend/internal/application/ledger"
	"github.com/pharmapos/backend/internal/domain/ledger"
	"github.com/pharmapos/backend/internal/interfaces/http/dto"
	"github.com/pharmapos/backend/internal/interfaces/http/middleware"
)

// CompatibilityHandler serves cached storage-format compatibility reports
type CompatibilityHandler struct {
	BaseHandler
	compatibilityService *ledgerapp.CompatibilityService
}

// NewCompatibilityHandler creates a new CompatibilityHandler
func NewCompatibilityHandler(compatibilityService *ledgerapp.CompatibilityService) *CompatibilityHandler {
	return &CompatibilityHandler{
		compatibilityService: compatibilityService,
	}
}

// GetCompatibility godoc
//
//	@ID				getLedgerCompatibility
//	@Summary		Get the compatibility report
//	@Description	Returns the cached compatibility report of the caller's ledger, computing it on a miss
//	@Tags			ledger-compatibility
//	@Produce		json
//	@Param			organization_id	query		string	false	"Organization to narrow the report to"
//	@Success		200				{object}	dto.Response{data=ledger.CompatibilityReport}
//	@Security		BearerAuth
//	@Router			/ledger/compatibility [get]
func (h *CompatibilityHandler) GetCompatibility(c *gin.Context) {
	var req dto.ScopeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	scope, ok := h.requestScope(c, req.OrganizationID)
	if !ok {
		return
	}

	report, err := h.compatibilityService.CheckScope(c.Request.Context(), scope)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}

// InvalidateAll godoc
//
//	@ID				invalidateLedgerCompatibilityCache
//	@Summary		Clear the compatibility cache
//	@Tags			ledger-compatibility
//	@Produce		json
//	@Success		200	{object}	dto.Response{data=dto.CacheInvalidationResponse}
//	@Security		BearerAuth
//	@Router			/ledger/compatibility/cache [delete]
func (h *CompatibilityHandler) InvalidateAll(c *gin.Context) {
	if _, ok := h.requestScope(c, ""); !ok {
		return
	}

	if err := h.compatibilityService.InvalidateAll(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.CacheInvalidationResponse{Cleared: true})
}

// Invalidate godoc
//
//	@ID				invalidateLedgerCompatibilityKey
//	@Summary		Drop one compatibility cache entry
//	@Description	The key must belong to the caller, either the owner id or owner/organization (URL-escaped)
//	@Tags			ledger-compatibility
//	@Produce		json
//	@Param			key	path		string	true	"Cache key"
//	@Success		200	{object}	dto.Response{data=dto.CacheInvalidationResponse}
//	@Failure		403	{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/ledger/compatibility/cache/{key} [delete]
func (h *CompatibilityHandler) Invalidate(c *gin.Context) {
	scope, ok := h.requestScope(c, "")
	if !ok {
		return
	}

	key := c.Param("key")
	if !ownsCacheKey(scope.OwnerID, key) {
		h.Forbidden(c, "Cache key does not belong to the caller")
		return
	}

	if err := h.compatibilityService.Invalidate(c.Request.Context(), key); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, dto.CacheInvalidationResponse{Key: key, Cleared: true})
}

// ownsCacheKey reports whether key is the owner's own key or one of its organization keys
func ownsCacheKey(ownerID, key string) bool {
	scope, ok := ledger.ParseScopeKey(key)
	return ok && scope.OwnerID == ownerID
}
