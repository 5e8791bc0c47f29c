package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	ledgerapp "github.com/pharmapos/backend/internal/application/ledger"
	"github.com/pharmapos/backend/internal/interfaces/http/dto"
	"github.com/pharmapos/backend/internal/interfaces/http/middleware"
)

// IntegrityHandler handles ledger integrity check endpoints
type IntegrityHandler struct {
	BaseHandler
	integrityService *ledgerapp.IntegrityService
}

// NewIntegrityHandler creates a new IntegrityHandler
func NewIntegrityHandler(integrityService *ledgerapp.IntegrityService) *IntegrityHandler {
	return &IntegrityHandler{
		integrityService: integrityService,
	}
}

// CheckIntegrity godoc
//
//	@ID				checkLedgerIntegrity
//	@Summary		Run a ledger integrity check
//	@Description	Validates fields, balances and relationships of the caller's ledger
//	@Tags			ledger-integrity
//	@Accept			json
//	@Produce		json
//	@Param			request	body		dto.IntegrityCheckRequest	false	"Organization to narrow the check to"
//	@Success		200		{object}	dto.Response{data=ledger.IntegrityReport}
//	@Failure		400		{object}	dto.Response
//	@Failure		503		{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/ledger/integrity/check [post]
func (h *IntegrityHandler) CheckIntegrity(c *gin.Context) {
	var req dto.IntegrityCheckRequest
	// an empty body checks the caller's whole scope
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.HandleValidationError(c, err)
		return
	}

	scope, ok := h.requestScope(c, req.OrganizationID)
	if !ok {
		return
	}

	report, err := h.integrityService.CheckIntegrity(c.Request.Context(), scope)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}

// GetReport godoc
//
//	@ID				getLedgerIntegrityReport
//	@Summary		Build an integrity report document
//	@Description	Runs an integrity check and wraps it with completeness, recommendations and the archive location
//	@Tags			ledger-integrity
//	@Produce		json
//	@Param			organization_id	query		string	false	"Organization to narrow the report to"
//	@Success		200				{object}	dto.Response{data=ledger.IntegrityDocument}
//	@Failure		503				{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/ledger/integrity/report [get]
func (h *IntegrityHandler) GetReport(c *gin.Context) {
	var req dto.ScopeRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	scope, ok := h.requestScope(c, req.OrganizationID)
	if !ok {
		return
	}

	doc, err := h.integrityService.GenerateReport(c.Request.Context(), scope)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, doc)
}
