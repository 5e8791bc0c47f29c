package handler

import (
	"github.com/gin-gonic/gin"
	ledgerapp "github.com/pharmapos/backend/internal/application/ledger"
	"github.com/pharmapos/backend/internal/interfaces/http/dto"
	"github.com/pharmapos/backend/internal/interfaces/http/middleware"
)

// FundingHandler handles funding analysis endpoints
type FundingHandler struct {
	BaseHandler
	fundingService *ledgerapp.FundingService
}

// NewFundingHandler creates a new FundingHandler
func NewFundingHandler(fundingService *ledgerapp.FundingService) *FundingHandler {
	return &FundingHandler{
		fundingService: fundingService,
	}
}

// AnalyzeFunding godoc
//
//	@ID				analyzeLedgerFunding
//	@Summary		Analyze funding utilization
//	@Description	Aggregates how much of each funding source later transactions consumed
//	@Tags			ledger-funding
//	@Produce		json
//	@Param			from			query		string	false	"Start date (YYYY-MM-DD)"
//	@Param			to				query		string	false	"End date, inclusive (YYYY-MM-DD)"
//	@Param			organization_id	query		string	false	"Organization to narrow the analysis to"
//	@Success		200				{object}	dto.Response{data=ledger.FundingAnalysis}
//	@Failure		400				{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/ledger/funding/analysis [get]
func (h *FundingHandler) AnalyzeFunding(c *gin.Context) {
	var req dto.FundingAnalysisRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	scope, ok := h.requestScope(c, req.OrganizationID)
	if !ok {
		return
	}

	query, err := ledgerapp.ParseFundingRange(scope, req.From, req.To)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	analysis, err := h.fundingService.Analyze(c.Request.Context(), query)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, analysis)
}

// GetLineage godoc
//
//	@ID				getLedgerFundingLineage
//	@Summary		Trace funding lineage
//	@Description	Follows source transaction links back from a transaction
//	@Tags			ledger-funding
//	@Produce		json
//	@Param			id	path		string	true	"Transaction group ID"
//	@Success		200	{object}	dto.Response{data=ledger.FundingLineage}
//	@Failure		404	{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/ledger/funding/lineage/{id} [get]
func (h *FundingHandler) GetLineage(c *gin.Context) {
	scope, ok := h.requestScope(c, c.Query("organization_id"))
	if !ok {
		return
	}

	lineage, err := h.fundingService.Lineage(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, lineage)
}
