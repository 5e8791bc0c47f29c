package router

import (
	"github.com/pharmapos/backend/internal/interfaces/http/handler"
)

// LedgerHandlers groups the handlers served under /ledger
type LedgerHandlers struct {
	Integrity     *handler.IntegrityHandler
	Compatibility *handler.CompatibilityHandler
	Funding       *handler.FundingHandler
	Account       *handler.AccountHandler
	Transaction   *handler.TransactionHandler
}

// NewLedgerRoutes builds the ledger integrity route group
func NewLedgerRoutes(h LedgerHandlers) *DomainGroup {
	routes := NewDomainGroup("ledger", "/ledger")

	routes.POST("/integrity/check", h.Integrity.CheckIntegrity)
	routes.GET("/integrity/report", h.Integrity.GetReport)

	routes.GET("/compatibility", h.Compatibility.GetCompatibility)
	routes.DELETE("/compatibility/cache", h.Compatibility.InvalidateAll)
	// keys holding an organization are sent URL-escaped; the engine must set UseRawPath
	routes.DELETE("/compatibility/cache/:key", h.Compatibility.Invalidate)

	routes.GET("/funding/analysis", h.Funding.AnalyzeFunding)
	routes.GET("/funding/lineage/:id", h.Funding.GetLineage)

	routes.GET("/accounts/:id/deletion-check", h.Account.CheckDeletion)
	routes.DELETE("/accounts/:id", h.Account.DeleteAccount)
	routes.POST("/accounts/:id/deactivate", h.Account.DeactivateAccount)

	routes.POST("/transactions/:id/confirm", h.Transaction.Confirm)
	routes.POST("/transactions/:id/cancel", h.Transaction.Cancel)
	routes.POST("/transactions/:id/reopen", h.Transaction.Reopen)

	return routes
}

// NewSystemRoutes builds the unauthenticated system route group
func NewSystemRoutes(h *handler.SystemHandler) *DomainGroup {
	routes := NewDomainGroup("system", "/system")
	routes.GET("/ping", h.Ping)
	routes.GET("/info", h.GetSystemInfo)
	return routes
}
