package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	ledgerapp "github.com/pharmapos/backend/internal/application/ledger"
	"github.com/pharmapos/backend/internal/domain/ledger"
)

// TransactionHandler handles transaction group status transitions
type TransactionHandler struct {
	BaseHandler
	transactionService *ledgerapp.TransactionService
}

// NewTransactionHandler creates a new TransactionHandler
func NewTransactionHandler(transactionService *ledgerapp.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
	}
}

type transitionFunc func(ctx context.Context, scope ledger.Scope, id string) (*ledger.TransactionGroup, error)

func (h *TransactionHandler) transition(c *gin.Context, fn transitionFunc) {
	scope, ok := h.requestScope(c, "")
	if !ok {
		return
	}

	group, err := fn(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, group)
}

// Confirm godoc
//
//	@ID				confirmLedgerTransaction
//	@Summary		Confirm a draft transaction group
//	@Tags			ledger-transactions
//	@Produce		json
//	@Param			id	path		string	true	"Transaction group ID"
//	@Success		200	{object}	dto.Response{data=ledger.TransactionGroup}
//	@Failure		404	{object}	dto.Response
//	@Failure		409	{object}	dto.Response
//	@Failure		422	{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/ledger/transactions/{id}/confirm [post]
func (h *TransactionHandler) Confirm(c *gin.Context) {
	h.transition(c, h.transactionService.Confirm)
}

// Cancel godoc
//
//	@ID				cancelLedgerTransaction
//	@Summary		Cancel a draft transaction group
//	@Tags			ledger-transactions
//	@Produce		json
//	@Param			id	path		string	true	"Transaction group ID"
//	@Success		200	{object}	dto.Response{data=ledger.TransactionGroup}
//	@Failure		422	{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/ledger/transactions/{id}/cancel [post]
func (h *TransactionHandler) Cancel(c *gin.Context) {
	h.transition(c, h.transactionService.Cancel)
}

// Reopen godoc
//
//	@ID				reopenLedgerTransaction
//	@Summary		Return a confirmed transaction group to draft
//	@Tags			ledger-transactions
//	@Produce		json
//	@Param			id	path		string	true	"Transaction group ID"
//	@Success		200	{object}	dto.Response{data=ledger.TransactionGroup}
//	@Failure		422	{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/ledger/transactions/{id}/reopen [post]
func (h *TransactionHandler) Reopen(c *gin.Context) {
	h.transition(c, h.transactionService.Reopen)
}
