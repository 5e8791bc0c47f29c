package handler

import (
	"github.com/gin-gonic/gin"
	ledgerapp "github.com/pharmapos/backend/internal/application/ledger"
)

// AccountHandler handles ledger account maintenance endpoints
type AccountHandler struct {
	BaseHandler
	accountService *ledgerapp.AccountService
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(accountService *ledgerapp.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
	}
}

// CheckDeletion godoc
//
//	@ID				checkLedgerAccountDeletion
//	@Summary		Check whether an account can be deleted
//	@Tags			ledger-accounts
//	@Produce		json
//	@Param			id	path		string	true	"Account ID"
//	@Success		200	{object}	dto.Response{data=ledger.DeletionCheck}
//	@Failure		404	{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/ledger/accounts/{id}/deletion-check [get]
func (h *AccountHandler) CheckDeletion(c *gin.Context) {
	scope, ok := h.requestScope(c, "")
	if !ok {
		return
	}

	check, err := h.accountService.CheckDeletion(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, check)
}

// DeleteAccount godoc
//
//	@ID				deleteLedgerAccount
//	@Summary		Delete an unused account
//	@Description	Soft deletes the account. Accounts referenced by any transaction are refused with 409.
//	@Tags			ledger-accounts
//	@Produce		json
//	@Param			id	path		string	true	"Account ID"
//	@Success		200	{object}	dto.Response{data=ledger.DeletionCheck}
//	@Failure		409	{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/ledger/accounts/{id} [delete]
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	scope, ok := h.requestScope(c, "")
	if !ok {
		return
	}

	check, err := h.accountService.DeleteAccount(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, check)
}

// DeactivateAccount godoc
//
//	@ID				deactivateLedgerAccount
//	@Summary		Deactivate an account
//	@Tags			ledger-accounts
//	@Produce		json
//	@Param			id	path		string	true	"Account ID"
//	@Success		200	{object}	dto.Response{data=ledger.Account}
//	@Failure		404	{object}	dto.Response
//	@Security		BearerAuth
//	@Router			/ledger/accounts/{id}/deactivate [post]
func (h *AccountHandler) DeactivateAccount(c *gin.Context) {
	scope, ok := h.requestScope(c, "")
	if !ok {
		return
	}

	account, err := h.accountService.DeactivateAccount(c.Request.Context(), scope, c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, account)
}
