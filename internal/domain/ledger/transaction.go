package ledger

import (
	"fmt"
	"time"

	"github.com/pharmapos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// TransactionStatus represents the lifecycle status of a transaction group
type TransactionStatus string

const (
	TransactionStatusDraft     TransactionStatus = "draft"
	TransactionStatusConfirmed TransactionStatus = "confirmed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// IsValid checks if the status is a known status
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusDraft, TransactionStatusConfirmed, TransactionStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation
func (s TransactionStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no transition leaves this status
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCancelled
}

// CanConfirm returns true if the group can be confirmed
func (s TransactionStatus) CanConfirm() bool {
	return s == TransactionStatusDraft
}

// CanCancel returns true if the group can be cancelled
func (s TransactionStatus) CanCancel() bool {
	return s == TransactionStatusDraft
}

// CanReopen returns true if a confirmed group can be returned to draft for correction
func (s TransactionStatus) CanReopen() bool {
	return s == TransactionStatusConfirmed
}

// Entry is one debit or credit line of a transaction group
type Entry struct {
	ID                  string          `json:"id,omitempty"`
	TransactionID       string          `json:"transactionId,omitempty"`
	Account             AccountRef      `json:"accountId" toml:"accountId"`
	DebitAmount         decimal.Decimal `json:"debitAmount"`
	CreditAmount        decimal.Decimal `json:"creditAmount"`
	Sequence            int             `json:"sequence"`
	SourceTransactionID string          `json:"sourceTransactionId,omitempty"`
	FundingPath         []string        `json:"fundingPath,omitempty"`
	Description         string          `json:"description,omitempty"`
}

// AccountID returns the id of the referenced account
func (e *Entry) AccountID() string {
	return e.Account.ID
}

// Amount returns the amount the entry moves, whichever side it is on
func (e *Entry) Amount() decimal.Decimal {
	return e.DebitAmount.Add(e.CreditAmount)
}

// HasFundingSource reports whether the entry draws on an earlier transaction
func (e *Entry) HasFundingSource() bool {
	return e.SourceTransactionID != ""
}

// TransactionGroup is one business event made up of balanced entries
type TransactionGroup struct {
	ID                   string            `json:"id"`
	OwnerID              string            `json:"ownerId"`
	OrganizationID       string            `json:"organizationId,omitempty"`
	GroupNumber          string            `json:"groupNumber"`
	TransactionDate      *time.Time        `json:"transactionDate,omitempty"`
	Status               TransactionStatus `json:"status,omitempty"`
	TotalAmount          decimal.Decimal   `json:"totalAmount"`
	FundingType          string            `json:"fundingType,omitempty"`
	Description          string            `json:"description,omitempty"`
	LinkedTransactionIDs []string          `json:"linkedTransactionIds,omitempty"`
	Entries              []Entry           `json:"entries,omitempty"`
	StorageFormat        StorageFormat     `json:"storageFormat,omitempty"`
}

// DisplayName returns the name used when reporting on the group
func (g *TransactionGroup) DisplayName() string {
	if g.GroupNumber != "" {
		return g.GroupNumber
	}
	return g.ID
}

// Totals returns the summed debit and credit amounts of the group's entries
func (g *TransactionGroup) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for i := range g.Entries {
		debit = debit.Add(g.Entries[i].DebitAmount)
		credit = credit.Add(g.Entries[i].CreditAmount)
	}
	return debit, credit
}

// IsBalanced reports whether debits and credits agree within BalanceTolerance
func (g *TransactionGroup) IsBalanced() bool {
	debit, credit := g.Totals()
	return !debit.Sub(credit).Abs().GreaterThan(BalanceTolerance)
}

// ReferencesAccount reports whether any entry points at the account
func (g *TransactionGroup) ReferencesAccount(accountID string) bool {
	for i := range g.Entries {
		if g.Entries[i].AccountID() == accountID {
			return true
		}
	}
	return false
}

// Confirm moves a draft group to confirmed
func (g *TransactionGroup) Confirm() error {
	if !g.EffectiveStatus().CanConfirm() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot confirm transaction in %s status", g.statusLabel()))
	}
	g.Status = TransactionStatusConfirmed
	return nil
}

// Cancel moves a draft group to cancelled
func (g *TransactionGroup) Cancel() error {
	if !g.EffectiveStatus().CanCancel() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel transaction in %s status", g.statusLabel()))
	}
	g.Status = TransactionStatusCancelled
	return nil
}

// Reopen returns a confirmed group to draft so it can be corrected
func (g *TransactionGroup) Reopen() error {
	if !g.EffectiveStatus().CanReopen() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot reopen transaction in %s status", g.statusLabel()))
	}
	g.Status = TransactionStatusDraft
	return nil
}

// EffectiveStatus returns the group's status, treating an unset status as draft
func (g *TransactionGroup) EffectiveStatus() TransactionStatus {
	if g.Status == "" {
		return TransactionStatusDraft
	}
	return g.Status
}

func (g *TransactionGroup) statusLabel() string {
	return string(g.EffectiveStatus())
}
