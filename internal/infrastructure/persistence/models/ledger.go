package models

import (
	"time"

	"github.com/pharmapos/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// AccountModel is the persistence model for a chart-of-accounts node
type AccountModel struct {
	ScopedModel
	Code           string               `gorm:"type:varchar(50);index"`
	Name           string               `gorm:"type:varchar(200)"`
	AccountType    ledger.AccountType   `gorm:"type:varchar(20)"`
	NormalBalance  ledger.NormalBalance `gorm:"type:varchar(10)"`
	Balance        *decimal.Decimal     `gorm:"type:decimal(18,4)"`
	InitialBalance *decimal.Decimal     `gorm:"type:decimal(18,4)"`
	IsActive       *bool                `gorm:"default:true;index"`
	ParentID       *string              `gorm:"type:varchar(64)"`
	DeletedAt      *time.Time           `gorm:"index"`
}

// TableName returns the table name for GORM
func (AccountModel) TableName() string {
	return "ledger_accounts"
}

// ToDomain converts the persistence model to a domain Account
func (m *AccountModel) ToDomain() ledger.Account {
	a := ledger.Account{
		ID:             m.ID,
		OwnerID:        m.OwnerID,
		OrganizationID: m.OrganizationID,
		Code:           m.Code,
		Name:           m.Name,
		AccountType:    m.AccountType,
		NormalBalance:  m.NormalBalance,
		Balance:        m.Balance,
		InitialBalance: m.InitialBalance,
		IsActive:       m.IsActive,
		DeletedAt:      m.DeletedAt,
	}
	if m.ParentID != nil {
		a.ParentID = *m.ParentID
	}
	return a
}

// AccountModelFromDomain creates a persistence model from a domain Account
func AccountModelFromDomain(a *ledger.Account) *AccountModel {
	m := &AccountModel{
		Code:           a.Code,
		Name:           a.Name,
		AccountType:    a.AccountType,
		NormalBalance:  a.NormalBalance,
		Balance:        a.Balance,
		InitialBalance: a.InitialBalance,
		IsActive:       a.IsActive,
		DeletedAt:      a.DeletedAt,
	}
	m.ID = a.ID
	m.OwnerID = a.OwnerID
	m.OrganizationID = a.OrganizationID
	if a.ParentID != "" {
		parent := a.ParentID
		m.ParentID = &parent
	}
	return m
}

// TransactionGroupModel is the persistence model for a transaction group.
// EmbeddedEntries is set only for groups written in the embedded shape.
type TransactionGroupModel struct {
	ScopedModel
	GroupNumber          string                   `gorm:"type:varchar(50);index"`
	TransactionDate      *time.Time               `gorm:"index"`
	Status               ledger.TransactionStatus `gorm:"type:varchar(20);index"`
	TotalAmount          decimal.Decimal          `gorm:"type:decimal(18,4);not null;default:0"`
	FundingType          string                   `gorm:"type:varchar(50)"`
	Description          string                   `gorm:"type:text"`
	LinkedTransactionIDs StringList               `gorm:"column:linked_transaction_ids;type:jsonb;default:'[]'"`
	EmbeddedEntries      EmbeddedEntries          `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (TransactionGroupModel) TableName() string {
	return "ledger_transaction_groups"
}

// ToDomain converts the persistence model to a domain TransactionGroup.
// Standalone entries are attached later by ledger.Normalize.
func (m *TransactionGroupModel) ToDomain() ledger.TransactionGroup {
	return ledger.TransactionGroup{
		ID:                   m.ID,
		OwnerID:              m.OwnerID,
		OrganizationID:       m.OrganizationID,
		GroupNumber:          m.GroupNumber,
		TransactionDate:      m.TransactionDate,
		Status:               m.Status,
		TotalAmount:          m.TotalAmount,
		FundingType:          m.FundingType,
		Description:          m.Description,
		LinkedTransactionIDs: []string(m.LinkedTransactionIDs),
		Entries:              []ledger.Entry(m.EmbeddedEntries),
	}
}

// TransactionGroupModelFromDomain creates a persistence model from a domain TransactionGroup.
// Entries are stored inline only when the group is in the embedded shape.
func TransactionGroupModelFromDomain(g *ledger.TransactionGroup) *TransactionGroupModel {
	m := &TransactionGroupModel{
		GroupNumber:          g.GroupNumber,
		TransactionDate:      g.TransactionDate,
		Status:               g.Status,
		TotalAmount:          g.TotalAmount,
		FundingType:          g.FundingType,
		Description:          g.Description,
		LinkedTransactionIDs: StringList(g.LinkedTransactionIDs),
	}
	m.ID = g.ID
	m.OwnerID = g.OwnerID
	m.OrganizationID = g.OrganizationID
	if g.StorageFormat == ledger.StorageFormatEmbedded {
		m.EmbeddedEntries = EmbeddedEntries(g.Entries)
	}
	return m
}

// EntryModel is the persistence model for a standalone entry row
type EntryModel struct {
	BaseModel
	TransactionID       string          `gorm:"type:varchar(64);not null;index"`
	AccountID           string          `gorm:"type:varchar(64);index"`
	DebitAmount         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	CreditAmount        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Sequence            int             `gorm:"not null;default:0"`
	SourceTransactionID *string         `gorm:"type:varchar(64);index"`
	FundingPath         StringList      `gorm:"type:jsonb;default:'[]'"`
	Description         string          `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (EntryModel) TableName() string {
	return "ledger_entries"
}

// ToDomain converts the persistence model to a domain Entry
func (m *EntryModel) ToDomain() ledger.Entry {
	e := ledger.Entry{
		ID:            m.ID,
		TransactionID: m.TransactionID,
		Account:       ledger.RefID(m.AccountID),
		DebitAmount:   m.DebitAmount,
		CreditAmount:  m.CreditAmount,
		Sequence:      m.Sequence,
		FundingPath:   []string(m.FundingPath),
		Description:   m.Description,
	}
	if m.SourceTransactionID != nil {
		e.SourceTransactionID = *m.SourceTransactionID
	}
	return e
}

// EntryModelFromDomain creates a standalone entry row from a domain Entry
func EntryModelFromDomain(e *ledger.Entry) *EntryModel {
	m := &EntryModel{
		TransactionID: e.TransactionID,
		AccountID:     e.AccountID(),
		DebitAmount:   e.DebitAmount,
		CreditAmount:  e.CreditAmount,
		Sequence:      e.Sequence,
		FundingPath:   StringList(e.FundingPath),
		Description:   e.Description,
	}
	m.ID = e.ID
	if e.SourceTransactionID != "" {
		src := e.SourceTransactionID
		m.SourceTransactionID = &src
	}
	return m
}

// AllLedgerModels lists the ledger tables for auto-migration in tests
func AllLedgerModels() []any {
	return []any{&AccountModel{}, &TransactionGroupModel{}, &EntryModel{}}
}
