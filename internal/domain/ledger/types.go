package ledger

import "github.com/shopspring/decimal"

// BalanceTolerance is the largest debit/credit difference still treated as balanced
var BalanceTolerance = decimal.NewFromFloat(0.01)

// AccountType classifies an account in the chart of accounts
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// IsValid checks if the account type is one of the known types
func (t AccountType) IsValid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeRevenue, AccountTypeExpense:
		return true
	}
	return false
}

// String returns the string representation
func (t AccountType) String() string {
	return string(t)
}

// DefaultNormalBalance returns the side on which the account type normally increases.
// Asset and expense accounts are debit-normal, everything else is credit-normal.
func (t AccountType) DefaultNormalBalance() NormalBalance {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return NormalBalanceDebit
	default:
		return NormalBalanceCredit
	}
}

// NormalBalance is the side on which an account's balance increases
type NormalBalance string

const (
	NormalBalanceDebit  NormalBalance = "debit"
	NormalBalanceCredit NormalBalance = "credit"
)

// IsValid checks if the normal balance is debit or credit
func (n NormalBalance) IsValid() bool {
	return n == NormalBalanceDebit || n == NormalBalanceCredit
}

// String returns the string representation
func (n NormalBalance) String() string {
	return string(n)
}

// StorageFormat records where a transaction's entries were found when the snapshot was loaded
type StorageFormat string

const (
	// StorageFormatEmbedded means entries were carried inline on the transaction group
	StorageFormatEmbedded StorageFormat = "embedded"
	// StorageFormatStandalone means entries were stored separately and joined at load time
	StorageFormatStandalone StorageFormat = "standalone"
)

// String returns the string representation
func (f StorageFormat) String() string {
	return string(f)
}
