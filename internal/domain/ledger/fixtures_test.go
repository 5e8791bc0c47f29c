package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

const testOwner = "owner-1"

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func boolPtr(v bool) *bool {
	return &v
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func validAccount(id, code, name string, t AccountType) Account {
	return Account{
		ID:             id,
		OwnerID:        testOwner,
		Code:           code,
		Name:           name,
		AccountType:    t,
		NormalBalance:  t.DefaultNormalBalance(),
		InitialBalance: decPtr(0),
	}
}

func debit(accountID string, amount int64, seq int) Entry {
	return Entry{Account: RefID(accountID), DebitAmount: dec(amount), CreditAmount: decimal.Zero, Sequence: seq}
}

func credit(accountID string, amount int64, seq int) Entry {
	return Entry{Account: RefID(accountID), DebitAmount: decimal.Zero, CreditAmount: dec(amount), Sequence: seq}
}

func group(id, number string, status TransactionStatus, entries ...Entry) TransactionGroup {
	for i := range entries {
		entries[i].TransactionID = id
	}
	return TransactionGroup{
		ID:              id,
		OwnerID:         testOwner,
		GroupNumber:     number,
		TransactionDate: date(2024, time.March, 1),
		Status:          status,
		Entries:         entries,
	}
}

// balancedLedger is a clean two-account ledger with one balanced confirmed transaction
func balancedLedger() ([]Account, []TransactionGroup) {
	accounts := []Account{
		validAccount("cash", "1001", "Cash", AccountTypeAsset),
		validAccount("sales", "4001", "Sales", AccountTypeRevenue),
	}
	groups := []TransactionGroup{
		group("tx-1", "TX-0001", TransactionStatusConfirmed, debit("cash", 1000, 1), credit("sales", 1000, 2)),
	}
	return accounts, groups
}

func kindsOf(issues []Issue) []IssueKind {
	out := make([]IssueKind, len(issues))
	for i, issue := range issues {
		out[i] = issue.Header().Kind
	}
	return out
}

func issuesOfKind(issues []Issue, kind IssueKind) []Issue {
	var out []Issue
	for _, issue := range issues {
		if issue.Header().Kind == kind {
			out = append(out, issue)
		}
	}
	return out
}
