package ledger

import "fmt"

// MinimumEntries is the double-entry minimum number of lines per transaction group
const MinimumEntries = 2

// ValidateBalances checks that each transaction group with entries has equal debits
// and credits within BalanceTolerance, and warns when a group has fewer than
// MinimumEntries lines. Groups without entries are left to the field checks.
func ValidateBalances(snapshot *Snapshot) []Issue {
	var issues []Issue
	for i := range snapshot.Transactions {
		g := &snapshot.Transactions[i]
		if len(g.Entries) == 0 {
			continue
		}

		debit, credit := g.Totals()
		count := len(g.Entries)
		if debit.Sub(credit).Abs().GreaterThan(BalanceTolerance) {
			issues = append(issues, TransactionIssue{
				IssueHeader: IssueHeader{
					Kind:       KindBalanceMismatch,
					Severity:   SeverityError,
					EntityID:   g.ID,
					EntityName: g.DisplayName(),
					Description: fmt.Sprintf("balance mismatch: debit %s vs credit %s",
						debit.StringFixed(2), credit.StringFixed(2)),
					Recommendation: "adjust the entry amounts so total debits equal total credits",
				},
				TotalDebit:  decimalPtr(debit),
				TotalCredit: decimalPtr(credit),
				EntryCount:  intPtr(count),
			})
		}
		if count < MinimumEntries {
			issues = append(issues, TransactionIssue{
				IssueHeader: IssueHeader{
					Kind:           KindEntryCountLow,
					Severity:       SeverityWarning,
					EntityID:       g.ID,
					EntityName:     g.DisplayName(),
					Description:    fmt.Sprintf("transaction has %d entry, double-entry expects at least %d", count, MinimumEntries),
					Recommendation: "add the offsetting entry",
				},
				EntryCount: intPtr(count),
			})
		}
	}
	return issues
}
