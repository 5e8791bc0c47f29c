package ledger

import "fmt"

// ValidateRelationships cross-checks entry references against the snapshot.
// Account references must resolve to an active account; funding references should
// resolve to a transaction group in the snapshot. Active accounts that no entry
// references are reported as informational orphans.
func ValidateRelationships(snapshot *Snapshot) []Issue {
	active := make(map[string]struct{}, len(snapshot.Accounts))
	for i := range snapshot.Accounts {
		if snapshot.Accounts[i].Active() {
			active[snapshot.Accounts[i].ID] = struct{}{}
		}
	}
	groups := make(map[string]struct{}, len(snapshot.Transactions))
	for i := range snapshot.Transactions {
		groups[snapshot.Transactions[i].ID] = struct{}{}
	}

	var issues []Issue
	referenced := make(map[string]struct{})
	for i := range snapshot.Transactions {
		g := &snapshot.Transactions[i]
		for j := range g.Entries {
			e := &g.Entries[j]
			accountID := e.AccountID()
			if accountID != "" {
				referenced[accountID] = struct{}{}
			}

			if _, ok := active[accountID]; !ok {
				desc := "entry references a non-existent account"
				if a, found := snapshot.Account(accountID); found && accountID != "" && !a.Active() {
					desc = "entry references an inactive account"
				}
				issues = append(issues, RelationshipIssue{
					IssueHeader: IssueHeader{
						Kind:           KindDanglingAccountReference,
						Severity:       SeverityError,
						EntityID:       entryEntityID(g, e),
						EntityName:     entryEntityName(g, e),
						Description:    desc,
						Recommendation: "point the entry at an existing active account",
					},
					TransactionID: g.ID,
					EntrySequence: intPtr(e.Sequence),
					ReferenceID:   accountID,
				})
			}

			if e.HasFundingSource() {
				if _, ok := groups[e.SourceTransactionID]; !ok {
					issues = append(issues, RelationshipIssue{
						IssueHeader: IssueHeader{
							Kind:           KindDanglingFundingReference,
							Severity:       SeverityWarning,
							EntityID:       entryEntityID(g, e),
							EntityName:     entryEntityName(g, e),
							Description:    "entry references a non-existent funding source",
							Recommendation: "clear the funding source or link the entry to an existing transaction",
						},
						TransactionID: g.ID,
						EntrySequence: intPtr(e.Sequence),
						ReferenceID:   e.SourceTransactionID,
					})
				}
			}
		}
	}

	for i := range snapshot.Accounts {
		a := &snapshot.Accounts[i]
		if !a.Active() {
			continue
		}
		if _, used := referenced[a.ID]; used {
			continue
		}
		issues = append(issues, RelationshipIssue{
			IssueHeader: IssueHeader{
				Kind:           KindOrphanAccount,
				Severity:       SeverityInfo,
				EntityID:       a.ID,
				EntityName:     a.DisplayName(),
				Description:    "account unused by any transaction",
				Recommendation: "no action needed unless the account was created by mistake",
			},
			ReferenceID: a.ID,
		})
	}
	return issues
}

func entryEntityID(g *TransactionGroup, e *Entry) string {
	if e.ID != "" {
		return e.ID
	}
	return fmt.Sprintf("%s#%d", g.ID, e.Sequence)
}

func entryEntityName(g *TransactionGroup, e *Entry) string {
	return fmt.Sprintf("%s entry %d", g.DisplayName(), e.Sequence)
}
