package ledger

import "fmt"

// DeletionCheck is the guard's verdict on removing an account
type DeletionCheck struct {
	AccountID           string   `json:"accountId"`
	CanDelete           bool     `json:"canDelete"`
	Reason              string   `json:"reason,omitempty"`
	UsageCount          int      `json:"usageCount"`
	ConfirmedUsageCount int      `json:"confirmedUsageCount"`
	TransactionIDs      []string `json:"transactionIds,omitempty"`
}

// CheckAccountDeletion decides whether an account may be removed.
// Only an account no entry references can be deleted. A reference from a confirmed
// transaction blocks deletion permanently; references from draft or cancelled
// transactions also block it, with deactivation suggested instead.
func CheckAccountDeletion(snapshot *Snapshot, accountID string) DeletionCheck {
	check := DeletionCheck{AccountID: accountID}
	confirmedGroups := 0
	for i := range snapshot.Transactions {
		g := &snapshot.Transactions[i]
		uses := 0
		for j := range g.Entries {
			if g.Entries[j].AccountID() == accountID {
				uses++
			}
		}
		if uses == 0 {
			continue
		}
		check.UsageCount += uses
		check.TransactionIDs = append(check.TransactionIDs, g.ID)
		if g.Status == TransactionStatusConfirmed {
			check.ConfirmedUsageCount += uses
			confirmedGroups++
		}
	}

	switch {
	case check.UsageCount == 0:
		check.CanDelete = true
	case confirmedGroups > 0:
		check.Reason = fmt.Sprintf("account is used by %d confirmed transaction(s) and cannot be deleted", confirmedGroups)
	default:
		check.Reason = fmt.Sprintf("account is in use by %d entr%s in draft or cancelled transactions; consider deactivating instead of deleting",
			check.UsageCount, pluralY(check.UsageCount))
	}
	return check
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
