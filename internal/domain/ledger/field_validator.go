package ledger

import "fmt"

// FieldValidationResult is the outcome of the per-record field checks
type FieldValidationResult struct {
	Issues []Issue
	// InvalidAccounts holds ids of accounts with at least one error, in first-seen order
	InvalidAccounts []string
	// InvalidTransactions holds ids of transaction groups with at least one error, in first-seen order
	InvalidTransactions []string
}

// ValidateFields checks each account and transaction group for required fields,
// known enum values and per-owner uniqueness. The first record to use a code or
// group number owns it; later ones are flagged.
func ValidateFields(snapshot *Snapshot) FieldValidationResult {
	v := &fieldValidator{
		codes:        make(map[string]struct{}),
		names:        make(map[string]struct{}),
		groupNumbers: make(map[string]struct{}),
		badAccounts:  newOrderedSet(),
		badGroups:    newOrderedSet(),
	}
	for i := range snapshot.Accounts {
		v.checkAccount(&snapshot.Accounts[i])
	}
	for i := range snapshot.Transactions {
		v.checkTransaction(&snapshot.Transactions[i])
	}
	return FieldValidationResult{
		Issues:              v.issues,
		InvalidAccounts:     v.badAccounts.items,
		InvalidTransactions: v.badGroups.items,
	}
}

type fieldValidator struct {
	issues       []Issue
	codes        map[string]struct{}
	names        map[string]struct{}
	groupNumbers map[string]struct{}
	badAccounts  *orderedSet
	badGroups    *orderedSet
}

func (v *fieldValidator) accountIssue(a *Account, kind IssueKind, sev Severity, field, desc, rec string) {
	v.issues = append(v.issues, AccountIssue{
		IssueHeader: IssueHeader{
			Kind:           kind,
			Severity:       sev,
			EntityID:       a.ID,
			EntityName:     a.DisplayName(),
			Description:    desc,
			Recommendation: rec,
		},
		Field: field,
	})
	if sev == SeverityError {
		v.badAccounts.add(a.ID)
	}
}

func (v *fieldValidator) transactionIssue(g *TransactionGroup, kind IssueKind, sev Severity, field, desc, rec string) {
	v.issues = append(v.issues, TransactionIssue{
		IssueHeader: IssueHeader{
			Kind:           kind,
			Severity:       sev,
			EntityID:       g.ID,
			EntityName:     g.DisplayName(),
			Description:    desc,
			Recommendation: rec,
		},
		Field: field,
	})
	if sev == SeverityError {
		v.badGroups.add(g.ID)
	}
}

func (v *fieldValidator) checkAccount(a *Account) {
	if a.Code == "" {
		v.accountIssue(a, KindMissingField, SeverityError, "code",
			"account code is missing", "assign a unique account code")
	}
	if a.Name == "" {
		v.accountIssue(a, KindMissingField, SeverityError, "name",
			"account name is missing", "give the account a descriptive name")
	}
	switch {
	case a.AccountType == "":
		v.accountIssue(a, KindMissingField, SeverityError, "accountType",
			"account type is missing", "set the account type to asset, liability, equity, revenue or expense")
	case !a.AccountType.IsValid():
		v.accountIssue(a, KindInvalidFieldValue, SeverityError, "accountType",
			fmt.Sprintf("account type %q is not recognized", a.AccountType),
			"set the account type to asset, liability, equity, revenue or expense")
	}
	if a.NormalBalance != "" && !a.NormalBalance.IsValid() {
		v.accountIssue(a, KindInvalidFieldValue, SeverityError, "normalBalance",
			fmt.Sprintf("normal balance %q is not recognized", a.NormalBalance),
			"set the normal balance to debit or credit")
	}

	if a.Active() {
		scope := a.OwnerID + "|" + a.OrganizationID + "|"
		if a.Code != "" {
			key := scope + a.Code
			if _, seen := v.codes[key]; seen {
				v.accountIssue(a, KindDuplicateIdentifier, SeverityError, "code",
					fmt.Sprintf("account code %s is already used by another active account", a.Code),
					"assign a unique account code")
			} else {
				v.codes[key] = struct{}{}
			}
		}
		if a.Name != "" {
			key := scope + a.Name
			if _, seen := v.names[key]; seen {
				v.accountIssue(a, KindDuplicateIdentifier, SeverityWarning, "name",
					fmt.Sprintf("account name %s is already used by another active account", a.Name),
					"rename the account to avoid confusion when posting entries")
			} else {
				v.names[key] = struct{}{}
			}
		}
	}

	if a.Balance == nil && a.InitialBalance == nil {
		v.accountIssue(a, KindMissingField, SeverityWarning, "balance",
			"account has neither a balance nor an initial balance", "record an initial balance, even if zero")
	}
	if a.NormalBalance == "" {
		rec := "set the normal balance to debit or credit"
		if a.AccountType.IsValid() {
			rec = fmt.Sprintf("set the normal balance to %s, the default for %s accounts",
				a.AccountType.DefaultNormalBalance(), a.AccountType)
		}
		v.accountIssue(a, KindMissingField, SeverityInfo, "normalBalance",
			"account normal balance is not set", rec)
	}
}

func (v *fieldValidator) checkTransaction(g *TransactionGroup) {
	if g.GroupNumber == "" {
		v.transactionIssue(g, KindMissingField, SeverityError, "groupNumber",
			"transaction group number is missing", "assign a unique group number")
	} else {
		key := g.OwnerID + "|" + g.GroupNumber
		if _, seen := v.groupNumbers[key]; seen {
			v.transactionIssue(g, KindDuplicateIdentifier, SeverityError, "groupNumber",
				fmt.Sprintf("group number %s is already used by another transaction", g.GroupNumber),
				"assign a unique group number")
		} else {
			v.groupNumbers[key] = struct{}{}
		}
	}
	if g.TransactionDate == nil || g.TransactionDate.IsZero() {
		v.transactionIssue(g, KindMissingField, SeverityError, "transactionDate",
			"transaction date is missing", "record the date the transaction took place")
	}
	if len(g.Entries) == 0 {
		v.transactionIssue(g, KindMissingField, SeverityError, "entries",
			"transaction has no entries", "add balanced debit and credit entries or remove the transaction")
	}
	switch {
	case g.Status == "":
		v.transactionIssue(g, KindMissingField, SeverityWarning, "status",
			"transaction status is not set", "set the status to draft, confirmed or cancelled")
	case !g.Status.IsValid():
		v.transactionIssue(g, KindInvalidFieldValue, SeverityError, "status",
			fmt.Sprintf("transaction status %q is not recognized", g.Status),
			"set the status to draft, confirmed or cancelled")
	}
}

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{}), items: []string{}}
}

func (s *orderedSet) add(id string) {
	if _, ok := s.seen[id]; ok {
		return
	}
	s.seen[id] = struct{}{}
	s.items = append(s.items, id)
}

func (s *orderedSet) has(id string) bool {
	_, ok := s.seen[id]
	return ok
}
