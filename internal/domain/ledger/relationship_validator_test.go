package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRelationships(t *testing.T) {
	t.Run("fully referenced ledger has no issues", func(t *testing.T) {
		accounts, groups := balancedLedger()
		assert.Empty(t, ValidateRelationships(NewSnapshot(Scope{}, accounts, groups)))
	})

	t.Run("entry pointing at missing account is an error", func(t *testing.T) {
		accounts, groups := balancedLedger()
		groups[0].Entries[0].Account = RefID("ghost-1")
		issues := ValidateRelationships(NewSnapshot(Scope{}, accounts, groups))

		dangling := issuesOfKind(issues, KindDanglingAccountReference)
		require.Len(t, dangling, 1)
		rel := dangling[0].(RelationshipIssue)
		assert.Equal(t, SeverityError, rel.Severity)
		assert.Equal(t, "ghost-1", rel.ReferenceID)
		assert.Equal(t, "tx-1", rel.TransactionID)
		assert.Equal(t, 1, *rel.EntrySequence)
		assert.Equal(t, "entry references a non-existent account", rel.Description)
	})

	t.Run("entry pointing at inactive account is an error", func(t *testing.T) {
		accounts, groups := balancedLedger()
		accounts[0].IsActive = boolPtr(false)
		issues := ValidateRelationships(NewSnapshot(Scope{}, accounts, groups))

		dangling := issuesOfKind(issues, KindDanglingAccountReference)
		require.Len(t, dangling, 1)
		assert.Equal(t, "entry references an inactive account", dangling[0].Header().Description)
	})

	t.Run("embedded account object resolves by id", func(t *testing.T) {
		accounts, groups := balancedLedger()
		groups[0].Entries[0].Account = RefAccount(accounts[0])
		assert.Empty(t, ValidateRelationships(NewSnapshot(Scope{}, accounts, groups)))
	})

	t.Run("missing funding source is a warning", func(t *testing.T) {
		accounts, groups := balancedLedger()
		groups[0].Entries[1].SourceTransactionID = "tx-404"
		issues := ValidateRelationships(NewSnapshot(Scope{}, accounts, groups))

		require.Len(t, issues, 1)
		assert.Equal(t, KindDanglingFundingReference, issues[0].Header().Kind)
		assert.Equal(t, SeverityWarning, issues[0].Header().Severity)
	})

	t.Run("unreferenced active account is one orphan info", func(t *testing.T) {
		accounts, groups := balancedLedger()
		accounts = append(accounts, validAccount("spare", "1999", "Spare", AccountTypeAsset))
		retired := validAccount("retired", "1998", "Retired", AccountTypeAsset)
		retired.IsActive = boolPtr(false)
		accounts = append(accounts, retired)
		issues := ValidateRelationships(NewSnapshot(Scope{}, accounts, groups))

		require.Len(t, issues, 1)
		assert.Equal(t, KindOrphanAccount, issues[0].Header().Kind)
		assert.Equal(t, SeverityInfo, issues[0].Header().Severity)
		assert.Equal(t, "spare", issues[0].Header().EntityID)
	})
}
