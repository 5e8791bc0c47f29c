package snapshotfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pharmapos/backend/internal/domain/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonSnapshot = `{
  "scope": {"ownerId": "owner-a"},
  "accounts": [
    {"id": "cash", "ownerId": "owner-a", "code": "1000", "name": "Cash", "accountType": "asset"},
    {"id": "sales", "ownerId": "owner-a", "code": "4000", "name": "Sales", "accountType": "revenue"},
    {"id": "other", "ownerId": "owner-b", "code": "1000", "name": "Cash", "accountType": "asset"}
  ],
  "transactionGroups": [
    {
      "id": "t1", "ownerId": "owner-a", "groupNumber": "TX-1", "status": "confirmed", "totalAmount": "50",
      "entries": [
        {"accountId": "cash", "debitAmount": "50", "creditAmount": "0", "sequence": 1},
        {"accountId": {"id": "sales", "ownerId": "owner-a", "code": "4000", "name": "Sales", "accountType": "revenue"}, "debitAmount": "0", "creditAmount": "50", "sequence": 2}
      ]
    },
    {"id": "t2", "ownerId": "owner-a", "groupNumber": "TX-2", "totalAmount": "20"}
  ],
  "entries": [
    {"transactionId": "t2", "accountId": "sales", "debitAmount": "0", "creditAmount": "20", "sequence": 2},
    {"transactionId": "t2", "accountId": "cash", "debitAmount": "20", "creditAmount": "0", "sequence": 1}
  ]
}`

const tomlSnapshot = `
[scope]
ownerId = "owner-a"

[[accounts]]
id = "cash"
ownerId = "owner-a"
code = "1000"
name = "Cash"
accountType = "asset"

[[accounts]]
id = "sales"
ownerId = "owner-a"
code = "4000"
name = "Sales"
accountType = "revenue"

[[transactionGroups]]
id = "t1"
ownerId = "owner-a"
groupNumber = "TX-1"
status = "draft"
totalAmount = "75.50"

[[entries]]
transactionId = "t1"
accountId = "cash"
debitAmount = "75.50"
creditAmount = "0"
sequence = 1

[[entries]]
transactionId = "t1"
accountId = { id = "sales", ownerId = "owner-a", code = "4000", name = "Sales", accountType = "revenue" }
debitAmount = "0"
creditAmount = "75.50"
sequence = 2
`

func TestFormatFromPath(t *testing.T) {
	f, err := FormatFromPath("ledger.JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = FormatFromPath("/tmp/export.toml")
	require.NoError(t, err)
	assert.Equal(t, FormatTOML, f)

	_, err = FormatFromPath("ledger.yaml")
	assert.ErrorContains(t, err, "unsupported snapshot file")
}

func TestDecode_JSON(t *testing.T) {
	file, err := Decode(strings.NewReader(jsonSnapshot), FormatJSON)
	require.NoError(t, err)
	assert.Len(t, file.Accounts, 3)
	assert.Len(t, file.TransactionGroups, 2)
	assert.Len(t, file.Entries, 2)

	snap, err := file.Snapshot(context.Background(), ledger.Scope{})
	require.NoError(t, err)
	assert.Equal(t, "owner-a", snap.Scope.OwnerID)
	assert.Len(t, snap.Accounts, 2, "owner-b account is outside the file scope")
	require.Len(t, snap.Transactions, 2)

	byID := map[string]ledger.TransactionGroup{}
	for _, g := range snap.Transactions {
		byID[g.ID] = g
	}

	t1 := byID["t1"]
	assert.Equal(t, ledger.StorageFormatEmbedded, t1.StorageFormat)
	require.Len(t, t1.Entries, 2)
	assert.Equal(t, "sales", t1.Entries[1].AccountID())
	require.NotNil(t, t1.Entries[1].Account.Resolved)
	assert.Equal(t, "Sales", t1.Entries[1].Account.Resolved.Name)
	assert.True(t, t1.IsBalanced())

	t2 := byID["t2"]
	assert.Equal(t, ledger.StorageFormatStandalone, t2.StorageFormat)
	require.Len(t, t2.Entries, 2)
	assert.Equal(t, "cash", t2.Entries[0].AccountID(), "standalone entries are ordered by sequence")
	assert.Equal(t, "t2", t2.Entries[0].TransactionID)
	assert.True(t, t2.IsBalanced())
}

func TestDecode_TOML(t *testing.T) {
	file, err := Decode(strings.NewReader(tomlSnapshot), FormatTOML)
	require.NoError(t, err)
	assert.Equal(t, "owner-a", file.Scope.OwnerID)
	require.Len(t, file.Accounts, 2)
	assert.Equal(t, ledger.AccountTypeRevenue, file.Accounts[1].AccountType)
	require.Len(t, file.Entries, 2)
	assert.Equal(t, "cash", file.Entries[0].AccountID())
	assert.Equal(t, "sales", file.Entries[1].AccountID())
	require.NotNil(t, file.Entries[1].Account.Resolved)
	assert.Equal(t, "75.5", file.Entries[0].DebitAmount.String())

	snap, err := file.Snapshot(context.Background(), ledger.Scope{OwnerID: "owner-a"})
	require.NoError(t, err)
	require.Len(t, snap.Transactions, 1)
	assert.Equal(t, ledger.StorageFormatStandalone, snap.Transactions[0].StorageFormat)
	assert.True(t, snap.Transactions[0].IsBalanced())
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode(strings.NewReader("{not json"), FormatJSON)
	assert.ErrorContains(t, err, "decode json snapshot")

	_, err = Decode(strings.NewReader("accounts = ["), FormatTOML)
	assert.ErrorContains(t, err, "decode toml snapshot")

	_, err = Decode(strings.NewReader(""), Format("yaml"))
	assert.ErrorContains(t, err, "unsupported snapshot format")
}

func TestRead(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "ledger.json")
	require.NoError(t, os.WriteFile(path, []byte(jsonSnapshot), 0o600))
	file, err := Read(path)
	require.NoError(t, err)
	assert.Len(t, file.Accounts, 3)

	_, err = Read(filepath.Join(dir, "missing.toml"))
	assert.ErrorContains(t, err, "open snapshot file")

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("[[accounts]\n"), 0o600))
	_, err = Read(bad)
	assert.ErrorContains(t, err, "bad.toml")
}

func TestSnapshot_ExplicitScopeOverridesFile(t *testing.T) {
	file, err := Decode(strings.NewReader(jsonSnapshot), FormatJSON)
	require.NoError(t, err)

	snap, err := file.Snapshot(context.Background(), ledger.Scope{OwnerID: "owner-b"})
	require.NoError(t, err)
	assert.Len(t, snap.Accounts, 1)
	assert.Empty(t, snap.Transactions)
}
