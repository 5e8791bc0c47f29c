package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/pharmapos/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingLoader struct {
	err error
}

func (l failingLoader) ListAccounts(context.Context, Scope) ([]Account, error) {
	return nil, l.err
}

func (l failingLoader) ListTransactionGroups(context.Context, Scope) ([]TransactionGroup, error) {
	return nil, l.err
}

func TestScopeMatches(t *testing.T) {
	assert.True(t, Scope{}.Matches("anyone", "any-org"))
	assert.True(t, Scope{OwnerID: "o1"}.Matches("o1", "org"))
	assert.False(t, Scope{OwnerID: "o1"}.Matches("o2", ""))
	assert.True(t, Scope{OwnerID: "o1", OrganizationID: "org"}.Matches("o1", "org"))
	assert.False(t, Scope{OwnerID: "o1", OrganizationID: "org"}.Matches("o1", ""))
	assert.Equal(t, "o1/org", Scope{OwnerID: "o1", OrganizationID: "org"}.String())
	assert.Equal(t, "o1", Scope{OwnerID: "o1"}.String())
}

func TestScopeKey(t *testing.T) {
	t.Run("slash inside an id does not collide", func(t *testing.T) {
		nested := Scope{OwnerID: "a/b"}
		split := Scope{OwnerID: "a", OrganizationID: "b"}
		assert.Equal(t, "a%2Fb", nested.String())
		assert.Equal(t, "a/b", split.String())
		assert.NotEqual(t, nested.String(), split.String())
	})

	t.Run("keys parse back to their scope", func(t *testing.T) {
		for _, scope := range []Scope{
			{OwnerID: "o1"},
			{OwnerID: "o1", OrganizationID: "org"},
			{OwnerID: "a/b"},
			{OwnerID: "a%b", OrganizationID: "c/d"},
		} {
			parsed, ok := ParseScopeKey(scope.String())
			require.True(t, ok, scope)
			assert.Equal(t, scope, parsed)
		}
	})

	t.Run("non canonical keys are rejected", func(t *testing.T) {
		for _, key := range []string{"", "/org", "o1/", "o1/org/extra", "o1%zz", "o%31"} {
			_, ok := ParseScopeKey(key)
			assert.False(t, ok, key)
		}
	})
}

func TestLoadSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("static loader filters by scope", func(t *testing.T) {
		accounts, groups := balancedLedger()
		other := validAccount("x", "1", "Other", AccountTypeAsset)
		other.OwnerID = "owner-2"
		accounts = append(accounts, other)

		snapshot, err := LoadSnapshot(ctx, NewStaticSnapshotLoader(accounts, groups), Scope{OwnerID: testOwner})
		require.NoError(t, err)
		assert.Len(t, snapshot.Accounts, 2)
		assert.Len(t, snapshot.Transactions, 1)
		assert.Equal(t, 2, snapshot.EntryCount())

		a, ok := snapshot.Account("sales")
		require.True(t, ok)
		assert.Equal(t, "Sales", a.Name)
		_, ok = snapshot.Account("x")
		assert.False(t, ok)
	})

	t.Run("loader failure surfaces the underlying message", func(t *testing.T) {
		_, err := LoadSnapshot(ctx, failingLoader{err: errors.New("connection refused")}, Scope{OwnerID: "o"})
		require.Error(t, err)
		assert.Equal(t, "connection refused", err.Error())
		assert.True(t, errors.Is(err, shared.ErrSnapshotUnavailable))

		var loadErr *SnapshotLoadError
		require.True(t, errors.As(err, &loadErr))
		assert.Equal(t, "o", loadErr.Scope.OwnerID)
	})

	t.Run("nil loader fails closed", func(t *testing.T) {
		_, err := LoadSnapshot(ctx, nil, Scope{})
		assert.True(t, errors.Is(err, shared.ErrSnapshotUnavailable))
	})
}

func TestNormalize(t *testing.T) {
	embedded := TransactionGroup{ID: "e1", Entries: []Entry{credit("sales", 5, 2), debit("cash", 5, 1)}}
	standalone := TransactionGroup{ID: "s1"}
	empty := TransactionGroup{ID: "s2"}
	rows := []Entry{
		{TransactionID: "s1", Account: RefID("sales"), CreditAmount: dec(7), Sequence: 2},
		{TransactionID: "s1", Account: RefID("cash"), DebitAmount: dec(7), Sequence: 1},
		{TransactionID: "e1", Account: RefID("ignored"), Sequence: 9},
	}

	out := Normalize([]TransactionGroup{embedded, standalone, empty}, rows)
	require.Len(t, out, 3)

	assert.Equal(t, StorageFormatEmbedded, out[0].StorageFormat)
	require.Len(t, out[0].Entries, 2)
	assert.Equal(t, "cash", out[0].Entries[0].AccountID())
	assert.Equal(t, "e1", out[0].Entries[0].TransactionID)

	assert.Equal(t, StorageFormatStandalone, out[1].StorageFormat)
	require.Len(t, out[1].Entries, 2)
	assert.Equal(t, 1, out[1].Entries[0].Sequence)

	assert.Equal(t, StorageFormatStandalone, out[2].StorageFormat)
	assert.Empty(t, out[2].Entries)

	// input is left untouched
	assert.Equal(t, "sales", embedded.Entries[0].AccountID())
}

func TestAccountRefJSON(t *testing.T) {
	t.Run("decodes a bare id", func(t *testing.T) {
		var e Entry
		require.NoError(t, json.Unmarshal([]byte(`{"accountId":"cash","debitAmount":"10","creditAmount":"0","sequence":1}`), &e))
		assert.Equal(t, "cash", e.AccountID())
		assert.Nil(t, e.Account.Resolved)
		assert.True(t, e.DebitAmount.Equal(dec(10)))
	})

	t.Run("decodes an embedded account", func(t *testing.T) {
		var e Entry
		require.NoError(t, json.Unmarshal([]byte(`{"accountId":{"id":"cash","code":"1001","name":"Cash","accountType":"asset"},"sequence":1}`), &e))
		assert.Equal(t, "cash", e.AccountID())
		require.NotNil(t, e.Account.Resolved)
		assert.Equal(t, "1001", e.Account.Resolved.Code)
	})

	t.Run("null is an empty reference", func(t *testing.T) {
		var e Entry
		require.NoError(t, json.Unmarshal([]byte(`{"accountId":null}`), &e))
		assert.True(t, e.Account.IsZero())
	})

	t.Run("rejects numbers", func(t *testing.T) {
		var e Entry
		assert.Error(t, json.Unmarshal([]byte(`{"accountId":12}`), &e))
	})

	t.Run("encodes in the shape it was given", func(t *testing.T) {
		data, err := json.Marshal(RefID("cash"))
		require.NoError(t, err)
		assert.JSONEq(t, `"cash"`, string(data))

		data, err = json.Marshal(RefAccount(Account{ID: "cash", Code: "1001"}))
		require.NoError(t, err)
		assert.Contains(t, string(data), `"code":"1001"`)
	})

	t.Run("decodes TOML table form", func(t *testing.T) {
		var ref AccountRef
		require.NoError(t, ref.UnmarshalTOML(map[string]any{"id": "bank", "name": "Bank"}))
		assert.Equal(t, "bank", ref.ID)
		assert.Equal(t, "Bank", ref.Resolved.Name)

		require.NoError(t, ref.UnmarshalTOML("cash"))
		assert.Equal(t, "cash", ref.ID)
		assert.Error(t, ref.UnmarshalTOML(3))
	})
}

func TestAccountDefaults(t *testing.T) {
	a := Account{AccountType: AccountTypeExpense}
	assert.True(t, a.Active())
	assert.Equal(t, NormalBalanceDebit, a.EffectiveNormalBalance())
	assert.Equal(t, NormalBalanceCredit, AccountTypeEquity.DefaultNormalBalance())
	assert.Equal(t, NormalBalanceDebit, AccountTypeAsset.DefaultNormalBalance())

	a.IsActive = boolPtr(false)
	assert.False(t, a.Active())
}
