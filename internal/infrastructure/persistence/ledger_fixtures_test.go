package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/pharmapos/backend/internal/domain/ledger"
	"github.com/pharmapos/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	ownerA = "owner-a"
	ownerB = "owner-b"
)

// newLedgerDB creates an in-memory SQLite database with the ledger tables
func newLedgerDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every new connection would see its own empty in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllLedgerModels()...))
	return db
}

func amount(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func ptrAmount(v string) *decimal.Decimal {
	d := amount(v)
	return &d
}

func day(d int) *time.Time {
	t := time.Date(2026, 2, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// seedLedger writes a small ledger for ownerA using both entry shapes, and a
// single account for ownerB. It returns the ownerA scope.
//
//	cash, sales           active accounts
//	retired               inactive account
//	tx-embedded           confirmed, entries inline
//	tx-standalone         draft, entries in ledger_entries, funded by tx-embedded
//	ghost-tx              standalone entries with no group
func seedLedger(t *testing.T, db *gorm.DB) ledger.Scope {
	t.Helper()
	ctx := context.Background()
	inactive := false

	accounts := NewGormAccountRepository(db)
	for _, a := range []ledger.Account{
		{ID: "cash", OwnerID: ownerA, Code: "1001", Name: "Cash", AccountType: ledger.AccountTypeAsset, Balance: ptrAmount("500")},
		{ID: "sales", OwnerID: ownerA, Code: "4001", Name: "Sales", AccountType: ledger.AccountTypeRevenue, NormalBalance: ledger.NormalBalanceCredit, InitialBalance: ptrAmount("0")},
		{ID: "retired", OwnerID: ownerA, Code: "9001", Name: "Retired", AccountType: ledger.AccountTypeExpense, IsActive: &inactive},
		{ID: "other-cash", OwnerID: ownerB, Code: "1001", Name: "Cash", AccountType: ledger.AccountTypeAsset},
	} {
		a := a
		require.NoError(t, accounts.Create(ctx, &a))
	}

	groups := NewGormTransactionGroupRepository(db)
	embedded := ledger.TransactionGroup{
		ID: "tx-embedded", OwnerID: ownerA, GroupNumber: "TX-001", TransactionDate: day(1),
		Status: ledger.TransactionStatusConfirmed, TotalAmount: amount("100"), FundingType: "capital",
		StorageFormat: ledger.StorageFormatEmbedded,
		Entries: []ledger.Entry{
			{Account: ledger.RefID("sales"), CreditAmount: amount("100"), Sequence: 2},
			{Account: ledger.RefID("cash"), DebitAmount: amount("100"), Sequence: 1},
		},
	}
	standalone := ledger.TransactionGroup{
		ID: "tx-standalone", OwnerID: ownerA, GroupNumber: "TX-002", TransactionDate: day(2),
		Status: ledger.TransactionStatusDraft, TotalAmount: amount("40"),
		StorageFormat: ledger.StorageFormatStandalone,
		Entries: []ledger.Entry{
			{ID: "e-2", Account: ledger.RefID("cash"), CreditAmount: amount("40"), Sequence: 2},
			{ID: "e-1", Account: ledger.RefID("sales"), DebitAmount: amount("40"), Sequence: 1, SourceTransactionID: "tx-embedded", FundingPath: []string{"tx-embedded"}},
		},
	}
	require.NoError(t, groups.Create(ctx, &embedded))
	require.NoError(t, groups.Create(ctx, &standalone))

	require.NoError(t, db.Create([]*models.EntryModel{
		models.EntryModelFromDomain(&ledger.Entry{ID: "g-1", TransactionID: "ghost-tx", Account: ledger.RefID("cash"), DebitAmount: amount("5"), Sequence: 1}),
		models.EntryModelFromDomain(&ledger.Entry{ID: "g-2", TransactionID: "ghost-tx", Account: ledger.RefID("sales"), CreditAmount: amount("5"), Sequence: 2}),
		models.EntryModelFromDomain(&ledger.Entry{ID: "o-1", TransactionID: "ghost-b", Account: ledger.RefID("other-cash"), DebitAmount: amount("1"), Sequence: 1}),
	}).Error)

	return ledger.Scope{OwnerID: ownerA}
}
