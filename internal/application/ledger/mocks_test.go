package ledger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pharmapos/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockAccountRepository is a mock implementation of ledger.AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) FindByID(ctx context.Context, scope ledger.Scope, id string) (*ledger.Account, error) {
	args := m.Called(ctx, scope, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Account), args.Error(1)
}

func (m *MockAccountRepository) SoftDelete(ctx context.Context, scope ledger.Scope, id string, at time.Time) error {
	args := m.Called(ctx, scope, id, at)
	return args.Error(0)
}

func (m *MockAccountRepository) Deactivate(ctx context.Context, scope ledger.Scope, id string) error {
	args := m.Called(ctx, scope, id)
	return args.Error(0)
}

// MockTransactionGroupRepository is a mock implementation of ledger.TransactionGroupRepository
type MockTransactionGroupRepository struct {
	mock.Mock
}

func (m *MockTransactionGroupRepository) FindByID(ctx context.Context, scope ledger.Scope, id string) (*ledger.TransactionGroup, error) {
	args := m.Called(ctx, scope, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.TransactionGroup), args.Error(1)
}

func (m *MockTransactionGroupRepository) UpdateStatus(ctx context.Context, scope ledger.Scope, id string, from, to ledger.TransactionStatus) error {
	args := m.Called(ctx, scope, id, from, to)
	return args.Error(0)
}

// MockReportArchive is a mock implementation of ReportArchive
type MockReportArchive struct {
	mock.Mock
}

func (m *MockReportArchive) Put(ctx context.Context, doc *ledger.IntegrityDocument) (string, error) {
	args := m.Called(ctx, doc)
	return args.String(0), args.Error(1)
}

func (m *MockReportArchive) DownloadURL(ctx context.Context, key string) (string, time.Time, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

// countingLoader counts loads and can be made to fail
type countingLoader struct {
	mu    sync.Mutex
	inner ledger.SnapshotLoader
	loads int
	err   error
}

func (l *countingLoader) ListAccounts(ctx context.Context, scope ledger.Scope) ([]ledger.Account, error) {
	l.mu.Lock()
	l.loads++
	err := l.err
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return l.inner.ListAccounts(ctx, scope)
}

func (l *countingLoader) ListTransactionGroups(ctx context.Context, scope ledger.Scope) ([]ledger.TransactionGroup, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.inner.ListTransactionGroups(ctx, scope)
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads
}

// failingCache fails every operation
type failingCache struct{}

var errCacheDown = errors.New("cache down")

func (failingCache) Get(context.Context, string) (*ledger.CompatibilityReport, bool, error) {
	return nil, false, errCacheDown
}
func (failingCache) Set(context.Context, string, *ledger.CompatibilityReport) error { return errCacheDown }
func (failingCache) Delete(context.Context, string) error                           { return errCacheDown }
func (failingCache) Clear(context.Context) error                                    { return errCacheDown }

var ownerA = ledger.Scope{OwnerID: "owner-a"}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func entry(account string, debit, credit string, seq int) ledger.Entry {
	return ledger.Entry{
		Account:      ledger.RefID(account),
		DebitAmount:  amount(debit),
		CreditAmount: amount(credit),
		Sequence:     seq,
	}
}

func funded(e ledger.Entry, source string) ledger.Entry {
	e.SourceTransactionID = source
	return e
}

// pharmacyLedger is a small balanced ledger: cash and sales used by a confirmed sale,
// stock used by a draft purchase paid from the sale, and an unused fees account.
func pharmacyLedger() *ledger.StaticSnapshotLoader {
	accounts := []ledger.Account{
		{ID: "cash", OwnerID: "owner-a", Code: "1000", Name: "Cash", AccountType: ledger.AccountTypeAsset},
		{ID: "stock", OwnerID: "owner-a", Code: "1200", Name: "Stock", AccountType: ledger.AccountTypeAsset},
		{ID: "sales", OwnerID: "owner-a", Code: "4000", Name: "Sales", AccountType: ledger.AccountTypeRevenue},
		{ID: "fees", OwnerID: "owner-a", Code: "6000", Name: "Fees", AccountType: ledger.AccountTypeExpense},
	}
	saleDate := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	purchaseDate := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	groups := []ledger.TransactionGroup{
		{
			ID: "sale-1", OwnerID: "owner-a", GroupNumber: "S-1", Status: ledger.TransactionStatusConfirmed,
			TransactionDate: &saleDate, TotalAmount: amount("30"),
			Entries: []ledger.Entry{entry("cash", "30", "0", 1), entry("sales", "0", "30", 2)},
		},
		{
			ID: "purchase-1", OwnerID: "owner-a", GroupNumber: "P-1", Status: ledger.TransactionStatusDraft,
			TransactionDate: &purchaseDate, TotalAmount: amount("12"),
			Entries: []ledger.Entry{entry("stock", "12", "0", 1), funded(entry("cash", "0", "12", 2), "sale-1")},
		},
	}
	return ledger.NewStaticSnapshotLoader(accounts, ledger.Normalize(groups, nil))
}
