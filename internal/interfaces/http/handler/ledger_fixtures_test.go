package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	ledgerapp "github.com/pharmapos/backend/internal/application/ledger"
	"github.com/pharmapos/backend/internal/domain/ledger"
	"github.com/pharmapos/backend/internal/domain/shared"
	"github.com/pharmapos/backend/internal/infrastructure/cache"
	"github.com/pharmapos/backend/internal/interfaces/http/dto"
	"github.com/pharmapos/backend/internal/interfaces/http/middleware"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// memoryLedger is a mutable in-memory ledger that serves snapshots and repository writes
type memoryLedger struct {
	mu       sync.Mutex
	accounts []ledger.Account
	groups   []ledger.TransactionGroup
	loadErr  error
}

func (m *memoryLedger) ListAccounts(ctx context.Context, scope ledger.Scope) ([]ledger.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return ledger.NewStaticSnapshotLoader(m.accounts, nil).ListAccounts(ctx, scope)
}

func (m *memoryLedger) ListTransactionGroups(ctx context.Context, scope ledger.Scope) ([]ledger.TransactionGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return ledger.NewStaticSnapshotLoader(nil, m.groups).ListTransactionGroups(ctx, scope)
}

type memoryAccounts struct{ *memoryLedger }

func (m memoryAccounts) find(scope ledger.Scope, id string) (*ledger.Account, error) {
	for i := range m.accounts {
		a := &m.accounts[i]
		if a.ID == id && scope.Matches(a.OwnerID, a.OrganizationID) {
			return a, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m memoryAccounts) FindByID(_ context.Context, scope ledger.Scope, id string) (*ledger.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.find(scope, id)
	if err != nil {
		return nil, err
	}
	cp := *a
	return &cp, nil
}

func (m memoryAccounts) SoftDelete(_ context.Context, scope ledger.Scope, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.find(scope, id)
	if err != nil {
		return err
	}
	inactive := false
	a.IsActive = &inactive
	a.DeletedAt = &at
	return nil
}

func (m memoryAccounts) Deactivate(_ context.Context, scope ledger.Scope, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.find(scope, id)
	if err != nil {
		return err
	}
	inactive := false
	a.IsActive = &inactive
	return nil
}

type memoryGroups struct{ *memoryLedger }

func (m memoryGroups) FindByID(_ context.Context, scope ledger.Scope, id string) (*ledger.TransactionGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.groups {
		if g.ID == id && scope.Matches(g.OwnerID, g.OrganizationID) {
			cp := g
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m memoryGroups) UpdateStatus(_ context.Context, scope ledger.Scope, id string, from, to ledger.TransactionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.groups {
		g := &m.groups[i]
		if g.ID != id || !scope.Matches(g.OwnerID, g.OrganizationID) {
			continue
		}
		current := g.Status
		if current == "" {
			current = ledger.TransactionStatusDraft
		}
		if current != from {
			return shared.ErrConcurrencyConflict
		}
		g.Status = to
		return nil
	}
	return shared.ErrNotFound
}

func entryFor(account, debit, credit string, seq int) ledger.Entry {
	return ledger.Entry{
		Account:      ledger.RefID(account),
		DebitAmount:  decimal.RequireFromString(debit),
		CreditAmount: decimal.RequireFromString(credit),
		Sequence:     seq,
	}
}

// newPharmacyLedger holds a confirmed sale into cash, a draft stock purchase paid
// from that sale, and an unused fees account. Every record belongs to owner-a/branch-1.
func newPharmacyLedger() *memoryLedger {
	account := func(id, code, name string, t ledger.AccountType) ledger.Account {
		return ledger.Account{ID: id, OwnerID: "owner-a", OrganizationID: "branch-1", Code: code, Name: name, AccountType: t}
	}
	saleDate := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	purchaseDate := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)
	payment := entryFor("cash", "0", "12", 2)
	payment.SourceTransactionID = "sale-1"

	groups := []ledger.TransactionGroup{
		{
			ID: "sale-1", OwnerID: "owner-a", OrganizationID: "branch-1", GroupNumber: "S-1",
			Status: ledger.TransactionStatusConfirmed, TransactionDate: &saleDate, TotalAmount: decimal.NewFromInt(30),
			Entries: []ledger.Entry{entryFor("cash", "30", "0", 1), entryFor("sales", "0", "30", 2)},
		},
		{
			ID: "purchase-1", OwnerID: "owner-a", OrganizationID: "branch-1", GroupNumber: "P-1",
			Status: ledger.TransactionStatusDraft, TransactionDate: &purchaseDate, TotalAmount: decimal.NewFromInt(12),
			Entries: []ledger.Entry{entryFor("stock", "12", "0", 1), payment},
		},
	}
	return &memoryLedger{
		accounts: []ledger.Account{
			account("cash", "1000", "Cash", ledger.AccountTypeAsset),
			account("stock", "1200", "Stock", ledger.AccountTypeAsset),
			account("sales", "4000", "Sales", ledger.AccountTypeRevenue),
			account("fees", "6000", "Fees", ledger.AccountTypeExpense),
		},
		groups: ledger.Normalize(groups, nil),
	}
}

type testServer struct {
	engine *gin.Engine
	ledger *memoryLedger
	cache  *cache.InMemoryCompatibilityCache
}

// newTestServer wires every ledger handler over an in-memory ledger.
// Callers identify themselves with the X-Owner-ID and X-Organization-ID headers.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := newPharmacyLedger()
	memCache := cache.NewInMemoryCompatibilityCache(time.Minute)
	t.Cleanup(func() { _ = memCache.Close() })

	engine := ledger.NewIntegrityService(mem, ledger.WithParallelValidators(false))
	compat := ledgerapp.NewCompatibilityService(memCache, nil, ledgerapp.WithSnapshotLoader(mem))
	integrityHandler := NewIntegrityHandler(ledgerapp.NewIntegrityService(engine))
	compatHandler := NewCompatibilityHandler(compat)
	fundingHandler := NewFundingHandler(ledgerapp.NewFundingService(mem, nil))
	accountHandler := NewAccountHandler(ledgerapp.NewAccountService(memoryAccounts{mem}, mem,
		ledgerapp.WithAccountCompatibilityService(compat)))
	transactionHandler := NewTransactionHandler(ledgerapp.NewTransactionService(memoryGroups{mem},
		ledgerapp.WithTransactionCompatibilityService(compat)))

	r := gin.New()
	r.UseRawPath = true
	g := r.Group("/api/v1/ledger", middleware.LedgerScope(middleware.ScopeConfig{AllowHeaders: true}))
	g.POST("/integrity/check", integrityHandler.CheckIntegrity)
	g.GET("/integrity/report", integrityHandler.GetReport)
	g.GET("/compatibility", compatHandler.GetCompatibility)
	g.DELETE("/compatibility/cache", compatHandler.InvalidateAll)
	g.DELETE("/compatibility/cache/:key", compatHandler.Invalidate)
	g.GET("/funding/analysis", fundingHandler.AnalyzeFunding)
	g.GET("/funding/lineage/:id", fundingHandler.GetLineage)
	g.GET("/accounts/:id/deletion-check", accountHandler.CheckDeletion)
	g.DELETE("/accounts/:id", accountHandler.DeleteAccount)
	g.POST("/accounts/:id/deactivate", accountHandler.DeactivateAccount)
	g.POST("/transactions/:id/confirm", transactionHandler.Confirm)
	g.POST("/transactions/:id/cancel", transactionHandler.Cancel)
	g.POST("/transactions/:id/reopen", transactionHandler.Reopen)

	return &testServer{engine: r, ledger: mem, cache: memCache}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
}

// do sends a request as owner-a, optionally pinned to an organization
func (s *testServer) do(t *testing.T, method, path, organizationID string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, ok := body.(string)
		if !ok {
			b, err := json.Marshal(body)
			require.NoError(t, err)
			raw = string(b)
		}
		reader = bytes.NewBufferString(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(middleware.OwnerIDHeader, "owner-a")
	if organizationID != "" {
		req.Header.Set(middleware.OrganizationIDHeader, organizationID)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

var errDatabaseDown = errors.New("database is down")
