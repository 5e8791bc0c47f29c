package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/pharmapos/backend/internal/domain/ledger"
	"github.com/pharmapos/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// ErrEmptyOwner is returned when a load is attempted without an owner scope
var ErrEmptyOwner = errors.New("owner id is required to load a ledger snapshot")

// GormSnapshotLoader reads a scope's ledger from the database and resolves both entry storage shapes
type GormSnapshotLoader struct {
	db *gorm.DB
}

// NewGormSnapshotLoader creates a new GormSnapshotLoader
func NewGormSnapshotLoader(db *gorm.DB) *GormSnapshotLoader {
	return &GormSnapshotLoader{db: db}
}

// WithTx returns a new loader reading inside the given transaction
func (l *GormSnapshotLoader) WithTx(tx *gorm.DB) *GormSnapshotLoader {
	return &GormSnapshotLoader{db: tx}
}

// ListAccounts returns every account in scope, deleted and inactive ones included
func (l *GormSnapshotLoader) ListAccounts(ctx context.Context, scope ledger.Scope) ([]ledger.Account, error) {
	if scope.OwnerID == "" {
		return nil, ErrEmptyOwner
	}
	var rows []models.AccountModel
	if err := scoped(l.db.WithContext(ctx), scope).Order("code ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	accounts := make([]ledger.Account, len(rows))
	for i := range rows {
		accounts[i] = rows[i].ToDomain()
	}
	return accounts, nil
}

// ListTransactionGroups returns every group in scope with entries attached from either shape
func (l *GormSnapshotLoader) ListTransactionGroups(ctx context.Context, scope ledger.Scope) ([]ledger.TransactionGroup, error) {
	if scope.OwnerID == "" {
		return nil, ErrEmptyOwner
	}
	var rows []models.TransactionGroupModel
	if err := scoped(l.db.WithContext(ctx), scope).Order("transaction_date ASC, group_number ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load transaction groups: %w", err)
	}
	if len(rows) == 0 {
		return []ledger.TransactionGroup{}, nil
	}

	groups := make([]ledger.TransactionGroup, len(rows))
	var standaloneIDs []string
	for i := range rows {
		groups[i] = rows[i].ToDomain()
		if len(groups[i].Entries) == 0 {
			standaloneIDs = append(standaloneIDs, groups[i].ID)
		}
	}

	standalone, err := l.standaloneEntries(ctx, standaloneIDs)
	if err != nil {
		return nil, err
	}
	return ledger.Normalize(groups, standalone), nil
}

func (l *GormSnapshotLoader) standaloneEntries(ctx context.Context, transactionIDs []string) ([]ledger.Entry, error) {
	if len(transactionIDs) == 0 {
		return nil, nil
	}
	var rows []models.EntryModel
	if err := l.db.WithContext(ctx).
		Where("transaction_id IN ?", transactionIDs).
		Order("transaction_id ASC, sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	entries := make([]ledger.Entry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries, nil
}

// ProbeConsistency reports standalone entry rows that point at accounts in scope
// but whose transaction group no longer exists.
func (l *GormSnapshotLoader) ProbeConsistency(ctx context.Context, scope ledger.Scope, snapshot *ledger.Snapshot) ([]ledger.Issue, error) {
	if scope.OwnerID == "" {
		return nil, ErrEmptyOwner
	}
	groupIDs := scoped(l.db.Model(&models.TransactionGroupModel{}), scope).Select("id")
	accountIDs := scoped(l.db.Model(&models.AccountModel{}), scope).Select("id")

	var detached []struct {
		TransactionID string
		Entries       int
	}
	err := l.db.WithContext(ctx).
		Model(&models.EntryModel{}).
		Select("transaction_id, COUNT(*) AS entries").
		Where("account_id IN (?)", accountIDs).
		Where("transaction_id NOT IN (?)", groupIDs).
		Group("transaction_id").
		Order("transaction_id ASC").
		Scan(&detached).Error
	if err != nil {
		return nil, fmt.Errorf("failed to probe standalone entries: %w", err)
	}

	issues := make([]ledger.Issue, 0, len(detached))
	for _, d := range detached {
		issues = append(issues, ledger.CompatibilityIssue{
			IssueHeader: ledger.IssueHeader{
				Kind:           ledger.KindDetachedStandaloneEntries,
				Severity:       ledger.SeverityWarning,
				EntityID:       d.TransactionID,
				EntityName:     d.TransactionID,
				Description:    fmt.Sprintf("%d standalone entr%s reference missing transaction %s", d.Entries, plural(d.Entries), d.TransactionID),
				Recommendation: "restore the transaction group or remove the detached entries",
			},
			Formats: []ledger.StorageFormat{ledger.StorageFormatStandalone},
		})
	}
	return issues, nil
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

var (
	_ ledger.SnapshotLoader   = (*GormSnapshotLoader)(nil)
	_ ledger.ConsistencyProbe = (*GormSnapshotLoader)(nil)
)
