package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/pharmapos/backend/internal/domain/ledger"
	"github.com/pharmapos/backend/internal/domain/shared"
	"github.com/pharmapos/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormTransactionGroupRepository implements ledger.TransactionGroupRepository using GORM
type GormTransactionGroupRepository struct {
	db *gorm.DB
}

// NewGormTransactionGroupRepository creates a new GormTransactionGroupRepository
func NewGormTransactionGroupRepository(db *gorm.DB) *GormTransactionGroupRepository {
	return &GormTransactionGroupRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormTransactionGroupRepository) WithTx(tx *gorm.DB) *GormTransactionGroupRepository {
	return &GormTransactionGroupRepository{db: tx}
}

// FindByID finds a transaction group by id inside the scope, with its entries resolved
func (r *GormTransactionGroupRepository) FindByID(ctx context.Context, scope ledger.Scope, id string) (*ledger.TransactionGroup, error) {
	if scope.OwnerID == "" {
		return nil, ErrEmptyOwner
	}
	var model models.TransactionGroupModel
	if err := scoped(r.db.WithContext(ctx), scope).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	group := model.ToDomain()
	var standalone []ledger.Entry
	if len(group.Entries) == 0 {
		var err error
		standalone, err = NewGormSnapshotLoader(r.db).standaloneEntries(ctx, []string{group.ID})
		if err != nil {
			return nil, err
		}
	}
	normalized := ledger.Normalize([]ledger.TransactionGroup{group}, standalone)
	return &normalized[0], nil
}

// Create inserts a group. Standalone-shaped groups also get their entry rows.
func (r *GormTransactionGroupRepository) Create(ctx context.Context, group *ledger.TransactionGroup) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(models.TransactionGroupModelFromDomain(group)).Error; err != nil {
			return err
		}
		if group.StorageFormat == ledger.StorageFormatEmbedded || len(group.Entries) == 0 {
			return nil
		}
		rows := make([]*models.EntryModel, len(group.Entries))
		for i := range group.Entries {
			e := group.Entries[i]
			e.TransactionID = group.ID
			rows[i] = models.EntryModelFromDomain(&e)
		}
		return tx.Create(rows).Error
	})
}

// UpdateStatus performs a compare-and-set on the status column.
// Groups stored without a status are matched as drafts.
func (r *GormTransactionGroupRepository) UpdateStatus(ctx context.Context, scope ledger.Scope, id string, from, to ledger.TransactionStatus) error {
	if scope.OwnerID == "" {
		return ErrEmptyOwner
	}
	query := scoped(r.db.WithContext(ctx).Model(&models.TransactionGroupModel{}), scope).Where("id = ?", id)
	if from == ledger.TransactionStatusDraft {
		query = query.Where("(status = ? OR status = '' OR status IS NULL)", from)
	} else {
		query = query.Where("status = ?", from)
	}

	result := query.Updates(map[string]any{
		"status":     to,
		"updated_at": time.Now(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var count int64
		scoped(r.db.WithContext(ctx).Model(&models.TransactionGroupModel{}), scope).Where("id = ?", id).Count(&count)
		if count == 0 {
			return shared.ErrNotFound
		}
		return shared.ErrConcurrencyConflict
	}
	return nil
}

var _ ledger.TransactionGroupRepository = (*GormTransactionGroupRepository)(nil)
