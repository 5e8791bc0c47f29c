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

// GormAccountRepository implements ledger.AccountRepository using GORM
type GormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository creates a new GormAccountRepository
func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

// WithTx returns a new repository instance with the given transaction
func (r *GormAccountRepository) WithTx(tx *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: tx}
}

// FindByID finds an account by id inside the scope
func (r *GormAccountRepository) FindByID(ctx context.Context, scope ledger.Scope, id string) (*ledger.Account, error) {
	if scope.OwnerID == "" {
		return nil, ErrEmptyOwner
	}
	var model models.AccountModel
	if err := scoped(r.db.WithContext(ctx), scope).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	account := model.ToDomain()
	return &account, nil
}

// Create inserts an account
func (r *GormAccountRepository) Create(ctx context.Context, account *ledger.Account) error {
	return r.db.WithContext(ctx).Create(models.AccountModelFromDomain(account)).Error
}

// SoftDelete deactivates the account and records the deletion time
func (r *GormAccountRepository) SoftDelete(ctx context.Context, scope ledger.Scope, id string, at time.Time) error {
	return r.update(ctx, scope, id, map[string]any{
		"is_active":  false,
		"deleted_at": at,
		"updated_at": at,
	})
}

// Deactivate marks the account inactive
func (r *GormAccountRepository) Deactivate(ctx context.Context, scope ledger.Scope, id string) error {
	return r.update(ctx, scope, id, map[string]any{
		"is_active":  false,
		"updated_at": time.Now(),
	})
}

func (r *GormAccountRepository) update(ctx context.Context, scope ledger.Scope, id string, values map[string]any) error {
	if scope.OwnerID == "" {
		return ErrEmptyOwner
	}
	result := scoped(r.db.WithContext(ctx).Model(&models.AccountModel{}), scope).
		Where("id = ?", id).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ ledger.AccountRepository = (*GormAccountRepository)(nil)
