package ledger

import (
	"context"
	"time"
)

// AccountRepository persists account lifecycle changes
type AccountRepository interface {
	// FindByID returns shared.ErrNotFound when the account is not in scope
	FindByID(ctx context.Context, scope Scope, id string) (*Account, error)
	// SoftDelete marks the account inactive and stamps DeletedAt
	SoftDelete(ctx context.Context, scope Scope, id string, at time.Time) error
	// Deactivate marks the account inactive and keeps it visible
	Deactivate(ctx context.Context, scope Scope, id string) error
}

// TransactionGroupRepository persists transaction group status changes
type TransactionGroupRepository interface {
	// FindByID returns shared.ErrNotFound when the group is not in scope
	FindByID(ctx context.Context, scope Scope, id string) (*TransactionGroup, error)
	// UpdateStatus moves the group from one status to another.
	// It returns shared.ErrConcurrencyConflict when the stored status is no longer from.
	UpdateStatus(ctx context.Context, scope Scope, id string, from, to TransactionStatus) error
}
