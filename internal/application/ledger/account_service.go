package ledger

import (
	"context"
	"time"

	"github.com/pharmapos/backend/internal/domain/ledger"
	"github.com/pharmapos/backend/internal/domain/shared"
	"github.com/pharmapos/backend/internal/infrastructure/logger"
	"github.com/pharmapos/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// AccountService guards account removal with the deletion check
type AccountService struct {
	accounts ledger.AccountRepository
	loader   ledger.SnapshotLoader
	compat   *CompatibilityService
	metrics  *telemetry.IntegrityMetrics
	logger   *zap.Logger
	now      func() time.Time
}

// AccountServiceOption configures an AccountService
type AccountServiceOption func(*AccountService)

// WithAccountLogger sets the service logger
func WithAccountLogger(l *zap.Logger) AccountServiceOption {
	return func(s *AccountService) {
		s.logger = l
	}
}

// WithAccountMetrics records deletion check outcomes
func WithAccountMetrics(m *telemetry.IntegrityMetrics) AccountServiceOption {
	return func(s *AccountService) {
		s.metrics = m
	}
}

// WithAccountCompatibilityService invalidates cached compatibility reports after account changes
func WithAccountCompatibilityService(c *CompatibilityService) AccountServiceOption {
	return func(s *AccountService) {
		s.compat = c
	}
}

// WithAccountClock overrides the time source for deletion stamps
func WithAccountClock(now func() time.Time) AccountServiceOption {
	return func(s *AccountService) {
		s.now = now
	}
}

// NewAccountService creates a new AccountService
func NewAccountService(accounts ledger.AccountRepository, loader ledger.SnapshotLoader, opts ...AccountServiceOption) *AccountService {
	s := &AccountService{
		accounts: accounts,
		loader:   loader,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckDeletion reports whether the account may be deleted without changing anything.
// The account must lie inside scope, but usage is counted across every organization of
// the owner, so a reference from a sibling organization still blocks deletion.
func (s *AccountService) CheckDeletion(ctx context.Context, scope ledger.Scope, accountID string) (ledger.DeletionCheck, error) {
	if scope.OwnerID == "" {
		return ledger.DeletionCheck{}, shared.NewDomainError("INVALID_INPUT", "owner id is required")
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "AccountService", "CheckDeletion",
		telemetry.WithAttribute(telemetry.SpanAttrOwnerID, scope.OwnerID),
		telemetry.WithAttribute(telemetry.SpanAttrAccountID, accountID),
	)
	defer span.End()

	snapshot, err := ledger.LoadSnapshot(ctx, s.loader, ledger.Scope{OwnerID: scope.OwnerID})
	if err != nil {
		telemetry.RecordError(span, err)
		return ledger.DeletionCheck{}, err
	}
	account, ok := snapshot.Account(accountID)
	if !ok || !scope.Matches(account.OwnerID, account.OrganizationID) {
		return ledger.DeletionCheck{}, ledger.ErrNoSuchAccount(accountID)
	}

	check := ledger.CheckAccountDeletion(snapshot, accountID)
	s.metrics.RecordDeletionCheck(ctx, check.CanDelete)
	telemetry.AddEvent(span, "deletion_checked",
		"can_delete", check.CanDelete,
		"usage_count", check.UsageCount,
	)
	return check, nil
}

// DeleteAccount soft-deletes the account when no entry references it.
// A referenced account is left untouched and ACCOUNT_IN_USE is returned with the guard's reason.
func (s *AccountService) DeleteAccount(ctx context.Context, scope ledger.Scope, accountID string) (ledger.DeletionCheck, error) {
	check, err := s.CheckDeletion(ctx, scope, accountID)
	if err != nil {
		return check, err
	}
	log := logger.WithLogger(ctx, s.logger).With(
		zap.String("owner_id", scope.OwnerID),
		zap.String("account_id", accountID),
	)
	if !check.CanDelete {
		log.Info("Account deletion blocked",
			zap.Int("usage_count", check.UsageCount),
			zap.Int("confirmed_usage_count", check.ConfirmedUsageCount),
		)
		return check, shared.NewDomainError(shared.ErrAccountInUse.Code, check.Reason)
	}

	if err := s.accounts.SoftDelete(ctx, scope, accountID, s.now()); err != nil {
		return check, err
	}
	s.invalidate(ctx, scope)
	log.Info("Account deleted")
	return check, nil
}

// DeactivateAccount hides the account from new postings while keeping its history
func (s *AccountService) DeactivateAccount(ctx context.Context, scope ledger.Scope, accountID string) (*ledger.Account, error) {
	if scope.OwnerID == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "owner id is required")
	}
	if err := s.accounts.Deactivate(ctx, scope, accountID); err != nil {
		return nil, err
	}
	s.invalidate(ctx, scope)

	account, err := s.accounts.FindByID(ctx, scope, accountID)
	if err != nil {
		return nil, err
	}
	logger.WithLogger(ctx, s.logger).Info("Account deactivated",
		zap.String("owner_id", scope.OwnerID),
		zap.String("account_id", accountID),
	)
	return account, nil
}

func (s *AccountService) invalidate(ctx context.Context, scope ledger.Scope) {
	if s.compat == nil {
		return
	}
	if err := s.compat.InvalidateScope(ctx, scope); err != nil {
		logger.WithLogger(ctx, s.logger).Warn("Failed to invalidate compatibility cache",
			zap.String("owner_id", scope.OwnerID),
			zap.Error(err),
		)
	}
}
