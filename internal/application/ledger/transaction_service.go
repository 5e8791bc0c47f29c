package ledger

import (
	"context"
	"errors"

	"github.com/pharmapos/backend/internal/domain/ledger"
	"github.com/pharmapos/backend/internal/domain/shared"
	"github.com/pharmapos/backend/internal/infrastructure/logger"
	"github.com/pharmapos/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// TransactionService moves transaction groups through their status lifecycle
type TransactionService struct {
	groups  ledger.TransactionGroupRepository
	compat  *CompatibilityService
	metrics *telemetry.IntegrityMetrics
	logger  *zap.Logger
}

// TransactionServiceOption configures a TransactionService
type TransactionServiceOption func(*TransactionService)

// WithTransactionLogger sets the service logger
func WithTransactionLogger(l *zap.Logger) TransactionServiceOption {
	return func(s *TransactionService) {
		s.logger = l
	}
}

// WithTransactionMetrics records status transitions
func WithTransactionMetrics(m *telemetry.IntegrityMetrics) TransactionServiceOption {
	return func(s *TransactionService) {
		s.metrics = m
	}
}

// WithTransactionCompatibilityService invalidates cached compatibility reports after a transition
func WithTransactionCompatibilityService(c *CompatibilityService) TransactionServiceOption {
	return func(s *TransactionService) {
		s.compat = c
	}
}

// NewTransactionService creates a new TransactionService
func NewTransactionService(groups ledger.TransactionGroupRepository, opts ...TransactionServiceOption) *TransactionService {
	s := &TransactionService{
		groups: groups,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Confirm moves a draft group to confirmed
func (s *TransactionService) Confirm(ctx context.Context, scope ledger.Scope, id string) (*ledger.TransactionGroup, error) {
	return s.transition(ctx, scope, id, ledger.TransactionStatusConfirmed, (*ledger.TransactionGroup).Confirm)
}

// Cancel moves a draft group to cancelled
func (s *TransactionService) Cancel(ctx context.Context, scope ledger.Scope, id string) (*ledger.TransactionGroup, error) {
	return s.transition(ctx, scope, id, ledger.TransactionStatusCancelled, (*ledger.TransactionGroup).Cancel)
}

// Reopen returns a confirmed group to draft
func (s *TransactionService) Reopen(ctx context.Context, scope ledger.Scope, id string) (*ledger.TransactionGroup, error) {
	return s.transition(ctx, scope, id, ledger.TransactionStatusDraft, (*ledger.TransactionGroup).Reopen)
}

func (s *TransactionService) transition(
	ctx context.Context,
	scope ledger.Scope,
	id string,
	target ledger.TransactionStatus,
	apply func(*ledger.TransactionGroup) error,
) (*ledger.TransactionGroup, error) {
	if scope.OwnerID == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "owner id is required")
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "TransactionService", "Transition",
		telemetry.WithAttribute(telemetry.SpanAttrOwnerID, scope.OwnerID),
		telemetry.WithAttribute(telemetry.SpanAttrTransactionID, id),
		telemetry.WithAttribute("ledger.target_status", string(target)),
	)
	defer span.End()
	log := logger.WithLogger(ctx, s.logger).With(
		zap.String("owner_id", scope.OwnerID),
		zap.String("transaction_id", id),
		zap.String("target_status", string(target)),
	)

	group, err := s.groups.FindByID(ctx, scope, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, ledger.ErrNoSuchTransaction(id)
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	from := group.EffectiveStatus()
	if err := apply(group); err != nil {
		s.metrics.RecordStatusTransition(ctx, string(target), telemetry.OutcomeBlocked)
		log.Info("Transaction status change rejected", zap.String("status", string(from)))
		return nil, err
	}

	if err := s.groups.UpdateStatus(ctx, scope, id, from, target); err != nil {
		switch {
		case errors.Is(err, shared.ErrConcurrencyConflict):
			s.metrics.RecordStatusTransition(ctx, string(target), telemetry.OutcomeConflict)
			log.Warn("Transaction status changed concurrently", zap.String("expected_status", string(from)))
		case errors.Is(err, shared.ErrNotFound):
			return nil, ledger.ErrNoSuchTransaction(id)
		default:
			s.metrics.RecordStatusTransition(ctx, string(target), telemetry.OutcomeFailed)
			telemetry.RecordError(span, err)
		}
		return nil, err
	}

	s.metrics.RecordStatusTransition(ctx, string(target), telemetry.OutcomeAllowed)
	if s.compat != nil {
		if err := s.compat.InvalidateScope(ctx, scope); err != nil {
			log.Warn("Failed to invalidate compatibility cache", zap.Error(err))
		}
	}
	telemetry.SetOK(span)
	log.Info("Transaction status changed", zap.String("from", string(from)))
	return group, nil
}
