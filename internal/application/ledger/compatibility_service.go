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

// CompatibilityKey is the cache key used for a scope when the caller does not pick one
func CompatibilityKey(scope ledger.Scope) string {
	return scope.String()
}

// CompatibilityService serves compatibility reports through a cache.
// Each instance owns its cache; callers share it by passing the instance around.
type CompatibilityService struct {
	cache   ledger.CompatibilityCache
	scorer  *ledger.CompatibilityScorer
	loader  ledger.SnapshotLoader
	metrics *telemetry.IntegrityMetrics
	logger  *zap.Logger
	now     func() time.Time
}

// CompatibilityServiceOption configures a CompatibilityService
type CompatibilityServiceOption func(*CompatibilityService)

// WithCompatibilityLogger sets the service logger
func WithCompatibilityLogger(l *zap.Logger) CompatibilityServiceOption {
	return func(s *CompatibilityService) {
		s.logger = l
	}
}

// WithCompatibilityMetrics records cache lookups and invalidations
func WithCompatibilityMetrics(m *telemetry.IntegrityMetrics) CompatibilityServiceOption {
	return func(s *CompatibilityService) {
		s.metrics = m
	}
}

// WithCompatibilityClock overrides the time stamped on reports built without a snapshot
func WithCompatibilityClock(now func() time.Time) CompatibilityServiceOption {
	return func(s *CompatibilityService) {
		s.now = now
	}
}

// WithSnapshotLoader lets CheckScope load the ledger on a cache miss
func WithSnapshotLoader(loader ledger.SnapshotLoader) CompatibilityServiceOption {
	return func(s *CompatibilityService) {
		s.loader = loader
	}
}

// NewCompatibilityService creates a service over the given cache and scorer
func NewCompatibilityService(cache ledger.CompatibilityCache, scorer *ledger.CompatibilityScorer, opts ...CompatibilityServiceOption) *CompatibilityService {
	if scorer == nil {
		scorer = ledger.NewCompatibilityScorer()
	}
	s := &CompatibilityService{
		cache:  cache,
		scorer: scorer,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check returns the cached report for key, or scores the snapshot and stores the result under key.
// Cache failures are logged and never fail the check.
func (s *CompatibilityService) Check(ctx context.Context, key string, scope ledger.Scope, snapshot *ledger.Snapshot) (*ledger.CompatibilityReport, error) {
	if snapshot == nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "snapshot is required")
	}
	if report, ok := s.lookup(ctx, key); ok {
		return report, nil
	}
	return s.compute(ctx, key, scope, snapshot), nil
}

// CheckScope is Check for the scope's default key, loading the ledger only on a cache miss.
// A ledger that cannot be loaded yields an incompatible report holding a single
// compatibility-check-failed issue. That report is not cached.
func (s *CompatibilityService) CheckScope(ctx context.Context, scope ledger.Scope) (*ledger.CompatibilityReport, error) {
	if scope.OwnerID == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "owner id is required")
	}
	key := CompatibilityKey(scope)
	if report, ok := s.lookup(ctx, key); ok {
		return report, nil
	}
	snapshot, err := ledger.LoadSnapshot(ctx, s.loader, scope)
	if err != nil {
		logger.WithLogger(ctx, s.logger).Warn("Compatibility check could not load the ledger",
			zap.String("owner_id", scope.OwnerID),
			zap.Error(err),
		)
		report := ledger.FailedCompatibilityReport(scope, err, s.now())
		return &report, nil
	}
	return s.compute(ctx, key, scope, snapshot), nil
}

func (s *CompatibilityService) lookup(ctx context.Context, key string) (*ledger.CompatibilityReport, bool) {
	if s.cache == nil {
		return nil, false
	}
	report, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		logger.WithLogger(ctx, s.logger).Warn("Compatibility cache read failed",
			zap.String("key", key),
			zap.Error(err),
		)
		ok = false
	}
	s.metrics.RecordCacheLookup(ctx, ok)
	return report, ok
}

func (s *CompatibilityService) compute(ctx context.Context, key string, scope ledger.Scope, snapshot *ledger.Snapshot) *ledger.CompatibilityReport {
	ctx, span := telemetry.StartServiceSpan(ctx, "CompatibilityService", "Score",
		telemetry.WithAttribute(telemetry.SpanAttrOwnerID, scope.OwnerID),
		telemetry.WithAttribute(telemetry.SpanAttrCacheHit, false),
	)
	defer span.End()

	report := s.scorer.Score(ctx, scope, snapshot)
	s.metrics.RecordScore(ctx, scope.OrganizationID, report.Summary.CompatibilityScore)
	telemetry.SetAttributes(span, telemetry.SpanAttrScore, report.Summary.CompatibilityScore)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, &report); err != nil {
			logger.WithLogger(ctx, s.logger).Warn("Compatibility cache write failed",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}
	return &report
}

// Invalidate drops the cached report for key
func (s *CompatibilityService) Invalidate(ctx context.Context, key string) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		return err
	}
	s.metrics.RecordCacheInvalidation(ctx, false)
	return nil
}

// InvalidateScope drops the scope's default key and, for an organization scope, its owner-wide key
func (s *CompatibilityService) InvalidateScope(ctx context.Context, scope ledger.Scope) error {
	if err := s.Invalidate(ctx, CompatibilityKey(scope)); err != nil {
		return err
	}
	if scope.OrganizationID != "" {
		return s.Invalidate(ctx, CompatibilityKey(ledger.Scope{OwnerID: scope.OwnerID}))
	}
	return nil
}

// InvalidateAll clears every cached report, typically after a bulk sync
func (s *CompatibilityService) InvalidateAll(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Clear(ctx); err != nil {
		return err
	}
	s.metrics.RecordCacheInvalidation(ctx, true)
	logger.WithLogger(ctx, s.logger).Info("Compatibility cache cleared")
	return nil
}
