package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// MeterName is the instrumentation scope of the ledger instruments.
const MeterName = "pharmapos-ledger"

// ErrMeterNil is returned when no meter is supplied.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// Outcome labels for checks and guarded operations.
const (
	OutcomeValid    = "valid"
	OutcomeInvalid  = "invalid"
	OutcomeFailed   = "failed"
	OutcomeAllowed  = "allowed"
	OutcomeBlocked  = "blocked"
	OutcomeConflict = "conflict"
	CacheHit        = "hit"
	CacheMiss       = "miss"
)

// IntegrityMetrics records the integrity engine's instruments.
type IntegrityMetrics struct {
	logger *zap.Logger

	checksTotal        *Counter
	checkDuration      *Histogram
	issuesTotal        *Counter
	compatibilityScore *Histogram
	lastScore          *Gauge
	cacheLookups       *Counter
	cacheInvalidations *Counter
	deletionChecks     *Counter
	statusTransitions  *Counter
	archivedReports    *Counter
}

// NewIntegrityMetrics registers every instrument on meter.
func NewIntegrityMetrics(meter metric.Meter, logger *zap.Logger) (*IntegrityMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &IntegrityMetrics{logger: logger}

	var err error
	if m.checksTotal, err = NewCounter(meter, "ledger_integrity_checks_total",
		"Integrity checks run, by outcome", "{checks}"); err != nil {
		return nil, err
	}
	if m.checkDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "ledger_integrity_check_duration_seconds",
		Description: "Integrity check latency including snapshot load",
		Unit:        "s",
		Boundaries:  CheckDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.issuesTotal, err = NewCounter(meter, "ledger_integrity_issues_total",
		"Issues reported by integrity checks, by severity", "{issues}"); err != nil {
		return nil, err
	}
	if m.compatibilityScore, err = NewHistogram(meter, HistogramOpts{
		Name:        "ledger_compatibility_score",
		Description: "Distribution of compatibility scores",
		Unit:        "{score}",
		Boundaries:  ScoreBuckets,
	}); err != nil {
		return nil, err
	}
	if m.lastScore, err = NewGauge(meter, "ledger_compatibility_score_last",
		"Most recent compatibility score per organization", "{score}"); err != nil {
		return nil, err
	}
	if m.cacheLookups, err = NewCounter(meter, "ledger_compatibility_cache_lookups_total",
		"Compatibility cache lookups, by result", "{lookups}"); err != nil {
		return nil, err
	}
	if m.cacheInvalidations, err = NewCounter(meter, "ledger_compatibility_cache_invalidations_total",
		"Compatibility cache invalidations", "{invalidations}"); err != nil {
		return nil, err
	}
	if m.deletionChecks, err = NewCounter(meter, "ledger_account_deletion_checks_total",
		"Account deletion guard decisions, by outcome", "{checks}"); err != nil {
		return nil, err
	}
	if m.statusTransitions, err = NewCounter(meter, "ledger_transaction_status_transitions_total",
		"Transaction status transitions, by target status and outcome", "{transitions}"); err != nil {
		return nil, err
	}
	if m.archivedReports, err = NewCounter(meter, "ledger_integrity_reports_archived_total",
		"Integrity documents written to object storage, by outcome", "{reports}"); err != nil {
		return nil, err
	}
	return m, nil
}

// SeverityCount is the number of issues at one severity.
type SeverityCount struct {
	Severity string
	Count    int
}

// RecordCheck records one completed integrity check.
func (m *IntegrityMetrics) RecordCheck(ctx context.Context, organizationID string, d time.Duration, valid bool, score int, counts ...SeverityCount) {
	if m == nil {
		return
	}
	org := AttrOrganizationID.String(organizationID)
	outcome := OutcomeValid
	if !valid {
		outcome = OutcomeInvalid
	}
	m.checksTotal.Inc(ctx, org, AttrOutcome.String(outcome))
	m.checkDuration.RecordDuration(ctx, d, AttrOutcome.String(outcome))
	for _, c := range counts {
		if c.Count > 0 {
			m.issuesTotal.Add(ctx, int64(c.Count), org, AttrSeverity.String(c.Severity))
		}
	}
	m.RecordScore(ctx, organizationID, score)
}

// RecordCheckFailure records a check that produced no report.
func (m *IntegrityMetrics) RecordCheckFailure(ctx context.Context, organizationID string, d time.Duration) {
	if m == nil {
		return
	}
	m.checksTotal.Inc(ctx, AttrOrganizationID.String(organizationID), AttrOutcome.String(OutcomeFailed))
	m.checkDuration.RecordDuration(ctx, d, AttrOutcome.String(OutcomeFailed))
}

// RecordScore records a compatibility score.
func (m *IntegrityMetrics) RecordScore(ctx context.Context, organizationID string, score int) {
	if m == nil {
		return
	}
	org := AttrOrganizationID.String(organizationID)
	m.compatibilityScore.Record(ctx, float64(score))
	m.lastScore.Record(ctx, int64(score), org)
}

// RecordCacheLookup records a compatibility cache hit or miss.
func (m *IntegrityMetrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if m == nil {
		return
	}
	result := CacheMiss
	if hit {
		result = CacheHit
	}
	m.cacheLookups.Inc(ctx, AttrCacheResult.String(result))
}

// RecordCacheInvalidation records one invalidate call; all marks a full clear.
func (m *IntegrityMetrics) RecordCacheInvalidation(ctx context.Context, all bool) {
	if m == nil {
		return
	}
	m.cacheInvalidations.Inc(ctx, attribute.Bool("all", all))
}

// RecordDeletionCheck records a deletion guard decision.
func (m *IntegrityMetrics) RecordDeletionCheck(ctx context.Context, allowed bool) {
	if m == nil {
		return
	}
	outcome := OutcomeAllowed
	if !allowed {
		outcome = OutcomeBlocked
	}
	m.deletionChecks.Inc(ctx, AttrOutcome.String(outcome))
}

// RecordStatusTransition records a status change attempt.
func (m *IntegrityMetrics) RecordStatusTransition(ctx context.Context, status, outcome string) {
	if m == nil {
		return
	}
	m.statusTransitions.Inc(ctx, AttrStatus.String(status), AttrOutcome.String(outcome))
}

// RecordArchive records an integrity document upload.
func (m *IntegrityMetrics) RecordArchive(ctx context.Context, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeValid
	if err != nil {
		outcome = OutcomeFailed
		m.logger.Warn("Integrity report archive failed", zap.Error(err))
	}
	m.archivedReports.Inc(ctx, AttrOutcome.String(outcome))
}
