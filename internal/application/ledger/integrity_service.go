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

// ReportArchive stores generated integrity documents
type ReportArchive interface {
	Put(ctx context.Context, doc *ledger.IntegrityDocument) (string, error)
	DownloadURL(ctx context.Context, key string) (string, time.Time, error)
}

// IntegrityService runs integrity checks for API and CLI callers and packages reports
type IntegrityService struct {
	engine  *ledger.IntegrityService
	archive ReportArchive
	metrics *telemetry.IntegrityMetrics
	logger  *zap.Logger
	now     func() time.Time
}

// IntegrityServiceOption configures an IntegrityService
type IntegrityServiceOption func(*IntegrityService)

// WithIntegrityLogger sets the service logger
func WithIntegrityLogger(l *zap.Logger) IntegrityServiceOption {
	return func(s *IntegrityService) {
		s.logger = l
	}
}

// WithIntegrityMetrics records check outcomes
func WithIntegrityMetrics(m *telemetry.IntegrityMetrics) IntegrityServiceOption {
	return func(s *IntegrityService) {
		s.metrics = m
	}
}

// WithReportArchive archives every generated document
func WithReportArchive(a ReportArchive) IntegrityServiceOption {
	return func(s *IntegrityService) {
		s.archive = a
	}
}

// WithIntegrityServiceClock overrides the time source for generated documents
func WithIntegrityServiceClock(now func() time.Time) IntegrityServiceOption {
	return func(s *IntegrityService) {
		s.now = now
	}
}

// NewIntegrityService creates a new IntegrityService over a domain engine
func NewIntegrityService(engine *ledger.IntegrityService, opts ...IntegrityServiceOption) *IntegrityService {
	s := &IntegrityService{
		engine: engine,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckIntegrity validates the scope's ledger.
// A snapshot that cannot be loaded yields an error and no report.
func (s *IntegrityService) CheckIntegrity(ctx context.Context, scope ledger.Scope) (*ledger.IntegrityReport, error) {
	if scope.OwnerID == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "owner id is required")
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "IntegrityService", "CheckIntegrity",
		telemetry.WithAttribute(telemetry.SpanAttrOwnerID, scope.OwnerID),
		telemetry.WithAttribute(telemetry.SpanAttrOrganizationID, scope.OrganizationID),
	)
	defer span.End()
	log := logger.WithLogger(ctx, s.logger)

	start := time.Now()
	report, err := s.engine.CheckIntegrity(ctx, scope)
	elapsed := time.Since(start)
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordCheckFailure(ctx, scope.OrganizationID, elapsed)
		log.Error("Integrity check failed to load ledger",
			zap.String("owner_id", scope.OwnerID),
			zap.String("organization_id", scope.OrganizationID),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.RecordCheck(ctx, scope.OrganizationID, elapsed, report.IsValid, report.Summary.CompatibilityScore,
		telemetry.SeverityCount{Severity: string(ledger.SeverityError), Count: report.Summary.ErrorCount},
		telemetry.SeverityCount{Severity: string(ledger.SeverityWarning), Count: report.Summary.WarningCount},
		telemetry.SeverityCount{Severity: string(ledger.SeverityInfo), Count: report.Summary.InfoCount},
	)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrIsValid, report.IsValid,
		telemetry.SpanAttrIssueCount, len(report.Issues),
		telemetry.SpanAttrScore, report.Summary.CompatibilityScore,
	)
	telemetry.SetOK(span)

	log.Info("Integrity check completed",
		zap.String("owner_id", scope.OwnerID),
		zap.Bool("is_valid", report.IsValid),
		zap.Int("errors", report.Summary.ErrorCount),
		zap.Int("warnings", report.Summary.WarningCount),
		zap.Int("compatibility_score", report.Summary.CompatibilityScore),
		zap.Duration("duration", elapsed),
	)
	return report, nil
}

// GenerateReport checks the scope and packages the result as a document.
// When an archive is configured the document is uploaded; an upload failure is
// recorded on the document and does not fail the report.
func (s *IntegrityService) GenerateReport(ctx context.Context, scope ledger.Scope) (*ledger.IntegrityDocument, error) {
	report, err := s.CheckIntegrity(ctx, scope)
	if err != nil {
		return nil, err
	}
	doc := ledger.BuildIntegrityDocument(report, s.now())
	if s.archive == nil {
		return doc, nil
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "IntegrityService", "ArchiveReport",
		telemetry.WithAttribute(telemetry.SpanAttrReportID, doc.ReportID),
	)
	defer span.End()
	log := logger.WithLogger(ctx, s.logger)

	key, err := s.archive.Put(ctx, doc)
	s.metrics.RecordArchive(ctx, err)
	if err != nil {
		telemetry.RecordError(span, err)
		doc.ArchiveError = err.Error()
		log.Warn("Failed to archive integrity report",
			zap.String("report_id", doc.ReportID),
			zap.Error(err),
		)
		return doc, nil
	}
	doc.ArchiveKey = key

	link, _, err := s.archive.DownloadURL(ctx, key)
	if err != nil {
		log.Warn("Failed to presign integrity report link",
			zap.String("report_id", doc.ReportID),
			zap.String("key", key),
			zap.Error(err),
		)
	} else {
		doc.ArchiveURL = link
	}
	telemetry.SetOK(span)
	return doc, nil
}
