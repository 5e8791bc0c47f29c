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

// DateLayout is the accepted format of funding range bounds
const DateLayout = "2006-01-02"

// FundingService answers funding questions over a freshly loaded snapshot
type FundingService struct {
	loader ledger.SnapshotLoader
	logger *zap.Logger
}

// NewFundingService creates a new FundingService
func NewFundingService(loader ledger.SnapshotLoader, l *zap.Logger) *FundingService {
	if l == nil {
		l = zap.NewNop()
	}
	return &FundingService{loader: loader, logger: l}
}

// ParseFundingRange turns optional YYYY-MM-DD bounds into a query.
// The upper bound covers the whole day.
func ParseFundingRange(scope ledger.Scope, from, to string) (ledger.FundingQuery, error) {
	query := ledger.FundingQuery{Scope: scope}
	if from != "" {
		t, err := time.Parse(DateLayout, from)
		if err != nil {
			return query, shared.NewDomainError("INVALID_INPUT", "from must be a date in YYYY-MM-DD format")
		}
		query.From = &t
	}
	if to != "" {
		t, err := time.Parse(DateLayout, to)
		if err != nil {
			return query, shared.NewDomainError("INVALID_INPUT", "to must be a date in YYYY-MM-DD format")
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		query.To = &end
	}
	if query.From != nil && query.To != nil && query.From.After(*query.To) {
		return query, shared.NewDomainError("INVALID_INPUT", "from must not be after to")
	}
	return query, nil
}

// Analyze reports funding utilization for the query's scope and range
func (s *FundingService) Analyze(ctx context.Context, query ledger.FundingQuery) (*ledger.FundingAnalysis, error) {
	if query.Scope.OwnerID == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "owner id is required")
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "FundingService", "Analyze",
		telemetry.WithAttribute(telemetry.SpanAttrOwnerID, query.Scope.OwnerID),
	)
	defer span.End()

	snapshot, err := ledger.LoadSnapshot(ctx, s.loader, query.Scope)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	analysis := ledger.AnalyzeFunding(snapshot, query)
	if len(analysis.Cycles) > 0 {
		logger.WithLogger(ctx, s.logger).Warn("Funding cycles detected",
			zap.String("owner_id", query.Scope.OwnerID),
			zap.Int("cycles", len(analysis.Cycles)),
		)
	}
	telemetry.SetOK(span)
	return &analysis, nil
}

// Lineage traces the funding sources behind one transaction
func (s *FundingService) Lineage(ctx context.Context, scope ledger.Scope, transactionID string) (*ledger.FundingLineage, error) {
	if scope.OwnerID == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "owner id is required")
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "FundingService", "Lineage",
		telemetry.WithAttribute(telemetry.SpanAttrTransactionID, transactionID),
	)
	defer span.End()

	snapshot, err := ledger.LoadSnapshot(ctx, s.loader, scope)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	lineage, err := ledger.TraceFundingLineage(snapshot, transactionID)
	if err != nil {
		return nil, err
	}
	return &lineage, nil
}
