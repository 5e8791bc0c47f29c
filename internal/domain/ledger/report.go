package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Report thresholds. Downstream dashboards are calibrated against these values.
const (
	CompatibilityScoreThreshold = 80
	DataCompletenessThreshold   = 0.90
)

// IntegrityDocument is an integrity report packaged for users and archiving
type IntegrityDocument struct {
	ReportID         string          `json:"reportId"`
	GeneratedAt      time.Time       `json:"generatedAt"`
	Report           IntegrityReport `json:"report"`
	DataCompleteness float64         `json:"dataCompleteness"`
	Recommendations  []string        `json:"recommendations"`
	ArchiveKey       string          `json:"archiveKey,omitempty"`
	ArchiveURL       string          `json:"archiveUrl,omitempty"`
	ArchiveError     string          `json:"archiveError,omitempty"`
}

// DataCompleteness is the share of accounts and transactions without errors.
// An empty ledger is complete.
func DataCompleteness(summary IntegritySummary) float64 {
	total := summary.TotalAccounts + summary.TotalTransactions
	if total == 0 {
		return 1
	}
	return float64(summary.ValidAccounts+summary.ValidTransactions) / float64(total)
}

// BuildIntegrityDocument adds an id, timestamp and recommendations to a report
func BuildIntegrityDocument(report *IntegrityReport, now time.Time) *IntegrityDocument {
	completeness := DataCompleteness(report.Summary)
	recs := []string{}
	if report.Summary.CompatibilityScore < CompatibilityScoreThreshold {
		recs = append(recs, fmt.Sprintf("compatibility score %d is below %d: consolidate storage formats and complete missing fields",
			report.Summary.CompatibilityScore, CompatibilityScoreThreshold))
	}
	if report.Summary.ErrorCount > 0 {
		recs = append(recs, fmt.Sprintf("%d severe error(s) found: resolve error-level issues before closing the period",
			report.Summary.ErrorCount))
	}
	if completeness < DataCompletenessThreshold {
		recs = append(recs, fmt.Sprintf("data completeness %.1f%% is below %.0f%%: fix invalid accounts and transactions",
			completeness*100, DataCompletenessThreshold*100))
	}
	return &IntegrityDocument{
		ReportID:         uuid.New().String(),
		GeneratedAt:      now,
		Report:           *report,
		DataCompleteness: completeness,
		Recommendations:  recs,
	}
}
