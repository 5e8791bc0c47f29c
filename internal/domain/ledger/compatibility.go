package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Compatibility score weights
const (
	MaxCompatibilityScore       = 100
	MixedStorageFormatPenalty   = 30
	IncompleteAccountsWeight    = 20
	IncompleteTransactionWeight = 20
)

// ConsistencyProbe performs a store-side consistency check the snapshot alone cannot answer,
// such as finding standalone entries whose transaction is gone.
type ConsistencyProbe interface {
	ProbeConsistency(ctx context.Context, scope Scope, snapshot *Snapshot) ([]Issue, error)
}

// ConsistencyProbeFunc adapts a function to ConsistencyProbe
type ConsistencyProbeFunc func(ctx context.Context, scope Scope, snapshot *Snapshot) ([]Issue, error)

// ProbeConsistency calls f
func (f ConsistencyProbeFunc) ProbeConsistency(ctx context.Context, scope Scope, snapshot *Snapshot) ([]Issue, error) {
	return f(ctx, scope, snapshot)
}

// CompatibilitySummary holds the counters behind the compatibility score
type CompatibilitySummary struct {
	TotalAccounts          int `json:"totalAccounts"`
	TotalTransactions      int `json:"totalTransactions"`
	EmbeddedTransactions   int `json:"embeddedTransactions"`
	StandaloneTransactions int `json:"standaloneTransactions"`
	IncompleteAccounts     int `json:"incompleteAccounts"`
	IncompleteTransactions int `json:"incompleteTransactions"`
	CompatibilityScore     int `json:"compatibilityScore"`
}

// CompatibilityReport is the health assessment of a snapshot's structure
type CompatibilityReport struct {
	IsCompatible bool
	Summary      CompatibilitySummary
	Issues       []Issue
	CheckedAt    time.Time
}

type compatibilityReportJSON struct {
	IsCompatible bool                 `json:"isCompatible"`
	Summary      CompatibilitySummary `json:"summary"`
	Issues       []IssueRecord        `json:"issues"`
	CheckedAt    time.Time            `json:"checkedAt"`
}

// MarshalJSON writes issues in their flat record form
func (r CompatibilityReport) MarshalJSON() ([]byte, error) {
	return json.Marshal(compatibilityReportJSON{
		IsCompatible: r.IsCompatible,
		Summary:      r.Summary,
		Issues:       ToRecords(r.Issues),
		CheckedAt:    r.CheckedAt,
	})
}

// UnmarshalJSON rebuilds typed issues from their record form
func (r *CompatibilityReport) UnmarshalJSON(data []byte) error {
	var raw compatibilityReportJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	issues, err := FromRecords(raw.Issues)
	if err != nil {
		return err
	}
	*r = CompatibilityReport{
		IsCompatible: raw.IsCompatible,
		Summary:      raw.Summary,
		Issues:       issues,
		CheckedAt:    raw.CheckedAt,
	}
	return nil
}

// CompatibilityCache stores compatibility reports by caller-chosen key.
// Set replaces any previous value for the key.
type CompatibilityCache interface {
	Get(ctx context.Context, key string) (*CompatibilityReport, bool, error)
	Set(ctx context.Context, key string, report *CompatibilityReport) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// ScorerOption configures a CompatibilityScorer
type ScorerOption func(*CompatibilityScorer)

// WithConsistencyProbe attaches a store-side consistency check
func WithConsistencyProbe(probe ConsistencyProbe) ScorerOption {
	return func(s *CompatibilityScorer) {
		s.probe = probe
	}
}

// WithScorerClock overrides the time source for CheckedAt
func WithScorerClock(now func() time.Time) ScorerOption {
	return func(s *CompatibilityScorer) {
		s.now = now
	}
}

// CompatibilityScorer detects mixed storage shapes and scores a snapshot's structural health
type CompatibilityScorer struct {
	probe ConsistencyProbe
	now   func() time.Time
}

// NewCompatibilityScorer creates a scorer
func NewCompatibilityScorer(opts ...ScorerOption) *CompatibilityScorer {
	s := &CompatibilityScorer{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score examines the snapshot and returns its compatibility report.
// A failing or panicking consistency probe becomes one compatibility-check-failed
// error issue; the score is still computed.
func (s *CompatibilityScorer) Score(ctx context.Context, scope Scope, snapshot *Snapshot) CompatibilityReport {
	summary := CompatibilitySummary{
		TotalAccounts:     len(snapshot.Accounts),
		TotalTransactions: len(snapshot.Transactions),
	}
	for i := range snapshot.Accounts {
		a := &snapshot.Accounts[i]
		if a.Code == "" || a.AccountType == "" {
			summary.IncompleteAccounts++
		}
	}
	for i := range snapshot.Transactions {
		g := &snapshot.Transactions[i]
		switch formatOf(g) {
		case StorageFormatEmbedded:
			summary.EmbeddedTransactions++
		default:
			summary.StandaloneTransactions++
		}
		if g.GroupNumber == "" || g.TransactionDate == nil || g.TransactionDate.IsZero() {
			summary.IncompleteTransactions++
		}
	}

	mixed := summary.EmbeddedTransactions > 0 && summary.StandaloneTransactions > 0
	summary.CompatibilityScore = compatibilityScore(summary, mixed)

	var issues []Issue
	if mixed {
		issues = append(issues, CompatibilityIssue{
			IssueHeader: IssueHeader{
				Kind:       KindMixedStorageFormat,
				Severity:   SeverityWarning,
				EntityID:   scope.String(),
				EntityName: "ledger storage",
				Description: fmt.Sprintf("mixed storage formats present: %d embedded and %d standalone transactions",
					summary.EmbeddedTransactions, summary.StandaloneTransactions),
				Recommendation: "migrate all transactions to a single entry storage format",
			},
			Formats: []StorageFormat{StorageFormatEmbedded, StorageFormatStandalone},
			Score:   intPtr(summary.CompatibilityScore),
		})
	}
	if summary.IncompleteAccounts > 0 {
		issues = append(issues, CompatibilityIssue{
			IssueHeader: IssueHeader{
				Kind:       KindIncompleteRecordRatio,
				Severity:   SeverityWarning,
				EntityID:   scope.String(),
				EntityName: "accounts",
				Description: fmt.Sprintf("%d of %d accounts are missing a code or account type",
					summary.IncompleteAccounts, summary.TotalAccounts),
				Recommendation: "complete the code and account type of every account",
			},
			Score: intPtr(summary.CompatibilityScore),
		})
	}
	if summary.IncompleteTransactions > 0 {
		issues = append(issues, CompatibilityIssue{
			IssueHeader: IssueHeader{
				Kind:       KindIncompleteRecordRatio,
				Severity:   SeverityWarning,
				EntityID:   scope.String(),
				EntityName: "transactions",
				Description: fmt.Sprintf("%d of %d transactions are missing a group number or date",
					summary.IncompleteTransactions, summary.TotalTransactions),
				Recommendation: "complete the group number and date of every transaction",
			},
			Score: intPtr(summary.CompatibilityScore),
		})
	}

	if s.probe != nil {
		probed, err := s.runProbe(ctx, scope, snapshot)
		if err != nil {
			issues = append(issues, compatibilityFailure(scope, err))
		} else {
			issues = append(issues, probed...)
		}
	}

	SortIssues(issues)
	return CompatibilityReport{
		IsCompatible: !HasErrors(issues),
		Summary:      summary,
		Issues:       issues,
		CheckedAt:    s.now(),
	}
}

func (s *CompatibilityScorer) runProbe(ctx context.Context, scope Scope, snapshot *Snapshot) (issues []Issue, err error) {
	defer func() {
		if r := recover(); r != nil {
			issues = nil
			err = fmt.Errorf("consistency probe panicked: %v", r)
		}
	}()
	return s.probe.ProbeConsistency(ctx, scope, snapshot)
}

// FailedCompatibilityReport is the report returned when no snapshot could be examined
func FailedCompatibilityReport(scope Scope, err error, at time.Time) CompatibilityReport {
	return CompatibilityReport{
		IsCompatible: false,
		Summary:      CompatibilitySummary{CompatibilityScore: 0},
		Issues:       []Issue{compatibilityFailure(scope, err)},
		CheckedAt:    at,
	}
}

func compatibilityFailure(scope Scope, err error) Issue {
	return CompatibilityIssue{
		IssueHeader: IssueHeader{
			Kind:           KindCompatibilityCheckFailed,
			Severity:       SeverityError,
			EntityID:       scope.String(),
			EntityName:     "compatibility check",
			Description:    fmt.Sprintf("compatibility check failed: %v", err),
			Recommendation: "inspect the ledger store and rerun the check",
		},
	}
}

func formatOf(g *TransactionGroup) StorageFormat {
	if g.StorageFormat != "" {
		return g.StorageFormat
	}
	if len(g.Entries) > 0 {
		return StorageFormatEmbedded
	}
	return StorageFormatStandalone
}

func compatibilityScore(summary CompatibilitySummary, mixed bool) int {
	score := float64(MaxCompatibilityScore)
	if mixed {
		score -= MixedStorageFormatPenalty
	}
	if summary.TotalAccounts > 0 {
		score -= float64(summary.IncompleteAccounts) / float64(summary.TotalAccounts) * IncompleteAccountsWeight
	}
	if summary.TotalTransactions > 0 {
		score -= float64(summary.IncompleteTransactions) / float64(summary.TotalTransactions) * IncompleteTransactionWeight
	}
	rounded := int(math.Round(score))
	if rounded < 0 {
		return 0
	}
	if rounded > MaxCompatibilityScore {
		return MaxCompatibilityScore
	}
	return rounded
}
