package ledger

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// IntegritySummary holds the counters of one integrity check
type IntegritySummary struct {
	TotalAccounts      int `json:"totalAccounts"`
	TotalTransactions  int `json:"totalTransactions"`
	ValidAccounts      int `json:"validAccounts"`
	ValidTransactions  int `json:"validTransactions"`
	CompatibilityScore int `json:"compatibilityScore"`
	ErrorCount         int `json:"errorCount"`
	WarningCount       int `json:"warningCount"`
	InfoCount          int `json:"infoCount"`
}

// IntegrityReport is the merged result of all validators over one snapshot
type IntegrityReport struct {
	Scope     Scope
	IsValid   bool
	Summary   IntegritySummary
	Issues    []Issue
	CheckedAt time.Time
}

type integrityReportJSON struct {
	Scope     Scope            `json:"scope"`
	IsValid   bool             `json:"isValid"`
	Summary   IntegritySummary `json:"summary"`
	Issues    []IssueRecord    `json:"issues"`
	CheckedAt time.Time        `json:"checkedAt"`
}

// MarshalJSON writes issues in their flat record form
func (r IntegrityReport) MarshalJSON() ([]byte, error) {
	return json.Marshal(integrityReportJSON{
		Scope:     r.Scope,
		IsValid:   r.IsValid,
		Summary:   r.Summary,
		Issues:    ToRecords(r.Issues),
		CheckedAt: r.CheckedAt,
	})
}

// UnmarshalJSON rebuilds typed issues from their record form
func (r *IntegrityReport) UnmarshalJSON(data []byte) error {
	var raw integrityReportJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	issues, err := FromRecords(raw.Issues)
	if err != nil {
		return err
	}
	*r = IntegrityReport{
		Scope:     raw.Scope,
		IsValid:   raw.IsValid,
		Summary:   raw.Summary,
		Issues:    issues,
		CheckedAt: raw.CheckedAt,
	}
	return nil
}

// IntegrityOption configures an IntegrityService
type IntegrityOption func(*IntegrityService)

// WithCompatibilityScorer replaces the default scorer
func WithCompatibilityScorer(scorer *CompatibilityScorer) IntegrityOption {
	return func(s *IntegrityService) {
		s.scorer = scorer
	}
}

// WithParallelValidators toggles running the validators on separate goroutines
func WithParallelValidators(parallel bool) IntegrityOption {
	return func(s *IntegrityService) {
		s.parallel = parallel
	}
}

// WithIntegrityClock overrides the time source for CheckedAt
func WithIntegrityClock(now func() time.Time) IntegrityOption {
	return func(s *IntegrityService) {
		s.now = now
	}
}

// ValidatorRunner wraps the execution of one named validator, e.g. to attach profiling labels
type ValidatorRunner func(ctx context.Context, name string, run func(context.Context))

// WithValidatorRunner installs a wrapper around each validator run
func WithValidatorRunner(runner ValidatorRunner) IntegrityOption {
	return func(s *IntegrityService) {
		s.runner = runner
	}
}

func runDirect(ctx context.Context, _ string, run func(context.Context)) {
	run(ctx)
}

// IntegrityService runs the full integrity check over a scope's ledger
type IntegrityService struct {
	loader   SnapshotLoader
	scorer   *CompatibilityScorer
	parallel bool
	runner   ValidatorRunner
	now      func() time.Time
}

// NewIntegrityService creates a new IntegrityService
func NewIntegrityService(loader SnapshotLoader, opts ...IntegrityOption) *IntegrityService {
	s := &IntegrityService{
		loader:   loader,
		scorer:   NewCompatibilityScorer(),
		parallel: true,
		runner:   runDirect,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.runner == nil {
		s.runner = runDirect
	}
	return s
}

// CheckIntegrity loads the scope's snapshot and validates it.
// A load failure is returned as is and no report is produced.
func (s *IntegrityService) CheckIntegrity(ctx context.Context, scope Scope) (*IntegrityReport, error) {
	snapshot, err := LoadSnapshot(ctx, s.loader, scope)
	if err != nil {
		return nil, err
	}
	return s.Evaluate(ctx, snapshot), nil
}

// Evaluate validates an already loaded snapshot.
// Issues are concatenated as field, balance, relationship, compatibility and then
// stable-sorted by severity, so equal input always yields the same list.
func (s *IntegrityService) Evaluate(ctx context.Context, snapshot *Snapshot) *IntegrityReport {
	var (
		fields        FieldValidationResult
		balances      []Issue
		relationships []Issue
		compat        CompatibilityReport
	)
	tasks := []struct {
		name string
		run  func(context.Context)
	}{
		{"fields", func(context.Context) { fields = ValidateFields(snapshot) }},
		{"balances", func(context.Context) { balances = ValidateBalances(snapshot) }},
		{"relationships", func(context.Context) { relationships = ValidateRelationships(snapshot) }},
		{"compatibility", func(ctx context.Context) { compat = s.scorer.Score(ctx, snapshot.Scope, snapshot) }},
	}
	if s.parallel {
		var wg sync.WaitGroup
		wg.Add(len(tasks))
		for _, task := range tasks {
			go func(name string, run func(context.Context)) {
				defer wg.Done()
				s.runner(ctx, name, run)
			}(task.name, task.run)
		}
		wg.Wait()
	} else {
		for _, task := range tasks {
			s.runner(ctx, task.name, task.run)
		}
	}

	issues := make([]Issue, 0, len(fields.Issues)+len(balances)+len(relationships)+len(compat.Issues))
	issues = append(issues, fields.Issues...)
	issues = append(issues, balances...)
	issues = append(issues, relationships...)
	issues = append(issues, compat.Issues...)
	SortIssues(issues)

	summary := summarize(snapshot, fields, balances)
	summary.CompatibilityScore = compat.Summary.CompatibilityScore
	counts := CountBySeverity(issues)
	summary.ErrorCount = counts.Errors
	summary.WarningCount = counts.Warnings
	summary.InfoCount = counts.Infos

	return &IntegrityReport{
		Scope:     snapshot.Scope,
		IsValid:   counts.Errors == 0,
		Summary:   summary,
		Issues:    issues,
		CheckedAt: s.now(),
	}
}

func summarize(snapshot *Snapshot, fields FieldValidationResult, balances []Issue) IntegritySummary {
	badAccounts := newOrderedSet()
	for _, id := range fields.InvalidAccounts {
		badAccounts.add(id)
	}
	badGroups := newOrderedSet()
	for _, id := range fields.InvalidTransactions {
		badGroups.add(id)
	}
	for _, issue := range balances {
		if h := issue.Header(); h.Severity == SeverityError {
			badGroups.add(h.EntityID)
		}
	}

	summary := IntegritySummary{
		TotalAccounts:     len(snapshot.Accounts),
		TotalTransactions: len(snapshot.Transactions),
	}
	for i := range snapshot.Accounts {
		if !badAccounts.has(snapshot.Accounts[i].ID) {
			summary.ValidAccounts++
		}
	}
	for i := range snapshot.Transactions {
		if !badGroups.has(snapshot.Transactions[i].ID) {
			summary.ValidTransactions++
		}
	}
	return summary
}
