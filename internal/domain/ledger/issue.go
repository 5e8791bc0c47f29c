package ledger

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Severity ranks how serious a validation finding is
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Rank orders severities: error < warning < info. Unknown severities sort last.
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 0
	case SeverityWarning:
		return 1
	case SeverityInfo:
		return 2
	default:
		return 3
	}
}

// IsValid checks if the severity is known
func (s Severity) IsValid() bool {
	return s == SeverityError || s == SeverityWarning || s == SeverityInfo
}

// IssueType discriminates the issue variants on the wire
type IssueType string

const (
	IssueTypeAccount       IssueType = "account"
	IssueTypeTransaction   IssueType = "transaction"
	IssueTypeRelationship  IssueType = "relationship"
	IssueTypeCompatibility IssueType = "compatibility"
)

// IssueKind is the taxonomy of findings
type IssueKind string

const (
	KindMissingField              IssueKind = "missing-field"
	KindDuplicateIdentifier       IssueKind = "duplicate-identifier"
	KindInvalidFieldValue         IssueKind = "invalid-field-value"
	KindBalanceMismatch           IssueKind = "balance-mismatch"
	KindEntryCountLow             IssueKind = "entry-count-low"
	KindDanglingAccountReference  IssueKind = "dangling-account-reference"
	KindDanglingFundingReference  IssueKind = "dangling-funding-reference"
	KindOrphanAccount             IssueKind = "orphan-account"
	KindMixedStorageFormat        IssueKind = "mixed-storage-format"
	KindIncompleteRecordRatio     IssueKind = "incomplete-record-ratio"
	KindCompatibilityCheckFailed  IssueKind = "compatibility-check-failed"
	KindDetachedStandaloneEntries IssueKind = "detached-standalone-entries"
)

// IssueHeader holds the fields every issue variant carries
type IssueHeader struct {
	Kind           IssueKind
	Severity       Severity
	EntityID       string
	EntityName     string
	Description    string
	Recommendation string
}

// Header returns the common fields
func (h IssueHeader) Header() IssueHeader {
	return h
}

// Issue is one validation finding. The set of variants is closed:
// AccountIssue, TransactionIssue, RelationshipIssue and CompatibilityIssue.
type Issue interface {
	Header() IssueHeader
	Type() IssueType
	sealedIssue()
}

// AccountIssue is a finding about a single account record
type AccountIssue struct {
	IssueHeader
	Field string
}

// TransactionIssue is a finding about a single transaction group
type TransactionIssue struct {
	IssueHeader
	Field       string
	TotalDebit  *decimal.Decimal
	TotalCredit *decimal.Decimal
	EntryCount  *int
}

// RelationshipIssue is a finding about a reference between records
type RelationshipIssue struct {
	IssueHeader
	TransactionID string
	EntrySequence *int
	ReferenceID   string
}

// CompatibilityIssue is a finding about the dataset's storage shape or health
type CompatibilityIssue struct {
	IssueHeader
	Formats []StorageFormat
	Score   *int
}

func (AccountIssue) Type() IssueType       { return IssueTypeAccount }
func (TransactionIssue) Type() IssueType   { return IssueTypeTransaction }
func (RelationshipIssue) Type() IssueType  { return IssueTypeRelationship }
func (CompatibilityIssue) Type() IssueType { return IssueTypeCompatibility }

func (AccountIssue) sealedIssue()       {}
func (TransactionIssue) sealedIssue()   {}
func (RelationshipIssue) sealedIssue()  {}
func (CompatibilityIssue) sealedIssue() {}

// IssueRecord is the flat, serializable form of an issue
type IssueRecord struct {
	Type           IssueType        `json:"type"`
	Severity       Severity         `json:"severity"`
	Kind           IssueKind        `json:"kind"`
	EntityID       string           `json:"entityId"`
	EntityName     string           `json:"entityName"`
	Description    string           `json:"description"`
	Recommendation string           `json:"recommendation,omitempty"`
	Field          string           `json:"field,omitempty"`
	TotalDebit     *decimal.Decimal `json:"totalDebit,omitempty"`
	TotalCredit    *decimal.Decimal `json:"totalCredit,omitempty"`
	EntryCount     *int             `json:"entryCount,omitempty"`
	TransactionID  string           `json:"transactionId,omitempty"`
	EntrySequence  *int             `json:"entrySequence,omitempty"`
	ReferenceID    string           `json:"referenceId,omitempty"`
	Formats        []StorageFormat  `json:"formats,omitempty"`
	Score          *int             `json:"score,omitempty"`
}

func recordFromHeader(t IssueType, h IssueHeader) IssueRecord {
	return IssueRecord{
		Type:           t,
		Severity:       h.Severity,
		Kind:           h.Kind,
		EntityID:       h.EntityID,
		EntityName:     h.EntityName,
		Description:    h.Description,
		Recommendation: h.Recommendation,
	}
}

// ToRecord flattens an issue for serialization
func ToRecord(issue Issue) IssueRecord {
	switch v := issue.(type) {
	case AccountIssue:
		r := recordFromHeader(IssueTypeAccount, v.IssueHeader)
		r.Field = v.Field
		return r
	case TransactionIssue:
		r := recordFromHeader(IssueTypeTransaction, v.IssueHeader)
		r.Field = v.Field
		r.TotalDebit = v.TotalDebit
		r.TotalCredit = v.TotalCredit
		r.EntryCount = v.EntryCount
		return r
	case RelationshipIssue:
		r := recordFromHeader(IssueTypeRelationship, v.IssueHeader)
		r.TransactionID = v.TransactionID
		r.EntrySequence = v.EntrySequence
		r.ReferenceID = v.ReferenceID
		return r
	case CompatibilityIssue:
		r := recordFromHeader(IssueTypeCompatibility, v.IssueHeader)
		r.Formats = v.Formats
		r.Score = v.Score
		return r
	default:
		panic(fmt.Sprintf("ledger: unhandled issue variant %T", issue))
	}
}

// FromRecord rebuilds the typed issue from its flat form
func FromRecord(r IssueRecord) (Issue, error) {
	h := IssueHeader{
		Kind:           r.Kind,
		Severity:       r.Severity,
		EntityID:       r.EntityID,
		EntityName:     r.EntityName,
		Description:    r.Description,
		Recommendation: r.Recommendation,
	}
	switch r.Type {
	case IssueTypeAccount:
		return AccountIssue{IssueHeader: h, Field: r.Field}, nil
	case IssueTypeTransaction:
		return TransactionIssue{
			IssueHeader: h,
			Field:       r.Field,
			TotalDebit:  r.TotalDebit,
			TotalCredit: r.TotalCredit,
			EntryCount:  r.EntryCount,
		}, nil
	case IssueTypeRelationship:
		return RelationshipIssue{
			IssueHeader:   h,
			TransactionID: r.TransactionID,
			EntrySequence: r.EntrySequence,
			ReferenceID:   r.ReferenceID,
		}, nil
	case IssueTypeCompatibility:
		return CompatibilityIssue{IssueHeader: h, Formats: r.Formats, Score: r.Score}, nil
	default:
		return nil, fmt.Errorf("unknown issue type %q", r.Type)
	}
}

// ToRecords flattens a list of issues, keeping order
func ToRecords(issues []Issue) []IssueRecord {
	out := make([]IssueRecord, len(issues))
	for i, issue := range issues {
		out[i] = ToRecord(issue)
	}
	return out
}

// FromRecords rebuilds a list of issues, keeping order
func FromRecords(records []IssueRecord) ([]Issue, error) {
	out := make([]Issue, 0, len(records))
	for _, r := range records {
		issue, err := FromRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, issue)
	}
	return out, nil
}

// SortIssues orders issues by severity, keeping the relative order of equal severities
func SortIssues(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].Header().Severity.Rank() < issues[j].Header().Severity.Rank()
	})
}

// HasErrors reports whether any issue has error severity
func HasErrors(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Header().Severity == SeverityError {
			return true
		}
	}
	return false
}

// SeverityCounts tallies issues per severity
type SeverityCounts struct {
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Infos    int `json:"infos"`
}

// CountBySeverity tallies the issues
func CountBySeverity(issues []Issue) SeverityCounts {
	var c SeverityCounts
	for _, issue := range issues {
		switch issue.Header().Severity {
		case SeverityError:
			c.Errors++
		case SeverityWarning:
			c.Warnings++
		case SeverityInfo:
			c.Infos++
		}
	}
	return c
}

func intPtr(v int) *int {
	return &v
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
