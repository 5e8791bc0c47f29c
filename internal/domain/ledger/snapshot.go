package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/pharmapos/backend/internal/domain/shared"
)

// Scope identifies whose ledger is being examined
type Scope struct {
	OwnerID        string `json:"ownerId"`
	OrganizationID string `json:"organizationId,omitempty"`
}

// Matches reports whether a record owned by ownerID/organizationID falls inside the scope.
// An empty owner matches every owner and an empty organization matches every organization.
func (s Scope) Matches(ownerID, organizationID string) bool {
	if s.OwnerID != "" && s.OwnerID != ownerID {
		return false
	}
	if s.OrganizationID != "" && s.OrganizationID != organizationID {
		return false
	}
	return true
}

// String returns a stable textual form usable as a cache key: owner, then "/" and the
// organization when set. Both ids are path-escaped so a "/" inside an id stays unambiguous.
func (s Scope) String() string {
	owner := url.PathEscape(s.OwnerID)
	if s.OrganizationID == "" {
		return owner
	}
	return owner + "/" + url.PathEscape(s.OrganizationID)
}

// ParseScopeKey reverses Scope.String. Keys that are not in canonical form are rejected.
func ParseScopeKey(key string) (Scope, bool) {
	rawOwner, rawOrg, hasOrg := strings.Cut(key, "/")
	owner, err := url.PathUnescape(rawOwner)
	if err != nil || owner == "" {
		return Scope{}, false
	}
	scope := Scope{OwnerID: owner}
	if hasOrg {
		if scope.OrganizationID, err = url.PathUnescape(rawOrg); err != nil || scope.OrganizationID == "" {
			return Scope{}, false
		}
	}
	if scope.String() != key {
		return Scope{}, false
	}
	return scope, true
}

// SnapshotLoader reads the current ledger for a scope. Implementations must not mutate the store.
type SnapshotLoader interface {
	ListAccounts(ctx context.Context, scope Scope) ([]Account, error)
	ListTransactionGroups(ctx context.Context, scope Scope) ([]TransactionGroup, error)
}

// SnapshotLoadError reports that the ledger could not be read.
// Its message is the underlying error's message, surfaced unchanged to callers.
type SnapshotLoadError struct {
	Scope Scope
	Err   error
}

func (e *SnapshotLoadError) Error() string {
	return e.Err.Error()
}

func (e *SnapshotLoadError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, shared.ErrSnapshotUnavailable) hold for load failures
func (e *SnapshotLoadError) Is(target error) bool {
	return errors.Is(shared.ErrSnapshotUnavailable, target)
}

// Snapshot is an immutable view of one scope's accounts and transaction groups.
// Entries are already in canonical form regardless of how they were stored.
type Snapshot struct {
	Scope        Scope
	Accounts     []Account
	Transactions []TransactionGroup

	accountIndex map[string]int
	groupIndex   map[string]int
}

// NewSnapshot builds a snapshot and its lookup indexes
func NewSnapshot(scope Scope, accounts []Account, groups []TransactionGroup) *Snapshot {
	s := &Snapshot{
		Scope:        scope,
		Accounts:     accounts,
		Transactions: groups,
		accountIndex: make(map[string]int, len(accounts)),
		groupIndex:   make(map[string]int, len(groups)),
	}
	for i := range accounts {
		if _, ok := s.accountIndex[accounts[i].ID]; !ok {
			s.accountIndex[accounts[i].ID] = i
		}
	}
	for i := range groups {
		if _, ok := s.groupIndex[groups[i].ID]; !ok {
			s.groupIndex[groups[i].ID] = i
		}
	}
	return s
}

// Account returns the first account with the given id
func (s *Snapshot) Account(id string) (*Account, bool) {
	if s.accountIndex != nil {
		i, ok := s.accountIndex[id]
		if !ok {
			return nil, false
		}
		return &s.Accounts[i], true
	}
	for i := range s.Accounts {
		if s.Accounts[i].ID == id {
			return &s.Accounts[i], true
		}
	}
	return nil, false
}

// Transaction returns the first transaction group with the given id
func (s *Snapshot) Transaction(id string) (*TransactionGroup, bool) {
	if s.groupIndex != nil {
		i, ok := s.groupIndex[id]
		if !ok {
			return nil, false
		}
		return &s.Transactions[i], true
	}
	for i := range s.Transactions {
		if s.Transactions[i].ID == id {
			return &s.Transactions[i], true
		}
	}
	return nil, false
}

// EntryCount returns the number of entries across all groups
func (s *Snapshot) EntryCount() int {
	n := 0
	for i := range s.Transactions {
		n += len(s.Transactions[i].Entries)
	}
	return n
}

// LoadSnapshot pulls accounts and transaction groups for the scope from the loader.
// Any loader failure is returned as a *SnapshotLoadError.
func LoadSnapshot(ctx context.Context, loader SnapshotLoader, scope Scope) (*Snapshot, error) {
	if loader == nil {
		return nil, &SnapshotLoadError{Scope: scope, Err: errors.New("no snapshot loader configured")}
	}
	accounts, err := loader.ListAccounts(ctx, scope)
	if err != nil {
		return nil, &SnapshotLoadError{Scope: scope, Err: err}
	}
	groups, err := loader.ListTransactionGroups(ctx, scope)
	if err != nil {
		return nil, &SnapshotLoadError{Scope: scope, Err: err}
	}
	return NewSnapshot(scope, accounts, groups), nil
}

// Normalize resolves both storage shapes into canonical transaction groups.
// Groups that carry inline entries keep them and are marked embedded. Every other group
// takes its entries from standalone, matched on TransactionID, and is marked standalone.
// Entries are ordered by Sequence and stamped with their group id.
func Normalize(groups []TransactionGroup, standalone []Entry) []TransactionGroup {
	byTransaction := make(map[string][]Entry)
	for _, e := range standalone {
		byTransaction[e.TransactionID] = append(byTransaction[e.TransactionID], e)
	}

	out := make([]TransactionGroup, len(groups))
	for i, g := range groups {
		if len(g.Entries) > 0 {
			g.Entries = append([]Entry(nil), g.Entries...)
			g.StorageFormat = StorageFormatEmbedded
		} else {
			g.Entries = append([]Entry(nil), byTransaction[g.ID]...)
			g.StorageFormat = StorageFormatStandalone
		}
		for j := range g.Entries {
			g.Entries[j].TransactionID = g.ID
		}
		sort.SliceStable(g.Entries, func(a, b int) bool {
			return g.Entries[a].Sequence < g.Entries[b].Sequence
		})
		out[i] = g
	}
	return out
}

// StaticSnapshotLoader serves a fixed in-memory ledger, filtered by scope
type StaticSnapshotLoader struct {
	Accounts     []Account
	Transactions []TransactionGroup
}

// NewStaticSnapshotLoader creates a loader over fixed data
func NewStaticSnapshotLoader(accounts []Account, groups []TransactionGroup) *StaticSnapshotLoader {
	return &StaticSnapshotLoader{Accounts: accounts, Transactions: groups}
}

// ListAccounts returns the accounts inside the scope
func (l *StaticSnapshotLoader) ListAccounts(_ context.Context, scope Scope) ([]Account, error) {
	out := make([]Account, 0, len(l.Accounts))
	for _, a := range l.Accounts {
		if scope.Matches(a.OwnerID, a.OrganizationID) {
			out = append(out, a)
		}
	}
	return out, nil
}

// ListTransactionGroups returns the transaction groups inside the scope
func (l *StaticSnapshotLoader) ListTransactionGroups(_ context.Context, scope Scope) ([]TransactionGroup, error) {
	out := make([]TransactionGroup, 0, len(l.Transactions))
	for _, g := range l.Transactions {
		if scope.Matches(g.OwnerID, g.OrganizationID) {
			out = append(out, g)
		}
	}
	return out, nil
}

var _ SnapshotLoader = (*StaticSnapshotLoader)(nil)

// ErrNoSuchTransaction is returned when a lookup names a transaction outside the snapshot
func ErrNoSuchTransaction(id string) error {
	return shared.NewDomainError("NOT_FOUND", fmt.Sprintf("transaction %s not found", id))
}

// ErrNoSuchAccount is returned when a lookup names an account outside the snapshot
func ErrNoSuchAccount(id string) error {
	return shared.NewDomainError("NOT_FOUND", fmt.Sprintf("account %s not found", id))
}
