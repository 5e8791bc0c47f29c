package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// UtilizationPrecision is the number of decimal places kept in utilization rates
const UtilizationPrecision = 4

// FundingQuery narrows a funding analysis to consuming transactions dated inside [From, To].
// Nil bounds are open.
type FundingQuery struct {
	Scope Scope
	From  *time.Time
	To    *time.Time
}

// Includes reports whether a consuming transaction falls inside the date range.
// Undated transactions are only included when no range is set.
func (q FundingQuery) Includes(g *TransactionGroup) bool {
	if q.From == nil && q.To == nil {
		return true
	}
	if g.TransactionDate == nil {
		return false
	}
	if q.From != nil && g.TransactionDate.Before(*q.From) {
		return false
	}
	if q.To != nil && g.TransactionDate.After(*q.To) {
		return false
	}
	return true
}

// FundingUsage is one entry drawing on a funding source
type FundingUsage struct {
	TransactionID string          `json:"transactionId"`
	GroupNumber   string          `json:"groupNumber"`
	EntryID       string          `json:"entryId,omitempty"`
	Sequence      int             `json:"sequence"`
	AccountID     string          `json:"accountId"`
	Amount        decimal.Decimal `json:"amount"`
}

// FundingFlowRecord aggregates everything drawn from one funding source
type FundingFlowRecord struct {
	SourceTransactionID  string          `json:"sourceTransactionId"`
	SourceGroupNumber    string          `json:"sourceGroupNumber,omitempty"`
	Description          string          `json:"description"`
	FundingType          string          `json:"fundingType,omitempty"`
	SourceFound          bool            `json:"sourceFound"`
	TotalFundingAmount   decimal.Decimal `json:"totalFundingAmount"`
	TotalUsedAmount      decimal.Decimal `json:"totalUsedAmount"`
	TotalAvailableAmount decimal.Decimal `json:"totalAvailableAmount"`
	UtilizationRate      decimal.Decimal `json:"utilizationRate"`
	Usages               []FundingUsage  `json:"usages"`
}

// FundingAnalysis is the funding report across all sources referenced in range
type FundingAnalysis struct {
	TotalFundingSources  int                 `json:"totalFundingSources"`
	TotalFundingAmount   decimal.Decimal     `json:"totalFundingAmount"`
	TotalUsedAmount      decimal.Decimal     `json:"totalUsedAmount"`
	TotalAvailableAmount decimal.Decimal     `json:"totalAvailableAmount"`
	UtilizationRate      decimal.Decimal     `json:"utilizationRate"`
	FlowDetails          []FundingFlowRecord `json:"flowDetails"`
	Cycles               [][]string          `json:"cycles,omitempty"`
}

// UtilizationRate returns used / funding rounded to UtilizationPrecision, or zero when funding is zero
func UtilizationRate(used, funding decimal.Decimal) decimal.Decimal {
	if funding.IsZero() {
		return decimal.Zero
	}
	return used.DivRound(funding, UtilizationPrecision)
}

// AnalyzeFunding attributes each entry's amount to the transaction it draws on.
// A source's funding amount is its own TotalAmount. Cancelled consuming transactions
// are ignored. Sources appear in the order they are first referenced.
func AnalyzeFunding(snapshot *Snapshot, query FundingQuery) FundingAnalysis {
	records := make(map[string]*FundingFlowRecord)
	var order []string

	for i := range snapshot.Transactions {
		g := &snapshot.Transactions[i]
		if g.Status == TransactionStatusCancelled || !query.Includes(g) {
			continue
		}
		for j := range g.Entries {
			e := &g.Entries[j]
			if !e.HasFundingSource() {
				continue
			}
			rec, ok := records[e.SourceTransactionID]
			if !ok {
				rec = newFundingFlowRecord(snapshot, e.SourceTransactionID)
				records[e.SourceTransactionID] = rec
				order = append(order, e.SourceTransactionID)
			}
			amount := e.Amount()
			rec.TotalUsedAmount = rec.TotalUsedAmount.Add(amount)
			rec.Usages = append(rec.Usages, FundingUsage{
				TransactionID: g.ID,
				GroupNumber:   g.GroupNumber,
				EntryID:       e.ID,
				Sequence:      e.Sequence,
				AccountID:     e.AccountID(),
				Amount:        amount,
			})
		}
	}

	analysis := FundingAnalysis{
		TotalFundingAmount: decimal.Zero,
		TotalUsedAmount:    decimal.Zero,
		FlowDetails:        make([]FundingFlowRecord, 0, len(order)),
	}
	for _, id := range order {
		rec := records[id]
		rec.TotalAvailableAmount = rec.TotalFundingAmount.Sub(rec.TotalUsedAmount)
		rec.UtilizationRate = UtilizationRate(rec.TotalUsedAmount, rec.TotalFundingAmount)
		analysis.TotalFundingAmount = analysis.TotalFundingAmount.Add(rec.TotalFundingAmount)
		analysis.TotalUsedAmount = analysis.TotalUsedAmount.Add(rec.TotalUsedAmount)
		analysis.FlowDetails = append(analysis.FlowDetails, *rec)
	}
	analysis.TotalFundingSources = len(order)
	analysis.TotalAvailableAmount = analysis.TotalFundingAmount.Sub(analysis.TotalUsedAmount)
	analysis.UtilizationRate = UtilizationRate(analysis.TotalUsedAmount, analysis.TotalFundingAmount)
	analysis.Cycles = FindFundingCycles(snapshot)
	return analysis
}

func newFundingFlowRecord(snapshot *Snapshot, sourceID string) *FundingFlowRecord {
	rec := &FundingFlowRecord{
		SourceTransactionID: sourceID,
		TotalFundingAmount:  decimal.Zero,
		TotalUsedAmount:     decimal.Zero,
	}
	if src, ok := snapshot.Transaction(sourceID); ok {
		rec.SourceFound = true
		rec.SourceGroupNumber = src.GroupNumber
		rec.Description = src.Description
		rec.FundingType = src.FundingType
		rec.TotalFundingAmount = src.TotalAmount
	}
	if rec.Description == "" {
		rec.Description = sourceID
	}
	return rec
}

// FundingLineage is the chain of funding sources behind one transaction
type FundingLineage struct {
	TransactionID string `json:"transactionId"`
	// Ancestors lists every reachable funding source, nearest first
	Ancestors []string `json:"ancestors"`
	// DeclaredPath merges the fundingPath recorded on the transaction's entries
	DeclaredPath []string `json:"declaredPath,omitempty"`
	// Cycle is the first closed loop met while walking, e.g. [A B A]
	Cycle []string `json:"cycle,omitempty"`
}

// HasCycle reports whether the walk ran into a funding loop
func (l FundingLineage) HasCycle() bool {
	return len(l.Cycle) > 0
}

// TraceFundingLineage walks sourceTransactionId links upward from a transaction.
// Each transaction is visited once, so a funding loop ends the walk and is reported
// in Cycle instead of recursing forever.
func TraceFundingLineage(snapshot *Snapshot, transactionID string) (FundingLineage, error) {
	g, ok := snapshot.Transaction(transactionID)
	if !ok {
		return FundingLineage{}, ErrNoSuchTransaction(transactionID)
	}
	graph := fundingGraph(snapshot)

	lineage := FundingLineage{TransactionID: transactionID, Ancestors: []string{}}
	seenPath := make(map[string]struct{})
	for i := range g.Entries {
		for _, id := range g.Entries[i].FundingPath {
			if _, dup := seenPath[id]; !dup {
				seenPath[id] = struct{}{}
				lineage.DeclaredPath = append(lineage.DeclaredPath, id)
			}
		}
	}

	visited := map[string]bool{transactionID: true}
	onStack := map[string]bool{transactionID: true}
	stack := []string{transactionID}

	var walk func(id string)
	walk = func(id string) {
		for _, parent := range graph[id] {
			if onStack[parent] {
				if lineage.Cycle == nil {
					lineage.Cycle = closeCycle(stack, parent)
				}
				continue
			}
			if visited[parent] {
				continue
			}
			visited[parent] = true
			lineage.Ancestors = append(lineage.Ancestors, parent)
			onStack[parent] = true
			stack = append(stack, parent)
			walk(parent)
			stack = stack[:len(stack)-1]
			onStack[parent] = false
		}
	}
	walk(transactionID)
	return lineage, nil
}

// FindFundingCycles returns every elementary funding loop in the snapshot, each once.
// A loop starts at its smallest transaction id and is closed, e.g. [A B A].
// Loops are enumerated per strongly connected component with Johnson's algorithm.
func FindFundingCycles(snapshot *Snapshot) [][]string {
	graph := fundingGraph(snapshot)
	nodes := fundingNodes(graph)
	rank := make(map[string]int, len(nodes))
	for i, id := range nodes {
		rank[id] = i
	}
	component := fundingComponents(graph, nodes)

	var cycles [][]string
	for _, start := range nodes {
		lowest := rank[start]
		follows := func(from, to string) bool {
			return component[to] == component[from] && rank[to] >= lowest
		}
		blocked := make(map[string]bool)
		blockedBy := make(map[string]map[string]struct{})
		var stack []string

		var unblock func(id string)
		unblock = func(id string) {
			blocked[id] = false
			for waiting := range blockedBy[id] {
				delete(blockedBy[id], waiting)
				if blocked[waiting] {
					unblock(waiting)
				}
			}
		}

		var circuit func(id string) bool
		circuit = func(id string) bool {
			found := false
			stack = append(stack, id)
			blocked[id] = true
			for _, next := range graph[id] {
				switch {
				case !follows(id, next):
				case next == start:
					cycles = append(cycles, append(append([]string(nil), stack...), start))
					found = true
				case !blocked[next]:
					if circuit(next) {
						found = true
					}
				}
			}
			if found {
				unblock(id)
			} else {
				for _, next := range graph[id] {
					if !follows(id, next) {
						continue
					}
					if blockedBy[next] == nil {
						blockedBy[next] = make(map[string]struct{})
					}
					blockedBy[next][id] = struct{}{}
				}
			}
			stack = stack[:len(stack)-1]
			return found
		}
		circuit(start)
	}
	return cycles
}

// fundingNodes lists every transaction id in the graph, sorted
func fundingNodes(graph map[string][]string) []string {
	seen := make(map[string]struct{}, len(graph))
	nodes := make([]string, 0, len(graph))
	add := func(id string) {
		if _, dup := seen[id]; !dup {
			seen[id] = struct{}{}
			nodes = append(nodes, id)
		}
	}
	for id, sources := range graph {
		add(id)
		for _, src := range sources {
			add(src)
		}
	}
	sort.Strings(nodes)
	return nodes
}

// fundingComponents numbers the strongly connected components of the graph (Tarjan)
func fundingComponents(graph map[string][]string, nodes []string) map[string]int {
	index := make(map[string]int, len(nodes))
	low := make(map[string]int, len(nodes))
	onStack := make(map[string]bool, len(nodes))
	component := make(map[string]int, len(nodes))
	var stack []string
	counter, components := 0, 0

	var connect func(id string)
	connect = func(id string) {
		index[id] = counter
		low[id] = counter
		counter++
		stack = append(stack, id)
		onStack[id] = true
		for _, next := range graph[id] {
			if _, visited := index[next]; !visited {
				connect(next)
				low[id] = min(low[id], low[next])
			} else if onStack[next] {
				low[id] = min(low[id], index[next])
			}
		}
		if low[id] != index[id] {
			return
		}
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			component[top] = components
			if top == id {
				break
			}
		}
		components++
	}
	for _, id := range nodes {
		if _, visited := index[id]; !visited {
			connect(id)
		}
	}
	return component
}

// fundingGraph maps each transaction to the sources its entries draw on, in first-seen order
func fundingGraph(snapshot *Snapshot) map[string][]string {
	graph := make(map[string][]string, len(snapshot.Transactions))
	for i := range snapshot.Transactions {
		g := &snapshot.Transactions[i]
		seen := make(map[string]struct{})
		for j := range g.Entries {
			src := g.Entries[j].SourceTransactionID
			if src == "" {
				continue
			}
			if _, dup := seen[src]; dup {
				continue
			}
			seen[src] = struct{}{}
			graph[g.ID] = append(graph[g.ID], src)
		}
	}
	return graph
}

// closeCycle cuts the stack at target and appends target to close the loop
func closeCycle(stack []string, target string) []string {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == target {
			cycle := append([]string(nil), stack[i:]...)
			return append(cycle, target)
		}
	}
	return []string{target, target}
}
