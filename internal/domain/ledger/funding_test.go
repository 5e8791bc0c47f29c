package ledger

import (
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fundingLedger() *Snapshot {
	grant := group("grant", "G-1", TransactionStatusConfirmed, debit("bank", 1000, 1), credit("equity", 1000, 2))
	grant.TotalAmount = dec(1000)
	grant.Description = "Municipal grant"
	grant.FundingType = "grant"

	purchase := group("purchase", "P-1", TransactionStatusConfirmed, debit("stock", 300, 1), credit("bank", 300, 2))
	purchase.Entries[0].SourceTransactionID = "grant"
	purchase.TransactionDate = date(2024, time.February, 10)

	wages := group("wages", "W-1", TransactionStatusDraft, debit("wages", 200, 1), credit("bank", 200, 2))
	wages.Entries[0].SourceTransactionID = "grant"
	wages.TransactionDate = date(2024, time.April, 10)

	voided := group("voided", "V-1", TransactionStatusCancelled, debit("stock", 999, 1), credit("bank", 999, 2))
	voided.Entries[0].SourceTransactionID = "grant"

	return NewSnapshot(Scope{}, nil, []TransactionGroup{grant, purchase, wages, voided})
}

func TestAnalyzeFunding(t *testing.T) {
	t.Run("aggregates usage per source", func(t *testing.T) {
		analysis := AnalyzeFunding(fundingLedger(), FundingQuery{})

		assert.Equal(t, 1, analysis.TotalFundingSources)
		assert.True(t, analysis.TotalFundingAmount.Equal(dec(1000)))
		assert.True(t, analysis.TotalUsedAmount.Equal(dec(500)))
		assert.True(t, analysis.TotalAvailableAmount.Equal(dec(500)))
		assert.True(t, analysis.UtilizationRate.Equal(decimal.RequireFromString("0.5")))

		require.Len(t, analysis.FlowDetails, 1)
		flow := analysis.FlowDetails[0]
		assert.Equal(t, "grant", flow.SourceTransactionID)
		assert.Equal(t, "Municipal grant", flow.Description)
		assert.True(t, flow.SourceFound)
		require.Len(t, flow.Usages, 2)
		assert.Equal(t, "purchase", flow.Usages[0].TransactionID)
		assert.Equal(t, "wages", flow.Usages[1].TransactionID)
		assert.Empty(t, analysis.Cycles)
	})

	t.Run("date range filters consuming transactions", func(t *testing.T) {
		analysis := AnalyzeFunding(fundingLedger(), FundingQuery{
			From: date(2024, time.April, 1),
			To:   date(2024, time.April, 30),
		})

		require.Len(t, analysis.FlowDetails, 1)
		assert.True(t, analysis.TotalUsedAmount.Equal(dec(200)))
		assert.True(t, analysis.UtilizationRate.Equal(decimal.RequireFromString("0.2")))
	})

	t.Run("zero funding amount yields zero utilization", func(t *testing.T) {
		snapshot := fundingLedger()
		src, _ := snapshot.Transaction("grant")
		src.TotalAmount = decimal.Zero
		analysis := AnalyzeFunding(snapshot, FundingQuery{})

		assert.True(t, analysis.UtilizationRate.IsZero())
		assert.True(t, analysis.FlowDetails[0].UtilizationRate.IsZero())
		assert.True(t, analysis.TotalAvailableAmount.Equal(dec(-500)))
	})

	t.Run("unknown source is reported with zero funding", func(t *testing.T) {
		g := group("spend", "S-1", TransactionStatusDraft, debit("stock", 50, 1), credit("bank", 50, 2))
		g.Entries[0].SourceTransactionID = "missing"
		analysis := AnalyzeFunding(NewSnapshot(Scope{}, nil, []TransactionGroup{g}), FundingQuery{})

		require.Len(t, analysis.FlowDetails, 1)
		assert.False(t, analysis.FlowDetails[0].SourceFound)
		assert.Equal(t, "missing", analysis.FlowDetails[0].Description)
		assert.True(t, analysis.UtilizationRate.IsZero())
	})

	t.Run("available equals funding minus used", func(t *testing.T) {
		analysis := AnalyzeFunding(fundingLedger(), FundingQuery{})
		for _, flow := range analysis.FlowDetails {
			assert.True(t, flow.TotalAvailableAmount.Equal(flow.TotalFundingAmount.Sub(flow.TotalUsedAmount)))
		}
		assert.True(t, analysis.TotalAvailableAmount.Equal(analysis.TotalFundingAmount.Sub(analysis.TotalUsedAmount)))
	})
}

func cyclicLedger() *Snapshot {
	a := group("A", "A", TransactionStatusDraft, debit("x", 10, 1), credit("y", 10, 2))
	a.Entries[0].SourceTransactionID = "B"
	b := group("B", "B", TransactionStatusDraft, debit("x", 10, 1), credit("y", 10, 2))
	b.Entries[0].SourceTransactionID = "C"
	c := group("C", "C", TransactionStatusDraft, debit("x", 10, 1), credit("y", 10, 2))
	c.Entries[0].SourceTransactionID = "A"
	d := group("D", "D", TransactionStatusDraft, debit("x", 10, 1), credit("y", 10, 2))
	d.Entries[0].SourceTransactionID = "B"
	d.Entries[0].FundingPath = []string{"C", "B"}
	return NewSnapshot(Scope{}, nil, []TransactionGroup{a, b, c, d})
}

// fundingGraphLedger builds one draft group per key whose entries draw on the listed sources in order
func fundingGraphLedger(sources map[string][]string) *Snapshot {
	ids := make([]string, 0, len(sources))
	for id := range sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	groups := make([]TransactionGroup, 0, len(ids))
	for _, id := range ids {
		g := group(id, id, TransactionStatusDraft)
		for i, src := range sources[id] {
			e := debit("x", 1, i+1)
			e.SourceTransactionID = src
			g.Entries = append(g.Entries, e)
		}
		groups = append(groups, g)
	}
	return NewSnapshot(Scope{}, nil, groups)
}

func TestTraceFundingLineage(t *testing.T) {
	t.Run("walks ancestors nearest first", func(t *testing.T) {
		root := group("root", "R", TransactionStatusConfirmed)
		mid := group("mid", "M", TransactionStatusConfirmed, debit("x", 1, 1), credit("y", 1, 2))
		mid.Entries[0].SourceTransactionID = "root"
		leaf := group("leaf", "L", TransactionStatusDraft, debit("x", 1, 1), credit("y", 1, 2))
		leaf.Entries[0].SourceTransactionID = "mid"
		leaf.Entries[0].FundingPath = []string{"root", "mid"}

		lineage, err := TraceFundingLineage(NewSnapshot(Scope{}, nil, []TransactionGroup{root, mid, leaf}), "leaf")
		require.NoError(t, err)
		assert.Equal(t, []string{"mid", "root"}, lineage.Ancestors)
		assert.Equal(t, []string{"root", "mid"}, lineage.DeclaredPath)
		assert.False(t, lineage.HasCycle())
	})

	t.Run("stops at a cycle and reports it", func(t *testing.T) {
		lineage, err := TraceFundingLineage(cyclicLedger(), "D")
		require.NoError(t, err)
		assert.Equal(t, []string{"B", "C", "A"}, lineage.Ancestors)
		assert.Equal(t, []string{"B", "C", "A", "B"}, lineage.Cycle)
		assert.True(t, lineage.HasCycle())
	})

	t.Run("unknown transaction is not found", func(t *testing.T) {
		_, err := TraceFundingLineage(cyclicLedger(), "Z")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Z")
	})
}

func TestFindFundingCycles(t *testing.T) {
	t.Run("each loop reported once starting at smallest id", func(t *testing.T) {
		cycles := FindFundingCycles(cyclicLedger())
		assert.Equal(t, [][]string{{"A", "B", "C", "A"}}, cycles)
	})

	t.Run("self funding is a loop", func(t *testing.T) {
		g := group("S", "S", TransactionStatusDraft, debit("x", 1, 1), credit("y", 1, 2))
		g.Entries[0].SourceTransactionID = "S"
		assert.Equal(t, [][]string{{"S", "S"}}, FindFundingCycles(NewSnapshot(Scope{}, nil, []TransactionGroup{g})))
	})

	t.Run("acyclic ledger has none", func(t *testing.T) {
		assert.Empty(t, FindFundingCycles(fundingLedger()))
	})

	t.Run("loop through an already explored transaction", func(t *testing.T) {
		snap := fundingGraphLedger(map[string][]string{
			"A": {"B", "C"},
			"B": {"C"},
			"C": {"A"},
		})
		assert.Equal(t, [][]string{{"A", "B", "C", "A"}, {"A", "C", "A"}}, FindFundingCycles(snap))
	})

	t.Run("loops sharing a transaction are reported separately", func(t *testing.T) {
		snap := fundingGraphLedger(map[string][]string{
			"A": {"B"},
			"B": {"A", "C"},
			"C": {"B"},
			"D": {"C"},
		})
		assert.Equal(t, [][]string{{"A", "B", "A"}, {"B", "C", "B"}}, FindFundingCycles(snap))
	})

	t.Run("analysis surfaces cycles", func(t *testing.T) {
		analysis := AnalyzeFunding(cyclicLedger(), FundingQuery{})
		assert.Len(t, analysis.Cycles, 1)
		assert.Equal(t, 3, analysis.TotalFundingSources)
	})
}
