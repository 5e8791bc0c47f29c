package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/pharmapos/backend/internal/domain/ledger"
	"github.com/pharmapos/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFundingRange(t *testing.T) {
	q, err := ParseFundingRange(ownerA, "", "")
	require.NoError(t, err)
	assert.Nil(t, q.From)
	assert.Nil(t, q.To)

	q, err = ParseFundingRange(ownerA, "2026-03-01", "2026-03-31")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *q.From)
	assert.Equal(t, 31, q.To.Day())
	assert.Equal(t, 23, q.To.Hour())

	_, err = ParseFundingRange(ownerA, "03/01/2026", "")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = ParseFundingRange(ownerA, "", "tomorrow")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = ParseFundingRange(ownerA, "2026-04-01", "2026-03-01")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestFundingService_Analyze(t *testing.T) {
	ctx := context.Background()
	svc := NewFundingService(pharmacyLedger(), nil)

	analysis, err := svc.Analyze(ctx, ledger.FundingQuery{Scope: ownerA})
	require.NoError(t, err)
	assert.Equal(t, 1, analysis.TotalFundingSources)
	assert.Equal(t, "30", analysis.TotalFundingAmount.String())
	assert.Equal(t, "12", analysis.TotalUsedAmount.String())
	assert.Equal(t, "0.4", analysis.UtilizationRate.String())

	q, err := ParseFundingRange(ownerA, "2026-04-01", "")
	require.NoError(t, err)
	analysis, err = svc.Analyze(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 0, analysis.TotalFundingSources)

	_, err = svc.Analyze(ctx, ledger.FundingQuery{})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestFundingService_Lineage(t *testing.T) {
	ctx := context.Background()
	svc := NewFundingService(pharmacyLedger(), nil)

	lineage, err := svc.Lineage(ctx, ownerA, "purchase-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"sale-1"}, lineage.Ancestors)
	assert.False(t, lineage.HasCycle())

	_, err = svc.Lineage(ctx, ownerA, "ghost")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
