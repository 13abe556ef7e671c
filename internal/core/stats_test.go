package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentcore/pkg/domain"
)

func TestSummarize(t *testing.T) {
	docs := []ScopedDocument{
		scoped(docFixture{id: "a", category: "bail", lot: "L1", tags: []string{"Signed", " signed "}}),
		scoped(docFixture{id: "b", category: "bail", group: "G1", tags: []string{"2024"}}),
		scoped(docFixture{id: "c", tenant: "T1"}),
		scoped(docFixture{id: "d", category: "bail", tenant: "T1", candidate: "C1", tags: []string{"ignored"}}),
	}

	s := Summarize(docs)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, int64(300), s.TotalSize)
	assert.Equal(t, map[string]int{"bail": 2, "uncategorized": 1}, s.ByCategory)
	assert.Equal(t, 2, s.DistinctTagCount)
	assert.Equal(t, 1, s.Ambiguous)
	assert.Equal(t, map[domain.OwnerKind]int{domain.OwnerLot: 1, domain.OwnerTenantGroup: 1, domain.OwnerTenant: 1}, s.ByAssociation)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.Total)
	assert.NotNil(t, s.ByCategory)
	assert.NotNil(t, s.ByAssociation)
}

func TestStatsTotalMatchesRootCounts(t *testing.T) {
	store := newScenarioStore(t)
	engine := NewPortfolioEngine(store)
	ctx := context.Background()

	for _, scope := range []string{"", "E1", "E2"} {
		forest, err := engine.BuildTree(ctx, scope)
		require.NoError(t, err)
		stats, err := engine.Stats(ctx, scope)
		require.NoError(t, err)
		assert.Equal(t, forest.DocumentCount(), stats.Total, "scope %q", scope)
	}

	stats, err := engine.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 9, stats.Total)
	assert.Equal(t, 1, stats.Ambiguous)
	assert.Equal(t, 3, stats.ByCategory["bail"])
	assert.Equal(t, 2, stats.DistinctTagCount)
}
