package semlink

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinigraph-server/internal/domain"
	"github.com/clinigraph-server/internal/store"
)

func newTestGraph(t *testing.T) (*Graph, *store.Snapshot) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	snap := store.NewSnapshot()
	return New(logger, snap, 0), snap
}

func TestUpsert_Reinforcement(t *testing.T) {
	g, snap := newTestGraph(t)

	link := domain.SemanticLink{Source: "Pyrexia", Relation: domain.RelSynonymOf, Target: "Fever", Strength: 2}
	for i := 0; i < 3; i++ {
		require.NoError(t, g.Upsert(link))
	}

	require.Len(t, snap.Links, 1, "reinsertion must reinforce, not duplicate")
	stored := snap.Links[store.LinkKey("pyrexia", domain.RelSynonymOf, "fever")]
	require.NotNil(t, stored)
	assert.Equal(t, 3, stored.CountSeen)
	assert.Equal(t, 6.0, stored.Strength)
}

func TestUpsert_SelfLoopIsNoOp(t *testing.T) {
	g, snap := newTestGraph(t)

	err := g.Upsert(domain.SemanticLink{Source: "Fever", Relation: domain.RelSynonymOf, Target: "  fever "})
	require.NoError(t, err)
	assert.Empty(t, snap.Links)
}

func TestUpsert_EmptyLabelAborts(t *testing.T) {
	g, snap := newTestGraph(t)

	err := g.Upsert(domain.SemanticLink{Source: "  ", Relation: domain.RelSynonymOf, Target: "fever"})
	var keyErr *domain.KeyError
	require.ErrorAs(t, err, &keyErr)
	assert.Empty(t, snap.Links)
}

func TestUpsert_MinimumStrength(t *testing.T) {
	g, snap := newTestGraph(t)

	require.NoError(t, g.Upsert(domain.SemanticLink{Source: "a", Relation: domain.RelIsA, Target: "b", Strength: 0}))
	stored := snap.Links[store.LinkKey("a", domain.RelIsA, "b")]
	require.NotNil(t, stored)
	assert.Equal(t, 1.0, stored.Strength)
}

func TestResolveLabel_FollowsChain(t *testing.T) {
	g, _ := newTestGraph(t)

	require.NoError(t, g.Upsert(domain.SemanticLink{Source: "temp", Relation: domain.RelSynonymOf, Target: "pyrexia"}))
	require.NoError(t, g.Upsert(domain.SemanticLink{Source: "pyrexia", Relation: domain.RelSynonymOf, Target: "fever"}))

	assert.Equal(t, "fever", g.ResolveLabel("Temp"))
	assert.Equal(t, "fever", g.ResolveLabel("pyrexia"))
	assert.Equal(t, "fever", g.ResolveLabel("fever"))
}

func TestResolveLabel_CycleTerminates(t *testing.T) {
	g, _ := newTestGraph(t)

	require.NoError(t, g.Upsert(domain.SemanticLink{Source: "a", Relation: domain.RelSynonymOf, Target: "b"}))
	require.NoError(t, g.Upsert(domain.SemanticLink{Source: "b", Relation: domain.RelSynonymOf, Target: "a"}))

	// The walk stops at the revisit and returns the label reached so far.
	assert.Equal(t, "b", g.ResolveLabel("a"))
	assert.Equal(t, "a", g.ResolveLabel("b"))
}

func TestResolveLabel_PicksStrongestEdge(t *testing.T) {
	g, _ := newTestGraph(t)

	require.NoError(t, g.Upsert(domain.SemanticLink{Source: "a", Relation: domain.RelSynonymOf, Target: "weak", Strength: 1}))
	require.NoError(t, g.Upsert(domain.SemanticLink{Source: "a", Relation: domain.RelSynonymOf, Target: "strong", Strength: 5}))

	assert.Equal(t, "strong", g.ResolveLabel("a"))
}

func TestResolveLabel_IgnoresNonTransitiveRelations(t *testing.T) {
	g, _ := newTestGraph(t)

	require.NoError(t, g.Upsert(domain.SemanticLink{Source: "palmar", Relation: domain.RelPartOf, Target: "palmar edema"}))

	// part_of does not participate in canonicalization.
	assert.Equal(t, "palmar", g.ResolveLabel("Palmar"))
}

func TestResolveLabel_HopLimit(t *testing.T) {
	g, _ := newTestGraph(t)

	labels := []string{"l0", "l1", "l2", "l3", "l4", "l5", "l6", "l7", "l8"}
	for i := 0; i < len(labels)-1; i++ {
		require.NoError(t, g.Upsert(domain.SemanticLink{
			Source: labels[i], Relation: domain.RelSynonymOf, Target: labels[i+1],
		}))
	}

	// Six hops from l0 lands on l6, not the end of the chain.
	assert.Equal(t, "l6", g.ResolveLabel("l0"))
}
