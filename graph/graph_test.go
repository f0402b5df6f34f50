// Package graph_test locks in the node/edge/container invariants and the
// measurement, activation, and weight-update formulas.
package graph_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Jak3Gil/melvin/graph"
)

func TestAddOrStrengthenEdge_NoDuplicates(t *testing.T) {
	g := graph.New()
	a := g.AddNode([]byte("A"))
	b := g.AddNode([]byte("B"))

	e1, created1 := g.AddOrStrengthenEdge(a, b, 1)
	require.True(t, created1)

	e2, created2 := g.AddOrStrengthenEdge(a, b, 1)
	require.False(t, created2)
	require.Same(t, e1, e2)

	require.Len(t, a.Outgoing, 1, "no duplicate outgoing edge must ever exist between the same ordered pair")
}

func TestInvariant_OutgoingWeightSumMatchesEdges(t *testing.T) {
	g := graph.New()
	a := g.AddNode([]byte("A"))
	b := g.AddNode([]byte("B"))
	c := g.AddNode([]byte("C"))

	g.AddOrStrengthenEdge(a, b, 1)
	g.AddOrStrengthenEdge(a, c, 1)

	var sum float64
	for _, e := range a.Outgoing {
		sum += e.Weight
	}
	require.InDelta(t, sum, a.OutgoingWeightSum, 1e-9)

	var inSum float64
	for _, e := range b.Incoming {
		inSum += e.Weight
	}
	require.InDelta(t, inSum, b.IncomingWeightSum, 1e-9)
}

func TestRemoveNodeCascade_UpdatesOtherEndpointSums(t *testing.T) {
	g := graph.New()
	a := g.AddNode([]byte("A"))
	b := g.AddNode([]byte("B"))
	g.AddOrStrengthenEdge(a, b, 1)

	require.NoError(t, g.RemoveNodeCascade(a))
	require.Equal(t, 0.0, b.IncomingWeightSum)
	require.Empty(t, b.Incoming)
}

func TestFindNodesByPayload_SupersetOfTrueMatches(t *testing.T) {
	g := graph.New()
	n := g.AddNode([]byte("hello"))

	candidates := g.FindNodesByPayload([]byte("hello"))
	require.Contains(t, candidates, n)
}

func TestFillBlank_RequiresEmptyPayload(t *testing.T) {
	g := graph.New()
	blank := g.AddBlankNode()
	require.True(t, blank.Blank())

	require.NoError(t, g.FillBlank(blank, []byte("x")))
	require.False(t, blank.Blank())

	err := g.FillBlank(blank, []byte("y"))
	require.ErrorIs(t, err, graph.ErrNotBlank)
}

func TestCombinePayloads_AbstractionAndWeight(t *testing.T) {
	g := graph.New()
	a := g.AddNode([]byte("cat"))
	b := g.AddNode([]byte("dog"))
	a.Weight = 0.4
	b.Weight = 0.6

	combined := g.CombinePayloads(a, b)
	require.Equal(t, uint32(1), combined.AbstractionLevel)
	require.InDelta(t, 0.5, combined.Weight, 1e-9)
	require.Equal(t, "catdog", string(combined.Payload))
}

func TestPayloadSimilarity_Bounds(t *testing.T) {
	g := graph.New()
	n := g.AddNode([]byte("hello"))

	require.Equal(t, 1.0, graph.PayloadSimilarity(n, []byte("hello world")))
	require.Equal(t, 0.0, graph.PayloadSimilarity(n, []byte("hi")))

	partial := g.AddNode([]byte("help"))
	sim := graph.PayloadSimilarity(partial, []byte("helm"))
	require.InDelta(t, 0.75, sim, 1e-9) // "hel" matches, "p" vs "m" doesn't
}

func TestMatchStrength_BlankUsesConnections(t *testing.T) {
	g := graph.New()
	blank := g.AddBlankNode()
	apple := g.AddNode([]byte("apple"))
	g.AddOrStrengthenEdge(blank, apple, 1)

	strength := graph.MatchStrength(blank, []byte("apple"))
	require.Greater(t, strength, 0.0)
}

func TestValidate_CleanGraphPasses(t *testing.T) {
	g := graph.New()
	a := g.AddNode([]byte("alpha"))
	b := g.AddNode([]byte("beta"))
	c := g.AddNode([]byte("gamma"))
	g.AddOrStrengthenEdge(a, b, 1)
	g.AddOrStrengthenEdge(b, c, 0.5)
	g.AddOrStrengthenEdge(a, b, 0.25) // strengthen path
	require.NoError(t, g.RemoveNodeCascade(c))

	require.NoError(t, g.Validate())
}

func TestValidate_DetectsSumDrift(t *testing.T) {
	g := graph.New()
	a := g.AddNode([]byte("alpha"))
	b := g.AddNode([]byte("beta"))
	g.AddOrStrengthenEdge(a, b, 1)

	a.OutgoingWeightSum += 1 // simulate a caller corrupting the cache

	err := g.Validate()
	require.Error(t, err)
	var invErr *graph.InvariantError
	require.ErrorAs(t, err, &invErr)
	require.Equal(t, "cached weight sum", invErr.Invariant)
}

func TestNewEdgeAdoptsFirstActivation(t *testing.T) {
	g := graph.New()
	a := g.AddNode([]byte("a"))
	b := g.AddNode([]byte("b"))
	c := g.AddNode([]byte("c"))

	// First edge has no sibling context at all: the minimal-context rate
	// adopts the activation outright.
	e1, _ := g.AddOrStrengthenEdge(a, b, 1)
	require.Equal(t, 1.0, e1.Weight)

	// Second edge has sibling context but zero weight of its own: still
	// adopts, so a new connection is never stuck at zero.
	e2, _ := g.AddOrStrengthenEdge(a, c, 0.25)
	require.Equal(t, 0.25, e2.Weight)

	require.NoError(t, g.Validate())
}

func TestDominantNodeLearnsSlowly(t *testing.T) {
	g := graph.New()
	n := g.AddNode([]byte("n"))
	sink := g.AddNode([]byte("s"))
	g.AddOrStrengthenEdge(n, sink, 0.1)

	n.Activation = 1
	graph.ApplyNodeWeightUpdate(n)
	first := n.Weight
	require.Greater(t, first, 0.0)

	// The node now sits far above its outgoing neighborhood; a second
	// update toward a low activation barely moves it.
	n.Activation = 0
	graph.ApplyNodeWeightUpdate(n)
	require.Greater(t, n.Weight, first/2)
}

func TestBucketGrowth_PreservesLookup(t *testing.T) {
	g := graph.New()
	var created []*graph.Node
	for i := 0; i < 64; i++ {
		created = append(created, g.AddNode([]byte{byte(i), byte(i + 1), byte(i + 2)}))
	}
	for _, n := range created {
		candidates := g.FindNodesByPayload(n.Payload)
		require.Contains(t, candidates, n)
	}
	require.Greater(t, g.BucketCount(), 1)
}
