package output_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Jak3Gil/melvin/graph"
	"github.com/Jak3Gil/melvin/output"
)

func TestReadiness_ZeroWhenNoOutgoingEdges(t *testing.T) {
	g := graph.New()
	n := g.AddNode([]byte("x"))

	require.Equal(t, 0.0, output.Readiness([]*graph.Node{n}))
}

func TestReadiness_PositiveWhenOutgoingEdgeExists(t *testing.T) {
	g := graph.New()
	a := g.AddNode([]byte("a"))
	b := g.AddNode([]byte("b"))
	g.AddOrStrengthenEdge(a, b, 1)

	require.Greater(t, output.Readiness([]*graph.Node{a}), 0.0)
}

func TestCollect_NeverEchoesStartingNodes(t *testing.T) {
	g := graph.New()
	a := g.AddNode([]byte("a"))
	b := g.AddNode([]byte("b"))
	g.AddOrStrengthenEdge(a, b, 1)
	a.Activation = 1

	out := output.Collect(g, []*graph.Node{a})
	require.NotContains(t, string(out), "a")
}

func TestCollect_EmptyWhenNoQualifyingEdge(t *testing.T) {
	g := graph.New()
	a := g.AddNode([]byte("a"))

	out := output.Collect(g, []*graph.Node{a})
	require.Empty(t, out)
}
