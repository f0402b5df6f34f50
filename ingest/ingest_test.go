package ingest_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Jak3Gil/melvin/graph"
	"github.com/Jak3Gil/melvin/ingest"
)

func TestIngest_NovelInputCreatesNodes(t *testing.T) {
	g := graph.New()
	pass := ingest.Ingest(g, []byte("NOVEL"))

	require.NotEmpty(t, pass.Sequence)
	require.Greater(t, pass.NodesCreated, 0)
	require.Equal(t, 5, pass.BytesLen)
}

func TestIngest_RepeatedFrameReusesNodes(t *testing.T) {
	g := graph.New()
	ingest.Ingest(g, []byte("HELLO"))
	before := g.NodeCount()

	ingest.Ingest(g, []byte("HELLO"))
	after := g.NodeCount()

	require.Equal(t, before, after, "re-ingesting identical bytes must not create new nodes")
}

func TestIngest_EmptyFrameProducesEmptySequence(t *testing.T) {
	g := graph.New()
	pass := ingest.Ingest(g, nil)

	require.Empty(t, pass.Sequence)
	require.Equal(t, 0, pass.NodesCreated)
}

func TestIngest_FreshPassRecognizesIndexedPatterns(t *testing.T) {
	g := graph.New()
	ingest.Ingest(g, []byte("HELLO"))
	before := g.NodeCount()

	// A later frame starts with an empty activation sequence; recognition
	// must still reach previously learned nodes through the payload index.
	pass := ingest.Ingest(g, []byte("OLLEH"))
	require.Equal(t, before, g.NodeCount())
	require.Equal(t, 0, pass.NodesCreated)
}

func TestIngest_PrefersHigherAbstraction(t *testing.T) {
	g := graph.New()
	g.AddNode([]byte("h"))
	g.AddNode([]byte("e"))
	combined := g.AddNode([]byte("he"))
	combined.AbstractionLevel = 1

	pass := ingest.Ingest(g, []byte("he"))

	require.Len(t, pass.Sequence, 1)
	require.Same(t, combined, pass.Sequence[0])
	require.Equal(t, 0, pass.NodesCreated)
}

// blankNeighborhood builds a graph where the bytes "yellow" have no
// payload-equal node but a blank bridge is connected to near-identical
// patterns, so recognition must route through the blank.
func blankNeighborhood(t *testing.T, edgeWeight float64) (*graph.Graph, *graph.Node) {
	t.Helper()

	g := graph.New()
	entry := g.AddNode([]byte("X"))
	mellow := g.AddNode([]byte("mellow"))
	bellow := g.AddNode([]byte("bellow"))
	blank := g.AddBlankNode()

	g.AddOrStrengthenEdge(entry, blank, edgeWeight)
	g.AddOrStrengthenEdge(blank, mellow, edgeWeight)
	g.AddOrStrengthenEdge(blank, bellow, edgeWeight)

	return g, blank
}

func TestIngest_RoutesThroughBlankBridge(t *testing.T) {
	g, blank := blankNeighborhood(t, 1)
	before := g.NodeCount()

	pass := ingest.Ingest(g, []byte("Xyellow"))

	require.Equal(t, before, g.NodeCount())
	require.Equal(t, 0, pass.NodesCreated)
	require.Len(t, pass.Sequence, 2)
	require.Same(t, blank, pass.Sequence[1])
	// Strong connections keep the blank a pure router: the match clears
	// the local mean but does not dominate it, so no promotion happens.
	require.True(t, blank.Blank())
}

func TestIngest_PromotesDominantBlank(t *testing.T) {
	g, blank := blankNeighborhood(t, 0.25)

	pass := ingest.Ingest(g, []byte("Xyellow"))

	require.Equal(t, 0, pass.NodesCreated)
	require.False(t, blank.Blank(), "a blank whose match dominates its neighborhood is promoted")
	require.Equal(t, "yellow", string(blank.Payload))
	require.Contains(t, g.FindNodesByPayload([]byte("yellow")), blank)
	require.NoError(t, g.Validate())
}
