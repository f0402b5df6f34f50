// Package edges implements intelligent edge formation: co-activation,
// context, similarity, generalization, and homeostatic edge creators,
// all duplicate-aware (strengthen-or-create). Form runs the creators as
// an ordered slice of stage funcs, wrapping the first error.
package edges

import (
	"fmt"

	"github.com/Jak3Gil/melvin/graph"
	"github.com/Jak3Gil/melvin/ingest"
	"github.com/Jak3Gil/melvin/stats"
)

// stage applies one edge-formation rule over the pass's activation
// sequence. Stages never return a structural error in normal operation;
// the return type exists so a future stage can surface a graph.ResourceError
// without changing Form's signature.
type stage func(g *graph.Graph, pass *ingest.Pass) error

// Form runs all five edge-formation stages, in co-activation / context /
// similarity / generalization / homeostatic order, over the sequence
// pass.Sequence that ingest.Ingest just produced.
func Form(g *graph.Graph, pass *ingest.Pass) error {
	stages := []stage{
		coActivation,
		context,
		similarity,
		generalization,
		homeostatic,
	}
	for _, s := range stages {
		if err := s(g, pass); err != nil {
			return fmt.Errorf("edges.Form: %w", err)
		}
	}

	return nil
}

// coActivation strengthens-or-creates an edge for every adjacent pair in
// the sequence.
func coActivation(g *graph.Graph, pass *ingest.Pass) error {
	seq := pass.Sequence
	for i := 0; i+1 < len(seq); i++ {
		g.AddOrStrengthenEdge(seq[i], seq[i+1], 1)
	}

	return nil
}

// context strengthens-or-creates edges, in both directions, between
// pairs whose gap is within a window that grows logarithmically with the
// sequence length (stats.ExplorationSteps); the gap sizes themselves are
// not measured. The strengthening
// activation is the product of the two endpoints' activations: a pair of
// confidently matched nodes binds harder than a pair of tentative ones.
func context(g *graph.Graph, pass *ingest.Pass) error {
	seq := pass.Sequence
	window := stats.ExplorationSteps(len(seq))

	for i := range seq {
		for j := i + 1; j < len(seq) && j-i <= window; j++ {
			a := seq[i].Activation * seq[j].Activation
			g.AddOrStrengthenEdge(seq[i], seq[j], a)
			g.AddOrStrengthenEdge(seq[j], seq[i], a)
		}
	}

	return nil
}

// similarity strengthens-or-creates edges, in both directions, between
// each activated node and every indexed node whose payload similarity to
// it exceeds its local similarity threshold.
func similarity(g *graph.Graph, pass *ingest.Pass) error {
	candidates := g.AllIndexedNodes()

	for _, n := range pass.Sequence {
		if n.Blank() {
			continue
		}
		threshold := graph.LocalSimThreshold(n)
		for _, c := range candidates {
			if c == n || c.Blank() {
				continue
			}
			sim := graph.PayloadSimilarity(n, c.Payload)
			if sim > threshold {
				g.AddOrStrengthenEdge(n, c, sim)
				g.AddOrStrengthenEdge(c, n, sim)
			}
		}
	}

	return nil
}

// generalization creates a blank bridge node whenever two activated
// nodes share no common abstraction ancestor but both resemble a third,
// frequently co-activated node.
func generalization(g *graph.Graph, pass *ingest.Pass) error {
	seq := pass.Sequence
	freq := coActivationFrequency(seq)

	for i := 0; i < len(seq); i++ {
		for j := i + 1; j < len(seq); j++ {
			a, b := seq[i], seq[j]
			if a == b || a.Blank() || b.Blank() || shareAncestor(a, b) {
				continue
			}
			for _, c := range seq {
				if c == a || c == b || c.Blank() {
					continue
				}
				if freq[c] < 2 {
					continue // "frequently" co-activated: more than once this pass.
				}
				thA := graph.LocalSimThreshold(a)
				thB := graph.LocalSimThreshold(b)
				simA := graph.PayloadSimilarity(a, c.Payload)
				simB := graph.PayloadSimilarity(b, c.Payload)
				if simA > thA && simB > thB {
					bridge := findBlankBridge(a, b, c)
					if bridge == nil {
						bridge = g.AddBlankNode()
					}
					g.AddOrStrengthenEdge(bridge, a, simA)
					g.AddOrStrengthenEdge(bridge, b, simB)
					g.AddOrStrengthenEdge(bridge, c, freqActivation(freq[c], len(seq)))
				}
			}
		}
	}

	return nil
}

// homeostatic creates one weak edge from any node whose total edge count
// sits below its neighbors' mean minus a relative slack (derived from the
// neighbor edge-count variance) to its most similar sibling, preventing
// isolation.
func homeostatic(g *graph.Graph, pass *ingest.Pass) error {
	for _, n := range pass.Sequence {
		neighborCounts := neighborEdgeCounts(n)
		if len(neighborCounts) == 0 {
			continue
		}
		mean := stats.Mean(neighborCounts)
		slack := stats.StdDev(neighborCounts)
		own := float64(len(n.Outgoing) + len(n.Incoming))
		if own >= mean-slack {
			continue
		}

		sibling := closestSibling(n)
		if sibling != nil {
			g.AddOrStrengthenEdge(n, sibling, graph.LocalOutgoingAvg(n))
		}
	}

	return nil
}

// findBlankBridge returns an existing blank node already connected to
// all three of a, b, and c, so a repeated generalization trigger
// strengthens the bridge instead of planting a duplicate one.
func findBlankBridge(a, b, c *graph.Node) *graph.Node {
	for _, e := range a.Incoming {
		bridge := e.From
		if !bridge.Blank() {
			continue
		}
		if graph.FindEdge(bridge, b) != nil && graph.FindEdge(bridge, c) != nil {
			return bridge
		}
	}

	return nil
}

// freqActivation converts a co-activation count into a strengthening
// activation: the share of the sequence the node accounted for.
func freqActivation(count, seqLen int) float64 {
	if seqLen == 0 {
		return 0
	}

	return float64(count) / float64(seqLen)
}

func coActivationFrequency(seq []*graph.Node) map[*graph.Node]int {
	freq := make(map[*graph.Node]int, len(seq))
	for _, n := range seq {
		freq[n]++
	}

	return freq
}

func shareAncestor(a, b *graph.Node) bool {
	// Two nodes count as sharing an ancestor when a direct edge joins
	// them in either direction. Combined (hierarchy) nodes are not
	// searched.
	return graph.FindEdge(a, b) != nil || graph.FindEdge(b, a) != nil
}

func neighborEdgeCounts(n *graph.Node) []float64 {
	var out []float64
	seen := map[*graph.Node]bool{}
	add := func(m *graph.Node) {
		if m == n || seen[m] {
			return
		}
		seen[m] = true
		out = append(out, float64(len(m.Outgoing)+len(m.Incoming)))
	}
	for _, e := range n.Outgoing {
		add(e.To)
	}
	for _, e := range n.Incoming {
		add(e.From)
	}

	return out
}

func closestSibling(n *graph.Node) *graph.Node {
	var best *graph.Node
	var bestSim float64
	consider := func(candidate *graph.Node) {
		if candidate == n || candidate.Blank() || n.Blank() {
			return
		}
		sim := graph.PayloadSimilarity(n, candidate.Payload)
		if best == nil || sim > bestSim {
			best, bestSim = candidate, sim
		}
	}
	for _, e := range n.Outgoing {
		for _, e2 := range e.To.Outgoing {
			consider(e2.To)
		}
	}
	for _, e := range n.Incoming {
		for _, e2 := range e.From.Incoming {
			consider(e2.From)
		}
	}

	return best
}
