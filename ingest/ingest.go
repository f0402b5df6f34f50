// Package ingest implements sequential pattern ingestion: byte-oriented
// recognition with adaptive pattern-length, hierarchy-first preference,
// blank-node acceptance, bounded exploration, and node creation as the
// last resort.
package ingest

import (
	"github.com/Jak3Gil/melvin/graph"
	"github.com/Jak3Gil/melvin/stats"
)

// Pass records the outcome of one Ingest call: the activation sequence S
// in consumption order, plus counters useful to callers (edges.Form,
// wave.Propagate, and logging).
type Pass struct {
	Sequence     []*graph.Node
	NodesCreated int
	BytesLen     int
}

// Ingest consumes frameBody against g, activating or creating nodes,
// trying progressively shorter candidate patterns at each position until
// every byte is consumed.
func Ingest(g *graph.Graph, frameBody []byte) *Pass {
	pass := &Pass{BytesLen: len(frameBody)}
	remaining := frameBody

	for len(remaining) > 0 {
		n, k, created := consumeOne(g, pass.Sequence, remaining)
		pass.Sequence = appendActivated(pass.Sequence, n)
		if created {
			pass.NodesCreated++
		}
		remaining = remaining[k:]
	}

	return pass
}

// consumeOne performs one iteration of the outer ingestion loop: try
// k = L..1 in order, returning the first accepted match, or a freshly
// created single-byte node if none of k succeeds. Matching runs
// local-first (the activation sequence and the most recent node's
// outgoing edges), then the bounded wave exploration, then the payload
// index as the global fallback that keeps already-learned patterns from
// being re-created, then blank-node acceptance.
func consumeOne(g *graph.Graph, seq []*graph.Node, remaining []byte) (*graph.Node, int, bool) {
	l := maxPatternLength(g, len(remaining))

	for k := l; k >= 1; k-- {
		candidate := remaining[:k]

		if n := fastPathMatch(seq, candidate); n != nil {
			activate(n, graph.MatchStrength(n, candidate))
			return n, k, false
		}

		if len(seq) > 0 {
			if n := waveExploreMatch(g, seq[len(seq)-1], candidate); n != nil {
				activate(n, graph.MatchStrength(n, candidate))
				return n, k, false
			}
		}

		if n := indexMatch(g, candidate); n != nil {
			activate(n, graph.MatchStrength(n, candidate))
			return n, k, false
		}

		if n, strength, filled := blankAcceptance(g, seq, candidate); n != nil {
			activate(n, strength)
			if filled {
				_ = g.FillBlank(n, candidate)
			}
			return n, k, false
		}
	}

	// No k succeeded: create a new single-byte node. Fresh evidence is
	// taken at full strength; matched nodes above activate at their
	// match strength instead, so activation reflects how surely a node
	// represents the bytes it just consumed.
	n := g.AddNode(remaining[:1])
	activate(n, 1)
	maybeBridgeBlank(g, n)

	return n, 1, true
}

// activate sets n's ephemeral activation and applies the node weight
// update (which also recomputes the bias).
func activate(n *graph.Node, a float64) {
	n.Activation = a
	graph.ApplyNodeWeightUpdate(n)
}

// indexMatch consults the payload-hash index for an exact-payload match,
// preferring higher abstraction, then weight. This is what lets a fresh
// pass (empty sequence, or a reopened knowledge file) recognize patterns
// learned in earlier passes instead of re-creating them.
func indexMatch(g *graph.Graph, candidate []byte) *graph.Node {
	var best *graph.Node
	for _, c := range g.FindNodesByPayload(candidate) {
		if !payloadEquals(c, candidate) {
			continue
		}
		if best == nil || better(c, best) {
			best = c
		}
	}

	return best
}

// maxPatternLength derives L = min(remaining, current_max_pattern_length)
// from the largest payload length ever stored in g — growing "when large
// nodes exist", always >= 1, with no hardcoded ceiling.
func maxPatternLength(g *graph.Graph, remaining int) int {
	current := g.MaxPayloadLen()
	if current < 1 {
		current = 1
	}
	if remaining < current {
		return remaining
	}

	return current
}

// fastPathMatch looks among nodes already activated earlier in seq, or
// directly reachable by an outgoing edge from the most recently
// activated node, for one whose payload equals candidate exactly. Among
// ties it prefers higher abstraction level, then larger weight, then
// recency (seq is scanned newest-first so the most recent equal
// candidate wins ties).
func fastPathMatch(seq []*graph.Node, candidate []byte) *graph.Node {
	var best *graph.Node
	consider := func(n *graph.Node) {
		if !payloadEquals(n, candidate) {
			return
		}
		if best == nil || better(n, best) {
			best = n
		}
	}

	if len(seq) > 0 {
		last := seq[len(seq)-1]
		for _, e := range last.Outgoing {
			consider(e.To)
		}
	}
	for i := len(seq) - 1; i >= 0; i-- {
		consider(seq[i])
	}

	return best
}

func better(candidate, current *graph.Node) bool {
	if candidate.AbstractionLevel != current.AbstractionLevel {
		return candidate.AbstractionLevel > current.AbstractionLevel
	}

	return candidate.Weight > current.Weight
}

func payloadEquals(n *graph.Node, candidate []byte) bool {
	if len(n.Payload) != len(candidate) {
		return false
	}
	for i := range candidate {
		if n.Payload[i] != candidate[i] {
			return false
		}
	}

	return true
}

// waveExploreMatch performs a bounded breadth-first search from start,
// following edges by direction with a visited set, returning the first
// payload-equal match. The depth bound grows sub-linearly with node
// count via stats.ExplorationSteps.
func waveExploreMatch(g *graph.Graph, start *graph.Node, candidate []byte) *graph.Node {
	maxDepth := stats.ExplorationSteps(g.NodeCount())

	visited := map[*graph.Node]bool{start: true}
	frontier := []*graph.Node{start}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []*graph.Node
		for _, n := range frontier {
			for _, e := range n.Outgoing {
				if visited[e.To] {
					continue
				}
				visited[e.To] = true
				if payloadEquals(e.To, candidate) {
					return e.To
				}
				next = append(next, e.To)
			}
		}
		frontier = next
	}

	return nil
}

// blankAcceptance looks for a blank node whose connection-based
// MatchStrength against candidate exceeds its own local connection mean.
// Returns the blank, the strength it matched with, and whether its
// relative strength dominates its neighborhood enough to warrant
// promotion.
func blankAcceptance(g *graph.Graph, seq []*graph.Node, candidate []byte) (*graph.Node, float64, bool) {
	var best *graph.Node
	var bestStrength, bestMean float64

	consider := func(n *graph.Node) {
		if !n.Blank() {
			return
		}
		strength := graph.MatchStrength(n, candidate)
		mean := graph.LocalConnectionMean(n)
		if strength <= mean {
			return
		}
		if best == nil || strength > bestStrength {
			best, bestStrength, bestMean = n, strength, mean
		}
	}

	for _, n := range seq {
		for _, e := range n.Outgoing {
			consider(e.To)
		}
	}

	if best == nil {
		return nil, 0, false
	}

	// Dominates its neighborhood when the relative margin over the mean
	// itself exceeds that same mean (i.e. roughly doubles the baseline),
	// keeping the comparison relative rather than an absolute literal.
	dominates := (bestStrength - bestMean) > bestMean

	return best, bestStrength, dominates
}

// maybeBridgeBlank creates a blank bridge node and connects it to a
// similar existing pattern, found by connection (payload) similarity, if
// one exists.
func maybeBridgeBlank(g *graph.Graph, created *graph.Node) {
	candidates := g.FindNodesByPayload(created.Payload)
	var bestMatch *graph.Node
	var bestSim float64
	for _, c := range candidates {
		if c == created {
			continue
		}
		sim := graph.PayloadSimilarity(c, created.Payload)
		if sim > bestSim {
			bestMatch, bestSim = c, sim
		}
	}
	if bestMatch == nil || bestSim <= 0 {
		return
	}

	blank := g.AddBlankNode()
	g.AddOrStrengthenEdge(blank, created, bestSim)
	g.AddOrStrengthenEdge(blank, bestMatch, bestSim)
}

// appendActivated appends n to seq in consumption order and then trims
// seq by adaptive means: entries whose weight sits far below the
// sequence's current average are discarded, never by a fixed recency
// window.
func appendActivated(seq []*graph.Node, n *graph.Node) []*graph.Node {
	seq = append(seq, n)
	if len(seq) < 2 {
		return seq
	}

	weights := make([]float64, len(seq))
	for i, s := range seq {
		weights[i] = s.Weight
	}
	mean := stats.Mean(weights)
	spread := stats.StdDev(weights)
	threshold := mean - spread

	kept := seq[:0:0]
	for i, s := range seq {
		if i == len(seq)-1 || s.Weight >= threshold {
			kept = append(kept, s)
		}
	}

	return kept
}
