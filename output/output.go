// Package output implements output readiness and learned-continuation
// collection: a deterministic strongest-edge greedy walk from each
// activated input node, emitting only learned continuations and never
// echoing the input. Cycles are cut lazily with a per-walk visited set.
package output

import (
	"github.com/Jak3Gil/melvin/graph"
	"github.com/Jak3Gil/melvin/stats"
)

// Readiness computes output_readiness(F0) = mean over n∈f0 of
// w_out/(w_out+1+ε), where w_out = local_outgoing_avg(n).
// Returns 0 if every node in f0 has no outgoing edges.
func Readiness(f0 []*graph.Node) float64 {
	if len(f0) == 0 {
		return 0
	}

	scores := make([]float64, 0, len(f0))
	anyOutgoing := false
	for _, n := range f0 {
		wOut := graph.LocalOutgoingAvg(n)
		if wOut > 0 {
			anyOutgoing = true
		}
		eps := stats.Epsilon([]float64{wOut, 1})
		scores = append(scores, wOut/(wOut+1+eps))
	}
	if !anyOutgoing {
		return 0
	}

	return stats.Mean(scores)
}

// Collect walks from each node in f0 along the single strongest outgoing
// edge with positive transformed activation, appending visited payloads
// to the output buffer. f0's own nodes are never emitted (visited-context).
// Starting points are walked in order;
// their segments are concatenated in that same order.
func Collect(g *graph.Graph, f0 []*graph.Node) []byte {
	visitedContext := make(map[*graph.Node]bool, len(f0))
	for _, n := range f0 {
		visitedContext[n] = true
	}

	var out []byte
	for _, start := range f0 {
		out = append(out, walk(start, visitedContext)...)
	}

	return out
}

// walk performs one strongest-edge continuation walk from start.
// visitedContext is shared across all starting points so a node already
// emitted by an earlier walk is never revisited by a later one; walkSeen
// guards against cycles within this one walk.
func walk(start *graph.Node, visitedContext map[*graph.Node]bool) []byte {
	var out []byte
	walkSeen := map[*graph.Node]bool{start: true}

	edgeWeights := make([]float64, 0, len(start.Outgoing))
	current := start

	for {
		next, x := strongestUnvisited(current, visitedContext, walkSeen)
		if next == nil {
			break
		}

		edgeWeights = append(edgeWeights, x)
		walkMean := stats.Mean(edgeWeights)
		if x < walkMean && len(edgeWeights) > 1 {
			break
		}

		out = append(out, next.Payload...)
		visitedContext[next] = true
		walkSeen[next] = true
		current = next
	}

	return out
}

// strongestUnvisited returns current's outgoing edge with the highest
// positive transformed activation whose target is not yet visited-
// context and not already seen in this walk (cycle guard), or nil if none
// qualifies.
func strongestUnvisited(current *graph.Node, visitedContext, walkSeen map[*graph.Node]bool) (*graph.Node, float64) {
	var best *graph.Node
	var bestX float64

	for _, e := range current.Outgoing {
		if visitedContext[e.To] || walkSeen[e.To] {
			continue
		}
		x := graph.EdgeTransform(e, current.Activation)
		if x <= 0 {
			continue
		}
		if best == nil || x > bestX {
			best, bestX = e.To, x
		}
	}

	return best, bestX
}
