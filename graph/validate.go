// File: validate.go
// Role: Structural self-check backing the InvariantError failure model:
// recompute what the cached fields claim and refuse to continue on drift.
package graph

import (
	"fmt"
	"math"

	"github.com/Jak3Gil/melvin/stats"
)

// Validate recomputes every invariant the container promises and returns
// an *InvariantError on the first violation: cached weight sums vs. the
// edges actually held, edge endpoints owned by this graph, no duplicate
// outgoing edge between any ordered node pair, and payload-index coverage
// of every concrete node. A nil return means the graph is structurally
// sound.
func (g *Graph) Validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	owned := make(map[*Node]bool, len(g.nodes))
	for _, n := range g.nodes {
		owned[n] = true
	}

	for _, e := range g.edges {
		if !owned[e.From] || !owned[e.To] {
			return &InvariantError{
				Invariant: "edge endpoints owned",
				Detail:    fmt.Sprintf("edge %s->%s references a node the graph does not own", e.From.ID, e.To.ID),
			}
		}
	}

	for _, n := range g.nodes {
		if err := checkSums(n); err != nil {
			return err
		}
		if err := checkNoDuplicates(n); err != nil {
			return err
		}
		if !n.Blank() {
			if !containsNode(g.index.candidates(n.Payload), n) {
				return &InvariantError{
					Invariant: "payload index coverage",
					Detail:    fmt.Sprintf("node %s missing from its payload bucket", n.ID),
				}
			}
		}
	}

	return nil
}

func checkSums(n *Node) error {
	if err := checkOneSum(n, n.Outgoing, n.OutgoingWeightSum, "outgoing"); err != nil {
		return err
	}

	return checkOneSum(n, n.Incoming, n.IncomingWeightSum, "incoming")
}

// checkOneSum compares a cached sum against the recomputed one. The
// cached value accumulates deltas in update order while the recomputed
// one adds final weights in list order, so the two can differ by
// accumulated rounding; the tolerance is the local adaptive epsilon plus
// one ulp per term, both derived from the values at hand.
func checkOneSum(n *Node, list []*Edge, cached float64, side string) error {
	var sum float64
	weights := make([]float64, len(list))
	for i, e := range list {
		sum += e.Weight
		weights[i] = e.Weight
	}

	tol := stats.Epsilon(weights) + ulp(sum)*float64(1+len(list))
	if math.Abs(sum-cached) > tol {
		return &InvariantError{
			Invariant: "cached weight sum",
			Detail:    fmt.Sprintf("node %s %s sum drifted: cached %g, recomputed %g", n.ID, side, cached, sum),
		}
	}

	return nil
}

func checkNoDuplicates(n *Node) error {
	seen := make(map[*Node]bool, len(n.Outgoing))
	for _, e := range n.Outgoing {
		if seen[e.To] {
			return &InvariantError{
				Invariant: "no duplicate edges",
				Detail:    fmt.Sprintf("node %s holds two outgoing edges to %s", n.ID, e.To.ID),
			}
		}
		seen[e.To] = true
	}

	return nil
}

func containsNode(list []*Node, target *Node) bool {
	for _, n := range list {
		if n == target {
			return true
		}
	}

	return false
}

func ulp(v float64) float64 {
	a := math.Abs(v)

	return math.Nextafter(a, math.Inf(1)) - a
}
