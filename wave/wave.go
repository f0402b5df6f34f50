// Package wave implements multi-step wave propagation: wave-front
// expansion with per-node local thresholds, natural energy convergence,
// in-wave co-activation edge formation, and hierarchy emergence. The
// walk is a breadth-first frontier with a visited set, carrying
// activation and forming structure as it goes.
package wave

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Jak3Gil/melvin/graph"
	"github.com/Jak3Gil/melvin/stats"
)

// Result records the observable outcome of one Propagate call as a few
// counters useful for logging. It does not carry the final frontier.
type Result struct {
	Steps          int
	NodesVisited   int
	EdgesActivated int
	HierarchyNodes int
}

// Propagate runs the wave from f0 (the sequence ingestion just activated) until
// convergence. f0 itself counts as frontier F0; f0's nodes are marked
// visited before step 1 begins. workers caps the read-only batch fan-out
// per expansion step; values below 1 fall back to the single-writer-safe
// minimum of 1.
func Propagate(g *graph.Graph, f0 []*graph.Node, workers int) (*Result, error) {
	if workers < 1 {
		workers = 1
	}
	res := &Result{}
	if len(f0) == 0 {
		return res, nil
	}

	visited := make(map[*graph.Node]bool, len(f0))
	frontier := append([]*graph.Node(nil), f0...)
	for _, n := range frontier {
		visited[n] = true
	}
	res.NodesVisited = len(frontier)

	maxSteps := stats.ExplorationSteps(g.NodeCount())
	energyHistory := stats.NewRing()
	prevEnergy := frontierEnergy(frontier)
	energyHistory.Push(prevEnergy)

	for step := 0; step < maxSteps && len(frontier) > 0; step++ {
		next, edgesActivated := expand(g, frontier, visited, workers)
		res.EdgesActivated += edgesActivated
		res.Steps++

		recordCoActivationPeers(g, frontier)
		res.HierarchyNodes += hierarchyPass(g, frontier)

		if len(next) == 0 {
			break
		}
		res.NodesVisited += len(next)

		energy := frontierEnergy(next)
		delta := prevEnergy - energy
		eps := stats.Epsilon(energyHistory.Values())
		relative := delta / (prevEnergy + eps)
		energyHistory.Push(energy)

		frontier = next
		prevEnergy = energy

		if relative > 0 && relative < stats.Smoothing(energyHistory.Values()) {
			break
		}
	}

	return res, nil
}

// expand performs the single-step expansion of every node in frontier,
// returning the next frontier (max-activation-on-arrival per node) and
// the count of edges that crossed threshold.
//
// Per-node propagation thresholds and refreshed activations are
// read-only local computations (they touch no shared mutable state), so
// they are batched through an errgroup before any edge is activated or
// mutated — the batch node-activation/edge-transform fan-out, joined
// before the mutation step begins.
func expand(g *graph.Graph, frontier []*graph.Node, visited map[*graph.Node]bool, workers int) ([]*graph.Node, int) {
	thresholds := make([]float64, len(frontier))
	refreshed := make([]float64, len(frontier))
	grp, _ := errgroup.WithContext(context.Background())
	grp.SetLimit(workers)
	for i, n := range frontier {
		i, n := i, n
		grp.Go(func() error {
			thresholds[i] = propagationThreshold(n)
			refreshed[i] = graph.NodeActivation(n)
			return nil
		})
	}
	_ = grp.Wait() // the batch never errors; Wait only joins it.

	arriving := make(map[*graph.Node]float64)
	order := make([]*graph.Node, 0)
	activated := 0

	for i, n := range frontier {
		// A frontier node's activation can only rise from the refreshed
		// weighted-input computation, never drop below what arrival (or
		// ingestion) already established.
		if refreshed[i] > n.Activation {
			n.Activation = refreshed[i]
		}
		theta := thresholds[i]

		for _, e := range n.Outgoing {
			if visited[e.To] {
				continue
			}
			x := graph.EdgeTransform(e, n.Activation)
			if x <= theta {
				continue
			}

			graph.ApplyEdgeWeightUpdate(e, x)
			activated++

			if prev, ok := arriving[e.To]; !ok || x > prev {
				if !ok {
					order = append(order, e.To)
				}
				arriving[e.To] = x
			}
		}
	}

	next := make([]*graph.Node, 0, len(order))
	for _, n := range order {
		// Transform outputs are unbounded (primary-path boosts multiply);
		// the stored activation is the soft-squashed arrival so a ∈ [0,1]
		// holds everywhere outside the transform pipeline.
		n.Activation = stats.Squash(arriving[n])
		graph.ApplyNodeWeightUpdate(n)
		visited[n] = true
		next = append(next, n)
	}

	return next, activated
}

// propagationThreshold computes θ = local_out/(1+ε) · f(cv), where f is
// the coefficient of variation of n's sibling (outgoing) edge weights,
// squashed into [0,1) — never a literal 0.5.
func propagationThreshold(n *graph.Node) float64 {
	localOut := graph.LocalOutgoingAvg(n)
	weights := make([]float64, len(n.Outgoing))
	for i, e := range n.Outgoing {
		weights[i] = e.Weight
	}
	eps := stats.Epsilon(weights)
	cv := stats.CoefficientOfVariation(weights)
	f := stats.Squash(cv)

	return localOut / (1 + eps) * f
}

// recordCoActivationPeers strengthens-or-creates edges between nodes
// co-active within the current frontier's adaptive window: the
// co-activation formation rule applied in-wave.
func recordCoActivationPeers(g *graph.Graph, frontier []*graph.Node) {
	window := stats.ExplorationSteps(len(frontier))
	for i := range frontier {
		for j := i + 1; j < len(frontier) && j-i <= window; j++ {
			g.AddOrStrengthenEdge(frontier[i], frontier[j], frontier[i].Activation)
		}
	}
}

// hierarchyPass runs the hierarchy-emergence test at every node in
// frontier: the only construction path for abstraction level > 0.
// Returns the count of combined nodes created.
//
// The dominance multiple is 1 + the coefficient of variation of the
// node's outgoing weights. A neighborhood with zero variation carries no
// dominance signal at all (every edge is equally plausible), so nothing
// combines there; once variation exists, the top edge must clear the
// second by the variation-scaled multiple.
func hierarchyPass(g *graph.Graph, frontier []*graph.Node) int {
	created := 0
	for _, n := range frontier {
		if len(n.Outgoing) < 2 {
			continue
		}

		top, second := topTwoOutgoing(n)
		if top == nil || second == nil || second.Weight == 0 {
			continue
		}

		weights := make([]float64, len(n.Outgoing))
		for i, e := range n.Outgoing {
			weights[i] = e.Weight
		}
		cv := stats.CoefficientOfVariation(weights)
		if cv == 0 {
			continue
		}
		if top.Weight < second.Weight*(1+cv) {
			continue
		}

		if combinedExists(g, n, top.To) {
			continue
		}

		combined := g.CombinePayloads(n, top.To)
		copyConstituentEdges(g, combined, n)
		copyConstituentEdges(g, combined, top.To)
		created++
	}

	return created
}

// combinedExists reports whether the graph already holds a node carrying
// the exact payload CombinePayloads(a, b) would produce, so a persistent
// dominance pattern combines once instead of once per pass. A degenerate
// concatenation (both constituents blank) also counts as existing.
func combinedExists(g *graph.Graph, a, b *graph.Node) bool {
	payload := make([]byte, 0, len(a.Payload)+len(b.Payload))
	payload = append(payload, a.Payload...)
	payload = append(payload, b.Payload...)
	if len(payload) == 0 {
		return true
	}
	for _, c := range g.FindNodesByPayload(payload) {
		if payloadEqual(c.Payload, payload) {
			return true
		}
	}

	return false
}

func payloadEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

// topTwoOutgoing returns n's two highest-weight outgoing edges, or nils
// if n has fewer than two.
func topTwoOutgoing(n *graph.Node) (top, second *graph.Edge) {
	for _, e := range n.Outgoing {
		switch {
		case top == nil || e.Weight > top.Weight:
			second = top
			top = e
		case second == nil || e.Weight > second.Weight:
			second = e
		}
	}

	return top, second
}

// copyConstituentEdges copies src's incoming and outgoing edges onto
// combined through AddOrStrengthenEdge. A new edge adopts the source
// edge's weight; where combined already holds an edge to the same
// neighbor, that edge gets the ordinary edge weight update toward the
// source weight, which is not an arithmetic average.
func copyConstituentEdges(g *graph.Graph, combined, src *graph.Node) {
	for _, e := range src.Outgoing {
		if e.To == combined {
			continue
		}
		g.AddOrStrengthenEdge(combined, e.To, e.Weight)
	}
	for _, e := range src.Incoming {
		if e.From == combined {
			continue
		}
		g.AddOrStrengthenEdge(e.From, combined, e.Weight)
	}
}

func frontierEnergy(frontier []*graph.Node) float64 {
	var total float64
	for _, n := range frontier {
		total += n.Activation
	}

	return total
}
