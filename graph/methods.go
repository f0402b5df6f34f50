// File: methods.go
// Role: Node/Edge lifecycle — AddNode/AddBlankNode/CombinePayloads/
// FillBlank, FindNodesByPayload, FindEdge/AddOrStrengthenEdge,
// RemoveNodeCascade.
// AI-HINT (file):
//   - AddOrStrengthenEdge is the ONLY edge-creation entry point used by
//     ingest/edges/wave; it always scans existing outgoing edges first
//     (DESIGN.md Open Question 1).
package graph

import (
	"fmt"
	"sync/atomic"

	"github.com/Jak3Gil/melvin/stats"
)

var nodeIDCounter uint64

// nextNodeID returns a stable, human-readable, fixed-width 8-byte ID
// ("n" + 7 zero-padded decimal digits from an atomic counter), sized so
// every ID round-trips through the 9-byte NUL-terminated ID field of a
// knowledge file unchanged.
func nextNodeID() string {
	n := atomic.AddUint64(&nodeIDCounter, 1)

	return fmt.Sprintf("n%07d", n%10000000)
}

// AddNode creates and indexes a new concrete node with the given payload.
// Complexity: O(1) amortized (plus occasional O(n) rehash on bucket
// growth).
func (g *Graph) AddNode(payload []byte) *Node {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := &Node{
		ID:      nextNodeID(),
		Payload: append([]byte(nil), payload...),
		History: stats.NewRing(),
	}
	n.index = len(g.nodes)
	g.nodes = append(g.nodes, n)
	g.index.insert(n)
	g.dirty = true
	if len(n.Payload) > g.maxPayloadLen {
		g.maxPayloadLen = len(n.Payload)
	}

	return n
}

// AddBlankNode creates a payload-free generalization bridge node.
func (g *Graph) AddBlankNode() *Node {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := &Node{
		ID:      nextNodeID(),
		History: stats.NewRing(),
	}
	n.index = len(g.nodes)
	g.nodes = append(g.nodes, n)
	// Blank nodes are never inserted into the payload index: lookup is
	// by payload, and a blank has none.
	g.dirty = true

	return n
}

// FillBlank promotes a blank node to a concrete one by assigning it a
// payload. Returns ErrNotBlank if n already
// carries a payload.
func (g *Graph) FillBlank(n *Node, payload []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(n.Payload) != 0 {
		return ErrNotBlank
	}
	n.Payload = append([]byte(nil), payload...)
	g.index.insert(n)
	g.dirty = true
	if len(n.Payload) > g.maxPayloadLen {
		g.maxPayloadLen = len(n.Payload)
	}

	return nil
}

// CombinePayloads creates a new hierarchy (combined) node whose payload is
// the concatenation of a's and b's payloads, abstraction level
// max(a,b)+1, and weight the average of a's and b's. This is the only
// construction path for abstraction level > 0 (the caller, wave.Propagate,
// is responsible for copying the constituents' edges onto the new node).
func (g *Graph) CombinePayloads(a, b *Node) *Node {
	level := a.AbstractionLevel
	if b.AbstractionLevel > level {
		level = b.AbstractionLevel
	}
	level++

	combined := g.AddNode(append(append([]byte(nil), a.Payload...), b.Payload...))

	g.mu.Lock()
	combined.AbstractionLevel = level
	combined.Weight = (a.Weight + b.Weight) / 2
	g.mu.Unlock()

	return combined
}

// FindNodesByPayload returns the candidate nodes whose payload fingerprint
// bucket matches bytes; callers verify exact/prefix
// equality themselves since the index may return false positives.
func (g *Graph) FindNodesByPayload(payload []byte) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.index.candidates(payload)
}

// AllIndexedNodes returns every node currently indexed by payload (used by
// similarity-edge formation, which must scan the whole index).
func (g *Graph) AllIndexedNodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.index.all()
}

// BucketCount exposes the payload index's current bucket count, for
// white-box testing of the "growth preserves lookup results" property.
func (g *Graph) BucketCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.index.bucketCount()
}

// FindEdge returns the existing from→to edge, if any, via an O(out-degree)
// scan of from's outgoing list — fine as long as the graph stays sparse
// locally, which the activation-driven growth rule keeps true in practice.
func FindEdge(from, to *Node) *Edge {
	for _, e := range from.Outgoing {
		if e.To == to {
			return e
		}
	}

	return nil
}

// AddOrStrengthenEdge is the single edge-creation entry point for the
// whole engine: if an edge from→to already exists it is strengthened
// (the edge weight update applied with the given activation); otherwise a
// new edge is created. Returns the edge and
// whether it was newly created.
//
// This closes DESIGN.md Open Question 1: every call site (co-activation,
// context, similarity, generalization, homeostatic, hierarchy-edge
// transfer) goes through here, so no duplicate outgoing edge can ever be
// created.
func (g *Graph) AddOrStrengthenEdge(from, to *Node, activation float64) (*Edge, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if e := FindEdge(from, to); e != nil {
		delta := updateEdgeWeight(e, activation)
		from.OutgoingWeightSum += delta
		to.IncomingWeightSum += delta
		g.dirty = true

		return e, false
	}

	e := &Edge{From: from, To: to, Direction: true, History: stats.NewRing()}
	e.index = len(g.edges)
	g.edges = append(g.edges, e)

	from.Outgoing = append(from.Outgoing, e)
	to.Incoming = append(to.Incoming, e)

	delta := updateEdgeWeight(e, activation)
	from.OutgoingWeightSum += delta
	to.IncomingWeightSum += delta
	g.dirty = true

	return e, true
}

// RemoveNodeCascade deletes n and every edge incident to it, updating the
// other endpoints' cached sums and edge lists.
func (g *Graph) RemoveNodeCascade(n *Node) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if n.index < 0 || n.index >= len(g.nodes) || g.nodes[n.index] != n {
		return ErrNodeNotFound
	}

	for _, e := range append([]*Edge(nil), n.Outgoing...) {
		removeEdgeLocked(g, e)
	}
	for _, e := range append([]*Edge(nil), n.Incoming...) {
		removeEdgeLocked(g, e)
	}

	removeNodeAt(g, n.index)
	g.dirty = true

	return nil
}

func removeNodeAt(g *Graph, idx int) {
	last := len(g.nodes) - 1
	g.nodes[idx] = g.nodes[last]
	g.nodes[idx].index = idx
	g.nodes = g.nodes[:last]
}

func removeEdgeLocked(g *Graph, e *Edge) {
	if e.index < 0 || e.index >= len(g.edges) || g.edges[e.index] != e {
		return // already removed (a self-loop appears in both endpoint lists)
	}

	e.From.OutgoingWeightSum -= e.Weight
	e.To.IncomingWeightSum -= e.Weight
	e.From.Outgoing = removeEdgeRef(e.From.Outgoing, e)
	e.To.Incoming = removeEdgeRef(e.To.Incoming, e)

	last := len(g.edges) - 1
	g.edges[e.index] = g.edges[last]
	g.edges[e.index].index = e.index
	g.edges = g.edges[:last]
	e.index = -1
}

func removeEdgeRef(list []*Edge, target *Edge) []*Edge {
	for i, e := range list {
		if e == target {
			return append(list[:i], list[i+1:]...)
		}
	}

	return list
}

// ApplyNodeWeightUpdate applies the node weight update with the node's
// outgoing neighborhood as its local context, appending the delta to the
// node's learning-rate history. Called once per node that participates in
// a pass (ingest on activation, wave on re-activation).
func ApplyNodeWeightUpdate(n *Node) {
	localOut := LocalOutgoingAvg(n)
	eps := stats.Epsilon(n.History.Values())
	r := learningRate(n.Weight, localOut, eps)
	before := n.Weight
	n.Weight = n.Weight*(1-r) + n.Activation*r
	n.History.Push(n.Weight - before)
	n.Bias = NodeBias(n)
}

// learningRate is the self-regulating rate shared by the node and edge
// weight updates: r = (context+eps) / (w+context+eps). A weight far above
// its local context barely moves; a sparse or brand-new one adopts fresh
// evidence almost outright. With no context at all (zero weight, zero
// neighborhood, zero epsilon) the rate is the minimal-context sentinel 1,
// so a first observation is adopted rather than discarded.
//
// See DESIGN.md Open Question 5 for why the rate runs context-over-total
// rather than weight-over-total.
func learningRate(w, context, eps float64) float64 {
	denom := w + context + eps
	if denom == 0 {
		return 1
	}

	return (context + eps) / denom
}

// ApplyEdgeWeightUpdate applies the edge weight update to an
// already-existing edge that merely carried activation (e.g. during wave
// propagation) without going through AddOrStrengthenEdge's duplicate
// check — callers must already hold a valid, graph-owned edge.
func ApplyEdgeWeightUpdate(e *Edge, activation float64) {
	delta := updateEdgeWeight(e, activation)
	e.From.OutgoingWeightSum += delta
	e.To.IncomingWeightSum += delta
}

// updateEdgeWeight applies the edge weight update with the mean of the
// edge's sibling weights as its local context, appending the delta to the
// edge's learning-rate history, and returns the delta so callers can keep
// cached endpoint sums consistent with edge membership.
func updateEdgeWeight(e *Edge, activation float64) float64 {
	siblingAvg := LocalSiblingAvg(e)
	eps := stats.Epsilon(e.History.Values())
	r := learningRate(e.Weight, siblingAvg, eps)
	before := e.Weight
	e.Weight = e.Weight*(1-r) + activation*r
	delta := e.Weight - before
	e.History.Push(delta)
	e.Activated = true

	return delta
}
