// File: types.go
// Role: Node, Edge, Graph declarations — the data model of the engine.
// Concurrency:
//   - A single Graph-wide mu (sync.RWMutex) serializes structural
//     mutation: one logical processing pass is always serialized with
//     respect to the graph, so a single lock is sufficient (see
//     DESIGN.md).
// AI-HINT (file):
//   - Node.Payload length 0 means blank (generalization) node.
//   - Edge direction is always From→To; Direction is metadata only (see
//     DESIGN.md Open Question 3).
//   - OutgoingWeightSum/IncomingWeightSum are cached sums; every mutation
//     path in methods.go keeps them equal to the true edge sums.
package graph

import (
	"sync"

	"github.com/Jak3Gil/melvin/stats"
)

// Node is a vertex in the associative-memory graph.
type Node struct {
	// ID is a stable, human-readable 8-byte identifier, NUL-padded to 9
	// bytes on disk.
	ID string

	// Payload is the ordered byte sequence this node represents. Length
	// 0 denotes a blank (generalization) node.
	Payload []byte

	// AbstractionLevel is 0 for raw nodes, max(children)+1 for combined
	// (hierarchy) nodes.
	AbstractionLevel uint32

	// Activation is the ephemeral activation strength, valid only within
	// one processing pass.
	Activation float64

	// Weight is the smoothed activation history, long-lived.
	Weight float64

	// Bias is recomputed each activation from local context.
	Bias float64

	// Outgoing and Incoming are ordered edge-reference slices (back
	// relations; the Graph owns the Edge values).
	Outgoing []*Edge
	Incoming []*Edge

	// OutgoingWeightSum/IncomingWeightSum are cached sums kept consistent
	// with edge membership by every mutation path.
	OutgoingWeightSum float64
	IncomingWeightSum float64

	// History is the bounded ring of recent weight deltas the stats
	// layer uses to shape future Smoothing/Clip decisions.
	History *stats.Ring

	index int // position in Graph.nodes, maintained by the graph
}

// Blank reports whether n is a generalization (payload-free) node.
func (n *Node) Blank() bool { return len(n.Payload) == 0 }

// Edge is a directed, weighted connection between two nodes.
// The authoritative relation is always From→To; Direction is preserved
// metadata for API symmetry only (DESIGN.md Open Question 3).
type Edge struct {
	From *Node
	To   *Node

	// Direction is metadata preserved for symmetry of API callers; it
	// never changes which node is the effective source.
	Direction bool

	// Activated is an ephemeral per-pass flag.
	Activated bool

	// Weight is the smoothed activation history of this edge.
	Weight float64

	// History is the bounded ring of recent weight deltas.
	History *stats.Ring

	index int // position in Graph.edges
}

// Graph is the singleton owning container for one knowledge file's nodes
// and edges.
type Graph struct {
	mu sync.RWMutex

	nodes []*Node
	edges []*Edge

	index *payloadIndex // payload-hash index

	// AdaptationCount tracks the number of structural/weight-update
	// passes applied to this graph; persisted in the knowledge-file
	// header.
	adaptationCount uint64

	dirty bool

	maxPayloadLen int
}

// New creates an empty Graph with a 1-bucket payload-hash index.
func New() *Graph {
	return &Graph{
		index: newPayloadIndex(),
	}
}

// NodeCount returns the number of nodes currently owned by g.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.nodes)
}

// EdgeCount returns the number of edges currently owned by g.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.edges)
}

// AdaptationCount returns the number of passes applied to g so far.
func (g *Graph) AdaptationCount() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.adaptationCount
}

// IncrementAdaptation bumps the adaptation counter by one; called once per
// completed pass regardless of whether the pass produced output.
func (g *Graph) IncrementAdaptation() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.adaptationCount++
	g.dirty = true
}

// Dirty reports whether g has unsaved structural or weight changes.
func (g *Graph) Dirty() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.dirty
}

// ClearDirty marks g as saved; called by persist after a successful write.
func (g *Graph) ClearDirty() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dirty = false
}

// MarkDirty flags g as having unsaved changes. The mutation paths inside
// this package set the flag directly; MarkDirty is the same operation for
// callers outside it.
func (g *Graph) MarkDirty() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dirty = true
}

// Nodes returns a snapshot slice of all nodes in table order (the order
// used by persistence).
func (g *Graph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)

	return out
}

// Edges returns a snapshot slice of all edges in table order.
func (g *Graph) Edges() []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Edge, len(g.edges))
	copy(out, g.edges)

	return out
}

// NodeIndex returns n's position in the node table, used by persist to
// encode edge endpoints as indices.
func (n *Node) NodeIndex() int { return n.index }

// MaxPayloadLen returns the length of the largest payload ever stored on
// a node in g, or 0 if g has no concrete nodes yet. ingest uses this to
// grow its maximum candidate pattern length without any hardcoded
// ceiling.
func (g *Graph) MaxPayloadLen() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.maxPayloadLen
}
