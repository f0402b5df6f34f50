// File: restore.go
// Role: Reconstruction entry points used only by persist when loading a
// knowledge file — bypasses the normal AddNode/AddOrStrengthenEdge paths
// (and their id-counter/weight-update side effects) since the file
// already holds exact ids, weights, and cached sums.
package graph

import (
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/Jak3Gil/melvin/stats"
)

// RestoreNode appends a node with exactly the given field values to g,
// bypassing AddNode's id allocation and weight bootstrap (the file
// already holds the settled values). The id counter is advanced past the
// restored id so nodes created after a reopen never collide with
// persisted ones. Returns the new node.
func (g *Graph) RestoreNode(id string, payload []byte, abstraction uint32, weight, bias, outSum, inSum float64) *Node {
	advanceIDCounter(id)

	g.mu.Lock()
	defer g.mu.Unlock()

	n := &Node{
		ID:                id,
		Payload:           payload,
		AbstractionLevel:  abstraction,
		Weight:            weight,
		Bias:              bias,
		OutgoingWeightSum: outSum,
		IncomingWeightSum: inSum,
		History:           stats.NewRing(),
	}
	n.index = len(g.nodes)
	g.nodes = append(g.nodes, n)
	if len(payload) > 0 {
		g.index.insert(n)
	}
	if len(payload) > g.maxPayloadLen {
		g.maxPayloadLen = len(payload)
	}

	return n
}

// RestoreAdaptationCount sets the adaptation counter to the persisted
// value without marking the graph dirty.
func (g *Graph) RestoreAdaptationCount(v uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.adaptationCount = v
}

func advanceIDCounter(id string) {
	digits, ok := strings.CutPrefix(id, "n")
	if !ok {
		return
	}
	v, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return
	}
	for {
		cur := atomic.LoadUint64(&nodeIDCounter)
		if v <= cur || atomic.CompareAndSwapUint64(&nodeIDCounter, cur, v) {
			return
		}
	}
}

// RestoreEdge appends an edge with exactly the given field values to g,
// without running AddOrStrengthenEdge's duplicate check or weight-update
// formula (the file already reflects their settled outcome).
func (g *Graph) RestoreEdge(from, to *Node, direction bool, weight float64) *Edge {
	g.mu.Lock()
	defer g.mu.Unlock()

	e := &Edge{From: from, To: to, Direction: direction, Weight: weight, History: stats.NewRing()}
	e.index = len(g.edges)
	g.edges = append(g.edges, e)
	from.Outgoing = append(from.Outgoing, e)
	to.Incoming = append(to.Incoming, e)

	return e
}
