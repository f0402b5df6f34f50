// File: errors.go
// Role: Sentinel and typed errors for the graph package. Sentinels cover
// lookup and mutation misuse; the typed ResourceError/InvariantError
// kinds carry the context the engine's failure model requires.
package graph

import "errors"

// Sentinel errors for node/edge lookups and mutations.
var (
	// ErrEmptyPayload is returned where an operation requires a non-blank
	// payload but received one of length 0.
	ErrEmptyPayload = errors.New("graph: payload is empty")

	// ErrNodeNotFound indicates an operation referenced a node the graph
	// does not own.
	ErrNodeNotFound = errors.New("graph: node not found")

	// ErrEdgeNotFound indicates an operation referenced an edge the graph
	// does not own.
	ErrEdgeNotFound = errors.New("graph: edge not found")

	// ErrNotBlank indicates FillBlank was called on a node whose payload
	// is already non-empty: a blank node must have payload size 0.
	ErrNotBlank = errors.New("graph: node is not blank")

	// ErrForeignNode indicates an edge endpoint belongs to a different
	// Graph instance than the one performing the operation.
	ErrForeignNode = errors.New("graph: node does not belong to this graph")
)

// ResourceError reports an allocation failure while growing a dynamic
// array or the payload-hash index. Callers that see this must abort the
// current pass cleanly without leaving partial edges; already-applied
// weight updates are acceptable residue.
type ResourceError struct {
	Op  string // the operation that failed to grow ("node table", "bucket array", ...)
	Err error  // underlying cause, if any
}

func (e *ResourceError) Error() string {
	if e.Err != nil {
		return "graph: resource error growing " + e.Op + ": " + e.Err.Error()
	}

	return "graph: resource error growing " + e.Op
}

func (e *ResourceError) Unwrap() error { return e.Err }

// InvariantError reports a structural operation that would violate one of
// this package's node/edge/container invariants. Invariant errors are
// bugs, not runtime conditions: callers must refuse to continue rather
// than attempt recovery.
type InvariantError struct {
	Invariant string // short name of the violated invariant
	Detail    string
}

func (e *InvariantError) Error() string {
	return "graph: invariant violated (" + e.Invariant + "): " + e.Detail
}
