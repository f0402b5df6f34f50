// File: measure.go
// Role: Local measurement primitives: O(1) local weight averages via
// cached sums, and payload similarity over payload prefixes with an
// optional SIMD-widened fast path.
// AI-HINT (file):
//   - LocalOutgoingAvg/LocalIncomingAvg are O(1): they read the cached
//     sums maintained by methods.go, never re-summing edges.
//   - PayloadSimilarity probes cpuid.CPU once at package init; the
//     widened and scalar paths are required to agree (see
//     measure_test.go) so the fast path is safe to flip per-machine.
package graph

import "github.com/klauspost/cpuid/v2"

// simdLanes is the byte-compare lane width used when the host CPU
// supports AVX2; falls back to 1 (scalar) otherwise. Resolved once since
// CPU features do not change at runtime.
var simdLanes = func() int {
	if cpuid.CPU.Supports(cpuid.AVX2) {
		return 16
	}

	return 1
}()

// LocalOutgoingAvg returns n's cached outgoing weight sum divided by its
// outgoing edge count, or 0 when n has no outgoing edges.
//
// Complexity: O(1).
func LocalOutgoingAvg(n *Node) float64 {
	if len(n.Outgoing) == 0 {
		return 0
	}

	return n.OutgoingWeightSum / float64(len(n.Outgoing))
}

// LocalIncomingAvg returns n's cached incoming weight sum divided by its
// incoming edge count, or 0 when n has no incoming edges.
//
// Complexity: O(1).
func LocalIncomingAvg(n *Node) float64 {
	if len(n.Incoming) == 0 {
		return 0
	}

	return n.IncomingWeightSum / float64(len(n.Incoming))
}

// LocalSiblingAvg returns the mean weight of e's siblings — the other
// outgoing edges of e.From — used as e's local context for the edge
// weight update. Returns 0 when e has no siblings.
//
// Complexity: O(out-degree of e.From).
func LocalSiblingAvg(e *Edge) float64 {
	var sum float64
	var count int
	for _, sibling := range e.From.Outgoing {
		if sibling == e {
			continue
		}
		sum += sibling.Weight
		count++
	}
	if count == 0 {
		return 0
	}

	return sum / float64(count)
}

// SiblingWeights returns the weights of every outgoing edge of e.From
// other than e itself, used by EdgeTransform's percentile/variance
// formulas.
func SiblingWeights(e *Edge) []float64 {
	var out []float64
	for _, sibling := range e.From.Outgoing {
		if sibling == e {
			continue
		}
		out = append(out, sibling.Weight)
	}

	return out
}

// PayloadSimilarity returns n's payload similarity to bytes:
// m = min(P, len(bytes)); c = equal-byte count over the first m
// positions; result = c/P. Returns 0 when m == 0, when P == 0 (n is
// blank — similarity is undefined for blanks; use MatchStrength), or when
// P > len(bytes).
//
// Complexity: O(m), with a SIMD-widened inner loop when the host
// supports AVX2.
func PayloadSimilarity(n *Node, payload []byte) float64 {
	p := len(n.Payload)
	if p == 0 {
		return 0
	}
	if p > len(payload) {
		return 0
	}
	m := p
	if len(payload) < m {
		m = len(payload)
	}
	if m == 0 {
		return 0
	}

	c := equalByteCount(n.Payload[:m], payload[:m])

	return float64(c) / float64(p)
}

// equalByteCount counts matching byte positions between a and b (equal
// length), widened to simdLanes-byte strides when available, scalar
// otherwise. Both paths must agree exactly: see measure_test.go.
func equalByteCount(a, b []byte) int {
	n := len(a)
	count := 0
	i := 0
	if simdLanes > 1 {
		for ; i+simdLanes <= n; i += simdLanes {
			for j := 0; j < simdLanes; j++ {
				if a[i+j] == b[i+j] {
					count++
				}
			}
		}
	}
	for ; i < n; i++ {
		if a[i] == b[i] {
			count++
		}
	}

	return count
}
