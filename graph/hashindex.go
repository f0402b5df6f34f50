// File: hashindex.go
// Role: Payload-hash index: maps a payload fingerprint to the set of
// candidate nodes with that fingerprint. Lookup returns a superset of true
// matches; callers verify exact/prefix equality themselves
// (payload similarity / exact-compare in ingest).
// AI-HINT (file):
//   - Starts at 1 bucket: every dynamic container in this engine starts at
//     its smallest useful capacity and grows from there.
//   - Grows by doubling when stats.BucketGrowthTrigger says collision
//     density warrants it; grow is a full rehash under the Graph's mu.
package graph

import (
	"github.com/cespare/xxhash/v2"

	"github.com/Jak3Gil/melvin/stats"
)

// payloadIndex is the chained, grow-by-doubling hash index over node
// payloads.
type payloadIndex struct {
	buckets [][]*Node
}

func newPayloadIndex() *payloadIndex {
	return &payloadIndex{buckets: make([][]*Node, 1)}
}

func fingerprint(payload []byte) uint64 {
	return xxhash.Sum64(payload)
}

func (p *payloadIndex) bucketFor(fp uint64) int {
	return int(fp % uint64(len(p.buckets)))
}

// insert adds n under its payload fingerprint, growing the bucket array
// first if collision density crosses the adaptive trigger.
func (p *payloadIndex) insert(n *Node) {
	if len(n.Payload) == 0 {
		return // blank nodes are never indexed by payload
	}
	p.maybeGrow()
	fp := fingerprint(n.Payload)
	b := p.bucketFor(fp)
	p.buckets[b] = append(p.buckets[b], n)
}

// candidates returns every node whose fingerprint bucket matches payload's
// bucket — a superset of true matches (false positives allowed from hash
// collisions across distinct fingerprints sharing a bucket; false
// negatives are forbidden since every indexed node lives in exactly one
// bucket determined by the same hash function).
func (p *payloadIndex) candidates(payload []byte) []*Node {
	if len(p.buckets) == 0 || len(payload) == 0 {
		return nil
	}
	fp := fingerprint(payload)
	b := p.bucketFor(fp)

	return p.buckets[b]
}

// all returns every indexed node, used by similarity-edge formation,
// which must scan the whole index, not just one bucket.
func (p *payloadIndex) all() []*Node {
	var out []*Node
	for _, bucket := range p.buckets {
		out = append(out, bucket...)
	}

	return out
}

func (p *payloadIndex) bucketCount() int { return len(p.buckets) }

// maybeGrow doubles the bucket count and rehashes every entry when the
// mean per-bucket count reaches stats.BucketGrowthTrigger of the per-bucket
// counts. That trigger is the mean plus one standard deviation, so growth
// happens only when every bucket holds the same number of entries
// (including the empty single bucket before the first insert).
func (p *payloadIndex) maybeGrow() {
	if len(p.buckets) == 0 {
		p.buckets = make([][]*Node, 1)

		return
	}
	densities := make([]float64, len(p.buckets))
	for i, b := range p.buckets {
		densities[i] = float64(len(b))
	}
	trigger := stats.BucketGrowthTrigger(densities)
	if stats.Mean(densities) < trigger {
		return
	}

	grown := make([][]*Node, len(p.buckets)*2)
	for _, b := range p.buckets {
		for _, n := range b {
			idx := int(fingerprint(n.Payload) % uint64(len(grown)))
			grown[idx] = append(grown[idx], n)
		}
	}
	p.buckets = grown
}
