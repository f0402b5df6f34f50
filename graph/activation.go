// File: activation.go
// Role: "Mini-neuron" node activation and "mini-transformer" edge
// transform, plus MatchStrength. Formulas are staged with named
// intermediates; every scalar in a comparison comes from the stats
// package or a local-context expression.
package graph

import "github.com/Jak3Gil/melvin/stats"

// NodeActivation computes n's ephemeral activation from its incoming
// edges and local bias:
//
//	Stage 1: raw_in = Σ edge_transform(e, a_source); total_w = Σ w_e.
//	Stage 2: input_sum = raw_in/(total_w+ε) if total_w>0 else 0.
//	Stage 3: bias b = w_n/(w_n+local_outgoing_avg(n)+ε).
//	Stage 4: raw = input_sum + b; result = raw/(1+raw) (soft squash).
//
// The result is NOT written back to n.Activation; callers (ingest/wave)
// decide when an activation becomes durable.
func NodeActivation(n *Node) float64 {
	// Stage 1: accumulate transformed input and total incoming weight.
	var rawIn, totalW float64
	for _, e := range n.Incoming {
		rawIn += EdgeTransform(e, e.From.Activation)
		totalW += e.Weight
	}

	// Stage 2: normalize by total incoming weight, epsilon-stabilized.
	eps := stats.Epsilon(incomingWeights(n))
	var inputSum float64
	if totalW > 0 {
		inputSum = rawIn / (totalW + eps)
	}

	// Stage 3: local bias from n's own weight vs. its outgoing context.
	bias := NodeBias(n)

	// Stage 4: soft non-linearity, bounded in [0,1).
	raw := inputSum + bias

	return stats.Squash(raw)
}

// NodeBias computes n's bias b = w_n/(w_n+local_outgoing_avg(n)+ε), the
// node's dominance over its own outgoing neighborhood, in [0,1]. A node
// with no weight and no neighborhood has no dominance to speak of; the
// neutral value there is 0.
func NodeBias(n *Node) float64 {
	localOut := LocalOutgoingAvg(n)
	eps := stats.Epsilon([]float64{n.Weight, localOut})
	denom := n.Weight + localOut + eps
	if denom == 0 {
		return 0
	}

	return n.Weight / denom
}

func incomingWeights(n *Node) []float64 {
	out := make([]float64, len(n.Incoming))
	for i, e := range n.Incoming {
		out[i] = e.Weight
	}

	return out
}

// EdgeTransform computes e's transformed output activation for input x:
//
//	Stage 1: base = w_e * x.
//	Stage 2: similarity boost using the similarity of e's own endpoints
//	         against the mean similarity of e.From's sibling edges.
//	Stage 3: primary-path boost when w_e exceeds the 75th-percentile
//	         sibling weight, scaled by local edge-weight variance rather
//	         than a literal multiplier.
//	Stage 4: clamp to non-negative.
func EdgeTransform(e *Edge, x float64) float64 {
	// Stage 1: base linear transform.
	base := e.Weight * x

	// Stage 2: similarity boost (only meaningful when both endpoints are
	// concrete; blank endpoints have no payload to compare).
	boosted := base
	if !e.From.Blank() && !e.To.Blank() {
		sim := PayloadSimilarity(e.From, e.To.Payload)
		siblingSims := siblingSimilarities(e)
		localSimThreshold := stats.Mean(siblingSims)
		delta := sim - localSimThreshold
		if delta < 0 {
			delta = 0
		}
		boosted += e.Weight * x * delta
	}

	// Stage 3: primary-path boost — reward the edge that dominates its
	// siblings, scaled by how variable the sibling weights naturally are.
	siblingWeights := SiblingWeights(e)
	if len(siblingWeights) > 0 {
		q := stats.Percentile(siblingWeights, 0.75)
		if e.Weight > q {
			eps := stats.Epsilon(siblingWeights)
			boosted *= 1 + (e.Weight-q)/(q+eps)
		}
	}

	// Stage 4: non-negative output.
	if boosted < 0 {
		return 0
	}

	return boosted
}

func siblingSimilarities(e *Edge) []float64 {
	var out []float64
	for _, sibling := range e.From.Outgoing {
		if sibling == e {
			continue
		}
		if sibling.To.Blank() {
			continue
		}
		out = append(out, PayloadSimilarity(e.From, sibling.To.Payload))
	}

	return out
}

// MatchStrength reports n's fitness to represent payload.
// For concrete nodes (P>0): similarity(n,bytes) weighted by n's local
// dominance, w_n/(w_n+local_avg+ε). For blank nodes (P=0): the universal
// connection rule — a weighted average of bytes' similarity against every
// connected concrete neighbor, weighted by the connecting edge's weight.
func MatchStrength(n *Node, payload []byte) float64 {
	if !n.Blank() {
		sim := PayloadSimilarity(n, payload)
		localAvg := LocalOutgoingAvg(n)
		eps := stats.Epsilon([]float64{n.Weight, localAvg})
		denom := n.Weight + localAvg + eps
		if denom == 0 {
			// No weight and no neighborhood: nothing to discount the
			// similarity against, so the similarity itself is the match.
			return sim
		}

		return sim * n.Weight / denom
	}

	// Blank node: match through connections, not payload.
	var weightedSum, weightSum float64
	for _, e := range n.Outgoing {
		if e.To.Blank() {
			continue
		}
		weightedSum += e.Weight * PayloadSimilarity(e.To, payload)
		weightSum += e.Weight
	}
	for _, e := range n.Incoming {
		if e.From.Blank() {
			continue
		}
		weightedSum += e.Weight * PayloadSimilarity(e.From, payload)
		weightSum += e.Weight
	}
	if weightSum == 0 {
		return 0
	}

	return weightedSum / weightSum
}

// LocalSimThreshold returns the mean payload-similarity between n and its
// concrete neighbors (outgoing and incoming), used by similarity-edge
// formation as the bar a candidate must clear. This generalizes
// EdgeTransform's per-edge local similarity threshold to a per-node
// context.
func LocalSimThreshold(n *Node) float64 {
	if n.Blank() {
		return 0
	}
	var sims []float64
	for _, e := range n.Outgoing {
		if e.To.Blank() {
			continue
		}
		sims = append(sims, PayloadSimilarity(n, e.To.Payload))
	}
	for _, e := range n.Incoming {
		if e.From.Blank() {
			continue
		}
		sims = append(sims, PayloadSimilarity(n, e.From.Payload))
	}

	return stats.Mean(sims)
}

// LocalConnectionMean returns a baseline [0,1) dominance score for n's own
// neighborhood, independent of any candidate payload: the mean of n's
// incident edge weights, soft-squashed. This is the "local connection
// mean" that a blank node's relative match strength is compared against
// before accepting or filling it — a byte-independent expectation for how
// strongly this neighborhood normally connects.
func LocalConnectionMean(n *Node) float64 {
	var weights []float64
	for _, e := range n.Outgoing {
		weights = append(weights, e.Weight)
	}
	for _, e := range n.Incoming {
		weights = append(weights, e.Weight)
	}

	return stats.Squash(stats.Mean(weights))
}
