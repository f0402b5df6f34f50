package stats

import "math"

// Epsilon returns the stability additive for a set of observed values: the
// observed range (max-min). Returns 0 when the range is 0 (including the
// empty and single-sample cases).
//
// Every division-by-near-zero in this module and its callers adds Epsilon
// of the relevant local distribution rather than a literal floor.
func Epsilon(observations []float64) float64 {
	if len(observations) == 0 {
		return 0
	}
	lo, hi := observations[0], observations[0]
	for _, v := range observations[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	return hi - lo
}

// Clip returns the clipping bound for a rate-of-change series: the 90th
// percentile of the observed absolute changes. Returns 0 for an empty
// series (no observed change ⇒ no clip needed).
func Clip(changes []float64) float64 {
	if len(changes) == 0 {
		return 0
	}
	abs := make([]float64, len(changes))
	for i, c := range changes {
		abs[i] = math.Abs(c)
	}

	return Percentile(abs, 0.9)
}

// Smoothing returns an EMA factor in [0,1) derived from the variance of
// recent changes relative to the magnitude of their mean: volatile series
// (high variance relative to mean) get a larger smoothing factor so they
// adapt faster; stable series get a smaller one. Returns 0 for fewer than
// two observations.
func Smoothing(changes []float64) float64 {
	if len(changes) < 2 {
		return 0
	}
	mean := Mean(changes)
	variance := Variance(changes)
	denom := math.Abs(mean) + Epsilon(changes)
	if denom == 0 {
		return 0
	}

	return Squash(variance / denom)
}

// MinSamples returns the sample-count threshold below which a statistic
// computed from densities should not yet be trusted. density is the
// recent rate of observations (e.g. samples per processing pass); the
// threshold is inverse-proportional to it, so a sparsely-observed context
// demands more samples before it is trusted and a densely-observed one
// demands fewer. Returns the
// minimal-context sentinel 1 when densities carries no signal.
func MinSamples(densities []float64) int {
	d := Mean(densities)
	if d <= 0 {
		return 1
	}
	n := int(math.Round(1 / d))
	if n < 1 {
		return 1
	}

	return n
}

// ExplorationSteps returns the depth bound for bounded graph exploration
// (ingestion's wave lookup, propagation depth), growing logarithmically
// with the number of nodes currently in the graph. Returns the
// minimal-context sentinel 1 for an empty graph; a singleton graph gets 2.
func ExplorationSteps(nodeCount int) int {
	if nodeCount < 1 {
		return 1
	}

	return 1 + int(math.Log2(float64(nodeCount+1)))
}

// BucketGrowthTrigger returns the collision-density threshold above which
// the payload-hash index should double its bucket count: the mean
// collision count per bucket plus one standard deviation, so the index
// tolerates its own natural variance before growing. Returns the
// minimal-context sentinel 1 when no collision observations exist yet
// (grow as soon as any bucket holds more than one entry).
func BucketGrowthTrigger(collisionCounts []float64) float64 {
	if len(collisionCounts) == 0 {
		return 1
	}

	return Mean(collisionCounts) + StdDev(collisionCounts)
}
