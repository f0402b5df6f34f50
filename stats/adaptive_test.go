// Package stats_test verifies the adaptive-statistics utility returns its
// documented neutral values on degenerate input and sane values otherwise.
package stats_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Jak3Gil/melvin/stats"
)

func TestEpsilon_NeutralOnDegenerate(t *testing.T) {
	require.Equal(t, 0.0, stats.Epsilon(nil))
	require.Equal(t, 0.0, stats.Epsilon([]float64{}))
	require.Equal(t, 0.0, stats.Epsilon([]float64{5, 5, 5}))
	require.Equal(t, 4.0, stats.Epsilon([]float64{1, 5, 3}))
}

func TestClip_NeutralOnEmpty(t *testing.T) {
	require.Equal(t, 0.0, stats.Clip(nil))
	require.Greater(t, stats.Clip([]float64{1, -2, 3, -4, 5, 6, 7, 8, 9, 10}), 0.0)
}

func TestSmoothing_BoundedZeroToOne(t *testing.T) {
	require.Equal(t, 0.0, stats.Smoothing([]float64{1}))
	got := stats.Smoothing([]float64{1, 2, 1, 2, 1, 100})
	require.GreaterOrEqual(t, got, 0.0)
	require.Less(t, got, 1.0)
}

func TestMinSamples_InverseToDensity(t *testing.T) {
	require.Equal(t, 1, stats.MinSamples(nil))
	require.Equal(t, 1, stats.MinSamples([]float64{1, 1, 1}))
	require.Greater(t, stats.MinSamples([]float64{0.1, 0.1}), 1)
}

func TestExplorationSteps_GrowsSubLinearly(t *testing.T) {
	require.Equal(t, 1, stats.ExplorationSteps(0))
	small := stats.ExplorationSteps(4)
	large := stats.ExplorationSteps(4096)
	require.Greater(t, large, small)
	// sub-linear: 1024x the nodes should not yield 1024x the depth.
	require.Less(t, large, small*1024)
}

func TestBucketGrowthTrigger_Sentinel(t *testing.T) {
	require.Equal(t, 1.0, stats.BucketGrowthTrigger(nil))
	require.Greater(t, stats.BucketGrowthTrigger([]float64{1, 2, 3, 10}), 0.0)
}

func TestPercentile_Interpolates(t *testing.T) {
	require.Equal(t, 0.0, stats.Percentile(nil, 0.5))
	require.Equal(t, 3.0, stats.Percentile([]float64{1, 2, 3, 4, 5}, 0.5))
}

func TestRing_GrowsAndRetainsOrder(t *testing.T) {
	r := stats.NewRing()
	for i := 0; i < 20; i++ {
		r.Push(float64(i))
	}
	vals := r.Values()
	require.NotEmpty(t, vals)
	for i := 1; i < len(vals); i++ {
		require.Less(t, vals[i-1], vals[i])
	}
}
