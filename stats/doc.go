// Package stats is the adaptive-statistics utility (see DESIGN.md).
//
// Every function here is a pure, total, side-effect-free transform of an
// observed value distribution into a scalar used elsewhere as a comparison
// threshold, a clip bound, a smoothing factor, or a depth bound. No
// function in this package, nor any caller, is permitted to compare a
// value against a literal numeric constant — every threshold is derived
// from the shape of local data passed in here.
//
// When the observation set is empty or degenerate (all-equal, single
// sample), each function returns its documented neutral value: 0 for
// additive/clip-style quantities, 1 for cardinalities and step counts.
// This keeps behavior stable on sparse data without resorting to a
// guessed default.
package stats
