// Package topsis ranks alternatives by relative closeness to an ideal-best
// and ideal-worst point (TOPSIS).
//
// The pipeline is: vector-normalize each criteria column, multiply by the
// column weight, pick the per-column ideal best and worst according to the
// impact direction, take Euclidean distances from every row to both points,
// and score each row as distWorst / (distBest + distWorst). Ranks descend by
// score; tied rows share the largest ordinal position of their group.
//
// Input validation returns *ValidationError values that match the package
// sentinels via errors.Is. Nothing in this package prints or exits.
package topsis
