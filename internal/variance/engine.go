package variance

import (
	"math"
	"sort"
)

// Compute derives the discrepancy of a count against its estimate. Positive
// values mean more stock was counted than estimated.
func Compute(estimated, real float64) Record {
	return Record{Estimated: estimated, Real: real, Discrepancy: real - estimated}
}

// SortByMagnitude orders records by absolute discrepancy, largest first.
func SortByMagnitude(records []Record) []Record {
	out := append([]Record(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Discrepancy) > math.Abs(out[j].Discrepancy)
	})
	return out
}

// Round6 trims float noise for display.
func Round6(v float64) float64 {
	r := math.Round(v*1e6) / 1e6
	if r == 0 {
		return 0
	}
	return r
}
