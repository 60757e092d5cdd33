// Package pace derives a member's average running pace from recent runs.
package pace

import (
	"math"

	"github.com/okian/runclub/internal/domain/model"
)

// HistoryLimit is the number of most recent runs considered.
const HistoryLimit = 20

// Bounds of a plausible record. Anything outside is treated as GPS noise.
const (
	minDistanceKm = 0.1
	minPace       = 2.0  // min/km, exclusive
	maxPace       = 15.0 // min/km, exclusive
)

// Of returns the pace of a single record in minutes per kilometer and
// whether the record qualifies for averaging.
func Of(r model.RunRecord) (float64, bool) {
	// Written positively so NaN distances fail every bound.
	if !(r.DistanceKm > minDistanceKm) || math.IsInf(r.DistanceKm, 0) || r.DurationSeconds <= 0 {
		return 0, false
	}
	p := (float64(r.DurationSeconds) / 60) / r.DistanceKm
	if !(p > minPace && p < maxPace) {
		return 0, false
	}
	return p, true
}

// Estimate averages the pace of the qualifying records.
// ok is false when no record qualifies.
func Estimate(records []model.RunRecord) (minPerKm float64, ok bool) {
	var total float64
	var n int
	for _, r := range records {
		if p, qualifies := Of(r); qualifies {
			total += p
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return total / float64(n), true
}
