// Package metrics derives hiking duration and difficulty for an activity performed
// on a trail. All functions are pure and safe for concurrent use.
package metrics

import "math"

// Bands is the number of ellipse-bounded difficulty bands before the open-ended
// most severe one
const Bands = 4

// TrailProfile holds the physical profile of a trail. A nil field means the value
// is unknown.
type TrailProfile struct {
	TotalLength    *float64 // meters
	HeightPositive *float64 // cumulative ascent, meters
	HeightNegative *float64 // cumulative descent, meters (negative or zero)
}

// ActivityProfile holds per-activity pace and difficulty band parameters
type ActivityProfile struct {
	FlatPace    float64        // meters per hour on flat ground
	AscentPace  float64        // vertical meters per hour climbing
	DescentPace float64        // vertical meters per hour descending
	Distance    [Bands]float64 // band semi-axes on the distance axis, km
	Dev         [Bands]float64 // band semi-axes on the elevation axis, m
}

// Result is the pair of derived values stored on a trail activity
type Result struct {
	Duration   *int `json:"duration"`
	Difficulty *int `json:"difficulty"`
}

func (p TrailProfile) known() bool {
	return p.TotalLength != nil && p.HeightPositive != nil && p.HeightNegative != nil
}

// Compute derives both duration and difficulty
func Compute(trail TrailProfile, activity ActivityProfile) Result {
	return Result{
		Duration:   ComputeDuration(trail, activity),
		Difficulty: ComputeDifficulty(trail, activity),
	}
}

// ComputeDuration returns the estimated duration in minutes, rounded up to the
// next multiple of 15. An exact multiple still moves up one step. Returns nil
// when the profile is incomplete or the paces produce a non-finite time.
func ComputeDuration(trail TrailProfile, activity ActivityProfile) *int {
	if !trail.known() {
		return nil
	}

	ascentHours := *trail.HeightPositive / activity.AscentPace

	descentHours := 0.0
	if activity.DescentPace != 0 {
		descentHours = -*trail.HeightNegative / activity.DescentPace
	}

	flatHours := *trail.TotalLength / activity.FlatPace

	hours := ascentHours + descentHours + flatHours
	if math.IsNaN(hours) || math.IsInf(hours, 0) {
		return nil
	}

	minutes := int(math.Floor(hours * 60))
	// floor division so negative totals still round toward +inf in 15 minute steps
	rounded := (floorDiv(minutes, 15) + 1) * 15

	return &rounded
}

// ComputeDifficulty returns the least severe band (1..4) whose ellipse strictly
// contains the trail's (distance, elevation change) point, or 5 when none does.
// Returns nil when the profile is incomplete.
func ComputeDifficulty(trail TrailProfile, activity ActivityProfile) *int {
	if !trail.known() {
		return nil
	}

	vertical := *trail.HeightPositive
	if activity.DescentPace != 0 {
		vertical -= *trail.HeightNegative
	}
	km := *trail.TotalLength / 1000

	for i := 0; i < Bands; i++ {
		if insideEllipse(km, activity.Distance[i], vertical, activity.Dev[i]) {
			band := i + 1
			return &band
		}
	}

	band := int(Expert)
	return &band
}

// insideEllipse reports whether (x, y) lies strictly inside the axis-aligned
// ellipse with semi-axes a and b. Points on the boundary are outside.
func insideEllipse(x, a, y, b float64) bool {
	v := math.Pow(x/a, 2) + math.Pow(y/b, 2)
	return v < 1
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
