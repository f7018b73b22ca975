package metrics

import "fmt"

// Difficulty is the ordinal severity assigned to a trail activity
type Difficulty int

const (
	Beginner     Difficulty = 1
	Moderate     Difficulty = 2
	Intermediate Difficulty = 3
	Advanced     Difficulty = 4
	Expert       Difficulty = 5
)

var difficultyLabels = map[Difficulty]string{
	Beginner:     "Beginner",
	Moderate:     "Moderate",
	Intermediate: "Intermediate",
	Advanced:     "Advanced",
	Expert:       "Expert",
}

// String returns the display label for d, or "" for values outside 1..5
func (d Difficulty) String() string {
	return difficultyLabels[d]
}

// Valid reports whether d is one of the five bands
func (d Difficulty) Valid() bool {
	_, ok := difficultyLabels[d]
	return ok
}

// FormatDuration renders a duration in minutes as "3h15". Unknown durations render as "-".
func FormatDuration(minutes *int) string {
	if minutes == nil {
		return "-"
	}
	return fmt.Sprintf("%dh%02d", *minutes/60, *minutes%60)
}

// Summary is the trail-level view across all of a trail's activities
type Summary struct {
	Difficulty string `json:"difficulty"`
	Duration   string `json:"duration"`
}

// Summarize picks the easiest difficulty and the shortest duration across
// results. Unknown values are skipped; if every value is unknown the summary
// fields are "" and "-".
func Summarize(results []Result) Summary {
	var easiest, shortest *int
	for _, r := range results {
		if r.Difficulty != nil && (easiest == nil || *r.Difficulty < *easiest) {
			easiest = r.Difficulty
		}
		if r.Duration != nil && (shortest == nil || *r.Duration < *shortest) {
			shortest = r.Duration
		}
	}

	s := Summary{Duration: FormatDuration(shortest)}
	if easiest != nil {
		s.Difficulty = Difficulty(*easiest).String()
	}
	return s
}
