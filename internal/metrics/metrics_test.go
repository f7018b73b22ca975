package metrics

import (
	"testing"
)

func fp(v float64) *float64 { return &v }

func profile(length, ascent, descent float64) TrailProfile {
	return TrailProfile{TotalLength: fp(length), HeightPositive: fp(ascent), HeightNegative: fp(descent)}
}

var hiking = ActivityProfile{
	FlatPace:    4000,
	AscentPace:  300,
	DescentPace: 500,
	Distance:    [Bands]float64{5, 10, 15, 25},
	Dev:         [Bands]float64{300, 600, 1000, 1500},
}

func TestComputeDuration(t *testing.T) {
	tests := []struct {
		name     string
		trail    TrailProfile
		activity ActivityProfile
		expected int
	}{
		{
			// 1h ascent + 1h descent + 1h flat = 180 minutes, exact multiples still step up
			name:     "exact multiple rounds up",
			trail:    profile(1000, 100, -50),
			activity: ActivityProfile{AscentPace: 100, DescentPace: 50, FlatPace: 1000},
			expected: 195,
		},
		{
			name:     "partial quarter",
			trail:    profile(4000, 0, 0),
			activity: ActivityProfile{AscentPace: 300, DescentPace: 500, FlatPace: 3500},
			// 68.57 minutes -> 68 -> 75
			expected: 75,
		},
		{
			name:     "zero descent pace ignores descent",
			trail:    profile(1000, 100, -5000),
			activity: ActivityProfile{AscentPace: 100, DescentPace: 0, FlatPace: 1000},
			// 2h -> 120 -> 135
			expected: 135,
		},
		{
			name:     "empty trail",
			trail:    profile(0, 0, 0),
			activity: hiking,
			expected: 15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDuration(tt.trail, tt.activity)
			if got == nil {
				t.Fatalf("ComputeDuration returned nil, expected %d", tt.expected)
			}
			if *got != tt.expected {
				t.Errorf("ComputeDuration = %d, expected %d", *got, tt.expected)
			}
			if *got%15 != 0 {
				t.Errorf("ComputeDuration = %d, not a multiple of 15", *got)
			}
		})
	}
}

func TestUnknownProfile(t *testing.T) {
	tests := []struct {
		name  string
		trail TrailProfile
	}{
		{"no length", TrailProfile{HeightPositive: fp(1), HeightNegative: fp(-1)}},
		{"no ascent", TrailProfile{TotalLength: fp(1), HeightNegative: fp(-1)}},
		{"no descent", TrailProfile{TotalLength: fp(1), HeightPositive: fp(1)}},
		{"nothing", TrailProfile{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Compute(tt.trail, hiking)
			if r.Duration != nil || r.Difficulty != nil {
				t.Errorf("Compute = {%v, %v}, expected both nil", r.Duration, r.Difficulty)
			}
		})
	}
}

func TestComputeDurationNonFinite(t *testing.T) {
	// a zero flat pace with a non-zero length gives an infinite time
	got := ComputeDuration(profile(1000, 0, 0), ActivityProfile{AscentPace: 1, DescentPace: 1})
	if got != nil {
		t.Errorf("ComputeDuration = %d, expected nil", *got)
	}
}

func TestComputeDurationMonotonic(t *testing.T) {
	var prev int
	for length := 0.0; length <= 30000; length += 250 {
		got := *ComputeDuration(profile(length, 400, -400), hiking)
		if got < prev {
			t.Fatalf("duration decreased from %d to %d at length %.0f", prev, got, length)
		}
		prev = got
	}

	prev = 0
	for ascent := 0.0; ascent <= 3000; ascent += 25 {
		got := *ComputeDuration(profile(8000, ascent, -400), hiking)
		if got < prev {
			t.Fatalf("duration decreased from %d to %d at ascent %.0f", prev, got, ascent)
		}
		prev = got
	}
}

func TestComputeDifficulty(t *testing.T) {
	tests := []struct {
		name     string
		trail    TrailProfile
		activity ActivityProfile
		expected Difficulty
	}{
		{"short and flat", profile(2000, 50, -50), hiking, Beginner},
		{"moderate", profile(6000, 200, -200), hiking, Moderate},
		{"long", profile(12000, 200, -200), hiking, Intermediate},
		{"big climb", profile(10000, 500, -500), hiking, Advanced},
		{"beyond every band", profile(40000, 2000, -2000), hiking, Expert},
		{
			// on the band 1 ellipse exactly: (1/1)^2 + 0 = 1
			name:  "distance boundary is exclusive",
			trail: profile(1000, 0, 0),
			activity: ActivityProfile{
				DescentPace: 1,
				Distance:    [Bands]float64{1, 2, 3, 4},
				Dev:         [Bands]float64{100, 200, 300, 400},
			},
			expected: Moderate,
		},
		{
			name:  "elevation boundary is exclusive",
			trail: profile(0, 100, 0),
			activity: ActivityProfile{
				DescentPace: 1,
				Distance:    [Bands]float64{1, 2, 3, 4},
				Dev:         [Bands]float64{100, 200, 300, 400},
			},
			expected: Moderate,
		},
		{
			// descent counts toward elevation change only when descent pace is set
			name:  "descent pace zero ignores descent",
			trail: profile(0, 50, -100),
			activity: ActivityProfile{
				DescentPace: 0,
				Distance:    [Bands]float64{1, 2, 3, 4},
				Dev:         [Bands]float64{100, 200, 300, 400},
			},
			expected: Beginner,
		},
		{
			name:  "descent pace set adds descent",
			trail: profile(0, 50, -100),
			activity: ActivityProfile{
				DescentPace: 1,
				Distance:    [Bands]float64{1, 2, 3, 4},
				Dev:         [Bands]float64{100, 200, 300, 400},
			},
			expected: Moderate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeDifficulty(tt.trail, tt.activity)
			if got == nil {
				t.Fatalf("ComputeDifficulty returned nil, expected %d", tt.expected)
			}
			if Difficulty(*got) != tt.expected {
				t.Errorf("ComputeDifficulty = %d, expected %d", *got, tt.expected)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	d := 195
	if got := FormatDuration(&d); got != "3h15" {
		t.Errorf("FormatDuration(195) = %q, expected %q", got, "3h15")
	}
	d = 45
	if got := FormatDuration(&d); got != "0h45" {
		t.Errorf("FormatDuration(45) = %q, expected %q", got, "0h45")
	}
	if got := FormatDuration(nil); got != "-" {
		t.Errorf("FormatDuration(nil) = %q, expected %q", got, "-")
	}
}

func TestSummarize(t *testing.T) {
	i := func(v int) *int { return &v }

	s := Summarize([]Result{
		{Duration: i(240), Difficulty: i(3)},
		{Duration: nil, Difficulty: i(2)},
		{Duration: i(90), Difficulty: nil},
	})
	if s.Difficulty != "Moderate" || s.Duration != "1h30" {
		t.Errorf("Summarize = %+v, expected Moderate/1h30", s)
	}

	s = Summarize(nil)
	if s.Difficulty != "" || s.Duration != "-" {
		t.Errorf("Summarize(nil) = %+v, expected empty/-", s)
	}
}
