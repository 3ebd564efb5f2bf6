package workout

import (
	"fmt"
	"strings"
)

// Percentages of max heart rate used by the built-in sessions.
const (
	HeartRateAerobicPercent   = 70
	HeartRateThresholdPercent = 85
)

// AllWorkouts defines the built-in sessions. Profile names match the session
// profiles that present them best.
var AllWorkouts = []Workout{
	{
		Name:        "Shift Intervals",
		Description: "On-ice shift simulation on the bike: 45s hard, 90s easy",
		Profile:     "conditioning",
		Segments: concat(
			[]Segment{
				{ID: "warmup", Kind: KindWarmup, DurationSeconds: 300, Targets: hr(Percentage(65, ReferenceMax))},
			},
			repeat(8, "shift",
				Segment{Kind: KindWork, DurationSeconds: 45, Label: "Shift", Targets: hr(Percentage(HeartRateThresholdPercent, ReferenceMax))},
				Segment{Kind: KindRest, DurationSeconds: 90, Label: "Bench"},
			),
			[]Segment{
				{ID: "cooldown", Kind: KindCooldown, DurationSeconds: 300},
			},
		),
	},
	{
		Name:        "Power Repeats",
		Description: "Short threshold-plus efforts held against FTP targets",
		Profile:     "enhanced",
		Segments: concat(
			[]Segment{
				{ID: "warmup", Kind: KindWarmup, DurationSeconds: 480, Targets: watts(Zone(2, PowerZones))},
			},
			repeat(6, "repeat",
				Segment{Kind: KindWork, DurationSeconds: 60, Targets: watts(Percentage(120, ReferenceFTP))},
				Segment{Kind: KindActiveRecovery, DurationSeconds: 120, Targets: watts(Zone(1, PowerZones))},
			),
			[]Segment{
				{ID: "cooldown", Kind: KindCooldown, DurationSeconds: 300, Targets: watts(Zone(1, PowerZones))},
			},
		),
	},
	{
		Name:        "Aerobic Base",
		Description: "Steady heart rate zone 2 ride for recovery days",
		Profile:     "conditioning",
		Segments: []Segment{
			{ID: "warmup", Kind: KindWarmup, DurationSeconds: 300},
			{ID: "steady", Kind: KindWork, DurationSeconds: 1800, Label: "Zone 2", Targets: hr(Zone(2, HeartRateZones))},
			{ID: "cooldown", Kind: KindCooldown, DurationSeconds: 300},
		},
	},
	{
		Name:        "Hybrid Strength Circuit",
		Description: "Lower body strength blocks finished with a bike flush",
		Profile:     "hybrid",
		Segments: []Segment{
			{ID: "warmup", Kind: KindWarmup, DurationSeconds: 300, Label: "Dynamic warm-up"},
			{ID: "squat", Kind: KindExercise, Label: "Back Squat", Sets: 4, Reps: 6, Equipment: []string{"barbell", "rack"}},
			{ID: "move-1", Kind: KindTransition, DurationSeconds: 60, Label: "Move to platform"},
			{ID: "split-squat", Kind: KindExercise, Label: "Rear-foot Split Squat", Sets: 3, Reps: 8, Equipment: []string{"dumbbells", "bench"}},
			{ID: "move-2", Kind: KindTransition, DurationSeconds: 60, Label: "Move to bikes"},
			{ID: "flush-work", Kind: KindWork, DurationSeconds: 240, Label: "Bike flush", Targets: hr(Percentage(HeartRateAerobicPercent, ReferenceMax))},
			{ID: "cooldown", Kind: KindCooldown, DurationSeconds: 180},
		},
	},
}

// Find looks a built-in workout up by name, ignoring case.
func Find(name string) (Workout, bool) {
	for _, w := range AllWorkouts {
		if strings.EqualFold(w.Name, name) {
			return clone(w), true
		}
	}
	return Workout{}, false
}

// Names returns the built-in workout names in library order.
func Names() []string {
	names := make([]string, len(AllWorkouts))
	for i, w := range AllWorkouts {
		names[i] = w.Name
	}
	return names
}

func hr(t TargetSpec) map[MetricName]TargetSpec {
	return map[MetricName]TargetSpec{MetricHeartRate: t}
}

func watts(t TargetSpec) map[MetricName]TargetSpec {
	return map[MetricName]TargetSpec{MetricWatts: t}
}

// repeat builds n rounds of the given pattern with ids "<prefix>-<round>-<kind>".
func repeat(n int, prefix string, pattern ...Segment) []Segment {
	out := make([]Segment, 0, n*len(pattern))
	for round := 1; round <= n; round++ {
		for _, s := range pattern {
			s.ID = fmt.Sprintf("%s-%d-%s", prefix, round, s.Kind)
			if s.Label != "" {
				s.Label = fmt.Sprintf("%s %d", s.Label, round)
			}
			out = append(out, s)
		}
	}
	return out
}

func concat(parts ...[]Segment) []Segment {
	var out []Segment
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func clone(w Workout) Workout {
	out := w
	out.Segments = make([]Segment, len(w.Segments))
	copy(out.Segments, w.Segments)
	return out
}
