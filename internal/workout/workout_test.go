package workout

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegment_VariantAndDuration(t *testing.T) {
	assert.Equal(t, VariantInterval, Segment{Kind: KindWork}.Variant())
	assert.Equal(t, VariantExercise, Segment{Kind: KindExercise}.Variant())
	assert.Equal(t, VariantTransition, Segment{Kind: KindTransition}.Variant())

	assert.True(t, Segment{Kind: KindExercise}.Manual())
	assert.False(t, Segment{Kind: KindTransition}.Manual())

	assert.Equal(t, 0, Segment{DurationSeconds: -5}.Duration())
	assert.Equal(t, 30, Segment{DurationSeconds: 30}.Duration())
}

func TestSegment_DisplayName(t *testing.T) {
	assert.Equal(t, "Active Recovery", Segment{Kind: KindActiveRecovery}.DisplayName())
	assert.Equal(t, "Back Squat", Segment{Kind: KindExercise, Label: "Back Squat"}.DisplayName())
}

func TestWorkout_TotalDuration(t *testing.T) {
	w := Workout{Segments: []Segment{
		{Kind: KindWork, DurationSeconds: 60},
		{Kind: KindRest, DurationSeconds: -10},
		{Kind: KindRest, DurationSeconds: 30},
	}}
	assert.Equal(t, 90*time.Second, w.TotalDuration())
}

func TestMetrics_Merge(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	base := NewMetrics(t0, map[MetricName]float64{MetricHeartRate: 140, MetricWatts: 200})
	update := NewMetrics(t0.Add(time.Second), map[MetricName]float64{MetricWatts: 220})

	merged := base.Merge(update)
	assert.Equal(t, 140.0, merged.Values[MetricHeartRate])
	assert.Equal(t, 220.0, merged.Values[MetricWatts])
	assert.Equal(t, t0.Add(time.Second), merged.Timestamp)

	// the inputs are left untouched
	assert.Equal(t, 200.0, base.Values[MetricWatts])

	older := base.Merge(Metrics{Values: map[MetricName]float64{MetricRPM: 90}, Timestamp: t0.Add(-time.Second)})
	assert.Equal(t, t0, older.Timestamp)
}

func TestMetrics_GetAndEmpty(t *testing.T) {
	var m Metrics
	assert.True(t, m.Empty())
	_, ok := m.Get(MetricHeartRate)
	assert.False(t, ok)

	m = NewMetrics(time.Now(), map[MetricName]float64{MetricCalories: 12})
	v, ok := m.Get(MetricCalories)
	assert.True(t, ok)
	assert.Equal(t, 12.0, v)
}

func TestMetricName_Format(t *testing.T) {
	assert.Equal(t, "152 bpm", MetricHeartRate.Format(152.4))
	assert.Equal(t, "250 W", MetricWatts.Format(250))
	assert.Equal(t, "1.5", MetricName("unknown").Format(1.5))
}

func TestTargetSpec_ValidateAndString(t *testing.T) {
	assert.NoError(t, Absolute(150).Validate())
	assert.NoError(t, Percentage(85, ReferenceMax).Validate())
	assert.NoError(t, Zone(3, PowerZones).Validate())
	assert.Error(t, Percentage(85, "vo2").Validate())
	assert.Error(t, Zone(3, "paceZones").Validate())
	assert.Error(t, TargetSpec{Type: "range"}.Validate())

	assert.Equal(t, "150", Absolute(150).String())
	assert.Equal(t, "85% max", Percentage(85, ReferenceMax).String())
	assert.Equal(t, "HR Z2", Zone(2, HeartRateZones).String())
	assert.Equal(t, "power Z4", Zone(4, PowerZones).String())
}

func TestLibrary(t *testing.T) {
	require.NotEmpty(t, AllWorkouts)
	assert.Len(t, Names(), len(AllWorkouts))

	for _, w := range AllWorkouts {
		ids := make(map[string]bool)
		for _, s := range w.Segments {
			assert.True(t, s.Kind.Valid(), "%s: %s", w.Name, s.Kind)
			assert.False(t, ids[s.ID], "%s: duplicate id %s", w.Name, s.ID)
			ids[s.ID] = true
			for _, target := range s.Targets {
				assert.NoError(t, target.Validate())
			}
		}
	}

	w, ok := Find("shift intervals")
	require.True(t, ok)
	assert.Equal(t, "Shift Intervals", w.Name)
	// warmup + 8 rounds of work/rest + cooldown
	assert.Len(t, w.Segments, 18)
	assert.Equal(t, "shift-1-work", w.Segments[1].ID)
	assert.Equal(t, "Shift 1", w.Segments[1].Label)

	w.Segments[0].Label = "changed"
	again, _ := Find("Shift Intervals")
	assert.NotEqual(t, "changed", again.Segments[0].Label)

	_, ok = Find("nope")
	assert.False(t, ok)
}

const sampleWorkout = `
name: Bench Sprints
segments:
  - kind: warmup
    duration: 120
  - id: sprint
    kind: work
    duration: 30
    targets:
      heartRate: {type: percentage, value: 90, reference: max}
      watts: {type: zone, zone: 5, zoneSystem: powerZones}
  - kind: exercise
    label: Box Jumps
    sets: 3
    reps: 5
    equipment: [box]
  - kind: rest
    duration: -3
`

func TestParse(t *testing.T) {
	w, err := Parse([]byte(sampleWorkout))
	require.NoError(t, err)

	assert.Equal(t, "Bench Sprints", w.Name)
	require.Len(t, w.Segments, 4)
	assert.Equal(t, "seg-1", w.Segments[0].ID)
	assert.Equal(t, "sprint", w.Segments[1].ID)
	assert.Equal(t, Percentage(90, ReferenceMax), w.Segments[1].Targets[MetricHeartRate])
	assert.Equal(t, Zone(5, PowerZones), w.Segments[1].Targets[MetricWatts])
	assert.True(t, w.Segments[2].Manual())
	assert.Equal(t, []string{"box"}, w.Segments[2].Equipment)
	assert.Equal(t, 0, w.Segments[3].Duration())
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("name: empty\nsegments: []\n"))
	assert.ErrorIs(t, err, ErrNoSegments)

	_, err = Parse([]byte("segments:\n  - kind: sprint\n    duration: 10\n"))
	assert.ErrorContains(t, err, "unknown kind")

	_, err = Parse([]byte("segments:\n  - {id: a, kind: work}\n  - {id: a, kind: rest}\n"))
	assert.ErrorContains(t, err, "duplicate id")

	_, err = Parse([]byte("segments:\n  - kind: work\n    targets:\n      heartRate: {type: percentage, value: 80, reference: vo2}\n"))
	assert.ErrorContains(t, err, "unknown percentage reference")

	_, err = Parse([]byte("segments:\n  - kind: work\n    targets:\n      watts: {type: percentage, value: 85, reference: max}\n"))
	assert.ErrorContains(t, err, `reference "max" applies to heartRate only`)

	_, err = Parse([]byte("segments:\n  - kind: work\n    targets:\n      heartRate: {type: percentage, value: 85, reference: ftp}\n"))
	assert.ErrorContains(t, err, `reference "ftp" applies to watts only`)

	_, err = Parse([]byte("segments:\n  - kind: work\n    targets:\n      heartRate: {type: zone, zone: 3, zoneSystem: powerZones}\n"))
	assert.ErrorContains(t, err, "applies to watts only")

	_, err = Parse([]byte("segments: [\n"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleWorkout), 0o644))

	w, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, w.Segments, 4)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
