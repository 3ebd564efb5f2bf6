package session

import (
	"time"

	"github.com/lowaak/smart-trainer/conditioning-timer/internal/recorder"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/sequencer"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/workout"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/zones"
)

// View is what a presentation layer renders. A new View is published after
// every command, tick and metrics update.
type View struct {
	WorkoutName    string
	Profile        Profile
	State          sequencer.State
	Progress       sequencer.Progress
	Metrics        workout.Metrics
	Zones          []zones.Status
	Reference      zones.Reference
	LastTransition sequencer.TransitionKind
	LastRecord     *recorder.ExecutionRecord
}

// StatusReport is the JSON rendering of a View served by the metrics bridge.
type StatusReport struct {
	Workout          string                         `json:"workout"`
	Profile          string                         `json:"profile"`
	State            string                         `json:"state"`
	SegmentID        string                         `json:"segmentId,omitempty"`
	SegmentLabel     string                         `json:"segmentLabel,omitempty"`
	SegmentKind      string                         `json:"segmentKind,omitempty"`
	RemainingSeconds int                            `json:"remainingSeconds"`
	SegmentNumber    int                            `json:"segmentNumber"`
	TotalSegments    int                            `json:"totalSegments"`
	ElapsedSeconds   int                            `json:"elapsedSeconds"`
	TotalSeconds     int                            `json:"totalSeconds"`
	Percent          float64                        `json:"percent"`
	Records          int                            `json:"records"`
	Metrics          map[workout.MetricName]float64 `json:"metrics"`
	MetricsAt        *time.Time                     `json:"metricsAt,omitempty"`
	Zones            []ZoneReport                   `json:"zones,omitempty"`
}

type ZoneReport struct {
	Metric      string  `json:"metric"`
	Value       float64 `json:"value"`
	CurrentZone int     `json:"currentZone,omitempty"`
	TargetZone  int     `json:"targetZone,omitempty"`
	TargetLow   float64 `json:"targetLow"`
	TargetHigh  float64 `json:"targetHigh"`
	InZone      bool    `json:"inZone"`
}

// Report converts v for JSON output.
func (v View) Report() StatusReport {
	r := StatusReport{
		Workout:          v.WorkoutName,
		Profile:          string(v.Profile),
		State:            v.State.RunState.String(),
		RemainingSeconds: v.State.TimeRemainingSeconds,
		SegmentNumber:    v.Progress.SegmentNumber,
		TotalSegments:    v.Progress.TotalSegments,
		ElapsedSeconds:   v.Progress.ElapsedSeconds,
		TotalSeconds:     v.Progress.TotalSeconds,
		Percent:          v.Progress.Percent,
		Records:          v.State.RecordCount,
		Metrics:          map[workout.MetricName]float64{},
	}
	if seg, ok := v.State.Current(); ok {
		r.SegmentID = seg.ID
		r.SegmentLabel = seg.DisplayName()
		r.SegmentKind = string(seg.Kind)
	}
	for name, value := range v.Metrics.Values {
		r.Metrics[name] = value
	}
	if !v.Metrics.Timestamp.IsZero() {
		ts := v.Metrics.Timestamp
		r.MetricsAt = &ts
	}
	for _, z := range v.Zones {
		r.Zones = append(r.Zones, ZoneReport{
			Metric:      string(z.MetricType),
			Value:       z.Value,
			CurrentZone: z.CurrentZone,
			TargetZone:  z.TargetZone,
			TargetLow:   z.TargetLow,
			TargetHigh:  z.TargetHigh,
			InZone:      z.InZone,
		})
	}
	return r
}

// evaluateZones compares metrics against every evaluable target of seg, in
// a stable metric order.
func evaluateZones(seg workout.Segment, metrics workout.Metrics, ref zones.Reference) []zones.Status {
	var out []zones.Status
	for _, name := range workout.AllMetricNames {
		target, ok := seg.Targets[name]
		if !ok {
			continue
		}
		metric, ok := zones.MetricTypeFor(name)
		if !ok {
			continue
		}
		live, ok := metrics.Get(name)
		if !ok {
			continue
		}
		if status, ok := zones.Evaluate(metric, live, target, ref); ok {
			out = append(out, status)
		}
	}
	return out
}
