package recorder

import (
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/lowaak/smart-trainer/conditioning-timer/internal/workout"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/zones"
)

// Outcome says how a segment stopped being current.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed" // countdown reached zero
	OutcomeManual    Outcome = "manual"    // exercise step marked complete
	OutcomeSkipped   Outcome = "skipped"
)

// ObservedMetricNames are copied from the live snapshot into a record when present.
var ObservedMetricNames = []workout.MetricName{
	workout.MetricHeartRate,
	workout.MetricWatts,
	workout.MetricCalories,
	workout.MetricDistance,
}

// ExecutionRecord is the observed outcome of running one segment.
type ExecutionRecord struct {
	ID                       string
	SegmentID                string
	SegmentKind              workout.Kind
	ParticipantID            string
	StartTime                time.Time
	EndTime                  time.Time
	ActualDurationSeconds    float64
	ObservedMetrics          map[workout.MetricName]float64
	TargetAchievementPercent float64
	Achievement              Achievement
	Outcome                  Outcome
}

type openRecord struct {
	segment       workout.Segment
	participantID string
	start         time.Time
}

// Recorder opens and closes one record at a time. It is not safe for
// concurrent use; the sequencer serializes access.
type Recorder struct {
	reference zones.Reference
	now       func() time.Time
	current   *openRecord
}

// New creates a Recorder. A nil clock means time.Now.
func New(reference zones.Reference, clock func() time.Time) *Recorder {
	if clock == nil {
		clock = time.Now
	}
	return &Recorder{reference: reference, now: clock}
}

// SetReference replaces the reference values used for achievement.
func (r *Recorder) SetReference(reference zones.Reference) {
	r.reference = reference
}

// Open begins a record for segment, replacing any record still open.
func (r *Recorder) Open(segment workout.Segment, participantID string, start time.Time) {
	r.current = &openRecord{segment: segment, participantID: participantID, start: start}
}

func (r *Recorder) IsOpen() bool {
	return r.current != nil
}

// OpenSegmentID returns the id of the segment being recorded, if any.
func (r *Recorder) OpenSegmentID() (string, bool) {
	if r.current == nil {
		return "", false
	}
	return r.current.segment.ID, true
}

// Discard drops the open record without producing anything.
func (r *Recorder) Discard() {
	r.current = nil
}

// Close stamps the open record with the current time and snapshot. It returns
// false when no record is open.
func (r *Recorder) Close(snapshot workout.Metrics, outcome Outcome) (ExecutionRecord, bool) {
	if r.current == nil {
		return ExecutionRecord{}, false
	}
	open := r.current
	r.current = nil

	end := r.now()
	if end.Before(open.start) {
		end = open.start
	}
	achievement := Compute(open.segment, snapshot, r.reference)

	return ExecutionRecord{
		ID:                       uuid.NewString(),
		SegmentID:                open.segment.ID,
		SegmentKind:              open.segment.Kind,
		ParticipantID:            open.participantID,
		StartTime:                open.start,
		EndTime:                  end,
		ActualDurationSeconds:    end.Sub(open.start).Seconds(),
		ObservedMetrics:          observed(snapshot),
		TargetAchievementPercent: achievement.Percent,
		Achievement:              achievement,
		Outcome:                  outcome,
	}, true
}

func observed(snapshot workout.Metrics) map[workout.MetricName]float64 {
	out := make(map[workout.MetricName]float64, len(ObservedMetricNames))
	for _, name := range ObservedMetricNames {
		if v, ok := snapshot.Get(name); ok {
			out[name] = v
		}
	}
	return out
}

// CloneRecords returns a deep copy of records.
func CloneRecords(records []ExecutionRecord) []ExecutionRecord {
	out := make([]ExecutionRecord, len(records))
	for i, rec := range records {
		rec.ObservedMetrics = maps.Clone(rec.ObservedMetrics)
		out[i] = rec
	}
	return out
}
