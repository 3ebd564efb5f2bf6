package sequencer

import (
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/workout"
)

// RunState is the lifecycle state of a run.
type RunState int

const (
	Idle RunState = iota
	Running
	Paused
	Completed
)

func (s RunState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Running:
		return "Running"
	case Paused:
		return "Paused"
	case Completed:
		return "Completed"
	default:
		return "Unknown"
	}
}

// State is a copy of the sequencer's position. Segments is shared with the
// sequencer and must be treated as read-only.
type State struct {
	Segments             []workout.Segment
	CurrentIndex         int
	TimeRemainingSeconds int
	RunState             RunState
	RecordCount          int
}

// Current returns the segment at CurrentIndex.
func (s State) Current() (workout.Segment, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Segments) {
		return workout.Segment{}, false
	}
	return s.Segments[s.CurrentIndex], true
}

// Next returns the segment after the current one.
func (s State) Next() (workout.Segment, bool) {
	i := s.CurrentIndex + 1
	if i >= len(s.Segments) {
		return workout.Segment{}, false
	}
	return s.Segments[i], true
}

// IsLast reports whether the current segment is the final one.
func (s State) IsLast() bool {
	return s.CurrentIndex >= len(s.Segments)-1
}

// Progress summarizes how far the run is through the workout.
type Progress struct {
	SegmentNumber  int // 1-based, 0 for an empty workout
	TotalSegments  int
	ElapsedSeconds int
	TotalSeconds   int
	Percent        float64
}

// Progress derives workout-level progress from the position. Manual segments
// count with their nominal duration once passed.
func (s State) Progress() Progress {
	p := Progress{TotalSegments: len(s.Segments)}
	if len(s.Segments) == 0 {
		return p
	}
	p.SegmentNumber = s.CurrentIndex + 1

	for i, seg := range s.Segments {
		d := seg.Duration()
		p.TotalSeconds += d
		switch {
		case s.RunState == Completed || i < s.CurrentIndex:
			p.ElapsedSeconds += d
		case i == s.CurrentIndex && !seg.Manual():
			p.ElapsedSeconds += max(d-s.TimeRemainingSeconds, 0)
		}
	}

	switch {
	case s.RunState == Completed:
		p.Percent = 100
	case p.TotalSeconds > 0:
		p.Percent = 100 * float64(p.ElapsedSeconds) / float64(p.TotalSeconds)
	default:
		p.Percent = 100 * float64(s.CurrentIndex) / float64(len(s.Segments))
	}
	return p
}
