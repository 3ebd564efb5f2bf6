package sequencer

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lowaak/smart-trainer/conditioning-timer/internal/audio"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/events"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/recorder"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/workout"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/zones"
)

// TransitionKind names a lifecycle transition.
type TransitionKind string

const (
	TransitionStarted          TransitionKind = "started"
	TransitionPaused           TransitionKind = "paused"
	TransitionResumed          TransitionKind = "resumed"
	TransitionSegmentStarted   TransitionKind = "segment_started"
	TransitionSegmentCompleted TransitionKind = "segment_completed"
	TransitionSegmentSkipped   TransitionKind = "segment_skipped"
	TransitionCompleted        TransitionKind = "completed"
	TransitionStopped          TransitionKind = "stopped"
	TransitionReset            TransitionKind = "reset"
)

// Transition is published after every state change.
// Record is set when the transition closed an execution record.
type Transition struct {
	Kind   TransitionKind
	State  State
	Record *recorder.ExecutionRecord
}

// Options configure a Sequencer. Logger is required.
type Options struct {
	ParticipantID string
	Player        audio.Player
	Reference     zones.Reference
	Clock         func() time.Time
	// CueThresholds maps a segment kind to the remaining seconds at which the
	// warning cue plays. Nil selects StandardCues; an empty map disables warnings.
	CueThresholds    map[workout.Kind]int
	CountdownSeconds int
	OnComplete       func([]recorder.ExecutionRecord)
	Logger           logrus.FieldLogger
}

// Sequencer drives a countdown through an ordered list of segments.
// All operations are synchronous and safe for concurrent use. Cues,
// transition listeners and the completion callback run after the internal
// lock is released, in the order the effects happened.
type Sequencer struct {
	logger        logrus.FieldLogger
	player        audio.Player
	now           func() time.Time
	participantID string
	thresholds    map[workout.Kind]int
	countdown     int
	onComplete    func([]recorder.ExecutionRecord)
	transitions   *events.CallbackEvent[Transition]

	mu        sync.Mutex
	segments  []workout.Segment
	index     int
	remaining int
	runState  RunState
	recorder  *recorder.Recorder
	records   []recorder.ExecutionRecord
	metrics   workout.Metrics
	completed bool // OnComplete already fired for this run
}

// effects collects side effects produced under the lock.
type effects struct {
	cues        []audio.Cue
	transitions []Transition
	completed   []recorder.ExecutionRecord
	complete    bool
}

func New(segments []workout.Segment, opts Options) *Sequencer {
	if opts.Logger == nil {
		panic("Sequencer: logger cannot be nil")
	}
	if opts.Player == nil {
		opts.Player = audio.Nop{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.CueThresholds == nil {
		opts.CueThresholds = StandardCues()
	}
	if opts.CountdownSeconds <= 0 {
		opts.CountdownSeconds = DefaultCountdownSeconds
	}

	s := &Sequencer{
		logger:        opts.Logger.WithField("component", "sequencer"),
		player:        opts.Player,
		now:           opts.Clock,
		participantID: opts.ParticipantID,
		thresholds:    opts.CueThresholds,
		countdown:     opts.CountdownSeconds,
		onComplete:    opts.OnComplete,
		transitions:   events.NewCallbackEvent[Transition](false),
		segments:      append([]workout.Segment(nil), segments...),
		recorder:      recorder.New(opts.Reference, opts.Clock),
	}
	s.remaining = s.durationAt(0)
	return s
}

// Transitions is the lifecycle event stream.
func (s *Sequencer) Transitions() *events.CallbackEvent[Transition] {
	return s.transitions
}

// Start moves Idle or Paused to Running. A fresh segment gets a new execution
// record; the start cue plays only when leaving Idle.
func (s *Sequencer) Start() {
	var fx effects
	s.mu.Lock()
	s.start(&fx)
	s.mu.Unlock()
	s.dispatch(fx)
}

// TogglePause pauses a running sequence or resumes a paused one.
func (s *Sequencer) TogglePause() {
	var fx effects
	s.mu.Lock()
	switch s.runState {
	case Running:
		s.runState = Paused
		s.logger.Debug("paused")
		s.emit(&fx, TransitionPaused, nil)
	case Paused:
		s.start(&fx)
	}
	s.mu.Unlock()
	s.dispatch(fx)
}

// Tick advances the countdown by one second. It does nothing unless the
// sequence is Running on a timed segment.
func (s *Sequencer) Tick() {
	var fx effects
	s.mu.Lock()
	if s.runState == Running && len(s.segments) > 0 {
		seg := s.segments[s.index]
		if !seg.Manual() {
			if s.remaining > 0 {
				s.remaining--
				s.countdownCues(&fx, seg)
			}
			if s.remaining == 0 {
				s.finish(&fx, recorder.OutcomeCompleted)
			}
		}
	}
	s.mu.Unlock()
	s.dispatch(fx)
}

// AdvanceManually completes the current exercise step as if its countdown
// had reached zero.
func (s *Sequencer) AdvanceManually() {
	var fx effects
	s.mu.Lock()
	if s.runState == Running && len(s.segments) > 0 && s.segments[s.index].Manual() {
		s.finish(&fx, recorder.OutcomeManual)
	}
	s.mu.Unlock()
	s.dispatch(fx)
}

// Skip closes the current segment and moves to the next one without playing
// the end cue. It is ignored on the last segment. While Idle it only moves
// the pointer: no run has started, so no record is written.
func (s *Sequencer) Skip() {
	var fx effects
	s.mu.Lock()
	defer func() {
		s.mu.Unlock()
		s.dispatch(fx)
	}()

	if len(s.segments) == 0 || s.index >= len(s.segments)-1 || s.runState == Completed {
		return
	}

	var closed *recorder.ExecutionRecord
	if s.runState == Running || s.runState == Paused {
		if !s.recorder.IsOpen() {
			// nothing ran yet, record the skip as zero length
			s.recorder.Open(s.segments[s.index], s.participantID, s.now())
		}
		closed = s.closeRecord(recorder.OutcomeSkipped)
	}

	skipped := s.segments[s.index].ID
	s.index++
	s.remaining = s.durationAt(s.index)
	s.logger.WithFields(logrus.Fields{"skipped": skipped, "index": s.index}).Debug("segment skipped")
	s.emit(&fx, TransitionSegmentSkipped, closed)

	if s.runState == Running {
		s.openRecord()
		s.emit(&fx, TransitionSegmentStarted, nil)
		s.entryWarning(&fx)
	}
}

// Reset restores the current segment's full duration. Records are kept.
func (s *Sequencer) Reset() {
	var fx effects
	s.mu.Lock()
	if len(s.segments) > 0 && s.runState != Completed {
		s.remaining = s.durationAt(s.index)
		s.emit(&fx, TransitionReset, nil)
	}
	s.mu.Unlock()
	s.dispatch(fx)
}

// Stop abandons the run: back to Idle on the first segment with every
// execution record discarded.
func (s *Sequencer) Stop() {
	var fx effects
	s.mu.Lock()
	s.runState = Idle
	s.index = 0
	s.remaining = s.durationAt(0)
	s.records = nil
	s.recorder.Discard()
	s.completed = false
	s.logger.Debug("stopped")
	s.emit(&fx, TransitionStopped, nil)
	s.mu.Unlock()
	s.dispatch(fx)
}

// UpdateMetrics stores the latest live snapshot, used when records close.
func (s *Sequencer) UpdateMetrics(m workout.Metrics) {
	s.mu.Lock()
	s.metrics = m.Clone()
	s.mu.Unlock()
}

// SetReference replaces the participant reference values for later records.
func (s *Sequencer) SetReference(ref zones.Reference) {
	s.mu.Lock()
	s.recorder.SetReference(ref)
	s.mu.Unlock()
}

// Snapshot returns the current state.
func (s *Sequencer) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state()
}

// Records returns a copy of the closed execution records of this run.
func (s *Sequencer) Records() []recorder.ExecutionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return recorder.CloneRecords(s.records)
}

// --- Private methods (caller holds mu) ---

func (s *Sequencer) start(fx *effects) {
	if len(s.segments) == 0 {
		return
	}
	if s.runState != Idle && s.runState != Paused {
		return
	}
	fromIdle := s.runState == Idle
	s.runState = Running

	fresh := !s.recorder.IsOpen() && s.remaining == s.durationAt(s.index)
	if fresh {
		s.openRecord()
	}

	if fromIdle {
		fx.cues = append(fx.cues, audio.CueStart)
		s.logger.WithField("segment", s.segments[s.index].ID).Debug("started")
		s.emit(fx, TransitionStarted, nil)
	} else {
		s.logger.Debug("resumed")
		s.emit(fx, TransitionResumed, nil)
	}
	if fresh {
		s.entryWarning(fx)
	}
}

// entryWarning plays the warning cue for a segment that begins at or inside
// its warning window, where no tick would ever land on the threshold.
func (s *Sequencer) entryWarning(fx *effects) {
	seg := s.segments[s.index]
	if seg.Manual() || s.remaining <= 0 {
		return
	}
	if threshold, ok := s.thresholds[seg.Kind]; ok && threshold > 0 && s.remaining <= threshold {
		fx.cues = append(fx.cues, audio.CueWarning)
	}
}

func (s *Sequencer) countdownCues(fx *effects, seg workout.Segment) {
	if threshold, ok := s.thresholds[seg.Kind]; ok && threshold > 0 && s.remaining == threshold {
		fx.cues = append(fx.cues, audio.CueWarning)
	}
	if s.remaining >= 1 && s.remaining <= s.countdown {
		fx.cues = append(fx.cues, audio.CueCountdown)
	}
}

// finish closes the current segment and advances or completes the run.
func (s *Sequencer) finish(fx *effects, outcome recorder.Outcome) {
	closed := s.closeRecord(outcome)
	fx.cues = append(fx.cues, audio.CueEnd)
	s.emit(fx, TransitionSegmentCompleted, closed)

	if s.index < len(s.segments)-1 {
		s.index++
		s.remaining = s.durationAt(s.index)
		s.openRecord()
		s.logger.WithField("segment", s.segments[s.index].ID).Debug("segment started")
		s.emit(fx, TransitionSegmentStarted, nil)
		s.entryWarning(fx)
		return
	}

	s.runState = Completed
	s.remaining = 0
	s.logger.WithField("records", len(s.records)).Info("workout completed")
	s.emit(fx, TransitionCompleted, nil)
	if !s.completed {
		s.completed = true
		fx.complete = true
		fx.completed = recorder.CloneRecords(s.records)
	}
}

func (s *Sequencer) openRecord() {
	s.recorder.Open(s.segments[s.index], s.participantID, s.now())
}

func (s *Sequencer) closeRecord(outcome recorder.Outcome) *recorder.ExecutionRecord {
	rec, ok := s.recorder.Close(s.metrics, outcome)
	if !ok {
		return nil
	}
	s.records = append(s.records, rec)
	published := recorder.CloneRecords([]recorder.ExecutionRecord{rec})[0]
	return &published
}

func (s *Sequencer) emit(fx *effects, kind TransitionKind, rec *recorder.ExecutionRecord) {
	fx.transitions = append(fx.transitions, Transition{Kind: kind, State: s.state(), Record: rec})
}

func (s *Sequencer) state() State {
	return State{
		Segments:             s.segments,
		CurrentIndex:         s.index,
		TimeRemainingSeconds: s.remaining,
		RunState:             s.runState,
		RecordCount:          len(s.records),
	}
}

func (s *Sequencer) durationAt(i int) int {
	if i < 0 || i >= len(s.segments) {
		return 0
	}
	return s.segments[i].Duration()
}

// dispatch runs the collected effects without holding the lock.
func (s *Sequencer) dispatch(fx effects) {
	for _, cue := range fx.cues {
		s.player.PlayCue(cue)
	}
	for _, t := range fx.transitions {
		s.transitions.Notify(t)
	}
	if fx.complete && s.onComplete != nil {
		s.onComplete(fx.completed)
	}
}
