package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lowaak/smart-trainer/conditioning-timer/internal/audio"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/events"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/recorder"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/safego"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/sequencer"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/store"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/workout"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/zones"
)

// command represents commands sent to the session goroutine
type command int

const (
	cmdToggle command = iota
	cmdSkip
	cmdReset
	cmdStop
	cmdCompleteStep
)

func (c command) String() string {
	switch c {
	case cmdToggle:
		return "toggle"
	case cmdSkip:
		return "skip"
	case cmdReset:
		return "reset"
	case cmdStop:
		return "stop"
	case cmdCompleteStep:
		return "complete_step"
	default:
		return "unknown"
	}
}

const (
	DefaultTickInterval = time.Second
	saveTimeout         = 5 * time.Second
	metricsBuffer       = 32
)

// Feed is the live metrics source. events.ChannelEvent[workout.Metrics]
// satisfies it.
type Feed interface {
	Listen(ch chan<- workout.Metrics) func()
}

// ResultStore persists completed sessions. *store.Store satisfies it.
type ResultStore interface {
	SaveSession(ctx context.Context, result store.SessionResult) error
}

// Telemetry receives session counters. *telemetry.Metrics satisfies it.
type Telemetry interface {
	IncTicks()
	ObserveRecord(rec recorder.ExecutionRecord)
	IncZoneExit(metric string)
	IncWorkoutsCompleted()
	SetPosition(index, remaining int)
}

type nopTelemetry struct{}

func (nopTelemetry) IncTicks()                              {}
func (nopTelemetry) ObserveRecord(recorder.ExecutionRecord) {}
func (nopTelemetry) IncZoneExit(string)                     {}
func (nopTelemetry) IncWorkoutsCompleted()                  {}
func (nopTelemetry) SetPosition(int, int)                   {}

// Options configure a Session. Logger is required; everything else defaults.
type Options struct {
	Workout       workout.Workout
	Profile       Profile
	ParticipantID string
	Reference     zones.Reference
	Player        audio.Player
	Feed          Feed
	Results       ResultStore
	Telemetry     Telemetry
	TickInterval  time.Duration
	Clock         func() time.Time
	// OnComplete runs on the session goroutine after the result is saved.
	OnComplete func(store.SessionResult)
	Logger     logrus.FieldLogger
}

// Session runs a workout: it owns the sequencer, the tick loop, the live
// metrics subscription and zone-exit detection, and publishes a View for the
// presentation layer after every change.
type Session struct {
	seq           *sequencer.Sequencer
	workout       workout.Workout
	profile       Profile
	participantID string
	player        audio.Player
	results       ResultStore
	telemetry     Telemetry
	tickInterval  time.Duration
	now           func() time.Time
	onComplete    func(store.SessionResult)
	logger        logrus.FieldLogger

	watch *zones.Watch
	views *events.ChannelEvent[View]

	// Owned by the session goroutine
	metrics        workout.Metrics
	lastTransition sequencer.TransitionKind
	lastRecord     *recorder.ExecutionRecord
	sessionID      string
	startedAt      time.Time

	mu        sync.RWMutex
	reference zones.Reference
	view      View

	// Goroutine management
	cmdChan      chan command
	metricsChan  chan workout.Metrics
	doneChan     chan struct{} // Closed to signal shutdown
	wg           sync.WaitGroup
	shutdownOnce sync.Once
	unsubscribe  []func()
}

func New(opts Options) *Session {
	if opts.Logger == nil {
		panic("Session: logger cannot be nil")
	}
	if opts.Player == nil {
		opts.Player = audio.Nop{}
	}
	if opts.Telemetry == nil {
		opts.Telemetry = nopTelemetry{}
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Profile == "" {
		if p, err := ParseProfile(opts.Workout.Profile); err == nil {
			opts.Profile = p
		} else {
			opts.Profile = ProfileConditioning
		}
	}

	s := &Session{
		workout:       opts.Workout,
		profile:       opts.Profile,
		participantID: opts.ParticipantID,
		player:        opts.Player,
		results:       opts.Results,
		telemetry:     opts.Telemetry,
		tickInterval:  opts.TickInterval,
		now:           opts.Clock,
		onComplete:    opts.OnComplete,
		logger:        opts.Logger.WithField("component", "session"),
		watch:         zones.NewWatch(),
		views:         events.NewChannelEvent[View](true),
		reference:     opts.Reference,
		cmdChan:       make(chan command, 1),
		metricsChan:   make(chan workout.Metrics, metricsBuffer),
		doneChan:      make(chan struct{}),
	}

	s.seq = sequencer.New(opts.Workout.Segments, sequencer.Options{
		ParticipantID: opts.ParticipantID,
		Player:        opts.Player,
		Reference:     opts.Reference,
		Clock:         opts.Clock,
		CueThresholds: opts.Profile.CueThresholds(),
		OnComplete:    s.handleComplete,
		Logger:        opts.Logger,
	})
	s.unsubscribe = append(s.unsubscribe, s.seq.Transitions().Listen(s.handleTransition))
	if opts.Feed != nil {
		s.unsubscribe = append(s.unsubscribe, opts.Feed.Listen(s.metricsChan))
	}

	s.publish()

	s.wg.Add(1)
	safego.Go(opts.Logger, func() { s.run() })

	s.logger.WithFields(logrus.Fields{
		"workout":  opts.Workout.Name,
		"profile":  opts.Profile,
		"segments": len(opts.Workout.Segments),
	}).Info("session ready")
	return s
}

// Views publishes a View after every change. The latest View is replayed to
// new listeners.
func (s *Session) Views() *events.ChannelEvent[View] {
	return s.views
}

// Current returns the most recently published View.
func (s *Session) Current() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// Status is the JSON status of the session.
func (s *Session) Status() any {
	return s.Current().Report()
}

// Snapshot returns the sequencer state.
func (s *Session) Snapshot() sequencer.State {
	return s.seq.Snapshot()
}

// Records returns the execution records closed so far in this run.
func (s *Session) Records() []recorder.ExecutionRecord {
	return s.seq.Records()
}

func (s *Session) Profile() Profile {
	return s.profile
}

// SetReference replaces the participant reference values used for zones and
// for records closed from now on.
func (s *Session) SetReference(ref zones.Reference) {
	s.mu.Lock()
	s.reference = ref
	s.mu.Unlock()
	s.seq.SetReference(ref)
	s.watch.Reset()
}

// TogglePause starts an idle workout, pauses a running one or resumes a
// paused one.
func (s *Session) TogglePause() { s.send(cmdToggle) }

// Skip moves to the next segment.
func (s *Session) Skip() { s.send(cmdSkip) }

// Reset restarts the current segment's countdown.
func (s *Session) Reset() { s.send(cmdReset) }

// Stop abandons the run and returns to the first segment.
func (s *Session) Stop() { s.send(cmdStop) }

// CompleteStep finishes the current manual exercise step.
func (s *Session) CompleteStep() { s.send(cmdCompleteStep) }

// Shutdown stops the session goroutine and drops the subscriptions.
// Safe to call multiple times - only the first call has effect
func (s *Session) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.logger.Debug("shutting down")
		close(s.doneChan)
		s.wg.Wait()
		for _, unsubscribe := range s.unsubscribe {
			unsubscribe()
		}
		s.logger.Debug("shutdown complete")
	})
}

func (s *Session) send(cmd command) {
	select {
	case s.cmdChan <- cmd:
	case <-s.doneChan:
		s.logger.WithField("command", cmd.String()).Debug("session shut down, command dropped")
	}
}

// run is the session goroutine. Every sequencer operation happens here, so
// transition and completion handlers run on it too.
func (s *Session) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	ticker.Stop() // Start stopped, will be started when the workout runs
	ticking := false

	for {
		select {
		case <-s.doneChan:
			ticker.Stop()
			s.logger.Debug("goroutine exiting")
			return

		case cmd := <-s.cmdChan:
			if cmd == cmdStop {
				// no tick may land after a stop
				ticker.Stop()
				ticking = false
			}
			s.apply(cmd)
			s.syncTicker(ticker, &ticking)
			s.publish()

		case <-ticker.C:
			s.seq.Tick()
			s.telemetry.IncTicks()
			s.syncTicker(ticker, &ticking)
			s.publish()

		case m := <-s.metricsChan:
			s.handleMetrics(m)
			s.publish()
		}
	}
}

func (s *Session) apply(cmd command) {
	s.logger.WithField("command", cmd.String()).Debug("command")
	switch cmd {
	case cmdToggle:
		if s.seq.Snapshot().RunState == sequencer.Idle {
			s.seq.Start()
		} else {
			s.seq.TogglePause()
		}
	case cmdSkip:
		s.seq.Skip()
	case cmdReset:
		s.seq.Reset()
	case cmdStop:
		s.seq.Stop()
	case cmdCompleteStep:
		s.seq.AdvanceManually()
	}
}

// syncTicker runs the ticker exactly while the sequencer is Running. The
// ticker restarts only on the transition into Running so a resumed segment
// gets a full first second.
func (s *Session) syncTicker(ticker *time.Ticker, ticking *bool) {
	running := s.seq.Snapshot().RunState == sequencer.Running
	switch {
	case running && !*ticking:
		ticker.Reset(s.tickInterval)
		*ticking = true
	case !running && *ticking:
		ticker.Stop()
		*ticking = false
	}
}

func (s *Session) handleMetrics(m workout.Metrics) {
	s.metrics = s.metrics.Merge(m)
	s.seq.UpdateMetrics(s.metrics)

	state := s.seq.Snapshot()
	seg, ok := state.Current()
	if !ok {
		return
	}
	s.mu.RLock()
	ref := s.reference
	s.mu.RUnlock()

	for _, status := range evaluateZones(seg, s.metrics, ref) {
		exited := s.watch.Observe(status)
		if exited && state.RunState == sequencer.Running {
			s.logger.WithFields(logrus.Fields{
				"metric":  status.MetricType,
				"value":   status.Value,
				"segment": seg.ID,
			}).Info("left target zone")
			s.player.PlayCue(audio.CueZoneExit)
			s.telemetry.IncZoneExit(string(status.MetricType))
		}
	}
}

func (s *Session) handleTransition(t sequencer.Transition) {
	s.lastTransition = t.Kind
	if t.Record != nil {
		s.lastRecord = t.Record
		s.telemetry.ObserveRecord(*t.Record)
	}
	switch t.Kind {
	case sequencer.TransitionStarted:
		s.sessionID = uuid.NewString()
		s.startedAt = s.now()
	case sequencer.TransitionSegmentStarted, sequencer.TransitionSegmentSkipped, sequencer.TransitionStopped:
		s.watch.Reset()
	}
	s.telemetry.SetPosition(t.State.CurrentIndex, t.State.TimeRemainingSeconds)
}

func (s *Session) handleComplete(records []recorder.ExecutionRecord) {
	result := store.SessionResult{
		ID:            s.sessionID,
		WorkoutName:   s.workout.Name,
		Profile:       string(s.profile),
		ParticipantID: s.participantID,
		StartedAt:     s.startedAt,
		CompletedAt:   s.now(),
		Records:       records,
	}
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	s.telemetry.IncWorkoutsCompleted()

	if s.results != nil {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		err := s.results.SaveSession(ctx, result)
		cancel()
		if err != nil {
			s.logger.WithError(err).Error("could not save session result")
		} else {
			s.logger.WithField("session", result.ID).Info("session result saved")
		}
	}

	if s.onComplete != nil {
		s.onComplete(result)
	}
}

// publish computes a View from the current state and notifies listeners.
func (s *Session) publish() {
	state := s.seq.Snapshot()

	s.mu.RLock()
	ref := s.reference
	s.mu.RUnlock()

	view := View{
		WorkoutName:    s.workout.Name,
		Profile:        s.profile,
		State:          state,
		Progress:       state.Progress(),
		Metrics:        s.metrics.Clone(),
		Reference:      ref,
		LastTransition: s.lastTransition,
		LastRecord:     s.lastRecord,
	}
	if seg, ok := state.Current(); ok {
		view.Zones = evaluateZones(seg, s.metrics, ref)
	}

	s.mu.Lock()
	s.view = view
	s.mu.Unlock()
	s.views.Notify(view)
}
