package sequencer

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/smart-trainer/conditioning-timer/internal/audio"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/recorder"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/workout"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/zones"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	seq       *Sequencer
	player    *audio.MemoryPlayer
	clock     *testClock
	mu        sync.Mutex
	completed [][]recorder.ExecutionRecord
}

func (h *harness) completions() [][]recorder.ExecutionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.completed
}

// tick advances the fake clock and the sequencer n times.
func (h *harness) tick(n int) {
	for i := 0; i < n; i++ {
		h.clock.Advance(time.Second)
		h.seq.Tick()
	}
}

func newHarness(t *testing.T, segments []workout.Segment, configure ...func(*Options)) *harness {
	t.Helper()
	logger, _ := test.NewNullLogger()
	h := &harness{
		player: &audio.MemoryPlayer{},
		clock:  &testClock{now: time.Date(2026, 2, 14, 17, 0, 0, 0, time.UTC)},
	}
	opts := Options{
		ParticipantID: "player-19",
		Player:        h.player,
		Reference:     zones.Reference{MaxHeartRate: 190, FTP: 250},
		Clock:         h.clock.Now,
		Logger:        logger,
		OnComplete: func(records []recorder.ExecutionRecord) {
			h.mu.Lock()
			h.completed = append(h.completed, records)
			h.mu.Unlock()
		},
	}
	for _, c := range configure {
		c(&opts)
	}
	h.seq = New(segments, opts)
	return h
}

func workThenRest() []workout.Segment {
	return []workout.Segment{
		{
			ID:              "work",
			Kind:            workout.KindWork,
			DurationSeconds: 60,
			Targets:         map[workout.MetricName]workout.TargetSpec{workout.MetricHeartRate: workout.Absolute(150)},
		},
		{ID: "rest", Kind: workout.KindRest, DurationSeconds: 30},
	}
}

func heartRate(bpm float64) workout.Metrics {
	return workout.NewMetrics(time.Now(), map[workout.MetricName]float64{workout.MetricHeartRate: bpm})
}

func TestNew_InitialState(t *testing.T) {
	h := newHarness(t, workThenRest())
	state := h.seq.Snapshot()
	assert.Equal(t, Idle, state.RunState)
	assert.Equal(t, 0, state.CurrentIndex)
	assert.Equal(t, 60, state.TimeRemainingSeconds)
	assert.Len(t, state.Segments, 2)
}

func TestNew_NilLoggerPanics(t *testing.T) {
	assert.Panics(t, func() { New(nil, Options{}) })
}

func TestSequencer_NoMetricsIsVacuousPass(t *testing.T) {
	h := newHarness(t, workThenRest())
	h.seq.Start()
	h.tick(60)

	records := h.seq.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "work", records[0].SegmentID)
	assert.Equal(t, 100.0, records[0].TargetAchievementPercent)
	assert.Equal(t, recorder.BasisNoLiveMetrics, records[0].Achievement.Basis)
	assert.Equal(t, recorder.OutcomeCompleted, records[0].Outcome)
	assert.InDelta(t, 60, records[0].ActualDurationSeconds, 1e-9)

	state := h.seq.Snapshot()
	assert.Equal(t, Running, state.RunState)
	assert.Equal(t, 1, state.CurrentIndex)
	assert.Equal(t, 30, state.TimeRemainingSeconds)
}

func TestSequencer_AchievementFromLastMetrics(t *testing.T) {
	tests := []struct {
		name    string
		bpm     float64
		percent float64
	}{
		{"on target", 150, 100},
		{"inside tolerance", 146, 100},
		{"far outside tolerance", 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, workThenRest())
			h.seq.Start()
			h.seq.UpdateMetrics(heartRate(tt.bpm))
			h.tick(60)

			records := h.seq.Records()
			require.Len(t, records, 1)
			assert.Equal(t, tt.percent, records[0].TargetAchievementPercent)
			assert.Equal(t, recorder.BasisEvaluated, records[0].Achievement.Basis)
			assert.Equal(t, tt.bpm, records[0].ObservedMetrics[workout.MetricHeartRate])
		})
	}
}

func TestSequencer_SkipClosesPartialRecord(t *testing.T) {
	h := newHarness(t, workThenRest())
	h.seq.Start()
	h.tick(15)
	require.Equal(t, 45, h.seq.Snapshot().TimeRemainingSeconds)

	h.seq.Skip()

	records := h.seq.Records()
	require.Len(t, records, 1)
	assert.InDelta(t, 15, records[0].ActualDurationSeconds, 1e-9)
	assert.Equal(t, recorder.OutcomeSkipped, records[0].Outcome)

	state := h.seq.Snapshot()
	assert.Equal(t, 1, state.CurrentIndex)
	assert.Equal(t, 30, state.TimeRemainingSeconds)
	assert.Equal(t, Running, state.RunState)
	assert.Zero(t, h.player.Count(audio.CueEnd), "skip does not play the end cue")

	// the new segment is being recorded
	h.seq.Skip()
	assert.Len(t, h.seq.Records(), 1, "skip is ignored on the last segment")
	h.tick(30)
	records = h.seq.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "rest", records[1].SegmentID)
	assert.InDelta(t, 30, records[1].ActualDurationSeconds, 1e-9)
}

func TestSequencer_EmptyWorkout(t *testing.T) {
	h := newHarness(t, nil)
	assert.NotPanics(t, func() {
		h.seq.Start()
		h.seq.Tick()
		h.seq.TogglePause()
		h.seq.Skip()
		h.seq.Reset()
		h.seq.AdvanceManually()
		h.seq.Stop()
	})
	state := h.seq.Snapshot()
	assert.Equal(t, Idle, state.RunState)
	assert.Equal(t, 0, state.TimeRemainingSeconds)
	assert.Empty(t, h.completions())
	assert.Empty(t, h.player.Cues())
}

func TestSequencer_MonotonicCountdown(t *testing.T) {
	h := newHarness(t, []workout.Segment{
		{ID: "a", Kind: workout.KindWork, DurationSeconds: 7},
		{ID: "b", Kind: workout.KindRest, DurationSeconds: 4},
	})
	h.seq.Start()

	prev := h.seq.Snapshot()
	for i := 0; i < 11; i++ {
		h.tick(1)
		cur := h.seq.Snapshot()
		assert.GreaterOrEqual(t, cur.TimeRemainingSeconds, 0)
		if cur.CurrentIndex == prev.CurrentIndex && cur.RunState == Running {
			assert.Equal(t, prev.TimeRemainingSeconds-1, cur.TimeRemainingSeconds)
		}
		prev = cur
	}
	assert.Equal(t, Completed, prev.RunState)
	assert.Equal(t, 0, prev.TimeRemainingSeconds)
}

func TestSequencer_EveryLeftSegmentHasOneRecord(t *testing.T) {
	segments := []workout.Segment{
		{ID: "s1", Kind: workout.KindWarmup, DurationSeconds: 3},
		{ID: "s2", Kind: workout.KindWork, DurationSeconds: 5},
		{ID: "s3", Kind: workout.KindRest, DurationSeconds: 5},
		{ID: "s4", Kind: workout.KindWork, DurationSeconds: 5},
		{ID: "s5", Kind: workout.KindCooldown, DurationSeconds: 2},
	}
	h := newHarness(t, segments)
	h.seq.Start()
	h.tick(3)
	h.tick(2)
	h.seq.Skip()        // s2 after 2s
	h.seq.TogglePause() // s3 opened by the skip, then paused
	h.seq.Skip()        // s3 closed with zero length
	h.seq.Skip()        // s4 never opened, still gets a record
	h.seq.TogglePause()
	h.tick(2)

	state := h.seq.Snapshot()
	require.Equal(t, Completed, state.RunState)

	records := h.seq.Records()
	require.Len(t, records, len(segments))
	for i, rec := range records {
		assert.Equal(t, segments[i].ID, rec.SegmentID)
		assert.False(t, rec.EndTime.Before(rec.StartTime))
		assert.GreaterOrEqual(t, rec.TargetAchievementPercent, 0.0)
		assert.LessOrEqual(t, rec.TargetAchievementPercent, 100.0)
	}
	assert.InDelta(t, 2, records[1].ActualDurationSeconds, 1e-9)
	for _, i := range []int{2, 3} {
		assert.Equal(t, 0.0, records[i].ActualDurationSeconds)
		assert.Equal(t, recorder.OutcomeSkipped, records[i].Outcome)
	}
	assert.Equal(t, recorder.OutcomeCompleted, records[4].Outcome)
}

func TestSequencer_ResetIsIdempotent(t *testing.T) {
	h := newHarness(t, workThenRest())
	h.seq.Start()
	h.tick(20)

	for i := 0; i < 3; i++ {
		h.seq.Reset()
		state := h.seq.Snapshot()
		assert.Equal(t, 60, state.TimeRemainingSeconds)
		assert.Equal(t, 0, state.CurrentIndex)
		assert.Equal(t, Running, state.RunState)
	}

	// records from earlier segments survive a reset
	h.tick(60)
	h.tick(10)
	h.seq.Reset()
	assert.Len(t, h.seq.Records(), 1)
	assert.Equal(t, 30, h.seq.Snapshot().TimeRemainingSeconds)
}

func TestSequencer_StopDiscards(t *testing.T) {
	h := newHarness(t, workThenRest())
	h.seq.Start()
	h.tick(60)
	h.tick(5)
	require.Len(t, h.seq.Records(), 1)

	h.seq.Stop()

	state := h.seq.Snapshot()
	assert.Equal(t, Idle, state.RunState)
	assert.Equal(t, 0, state.CurrentIndex)
	assert.Equal(t, 60, state.TimeRemainingSeconds)
	assert.Empty(t, h.seq.Records())

	// a late tick after stop changes nothing
	h.tick(1)
	assert.Equal(t, 60, h.seq.Snapshot().TimeRemainingSeconds)

	// the next run starts from scratch and plays the start cue again
	h.player.Reset()
	h.seq.Start()
	assert.Equal(t, []audio.Cue{audio.CueStart}, h.player.Cues())
}

func TestSequencer_StandardCues(t *testing.T) {
	h := newHarness(t, []workout.Segment{
		{ID: "work", Kind: workout.KindWork, DurationSeconds: 8},
		{ID: "rest", Kind: workout.KindRest, DurationSeconds: 6},
	})
	h.seq.Start()
	h.tick(8)

	assert.Equal(t, []audio.Cue{
		audio.CueStart,
		audio.CueWarning, // 5
		audio.CueCountdown,
		audio.CueCountdown,
		audio.CueCountdown,
		audio.CueEnd,
	}, h.player.Cues())

	h.player.Reset()
	h.tick(6)
	assert.Equal(t, []audio.Cue{
		audio.CueWarning,
		audio.CueCountdown,
		audio.CueCountdown,
		audio.CueCountdown,
		audio.CueEnd,
	}, h.player.Cues())
}

func TestSequencer_WarningForShortSegments(t *testing.T) {
	h := newHarness(t, []workout.Segment{
		{ID: "burst", Kind: workout.KindWork, DurationSeconds: 5},
		{ID: "breath", Kind: workout.KindRest, DurationSeconds: 3},
		{ID: "flush", Kind: workout.KindCooldown, DurationSeconds: 8},
	})
	h.seq.Start()
	h.tick(5)

	assert.Equal(t, []audio.Cue{
		audio.CueStart,
		audio.CueWarning, // starts at the threshold
		audio.CueCountdown,
		audio.CueCountdown,
		audio.CueCountdown,
		audio.CueEnd,
		audio.CueWarning, // starts inside the window
	}, h.player.Cues())

	h.player.Reset()
	h.seq.Skip()
	assert.Zero(t, h.player.Count(audio.CueWarning), "segments longer than the threshold warn on the tick")
	h.tick(3)
	assert.Equal(t, 1, h.player.Count(audio.CueWarning))
}

func TestSequencer_EnhancedCues(t *testing.T) {
	h := newHarness(t, []workout.Segment{
		{ID: "work", Kind: workout.KindWork, DurationSeconds: 15},
		{ID: "rest", Kind: workout.KindRest, DurationSeconds: 15},
	}, func(o *Options) { o.CueThresholds = EnhancedCues() })
	h.seq.Start()

	h.tick(4)
	assert.Zero(t, h.player.Count(audio.CueWarning))
	h.tick(1) // remaining 10
	assert.Equal(t, 1, h.player.Count(audio.CueWarning))

	h.tick(10)
	require.Equal(t, 1, h.seq.Snapshot().CurrentIndex)
	h.tick(15)
	assert.Equal(t, 1, h.player.Count(audio.CueWarning), "rest intervals have no warning")
	assert.Equal(t, 6, h.player.Count(audio.CueCountdown))
}

func TestSequencer_CompletionFiresOnce(t *testing.T) {
	h := newHarness(t, []workout.Segment{
		{ID: "a", Kind: workout.KindWork, DurationSeconds: 2},
		{ID: "b", Kind: workout.KindCooldown, DurationSeconds: 1},
	})
	h.seq.Start()
	h.tick(3)

	completions := h.completions()
	require.Len(t, completions, 1)
	assert.Len(t, completions[0], 2)
	assert.Equal(t, Completed, h.seq.Snapshot().RunState)

	h.tick(5)
	h.seq.Start()
	h.seq.TogglePause()
	h.seq.Reset()
	h.seq.Skip()
	assert.Len(t, h.completions(), 1)
	assert.Equal(t, Completed, h.seq.Snapshot().RunState)

	// a new run after stop can complete again
	h.seq.Stop()
	h.seq.Start()
	h.tick(3)
	assert.Len(t, h.completions(), 2)
}

func TestSequencer_TogglePause(t *testing.T) {
	h := newHarness(t, workThenRest())

	h.seq.TogglePause()
	assert.Equal(t, Idle, h.seq.Snapshot().RunState, "toggle does not start an idle run")

	h.seq.Start()
	h.tick(10)
	h.seq.TogglePause()
	assert.Equal(t, Paused, h.seq.Snapshot().RunState)

	h.tick(5)
	assert.Equal(t, 50, h.seq.Snapshot().TimeRemainingSeconds, "no decrement while paused")

	h.seq.TogglePause()
	assert.Equal(t, Running, h.seq.Snapshot().RunState)
	assert.Equal(t, 1, h.player.Count(audio.CueStart), "resume does not replay the start cue")

	h.seq.Start()
	assert.Equal(t, Running, h.seq.Snapshot().RunState)

	// the record spans the pause
	h.tick(50)
	records := h.seq.Records()
	require.Len(t, records, 1)
	assert.InDelta(t, 65, records[0].ActualDurationSeconds, 1e-9)
}

func TestSequencer_ManualExerciseSteps(t *testing.T) {
	h := newHarness(t, []workout.Segment{
		{ID: "squat", Kind: workout.KindExercise, Label: "Back Squat", Sets: 4, Reps: 6},
		{ID: "move", Kind: workout.KindTransition, DurationSeconds: 2},
		{ID: "lunge", Kind: workout.KindExercise, Label: "Lunge"},
	})
	h.seq.Start()

	h.tick(30)
	state := h.seq.Snapshot()
	assert.Equal(t, 0, state.CurrentIndex, "exercise steps ignore ticks")
	assert.Empty(t, h.seq.Records())

	h.seq.AdvanceManually()
	records := h.seq.Records()
	require.Len(t, records, 1)
	assert.Equal(t, recorder.OutcomeManual, records[0].Outcome)
	assert.InDelta(t, 30, records[0].ActualDurationSeconds, 1e-9)
	assert.Equal(t, 1, h.player.Count(audio.CueEnd))
	assert.Equal(t, 2, h.seq.Snapshot().TimeRemainingSeconds)

	h.seq.AdvanceManually()
	assert.Equal(t, 1, h.seq.Snapshot().CurrentIndex, "timed segments ignore manual completion")

	h.tick(2)
	require.Equal(t, 2, h.seq.Snapshot().CurrentIndex)

	h.seq.TogglePause()
	h.seq.AdvanceManually()
	assert.Equal(t, Paused, h.seq.Snapshot().RunState, "manual completion needs a running sequence")

	h.seq.TogglePause()
	h.seq.AdvanceManually()
	assert.Equal(t, Completed, h.seq.Snapshot().RunState)
	require.Len(t, h.completions(), 1)
	assert.Len(t, h.completions()[0], 3)
}

func TestSequencer_SkipWhileIdleMovesPointer(t *testing.T) {
	h := newHarness(t, workThenRest())
	h.seq.Skip()

	state := h.seq.Snapshot()
	assert.Equal(t, Idle, state.RunState)
	assert.Equal(t, 1, state.CurrentIndex)
	assert.Equal(t, 30, state.TimeRemainingSeconds)
	assert.Empty(t, h.seq.Records())

	h.seq.Start()
	h.tick(30)
	records := h.seq.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "rest", records[0].SegmentID)
	assert.Equal(t, Completed, h.seq.Snapshot().RunState)
}

func TestSequencer_ZeroDurationSegment(t *testing.T) {
	h := newHarness(t, []workout.Segment{
		{ID: "empty", Kind: workout.KindWork, DurationSeconds: -4},
		{ID: "rest", Kind: workout.KindRest, DurationSeconds: 3},
	})
	assert.Equal(t, 0, h.seq.Snapshot().TimeRemainingSeconds)

	h.seq.Start()
	h.tick(1)

	state := h.seq.Snapshot()
	assert.Equal(t, 1, state.CurrentIndex)
	assert.Equal(t, 3, state.TimeRemainingSeconds)
	assert.Len(t, h.seq.Records(), 1)
}

func TestSequencer_Transitions(t *testing.T) {
	h := newHarness(t, []workout.Segment{
		{ID: "a", Kind: workout.KindWork, DurationSeconds: 1},
		{ID: "b", Kind: workout.KindRest, DurationSeconds: 5},
		{ID: "c", Kind: workout.KindCooldown, DurationSeconds: 1},
	})

	var kinds []TransitionKind
	var closed []string
	unregister := h.seq.Transitions().Listen(func(tr Transition) {
		kinds = append(kinds, tr.Kind)
		if tr.Record != nil {
			closed = append(closed, tr.Record.SegmentID)
		}
	})
	defer unregister()

	h.seq.Start()
	h.tick(1)
	h.seq.TogglePause()
	h.seq.TogglePause()
	h.seq.Reset()
	h.seq.Skip()
	h.tick(1)

	assert.Equal(t, []TransitionKind{
		TransitionStarted,
		TransitionSegmentCompleted,
		TransitionSegmentStarted,
		TransitionPaused,
		TransitionResumed,
		TransitionReset,
		TransitionSegmentSkipped,
		TransitionSegmentStarted,
		TransitionSegmentCompleted,
		TransitionCompleted,
	}, kinds)
	assert.Equal(t, []string{"a", "b", "c"}, closed)
}

func TestSequencer_ListenersMayCallBack(t *testing.T) {
	h := newHarness(t, workThenRest())

	var seen []State
	h.seq.Transitions().Listen(func(tr Transition) {
		// reading state from a listener must not deadlock
		seen = append(seen, h.seq.Snapshot())
	})
	h.seq.Start()
	require.Len(t, seen, 1)
	assert.Equal(t, Running, seen[0].RunState)
}

func TestSequencer_ConcurrentUse(t *testing.T) {
	h := newHarness(t, []workout.Segment{
		{ID: "a", Kind: workout.KindWork, DurationSeconds: 500},
		{ID: "b", Kind: workout.KindRest, DurationSeconds: 500},
	})
	h.seq.Start()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.seq.Tick()
				h.seq.UpdateMetrics(heartRate(140))
				_ = h.seq.Snapshot()
			}
		}()
	}
	wg.Wait()

	state := h.seq.Snapshot()
	assert.Equal(t, 0, state.CurrentIndex)
	assert.Equal(t, 300, state.TimeRemainingSeconds)
}
