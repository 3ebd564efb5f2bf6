package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lowaak/smart-trainer/conditioning-timer/internal/audio"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/recorder"
)

// Metrics holds Prometheus counters and gauges for a training session.
type Metrics struct {
	registry          *prometheus.Registry
	ticksTotal        prometheus.Counter
	cuesTotal         *prometheus.CounterVec
	segmentsClosed    *prometheus.CounterVec
	achievement       prometheus.Histogram
	zoneExitsTotal    *prometheus.CounterVec
	metricUpdates     *prometheus.CounterVec
	metricRejections  prometheus.Counter
	workoutsCompleted prometheus.Counter
	timeRemaining     prometheus.Gauge
	segmentIndex      prometheus.Gauge
}

// New creates and registers the session metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trainer_ticks_total",
			Help: "Total number of one-second ticks delivered to the sequencer",
		}),
		cuesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trainer_cues_total",
			Help: "Audio cues requested, by cue",
		}, []string{"cue"}),
		segmentsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trainer_segments_closed_total",
			Help: "Execution records closed, by outcome and achievement basis",
		}, []string{"outcome", "basis"}),
		achievement: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trainer_target_achievement_percent",
			Help:    "Target achievement of closed records that were evaluated against live metrics",
			Buckets: []float64{0, 25, 50, 75, 100},
		}),
		zoneExitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trainer_zone_exits_total",
			Help: "In-zone to out-of-zone transitions, by metric",
		}, []string{"metric"}),
		metricUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trainer_metric_updates_total",
			Help: "Live metric readings received, by source",
		}, []string{"source"}),
		metricRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trainer_metric_rejections_total",
			Help: "Live metric payloads rejected by a sensor bridge",
		}),
		workoutsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trainer_workouts_completed_total",
			Help: "Workouts run to completion",
		}),
		timeRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trainer_segment_time_remaining_seconds",
			Help: "Countdown of the current segment",
		}),
		segmentIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trainer_segment_index",
			Help: "0-based index of the current segment",
		}),
	}

	registry.MustRegister(
		m.ticksTotal,
		m.cuesTotal,
		m.segmentsClosed,
		m.achievement,
		m.zoneExitsTotal,
		m.metricUpdates,
		m.metricRejections,
		m.workoutsCompleted,
		m.timeRemaining,
		m.segmentIndex,
	)
	return m
}

func (m *Metrics) IncTicks() {
	m.ticksTotal.Inc()
}

func (m *Metrics) IncCue(cue audio.Cue) {
	m.cuesTotal.WithLabelValues(string(cue)).Inc()
}

// ObserveRecord counts a closed record and, when it was measured, its achievement.
func (m *Metrics) ObserveRecord(rec recorder.ExecutionRecord) {
	m.segmentsClosed.WithLabelValues(string(rec.Outcome), string(rec.Achievement.Basis)).Inc()
	if !rec.Achievement.Vacuous() {
		m.achievement.Observe(rec.TargetAchievementPercent)
	}
}

func (m *Metrics) IncZoneExit(metric string) {
	m.zoneExitsTotal.WithLabelValues(metric).Inc()
}

func (m *Metrics) IncMetricUpdates(source string) {
	m.metricUpdates.WithLabelValues(source).Inc()
}

func (m *Metrics) IncMetricRejections() {
	m.metricRejections.Inc()
}

func (m *Metrics) IncWorkoutsCompleted() {
	m.workoutsCompleted.Inc()
}

// SetPosition updates the position gauges.
func (m *Metrics) SetPosition(index, remaining int) {
	m.segmentIndex.Set(float64(index))
	m.timeRemaining.Set(float64(remaining))
}

// Registry exposes the private registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves the metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CountingPlayer counts every cue before passing it on.
func (m *Metrics) CountingPlayer(next audio.Player) audio.Player {
	return audio.PlayerFunc(func(cue audio.Cue) {
		m.IncCue(cue)
		next.PlayCue(cue)
	})
}
