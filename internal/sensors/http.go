package sensors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/lowaak/smart-trainer/conditioning-timer/internal/workout"
)

const (
	sourceHTTP      = "http"
	maxPayloadBytes = 64 << 10
	shutdownTimeout = 5 * time.Second
)

// MetricsPayload is the body of POST /api/metrics.
type MetricsPayload struct {
	Values    map[workout.MetricName]float64 `json:"values"`
	Timestamp *time.Time                     `json:"timestamp,omitempty"`
}

type snapshotResponse struct {
	Values    map[workout.MetricName]float64 `json:"values"`
	Timestamp *time.Time                     `json:"timestamp,omitempty"`
}

type HTTPOptions struct {
	Feed    Publisher
	Counter Counter
	// Status renders GET /api/session. The route answers 404 when nil.
	Status func() any
	// Telemetry is mounted at GET /metrics when set.
	Telemetry http.Handler
	Clock     func() time.Time
	Logger    logrus.FieldLogger
}

// HTTPBridge is a local HTTP endpoint where an external collaborator pushes
// live readings.
type HTTPBridge struct {
	feed      Publisher
	counter   Counter
	status    func() any
	telemetry http.Handler
	clock     func() time.Time
	log       logrus.FieldLogger
	router    chi.Router

	mu     sync.Mutex
	latest workout.Metrics
}

func NewHTTPBridge(opts HTTPOptions) *HTTPBridge {
	if opts.Logger == nil {
		panic("HTTPBridge: logger cannot be nil")
	}
	if opts.Feed == nil {
		panic("HTTPBridge: feed cannot be nil")
	}
	if opts.Counter == nil {
		opts.Counter = nopCounter{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	s := &HTTPBridge{
		feed:      opts.Feed,
		counter:   opts.Counter,
		status:    opts.Status,
		telemetry: opts.Telemetry,
		clock:     opts.Clock,
		log:       opts.Logger,
		router:    chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *HTTPBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *HTTPBridge) routes() {
	s.router.Use(RequestLogging(s.log))

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/metrics", s.handlePushMetrics)
		r.Get("/metrics", s.handleLatestMetrics)
		r.Get("/session", s.handleSession)
	})
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.telemetry != nil {
		s.router.Method(http.MethodGet, "/metrics", s.telemetry)
	}
}

// ListenAndServe serves the bridge on addr until ctx is cancelled.
func (s *HTTPBridge) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("HTTPBridge: listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics bridge: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics bridge shutdown: %w", err)
	}
	return nil
}

func (s *HTTPBridge) handlePushMetrics(w http.ResponseWriter, r *http.Request) {
	var payload MetricsPayload
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err := dec.Decode(&payload); err != nil {
		s.reject(w, "invalid JSON: "+err.Error())
		return
	}
	if err := validateValues(payload.Values); err != nil {
		s.reject(w, err.Error())
		return
	}

	ts := s.clock()
	if payload.Timestamp != nil && !payload.Timestamp.IsZero() {
		ts = *payload.Timestamp
	}
	reading := workout.NewMetrics(ts, payload.Values)

	s.mu.Lock()
	s.latest = s.latest.Merge(reading)
	s.mu.Unlock()

	s.feed.Notify(reading)
	s.counter.IncMetricUpdates(sourceHTTP)
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": len(payload.Values)})
}

func (s *HTTPBridge) handleLatestMetrics(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	latest := s.latest.Clone()
	s.mu.Unlock()

	resp := snapshotResponse{Values: latest.Values}
	if resp.Values == nil {
		resp.Values = map[workout.MetricName]float64{}
	}
	if !latest.Timestamp.IsZero() {
		resp.Timestamp = &latest.Timestamp
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPBridge) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.status == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no active session"})
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

func (s *HTTPBridge) reject(w http.ResponseWriter, msg string) {
	s.counter.IncMetricRejections()
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func validateValues(values map[workout.MetricName]float64) error {
	if len(values) == 0 {
		return errors.New("values must not be empty")
	}
	for name, v := range values {
		if !slices.Contains(workout.AllMetricNames, name) {
			return fmt.Errorf("unknown metric %q", name)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("metric %q must be a finite non-negative number", name)
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// RequestLogging returns middleware that logs each request at debug level.
func RequestLogging(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   sw.status,
				"duration": time.Since(start).String(),
			}).Debug("request")
		})
	}
}

// statusWriter wraps ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
