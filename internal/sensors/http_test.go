package sensors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/smart-trainer/conditioning-timer/internal/workout"
)

var bridgeNow = time.Date(2026, 1, 10, 18, 30, 0, 0, time.UTC)

func newTestHTTPBridge(t *testing.T, opts HTTPOptions) (*HTTPBridge, *capturePublisher, *captureCounter) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	pub := &capturePublisher{}
	counter := &captureCounter{}
	opts.Feed = pub
	opts.Counter = counter
	opts.Logger = logger
	opts.Clock = func() time.Time { return bridgeNow }
	return NewHTTPBridge(opts), pub, counter
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/metrics", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestPushMetrics_Publishes(t *testing.T) {
	b, pub, counter := newTestHTTPBridge(t, HTTPOptions{})

	w := post(t, b, `{"values":{"heartRate":152,"watts":240}}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	readings := pub.all()
	require.Len(t, readings, 1)
	assert.Equal(t, bridgeNow, readings[0].Timestamp)
	hr, _ := readings[0].Get(workout.MetricHeartRate)
	assert.Equal(t, 152.0, hr)
	assert.Equal(t, 1, counter.updates[sourceHTTP])
}

func TestPushMetrics_UsesPayloadTimestamp(t *testing.T) {
	b, pub, _ := newTestHTTPBridge(t, HTTPOptions{})

	w := post(t, b, `{"values":{"calories":80},"timestamp":"2026-01-10T18:29:58Z"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	readings := pub.all()
	require.Len(t, readings, 1)
	assert.Equal(t, time.Date(2026, 1, 10, 18, 29, 58, 0, time.UTC), readings[0].Timestamp.UTC())
}

func TestPushMetrics_RejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"malformed":      `{"values":`,
		"empty":          `{"values":{}}`,
		"unknown metric": `{"values":{"lactate":4.1}}`,
		"negative":       `{"values":{"watts":-5}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			b, pub, counter := newTestHTTPBridge(t, HTTPOptions{})

			w := post(t, b, body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
			assert.Empty(t, pub.all())
			assert.Equal(t, 1, counter.rejections)
		})
	}
}

func TestLatestMetrics_MergesPushes(t *testing.T) {
	b, _, _ := newTestHTTPBridge(t, HTTPOptions{})

	req := httptest.NewRequest(http.MethodGet, "/api/metrics", nil)
	w := httptest.NewRecorder()
	b.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"values":{}}`, w.Body.String())

	post(t, b, `{"values":{"heartRate":150}}`)
	post(t, b, `{"values":{"watts":210}}`)

	w = httptest.NewRecorder()
	b.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp snapshotResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, map[workout.MetricName]float64{
		workout.MetricHeartRate: 150,
		workout.MetricWatts:     210,
	}, resp.Values)
	require.NotNil(t, resp.Timestamp)
}

func TestSessionRoute(t *testing.T) {
	b, _, _ := newTestHTTPBridge(t, HTTPOptions{})
	w := httptest.NewRecorder()
	b.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	b, _, _ = newTestHTTPBridge(t, HTTPOptions{
		Status: func() any { return map[string]string{"state": "running"} },
	})
	w = httptest.NewRecorder()
	b.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"state":"running"}`, w.Body.String())
}

func TestHealthzAndTelemetry(t *testing.T) {
	telemetry := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("trainer_ticks_total 3\n"))
	})
	b, _, _ := newTestHTTPBridge(t, HTTPOptions{Telemetry: telemetry})

	w := httptest.NewRecorder()
	b.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	b.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "trainer_ticks_total")
}
