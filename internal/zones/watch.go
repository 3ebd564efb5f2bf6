package zones

import "sync"

// Watch remembers the previous in-zone state per metric and reports each
// in-zone to out-of-zone transition once.
type Watch struct {
	mu     sync.Mutex
	inZone map[MetricType]bool
}

func NewWatch() *Watch {
	return &Watch{inZone: make(map[MetricType]bool)}
}

// Observe records status and returns true when the metric has just left its zone.
func (w *Watch) Observe(status Status) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	prev, seen := w.inZone[status.MetricType]
	w.inZone[status.MetricType] = status.InZone
	return seen && prev && !status.InZone
}

// Forget drops the remembered state, for example when the target changes with
// a new segment or the reading becomes unavailable.
func (w *Watch) Forget(metric MetricType) {
	w.mu.Lock()
	delete(w.inZone, metric)
	w.mu.Unlock()
}

// Reset forgets every metric.
func (w *Watch) Reset() {
	w.mu.Lock()
	clear(w.inZone)
	w.mu.Unlock()
}
