package workout

import (
	"maps"
	"time"
)

// Metrics is one reading from the live metrics feed. Sources may report only
// the values they measure.
type Metrics struct {
	Values    map[MetricName]float64
	Timestamp time.Time
}

func NewMetrics(ts time.Time, values map[MetricName]float64) Metrics {
	return Metrics{Values: maps.Clone(values), Timestamp: ts}
}

func (m Metrics) Get(name MetricName) (float64, bool) {
	v, ok := m.Values[name]
	return v, ok
}

func (m Metrics) Empty() bool {
	return len(m.Values) == 0
}

func (m Metrics) Clone() Metrics {
	return Metrics{Values: maps.Clone(m.Values), Timestamp: m.Timestamp}
}

// Merge returns a copy of m updated with every value present in update.
// The newer timestamp wins.
func (m Metrics) Merge(update Metrics) Metrics {
	out := Metrics{Values: make(map[MetricName]float64, len(m.Values)+len(update.Values)), Timestamp: m.Timestamp}
	maps.Copy(out.Values, m.Values)
	maps.Copy(out.Values, update.Values)
	if update.Timestamp.After(out.Timestamp) {
		out.Timestamp = update.Timestamp
	}
	return out
}
