package sensors

import (
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/workout"
)

// Publisher receives readings from a sensor bridge. The live metrics feed
// (events.ChannelEvent[workout.Metrics]) satisfies it.
type Publisher interface {
	Notify(workout.Metrics)
}

// Counter records bridge activity. telemetry.Metrics satisfies it.
type Counter interface {
	IncMetricUpdates(source string)
	IncMetricRejections()
}

type nopCounter struct{}

func (nopCounter) IncMetricUpdates(string) {}
func (nopCounter) IncMetricRejections()    {}
