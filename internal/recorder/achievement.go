package recorder

import (
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/workout"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/zones"
)

// Basis explains how an achievement percentage was reached. Every basis
// other than BasisEvaluated is a vacuous 100%.
type Basis string

const (
	BasisEvaluated     Basis = "evaluated"
	BasisNoTargets     Basis = "no_targets"
	BasisNoLiveMetrics Basis = "no_live_metrics"
	BasisNotEvaluable  Basis = "not_evaluable"
)

type Achievement struct {
	Percent   float64
	Basis     Basis
	Evaluated int
	InZone    int
}

// Vacuous reports whether the percentage was not measured against any target.
func (a Achievement) Vacuous() bool {
	return a.Basis != BasisEvaluated
}

// Compute evaluates every heart rate and power target of segment that has a
// matching live value and resolvable reference data, and returns the share
// that was in zone.
func Compute(segment workout.Segment, snapshot workout.Metrics, reference zones.Reference) Achievement {
	if !segment.HasTargets() {
		return Achievement{Percent: 100, Basis: BasisNoTargets}
	}
	if snapshot.Empty() {
		return Achievement{Percent: 100, Basis: BasisNoLiveMetrics}
	}

	var evaluated, inZone int
	for name, target := range segment.Targets {
		metric, ok := zones.MetricTypeFor(name)
		if !ok {
			continue
		}
		live, ok := snapshot.Get(name)
		if !ok {
			continue
		}
		status, ok := zones.Evaluate(metric, live, target, reference)
		if !ok {
			continue
		}
		evaluated++
		if status.InZone {
			inZone++
		}
	}
	if evaluated == 0 {
		return Achievement{Percent: 100, Basis: BasisNotEvaluable}
	}

	percent := 100 * float64(inZone) / float64(evaluated)
	return Achievement{
		Percent:   min(max(percent, 0), 100),
		Basis:     BasisEvaluated,
		Evaluated: evaluated,
		InZone:    inZone,
	}
}
