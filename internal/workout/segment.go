package workout

import "time"

// Kind classifies a segment. The five interval kinds are timed; exercise steps
// are completed by hand and transitions are short timed breaks between blocks.
type Kind string

const (
	KindWarmup         Kind = "warmup"
	KindWork           Kind = "work"
	KindRest           Kind = "rest"
	KindActiveRecovery Kind = "active_recovery"
	KindCooldown       Kind = "cooldown"
	KindExercise       Kind = "exercise"
	KindTransition     Kind = "transition"
)

// IntervalKinds lists the kinds that belong to the interval variant, in display order.
var IntervalKinds = []Kind{KindWarmup, KindWork, KindRest, KindActiveRecovery, KindCooldown}

func (k Kind) Valid() bool {
	switch k {
	case KindWarmup, KindWork, KindRest, KindActiveRecovery, KindCooldown, KindExercise, KindTransition:
		return true
	}
	return false
}

// Variant is the tag of the segment union.
type Variant string

const (
	VariantInterval   Variant = "interval"
	VariantExercise   Variant = "exercise"
	VariantTransition Variant = "transition"
)

// Segment is one unit of a workout.
type Segment struct {
	ID              string                    `yaml:"id"`
	Kind            Kind                      `yaml:"kind"`
	DurationSeconds int                       `yaml:"duration"`
	Targets         map[MetricName]TargetSpec `yaml:"targets,omitempty"`

	// Presentation only.
	Label        string   `yaml:"label,omitempty"`
	Notes        string   `yaml:"notes,omitempty"`
	DisplayColor string   `yaml:"color,omitempty"`
	Sets         int      `yaml:"sets,omitempty"`
	Reps         int      `yaml:"reps,omitempty"`
	Equipment    []string `yaml:"equipment,omitempty"`
}

// Variant derives the union tag from the kind.
func (s Segment) Variant() Variant {
	switch s.Kind {
	case KindExercise:
		return VariantExercise
	case KindTransition:
		return VariantTransition
	default:
		return VariantInterval
	}
}

// Manual reports whether the segment is advanced by an explicit action
// instead of a countdown.
func (s Segment) Manual() bool {
	return s.Variant() == VariantExercise
}

// Duration returns the planned length in seconds. Zero and negative values are
// treated as 0.
func (s Segment) Duration() int {
	if s.DurationSeconds < 0 {
		return 0
	}
	return s.DurationSeconds
}

func (s Segment) HasTargets() bool {
	return len(s.Targets) > 0
}

// DisplayName returns the label, falling back to a readable form of the kind.
func (s Segment) DisplayName() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Kind.DisplayName()
}

func (k Kind) DisplayName() string {
	switch k {
	case KindWarmup:
		return "Warm-up"
	case KindWork:
		return "Work"
	case KindRest:
		return "Rest"
	case KindActiveRecovery:
		return "Active Recovery"
	case KindCooldown:
		return "Cool-down"
	case KindExercise:
		return "Exercise"
	case KindTransition:
		return "Transition"
	default:
		return string(k)
	}
}

// Workout is a named, ordered list of segments.
type Workout struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description,omitempty"`
	Profile     string    `yaml:"profile,omitempty"`
	Segments    []Segment `yaml:"segments"`
}

// TotalDuration sums the timed segments. Manual exercise steps contribute
// their nominal duration when one is given.
func (w *Workout) TotalDuration() time.Duration {
	var total int
	for _, s := range w.Segments {
		total += s.Duration()
	}
	return time.Duration(total) * time.Second
}
