package workout

import "fmt"

// MetricName identifies a live metric or a target on a segment.
type MetricName string

const (
	MetricHeartRate MetricName = "heartRate"
	MetricWatts     MetricName = "watts"
	MetricPace      MetricName = "pace"
	MetricCalories  MetricName = "calories"
	MetricDistance  MetricName = "distance"
	MetricRPM       MetricName = "rpm"
)

// AllMetricNames is the display order used by the console.
var AllMetricNames = []MetricName{MetricHeartRate, MetricWatts, MetricRPM, MetricPace, MetricCalories, MetricDistance}

// MetricInfo contains display information for a metric.
type MetricInfo struct {
	DisplayName string
	Unit        string
	FormatStr   string
}

var metricInfo = map[MetricName]MetricInfo{
	MetricHeartRate: {DisplayName: "Heart Rate", Unit: "bpm", FormatStr: "%.0f"},
	MetricWatts:     {DisplayName: "Power", Unit: "W", FormatStr: "%.0f"},
	MetricPace:      {DisplayName: "Pace", Unit: "min/km", FormatStr: "%.2f"},
	MetricCalories:  {DisplayName: "Calories", Unit: "kcal", FormatStr: "%.0f"},
	MetricDistance:  {DisplayName: "Distance", Unit: "m", FormatStr: "%.0f"},
	MetricRPM:       {DisplayName: "Cadence", Unit: "rpm", FormatStr: "%.0f"},
}

func GetMetricInfo(name MetricName) (MetricInfo, bool) {
	info, ok := metricInfo[name]
	return info, ok
}

// Format renders value with the metric's unit.
func (m MetricName) Format(value float64) string {
	info, ok := metricInfo[m]
	if !ok {
		return fmt.Sprintf("%.1f", value)
	}
	s := fmt.Sprintf(info.FormatStr, value)
	if info.Unit != "" {
		s += " " + info.Unit
	}
	return s
}

type TargetType string

const (
	TargetAbsolute   TargetType = "absolute"
	TargetPercentage TargetType = "percentage"
	TargetZone       TargetType = "zone"
)

// ReferenceName selects which participant reference a percentage target scales.
type ReferenceName string

const (
	ReferenceMax       ReferenceName = "max"
	ReferenceThreshold ReferenceName = "threshold"
	ReferenceFTP       ReferenceName = "ftp"
)

type ZoneSystem string

const (
	HeartRateZones ZoneSystem = "heartRateZones"
	PowerZones     ZoneSystem = "powerZones"
)

// TargetSpec is a tagged union keyed by Type. Only the fields of the active
// variant are meaningful.
type TargetSpec struct {
	Type       TargetType    `yaml:"type"`
	Value      float64       `yaml:"value,omitempty"`
	Reference  ReferenceName `yaml:"reference,omitempty"`
	ZoneIndex  int           `yaml:"zone,omitempty"`
	ZoneSystem ZoneSystem    `yaml:"zoneSystem,omitempty"`
}

func Absolute(value float64) TargetSpec {
	return TargetSpec{Type: TargetAbsolute, Value: value}
}

func Percentage(value float64, reference ReferenceName) TargetSpec {
	return TargetSpec{Type: TargetPercentage, Value: value, Reference: reference}
}

func Zone(index int, system ZoneSystem) TargetSpec {
	return TargetSpec{Type: TargetZone, ZoneIndex: index, ZoneSystem: system}
}

func (t TargetSpec) String() string {
	switch t.Type {
	case TargetAbsolute:
		return fmt.Sprintf("%g", t.Value)
	case TargetPercentage:
		return fmt.Sprintf("%g%% %s", t.Value, t.Reference)
	case TargetZone:
		if t.ZoneSystem == PowerZones {
			return fmt.Sprintf("power Z%d", t.ZoneIndex)
		}
		return fmt.Sprintf("HR Z%d", t.ZoneIndex)
	default:
		return "?"
	}
}

// Validate checks that the active variant is well formed.
func (t TargetSpec) Validate() error {
	switch t.Type {
	case TargetAbsolute:
		return nil
	case TargetPercentage:
		switch t.Reference {
		case ReferenceMax, ReferenceThreshold, ReferenceFTP:
			return nil
		}
		return fmt.Errorf("unknown percentage reference %q", t.Reference)
	case TargetZone:
		switch t.ZoneSystem {
		case HeartRateZones, PowerZones:
			return nil
		}
		return fmt.Errorf("unknown zone system %q", t.ZoneSystem)
	default:
		return fmt.Errorf("unknown target type %q", t.Type)
	}
}

// ValidateFor checks the target and that its reference or zone system is in
// the same unit as metric.
func (t TargetSpec) ValidateFor(metric MetricName) error {
	if err := t.Validate(); err != nil {
		return err
	}
	switch t.Type {
	case TargetPercentage:
		if t.Reference == ReferenceMax && metric != MetricHeartRate {
			return fmt.Errorf("reference %q applies to %s only", t.Reference, MetricHeartRate)
		}
		if t.Reference == ReferenceFTP && metric != MetricWatts {
			return fmt.Errorf("reference %q applies to %s only", t.Reference, MetricWatts)
		}
	case TargetZone:
		if t.ZoneSystem == HeartRateZones && metric != MetricHeartRate {
			return fmt.Errorf("zone system %q applies to %s only", t.ZoneSystem, MetricHeartRate)
		}
		if t.ZoneSystem == PowerZones && metric != MetricWatts {
			return fmt.Errorf("zone system %q applies to %s only", t.ZoneSystem, MetricWatts)
		}
	}
	return nil
}
