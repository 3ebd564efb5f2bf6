package zones

import (
	"math"

	"github.com/lowaak/smart-trainer/conditioning-timer/internal/workout"
)

// MetricType is the physiological signal a status refers to.
type MetricType string

const (
	HeartRate MetricType = "heartRate"
	Power     MetricType = "power"
)

// Tolerances applied around absolute and percentage targets, inclusive.
const (
	HeartRateTolerance = 5.0
	PowerTolerance     = 10.0
)

// Reference holds a participant's reference values. Zero means unknown.
type Reference struct {
	MaxHeartRate       float64
	ThresholdHeartRate float64
	FTP                float64
}

// Band is one row of a zone table, as percentages of the reference value.
// Lower is inclusive, Upper exclusive.
type Band struct {
	Name  string
	Lower float64
	Upper float64
}

// HeartRateBands are the five heart rate zones by percent of max heart rate.
var HeartRateBands = []Band{
	{Name: "Recovery", Lower: 0, Upper: 60},
	{Name: "Aerobic", Lower: 60, Upper: 70},
	{Name: "Tempo", Lower: 70, Upper: 80},
	{Name: "Threshold", Lower: 80, Upper: 90},
	{Name: "Maximal", Lower: 90, Upper: math.Inf(1)},
}

// PowerBands are the seven power zones by percent of FTP.
var PowerBands = []Band{
	{Name: "Active Recovery", Lower: 0, Upper: 55},
	{Name: "Endurance", Lower: 55, Upper: 75},
	{Name: "Tempo", Lower: 75, Upper: 90},
	{Name: "Threshold", Lower: 90, Upper: 105},
	{Name: "VO2max", Lower: 105, Upper: 120},
	{Name: "Anaerobic", Lower: 120, Upper: 150},
	{Name: "Neuromuscular", Lower: 150, Upper: math.Inf(1)},
}

// Status is the result of evaluating a live reading against a target.
// CurrentZone is 1-based and 0 when it cannot be determined. TargetZone is
// set only for zone targets; TargetLow/TargetHigh hold the absolute range.
type Status struct {
	MetricType  MetricType
	Value       float64
	CurrentZone int
	TargetZone  int
	TargetLow   float64
	TargetHigh  float64
	InZone      bool
}

// MetricTypeFor maps a target metric name to an evaluable signal. Only heart
// rate and power targets can be evaluated.
func MetricTypeFor(name workout.MetricName) (MetricType, bool) {
	switch name {
	case workout.MetricHeartRate:
		return HeartRate, true
	case workout.MetricWatts:
		return Power, true
	default:
		return "", false
	}
}

// Evaluate resolves target against ref and compares live to it. It returns
// false when the reference data needed to resolve the target is missing or
// the target does not apply to metric.
func Evaluate(metric MetricType, live float64, target workout.TargetSpec, ref Reference) (Status, bool) {
	status := Status{MetricType: metric, Value: live}
	if zoneRef, ok := zoneReference(metric, ref); ok {
		status.CurrentZone = zoneIndex(bandsFor(metric), live/zoneRef*100)
	}

	switch target.Type {
	case workout.TargetAbsolute:
		return withinTolerance(status, target.Value), true

	case workout.TargetPercentage:
		base, ok := percentageReference(metric, target.Reference, ref)
		if !ok {
			return Status{}, false
		}
		return withinTolerance(status, base*target.Value/100), true

	case workout.TargetZone:
		if systemFor(metric) != target.ZoneSystem {
			return Status{}, false
		}
		bands := bandsFor(metric)
		zoneRef, ok := zoneReference(metric, ref)
		if !ok || target.ZoneIndex < 1 || target.ZoneIndex > len(bands) {
			return Status{}, false
		}
		band := bands[target.ZoneIndex-1]
		status.TargetZone = target.ZoneIndex
		status.TargetLow = zoneRef * band.Lower / 100
		status.TargetHigh = zoneRef * band.Upper / 100
		status.InZone = status.CurrentZone == target.ZoneIndex
		return status, true
	}
	return Status{}, false
}

// ZoneFor returns the 1-based zone for live, or 0 when the reference is missing.
func ZoneFor(metric MetricType, live float64, ref Reference) int {
	zoneRef, ok := zoneReference(metric, ref)
	if !ok {
		return 0
	}
	return zoneIndex(bandsFor(metric), live/zoneRef*100)
}

// BandsFor returns the zone table used for metric.
func BandsFor(metric MetricType) []Band {
	return bandsFor(metric)
}

func withinTolerance(status Status, target float64) Status {
	eps := tolerance(status.MetricType)
	status.TargetLow = target - eps
	status.TargetHigh = target + eps
	status.InZone = status.Value >= status.TargetLow && status.Value <= status.TargetHigh
	return status
}

func tolerance(metric MetricType) float64 {
	if metric == Power {
		return PowerTolerance
	}
	return HeartRateTolerance
}

func bandsFor(metric MetricType) []Band {
	if metric == Power {
		return PowerBands
	}
	return HeartRateBands
}

func systemFor(metric MetricType) workout.ZoneSystem {
	if metric == Power {
		return workout.PowerZones
	}
	return workout.HeartRateZones
}

// zoneReference is the value zone tables are expressed against.
func zoneReference(metric MetricType, ref Reference) (float64, bool) {
	var v float64
	if metric == Power {
		v = ref.FTP
	} else {
		v = ref.MaxHeartRate
	}
	return v, v > 0
}

// percentageReference resolves the base a percentage target scales. max is
// heart rate only and ftp is power only.
func percentageReference(metric MetricType, name workout.ReferenceName, ref Reference) (float64, bool) {
	var v float64
	switch name {
	case workout.ReferenceMax:
		if metric != HeartRate {
			return 0, false
		}
		v = ref.MaxHeartRate
	case workout.ReferenceFTP:
		if metric != Power {
			return 0, false
		}
		v = ref.FTP
	case workout.ReferenceThreshold:
		if metric == Power {
			v = ref.FTP
		} else {
			v = ref.ThresholdHeartRate
		}
	}
	return v, v > 0
}

func zoneIndex(bands []Band, percent float64) int {
	for i, b := range bands {
		if percent < b.Upper {
			return i + 1
		}
	}
	return len(bands)
}
