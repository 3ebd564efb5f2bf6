package console

import (
	"fmt"
	"strings"

	"github.com/lowaak/smart-trainer/conditioning-timer/internal/sequencer"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/session"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/workout"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/zones"
)

const progressBarWidth = 30

var kindColors = map[workout.Kind]string{
	workout.KindWarmup:         "yellow",
	workout.KindWork:           "red",
	workout.KindRest:           "green",
	workout.KindActiveRecovery: "teal",
	workout.KindCooldown:       "blue",
	workout.KindExercise:       "purple",
	workout.KindTransition:     "gray",
}

// formatMMSS formats a number of seconds as MM:SS
func formatMMSS(totalSeconds int) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	return fmt.Sprintf("%02d:%02d", totalSeconds/60, totalSeconds%60)
}

// formatMinutes formats a number of seconds for workout listings
func formatMinutes(totalSeconds int) string {
	minutes := totalSeconds / 60
	if minutes >= 60 {
		hours := minutes / 60
		mins := minutes % 60
		if mins > 0 {
			return fmt.Sprintf("%dh %dm", hours, mins)
		}
		return fmt.Sprintf("%dh", hours)
	}
	if minutes == 0 && totalSeconds > 0 {
		return fmt.Sprintf("%ds", totalSeconds)
	}
	return fmt.Sprintf("%d min", minutes)
}

func segmentColor(seg workout.Segment) string {
	if seg.DisplayColor != "" {
		return seg.DisplayColor
	}
	if c, ok := kindColors[seg.Kind]; ok {
		return c
	}
	return "white"
}

func progressBar(percent float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(percent / 100 * float64(width))
	filled = min(max(filled, 0), width)
	return "[green]" + strings.Repeat("█", filled) + "[gray]" + strings.Repeat("░", width-filled) + "[white]"
}

// renderTimer is the main panel: segment, countdown and state.
func renderTimer(v session.View) string {
	seg, ok := v.State.Current()
	if !ok {
		return "\n\n  [gray]This workout has no segments[white]\n"
	}

	var b strings.Builder
	b.WriteString("\n")
	fmt.Fprintf(&b, "  [yellow]%s[white]", v.WorkoutName)
	switch v.State.RunState {
	case sequencer.Paused:
		b.WriteString(" [gray](PAUSED)[white]")
	case sequencer.Completed:
		b.WriteString(" [green](COMPLETE)[white]")
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "  [%s]%s[white]  [gray]%d/%d[white]\n", segmentColor(seg), seg.DisplayName(), v.Progress.SegmentNumber, v.Progress.TotalSegments)

	if seg.Manual() {
		b.WriteString("\n  [purple]Exercise step[white]\n")
		if seg.Sets > 0 || seg.Reps > 0 {
			fmt.Fprintf(&b, "  %d sets x %d reps\n", seg.Sets, seg.Reps)
		}
		if len(seg.Equipment) > 0 {
			fmt.Fprintf(&b, "  [gray]Equipment:[white] %s\n", strings.Join(seg.Equipment, ", "))
		}
	} else {
		fmt.Fprintf(&b, "\n  [::b]%s[::-]\n", formatMMSS(v.State.TimeRemainingSeconds))
	}
	if seg.Notes != "" {
		fmt.Fprintf(&b, "\n  [gray]%s[white]\n", seg.Notes)
	}

	if len(seg.Targets) > 0 {
		b.WriteString("\n  [gray]Targets:[white]\n")
		for _, name := range workout.AllMetricNames {
			if t, ok := seg.Targets[name]; ok {
				info, _ := workout.GetMetricInfo(name)
				fmt.Fprintf(&b, "    %s: %s\n", info.DisplayName, t)
			}
		}
	}

	if next, ok := v.State.Next(); ok {
		fmt.Fprintf(&b, "\n  [gray]Next:[white] %s", next.DisplayName())
		if !next.Manual() {
			fmt.Fprintf(&b, " [gray](%s)[white]", formatMMSS(next.Duration()))
		}
		b.WriteString("\n")
	} else if v.State.RunState != sequencer.Completed {
		b.WriteString("\n  [gray]Next:[white] [green]Finish![white]\n")
	}
	return b.String()
}

// renderProgress shows workout-level progress.
func renderProgress(v session.View) string {
	p := v.Progress
	return fmt.Sprintf("  %s %3.0f%%\n  [gray]Elapsed:[white] %s  [gray]Remaining:[white] %s  [gray]Records:[white] %d",
		progressBar(p.Percent, progressBarWidth), p.Percent,
		formatMMSS(p.ElapsedSeconds), formatMMSS(p.TotalSeconds-p.ElapsedSeconds), v.State.RecordCount)
}

// renderMetrics lists the live readings.
func renderMetrics(v session.View) string {
	if v.Metrics.Empty() {
		return "\n  [gray]Waiting for data...[white]"
	}
	var b strings.Builder
	b.WriteString("\n")
	for _, name := range workout.AllMetricNames {
		value, ok := v.Metrics.Get(name)
		if !ok {
			continue
		}
		info, _ := workout.GetMetricInfo(name)
		fmt.Fprintf(&b, "  %-11s [yellow]%s[white]\n", info.DisplayName+":", name.Format(value))
	}
	return b.String()
}

// renderZones shows every evaluated target as in or out of zone.
func renderZones(v session.View) string {
	seg, ok := v.State.Current()
	if !ok || !seg.HasTargets() {
		return "\n  [gray]No targets for this segment[white]"
	}
	if len(v.Zones) == 0 {
		return "\n  [gray]Zone unavailable[white]"
	}
	var b strings.Builder
	b.WriteString("\n")
	for _, z := range v.Zones {
		marker := "[red]● OUT[white]"
		if z.InZone {
			marker = "[green]● IN [white]"
		}
		fmt.Fprintf(&b, "  %s %s %s", marker, zoneLabel(z.MetricType), formatZoneValue(z))
		if z.CurrentZone > 0 {
			fmt.Fprintf(&b, "  [gray]%s[white]", zoneName(z.MetricType, z.CurrentZone))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func zoneLabel(m zones.MetricType) string {
	if m == zones.Power {
		return "Power"
	}
	return "HR"
}

func formatZoneValue(z zones.Status) string {
	name := workout.MetricHeartRate
	if z.MetricType == zones.Power {
		name = workout.MetricWatts
	}
	s := name.Format(z.Value)
	switch {
	case z.TargetZone > 0:
		s += fmt.Sprintf(" [gray](target Z%d)[white]", z.TargetZone)
	case z.TargetHigh > 0:
		s += fmt.Sprintf(" [gray](%.0f-%.0f)[white]", z.TargetLow, z.TargetHigh)
	}
	return s
}

func zoneName(m zones.MetricType, zone int) string {
	bands := zones.BandsFor(m)
	if zone < 1 || zone > len(bands) {
		return ""
	}
	return fmt.Sprintf("Z%d %s", zone, bands[zone-1].Name)
}

// renderTimeline lists the segments around the current one.
func renderTimeline(v session.View, rows int) string {
	segments := v.State.Segments
	if len(segments) == 0 {
		return ""
	}
	if rows <= 0 {
		rows = len(segments)
	}
	start := max(v.State.CurrentIndex-rows/3, 0)
	end := min(start+rows, len(segments))
	start = max(end-rows, 0)

	var b strings.Builder
	for i := start; i < end; i++ {
		seg := segments[i]
		marker := "  "
		style := "[gray]"
		switch {
		case i == v.State.CurrentIndex && v.State.RunState != sequencer.Completed:
			marker = "▶ "
			style = "[" + segmentColor(seg) + "]"
		case i > v.State.CurrentIndex:
			style = "[white]"
		}
		length := "manual"
		if !seg.Manual() {
			length = formatMMSS(seg.Duration())
		}
		fmt.Fprintf(&b, " %s%s%2d. %-20s %s[white]\n", marker, style, i+1, seg.DisplayName(), length)
	}
	return b.String()
}

// renderHelp lists the keys available for the profile and state.
func renderHelp(v session.View) string {
	toggle := "Start"
	switch v.State.RunState {
	case sequencer.Running:
		toggle = "Pause"
	case sequencer.Paused:
		toggle = "Resume"
	}
	parts := []string{
		fmt.Sprintf("[yellow]Space[white] %s", toggle),
		"[yellow]N[white] Skip",
		"[yellow]R[white] Reset",
		"[yellow]X[white] Stop",
	}
	if v.Profile.ManualSteps() {
		parts = append(parts, "[yellow]C[white] Complete exercise")
	}
	parts = append(parts, "[yellow]Q[white] Quit")
	return strings.Join(parts, "  |  ")
}
