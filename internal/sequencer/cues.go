package sequencer

import "github.com/lowaak/smart-trainer/conditioning-timer/internal/workout"

// DefaultCountdownSeconds is how many final seconds get a countdown cue.
const DefaultCountdownSeconds = 3

// StandardCues warns 5 seconds before the end of every interval.
func StandardCues() map[workout.Kind]int {
	cues := make(map[workout.Kind]int, len(workout.IntervalKinds))
	for _, k := range workout.IntervalKinds {
		cues[k] = 5
	}
	return cues
}

// EnhancedCues warns 10 seconds before the end of work intervals only.
func EnhancedCues() map[workout.Kind]int {
	return map[workout.Kind]int{workout.KindWork: 10}
}
