package session

import (
	"fmt"
	"strings"

	"github.com/lowaak/smart-trainer/conditioning-timer/internal/sequencer"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/workout"
)

// Profile selects cue behaviour and which panels and controls a viewer shows.
// All profiles drive the same sequencer.
type Profile string

const (
	ProfileConditioning Profile = "conditioning"
	ProfileEnhanced     Profile = "enhanced"
	ProfileHybrid       Profile = "hybrid"
)

// ParseProfile accepts a profile name case-insensitively. An empty name is
// the conditioning profile.
func ParseProfile(name string) (Profile, error) {
	switch p := Profile(strings.ToLower(strings.TrimSpace(name))); p {
	case "":
		return ProfileConditioning, nil
	case ProfileConditioning, ProfileEnhanced, ProfileHybrid:
		return p, nil
	default:
		return "", fmt.Errorf("unknown profile %q", name)
	}
}

// CueThresholds returns the warning thresholds per segment kind.
func (p Profile) CueThresholds() map[workout.Kind]int {
	if p == ProfileEnhanced {
		return sequencer.EnhancedCues()
	}
	return sequencer.StandardCues()
}

// ShowsLiveMetrics reports whether the live metrics and zone panels are shown.
func (p Profile) ShowsLiveMetrics() bool {
	return p == ProfileEnhanced || p == ProfileHybrid
}

// ManualSteps reports whether the complete-exercise control is offered.
func (p Profile) ManualSteps() bool {
	return p == ProfileHybrid
}
