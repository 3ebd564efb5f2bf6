package audio

import "sync"

// Cue names a sound played at a workout transition.
type Cue string

const (
	CueStart     Cue = "start"
	CueEnd       Cue = "end"
	CueCountdown Cue = "countdown"
	CueWarning   Cue = "warning"
	CueZoneExit  Cue = "zone_exit"
)

var AllCues = []Cue{CueStart, CueEnd, CueCountdown, CueWarning, CueZoneExit}

// Player plays cues. Implementations must return immediately and must not
// panic; failures are their own business.
type Player interface {
	PlayCue(cue Cue)
}

// PlayerFunc adapts a function to Player.
type PlayerFunc func(Cue)

func (f PlayerFunc) PlayCue(cue Cue) { f(cue) }

// Nop discards every cue.
type Nop struct{}

func (Nop) PlayCue(Cue) {}

// MemoryPlayer records cues in order. Useful in tests and for headless runs.
type MemoryPlayer struct {
	mu   sync.Mutex
	cues []Cue
}

func (p *MemoryPlayer) PlayCue(cue Cue) {
	p.mu.Lock()
	p.cues = append(p.cues, cue)
	p.mu.Unlock()
}

// Cues returns a copy of everything played so far.
func (p *MemoryPlayer) Cues() []Cue {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Cue(nil), p.cues...)
}

// Count returns how many times cue was played.
func (p *MemoryPlayer) Count(cue Cue) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.cues {
		if c == cue {
			n++
		}
	}
	return n
}

func (p *MemoryPlayer) Reset() {
	p.mu.Lock()
	p.cues = nil
	p.mu.Unlock()
}
