package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lowaak/smart-trainer/conditioning-timer/internal/safego"
)

// Sink turns WAV data into sound.
type Sink interface {
	Play(ctx context.Context, wav []byte) error
}

// CommandSink pipes WAV data to an external player such as "aplay -q" or
// "paplay". When the command line contains "{}" the data is written to a
// temporary file and "{}" is replaced by its path instead.
type CommandSink struct {
	Command string
}

func (s CommandSink) Play(ctx context.Context, wav []byte) error {
	fields := strings.Fields(s.Command)
	if len(fields) == 0 {
		return errors.New("no player command configured")
	}

	usesFile := false
	for _, f := range fields {
		if f == "{}" {
			usesFile = true
		}
	}

	if !usesFile {
		cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
		cmd.Stdin = bytes.NewReader(wav)
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("%s: %w: %s", fields[0], err, bytes.TrimSpace(out))
		}
		return nil
	}

	f, err := os.CreateTemp("", "cue-*.wav")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(wav); err != nil {
		f.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	args := make([]string, len(fields)-1)
	for i, a := range fields[1:] {
		if a == "{}" {
			a = f.Name()
		}
		args[i] = a
	}
	if out, err := exec.CommandContext(ctx, fields[0], args...).CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", fields[0], err, bytes.TrimSpace(out))
	}
	return nil
}

// Options configure a Service. Every field is optional.
type Options struct {
	// SoundsDir holds <cue>.wav files. Files present at construction are
	// preloaded; others are looked up again on each play.
	SoundsDir string
	Sink      Sink
	// Bell, when set, receives a terminal bell if the sink is missing or fails.
	Bell io.Writer
	// MaxInFlight bounds concurrent plays; extra cues are dropped.
	MaxInFlight int
	Timeout     time.Duration
	Logger      logrus.FieldLogger
}

// Service is the production Player. A cue resolves to a preloaded buffer, then
// a file in SoundsDir, then a synthesized tone. Playback happens on its own
// goroutine and every failure is logged and dropped.
type Service struct {
	logger    logrus.FieldLogger
	soundsDir string
	sink      Sink
	bell      io.Writer
	timeout   time.Duration
	slots     chan struct{}

	mu      sync.RWMutex
	buffers map[Cue][]byte
	bellMu  sync.Mutex
}

func NewService(opts Options) *Service {
	if opts.Logger == nil {
		panic("audio.Service: logger cannot be nil")
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = 2
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	s := &Service{
		logger:    opts.Logger.WithField("component", "audio"),
		soundsDir: opts.SoundsDir,
		sink:      opts.Sink,
		bell:      opts.Bell,
		timeout:   opts.Timeout,
		slots:     make(chan struct{}, opts.MaxInFlight),
		buffers:   make(map[Cue][]byte),
	}
	s.preload()
	return s
}

func (s *Service) preload() {
	if s.soundsDir == "" {
		return
	}
	for _, cue := range AllCues {
		data, err := os.ReadFile(s.cuePath(cue))
		if err != nil {
			continue
		}
		s.buffers[cue] = data
	}
	s.logger.WithField("count", len(s.buffers)).Debug("preloaded cue sounds")
}

// PlayCue implements Player.
func (s *Service) PlayCue(cue Cue) {
	select {
	case s.slots <- struct{}{}:
	default:
		s.logger.WithField("cue", cue).Debug("dropping cue, player busy")
		return
	}
	safego.GoQuiet(s.logger, func() {
		defer func() { <-s.slots }()
		s.play(cue)
	})
}

func (s *Service) play(cue Cue) {
	if s.sink == nil {
		s.ring()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.sink.Play(ctx, s.Resolve(cue)); err != nil {
		s.logger.WithError(err).WithField("cue", cue).Debug("cue playback failed")
		s.ring()
	}
}

// Resolve returns the sound data for cue.
func (s *Service) Resolve(cue Cue) []byte {
	s.mu.RLock()
	data, ok := s.buffers[cue]
	s.mu.RUnlock()
	if ok {
		return data
	}
	if s.soundsDir != "" {
		if data, err := os.ReadFile(s.cuePath(cue)); err == nil {
			s.mu.Lock()
			s.buffers[cue] = data
			s.mu.Unlock()
			return data
		}
	}
	return Synthesize(cue)
}

func (s *Service) ring() {
	if s.bell == nil {
		return
	}
	s.bellMu.Lock()
	defer s.bellMu.Unlock()
	_, _ = s.bell.Write([]byte{'\a'})
}

func (s *Service) cuePath(cue Cue) string {
	return filepath.Join(s.soundsDir, string(cue)+".wav")
}
