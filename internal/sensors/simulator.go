package sensors

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultSimulatorInterval = time.Second

// Reading is the state a simulated sensor reports.
type Reading struct {
	HeartRate uint8
	Power     int16
	Cadence   uint16 // rpm
}

type SimulatorOptions struct {
	Streams  []Stream
	Feed     Publisher
	Counter  Counter
	Interval time.Duration
	Initial  Reading
	Clock    func() time.Time
	Logger   logrus.FieldLogger
}

// Simulator emits encoded sensor notifications on a fixed interval and feeds
// them through the same decoders a connected peripheral would use. It stands
// in for hardware during demos and tests.
type Simulator struct {
	bridge   *BLEBridge
	streams  []Stream
	interval time.Duration
	logger   logrus.FieldLogger

	mu        sync.Mutex
	reading   Reading
	crankRevs uint16
	crankTime uint16
	remainder float64
	lastCrank time.Time
}

func NewSimulator(opts SimulatorOptions) *Simulator {
	if opts.Logger == nil {
		panic("Simulator: logger cannot be nil")
	}
	if opts.Feed == nil {
		panic("Simulator: feed cannot be nil")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultSimulatorInterval
	}
	if len(opts.Streams) == 0 {
		opts.Streams = []Stream{StreamHeartRate, StreamCyclingPower, StreamCadence}
	}
	if opts.Initial == (Reading{}) {
		opts.Initial = Reading{HeartRate: 70, Power: 100, Cadence: 80}
	}
	bridge := NewBLEBridge(BLEOptions{
		Feed:    opts.Feed,
		Counter: opts.Counter,
		Clock:   opts.Clock,
		Logger:  opts.Logger,
	})
	bridge.source = sourceSimulator
	return &Simulator{
		bridge:   bridge,
		streams:  opts.Streams,
		interval: opts.Interval,
		logger:   opts.Logger,
		reading:  opts.Initial,
	}
}

// Set replaces the reading reported from the next notification on.
func (s *Simulator) Set(r Reading) {
	s.mu.Lock()
	s.reading = r
	s.mu.Unlock()
}

func (s *Simulator) Reading() Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reading
}

// Run sends notifications until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Infof("Simulator: sending %v every %s", s.streams, s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Simulator: stopped")
			return nil
		case <-ticker.C:
			s.Emit()
		}
	}
}

// Emit sends one notification per configured stream.
func (s *Simulator) Emit() {
	for _, stream := range s.streams {
		s.bridge.handleNotification(stream, s.frame(stream, s.bridge.clock()))
	}
}

// frame encodes the current reading the way the corresponding GATT
// characteristic would.
func (s *Simulator) frame(stream Stream, now time.Time) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch stream {
	case StreamHeartRate:
		return []byte{0x00, s.reading.HeartRate}
	case StreamCyclingPower:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint16(buf[2:], uint16(s.reading.Power))
		return buf
	case StreamCadence:
		s.advanceCrank(now)
		buf := make([]byte, 5)
		buf[0] = 0x02 // crank revolution data present
		binary.LittleEndian.PutUint16(buf[1:], s.crankRevs)
		binary.LittleEndian.PutUint16(buf[3:], s.crankTime)
		return buf
	default:
		return nil
	}
}

// advanceCrank accumulates whole crank revolutions and the 1/1024 s event
// time since the previous cadence frame. Both counters wrap at 16 bits.
func (s *Simulator) advanceCrank(now time.Time) {
	if s.lastCrank.IsZero() {
		s.lastCrank = now
		return
	}
	elapsed := now.Sub(s.lastCrank).Seconds()
	s.lastCrank = now
	if elapsed <= 0 || s.reading.Cadence == 0 {
		return
	}
	revs := float64(s.reading.Cadence)/60*elapsed + s.remainder
	whole := uint16(revs)
	s.remainder = revs - float64(whole)
	if whole == 0 {
		return
	}
	s.crankRevs += whole
	// Event time marks the last whole revolution, not the frame.
	s.crankTime += uint16(float64(whole) / (float64(s.reading.Cadence) / 60) * 1024)
}
