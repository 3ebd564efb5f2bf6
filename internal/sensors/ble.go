package sensors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"tinygo.org/x/bluetooth"

	"github.com/lowaak/smart-trainer/conditioning-timer/internal/safego"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/workout"
)

const (
	sourceBLE          = "ble"
	sourceSimulator    = "simulator"
	defaultScanTimeout = 30 * time.Second
)

// DeviceSpec names a peripheral by address and the stream to subscribe to.
type DeviceSpec struct {
	Address string
	Stream  Stream
}

type BLEOptions struct {
	Adapter     *bluetooth.Adapter
	Devices     []DeviceSpec
	Feed        Publisher
	Counter     Counter
	ScanTimeout time.Duration
	Clock       func() time.Time
	Logger      logrus.FieldLogger
}

// BLEBridge connects to heart rate and power sensors and publishes their
// notifications into the live metrics feed.
type BLEBridge struct {
	adapter     *bluetooth.Adapter
	devices     []DeviceSpec
	feed        Publisher
	counter     Counter
	scanTimeout time.Duration
	clock       func() time.Time
	logger      logrus.FieldLogger
	source      string

	cadence CadenceDecoder

	mu        sync.Mutex
	connected []bluetooth.Device
}

func NewBLEBridge(opts BLEOptions) *BLEBridge {
	if opts.Logger == nil {
		panic("BLEBridge: logger cannot be nil")
	}
	if opts.Feed == nil {
		panic("BLEBridge: feed cannot be nil")
	}
	if opts.Adapter == nil {
		opts.Adapter = bluetooth.DefaultAdapter
	}
	if opts.Counter == nil {
		opts.Counter = nopCounter{}
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = defaultScanTimeout
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &BLEBridge{
		adapter:     opts.Adapter,
		devices:     opts.Devices,
		feed:        opts.Feed,
		counter:     opts.Counter,
		scanTimeout: opts.ScanTimeout,
		clock:       opts.Clock,
		logger:      opts.Logger,
		source:      sourceBLE,
	}
}

// Run enables the adapter, connects every configured device and keeps the
// subscriptions alive until ctx is cancelled. Devices that cannot be reached
// are logged and skipped; Run fails only when none could be subscribed.
func (b *BLEBridge) Run(ctx context.Context) error {
	if len(b.devices) == 0 {
		return nil
	}
	if err := b.adapter.Enable(); err != nil {
		return fmt.Errorf("enable bluetooth adapter: %w", err)
	}

	found, err := b.scan(ctx)
	if err != nil {
		return err
	}

	subscribed := 0
	for _, spec := range b.devices {
		addr, ok := found[strings.ToUpper(spec.Address)]
		if !ok {
			b.logger.Warnf("BLEBridge: device %s not found within %v", spec.Address, b.scanTimeout)
			continue
		}
		if err := b.subscribe(addr, spec); err != nil {
			b.logger.WithError(err).Warnf("BLEBridge: could not subscribe to %s", spec.Address)
			continue
		}
		subscribed++
	}
	if subscribed == 0 {
		return errors.New("no bluetooth sensor could be subscribed")
	}

	<-ctx.Done()
	b.disconnectAll()
	return nil
}

// scan looks for the configured addresses until all are seen, the scan
// timeout elapses or ctx is cancelled.
func (b *BLEBridge) scan(ctx context.Context) (map[string]bluetooth.Address, error) {
	wanted := make(map[string]struct{}, len(b.devices))
	for _, spec := range b.devices {
		wanted[strings.ToUpper(spec.Address)] = struct{}{}
	}

	var mu sync.Mutex
	found := make(map[string]bluetooth.Address, len(wanted))

	scanCtx, cancel := context.WithTimeout(ctx, b.scanTimeout)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	safego.Go(b.logger, func() {
		defer wg.Done()
		<-scanCtx.Done()
		if err := b.adapter.StopScan(); err != nil {
			b.logger.WithError(err).Debug("BLEBridge: stop scan")
		}
	})

	b.logger.Infof("BLEBridge: scanning for %d device(s)", len(wanted))
	err := b.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		addr := strings.ToUpper(result.Address.String())
		if _, ok := wanted[addr]; !ok {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if _, seen := found[addr]; seen {
			return
		}
		found[addr] = result.Address
		b.logger.Infof("BLEBridge: found %s (%s) [RSSI: %d]", result.LocalName(), addr, result.RSSI)
		if len(found) == len(wanted) {
			cancel()
		}
	})
	cancel()
	wg.Wait()
	if err != nil {
		return nil, fmt.Errorf("bluetooth scan: %w", err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()
	return found, nil
}

func (b *BLEBridge) subscribe(addr bluetooth.Address, spec DeviceSpec) error {
	info, ok := streams[spec.Stream]
	if !ok {
		return fmt.Errorf("unknown stream %q", spec.Stream)
	}
	serviceUUID, err := bluetooth.ParseUUID(info.service)
	if err != nil {
		return fmt.Errorf("invalid service UUID %q: %w", info.service, err)
	}
	charUUID, err := bluetooth.ParseUUID(info.characteristic)
	if err != nil {
		return fmt.Errorf("invalid characteristic UUID %q: %w", info.characteristic, err)
	}

	device, err := b.adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	b.mu.Lock()
	b.connected = append(b.connected, device)
	b.mu.Unlock()

	services, err := device.DiscoverServices([]bluetooth.UUID{serviceUUID})
	if err != nil || len(services) == 0 {
		return fmt.Errorf("discover service %s: %w", info.service, errOrMissing(err))
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{charUUID})
	if err != nil || len(chars) == 0 {
		return fmt.Errorf("discover characteristic %s: %w", info.characteristic, errOrMissing(err))
	}

	stream := spec.Stream
	if err := chars[0].EnableNotifications(func(buf []byte) {
		b.handleNotification(stream, buf)
	}); err != nil {
		return fmt.Errorf("enable notifications: %w", err)
	}
	b.logger.Infof("BLEBridge: subscribed to %s on %s", stream, spec.Address)
	return nil
}

// handleNotification decodes one notification and publishes the reading.
func (b *BLEBridge) handleNotification(stream Stream, buf []byte) {
	var (
		values Values
		err    error
	)
	switch stream {
	case StreamHeartRate:
		values, err = ParseHeartRate(buf)
	case StreamCyclingPower:
		values, err = ParseCyclingPower(buf)
	case StreamCadence:
		values, err = b.cadence.Parse(buf)
	default:
		err = fmt.Errorf("unknown stream %q", stream)
	}
	if err != nil {
		b.logger.WithError(err).Debugf("BLEBridge: dropping %s notification", stream)
		b.counter.IncMetricRejections()
		return
	}
	if len(values) == 0 {
		return
	}
	b.feed.Notify(workout.NewMetrics(b.clock(), values))
	b.counter.IncMetricUpdates(b.source)
}

func (b *BLEBridge) disconnectAll() {
	b.mu.Lock()
	devices := b.connected
	b.connected = nil
	b.mu.Unlock()

	for _, d := range devices {
		if err := d.Disconnect(); err != nil {
			b.logger.WithError(err).Warnf("BLEBridge: disconnect %s", d.Address.String())
		}
	}
}

func errOrMissing(err error) error {
	if err != nil {
		return err
	}
	return errors.New("not present on device")
}
