package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"

	"github.com/lowaak/smart-trainer/conditioning-timer/internal/audio"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/config"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/console"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/events"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/logging"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/safego"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/sensors"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/session"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/store"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/telemetry"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/workout"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "conditioning-timer:", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "conditioning-timer:", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) (err error) {
	logger, logCloser := logging.New(logging.LoggerSetupParams{
		LogFileName:   cfg.LogFile,
		LogToStdout:   cfg.Headless,
		LogLevel:      cfg.LogLevel,
		LogFormatJSON: cfg.LogJSON,
	})
	defer multierr.AppendInvoke(&err, multierr.Close(logCloser))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.List {
		printWorkouts(os.Stdout)
		return nil
	}

	var results *store.Store
	if cfg.DBPath != "" {
		results, err = store.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer multierr.AppendInvoke(&err, multierr.Close(results))
	}

	if cfg.History {
		if results == nil {
			return errors.New("--history needs a database, set --db-path")
		}
		return printHistory(ctx, os.Stdout, results, cfg.Participant)
	}

	w, err := loadWorkout(cfg)
	if err != nil {
		return err
	}
	// without --profile the workout picks its own
	var profile session.Profile
	if cfg.Profile != "" {
		if profile, err = session.ParseProfile(cfg.Profile); err != nil {
			return err
		}
	}

	var refs ReferenceStore
	if results != nil {
		refs = results
	}
	ref, err := resolveReference(ctx, cfg, refs, logger)
	if err != nil {
		return err
	}

	metrics := telemetry.New()
	feed := events.NewChannelEvent[workout.Metrics](false)

	var sink audio.Sink
	if cfg.PlayerCommand != "" {
		sink = audio.CommandSink{Command: cfg.PlayerCommand}
	}
	var bell io.Writer
	if cfg.Bell {
		bell = os.Stdout
	}
	player := metrics.CountingPlayer(audio.NewService(audio.Options{
		SoundsDir: cfg.SoundsDir,
		Sink:      sink,
		Bell:      bell,
		Logger:    logger,
	}))

	done := make(chan struct{})
	var doneOnce sync.Once
	sessOpts := session.Options{
		Workout:       w,
		Profile:       profile,
		ParticipantID: cfg.Participant,
		Reference:     ref,
		Player:        player,
		Feed:          feed,
		Telemetry:     metrics,
		TickInterval:  cfg.TickInterval,
		OnComplete: func(result store.SessionResult) {
			logger.WithFields(logrus.Fields{
				"session": result.ID,
				"records": len(result.Records),
			}).Info("workout complete")
			doneOnce.Do(func() { close(done) })
		},
		Logger: logger,
	}
	if results != nil {
		sessOpts.Results = results
	}
	sess := session.New(sessOpts)
	defer sess.Shutdown()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg        sync.WaitGroup
		errMu     sync.Mutex
		bridgeErr error
	)
	background := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		safego.Go(logger, func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				logger.WithError(err).Errorf("%s stopped", name)
				errMu.Lock()
				bridgeErr = multierr.Append(bridgeErr, err)
				errMu.Unlock()
			}
		})
	}

	if cfg.BridgeAddr != "" {
		bridge := sensors.NewHTTPBridge(sensors.HTTPOptions{
			Feed:      feed,
			Counter:   metrics,
			Status:    sess.Status,
			Telemetry: metrics.Handler(),
			Logger:    logger,
		})
		background("metrics bridge", func(ctx context.Context) error {
			return bridge.ListenAndServe(ctx, cfg.BridgeAddr)
		})
	}
	if devices := bleDevices(cfg); len(devices) > 0 {
		ble := sensors.NewBLEBridge(sensors.BLEOptions{
			Devices: devices,
			Feed:    feed,
			Counter: metrics,
			Logger:  logger,
		})
		background("bluetooth bridge", ble.Run)
	}
	if cfg.Simulate {
		sim := sensors.NewSimulator(sensors.SimulatorOptions{
			Feed:    feed,
			Counter: metrics,
			Logger:  logger,
		})
		background("sensor simulator", sim.Run)
	}

	var runErr error
	if cfg.Headless {
		runHeadless(ctx, sess, w, os.Stdin, done, logger)
	} else {
		ui := console.New(console.Options{
			Controller: sess,
			Views:      sess.Views(),
			Profile:    sess.Profile(),
			Logger:     logger,
		})
		runErr = ui.Run(ctx)
	}

	cancel()
	wg.Wait()
	return multierr.Combine(runErr, bridgeErr)
}

// runHeadless starts the workout, reads commands from in and waits for the
// workout to complete or for ctx.
func runHeadless(ctx context.Context, sess *session.Session, w workout.Workout, in io.Reader, done <-chan struct{}, logger logrus.FieldLogger) {
	logger.Info("running headless, interrupt to stop")
	if hasManualSteps(w) {
		logger.Info("press enter or c to complete exercise steps")
	}
	safego.GoQuiet(logger, func() { readControls(ctx, in, sess, logger) })
	sess.TogglePause()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Info("interrupted")
	}
}
