package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/sirupsen/logrus"

	"github.com/lowaak/smart-trainer/conditioning-timer/internal/config"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/sensors"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/store"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/workout"
	"github.com/lowaak/smart-trainer/conditioning-timer/internal/zones"
)

const defaultWorkout = "Shift Intervals"

// ReferenceStore loads and saves participant reference values.
type ReferenceStore interface {
	Reference(ctx context.Context, participantID string) (zones.Reference, error)
	SaveReference(ctx context.Context, participantID string, ref zones.Reference) error
}

// loadWorkout reads --workout-file, else the named built-in workout.
func loadWorkout(cfg config.Config) (workout.Workout, error) {
	if cfg.WorkoutFile != "" {
		return workout.LoadFile(cfg.WorkoutFile)
	}
	name := cfg.Workout
	if name == "" {
		name = defaultWorkout
	}
	w, ok := workout.Find(name)
	if !ok {
		return workout.Workout{}, fmt.Errorf("unknown workout %q, use --list to see the built-in workouts", name)
	}
	return w, nil
}

// resolveReference combines the flags with the participant's stored values.
// A flag wins over the stored value of the same field. A missing store or
// participant leaves the unset fields at zero, which makes zones unavailable.
func resolveReference(ctx context.Context, cfg config.Config, refs ReferenceStore, logger logrus.FieldLogger) (zones.Reference, error) {
	ref := zones.Reference{
		MaxHeartRate:       cfg.MaxHeartRate,
		ThresholdHeartRate: cfg.ThresholdHeartRate,
		FTP:                cfg.FTP,
	}
	if refs == nil || cfg.Participant == "" {
		return ref, nil
	}

	stored, err := refs.Reference(ctx, cfg.Participant)
	switch {
	case errors.Is(err, store.ErrNotFound):
		logger.WithField("participant", cfg.Participant).Debug("no stored reference values")
	case err != nil:
		logger.WithError(err).Warn("could not load reference values")
	default:
		if ref.MaxHeartRate == 0 {
			ref.MaxHeartRate = stored.MaxHeartRate
		}
		if ref.ThresholdHeartRate == 0 {
			ref.ThresholdHeartRate = stored.ThresholdHeartRate
		}
		if ref.FTP == 0 {
			ref.FTP = stored.FTP
		}
	}

	if cfg.SaveReference {
		if err := refs.SaveReference(ctx, cfg.Participant, ref); err != nil {
			return zones.Reference{}, err
		}
		logger.WithField("participant", cfg.Participant).Info("reference values saved")
	}
	return ref, nil
}

func bleDevices(cfg config.Config) []sensors.DeviceSpec {
	var devices []sensors.DeviceSpec
	if cfg.BLEHeartRate != "" {
		devices = append(devices, sensors.DeviceSpec{Address: cfg.BLEHeartRate, Stream: sensors.StreamHeartRate})
	}
	if cfg.BLEPower != "" {
		devices = append(devices, sensors.DeviceSpec{Address: cfg.BLEPower, Stream: sensors.StreamCyclingPower})
	}
	if cfg.BLECadence != "" {
		devices = append(devices, sensors.DeviceSpec{Address: cfg.BLECadence, Stream: sensors.StreamCadence})
	}
	return devices
}

func printWorkouts(out io.Writer) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPROFILE\tSEGMENTS\tDURATION")
	for _, name := range workout.Names() {
		w, _ := workout.Find(name)
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", w.Name, w.Profile, len(w.Segments), w.TotalDuration())
	}
	tw.Flush()
}

func printHistory(ctx context.Context, out io.Writer, results *store.Store, participant string) error {
	sessions, err := results.RecentSessions(ctx, participant, 20)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "no sessions recorded")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tWORKOUT\tPROFILE\tPARTICIPANT\tSEGMENTS\tACHIEVEMENT")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%.0f%%\n",
			s.StartedAt.Local().Format("2006-01-02 15:04"), s.WorkoutName, s.Profile, s.ParticipantID, s.RecordCount, s.AverageAchievement)
	}
	return tw.Flush()
}

// Controls are the session commands headless input can send.
// session.Session satisfies it.
type Controls interface {
	TogglePause()
	Skip()
	Reset()
	Stop()
	CompleteStep()
}

// readControls turns input lines into session commands until r is exhausted
// or ctx is done. An empty line or "c" completes the current exercise step.
func readControls(ctx context.Context, r io.Reader, ctrl Controls, logger logrus.FieldLogger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		switch cmd := strings.ToLower(strings.TrimSpace(scanner.Text())); cmd {
		case "", "c":
			ctrl.CompleteStep()
		case "p":
			ctrl.TogglePause()
		case "n":
			ctrl.Skip()
		case "r":
			ctrl.Reset()
		case "x":
			ctrl.Stop()
		default:
			logger.Debugf("unknown headless command %q", cmd)
		}
	}
	if err := scanner.Err(); err != nil {
		logger.WithError(err).Debug("headless input closed")
	}
}

func hasManualSteps(w workout.Workout) bool {
	for _, seg := range w.Segments {
		if seg.Manual() {
			return true
		}
	}
	return false
}
