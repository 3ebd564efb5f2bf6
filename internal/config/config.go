package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "TRAINER"

// Profiles accepted by --profile.
var Profiles = []string{"conditioning", "enhanced", "hybrid"}

// Config is the resolved runtime configuration. Values come from flags, then
// TRAINER_* environment variables, then the optional config file, then defaults.
type Config struct {
	Workout     string
	WorkoutFile string
	Profile     string
	Participant string

	MaxHeartRate       float64
	ThresholdHeartRate float64
	FTP                float64
	SaveReference      bool

	SoundsDir     string
	PlayerCommand string
	Bell          bool

	BridgeAddr   string
	BLEHeartRate string
	BLEPower     string
	BLECadence   string
	Simulate     bool

	DBPath string

	LogFile  string
	LogLevel string
	LogJSON  bool

	TickInterval time.Duration
	Headless     bool
	List         bool
	History      bool
}

// Load parses args (without the program name) and resolves the configuration.
// It returns pflag.ErrHelp when help was requested.
func Load(args []string, output io.Writer) (Config, error) {
	fs := pflag.NewFlagSet("conditioning-timer", pflag.ContinueOnError)
	fs.SetOutput(output)

	fs.String("config", "", "config file (yaml, toml or json)")
	fs.StringP("workout", "w", "", "built-in workout name")
	fs.String("workout-file", "", "YAML workout definition, overrides --workout")
	fs.StringP("profile", "p", "", "presentation profile: conditioning, enhanced or hybrid")
	fs.String("participant", "", "participant id stored with execution records")
	fs.Float64("max-hr", 0, "maximum heart rate in bpm")
	fs.Float64("threshold-hr", 0, "threshold heart rate in bpm")
	fs.Float64("ftp", 0, "functional threshold power in watts")
	fs.Bool("save-reference", false, "store the given reference values for the participant")
	fs.String("sounds-dir", "", "directory with <cue>.wav files")
	fs.String("player-command", "", `external audio player, e.g. "aplay -q" or "afplay {}"`)
	fs.Bool("bell", true, "ring the terminal bell when a cue cannot be played")
	fs.String("bridge-addr", "127.0.0.1:8765", "listen address of the HTTP metrics bridge, empty to disable")
	fs.String("ble-heart-rate", "", "BLE address of a heart rate monitor")
	fs.String("ble-power", "", "BLE address of a power meter")
	fs.String("ble-cadence", "", "BLE address of a speed and cadence sensor")
	fs.Bool("simulate", false, "feed simulated heart rate, power and cadence readings")
	fs.String("db-path", defaultDBPath(), "SQLite database for results and references, empty to disable")
	fs.String("log-file", "conditioning-timer.log", "log file, rotated")
	fs.String("log-level", "info", "log level")
	fs.Bool("log-json", false, "log in JSON format")
	fs.Duration("tick-interval", time.Second, "countdown tick period")
	fs.Bool("headless", false, "run without the terminal UI")
	fs.Bool("list", false, "list built-in workouts and exit")
	fs.Bool("history", false, "show recent sessions and exit")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	v := viper.New()
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(keyFor(f.Name), f)
	})
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := Config{
		Workout:            v.GetString("workout"),
		WorkoutFile:        v.GetString("workout_file"),
		Profile:            strings.ToLower(v.GetString("profile")),
		Participant:        v.GetString("participant"),
		MaxHeartRate:       v.GetFloat64("max_hr"),
		ThresholdHeartRate: v.GetFloat64("threshold_hr"),
		FTP:                v.GetFloat64("ftp"),
		SaveReference:      v.GetBool("save_reference"),
		SoundsDir:          v.GetString("sounds_dir"),
		PlayerCommand:      v.GetString("player_command"),
		Bell:               v.GetBool("bell"),
		BridgeAddr:         v.GetString("bridge_addr"),
		BLEHeartRate:       v.GetString("ble_heart_rate"),
		BLEPower:           v.GetString("ble_power"),
		BLECadence:         v.GetString("ble_cadence"),
		Simulate:           v.GetBool("simulate"),
		DBPath:             v.GetString("db_path"),
		LogFile:            v.GetString("log_file"),
		LogLevel:           v.GetString("log_level"),
		LogJSON:            v.GetBool("log_json"),
		TickInterval:       v.GetDuration("tick_interval"),
		Headless:           v.GetBool("headless"),
		List:               v.GetBool("list"),
		History:            v.GetBool("history"),
	}
	return cfg.normalize()
}

// normalize defaults out-of-range values and rejects unknown profiles.
func (c Config) normalize() (Config, error) {
	if c.Profile != "" && !validProfile(c.Profile) {
		return Config{}, fmt.Errorf("unknown profile %q, want one of %s", c.Profile, strings.Join(Profiles, ", "))
	}
	if c.MaxHeartRate < 0 {
		c.MaxHeartRate = 0
	}
	if c.ThresholdHeartRate < 0 {
		c.ThresholdHeartRate = 0
	}
	if c.FTP < 0 {
		c.FTP = 0
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.SaveReference && c.Participant == "" {
		return Config{}, errors.New("--save-reference needs --participant")
	}
	return c, nil
}

func validProfile(p string) bool {
	for _, known := range Profiles {
		if p == known {
			return true
		}
	}
	return false
}

// keyFor maps a flag name to its viper key, which is also the environment
// variable suffix and the config file key.
func keyFor(flag string) string {
	return strings.ReplaceAll(flag, "-", "_")
}

func defaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "conditioning-timer.db"
	}
	return filepath.Join(dir, "conditioning-timer", "results.db")
}
