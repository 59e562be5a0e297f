package config

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/alarm-clock/internal/logger"
	"github.com/oshokin/alarm-clock/internal/service/playback"
	"github.com/oshokin/alarm-clock/internal/service/session"
)

// Config holds every setting shared by the alarm binaries.
type Config struct {
	// ServerAddress is the gRPC address of the ring host.
	ServerAddress string `yaml:"server_addr" toml:"server_addr"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" toml:"log_level"`
	// Session holds the options handed to each ringing session.
	Session Session `yaml:"session" toml:"session"`
	// Timing holds leaf periods in time units.
	Timing Timing `yaml:"timing" toml:"timing"`
	// Devices holds the commands backing each capability.
	Devices Devices `yaml:"devices" toml:"devices"`
	// VoicePack locates pre-rendered voice clips.
	VoicePack VoicePack `yaml:"voice_pack" toml:"voice_pack"`
	// JournalFile receives one line per resolved alarm; empty disables it.
	JournalFile string `yaml:"journal_file" toml:"journal_file"`
}

// Session mirrors the options a host passes when an alarm fires.
type Session struct {
	VoiceEnabled      bool                `yaml:"voice_enabled" toml:"voice_enabled"`
	RecognitionLocale string              `yaml:"recognition_locale" toml:"recognition_locale"`
	HapticEnabled     bool                `yaml:"haptic_enabled" toml:"haptic_enabled"`
	VoiceLoop         playback.LoopPolicy `yaml:"voice_loop" toml:"voice_loop"`
}

// Timing expresses leaf periods as multiples of Unit.
type Timing struct {
	// Unit is the length of one time unit.
	Unit time.Duration `yaml:"unit" toml:"unit"`
	// VoiceInterval is the number of units between voice repeats.
	VoiceInterval int `yaml:"voice_interval" toml:"voice_interval"`
	// ToneInterval is the number of units between tone repeats.
	ToneInterval int `yaml:"tone_interval" toml:"tone_interval"`
	// HapticPeriod is the number of units between pulses.
	HapticPeriod int `yaml:"haptic_period" toml:"haptic_period"`
	// HapticPulse is the absolute length of one pulse.
	HapticPulse time.Duration `yaml:"haptic_pulse" toml:"haptic_pulse"`
	// RecognitionBackoff is the number of units before a recognition restart.
	RecognitionBackoff int `yaml:"recognition_backoff" toml:"recognition_backoff"`
	// MaxRestartFailures is how many recognition cycles may fail in a row.
	MaxRestartFailures int `yaml:"max_restart_failures" toml:"max_restart_failures"`
}

// Duration converts units to wall time.
func (t Timing) Duration(units int) time.Duration {
	return time.Duration(units) * t.Unit
}

// Devices lists the shell commands behind each capability.
// An empty command marks the capability unsupported.
type Devices struct {
	SpeechCommand     string `yaml:"speech_command" toml:"speech_command"`
	PlayerCommand     string `yaml:"player_command" toml:"player_command"`
	HapticCommand     string `yaml:"haptic_command" toml:"haptic_command"`
	RecognizerCommand string `yaml:"recognizer_command" toml:"recognizer_command"`
	// LockDir holds the ownership markers for the speaker and the microphone.
	LockDir string `yaml:"lock_dir" toml:"lock_dir"`
}

// VoicePack locates pre-rendered clips.
type VoicePack struct {
	Dir         string `yaml:"dir" toml:"dir"`
	ManifestURL string `yaml:"manifest_url" toml:"manifest_url"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "alarm-clock-settings.yaml"

	// DefaultServerAddress is the default ring host address.
	DefaultServerAddress = "127.0.0.1:50061"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// DefaultLocale is used when no recognition locale is configured.
	DefaultLocale = "en-US"

	// DefaultVoicePackDir is where voice clips are installed.
	DefaultVoicePackDir = "voices"

	defaultUnit               = time.Second
	defaultVoiceInterval      = 30
	defaultToneInterval       = 2
	defaultHapticPeriod       = 2
	defaultHapticPulse        = 400 * time.Millisecond
	defaultRecognitionBackoff = 1
	defaultMaxRestartFailures = 5
	maxToneInterval           = 2
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownLogLevel is returned for an unparseable log level.
	errUnknownLogLevel = errors.New("unknown log level")
	// errUnknownVoiceLoop is returned for an unknown voice loop policy.
	errUnknownVoiceLoop = errors.New("voice_loop must be repeat or once")
	// errNegativeTiming is returned for negative timing values.
	errNegativeTiming = errors.New("timing values must not be negative")
)

// Default returns settings usable without a file: voice, haptics and
// recognition enabled, device commands left for the platform to fill in.
func Default() *Config {
	cfg := &Config{
		Session: Session{
			VoiceEnabled:  true,
			HapticEnabled: true,
		},
	}

	// Defaults cannot fail validation.
	_ = Validate(cfg)

	return cfg
}

// Example returns the defaults with the usual Linux device commands filled in.
func Example() *Config {
	cfg := Default()
	cfg.LogLevel = "info"
	cfg.Devices.SpeechCommand = "espeak"
	// Without a file argument aplay reads WAV from stdin.
	cfg.Devices.PlayerCommand = "aplay -q"

	return cfg
}

// ApplyLogLevel sets the global log level from the settings.
func (c *Config) ApplyLogLevel() {
	if level, ok := logger.ParseLogLevel(c.LogLevel); ok {
		logger.SetLevel(level)
	}
}

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	cfg := Default()
	if err := unmarshal(path, contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := marshal(path, cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// isTOML reports whether path names a TOML file; everything else is YAML.
func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func unmarshal(path string, contents []byte, cfg *Config) error {
	if !isTOML(path) {
		return yaml.Unmarshal(contents, cfg)
	}

	_, err := toml.Decode(string(contents), cfg)

	return err
}

func marshal(path string, cfg *Config) ([]byte, error) {
	if !isTOML(path) {
		return yaml.Marshal(cfg)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Validate checks the settings and fills in defaults for unset values.
//
//nolint:cyclop // A flat list of independent checks reads best.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ServerAddress == "" {
		cfg.ServerAddress = DefaultServerAddress
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.ServerAddress); err != nil {
		return fmt.Errorf("invalid server address: %w", err)
	}

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("%w: %q", errUnknownLogLevel, cfg.LogLevel)
	}

	switch cfg.Session.VoiceLoop {
	case "":
		cfg.Session.VoiceLoop = playback.LoopRepeat
	case playback.LoopRepeat, playback.LoopOnce:
	default:
		return fmt.Errorf("%w, got %q", errUnknownVoiceLoop, cfg.Session.VoiceLoop)
	}

	if cfg.Session.RecognitionLocale == "" {
		cfg.Session.RecognitionLocale = DefaultLocale
	}

	if err := validateTiming(&cfg.Timing); err != nil {
		return err
	}

	if cfg.VoicePack.Dir == "" {
		cfg.VoicePack.Dir = DefaultVoicePackDir
	}

	if cfg.VoicePack.ManifestURL == "" {
		return nil
	}

	if _, err := url.ParseRequestURI(cfg.VoicePack.ManifestURL); err != nil {
		return fmt.Errorf("invalid voice pack manifest URI: %w", err)
	}

	return nil
}

func validateTiming(t *Timing) error {
	if t.Unit < 0 || t.VoiceInterval < 0 || t.ToneInterval < 0 || t.HapticPeriod < 0 ||
		t.HapticPulse < 0 || t.RecognitionBackoff < 0 || t.MaxRestartFailures < 0 {
		return errNegativeTiming
	}

	defaultInt := func(v *int, def int) {
		if *v == 0 {
			*v = def
		}
	}

	if t.Unit == 0 {
		t.Unit = defaultUnit
	}

	if t.HapticPulse == 0 {
		t.HapticPulse = defaultHapticPulse
	}

	defaultInt(&t.VoiceInterval, defaultVoiceInterval)
	defaultInt(&t.ToneInterval, defaultToneInterval)
	defaultInt(&t.HapticPeriod, defaultHapticPeriod)
	defaultInt(&t.RecognitionBackoff, defaultRecognitionBackoff)
	defaultInt(&t.MaxRestartFailures, defaultMaxRestartFailures)

	// The fallback tone must stay urgent.
	t.ToneInterval = min(t.ToneInterval, maxToneInterval)

	return nil
}

// SessionOptions returns the controller options for one ringing session.
func (c *Config) SessionOptions() session.Config {
	return session.Config{
		VoiceEnabled:      c.Session.VoiceEnabled,
		RecognitionLocale: c.Session.RecognitionLocale,
		HapticEnabled:     c.Session.HapticEnabled,
		TickInterval:      c.Timing.Unit,
	}
}
