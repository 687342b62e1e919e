package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel     = "WARDCTL_LOG_LEVEL"
	EnvLogFormat    = "WARDCTL_LOG_FORMAT"
	EnvLogTimestamp = "WARDCTL_LOG_TIMESTAMP"
	EnvLogNoColor   = "WARDCTL_LOG_NOCOLOR"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

type Config struct {
	Level     zerolog.Level
	Format    string
	Timestamp bool
	NoColor   bool
}

var configureOnce sync.Once

func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

func ConfigureTests() {
	Configure(ProfileTest)
}

// Configure installs the process-wide logger once. Later calls are
// no-ops so tests and binaries can both call it unconditionally.
func Configure(profile Profile) {
	configureOnce.Do(func() {
		cfg := Resolve(profile)
		zerolog.SetGlobalLevel(cfg.Level)
		ctx := zerolog.New(NewWriter(cfg)).With()
		if cfg.Timestamp {
			ctx = ctx.Timestamp()
		}
		log.Logger = ctx.Logger()
	})
}

// Resolve returns profile defaults with environment overrides applied.
func Resolve(profile Profile) Config {
	cfg := defaultConfig(profile)
	applyEnvOverrides(&cfg)
	return cfg
}

// NewWriter builds the output writer for cfg.
func NewWriter(cfg Config) io.Writer {
	if cfg.Format == FormatJSON {
		return os.Stdout
	}
	return zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
		NoColor:    cfg.NoColor,
	}
}

func defaultConfig(profile Profile) Config {
	switch profile {
	case ProfileTest:
		return Config{
			Level:     zerolog.DebugLevel,
			Format:    FormatConsole,
			Timestamp: false,
			NoColor:   true,
		}
	default:
		return Config{
			Level:     zerolog.InfoLevel,
			Format:    FormatConsole,
			Timestamp: true,
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	if lvl, ok := parseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if format, ok := parseFormat(os.Getenv(EnvLogFormat)); ok {
		cfg.Format = format
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
}

func parseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func parseFormat(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case FormatConsole:
		return FormatConsole, true
	case FormatJSON:
		return FormatJSON, true
	default:
		return "", false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
