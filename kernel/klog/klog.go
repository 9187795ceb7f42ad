// Package klog builds the zerolog loggers used by the kernel drivers and the
// host tools. Output is rendered with a console writer; colour is only used
// when writing to a terminal.
package klog

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Environment variables consulted by FromEnv.
const (
	EnvLogLevel     = "STIVALE_LOG_LEVEL"
	EnvLogTimestamp = "STIVALE_LOG_TIMESTAMP"
	EnvLogNoColor   = "STIVALE_LOG_NOCOLOR"
)

// Boot command line keys consulted by FromCmdLine.
const (
	CmdLineLogLevel   = "logLevel"
	CmdLineLogNoColor = "logNoColor"
)

var (
	isTerminalFn = func(fd uintptr) bool {
		return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
	getenvFn = os.Getenv
)

// Config controls the logger returned by New.
type Config struct {
	Level     zerolog.Level
	NoColor   bool
	Timestamp bool
}

// DefaultConfig returns the configuration used when no overrides are set.
func DefaultConfig() Config {
	return Config{
		Level:     zerolog.InfoLevel,
		Timestamp: true,
	}
}

// FromEnv applies the STIVALE_LOG_* overrides to cfg.
func FromEnv(cfg *Config) {
	if lvl, ok := parseLevel(getenvFn(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(getenvFn(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(getenvFn(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
}

// FromCmdLine applies logLevel=<level> and logNoColor from the boot command
// line to cfg. There is no wall clock this early so timestamps are disabled.
func FromCmdLine(cfg *Config, kv map[string]string) {
	cfg.Timestamp = false

	if lvl, ok := parseLevel(kv[CmdLineLogLevel]); ok {
		cfg.Level = lvl
	}

	switch v, found := kv[CmdLineLogNoColor]; {
	case !found:
	case v == CmdLineLogNoColor: // bare flag
		cfg.NoColor = true
	default:
		if b, ok := parseBool(v); ok {
			cfg.NoColor = b
		}
	}
}

// New returns a logger that writes human readable output to out.
func New(out io.Writer, cfg Config) zerolog.Logger {
	noColor := true
	if f, ok := out.(*os.File); ok && !cfg.NoColor && isTerminalFn(f.Fd()) {
		noColor = false
		out = colorable.NewColorable(f)
	}

	w := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    noColor,
		TimeFormat: time.RFC3339,
	}
	if !cfg.Timestamp {
		w.PartsExclude = []string{zerolog.TimestampFieldName}
	}

	ctx := zerolog.New(w).Level(cfg.Level).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}

	return ctx.Logger()
}

// Module returns a child logger that tags every event with the module name.
func Module(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("module", name).Logger()
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
