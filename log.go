package vault

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig controls the process logger.
type LogConfig struct {
	// Path of the log file. Empty logs to Output (stderr by default).
	Path string
	// MaxSizeMB is the size at which the log file rotates. Defaults to 10.
	MaxSizeMB int
	// MaxBackups is the number of rotated files kept. Defaults to 3.
	MaxBackups int
	// Debug lowers the level to debug.
	Debug bool
	// JSON writes raw JSON lines instead of the console format when logging
	// to Output.
	JSON bool
	// Output overrides stderr. Ignored when Path is set.
	Output io.Writer
}

// NewLogger builds the process logger described by cfg.
func NewLogger(cfg LogConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}

	var w io.Writer
	switch {
	case cfg.Path != "":
		_ = os.MkdirAll(filepath.Dir(cfg.Path), 0755)
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		backups := cfg.MaxBackups
		if backups <= 0 {
			backups = 3
		}
		w = &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    maxSize,
			MaxBackups: backups,
			Compress:   true,
		}
	default:
		out := cfg.Output
		if out == nil {
			out = os.Stderr
		}
		if cfg.JSON {
			w = out
		} else {
			w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
		}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// LogConfigFrom derives the logger settings from a client Config.
func LogConfigFrom(cfg Config) LogConfig {
	return LogConfig{Path: cfg.LogPath, Debug: cfg.Debug}
}
