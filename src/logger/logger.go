package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"ta-fetcher/src/models"

	"gopkg.in/natefinch/lumberjack.v2"
)

// -----------------------------------------------------------------------------

// Logger provides leveled, component-named logging
type Logger struct {
	name   string
	logger *slog.Logger
	config interface{}
}

var (
	outputMu sync.Mutex
	output   io.Writer = os.Stdout
	rotating *lumberjack.Logger
	level    = new(slog.LevelVar)
)

// LevelCritical sits above slog.LevelError.
const LevelCritical = slog.Level(12)

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance. When config is a *models.MConfig its
// level and rotating log file are applied to every logger of the process.
func NewLogger(config interface{}, name string) *Logger {
	if cfg := asConfig(config); cfg != nil {
		Configure(cfg)
	}

	outputMu.Lock()
	w := output
	outputMu.Unlock()

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelCritical {
					a.Value = slog.StringValue("CRITICAL")
				}
			}
			return a
		},
	})

	return &Logger{
		name:   name,
		logger: slog.New(handler).With("component", name),
		config: config,
	}
}

// -----------------------------------------------------------------------------

// Configure sets the process-wide level and output from the application config.
func Configure(cfg *models.MConfig) {
	level.Set(ParseLevel(cfg.LogLevel))

	outputMu.Lock()
	defer outputMu.Unlock()

	if cfg.Logging.File == "" {
		output = os.Stdout
		return
	}
	if rotating != nil && rotating.Filename == cfg.Logging.File {
		return
	}
	rotating = &lumberjack.Logger{
		Filename:   cfg.Logging.File,
		MaxSize:    orDefault(cfg.Logging.MaxSizeMB, 10),
		MaxBackups: orDefault(cfg.Logging.MaxBackups, 3),
		MaxAge:     orDefault(cfg.Logging.MaxAgeDays, 28),
		Compress:   cfg.Logging.Compress,
	}
	output = io.MultiWriter(os.Stdout, rotating)
}

// -----------------------------------------------------------------------------

// SetOutput redirects all loggers created afterwards (used by tests).
func SetOutput(w io.Writer) {
	outputMu.Lock()
	output = w
	outputMu.Unlock()
}

// -----------------------------------------------------------------------------

// ParseLevel maps DEBUG/INFO/WARNING/ERROR/CRITICAL to slog levels, defaulting to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	case "CRITICAL":
		return LevelCritical
	default:
		return slog.LevelInfo
	}
}

// -----------------------------------------------------------------------------

// Name returns the component name of the logger
func (l *Logger) Name() string {
	return l.name
}

// -----------------------------------------------------------------------------

// Debug logs diagnostic messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(slog.LevelDebug, format, args...)
}

// -----------------------------------------------------------------------------

// Warning logs recoverable problems
func (l *Logger) Warning(format string, args ...interface{}) {
	l.log(slog.LevelWarn, format, args...)
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(slog.LevelInfo, format, args...)
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(slog.LevelError, format, args...)
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.log(LevelCritical, format, args...)
	os.Exit(1)
}

// -----------------------------------------------------------------------------

func (l *Logger) log(lvl slog.Level, format string, args ...interface{}) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, lvl) {
		return
	}
	l.logger.Log(ctx, lvl, fmt.Sprintf(format, args...))
}

// -----------------------------------------------------------------------------

func asConfig(config interface{}) *models.MConfig {
	switch c := config.(type) {
	case *models.MConfig:
		return c
	case interface{ Model() *models.MConfig }:
		return c.Model()
	}
	return nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
