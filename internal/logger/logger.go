package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

var (
	globalLogger *Logger
	once         sync.Once

	// Console output is the default for an interactive tool
	defaultConfig = Config{
		Level:      "info",
		Format:     FormatConsole,
		TimeFormat: time.RFC3339,
		Output:     os.Stderr,
	}
)

// Logger wraps zerolog.Logger with map-based field helpers
type Logger struct {
	zerolog.Logger
	level zerolog.Level
}

// GetLevel returns the level the logger was configured with
func (l *Logger) GetLevel() zerolog.Level {
	if l == nil {
		return zerolog.NoLevel
	}
	if l.level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l.level
}

// LogFormat defines the available log formats
type LogFormat string

const (
	FormatJSON    LogFormat = "json"
	FormatConsole LogFormat = "console"
)

func (f LogFormat) String() string {
	return string(f)
}

// ParseLogFormat parses a string into a LogFormat, defaulting to JSON
func ParseLogFormat(format string) LogFormat {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console", "pretty", "text":
		return FormatConsole
	default:
		return FormatJSON
	}
}

// Config holds the configuration for the logger
type Config struct {
	// Level is the log level (debug, info, warn, error, fatal, panic)
	Level string
	// Format is the log format (json, console)
	Format LogFormat
	// Output is the output writer (default: os.Stderr)
	Output io.Writer
	// TimeFormat is the console time format (default: time.RFC3339)
	TimeFormat string
}

// Get returns the global logger, initializing it with defaults on first use
func Get() *Logger {
	once.Do(func() {
		if globalLogger == nil {
			setupLogger(defaultConfig)
		}
	})
	return globalLogger
}

// ResetForTesting resets the global logger so Setup can run again.
// Only tests should call this.
func ResetForTesting() {
	globalLogger = nil
	once = sync.Once{}
}

// Setup initializes the global logger. Only the first call has any effect.
func Setup(cfg Config) {
	once.Do(func() {
		setupLogger(cfg)
	})
}

// ForceSetup re-initializes the global logger, bypassing the once guard.
// Used when the config file changes the level after early startup logging.
func ForceSetup(cfg Config) {
	once.Do(func() {})
	setupLogger(cfg)
}

func setupLogger(cfg Config) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err == nil && parsed != zerolog.NoLevel {
			level = parsed
		}
	}

	if cfg.Format == "" {
		cfg.Format = FormatJSON
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	var zl zerolog.Logger
	switch cfg.Format {
	case FormatConsole:
		zl = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: cfg.TimeFormat,
		})
	default:
		zl = zerolog.New(output)
	}
	zl = zl.Level(level).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(level)

	globalLogger = &Logger{
		Logger: zl,
		level:  level,
	}

	globalLogger.Debug("Logger initialized", map[string]interface{}{
		"format": string(cfg.Format),
		"level":  level.String(),
	})
}

// New builds a standalone logger that writes JSON to w. Handy in tests.
func New(w io.Writer, level zerolog.Level) *Logger {
	return &Logger{
		Logger: zerolog.New(w).Level(level).With().Timestamp().Logger(),
		level:  level,
	}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop(), level: zerolog.Disabled}
}

// ForComponent returns a child of the global logger tagged with a component name
func ForComponent(name string) *Logger {
	return Get().WithFields(map[string]interface{}{"component": name})
}

type loggerKey struct{}

// NewContext stores the logger in the context.
// A nil logger leaves the context unchanged.
func NewContext(ctx context.Context, l *Logger) context.Context {
	if l == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the logger stored in ctx, or nil
func FromContext(ctx context.Context) *Logger {
	if ctx == nil {
		return nil
	}
	if l, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return l
	}
	return nil
}

// Ctx returns the logger stored in ctx, falling back to fallback and then
// to the global logger.
func Ctx(ctx context.Context, fallback *Logger) *Logger {
	if l := FromContext(ctx); l != nil {
		return l
	}
	if fallback != nil {
		return fallback
	}
	return Get()
}

// WithFields returns a child logger carrying the given fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	if l == nil {
		return Get().WithFields(fields)
	}
	if len(fields) == 0 {
		return l
	}

	zctx := l.Logger.With()
	for k, v := range fields {
		zctx = zctx.Interface(k, v)
	}
	return &Logger{
		Logger: zctx.Logger(),
		level:  l.level,
	}
}

func (l *Logger) emit(ev *zerolog.Event, msg string, fields []map[string]interface{}) {
	if ev == nil {
		return
	}
	if len(fields) > 0 && len(fields[0]) > 0 {
		ev = ev.Fields(fields[0])
	}
	ev.Msg(msg)
}

// Info logs at info level with optional fields
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	if l == nil {
		return
	}
	l.emit(l.Logger.Info(), msg, fields)
}

// Infof logs a formatted message at info level
func (l *Logger) Infof(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.Logger.Info().Msgf(format, args...)
}

// Warn logs at warn level with optional fields
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	if l == nil {
		return
	}
	l.emit(l.Logger.Warn(), msg, fields)
}

// Warnf logs a formatted message at warn level
func (l *Logger) Warnf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.Logger.Warn().Msgf(format, args...)
}

// Debug logs at debug level with optional fields
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	if l == nil {
		return
	}
	l.emit(l.Logger.Debug(), msg, fields)
}

// Debugf logs a formatted message at debug level
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.Logger.Debug().Msgf(format, args...)
}

// Error logs at error level with optional fields
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	if l == nil {
		return
	}
	l.emit(l.Logger.Error(), msg, fields)
}

// Errorf logs a formatted message at error level
func (l *Logger) Errorf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.Logger.Error().Msgf(format, args...)
}
