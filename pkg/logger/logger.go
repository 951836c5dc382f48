package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/patchwell/sidechat/pkg/config"
)

// LogLevel represents the logging level.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger provides a leveled logging interface writing to a configured file.
type Logger struct {
	level  LogLevel
	logger *log.Logger
	file   *os.File
	mu     sync.Mutex
}

var (
	defaultLogger *Logger
	initOnce      sync.Once
)

// Init initializes the default logger from the global config.
func Init() error {
	var err error
	initOnce.Do(func() {
		settings := config.Get()
		var logger *Logger
		logger, err = New(ParseLevel(settings.Logging.Level), settings.Logging.File, settings.Logging.Persist)
		if err != nil {
			return
		}
		defaultLogger = logger
	})
	return err
}

// New creates a Logger writing to logFile. When logFile is empty the logger
// discards output. When persist is false an existing file is truncated.
func New(level LogLevel, logFile string, persist bool) (*Logger, error) {
	var out io.Writer = io.Discard
	var file *os.File

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		flags := os.O_CREATE | os.O_WRONLY
		if persist {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}

		f, err := os.OpenFile(logFile, flags, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
		file = f
	}

	return &Logger{
		level:  level,
		logger: log.New(out, "", log.LstdFlags),
		file:   file,
	}, nil
}

// ParseLevel converts a level name to a LogLevel, defaulting to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l *Logger) logf(level LogLevel, format string, args ...any) {
	if level < l.level {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Printf("[%s] %s", level, fmt.Sprintf(format, args...))
}

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...any) { l.logf(LevelDebug, format, args...) }

// Info logs at info level.
func (l *Logger) Info(format string, args ...any) { l.logf(LevelInfo, format, args...) }

// Warn logs at warn level.
func (l *Logger) Warn(format string, args ...any) { l.logf(LevelWarn, format, args...) }

// Error logs at error level.
func (l *Logger) Error(format string, args ...any) { l.logf(LevelError, format, args...) }

// Close releases the underlying log file.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func getDefault() *Logger {
	if defaultLogger == nil {
		defaultLogger = &Logger{level: LevelInfo, logger: log.New(io.Discard, "", log.LstdFlags)}
	}
	return defaultLogger
}

// Debug logs at debug level using the default logger.
func Debug(format string, args ...any) { getDefault().Debug(format, args...) }

// Info logs at info level using the default logger.
func Info(format string, args ...any) { getDefault().Info(format, args...) }

// Warn logs at warn level using the default logger.
func Warn(format string, args ...any) { getDefault().Warn(format, args...) }

// Error logs at error level using the default logger.
func Error(format string, args ...any) { getDefault().Error(format, args...) }
