// Package logging provides structured logging for the turn engine using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentcore/turnengine/internal/config"
)

// Logger is the global logger instance. Components log through this rather
// than fmt.Println so output stays structured and level-filterable.
var Logger zerolog.Logger

var logFile *os.File

// Level is re-exported for callers that don't want to import zerolog directly.
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config holds logger configuration.
type Config struct {
	Level      Level
	Output     io.Writer
	Pretty     bool
	TimeFormat string
	LogToFile  bool
	// LogDir overrides where timestamped log files are written. Empty
	// defers to the XDG state directory resolved by internal/config.
	LogDir string
}

// DefaultConfig returns the logger configuration used when nothing else is set.
func DefaultConfig() Config {
	return Config{
		Level:      InfoLevel,
		Output:     os.Stderr,
		Pretty:     false,
		TimeFormat: time.RFC3339,
		LogToFile:  false,
	}
}

// Init (re)initializes the global logger with the given configuration.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}
	if cfg.LogDir == "" {
		cfg.LogDir = config.GetPaths().LogsPath()
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat

	var writers []io.Writer

	var consoleOutput io.Writer = cfg.Output
	if cfg.Pretty {
		consoleOutput = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: cfg.TimeFormat}
	}
	writers = append(writers, consoleOutput)

	if cfg.LogToFile {
		if logFile != nil {
			logFile.Close()
		}
		if err := os.MkdirAll(cfg.LogDir, 0755); err == nil {
			timestamp := time.Now().Format("20060102-150405")
			logPath := filepath.Join(cfg.LogDir, fmt.Sprintf("turnengine-%s.log", timestamp))
			f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err == nil {
				logFile = f
				writers = append(writers, logFile)
			}
		}
	}

	var output io.Writer
	if len(writers) == 1 {
		output = writers[0]
	} else {
		output = zerolog.MultiLevelWriter(writers...)
	}

	Logger = zerolog.New(output).Level(cfg.Level).With().Timestamp().Logger()
}

// GetLogFilePath returns the current log file path, or "" if not logging to file.
func GetLogFilePath() string {
	if logFile != nil {
		return logFile.Name()
	}
	return ""
}

// Close closes the log file if one is open.
func Close() {
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// ParseLevel parses a log level string case-insensitively, defaulting to Info.
func ParseLevel(level string) Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return DebugLevel
	case "INFO":
		return InfoLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	case "FATAL":
		return FatalLevel
	default:
		return InfoLevel
	}
}

func Debug() *zerolog.Event { return Logger.Debug() }
func Info() *zerolog.Event  { return Logger.Info() }
func Warn() *zerolog.Event  { return Logger.Warn() }
func Error() *zerolog.Event { return Logger.Error() }
func Fatal() *zerolog.Event { return Logger.Fatal() }

func With() zerolog.Context { return Logger.With() }

func init() {
	Init(DefaultConfig())
}
