package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFormat represents available log formats
type LogFormat int

const (
	FormatJSON LogFormat = iota
	FormatConsole
	FormatText
)

// String returns string representation of LogFormat
func (lf LogFormat) String() string {
	switch lf {
	case FormatJSON:
		return "json"
	case FormatConsole:
		return "console"
	case FormatText:
		return "text"
	default:
		return "console"
	}
}

// ParseFormat parses a string format to LogFormat, defaulting to console.
func ParseFormat(formatStr string) LogFormat {
	switch strings.ToLower(formatStr) {
	case "json":
		return FormatJSON
	case "console":
		return FormatConsole
	case "text":
		return FormatText
	default:
		return FormatConsole
	}
}

// New creates a zerolog logger from file-based configuration. Console output
// goes to stderr; file output rotates via lumberjack when LogFile is set.
func New(cfg FileLogConfig) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return zerolog.Logger{}, err
	}
	if cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}

	format := ParseFormat(cfg.LogFormat)

	writers := []io.Writer{createConsoleWriter(format)}
	if cfg.LogFile != "" {
		writers = append(writers, createFileWriter(cfg))
	}

	multiWriter := zerolog.MultiLevelWriter(writers...)
	zl := zerolog.New(multiWriter).
		Level(level).
		With().
		Timestamp().
		Logger()

	zerolog.SetGlobalLevel(level)
	return zl, nil
}

func createConsoleWriter(format LogFormat) io.Writer {
	if format == FormatJSON {
		return os.Stderr
	}
	return zerolog.ConsoleWriter{Out: os.Stderr}
}

func createFileWriter(cfg FileLogConfig) io.Writer {
	// Directory creation failure falls through to lumberjack, which will
	// surface the error on first write.
	_ = os.MkdirAll(filepath.Dir(cfg.LogFile), 0755)

	maxSize := cfg.MaxLogSizeMB
	if maxSize <= 0 {
		maxSize = DefaultMaxLogSizeMB
	}

	return &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxLogBackups,
		LocalTime:  true,
	}
}
