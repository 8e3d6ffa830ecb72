// Package logger provides leveled, structured logging for latch.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents the severity level of log messages
type Level int

const (
	TraceLevel Level = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case TraceLevel:
		return "TRACE"
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a textual level into a Level. Unknown strings map to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return TraceLevel
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Config holds the logger configuration
type Config struct {
	Level     Level
	UseColor  bool
	JSON      bool
	Component string
}

// Logger represents a logger instance
type Logger struct {
	config Config
	logger *log.Logger
}

var (
	defaultMu     sync.RWMutex
	defaultLogger *Logger
)

// Initialize sets up the default logger
func Initialize(config Config) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = &Logger{
		config: config,
		logger: log.New(os.Stderr, "", 0),
	}
}

// New creates a standalone logger writing to w. Tests use this to avoid
// cross-talk with the default instance.
func New(config Config, w io.Writer) *Logger {
	return &Logger{config: config, logger: log.New(w, "", 0)}
}

// Field represents a structured field in a log entry
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a bool field
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

// Err creates an error field
func Err(err error) Field {
	return Field{Key: "error", Value: err.Error()}
}

// LogEntry represents a single log record
type LogEntry struct {
	Time      time.Time              `json:"time"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Component string                 `json:"component,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Log writes a log message at the given level
func (l *Logger) Log(level Level, message string, fields ...Field) {
	if level < l.config.Level {
		return
	}

	entry := LogEntry{
		Time:      time.Now(),
		Level:     level.String(),
		Message:   message,
		Component: l.config.Component,
	}
	if len(fields) > 0 {
		entry.Fields = make(map[string]interface{}, len(fields))
		for _, f := range fields {
			entry.Fields[f.Key] = f.Value
		}
	}

	if l.config.JSON {
		data, _ := json.Marshal(entry)
		l.logger.Print(string(data))
		return
	}
	l.logger.Print(l.formatPretty(entry))
}

func (l *Logger) formatPretty(entry LogEntry) string {
	var b strings.Builder

	b.WriteString(entry.Time.Format("2006-01-02 15:04:05"))

	level := entry.Level
	if l.config.UseColor {
		switch entry.Level {
		case "TRACE":
			level = "\033[37mTRACE\033[0m"
		case "DEBUG":
			level = "\033[36mDEBUG\033[0m"
		case "INFO":
			level = "\033[32mINFO\033[0m"
		case "WARN":
			level = "\033[33mWARN\033[0m"
		case "ERROR":
			level = "\033[31mERROR\033[0m"
		}
	}
	b.WriteString(fmt.Sprintf(" [%s]", level))

	if entry.Component != "" {
		b.WriteString(fmt.Sprintf(" %s:", entry.Component))
	}
	b.WriteString(fmt.Sprintf(" %s", entry.Message))

	if len(entry.Fields) > 0 {
		b.WriteString(" {")
		first := true
		for k, v := range entry.Fields {
			if !first {
				b.WriteString(", ")
			}
			b.WriteString(fmt.Sprintf("%s=%v", k, v))
			first = false
		}
		b.WriteString("}")
	}

	return b.String()
}

func active() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// Convenience functions for the default logger
func Trace(message string, fields ...Field) {
	if l := active(); l != nil {
		l.Log(TraceLevel, message, fields...)
	}
}

func Debug(message string, fields ...Field) {
	if l := active(); l != nil {
		l.Log(DebugLevel, message, fields...)
	}
}

func Info(message string, fields ...Field) {
	if l := active(); l != nil {
		l.Log(InfoLevel, message, fields...)
	} else {
		fmt.Fprintf(os.Stderr, "[INFO] latch: %s\n", message)
	}
}

func Warn(message string, fields ...Field) {
	if l := active(); l != nil {
		l.Log(WarnLevel, message, fields...)
	}
}

func Error(message string, fields ...Field) {
	if l := active(); l != nil {
		l.Log(ErrorLevel, message, fields...)
	}
}

// SetOutput redirects the default logger's output
func SetOutput(w io.Writer) {
	if l := active(); l != nil {
		l.logger.SetOutput(w)
	}
}
