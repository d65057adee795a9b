package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

type level int

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
)

// Logger provides structured, leveled logging throughout the application.
type Logger struct {
	min  level
	out  *log.Logger
	err  *log.Logger
	file *log.Logger
}

// LogOptions configures NewLoggerWith. A zero value logs info and above to the console.
type LogOptions struct {
	Level string
	// File enables a size-rotated plain-text copy of every line.
	File string
}

// NewLogger creates a new Logger writing to stdout/stderr.
func NewLogger() *Logger {
	return NewLoggerWith(LogOptions{})
}

// NewLoggerWith creates a Logger honouring the level and optional log file.
func NewLoggerWith(opts LogOptions) *Logger {
	l := &Logger{
		min: parseLevel(opts.Level),
		out: log.New(os.Stdout, "", 0),
		err: log.New(os.Stderr, "", 0),
	}
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    5,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		}
		l.file = log.New(rotator, "", 0)
	}
	return l
}

// NewDiscardLogger drops every line. Handy in tests that exercise noisy paths.
func NewDiscardLogger() *Logger {
	return &Logger{
		min: levelError + 1,
		out: log.New(io.Discard, "", 0),
		err: log.New(io.Discard, "", 0),
	}
}

func parseLevel(s string) level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return levelDebug
	case "warn", "warning":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (l *Logger) timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}

func (l *Logger) write(lv level, tag, color string, format string, args ...any) {
	if lv < l.min {
		return
	}
	msg := fmt.Sprintf(format, args...)
	ts := l.timestamp()

	target := l.out
	if lv == levelError {
		target = l.err
	}
	target.Printf("[%s] \033[%sm%-5s\033[0m %s\n", ts, color, tag, msg)

	if l.file != nil {
		l.file.Printf("[%s] %-5s %s\n", ts, tag, msg)
	}
}

func (l *Logger) Info(format string, args ...any) {
	l.write(levelInfo, "INFO", "32", format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.write(levelWarn, "WARN", "33", format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.write(levelError, "ERROR", "31", format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	l.write(levelDebug, "DEBUG", "36", format, args...)
}
