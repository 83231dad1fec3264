// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

// Package log implements a simple leveled logger used to report diagnostics
// about the emit runtime itself: dropped batches, malformed configuration,
// clock/entropy unavailability and the like. It intentionally has no
// dependency on the core event pipeline so that the pipeline's own failures
// can be reported without risking a feedback loop.
package log

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// Level represents the level at which a logging statement will be written
// to the logger.
type Level int

const (
	// LevelDebug represents debug level messages.
	LevelDebug Level = iota
	// LevelWarn represents warning and errors messages.
	LevelWarn
)

var (
	mu             sync.RWMutex // guards below fields
	levelThreshold = LevelWarn

	logger Logger = &defaultLogger{}
)

// Logger implementations are able to log given messages that the tracer
// might output over the course of its execution.
type Logger interface {
	// Log prints the given message.
	Log(msg string)
}

// DiscardLogger discards all messages.
type DiscardLogger struct{}

// Log implements Logger.
func (DiscardLogger) Log(_ string) {}

type defaultLogger struct {
	mu sync.Mutex
}

func (d *defaultLogger) Log(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintln(os.Stderr, msg)
}

// UseLogger sets l as the logger for the package and returns a function
// which restores the previous logger.
func UseLogger(l Logger) (undo func()) {
	mu.Lock()
	defer mu.Unlock()
	old := logger
	logger = l
	return func() {
		mu.Lock()
		defer mu.Unlock()
		logger = old
	}
}

// SetLevel sets the given lvl for logging.
func SetLevel(lvl Level) {
	mu.Lock()
	defer mu.Unlock()
	levelThreshold = lvl
}

// DebugEnabled returns true if debug level logging is enabled.
func DebugEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return levelThreshold == LevelDebug
}

const prefixMsg = "Emit"

func formatMsg(lvl, m string) string {
	return fmt.Sprintf("%s %s: %s", prefixMsg, lvl, m)
}

func logf(lvl, format string, a ...interface{}) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Log(formatMsg(lvl, fmt.Sprintf(format, a...)))
}

// Debug prints the given message if the level is LevelDebug.
func Debug(format string, a ...interface{}) {
	if !DebugEnabled() {
		return
	}
	logf("DEBUG", format, a...)
}

// Info prints the given message at the info level.
func Info(format string, a ...interface{}) {
	logf("INFO", format, a...)
}

// Warn prints the given message at the warning level.
func Warn(format string, a ...interface{}) {
	logf("WARN", format, a...)
}

// defaultErrorLimit is the occurrence count above which a flushed error
// summary reports "200+ additional messages skipped" instead of the exact
// number.
const defaultErrorLimit = 200

var errrate = time.Minute

func init() {
	setLoggingRate(os.Getenv("EMIT_TRACE_LOG_ERROR_RATE"))
}

func setLoggingRate(val string) {
	if v, err := strconv.Atoi(val); err == nil && v >= 0 {
		errrate = time.Duration(v) * time.Second
	} else {
		errrate = time.Minute
	}
}

type errCount struct {
	count   int
	example string
}

var (
	errMu      sync.Mutex
	errSeen    = map[string]*errCount{}
	errLastLog time.Time
)

// Error prints the given message at the error level, rate-limiting repeated
// occurrences of the same format string so that a single misbehaving
// component cannot flood the logger.
func Error(format string, a ...interface{}) {
	full := fmt.Sprintf(format, a...)

	errMu.Lock()
	defer errMu.Unlock()

	if errrate <= 0 {
		logf("ERROR", "%s", full)
		return
	}

	c, ok := errSeen[format]
	if !ok {
		c = &errCount{example: full}
		errSeen[format] = c
	}
	c.count++

	if time.Since(errLastLog) >= errrate {
		flushLocked()
	}
}

// Flush flushes any pending rate-limited error messages.
func Flush() {
	errMu.Lock()
	defer errMu.Unlock()
	flushLocked()
}

func flushLocked() {
	for format, c := range errSeen {
		if c.count == 0 {
			continue
		}
		extra := c.count - 1
		switch {
		case extra <= 0:
			logf("ERROR", "%s", c.example)
		case c.count > defaultErrorLimit:
			logf("ERROR", "%s, 200+ additional messages skipped", c.example)
		default:
			logf("ERROR", "%s, %d additional messages skipped", c.example, extra)
		}
		delete(errSeen, format)
	}
	errLastLog = time.Now()
}

// RecordLogger implements Logger and records the messages, useful for testing.
type RecordLogger struct {
	mu      sync.Mutex
	logs    []string
	ignored []string
}

// Ignore adds a substring that, when present in a logged message, causes
// that message to be dropped instead of recorded.
func (r *RecordLogger) Ignore(substr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ignored = append(r.ignored, substr)
}

// Log implements Logger.
func (r *RecordLogger) Log(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, substr := range r.ignored {
		if contains(msg, substr) {
			return
		}
	}
	r.logs = append(r.logs, msg)
}

// Logs returns the logged messages.
func (r *RecordLogger) Logs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]string, len(r.logs))
	copy(cp, r.logs)
	return cp
}

// Reset clears all recorded log lines, keeping the configured ignore list.
func (r *RecordLogger) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = nil
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// LoggerFile is the name of the file used when logging to a directory via
// OpenFileAtPath.
const LoggerFile = "emit-diag.log"

// FileLogger logs to a file on disk instead of stderr; OpenFileAtPath
// creates one and installs it as the package logger.
type FileLogger struct {
	mu     sync.Mutex
	file   *os.File
	closed bool
}

// OpenFileAtPath opens (creating if necessary) the diagnostics log file
// inside the given directory and installs it as the package logger.
func OpenFileAtPath(dir string) (*FileLogger, error) {
	f, err := os.OpenFile(dir+"/"+LoggerFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	fl := &FileLogger{file: f}
	UseLogger(fl)
	return fl, nil
}

// Log implements Logger.
func (f *FileLogger) Log(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	fmt.Fprintln(f.file, msg)
}

// Close closes the underlying file. It is safe to call concurrently and
// more than once.
func (f *FileLogger) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.file.Close()
}
