// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package logger

import (
	"fmt"
	"log/syslog"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Output selects where log entries are written.
type Output string

const (
	OutputStdout Output = "STDOUT"
	OutputStderr Output = "STDERR"
	OutputSyslog Output = "SYSLOG"
)

var (
	// Logger is the global logger for the application.
	Logger *zap.Logger
	// mu protects Logger from concurrent access
	mu sync.RWMutex
	// initialized tracks whether logger has been initialized
	initialized bool

	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	output = OutputStdout
)

// InitLogger initializes the global logger safely to prevent race conditions.
func InitLogger() {
	mu.Lock()
	defer mu.Unlock()

	// Only initialize if not already done
	if !initialized || Logger == nil {
		l, err := build(output)
		if err != nil {
			panic(err)
		}
		Logger = l
		initialized = true
	}
}

// GetLogger returns the global logger, initializing it if necessary.
func GetLogger() *zap.Logger {
	mu.RLock()
	if initialized && Logger != nil {
		defer mu.RUnlock()
		return Logger
	}
	mu.RUnlock()

	InitLogger()

	mu.RLock()
	defer mu.RUnlock()
	return Logger
}

// Named returns a child of the global logger.
func Named(name string) *zap.Logger {
	return GetLogger().Named(name)
}

// ResetLogger resets the logger for testing purposes.
// This should only be used in tests.
func ResetLogger() {
	mu.Lock()
	defer mu.Unlock()

	if Logger != nil {
		_ = Logger.Sync()
	}
	Logger = nil
	initialized = false
	output = OutputStdout
	level.SetLevel(zapcore.InfoLevel)
}

// SetLevel changes the level of the global logger. Loggers derived with
// Named observe the change as well.
func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
}

// GetLevel returns the current level of the global logger.
func GetLevel() zapcore.Level {
	return level.Level()
}

// SetOutput rebuilds the global logger on top of the given output. The
// previous logger stays in place when the new output cannot be opened.
func SetOutput(o Output) error {
	o = Output(strings.ToUpper(string(o)))
	l, err := build(o)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	if Logger != nil {
		_ = Logger.Sync()
	}
	Logger = l
	output = o
	initialized = true
	return nil
}

// GetOutput returns the output currently used by the global logger.
func GetOutput() Output {
	mu.RLock()
	defer mu.RUnlock()
	return output
}

// ParseLevel maps swss priority names (EMERG … DEBUG) as well as zap level
// names onto zap levels.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "EMERG", "ALERT", "CRIT":
		return zapcore.DPanicLevel, nil
	case "ERROR":
		return zapcore.ErrorLevel, nil
	case "WARN", "WARNING":
		return zapcore.WarnLevel, nil
	case "NOTICE", "INFO":
		return zapcore.InfoLevel, nil
	case "DEBUG":
		return zapcore.DebugLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

func build(o Output) (*zap.Logger, error) {
	var ws zapcore.WriteSyncer
	switch o {
	case OutputStdout, "":
		ws = zapcore.Lock(os.Stdout)
	case OutputStderr:
		ws = zapcore.Lock(os.Stderr)
	case OutputSyslog:
		w, err := syslog.New(syslog.LOG_INFO|syslog.LOG_DAEMON, "swss")
		if err != nil {
			return nil, fmt.Errorf("open syslog: %w", err)
		}
		ws = zapcore.AddSync(w)
	default:
		return nil, fmt.Errorf("unknown log output %q", o)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), ws, level)
	return zap.New(core, zap.AddCaller(), zap.ErrorOutput(zapcore.Lock(os.Stderr))), nil
}
