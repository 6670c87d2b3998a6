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

package swss

import (
	"sync"

	"go.uber.org/zap"

	"github.com/sonic-net/sonic-swss-common/pkg/logger"
	"github.com/sonic-net/sonic-swss-common/pkg/swss/capi"
)

// Defaults written for a component whose LOGLEVEL_DB entry lacks them.
const (
	DefaultLogLevel  = "INFO"
	DefaultLogOutput = "SYSLOG"
)

// LoggerConfigChangeHandler is told about changes of a component's log
// settings in LOGLEVEL_DB.
type LoggerConfigChangeHandler interface {
	OnLogLevelChange(level string)
	OnLogOutputChange(output string)
}

var logSettings = struct {
	sync.Mutex
	level   string
	output  string
	handler LoggerConfigChangeHandler
}{level: DefaultLogLevel, output: DefaultLogOutput}

// LinkToSwssLogger links component to its entry in LOGLEVEL_DB. Missing
// settings are written with the defaults. handler is called with the
// current settings right away and again on every change. A later link
// replaces the handler.
func LinkToSwssLogger(component string, handler LoggerConfigChangeHandler) error {
	k := new(KeepAlive)
	defer k.Release()
	ccomp, err := k.cstr(component)
	if err != nil {
		return err
	}
	level, err := k.cstr(DefaultLogLevel)
	if err != nil {
		return err
	}
	output, err := k.cstr(DefaultLogOutput)
	if err != nil {
		return err
	}

	logSettings.Lock()
	logSettings.handler = handler
	logSettings.Unlock()

	return check(capi.LoggerLinkToDBWithOutput(ccomp, onLogLevelChange, level, onLogOutputChange, output))
}

func onLogLevelChange(_, priority *byte) {
	level := capi.GoString(priority)
	logSettings.Lock()
	logSettings.level = level
	h := logSettings.handler
	logSettings.Unlock()
	if h != nil {
		h.OnLogLevelChange(level)
	}
}

func onLogOutputChange(_, output *byte) {
	out := capi.GoString(output)
	logSettings.Lock()
	logSettings.output = out
	h := logSettings.handler
	logSettings.Unlock()
	if h != nil {
		h.OnLogOutputChange(out)
	}
}

// LogLevel returns the log level last reported by LOGLEVEL_DB.
func LogLevel() string {
	logSettings.Lock()
	defer logSettings.Unlock()
	return logSettings.level
}

// LogOutput returns the log output last reported by LOGLEVEL_DB.
func LogOutput() string {
	logSettings.Lock()
	defer logSettings.Unlock()
	return logSettings.output
}

// RestartLogger reconnects the watchers of every linked component.
func RestartLogger() error {
	return check(capi.LoggerRestartLogger())
}

// ApplyToLogger applies log setting changes to the process logger.
var ApplyToLogger LoggerConfigChangeHandler = loggerApplier{}

type loggerApplier struct{}

func (loggerApplier) OnLogLevelChange(level string) {
	l, err := logger.ParseLevel(level)
	if err != nil {
		log().Warn("ignoring log level", zap.String("level", level), zap.Error(err))
		return
	}
	logger.SetLevel(l)
}

func (loggerApplier) OnLogOutputChange(output string) {
	if err := logger.SetOutput(logger.Output(output)); err != nil {
		log().Warn("ignoring log output", zap.String("output", output), zap.Error(err))
	}
}
