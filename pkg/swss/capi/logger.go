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

package capi

import (
	"context"
	"sync"
	"unsafe"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/dbconfig"
	"github.com/sonic-net/sonic-swss-common/pkg/swss/selectable"
	"github.com/sonic-net/sonic-swss-common/pkg/swss/store"
)

const (
	logLevelDBName = "LOGLEVEL_DB"

	// LogLevelField and LogOutputField are the fields of a component's
	// entry in LOGLEVEL_DB.
	LogLevelField  = "LOGLEVEL"
	LogOutputField = "LOGOUTPUT"
)

// PriorityChangeNotify is called with a component name and its new log
// level. The strings are only valid during the call.
type PriorityChangeNotify func(component, priority *byte)

// OutputChangeNotify is called with a component name and its new log
// output. The strings are only valid during the call.
type OutputChangeNotify func(component, output *byte)

type loggerLink struct {
	component string
	prio      PriorityChangeNotify
	output    OutputChangeNotify

	mu    sync.Mutex
	level string
	out   string

	cancel context.CancelFunc
	done   chan struct{}
}

var loggerLinks = struct {
	sync.Mutex
	m map[string]*loggerLink
}{m: map[string]*loggerLink{}}

func callNotify(f func(component, value *byte), component, value string) {
	if f == nil {
		return
	}
	c, v := CString(component), CString(value)
	defer Free(unsafe.Pointer(c))
	defer Free(unsafe.Pointer(v))
	f(c, v)
}

func openLogLevelDB() (*dbConnector, error) {
	opts, err := namedOptions(logLevelDBName, false, 0, dbconfig.Key{})
	if err != nil {
		opts, err = namedOptions(logLevelDBName, true, 0, dbconfig.Key{})
	}
	if err != nil {
		return nil, err
	}
	return openConnector(opts, logLevelDBName, dbconfig.Key{})
}

// LoggerLinkToDBWithOutput links component dbName to its LOGLEVEL_DB
// entry. Missing settings are written with the defaults; the current
// settings are reported through the callbacks right away and again
// whenever they change.
func LoggerLinkToDBWithOutput(dbName *byte, prioChangeNotify PriorityChangeNotify, defLogLevel *byte, outputChangeNotify OutputChangeNotify, defOutput *byte) Result {
	return try("LoggerLinkToDBWithOutput", func() error {
		component := GoString(dbName)
		db, err := openLogLevelDB()
		if err != nil {
			return err
		}
		ctx := context.Background()
		keys := store.NewStateKeys(component, db.sep, db.opts.DB)

		level, hasLevel, err := db.st.HGet(ctx, keys.TableKey(component), LogLevelField)
		if err != nil {
			_ = db.st.Close()
			return err
		}
		out, hasOut, err := db.st.HGet(ctx, keys.TableKey(component), LogOutputField)
		if err != nil {
			_ = db.st.Close()
			return err
		}
		if !hasLevel || !hasOut {
			if !hasLevel {
				level = GoString(defLogLevel)
			}
			if !hasOut {
				out = GoString(defOutput)
			}
			err := db.st.ProducerSet(ctx, keys, component, []fieldValue{
				{Field: LogLevelField, Value: level},
				{Field: LogOutputField, Value: out},
			})
			if err != nil {
				_ = db.st.Close()
				return err
			}
		}

		l := &loggerLink{component: component, prio: prioChangeNotify, output: outputChangeNotify, level: level, out: out}
		if err := l.start(db); err != nil {
			return err
		}
		loggerLinks.Lock()
		old := loggerLinks.m[component]
		loggerLinks.m[component] = l
		loggerLinks.Unlock()
		if old != nil {
			old.stop()
		}

		callNotify(prioChangeNotify, component, level)
		callNotify(outputChangeNotify, component, out)
		return nil
	})
}

// LoggerRestartLogger reconnects every linked component's watcher.
func LoggerRestartLogger() Result {
	return try("LoggerRestartLogger", func() error {
		loggerLinks.Lock()
		defer loggerLinks.Unlock()
		var errs error
		for _, l := range loggerLinks.m {
			l.stop()
			db, err := openLogLevelDB()
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			errs = multierr.Append(errs, l.start(db))
		}
		return errs
	})
}

// start watches the component's state table on db; db is closed when the
// watcher stops.
func (l *loggerLink) start(db *dbConnector) error {
	t, err := newConsumerStateTable(db, l.component, DefaultPopBatchSize, 0)
	if err != nil {
		_ = db.st.Close()
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(ctx, db, t)
	return nil
}

func (l *loggerLink) stop() {
	l.cancel()
	<-l.done
}

func (l *loggerLink) run(ctx context.Context, db *dbConnector, t *consumerStateTable) {
	defer close(l.done)
	defer func() {
		_ = multierr.Combine(t.close(), db.st.Close())
	}()
	for {
		if err := selectable.WaitReadable(ctx, t.ev.Fd()); err != nil {
			return
		}
		if _, err := t.ev.Drain(); err != nil {
			log().Warn("logger link drain failed", zap.String("component", l.component), zap.Error(err))
			return
		}
		entries, err := t.pops(ctx)
		if err != nil {
			log().Warn("logger link pop failed", zap.String("component", l.component), zap.Error(err))
			continue
		}
		for _, e := range entries {
			if e.Del || e.Key != l.component {
				continue
			}
			l.apply(e.Fields)
		}
	}
}

func (l *loggerLink) apply(fvs []fieldValue) {
	for _, fv := range fvs {
		l.mu.Lock()
		var notify func(component, value *byte)
		switch {
		case fv.Field == LogLevelField && fv.Value != l.level:
			l.level = fv.Value
			notify = l.prio
		case fv.Field == LogOutputField && fv.Value != l.out:
			l.out = fv.Value
			notify = l.output
		}
		l.mu.Unlock()
		if notify != nil {
			callNotify(notify, l.component, fv.Value)
		}
	}
}
