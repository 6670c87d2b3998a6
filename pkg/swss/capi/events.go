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
	"errors"
	"os"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/transport"
)

const (
	typeEventPublisher = "EventPublisher"

	// DefaultEventsEndpoint receives events when SWSS_EVENTS_ENDPOINT is
	// not set.
	DefaultEventsEndpoint = "inproc://swss-events"
	// EventsDB is the db name events are sent under; the table is the
	// event source.
	EventsDB = "EVENTS"

	EventRuntimeIDField = "runtime_id"
	EventSequenceField  = "sequence"
)

// EventsEndpoint returns the endpoint event publishers send to.
func EventsEndpoint() string {
	if ep := os.Getenv("SWSS_EVENTS_ENDPOINT"); ep != "" {
		return ep
	}
	return DefaultEventsEndpoint
}

// EventPublisher publishes structured events for one source.
type EventPublisher uint64

type eventPublisher struct {
	source    string
	runtimeID string

	mu     sync.Mutex
	client *transport.Client
	seq    uint64
}

var errDeinitialized = errors.New("event publisher was deinitialized")

// EventPublisherNew creates a publisher for eventSource.
func EventPublisherNew(eventSource *byte, out *EventPublisher) Result {
	return try("EventPublisherNew", func() error {
		if err := checkOut(out); err != nil {
			return err
		}
		c, err := transport.NewClient(EventsEndpoint())
		if err != nil {
			return err
		}
		p := &eventPublisher{source: GoString(eventSource), runtimeID: uuid.NewString(), client: c}
		*out = EventPublisher(newHandle(typeEventPublisher, p))
		return nil
	})
}

func (p *eventPublisher) deinit() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}

// EventPublisherDeinit closes the publisher's connection. Publishing
// afterwards fails.
func EventPublisherDeinit(publisher EventPublisher) Result {
	return try("EventPublisherDeinit", func() error {
		p, err := getObject[eventPublisher](typeEventPublisher, uint64(publisher))
		if err != nil {
			return err
		}
		return p.deinit()
	})
}

// EventPublisherFree deinitializes and releases publisher.
func EventPublisherFree(publisher EventPublisher) Result {
	return try("EventPublisherFree", func() error {
		p, err := dropHandle[eventPublisher](typeEventPublisher, uint64(publisher))
		if err != nil {
			return err
		}
		return p.deinit()
	})
}

// EventPublisherPublish sends one event with params. Events sent while no
// receiver is bound are dropped, not failed. The value strings are moved
// out.
func EventPublisherPublish(publisher EventPublisher, eventTag *byte, params *FieldValueArray) Result {
	return try("EventPublisherPublish", func() error {
		p, err := getObject[eventPublisher](typeEventPublisher, uint64(publisher))
		if err != nil {
			return err
		}
		var fvs []fieldValue
		if params != nil {
			fvs = readFieldValueArray(*params)
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.client == nil {
			return errDeinitialized
		}
		p.seq++
		fvs = append(fvs,
			fieldValue{Field: EventRuntimeIDField, Value: p.runtimeID},
			fieldValue{Field: EventSequenceField, Value: strconv.FormatUint(p.seq, 10)},
		)
		e := entry{Key: p.source + ":" + GoString(eventTag), Fields: fvs}
		err = p.client.SendMsg(EventsDB, p.source, toTransportEntries([]entry{e}))
		if errors.Is(err, transport.ErrNotConnected) {
			log().Debug("event dropped, no receiver", zap.String("source", p.source), zap.Error(err))
			return nil
		}
		return err
	})
}
