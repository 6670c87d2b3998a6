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
	"github.com/sonic-net/sonic-swss-common/pkg/swss/capi"
)

const typeEventPublisher = "EventPublisher"

// EventPublisher publishes structured events on behalf of one source.
type EventPublisher struct {
	owner[capi.EventPublisher]
	source string
}

// NewEventPublisher creates a publisher for source.
func NewEventPublisher(source string) (*EventPublisher, error) {
	k := new(KeepAlive)
	defer k.Release()
	cs, err := k.cstr(source)
	if err != nil {
		return nil, err
	}
	var h capi.EventPublisher
	if err := check(capi.EventPublisherNew(cs, &h)); err != nil {
		return nil, err
	}
	p := &EventPublisher{owner: newOwner(typeEventPublisher, h, nil, capi.EventPublisherFree), source: source}
	track(p, &p.owner)
	return p, nil
}

// EventSource returns the source the publisher publishes for.
func (p *EventPublisher) EventSource() string { return p.source }

// Publish sends the event tag with params, which may be nil. Events
// published while nobody receives them are dropped.
func (p *EventPublisher) Publish(tag string, params map[string]string) error {
	h, err := p.handle()
	if err != nil {
		return err
	}
	k := new(KeepAlive)
	defer k.Release()
	ctag, err := k.cstr(tag)
	if err != nil {
		return err
	}
	var parr *capi.FieldValueArray
	if params != nil {
		arr, ak, err := makeFieldValueArray(FromStrings(params))
		if err != nil {
			return err
		}
		k.nest(ak)
		parr = &arr
		k.pin(parr)
	}
	return check(capi.EventPublisherPublish(h, ctag, parr))
}

// Deinit closes the publisher's connection; later publishes fail. The
// publisher still has to be closed.
func (p *EventPublisher) Deinit() error {
	h, err := p.handle()
	if err != nil {
		return err
	}
	return check(capi.EventPublisherDeinit(h))
}

// Close deinitializes and releases the publisher.
func (p *EventPublisher) Close() { p.close() }
