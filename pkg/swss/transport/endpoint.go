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

package transport

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	schemeInproc = "inproc"
	schemeNATS   = "nats"

	defaultSubject = "swss.transport"
	queueDepth     = 1024
	dialTimeout    = 2 * time.Second
)

// endpoint is a parsed endpoint string:
//
//	inproc://name                in-process queue
//	nats://host:port[/subject]   NATS subject (default swss.transport)
type endpoint struct {
	raw     string
	scheme  string
	name    string
	server  string
	subject string
}

func parseEndpoint(raw string) (endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return endpoint{}, newError(ErrorTypeEndpoint, "parse", raw, err)
	}
	ep := endpoint{raw: raw, scheme: u.Scheme}
	switch u.Scheme {
	case schemeInproc:
		ep.name = u.Host + u.Path
		if ep.name == "" {
			return endpoint{}, newError(ErrorTypeEndpoint, "parse", raw, fmt.Errorf("missing inproc name"))
		}
	case schemeNATS:
		if u.Host == "" {
			return endpoint{}, newError(ErrorTypeEndpoint, "parse", raw, fmt.Errorf("missing host"))
		}
		ep.server = (&url.URL{Scheme: schemeNATS, User: u.User, Host: u.Host}).String()
		ep.subject = strings.Trim(u.Path, "/")
		if ep.subject == "" {
			ep.subject = defaultSubject
		}
		ep.subject = strings.ReplaceAll(ep.subject, "/", ".")
	default:
		return endpoint{}, newError(ErrorTypeEndpoint, "parse", raw, fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
	return ep, nil
}

type sender interface {
	send(data []byte) error
	close() error
}

type receiver interface {
	messages() <-chan []byte
	close() error
}

func bind(ep endpoint) (receiver, error) {
	if ep.scheme == schemeInproc {
		q, err := bindInproc(ep)
		if err != nil {
			return nil, err
		}
		return q, nil
	}
	r, err := bindNATS(ep)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func dial(ep endpoint) (sender, error) {
	if ep.scheme == schemeInproc {
		s, err := dialInproc(ep)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := dialNATS(ep)
	if err != nil {
		return nil, err
	}
	return s, nil
}

var (
	inprocMu    sync.Mutex
	inprocBound = map[string]*inprocQueue{}
)

type inprocQueue struct {
	name string
	ch   chan []byte
	done chan struct{}
	once sync.Once
}

func bindInproc(ep endpoint) (*inprocQueue, error) {
	inprocMu.Lock()
	defer inprocMu.Unlock()
	if _, ok := inprocBound[ep.name]; ok {
		return nil, newError(ErrorTypeEndpoint, "bind", ep.raw, fmt.Errorf("address in use"))
	}
	q := &inprocQueue{name: ep.name, ch: make(chan []byte, queueDepth), done: make(chan struct{})}
	inprocBound[ep.name] = q
	return q, nil
}

func (q *inprocQueue) messages() <-chan []byte { return q.ch }

func (q *inprocQueue) close() error {
	q.once.Do(func() {
		inprocMu.Lock()
		if inprocBound[q.name] == q {
			delete(inprocBound, q.name)
		}
		inprocMu.Unlock()
		close(q.done)
	})
	return nil
}

type inprocSender struct {
	ep endpoint
	q  *inprocQueue
}

func dialInproc(ep endpoint) (*inprocSender, error) {
	inprocMu.Lock()
	q, ok := inprocBound[ep.name]
	inprocMu.Unlock()
	if !ok {
		return nil, newError(ErrorTypeConnection, "connect", ep.raw, fmt.Errorf("no server bound"))
	}
	return &inprocSender{ep: ep, q: q}, nil
}

func (s *inprocSender) send(data []byte) error {
	select {
	case <-s.q.done:
		return newError(ErrorTypeConnection, "send", s.ep.raw, fmt.Errorf("server closed"))
	default:
	}
	select {
	case s.q.ch <- data:
		return nil
	case <-s.q.done:
		return newError(ErrorTypeConnection, "send", s.ep.raw, fmt.Errorf("server closed"))
	}
}

func (s *inprocSender) close() error { return nil }

func connectNATS(ep endpoint, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(ep.server,
		nats.Name(name),
		nats.Timeout(dialTimeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(250*time.Millisecond),
	)
	if err != nil {
		return nil, newError(ErrorTypeConnection, "connect", ep.raw, err)
	}
	return nc, nil
}

type natsReceiver struct {
	nc   *nats.Conn
	sub  *nats.Subscription
	ch   chan []byte
	done chan struct{}
	once sync.Once
}

func bindNATS(ep endpoint) (*natsReceiver, error) {
	nc, err := connectNATS(ep, "swss-transport-server")
	if err != nil {
		return nil, err
	}
	r := &natsReceiver{nc: nc, ch: make(chan []byte, queueDepth), done: make(chan struct{})}
	r.sub, err = nc.Subscribe(ep.subject, func(m *nats.Msg) {
		select {
		case r.ch <- m.Data:
		case <-r.done:
		}
	})
	if err != nil {
		nc.Close()
		return nil, newError(ErrorTypeConnection, "bind", ep.raw, err)
	}
	if err := nc.Flush(); err != nil {
		nc.Close()
		return nil, newError(ErrorTypeConnection, "bind", ep.raw, err)
	}
	return r, nil
}

func (r *natsReceiver) messages() <-chan []byte { return r.ch }

func (r *natsReceiver) close() error {
	var err error
	r.once.Do(func() {
		close(r.done)
		err = r.sub.Unsubscribe()
		r.nc.Close()
	})
	return err
}

type natsSender struct {
	ep endpoint
	nc *nats.Conn
}

func dialNATS(ep endpoint) (*natsSender, error) {
	nc, err := connectNATS(ep, "swss-transport-client")
	if err != nil {
		return nil, err
	}
	return &natsSender{ep: ep, nc: nc}, nil
}

func (s *natsSender) send(data []byte) error {
	if err := s.nc.Publish(s.ep.subject, data); err != nil {
		return newError(ErrorTypeConnection, "send", s.ep.raw, err)
	}
	return nil
}

func (s *natsSender) close() error {
	s.nc.Close()
	return nil
}
