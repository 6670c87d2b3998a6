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
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sonic-net/sonic-swss-common/pkg/logger"
)

// Handler receives the entries addressed to one db/table. It is called
// from the server's dispatch goroutine, one message at a time.
type Handler interface {
	HandleEntries(entries []Entry)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(entries []Entry)

// HandleEntries calls f.
func (f HandlerFunc) HandleEntries(entries []Entry) { f(entries) }

type handlerKey struct {
	db, table string
}

// Server receives messages on an endpoint and dispatches them to the handler
// registered for their db/table.
type Server struct {
	ep   endpoint
	recv receiver
	log  *zap.Logger

	mu       sync.RWMutex
	handlers map[handlerKey]Handler

	stop   chan struct{}
	exited chan struct{}
	closed atomic.Bool

	dispatched atomic.Uint64
	dropped    atomic.Uint64
}

// NewServer binds endpoint and starts dispatching.
func NewServer(endpoint string) (*Server, error) {
	ep, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	recv, err := bind(ep)
	if err != nil {
		return nil, err
	}
	s := &Server{
		ep:       ep,
		recv:     recv,
		log:      logger.Named("transport").With(zap.String("endpoint", endpoint)),
		handlers: map[handlerKey]Handler{},
		stop:     make(chan struct{}),
		exited:   make(chan struct{}),
	}
	go s.loop()
	s.log.Info("transport server listening")
	return s, nil
}

// Endpoint returns the endpoint the server is bound to.
func (s *Server) Endpoint() string { return s.ep.raw }

// Register routes messages for db/table to h, replacing any previous
// handler.
func (s *Server) Register(db, table string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[handlerKey{db, table}] = h
}

// Unregister removes the handler for db/table.
func (s *Server) Unregister(db, table string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, handlerKey{db, table})
}

// Dispatched reports how many messages reached a handler.
func (s *Server) Dispatched() uint64 { return s.dispatched.Load() }

// Dropped reports how many messages were discarded (undecodable or no
// handler).
func (s *Server) Dropped() uint64 { return s.dropped.Load() }

func (s *Server) loop() {
	defer close(s.exited)
	for {
		select {
		case <-s.stop:
			return
		case data := <-s.recv.messages():
			s.dispatch(data)
		}
	}
}

func (s *Server) dispatch(data []byte) {
	m, err := Decode(data)
	if err != nil {
		s.dropped.Add(1)
		s.log.Warn("dropping undecodable message", zap.Error(err))
		return
	}
	s.mu.RLock()
	h, ok := s.handlers[handlerKey{m.DB, m.Table}]
	s.mu.RUnlock()
	if !ok {
		s.dropped.Add(1)
		s.log.Warn("no handler for message", zap.String("db", m.DB), zap.String("table", m.Table))
		return
	}
	h.HandleEntries(m.Entries)
	s.dispatched.Add(1)
}

// Close stops receiving and waits for the dispatch goroutine to exit. Once
// Close returns no handler is called again.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stop)
	<-s.exited
	err := s.recv.close()
	s.mu.Lock()
	s.handlers = map[handlerKey]Handler{}
	s.mu.Unlock()
	s.log.Info("transport server closed")
	return err
}
