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

// Package memstore is an in-process store.Store. A Server listens on a
// symbolic address; store.Open reaches it through the registered Driver the
// same way it would reach a redis server, so handles under test exercise the
// full connection path without an external process.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/store"
)

func init() {
	store.Register(Driver{})
}

const subscriptionBuffer = 4096

var (
	serversMu sync.RWMutex
	servers   = map[string]*Server{}
)

func serverKey(network, addr string) string {
	if network == "" {
		network = "tcp"
	}
	return network + "://" + addr
}

// Options configures a Server.
type Options struct {
	// Network is "tcp" or "unix"; it only namespaces the address.
	Network string
	// Addr is the address the server answers on.
	Addr string
	// NotifyKeyspaceEvents publishes __keyspace@<db>__ notifications,
	// like redis with notify-keyspace-events AKE.
	NotifyKeyspaceEvents bool
}

// Server is one in-process store instance holding every logical database.
type Server struct {
	opts Options

	mu  sync.Mutex
	dbs map[int]*database

	subsMu sync.RWMutex
	subs   map[*subscription]struct{}

	dropped atomic.Uint64
	closed  atomic.Bool
}

// Listen starts a server on opts.Addr.
func Listen(opts Options) (*Server, error) {
	key := serverKey(opts.Network, opts.Addr)

	serversMu.Lock()
	defer serversMu.Unlock()
	if _, ok := servers[key]; ok {
		return nil, fmt.Errorf("memstore: address %s already in use", key)
	}
	s := &Server{
		opts: opts,
		dbs:  map[int]*database{},
		subs: map[*subscription]struct{}{},
	}
	servers[key] = s
	return s, nil
}

// Addr returns the listening address.
func (s *Server) Addr() string { return s.opts.Addr }

// Network returns the listening network.
func (s *Server) Network() string {
	if s.opts.Network == "" {
		return "tcp"
	}
	return s.opts.Network
}

// Dropped reports pub/sub messages discarded because a subscriber fell
// behind.
func (s *Server) Dropped() uint64 { return s.dropped.Load() }

// Close stops the server. Open connections fail with store.ErrClosed.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	serversMu.Lock()
	delete(servers, serverKey(s.opts.Network, s.opts.Addr))
	serversMu.Unlock()

	s.subsMu.Lock()
	subs := s.subs
	s.subs = map[*subscription]struct{}{}
	s.subsMu.Unlock()
	for sub := range subs {
		sub.shutdown()
	}
	return nil
}

func (s *Server) db(id int) *database {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dbs[id]
	if !ok {
		d = newDatabase()
		s.dbs[id] = d
	}
	return d
}

// Connect opens a connection to database db.
func (s *Server) Connect(db int) store.Store {
	return &conn{srv: s, id: db, db: s.db(db)}
}

// Driver resolves addresses served by in-process servers.
type Driver struct{}

// Open implements store.Driver.
func (Driver) Open(_ context.Context, opts store.Options) (store.Store, error) {
	serversMu.RLock()
	s, ok := servers[serverKey(opts.Network, opts.Addr)]
	serversMu.RUnlock()
	if !ok {
		return nil, store.ErrUnreachable
	}
	return s.Connect(opts.DB), nil
}

func (s *Server) publish(channel, payload string) int {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	n := 0
	for sub := range s.subs {
		m, ok := sub.match(channel)
		if !ok {
			continue
		}
		m.Payload = payload
		if sub.deliver(m) {
			n++
		} else {
			s.dropped.Add(1)
		}
	}
	return n
}

func (s *Server) notify(db int, event string, keys ...string) {
	if !s.opts.NotifyKeyspaceEvents {
		return
	}
	for _, key := range keys {
		s.publish("__keyspace@"+strconv.Itoa(db)+"__:"+key, event)
		s.publish("__keyevent@"+strconv.Itoa(db)+"__:"+event, key)
	}
}

func (s *Server) subscribe(patterns bool, names []string) (*subscription, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	sub := &subscription{
		srv:      s,
		patterns: patterns,
		names:    append([]string(nil), names...),
		ch:       make(chan store.Message, subscriptionBuffer),
	}
	s.subsMu.Lock()
	s.subs[sub] = struct{}{}
	s.subsMu.Unlock()
	return sub, nil
}

func (s *Server) unsubscribe(sub *subscription) {
	s.subsMu.Lock()
	delete(s.subs, sub)
	s.subsMu.Unlock()
	sub.shutdown()
}

type database struct {
	mu      sync.Mutex
	strings map[string]string
	hashes  map[string]map[string]string
	sets    map[string]map[string]struct{}
}

func newDatabase() *database {
	return &database{
		strings: map[string]string{},
		hashes:  map[string]map[string]string{},
		sets:    map[string]map[string]struct{}{},
	}
}

func (d *database) exists(key string) bool {
	if _, ok := d.strings[key]; ok {
		return true
	}
	if _, ok := d.hashes[key]; ok {
		return true
	}
	_, ok := d.sets[key]
	return ok
}

func (d *database) del(key string) bool {
	if !d.exists(key) {
		return false
	}
	delete(d.strings, key)
	delete(d.hashes, key)
	delete(d.sets, key)
	return true
}

func (d *database) hset(key, field, value string) {
	h, ok := d.hashes[key]
	if !ok {
		delete(d.strings, key)
		delete(d.sets, key)
		h = map[string]string{}
		d.hashes[key] = h
	}
	h[field] = value
}

func (d *database) sadd(key, member string) bool {
	set, ok := d.sets[key]
	if !ok {
		set = map[string]struct{}{}
		d.sets[key] = set
	}
	if _, ok := set[member]; ok {
		return false
	}
	set[member] = struct{}{}
	return true
}

func (d *database) srem(key, member string) bool {
	set, ok := d.sets[key]
	if !ok {
		return false
	}
	if _, ok := set[member]; !ok {
		return false
	}
	delete(set, member)
	if len(set) == 0 {
		delete(d.sets, key)
	}
	return true
}

func (d *database) hgetall(key string) []store.FieldValue {
	h := d.hashes[key]
	out := make([]store.FieldValue, 0, len(h))
	for f, v := range h {
		out = append(out, store.FieldValue{Field: f, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

// allKeys returns every key in the database, sorted.
func (d *database) allKeys() []string {
	out := make([]string, 0, len(d.strings)+len(d.hashes)+len(d.sets))
	for k := range d.strings {
		out = append(out, k)
	}
	for k := range d.hashes {
		out = append(out, k)
	}
	for k := range d.sets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
