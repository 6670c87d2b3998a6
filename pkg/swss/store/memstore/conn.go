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

package memstore

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/store"
)

type conn struct {
	srv    *Server
	id     int
	db     *database
	closed atomic.Bool
}

var _ store.Store = (*conn)(nil)

func (c *conn) check(ctx context.Context) error {
	if c.closed.Load() || c.srv.closed.Load() {
		return store.ErrClosed
	}
	return ctx.Err()
}

// lock checks liveness and takes the database lock.
func (c *conn) lock(ctx context.Context) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	c.db.mu.Lock()
	return nil
}

func (c *conn) unlock() { c.db.mu.Unlock() }

func (c *conn) DB() int { return c.id }

func (c *conn) Get(ctx context.Context, key string) (string, bool, error) {
	if err := c.lock(ctx); err != nil {
		return "", false, err
	}
	defer c.unlock()
	v, ok := c.db.strings[key]
	return v, ok, nil
}

func (c *conn) Set(ctx context.Context, key, value string) error {
	if err := c.lock(ctx); err != nil {
		return err
	}
	defer c.unlock()
	delete(c.db.hashes, key)
	delete(c.db.sets, key)
	c.db.strings[key] = value
	c.srv.notify(c.id, "set", key)
	return nil
}

func (c *conn) Del(ctx context.Context, keys ...string) (int64, error) {
	if err := c.lock(ctx); err != nil {
		return 0, err
	}
	defer c.unlock()
	var n int64
	for _, k := range keys {
		if c.db.del(k) {
			n++
			c.srv.notify(c.id, "del", k)
		}
	}
	return n, nil
}

func (c *conn) Exists(ctx context.Context, key string) (bool, error) {
	if err := c.lock(ctx); err != nil {
		return false, err
	}
	defer c.unlock()
	return c.db.exists(key), nil
}

func (c *conn) Keys(ctx context.Context, pattern string) ([]string, error) {
	if err := c.lock(ctx); err != nil {
		return nil, err
	}
	defer c.unlock()
	var out []string
	for _, k := range c.db.allKeys() {
		if Match(pattern, k) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (c *conn) HGet(ctx context.Context, key, field string) (string, bool, error) {
	if err := c.lock(ctx); err != nil {
		return "", false, err
	}
	defer c.unlock()
	v, ok := c.db.hashes[key][field]
	return v, ok, nil
}

func (c *conn) HSet(ctx context.Context, key string, fvs ...store.FieldValue) error {
	if len(fvs) == 0 {
		return nil
	}
	if err := c.lock(ctx); err != nil {
		return err
	}
	defer c.unlock()
	for _, fv := range fvs {
		c.db.hset(key, fv.Field, fv.Value)
	}
	c.srv.notify(c.id, "hset", key)
	return nil
}

func (c *conn) HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	if err := c.lock(ctx); err != nil {
		return 0, err
	}
	defer c.unlock()
	h, ok := c.db.hashes[key]
	if !ok {
		return 0, nil
	}
	var n int64
	for _, f := range fields {
		if _, ok := h[f]; ok {
			delete(h, f)
			n++
		}
	}
	if n > 0 {
		c.srv.notify(c.id, "hdel", key)
	}
	if len(h) == 0 {
		delete(c.db.hashes, key)
		c.srv.notify(c.id, "del", key)
	}
	return n, nil
}

func (c *conn) HGetAll(ctx context.Context, key string) ([]store.FieldValue, error) {
	if err := c.lock(ctx); err != nil {
		return nil, err
	}
	defer c.unlock()
	return c.db.hgetall(key), nil
}

func (c *conn) HExists(ctx context.Context, key, field string) (bool, error) {
	if err := c.lock(ctx); err != nil {
		return false, err
	}
	defer c.unlock()
	_, ok := c.db.hashes[key][field]
	return ok, nil
}

func (c *conn) SCard(ctx context.Context, key string) (int64, error) {
	if err := c.lock(ctx); err != nil {
		return 0, err
	}
	defer c.unlock()
	return int64(len(c.db.sets[key])), nil
}

func (c *conn) FlushDB(ctx context.Context) error {
	if err := c.lock(ctx); err != nil {
		return err
	}
	defer c.unlock()
	fresh := newDatabase()
	c.db.strings = fresh.strings
	c.db.hashes = fresh.hashes
	c.db.sets = fresh.sets
	return nil
}

func (c *conn) Publish(ctx context.Context, channel, payload string) (int64, error) {
	if err := c.check(ctx); err != nil {
		return 0, err
	}
	return int64(c.srv.publish(channel, payload)), nil
}

func (c *conn) Subscribe(ctx context.Context, channels ...string) (store.Subscription, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	return c.srv.subscribe(false, channels)
}

func (c *conn) PSubscribe(ctx context.Context, patterns ...string) (store.Subscription, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	return c.srv.subscribe(true, patterns)
}

func (c *conn) ProducerSet(ctx context.Context, keys store.StateKeys, key string, fvs []store.FieldValue) error {
	if err := c.lock(ctx); err != nil {
		return err
	}
	defer c.unlock()
	added := c.db.sadd(keys.KeySet, key)
	for _, fv := range fvs {
		c.db.hset(keys.TempKey(key), fv.Field, fv.Value)
	}
	if added {
		c.srv.publish(keys.Channel, "G")
	}
	return nil
}

func (c *conn) ProducerDel(ctx context.Context, keys store.StateKeys, key string) error {
	if err := c.lock(ctx); err != nil {
		return err
	}
	defer c.unlock()
	added := c.db.sadd(keys.KeySet, key)
	c.db.sadd(keys.DelSet, key)
	c.db.del(keys.TempKey(key))
	if added {
		c.srv.publish(keys.Channel, "G")
	}
	return nil
}

func (c *conn) ConsumerPop(ctx context.Context, keys store.StateKeys, count int) ([]store.StateEntry, error) {
	if err := c.lock(ctx); err != nil {
		return nil, err
	}
	defer c.unlock()

	pending := c.db.sets[keys.KeySet]
	popped := make([]string, 0, min(count, len(pending)))
	for k := range pending {
		if len(popped) == count {
			break
		}
		popped = append(popped, k)
	}

	out := make([]store.StateEntry, 0, len(popped))
	for _, key := range popped {
		c.db.srem(keys.KeySet, key)
		tableKey := keys.TableKey(key)
		if c.db.srem(keys.DelSet, key) {
			if c.db.del(tableKey) {
				c.srv.notify(c.id, "del", tableKey)
			}
		}
		fvs := c.db.hgetall(keys.TempKey(key))
		for _, fv := range fvs {
			c.db.hset(tableKey, fv.Field, fv.Value)
		}
		if len(fvs) > 0 {
			c.srv.notify(c.id, "hset", tableKey)
		}
		c.db.del(keys.TempKey(key))
		out = append(out, store.StateEntry{Key: key, Del: len(fvs) == 0, Fields: fvs})
	}
	return out, nil
}

func (c *conn) Close() error {
	c.closed.Store(true)
	return nil
}

type subscription struct {
	srv      *Server
	patterns bool
	names    []string
	ch       chan store.Message

	mu     sync.Mutex
	closed bool
}

func (s *subscription) match(channel string) (store.Message, bool) {
	for _, n := range s.names {
		if s.patterns {
			if Match(n, channel) {
				return store.Message{Pattern: n, Channel: channel}, true
			}
		} else if n == channel {
			return store.Message{Channel: channel}, true
		}
	}
	return store.Message{}, false
}

func (s *subscription) deliver(m store.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- m:
		return true
	default:
		return false
	}
}

func (s *subscription) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

func (s *subscription) Messages() <-chan store.Message { return s.ch }

func (s *subscription) Close() error {
	s.srv.unsubscribe(s)
	return nil
}
