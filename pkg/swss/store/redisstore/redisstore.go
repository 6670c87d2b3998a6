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

// Package redisstore implements store.Store on top of go-redis.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/store"
)

var (
	producerSetScript = redis.NewScript(`
local added = redis.call('SADD', KEYS[2], ARGV[2])
for i = 0, #KEYS - 3 do
    redis.call('HSET', KEYS[3 + i], ARGV[3 + i * 2], ARGV[4 + i * 2])
end
if added > 0 then
    redis.call('PUBLISH', KEYS[1], ARGV[1])
end
return added
`)

	producerDelScript = redis.NewScript(`
local added = redis.call('SADD', KEYS[2], ARGV[2])
redis.call('SADD', KEYS[4], ARGV[2])
redis.call('DEL', KEYS[3])
if added > 0 then
    redis.call('PUBLISH', KEYS[1], ARGV[1])
end
return added
`)

	consumerPopScript = redis.NewScript(`
local ret = {}
local tablename = KEYS[2]
local stateprefix = ARGV[2]
local keys = redis.call('SPOP', KEYS[1], ARGV[1])
for i = 1, #keys do
    local key = keys[i]
    if redis.call('SREM', KEYS[3], key) == 1 then
        redis.call('DEL', tablename..key)
    end
    local fieldvalues = redis.call('HGETALL', stateprefix..tablename..key)
    table.insert(ret, {key, fieldvalues})
    for j = 1, #fieldvalues, 2 do
        redis.call('HSET', tablename..key, fieldvalues[j], fieldvalues[j + 1])
    end
    redis.call('DEL', stateprefix..tablename..key)
end
return ret
`)
)

// Driver dials real redis servers. It serves every address and is meant to
// be installed with store.SetFallback.
type Driver struct{}

// Open connects and pings the server.
func (Driver) Open(ctx context.Context, opts store.Options) (store.Store, error) {
	return Open(ctx, opts)
}

// Store is a redis-backed store.Store.
type Store struct {
	client *redis.Client
	db     int

	mu     sync.Mutex
	closed bool
}

var _ store.Store = (*Store)(nil)

// Open creates a client for opts and verifies connectivity with a ping.
func Open(ctx context.Context, opts store.Options) (*Store, error) {
	network := opts.Network
	if network == "" {
		network = "tcp"
	}

	options := &redis.Options{
		Network: network,
		Addr:    opts.Addr,
		DB:      opts.DB,
	}
	if opts.Timeout > 0 {
		options.DialTimeout = opts.Timeout
		options.ReadTimeout = opts.Timeout
		options.WriteTimeout = opts.Timeout
	} else {
		// go-redis treats -1 as "no deadline".
		options.ReadTimeout = -1
		options.WriteTimeout = -1
	}

	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstore: ping %s %s: %w", network, opts.Addr, err)
	}
	return &Store{client: client, db: opts.DB}, nil
}

// DB returns the logical database index.
func (s *Store) DB() int { return s.db }

// Client exposes the underlying go-redis client.
func (s *Store) Client() *redis.Client { return s.client }

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return s.client.Del(ctx, keys...).Result()
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	return n > 0, err
}

func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	return s.client.Keys(ctx, pattern).Result()
}

func (s *Store) HGet(ctx context.Context, key, field string) (string, bool, error) {
	v, err := s.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *Store) HSet(ctx context.Context, key string, fvs ...store.FieldValue) error {
	if len(fvs) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(fvs)*2)
	for _, fv := range fvs {
		args = append(args, fv.Field, fv.Value)
	}
	return s.client.HSet(ctx, key, args...).Err()
}

func (s *Store) HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	if len(fields) == 0 {
		return 0, nil
	}
	return s.client.HDel(ctx, key, fields...).Result()
}

func (s *Store) HGetAll(ctx context.Context, key string) ([]store.FieldValue, error) {
	m, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	out := make([]store.FieldValue, 0, len(m))
	for f, v := range m {
		out = append(out, store.FieldValue{Field: f, Value: v})
	}
	return out, nil
}

func (s *Store) HExists(ctx context.Context, key, field string) (bool, error) {
	return s.client.HExists(ctx, key, field).Result()
}

func (s *Store) SCard(ctx context.Context, key string) (int64, error) {
	return s.client.SCard(ctx, key).Result()
}

func (s *Store) FlushDB(ctx context.Context) error {
	return s.client.FlushDB(ctx).Err()
}

func (s *Store) Publish(ctx context.Context, channel, payload string) (int64, error) {
	return s.client.Publish(ctx, channel, payload).Result()
}

func (s *Store) Subscribe(ctx context.Context, channels ...string) (store.Subscription, error) {
	ps := s.client.Subscribe(ctx, channels...)
	// Wait for the subscription confirmation so no publish is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	return newSubscription(ps), nil
}

func (s *Store) PSubscribe(ctx context.Context, patterns ...string) (store.Subscription, error) {
	ps := s.client.PSubscribe(ctx, patterns...)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	return newSubscription(ps), nil
}

func (s *Store) ProducerSet(ctx context.Context, keys store.StateKeys, key string, fvs []store.FieldValue) error {
	scriptKeys := make([]string, 0, len(fvs)+2)
	scriptKeys = append(scriptKeys, keys.Channel, keys.KeySet)
	args := make([]interface{}, 0, len(fvs)*2+2)
	args = append(args, "G", key)
	for _, fv := range fvs {
		scriptKeys = append(scriptKeys, keys.TempKey(key))
		args = append(args, fv.Field, fv.Value)
	}
	return ignoreNil(producerSetScript.Run(ctx, s.client, scriptKeys, args...).Err())
}

func (s *Store) ProducerDel(ctx context.Context, keys store.StateKeys, key string) error {
	scriptKeys := []string{keys.Channel, keys.KeySet, keys.TempKey(key), keys.DelSet}
	return ignoreNil(producerDelScript.Run(ctx, s.client, scriptKeys, "G", key).Err())
}

func (s *Store) ConsumerPop(ctx context.Context, keys store.StateKeys, count int) ([]store.StateEntry, error) {
	scriptKeys := []string{keys.KeySet, keys.TablePrefix, keys.DelSet}
	res, err := consumerPopScript.Run(ctx, s.client, scriptKeys, strconv.Itoa(count), keys.StatePrefix).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return parsePopReply(res)
}

func parsePopReply(res interface{}) ([]store.StateEntry, error) {
	items, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("redisstore: unexpected pop reply %T", res)
	}
	out := make([]store.StateEntry, 0, len(items))
	for _, item := range items {
		pair, ok := item.([]interface{})
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("redisstore: unexpected pop entry %T", item)
		}
		key, ok := pair[0].(string)
		if !ok {
			return nil, fmt.Errorf("redisstore: unexpected pop key %T", pair[0])
		}
		flat, ok := pair[1].([]interface{})
		if !ok {
			return nil, fmt.Errorf("redisstore: unexpected pop values %T", pair[1])
		}
		entry := store.StateEntry{Key: key}
		for i := 0; i+1 < len(flat); i += 2 {
			f, _ := flat[i].(string)
			v, _ := flat[i+1].(string)
			entry.Fields = append(entry.Fields, store.FieldValue{Field: f, Value: v})
		}
		entry.Del = len(entry.Fields) == 0
		out = append(out, entry)
	}
	return out, nil
}

func ignoreNil(err error) error {
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

// Close closes the client. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}

type subscription struct {
	ps   *redis.PubSub
	ch   chan store.Message
	done chan struct{}
	once sync.Once
}

func newSubscription(ps *redis.PubSub) *subscription {
	s := &subscription{
		ps:   ps,
		ch:   make(chan store.Message, 128),
		done: make(chan struct{}),
	}
	go s.forward()
	return s
}

func (s *subscription) forward() {
	defer close(s.ch)
	in := s.ps.Channel(redis.WithChannelHealthCheckInterval(30 * time.Second))
	for {
		select {
		case <-s.done:
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			select {
			case s.ch <- store.Message{Pattern: m.Pattern, Channel: m.Channel, Payload: m.Payload}:
			case <-s.done:
				return
			}
		}
	}
}

func (s *subscription) Messages() <-chan store.Message { return s.ch }

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}
