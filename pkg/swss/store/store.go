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

// Package store defines the key-value backend used by the native layer:
// scalar, hash and set primitives, pub/sub, and the atomic scripts behind
// producer and consumer state tables.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrClosed is returned by operations on a closed store or subscription.
var ErrClosed = errors.New("store: closed")

// ErrUnreachable is returned when no backend answers at an address.
var ErrUnreachable = errors.New("store: unreachable")

// FieldValue is one hash field with its value. Values are raw bytes held in
// a string.
type FieldValue struct {
	Field string
	Value string
}

// StateEntry is one record popped from a state table.
type StateEntry struct {
	Key    string
	Del    bool
	Fields []FieldValue
}

// StateKeys names the redis objects making up one state table.
type StateKeys struct {
	// KeySet holds keys with pending changes (TABLE_KEY_SET).
	KeySet string
	// DelSet holds keys with a pending delete (TABLE_DEL_SET).
	DelSet string
	// Channel is published on whenever a key enters KeySet.
	Channel string
	// TablePrefix is "TABLE" + separator.
	TablePrefix string
	// StatePrefix prefixes TablePrefix for the temporary hashes ("_").
	StatePrefix string
}

// NewStateKeys derives the object names of a state table.
func NewStateKeys(table, separator string, dbID int) StateKeys {
	return StateKeys{
		KeySet:      table + "_KEY_SET",
		DelSet:      table + "_DEL_SET",
		Channel:     fmt.Sprintf("%s_CHANNEL@%d", table, dbID),
		TablePrefix: table + separator,
		StatePrefix: "_",
	}
}

// TableKey returns the hash holding key's committed fields.
func (k StateKeys) TableKey(key string) string {
	return k.TablePrefix + key
}

// TempKey returns the hash holding key's pending fields.
func (k StateKeys) TempKey(key string) string {
	return k.StatePrefix + k.TablePrefix + key
}

// Message is one pub/sub delivery.
type Message struct {
	Pattern string
	Channel string
	Payload string
}

// Subscription delivers messages until closed.
type Subscription interface {
	Messages() <-chan Message
	Close() error
}

// Store is a connection to one logical database.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	Keys(ctx context.Context, pattern string) ([]string, error)

	HGet(ctx context.Context, key, field string) (string, bool, error)
	HSet(ctx context.Context, key string, fvs ...FieldValue) error
	HDel(ctx context.Context, key string, fields ...string) (int64, error)
	HGetAll(ctx context.Context, key string) ([]FieldValue, error)
	HExists(ctx context.Context, key, field string) (bool, error)

	SCard(ctx context.Context, key string) (int64, error)
	FlushDB(ctx context.Context) error

	// Publish returns the number of subscribers that received payload.
	Publish(ctx context.Context, channel, payload string) (int64, error)
	Subscribe(ctx context.Context, channels ...string) (Subscription, error)
	PSubscribe(ctx context.Context, patterns ...string) (Subscription, error)

	// ProducerSet atomically records a pending set of key.
	ProducerSet(ctx context.Context, keys StateKeys, key string, fvs []FieldValue) error
	// ProducerDel atomically records a pending delete of key.
	ProducerDel(ctx context.Context, keys StateKeys, key string) error
	// ConsumerPop atomically moves up to count pending keys into the table.
	ConsumerPop(ctx context.Context, keys StateKeys, count int) ([]StateEntry, error)

	// DB returns the logical database index.
	DB() int
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	// Network is "tcp" or "unix".
	Network string
	// Addr is host:port for tcp and a socket path for unix.
	Addr string
	// DB is the logical database index.
	DB int
	// Timeout bounds dialing and every command. Zero means no limit.
	Timeout time.Duration
}

// Driver opens stores for addresses it serves.
type Driver interface {
	// Open returns ErrUnreachable when the driver does not serve opts.Addr.
	Open(ctx context.Context, opts Options) (Store, error)
}

var (
	driversMu sync.RWMutex
	drivers   []Driver
	fallback  Driver
)

// Register adds a driver consulted before the fallback, most recent first.
func Register(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers = append([]Driver{d}, drivers...)
}

// SetFallback sets the driver used when no registered driver serves an
// address.
func SetFallback(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	fallback = d
}

// Open dials a store through the registered drivers.
func Open(ctx context.Context, opts Options) (Store, error) {
	driversMu.RLock()
	ds := append([]Driver(nil), drivers...)
	fb := fallback
	driversMu.RUnlock()

	for _, d := range ds {
		s, err := d.Open(ctx, opts)
		if errors.Is(err, ErrUnreachable) {
			continue
		}
		return s, err
	}
	if fb == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrUnreachable, opts.Network, opts.Addr)
	}
	return fb.Open(ctx, opts)
}
