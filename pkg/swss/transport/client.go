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

	"go.uber.org/zap"

	"github.com/sonic-net/sonic-swss-common/pkg/logger"
)

// Client sends messages to the server bound on an endpoint.
type Client struct {
	ep  endpoint
	log *zap.Logger

	mu     sync.Mutex
	s      sender
	closed bool
}

// NewClient creates a client for endpoint and tries to connect. A server
// that is not up yet is not an error; SendMsg connects lazily.
func NewClient(endpoint string) (*Client, error) {
	ep, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	c := &Client{ep: ep, log: logger.Named("transport").With(zap.String("endpoint", endpoint))}
	if err := c.Connect(); err != nil {
		c.log.Debug("transport client not connected yet", zap.Error(err))
	}
	return c, nil
}

// Endpoint returns the endpoint the client sends to.
func (c *Client) Endpoint() string { return c.ep.raw }

// IsConnected reports whether the client holds a live connection.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s != nil
}

// Connect connects if not already connected.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *Client) connectLocked() error {
	if c.closed {
		return newError(ErrorTypeClosed, "connect", c.ep.raw, nil)
	}
	if c.s != nil {
		return nil
	}
	s, err := dial(c.ep)
	if err != nil {
		return err
	}
	c.s = s
	return nil
}

// SendMsg sends entries for db/table. A failed send drops the connection so
// the next call reconnects.
func (c *Client) SendMsg(db, table string, entries []Entry) error {
	data, err := Encode(Message{DB: db, Table: table, Entries: entries})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connectLocked(); err != nil {
		return err
	}
	if err := c.s.send(data); err != nil {
		_ = c.s.close()
		c.s = nil
		c.log.Warn("transport send failed", zap.String("db", db), zap.String("table", table), zap.Error(err))
		return err
	}
	return nil
}

// Close releases the connection. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.s == nil {
		return nil
	}
	err := c.s.close()
	c.s = nil
	return err
}
