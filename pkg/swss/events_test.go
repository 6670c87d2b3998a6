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

package swss_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonic-net/sonic-swss-common/pkg/swss"
	"github.com/sonic-net/sonic-swss-common/pkg/swss/dbconfig"
	"github.com/sonic-net/sonic-swss-common/pkg/swss/swsstest"
)

func TestEventPublisher(t *testing.T) {
	r := newRedis(t)
	cfg := r.Config()
	cfg.Databases["EVENTS"] = dbconfig.Database{ID: 6, Separator: ":", Instance: "redis"}
	dbconfig.Default().Set(dbconfig.Key{}, cfg)

	ep := swsstest.RandomEndpoint()
	t.Setenv("SWSS_EVENTS_ENDPOINT", ep)

	p, err := swss.NewEventPublisher("sonic-events-bgp")
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, "sonic-events-bgp", p.EventSource())

	// Nobody receives yet, so the event is dropped.
	require.NoError(t, p.Publish("bgp-state", map[string]string{"ip": "10.0.0.1", "status": "down"}))

	server, err := swss.NewTransportServer(ep)
	require.NoError(t, err)
	defer server.Close()
	consumer, err := swss.NewTransportConsumerStateTable(named(t, r, "EVENTS"), "sonic-events-bgp", server)
	require.NoError(t, err)
	defer consumer.Close()

	require.NoError(t, p.Publish("bgp-state", map[string]string{"ip": "10.0.0.1", "status": "up"}))
	assert.Equal(t, swss.SelectData, readData(t, consumer, time.Second))
	rs, err := consumer.Pops()
	require.NoError(t, err)
	defer swss.FreeRecords(rs)
	require.Len(t, rs, 1)
	assert.Equal(t, "sonic-events-bgp:bgp-state", rs[0].Key)
	fields := rs[0].StringFields()
	assert.Equal(t, "up", fields["status"])
	assert.Equal(t, "10.0.0.1", fields["ip"])
	assert.Equal(t, "2", fields["sequence"])
	assert.NotEmpty(t, fields["runtime_id"])

	require.NoError(t, p.Publish("heartbeat", nil))
	assert.Equal(t, swss.SelectData, readData(t, consumer, time.Second))
	rs2, err := consumer.Pops()
	require.NoError(t, err)
	defer swss.FreeRecords(rs2)
	require.Len(t, rs2, 1)
	assert.Equal(t, "3", rs2[0].StringFields()["sequence"])
	assert.Equal(t, fields["runtime_id"], rs2[0].StringFields()["runtime_id"])

	require.NoError(t, p.Deinit())
	err = p.Publish("bgp-state", nil)
	assert.ErrorIs(t, err, swss.ErrNative)
	assert.ErrorContains(t, err, "deinitialized")

	p.Close()
	assert.ErrorIs(t, p.Publish("bgp-state", nil), swss.ErrInvariant)
}

func TestEventPublisherEncoding(t *testing.T) {
	t.Setenv("SWSS_EVENTS_ENDPOINT", swsstest.RandomEndpoint())
	_, err := swss.NewEventPublisher("bad\x00source")
	assert.ErrorIs(t, err, swss.ErrEncoding)

	p, err := swss.NewEventPublisher("src")
	require.NoError(t, err)
	defer p.Close()
	assert.ErrorIs(t, p.Publish("tag", map[string]string{"f\x00": "v"}), swss.ErrEncoding)
}
