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
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/sonic-net/sonic-swss-common/pkg/swss"
)

func TestDescribeTable(t *testing.T) {
	newRedis(t)

	d, err := swss.DescribeTable("CONFIG_DB", "PORT")
	require.NoError(t, err)
	assert.Equal(t, "|", d.KeySeparator)
	assert.False(t, d.IsProto())
	assert.Equal(t, "PORT|Ethernet0", d.Key("PORT", "Ethernet0"))
	assert.Equal(t, []string{"PORT", "Ethernet0"}, d.SplitKey("PORT|Ethernet0"))

	d, err = swss.DescribeTable("APPL_DB", "ROUTE_TABLE")
	require.NoError(t, err)
	assert.Equal(t, ":", d.KeySeparator)

	_, err = swss.DescribeTable("NO_SUCH_DB", "T")
	assert.Error(t, err)
}

func TestTableDescriptorOpen(t *testing.T) {
	r := newRedis(t)
	d, err := swss.DescribeTable("APPL_DB", "ROUTE_TABLE")
	require.NoError(t, err)

	p, err := d.OpenProducer(r.IsTCP(), time.Second)
	require.NoError(t, err)
	defer p.Close()
	c, err := d.OpenConsumer(r.IsTCP(), time.Second)
	require.NoError(t, err)
	defer c.Close()
	s, err := d.OpenSubscriber(r.IsTCP(), time.Second)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, p.Set("10.0.0.0/8", swss.Pairs("nexthop", "10.0.0.1")))
	assert.Equal(t, swss.SelectData, readData(t, c, time.Second))
	rs := pops(t, c.Pops)
	require.Len(t, rs, 1)
	assert.Equal(t, "10.0.0.0/8", rs[0].Key)

	tbl, err := d.OpenTable(r.IsTCP(), time.Second)
	require.NoError(t, err)
	defer tbl.Close()
	fvs, err := tbl.Get("10.0.0.0/8")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"nexthop": "10.0.0.1"}, fvs.Strings())
	fvs.Free()

	assert.Equal(t, swss.SelectData, readData(t, s, time.Second))
}

func TestConvertProtoToJSON(t *testing.T) {
	d := swss.TableDescriptor{
		TableName:    "DASH_VNET_TABLE",
		KeySeparator: ":",
		DBName:       "DPU_APPL_DB",
		IsDPU:        true,
		NewMessage:   func() proto.Message { return new(wrapperspb.StringValue) },
	}
	require.True(t, d.IsProto())

	raw, err := proto.Marshal(wrapperspb.String("Vnet1"))
	require.NoError(t, err)
	r, err := swss.SetRecordStrings("Vnet1", map[string]string{swss.ProtoField: hex.EncodeToString(raw)})
	require.NoError(t, err)
	d.ConvertProtoToJSON(&r)
	defer r.Free()

	require.Len(t, r.Fields, 1)
	js, ok := r.Fields[swss.JSONField]
	require.True(t, ok)
	got := new(wrapperspb.StringValue)
	require.NoError(t, protojson.Unmarshal(js.Bytes(), got))
	assert.Equal(t, "Vnet1", got.GetValue())
}

func TestConvertProtoToJSONLeavesOtherRecords(t *testing.T) {
	d := swss.TableDescriptor{TableName: "T", KeySeparator: ":", NewMessage: func() proto.Message { return new(wrapperspb.StringValue) }}

	bad, err := swss.SetRecordStrings("k", map[string]string{swss.ProtoField: "not hex"})
	require.NoError(t, err)
	defer bad.Free()
	d.ConvertProtoToJSON(&bad)
	assert.Equal(t, map[string]string{swss.ProtoField: "not hex"}, bad.StringFields())

	del := swss.NewDelRecord("k")
	d.ConvertProtoToJSON(&del)
	assert.Equal(t, swss.NewDelRecord("k"), del)

	plain := swss.TableDescriptor{TableName: "T", KeySeparator: ":"}
	raw, err := proto.Marshal(wrapperspb.String("x"))
	require.NoError(t, err)
	r, err := swss.SetRecordStrings("k", map[string]string{swss.ProtoField: hex.EncodeToString(raw)})
	require.NoError(t, err)
	defer r.Free()
	plain.ConvertProtoToJSON(&r)
	_, ok := r.Fields[swss.ProtoField]
	assert.True(t, ok)
}
