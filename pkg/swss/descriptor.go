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
	"encoding/hex"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/dbconfig"
)

// Fields of a protobuf-encoded entry before and after ConvertProtoToJSON.
const (
	ProtoField = "pb"
	JSONField  = "json"
)

// TableDescriptor names a table and the database it lives in.
type TableDescriptor struct {
	TableName    string
	KeySeparator string
	DBName       string
	IsDPU        bool

	// NewMessage, when set, marks the table as protobuf-encoded: each
	// entry holds one hex-encoded message in its ProtoField.
	NewMessage func() proto.Message
}

// DescribeTable returns a descriptor for tableName in dbName with the key
// separator of the local database configuration.
func DescribeTable(dbName, tableName string) (TableDescriptor, error) {
	sep, err := dbconfig.Default().Separator(dbName, dbconfig.Key{})
	if err != nil {
		return TableDescriptor{}, err
	}
	return TableDescriptor{TableName: tableName, KeySeparator: sep, DBName: dbName}, nil
}

// IsProto reports whether entries are protobuf-encoded.
func (d TableDescriptor) IsProto() bool { return d.NewMessage != nil }

// Key joins parts with the key separator.
func (d TableDescriptor) Key(parts ...string) string {
	return strings.Join(parts, d.KeySeparator)
}

// SplitKey splits a key into its parts.
func (d TableDescriptor) SplitKey(key string) []string {
	return strings.Split(key, d.KeySeparator)
}

// Connect opens a connection to the table's database.
func (d TableDescriptor) Connect(isTCP bool, timeout time.Duration) (*DBConnector, error) {
	return NewDBConnectorNamed(d.DBName, isTCP, timeout)
}

// OpenTable opens the table on a new connection.
func (d TableDescriptor) OpenTable(isTCP bool, timeout time.Duration) (*Table, error) {
	db, err := d.Connect(isTCP, timeout)
	if err != nil {
		return nil, err
	}
	return NewTable(db, d.TableName)
}

// OpenProducer opens the producer side of the table on a new connection.
func (d TableDescriptor) OpenProducer(isTCP bool, timeout time.Duration) (*ProducerStateTable, error) {
	db, err := d.Connect(isTCP, timeout)
	if err != nil {
		return nil, err
	}
	return NewProducerStateTable(db, d.TableName)
}

// OpenConsumer opens the consumer side of the table on a new connection.
func (d TableDescriptor) OpenConsumer(isTCP bool, timeout time.Duration, opts ...ConsumerOption) (*ConsumerStateTable, error) {
	db, err := d.Connect(isTCP, timeout)
	if err != nil {
		return nil, err
	}
	return NewConsumerStateTable(db, d.TableName, opts...)
}

// OpenSubscriber subscribes to the table on a new connection.
func (d TableDescriptor) OpenSubscriber(isTCP bool, timeout time.Duration, opts ...ConsumerOption) (*SubscriberStateTable, error) {
	db, err := d.Connect(isTCP, timeout)
	if err != nil {
		return nil, err
	}
	return NewSubscriberStateTable(db, d.TableName, opts...)
}

// ConvertProtoToJSON replaces the hex-encoded message of a set record with
// its JSON form under JSONField. Records that are not protobuf-encoded, or
// that fail to decode, are left unchanged.
func (d TableDescriptor) ConvertProtoToJSON(r *Record) {
	if !d.IsProto() || r.Operation != OpSet {
		return
	}
	v, ok := r.Fields[ProtoField]
	if !ok || v.IsEmpty() {
		return
	}
	raw, err := hex.DecodeString(v.String())
	if err != nil {
		return
	}
	m := d.NewMessage()
	if err := proto.Unmarshal(raw, m); err != nil {
		return
	}
	js, err := protojson.Marshal(m)
	if err != nil {
		return
	}
	r.Fields.Free()
	r.Fields = FieldValues{JSONField: NewOwnedString(js)}
}
