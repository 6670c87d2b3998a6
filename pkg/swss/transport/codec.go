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

// Package transport carries batches of key/operation/field-value records
// from producers to a consumer-side dispatcher. It fills the role a
// PUSH/PULL message queue plays between ZmqProducerStateTable and
// ZmqServer in swss-common.
package transport

import (
	"fmt"

	"github.com/linkedin/goavro/v2"
)

// Operation is the operation of one Entry.
type Operation string

const (
	OpSet Operation = "SET"
	OpDel Operation = "DEL"
)

// FieldValue is one field of an Entry.
type FieldValue struct {
	Field string
	Value []byte
}

// Entry is one key/operation/field-value record.
type Entry struct {
	Key    string
	Op     Operation
	Fields []FieldValue
}

// Message is the unit sent from a client to a server: every entry targets
// the same table of the same database.
type Message struct {
	DB      string
	Table   string
	Entries []Entry
}

const messageSchema = `{
  "type": "record",
  "name": "Message",
  "namespace": "org.sonic.swss.transport",
  "fields": [
    {"name": "db", "type": "string"},
    {"name": "table", "type": "string"},
    {"name": "entries", "type": {"type": "array", "items": {
      "type": "record",
      "name": "Entry",
      "fields": [
        {"name": "key", "type": "string"},
        {"name": "op", "type": {"type": "enum", "name": "Operation", "symbols": ["SET", "DEL"]}},
        {"name": "fields", "type": {"type": "array", "items": {
          "type": "record",
          "name": "FieldValue",
          "fields": [
            {"name": "field", "type": "string"},
            {"name": "value", "type": "bytes"}
          ]
        }}}
      ]
    }}}
  ]
}`

var messageCodec = mustCodec(messageSchema)

func mustCodec(schema string) *goavro.Codec {
	c, err := goavro.NewCodec(schema)
	if err != nil {
		panic(fmt.Sprintf("transport: invalid schema: %v", err))
	}
	return c
}

// Encode serializes m into Avro binary.
func Encode(m Message) ([]byte, error) {
	entries := make([]interface{}, 0, len(m.Entries))
	for _, e := range m.Entries {
		if e.Op != OpSet && e.Op != OpDel {
			return nil, newError(ErrorTypeSerialization, "encode", "", fmt.Errorf("invalid operation %q for key %q", e.Op, e.Key))
		}
		fields := make([]interface{}, 0, len(e.Fields))
		for _, fv := range e.Fields {
			fields = append(fields, map[string]interface{}{"field": fv.Field, "value": fv.Value})
		}
		entries = append(entries, map[string]interface{}{
			"key":    e.Key,
			"op":     string(e.Op),
			"fields": fields,
		})
	}
	native := map[string]interface{}{"db": m.DB, "table": m.Table, "entries": entries}
	buf, err := messageCodec.BinaryFromNative(nil, native)
	if err != nil {
		return nil, newError(ErrorTypeSerialization, "encode", "", err)
	}
	return buf, nil
}

// Decode parses an Avro binary message.
func Decode(buf []byte) (Message, error) {
	native, rest, err := messageCodec.NativeFromBinary(buf)
	if err != nil {
		return Message{}, newError(ErrorTypeSerialization, "decode", "", err)
	}
	if len(rest) != 0 {
		return Message{}, newError(ErrorTypeSerialization, "decode", "", fmt.Errorf("%d trailing bytes", len(rest)))
	}

	rec, ok := native.(map[string]interface{})
	if !ok {
		return Message{}, newError(ErrorTypeSerialization, "decode", "", fmt.Errorf("unexpected datum %T", native))
	}
	m := Message{}
	m.DB, _ = rec["db"].(string)
	m.Table, _ = rec["table"].(string)
	items, _ := rec["entries"].([]interface{})
	m.Entries = make([]Entry, 0, len(items))
	for _, item := range items {
		er, _ := item.(map[string]interface{})
		e := Entry{}
		e.Key, _ = er["key"].(string)
		op, _ := er["op"].(string)
		e.Op = Operation(op)
		fields, _ := er["fields"].([]interface{})
		for _, f := range fields {
			fr, _ := f.(map[string]interface{})
			name, _ := fr["field"].(string)
			value, _ := fr["value"].([]byte)
			e.Fields = append(e.Fields, FieldValue{Field: name, Value: value})
		}
		m.Entries = append(m.Entries, e)
	}
	return m, nil
}
