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

package dbcli

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sonic-net/sonic-swss-common/pkg/swss"
)

// recordView is the printed form of a swss.Record.
type recordView struct {
	Key    string            `json:"key" yaml:"key"`
	Op     string            `json:"op" yaml:"op"`
	Fields map[string]string `json:"fields,omitempty" yaml:"fields,omitempty"`
}

func viewRecord(r swss.Record) recordView {
	v := recordView{Key: r.Key, Op: r.Operation.String()}
	if len(r.Fields) > 0 {
		v.Fields = r.StringFields()
	}
	return v
}

// print writes v in the selected format.
func (a *app) print(v any) error {
	if a.format == "yaml" {
		enc := yaml.NewEncoder(a.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return json.NewEncoder(a.out).Encode(v)
}

func (a *app) printRecords(rs []swss.Record) error {
	for _, r := range rs {
		if err := a.print(viewRecord(r)); err != nil {
			return err
		}
	}
	return nil
}

// printValue writes a string value on its own line; a missing value
// writes nothing.
func (a *app) printValue(v *swss.OwnedString) {
	if v == nil {
		return
	}
	fmt.Fprintln(a.out, v.String())
	v.Free()
}

func (a *app) printBool(b bool) {
	if b {
		fmt.Fprintln(a.out, 1)
	} else {
		fmt.Fprintln(a.out, 0)
	}
}

// parsePairs parses FIELD=VALUE arguments.
func parsePairs(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, arg := range args {
		field, value, ok := strings.Cut(arg, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("expected FIELD=VALUE, got %q", arg)
		}
		out[field] = value
	}
	return out, nil
}
