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

// Package testutil builds configuration directories for tests.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/dbconfig"
)

// Sandbox is a temporary configuration directory. Environment and working
// directory changes made through it are undone when the test ends.
type Sandbox struct {
	t   *testing.T
	Dir string
}

// NewSandbox returns an empty sandbox.
func NewSandbox(t *testing.T) *Sandbox {
	t.Helper()
	return &Sandbox{t: t, Dir: t.TempDir()}
}

// Path returns rel inside the sandbox.
func (s *Sandbox) Path(rel string) string { return filepath.Join(s.Dir, rel) }

// Setenv sets key for the rest of the test.
func (s *Sandbox) Setenv(key, value string) {
	s.t.Helper()
	s.t.Setenv(key, value)
}

// Unsetenv removes key for the rest of the test.
func (s *Sandbox) Unsetenv(key string) {
	s.t.Helper()
	// Setenv registers the restore of the current value.
	s.t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		s.t.Fatalf("unsetenv %s: %v", key, err)
	}
}

// Chdir makes the sandbox the working directory for the rest of the test.
func (s *Sandbox) Chdir() {
	s.t.Helper()
	s.t.Chdir(s.Dir)
}

// WriteFile writes content to rel, creating parent directories.
func (s *Sandbox) WriteFile(rel string, content []byte) string {
	s.t.Helper()
	p := s.Path(rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		s.t.Fatalf("mkdir for %s: %v", p, err)
	}
	if err := os.WriteFile(p, content, 0o644); err != nil {
		s.t.Fatalf("write %s: %v", p, err)
	}
	return p
}

// WriteYAML writes v as YAML to rel.
func (s *Sandbox) WriteYAML(rel string, v any) string {
	s.t.Helper()
	data, err := yaml.Marshal(v)
	if err != nil {
		s.t.Fatalf("marshal %s: %v", rel, err)
	}
	return s.WriteFile(rel, data)
}

// WriteDBConfig writes cfg as a database_config.json to rel.
func (s *Sandbox) WriteDBConfig(rel string, cfg *dbconfig.Config) string {
	s.t.Helper()
	data, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		s.t.Fatalf("marshal %s: %v", rel, err)
	}
	return s.WriteFile(rel, data)
}
