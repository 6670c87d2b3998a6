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

package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonic-net/sonic-swss-common/pkg/config/testutil"
)

type testConfig struct {
	DB struct {
		Namespace string `mapstructure:"namespace"`
		TCP       bool   `mapstructure:"tcp"`
	} `mapstructure:"db"`
	Consumer struct {
		PopBatchSize int `mapstructure:"pop_batch_size"`
		Priority     int `mapstructure:"priority"`
	} `mapstructure:"consumer"`
}

func TestManagerFiles(t *testing.T) {
	m := NewManager(Options{WorkDir: "/etc/sonic", Environment: "DPU"})
	assert.Equal(t, []string{
		"/etc/sonic/swss.yaml",
		"/etc/sonic/swss.dpu.yaml",
		"/etc/sonic/swss.override.yaml",
	}, m.Files())

	m = NewManager(Options{Name: "dbcli"})
	assert.Equal(t, []string{"dbcli.yaml", "dbcli.override.yaml"}, m.Files())
}

func TestHierarchicalPrecedence(t *testing.T) {
	sb := testutil.NewSandbox(t)
	sb.Setenv("SWSS_DB_NAMESPACE", "asic3")
	sb.Setenv("SWSS_CONSUMER_POP_BATCH_SIZE", "512")

	sb.WriteFile("swss.yaml", []byte(`
db:
  namespace: asic0
  tcp: false
consumer:
  pop_batch_size: 16
  priority: 1
`))
	sb.WriteFile("swss.dpu.yaml", []byte(`
db:
  namespace: asic1
  tcp: true
consumer:
  priority: 5
`))
	sb.WriteFile("swss.override.yaml", []byte(`
db:
  namespace: asic2
consumer:
  pop_batch_size: 256
`))

	m := NewManager(Options{WorkDir: sb.Dir, Environment: "dpu", EnvPrefix: DefaultEnvPrefix})
	m.SetDefault("db.namespace", "")
	m.SetDefault("consumer.pop_batch_size", 128)
	m.SetDefault("consumer.priority", 0)
	require.NoError(t, m.Load())
	assert.Len(t, m.Loaded(), 3)

	var cfg testConfig
	require.NoError(t, m.Unmarshal(&cfg))
	// defaults < base < environment < override < variables
	assert.Equal(t, "asic3", cfg.DB.Namespace)
	assert.Equal(t, 512, cfg.Consumer.PopBatchSize)
	assert.Equal(t, 5, cfg.Consumer.Priority)
	assert.True(t, cfg.DB.TCP)
}

func TestMissingFilesAreIgnored(t *testing.T) {
	sb := testutil.NewSandbox(t)
	base := sb.WriteFile("swss.yaml", []byte(`db: { namespace: "asic0" }`))

	m := NewManager(Options{WorkDir: sb.Dir, Environment: "prod"})
	require.NoError(t, m.Load())
	assert.Equal(t, []string{base}, m.Loaded())

	var cfg testConfig
	require.NoError(t, m.Unmarshal(&cfg))
	assert.Equal(t, "asic0", cfg.DB.Namespace)
}

func TestMalformedFileKeepsSettings(t *testing.T) {
	sb := testutil.NewSandbox(t)
	sb.WriteFile("swss.yaml", []byte(`db: { namespace: "asic0" }`))

	m := NewManager(Options{WorkDir: sb.Dir})
	require.NoError(t, m.Load())

	sb.WriteFile("swss.override.yaml", []byte("db: [unterminated"))
	err := m.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "swss.override.yaml")
	assert.Equal(t, "asic0", m.Get("db.namespace"))
	assert.Len(t, m.Loaded(), 1)
}

func TestBindFlag(t *testing.T) {
	sb := testutil.NewSandbox(t)
	sb.WriteFile("swss.yaml", []byte(`namespace: asic0`))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("namespace", "", "")
	m := NewManager(Options{WorkDir: sb.Dir})
	require.NoError(t, m.BindFlag("namespace", fs.Lookup("namespace")))
	assert.Error(t, m.BindFlag("other", fs.Lookup("other")))

	require.NoError(t, m.Load())
	assert.Equal(t, "asic0", m.Get("namespace"))

	require.NoError(t, fs.Parse([]string{"--namespace", "asic7"}))
	assert.Equal(t, "asic7", m.Get("namespace"))
	// Flags survive a reload.
	require.NoError(t, m.Load())
	assert.Equal(t, "asic7", m.Get("namespace"))
}

func TestManagerWatchReloads(t *testing.T) {
	sb := testutil.NewSandbox(t)
	sb.WriteYAML("swss.yaml", map[string]any{"log": map[string]any{"level": "INFO"}})

	m := NewManager(Options{WorkDir: sb.Dir})
	SetDefaults(m)
	require.NoError(t, m.Load())

	w, err := NewWatcher(10 * time.Millisecond)
	require.NoError(t, err)
	defer w.Close()
	reloaded := make(chan error, 8)
	require.NoError(t, m.Watch(w, func(err error) { reloaded <- err }))
	require.NoError(t, w.Start(context.Background()))

	sb.WriteYAML("swss.override.yaml", map[string]any{"log": map[string]any{"level": "DEBUG"}})
	select {
	case err := <-reloaded:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("no reload")
	}
	require.Eventually(t, func() bool {
		s, err := m.Settings()
		return err == nil && s.Log.Level == "DEBUG"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, m.Loaded(), filepath.Join(sb.Dir, "swss.override.yaml"))
}

func TestUnmarshalNilTarget(t *testing.T) {
	m := NewManager(Options{})
	assert.Error(t, m.Unmarshal(nil))
}

func TestSettings(t *testing.T) {
	sb := testutil.NewSandbox(t)
	sb.Setenv("SWSS_TIMEOUT", "5s")
	sb.Setenv("SWSS_LOG_LEVEL", "DEBUG")
	sb.Unsetenv("SWSS_NAMESPACE")
	sb.Chdir()
	sb.WriteYAML("swss.yaml", map[string]any{
		"db_config_file":     "/etc/sonic/database_config.json",
		"namespace":          "asic0",
		"tcp":                true,
		"transport_endpoint": "nats://127.0.0.1:4222/swss",
	})

	m := NewManager(Options{EnvPrefix: DefaultEnvPrefix})
	SetDefaults(m)
	require.NoError(t, m.Load())
	s, err := m.Settings()
	require.NoError(t, err)

	assert.Equal(t, "/etc/sonic/database_config.json", s.DBConfigFile)
	assert.Equal(t, "asic0", s.Namespace)
	assert.True(t, s.TCP)
	assert.Equal(t, 5*time.Second, s.Timeout)
	assert.Equal(t, LogSettings{Level: "DEBUG", Output: "STDERR"}, s.Log)
	assert.Equal(t, "nats://127.0.0.1:4222/swss", s.TransportEndpoint)
	assert.Equal(t, 6379, s.Port)
	key := s.DBKey()
	assert.Equal(t, "asic0", key.Namespace)
	assert.Empty(t, key.ContainerName)
}

func TestSettingsValidation(t *testing.T) {
	for name, set := range map[string]func(*Manager){
		"negative timeout": func(m *Manager) { m.SetDefault("timeout", "-1s") },
		"port zero":        func(m *Manager) { m.SetDefault("port", 0) },
		"port too large":   func(m *Manager) { m.SetDefault("port", 70000) },
	} {
		t.Run(name, func(t *testing.T) {
			m := NewManager(Options{WorkDir: t.TempDir()})
			SetDefaults(m)
			set(m)
			_, err := m.Settings()
			assert.Error(t, err)
		})
	}
}
