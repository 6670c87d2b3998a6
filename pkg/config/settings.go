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
	"fmt"
	"time"

	"github.com/sonic-net/sonic-swss-common/pkg/swss/dbconfig"
)

// DefaultTimeout bounds connects when no timeout is configured.
const DefaultTimeout = 2 * time.Second

// Settings are the options shared by the swss command line tools.
type Settings struct {
	// DBConfigFile is the local database_config.json.
	DBConfigFile string `mapstructure:"db_config_file"`
	// DBGlobalConfigFile is the multi-namespace database_global.json. It is
	// only read when it exists.
	DBGlobalConfigFile string `mapstructure:"db_global_config_file"`

	// Host, when set, addresses a redis directly instead of resolving
	// database names through the configuration.
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	Namespace     string        `mapstructure:"namespace"`
	ContainerName string        `mapstructure:"container_name"`
	TCP           bool          `mapstructure:"tcp"`
	Timeout       time.Duration `mapstructure:"timeout"`

	TransportEndpoint string `mapstructure:"transport_endpoint"`
	MetricsAddr       string `mapstructure:"metrics_addr"`

	Log LogSettings `mapstructure:"log"`
}

// LogSettings select the process log level and output.
type LogSettings struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// SetDefaults registers the default of every Settings key, which also makes
// each key reachable through its environment variable.
func SetDefaults(m *Manager) {
	m.SetDefault("db_config_file", dbconfig.DefaultConfigFile)
	m.SetDefault("db_global_config_file", dbconfig.DefaultGlobalConfigFile)
	m.SetDefault("host", "")
	m.SetDefault("port", 6379)
	m.SetDefault("namespace", "")
	m.SetDefault("container_name", "")
	m.SetDefault("tcp", false)
	m.SetDefault("timeout", DefaultTimeout)
	m.SetDefault("transport_endpoint", "")
	m.SetDefault("metrics_addr", "")
	m.SetDefault("log.level", "INFO")
	m.SetDefault("log.output", "STDERR")
}

// Settings returns the merged settings.
func (m *Manager) Settings() (Settings, error) {
	var s Settings
	if err := m.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if s.Port <= 0 || s.Port > 65535 {
		return Settings{}, fmt.Errorf("port out of range: %d", s.Port)
	}
	if s.Timeout < 0 {
		return Settings{}, fmt.Errorf("timeout must not be negative, got %s", s.Timeout)
	}
	return s, nil
}

// DBKey returns the database configuration key the settings select.
func (s Settings) DBKey() dbconfig.Key {
	return dbconfig.Key{Namespace: s.Namespace, ContainerName: s.ContainerName}
}
