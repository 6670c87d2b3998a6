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

// Package dbconfig resolves logical database names (APPL_DB, CONFIG_DB, …)
// to redis instances using database_config.json and, for multi-namespace or
// multi-container systems, database_global.json.
package dbconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile is the per-namespace configuration read when nothing
	// was initialized explicitly.
	DefaultConfigFile = "/var/run/redis/sonic-db/database_config.json"
	// DefaultGlobalConfigFile lists the configurations of every namespace.
	DefaultGlobalConfigFile = "/var/run/redis/sonic-db/database_global.json"
	// DefaultSeparator is used by databases that do not declare one.
	DefaultSeparator = ":"
)

var (
	// ErrNotInitialized is returned by lookups before any configuration was
	// loaded.
	ErrNotInitialized = errors.New("dbconfig: not initialized")
	// ErrUnknownDatabase is returned for database names absent from the
	// configuration.
	ErrUnknownDatabase = errors.New("dbconfig: unknown database")
	// ErrUnknownNamespace is returned for a namespace or container without a
	// configuration.
	ErrUnknownNamespace = errors.New("dbconfig: unknown namespace")
)

// Instance is one redis server.
type Instance struct {
	Hostname       string `yaml:"hostname" json:"hostname"`
	Port           int    `yaml:"port" json:"port"`
	UnixSocketPath string `yaml:"unix_socket_path" json:"unix_socket_path"`
}

// Database is one logical database hosted by an instance.
type Database struct {
	ID        int    `yaml:"id" json:"id"`
	Separator string `yaml:"separator" json:"separator"`
	Instance  string `yaml:"instance" json:"instance"`
}

// Config is the content of a database_config.json file.
type Config struct {
	Instances map[string]Instance `yaml:"INSTANCES" json:"INSTANCES"`
	Databases map[string]Database `yaml:"DATABASES" json:"DATABASES"`
	Version   string              `yaml:"VERSION" json:"VERSION"`
}

// Include is one entry of a database_global.json file.
type Include struct {
	Include       string `yaml:"include" json:"include"`
	Namespace     string `yaml:"namespace" json:"namespace"`
	ContainerName string `yaml:"container_name" json:"container_name"`
}

// GlobalConfig is the content of a database_global.json file.
type GlobalConfig struct {
	Includes []Include `yaml:"INCLUDES" json:"INCLUDES"`
	Version  string    `yaml:"VERSION" json:"VERSION"`
}

// Key selects the configuration of one namespace or container. The zero Key
// is the local configuration.
type Key struct {
	Namespace     string
	ContainerName string
}

func (k Key) String() string {
	switch {
	case k.ContainerName != "" && k.Namespace != "":
		return k.ContainerName + "@" + k.Namespace
	case k.ContainerName != "":
		return k.ContainerName
	case k.Namespace != "":
		return k.Namespace
	default:
		return "<local>"
	}
}

// Parse decodes a database configuration. JSON documents are the norm;
// anything not starting with '{' is read as YAML.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("dbconfig: parse: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	for name, db := range c.Databases {
		if db.Separator == "" {
			db.Separator = DefaultSeparator
			c.Databases[name] = db
		}
	}
	return &c, nil
}

// Validate checks that every database references a declared instance.
func (c *Config) Validate() error {
	if len(c.Databases) == 0 {
		return errors.New("dbconfig: no DATABASES section")
	}
	for name, db := range c.Databases {
		if _, ok := c.Instances[db.Instance]; !ok {
			return fmt.Errorf("dbconfig: database %s references unknown instance %q", name, db.Instance)
		}
	}
	return nil
}

// Load reads and parses a database_config.json file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dbconfig: %w", err)
	}
	return Parse(data)
}

// LoadGlobal reads a database_global.json file.
func LoadGlobal(path string) (*GlobalConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dbconfig: %w", err)
	}
	var g GlobalConfig
	if err := unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("dbconfig: parse %s: %w", path, err)
	}
	return &g, nil
}

func unmarshal(data []byte, v any) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		return json.Unmarshal(trimmed, v)
	}
	return yaml.Unmarshal(data, v)
}

// Registry holds the loaded configurations.
type Registry struct {
	mu      sync.RWMutex
	configs map[Key]*Config
	global  bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{configs: map[Key]*Config{}}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry { return defaultRegistry }

// Initialize loads the local configuration from path. An empty path reads
// DefaultConfigFile.
func (r *Registry) Initialize(path string) error {
	if path == "" {
		path = DefaultConfigFile
	}
	c, err := Load(path)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[Key{}] = c
	return nil
}

// InitializeGlobal loads every configuration listed by a global file.
// Include paths are relative to the global file's directory.
func (r *Registry) InitializeGlobal(path string) error {
	if path == "" {
		path = DefaultGlobalConfigFile
	}
	g, err := LoadGlobal(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	loaded := make(map[Key]*Config, len(g.Includes))
	for _, inc := range g.Includes {
		p := inc.Include
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		c, err := Load(p)
		if err != nil {
			return err
		}
		loaded[Key{Namespace: inc.Namespace, ContainerName: inc.ContainerName}] = c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for k, c := range loaded {
		r.configs[k] = c
	}
	r.global = true
	return nil
}

// Set installs a configuration directly.
func (r *Registry) Set(key Key, c *Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[key] = c
}

// Remove forgets the configuration for key.
func (r *Registry) Remove(key Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.configs, key)
}

// Reset forgets every configuration.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs = map[Key]*Config{}
	r.global = false
}

// IsInit reports whether a local configuration is loaded.
func (r *Registry) IsInit() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.configs[Key{}]
	return ok
}

// IsGlobalInit reports whether a global configuration is loaded.
func (r *Registry) IsGlobalInit() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.global
}

// Config returns the configuration for key.
func (r *Registry) Config(key Key) (*Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.configs) == 0 {
		return nil, ErrNotInitialized
	}
	c, ok := r.configs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNamespace, key)
	}
	return c, nil
}

// Lookup resolves a database name to its database and instance entries.
func (r *Registry) Lookup(dbName string, key Key) (Database, Instance, error) {
	c, err := r.Config(key)
	if err != nil {
		return Database{}, Instance{}, err
	}
	db, ok := c.Databases[dbName]
	if !ok {
		return Database{}, Instance{}, fmt.Errorf("%w: %s in %s", ErrUnknownDatabase, dbName, key)
	}
	return db, c.Instances[db.Instance], nil
}

// Separator returns the key separator of a database.
func (r *Registry) Separator(dbName string, key Key) (string, error) {
	db, _, err := r.Lookup(dbName, key)
	if err != nil {
		return "", err
	}
	return db.Separator, nil
}

// NameByID returns the name of a database with the given id, or "" when
// none matches. Ties are broken by name.
func (r *Registry) NameByID(id int, key Key) string {
	c, err := r.Config(key)
	if err != nil {
		return ""
	}
	best := ""
	for name, db := range c.Databases {
		if db.ID == id && (best == "" || name < best) {
			best = name
		}
	}
	return best
}

// DatabaseNames returns the database names of key's configuration.
func (r *Registry) DatabaseNames(key Key) ([]string, error) {
	c, err := r.Config(key)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(c.Databases))
	for name := range c.Databases {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}
