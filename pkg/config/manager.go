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

// Package config loads the settings of the swss command line tools from
// layered YAML files, environment variables and flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/sonic-net/sonic-swss-common/pkg/logger"
)

const (
	// DefaultName is the base name of the configuration files.
	DefaultName = "swss"
	// DefaultEnvPrefix prefixes the environment variables of every key.
	DefaultEnvPrefix = "SWSS"
)

// Options select the files and variables a Manager reads. Files are read
// from WorkDir in this order, later files overriding earlier ones:
//
//	<Name>.yaml
//	<Name>.<Environment>.yaml   only when Environment is set
//	<Name>.override.yaml
//
// A variable <EnvPrefix>_<KEY>, with dots in KEY mapped to underscores,
// overrides every file. An empty EnvPrefix disables variables. Flags bound
// with BindFlag win over everything when set on the command line.
type Options struct {
	WorkDir     string
	Name        string
	Environment string
	EnvPrefix   string
}

// Manager merges the configuration layers. It can be reloaded while in use.
type Manager struct {
	opts Options
	log  *zap.Logger

	mu       sync.RWMutex
	v        *viper.Viper
	defaults map[string]any
	flags    map[string]*pflag.Flag
	loaded   []string
}

// NewManager returns a manager holding no settings until Load.
func NewManager(opts Options) *Manager {
	if opts.WorkDir == "" {
		opts.WorkDir = "."
	}
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	m := &Manager{
		opts:     opts,
		log:      logger.Named("config"),
		defaults: make(map[string]any),
		flags:    make(map[string]*pflag.Flag),
	}
	m.v = m.newViper()
	return m
}

// newViper returns an instance with the defaults and flags applied and no
// file merged.
func (m *Manager) newViper() *viper.Viper {
	v := viper.New()
	if p := m.opts.EnvPrefix; p != "" {
		v.SetEnvPrefix(p)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}
	for key, value := range m.defaults {
		v.SetDefault(key, value)
	}
	for key, f := range m.flags {
		_ = v.BindPFlag(key, f)
	}
	return v
}

// SetDefault sets the value of key when no layer sets it.
func (m *Manager) SetDefault(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaults[key] = value
	m.v.SetDefault(key, value)
}

// BindFlag makes flag the value of key when the flag was set on the
// command line.
func (m *Manager) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("no flag for %s", key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[key] = flag
	return m.v.BindPFlag(key, flag)
}

// Files returns the configuration files in merge order, present or not.
func (m *Manager) Files() []string {
	dir, name := m.opts.WorkDir, m.opts.Name
	files := []string{filepath.Join(dir, name+".yaml")}
	if env := m.opts.Environment; env != "" {
		files = append(files, filepath.Join(dir, name+"."+strings.ToLower(env)+".yaml"))
	}
	return append(files, filepath.Join(dir, name+".override.yaml"))
}

// Load reads the configuration files again, skipping missing ones. When a
// file cannot be read the settings loaded before stay in effect.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.newViper()
	var loaded []string
	for _, path := range m.Files() {
		ok, err := mergeFile(v, path)
		if err != nil {
			return err
		}
		if ok {
			loaded = append(loaded, path)
		}
	}
	m.v, m.loaded = v, loaded
	m.log.Debug("configuration loaded", zap.Strings("files", loaded))
	return nil
}

func mergeFile(v *viper.Viper, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	layer := viper.New()
	layer.SetConfigType("yaml")
	if err := layer.ReadConfig(bytes.NewReader(data)); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, v.MergeConfigMap(layer.AllSettings())
}

// Loaded returns the files the last successful Load merged.
func (m *Manager) Loaded() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.loaded)
}

// Watch reloads the configuration after any of its files changes and
// reports the outcome to onReload. The caller starts w.
func (m *Manager) Watch(w *Watcher, onReload func(error)) error {
	for _, path := range m.Files() {
		if err := w.Watch(path, func(string) { onReload(m.Load()) }); err != nil {
			return err
		}
	}
	return nil
}

// Unmarshal decodes the merged settings into target.
func (m *Manager) Unmarshal(target any) error {
	if target == nil {
		return errors.New("target must not be nil")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.v.Unmarshal(target)
}

// Get returns the merged value of key.
func (m *Manager) Get(key string) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.v.Get(key)
}
