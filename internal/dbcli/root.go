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

// Package dbcli implements sonic-db-cli, a command line client for the
// SONiC databases built on the swss handles.
package dbcli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sonic-net/sonic-swss-common/pkg/config"
	"github.com/sonic-net/sonic-swss-common/pkg/logger"
	"github.com/sonic-net/sonic-swss-common/pkg/swss"
	"github.com/sonic-net/sonic-swss-common/pkg/swss/dbconfig"
)

// Version is set at build time.
var Version = "0.1.0"

// flagKeys maps settings keys to the persistent flags that override them.
var flagKeys = map[string]string{
	"db_config_file":        "db-config",
	"db_global_config_file": "db-global-config",
	"host":                  "host",
	"port":                  "port",
	"namespace":             "namespace",
	"container_name":        "container",
	"tcp":                   "tcp",
	"timeout":               "timeout",
	"transport_endpoint":    "endpoint",
	"metrics_addr":          "metrics-addr",
	"log.level":             "log-level",
	"log.output":            "log-output",
}

type app struct {
	cfg      *config.Manager
	settings config.Settings
	format   string
	out      io.Writer
	log      *zap.Logger
}

// NewRootCommand returns the sonic-db-cli command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "sonic-db-cli",
		Short:         "Read and write SONiC databases",
		Long:          "sonic-db-cli reads and writes the SONiC redis databases by name, produces and consumes\nstate table changes and publishes events.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	f := cmd.PersistentFlags()
	f.String("config-dir", ".", "Directory holding swss.yaml and its overrides")
	f.String("db-config", dbconfig.DefaultConfigFile, "Database configuration file")
	f.String("db-global-config", dbconfig.DefaultGlobalConfigFile, "Global database configuration file")
	f.String("host", "", "Address a redis on this host directly")
	f.Int("port", 6379, "Port of --host")
	f.StringP("namespace", "n", "", "Network namespace of the database")
	f.String("container", "", "Container of the database")
	f.Bool("tcp", false, "Connect over tcp instead of the unix socket")
	f.Duration("timeout", config.DefaultTimeout, "Connect timeout; 0 blocks")
	f.StringP("output", "o", "json", "Output format: json or yaml")
	f.String("log-level", "INFO", "Log level")
	f.String("log-output", "STDERR", "Log output: STDOUT, STDERR or SYSLOG")

	cmd.AddCommand(
		newGetCommand(a),
		newSetCommand(a),
		newDelCommand(a),
		newExistsCommand(a),
		newHGetCommand(a),
		newHSetCommand(a),
		newHDelCommand(a),
		newHGetAllCommand(a),
		newKeysCommand(a),
		newFlushCommand(a),
		newPushCommand(a),
		newPopCommand(a),
		newWatchCommand(a),
		newPublishCommand(a),
		newVersionCommand(),
	)
	return cmd
}

func (a *app) init(cmd *cobra.Command) error {
	a.out = cmd.OutOrStdout()
	a.log = logger.Named("dbcli")

	dir, err := cmd.Flags().GetString("config-dir")
	if err != nil {
		return err
	}
	m := config.NewManager(config.Options{WorkDir: dir, EnvPrefix: config.DefaultEnvPrefix})
	config.SetDefaults(m)
	for key, name := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := m.BindFlag(key, f); err != nil {
				return err
			}
		}
	}
	if err := m.Load(); err != nil {
		return err
	}
	if a.settings, err = m.Settings(); err != nil {
		return err
	}
	a.cfg = m

	if a.format, err = cmd.Flags().GetString("output"); err != nil {
		return err
	}
	if a.format != "json" && a.format != "yaml" {
		return fmt.Errorf("unknown output format %q", a.format)
	}

	if err := applyLogSettings(a.settings.Log); err != nil {
		return err
	}
	if a.settings.Host != "" {
		return nil
	}
	return loadDBConfig(a.settings)
}

func applyLogSettings(s config.LogSettings) error {
	level, err := logger.ParseLevel(s.Level)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	if logger.GetOutput() != logger.Output(s.Output) {
		return logger.SetOutput(logger.Output(s.Output))
	}
	return nil
}

// loadDBConfig loads the database configuration unless one is already
// installed. The global file is only read when a namespace or container is
// selected.
func loadDBConfig(s config.Settings) error {
	reg := dbconfig.Default()
	if !reg.IsInit() {
		if err := reg.Initialize(s.DBConfigFile); err != nil {
			return fmt.Errorf("load database config: %w", err)
		}
	}
	if s.DBKey() != (dbconfig.Key{}) && !reg.IsGlobalInit() {
		if err := reg.InitializeGlobal(s.DBGlobalConfigFile); err != nil {
			return fmt.Errorf("load global database config: %w", err)
		}
	}
	return nil
}

// connect opens dbName, given by name or by index with --host.
func (a *app) connect(dbName string) (*swss.DBConnector, error) {
	s := a.settings
	if s.Host != "" {
		id, err := a.dbID(dbName)
		if err != nil {
			return nil, err
		}
		return swss.NewDBConnectorTCP(id, s.Host, uint16(s.Port), s.Timeout)
	}
	if s.DBKey() == (dbconfig.Key{}) {
		return swss.NewDBConnectorNamed(dbName, s.TCP, s.Timeout)
	}
	return swss.NewDBConnectorKeyed(dbName, s.TCP, s.Timeout, s.ContainerName, s.Namespace)
}

func (a *app) dbID(dbName string) (int, error) {
	if id, err := strconv.Atoi(dbName); err == nil {
		return id, nil
	}
	db, _, err := dbconfig.Default().Lookup(dbName, a.settings.DBKey())
	if err != nil {
		return 0, fmt.Errorf("database %s needs an index with --host: %w", dbName, err)
	}
	return db.ID, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sonic-db-cli version %s\n", Version)
		},
	}
}
