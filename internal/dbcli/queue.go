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
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sonic-net/sonic-swss-common/pkg/config"
	"github.com/sonic-net/sonic-swss-common/pkg/swss"
	"github.com/sonic-net/sonic-swss-common/pkg/swss/capi"
	"github.com/sonic-net/sonic-swss-common/pkg/swss/dbconfig"
)

func newPushCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "push DB TABLE KEY [FIELD=VALUE...]",
		Short: "Produce a change of KEY; without fields KEY is deleted",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parsePairs(args[3:])
			if err != nil {
				return err
			}
			db, err := a.connect(args[0])
			if err != nil {
				return err
			}
			p, err := swss.NewProducerStateTable(db, args[1])
			if err != nil {
				return err
			}
			defer p.Close()
			if len(fields) == 0 {
				return p.DelContext(cmd.Context(), args[2])
			}
			return p.SetContext(cmd.Context(), args[2], swss.FromStrings(fields))
		},
	}
}

func newPopCommand(a *app) *cobra.Command {
	var (
		wait  time.Duration
		batch int
	)
	cmd := &cobra.Command{
		Use:   "pop DB TABLE",
		Short: "Consume and print the pending changes of TABLE",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.connect(args[0])
			if err != nil {
				return err
			}
			var opts []swss.ConsumerOption
			if batch > 0 {
				opts = append(opts, swss.WithPopBatchSize(batch))
			}
			c, err := swss.NewConsumerStateTable(db, args[1], opts...)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), wait)
			defer cancel()
			if err := c.ReadDataContext(ctx); err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					return nil
				}
				return err
			}
			rs, err := c.Pops()
			if err != nil {
				return err
			}
			defer swss.FreeRecords(rs)
			return a.printRecords(rs)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", time.Second, "How long to wait for changes")
	cmd.Flags().IntVar(&batch, "batch", 0, "Most changes to pop; 0 selects the default")
	return cmd
}

func newWatchCommand(a *app) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "watch DB TABLE",
		Short: "Print the changes of TABLE as they happen",
		Long: "watch subscribes to TABLE, prints its current entries and then every change until\n" +
			"interrupted. With --metrics-addr the native heap and handle metrics are served on /metrics.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if addr := a.settings.MetricsAddr; addr != "" {
				stop, err := a.serveMetrics(addr)
				if err != nil {
					return err
				}
				defer stop()
			}
			stop, err := a.watchFiles(ctx)
			if err != nil {
				return err
			}
			defer stop()

			db, err := a.connect(args[0])
			if err != nil {
				return err
			}
			s, err := swss.NewSubscriberStateTable(db, args[1])
			if err != nil {
				return err
			}
			defer s.Close()

			seen := 0
			for count <= 0 || seen < count {
				if err := s.ReadDataContext(ctx); err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						return nil
					}
					return err
				}
				rs, err := s.Pops()
				if err != nil {
					return err
				}
				if count > 0 && seen+len(rs) > count {
					swss.FreeRecords(rs[count-seen:])
					rs = rs[:count-seen]
				}
				seen += len(rs)
				err = a.printRecords(rs)
				swss.FreeRecords(rs)
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "Stop after this many changes; 0 runs until interrupted")
	cmd.Flags().String("metrics-addr", "", "Serve metrics on this address")
	return cmd
}

// serveMetrics serves the native metrics until the returned stop is called.
func (a *app) serveMetrics(addr string) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(capi.MetricsRegistry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	a.log.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

// watchFiles follows the settings files and the database configuration
// while a command runs. Changed log settings are applied; a changed
// database configuration is loaded again.
func (a *app) watchFiles(ctx context.Context) (func(), error) {
	w, err := config.NewWatcher(0)
	if err != nil {
		return nil, err
	}
	err = a.cfg.Watch(w, func(err error) {
		if err == nil {
			var s config.Settings
			if s, err = a.cfg.Settings(); err == nil {
				err = applyLogSettings(s.Log)
			}
		}
		if err != nil {
			a.log.Warn("settings reload failed", zap.Error(err))
			return
		}
		a.log.Info("settings reloaded", zap.Strings("files", a.cfg.Loaded()))
	})
	if path := a.settings.DBConfigFile; err == nil && a.settings.Host == "" {
		if _, statErr := os.Stat(path); statErr == nil {
			err = w.Watch(path, func(p string) {
				if err := dbconfig.Default().Initialize(p); err != nil {
					a.log.Warn("database config reload failed", zap.String("path", p), zap.Error(err))
					return
				}
				a.log.Info("database config reloaded", zap.String("path", p))
			})
		}
	}
	if err == nil {
		err = w.Start(ctx)
	}
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	return func() { _ = w.Close() }, nil
}
