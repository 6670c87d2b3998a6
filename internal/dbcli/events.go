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
	"os"

	"github.com/spf13/cobra"

	"github.com/sonic-net/sonic-swss-common/pkg/swss"
)

func newPublishCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish SOURCE TAG [PARAM=VALUE...]",
		Short: "Publish an event for SOURCE",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			params, err := parsePairs(args[2:])
			if err != nil {
				return err
			}
			if ep := a.settings.TransportEndpoint; ep != "" {
				if err := os.Setenv("SWSS_EVENTS_ENDPOINT", ep); err != nil {
					return err
				}
			}
			p, err := swss.NewEventPublisher(args[0])
			if err != nil {
				return err
			}
			defer p.Close()
			return p.Publish(args[1], params)
		},
	}
	cmd.Flags().String("endpoint", "", "Events endpoint, e.g. nats://127.0.0.1:4222/events")
	return cmd
}
