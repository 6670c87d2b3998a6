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
	"github.com/spf13/cobra"

	"github.com/sonic-net/sonic-swss-common/pkg/swss"
)

// withDB runs f on a connection to dbName that is closed afterwards.
func (a *app) withDB(dbName string, f func(db *swss.DBConnector) error) error {
	db, err := a.connect(dbName)
	if err != nil {
		return err
	}
	defer db.Close()
	return f(db)
}

func newGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get DB KEY",
		Short: "Print the string value of KEY",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(args[0], func(db *swss.DBConnector) error {
				v, err := db.GetContext(cmd.Context(), args[1])
				if err != nil {
					return err
				}
				a.printValue(v)
				return nil
			})
		},
	}
}

func newSetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set DB KEY VALUE",
		Short: "Set the string value of KEY",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(args[0], func(db *swss.DBConnector) error {
				return db.SetContext(cmd.Context(), args[1], []byte(args[2]))
			})
		},
	}
}

func newDelCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "del DB KEY",
		Short: "Delete KEY and print 1 if it existed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(args[0], func(db *swss.DBConnector) error {
				ok, err := db.DelContext(cmd.Context(), args[1])
				if err != nil {
					return err
				}
				a.printBool(ok)
				return nil
			})
		},
	}
}

func newExistsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exists DB KEY",
		Short: "Print 1 if KEY exists",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.withDB(args[0], func(db *swss.DBConnector) error {
				ok, err := db.Exists(args[1])
				if err != nil {
					return err
				}
				a.printBool(ok)
				return nil
			})
		},
	}
}

func newHGetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "hget DB KEY FIELD",
		Short: "Print a field of the hash at KEY",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(args[0], func(db *swss.DBConnector) error {
				v, err := db.HGetContext(cmd.Context(), args[1], args[2])
				if err != nil {
					return err
				}
				a.printValue(v)
				return nil
			})
		},
	}
}

func newHSetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "hset DB KEY FIELD VALUE",
		Short: "Set a field of the hash at KEY",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(args[0], func(db *swss.DBConnector) error {
				return db.HSetContext(cmd.Context(), args[1], args[2], []byte(args[3]))
			})
		},
	}
}

func newHDelCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "hdel DB KEY FIELD",
		Short: "Delete a field of the hash at KEY and print 1 if it existed",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.withDB(args[0], func(db *swss.DBConnector) error {
				ok, err := db.HDel(args[1], args[2])
				if err != nil {
					return err
				}
				a.printBool(ok)
				return nil
			})
		},
	}
}

func newHGetAllCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "hgetall DB KEY",
		Short: "Print every field of the hash at KEY",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(args[0], func(db *swss.DBConnector) error {
				fvs, err := db.HGetAllContext(cmd.Context(), args[1])
				if err != nil {
					return err
				}
				defer fvs.Free()
				return a.print(fvs.Strings())
			})
		},
	}
}

func newKeysCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "keys DB TABLE",
		Short: "Print the keys of TABLE",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			db, err := a.connect(args[0])
			if err != nil {
				return err
			}
			tbl, err := swss.NewTable(db, args[1])
			if err != nil {
				return err
			}
			defer tbl.Close()
			keys, err := tbl.GetKeys()
			if err != nil {
				return err
			}
			return a.print(keys)
		},
	}
}

func newFlushCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "flush DB",
		Short: "Delete every key of DB and print 1 on success",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(args[0], func(db *swss.DBConnector) error {
				ok, err := db.FlushDBContext(cmd.Context())
				if err != nil {
					return err
				}
				a.printBool(ok)
				return nil
			})
		},
	}
}
