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

// Package swsstest provides random data and throwaway databases for tests
// of package swss.
package swsstest

import (
	"bufio"
	"fmt"
	"maps"
	"math/rand/v2"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sonic-net/sonic-swss-common/pkg/swss"
	"github.com/sonic-net/sonic-swss-common/pkg/swss/dbconfig"
	"github.com/sonic-net/sonic-swss-common/pkg/swss/store/memstore"
)

// RandomString returns a random upper-case hex string.
func RandomString() string {
	return fmt.Sprintf("%0X", rand.Uint64())
}

// RandomFieldValues returns between 1 and 64 random fields.
func RandomFieldValues() swss.FieldValues {
	n := 1 + rand.IntN(64)
	fvs := make(swss.FieldValues, n)
	for range n {
		fvs[RandomString()] = swss.OwnedStringFrom(RandomString())
	}
	return fvs
}

// RandomRecord returns a set record with random fields or a delete, with
// equal odds.
func RandomRecord() swss.Record {
	if rand.IntN(2) == 0 {
		return swss.NewDelRecord(RandomString())
	}
	r, err := swss.NewSetRecord(RandomString(), RandomFieldValues())
	if err != nil {
		panic(err)
	}
	return r
}

// RandomRecords returns n random records with distinct keys.
func RandomRecords(n int) []swss.Record {
	seen := make(map[string]bool, n)
	out := make([]swss.Record, 0, n)
	for len(out) < n {
		r := RandomRecord()
		if seen[r.Key] {
			r.Free()
			continue
		}
		seen[r.Key] = true
		out = append(out, r)
	}
	return out
}

// RandomEndpoint returns an unused in-process transport endpoint.
func RandomEndpoint() string {
	return "inproc://swsstest-" + uuid.NewString()
}

// RandomUnixSock returns an unused unix socket path.
func RandomUnixSock() string {
	return filepath.Join(os.TempDir(), "swsstest-"+RandomString()+".sock")
}

// Databases of the configuration installed by Redis.InstallConfig.
var Databases = map[string]dbconfig.Database{
	"APPL_DB":      {ID: 0, Separator: ":", Instance: "redis"},
	"CONFIG_DB":    {ID: 1, Separator: "|", Instance: "redis"},
	"STATE_DB":     {ID: 2, Separator: "|", Instance: "redis"},
	"DPU_STATE_DB": {ID: 3, Separator: "|", Instance: "redis"},
	"DPU_APPL_DB":  {ID: 4, Separator: ":", Instance: "redis"},
	"LOGLEVEL_DB":  {ID: 5, Separator: ":", Instance: "redis"},
}

// DPUContainer is the container name InstallConfig also configures.
const DPUContainer = "dpu0"

// Redis is a database instance that lives as long as a test. By default it
// is an in-process store reached over "tcp"; with SWSS_TEST_REDIS_SERVER=1
// it is a redis-server listening on a unix socket only.
type Redis struct {
	Network string
	Addr    string
}

// NewRedis starts a database for t and stops it when t ends.
func NewRedis(t testing.TB) *Redis {
	t.Helper()
	if os.Getenv("SWSS_TEST_REDIS_SERVER") == "1" {
		return startRedisServer(t)
	}
	addr := net.JoinHostPort("swsstest-"+strings.ToLower(RandomString()), "6379")
	srv, err := memstore.Listen(memstore.Options{Addr: addr, NotifyKeyspaceEvents: true})
	if err != nil {
		t.Fatalf("swsstest: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return &Redis{Network: "tcp", Addr: addr}
}

func startRedisServer(t testing.TB) *Redis {
	t.Helper()
	if _, err := exec.LookPath("redis-server"); err != nil {
		t.Skip("redis-server not installed")
	}
	sock := RandomUnixSock()
	cmd := exec.Command("redis-server",
		"--appendonly", "no",
		"--save", "",
		"--notify-keyspace-events", "AKE",
		"--port", "0",
		"--unixsocket", sock,
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.Fatalf("swsstest: %v", err)
	}
	if err := cmd.Start(); err != nil {
		t.Fatalf("swsstest: start redis-server: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Signal(syscall.SIGTERM)
		_ = cmd.Wait()
		_ = os.Remove(sock)
	})

	ready := make(chan bool, 1)
	go func() {
		sc := bufio.NewScanner(stdout)
		for sc.Scan() {
			// Versions differ in capitalization.
			if strings.Contains(sc.Text(), "eady to accept connections") {
				ready <- true
				break
			}
		}
		ready <- false
		for sc.Scan() {
		}
	}()
	select {
	case ok := <-ready:
		if !ok {
			t.Fatal("swsstest: redis-server exited before it was ready")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("swsstest: redis-server did not become ready")
	}
	return &Redis{Network: "unix", Addr: sock}
}

// IsTCP reports whether the database is reached over tcp.
func (r *Redis) IsTCP() bool { return r.Network == "tcp" }

// DBConnector connects to database dbID and closes the connection when t
// ends.
func (r *Redis) DBConnector(t testing.TB, dbID int) *swss.DBConnector {
	t.Helper()
	var (
		db  *swss.DBConnector
		err error
	)
	if r.IsTCP() {
		host, port, _ := net.SplitHostPort(r.Addr)
		p, _ := strconv.Atoi(port)
		db, err = swss.NewDBConnectorTCP(dbID, host, uint16(p), 0)
	} else {
		db, err = swss.NewDBConnectorUnix(dbID, r.Addr, 0)
	}
	if err != nil {
		t.Fatalf("swsstest: connect: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

// Config returns a database configuration whose instance is r.
func (r *Redis) Config() *dbconfig.Config {
	inst := dbconfig.Instance{Hostname: "127.0.0.1"}
	if r.IsTCP() {
		host, port, _ := net.SplitHostPort(r.Addr)
		inst.Hostname = host
		inst.Port, _ = strconv.Atoi(port)
	} else {
		inst.UnixSocketPath = r.Addr
	}
	return &dbconfig.Config{Instances: map[string]dbconfig.Instance{"redis": inst}, Databases: maps.Clone(Databases)}
}

// InstallConfig makes r the local database configuration and that of the
// DPUContainer for the duration of t.
func (r *Redis) InstallConfig(t testing.TB) {
	t.Helper()
	reg := dbconfig.Default()
	for _, key := range []dbconfig.Key{{}, {ContainerName: DPUContainer}} {
		prev, err := reg.Config(key)
		reg.Set(key, r.Config())
		t.Cleanup(func() {
			if err != nil {
				reg.Remove(key)
				return
			}
			reg.Set(key, prev)
		})
	}
}
