package proxmox_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/idr0id/pvemon/internal/proxmox"
)

const (
	testUser     = "root@pam"
	testPassword = "hunter2"
	testTicket   = "PVE:root@pam:TESTTICKET"
	testCSRF     = "csrf-prevention-token"
)

// fakeNode is an httptest-backed stand-in for the Proxmox API. Handlers
// are registered under /api2/json and run behind a ticket check.
type fakeNode struct {
	t       *testing.T
	mux     *http.ServeMux
	tickets atomic.Int64
}

func newFakeNode(t *testing.T) *fakeNode {
	t.Helper()

	f := &fakeNode{t: t, mux: http.NewServeMux()}
	f.mux.HandleFunc("/api2/json/access/ticket", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("username") != testUser || r.PostForm.Get("password") != testPassword {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.tickets.Add(1)
		fmt.Fprintf(w, `{"data":{"ticket":%q,"CSRFPreventionToken":%q,"username":%q}}`,
			testTicket, testCSRF, testUser)
	})
	f.handle("/version", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":{"version":"8.2.4","release":"8.2","repoid":"faa0f9a9"}}`)
	})

	return f
}

// handle registers an authenticated API handler.
func (f *fakeNode) handle(path string, handler http.HandlerFunc) {
	f.mux.HandleFunc("/api2/json"+path, func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("PVEAuthCookie")
		if err != nil || cookie.Value != testTicket {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		handler(w, r)
	})
}

// start brings the TLS server up and returns a config pointing at it.
// VerifySSL stays false, which is what makes the self-signed test
// certificate acceptable.
func (f *fakeNode) start() (*httptest.Server, proxmox.ConnConfig) {
	srv := httptest.NewTLSServer(f.mux)
	f.t.Cleanup(srv.Close)

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(f.t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(f.t, err)

	return srv, proxmox.ConnConfig{
		Host:       host,
		Port:       port,
		User:       testUser,
		Password:   testPassword,
		Node:       "pve",
		VerifySSL:  false,
		Timeout:    5 * time.Second,
		Retries:    2,
		RetryDelay: time.Millisecond,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConnect(t *testing.T) {
	_, conf := newFakeNode(t).start()

	client, version, err := proxmox.Connect(context.Background(), conf, testLogger())
	require.NoError(t, err)
	require.NotNil(t, client)
	require.Equal(t, "8.2.4", version.Version)
}

func TestConnectBadCredentials(t *testing.T) {
	_, conf := newFakeNode(t).start()
	conf.Password = "wrong"

	_, _, err := proxmox.Connect(context.Background(), conf, testLogger())
	require.Error(t, err)

	var apiErr *proxmox.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestNodeStatus(t *testing.T) {
	node := newFakeNode(t)
	node.handle("/nodes/pve/status", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":{
			"cpu":0.25,"wait":0.01,
			"cpuinfo":{"cores":8,"cpus":16},
			"memory":{"used":11274289152,"total":33613221888},
			"rootfs":{"used":12884901888,"total":105226698752},
			"uptime":441000
		}}`)
	})
	_, conf := node.start()

	client, _, err := proxmox.Connect(context.Background(), conf, testLogger())
	require.NoError(t, err)

	status, err := client.NodeStatus(context.Background(), "pve")
	require.NoError(t, err)
	require.InDelta(t, 0.25, status.CPU, 1e-9)
	require.Equal(t, 8, status.CPUInfo.Cores)
	require.Equal(t, 16, status.CPUInfo.CPUs)
	require.InDelta(t, 10.5, status.Memory.UsedGiB(), 0.01)
	require.InDelta(t, 31.3, status.Memory.TotalGiB(), 0.01)
	require.Equal(t, int64(441000), status.Uptime)
}

func TestListGuestsSortedByVMID(t *testing.T) {
	node := newFakeNode(t)
	node.handle("/nodes/pve/lxc", func(w http.ResponseWriter, _ *http.Request) {
		// Unsorted, with string VMIDs as some releases serialize them.
		fmt.Fprint(w, `{"data":[
			{"vmid":"202","name":"cache","status":"running"},
			{"vmid":"200","name":"dns","status":"stopped"}
		]}`)
	})
	_, conf := node.start()

	client, _, err := proxmox.Connect(context.Background(), conf, testLogger())
	require.NoError(t, err)

	guests, err := client.ListGuests(context.Background(), "pve", proxmox.KindLXC)
	require.NoError(t, err)
	require.Len(t, guests, 2)
	require.Equal(t, proxmox.GuestID(200), guests[0].VMID)
	require.Equal(t, proxmox.GuestID(202), guests[1].VMID)
	require.Equal(t, proxmox.KindLXC, guests[0].Kind)
	require.Equal(t, proxmox.KindLXC, guests[1].Kind)
}

func TestGuestAction(t *testing.T) {
	node := newFakeNode(t)
	node.handle("/nodes/pve/qemu/100/status/start", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		require.Equal(t, testCSRF, r.Header.Get("CSRFPreventionToken"))
		fmt.Fprint(w, `{"data":"UPID:pve:0001:qmstart:100:root@pam:"}`)
	})
	_, conf := node.start()

	client, _, err := proxmox.Connect(context.Background(), conf, testLogger())
	require.NoError(t, err)

	upid, err := client.GuestAction(context.Background(), "pve", proxmox.KindQemu, 100, proxmox.ActionStart)
	require.NoError(t, err)
	require.Equal(t, "UPID:pve:0001:qmstart:100:root@pam:", upid)
}

func TestGuestActionDryRun(t *testing.T) {
	node := newFakeNode(t)
	node.handle("/nodes/pve/qemu/100/status/stop", func(w http.ResponseWriter, _ *http.Request) {
		node.t.Error("dry run must not reach the action endpoint")
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, conf := node.start()
	conf.DryRun = true

	client, _, err := proxmox.Connect(context.Background(), conf, testLogger())
	require.NoError(t, err)

	upid, err := client.GuestAction(context.Background(), "pve", proxmox.KindQemu, 100, proxmox.ActionStop)
	require.NoError(t, err)
	require.Empty(t, upid)
}

func TestGuestStatus(t *testing.T) {
	node := newFakeNode(t)
	node.handle("/nodes/pve/lxc/200/status/current", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":{"vmid":200,"name":"dns","status":"running"}}`)
	})
	_, conf := node.start()

	client, _, err := proxmox.Connect(context.Background(), conf, testLogger())
	require.NoError(t, err)

	guest, err := client.GuestStatus(context.Background(), "pve", proxmox.KindLXC, 200)
	require.NoError(t, err)
	require.Equal(t, proxmox.GuestID(200), guest.VMID)
	require.Equal(t, "dns", guest.Name)
	require.Equal(t, proxmox.StatusRunning, guest.Status)
	require.Equal(t, proxmox.KindLXC, guest.Kind)
}

func TestGetRetriesTransientFailures(t *testing.T) {
	node := newFakeNode(t)
	var calls atomic.Int64
	node.handle("/nodes/pve/status", func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"data":{"cpu":0.1}}`)
	})
	_, conf := node.start()

	client, _, err := proxmox.Connect(context.Background(), conf, testLogger())
	require.NoError(t, err)

	status, err := client.NodeStatus(context.Background(), "pve")
	require.NoError(t, err)
	require.InDelta(t, 0.1, status.CPU, 1e-9)
	require.EqualValues(t, 3, calls.Load())
}

func TestAPIErrorSurfacesBody(t *testing.T) {
	node := newFakeNode(t)
	node.handle("/nodes/pve/qemu/999/status/current", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `Configuration file 'nodes/pve/qemu-server/999.conf' does not exist`)
	})
	_, conf := node.start()

	client, _, err := proxmox.Connect(context.Background(), conf, testLogger())
	require.NoError(t, err)

	_, err = client.GuestStatus(context.Background(), "pve", proxmox.KindQemu, 999)
	require.Error(t, err)

	var apiErr *proxmox.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	require.Contains(t, apiErr.Body, "does not exist")
	require.EqualValues(t, 1, node.tickets.Load(), "5xx must not burn a ticket")
}

func TestRateLimiterPacesRequests(t *testing.T) {
	node := newFakeNode(t)
	node.handle("/nodes/pve/status", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":{"cpu":0.1}}`)
	})
	_, conf := node.start()
	conf.RateRPS = 50
	conf.RateBurst = 1

	client, _, err := proxmox.Connect(context.Background(), conf, testLogger())
	require.NoError(t, err)

	// The connect probe spent the single burst token, so each of these
	// waits for the 20ms refill.
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.NodeStatus(context.Background(), "pve")
		require.NoError(t, err)
	}
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestRateLimiterDisabled(t *testing.T) {
	node := newFakeNode(t)
	node.handle("/nodes/pve/status", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":{"cpu":0.1}}`)
	})
	_, conf := node.start()
	conf.RateRPS = 0
	conf.RateBurst = 0

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// A zero-rate limiter would block these forever; zero must mean no
	// limiter at all.
	client, _, err := proxmox.Connect(ctx, conf, testLogger())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := client.NodeStatus(ctx, "pve")
		require.NoError(t, err)
	}
}

func TestExpiredTicketTriggersReauth(t *testing.T) {
	node := newFakeNode(t)
	var calls atomic.Int64
	node.mux.HandleFunc("/api2/json/nodes/pve/status", func(w http.ResponseWriter, _ *http.Request) {
		// First call rejects the ticket as a revoked one would be.
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"data":{"cpu":0.1}}`)
	})
	_, conf := node.start()

	client, _, err := proxmox.Connect(context.Background(), conf, testLogger())
	require.NoError(t, err)

	_, err = client.NodeStatus(context.Background(), "pve")
	require.NoError(t, err)
	require.EqualValues(t, 2, node.tickets.Load(), "expected a second authentication")
}
