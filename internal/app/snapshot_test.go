package app

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/idr0id/pvemon/internal/proxmox"
)

func TestFormatUptime(t *testing.T) {
	cases := []struct {
		seconds int64
		want    string
	}{
		{45, "45s"},
		{150, "2m 30s"},
		{3 * 3600, "3h 0m"},
		{441000, "5d 2h 30m"},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, formatUptime(tc.seconds))
	}
}

func TestCPULabel(t *testing.T) {
	require.Equal(t, "CPU (8 cores, 16 threads)", cpuLabel(proxmox.CPUInfo{Cores: 8, CPUs: 16}))
	require.Equal(t, "CPU (? cores, ? threads)", cpuLabel(proxmox.CPUInfo{}))
}

func TestRenderSnapshot(t *testing.T) {
	snapshot := Snapshot{
		Node:    "pve",
		TakenAt: time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC),
		Status: proxmox.NodeStatus{
			CPU:     0.253,
			Wait:    0.004,
			CPUInfo: proxmox.CPUInfo{Cores: 8, CPUs: 16},
			Memory:  proxmox.Capacity{Used: 11274289152, Total: 33613221888},
			RootFS:  proxmox.Capacity{Used: 12884901888, Total: 105226698752},
			Uptime:  441000,
		},
		VMs: []proxmox.Guest{
			{VMID: 100, Name: "web", Status: proxmox.StatusRunning, Kind: proxmox.KindQemu},
		},
		Containers: []proxmox.Guest{
			{VMID: 200, Name: "dns", Status: proxmox.StatusStopped, Kind: proxmox.KindLXC},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, renderSnapshot(&buf, snapshot))

	out := buf.String()
	require.Contains(t, out, "node pve (up 5d 2h 30m)")
	require.Contains(t, out, "CPU (8 cores, 16 threads): 25.3%")
	require.Contains(t, out, "IO wait: 0.4%")
	require.Contains(t, out, "Memory: 10.5 / 31.3 GiB (33.5%)")
	require.Contains(t, out, "RootFS: 12.0 / 98.0 GiB (12.2%)")
	require.Contains(t, out, "QEMU virtual machines (1):")
	require.Contains(t, out, "LXC containers (1):")
	require.Contains(t, out, "web")
	require.Contains(t, out, "dns")
}

func TestRenderGuests(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderGuests(&buf, []proxmox.Guest{
		{VMID: 100, Name: "web", Status: proxmox.StatusRunning, Kind: proxmox.KindQemu},
		{VMID: 200, Name: "dns", Status: proxmox.StatusStopped, Kind: proxmox.KindLXC},
	}))

	out := buf.String()
	require.Contains(t, out, "VMID")
	require.Contains(t, out, "100")
	require.Contains(t, out, "qemu")
	require.Contains(t, out, "lxc")
}

func TestMergeGuests(t *testing.T) {
	merged := mergeGuests(
		[]proxmox.Guest{{VMID: 101}, {VMID: 300}},
		[]proxmox.Guest{{VMID: 200}, {VMID: 100}},
	)

	ids := make([]proxmox.GuestID, 0, len(merged))
	for _, guest := range merged {
		ids = append(ids, guest.VMID)
	}
	require.Equal(t, []proxmox.GuestID{100, 101, 200, 300}, ids)
}
