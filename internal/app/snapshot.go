package app

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/idr0id/pvemon/internal/proxmox"
)

// Snapshot is one poll of the node: its resource status plus both guest
// lists.
type Snapshot struct {
	Node       string
	Status     proxmox.NodeStatus
	VMs        []proxmox.Guest
	Containers []proxmox.Guest
	TakenAt    time.Time
}

// Snapshot fetches the node status and both guest lists concurrently.
func (a *App) Snapshot(ctx context.Context) (Snapshot, error) {
	node := a.conf.Connection.Node
	snapshot := Snapshot{Node: node, TakenAt: time.Now()}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snapshot.Status, err = a.client.NodeStatus(ctx, node)
		return err
	})
	g.Go(func() error {
		var err error
		snapshot.VMs, err = a.client.ListGuests(ctx, node, proxmox.KindQemu)
		return err
	})
	g.Go(func() error {
		var err error
		snapshot.Containers, err = a.client.ListGuests(ctx, node, proxmox.KindLXC)
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	return snapshot, nil
}

func renderSnapshot(w io.Writer, s Snapshot) error {
	status := s.Status

	fmt.Fprintf(w, "[%s] node %s (up %s)\n",
		s.TakenAt.Format(time.TimeOnly), s.Node, formatUptime(status.Uptime))
	fmt.Fprintf(w, "  %s: %.1f%%\n", cpuLabel(status.CPUInfo), status.CPU*100)
	fmt.Fprintf(w, "  IO wait: %.1f%%\n", status.Wait*100)
	fmt.Fprintf(w, "  Memory: %s\n", capacityLabel(status.Memory))
	fmt.Fprintf(w, "  RootFS: %s\n", capacityLabel(status.RootFS))

	fmt.Fprintf(w, "\nQEMU virtual machines (%d):\n", len(s.VMs))
	if err := renderGuests(w, s.VMs); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nLXC containers (%d):\n", len(s.Containers))
	return renderGuests(w, s.Containers)
}

func renderGuests(w io.Writer, guests []proxmox.Guest) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VMID\tNAME\tTYPE\tSTATUS")
	for _, guest := range guests {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", guest.VMID, guest.Name, guest.Kind, guest.Status)
	}
	return tw.Flush()
}

// cpuLabel renders the processor header, with "?" for counts the node
// did not report.
func cpuLabel(info proxmox.CPUInfo) string {
	cores, threads := "?", "?"
	if info.Cores > 0 {
		cores = strconv.Itoa(info.Cores)
	}
	if info.CPUs > 0 {
		threads = strconv.Itoa(info.CPUs)
	}
	return fmt.Sprintf("CPU (%s cores, %s threads)", cores, threads)
}

func capacityLabel(c proxmox.Capacity) string {
	return fmt.Sprintf("%.1f / %.1f GiB (%.1f%%)", c.UsedGiB(), c.TotalGiB(), c.Percent())
}

func formatUptime(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	days := int(d.Hours()) / 24

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, int(d.Hours())%24, int(d.Minutes())%60)
	case d >= time.Hour:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	case d >= time.Minute:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
}

func mergeGuests(vms, containers []proxmox.Guest) []proxmox.Guest {
	guests := make([]proxmox.Guest, 0, len(vms)+len(containers))
	guests = append(guests, vms...)
	guests = append(guests, containers...)
	slices.SortFunc(guests, func(a, b proxmox.Guest) int {
		return int(a.VMID) - int(b.VMID)
	})
	return guests
}
