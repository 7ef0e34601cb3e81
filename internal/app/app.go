// Package app drives the pvemon commands: connecting to the node,
// polling it and performing guest lifecycle actions.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/idr0id/pvemon/internal/config"
	"github.com/idr0id/pvemon/internal/proxmox"
)

// connectFunc builds the API client. Swapped out in tests.
type connectFunc func(context.Context, proxmox.ConnConfig, *slog.Logger) (*proxmox.Client, proxmox.VersionInfo, error)

type App struct {
	conf    config.Config
	logger  *slog.Logger
	out     io.Writer
	connect connectFunc

	client *proxmox.Client
}

type Option func(*App)

// WithOutput redirects the rendered output, which goes to stdout by
// default.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

// WithConnectFunc substitutes the client constructor.
func WithConnectFunc(f connectFunc) Option {
	return func(a *App) { a.connect = f }
}

func New(conf config.Config, logger *slog.Logger, opts ...Option) *App {
	a := &App{
		conf:    conf,
		logger:  logger,
		out:     os.Stdout,
		connect: proxmox.Connect,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run connects to the node and renders a snapshot on every poll tick
// until ctx is canceled. The first tick fires immediately. A failed tick
// is logged and the loop keeps going; only connection exhaustion ends
// the run with an error.
func (a *App) Run(ctx context.Context) error {
	if err := a.connectToNode(ctx); err != nil {
		return err
	}

	pollTimer := time.NewTimer(0)
	defer pollTimer.Stop()

	for {
		select {
		case <-pollTimer.C:
			snapshot, err := a.Snapshot(ctx)
			switch {
			case errors.Is(err, context.Canceled):
				return nil
			case err != nil:
				a.logger.Error("polling node failed", slog.Any("error", err))
			default:
				if err := renderSnapshot(a.out, snapshot); err != nil {
					return err
				}
			}

			if a.conf.Monitor.Once {
				return err
			}
			pollTimer.Reset(a.conf.Monitor.Interval)

		case <-ctx.Done():
			return nil
		}
	}
}

// Status renders a single snapshot, the one-shot sibling of Run.
func (a *App) Status(ctx context.Context) error {
	if err := a.connectToNode(ctx); err != nil {
		return err
	}

	snapshot, err := a.Snapshot(ctx)
	if err != nil {
		return err
	}
	return renderSnapshot(a.out, snapshot)
}

// List renders the guests of both kinds matching every named filter.
func (a *App) List(ctx context.Context, filterNames []string) error {
	filters, err := proxmox.ParseFilters(filterNames)
	if err != nil {
		return err
	}

	if err := a.connectToNode(ctx); err != nil {
		return err
	}

	guests, err := a.listAllGuests(ctx)
	if err != nil {
		return err
	}

	return renderGuests(a.out, proxmox.FilterGuests(guests, filters))
}

// Do performs a lifecycle action on a guest. When kind is empty it is
// detected by looking the VMID up in both guest lists. With wait set the
// guest's resulting state is reported after a short settle delay.
func (a *App) Do(ctx context.Context, action proxmox.Action, vmid proxmox.GuestID, kind proxmox.GuestKind, wait bool) error {
	if err := a.connectToNode(ctx); err != nil {
		return err
	}

	node := a.conf.Connection.Node
	if kind == "" {
		guest, err := a.findGuest(ctx, vmid)
		if err != nil {
			return err
		}
		kind = guest.Kind
	}

	upid, err := a.client.GuestAction(ctx, node, kind, vmid, action)
	if err != nil {
		return err
	}

	if a.conf.Connection.DryRun {
		fmt.Fprintf(a.out, "dry run: %s %s %d skipped\n", action, kind, vmid)
		return nil
	}

	a.logger.Info("guest action accepted",
		slog.String("action", string(action)),
		slog.Int("vmid", int(vmid)),
		slog.String("upid", upid),
	)

	if !wait {
		return nil
	}

	// Give the node a moment to apply the action before reading the
	// state back.
	select {
	case <-time.After(a.conf.Monitor.RefreshDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	guest, err := a.client.GuestStatus(ctx, node, kind, vmid)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d %s: %s\n", guest.VMID, guest.Name, guest.Status)
	return nil
}

// connectToNode attempts the connection up to the configured number of
// times before giving up with the last error.
func (a *App) connectToNode(ctx context.Context) error {
	conf := a.conf.Connection
	attempts := max(a.conf.Monitor.ConnectAttempts, 1)

	connectTimer := time.NewTimer(0)
	defer connectTimer.Stop()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		select {
		case <-connectTimer.C:
		case <-ctx.Done():
			return ctx.Err()
		}

		a.logger.Info("connecting to node",
			slog.Any("connection", conf),
			slog.Int("attempt", attempt),
		)

		client, version, err := a.connect(ctx, conf, a.logger.WithGroup("proxmox"))
		if err == nil {
			a.client = client
			a.logger.Info("connected to node",
				slog.String("host", conf.Host),
				slog.String("node", conf.Node),
				slog.String("pve_version", version.Version),
			)
			return nil
		}

		lastErr = err
		a.logger.Error("connection to node failed",
			slog.Any("error", err),
			slog.Int("attempt", attempt),
		)
		connectTimer.Reset(a.conf.Monitor.ConnectDelay)
	}

	return fmt.Errorf("connecting to %s failed after %d attempts: %w", conf.Host, attempts, lastErr)
}

func (a *App) listAllGuests(ctx context.Context) ([]proxmox.Guest, error) {
	node := a.conf.Connection.Node

	var vms, containers []proxmox.Guest
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vms, err = a.client.ListGuests(ctx, node, proxmox.KindQemu)
		return err
	})
	g.Go(func() error {
		var err error
		containers, err = a.client.ListGuests(ctx, node, proxmox.KindLXC)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return mergeGuests(vms, containers), nil
}

func (a *App) findGuest(ctx context.Context, vmid proxmox.GuestID) (proxmox.Guest, error) {
	guests, err := a.listAllGuests(ctx)
	if err != nil {
		return proxmox.Guest{}, err
	}

	for _, guest := range guests {
		if guest.VMID == vmid {
			return guest, nil
		}
	}
	return proxmox.Guest{}, fmt.Errorf("vmid %d: %w", vmid, proxmox.ErrGuestNotFound)
}
