package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/idr0id/pvemon/internal/app"
	"github.com/idr0id/pvemon/internal/proxmox"
)

func newGuestCommands(opts *rootOptions) []*cobra.Command {
	return []*cobra.Command{
		newGuestCommand(opts, proxmox.ActionStart, "Starts a guest"),
		newGuestCommand(opts, proxmox.ActionStop, "Stops a guest immediately"),
		newGuestCommand(opts, proxmox.ActionReboot, "Reboots a guest"),
		newGuestCommand(opts, proxmox.ActionShutdown, "Asks the guest OS to power off"),
	}
}

func newGuestCommand(opts *rootOptions, action proxmox.Action, short string) *cobra.Command {
	var (
		kindName string
		dryRun   bool
		noWait   bool
	)

	cmd := &cobra.Command{
		Use:   fmt.Sprintf("%s <vmid>", action),
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			vmid, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid vmid %q: %w", args[0], err)
			}

			var kind proxmox.GuestKind
			if kindName != "" {
				if kind, err = proxmox.ParseGuestKind(kindName); err != nil {
					return err
				}
			}

			conf, logger, closeLog, err := setup(opts)
			if err != nil {
				return err
			}
			defer closeLog()

			if dryRun {
				conf.Connection.DryRun = true
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			registerSignalHandler(logger, cancel)

			a := app.New(conf, logger)
			if err := a.Do(ctx, action, proxmox.GuestID(vmid), kind, !noWait); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("guest action failed", slog.Any("error", err))
				return errSilent
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kindName, "type", "", "Guest type: qemu or lxc (detected by VMID lookup when omitted)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Logs the action without performing it")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Skips the post-action status report")

	return cmd
}
