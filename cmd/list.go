package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/idr0id/pvemon/internal/app"
)

func newListCommand(opts *rootOptions) *cobra.Command {
	var filters []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Lists guests of both kinds, sorted by VMID",
		RunE: func(_ *cobra.Command, _ []string) error {
			conf, logger, closeLog, err := setup(opts)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			registerSignalHandler(logger, cancel)

			a := app.New(conf, logger)
			if err := a.List(ctx, filters); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("listing guests failed", slog.Any("error", err))
				return errSilent
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&filters, "filter", nil, "Guest filters: qemu, lxc, running, stopped")

	return cmd
}
