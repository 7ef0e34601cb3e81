package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/idr0id/pvemon/internal/app"
)

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Renders a single node snapshot",
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
			if err := a.Status(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("fetching node status failed", slog.Any("error", err))
				return errSilent
			}
			return nil
		},
	}
}
