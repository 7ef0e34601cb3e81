package cmd

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/idr0id/pvemon/internal/app"
)

func newMonitorCommand(opts *rootOptions) *cobra.Command {
	var (
		interval time.Duration
		once     bool
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Polls node status and guest lists on an interval",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, logger, closeLog, err := setup(opts)
			if err != nil {
				return err
			}
			defer closeLog()

			if cmd.Flags().Changed("interval") {
				conf.Monitor.Interval = interval
			}
			conf.Monitor.Once = once

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			registerSignalHandler(logger, cancel)

			a := app.New(conf, logger)
			if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("monitoring failed", slog.Any("error", err))
				return errSilent
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 10*time.Second, "Polling interval")
	cmd.Flags().BoolVar(&once, "once", false, "Render a single snapshot and exit")

	return cmd
}
