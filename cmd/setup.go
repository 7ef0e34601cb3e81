package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/idr0id/pvemon/internal/config"
)

// setup loads the configuration and builds the logger shared by every
// command. The returned closer flushes the optional log file sink.
func setup(opts *rootOptions) (config.Config, *slog.Logger, func(), error) {
	logger := newLogger(os.Stderr, opts.verbose, opts.quiet)

	conf, err := config.Load(opts.configPath)
	if err != nil {
		logger.Error("configuration error", slog.Any("error", err))
		return conf, logger, func() {}, errSilent
	}

	closeLog := func() {}
	if conf.Logging.File != "" {
		f, err := os.OpenFile(conf.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Error("opening log file failed", slog.Any("error", err))
			return conf, logger, closeLog, errSilent
		}
		logger = newLogger(io.MultiWriter(os.Stderr, f), opts.verbose, opts.quiet)
		closeLog = func() { _ = f.Close() }
	}

	return conf, logger, closeLog, nil
}

func registerSignalHandler(logger *slog.Logger, cancel context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	go func() {
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
		<-signals

		signal.Stop(signals)
		logger.Info("shutting down")
		cancel()
	}()
}
