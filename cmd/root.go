package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var errSilent = errors.New("SilentErr")

type rootOptions struct {
	configPath string
	verbose    bool
	quiet      bool
}

func Execute() {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "pvemon",
		Short: "pvemon is a monitoring companion for a single Proxmox VE node.",
		Long: `pvemon is a command-line companion for a single Proxmox VE node.
    		It polls node resource usage and guest lists on an interval, and drives
    		start/stop/reboot/shutdown actions on QEMU virtual machines and LXC
    		containers over the Proxmox HTTP API. Connection settings come from
    		PROXMOX_* environment variables, optionally layered over a TOML file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		cmd.Println(err)
		cmd.Println(cmd.UsageString())
		return errSilent
	})
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to the optional TOML configuration file")
	rootCmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "Print debug information on stderr")
	rootCmd.PersistentFlags().BoolVar(&opts.quiet, "quiet", false, "Silent mode")

	rootCmd.AddCommand(newMonitorCommand(opts))
	rootCmd.AddCommand(newStatusCommand(opts))
	rootCmd.AddCommand(newListCommand(opts))
	rootCmd.AddCommand(newGuestCommands(opts)...)
	rootCmd.AddCommand(newVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errSilent) {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
