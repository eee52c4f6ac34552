package main

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	store      string
	prefs      string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "emdrtap",
		Short: "EMDR Tap: bilateral stimulation with shared sessions",
		Long: "emdrtap animates a bouncing target for bilateral stimulation. A host can share " +
			"its controls with any number of guests through a session ID, and the relay lets " +
			"browsers follow a session.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMenu(cmd.Context(), opts)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&opts.store, "store", "", "document store backend (memory, nats, postgres)")
	flags.StringVar(&opts.prefs, "prefs", "", "preferences backend (toml, sqlite, memory)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newMenuCmd(opts),
		newHostCmd(opts),
		newJoinCmd(opts),
		newLocalCmd(opts),
		newRelayCmd(opts),
	)

	return rootCmd
}
