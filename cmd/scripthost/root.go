package main

import (
	"github.com/spf13/cobra"

	"github.com/wippyai/scripthost/config"
)

// cliState carries the global flags and the loaded configuration to the
// subcommands.
type cliState struct {
	cfg        *config.Config
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	st := &cliState{}

	rootCmd := &cobra.Command{
		Use:   "scripthost",
		Short: "Load, run and hot reload WebAssembly script modules",
		Long: `scripthost loads WebAssembly script modules into named, unloadable
contexts, calls their exports through the handle-based boundary and reloads
them when their files change.`,
		Version:       Version + " (" + GitCommit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(st.configPath)
			if err != nil {
				return err
			}
			if st.logLevel != "" {
				cfg.Log.Level = st.logLevel
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			st.cfg = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&st.configPath, "config", "", "config file (default ./scripthost.yaml)")
	rootCmd.PersistentFlags().StringVar(&st.logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(newRunCommand(st))
	rootCmd.AddCommand(newInspectCommand(st))
	rootCmd.AddCommand(newWatchCommand(st))
	rootCmd.AddCommand(newNewCommand())
	rootCmd.AddCommand(newConfigCommand())

	return rootCmd
}
