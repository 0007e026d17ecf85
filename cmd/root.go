package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/screamguard/cmd/classify"
	"github.com/tphakala/screamguard/cmd/config"
	"github.com/tphakala/screamguard/cmd/locate"
	"github.com/tphakala/screamguard/cmd/notify"
	"github.com/tphakala/screamguard/cmd/serve"
	"github.com/tphakala/screamguard/internal/runtime"
)

// RootCommand creates and returns the root command
func RootCommand(rt *runtime.Context) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:          "screamguard",
		Short:        "ScreamGuard scream detection and escalation service",
		SilenceUsage: true,
	}

	// Set up the global flags for the root command.
	setupFlags(rootCmd, &configFile)

	subcommands := []*cobra.Command{
		serve.Command(rt),
		classify.Command(rt),
		locate.Command(rt),
		notify.Command(rt),
		config.Command(rt),
	}

	rootCmd.AddCommand(subcommands...)

	// Configuration is loaded after flag parsing so that flags override the
	// config file and the environment.
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return rt.Init(configFile, cmd.Flags())
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, configFile *string) {
	rootCmd.PersistentFlags().StringVarP(configFile, "config", "c", "", "Path to config file (default: ./config.yaml, ~/.config/screamguard, /etc/screamguard)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	rootCmd.PersistentFlags().String("model", "", "Path to the model artifact")
}
