package config

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/screamguard/internal/runtime"
)

// Command creates the config parent command
func Command(rt *runtime.Context) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the ScreamGuard configuration",
	}

	configCmd.AddCommand(showCommand(rt))

	return configCmd
}

func showCommand(rt *runtime.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := rt.Settings.DumpYAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
