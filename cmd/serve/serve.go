package serve

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/screamguard/internal/analysis"
	"github.com/tphakala/screamguard/internal/runtime"
)

// Command creates the command that runs the detection service.
func Command(rt *runtime.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the detection and escalation service",
		Long: `Start the HTTP API that classifies uploaded clips, tracks positive
detections and dispatches confirmed escalations. The service stops
gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.Serve(cmd.Context(), rt)
		},
	}

	setupFlags(cmd)

	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("port", "p", "", "HTTP listen port")
}
