package classify

import (
	"github.com/spf13/cobra"

	"github.com/tphakala/screamguard/internal/analysis"
	"github.com/tphakala/screamguard/internal/runtime"
)

// Command creates a new command for classifying a single audio file.
func Command(rt *runtime.Context) *cobra.Command {
	var withFeatures bool

	cmd := &cobra.Command{
		Use:   "classify [input.wav]",
		Short: "Classify an audio file",
		Long:  `Decode a WAV or FLAC clip, extract its features and print the classifier's label and probability.`,
		Args:  cobra.ExactArgs(1), // the command expects exactly one argument
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.FileAnalysis(rt, args[0], withFeatures, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&withFeatures, "features", false, "Include the extracted feature vector in the output")

	return cmd
}
