package notify

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/screamguard/internal/analysis"
	"github.com/tphakala/screamguard/internal/notification"
	"github.com/tphakala/screamguard/internal/runtime"
)

// Command returns a cobra command that sends a test alert through the configured channels
func Command(rt *runtime.Context) *cobra.Command {
	var (
		channel  string
		lat, lng float64
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send a test alert through the notification channels",
		Long: `Send a test alert for the given coordinates and print the result of
each channel.

Examples:
  # Every configured channel
  screamguard notify --lat=60.1699 --lng=24.9384

  # Only email
  screamguard notify --channel=email --lat=60.1699 --lng=24.9384`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch channel {
			case "", notification.ChannelSMS, notification.ChannelEmail, notification.ChannelCall, notification.ChannelMQTT:
			default:
				return fmt.Errorf("invalid channel: %s", channel)
			}
			return analysis.TestAlert(cmd.Context(), rt, channel, lat, lng, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&channel, "channel", "", "Channel to test: sms|email|call|mqtt (default: all configured)")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude of the test alert")
	cmd.Flags().Float64Var(&lng, "lng", 0, "Longitude of the test alert")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lng")

	return cmd
}
