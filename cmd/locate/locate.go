package locate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/screamguard/internal/analysis"
	"github.com/tphakala/screamguard/internal/location"
	"github.com/tphakala/screamguard/internal/runtime"
)

// Command creates a command that runs the location resolver chain.
func Command(rt *runtime.Context) *cobra.Command {
	var (
		lat, lng, accuracy float64
		ip                 string
	)

	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Resolve a location from coordinates or an IP address",
		Long: `Run the location resolver chain and print the result as JSON.

Examples:
  # Reverse geocode browser coordinates
  screamguard locate --lat=60.1699 --lng=24.9384 --accuracy=15

  # Geolocate an IP address
  screamguard locate --ip=203.0.113.7

  # Geolocate this host's public address
  screamguard locate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := location.Request{ClientIP: ip}

			latSet, lngSet := cmd.Flags().Changed("lat"), cmd.Flags().Changed("lng")
			if latSet != lngSet {
				return fmt.Errorf("--lat and --lng must be given together")
			}
			if latSet {
				req.Point = &location.Point{Lat: lat, Lng: lng, Accuracy: accuracy}
			}

			return analysis.Locate(cmd.Context(), rt, req, cmd.OutOrStdout())
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "Longitude")
	cmd.Flags().Float64Var(&accuracy, "accuracy", 0, "Accuracy of the coordinates in meters")
	cmd.Flags().StringVar(&ip, "ip", "", "Client IP address to geolocate")

	return cmd
}
