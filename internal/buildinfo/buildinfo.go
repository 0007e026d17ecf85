// Package buildinfo holds build-time metadata kept apart from user configuration.
package buildinfo

import "fmt"

// Set with -ldflags "-X github.com/tphakala/screamguard/internal/buildinfo.Version=..."
var (
	Version   = "dev"
	BuildDate = "unknown"
)

// Context carries build metadata to components that report it.
type Context struct {
	Version   string
	BuildDate string
}

// Current returns the metadata linked into this binary.
func Current() Context {
	return Context{Version: Version, BuildDate: BuildDate}
}

// UserAgent returns the User-Agent sent to external providers.
func (c Context) UserAgent() string {
	return fmt.Sprintf("ScreamGuard/%s", c.Version)
}

// Release returns the release name reported to telemetry.
func (c Context) Release() string {
	return "screamguard@" + c.Version
}
