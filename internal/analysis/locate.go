package analysis

import (
	"context"
	"encoding/json"
	"io"

	"github.com/tphakala/screamguard/internal/location"
	"github.com/tphakala/screamguard/internal/observability"
	"github.com/tphakala/screamguard/internal/runtime"
)

// Locate runs the configured resolver chain for req and writes the location
// as JSON to w.
func Locate(ctx context.Context, rt *runtime.Context, req location.Request, w io.Writer) error {
	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	client := NewHTTPClient(rt)
	defer client.Close()

	resolver := location.NewFromSettings(&rt.Settings.Location, client, rt.Logger("location"), m.Location)
	loc := resolver.Resolve(ctx, req)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(loc)
}
