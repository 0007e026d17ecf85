package analysis

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/tphakala/screamguard/internal/location"
	"github.com/tphakala/screamguard/internal/notification"
	"github.com/tphakala/screamguard/internal/observability"
	"github.com/tphakala/screamguard/internal/runtime"
)

// TestAlert sends an alert for the given coordinates through one channel, or
// through every configured channel when channel is empty, and writes the
// per-channel report as JSON to w.
func TestAlert(ctx context.Context, rt *runtime.Context, channel string, lat, lng float64, w io.Writer) error {
	p := location.Point{Lat: lat, Lng: lng}
	if err := p.Validate(); err != nil {
		return err
	}

	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}
	mq, d, err := NewDispatcher(ctx, rt, m)
	if err != nil {
		return err
	}
	if mq != nil {
		defer mq.Disconnect()
	}

	client := NewHTTPClient(rt)
	defer client.Close()
	resolver := location.NewFromSettings(&rt.Settings.Location, client, rt.Logger("location"), m.Location)

	alert := &notification.Alert{
		Location:        resolver.FromPoint(ctx, p),
		EmergencyNumber: rt.Settings.Escalation.EmergencyNumber,
		TriggeredAt:     time.Now(),
	}

	report := notification.Report{}
	if channel == "" {
		report = d.Dispatch(ctx, alert)
	} else {
		res, err := d.DispatchChannel(ctx, channel, alert)
		if err != nil {
			return err
		}
		report[channel] = res
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
