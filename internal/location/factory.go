package location

import (
	"golang.org/x/time/rate"

	"github.com/tphakala/screamguard/internal/conf"
	"github.com/tphakala/screamguard/internal/httpclient"
	"github.com/tphakala/screamguard/internal/logger"
	"github.com/tphakala/screamguard/internal/observability/metrics"
)

// NewFromSettings builds the resolver chain from configuration. Google is
// only used when an API key is configured.
func NewFromSettings(settings *conf.LocationSettings, client *httpclient.Client, log logger.Logger, m *metrics.LocationMetrics) *Resolver {
	var geocoders []Geocoder
	if settings.Google.Enabled && settings.GoogleMapsAPIKey != "" {
		geocoders = append(geocoders, NewGoogleGeocoder(client, settings.Google.BaseURL, settings.GoogleMapsAPIKey))
	}
	if settings.Nominatim.Enabled {
		geocoders = append(geocoders, NewNominatimGeocoder(client, settings.Nominatim.BaseURL, settings.Nominatim.UserAgent))
	}

	var ipLocator IPLocator
	if settings.IPInfo.Enabled {
		var limiter *rate.Limiter
		if settings.IPInfo.RateLimit > 0 {
			limiter = rate.NewLimiter(rate.Limit(settings.IPInfo.RateLimit), max(settings.IPInfo.Burst, 1))
		}
		var publicIP PublicIPFunc
		if settings.IPInfo.PublicIPURL != "" {
			publicIP = IpifyPublicIP(client, settings.IPInfo.PublicIPURL)
		}
		ipLocator = NewIPInfoLocator(client, settings.IPInfo.BaseURL, settings.IPInfoToken, limiter, publicIP)
	}

	return NewResolver(Config{
		Geocoders:  geocoders,
		IPLocator:  ipLocator,
		Timeout:    settings.Timeout,
		CacheTTL:   settings.CacheTTL,
		MapsAPIKey: settings.GoogleMapsAPIKey,
		Logger:     log,
		Metrics:    m,
	})
}
