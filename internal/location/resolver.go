package location

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/screamguard/internal/errors"
	"github.com/tphakala/screamguard/internal/logger"
	"github.com/tphakala/screamguard/internal/observability/metrics"
)

const (
	// MaxProviderTimeout caps every outbound location call.
	MaxProviderTimeout = 5 * time.Second
	// DefaultCacheTTL applies when Config.CacheTTL is zero.
	DefaultCacheTTL = 10 * time.Minute

	geocodeCacheLabel = "geocode"
)

// Config configures a Resolver.
type Config struct {
	// Geocoders are tried in order until one returns an address.
	Geocoders []Geocoder
	// IPLocator is optional; without it requests lacking coordinates resolve
	// to the unresolved placeholder.
	IPLocator IPLocator
	// Timeout applies to each provider call and is capped at MaxProviderTimeout.
	Timeout time.Duration
	// CacheTTL is how long addresses and IP lookups are reused. Negative disables caching.
	CacheTTL   time.Duration
	MapsAPIKey string
	Logger     logger.Logger
	Metrics    *metrics.LocationMetrics
	// Now is the clock, time.Now when nil.
	Now func() time.Time
}

// Resolver runs the location fallback chain. Safe for concurrent use.
type Resolver struct {
	geocoders []Geocoder
	ip        IPLocator
	timeout   time.Duration
	cache     *cache.Cache
	mapsKey   string
	log       logger.Logger
	metrics   *metrics.LocationMetrics
	now       func() time.Time
}

// NewResolver creates a Resolver.
func NewResolver(cfg Config) *Resolver {
	timeout := cfg.Timeout
	if timeout <= 0 || timeout > MaxProviderTimeout {
		timeout = MaxProviderTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	r := &Resolver{
		geocoders: cfg.Geocoders,
		ip:        cfg.IPLocator,
		timeout:   timeout,
		mapsKey:   cfg.MapsAPIKey,
		log:       log.Module("location"),
		metrics:   cfg.Metrics,
		now:       now,
	}
	switch {
	case cfg.CacheTTL == 0:
		r.cache = cache.New(DefaultCacheTTL, DefaultCacheTTL*2)
	case cfg.CacheTTL > 0:
		r.cache = cache.New(cfg.CacheTTL, cfg.CacheTTL*2)
	}
	return r
}

// Resolve never fails: every error degrades to a lower step of the chain and
// the returned Location's Source records which step answered.
func (r *Resolver) Resolve(ctx context.Context, req Request) Location {
	loc := r.resolve(ctx, req)
	r.metrics.RecordResolution(loc.Source.String())
	return loc
}

func (r *Resolver) resolve(ctx context.Context, req Request) Location {
	if req.Point != nil {
		if err := req.Point.Validate(); err != nil {
			// Invalid coordinates count as absent: the geocoders are skipped
			// and IP geolocation is tried instead.
			r.log.Warn("ignoring invalid coordinates",
				logger.Float64("latitude", req.Point.Lat),
				logger.Float64("longitude", req.Point.Lng),
				logger.Error(err))
		} else {
			return r.FromPoint(ctx, *req.Point)
		}
	}

	if r.ip != nil {
		loc, err := r.fromIP(ctx, req.ClientIP)
		if err == nil {
			return loc
		}
		r.log.Warn("IP geolocation failed",
			logger.String("provider", r.ip.Name()),
			logger.Error(err))
	}

	return Unresolved(r.now())
}

// FromPoint reverse geocodes a validated point. If every geocoder fails the
// location keeps its coordinates and links but reports SourceError.
func (r *Resolver) FromPoint(ctx context.Context, p Point) Location {
	accuracy := p.Accuracy
	if accuracy <= 0 {
		accuracy = DefaultBrowserAccuracy
	}
	coords := FormatCoordinates(p.Lat, p.Lng)
	loc := Location{
		Latitude:   p.Lat,
		Longitude:  p.Lng,
		Accuracy:   accuracy,
		Source:     SourceBrowser,
		ResolvedAt: r.now(),
		Links:      BuildLinks(coords, r.mapsKey),
	}

	address, err := r.reverseGeocode(ctx, p.Lat, p.Lng)
	if err != nil {
		r.log.Error("reverse geocoding failed",
			logger.String("coordinates", coords),
			logger.Error(err))
		loc.Address = AddressGeocodingError
		loc.Source = SourceError
		return loc
	}
	loc.Address = address
	return loc
}

func (r *Resolver) reverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	key := fmt.Sprintf("geo:%.6f,%.6f", lat, lng)
	if r.cache != nil {
		if cached, found := r.cache.Get(key); found {
			if address, ok := cached.(string); ok {
				r.metrics.RecordCacheLookup(geocodeCacheLabel, true)
				return address, nil
			}
		}
		r.metrics.RecordCacheLookup(geocodeCacheLabel, false)
	}

	if len(r.geocoders) == 0 {
		return "", errors.Newf("no geocoders configured").
			Component("location").
			Category(errors.CategoryGeocoding).
			Build()
	}

	var errs []error
	for _, g := range r.geocoders {
		address, err := r.callGeocoder(ctx, g, lat, lng)
		if err == nil {
			if r.cache != nil {
				r.cache.Set(key, address, cache.DefaultExpiration)
			}
			return address, nil
		}
		r.log.Debug("geocoder failed, trying next",
			logger.String("provider", g.Name()),
			logger.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", g.Name(), err))
	}

	return "", errors.New(errors.Join(errs...)).
		Component("location").
		Category(errors.CategoryGeocoding).
		Context("providers", len(r.geocoders)).
		Build()
}

func (r *Resolver) callGeocoder(ctx context.Context, g Geocoder, lat, lng float64) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	address, err := g.ReverseGeocode(callCtx, lat, lng)
	if err == nil && (address == "" || address == placeholderAddress) {
		err = ErrNoAddress
	}
	r.metrics.RecordProviderRequest(g.Name(), providerStatus(callCtx, err), time.Since(start).Seconds())
	return address, err
}

func (r *Resolver) fromIP(ctx context.Context, clientIP string) (Location, error) {
	var key string
	if r.cache != nil && IsPublicIP(clientIP) {
		key = "ip:" + clientIP
		if cached, found := r.cache.Get(key); found {
			if info, ok := cached.(*IPInfo); ok {
				r.metrics.RecordCacheLookup(r.ip.Name(), true)
				return r.ipLocation(info), nil
			}
		}
		r.metrics.RecordCacheLookup(r.ip.Name(), false)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	info, err := r.ip.Lookup(callCtx, clientIP)
	status := providerStatus(callCtx, err)
	if errors.IsCategory(err, errors.CategoryLimit) {
		status = metrics.StatusSkipped
	}
	r.metrics.RecordProviderRequest(r.ip.Name(), status, time.Since(start).Seconds())
	if err != nil {
		return Location{}, err
	}

	if key != "" {
		r.cache.Set(key, info, cache.DefaultExpiration)
	}
	return r.ipLocation(info), nil
}

func (r *Resolver) ipLocation(info *IPInfo) Location {
	return Location{
		Latitude:   info.Lat,
		Longitude:  info.Lng,
		Address:    info.Address(),
		Accuracy:   IPAccuracy,
		Source:     SourceIP,
		ResolvedAt: r.now(),
		Links:      BuildLinks(FormatCoordinates(info.Lat, info.Lng), r.mapsKey),
	}
}

func providerStatus(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return metrics.StatusSuccess
	case ctx.Err() == context.DeadlineExceeded:
		return metrics.StatusTimeout
	default:
		return metrics.StatusError
	}
}
