package location

import (
	"context"
	"fmt"
	"net/netip"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/tphakala/screamguard/internal/errors"
	"github.com/tphakala/screamguard/internal/httpclient"
)

// IPInfo is the result of an IP geolocation lookup.
type IPInfo struct {
	IP      string
	Lat     float64
	Lng     float64
	City    string
	Region  string
	Country string
}

// Address formats the place as "city, region, country", substituting
// "Unknown" for missing parts.
func (i *IPInfo) Address() string {
	parts := []string{i.City, i.Region, i.Country}
	for n, p := range parts {
		if p == "" {
			parts[n] = "Unknown"
		}
	}
	return strings.Join(parts, ", ")
}

// IPLocator geolocates an IP address.
type IPLocator interface {
	Name() string
	Lookup(ctx context.Context, ip string) (*IPInfo, error)
}

// PublicIPFunc returns the public address of this host. It is used when the
// client address is loopback or private, e.g. during local development.
type PublicIPFunc func(ctx context.Context) (string, error)

// IpifyPublicIP returns a PublicIPFunc backed by an ipify-compatible endpoint
// answering {"ip": "..."}.
func IpifyPublicIP(client *httpclient.Client, endpoint string) PublicIPFunc {
	return func(ctx context.Context) (string, error) {
		var resp struct {
			IP string `json:"ip"`
		}
		if err := client.GetJSON(ctx, endpoint, nil, &resp); err != nil {
			return "", err
		}
		if _, err := netip.ParseAddr(resp.IP); err != nil {
			return "", fmt.Errorf("public IP service returned %q", resp.IP)
		}
		return resp.IP, nil
	}
}

// IPInfoLocator uses the ipinfo.io API. Lookups are rate limited; a lookup
// that exceeds the limit fails immediately instead of waiting.
type IPInfoLocator struct {
	client   *httpclient.Client
	baseURL  string
	token    string
	limiter  *rate.Limiter
	publicIP PublicIPFunc
}

// NewIPInfoLocator creates an ipinfo locator. A nil limiter disables rate
// limiting; a nil publicIP leaves private addresses unresolvable.
func NewIPInfoLocator(client *httpclient.Client, baseURL, token string, limiter *rate.Limiter, publicIP PublicIPFunc) *IPInfoLocator {
	return &IPInfoLocator{
		client:   client,
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		limiter:  limiter,
		publicIP: publicIP,
	}
}

// Name implements IPLocator.
func (l *IPInfoLocator) Name() string { return "ipinfo" }

// Lookup implements IPLocator.
func (l *IPInfoLocator) Lookup(ctx context.Context, ip string) (*IPInfo, error) {
	if l.limiter != nil && !l.limiter.Allow() {
		return nil, errors.Newf("ip geolocation rate limit exceeded").
			Component("location").
			Category(errors.CategoryLimit).
			Context("provider", l.Name()).
			Build()
	}

	if !IsPublicIP(ip) {
		if l.publicIP == nil {
			return nil, errors.Newf("client address %q is not public", ip).
				Component("location").
				Category(errors.CategoryValidation).
				Build()
		}
		public, err := l.publicIP(ctx)
		if err != nil {
			return nil, fmt.Errorf("public IP lookup failed: %w", err)
		}
		ip = public
	}

	endpoint := l.baseURL + "/" + url.PathEscape(ip) + "/json"
	if l.token != "" {
		endpoint += "?token=" + url.QueryEscape(l.token)
	}

	var resp struct {
		IP      string `json:"ip"`
		City    string `json:"city"`
		Region  string `json:"region"`
		Country string `json:"country"`
		Loc     string `json:"loc"`
		Bogon   bool   `json:"bogon"`
	}
	if err := l.client.GetJSON(ctx, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Bogon || resp.Loc == "" {
		return nil, errors.Newf("no location for %s", ip).
			Component("location").
			Category(errors.CategoryNotFound).
			Context("provider", l.Name()).
			Build()
	}

	lat, lng, err := parseLoc(resp.Loc)
	if err != nil {
		return nil, err
	}
	return &IPInfo{
		IP:      ip,
		Lat:     lat,
		Lng:     lng,
		City:    resp.City,
		Region:  resp.Region,
		Country: resp.Country,
	}, nil
}

func parseLoc(loc string) (lat, lng float64, err error) {
	latStr, lngStr, ok := strings.Cut(loc, ",")
	if !ok {
		return 0, 0, fmt.Errorf("malformed loc %q", loc)
	}
	if lat, err = strconv.ParseFloat(strings.TrimSpace(latStr), 64); err != nil {
		return 0, 0, fmt.Errorf("malformed latitude in %q: %w", loc, err)
	}
	if lng, err = strconv.ParseFloat(strings.TrimSpace(lngStr), 64); err != nil {
		return 0, 0, fmt.Errorf("malformed longitude in %q: %w", loc, err)
	}
	return lat, lng, (Point{Lat: lat, Lng: lng}).Validate()
}

// IsPublicIP reports whether ip is a routable unicast address.
func IsPublicIP(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	return addr.IsGlobalUnicast() && !addr.IsPrivate()
}
