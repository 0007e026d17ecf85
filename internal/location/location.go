// Package location resolves a best-effort geographic location for a
// detection. Resolution follows a strict fallback order: explicit
// coordinates with reverse geocoding, then IP geolocation, then an
// unresolved placeholder. The Source tag tells consumers which step produced
// the result, so an unresolved (0,0) is never mistaken for a real position.
package location

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tphakala/screamguard/internal/errors"
)

// Addresses used when no real address is available.
const (
	AddressUnresolved     = "Enable browser geolocation for accurate results"
	AddressGeocodingError = "Location unavailable due to geocoding error"
)

// Accuracy sentinels in meters.
const (
	DefaultBrowserAccuracy = 50
	IPAccuracy             = 1000
)

// Source identifies how a Location was obtained.
type Source int

const (
	SourceUnresolved Source = iota
	SourceBrowser
	SourceIP
	SourceError
)

var sourceNames = map[Source]string{
	SourceUnresolved: "none",
	SourceBrowser:    "browser_geolocation",
	SourceIP:         "ip_geolocation",
	SourceError:      "error",
}

func (s Source) String() string {
	if name, ok := sourceNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText. "ipinfo.io" is
// accepted as an alias for IP geolocation.
func (s *Source) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "none", "":
		*s = SourceUnresolved
	case "browser_geolocation":
		*s = SourceBrowser
	case "ip_geolocation", "ipinfo.io":
		*s = SourceIP
	case "error":
		*s = SourceError
	default:
		return fmt.Errorf("unknown location source %q", text)
	}
	return nil
}

// Links are the presentation URLs derived from a location's coordinates.
type Links struct {
	MapsURL       string `json:"maps_url"`
	StaticMapURL  string `json:"static_map_url"`
	EmbedURL      string `json:"embed_url"`
	DirectionsURL string `json:"directions_url"`
}

// Location is a resolved position. Values are built once per resolution and
// never mutated afterwards.
type Location struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Address    string    `json:"address"`
	Accuracy   float64   `json:"accuracy"` // meters
	Source     Source    `json:"source"`
	ResolvedAt time.Time `json:"timestamp"`
	Links
}

// Coordinates returns "lat,lng" using the shortest representation that
// round-trips, so the same string appears in every message and link.
func (l Location) Coordinates() string {
	return FormatCoordinates(l.Latitude, l.Longitude)
}

// MarshalJSON adds the canonical coordinates string.
func (l Location) MarshalJSON() ([]byte, error) {
	type plain Location
	return json.Marshal(struct {
		plain
		Coordinates string `json:"coordinates"`
	}{plain(l), l.Coordinates()})
}

// FormatCoordinates formats a coordinate pair without truncation.
func FormatCoordinates(lat, lng float64) string {
	return strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)
}

// BuildLinks derives the map URLs for coords using the Maps API key.
func BuildLinks(coords, apiKey string) Links {
	static := url.Values{}
	static.Set("center", coords)
	static.Set("zoom", "17")
	static.Set("size", "600x300")
	static.Set("maptype", "roadmap")
	static.Set("markers", "color:red|"+coords)
	static.Set("key", apiKey)

	embed := url.Values{}
	embed.Set("center", coords)
	embed.Set("zoom", "18")
	embed.Set("key", apiKey)

	return Links{
		MapsURL:       "https://www.google.com/maps?q=" + coords,
		StaticMapURL:  "https://maps.googleapis.com/maps/api/staticmap?" + static.Encode(),
		EmbedURL:      "https://www.google.com/maps/embed/v1/view?" + embed.Encode(),
		DirectionsURL: "https://www.google.com/maps/dir/?api=1&destination=" + coords,
	}
}

// Unresolved returns the placeholder used when every step failed.
func Unresolved(now time.Time) Location {
	return Location{
		Address:    AddressUnresolved,
		Source:     SourceUnresolved,
		ResolvedAt: now,
	}
}

// Point is a caller-supplied position, typically from browser geolocation.
type Point struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy,omitempty"`
}

// Validate checks the coordinate ranges.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return errors.Newf("invalid coordinates %v,%v", p.Lat, p.Lng).
			Component("location").
			Category(errors.CategoryInvalidCoordinates).
			Context("latitude", p.Lat).
			Context("longitude", p.Lng).
			Build()
	}
	return nil
}

// Request is the input to a resolution.
type Request struct {
	// Point holds explicit coordinates, nil when the caller supplied none.
	Point *Point
	// ClientIP is the caller's address for IP geolocation. Empty, loopback
	// and private addresses are replaced by the server's public address.
	ClientIP string
}
