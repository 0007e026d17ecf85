package location

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/antonholmquist/jason"

	"github.com/tphakala/screamguard/internal/errors"
	"github.com/tphakala/screamguard/internal/httpclient"
)

// placeholderAddress is what the original geocoding flow substituted for a
// missing address. A geocoder returning it has not found anything.
const placeholderAddress = "Location detected"

// maxGeocodeResponse bounds geocoder response bodies.
const maxGeocodeResponse = 1 << 20

// ErrNoAddress is returned when a provider answers without an address.
var ErrNoAddress = errors.NewStd("no address found")

// Geocoder turns coordinates into a formatted address.
type Geocoder interface {
	Name() string
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// GoogleGeocoder uses the Google Geocoding API.
type GoogleGeocoder struct {
	client  *httpclient.Client
	baseURL string
	apiKey  string
}

// NewGoogleGeocoder creates a Google geocoder. baseURL is normally
// https://maps.googleapis.com.
func NewGoogleGeocoder(client *httpclient.Client, baseURL, apiKey string) *GoogleGeocoder {
	return &GoogleGeocoder{client: client, baseURL: baseURL, apiKey: apiKey}
}

// Name implements Geocoder.
func (g *GoogleGeocoder) Name() string { return "google" }

// ReverseGeocode implements Geocoder.
func (g *GoogleGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	q := url.Values{}
	q.Set("latlng", FormatCoordinates(lat, lng))
	q.Set("key", g.apiKey)

	body, err := g.client.GetBytes(ctx, g.baseURL+"/maps/api/geocode/json?"+q.Encode(), nil, maxGeocodeResponse)
	if err != nil {
		return "", err
	}

	obj, err := jason.NewObjectFromBytes(body)
	if err != nil {
		return "", errors.New(err).
			Component("location").
			Category(errors.CategoryGeocoding).
			Context("provider", g.Name()).
			Context("operation", "parse_response").
			Build()
	}

	// ZERO_RESULTS and OK are both well-formed answers; anything else is an
	// API error such as REQUEST_DENIED for a bad key.
	status, _ := obj.GetString("status")
	if status != "" && status != "OK" && status != "ZERO_RESULTS" {
		message, _ := obj.GetString("error_message")
		return "", errors.Newf("google geocoding status %s: %s", status, message).
			Component("location").
			Category(errors.CategoryGeocoding).
			Context("provider", g.Name()).
			Context("status", status).
			Build()
	}

	results, err := obj.GetObjectArray("results")
	if err != nil || len(results) == 0 {
		return "", ErrNoAddress
	}
	address, err := results[0].GetString("formatted_address")
	if err != nil {
		return "", ErrNoAddress
	}
	return address, nil
}

// NominatimGeocoder uses the OpenStreetMap Nominatim reverse endpoint.
// Nominatim's usage policy requires an identifying User-Agent.
type NominatimGeocoder struct {
	client    *httpclient.Client
	baseURL   string
	userAgent string
}

// NewNominatimGeocoder creates a Nominatim geocoder.
func NewNominatimGeocoder(client *httpclient.Client, baseURL, userAgent string) *NominatimGeocoder {
	return &NominatimGeocoder{client: client, baseURL: baseURL, userAgent: userAgent}
}

// Name implements Geocoder.
func (n *NominatimGeocoder) Name() string { return "nominatim" }

// ReverseGeocode implements Geocoder.
func (n *NominatimGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))

	header := http.Header{}
	if n.userAgent != "" {
		header.Set("User-Agent", n.userAgent)
	}

	body, err := n.client.GetBytes(ctx, n.baseURL+"/reverse?"+q.Encode(), header, maxGeocodeResponse)
	if err != nil {
		return "", err
	}

	obj, err := jason.NewObjectFromBytes(body)
	if err != nil {
		return "", errors.New(err).
			Component("location").
			Category(errors.CategoryGeocoding).
			Context("provider", n.Name()).
			Context("operation", "parse_response").
			Build()
	}

	if msg, err := obj.GetString("error"); err == nil && msg != "" {
		return "", errors.Newf("nominatim: %s", msg).
			Component("location").
			Category(errors.CategoryGeocoding).
			Context("provider", n.Name()).
			Build()
	}

	address, err := obj.GetString("display_name")
	if err != nil || address == "" {
		return "", ErrNoAddress
	}
	return address, nil
}
