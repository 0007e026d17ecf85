package location

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/tphakala/screamguard/internal/errors"
	"github.com/tphakala/screamguard/internal/httpclient"
)

// fakeGeocoder answers with a fixed address or error and counts calls.
type fakeGeocoder struct {
	name    string
	address string
	err     error
	block   bool
	calls   atomic.Int32
}

func (f *fakeGeocoder) Name() string { return f.name }

func (f *fakeGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.address, f.err
}

// fakeIPLocator answers every lookup with info or err.
type fakeIPLocator struct {
	info   *IPInfo
	err    error
	calls  atomic.Int32
	lastIP string
}

func (f *fakeIPLocator) Name() string { return "fake-ip" }

func (f *fakeIPLocator) Lookup(ctx context.Context, ip string) (*IPInfo, error) {
	f.calls.Add(1)
	f.lastIP = ip
	return f.info, f.err
}

var fixedNow = time.Date(2026, 10, 1, 8, 30, 0, 0, time.UTC)

func newTestResolver(geocoders []Geocoder, ip IPLocator) *Resolver {
	return NewResolver(Config{
		Geocoders:  geocoders,
		IPLocator:  ip,
		Timeout:    time.Second,
		MapsAPIKey: "maps-key",
		Now:        func() time.Time { return fixedNow },
	})
}

func TestResolve_ExplicitCoordinatesPrimaryGeocoder(t *testing.T) {
	primary := &fakeGeocoder{name: "primary", address: "Mannerheimintie 1, Helsinki"}
	secondary := &fakeGeocoder{name: "secondary", address: "unused"}
	r := newTestResolver([]Geocoder{primary, secondary}, nil)

	loc := r.Resolve(t.Context(), Request{Point: &Point{Lat: 60.1699, Lng: 24.9384}})

	assert.Equal(t, SourceBrowser, loc.Source)
	assert.Equal(t, "Mannerheimintie 1, Helsinki", loc.Address)
	assert.InDelta(t, DefaultBrowserAccuracy, loc.Accuracy, 0)
	assert.Equal(t, "https://www.google.com/maps?q=60.1699,24.9384", loc.MapsURL)
	assert.Equal(t, fixedNow, loc.ResolvedAt)
	assert.Equal(t, int32(0), secondary.calls.Load())
}

func TestResolve_FallsBackToSecondaryGeocoder(t *testing.T) {
	tests := map[string]*fakeGeocoder{
		"error":       {name: "primary", err: errors.NewStd("503")},
		"empty":       {name: "primary", address: ""},
		"placeholder": {name: "primary", address: "Location detected"},
	}
	for name, primary := range tests {
		t.Run(name, func(t *testing.T) {
			secondary := &fakeGeocoder{name: "secondary", address: "Kauppatori, Helsinki"}
			r := newTestResolver([]Geocoder{primary, secondary}, nil)

			loc := r.Resolve(t.Context(), Request{Point: &Point{Lat: 60.1675, Lng: 24.9525, Accuracy: 12}})

			assert.Equal(t, SourceBrowser, loc.Source)
			assert.Equal(t, "Kauppatori, Helsinki", loc.Address)
			assert.InDelta(t, 12.0, loc.Accuracy, 0)
			assert.Equal(t, int32(1), secondary.calls.Load())
		})
	}
}

func TestResolve_AllGeocodersFailKeepsCoordinates(t *testing.T) {
	primary := &fakeGeocoder{name: "primary", err: errors.NewStd("boom")}
	secondary := &fakeGeocoder{name: "secondary", err: errors.NewStd("boom")}
	ip := &fakeIPLocator{info: &IPInfo{Lat: 1, Lng: 1}}
	r := newTestResolver([]Geocoder{primary, secondary}, ip)

	loc := r.Resolve(t.Context(), Request{Point: &Point{Lat: 48.8566, Lng: 2.3522}})

	assert.Equal(t, SourceError, loc.Source)
	assert.Equal(t, AddressGeocodingError, loc.Address)
	assert.InDelta(t, 48.8566, loc.Latitude, 0)
	assert.InDelta(t, 2.3522, loc.Longitude, 0)
	assert.Equal(t, "https://www.google.com/maps?q=48.8566,2.3522", loc.MapsURL)
	assert.Equal(t, int32(0), ip.calls.Load(), "explicit coordinates never fall through to IP")
}

func TestResolve_InvalidCoordinatesSkipGeocoders(t *testing.T) {
	invalid := []Point{
		{Lat: 91, Lng: 0},
		{Lat: -90.5, Lng: 10},
		{Lat: 0, Lng: 181},
		{Lat: 45, Lng: -200},
	}

	for _, p := range invalid {
		geocoder := &fakeGeocoder{name: "primary", address: "should not be used"}
		ip := &fakeIPLocator{info: &IPInfo{IP: "198.51.100.4", Lat: 35.6895, Lng: 139.6917, City: "Tokyo", Region: "Tokyo", Country: "JP"}}
		r := newTestResolver([]Geocoder{geocoder}, ip)

		loc := r.Resolve(t.Context(), Request{Point: &p, ClientIP: "198.51.100.4"})

		assert.Equal(t, int32(0), geocoder.calls.Load(), "%+v", p)
		assert.Equal(t, SourceIP, loc.Source)

		noIP := newTestResolver([]Geocoder{geocoder}, nil)
		loc = noIP.Resolve(t.Context(), Request{Point: &p})
		assert.Equal(t, SourceUnresolved, loc.Source)
		assert.Equal(t, int32(0), geocoder.calls.Load())
	}
}

func TestResolve_IPGeolocation(t *testing.T) {
	ip := &fakeIPLocator{info: &IPInfo{IP: "203.0.113.50", Lat: 40.7128, Lng: -74.006, City: "New York", Region: "New York", Country: "US"}}
	r := newTestResolver(nil, ip)

	loc := r.Resolve(t.Context(), Request{ClientIP: "203.0.113.50"})

	assert.Equal(t, SourceIP, loc.Source)
	assert.Equal(t, "New York, New York, US", loc.Address)
	assert.InDelta(t, IPAccuracy, loc.Accuracy, 0)
	assert.Equal(t, "40.7128,-74.006", loc.Coordinates())
	assert.Equal(t, "203.0.113.50", ip.lastIP)
}

func TestResolve_IPFailureIsUnresolved(t *testing.T) {
	ip := &fakeIPLocator{err: errors.NewStd("connection refused")}
	r := newTestResolver(nil, ip)

	loc := r.Resolve(t.Context(), Request{ClientIP: "203.0.113.50"})

	assert.Equal(t, SourceUnresolved, loc.Source)
	assert.Equal(t, AddressUnresolved, loc.Address)
	assert.Equal(t, "0,0", loc.Coordinates())
}

func TestResolve_CachesAddresses(t *testing.T) {
	geocoder := &fakeGeocoder{name: "primary", address: "Somewhere 1"}
	r := newTestResolver([]Geocoder{geocoder}, nil)
	p := &Point{Lat: 10.5, Lng: 20.25}

	first := r.Resolve(t.Context(), Request{Point: p})
	second := r.Resolve(t.Context(), Request{Point: p})

	assert.Equal(t, first.Address, second.Address)
	assert.Equal(t, int32(1), geocoder.calls.Load())
}

func TestResolve_CachesPublicIPLookups(t *testing.T) {
	ip := &fakeIPLocator{info: &IPInfo{Lat: 1, Lng: 2, City: "A"}}
	r := newTestResolver(nil, ip)

	r.Resolve(t.Context(), Request{ClientIP: "203.0.113.1"})
	r.Resolve(t.Context(), Request{ClientIP: "203.0.113.1"})
	assert.Equal(t, int32(1), ip.calls.Load())

	// private addresses map to whatever the public IP is at the time
	r.Resolve(t.Context(), Request{ClientIP: "127.0.0.1"})
	r.Resolve(t.Context(), Request{ClientIP: "127.0.0.1"})
	assert.Equal(t, int32(3), ip.calls.Load())
}

func TestResolve_ProviderTimeoutIsBounded(t *testing.T) {
	slow := &fakeGeocoder{name: "slow", block: true}
	fast := &fakeGeocoder{name: "fast", address: "Fast Street 2"}
	r := NewResolver(Config{
		Geocoders: []Geocoder{slow, fast},
		Timeout:   50 * time.Millisecond,
		CacheTTL:  -1,
	})

	start := time.Now()
	loc := r.Resolve(t.Context(), Request{Point: &Point{Lat: 1, Lng: 1}})

	assert.Equal(t, "Fast Street 2", loc.Address)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNewResolver_CapsTimeout(t *testing.T) {
	r := NewResolver(Config{Timeout: time.Minute})
	assert.Equal(t, MaxProviderTimeout, r.timeout)
}

func newMockClient() (*httpclient.Client, *httpmock.MockTransport) {
	transport := httpmock.NewMockTransport()
	cfg := httpclient.DefaultConfig()
	cfg.Transport = transport
	return httpclient.New(&cfg), transport
}

func TestGoogleGeocoder(t *testing.T) {
	client, transport := newMockClient()
	g := NewGoogleGeocoder(client, "https://maps.test", "secret")

	transport.RegisterResponder("GET", "https://maps.test/maps/api/geocode/json",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "60.1699,24.9384", req.URL.Query().Get("latlng"))
			assert.Equal(t, "secret", req.URL.Query().Get("key"))
			return httpmock.NewStringResponse(200, `{
				"status": "OK",
				"results": [{"formatted_address": "Aleksanterinkatu 52, 00100 Helsinki, Finland"}]
			}`), nil
		})

	address, err := g.ReverseGeocode(t.Context(), 60.1699, 24.9384)
	require.NoError(t, err)
	assert.Equal(t, "Aleksanterinkatu 52, 00100 Helsinki, Finland", address)
}

func TestGoogleGeocoder_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"zero results", 200, `{"status": "ZERO_RESULTS", "results": []}`},
		{"denied", 200, `{"status": "REQUEST_DENIED", "error_message": "The provided API key is invalid."}`},
		{"server error", 500, `oops`},
		{"not json", 200, `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, transport := newMockClient()
			transport.RegisterResponder("GET", "https://maps.test/maps/api/geocode/json",
				httpmock.NewStringResponder(tt.status, tt.body))

			_, err := NewGoogleGeocoder(client, "https://maps.test", "k").ReverseGeocode(t.Context(), 1, 2)
			assert.Error(t, err)
		})
	}
}

func TestNominatimGeocoder(t *testing.T) {
	client, transport := newMockClient()
	transport.RegisterResponder("GET", "https://osm.test/reverse",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "ScreamGuard/test", req.Header.Get("User-Agent"))
			assert.Equal(t, "jsonv2", req.URL.Query().Get("format"))
			assert.Equal(t, "-33.8688", req.URL.Query().Get("lat"))
			assert.Equal(t, "151.2093", req.URL.Query().Get("lon"))
			return httpmock.NewStringResponse(200, `{"display_name": "Sydney Opera House, Sydney, Australia"}`), nil
		})

	address, err := NewNominatimGeocoder(client, "https://osm.test", "ScreamGuard/test").
		ReverseGeocode(t.Context(), -33.8688, 151.2093)
	require.NoError(t, err)
	assert.Equal(t, "Sydney Opera House, Sydney, Australia", address)
}

func TestNominatimGeocoder_UnableToGeocode(t *testing.T) {
	client, transport := newMockClient()
	transport.RegisterResponder("GET", "https://osm.test/reverse",
		httpmock.NewStringResponder(200, `{"error": "Unable to geocode"}`))

	_, err := NewNominatimGeocoder(client, "https://osm.test", "ua").ReverseGeocode(t.Context(), 0, -160)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryGeocoding))
}

func TestIPInfoLocator_PrivateAddressUsesPublicIP(t *testing.T) {
	client, transport := newMockClient()
	transport.RegisterResponder("GET", "https://ipify.test/",
		httpmock.NewStringResponder(200, `{"ip": "198.51.100.23"}`))
	transport.RegisterResponder("GET", "https://ipinfo.test/198.51.100.23/json",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "tok", req.URL.Query().Get("token"))
			return httpmock.NewStringResponse(200, `{
				"ip": "198.51.100.23", "city": "Oslo", "region": "Oslo", "country": "NO", "loc": "59.9127,10.7461"
			}`), nil
		})

	locator := NewIPInfoLocator(client, "https://ipinfo.test/", "tok", nil,
		IpifyPublicIP(client, "https://ipify.test/?format=json"))

	info, err := locator.Lookup(t.Context(), "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.23", info.IP)
	assert.InDelta(t, 59.9127, info.Lat, 1e-9)
	assert.InDelta(t, 10.7461, info.Lng, 1e-9)
	assert.Equal(t, "Oslo, Oslo, NO", info.Address())
}

func TestIPInfoLocator_Failures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bogon", `{"ip": "203.0.113.7", "bogon": true}`},
		{"missing loc", `{"ip": "203.0.113.7", "city": "X"}`},
		{"malformed loc", `{"ip": "203.0.113.7", "loc": "north"}`},
		{"out of range loc", `{"ip": "203.0.113.7", "loc": "95.0,10.0"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, transport := newMockClient()
			transport.RegisterResponder("GET", "https://ipinfo.test/203.0.113.7/json",
				httpmock.NewStringResponder(200, tt.body))

			_, err := NewIPInfoLocator(client, "https://ipinfo.test", "", nil, nil).Lookup(t.Context(), "203.0.113.7")
			assert.Error(t, err)
		})
	}
}

func TestIPInfoLocator_RateLimited(t *testing.T) {
	client, transport := newMockClient()
	transport.RegisterResponder("GET", "https://ipinfo.test/203.0.113.7/json",
		httpmock.NewStringResponder(200, `{"ip": "203.0.113.7", "loc": "1,2"}`))

	locator := NewIPInfoLocator(client, "https://ipinfo.test", "", rate.NewLimiter(0, 1), nil)

	_, err := locator.Lookup(t.Context(), "203.0.113.7")
	require.NoError(t, err)

	_, err = locator.Lookup(t.Context(), "203.0.113.7")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryLimit))
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestIPInfoLocator_PrivateWithoutPublicIPFunc(t *testing.T) {
	client, transport := newMockClient()
	_, err := NewIPInfoLocator(client, "https://ipinfo.test", "", nil, nil).Lookup(t.Context(), "10.1.2.3")
	require.Error(t, err)
	assert.Zero(t, transport.GetTotalCallCount())
}
