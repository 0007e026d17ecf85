package location

import (
	"encoding/json"
	"math"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/screamguard/internal/errors"
)

func TestFormatCoordinates(t *testing.T) {
	tests := []struct {
		lat, lng float64
		want     string
	}{
		{60.1699, 24.9384, "60.1699,24.9384"},
		{-33.86882012345, 151.20929, "-33.86882012345,151.20929"},
		{0, 0, "0,0"},
		{1e-7, -180, "0.0000001,-180"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatCoordinates(tt.lat, tt.lng))
	}
}

func TestBuildLinks_UseExactCoordinates(t *testing.T) {
	coords := FormatCoordinates(51.50735123456, -0.12775)
	links := BuildLinks(coords, "test-key")

	assert.Equal(t, "https://www.google.com/maps?q="+coords, links.MapsURL)
	assert.Equal(t, "https://www.google.com/maps/dir/?api=1&destination="+coords, links.DirectionsURL)

	static, err := url.Parse(links.StaticMapURL)
	require.NoError(t, err)
	assert.Equal(t, coords, static.Query().Get("center"))
	assert.Equal(t, "color:red|"+coords, static.Query().Get("markers"))
	assert.Equal(t, "600x300", static.Query().Get("size"))
	assert.Equal(t, "17", static.Query().Get("zoom"))
	assert.Equal(t, "test-key", static.Query().Get("key"))

	embed, err := url.Parse(links.EmbedURL)
	require.NoError(t, err)
	assert.Equal(t, "/maps/embed/v1/view", embed.Path)
	assert.Equal(t, coords, embed.Query().Get("center"))
	assert.Equal(t, "18", embed.Query().Get("zoom"))
}

func TestPointValidate(t *testing.T) {
	valid := []Point{{Lat: 90, Lng: 180}, {Lat: -90, Lng: -180}, {Lat: 0, Lng: 0}}
	for _, p := range valid {
		assert.NoError(t, p.Validate(), "%+v", p)
	}

	invalid := []Point{
		{Lat: 90.0001, Lng: 0},
		{Lat: -91, Lng: 0},
		{Lat: 0, Lng: 180.5},
		{Lat: 0, Lng: -181},
		{Lat: math.NaN(), Lng: 0},
		{Lat: 0, Lng: math.Inf(1)},
	}
	for _, p := range invalid {
		err := p.Validate()
		require.Error(t, err, "%+v", p)
		assert.True(t, errors.IsCategory(err, errors.CategoryInvalidCoordinates))
	}
}

func TestSourceText(t *testing.T) {
	for src, name := range sourceNames {
		text, err := src.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, name, string(text))

		var back Source
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, src, back)
	}

	var s Source
	require.NoError(t, s.UnmarshalText([]byte("ipinfo.io")))
	assert.Equal(t, SourceIP, s)
	assert.Error(t, s.UnmarshalText([]byte("satellite")))
}

func TestLocationJSON(t *testing.T) {
	loc := Location{
		Latitude:   60.1699,
		Longitude:  24.9384,
		Address:    "Helsinki, Finland",
		Accuracy:   25,
		Source:     SourceBrowser,
		ResolvedAt: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		Links:      BuildLinks("60.1699,24.9384", "k"),
	}

	data, err := json.Marshal(loc)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "60.1699,24.9384", raw["coordinates"])
	assert.Equal(t, "browser_geolocation", raw["source"])
	assert.Equal(t, "https://www.google.com/maps?q=60.1699,24.9384", raw["maps_url"])

	var back Location
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, loc, back)
}

func TestUnresolved(t *testing.T) {
	now := time.Now()
	loc := Unresolved(now)
	assert.Equal(t, SourceUnresolved, loc.Source)
	assert.Equal(t, AddressUnresolved, loc.Address)
	assert.Zero(t, loc.Latitude)
	assert.Zero(t, loc.Accuracy)
	assert.Empty(t, loc.MapsURL)
}

func TestIsPublicIP(t *testing.T) {
	assert.True(t, IsPublicIP("8.8.8.8"))
	assert.True(t, IsPublicIP("2001:4860:4860::8888"))
	assert.False(t, IsPublicIP("127.0.0.1"))
	assert.False(t, IsPublicIP("::1"))
	assert.False(t, IsPublicIP("192.168.1.10"))
	assert.False(t, IsPublicIP(""))
	assert.False(t, IsPublicIP("not-an-ip"))
}
