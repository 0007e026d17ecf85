package notification

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/screamguard/internal/location"
)

func TestSMSBody(t *testing.T) {
	alert := testAlert()
	want := "Scream detected\n" +
		"Coordinates: 60.16985123,24.93838\n" +
		"Location: Mannerheimintie 1, Helsinki\n" +
		"Map: https://www.google.com/maps?q=60.16985123,24.93838"
	assert.Equal(t, want, SMSBody(alert))
}

func TestSMSBody_Unresolved(t *testing.T) {
	alert := &Alert{Location: location.Unresolved(testTime), TriggeredAt: testTime}
	body := SMSBody(alert)
	assert.Contains(t, body, "Coordinates: N/A")
	assert.Contains(t, body, "Map: N/A")
	assert.NotContains(t, body, "0,0")
}

// The email must carry exactly the coordinate string used for the links.
func TestEmailBody_CoordinatesMatchLinks(t *testing.T) {
	for _, p := range []struct{ lat, lng float64 }{
		{60.16985123, 24.93838},
		{-33.86882012345, 151.20929},
		{0.0000001, -179.9999999},
	} {
		coords := location.FormatCoordinates(p.lat, p.lng)
		alert := testAlert()
		alert.Location.Latitude = p.lat
		alert.Location.Longitude = p.lng
		alert.Location.Links = location.BuildLinks(coords, "k")

		body, err := EmailBody(alert)
		require.NoError(t, err)

		assert.Contains(t, body, "<strong>Coordinates:</strong> "+coords+"</p>")
		assert.Contains(t, body, `href="`+alert.Location.MapsURL+`"`)
		assert.Contains(t, body, "destination="+coords+`"`)
	}
}

func TestEmailBody_Content(t *testing.T) {
	body, err := EmailBody(testAlert())
	require.NoError(t, err)

	for _, s := range []string{
		"SCREAM DETECTION ALERT",
		"<strong>Location:</strong> Mannerheimintie 1, Helsinki",
		"<strong>Accuracy:</strong> 25 meters",
		"Open in Google Maps",
		"Get Directions",
		"<strong>Detection Time:</strong> 2026-10-18 14:30:05",
		"This is an automated alert from the Scream Detection System.",
		"Source: browser_geolocation",
	} {
		assert.Contains(t, body, s)
	}
}

func TestEmailBody_EscapesAddress(t *testing.T) {
	alert := testAlert()
	alert.Location.Address = `<script>alert("x")</script>`
	body, err := EmailBody(alert)
	require.NoError(t, err)
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")
}

func TestEmailBody_UnresolvedHasNoLinks(t *testing.T) {
	body, err := EmailBody(&Alert{Location: location.Unresolved(testTime), TriggeredAt: testTime})
	require.NoError(t, err)
	assert.NotContains(t, body, "Quick Links")
	assert.Contains(t, body, "<strong>Coordinates:</strong> N/A")
	assert.Contains(t, body, "Source: none")
}

func TestEmailBody_BuildsMissingLinks(t *testing.T) {
	alert := testAlert()
	alert.Location.Links = location.Links{}
	body, err := EmailBody(alert)
	require.NoError(t, err)
	assert.Contains(t, body, "https://www.google.com/maps?q="+alert.Location.Coordinates())
}

func TestCallDetails(t *testing.T) {
	details := CallDetails("112", testAlert())
	lines := strings.Split(details, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "SIMULATED CALL TO 112", lines[0])
	assert.Equal(t, "Location: Mannerheimintie 1, Helsinki", lines[1])
	assert.Equal(t, "Coordinates: 60.16985123,24.93838", lines[2])
	assert.Equal(t, "Accuracy: 25m", lines[3])
	assert.Equal(t, "Time: 2026-10-18T14:30:05Z", lines[4])
}

func TestCallTwiML_Escapes(t *testing.T) {
	alert := testAlert()
	alert.Location.Address = "Fish & Chips <Pier 4>"
	twiml := CallTwiML(alert)
	assert.True(t, strings.HasPrefix(twiml, "<Response><Say"))
	assert.Contains(t, twiml, "Fish &amp; Chips &lt;Pier 4&gt;")
	assert.Contains(t, twiml, "60.16985123, 24.93838")
}
