package notification

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/tphakala/screamguard/internal/location"
)

const (
	// EmailSubject is the subject line of every alert email.
	EmailSubject = "🚨 EMERGENCY: Scream Detected"

	notAvailable  = "N/A"
	unknownValue  = "Unknown"
	timeLayout    = "2006-01-02 15:04:05"
	mqttEventType = "scream_escalation"
	systemSignoff = "This is an automated alert from the Scream Detection System."
)

// alertView is the presentation form of an alert shared by all channels.
type alertView struct {
	Address       string
	Coordinates   string
	Accuracy      string
	MapsURL       string
	DirectionsURL string
	DetectionTime string
	Source        string
	Signoff       string
}

// newAlertView formats the alert. Coordinates and links are omitted for an
// unresolved location so responders are never sent to (0,0).
func newAlertView(a *Alert) alertView {
	loc := a.Location
	v := alertView{
		Address:       loc.Address,
		Coordinates:   notAvailable,
		Accuracy:      unknownValue,
		DetectionTime: alertTime(a).Format(timeLayout),
		Source:        loc.Source.String(),
		Signoff:       systemSignoff,
	}
	if v.Address == "" {
		v.Address = unknownValue
	}
	if loc.Source == location.SourceUnresolved {
		return v
	}

	coords := loc.Coordinates()
	v.Coordinates = coords
	if loc.Accuracy > 0 {
		v.Accuracy = strconv.FormatFloat(loc.Accuracy, 'f', -1, 64)
	}
	links := loc.Links
	if links.MapsURL == "" || links.DirectionsURL == "" {
		links = location.BuildLinks(coords, "")
	}
	v.MapsURL = links.MapsURL
	v.DirectionsURL = links.DirectionsURL
	return v
}

func alertTime(a *Alert) time.Time {
	if a.TriggeredAt.IsZero() {
		return time.Now()
	}
	return a.TriggeredAt
}

// SMSBody renders the text message.
func SMSBody(a *Alert) string {
	v := newAlertView(a)
	mapsURL := v.MapsURL
	if mapsURL == "" {
		mapsURL = notAvailable
	}
	return fmt.Sprintf("Scream detected\nCoordinates: %s\nLocation: %s\nMap: %s", v.Coordinates, v.Address, mapsURL)
}

var emailTemplate = template.Must(template.New("email").Parse(`<html>
  <body>
    <h2 style="color: red;">SCREAM DETECTION ALERT</h2>
    <p><strong>Location:</strong> {{.Address}}</p>
    <p><strong>Coordinates:</strong> {{.Coordinates}}</p>
    <p><strong>Accuracy:</strong> {{.Accuracy}} meters</p>
{{- if .MapsURL}}
    <h3>Quick Links:</h3>
    <ul>
      <li><a href="{{.MapsURL}}">Open in Google Maps</a></li>
      <li><a href="{{.DirectionsURL}}">Get Directions</a></li>
    </ul>
{{- end}}
    <p><strong>Detection Time:</strong> {{.DetectionTime}}</p>
    <p>{{.Signoff}}</p>
    <p style="font-size: small;"><em>Source: {{.Source}}</em></p>
  </body>
</html>
`))

// EmailBody renders the HTML email.
func EmailBody(a *Alert) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, newAlertView(a)); err != nil {
		return "", fmt.Errorf("render email body: %w", err)
	}
	return buf.String(), nil
}

// CallDetails is the text logged for a simulated call.
func CallDetails(number string, a *Alert) string {
	v := newAlertView(a)
	return fmt.Sprintf("SIMULATED CALL TO %s\nLocation: %s\nCoordinates: %s\nAccuracy: %sm\nTime: %s",
		number, v.Address, v.Coordinates, v.Accuracy, alertTime(a).Format(time.RFC3339))
}

// CallTwiML is the voice message read out on a real call.
func CallTwiML(a *Alert) string {
	v := newAlertView(a)
	text := "Emergency. A scream was detected. Location: " + v.Address + "."
	if v.Coordinates != notAvailable {
		text += " Coordinates: " + strings.ReplaceAll(v.Coordinates, ",", ", ") + "."
	}
	var escaped bytes.Buffer
	// EscapeText only fails when the writer does.
	_ = xml.EscapeText(&escaped, []byte(text))
	return `<Response><Say loop="2">` + escaped.String() + `</Say></Response>`
}

// mqttPayload is the JSON document published on the alert topic.
type mqttPayload struct {
	Event           string            `json:"event"`
	CandidateID     string            `json:"candidate_id,omitempty"`
	EmergencyNumber string            `json:"emergency_number,omitempty"`
	Count           int               `json:"count,omitempty"`
	TriggeredAt     time.Time         `json:"triggered_at"`
	Location        location.Location `json:"location"`
}

// MQTTPayload renders the alert as JSON.
func MQTTPayload(a *Alert) ([]byte, error) {
	return json.Marshal(mqttPayload{
		Event:           mqttEventType,
		CandidateID:     a.CandidateID,
		EmergencyNumber: a.EmergencyNumber,
		Count:           a.Count,
		TriggeredAt:     alertTime(a),
		Location:        a.Location,
	})
}
