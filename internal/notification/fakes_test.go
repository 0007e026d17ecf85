package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/tphakala/screamguard/internal/errors"
	"github.com/tphakala/screamguard/internal/location"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testTime = time.Date(2026, 10, 18, 14, 30, 5, 0, time.UTC)

func testAlert() *Alert {
	coords := location.FormatCoordinates(60.16985123, 24.93838)
	return &Alert{
		CandidateID:     "cand-1",
		EmergencyNumber: "112",
		TriggeredAt:     testTime,
		Count:           2,
		Location: location.Location{
			Latitude:   60.16985123,
			Longitude:  24.93838,
			Address:    "Mannerheimintie 1, Helsinki",
			Accuracy:   25,
			Source:     location.SourceBrowser,
			ResolvedAt: testTime,
			Links:      location.BuildLinks(coords, "k"),
		},
	}
}

// fakeSMSSender records messages and fails for the configured recipients.
type fakeSMSSender struct {
	mu   sync.Mutex
	fail map[string]bool
	sent []string // recipients
	body string
}

func (f *fakeSMSSender) SendSMS(_ context.Context, _, to, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[to] {
		return "", errors.NewStd("twilio: invalid 'To' phone number")
	}
	f.sent = append(f.sent, to)
	f.body = body
	return "SM" + to, nil
}

func (f *fakeSMSSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeMailer struct {
	mu      sync.Mutex
	err     error
	calls   int
	subject string
	body    string
}

func (f *fakeMailer) SendMail(_ context.Context, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.subject = subject
	f.body = body
	return f.err
}

type fakePlacer struct {
	mu    sync.Mutex
	to    string
	twiml string
	err   error
}

func (f *fakePlacer) PlaceCall(_ context.Context, _, to, twiml string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.to = to
	f.twiml = twiml
	if f.err != nil {
		return "", f.err
	}
	return "CA123", nil
}

type fakeMQTTClient struct {
	mu        sync.Mutex
	connected bool
	topic     string
	payload   []byte
}

func (f *fakeMQTTClient) Connect(context.Context) error { return nil }
func (f *fakeMQTTClient) Disconnect()                   {}

func (f *fakeMQTTClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeMQTTClient) Publish(_ context.Context, topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topic = topic
	f.payload = payload
	return nil
}

// funcChannel adapts a function to Channel.
type funcChannel struct {
	name string
	send func(ctx context.Context) error
}

func (c funcChannel) Name() string                             { return c.name }
func (c funcChannel) Validate() error                          { return nil }
func (c funcChannel) Send(ctx context.Context, _ *Alert) error { return c.send(ctx) }

func validSMSConfig(recipients ...string) SMSConfig {
	return SMSConfig{AccountSID: "AC123", AuthToken: "secret", From: "+15550000000", Recipients: recipients}
}

func validEmailConfig() EmailConfig {
	return EmailConfig{
		Host:       "smtp.example.com",
		Port:       465,
		Username:   "alerts@example.com",
		Password:   "hunter2",
		Recipients: []string{"a@example.com", "b@example.com"},
		Encryption: "implicittls",
	}
}
