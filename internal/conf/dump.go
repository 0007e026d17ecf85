package conf

import (
	"gopkg.in/yaml.v3"
)

const redacted = "********"

// Redacted returns a copy of the settings with credentials masked.
func (s *Settings) Redacted() Settings {
	c := *s
	mask := func(v *string) {
		if *v != "" {
			*v = redacted
		}
	}
	mask(&c.Location.GoogleMapsAPIKey)
	mask(&c.Location.IPInfoToken)
	mask(&c.Notification.SMS.AuthToken)
	mask(&c.Notification.Email.Password)
	mask(&c.Notification.MQTT.Password)
	mask(&c.Output.MySQL.Password)
	mask(&c.Output.MongoDB.URI)
	mask(&c.Sentry.DSN)

	// slices are shared with the original
	c.Notification.SMS.Recipients = append([]string(nil), s.Notification.SMS.Recipients...)
	c.Notification.Email.Recipients = append([]string(nil), s.Notification.Email.Recipients...)
	return c
}

// DumpYAML renders the redacted settings as YAML.
func (s *Settings) DumpYAML() ([]byte, error) {
	r := s.Redacted()
	return yaml.Marshal(&r)
}
