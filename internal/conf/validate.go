// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct. Missing channel
// credentials are not validation errors: the channel reports itself as
// misconfigured when it is dispatched, and its siblings still run.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) []string{
		validateModelSettings,
		validateEscalationSettings,
		validateLocationSettings,
		validateNotificationSettings,
		validateOutputSettings,
		validateWebServerSettings,
	}
	for _, validate := range validators {
		ve.Errors = append(ve.Errors, validate(settings)...)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateModelSettings(s *Settings) []string {
	var errs []string
	switch s.Model.Backend {
	case "linear":
	case "tflite":
		if s.Model.ScalerPath == "" {
			errs = append(errs, "model.scalerpath is required for the tflite backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("model.backend must be 'linear' or 'tflite', got %q", s.Model.Backend))
	}
	if s.Model.Path == "" {
		errs = append(errs, "model.path must not be empty")
	}
	if s.Model.Threads < 0 {
		errs = append(errs, "model.threads must not be negative")
	}
	return errs
}

func validateEscalationSettings(s *Settings) []string {
	var errs []string
	if s.Escalation.Window <= 0 {
		errs = append(errs, "escalation.window must be positive")
	}
	if s.Escalation.MinDetections < 1 {
		errs = append(errs, fmt.Sprintf("escalation.mindetections must be at least 1, got %d", s.Escalation.MinDetections))
	}
	if strings.TrimSpace(s.Escalation.EmergencyNumber) == "" {
		errs = append(errs, "escalation.emergencynumber must not be empty")
	}
	if s.Escalation.CandidateTTL <= 0 {
		errs = append(errs, "escalation.candidatettl must be positive")
	}
	return errs
}

func validateLocationSettings(s *Settings) []string {
	var errs []string
	if s.Location.Timeout <= 0 || s.Location.Timeout > MaxLocationTimeout {
		errs = append(errs, fmt.Sprintf("location.timeout must be between 0 and %s, got %s", MaxLocationTimeout, s.Location.Timeout))
	}
	if s.Location.IPInfo.Enabled && s.Location.IPInfo.RateLimit <= 0 {
		errs = append(errs, "location.ipinfo.ratelimit must be positive")
	}
	for name, raw := range map[string]string{
		"location.google.baseurl":     s.Location.Google.BaseURL,
		"location.nominatim.baseurl":  s.Location.Nominatim.BaseURL,
		"location.ipinfo.baseurl":     s.Location.IPInfo.BaseURL,
		"location.ipinfo.publicipurl": s.Location.IPInfo.PublicIPURL,
	} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("%s is not a valid URL: %q", name, raw))
		}
	}
	return errs
}

func validateNotificationSettings(s *Settings) []string {
	var errs []string
	n := &s.Notification
	if n.Timeout <= 0 {
		errs = append(errs, "notification.timeout must be positive")
	}
	if n.Email.Port < 0 || n.Email.Port > 65535 {
		errs = append(errs, fmt.Sprintf("notification.email.port out of range: %d", n.Email.Port))
	}
	switch n.Email.Encryption {
	case "", "auto", "none", "explicittls", "implicittls":
	default:
		errs = append(errs, fmt.Sprintf("notification.email.encryption must be auto, none, explicittls or implicittls, got %q", n.Email.Encryption))
	}
	if n.MQTT.Enabled {
		if n.MQTT.Broker == "" {
			errs = append(errs, "notification.mqtt.broker is required when MQTT is enabled")
		}
		if n.MQTT.Topic == "" {
			errs = append(errs, "notification.mqtt.topic is required when MQTT is enabled")
		}
		if n.MQTT.QoS > 2 {
			errs = append(errs, fmt.Sprintf("notification.mqtt.qos must be 0, 1 or 2, got %d", n.MQTT.QoS))
		}
	}
	return errs
}

func validateOutputSettings(s *Settings) []string {
	enabled := 0
	for _, on := range []bool{s.Output.SQLite.Enabled, s.Output.MySQL.Enabled, s.Output.MongoDB.Enabled} {
		if on {
			enabled++
		}
	}

	var errs []string
	switch {
	case enabled == 0:
		errs = append(errs, "one detection store must be enabled: output.sqlite, output.mysql or output.mongodb")
	case enabled > 1:
		errs = append(errs, "only one detection store can be enabled at a time")
	}
	if s.Output.SQLite.Enabled && s.Output.SQLite.Path == "" {
		errs = append(errs, "output.sqlite.path must not be empty")
	}
	if s.Output.MongoDB.Enabled {
		if err := validateEnvMongoURI(s.Output.MongoDB.URI); err != nil {
			errs = append(errs, "output.mongodb.uri: "+err.Error())
		}
	}
	return errs
}

func validateWebServerSettings(s *Settings) []string {
	var errs []string
	port, err := strconv.Atoi(s.WebServer.Port)
	if err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("webserver.port must be a number between 1 and 65535, got %q", s.WebServer.Port))
	}
	if s.WebServer.RateLimit < 0 {
		errs = append(errs, "webserver.ratelimit must not be negative")
	}
	for _, p := range s.WebServer.TrustedProxies {
		if !validProxy(p) {
			errs = append(errs, fmt.Sprintf("webserver.trustedproxies: %q is neither an IP address nor a CIDR", p))
		}
	}
	return errs
}

func validProxy(p string) bool {
	p = strings.TrimSpace(p)
	if strings.Contains(p, "/") {
		_, _, err := net.ParseCIDR(p)
		return err == nil
	}
	return net.ParseIP(p) != nil
}
