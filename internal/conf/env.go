// env.go: environment variable bindings and validation
package conf

import (
	"fmt"
	"net/mail"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings
type envBinding struct {
	ConfigKey string             // viper config key
	EnvVar    string             // environment variable name
	Validate  func(string) error // optional validation function
}

// getEnvBindings returns the variable names the service has always read from .env
func getEnvBindings() []envBinding {
	return []envBinding{
		// Maps and geolocation
		{"location.googlemapsapikey", "GOOGLE_MAPS_API_KEY", nil},
		{"location.ipinfotoken", "IPINFO_TOKEN", nil},

		// Twilio
		{"notification.sms.accountsid", "TWILIO_ACCOUNT_SID", validateEnvTwilioSID},
		{"notification.sms.authtoken", "TWILIO_AUTH_TOKEN", nil},
		{"notification.sms.from", "TWILIO_PHONE_NUMBER", validateEnvPhoneNumber},
		{"notification.sms.recipients", "RECIPIENT_PHONE_NUMBERS", validateEnvPhoneList},

		// Email
		{"notification.email.host", "EMAIL_HOST", nil},
		{"notification.email.port", "EMAIL_PORT", validateEnvPort},
		{"notification.email.username", "EMAIL_USERNAME", nil},
		{"notification.email.password", "EMAIL_PASSWORD", nil},
		{"notification.email.recipients", "EMAIL_RECIPIENTS", validateEnvEmailList},

		// Escalation and calls
		{"escalation.emergencynumber", "EMERGENCY_NUMBER", nil},
		{"escalation.mindetections", "MIN_SCREAMS_FOR_ALERT", validateEnvMinDetections},
		{"notification.call.simulate", "SIMULATE_CALLS", validateEnvBool},

		// Storage and model
		{"output.mongodb.uri", "MONGODB_URI", validateEnvMongoURI},
		{"model.path", "MODEL_PATH", nil},
		{"sentry.dsn", "SENTRY_DSN", nil},
	}
}

// bindEnvVars binds every known variable and validates the values that are set.
// All problems are reported together.
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if envValue := os.Getenv(binding.EnvVar); envValue != "" {
			if err := binding.Validate(envValue); err != nil {
				warnings = append(warnings, fmt.Sprintf("invalid %s value: %v", binding.EnvVar, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvMinDetections(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid detection count: %w", err)
	}
	if n < 1 {
		return fmt.Errorf("detection count must be at least 1, got %d", n)
	}
	return nil
}

// twilioSIDPattern matches Twilio account SIDs: "AC" followed by 32 hex digits
var twilioSIDPattern = regexp.MustCompile(`^AC[0-9a-fA-F]{32}$`)

func validateEnvTwilioSID(value string) error {
	if !twilioSIDPattern.MatchString(value) {
		return fmt.Errorf("account SID must look like AC followed by 32 hex characters")
	}
	return nil
}

// phonePattern accepts E.164 numbers
var phonePattern = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

func validateEnvPhoneNumber(value string) error {
	if !phonePattern.MatchString(strings.TrimSpace(value)) {
		return fmt.Errorf("phone number must be in E.164 format, e.g. +14155550100")
	}
	return nil
}

func validateEnvPhoneList(value string) error {
	for number := range strings.SplitSeq(value, ",") {
		number = strings.TrimSpace(number)
		if number == "" {
			continue
		}
		if err := validateEnvPhoneNumber(number); err != nil {
			return fmt.Errorf("recipient %q: %w", number, err)
		}
	}
	return nil
}

func validateEnvEmailList(value string) error {
	for addr := range strings.SplitSeq(value, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		if _, err := mail.ParseAddress(addr); err != nil {
			return fmt.Errorf("recipient %q: %w", addr, err)
		}
	}
	return nil
}

func validateEnvMongoURI(value string) error {
	if !strings.HasPrefix(value, "mongodb://") && !strings.HasPrefix(value, "mongodb+srv://") {
		return fmt.Errorf("URI must start with mongodb:// or mongodb+srv://")
	}
	return nil
}
