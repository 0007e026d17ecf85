package logger

import (
	"regexp"
	"strings"
)

const redactedValue = "[REDACTED]"

// sensitiveDataPatterns match secrets embedded in free text, such as provider
// URLs carrying an API key or token query parameter.
var sensitiveDataPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9-._~+/]+=*)`),
	regexp.MustCompile(`(?i)([?&](key|token|api_key|apikey)=)([^&\s"]+)`),
	regexp.MustCompile(`(?i)((password|passwd|secret|auth_token)[\s:=]+)([^;,\s]{3,})`),
	regexp.MustCompile(`(?i)(smtp://[^:/\s]+:)([^@\s]+)(@)`),
}

// sensitiveKeywords are field-key fragments whose values are always redacted
var sensitiveKeywords = []string{
	"password", "passwd", "secret", "token", "api_key", "apikey", "authorization", "credential",
}

// RedactSensitiveData replaces secrets embedded in input with "[REDACTED]"
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}

	for i, pattern := range sensitiveDataPatterns {
		if i == len(sensitiveDataPatterns)-1 {
			input = pattern.ReplaceAllString(input, "${1}"+redactedValue+"${3}")
			continue
		}
		input = pattern.ReplaceAllString(input, "${1}"+redactedValue)
	}

	return input
}

func isSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(keyLower, keyword) {
			return true
		}
	}
	return false
}

// MaskPhone keeps only the last four digits of a phone number: "+358401234567" -> "***4567".
func MaskPhone(number string) string {
	const visible = 4
	if len(number) <= visible {
		return number
	}
	return "***" + number[len(number)-visible:]
}
