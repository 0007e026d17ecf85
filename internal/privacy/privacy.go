// Package privacy removes credentials from provider URLs and error messages
// before they reach logs, API responses or error reports.
package privacy

import (
	"net/url"
	"regexp"
	"strings"
)

const redacted = "redacted"

// urlPattern finds URLs of the schemes used by the alert channels.
var urlPattern = regexp.MustCompile(`\b(?:https?|smtps?|tcp|ssl|mqtts?|wss?)://[^\s"']+`)

// sensitiveParams are query parameter names whose values are always redacted.
var sensitiveParams = []string{"key", "token", "password", "auth", "secret", "signature", "sig"}

// ScrubMessage redacts credentials of every URL found in message.
func ScrubMessage(message string) string {
	return urlPattern.ReplaceAllStringFunc(message, RedactURL)
}

// RedactURL replaces the userinfo and sensitive query values of rawURL.
// The scheme, host and path are kept so the target is still recognisable.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return redacted
	}
	if u.User != nil {
		u.User = url.User(redacted)
	}
	if u.RawQuery != "" {
		q := u.Query()
		for name := range q {
			if isSensitiveParam(name) {
				q.Set(name, redacted)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func isSensitiveParam(name string) bool {
	name = strings.ToLower(name)
	for _, s := range sensitiveParams {
		if strings.Contains(name, s) {
			return true
		}
	}
	return false
}

// scrubbedError keeps the original error reachable through Unwrap while its
// message has credentials removed.
type scrubbedError struct {
	err error
	msg string
}

func (e *scrubbedError) Error() string { return e.msg }
func (e *scrubbedError) Unwrap() error { return e.err }

// WrapError returns err with ScrubMessage applied to its text, or nil.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &scrubbedError{err: err, msg: ScrubMessage(err.Error())}
}
