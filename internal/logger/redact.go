package logger

import (
	"regexp"
	"strings"
)

const redacted = "[REDACTED]"

// Redactor masks credentials before they reach the log output.
type Redactor struct {
	keys     []string
	patterns []*regexp.Regexp
}

var jwtPattern = regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)

var bearerPattern = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._~+/=-]+`)

// DefaultRedactor masks password, token, secret and authorization fields, plus
// anything in a message that looks like a JWT or a bearer credential.
func DefaultRedactor() *Redactor {
	return NewRedactor(
		[]string{"password", "token", "secret", "authorization", "cookie"},
		jwtPattern, bearerPattern,
	)
}

// NewRedactor builds a redactor from field-name substrings and message patterns.
func NewRedactor(keys []string, patterns ...*regexp.Regexp) *Redactor {
	lower := make([]string, len(keys))
	for i, k := range keys {
		lower[i] = strings.ToLower(k)
	}
	return &Redactor{keys: lower, patterns: patterns}
}

// Redact replaces every pattern match in msg.
func (r *Redactor) Redact(msg string) string {
	for _, p := range r.patterns {
		msg = p.ReplaceAllString(msg, redacted)
	}
	return msg
}

// RedactFields returns a copy of fields with sensitive keys masked and string
// values scrubbed.
func (r *Redactor) RedactFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if r.sensitive(k) {
			out[k] = redacted
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = r.Redact(s)
			continue
		}
		out[k] = v
	}
	return out
}

func (r *Redactor) sensitive(key string) bool {
	key = strings.ToLower(key)
	for _, k := range r.keys {
		if strings.Contains(key, k) {
			return true
		}
	}
	return false
}
