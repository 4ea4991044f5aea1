// Package redact scrubs credentials, tokens, personal data and file-system
// paths from strings before they are logged. Error responses never carry
// raw errors; logs carry them only through this package.
package redact

import (
	"regexp"
)

// Redaction placeholders.
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedJWTPlaceholder        = "[REDACTED_JWT]"
	RedactedHashPlaceholder       = "[REDACTED_HASH]"
	RedactedEmailPlaceholder      = "[REDACTED_EMAIL]"
	RedactedStackPlaceholder      = "[STACK_TRACE_REDACTED]"
)

type rule struct {
	re          *regexp.Regexp
	replacement string
}

// rules run in order. Connection strings go before emails so the user
// part is not half matched, and paths go last so they do not split the
// tokens above.
var rules = []rule{
	{regexp.MustCompile(`(?:panic:|goroutine \d+ \[)[\s\S]*`), RedactedStackPlaceholder},
	{regexp.MustCompile(`(?i)\b(?:postgres(?:ql)?|mysql|mongodb|redis)://[^@\s]+@`), RedactedCredentialPlaceholder},
	{regexp.MustCompile(`eyJ[\w-]+\.eyJ[\w-]+\.[\w-]+`), RedactedJWTPlaceholder},
	{regexp.MustCompile(`SG\.[\w-]{16,}\.[\w-]{16,}`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`\$2[aby]?\$\d{2}\$[./A-Za-z0-9]{53}`), RedactedHashPlaceholder},
	{regexp.MustCompile(`(?i)(X-Goog-(?:Signature|Credential)=)[^&\s]+`), "${1}" + RedactionPlaceholder},
	{regexp.MustCompile(`(?i)\b(?:password|passwd|pwd)\s*[=:]\s*['"]?[^'"&\s]+['"]?`), RedactedCredentialPlaceholder},
	{regexp.MustCompile(`(?i)\b(?:api[_-]?key|secret|token)\s*[=:]\s*['"]?[\w\-.~+/]{8,}['"]?`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), RedactedEmailPlaceholder},
	{regexp.MustCompile(`[A-Za-z]:\\[^\\\s]+(?:\\[^\\\s]+)+`), RedactedPathPlaceholder},
	{regexp.MustCompile(`(?:/[\w.-]+){2,}`), RedactedPathPlaceholder},
}

// String redacts sensitive information from s.
func String(s string) string {
	if s == "" {
		return s
	}
	for _, r := range rules {
		s = r.re.ReplaceAllString(s, r.replacement)
	}
	return s
}

// Error redacts the message of err. A nil error gives an empty string.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
