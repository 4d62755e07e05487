// Package redact masks personal data before it reaches the logs.
package redact

import "strings"

// Email keeps the first two characters of the local part and the domain.
//
//	"alice@example.com" → "al***@example.com"
func Email(s string) string {
	local, domain, ok := strings.Cut(s, "@")
	if !ok || domain == "" || strings.Contains(domain, "@") {
		return "***"
	}
	if len(local) > 2 {
		local = local[:2] + "***"
	} else {
		local = "***"
	}
	return local + "@" + domain
}

// Token replaces a credential with a fixed marker, keeping only whether it
// was present.
func Token(s string) string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}
