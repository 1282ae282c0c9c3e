package emailutil

import "strings"

// Domain returns the lowercased domain part of an address, or "" when the
// address has no usable domain.
func Domain(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

// DomainAllowed reports whether domain is one of allowed, ignoring case.
// An empty list allows every domain, including "".
func DomainAllowed(domain string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	if domain == "" {
		return false
	}
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(a), domain) {
			return true
		}
	}
	return false
}
