package discovery

import "strings"

// Service names published on the network have the form "username@suffix",
// where the suffix is a per-host disambiguator. The username may itself
// contain '@', so decomposition always splits at the last one.

// UsernameOf extracts the display username from a service name. Names
// without an '@' (or with nothing before it) are returned unchanged so
// that malformed or legacy names still display as something.
func UsernameOf(serviceName string) string {
	idx := strings.LastIndex(serviceName, "@")
	if idx <= 0 {
		return serviceName
	}
	return serviceName[:idx]
}

// SuffixOf extracts the disambiguation suffix from a service name, or ""
// when the name has no '@'.
func SuffixOf(serviceName string) string {
	idx := strings.LastIndex(serviceName, "@")
	if idx < 0 {
		return ""
	}
	return serviceName[idx+1:]
}

// ServiceNameOf composes a service name from a username and suffix.
func ServiceNameOf(username, suffix string) string {
	return username + "@" + suffix
}
