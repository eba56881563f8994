package helpers

import "strings"

// SplitEmailAddress splits an address on its first '@' into local part and
// host. Missing parts come back as empty strings.
func SplitEmailAddress(email string) (string, string) {
	local, host, found := strings.Cut(email, "@")
	if !found {
		return strings.TrimSpace(email), ""
	}
	return strings.TrimSpace(local), strings.TrimSpace(host)
}
