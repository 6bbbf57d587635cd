package usecase

import "strings"

// MaskEmail hides the middle of the local part: "alice@x.com" becomes
// "a***e@x.com". Inputs without an "@" mask to "", and inputs with an empty
// local part or domain come back unchanged.
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return ""
	}
	if local == "" || domain == "" {
		return email
	}

	runes := []rune(local)
	if len(runes) <= 2 {
		return string(runes[0]) + strings.Repeat("*", len(runes)-1) + "@" + domain
	}

	return string(runes[0]) + strings.Repeat("*", len(runes)-2) + string(runes[len(runes)-1]) + "@" + domain
}
