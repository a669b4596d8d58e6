package handlers

import "strings"

// redactEmail masks the local part: "john@gmail.com" -> "j***@gmail.com".
// Input without an "@" is masked entirely.
func redactEmail(email string) string {
	if email == "" {
		return ""
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "***"
	}
	if local == "" {
		return "***@" + domain
	}
	return local[:1] + "***@" + domain
}

// redactMobile keeps the last three digits.
func redactMobile(mobile string) string {
	if len(mobile) <= 3 {
		return "***"
	}
	return "***" + mobile[len(mobile)-3:]
}
