package ratelimit

import "strings"

// KeyForEmail builds a limiter key scoped to an action and a normalized
// email address. An empty email yields no key, which disables the check.
func KeyForEmail(action, email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if action == "" || email == "" {
		return ""
	}
	return action + ":e:" + email
}

// KeyForIP builds a limiter key scoped to an action and a client address.
func KeyForIP(action, ip string) string {
	ip = strings.TrimSpace(ip)
	if action == "" || ip == "" {
		return ""
	}
	return action + ":ip:" + ip
}
