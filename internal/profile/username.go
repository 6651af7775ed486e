package profile

import (
	"strconv"
	"strings"
	"time"
)

const (
	maxUsernameLen = 24
	minUsernameLen = 3
)

// UsernameFromEmail derives the base username candidate from an email
// address: the local part, lowercased, stripped to [a-z0-9_-], truncated to
// 24 characters. Degenerate results (shorter than 3) are replaced with a
// time-suffixed fallback so the candidate is never empty.
func UsernameFromEmail(email string) string {
	raw := strings.SplitN(email, "@", 2)[0]

	cleaned := NormalizeUsername(raw)
	if len(cleaned) > maxUsernameLen {
		cleaned = cleaned[:maxUsernameLen]
	}
	if len(cleaned) >= minUsernameLen {
		return cleaned
	}

	ms := strconv.FormatInt(time.Now().UnixMilli(), 10)
	return "user-" + ms[len(ms)-6:]
}

// NormalizeUsername lowercases input and drops everything outside
// [a-z0-9_-]. Used both for derivation and for user-edited usernames in
// settings.
func NormalizeUsername(input string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(input)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
