package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

const (
	maxUserAgentLen = 200
	digestLen       = 16
)

// Compute derives the soft client fingerprint: a truncated SHA-256 over the
// user agent, the forwarded client IP hint, and the current day stamp. The
// day stamp rotates the value daily so a leaked fingerprint ages out on its
// own. The result is a tamper signal only, never an authorization input.
func Compute(userAgent, ipHint string, now time.Time) string {
	if userAgent == "" {
		userAgent = "unknown"
	}
	if len(userAgent) > maxUserAgentLen {
		userAgent = userAgent[:maxUserAgentLen]
	}
	if ipHint == "" {
		ipHint = "unknown"
	} else if host, _, ok := strings.Cut(ipHint, ":"); ok && host != "" {
		// Strip the ephemeral port from addresses like 10.0.0.7:53211.
		ipHint = host
	}
	if now.IsZero() {
		now = time.Now()
	}

	sum := sha256.Sum256([]byte(userAgent + ":" + ipHint + ":" + now.Format("2006-01-02")))
	return hex.EncodeToString(sum[:])[:digestLen]
}

// Matches compares a stored fingerprint against the currently observed one.
// Records without a stored fingerprint always match; absence of the signal is
// not a mismatch.
func Matches(stored, observed string) bool {
	if stored == "" {
		return true
	}
	return stored == observed
}
