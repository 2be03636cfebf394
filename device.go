package authcore

import (
	"net/http"
	"strings"

	"github.com/docuflow/authcore/ratelimit"
	"github.com/docuflow/authcore/session"
)

// DeviceInfoFromRequest derives session device metadata from transport
// headers. Called once at session creation; the result is immutable for the
// life of the session record.
func DeviceInfoFromRequest(r *http.Request) session.DeviceInfo {
	ua := r.UserAgent()
	return session.DeviceInfo{
		UserAgent:  ua,
		IPAddress:  ratelimit.ClientIP(r),
		DeviceType: deviceType(ua),
		Browser:    browserName(ua),
	}
}

func deviceType(ua string) string {
	lower := strings.ToLower(ua)
	switch {
	case strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet"):
		return "tablet"
	case strings.Contains(lower, "mobi") || strings.Contains(lower, "iphone") ||
		strings.Contains(lower, "android"):
		return "mobile"
	default:
		return "desktop"
	}
}

// browserName is a coarse sniff for session-management UI; ordering matters
// because Chrome-family agents also advertise Safari.
func browserName(ua string) string {
	lower := strings.ToLower(ua)
	switch {
	case strings.Contains(lower, "edg/") || strings.Contains(lower, "edge"):
		return "Edge"
	case strings.Contains(lower, "opr/") || strings.Contains(lower, "opera"):
		return "Opera"
	case strings.Contains(lower, "firefox"):
		return "Firefox"
	case strings.Contains(lower, "chrome"):
		return "Chrome"
	case strings.Contains(lower, "safari"):
		return "Safari"
	default:
		return "unknown"
	}
}
