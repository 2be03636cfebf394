package session

import (
	"encoding/json"
	"time"
	"unicode/utf8"
)

const maxUserAgentLength = 500

// DeviceInfo describes the client that created a session. It is derived
// once from transport headers at session creation and never updated.
type DeviceInfo struct {
	UserAgent  string `json:"user_agent"`
	IPAddress  string `json:"ip_address"`
	DeviceType string `json:"device_type"`
	Browser    string `json:"browser"`
}

// Record is the server-side metadata for one active refresh token.
type Record struct {
	UserID       string     `json:"user_id"`
	RefreshJTI   string     `json:"refresh_jti"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActivity time.Time  `json:"last_activity"`
	Device       DeviceInfo `json:"device_info"`
}

// Encode serializes a record for storage.
func Encode(rec *Record) ([]byte, error) {
	return json.Marshal(rec)
}

// Decode deserializes a stored record blob.
func Decode(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func truncateUserAgent(ua string) string {
	if len(ua) <= maxUserAgentLength {
		return ua
	}
	cut := maxUserAgentLength
	// Back off to a rune boundary so the stored value stays valid UTF-8.
	for cut > 0 && !utf8.RuneStart(ua[cut]) {
		cut--
	}
	return ua[:cut]
}
