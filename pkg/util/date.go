package util

import (
	"strconv"
	"strings"
	"time"
)

// layout for zone-less timestamps; interpreted as UTC.
const naiveLayout = "2006-01-02T15:04:05"

// ParseTime tries RFC3339, RFC3339Nano, zone-less ISO-8601 (treated as UTC),
// and unix seconds. A trailing "Z" suffix is equivalent to "+00:00".
// Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(naiveLayout, s); err == nil {
		return t, true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}
