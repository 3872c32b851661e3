package http

import (
	"time"

	xutil "BarPulse/pkg/util"
)

// ParseTime tries RFC3339, RFC3339Nano, zone-less ISO-8601, and unix seconds.
func ParseTime(s string) (time.Time, bool) { return xutil.ParseTime(s) }
