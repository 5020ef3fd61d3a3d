package utils

import (
	"fmt"
	"strings"
	"time"
)

var upstreamLayouts = []string{
	"2006-01-02T15:04:05.000",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// DaysAgo returns the instant n days before now.
func DaysAgo(now time.Time, n int) time.Time {
	return now.AddDate(0, 0, -n)
}

// ParseUpstreamTime accepts Socrata floating timestamps, RFC3339 and bare dates.
// Floating timestamps carry no zone and are read as UTC.
func ParseUpstreamTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	for _, layout := range upstreamLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse time %q: unsupported layout", value)
}
