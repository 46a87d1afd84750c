package parser

import (
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

func FormatRFC3339(t time.Time) string {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02dZ", year, month, day, hour, min, sec)
}

// ParseDate reads a bill date such as "2024-11-15". An empty string yields nil.
func ParseDate(raw string, loc *time.Location) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.UTC
	}

	t, err := time.ParseInLocation(DateLayout, raw, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", raw, err)
	}
	return &t, nil
}
