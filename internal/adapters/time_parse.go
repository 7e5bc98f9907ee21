package adapters

import (
	"net/http"
	"strings"
	"time"
)

// timestampLayouts covers the REST API timestamps and the HTTP date form
// object stores put in Last-Modified headers.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	http.TimeFormat,
	time.RFC1123Z,
}

// parseTimeFlexible returns the zero time for empty or unknown values.
func parseTimeFlexible(value string) time.Time {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}
