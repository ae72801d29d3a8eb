package apiutil

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

func ParsePositiveInt64Field(raw string, field string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", field)
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", field)
	}
	return value, nil
}

// PathID reads a positive integer path value registered as {key}.
func PathID(r *http.Request, key string) (int64, error) {
	return ParsePositiveInt64Field(r.PathValue(key), key)
}

// ParseDate accepts RFC3339 or a bare date and returns UTC.
func ParseDate(raw string, field string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s is required", field)
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return parsed.UTC(), nil
	}
	if parsed, err := time.Parse("2006-01-02", raw); err == nil {
		return parsed.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%s must be a valid date", field)
}

// ParseOptionalTime returns nil for an empty value.
func ParseOptionalTime(raw *string, field string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	parsed, err := ParseDate(*raw, field)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
