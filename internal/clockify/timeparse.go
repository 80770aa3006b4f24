package clockify

import (
	"errors"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// InstantLayout is the UTC form sent to Clockify for start/end.
const InstantLayout = "2006-01-02T15:04:05.000Z"

// ParseLocalTime reads a caller-supplied date in loc. Values carrying their
// own offset or zone keep it. A nil loc means time.Local.
func ParseLocalTime(field, value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	if strings.TrimSpace(value) == "" {
		return time.Time{}, NewParseError(field, value, errors.New("empty value"))
	}
	t, err := dateparse.ParseIn(strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}, NewParseError(field, value, err)
	}
	return t, nil
}

// FormatInstant renders t as a UTC instant string.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(InstantLayout)
}
