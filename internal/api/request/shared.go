package request

import "time"

// ParseDate parses the YYYY-MM-DD date format used by all request payloads.
func ParseDate(str string) (time.Time, error) {
	return time.Parse("2006-01-02", str)
}
