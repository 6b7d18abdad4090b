package logger

import (
	"strings"
	"time"
)

// RoundMS rounds a duration to millisecond precision for log output.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// SummarizeStrings joins up to max values with a truncation flag for the rest.
func SummarizeStrings(values []string, max int) (string, bool) {
	if len(values) == 0 {
		return "", false
	}
	if max <= 0 || len(values) <= max {
		return strings.Join(values, ","), false
	}
	return strings.Join(values[:max], ","), true
}
