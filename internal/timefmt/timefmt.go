// Package timefmt converts millisecond time values from the ontime device
// into the zero-padded display strings published as variables.
package timefmt

import "fmt"

// Split breaks a millisecond value into hour/minute/second display parts.
// Negative values are split on their absolute value; the sign is the
// caller's concern (see Format).
func Split(ms int64) (hours, minutes, seconds int64) {
	if ms < 0 {
		ms = -ms
	}
	totalSeconds := ms / 1000
	hours = totalSeconds / 3600
	minutes = (totalSeconds % 3600) / 60
	seconds = totalSeconds % 60
	return hours, minutes, seconds
}

// Format renders a millisecond value as HH:MM:SS, zero padded, with a
// leading minus sign when the value is negative.
func Format(ms int64) string {
	h, m, s := Split(ms)
	if ms < 0 {
		return fmt.Sprintf("-%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatHM renders a millisecond value as HH:MM, dropping seconds.
func FormatHM(ms int64) string {
	h, m, _ := Split(ms)
	if ms < 0 {
		return fmt.Sprintf("-%02d:%02d", h, m)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}
