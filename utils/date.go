package utils

import (
	"fmt"
	"strings"
	"time"
)

// DateTimeFormat renders a timestamp the way the Dutch-facing exports and
// mails expect it
func DateTimeFormat(t time.Time) string {
	return t.Format("02-01-2006 15:04")
}

// FormatDuration renders the rental duration in Dutch, e.g. "2 dag(en) 3 uur"
func FormatDuration(start, end time.Time) string {
	d := end.Sub(start)
	if d < 0 {
		d = 0
	}

	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	parts := []string{}
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%d dag(en)", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%d uur", hours))
	}
	if len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%d minuten (minuut)", minutes))
	}
	return strings.Join(parts, " ")
}

// DurationString renders a countdown the way the order status endpoint
// phrases it: whole days, else whole hours, else minutes
func DurationString(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	days := totalSeconds / (3600 * 24)
	hours := (totalSeconds % (3600 * 24)) / 3600
	minutes := (totalSeconds % 3600) / 60

	if days > 0 {
		return fmt.Sprintf("%d dag(en)", days)
	}
	if hours > 0 {
		return fmt.Sprintf("%d uur", hours)
	}
	return fmt.Sprintf("%d minuten (minuut)", minutes)
}
