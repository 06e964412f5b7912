// Package format holds small text helpers for Telegram HTML messages.
package format

import (
	"fmt"
	"html"
	"time"
)

// Escape makes arbitrary text safe for HTML parse mode.
func Escape(s string) string {
	return html.EscapeString(s)
}

// Bold wraps escaped text in bold tags.
func Bold(s string) string {
	return "<b>" + html.EscapeString(s) + "</b>"
}

// Code wraps escaped text in a monospace span.
func Code(s string) string {
	return "<code>" + html.EscapeString(s) + "</code>"
}

// Duration renders an uptime-style duration as "2d 3h 4m" with zero
// leading units omitted.
func Duration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Minute)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
