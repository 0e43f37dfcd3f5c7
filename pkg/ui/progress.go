package ui

import "strings"

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// CountdownBar renders how much of the interval has elapsed as a fixed-width bar
func CountdownBar(remaining, total, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if total > 0 {
		if remaining < 0 {
			remaining = 0
		}
		if remaining > total {
			remaining = total
		}
		filled = (total - remaining) * width / total
	}
	return strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, width-filled)
}
