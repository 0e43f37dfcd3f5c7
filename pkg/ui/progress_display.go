package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"phototimer/pkg/session"
)

// StatusDisplay renders the rotation as a single self-updating terminal line.
// It is used when no full-screen UI is running.
type StatusDisplay struct {
	mu      sync.Mutex
	out     io.Writer
	isDebug bool
	last    session.View
}

// NewStatusDisplay creates a status display writing to out
func NewStatusDisplay(out io.Writer, debug bool) *StatusDisplay {
	return &StatusDisplay{out: out, isDebug: debug}
}

// Render redraws the status line for v
func (d *StatusDisplay) Render(v session.View) {
	d.mu.Lock()
	defer d.mu.Unlock()

	photoChanged := v.CurrentImageURL != d.last.CurrentImageURL || v.CurrentIndex != d.last.CurrentIndex
	d.last = v

	if d.isDebug && photoChanged && v.CurrentImageURL != "" {
		fmt.Fprintf(d.out, "\n%s %s", Green("✓"), v.CurrentImageURL)
		if v.HasImage {
			fmt.Fprintf(d.out, " • %s", Dim(fmt.Sprintf("%dx%d %s", v.ImageWidth, v.ImageHeight, v.ImageFormat)))
		}
		fmt.Fprintln(d.out)
	}

	fmt.Fprintf(d.out, "\r%s\r%s", strings.Repeat(" ", 100), StatusLine(v))
}

// Notice prints a message on its own line below the status line
func (d *StatusDisplay) Notice(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, "\n%s %s\n", Yellow("⚠"), msg)
}

// Complete finishes the status line
func (d *StatusDisplay) Complete() {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, "\n%s Rotation finished at photo %s\n", Green("✓"), position(d.last))
}

// StatusLine formats the one-line summary of v
func StatusLine(v session.View) string {
	label := fmt.Sprintf("[%s]", strings.ToUpper(string(v.Status)))
	switch v.Status {
	case session.StatusRunning:
		label = Green(label)
	case session.StatusPaused:
		label = Yellow(label)
	case session.StatusEnded:
		label = Magenta(label)
	default:
		label = Dim(label)
	}

	line := fmt.Sprintf("%s photo %s", label, position(v))
	if v.RemainingText != "" {
		line += fmt.Sprintf(" • %s [%s]", v.RemainingText, CountdownBar(v.RemainingSeconds, v.DurationSeconds, 20))
	}
	if v.CurrentImageURL != "" {
		line += " • " + Cyan(truncate(v.CurrentImageURL, 48))
	}
	return line
}

func position(v session.View) string {
	if v.CurrentIndex < 0 {
		return fmt.Sprintf("-/%d", len(v.Photos))
	}
	return fmt.Sprintf("%d/%d", v.CurrentIndex+1, len(v.Photos))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
