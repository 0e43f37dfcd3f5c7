package session

import (
	"fmt"
	"image"
	"slices"
	"strings"
)

// Status is the rotation lifecycle state
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
	StatusEnded   Status = "ended"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusIdle, StatusRunning, StatusPaused, StatusEnded:
		return true
	}
	return false
}

// ParseStatus parses a status name case-insensitively
func ParseStatus(name string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(name)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", name)
	}
	return s, nil
}

// Label is the capitalized status name shown to users
func (s Status) Label() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// State is the single mutable session record. It is owned by the rotation
// engine; everything else reads it through Snapshot or View.
type State struct {
	RotationID string
	Photos     []string
	// CurrentIndex is -1 until the first photo is shown
	CurrentIndex     int
	RemainingSeconds int
	DurationSeconds  int
	Status           Status
	// CurrentImageURL is the last photo that was resolved successfully.
	// A failed load advances CurrentIndex but leaves this unchanged.
	CurrentImageURL string
	Image           image.Image
	ImageFormat     string
}

// New returns an empty idle session
func New() *State {
	return &State{
		CurrentIndex: -1,
		Status:       StatusIdle,
		Photos:       []string{},
	}
}

// HasNext reports whether advancing would move to another photo
func (s *State) HasNext() bool {
	return s.CurrentIndex < len(s.Photos)-1
}

// ClearImage forgets the displayed photo
func (s *State) ClearImage() {
	s.CurrentImageURL = ""
	s.Image = nil
	s.ImageFormat = ""
}

// CurrentPhoto returns photos[CurrentIndex], or "" when nothing is selected
func (s *State) CurrentPhoto() string {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Photos) {
		return ""
	}
	return s.Photos[s.CurrentIndex]
}

// View copies the parts of the state a UI renders
func (s *State) View() View {
	v := View{
		Status:           s.Status,
		RemainingSeconds: s.RemainingSeconds,
		CurrentIndex:     s.CurrentIndex,
		CurrentPhoto:     s.CurrentPhoto(),
		CurrentImageURL:  s.CurrentImageURL,
		ImageFormat:      s.ImageFormat,
		Photos:           slices.Clone(s.Photos),
		DurationSeconds:  s.DurationSeconds,
		RotationID:       s.RotationID,
	}
	if s.Status != StatusEnded {
		v.RemainingText = FormatRemaining(s.RemainingSeconds)
	}
	if s.Image != nil {
		v.HasImage = true
		b := s.Image.Bounds()
		v.ImageWidth, v.ImageHeight = b.Dx(), b.Dy()
	}
	return v
}

// View is a read-only copy of the session for rendering
type View struct {
	Status           Status
	RemainingSeconds int
	// RemainingText is empty once the rotation has ended
	RemainingText   string
	CurrentIndex    int
	CurrentPhoto    string
	CurrentImageURL string
	HasImage        bool
	ImageWidth      int
	ImageHeight     int
	ImageFormat     string
	Photos          []string
	DurationSeconds int
	RotationID      string
}

// FormatRemaining renders a countdown as "N minutes M seconds"
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d minutes %d seconds", seconds/60, seconds%60)
}
