package session

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

const (
	SnapshotKind    = "phototimer.session"
	SnapshotVersion = 1
)

// ErrInvalidSnapshot is wrapped by every Snapshot.Validate failure
var ErrInvalidSnapshot = errors.New("invalid session snapshot")

// Snapshot is the persisted form of a session. The decoded image is never
// stored; it is resolved again from CurrentImageURL on restore.
type Snapshot struct {
	Kind             string    `json:"kind"`
	Version          int       `json:"version"`
	RotationID       string    `json:"rotation_id,omitempty"`
	Photos           []string  `json:"photos"`
	CurrentIndex     int       `json:"current_index"`
	RemainingSeconds int       `json:"remaining_seconds"`
	DurationSeconds  int       `json:"duration_seconds"`
	Status           Status    `json:"status"`
	Running          bool      `json:"running"`
	CurrentImageURL  string    `json:"current_image_url,omitempty"`
	SavedAt          time.Time `json:"saved_at"`
}

// Snapshot captures the persistable part of the state
func (s *State) Snapshot(now time.Time) Snapshot {
	photos := slices.Clone(s.Photos)
	if photos == nil {
		photos = []string{}
	}
	return Snapshot{
		Kind:             SnapshotKind,
		Version:          SnapshotVersion,
		RotationID:       s.RotationID,
		Photos:           photos,
		CurrentIndex:     s.CurrentIndex,
		RemainingSeconds: s.RemainingSeconds,
		DurationSeconds:  s.DurationSeconds,
		Status:           s.Status,
		Running:          s.Status == StatusRunning,
		CurrentImageURL:  s.CurrentImageURL,
		SavedAt:          now.UTC(),
	}
}

// Validate checks the schema header and every session invariant
func (snap Snapshot) Validate() error {
	if snap.Kind != SnapshotKind {
		return fmt.Errorf("%w: kind %q", ErrInvalidSnapshot, snap.Kind)
	}
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidSnapshot, snap.Version)
	}
	if !snap.Status.Valid() {
		return fmt.Errorf("%w: status %q", ErrInvalidSnapshot, snap.Status)
	}
	if snap.Running != (snap.Status == StatusRunning) {
		return fmt.Errorf("%w: running flag %t disagrees with status %s", ErrInvalidSnapshot, snap.Running, snap.Status)
	}
	if snap.CurrentIndex < -1 || snap.CurrentIndex >= len(snap.Photos) {
		return fmt.Errorf("%w: index %d out of range for %d photos", ErrInvalidSnapshot, snap.CurrentIndex, len(snap.Photos))
	}
	if snap.RemainingSeconds < 0 || snap.DurationSeconds < 0 {
		return fmt.Errorf("%w: negative seconds", ErrInvalidSnapshot)
	}
	if (snap.Status == StatusRunning || snap.Status == StatusPaused) && snap.RemainingSeconds == 0 {
		return fmt.Errorf("%w: %s with no time remaining", ErrInvalidSnapshot, snap.Status)
	}
	if snap.CurrentImageURL != "" {
		// A failed load leaves the previous photo displayed, so the image may
		// trail the index but can never be ahead of it.
		if snap.CurrentIndex < 0 || !slices.Contains(snap.Photos[:snap.CurrentIndex+1], snap.CurrentImageURL) {
			return fmt.Errorf("%w: current image %q is not a shown photo", ErrInvalidSnapshot, snap.CurrentImageURL)
		}
	}
	return nil
}

// State rebuilds a session from the snapshot. The image is left unresolved.
func (snap Snapshot) State() *State {
	photos := slices.Clone(snap.Photos)
	if photos == nil {
		photos = []string{}
	}
	return &State{
		RotationID:       snap.RotationID,
		Photos:           photos,
		CurrentIndex:     snap.CurrentIndex,
		RemainingSeconds: snap.RemainingSeconds,
		DurationSeconds:  snap.DurationSeconds,
		Status:           snap.Status,
		CurrentImageURL:  snap.CurrentImageURL,
	}
}

// Equal compares the persisted fields of two snapshots, ignoring SavedAt
func (snap Snapshot) Equal(other Snapshot) bool {
	return snap.Kind == other.Kind &&
		snap.Version == other.Version &&
		snap.RotationID == other.RotationID &&
		slices.Equal(snap.Photos, other.Photos) &&
		snap.CurrentIndex == other.CurrentIndex &&
		snap.RemainingSeconds == other.RemainingSeconds &&
		snap.DurationSeconds == other.DurationSeconds &&
		snap.Status == other.Status &&
		snap.Running == other.Running &&
		snap.CurrentImageURL == other.CurrentImageURL
}
