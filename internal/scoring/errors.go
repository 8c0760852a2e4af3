package scoring

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors.
var (
	// ErrUnknownProfile is matched by every *UnknownProfileError.
	ErrUnknownProfile = errors.New("unknown profile")

	// ErrInvalidLimit is returned when the requested playlist size is not positive.
	ErrInvalidLimit = errors.New("limit must be greater than zero")

	// ErrInvalidTrack is matched by every InvalidTrackError.
	ErrInvalidTrack = errors.New("invalid track")

	// ErrInvalidConfig is returned by NewScorer for inconsistent configuration.
	ErrInvalidConfig = errors.New("invalid scoring config")
)

// Profile kinds reported by UnknownProfileError.
const (
	KindMood    = "mood"
	KindContext = "context"
)

// UnknownProfileError reports a mood or context name that is not configured.
type UnknownProfileError struct {
	Kind  string   // "mood" or "context"
	Name  string   // the unrecognized value as supplied
	Valid []string // configured names, sorted
}

func (e *UnknownProfileError) Error() string {
	return fmt.Sprintf("unknown %s %q (valid: %s)", e.Kind, e.Name, strings.Join(e.Valid, ", "))
}

// Is makes errors.Is(err, ErrUnknownProfile) succeed.
func (e *UnknownProfileError) Is(target error) bool {
	return target == ErrUnknownProfile
}

// InvalidTrackError describes a candidate excluded from scoring.
type InvalidTrackError struct {
	TrackID string   `json:"track_id"`
	Missing []string `json:"missing"` // fields that were absent or out of range
}

func (e InvalidTrackError) Error() string {
	id := e.TrackID
	if id == "" {
		id = "<no id>"
	}
	return fmt.Sprintf("track %s: missing or invalid %s", id, strings.Join(e.Missing, ", "))
}

// Is makes errors.Is(err, ErrInvalidTrack) succeed.
func (e InvalidTrackError) Is(target error) bool {
	return target == ErrInvalidTrack
}
