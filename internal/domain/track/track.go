// Package track provides the Track domain entity and the playback handle contract.
package track

import "time"

// SourceType identifies where a track came from.
type SourceType string

const (
	SourceTypeFile    SourceType = "FILE"
	SourceTypeSpotify SourceType = "SPOTIFY"
)

// Track represents a catalog entry.
// Contains only metadata; playback state lives in a Handle.
type Track struct {
	ID       string        // Stable identifier, unique within a queue
	Name     string        // Display name
	Artists  []string      // Artist names (may be empty for local files)
	FilePath string        // Local file path (empty for remote tracks)
	URL      string        // Remote URL (empty for local files)
	Duration time.Duration // Nominal duration (zero if unknown until decoded)
	Source   SourceType    // Origin of the track
}

// IsLocal reports whether the track is backed by a local file.
func (t *Track) IsLocal() bool {
	return t.FilePath != ""
}

// DisplayName returns the name, falling back to the file path or ID.
func (t *Track) DisplayName() string {
	switch {
	case t.Name != "":
		return t.Name
	case t.FilePath != "":
		return t.FilePath
	default:
		return t.ID
	}
}

// Handle is a playable track owned by a queue.
// Resources acquired by Play or Seek must be returned with Release before the
// handle is dropped or replaced. A released handle reacquires on the next Play.
type Handle interface {
	// ID returns the track identity.
	ID() string
	// Track returns the catalog metadata.
	Track() Track
	// Play starts or resumes playback.
	Play() error
	// Pause suspends playback and keeps resources.
	Pause() error
	// Stop halts playback.
	Stop() error
	// Release frees the decode/output resources.
	Release() error
	// Seek moves the playback position.
	Seek(position time.Duration) error
	// RemainingData returns the undecoded data units (samples).
	RemainingData() int64
	// RemainingTime returns the remaining playback time.
	RemainingTime() time.Duration
	// IsPlaying reports whether the handle is currently producing output.
	IsPlaying() bool
}
