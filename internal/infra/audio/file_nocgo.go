//go:build !cgo

package audio

import (
	"time"

	"github.com/osa030/segue/internal/domain/track"
)

// SpeakerAvailable indicates whether this build can drive the system speaker.
// Speaker output requires cgo for the native sound libraries.
const SpeakerAvailable = false

// newFileTrack falls back to clock playback when cgo is disabled.
func newFileTrack(meta track.Track) track.Handle {
	return NewClockTrack(meta, meta.Duration, time.Now)
}
