// Package tracktest provides a scriptable track.Handle for tests.
package tracktest

import (
	"time"

	"github.com/osa030/segue/internal/domain/track"
)

// samplesPerSecond converts fake durations to data units.
const samplesPerSecond = 44100

// Handle is a track.Handle whose progress is set by the test.
type Handle struct {
	Meta     track.Track
	Duration time.Duration

	Data    int64
	Time    time.Duration
	Playing bool

	PlayErr error
	SeekErr error

	PlayCalls    int
	PauseCalls   int
	StopCalls    int
	ReleaseCalls int
	SeekCalls    int
	LastSeek     time.Duration
}

// New creates a fake handle positioned at the start of a track of the given duration.
func New(id string, d time.Duration) *Handle {
	h := &Handle{
		Meta:     track.Track{ID: id, Name: id, FilePath: "/music/" + id + ".mp3", Duration: d, Source: track.SourceTypeFile},
		Duration: d,
	}
	h.rewind()
	return h
}

// SetRemaining sets both progress counters from a remaining duration.
func (h *Handle) SetRemaining(d time.Duration) {
	h.Time = d
	h.Data = int64(d.Seconds() * samplesPerSecond)
}

// Finish marks the track as fully consumed.
func (h *Handle) Finish() {
	h.SetRemaining(0)
}

func (h *Handle) rewind() {
	h.SetRemaining(h.Duration)
}

func (h *Handle) ID() string {
	return h.Meta.ID
}

func (h *Handle) Track() track.Track {
	return h.Meta
}

func (h *Handle) Play() error {
	h.PlayCalls++
	if h.PlayErr != nil {
		return h.PlayErr
	}
	h.Playing = true
	return nil
}

func (h *Handle) Pause() error {
	h.PauseCalls++
	h.Playing = false
	return nil
}

func (h *Handle) Stop() error {
	h.StopCalls++
	h.Playing = false
	return nil
}

// Release frees nothing but is counted; the next play starts from the beginning.
func (h *Handle) Release() error {
	h.ReleaseCalls++
	h.Playing = false
	h.rewind()
	return nil
}

func (h *Handle) Seek(position time.Duration) error {
	h.SeekCalls++
	h.LastSeek = position
	if h.SeekErr != nil {
		return h.SeekErr
	}
	h.SetRemaining(h.Duration - position)
	return nil
}

func (h *Handle) RemainingData() int64 {
	return h.Data
}

func (h *Handle) RemainingTime() time.Duration {
	return h.Time
}

func (h *Handle) IsPlaying() bool {
	return h.Playing
}

var _ track.Handle = (*Handle)(nil)
