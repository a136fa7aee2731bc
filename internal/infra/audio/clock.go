// Package audio provides concrete track handles backed by beep decoders and the system speaker.
package audio

import (
	"sync"
	"time"

	"github.com/gopxl/beep/v2"

	"github.com/osa030/segue/internal/domain/track"
)

// OutputRate is the sample rate handles report data units in and the speaker runs at.
const OutputRate = beep.SampleRate(44100)

// ClockTrack simulates playback against a clock. It produces no sound; it is used for
// remote catalog entries and when no audio device is available.
type ClockTrack struct {
	mu sync.Mutex

	meta     track.Track
	duration time.Duration
	now      func() time.Time

	position  time.Duration // Position accumulated before startedAt
	startedAt time.Time
	playing   bool
}

// NewClockTrack creates a stopped handle at position zero.
func NewClockTrack(meta track.Track, duration time.Duration, now func() time.Time) *ClockTrack {
	if now == nil {
		now = time.Now
	}
	meta.Duration = duration
	return &ClockTrack{
		meta:     meta,
		duration: duration,
		now:      now,
	}
}

func (c *ClockTrack) ID() string {
	return c.meta.ID
}

func (c *ClockTrack) Track() track.Track {
	return c.meta
}

// Play starts or resumes the clock.
func (c *ClockTrack) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.playing {
		c.startedAt = c.now()
		c.playing = true
	}
	return nil
}

// Pause freezes the clock.
func (c *ClockTrack) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.freezeLocked()
	return nil
}

// Stop freezes the clock.
func (c *ClockTrack) Stop() error {
	return c.Pause()
}

// Release rewinds to the start; the next Play begins from zero.
func (c *ClockTrack) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.playing = false
	c.position = 0
	return nil
}

// Seek moves the position, clamped to the track bounds.
func (c *ClockTrack) Seek(position time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.position = clamp(position, c.duration)
	if c.playing {
		c.startedAt = c.now()
	}
	return nil
}

// RemainingData returns the remaining time in OutputRate samples.
func (c *ClockTrack) RemainingData() int64 {
	return int64(OutputRate.N(c.RemainingTime()))
}

// RemainingTime returns the time left until the end.
func (c *ClockTrack) RemainingTime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.duration - c.positionLocked()
}

func (c *ClockTrack) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

func (c *ClockTrack) positionLocked() time.Duration {
	pos := c.position
	if c.playing {
		pos += c.now().Sub(c.startedAt)
	}
	return clamp(pos, c.duration)
}

func (c *ClockTrack) freezeLocked() {
	if c.playing {
		c.position = c.positionLocked()
		c.playing = false
	}
}

func clamp(d, max time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > max {
		return max
	}
	return d
}

var _ track.Handle = (*ClockTrack)(nil)
