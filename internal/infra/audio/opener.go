package audio

import (
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/segue/internal/domain/track"
)

// Opener turns catalog tracks into playable handles.
type Opener struct {
	simulate bool
	now      func() time.Time
}

// OpenerOption configures an Opener.
type OpenerOption func(*Opener)

// WithSimulatedOutput makes local files play on a clock instead of the speaker.
func WithSimulatedOutput() OpenerOption {
	return func(o *Opener) {
		o.simulate = true
	}
}

// WithClock sets the clock used by simulated handles.
func WithClock(now func() time.Time) OpenerOption {
	return func(o *Opener) {
		o.now = now
	}
}

// NewOpener creates an Opener. Without speaker support local files are simulated.
func NewOpener(opts ...OpenerOption) *Opener {
	o := &Opener{
		simulate: !SpeakerAvailable,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Open creates a handle for t. Local files are probed so undecodable files fail here
// rather than on first play.
func (o *Opener) Open(t track.Track) (track.Handle, error) {
	if !t.IsLocal() {
		if t.Duration <= 0 {
			return nil, errors.Newf("track %s has no duration", t.ID)
		}
		return NewClockTrack(t, t.Duration, o.now), nil
	}

	d, err := probeDuration(t.FilePath)
	if err != nil {
		return nil, err
	}
	t.Duration = d

	if o.simulate {
		zlog.Debug().Msgf("audio: simulating local track=%s duration=%v", t.ID, d)
		return NewClockTrack(t, d, o.now), nil
	}
	return newFileTrack(t), nil
}
