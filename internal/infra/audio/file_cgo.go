//go:build cgo

package audio

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"

	"github.com/osa030/segue/internal/domain/track"
)

// SpeakerAvailable indicates whether this build can drive the system speaker.
const SpeakerAvailable = true

var (
	speakerOnce sync.Once
	speakerErr  error
)

// initSpeaker initializes the shared speaker once.
func initSpeaker() error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(OutputRate, OutputRate.N(time.Second/10))
	})
	return errors.Wrap(speakerErr, "failed to initialize speaker")
}

// FileTrack plays a local mp3/wav file through the speaker.
// The decoder is opened lazily on Play and closed by Release.
type FileTrack struct {
	mu sync.Mutex

	meta     track.Track
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	playing  bool

	// Control currently handed to the speaker; cleared from the speaker goroutine when it drains.
	active atomic.Pointer[beep.Ctrl]
}

func newFileTrack(meta track.Track) track.Handle {
	return &FileTrack{meta: meta}
}

func (t *FileTrack) ID() string {
	return t.meta.ID
}

func (t *FileTrack) Track() track.Track {
	return t.meta
}

// Play starts or resumes output, decoding the file on first use.
func (t *FileTrack) Play() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := initSpeaker(); err != nil {
		return err
	}
	if err := t.acquireLocked(); err != nil {
		return err
	}

	speaker.Lock()
	t.ctrl.Paused = false
	speaker.Unlock()

	t.playing = true
	t.enqueueLocked()
	return nil
}

// Pause holds output and keeps the decoder.
func (t *FileTrack) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pauseLocked()
	return nil
}

// Stop detaches the stream from the speaker.
func (t *FileTrack) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	return nil
}

// Release stops output and closes the decoder.
func (t *FileTrack) Release() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	if t.streamer == nil {
		return nil
	}
	err := t.streamer.Close()
	t.streamer = nil
	return errors.Wrapf(err, "failed to close %s", t.meta.FilePath)
}

// Seek moves the decoder position. A drained stream that is still playing is re-queued.
func (t *FileTrack) Seek(position time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.acquireLocked(); err != nil {
		return err
	}

	speaker.Lock()
	n := t.format.SampleRate.N(position)
	if n > t.streamer.Len() {
		n = t.streamer.Len()
	}
	err := t.streamer.Seek(n)
	speaker.Unlock()
	if err != nil {
		return errors.Wrapf(err, "failed to seek %s", t.meta.FilePath)
	}

	if t.playing {
		t.enqueueLocked()
	}
	return nil
}

// RemainingData returns the undecoded part of the file in OutputRate samples.
func (t *FileTrack) RemainingData() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.streamer == nil {
		return int64(OutputRate.N(t.meta.Duration))
	}

	speaker.Lock()
	defer speaker.Unlock()
	return outputSamples(t.format.SampleRate, t.streamer.Len()-t.streamer.Position())
}

// RemainingTime returns the time left in the file.
func (t *FileTrack) RemainingTime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.streamer == nil {
		return t.meta.Duration
	}

	speaker.Lock()
	defer speaker.Unlock()
	return t.format.SampleRate.D(t.streamer.Len() - t.streamer.Position())
}

func (t *FileTrack) IsPlaying() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing
}

// acquireLocked opens the decoder and builds a paused control.
func (t *FileTrack) acquireLocked() error {
	if t.streamer == nil {
		streamer, format, err := decodeFile(t.meta.FilePath)
		if err != nil {
			return err
		}
		t.streamer, t.format = streamer, format
		t.ctrl = nil
	}
	if t.ctrl == nil {
		t.ctrl = &beep.Ctrl{
			Streamer: beep.Resample(4, t.format.SampleRate, OutputRate, t.streamer),
			Paused:   true,
		}
	}
	return nil
}

// enqueueLocked hands the control to the speaker unless it is already there.
func (t *FileTrack) enqueueLocked() {
	ctrl := t.ctrl
	if t.active.Load() == ctrl {
		return
	}
	t.active.Store(ctrl)
	speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
		// Runs on the speaker goroutine; must not take t.mu.
		t.active.CompareAndSwap(ctrl, nil)
	})))
}

func (t *FileTrack) pauseLocked() {
	if t.ctrl != nil {
		speaker.Lock()
		t.ctrl.Paused = true
		speaker.Unlock()
	}
	t.playing = false
}

func (t *FileTrack) stopLocked() {
	t.pauseLocked()
	if t.ctrl != nil {
		speaker.Lock()
		// A nil streamer ends the sequence and fires the drain callback.
		t.ctrl.Streamer = nil
		t.ctrl.Paused = false
		speaker.Unlock()
		t.ctrl = nil
	}
	t.active.Store(nil)
}

var _ track.Handle = (*FileTrack)(nil)
