package playback

import (
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/segue/internal/app/queue"
	"github.com/osa030/segue/internal/domain/playlist"
	"github.com/osa030/segue/internal/domain/track"
)

// Outcome describes what a single tick did.
type Outcome struct {
	Transition Transition
	Track      track.Handle // Current track after the tick, or the track that failed
	Ended      track.Handle // Track that was stopped and released, if any
	Err        error
}

// Engine is the tick state machine. It exclusively owns the current and
// fading-in handles and releases them before dropping either reference.
// It is not safe for concurrent use.
type Engine struct {
	queue      *queue.Queue
	fadeWindow time.Duration

	current track.Handle
	fading  track.Handle

	// Identity of a fade-in candidate that failed to start; not retried until the cursor moves.
	failedFade string
}

// NewEngine creates an idle engine over q. A zero fadeWindow disables fading.
func NewEngine(q *queue.Queue, fadeWindow time.Duration) *Engine {
	if fadeWindow < 0 {
		fadeWindow = 0
	}
	return &Engine{
		queue:      q,
		fadeWindow: fadeWindow,
	}
}

// Current returns the current track, or nil.
func (e *Engine) Current() track.Handle {
	return e.current
}

// Fading returns the fading-in track, or nil.
func (e *Engine) Fading() track.Handle {
	return e.fading
}

// FadeWindow returns the configured fade window.
func (e *Engine) FadeWindow() time.Duration {
	return e.fadeWindow
}

// State derives the playback state from the owned handles.
func (e *Engine) State() State {
	switch {
	case e.current == nil:
		return StateIdle
	case e.fading != nil:
		return StateFadingIn
	case e.current.IsPlaying():
		return StatePlaying
	default:
		return StatePaused
	}
}

// Tick inspects the current track and takes at most one transition.
// Priority: repeat, then fade, then end-of-track.
func (e *Engine) Tick() Outcome {
	cur := e.current
	if cur == nil {
		return Outcome{Transition: TransitionIdle}
	}

	remainingData := cur.RemainingData()
	remainingTime := cur.RemainingTime()
	mode := e.queue.Mode()

	if mode == playlist.ModeLoopSingle && remainingData <= 0 {
		zlog.Debug().Msgf("playback: repeating track=%s", cur.ID())
		if err := cur.Seek(0); err != nil {
			return e.fail(cur, errors.Wrapf(err, "rewind %s", cur.ID()))
		}
		return Outcome{Transition: TransitionRepeated, Track: cur}
	}

	if e.fadeWindow > 0 && remainingTime <= e.fadeWindow && mode != playlist.ModeLoopSingle {
		if e.fading != nil {
			if remainingData <= 0 {
				return e.promote()
			}
			return Outcome{Transition: TransitionFadeWaiting, Track: cur}
		}

		if next, ok := e.queue.Next(); ok && next.ID() != cur.ID() && next.ID() != e.failedFade {
			if err := next.Play(); err != nil {
				e.releaseHandle(next)
				e.failedFade = next.ID()
				return Outcome{
					Transition: TransitionContinued,
					Track:      cur,
					Err:        errors.Wrapf(err, "fade in %s", next.ID()),
				}
			}
			zlog.Debug().Msgf("playback: fading in track=%s remaining=%v", next.ID(), remainingTime)
			e.fading = next
			return Outcome{Transition: TransitionFadeStarted, Track: cur}
		}

		if remainingData > 0 {
			return Outcome{Transition: TransitionFadeWaiting, Track: cur}
		}
		// Nothing to fade into and the track is exhausted: end-of-track below.
	}

	if remainingData <= 0 {
		if e.fading != nil {
			return e.promote()
		}
		return e.advance()
	}

	return Outcome{Transition: TransitionContinued, Track: cur}
}

// Start makes h the current track from the beginning, releasing whatever it replaces.
// On failure h is released and the engine is left idle.
func (e *Engine) Start(h track.Handle) error {
	fading := e.CancelFade()
	prev := e.Clear()
	e.failedFade = ""

	if err := h.Play(); err != nil {
		// A handle dropped just above is already released.
		if !sameHandle(h, prev) && !sameHandle(h, fading) {
			e.releaseHandle(h)
		}
		return errors.Wrapf(err, "play %s", h.ID())
	}
	e.current = h
	return nil
}

// Resume restarts paused handles. It reports whether the current track was
// not playing before the call.
func (e *Engine) Resume() (bool, error) {
	if e.current == nil {
		return false, nil
	}

	resumed := false
	if !e.current.IsPlaying() {
		if err := e.current.Play(); err != nil {
			return false, errors.Wrapf(err, "resume %s", e.current.ID())
		}
		resumed = true
	}
	if e.fading != nil && !e.fading.IsPlaying() {
		if err := e.fading.Play(); err != nil {
			zlog.Warn().Msgf("playback: failed to resume fading track=%s: %v", e.fading.ID(), err)
			e.CancelFade()
		}
	}
	return resumed, nil
}

// Pause pauses the current and fading-in handles without releasing them.
func (e *Engine) Pause() {
	for _, h := range []track.Handle{e.current, e.fading} {
		if h == nil {
			continue
		}
		if err := h.Pause(); err != nil {
			zlog.Warn().Msgf("playback: failed to pause track=%s: %v", h.ID(), err)
		}
	}
}

// CancelFade stops and releases the fading-in track, if any.
func (e *Engine) CancelFade() track.Handle {
	f := e.fading
	if f == nil {
		return nil
	}
	e.fading = nil
	e.stopAndRelease(f)
	return f
}

// Clear stops and releases every owned handle. It returns the former current track.
func (e *Engine) Clear() track.Handle {
	e.CancelFade()

	cur := e.current
	if cur != nil {
		e.current = nil
		e.stopAndRelease(cur)
	}
	return cur
}

// promote finishes a crossfade: the fading track becomes current.
func (e *Engine) promote() Outcome {
	ended := e.current
	e.stopAndRelease(ended)

	e.current = e.fading
	e.fading = nil
	e.failedFade = ""
	e.queue.Advance(e.current)

	zlog.Debug().Msgf("playback: fade completed, current=%s position=%d", e.current.ID(), e.queue.Position())
	return Outcome{Transition: TransitionFadeCompleted, Track: e.current, Ended: ended}
}

// advance handles a plain end of track.
func (e *Engine) advance() Outcome {
	ended := e.current
	e.current = nil
	e.stopAndRelease(ended)
	e.failedFade = ""

	next, ok := e.queue.Next()
	if !ok {
		zlog.Debug().Msgf("playback: track=%s finished, no next track", ended.ID())
		return Outcome{Transition: TransitionFinished, Ended: ended}
	}

	e.queue.Advance(next)
	if err := next.Play(); err != nil {
		if !sameHandle(next, ended) {
			e.releaseHandle(next)
		}
		return Outcome{
			Transition: TransitionFailed,
			Track:      next,
			Ended:      ended,
			Err:        errors.Wrapf(err, "play %s", next.ID()),
		}
	}
	e.current = next

	zlog.Debug().Msgf("playback: advanced to track=%s position=%d", next.ID(), e.queue.Position())
	return Outcome{Transition: TransitionAdvanced, Track: next, Ended: ended}
}

// fail converts a handle failure on the current track into a cleared engine.
func (e *Engine) fail(h track.Handle, err error) Outcome {
	e.Clear()
	return Outcome{Transition: TransitionFailed, Track: h, Ended: h, Err: err}
}

func (e *Engine) stopAndRelease(h track.Handle) {
	if err := h.Stop(); err != nil {
		zlog.Warn().Msgf("playback: failed to stop track=%s: %v", h.ID(), err)
	}
	e.releaseHandle(h)
}

func (e *Engine) releaseHandle(h track.Handle) {
	if err := h.Release(); err != nil {
		zlog.Warn().Msgf("playback: failed to release track=%s: %v", h.ID(), err)
	}
}

func sameHandle(a, b track.Handle) bool {
	return a != nil && b != nil && a.ID() == b.ID()
}
