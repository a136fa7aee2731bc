package playback

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/segue/internal/app/queue"
	"github.com/osa030/segue/internal/domain/playlist"
	"github.com/osa030/segue/internal/domain/track"
)

// Errors
var (
	ErrNotFound        = errors.New("track not found")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrTrackFailed     = errors.New("track playback failed")
)

// Config holds controller configuration.
type Config struct {
	TickInterval time.Duration      // Period of the tick scheduler
	FadeWindow   time.Duration      // Time before a track's end at which the next one starts; 0 disables
	Mode         playlist.Mode      // Initial queue mode
	EndPolicy    playlist.EndPolicy // What Sequential/Random do after the last entry
	Seed         uint64             // Random mode seed; 0 picks one
}

// Option configures a Controller.
type Option func(*Controller)

// WithSink sets the event sink.
func WithSink(s Sink) Option {
	return func(c *Controller) {
		c.sink = s
	}
}

// WithScheduler replaces the default ticker.
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) {
		c.scheduler = s
	}
}

// WithFailureHandler sets a callback for track handle failures.
func WithFailureHandler(fn func(error)) Option {
	return func(c *Controller) {
		c.onFailure = fn
	}
}

// Status is a snapshot of the controller state.
type Status struct {
	State        State
	Mode         playlist.Mode
	EndPolicy    playlist.EndPolicy
	Position     int
	QueueLength  int
	CurrentID    string
	FadingID     string
	Remaining    time.Duration
	FadeWindow   time.Duration
	TickInterval time.Duration
	Ticking      bool
	TrackIDs     []string
}

// Controller serializes playback commands and ticks over a queue and an engine.
type Controller struct {
	mu sync.Mutex

	queue     *queue.Queue
	engine    *Engine
	sink      Sink
	scheduler Scheduler
	onFailure func(error)

	config Config
}

// NewController creates a new playback controller with an empty queue.
func NewController(config Config, opts ...Option) *Controller {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultTickInterval
	}

	q := queue.New(queue.Config{
		Mode:      config.Mode,
		EndPolicy: config.EndPolicy,
		Seed:      config.Seed,
	})
	c := &Controller{
		queue:  q,
		engine: NewEngine(q, config.FadeWindow),
		sink:   noopSink{},
		config: config,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.scheduler == nil {
		c.scheduler = NewTicker(config.TickInterval, func() { c.Tick() })
	}
	return c
}

// Add appends a track to the queue.
func (c *Controller) Add(h track.Handle) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.queue.Add(h); err != nil {
		return err
	}
	c.publishLocked(Event{Type: EventTrackAdded, TrackID: h.ID()})
	return nil
}

// AddBatch appends tracks, skipping identities already queued.
// It returns the index of the first added track and the added identities.
func (c *Controller) AddBatch(hs []track.Handle) (int, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := c.queue.Len()
	ids := make([]string, 0, len(hs))
	for _, h := range hs {
		if err := c.queue.Add(h); err != nil {
			zlog.Debug().Msgf("playback: skipping track: %v", err)
			continue
		}
		ids = append(ids, h.ID())
	}

	if len(ids) > 0 {
		c.publishLocked(Event{Type: EventTracksAdded, StartIndex: start, TrackIDs: ids})
	}
	return start, ids
}

// Play starts playback from the cursor (or the first entry), or resumes the current track.
// An empty queue is a no-op.
func (c *Controller) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur := c.engine.Current(); cur != nil {
		resumed, err := c.engine.Resume()
		if err != nil {
			return c.failLocked(cur, err)
		}
		if resumed {
			c.publishLocked(Event{Type: EventPlaying, TrackID: cur.ID()})
		}
		c.scheduler.Start()
		return nil
	}

	idx := c.queue.Position()
	if idx < 0 {
		idx = 0
	}
	h, ok := c.queue.At(idx)
	if !ok {
		zlog.Debug().Msg("playback: play requested on an empty queue")
		return nil
	}
	c.queue.MoveTo(idx)

	if err := c.engine.Start(h); err != nil {
		return c.failLocked(h, err)
	}
	c.publishLocked(Event{Type: EventPlaying, TrackID: h.ID()})
	c.scheduler.Start()
	c.publishLocked(Event{Type: EventTrackChanged, TrackID: h.ID()})
	return nil
}

// PlayFirst restarts playback from the first entry. It returns nil on an empty queue.
func (c *Controller) PlayFirst() (track.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.playFirstLocked()
}

// PlayIndex plays the entry at index i.
func (c *Controller) PlayIndex(i int) (track.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i < 0 || i >= c.queue.Len() {
		return nil, errors.Wrapf(ErrIndexOutOfRange, "index %d (queue has %d entries)", i, c.queue.Len())
	}
	return c.playAtLocked(i)
}

// PlayID plays the entry with the given identity.
func (c *Controller) PlayID(id string) (track.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.queue.IndexOf(id)
	if idx < 0 {
		return nil, errors.Wrapf(ErrNotFound, "track %s", id)
	}
	return c.playAtLocked(idx)
}

// Next resolves the following track and announces it without starting playback.
func (c *Controller) Next() (track.Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.queue.Next()
	if ok {
		c.publishLocked(Event{Type: EventTrackChanged, TrackID: h.ID()})
	}
	return h, ok
}

// Previous resolves the preceding track and announces it without starting playback.
func (c *Controller) Previous() (track.Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.queue.Previous()
	if ok {
		c.publishLocked(Event{Type: EventTrackChanged, TrackID: h.ID()})
	}
	return h, ok
}

// Skip moves to the following track and plays it. It returns nil when there is none.
func (c *Controller) Skip() (track.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.queue.Next()
	if !ok {
		return nil, nil
	}
	return c.playAtLocked(c.queue.IndexOf(h.ID()))
}

// Back moves to the preceding track and plays it. It returns nil when there is none.
func (c *Controller) Back() (track.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.queue.Rewind()
	if !ok {
		return nil, nil
	}
	return c.startLocked(h)
}

// Stop stops and releases the current track and halts the scheduler.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur := c.engine.Clear(); cur != nil {
		c.publishLocked(Event{Type: EventStopped, TrackID: cur.ID()})
	}
	c.scheduler.Stop()
}

// Pause pauses the current track, keeping its resources, and halts the scheduler.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur := c.engine.Current(); cur != nil {
		c.engine.Pause()
		c.publishLocked(Event{Type: EventPaused, TrackID: cur.ID()})
	}
	c.scheduler.Stop()
}

// SetMode switches the queue mode. A fade in flight is cancelled.
// With restartAndPlay the first entry is played from the start.
func (c *Controller) SetMode(mode playlist.Mode, restartAndPlay bool) (track.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f := c.engine.CancelFade(); f != nil {
		zlog.Debug().Msgf("playback: cancelled fade of track=%s on mode change", f.ID())
	}
	c.queue.SetMode(mode)
	c.publishLocked(Event{Type: EventQueueModeChanged, Mode: mode})
	zlog.Info().Msgf("playback: queue mode changed: mode=%s", mode)

	if !restartAndPlay {
		return nil, nil
	}
	return c.playFirstLocked()
}

// Tick runs one engine step and publishes its outcome followed by Ticked.
// It is the scheduler callback.
func (c *Controller) Tick() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := c.engine.Tick()
	switch out.Transition {
	case TransitionIdle:
		zlog.Debug().Msg("playback: tick with no current track, halting scheduler")
		c.scheduler.Stop()

	case TransitionFailed:
		zlog.Error().Msgf("playback: track failed: %v", out.Err)
		c.publishLocked(Event{Type: EventStopped, TrackID: out.Track.ID()})
		c.scheduler.Stop()
		c.reportLocked(errors.Mark(out.Err, ErrTrackFailed))

	case TransitionFinished:
		zlog.Info().Msgf("playback: playlist finished after track=%s", out.Ended.ID())

	default:
		if out.Transition.ChangesTrack() {
			c.publishLocked(Event{Type: EventTrackChanged, TrackID: out.Track.ID()})
		}
		if out.Err != nil {
			zlog.Warn().Msgf("playback: %v", out.Err)
			c.reportLocked(errors.Mark(out.Err, ErrTrackFailed))
		}
	}

	c.publishLocked(Event{Type: EventTicked})
	return out
}

// Status returns a snapshot of the controller state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		State:        c.engine.State(),
		Mode:         c.queue.Mode(),
		EndPolicy:    c.queue.EndPolicy(),
		Position:     c.queue.Position(),
		QueueLength:  c.queue.Len(),
		FadeWindow:   c.engine.FadeWindow(),
		TickInterval: c.config.TickInterval,
		Ticking:      c.scheduler.Running(),
		TrackIDs:     c.queue.IDs(),
	}
	if cur := c.engine.Current(); cur != nil {
		s.CurrentID = cur.ID()
		s.Remaining = cur.RemainingTime()
	}
	if f := c.engine.Fading(); f != nil {
		s.FadingID = f.ID()
	}
	return s
}

// Tracks returns the catalog metadata of every queued track in order.
func (c *Controller) Tracks() []track.Track {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]track.Handle, 0, c.queue.Len())
	for i := 0; i < c.queue.Len(); i++ {
		h, _ := c.queue.At(i)
		entries = append(entries, h)
	}
	return lo.Map(entries, func(h track.Handle, _ int) track.Track {
		return h.Track()
	})
}

// Current returns the current track.
func (c *Controller) Current() (track.Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.engine.Current()
	return cur, cur != nil
}

// Close stops playback, releases every owned handle and waits for the scheduler to exit.
func (c *Controller) Close() {
	c.mu.Lock()
	c.engine.Clear()
	c.scheduler.Stop()
	c.mu.Unlock()

	// Wait outside the lock: an in-flight tick may be waiting for it.
	if w, ok := c.scheduler.(interface{ Wait() }); ok {
		w.Wait()
	}
}

func (c *Controller) playFirstLocked() (track.Handle, error) {
	if c.queue.Len() == 0 {
		return nil, nil
	}
	return c.playAtLocked(0)
}

// playAtLocked moves the cursor to i and starts that entry.
// Must be called with lock held and i in range.
func (c *Controller) playAtLocked(i int) (track.Handle, error) {
	c.queue.MoveTo(i)
	h, _ := c.queue.At(i)
	return c.startLocked(h)
}

// startLocked replaces the current track with h and announces it.
// Must be called with lock held.
func (c *Controller) startLocked(h track.Handle) (track.Handle, error) {
	if err := c.engine.Start(h); err != nil {
		return nil, c.failLocked(h, err)
	}
	c.publishLocked(Event{Type: EventTrackChanged, TrackID: h.ID()})
	c.publishLocked(Event{Type: EventPlaying, TrackID: h.ID()})
	c.scheduler.Start()
	return h, nil
}

// failLocked converts a handle failure into a stopped state.
// Must be called with lock held.
func (c *Controller) failLocked(h track.Handle, err error) error {
	c.engine.Clear()
	c.publishLocked(Event{Type: EventStopped, TrackID: h.ID()})
	c.scheduler.Stop()

	err = errors.Mark(err, ErrTrackFailed)
	c.reportLocked(err)
	return err
}

func (c *Controller) reportLocked(err error) {
	if c.onFailure != nil {
		c.onFailure(err)
	}
}

// publishLocked stamps the event with the current state and publishes it.
// Must be called with lock held.
func (c *Controller) publishLocked(e Event) {
	e.State = c.engine.State()
	e.Position = c.queue.Position()
	c.sink.Publish(e)
}
