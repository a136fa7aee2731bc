package playback

import "github.com/osa030/segue/internal/domain/playlist"

// EventType represents a playback event type.
type EventType int

const (
	EventTrackAdded       EventType = iota // A single track was added
	EventTracksAdded                       // A batch of tracks was added
	EventTrackChanged                      // Current track changed (or restarted)
	EventPaused                            // Playback paused
	EventPlaying                           // Playback started or resumed
	EventStopped                           // Playback stopped
	EventQueueModeChanged                  // Queue mode switched
	EventTicked                            // A tick completed
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackAdded:
		return "track_added"
	case EventTracksAdded:
		return "tracks_added"
	case EventTrackChanged:
		return "track_changed"
	case EventPaused:
		return "paused"
	case EventPlaying:
		return "playing"
	case EventStopped:
		return "stopped"
	case EventQueueModeChanged:
		return "queue_mode_changed"
	case EventTicked:
		return "ticked"
	default:
		return "unknown"
	}
}

// Event represents a playback event.
type Event struct {
	Type       EventType
	TrackID    string        // Affected track (empty for QueueModeChanged and Ticked)
	StartIndex int           // First index of a TracksAdded batch
	TrackIDs   []string      // Identities of a TracksAdded batch
	Mode       playlist.Mode // Mode after QueueModeChanged
	State      State         // Playback state after the event
	Position   int           // Queue position after the event
}

// Sink receives playback events. Publish must not block.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

// Publish calls f(e).
func (f SinkFunc) Publish(e Event) {
	f(e)
}

// MultiSink publishes to every sink in order.
type MultiSink []Sink

// Publish forwards e to all sinks.
func (m MultiSink) Publish(e Event) {
	for _, s := range m {
		s.Publish(e)
	}
}

type noopSink struct{}

func (noopSink) Publish(Event) {}

// ChannelSink delivers events on a buffered channel, dropping them when the buffer is full.
type ChannelSink struct {
	ch chan Event
}

// NewChannelSink creates a channel sink with the given buffer size.
func NewChannelSink(size int) *ChannelSink {
	return &ChannelSink{ch: make(chan Event, size)}
}

// Publish sends the event without blocking.
func (s *ChannelSink) Publish(e Event) {
	select {
	case s.ch <- e:
	default:
		// Channel full, drop event
	}
}

// Events returns the event channel.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}
