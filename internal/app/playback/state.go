// Package playback provides the tick-driven transition engine and the playback controller.
package playback

// State represents the playback state.
type State int

const (
	StateIdle     State = iota // No current track
	StatePlaying               // Current track advancing, no fade pending
	StatePaused                // Current track held, resources kept
	StateFadingIn              // Current and fading-in tracks both active
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateFadingIn:
		return "fading_in"
	default:
		return "unknown"
	}
}

// Transition is the state edge taken by a single tick.
type Transition int

const (
	TransitionIdle          Transition = iota // No current track; nothing to do
	TransitionContinued                       // Still playing, not near the end
	TransitionRepeated                        // Loop-single rewind to the start
	TransitionFadeStarted                     // Next track started to overlap the tail
	TransitionFadeWaiting                     // Inside the fade window, nothing to change yet
	TransitionFadeCompleted                   // Fading-in track promoted to current
	TransitionAdvanced                        // Plain end-of-track advance
	TransitionFinished                        // End of track with no next track
	TransitionFailed                          // Track handle failure; current cleared
)

// String returns the string representation of the transition.
func (t Transition) String() string {
	switch t {
	case TransitionIdle:
		return "idle"
	case TransitionContinued:
		return "continued"
	case TransitionRepeated:
		return "repeated"
	case TransitionFadeStarted:
		return "fade_started"
	case TransitionFadeWaiting:
		return "fade_waiting"
	case TransitionFadeCompleted:
		return "fade_completed"
	case TransitionAdvanced:
		return "advanced"
	case TransitionFinished:
		return "finished"
	case TransitionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ChangesTrack reports whether the transition designates a new (or restarted) current track.
func (t Transition) ChangesTrack() bool {
	return t == TransitionRepeated || t == TransitionFadeCompleted || t == TransitionAdvanced
}
