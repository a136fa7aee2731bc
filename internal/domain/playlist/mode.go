// Package playlist provides the playlist ordering vocabulary.
package playlist

import "github.com/cockroachdb/errors"

// Mode represents the playback order of a queue.
type Mode int

const (
	ModeSequential Mode = iota // Insertion order
	ModeRandom                 // Shuffle bag, no repeats within a cycle
	ModeLoopSingle             // Repeat the current track indefinitely
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeSequential:
		return "sequential"
	case ModeRandom:
		return "random"
	case ModeLoopSingle:
		return "loop_single"
	default:
		return "unknown"
	}
}

// ParseMode converts a string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "sequential", "":
		return ModeSequential, nil
	case "random", "shuffle":
		return ModeRandom, nil
	case "loop_single", "loop", "repeat":
		return ModeLoopSingle, nil
	default:
		return ModeSequential, errors.Newf("unknown playlist mode: %q", s)
	}
}

// EndPolicy decides what happens once every entry has been visited.
type EndPolicy int

const (
	EndPolicyStop EndPolicy = iota // No next track; playback finishes
	EndPolicyWrap                  // Start over from the beginning
)

// String returns the string representation of the policy.
func (p EndPolicy) String() string {
	switch p {
	case EndPolicyStop:
		return "stop"
	case EndPolicyWrap:
		return "wrap"
	default:
		return "unknown"
	}
}

// ParseEndPolicy converts a string to an EndPolicy.
func ParseEndPolicy(s string) (EndPolicy, error) {
	switch s {
	case "stop", "":
		return EndPolicyStop, nil
	case "wrap":
		return EndPolicyWrap, nil
	default:
		return EndPolicyStop, errors.Newf("unknown end policy: %q", s)
	}
}
