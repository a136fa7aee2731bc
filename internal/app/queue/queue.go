// Package queue provides the ordered track list and next/previous resolution.
package queue

import (
	"math/rand/v2"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/osa030/segue/internal/domain/playlist"
	"github.com/osa030/segue/internal/domain/track"
)

// Errors
var (
	ErrDuplicateID = errors.New("duplicate track id")
)

// NoPosition is the cursor value when no entry is selected.
const NoPosition = -1

// maxHistorySize bounds the visit history used by Previous in random mode.
const maxHistorySize = 100

// Config holds queue configuration.
type Config struct {
	Mode      playlist.Mode
	EndPolicy playlist.EndPolicy
	Seed      uint64 // Random mode seed; 0 picks a random seed
}

// Queue is an ordered list of track handles with a cursor.
// It is not safe for concurrent use; the playback controller serializes access.
type Queue struct {
	entries   []track.Handle
	position  int
	mode      playlist.Mode
	endPolicy playlist.EndPolicy

	rng      *rand.Rand
	bag      []int // Random mode: indices not yet visited in this cycle
	history  []int // Visited positions, most recent last
	upcoming int   // Cached Next pick, NoPosition when unresolved
}

// New creates an empty queue.
func New(cfg Config) *Queue {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	q := &Queue{
		entries:   make([]track.Handle, 0),
		position:  NoPosition,
		mode:      cfg.Mode,
		endPolicy: cfg.EndPolicy,
		rng:       rand.New(rand.NewPCG(seed, seed>>1|1)),
		upcoming:  NoPosition,
	}
	q.rebuildBag()
	return q
}

// Add appends a track. It fails with ErrDuplicateID if the identity exists.
func (q *Queue) Add(h track.Handle) error {
	if q.IndexOf(h.ID()) >= 0 {
		return errors.Wrapf(ErrDuplicateID, "track %s", h.ID())
	}
	q.entries = append(q.entries, h)
	q.bag = append(q.bag, len(q.entries)-1)
	// A new entry can change what follows the cursor.
	q.upcoming = NoPosition
	return nil
}

// Len returns the number of entries.
func (q *Queue) Len() int {
	return len(q.entries)
}

// Position returns the cursor, or NoPosition.
func (q *Queue) Position() int {
	return q.position
}

// Mode returns the playback order mode.
func (q *Queue) Mode() playlist.Mode {
	return q.mode
}

// EndPolicy returns the end-of-queue policy.
func (q *Queue) EndPolicy() playlist.EndPolicy {
	return q.endPolicy
}

// SetMode switches the playback order. The cached pick and the shuffle bag are reset.
func (q *Queue) SetMode(m playlist.Mode) {
	q.mode = m
	q.upcoming = NoPosition
	q.rebuildBag()
}

// SetEndPolicy switches the end-of-queue policy.
func (q *Queue) SetEndPolicy(p playlist.EndPolicy) {
	q.endPolicy = p
	q.upcoming = NoPosition
}

// At returns the entry at index i.
func (q *Queue) At(i int) (track.Handle, bool) {
	if i < 0 || i >= len(q.entries) {
		return nil, false
	}
	return q.entries[i], true
}

// Current returns the entry under the cursor.
func (q *Queue) Current() (track.Handle, bool) {
	return q.At(q.position)
}

// IndexOf returns the index of the given identity, or NoPosition.
func (q *Queue) IndexOf(id string) int {
	_, idx, ok := lo.FindIndexOf(q.entries, func(h track.Handle) bool {
		return h.ID() == id
	})
	if !ok {
		return NoPosition
	}
	return idx
}

// IDs returns all identities in insertion order.
func (q *Queue) IDs() []string {
	return lo.Map(q.entries, func(h track.Handle, _ int) string {
		return h.ID()
	})
}

// Next resolves the track that follows the cursor without moving it.
// Repeated calls return the same pick until the cursor moves or an entry is added.
func (q *Queue) Next() (track.Handle, bool) {
	if len(q.entries) == 0 {
		return nil, false
	}
	if q.upcoming >= 0 && q.upcoming < len(q.entries) {
		return q.entries[q.upcoming], true
	}

	idx := q.resolveNext()
	if idx < 0 {
		return nil, false
	}
	q.upcoming = idx
	return q.entries[idx], true
}

// Previous resolves the track that precedes the cursor without moving it.
func (q *Queue) Previous() (track.Handle, bool) {
	return q.At(q.resolvePrevious())
}

// Advance moves the cursor onto h, which is normally the result of Next.
func (q *Queue) Advance(h track.Handle) bool {
	return q.MoveTo(q.IndexOf(h.ID()))
}

// Rewind moves the cursor onto the result of Previous.
func (q *Queue) Rewind() (track.Handle, bool) {
	idx := q.resolvePrevious()
	if idx < 0 {
		return nil, false
	}

	if q.mode == playlist.ModeRandom && len(q.history) > 0 {
		q.history = q.history[:len(q.history)-1]
		if q.position >= 0 && !lo.Contains(q.bag, q.position) {
			q.bag = append(q.bag, q.position)
		}
	}
	q.bag = lo.Without(q.bag, idx)
	q.position = idx
	q.upcoming = NoPosition
	return q.entries[idx], true
}

// MoveTo places the cursor on index i and records the previous position.
func (q *Queue) MoveTo(i int) bool {
	if i < 0 || i >= len(q.entries) {
		return false
	}
	if q.position >= 0 && q.position != i {
		q.history = append(q.history, q.position)
		if len(q.history) > maxHistorySize {
			q.history = q.history[len(q.history)-maxHistorySize:]
		}
	}
	q.bag = lo.Without(q.bag, i)
	q.position = i
	q.upcoming = NoPosition
	return true
}

// resolveNext returns the index Next should yield, or NoPosition.
func (q *Queue) resolveNext() int {
	switch q.mode {
	case playlist.ModeLoopSingle:
		if q.position < 0 {
			return 0
		}
		return q.position

	case playlist.ModeRandom:
		return q.draw()

	default:
		next := q.position + 1
		if next < len(q.entries) {
			return next
		}
		if q.endPolicy == playlist.EndPolicyWrap {
			return 0
		}
		return NoPosition
	}
}

// resolvePrevious returns the index Previous should yield, or NoPosition.
func (q *Queue) resolvePrevious() int {
	if len(q.entries) == 0 || q.position < 0 {
		return NoPosition
	}

	switch q.mode {
	case playlist.ModeLoopSingle:
		return q.position

	case playlist.ModeRandom:
		for i := len(q.history) - 1; i >= 0; i-- {
			if q.history[i] < len(q.entries) {
				return q.history[i]
			}
		}
		return NoPosition

	default:
		prev := q.position - 1
		if prev >= 0 {
			return prev
		}
		if q.endPolicy == playlist.EndPolicyWrap {
			return len(q.entries) - 1
		}
		return NoPosition
	}
}

// draw picks an unvisited index from the shuffle bag.
// An exhausted bag is refilled only under the wrap policy.
func (q *Queue) draw() int {
	if len(q.bag) == 0 {
		if q.endPolicy != playlist.EndPolicyWrap {
			return NoPosition
		}
		q.rebuildBag()
		if len(q.bag) == 0 {
			// Single entry: the only candidate is the current one.
			return q.position
		}
	}
	return q.bag[q.rng.IntN(len(q.bag))]
}

// rebuildBag refills the shuffle bag with every index except the cursor.
func (q *Queue) rebuildBag() {
	q.bag = make([]int, 0, len(q.entries))
	for i := range q.entries {
		if i != q.position {
			q.bag = append(q.bag, i)
		}
	}
}
