// Package filter decides which imported tracks make it into the queue.
package filter

import (
	"context"
	"fmt"
	"sort"

	"github.com/osa030/segue/internal/domain/track"
)

// Result is the verdict of a single filter.
type Result struct {
	Accepted bool
	Code     string // machine readable, one of the filter's ReturnCodes
	Detail   string // human readable, for logs
}

func (r Result) String() string {
	if r.Accepted {
		return "accepted"
	}
	if r.Detail == "" {
		return r.Code
	}
	return r.Code + ": " + r.Detail
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Code: code}
}

// Rejectf returns a rejected result with a formatted detail.
func Rejectf(code, format string, args ...any) Result {
	return Result{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// Filter inspects a track before it is queued.
type Filter interface {
	// Name is the key under library.filters.
	Name() string
	Description() string
	// ReturnCodes lists every Code the filter may reject with.
	ReturnCodes() []string
	// ValidateConfig decodes and stores settings. It is called once before Check.
	ValidateConfig(settings map[string]any) error
	// Check judges t. queued holds the tracks already in the queue followed by
	// the ones accepted earlier in the same import.
	Check(ctx context.Context, t track.Track, queued []track.Track) Result
}

// Factory builds an unconfigured filter.
type Factory func() Filter

var registry = make(map[string]Factory)

// Register makes a filter available to configs. It panics on a duplicate name.
func Register(name string, factory Factory) {
	if _, dup := registry[name]; dup {
		panic("filter: Register called twice for " + name)
	}
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]Factory {
	return registry
}

// Names returns the registered filter names in order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
