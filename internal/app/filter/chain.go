package filter

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/segue/internal/domain/track"
	"github.com/osa030/segue/internal/infra/config"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain(filters ...Filter) *Chain {
	return &Chain{
		filters: filters,
	}
}

// NewChainFromConfig builds a chain of the enabled filters in name order.
func NewChainFromConfig(filters map[string]config.FilterConfig) (*Chain, error) {
	names := make([]string, 0, len(filters))
	for name, fc := range filters {
		if fc.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	chain := NewChain()
	for _, name := range names {
		factory, ok := registry[name]
		if !ok {
			return nil, errors.Newf("unknown filter: %s", name)
		}
		f := factory()
		if err := f.ValidateConfig(filters[name].Settings); err != nil {
			return nil, errors.Wrapf(err, "filter %s", name)
		}
		chain.Add(f)
		zlog.Info().Msgf("filter: enabled name=%s", name)
	}
	return chain, nil
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the track.
func (c *Chain) Execute(ctx context.Context, t track.Track, queued []track.Track) Result {
	for _, f := range c.filters {
		result := f.Check(ctx, t, queued)
		if !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}
