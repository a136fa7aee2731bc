package library

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/segue/internal/app/filter"
	"github.com/osa030/segue/internal/domain/track"
)

// Opener turns a catalog track into a playable handle.
type Opener interface {
	Open(t track.Track) (track.Handle, error)
}

// Queue is the part of the playback controller the library feeds.
type Queue interface {
	Add(h track.Handle) error
	AddBatch(hs []track.Handle) (int, []string)
	Tracks() []track.Track
}

// TrackFilter decides whether an opened track may be queued.
type TrackFilter interface {
	Execute(ctx context.Context, t track.Track, queued []track.Track) filter.Result
}

// Result summarizes one import run.
type Result struct {
	Added   int // Tracks appended to the queue
	Skipped int // Tracks that could not be opened, were filtered out or were already queued
}

// Importer feeds every source into the queue in configuration order.
type Importer struct {
	sources []Source
	opener  Opener
	queue   Queue
	filter  TrackFilter
}

// NewImporter creates a new importer. filter may be nil.
func NewImporter(sources []Source, opener Opener, queue Queue, filter TrackFilter) *Importer {
	return &Importer{
		sources: sources,
		opener:  opener,
		queue:   queue,
		filter:  filter,
	}
}

// Import lists every source and appends its tracks as one batch per source.
// A failing source is logged and skipped; the error of the last failure is returned
// alongside the partial result.
func (i *Importer) Import(ctx context.Context) (Result, error) {
	var (
		result  Result
		lastErr error
	)

	for _, src := range i.sources {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		tracks, err := src.Tracks(ctx)
		if err != nil {
			zlog.Error().Msgf("library: source failed: name=%s: %v", src.Name(), err)
			lastErr = errors.Wrapf(err, "source %s", src.Name())
			continue
		}

		handles := i.accept(ctx, tracks)
		_, ids := i.queue.AddBatch(handles)

		result.Added += len(ids)
		result.Skipped += len(tracks) - len(ids)
		zlog.Info().Msgf("library: imported source=%s added=%d total=%d", src.Name(), len(ids), len(tracks))
	}

	return result, lastErr
}

// accept opens tracks and runs them through the filter, dropping the ones that
// cannot be opened or are rejected.
func (i *Importer) accept(ctx context.Context, tracks []track.Track) []track.Handle {
	var queued []track.Track
	if i.filter != nil {
		queued = i.queue.Tracks()
	}

	handles := make([]track.Handle, 0, len(tracks))
	for _, t := range tracks {
		h, err := i.opener.Open(t)
		if err != nil {
			zlog.Warn().Msgf("library: cannot open track=%s: %v", t.DisplayName(), err)
			continue
		}
		if i.filter != nil {
			meta := h.Track()
			if res := i.filter.Execute(ctx, meta, queued); !res.Accepted {
				zlog.Debug().Msgf("library: filtered track=%s result=%s", meta.DisplayName(), res)
				_ = h.Release()
				continue
			}
			queued = append(queued, meta)
		}
		handles = append(handles, h)
	}
	return handles
}
