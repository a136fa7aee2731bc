// Package library imports catalog tracks from configured sources into the playback queue.
package library

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"github.com/osa030/segue/internal/domain/track"
)

// Source is the interface for catalog track sources.
type Source interface {
	// Tracks lists the source's tracks in import order.
	Tracks(ctx context.Context) ([]track.Track, error)

	// Name returns the source name (used in logs).
	Name() string
}

// SpotifyClient defines the Spotify operations needed by the spotify source.
type SpotifyClient interface {
	GetPlaylistTracks(ctx context.Context, playlistURL string) ([]track.Track, error)
	GetTrack(ctx context.Context, trackURL string) (*track.Track, error)
	CheckPlaylistExists(ctx context.Context, playlistURL string) error
}

// SuffixFilter accepts file paths whose extension is in a configured set.
type SuffixFilter struct {
	suffixes []string
}

// NewSuffixFilter creates a filter. Suffixes are compared case-insensitively and must include the dot.
func NewSuffixFilter(suffixes []string) SuffixFilter {
	return SuffixFilter{
		suffixes: lo.Map(suffixes, func(s string, _ int) string {
			return strings.ToLower(s)
		}),
	}
}

// Matches reports whether path has a valid suffix.
func (f SuffixFilter) Matches(path string) bool {
	return lo.Contains(f.suffixes, strings.ToLower(filepath.Ext(path)))
}

// Suffixes returns the normalized suffixes.
func (f SuffixFilter) Suffixes() []string {
	return f.suffixes
}
