package library

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/segue/internal/domain/track"
)

// SpotifySourceConfig is the settings block of a spotify source.
// At least one of PlaylistURL and TrackURLs must be set.
type SpotifySourceConfig struct {
	PlaylistURL string   `yaml:"playlist_url" mapstructure:"playlist_url" validate:"required_without=TrackURLs"`
	TrackURLs   []string `yaml:"track_urls" mapstructure:"track_urls" validate:"dive,required"`
}

// SpotifySource lists the tracks of a Spotify playlist followed by any
// individually configured tracks.
type SpotifySource struct {
	spotify SpotifyClient
	config  *SpotifySourceConfig
}

// NewSpotifySource creates a new SpotifySource from a settings map.
func NewSpotifySource(spotify SpotifyClient, settings map[string]any) (*SpotifySource, error) {
	if spotify == nil {
		return nil, errors.New("spotify client is not configured")
	}

	var config SpotifySourceConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("spotify source config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	return &SpotifySource{
		spotify: spotify,
		config:  &config,
	}, nil
}

// Name returns the source name.
func (s *SpotifySource) Name() string {
	if s.config.PlaylistURL == "" {
		return fmt.Sprintf("spotify:tracks(%d)", len(s.config.TrackURLs))
	}
	return "spotify:" + s.config.PlaylistURL
}

// Check verifies the playlist is reachable.
func (s *SpotifySource) Check(ctx context.Context) error {
	if s.config.PlaylistURL == "" {
		return nil
	}
	return s.spotify.CheckPlaylistExists(ctx, s.config.PlaylistURL)
}

// Tracks returns the playlist tracks in playlist order, then the configured tracks.
func (s *SpotifySource) Tracks(ctx context.Context) ([]track.Track, error) {
	var tracks []track.Track
	if s.config.PlaylistURL != "" {
		listed, err := s.spotify.GetPlaylistTracks(ctx, s.config.PlaylistURL)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to get tracks of %s", s.config.PlaylistURL)
		}
		tracks = listed
	}

	for _, url := range s.config.TrackURLs {
		t, err := s.spotify.GetTrack(ctx, url)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to get track %s", url)
		}
		tracks = append(tracks, *t)
	}
	return tracks, nil
}
