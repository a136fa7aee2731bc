// Package spotify provides a read-only Spotify catalog client for importing playlists.
package spotify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/segue/internal/domain/track"
)

// pageLimit is the Spotify API maximum per playlist page.
const pageLimit = 100

// Client is a Spotify API client.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Market       string
}

// Scopes are the OAuth scopes the client needs.
var Scopes = []string{
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
}

// New creates a new Spotify client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, errors.New("spotify credentials are required")
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithScopes(Scopes...),
	)

	// Token with only a refresh token; the transport refreshes on first use.
	token := &oauth2.Token{
		RefreshToken: cfg.RefreshToken,
	}

	market := cfg.Market
	if market == "" {
		market = "JP"
	}

	return &Client{
		client:     spotify.New(auth.Client(ctx, token)),
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// GetTrack retrieves track information by ID, URL, or URI.
func (c *Client) GetTrack(ctx context.Context, trackID string) (*track.Track, error) {
	id := extractTrackID(trackID)

	var result *spotify.FullTrack
	err := c.retry(ctx, func() error {
		t, err := c.client.GetTrack(ctx, spotify.ID(id), spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get track %s", id)
	}

	t := convertTrack(result)
	return &t, nil
}

// GetPlaylistTracks retrieves all playable tracks from a playlist in playlist order.
func (c *Client) GetPlaylistTracks(ctx context.Context, playlistURL string) ([]track.Track, error) {
	playlistID := extractPlaylistID(playlistURL)
	if playlistID == "" {
		return nil, errors.New("invalid playlist URL")
	}

	var tracks []track.Track
	offset := 0

	for {
		var page *spotify.PlaylistItemPage
		err := c.retry(ctx, func() error {
			p, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
				spotify.Limit(pageLimit),
				spotify.Offset(offset),
				spotify.Market(c.market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get playlist items")
		}

		for _, item := range page.Items {
			// Only process tracks (exclude episodes)
			if item.Track.Track == nil || item.Track.Track.ID == "" {
				continue
			}
			if p := item.Track.Track.IsPlayable; p != nil && !*p {
				zlog.Debug().Msgf("spotify: skipping unplayable track id=%s", item.Track.Track.ID)
				continue
			}
			tracks = append(tracks, convertTrack(item.Track.Track))
		}

		if len(page.Items) < pageLimit {
			break
		}
		offset += pageLimit
	}

	return tracks, nil
}

// CheckPlaylistExists checks if a playlist exists without fetching all tracks.
func (c *Client) CheckPlaylistExists(ctx context.Context, playlistURL string) error {
	playlistID := extractPlaylistID(playlistURL)
	if playlistID == "" {
		return errors.New("invalid playlist URL")
	}

	err := c.retry(ctx, func() error {
		_, err := c.client.GetPlaylistItems(ctx, spotify.ID(playlistID),
			spotify.Limit(1),
			spotify.Offset(0),
			spotify.Market(c.market),
		)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "playlist does not exist or is not accessible")
	}

	return nil
}

// convertTrack converts a Spotify FullTrack to a catalog Track.
func convertTrack(t *spotify.FullTrack) track.Track {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	return track.Track{
		ID:       string(t.ID),
		Name:     t.Name,
		Artists:  artists,
		URL:      TrackURL(string(t.ID)),
		Duration: time.Duration(t.Duration) * time.Millisecond,
		Source:   track.SourceTypeSpotify,
	}
}

// TrackURL returns the Spotify URL for a track.
func TrackURL(trackID string) string {
	return fmt.Sprintf("https://open.spotify.com/track/%s", trackID)
}

// retry retries an operation with linear backoff until ctx is done.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			zlog.Debug().Msgf("spotify: retrying after error attempt=%d: %v", i+1, err)
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "retry aborted")
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var se spotify.Error
	if errors.As(err, &se) {
		return se.Status == 429 || se.Status >= 500
	}

	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// extractPlaylistID extracts the playlist ID from a Spotify playlist URL or URI.
func extractPlaylistID(input string) string {
	return extractID(input, "playlist")
}

// extractTrackID extracts the track ID from a Spotify track URL or URI.
func extractTrackID(input string) string {
	return extractID(input, "track")
}

// extractID handles spotify:<kind>:ID, open.spotify.com/[intl-XX/]<kind>/ID and bare IDs.
func extractID(input, kind string) string {
	input = strings.TrimSpace(input)

	if uri := "spotify:" + kind + ":"; strings.HasPrefix(input, uri) {
		return strings.TrimPrefix(input, uri)
	}

	sep := "/" + kind + "/"
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, sep) {
		parts := strings.Split(input, sep)
		// Remove query parameters and trailing slashes
		id := strings.Split(parts[len(parts)-1], "?")[0]
		return strings.TrimRight(id, "/")
	}

	return input
}
