package spotify

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify/v2"

	"github.com/osa030/segue/internal/domain/track"
)

func TestExtractPlaylistID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Spotify URI format",
			input:    "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M",
			expected: "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name:     "Spotify URL format",
			input:    "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M",
			expected: "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name:     "Spotify URL with query params",
			input:    "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M?si=abc123",
			expected: "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name:     "Plain playlist ID",
			input:    "37i9dQZF1DXcBWIGoYBM5M",
			expected: "37i9dQZF1DXcBWIGoYBM5M",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "HTTP URL (not HTTPS)",
			input:    "http://open.spotify.com/playlist/testID",
			expected: "testID",
		},
		{
			name:     "Localized URL",
			input:    "https://open.spotify.com/intl-ja/playlist/abc123/",
			expected: "abc123",
		},
		{
			name:     "URL with multiple query params",
			input:    "https://open.spotify.com/playlist/abc123?si=xyz&utm_source=copy",
			expected: "abc123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractPlaylistID(tt.input)
			assert.Equal(t, tt.expected, result,
				"extractPlaylistID(%s) should return %s", tt.input, tt.expected)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "rate limit error with 429",
			err:      errors.New("Error 429: rate limit exceeded"),
			expected: true,
		},
		{
			name:     "rate limit text",
			err:      errors.New("rate limit exceeded"),
			expected: true,
		},
		{
			name:     "server error 500",
			err:      errors.New("Error 500: internal server error"),
			expected: true,
		},
		{
			name:     "server error 502",
			err:      errors.New("502 Bad Gateway"),
			expected: true,
		},
		{
			name:     "server error 503",
			err:      errors.New("503 Service Unavailable"),
			expected: true,
		},
		{
			name:     "server error 504",
			err:      errors.New("504 Gateway Timeout"),
			expected: true,
		},
		{
			name:     "typed rate limit error",
			err:      errors.Wrap(spotify.Error{Message: "slow down", Status: 429}, "get playlist"),
			expected: true,
		},
		{
			name:     "typed not found error",
			err:      spotify.Error{Message: "missing", Status: 404},
			expected: false,
		},
		{
			name:     "client error 400",
			err:      errors.New("400 Bad Request"),
			expected: false,
		},
		{
			name:     "not found error",
			err:      errors.New("404 not found"),
			expected: false,
		},
		{
			name:     "generic error",
			err:      errors.New("something went wrong"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isRetryable(tt.err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestExtractTrackID(t *testing.T) {
	assert.Equal(t, "4uLU6hMCjMI75M1A2tKUQC", extractTrackID("spotify:track:4uLU6hMCjMI75M1A2tKUQC"))
	assert.Equal(t, "4uLU6hMCjMI75M1A2tKUQC", extractTrackID("https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=x"))
	assert.Equal(t, "spotify:playlist:abc", extractTrackID("spotify:playlist:abc"), "other kinds are left untouched")
}

func TestConvertTrack(t *testing.T) {
	ft := &spotify.FullTrack{
		SimpleTrack: spotify.SimpleTrack{
			ID:       "abc",
			Name:     "Song",
			Artists:  []spotify.SimpleArtist{{Name: "A"}, {Name: "B"}},
			Duration: 215000,
		},
	}

	got := convertTrack(ft)
	assert.Equal(t, track.Track{
		ID:       "abc",
		Name:     "Song",
		Artists:  []string{"A", "B"},
		URL:      "https://open.spotify.com/track/abc",
		Duration: 215 * time.Second,
		Source:   track.SourceTypeSpotify,
	}, got)
}

func TestClient_Retry(t *testing.T) {
	c := &Client{maxRetries: 3, retryDelay: time.Millisecond}

	t.Run("succeeds after retryable errors", func(t *testing.T) {
		calls := 0
		err := c.retry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errors.New("503 Service Unavailable")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		calls := 0
		err := c.retry(context.Background(), func() error {
			calls++
			return errors.New("404 not found")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := c.retry(context.Background(), func() error {
			calls++
			return errors.New("429 rate limit")
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max retries exceeded")
		assert.Equal(t, 3, calls)
	})

	t.Run("aborts on cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		slow := &Client{maxRetries: 3, retryDelay: time.Hour}

		err := slow.retry(ctx, func() error {
			return errors.New("500 internal")
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{ClientID: "id"})
	require.Error(t, err)

	c, err := New(context.Background(), Config{ClientID: "id", ClientSecret: "s", RefreshToken: "r"})
	require.NoError(t, err)
	assert.Equal(t, "JP", c.market)
}
