// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/osa030/segue/internal/domain/playlist"
)

// Source types
const (
	SourceTypeDirectory = "directory"
	SourceTypeSpotify   = "spotify"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Admin    AdminConfig    `yaml:"admin"`
	Playback PlaybackConfig `yaml:"playback"`
	Library  LibraryConfig  `yaml:"library"`
	Spotify  SpotifyConfig  `yaml:"spotify"`
	Sentry   SentryConfig   `yaml:"sentry"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr        string      `yaml:"addr" default:":8080"`
	MetricsPath string      `yaml:"metrics_path" default:"/metrics"`
	Hooks       HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// AdminConfig represents admin-related configuration.
type AdminConfig struct {
	Token string `yaml:"token" validate:"required"`
}

// PlaybackConfig represents playback control configuration.
type PlaybackConfig struct {
	TickIntervalMs int    `yaml:"tick_interval_ms" default:"500" validate:"gt=0,lte=10000"`
	FadeWindowMs   int    `yaml:"fade_window_ms" validate:"gte=0,lte=60000"`
	Mode           string `yaml:"mode" default:"sequential"`
	EndPolicy      string `yaml:"end_policy" default:"stop"`
	RandomSeed     uint64 `yaml:"random_seed"`
	Autoplay       bool   `yaml:"autoplay"`
}

// LibraryConfig represents the track import configuration.
type LibraryConfig struct {
	ValidSuffixes []string                `yaml:"valid_suffixes" default:"[\".mp3\",\".wav\"]" validate:"min=1,dive,startswith=."`
	Watch         bool                    `yaml:"watch"`
	Sources       []SourceConfig          `yaml:"sources" validate:"dive"`
	Filters       map[string]FilterConfig `yaml:"filters"`
}

// FilterConfig represents an import filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// SourceConfig represents a single track source configuration.
type SourceConfig struct {
	Type     string         `yaml:"type" validate:"required,oneof=directory spotify"`
	Settings map[string]any `yaml:"settings"`
}

// SpotifyConfig represents Spotify API configuration.
// Only required when a spotify source is configured.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"JP"`
}

// SentryConfig represents error reporting configuration.
type SentryConfig struct {
	DSN         string  `yaml:"dsn" validate:"omitempty,url"`
	Environment string  `yaml:"environment" default:"development"`
	SampleRate  float64 `yaml:"sample_rate" default:"1" validate:"gte=0,lte=1"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes, then applies env overrides,
// defaults and validation.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SPOTIFY_REFRESH_TOKEN"); v != "" {
		c.Spotify.RefreshToken = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.Admin.Token = v
	}
	if v := os.Getenv("SENTRY_DSN"); v != "" {
		c.Sentry.DSN = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if _, err := playlist.ParseMode(c.Playback.Mode); err != nil {
		return errors.Wrap(err, "invalid playback.mode")
	}
	if _, err := playlist.ParseEndPolicy(c.Playback.EndPolicy); err != nil {
		return errors.Wrap(err, "invalid playback.end_policy")
	}

	if c.HasSourceType(SourceTypeSpotify) && !c.Spotify.Enabled() {
		return errors.New("spotify source requires spotify client_id, client_secret and refresh_token")
	}

	return nil
}

// HasSourceType reports whether a source of the given type is configured.
func (c *Config) HasSourceType(typ string) bool {
	for _, s := range c.Library.Sources {
		if strings.EqualFold(s.Type, typ) {
			return true
		}
	}
	return false
}

// IsFilterEnabled checks if an import filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Library.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// Enabled reports whether Spotify credentials are complete.
func (s SpotifyConfig) Enabled() bool {
	return s.ClientID != "" && s.ClientSecret != "" && s.RefreshToken != ""
}

// TickInterval returns the tick period.
func (p PlaybackConfig) TickInterval() time.Duration {
	return time.Duration(p.TickIntervalMs) * time.Millisecond
}

// FadeWindow returns the fade window; zero disables fading.
func (p PlaybackConfig) FadeWindow() time.Duration {
	return time.Duration(p.FadeWindowMs) * time.Millisecond
}

// PlaylistMode returns the parsed playback mode. Validate has already checked it.
func (p PlaybackConfig) PlaylistMode() playlist.Mode {
	m, _ := playlist.ParseMode(p.Mode)
	return m
}

// PlaylistEndPolicy returns the parsed end-of-queue policy. Validate has already checked it.
func (p PlaybackConfig) PlaylistEndPolicy() playlist.EndPolicy {
	ep, _ := playlist.ParseEndPolicy(p.EndPolicy)
	return ep
}
