package filter

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/segue/internal/domain/track"
)

// DurationLimitConfig represents the configuration for DurationLimitFilter.
// A zero limit is unbounded.
type DurationLimitConfig struct {
	MinSeconds float64 `yaml:"min_seconds" mapstructure:"min_seconds" validate:"gte=0"`
	MaxSeconds float64 `yaml:"max_seconds" mapstructure:"max_seconds" validate:"gte=0"`
}

// DurationLimitFilter checks if track duration is within allowed limits.
type DurationLimitFilter struct {
	config *DurationLimitConfig
}

// NewDurationLimitFilter creates a new duration limit filter.
func NewDurationLimitFilter() *DurationLimitFilter {
	return &DurationLimitFilter{}
}

func (f *DurationLimitFilter) Name() string {
	return "duration_limit_filter"
}

func (f *DurationLimitFilter) Description() string {
	return "Skips tracks shorter or longer than the configured limits"
}

func (f *DurationLimitFilter) ReturnCodes() []string {
	return []string{"duration_limit_exceeded"}
}

func (f *DurationLimitFilter) ValidateConfig(settings map[string]any) error {
	var config DurationLimitConfig

	// Decode map[string]any to struct using mapstructure
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &config,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}

	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	if err := defaults.Set(&config); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}

	if config.MaxSeconds > 0 && config.MinSeconds > config.MaxSeconds {
		return errors.New("min_seconds cannot be greater than max_seconds")
	}
	f.config = &config
	zlog.Info().Msgf("duration limit filter config: %+v", config)
	return nil
}

// Check rejects tracks outside the limits. Tracks of unknown duration pass.
func (f *DurationLimitFilter) Check(ctx context.Context, t track.Track, queued []track.Track) Result {
	if f.config == nil || t.Duration <= 0 {
		return Accept()
	}

	seconds := t.Duration.Seconds()
	if seconds < f.config.MinSeconds {
		return Rejectf("duration_limit_exceeded", "%.0fs below min %.0fs", seconds, f.config.MinSeconds)
	}
	if f.config.MaxSeconds > 0 && seconds > f.config.MaxSeconds {
		return Rejectf("duration_limit_exceeded", "%.0fs above max %.0fs", seconds, f.config.MaxSeconds)
	}
	return Accept()
}

func init() {
	Register("duration_limit_filter", func() Filter {
		return NewDurationLimitFilter()
	})
}
