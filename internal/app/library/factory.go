package library

import (
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/segue/internal/infra/config"
)

// NewSourcesFromConfig creates the configured sources in order.
// spotify may be nil when no spotify source is configured.
func NewSourcesFromConfig(cfg *config.Config, spotify SpotifyClient) ([]Source, error) {
	filter := NewSuffixFilter(cfg.Library.ValidSuffixes)

	sources := make([]Source, 0, len(cfg.Library.Sources))
	for i, scfg := range cfg.Library.Sources {
		var source Source
		var err error
		zlog.Debug().Msgf("library: creating source: index=%d type=%s settings=%+v", i+1, scfg.Type, scfg.Settings)
		switch strings.ToLower(scfg.Type) {
		case config.SourceTypeDirectory:
			source, err = NewDirectorySource(filter, scfg.Settings)

		case config.SourceTypeSpotify:
			source, err = NewSpotifySource(spotify, scfg.Settings)

		default:
			return nil, errors.Newf("unsupported source type: %s (source index %d)", scfg.Type, i)
		}

		if err != nil {
			return nil, errors.Wrapf(err, "failed to create source (index %d, type %s)", i, scfg.Type)
		}

		sources = append(sources, source)
		zlog.Info().Msgf("library: registered source: index=%d name=%s", i+1, source.Name())
	}

	return sources, nil
}
