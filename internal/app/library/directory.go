package library

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/segue/internal/domain/track"
)

// DirectorySourceConfig is the settings block of a directory source.
type DirectorySourceConfig struct {
	Path      string `yaml:"path" mapstructure:"path" validate:"required"`
	Recursive bool   `yaml:"recursive" mapstructure:"recursive" default:"true"`
}

// DirectorySource lists audio files under a local directory.
type DirectorySource struct {
	config *DirectorySourceConfig
	filter SuffixFilter
}

// NewDirectorySource creates a new DirectorySource from a settings map.
func NewDirectorySource(filter SuffixFilter, settings map[string]any) (*DirectorySource, error) {
	var config DirectorySourceConfig
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	zlog.Debug().Msgf("directory source config: %+v", config)
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	abs, err := filepath.Abs(config.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve path %s", config.Path)
	}
	config.Path = abs

	return &DirectorySource{
		config: &config,
		filter: filter,
	}, nil
}

// Name returns the source name.
func (s *DirectorySource) Name() string {
	return "directory:" + s.config.Path
}

// Path returns the absolute root directory.
func (s *DirectorySource) Path() string {
	return s.config.Path
}

// Recursive reports whether subdirectories are scanned.
func (s *DirectorySource) Recursive() bool {
	return s.config.Recursive
}

// Filter returns the suffix filter.
func (s *DirectorySource) Filter() SuffixFilter {
	return s.filter
}

// Tracks walks the directory and returns matching files sorted by path.
// A missing directory yields no tracks.
func (s *DirectorySource) Tracks(ctx context.Context) ([]track.Track, error) {
	if _, err := os.Stat(s.config.Path); errors.Is(err, fs.ErrNotExist) {
		zlog.Warn().Msgf("library: directory does not exist: path=%s", s.config.Path)
		return []track.Track{}, nil
	}

	var paths []string
	err := filepath.WalkDir(s.config.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != s.config.Path && !s.config.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if s.filter.Matches(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to scan %s", s.config.Path)
	}

	sort.Strings(paths)
	tracks := make([]track.Track, 0, len(paths))
	for _, p := range paths {
		tracks = append(tracks, FileTrack(p))
	}

	zlog.Debug().Msgf("library: scanned directory path=%s tracks=%d", s.config.Path, len(tracks))
	return tracks, nil
}

// FileTrack builds the catalog entry of a local file.
// The ID is derived from the absolute path so rescans keep identities stable.
func FileTrack(path string) track.Track {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	base := filepath.Base(path)

	return track.Track{
		ID:       uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+path)).String(),
		Name:     strings.TrimSuffix(base, filepath.Ext(base)),
		FilePath: path,
		Source:   track.SourceTypeFile,
	}
}
