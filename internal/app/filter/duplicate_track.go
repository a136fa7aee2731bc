package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/osa030/segue/internal/domain/track"
)

var (
	remasterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
		regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),              // "(Any Remaster text)"
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),              // "[Any Remaster text]"
	}
	versionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*\(.*?version\)`),        // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),           // "(Radio Edit)"
		regexp.MustCompile(`\s*\(live\)`),              // "(Live)"
		regexp.MustCompile(`\s*-\s*live$`),             // "- Live"
		regexp.MustCompile(`\s*-?\s*radio\s+edit`),     // "- Radio Edit"
		regexp.MustCompile(`\s*-?\s*single\s+version`), // "- Single Version"
	}
	spaces = regexp.MustCompile(`\s+`)
)

// DuplicateTrackFilter skips tracks that are already queued.
// Detects:
// - Exact track ID matches
// - Remasters (normalized track name + same artist)
// Excludes:
// - Cover songs (same track name but different artist)
type DuplicateTrackFilter struct{}

// NewDuplicateTrackFilter creates a new duplicate track filter.
func NewDuplicateTrackFilter() *DuplicateTrackFilter {
	return &DuplicateTrackFilter{}
}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// Description returns the filter description.
func (f *DuplicateTrackFilter) Description() string {
	return "Skips tracks already queued, remasters included; covers by other artists are kept"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{"duplicate_track"}
}

// ValidateConfig validates the filter configuration.
func (f *DuplicateTrackFilter) ValidateConfig(settings map[string]any) error {
	// No configuration needed
	return nil
}

// Check checks if the track is a duplicate.
func (f *DuplicateTrackFilter) Check(ctx context.Context, t track.Track, queued []track.Track) Result {
	for _, q := range queued {
		if q.ID == t.ID || isRemaster(q, t) {
			return Rejectf("duplicate_track", "same as %s", q.ID)
		}
	}
	return Accept()
}

// isRemaster checks if two tracks are the same song (remaster/different version).
func isRemaster(track1, track2 track.Track) bool {
	if track1.Name == "" || track2.Name == "" {
		return false
	}
	if normalizeTrackName(track1.Name) != normalizeTrackName(track2.Name) {
		return false
	}
	// Same normalized name by a different artist is a cover
	return isSameArtist(track1, track2)
}

// normalizeTrackName removes remaster information and version details.
func normalizeTrackName(name string) string {
	normalized := strings.ToLower(name)

	for _, pattern := range remasterPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	for _, pattern := range versionPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	normalized = strings.TrimSpace(normalized)
	normalized = spaces.ReplaceAllString(normalized, " ")
	return strings.TrimRight(normalized, " -")
}

// isSameArtist checks if two tracks have the same main artist.
func isSameArtist(track1, track2 track.Track) bool {
	if len(track1.Artists) == 0 || len(track2.Artists) == 0 {
		return false
	}
	return strings.EqualFold(track1.Artists[0], track2.Artists[0])
}

func init() {
	Register("duplicate_track_filter", func() Filter {
		return NewDuplicateTrackFilter()
	})
}
