package audio

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// ErrUnsupportedFormat is returned for files no decoder handles.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// outputSamples converts n samples at rate into OutputRate samples.
func outputSamples(rate beep.SampleRate, n int) int64 {
	if n <= 0 {
		return 0
	}
	if rate == OutputRate {
		return int64(n)
	}
	return int64(n) * int64(OutputRate) / int64(rate)
}

// decodeFile opens and decodes path by its extension.
func decodeFile(path string) (beep.StreamSeekCloser, beep.Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".mp3" && ext != ".wav" {
		return nil, beep.Format{}, errors.Wrapf(ErrUnsupportedFormat, "%s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, errors.Wrapf(err, "failed to open %s", path)
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch ext {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".wav":
		streamer, format, err = wav.Decode(f)
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, errors.Wrapf(err, "failed to decode %s", path)
	}
	return streamer, format, nil
}

// probeDuration decodes the file header to learn its length.
func probeDuration(path string) (time.Duration, error) {
	streamer, format, err := decodeFile(path)
	if err != nil {
		return 0, err
	}
	defer streamer.Close()

	return format.SampleRate.D(streamer.Len()), nil
}
