package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestShortCaller(t *testing.T) {
	file := filepath.Join("root", "internal", "playback", "engine.go")
	assert.Equal(t, filepath.Join("playback", "engine.go")+":42", shortCaller(0, file, 42))
	assert.Equal(t, "main.go:7", shortCaller(0, "main.go", 7))
}

func TestInit_File(t *testing.T) {
	orig := zlog.Logger
	origLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		zlog.Logger = orig
		zerolog.SetGlobalLevel(origLevel)
	})

	path := filepath.Join(t.TempDir(), "segue.log")
	closer, err := Init(Config{Output: "file", Level: "info", File: path})
	require.NoError(t, err)

	zlog.Info().Msg("playback: started")
	zlog.Debug().Msg("playback: hidden")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"playback: started"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestInit_BadFile(t *testing.T) {
	_, err := Init(Config{Output: "file", File: filepath.Join(t.TempDir(), "missing", "x.log")})
	require.Error(t, err)
}
