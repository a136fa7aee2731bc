package playlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		input    string
		expected Mode
		wantErr  bool
	}{
		{input: "", expected: ModeSequential},
		{input: "sequential", expected: ModeSequential},
		{input: "random", expected: ModeRandom},
		{input: "shuffle", expected: ModeRandom},
		{input: "loop_single", expected: ModeLoopSingle},
		{input: "repeat", expected: ModeLoopSingle},
		{input: "backwards", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			mode, err := ParseMode(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.input)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, mode)
		})
	}
}

func TestMode_StringRoundTrip(t *testing.T) {
	for _, m := range []Mode{ModeSequential, ModeRandom, ModeLoopSingle} {
		parsed, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
	assert.Equal(t, "unknown", Mode(42).String())
}

func TestParseEndPolicy(t *testing.T) {
	p, err := ParseEndPolicy("wrap")
	require.NoError(t, err)
	assert.Equal(t, EndPolicyWrap, p)

	p, err = ParseEndPolicy("")
	require.NoError(t, err)
	assert.Equal(t, EndPolicyStop, p)

	_, err = ParseEndPolicy("bounce")
	assert.Error(t, err)
}
