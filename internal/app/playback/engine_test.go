package playback

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/segue/internal/app/queue"
	"github.com/osa030/segue/internal/domain/playlist"
	"github.com/osa030/segue/internal/domain/track/tracktest"
)

// newTestEngine queues T1 (2s) and T2 (3s) and starts T1.
func newTestEngine(t *testing.T, mode playlist.Mode, fade time.Duration) (*Engine, *queue.Queue, *tracktest.Handle, *tracktest.Handle) {
	t.Helper()

	q := queue.New(queue.Config{Mode: mode, Seed: 7})
	t1 := tracktest.New("T1", 2*time.Second)
	t2 := tracktest.New("T2", 3*time.Second)
	require.NoError(t, q.Add(t1))
	require.NoError(t, q.Add(t2))

	e := NewEngine(q, fade)
	require.True(t, q.MoveTo(0))
	require.NoError(t, e.Start(t1))
	return e, q, t1, t2
}

func TestEngine_Tick_Idle(t *testing.T) {
	e := NewEngine(queue.New(queue.Config{}), 0)

	out := e.Tick()
	assert.Equal(t, TransitionIdle, out.Transition)
	assert.Nil(t, out.Track)
	assert.Equal(t, StateIdle, e.State())
}

func TestEngine_Tick_Continued(t *testing.T) {
	e, q, t1, _ := newTestEngine(t, playlist.ModeSequential, 0)
	t1.SetRemaining(time.Second)

	out := e.Tick()
	assert.Equal(t, TransitionContinued, out.Transition)
	assert.Same(t, t1, out.Track)
	assert.Equal(t, 0, q.Position())
	assert.Equal(t, StatePlaying, e.State())
}

// Queue [T1 2s, T2 3s], no fade: T1 exhausting moves to T2.
func TestEngine_Tick_AdvanceWithoutFade(t *testing.T) {
	e, q, t1, t2 := newTestEngine(t, playlist.ModeSequential, 0)
	assert.Same(t, t1, e.Current())

	t1.Finish()
	out := e.Tick()

	assert.Equal(t, TransitionAdvanced, out.Transition)
	assert.Same(t, t2, out.Track)
	assert.Same(t, t1, out.Ended)
	assert.Same(t, t2, e.Current())
	assert.Equal(t, 1, q.Position())
	assert.True(t, t2.IsPlaying())
	assert.Equal(t, 1, t1.StopCalls)
	assert.Equal(t, 1, t1.ReleaseCalls)
	assert.Zero(t, t2.ReleaseCalls)
}

// Same queue with a 1s window: fade starts, then T2 is promoted when T1 runs dry.
func TestEngine_Tick_Crossfade(t *testing.T) {
	e, q, t1, t2 := newTestEngine(t, playlist.ModeSequential, time.Second)

	t1.SetRemaining(1500 * time.Millisecond)
	assert.Equal(t, TransitionContinued, e.Tick().Transition)

	t1.SetRemaining(time.Second)
	out := e.Tick()
	assert.Equal(t, TransitionFadeStarted, out.Transition)
	assert.Same(t, t2, e.Fading())
	assert.Same(t, t1, e.Current())
	assert.True(t, t2.IsPlaying())
	assert.Equal(t, 0, q.Position(), "fade must not move the cursor")
	assert.Equal(t, StateFadingIn, e.State())

	t1.SetRemaining(200 * time.Millisecond)
	out = e.Tick()
	assert.Equal(t, TransitionFadeWaiting, out.Transition)
	assert.Equal(t, 1, t2.PlayCalls, "only one fade may be in flight")

	t1.Finish()
	out = e.Tick()
	assert.Equal(t, TransitionFadeCompleted, out.Transition)
	assert.Same(t, t2, out.Track)
	assert.Same(t, t1, out.Ended)
	assert.Same(t, t2, e.Current())
	assert.Nil(t, e.Fading())
	assert.Equal(t, 1, q.Position())
	assert.Equal(t, 1, t1.ReleaseCalls)
	assert.Zero(t, t2.ReleaseCalls)
	assert.Equal(t, 1, t2.PlayCalls, "promoted track keeps playing")
}

func TestEngine_Tick_FadeWithoutNextFinishes(t *testing.T) {
	e, q, _, t2 := newTestEngine(t, playlist.ModeSequential, time.Second)
	require.NoError(t, e.Start(t2))
	require.True(t, q.MoveTo(1))

	t2.SetRemaining(500 * time.Millisecond)
	assert.Equal(t, TransitionFadeWaiting, e.Tick().Transition)

	t2.Finish()
	out := e.Tick()
	assert.Equal(t, TransitionFinished, out.Transition)
	assert.Same(t, t2, out.Ended)
	assert.Nil(t, e.Current())
	assert.Equal(t, 1, t2.ReleaseCalls)
	assert.Equal(t, 1, q.Position(), "finished playlist keeps the cursor")
}

func TestEngine_Tick_FinishedWithoutFade(t *testing.T) {
	e, q, t1, t2 := newTestEngine(t, playlist.ModeSequential, 0)

	t1.Finish()
	require.Equal(t, TransitionAdvanced, e.Tick().Transition)
	t2.Finish()
	out := e.Tick()

	assert.Equal(t, TransitionFinished, out.Transition)
	assert.Nil(t, e.Current())
	assert.Equal(t, 1, q.Position())
	assert.Equal(t, TransitionIdle, e.Tick().Transition)
}

func TestEngine_Tick_WrapPolicy(t *testing.T) {
	e, q, t1, t2 := newTestEngine(t, playlist.ModeSequential, 0)
	q.SetEndPolicy(playlist.EndPolicyWrap)

	t1.Finish()
	require.Equal(t, TransitionAdvanced, e.Tick().Transition)
	t2.Finish()
	out := e.Tick()

	assert.Equal(t, TransitionAdvanced, out.Transition)
	assert.Same(t, t1, e.Current())
	assert.Equal(t, 0, q.Position())
	assert.True(t, t1.IsPlaying())
}

// LoopSingle with T1 2s: exhaustion seeks back to 0 and keeps the cursor.
func TestEngine_Tick_LoopSingleRepeats(t *testing.T) {
	e, q, t1, t2 := newTestEngine(t, playlist.ModeLoopSingle, time.Second)

	for i := 1; i <= 3; i++ {
		t1.Finish()
		out := e.Tick()

		assert.Equal(t, TransitionRepeated, out.Transition)
		assert.Same(t, t1, e.Current())
		assert.Equal(t, 0, q.Position())
		assert.Equal(t, i, t1.SeekCalls)
		assert.Equal(t, time.Duration(0), t1.LastSeek)
		assert.Equal(t, 2*time.Second, t1.RemainingTime())
	}

	t1.SetRemaining(500 * time.Millisecond)
	assert.Equal(t, TransitionContinued, e.Tick().Transition, "no fade in loop single")
	assert.Nil(t, e.Fading())
	assert.Zero(t, t2.PlayCalls)
	assert.Zero(t, t1.ReleaseCalls)
}

func TestEngine_Tick_LoopSingleSeekFailure(t *testing.T) {
	e, _, t1, _ := newTestEngine(t, playlist.ModeLoopSingle, 0)
	t1.SeekErr = errors.New("seek failed")

	t1.Finish()
	out := e.Tick()

	assert.Equal(t, TransitionFailed, out.Transition)
	assert.Same(t, t1, out.Track)
	require.Error(t, out.Err)
	assert.Nil(t, e.Current())
	assert.Equal(t, 1, t1.ReleaseCalls)
}

func TestEngine_Tick_FadeCandidateFails(t *testing.T) {
	e, q, t1, t2 := newTestEngine(t, playlist.ModeSequential, time.Second)
	t2.PlayErr = errors.New("decode error")

	t1.SetRemaining(time.Second)
	out := e.Tick()
	assert.Equal(t, TransitionContinued, out.Transition)
	require.Error(t, out.Err)
	assert.Nil(t, e.Fading())
	assert.Equal(t, 1, t2.ReleaseCalls)

	t1.SetRemaining(500 * time.Millisecond)
	assert.Equal(t, TransitionFadeWaiting, e.Tick().Transition)
	assert.Equal(t, 1, t2.PlayCalls, "failed candidate is not retried")

	t1.Finish()
	out = e.Tick()
	assert.Equal(t, TransitionFailed, out.Transition)
	assert.Same(t, t2, out.Track)
	assert.Nil(t, e.Current())
	assert.Equal(t, 1, t1.ReleaseCalls)
	assert.Equal(t, 2, t2.ReleaseCalls)
	assert.Equal(t, 1, q.Position())
}

func TestEngine_Start_ReplacesAndReleases(t *testing.T) {
	e, _, t1, t2 := newTestEngine(t, playlist.ModeSequential, time.Second)

	t1.SetRemaining(time.Second)
	require.Equal(t, TransitionFadeStarted, e.Tick().Transition)

	require.NoError(t, e.Start(t1))
	assert.Equal(t, 1, t1.ReleaseCalls)
	assert.Equal(t, 1, t2.ReleaseCalls)
	assert.Same(t, t1, e.Current())
	assert.Nil(t, e.Fading())
}

func TestEngine_Start_Failure(t *testing.T) {
	e, _, t1, t2 := newTestEngine(t, playlist.ModeSequential, 0)
	t2.PlayErr = errors.New("no device")

	err := e.Start(t2)
	require.Error(t, err)
	assert.Nil(t, e.Current())
	assert.Equal(t, 1, t1.ReleaseCalls)
	assert.Equal(t, 1, t2.ReleaseCalls)
}

func TestEngine_Start_RestartFailureReleasesOnce(t *testing.T) {
	e, _, t1, _ := newTestEngine(t, playlist.ModeSequential, 0)
	t1.PlayErr = errors.New("device lost")

	require.Error(t, e.Start(t1))
	assert.Nil(t, e.Current())
	assert.Equal(t, 1, t1.ReleaseCalls)
}

func TestEngine_Start_FadingTrackFailureReleasesOnce(t *testing.T) {
	e, _, t1, t2 := newTestEngine(t, playlist.ModeSequential, time.Second)
	t1.SetRemaining(time.Second)
	require.Equal(t, TransitionFadeStarted, e.Tick().Transition)
	t2.PlayErr = errors.New("device lost")

	require.Error(t, e.Start(t2))
	assert.Equal(t, StateIdle, e.State())
	assert.Equal(t, 1, t1.ReleaseCalls)
	assert.Equal(t, 1, t2.ReleaseCalls)
}

func TestEngine_Tick_WrapSingleEntryFailureReleasesOnce(t *testing.T) {
	q := queue.New(queue.Config{EndPolicy: playlist.EndPolicyWrap})
	t1 := tracktest.New("T1", 2*time.Second)
	require.NoError(t, q.Add(t1))
	require.True(t, q.MoveTo(0))

	e := NewEngine(q, 0)
	require.NoError(t, e.Start(t1))
	t1.Finish()
	t1.PlayErr = errors.New("device lost")

	out := e.Tick()
	assert.Equal(t, TransitionFailed, out.Transition)
	assert.Nil(t, e.Current())
	assert.Equal(t, 1, t1.ReleaseCalls)
}

func TestEngine_Clear_ReleasesOnce(t *testing.T) {
	e, _, t1, t2 := newTestEngine(t, playlist.ModeSequential, time.Second)
	t1.SetRemaining(time.Second)
	require.Equal(t, TransitionFadeStarted, e.Tick().Transition)

	assert.Same(t, t1, e.Clear())
	assert.Nil(t, e.Clear())

	assert.Equal(t, 1, t1.ReleaseCalls)
	assert.Equal(t, 1, t2.ReleaseCalls)
	assert.Equal(t, StateIdle, e.State())
}

func TestEngine_PauseResume(t *testing.T) {
	e, _, t1, t2 := newTestEngine(t, playlist.ModeSequential, time.Second)
	t1.SetRemaining(time.Second)
	require.Equal(t, TransitionFadeStarted, e.Tick().Transition)

	e.Pause()
	assert.False(t, t1.IsPlaying())
	assert.False(t, t2.IsPlaying())
	assert.Zero(t, t1.ReleaseCalls, "pause keeps resources")

	resumed, err := e.Resume()
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.True(t, t2.IsPlaying())

	resumed, err = e.Resume()
	require.NoError(t, err)
	assert.False(t, resumed)
}

func TestEngine_CancelFade(t *testing.T) {
	e, q, t1, t2 := newTestEngine(t, playlist.ModeSequential, time.Second)
	t1.SetRemaining(time.Second)
	require.Equal(t, TransitionFadeStarted, e.Tick().Transition)

	assert.Same(t, t2, e.CancelFade())
	assert.Nil(t, e.CancelFade())
	assert.Equal(t, 1, t2.ReleaseCalls)
	assert.Same(t, t1, e.Current())
	assert.Equal(t, 0, q.Position())
}
