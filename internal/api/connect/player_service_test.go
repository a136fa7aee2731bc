package connect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/segue/internal/app/library"
	"github.com/osa030/segue/internal/app/notification"
	"github.com/osa030/segue/internal/app/playback"
	"github.com/osa030/segue/internal/domain/track"
	"github.com/osa030/segue/internal/domain/track/tracktest"
)

const testToken = "secret"

// manualScheduler never ticks on its own.
type manualScheduler struct {
	running bool
}

func (s *manualScheduler) Start()        { s.running = true }
func (s *manualScheduler) Stop()         { s.running = false }
func (s *manualScheduler) Running() bool { return s.running }

type fakeImporter struct {
	result library.Result
	err    error
}

func (i fakeImporter) Import(context.Context) (library.Result, error) {
	return i.result, i.err
}

type fixture struct {
	controller *playback.Controller
	notifier   *notification.Manager
	client     *PlayerClient
	server     *httptest.Server
}

func newFixture(t *testing.T, importer Importer) *fixture {
	t.Helper()

	notifier := notification.NewManager(16)
	controller := playback.NewController(playback.Config{},
		playback.WithSink(notifier),
		playback.WithScheduler(&manualScheduler{}),
	)
	controller.AddBatch([]track.Handle{
		tracktest.New("a", time.Minute),
		tracktest.New("b", time.Minute),
		tracktest.New("c", time.Minute),
	})

	svc := NewPlayerService(controller, notifier, importer)
	path, handler := NewPlayerServiceHandler(svc, connect.WithInterceptors(NewAdminAuthInterceptor(testToken)))

	mux := http.NewServeMux()
	mux.Handle(path, handler)
	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		notifier.Close()
		server.Close()
	})

	return &fixture{
		controller: controller,
		notifier:   notifier,
		client:     NewPlayerClient(server.Client(), server.URL, testToken),
		server:     server,
	}
}

func status(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()
	s, ok := resp[FieldStatus].(map[string]any)
	require.True(t, ok, "response has no status: %v", resp)
	return s
}

func trackID(t *testing.T, resp map[string]any) string {
	t.Helper()
	tr, ok := resp[FieldTrack].(map[string]any)
	require.True(t, ok, "response has no track: %v", resp)
	return tr["id"].(string)
}

func TestAdminAuth(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, token := range []string{"", "wrong"} {
		client := NewPlayerClient(f.server.Client(), f.server.URL, token)
		_, err := client.Call(ctx, StatusProcedure, nil)
		require.Error(t, err)
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	}

	_, err := f.client.Call(ctx, StatusProcedure, nil)
	require.NoError(t, err)
}

func TestPlayerService_PlayPauseStop(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	resp, err := f.client.Call(ctx, PlayProcedure, nil)
	require.NoError(t, err)
	s := status(t, resp)
	assert.Equal(t, "playing", s["state"])
	assert.Equal(t, "a", s["current_id"])
	assert.Equal(t, float64(0), s["position"])
	assert.Equal(t, float64(3), s["queue_length"])
	assert.Equal(t, true, s["ticking"])

	resp, err = f.client.Call(ctx, PauseProcedure, nil)
	require.NoError(t, err)
	assert.Equal(t, "paused", status(t, resp)["state"])

	resp, err = f.client.Call(ctx, StopProcedure, nil)
	require.NoError(t, err)
	s = status(t, resp)
	assert.Equal(t, "idle", s["state"])
	assert.Equal(t, "", s["current_id"])
	assert.Equal(t, false, s["ticking"])
}

func TestPlayerService_PlayIndexAndID(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	resp, err := f.client.Call(ctx, PlayIndexProcedure, map[string]any{FieldIndex: 1})
	require.NoError(t, err)
	assert.Equal(t, "b", trackID(t, resp))
	assert.Equal(t, float64(1), status(t, resp)["position"])

	resp, err = f.client.Call(ctx, PlayIDProcedure, map[string]any{FieldTrackID: "c"})
	require.NoError(t, err)
	assert.Equal(t, "c", trackID(t, resp))

	resp, err = f.client.Call(ctx, PlayFirstProcedure, nil)
	require.NoError(t, err)
	assert.Equal(t, "a", trackID(t, resp))

	tests := []struct {
		name      string
		procedure string
		args      map[string]any
		code      connect.Code
	}{
		{"index out of range", PlayIndexProcedure, map[string]any{FieldIndex: 3}, connect.CodeOutOfRange},
		{"negative index", PlayIndexProcedure, map[string]any{FieldIndex: -1}, connect.CodeOutOfRange},
		{"fractional index", PlayIndexProcedure, map[string]any{FieldIndex: 1.5}, connect.CodeInvalidArgument},
		{"missing index", PlayIndexProcedure, nil, connect.CodeInvalidArgument},
		{"unknown id", PlayIDProcedure, map[string]any{FieldTrackID: "zz"}, connect.CodeNotFound},
		{"missing id", PlayIDProcedure, nil, connect.CodeInvalidArgument},
		{"unknown mode", SetModeProcedure, map[string]any{FieldMode: "bogus"}, connect.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.client.Call(ctx, tt.procedure, tt.args)
			require.Error(t, err)
			assert.Equal(t, tt.code, connect.CodeOf(err))
		})
	}
}

func TestPlayerService_NextPreviousSkipBack(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.client.Call(ctx, PlayProcedure, nil)
	require.NoError(t, err)

	resp, err := f.client.Call(ctx, NextProcedure, nil)
	require.NoError(t, err)
	assert.Equal(t, true, resp[FieldFound])
	assert.Equal(t, "b", trackID(t, resp))

	resp, err = f.client.Call(ctx, PreviousProcedure, nil)
	require.NoError(t, err)
	assert.Equal(t, false, resp[FieldFound])
	assert.Nil(t, resp[FieldTrack])

	resp, err = f.client.Call(ctx, SkipProcedure, nil)
	require.NoError(t, err)
	assert.Equal(t, "b", trackID(t, resp))
	assert.Equal(t, "b", status(t, resp)["current_id"])

	resp, err = f.client.Call(ctx, BackProcedure, nil)
	require.NoError(t, err)
	assert.Equal(t, "a", trackID(t, resp))
	assert.Equal(t, float64(0), status(t, resp)["position"])
}

func TestPlayerService_SetModeAndTracks(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	resp, err := f.client.Call(ctx, SetModeProcedure, map[string]any{FieldMode: "loop"})
	require.NoError(t, err)
	assert.Nil(t, resp[FieldTrack])
	assert.Equal(t, "loop_single", status(t, resp)["mode"])
	assert.Equal(t, "idle", status(t, resp)["state"])

	resp, err = f.client.Call(ctx, SetModeProcedure, map[string]any{FieldMode: "sequential", FieldRestart: true})
	require.NoError(t, err)
	assert.Equal(t, "a", trackID(t, resp))
	assert.Equal(t, "playing", status(t, resp)["state"])

	resp, err = f.client.Call(ctx, TracksProcedure, nil)
	require.NoError(t, err)
	tracks, ok := resp[FieldTracks].([]any)
	require.True(t, ok)
	require.Len(t, tracks, 3)
	assert.Equal(t, "c", tracks[2].(map[string]any)["id"])
	assert.Equal(t, float64(60), tracks[2].(map[string]any)["duration_seconds"])
}

func TestPlayerService_Rescan(t *testing.T) {
	ctx := context.Background()

	_, err := newFixture(t, nil).client.Call(ctx, RescanProcedure, nil)
	require.Error(t, err)
	assert.Equal(t, connect.CodeUnimplemented, connect.CodeOf(err))

	f := newFixture(t, fakeImporter{result: library.Result{Added: 2, Skipped: 1}})
	resp, err := f.client.Call(ctx, RescanProcedure, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(2), resp[FieldAdded])
	assert.Equal(t, float64(1), resp[FieldSkipped])

	f = newFixture(t, fakeImporter{err: errors.New("spotify down")})
	_, err = f.client.Call(ctx, RescanProcedure, nil)
	require.Error(t, err)
	assert.Equal(t, connect.CodeUnavailable, connect.CodeOf(err))
}

func TestPlayerService_Subscribe(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The stream needs no admin token.
	anon := NewPlayerClient(f.server.Client(), f.server.URL, "")
	msgs := make(chan map[string]any, 16)
	done := make(chan error, 1)
	go func() {
		done <- anon.Subscribe(ctx, func(m map[string]any) error {
			msgs <- m
			return nil
		})
	}()

	next := func() map[string]any {
		select {
		case m := <-msgs:
			return m
		case <-ctx.Done():
			t.Fatal("timed out waiting for notification")
			return nil
		}
	}

	initial := next()
	assert.Equal(t, InitialStateType, initial[FieldType])
	assert.Equal(t, float64(3), initial[FieldStatus].(map[string]any)["queue_length"])

	_, err := f.client.Call(ctx, PlayIndexProcedure, map[string]any{FieldIndex: 2})
	require.NoError(t, err)

	changed := next()
	assert.Equal(t, "track_changed", changed[FieldType])
	assert.Equal(t, "c", changed[FieldTrackID])
	assert.Equal(t, float64(2), changed["position"])

	playing := next()
	assert.Equal(t, "playing", playing[FieldType])
	assert.Greater(t, playing[FieldSequence].(float64), changed[FieldSequence].(float64))

	f.controller.Tick()
	ticked := next()
	assert.Equal(t, "ticked", ticked[FieldType])
	assert.NotContains(t, ticked, FieldTrackID)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("subscribe did not return after cancel")
	}
}
