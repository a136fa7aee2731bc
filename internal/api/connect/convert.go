package connect

import (
	"math"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/segue/internal/app/notification"
	"github.com/osa030/segue/internal/app/playback"
	"github.com/osa030/segue/internal/app/queue"
	"github.com/osa030/segue/internal/domain/track"
)

// Message field names shared by the server and the client.
const (
	FieldIndex    = "index"
	FieldTrackID  = "track_id"
	FieldMode     = "mode"
	FieldRestart  = "restart"
	FieldTrack    = "track"
	FieldTracks   = "tracks"
	FieldFound    = "found"
	FieldAdded    = "added"
	FieldSkipped  = "skipped"
	FieldType     = "type"
	FieldSequence = "sequence_no"
	FieldStatus   = "status"
)

// InitialStateType is the type of the first message of a subscription.
const InitialStateType = "initial_state"

func trackValue(t track.Track) map[string]any {
	return map[string]any{
		"id":               t.ID,
		"name":             t.Name,
		"artists":          lo.ToAnySlice(t.Artists),
		"file_path":        t.FilePath,
		"url":              t.URL,
		"duration_seconds": t.Duration.Seconds(),
		"source":           string(t.Source),
	}
}

func handleValue(h track.Handle) any {
	if h == nil {
		return nil
	}
	return trackValue(h.Track())
}

func statusValue(s playback.Status) map[string]any {
	return map[string]any{
		"state":                 s.State.String(),
		"mode":                  s.Mode.String(),
		"end_policy":            s.EndPolicy.String(),
		"position":              s.Position,
		"queue_length":          s.QueueLength,
		"current_id":            s.CurrentID,
		"fading_id":             s.FadingID,
		"remaining_seconds":     s.Remaining.Seconds(),
		"fade_window_seconds":   s.FadeWindow.Seconds(),
		"tick_interval_seconds": s.TickInterval.Seconds(),
		"ticking":               s.Ticking,
		"track_ids":             lo.ToAnySlice(s.TrackIDs),
	}
}

func notificationValue(n notification.Notification) map[string]any {
	e := n.Event
	v := map[string]any{
		FieldType:     e.Type.String(),
		FieldSequence: n.SequenceNo,
		"state":       e.State.String(),
		"position":    e.Position,
	}
	switch e.Type {
	case playback.EventTracksAdded:
		v["start_index"] = e.StartIndex
		v["track_ids"] = lo.ToAnySlice(e.TrackIDs)
	case playback.EventQueueModeChanged:
		v[FieldMode] = e.Mode.String()
	case playback.EventTicked:
	default:
		v[FieldTrackID] = e.TrackID
	}
	return v
}

func newStruct(v map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(v)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, errors.Wrap(err, "failed to encode response"))
	}
	return s, nil
}

func respond(v map[string]any) (*connect.Response[structpb.Struct], error) {
	s, err := newStruct(v)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(s), nil
}

// intField reads a whole number argument.
func intField(msg *structpb.Struct, name string) (int, error) {
	v, ok := msg.GetFields()[name]
	if !ok {
		return 0, connect.NewError(connect.CodeInvalidArgument, errors.Newf("missing %s", name))
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, connect.NewError(connect.CodeInvalidArgument, errors.Newf("%s must be an integer", name))
	}
	return int(n.NumberValue), nil
}

// stringField reads a non-empty string argument.
func stringField(msg *structpb.Struct, name string) (string, error) {
	s := msg.GetFields()[name].GetStringValue()
	if s == "" {
		return "", connect.NewError(connect.CodeInvalidArgument, errors.Newf("missing %s", name))
	}
	return s, nil
}

// toConnectError maps playback errors onto RPC codes.
func toConnectError(err error) error {
	switch {
	case errors.Is(err, playback.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, playback.ErrIndexOutOfRange):
		return connect.NewError(connect.CodeOutOfRange, err)
	case errors.Is(err, queue.ErrDuplicateID):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, playback.ErrTrackFailed):
		return connect.NewError(connect.CodeAborted, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
