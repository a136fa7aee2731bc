// Package connect provides the Connect RPC player service.
//
// Messages are google.protobuf.Struct values so the service can be called
// with the stock Connect, gRPC and gRPC-Web protocols without generated stubs.
package connect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/segue/internal/app/library"
	"github.com/osa030/segue/internal/app/notification"
	"github.com/osa030/segue/internal/app/playback"
	"github.com/osa030/segue/internal/domain/playlist"
	"github.com/osa030/segue/internal/domain/track"
)

// PlayerServiceName is the fully-qualified name of the player service.
const PlayerServiceName = "segue.v1.PlayerService"

// Procedure paths of the player service.
const (
	PlayProcedure      = "/" + PlayerServiceName + "/Play"
	PauseProcedure     = "/" + PlayerServiceName + "/Pause"
	StopProcedure      = "/" + PlayerServiceName + "/Stop"
	NextProcedure      = "/" + PlayerServiceName + "/Next"
	PreviousProcedure  = "/" + PlayerServiceName + "/Previous"
	SkipProcedure      = "/" + PlayerServiceName + "/Skip"
	BackProcedure      = "/" + PlayerServiceName + "/Back"
	PlayIndexProcedure = "/" + PlayerServiceName + "/PlayIndex"
	PlayIDProcedure    = "/" + PlayerServiceName + "/PlayID"
	PlayFirstProcedure = "/" + PlayerServiceName + "/PlayFirst"
	SetModeProcedure   = "/" + PlayerServiceName + "/SetMode"
	StatusProcedure    = "/" + PlayerServiceName + "/Status"
	TracksProcedure    = "/" + PlayerServiceName + "/Tracks"
	RescanProcedure    = "/" + PlayerServiceName + "/Rescan"
	SubscribeProcedure = "/" + PlayerServiceName + "/Subscribe"
)

// Player is the playback surface exposed over RPC.
type Player interface {
	Play() error
	PlayFirst() (track.Handle, error)
	PlayIndex(i int) (track.Handle, error)
	PlayID(id string) (track.Handle, error)
	Next() (track.Handle, bool)
	Previous() (track.Handle, bool)
	Skip() (track.Handle, error)
	Back() (track.Handle, error)
	Stop()
	Pause()
	SetMode(mode playlist.Mode, restartAndPlay bool) (track.Handle, error)
	Status() playback.Status
	Tracks() []track.Track
}

// Importer re-reads the configured track sources into the queue.
type Importer interface {
	Import(ctx context.Context) (library.Result, error)
}

// PlayerService implements the PlayerService RPC.
type PlayerService struct {
	player   Player
	notifier *notification.Manager
	importer Importer
}

// NewPlayerService creates a new PlayerService. importer may be nil, in which
// case Rescan is unimplemented.
func NewPlayerService(player Player, notifier *notification.Manager, importer Importer) *PlayerService {
	return &PlayerService{
		player:   player,
		notifier: notifier,
		importer: importer,
	}
}

// NewPlayerServiceHandler builds an HTTP handler for every procedure and
// returns the path to mount it on.
func NewPlayerServiceHandler(svc *PlayerService, opts ...connect.HandlerOption) (string, http.Handler) {
	unary := map[string]func(context.Context, *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error){
		PlayProcedure:      svc.Play,
		PauseProcedure:     svc.Pause,
		StopProcedure:      svc.Stop,
		NextProcedure:      svc.Next,
		PreviousProcedure:  svc.Previous,
		SkipProcedure:      svc.Skip,
		BackProcedure:      svc.Back,
		PlayIndexProcedure: svc.PlayIndex,
		PlayIDProcedure:    svc.PlayID,
		PlayFirstProcedure: svc.PlayFirst,
		SetModeProcedure:   svc.SetMode,
		StatusProcedure:    svc.Status,
		TracksProcedure:    svc.Tracks,
		RescanProcedure:    svc.Rescan,
	}

	mux := http.NewServeMux()
	for procedure, fn := range unary {
		mux.Handle(procedure, connect.NewUnaryHandler(procedure, fn, opts...))
	}
	mux.Handle(SubscribeProcedure, connect.NewServerStreamHandler(SubscribeProcedure, svc.Subscribe, opts...))
	return "/" + PlayerServiceName + "/", mux
}

// Play starts or resumes playback.
func (s *PlayerService) Play(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	if err := s.player.Play(); err != nil {
		return nil, toConnectError(err)
	}
	return s.status()
}

// Pause pauses the current track.
func (s *PlayerService) Pause(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	s.player.Pause()
	return s.status()
}

// Stop stops and releases the current track.
func (s *PlayerService) Stop(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	s.player.Stop()
	return s.status()
}

// Next resolves the following track without starting it.
func (s *PlayerService) Next(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	h, ok := s.player.Next()
	return respond(map[string]any{FieldTrack: handleValue(h), FieldFound: ok})
}

// Previous resolves the preceding track without starting it.
func (s *PlayerService) Previous(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	h, ok := s.player.Previous()
	return respond(map[string]any{FieldTrack: handleValue(h), FieldFound: ok})
}

// Skip plays the following track.
func (s *PlayerService) Skip(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	return s.started(s.player.Skip())
}

// Back plays the preceding track.
func (s *PlayerService) Back(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	return s.started(s.player.Back())
}

// PlayIndex plays the queue entry at the given index.
func (s *PlayerService) PlayIndex(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	i, err := intField(req.Msg, FieldIndex)
	if err != nil {
		return nil, err
	}
	return s.started(s.player.PlayIndex(i))
}

// PlayID plays the queue entry with the given track ID.
func (s *PlayerService) PlayID(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	id, err := stringField(req.Msg, FieldTrackID)
	if err != nil {
		return nil, err
	}
	return s.started(s.player.PlayID(id))
}

// PlayFirst restarts playback from the first entry.
func (s *PlayerService) PlayFirst(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	return s.started(s.player.PlayFirst())
}

// SetMode switches the queue mode, optionally restarting from the first entry.
func (s *PlayerService) SetMode(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	name, err := stringField(req.Msg, FieldMode)
	if err != nil {
		return nil, err
	}
	mode, err := playlist.ParseMode(name)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	restart := req.Msg.GetFields()[FieldRestart].GetBoolValue()
	return s.started(s.player.SetMode(mode, restart))
}

// Status returns a snapshot of the player.
func (s *PlayerService) Status(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	return s.status()
}

// Tracks lists the queued tracks in order.
func (s *PlayerService) Tracks(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	tracks := lo.Map(s.player.Tracks(), func(t track.Track, _ int) any {
		return trackValue(t)
	})
	return respond(map[string]any{FieldTracks: tracks})
}

// Rescan imports tracks added to the sources since startup.
func (s *PlayerService) Rescan(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	if s.importer == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errors.New("rescan is not configured"))
	}
	res, err := s.importer.Import(ctx)
	if err != nil {
		return nil, connect.NewError(connect.CodeUnavailable, err)
	}
	zlog.Info().Msgf("connect: rescan finished: added=%d skipped=%d", res.Added, res.Skipped)
	return respond(map[string]any{FieldAdded: res.Added, FieldSkipped: res.Skipped})
}

// Subscribe streams playback events, starting with the current state.
func (s *PlayerService) Subscribe(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
	stream *connect.ServerStream[structpb.Struct],
) error {
	// Subscribe before the snapshot so no event between the two is lost.
	sub := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(sub.ID())

	initial, err := newStruct(map[string]any{
		FieldType:     InitialStateType,
		FieldSequence: s.notifier.SequenceNo(),
		FieldStatus:   statusValue(s.player.Status()),
	})
	if err != nil {
		return err
	}
	if err := stream.Send(initial); err != nil {
		return err
	}

	zlog.Debug().Msgf("connect: subscriber joined: id=%s", sub.ID())
	err = s.notifier.Forward(ctx, sub, &notificationStreamAdapter{stream: stream})
	zlog.Debug().Msgf("connect: subscriber left: id=%s dropped=%d", sub.ID(), sub.Dropped())
	return err
}

func (s *PlayerService) status() (*connect.Response[structpb.Struct], error) {
	return respond(map[string]any{FieldStatus: statusValue(s.player.Status())})
}

func (s *PlayerService) started(h track.Handle, err error) (*connect.Response[structpb.Struct], error) {
	if err != nil {
		return nil, toConnectError(err)
	}
	return respond(map[string]any{FieldTrack: handleValue(h), FieldStatus: statusValue(s.player.Status())})
}

// notificationStreamAdapter adapts connect.ServerStream to notification.Stream.
type notificationStreamAdapter struct {
	stream *connect.ServerStream[structpb.Struct]
}

func (a *notificationStreamAdapter) Send(n notification.Notification) error {
	msg, err := newStruct(notificationValue(n))
	if err != nil {
		return err
	}
	return a.stream.Send(msg)
}
