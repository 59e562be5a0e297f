package ringer

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/alarm-clock/internal/domain/alarm"
	"github.com/oshokin/alarm-clock/internal/logger"
	"github.com/oshokin/alarm-clock/internal/service/host"
	"github.com/oshokin/alarm-clock/internal/service/session"
)

// Manager abstracts the session operations the transport layer depends on.
type Manager interface {
	Start(req host.Request) (string, error)
	Signal(id string, sig alarm.Signal) (bool, error)
	ToggleAudioSource(id string) (alarm.AudioSource, error)
	Subscribe(id string) (<-chan host.Event, func(), error)
}

// Server implements RingerService on top of a Manager.
type Server struct {
	manager  Manager
	defaults session.Config
}

// NewServer wires manager into a gRPC handler. defaults fill in options
// omitted from StartSession requests.
func NewServer(manager Manager, defaults session.Config) *Server {
	return &Server{
		manager:  manager,
		defaults: defaults,
	}
}

// Register attaches the server to a gRPC registrar.
func (s *Server) Register(registrar grpc.ServiceRegistrar) {
	RegisterRingerServiceServer(registrar, s)
}

// StartSession starts a new ringing session.
func (s *Server) StartSession(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	id, err := s.manager.Start(structToStartRequest(req, s.defaults))
	if err != nil {
		logger.ErrorKV(ctx, "Unable to start session", "error", err)

		return nil, toStatus(err)
	}

	return wrapperspb.String(id), nil
}

// Signal routes a signal to a session.
func (s *Server) Signal(_ context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error) {
	sessionID, sig, err := structToSignal(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	resolved, err := s.manager.Signal(sessionID, sig)
	if err != nil {
		return nil, toStatus(err)
	}

	return wrapperspb.Bool(resolved), nil
}

// ToggleAudioSource switches the audio source of a session.
func (s *Server) ToggleAudioSource(_ context.Context, sessionID *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	if sessionID.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "session id is required")
	}

	source, err := s.manager.ToggleAudioSource(sessionID.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}

	return wrapperspb.String(string(source)), nil
}

// WatchSession streams events until the session terminates or the client leaves.
func (s *Server) WatchSession(sessionID *wrapperspb.StringValue, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	if sessionID.GetValue() == "" {
		return status.Error(codes.InvalidArgument, "session id is required")
	}

	events, cancel, err := s.manager.Subscribe(sessionID.GetValue())
	if err != nil {
		return toStatus(err)
	}

	defer cancel()

	ctx := stream.Context()

	for {
		select {
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}

			msg, err := EventToStruct(ev)
			if err != nil {
				return status.Error(codes.Internal, err.Error())
			}

			if err = stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

// toStatus maps domain errors onto gRPC codes.
func toStatus(err error) error {
	code := codes.Internal

	switch {
	case errors.Is(err, host.ErrSessionNotFound):
		code = codes.NotFound
	case errors.Is(err, host.ErrManagerClosed):
		code = codes.Unavailable
	case errors.Is(err, alarm.ErrUnknownSignal):
		code = codes.InvalidArgument
	case errors.Is(err, session.ErrNotRinging),
		errors.Is(err, alarm.ErrSessionTerminated),
		errors.Is(err, alarm.ErrFeatureDisabled),
		errors.Is(err, alarm.ErrFeatureUnsupported):
		code = codes.FailedPrecondition
	}

	return status.Error(code, err.Error())
}
