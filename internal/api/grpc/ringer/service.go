package ringer

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "alarmclock.v1.RingerService"

	startSessionMethod      = "/" + ServiceName + "/StartSession"
	signalMethod            = "/" + ServiceName + "/Signal"
	toggleAudioSourceMethod = "/" + ServiceName + "/ToggleAudioSource"
	watchSessionMethod      = "/" + ServiceName + "/WatchSession"
)

// RingerServiceServer is the server API of RingerService.
type RingerServiceServer interface {
	// StartSession starts ringing and returns the session ID.
	StartSession(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error)
	// Signal routes a host signal and reports whether it resolved the session.
	Signal(ctx context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error)
	// ToggleAudioSource switches between voice and tone and returns the new source.
	ToggleAudioSource(ctx context.Context, sessionID *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	// WatchSession streams the session's events, replaying the history first.
	WatchSession(sessionID *wrapperspb.StringValue, stream grpc.ServerStreamingServer[structpb.Struct]) error
}

// RegisterRingerServiceServer registers srv on s.
func RegisterRingerServiceServer(s grpc.ServiceRegistrar, srv RingerServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

//nolint:gochecknoglobals // Service descriptors are package-level by convention.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RingerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "StartSession",
			Handler:    startSessionHandler,
		},
		{
			MethodName: "Signal",
			Handler:    signalHandler,
		},
		{
			MethodName: "ToggleAudioSource",
			Handler:    toggleAudioSourceHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchSession",
			Handler:       watchSessionHandler,
			ServerStreams: true,
		},
	},
	Metadata: "alarmclock/v1/ringer.proto",
}

// unary adapts a typed unary method to a grpc.MethodDesc handler.
func unary[Req any, Resp any](
	fullMethod string,
	call func(srv RingerServiceServer, ctx context.Context, req *Req) (*Resp, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}

		if interceptor == nil {
			return call(srv.(RingerServiceServer), ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}

		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(RingerServiceServer), ctx, req.(*Req))
		}

		return interceptor(ctx, in, info, handler)
	}
}

//nolint:gochecknoglobals // Handlers are referenced from serviceDesc.
var (
	startSessionHandler = unary(startSessionMethod,
		func(srv RingerServiceServer, ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
			return srv.StartSession(ctx, req)
		})

	signalHandler = unary(signalMethod,
		func(srv RingerServiceServer, ctx context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error) {
			return srv.Signal(ctx, req)
		})

	toggleAudioSourceHandler = unary(toggleAudioSourceMethod,
		func(srv RingerServiceServer, ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
			return srv.ToggleAudioSource(ctx, req)
		})
)

func watchSessionHandler(srv any, stream grpc.ServerStream) error {
	in := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}

	return srv.(RingerServiceServer).WatchSession(in, &grpc.GenericServerStream[wrapperspb.StringValue, structpb.Struct]{
		ServerStream: stream,
	})
}
