package server

import (
	"context"

	"google.golang.org/genproto/googleapis/api/httpbody"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "tictactoe.v1.TicTacToeEngine"

// EngineServer is the server API for the TicTacToeEngine service.
// Requests and responses are google.protobuf.Struct documents.
type EngineServer interface {
	CreateSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetState(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PlayAt(context.Context, *structpb.Struct) (*structpb.Struct, error)
	JumpTo(context.Context, *structpb.Struct) (*structpb.Struct, error)
	NewGame(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ChangeBoardSize(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ChangeDifficulty(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ToggleMode(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ToggleHistorySortOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ToggleStatsVisibility(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RenderBoard(context.Context, *structpb.Struct) (*httpbody.HttpBody, error)
	GetOutcomes(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StreamState(*structpb.Struct, StateStream) error
}

// StateStream is the server side of StreamState.
type StateStream interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type stateStream struct {
	grpc.ServerStream
}

func (x *stateStream) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

// RegisterEngineServer registers srv on s.
func RegisterEngineServer(s grpc.ServiceRegistrar, srv EngineServer) {
	s.RegisterService(&EngineServiceDesc, srv)
}

// EngineServiceDesc describes the TicTacToeEngine service.
var EngineServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EngineServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("CreateSession", EngineServer.CreateSession),
		unaryMethod("GetState", EngineServer.GetState),
		unaryMethod("PlayAt", EngineServer.PlayAt),
		unaryMethod("JumpTo", EngineServer.JumpTo),
		unaryMethod("NewGame", EngineServer.NewGame),
		unaryMethod("ChangeBoardSize", EngineServer.ChangeBoardSize),
		unaryMethod("ChangeDifficulty", EngineServer.ChangeDifficulty),
		unaryMethod("ToggleMode", EngineServer.ToggleMode),
		unaryMethod("ToggleHistorySortOrder", EngineServer.ToggleHistorySortOrder),
		unaryMethod("ToggleStatsVisibility", EngineServer.ToggleStatsVisibility),
		unaryMethod("DeleteSession", EngineServer.DeleteSession),
		unaryMethod("RenderBoard", EngineServer.RenderBoard),
		unaryMethod("GetOutcomes", EngineServer.GetOutcomes),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamState",
			Handler:       streamStateHandler,
			ServerStreams: true,
		},
	},
	Metadata: "tictactoe/v1/engine.proto",
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unaryMethod[R proto.Message](name string, call func(EngineServer, context.Context, *structpb.Struct) (R, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(EngineServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: fullMethod(name),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(EngineServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func streamStateHandler(srv any, stream grpc.ServerStream) error {
	m := new(structpb.Struct)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(EngineServer).StreamState(m, &stateStream{stream})
}
