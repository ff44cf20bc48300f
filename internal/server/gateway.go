package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// apiPrefix is the path prefix served by the gateway
const apiPrefix = "/api/v1"

type unaryCall func(context.Context, *structpb.Struct) (proto.Message, error)

type route struct {
	method  string
	pattern string
	call    func(EngineServer) unaryCall
	body    bool
}

// wrap adapts a typed EngineServer method to unaryCall
func wrap[R proto.Message](fn func(EngineServer, context.Context, *structpb.Struct) (R, error)) func(EngineServer) unaryCall {
	return func(srv EngineServer) unaryCall {
		return func(ctx context.Context, req *structpb.Struct) (proto.Message, error) {
			resp, err := fn(srv, ctx, req)
			if err != nil {
				return nil, err
			}
			return resp, nil
		}
	}
}

var routes = []route{
	{http.MethodPost, "/sessions", wrap(EngineServer.CreateSession), true},
	{http.MethodGet, "/sessions/{session_id}", wrap(EngineServer.GetState), false},
	{http.MethodDelete, "/sessions/{session_id}", wrap(EngineServer.DeleteSession), false},
	{http.MethodPost, "/sessions/{session_id}/play/{index}", wrap(EngineServer.PlayAt), false},
	{http.MethodPost, "/sessions/{session_id}/jump/{index}", wrap(EngineServer.JumpTo), false},
	{http.MethodPost, "/sessions/{session_id}/new", wrap(EngineServer.NewGame), false},
	{http.MethodPost, "/sessions/{session_id}/size/{board_size}", wrap(EngineServer.ChangeBoardSize), false},
	{http.MethodPost, "/sessions/{session_id}/difficulty/{difficulty}", wrap(EngineServer.ChangeDifficulty), false},
	{http.MethodPost, "/sessions/{session_id}/mode/toggle", wrap(EngineServer.ToggleMode), false},
	{http.MethodPost, "/sessions/{session_id}/history/sort/toggle", wrap(EngineServer.ToggleHistorySortOrder), false},
	{http.MethodPost, "/sessions/{session_id}/stats/toggle", wrap(EngineServer.ToggleStatsVisibility), false},
	{http.MethodGet, "/sessions/{session_id}/board", wrap(EngineServer.RenderBoard), false},
	{http.MethodGet, "/outcomes", wrap(EngineServer.GetOutcomes), false},
}

// NewGateway returns a grpc-gateway mux serving the REST API for srv
func NewGateway(srv EngineServer) (*runtime.ServeMux, error) {
	mux := runtime.NewServeMux(
		runtime.WithMarshalerOption(runtime.MIMEWildcard, &runtime.HTTPBodyMarshaler{
			Marshaler: &runtime.JSONPb{
				MarshalOptions: protojson.MarshalOptions{
					UseProtoNames:   true,
					EmitUnpopulated: true,
				},
				UnmarshalOptions: protojson.UnmarshalOptions{
					DiscardUnknown: true,
				},
			},
		}),
	)

	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, apiPrefix+rt.pattern, handler(mux, rt.call(srv), rt.body)); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

// handler builds the request document from path parameters and, when
// allowed, a JSON body, then forwards the call.
func handler(mux *runtime.ServeMux, call unaryCall, body bool) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
		ctx := runtime.NewServerMetadataContext(r.Context(), runtime.ServerMetadata{})
		inbound, outbound := runtime.MarshalerForRequest(mux, r)

		req := &structpb.Struct{Fields: map[string]*structpb.Value{}}
		if body {
			if err := inbound.NewDecoder(r.Body).Decode(req); err != nil && !errors.Is(err, io.EOF) {
				runtime.HTTPError(ctx, mux, outbound, w, r, status.Errorf(codes.InvalidArgument, "decode body: %v", err))
				return
			}
			if req.Fields == nil {
				req.Fields = map[string]*structpb.Value{}
			}
		}
		for k, v := range pathParams {
			req.Fields[k] = structpb.NewStringValue(v)
		}

		resp, err := call(ctx, req)
		if err != nil {
			runtime.HTTPError(ctx, mux, outbound, w, r, err)
			return
		}
		runtime.ForwardResponseMessage(ctx, mux, outbound, w, r, resp)
	}
}
