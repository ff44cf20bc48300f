package server

import (
	"context"

	"google.golang.org/genproto/googleapis/api/httpbody"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls a TicTacToeEngine over a gRPC connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, fields map[string]*structpb.Value) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), &structpb.Struct{Fields: fields}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func idField(id string) map[string]*structpb.Value {
	return map[string]*structpb.Value{fieldSessionID: structpb.NewStringValue(id)}
}

func withInt(fields map[string]*structpb.Value, name string, n int) map[string]*structpb.Value {
	fields[name] = structpb.NewNumberValue(float64(n))
	return fields
}

// CreateSession starts a session. A zero size and empty strings select the
// server defaults.
func (c *Client) CreateSession(ctx context.Context, size int, difficulty, mode string) (*structpb.Struct, error) {
	fields := map[string]*structpb.Value{}
	if size != 0 {
		withInt(fields, fieldBoardSize, size)
	}
	if difficulty != "" {
		fields[fieldDifficulty] = structpb.NewStringValue(difficulty)
	}
	if mode != "" {
		fields[fieldMode] = structpb.NewStringValue(mode)
	}
	return c.invoke(ctx, "CreateSession", fields)
}

func (c *Client) GetState(ctx context.Context, id string) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetState", idField(id))
}

func (c *Client) PlayAt(ctx context.Context, id string, index int) (*structpb.Struct, error) {
	return c.invoke(ctx, "PlayAt", withInt(idField(id), fieldIndex, index))
}

func (c *Client) JumpTo(ctx context.Context, id string, index int) (*structpb.Struct, error) {
	return c.invoke(ctx, "JumpTo", withInt(idField(id), fieldIndex, index))
}

func (c *Client) NewGame(ctx context.Context, id string) (*structpb.Struct, error) {
	return c.invoke(ctx, "NewGame", idField(id))
}

func (c *Client) ChangeBoardSize(ctx context.Context, id string, size int) (*structpb.Struct, error) {
	return c.invoke(ctx, "ChangeBoardSize", withInt(idField(id), fieldBoardSize, size))
}

func (c *Client) ChangeDifficulty(ctx context.Context, id, difficulty string) (*structpb.Struct, error) {
	fields := idField(id)
	fields[fieldDifficulty] = structpb.NewStringValue(difficulty)
	return c.invoke(ctx, "ChangeDifficulty", fields)
}

func (c *Client) ToggleMode(ctx context.Context, id string) (*structpb.Struct, error) {
	return c.invoke(ctx, "ToggleMode", idField(id))
}

func (c *Client) ToggleHistorySortOrder(ctx context.Context, id string) (*structpb.Struct, error) {
	return c.invoke(ctx, "ToggleHistorySortOrder", idField(id))
}

func (c *Client) ToggleStatsVisibility(ctx context.Context, id string) (*structpb.Struct, error) {
	return c.invoke(ctx, "ToggleStatsVisibility", idField(id))
}

func (c *Client) DeleteSession(ctx context.Context, id string) error {
	_, err := c.invoke(ctx, "DeleteSession", idField(id))
	return err
}

func (c *Client) GetOutcomes(ctx context.Context) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetOutcomes", nil)
}

func (c *Client) RenderBoard(ctx context.Context, id string) (string, error) {
	out := new(httpbody.HttpBody)
	req := &structpb.Struct{Fields: idField(id)}
	if err := c.cc.Invoke(ctx, fullMethod("RenderBoard"), req, out); err != nil {
		return "", err
	}
	return string(out.GetData()), nil
}

// StateReceiver reads states from a StreamState call
type StateReceiver struct {
	stream grpc.ClientStream
}

// StreamState subscribes to a session's state changes
func (c *Client) StreamState(ctx context.Context, id string) (*StateReceiver, error) {
	stream, err := c.cc.NewStream(ctx, &EngineServiceDesc.Streams[0], fullMethod("StreamState"))
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&structpb.Struct{Fields: idField(id)}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &StateReceiver{stream: stream}, nil
}

// Recv blocks for the next state. It returns io.EOF once the session is
// deleted.
func (r *StateReceiver) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := r.stream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
