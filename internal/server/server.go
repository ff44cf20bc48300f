// Package server exposes game sessions over gRPC, a REST gateway and a
// websocket state feed.
package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/genproto/googleapis/api/httpbody"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"tttengine/internal/ai"
	"tttengine/internal/game"
	"tttengine/internal/logging"
	"tttengine/internal/session"
	"tttengine/internal/store"
)

// subscriberBuffer is the number of states queued per subscriber before
// updates are dropped.
const subscriberBuffer = 16

// Options are the defaults applied to new sessions.
type Options struct {
	BoardSize  int
	Difficulty ai.Difficulty
	ThinkDelay time.Duration
	Logger     zerolog.Logger
}

// TicTacToeServer implements EngineServer
type TicTacToeServer struct {
	sessions *store.SessionStore
	outcomes *store.OutcomeStore
	opts     Options
	log      zerolog.Logger

	// Subscribers for state updates (sessionID -> set of channels)
	subscribersMu sync.RWMutex
	subscribers   map[string]map[chan session.State]struct{}
}

var _ EngineServer = (*TicTacToeServer)(nil)

// NewTicTacToeServer creates a new server instance
func NewTicTacToeServer(sessions *store.SessionStore, outcomes *store.OutcomeStore, opts Options) *TicTacToeServer {
	if !game.ValidSize(opts.BoardSize) {
		opts.BoardSize = game.DefaultBoardSize
	}
	return &TicTacToeServer{
		sessions:    sessions,
		outcomes:    outcomes,
		opts:        opts,
		log:         logging.Component(opts.Logger, "server"),
		subscribers: make(map[string]map[chan session.State]struct{}),
	}
}

// CreateSession starts a session. Optional fields: board_size, difficulty
// and mode.
func (s *TicTacToeServer) CreateSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	size := s.opts.BoardSize
	if n, ok, err := intField(req, fieldBoardSize); err != nil {
		return nil, err
	} else if ok {
		size = n
	}
	if !game.ValidSize(size) {
		return nil, status.Errorf(codes.InvalidArgument, "board_size must be between %d and %d", game.MinBoardSize, game.MaxBoardSize)
	}

	difficulty := s.opts.Difficulty
	if raw := stringField(req, fieldDifficulty); raw != "" {
		d, err := ai.ParseDifficulty(raw)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "difficulty %q: %v", raw, err)
		}
		difficulty = d
	}

	mode := session.ModeTwoPlayer
	if raw := stringField(req, fieldMode); raw != "" {
		m, err := session.ParseMode(raw)
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "mode %q: %v", raw, err)
		}
		mode = m
	}

	id := uuid.New().String()
	sess, err := session.New(id,
		session.WithBoardSize(size),
		session.WithDifficulty(difficulty),
		session.WithMode(mode),
		session.WithThinkDelay(s.opts.ThinkDelay),
		session.WithLogger(s.opts.Logger),
		session.WithObserver(func(st session.State) { s.broadcastUpdate(id, st) }),
		session.WithOutcomeHook(s.outcomes.Record),
	)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to create session: %v", err)
	}
	if err := s.sessions.Create(sess); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to store session: %v", err)
	}

	s.log.Info().
		Str("session", id).
		Int("size", size).
		Str("mode", mode.String()).
		Str("difficulty", difficulty.String()).
		Msg("session created")
	return stateToProto(sess.State()), nil
}

// GetState returns the current snapshot of a session
func (s *TicTacToeServer) GetState(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	return stateToProto(sess.State()), nil
}

// PlayAt places a mark. Illegal moves leave the state unchanged and are
// not errors.
func (s *TicTacToeServer) PlayAt(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	index, err := requiredInt(req, fieldIndex)
	if err != nil {
		return nil, err
	}
	return stateToProto(sess.PlayAt(index)), nil
}

// JumpTo moves the history cursor
func (s *TicTacToeServer) JumpTo(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	index, err := requiredInt(req, fieldIndex)
	if err != nil {
		return nil, err
	}
	return stateToProto(sess.JumpTo(index)), nil
}

func (s *TicTacToeServer) NewGame(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	return stateToProto(sess.NewGame()), nil
}

func (s *TicTacToeServer) ChangeBoardSize(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	size, err := requiredInt(req, fieldBoardSize)
	if err != nil {
		return nil, err
	}
	st, err := sess.ChangeBoardSize(size)
	if err != nil {
		return nil, toStatus(err)
	}
	return stateToProto(st), nil
}

func (s *TicTacToeServer) ChangeDifficulty(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	d, err := ai.ParseDifficulty(stringField(req, fieldDifficulty))
	if err != nil {
		return nil, toStatus(err)
	}
	st, err := sess.ChangeDifficulty(d)
	if err != nil {
		return nil, toStatus(err)
	}
	return stateToProto(st), nil
}

func (s *TicTacToeServer) ToggleMode(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	return stateToProto(sess.ToggleMode()), nil
}

func (s *TicTacToeServer) ToggleHistorySortOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	return stateToProto(sess.ToggleHistorySortOrder()), nil
}

func (s *TicTacToeServer) ToggleStatsVisibility(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sess, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	return stateToProto(sess.ToggleStatsVisibility()), nil
}

// DeleteSession removes a session and ends its state streams
func (s *TicTacToeServer) DeleteSession(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, fieldSessionID)
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id is required")
	}
	if err := s.sessions.Delete(id); err != nil {
		return nil, toStatus(err)
	}
	s.dropSubscribers(id)
	s.log.Info().Str("session", id).Msg("session deleted")
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldSessionID: structpb.NewStringValue(id),
	}}, nil
}

// RenderBoard returns the board as plain text
func (s *TicTacToeServer) RenderBoard(ctx context.Context, req *structpb.Struct) (*httpbody.HttpBody, error) {
	sess, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	return &httpbody.HttpBody{
		ContentType: "text/plain; charset=utf-8",
		Data:        []byte(renderBoard(sess.State())),
	}, nil
}

// GetOutcomes returns finished-game tallies across all sessions
func (s *TicTacToeServer) GetOutcomes(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tallies := s.outcomes.All()
	values := make([]*structpb.Value, len(tallies))
	for i, t := range tallies {
		values[i] = tallyToProto(t)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"outcomes": structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}, nil
}

// StreamState sends the current state, then every change, until the client
// goes away or the session is deleted.
func (s *TicTacToeServer) StreamState(req *structpb.Struct, stream StateStream) error {
	sess, err := s.lookup(req)
	if err != nil {
		return err
	}

	updateCh := s.subscribe(sess.ID())
	defer s.unsubscribe(sess.ID(), updateCh)

	if err := stream.Send(stateToProto(sess.State())); err != nil {
		return err
	}

	for {
		select {
		case st, ok := <-updateCh:
			if !ok {
				return nil
			}
			if err := stream.Send(stateToProto(st)); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return stream.Context().Err()
		}
	}
}

func (s *TicTacToeServer) lookup(req *structpb.Struct) (*session.Session, error) {
	id := stringField(req, fieldSessionID)
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id is required")
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, toStatus(err)
	}
	return sess, nil
}

// toStatus maps domain errors to gRPC status errors
func toStatus(err error) error {
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		return status.Error(codes.NotFound, "session not found")
	case errors.Is(err, game.ErrInvalidBoardSize):
		return status.Errorf(codes.InvalidArgument, "board_size must be between %d and %d", game.MinBoardSize, game.MaxBoardSize)
	case errors.Is(err, ai.ErrUnknownDifficulty):
		return status.Error(codes.InvalidArgument, "difficulty must be one of easy, medium, hard")
	case errors.Is(err, session.ErrUnknownMode):
		return status.Error(codes.InvalidArgument, "mode must be two-player or vs-computer")
	default:
		return status.Errorf(codes.Internal, "%v", err)
	}
}

// subscribe adds a channel to receive updates for a session
func (s *TicTacToeServer) subscribe(id string) chan session.State {
	ch := make(chan session.State, subscriberBuffer)
	s.subscribersMu.Lock()
	defer s.subscribersMu.Unlock()

	if s.subscribers[id] == nil {
		s.subscribers[id] = make(map[chan session.State]struct{})
	}
	s.subscribers[id][ch] = struct{}{}
	return ch
}

// unsubscribe removes a channel from receiving updates. Channels already
// closed by dropSubscribers are left alone.
func (s *TicTacToeServer) unsubscribe(id string, ch chan session.State) {
	s.subscribersMu.Lock()
	defer s.subscribersMu.Unlock()

	subs, ok := s.subscribers[id]
	if !ok {
		return
	}
	if _, ok := subs[ch]; !ok {
		return
	}
	delete(subs, ch)
	if len(subs) == 0 {
		delete(s.subscribers, id)
	}
	close(ch)
}

// dropSubscribers closes every channel of a deleted session
func (s *TicTacToeServer) dropSubscribers(id string) {
	s.subscribersMu.Lock()
	defer s.subscribersMu.Unlock()

	for ch := range s.subscribers[id] {
		close(ch)
	}
	delete(s.subscribers, id)
}

// broadcastUpdate sends a state to all subscribers of a session
func (s *TicTacToeServer) broadcastUpdate(id string, st session.State) {
	s.subscribersMu.RLock()
	defer s.subscribersMu.RUnlock()

	for ch := range s.subscribers[id] {
		select {
		case ch <- st:
		default:
			// Channel full, skip (non-blocking)
			s.log.Warn().Str("session", id).Msg("subscriber lagging, update dropped")
		}
	}
}

// Close ends every state stream and websocket feed so a graceful stop does
// not wait on them.
func (s *TicTacToeServer) Close() {
	s.subscribersMu.Lock()
	defer s.subscribersMu.Unlock()

	for id, subs := range s.subscribers {
		for ch := range subs {
			close(ch)
		}
		delete(s.subscribers, id)
	}
}
