package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"google.golang.org/protobuf/encoding/protojson"

	"tttengine/internal/session"
)

const wsIdlePingInterval = 30 * time.Second

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// ServeWS streams a session's state over a websocket: the current state
// first, then every change. Idle connections get a ping message.
func (s *TicTacToeServer) ServeWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessions.Get(id)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Str("session", id).Msg("websocket upgrade failed")
		return
	}

	updates := s.subscribe(id)
	send := make(chan []byte, subscriberBuffer)
	done := make(chan struct{})

	go func() {
		defer close(send)
		st := sess.State()
		for {
			msg, err := stateMessage(st)
			if err != nil {
				s.log.Error().Err(err).Str("session", id).Msg("encode state")
				return
			}
			select {
			case send <- msg:
			case <-done:
				return
			}
			var ok bool
			select {
			case st, ok = <-updates:
				if !ok {
					return
				}
			case <-done:
				return
			}
		}
	}()

	go func() {
		defer conn.Close()
		if err := writeWSWithHeartbeat(conn, send, wsIdlePingInterval); err != nil {
			s.log.Debug().Err(err).Str("session", id).Msg("websocket write")
		}
	}()

	// Inbound messages are ignored; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	close(done)
	s.unsubscribe(id, updates)
}

func stateMessage(st session.State) ([]byte, error) {
	payload, err := protojson.Marshal(stateToProto(st))
	if err != nil {
		return nil, err
	}
	return json.Marshal(wsMessage{Type: "state", Payload: payload})
}

// writeWSWithHeartbeat is the only writer on conn. It sends a ping message
// after interval without traffic and a close frame once send is closed.
func writeWSWithHeartbeat(conn *websocket.Conn, send <-chan []byte, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	lastWrite := time.Now()
	pingPayload, err := json.Marshal(wsMessage{Type: "ping"})
	if err != nil {
		return err
	}

	for {
		select {
		case msg, ok := <-send:
			if !ok {
				closing := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
				return conn.WriteControl(websocket.CloseMessage, closing, time.Now().Add(time.Second))
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return err
			}
			lastWrite = time.Now()
		case <-ticker.C:
			if time.Since(lastWrite) < interval {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, pingPayload); err != nil {
				return err
			}
			lastWrite = time.Now()
		}
	}
}
