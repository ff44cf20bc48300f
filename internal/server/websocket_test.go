package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func readState(t *testing.T, conn *websocket.Conn) *structpb.Struct {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg wsMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	require.Equal(t, "state", msg.Type)

	st := new(structpb.Struct)
	require.NoError(t, protojson.Unmarshal(msg.Payload, st))
	return st
}

func TestWebsocket_StreamsState(t *testing.T) {
	hs, srv, _ := setupHTTPServer(t)
	ctx := context.Background()

	created, err := srv.CreateSession(ctx, &structpb.Struct{})
	require.NoError(t, err)
	id := str(created, fieldSessionID)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(hs.URL)+"/ws/sessions/"+id, nil)
	require.NoError(t, err)
	defer conn.Close()

	initial := readState(t, conn)
	assert.Equal(t, id, str(initial, fieldSessionID))
	assert.Equal(t, 0, num(initial, "cursor"))

	_, err = srv.PlayAt(ctx, &structpb.Struct{Fields: withInt(idField(id), fieldIndex, 6)})
	require.NoError(t, err)

	update := readState(t, conn)
	assert.Equal(t, 1, num(update, "cursor"))
	assert.Equal(t, "X", cells(update)[6])

	_, err = srv.DeleteSession(ctx, &structpb.Struct{Fields: idField(id)})
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestWebsocket_UnknownSession(t *testing.T) {
	hs, _, _ := setupHTTPServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(hs.URL)+"/ws/sessions/missing", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebsocket_ClientDisconnectUnsubscribes(t *testing.T) {
	hs, srv, _ := setupHTTPServer(t)

	created, err := srv.CreateSession(context.Background(), &structpb.Struct{})
	require.NoError(t, err)
	id := str(created, fieldSessionID)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(hs.URL)+"/ws/sessions/"+id, nil)
	require.NoError(t, err)
	readState(t, conn)
	require.Equal(t, 1, subscriberCount(srv, id))

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool {
		return subscriberCount(srv, id) == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestWriteWSWithHeartbeat_PingsWhenIdle(t *testing.T) {
	send := make(chan []byte)
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		writeWSWithHeartbeat(conn, send, 10*time.Millisecond)
	}))
	defer hs.Close()
	defer close(send)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(hs.URL), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg wsMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "ping", msg.Type)
}

func subscriberCount(srv *TicTacToeServer, id string) int {
	srv.subscribersMu.RLock()
	defer srv.subscribersMu.RUnlock()
	return len(srv.subscribers[id])
}
