package support

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zjoart/varlixo/internal/user"
)

type frame struct {
	Event string          `json:"event"`
	ID    string          `json:"id"`
	Data  json.RawMessage `json:"data"`
}

type ackFrame struct {
	OK      bool            `json:"ok"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func newGatewayServer(t *testing.T, users map[string]user.User) string {
	t.Helper()
	authenticate := func(ctx context.Context, token string) (*user.User, error) {
		u, ok := users[token]
		if !ok {
			return nil, errors.New("unknown token")
		}
		return &u, nil
	}

	gw := NewGateway(NewManager(NewMemoryRepository(), NewHub()), authenticate, []string{"*"})
	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func emit(t *testing.T, conn *websocket.Conn, event, id string, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(frame{Event: event, ID: id, Data: raw}))
}

// next reads frames until one matches event (and id, for acks).
func next(t *testing.T, conn *websocket.Conn, event, id string) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Event == event && (id == "" || f.ID == id) {
			return f
		}
	}
}

func ack(t *testing.T, conn *websocket.Conn, id string) ackFrame {
	t.Helper()
	var a ackFrame
	require.NoError(t, json.Unmarshal(next(t, conn, EventAck, id).Data, &a))
	return a
}

func TestGatewayRejectsMissingToken(t *testing.T) {
	url := newGatewayServer(t, map[string]user.User{})

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(url+"?token=bogus", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGatewayConversationFlow(t *testing.T) {
	alice := newUser("alice")
	admin := newAdmin("root")
	url := newGatewayServer(t, map[string]user.User{"alice-token": alice, "admin-token": admin})

	adminConn := dial(t, url, http.Header{"Authorization": {"Bearer admin-token"}})
	userConn := dial(t, url+"?token=alice-token", nil)

	emit(t, userConn, EventMessage, "1", SendInput{Text: "hello"})
	a := ack(t, userConn, "1")
	require.True(t, a.OK, a.Message)
	var sent Message
	require.NoError(t, json.Unmarshal(a.Data, &sent))
	assert.EqualValues(t, 1, sent.Seq)

	next(t, adminConn, EventConversationUpdated, "")

	emit(t, adminConn, EventAdminList, "2", nil)
	a = ack(t, adminConn, "2")
	require.True(t, a.OK)
	var list []Conversation
	require.NoError(t, json.Unmarshal(a.Data, &list))
	require.Len(t, list, 1)
	conversationID := list[0].ID.Hex()

	emit(t, adminConn, EventAdminJoin, "3", conversationRequest{ConversationID: conversationID})
	require.True(t, ack(t, adminConn, "3").OK)
	var history History
	require.NoError(t, json.Unmarshal(next(t, adminConn, EventMessages, "").Data, &history))
	require.Len(t, history.Messages, 1)
	assert.Equal(t, "hello", history.Messages[0].Text)

	emit(t, adminConn, EventMessage, "4", SendInput{ConversationID: conversationID, Text: "how can I help?"})
	require.True(t, ack(t, adminConn, "4").OK)

	var pushed Message
	require.NoError(t, json.Unmarshal(next(t, userConn, EventMessage, "").Data, &pushed))
	assert.Equal(t, SenderAdmin, pushed.SenderKind)
	assert.EqualValues(t, 2, pushed.Seq)

	emit(t, userConn, EventAdminList, "5", nil)
	a = ack(t, userConn, "5")
	assert.False(t, a.OK)
	assert.Equal(t, "admin access required", a.Message)

	emit(t, userConn, "support:unknown", "6", nil)
	a = ack(t, userConn, "6")
	assert.False(t, a.OK)
	assert.Equal(t, "unknown event", a.Message)

	emit(t, userConn, EventJoin, "7", nil)
	a = ack(t, userConn, "7")
	require.True(t, a.OK, "socket stays usable after failed events")
	require.NoError(t, json.Unmarshal(a.Data, &history))
	assert.Len(t, history.Messages, 2)
}
