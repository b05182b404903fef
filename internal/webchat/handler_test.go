package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/spa-desk/internal/assistant"
	"github.com/wolfman30/spa-desk/pkg/logging"
)

// fakeResponder echoes messages and keeps an in-memory history.
type fakeResponder struct {
	history map[string][]assistant.Message
	err     error
}

func newFakeResponder() *fakeResponder {
	return &fakeResponder{history: make(map[string][]assistant.Message)}
}

func (f *fakeResponder) Handle(_ context.Context, sessionID, text string) (assistant.Reply, error) {
	if f.err != nil {
		return assistant.Reply{}, f.err
	}
	f.history[sessionID] = append(f.history[sessionID],
		assistant.Message{Role: "user", Body: text},
		assistant.Message{Role: "assistant", Body: "echo: " + text},
	)
	return assistant.Reply{Text: "echo: " + text, Intent: assistant.KindNone, Action: "help"}, nil
}

func (f *fakeResponder) History(_ context.Context, sessionID string, limit int64) ([]assistant.Message, error) {
	msgs := f.history[sessionID]
	if limit > 0 && int64(len(msgs)) > limit {
		msgs = msgs[int64(len(msgs))-limit:]
	}
	return msgs, nil
}

func TestGenerateSessionID(t *testing.T) {
	s1 := generateSessionID()
	s2 := generateSessionID()
	assert.NotEmpty(t, s1)
	assert.NotEqual(t, s1, s2)
	assert.Len(t, s1, 32) // 16 bytes = 32 hex chars
}

func TestHandleMessage_HTTP(t *testing.T) {
	responder := newFakeResponder()
	h := NewHandler(responder, logging.New("error"))

	body := `{"session_id":"sess1","text":"Hello"}`
	req := httptest.NewRequest(http.MethodPost, "/chat/message", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.HandleMessage(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp OutboundMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "message", resp.Type)
	assert.Equal(t, "echo: Hello", resp.Text)
	assert.Equal(t, "sess1", resp.SessionID)
	assert.Equal(t, "none", resp.Intent)
	require.Len(t, responder.history["sess1"], 2)
}

func TestHandleMessage_MissingText(t *testing.T) {
	h := NewHandler(newFakeResponder(), logging.New("error"))

	req := httptest.NewRequest(http.MethodPost, "/chat/message", strings.NewReader(`{"text":"  "}`))
	w := httptest.NewRecorder()

	h.HandleMessage(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleMessage_GeneratesSessionID(t *testing.T) {
	h := NewHandler(newFakeResponder(), logging.New("error"))

	req := httptest.NewRequest(http.MethodPost, "/chat/message", strings.NewReader(`{"text":"Hi"}`))
	w := httptest.NewRecorder()

	h.HandleMessage(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp OutboundMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.SessionID, 32)
}

func TestHandleMessage_AssistantFailure(t *testing.T) {
	responder := newFakeResponder()
	responder.err = errors.New("redis down")
	h := NewHandler(responder, logging.New("error"))

	req := httptest.NewRequest(http.MethodPost, "/chat/message", strings.NewReader(`{"session_id":"s","text":"yes"}`))
	w := httptest.NewRecorder()

	h.HandleMessage(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "redis")
}

func TestHandleHistory(t *testing.T) {
	responder := newFakeResponder()
	responder.history["sess1"] = []assistant.Message{
		{Role: "user", Body: "Hello"},
		{Role: "assistant", Body: "Hi there!"},
	}
	h := NewHandler(responder, logging.New("error"))

	req := httptest.NewRequest(http.MethodGet, "/chat/history?session=sess1", nil)
	w := httptest.NewRecorder()

	h.HandleHistory(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Messages []HistoryMessage `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "user", resp.Messages[0].Role)
	assert.Equal(t, "Hello", resp.Messages[0].Text)
	assert.Equal(t, "assistant", resp.Messages[1].Role)
}

func TestHandleHistory_MissingParams(t *testing.T) {
	h := NewHandler(newFakeResponder(), logging.New("error"))

	req := httptest.NewRequest(http.MethodGet, "/chat/history", nil)
	w := httptest.NewRecorder()

	h.HandleHistory(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebSocketRoundTrip(t *testing.T) {
	responder := newFakeResponder()
	responder.history["sess1"] = []assistant.Message{{Role: "user", Body: "earlier"}}
	h := NewHandler(responder, logging.New("error"))

	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?session=sess1"
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	var msg OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	assert.Equal(t, "session", msg.Type)
	assert.Equal(t, "sess1", msg.SessionID)

	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	assert.Equal(t, "history", msg.Type)
	require.Len(t, msg.Messages, 1)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "ping"}))
	msg = OutboundMessage{}
	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	assert.Equal(t, "pong", msg.Type)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "stop talking"}))
	msg = OutboundMessage{}
	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	assert.Equal(t, "message", msg.Type)
	assert.Equal(t, "echo: stop talking", msg.Text)
}
