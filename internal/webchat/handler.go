// Package webchat carries chat widget traffic to the booking assistant over
// a WebSocket, with plain HTTP endpoints as a fallback.
package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/spa-desk/internal/assistant"
	"github.com/wolfman30/spa-desk/pkg/logging"
)

const (
	historyLimit   = 50
	maxMessageSize = 2000
)

// Responder answers chat messages.
type Responder interface {
	Handle(ctx context.Context, sessionID, text string) (assistant.Reply, error)
	History(ctx context.Context, sessionID string, limit int64) ([]assistant.Message, error)
}

// Handler manages web chat connections and messages.
type Handler struct {
	responder Responder
	logger    *logging.Logger
}

type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(msg OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return websocket.JSON.Send(c.conn, msg)
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string           `json:"type"` // "message", "history", "session", "error", "pong"
	Text      string           `json:"text,omitempty"`
	Role      string           `json:"role,omitempty"`
	SessionID string           `json:"session_id,omitempty"`
	Intent    string           `json:"intent,omitempty"`
	Action    string           `json:"action,omitempty"`
	Silent    bool             `json:"silent,omitempty"`
	Timestamp string           `json:"timestamp,omitempty"`
	Messages  []HistoryMessage `json:"messages,omitempty"`
}

// HistoryMessage is a simplified message for history responses.
type HistoryMessage struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// NewHandler creates a web chat handler.
func NewHandler(responder Responder, logger *logging.Logger) *Handler {
	if responder == nil {
		panic("webchat: responder required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		responder: responder,
		logger:    logger,
	}
}

// generateSessionID creates a random session identifier.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

// HandleWebSocket upgrades to WebSocket and handles real-time messaging.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	ctx := r.Context()
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	if sessionID == "" {
		sessionID = generateSessionID()
	}

	wsc := &wsConn{conn: conn}
	_ = wsc.send(OutboundMessage{Type: "session", SessionID: sessionID})

	if history := h.history(ctx, sessionID, historyLimit); len(history) > 0 {
		_ = wsc.send(OutboundMessage{Type: "history", Messages: history})
	}

	h.logger.Info("webchat: connection opened", "session_id", sessionID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err)
			return
		}

		if msg.Type == "ping" {
			_ = wsc.send(OutboundMessage{Type: "pong"})
			continue
		}
		if msg.Type != "message" || strings.TrimSpace(msg.Text) == "" {
			continue
		}

		_ = wsc.send(h.respond(ctx, sessionID, msg.Text))
	}
}

// respond runs one message through the assistant and renders the result.
func (h *Handler) respond(ctx context.Context, sessionID, text string) OutboundMessage {
	if len(text) > maxMessageSize {
		return OutboundMessage{Type: "error", Text: "Message too long."}
	}
	reply, err := h.responder.Handle(ctx, sessionID, text)
	if err != nil {
		h.logger.Error("webchat: assistant failed", "error", err, "session_id", sessionID)
		return OutboundMessage{
			Type: "error",
			Text: "Sorry, something went wrong. Please try again.",
		}
	}
	return OutboundMessage{
		Type:      "message",
		Role:      "assistant",
		Text:      reply.Text,
		SessionID: sessionID,
		Intent:    string(reply.Intent),
		Action:    reply.Action,
		Silent:    reply.Silent,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// HandleMessage is the HTTP fallback for sending messages. The reply comes
// back in the response body.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Text      string `json:"text"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<14)).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = generateSessionID()
	}

	out := h.respond(r.Context(), req.SessionID, req.Text)
	out.SessionID = req.SessionID

	status := http.StatusOK
	if out.Type == "error" {
		status = http.StatusInternalServerError
		if len(req.Text) > maxMessageSize {
			status = http.StatusRequestEntityTooLarge
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(out)
}

// HandleHistory returns chat history for a session.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}

	msgs, err := h.responder.History(r.Context(), sessionID, 100)
	if err != nil {
		h.logger.Error("webchat: failed to load history", "error", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"messages": toHistory(msgs)})
}

func (h *Handler) history(ctx context.Context, sessionID string, limit int64) []HistoryMessage {
	msgs, err := h.responder.History(ctx, sessionID, limit)
	if err != nil {
		h.logger.Warn("webchat: failed to load history", "error", err, "session_id", sessionID)
		return nil
	}
	return toHistory(msgs)
}

func toHistory(msgs []assistant.Message) []HistoryMessage {
	history := make([]HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, HistoryMessage{
			Role:      m.Role,
			Text:      m.Body,
			Timestamp: m.Timestamp.Format(time.RFC3339),
		})
	}
	return history
}
