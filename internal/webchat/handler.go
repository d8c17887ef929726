package webchat

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/clinic-site/internal/assistant"
	httpmiddleware "github.com/wolfman30/clinic-site/internal/http/middleware"
	"github.com/wolfman30/clinic-site/internal/site"
	"github.com/wolfman30/clinic-site/pkg/logging"
	"golang.org/x/net/websocket"
)

//go:embed widget.js
var defaultWidgetJS []byte

// Visitors resolves the visitor behind a request.
type Visitors interface {
	Resolve(w http.ResponseWriter, r *http.Request) *site.Visitor
}

// Handler exposes a visitor's chat widget over HTTP and WebSocket.
type Handler struct {
	visitors Visitors
	logger   *logging.Logger
	widgetJS []byte
	limiter  httpmiddleware.Limiter

	mu       sync.RWMutex
	sessions map[string]*wsConn // visitorID -> active connection
}

type wsConn struct {
	conn *websocket.Conn
	done chan struct{}

	sendMu sync.Mutex
}

func (c *wsConn) send(msg OutboundMessage) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return websocket.JSON.Send(c.conn, msg)
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type       string        `json:"type"` // "message", "status", "busy", "transcript", "error", "pong"
	Text       string        `json:"text,omitempty"`
	Role       string        `json:"role,omitempty"`
	Timestamp  string        `json:"timestamp,omitempty"`
	Status     string        `json:"status,omitempty"`
	Busy       bool          `json:"busy"`
	Retry      bool          `json:"retry,omitempty"`
	Code       int           `json:"code,omitempty"`
	Transcript []HistoryItem `json:"transcript,omitempty"`
}

// HistoryItem is one transcript entry as the widget renders it.
type HistoryItem struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// ChatState is the JSON body of the chat endpoints.
type ChatState struct {
	Open       bool          `json:"open"`
	Busy       bool          `json:"busy"`
	Status     string        `json:"status,omitempty"`
	Retry      bool          `json:"retry,omitempty"`
	Error      string        `json:"error,omitempty"`
	Reply      *HistoryItem  `json:"reply,omitempty"`
	Transcript []HistoryItem `json:"transcript"`
}

// NewHandler creates a web chat handler. A nil widgetJS serves the bundled script.
func NewHandler(visitors Visitors, widgetJS []byte, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if widgetJS == nil {
		widgetJS = defaultWidgetJS
	}
	return &Handler{
		visitors: visitors,
		logger:   logger,
		widgetJS: widgetJS,
		sessions: make(map[string]*wsConn),
	}
}

// WithLimiter throttles chat turns sent over the socket. POST /chat/message
// is throttled by the router middleware with the same limiter.
func (h *Handler) WithLimiter(l httpmiddleware.Limiter) *Handler {
	h.limiter = l
	return h
}

// HandleOpen marks the chat modal open and starts the remote session on
// first use. A session failure answers 503 with retry set.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	v := h.visitors.Resolve(w, r)
	widget := v.Widget()

	err := widget.Open(r.Context())
	switch {
	case err == nil:
		h.respond(w, r, http.StatusOK, stateOf(widget))
	case errors.Is(err, assistant.ErrSessionUnavailable):
		h.logger.Warn("webchat: session unavailable on open", "visitor_id", v.ID, "error", err)
		state := stateOf(widget)
		state.Retry = true
		state.Error = "The assistant is unavailable right now."
		h.respond(w, r, http.StatusServiceUnavailable, state)
	case errors.Is(err, assistant.ErrUnmounted):
		h.respond(w, r, http.StatusGone, ChatState{Error: err.Error(), Transcript: []HistoryItem{}})
	default:
		h.logger.Error("webchat: open failed", "visitor_id", v.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// HandleClose hides the modal. The conversation is kept.
func (h *Handler) HandleClose(w http.ResponseWriter, r *http.Request) {
	v := h.visitors.Resolve(w, r)
	v.Widget().Close()
	h.respond(w, r, http.StatusOK, stateOf(v.Widget()))
}

// HandleMessage runs one chat turn for the visitor's widget.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	text, err := decodeText(r)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	v := h.visitors.Resolve(w, r)
	widget := v.Widget()

	reply, err := widget.Send(r.Context(), text)
	if err != nil {
		status, state := errorState(widget, err)
		if status >= http.StatusInternalServerError && !errors.Is(err, assistant.ErrSessionUnavailable) {
			h.logger.Error("webchat: send failed", "visitor_id", v.ID, "error", err)
		}
		h.respond(w, r, status, state)
		return
	}

	state := stateOf(widget)
	item := historyItem(reply)
	state.Reply = &item
	h.respond(w, r, http.StatusOK, state)
}

// HandleTranscript returns the transcript with the busy flag and status label.
func (h *Handler) HandleTranscript(w http.ResponseWriter, r *http.Request) {
	v := h.visitors.Resolve(w, r)
	writeJSON(w, http.StatusOK, stateOf(v.Widget()))
}

// HandleWebSocket upgrades to WebSocket and streams widget events.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	v := h.visitors.Resolve(w, r)
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, v)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, v *site.Visitor) {
	// Hijacked connections keep the server's request deadlines.
	_ = conn.SetDeadline(time.Time{})

	widget := v.Widget()
	wsc := &wsConn{conn: conn, done: make(chan struct{})}

	h.mu.Lock()
	prev := h.sessions[v.ID]
	h.sessions[v.ID] = wsc
	h.mu.Unlock()
	if prev != nil {
		_ = prev.conn.Close()
	}

	unsubscribe := widget.Subscribe(func(ev assistant.Event) {
		_ = wsc.send(eventMessage(ev))
	})
	defer func() {
		unsubscribe()
		h.mu.Lock()
		if h.sessions[v.ID] == wsc {
			delete(h.sessions, v.ID)
		}
		h.mu.Unlock()
		close(wsc.done)
	}()

	state := stateOf(widget)
	_ = wsc.send(OutboundMessage{Type: "transcript", Busy: state.Busy, Status: state.Status, Transcript: state.Transcript})

	req := conn.Request()
	ip := httpmiddleware.ClientIP(req)
	h.logger.Info("webchat: connection opened", "visitor_id", v.ID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "visitor_id", v.ID, "error", err)
			return
		}

		switch msg.Type {
		case "ping":
			_ = wsc.send(OutboundMessage{Type: "pong"})
		case "message":
			if !h.allow(req.Context(), ip) {
				_ = wsc.send(OutboundMessage{Type: "error", Text: "rate limit exceeded", Code: http.StatusTooManyRequests, Busy: widget.Busy()})
				continue
			}
			go h.processMessage(wsc, widget, msg.Text)
		}
	}
}

// allow fails open when the limiter backend errors.
func (h *Handler) allow(ctx context.Context, key string) bool {
	if h.limiter == nil {
		return true
	}
	ok, err := h.limiter.Allow(ctx, key)
	if err != nil {
		h.logger.Warn("webchat: rate limiter unavailable", "error", err, "remote_ip", key)
		return true
	}
	return ok
}

// processMessage runs a turn started over the socket. The reply itself
// reaches the socket through the widget's event stream.
func (h *Handler) processMessage(wsc *wsConn, widget *assistant.Widget, text string) {
	_, err := widget.Send(context.Background(), text)
	if err == nil {
		return
	}
	status, state := errorState(widget, err)
	select {
	case <-wsc.done:
		return
	default:
	}
	_ = wsc.send(OutboundMessage{Type: "error", Text: state.Error, Code: status, Retry: state.Retry, Busy: state.Busy})
}

// ActiveConnections returns how many visitors have a live socket.
func (h *Handler) ActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// HandleWidgetJS serves the widget script.
func (h *Handler) HandleWidgetJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(h.widgetJS)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, status int, state ChatState) {
	if wantsJSON(r) {
		writeJSON(w, status, state)
		return
	}
	http.Redirect(w, r, "/#chat", http.StatusSeeOther)
}

func errorState(widget *assistant.Widget, err error) (int, ChatState) {
	state := stateOf(widget)
	state.Error = err.Error()
	switch {
	case errors.Is(err, assistant.ErrEmptyMessage):
		return http.StatusBadRequest, state
	case errors.Is(err, assistant.ErrBusy):
		return http.StatusConflict, state
	case errors.Is(err, assistant.ErrSessionUnavailable):
		state.Retry = true
		state.Error = "The assistant is unavailable right now."
		return http.StatusServiceUnavailable, state
	case errors.Is(err, assistant.ErrUnmounted):
		return http.StatusGone, state
	default:
		return http.StatusInternalServerError, state
	}
}

func stateOf(widget *assistant.Widget) ChatState {
	transcript := widget.Transcript()
	items := make([]HistoryItem, 0, len(transcript))
	for _, m := range transcript {
		items = append(items, historyItem(m))
	}
	return ChatState{
		Open:       widget.IsOpen(),
		Busy:       widget.Busy(),
		Status:     widget.Status(),
		Transcript: items,
	}
}

func historyItem(m assistant.ChatMessage) HistoryItem {
	return HistoryItem{
		Role:      string(m.Role),
		Text:      m.Text,
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
	}
}

func decodeText(r *http.Request) (string, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return "", err
		}
		return req.Text, nil
	}
	if err := r.ParseForm(); err != nil {
		return "", err
	}
	return r.PostForm.Get("text"), nil
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
