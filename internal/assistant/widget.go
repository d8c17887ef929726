package assistant

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/clinic-site/internal/observability/metrics"
	"github.com/wolfman30/clinic-site/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultTurnTimeout = 60 * time.Second

const (
	outcomeReply = "reply"
	outcomeTool  = "tool"
	outcomeEmpty = "empty"
	outcomeError = "error"
)

// EventType names a widget change pushed to listeners.
type EventType string

const (
	EventMessage EventType = "message"
	EventStatus  EventType = "status"
	EventBusy    EventType = "busy"
)

// Event is a widget change pushed to subscribed listeners.
type Event struct {
	Type    EventType    `json:"type"`
	Message *ChatMessage `json:"message,omitempty"`
	Status  string       `json:"status,omitempty"`
	Busy    bool         `json:"busy"`
}

// WidgetConfig wires a Widget.
type WidgetConfig struct {
	Service     ChatService
	Session     SessionConfig
	Toolbox     *Toolbox
	Greeting    string
	TurnTimeout time.Duration
	Logger      *logging.Logger
	Metrics     *metrics.ChatMetrics
	Tracer      trace.Tracer
	Now         func() time.Time
}

// Widget owns one visitor's conversation: the transcript, the busy flag and
// the remote session handle, which is created lazily and at most once.
type Widget struct {
	service     ChatService
	sessionCfg  SessionConfig
	toolbox     *Toolbox
	turnTimeout time.Duration
	logger      *logging.Logger
	metrics     *metrics.ChatMetrics
	tracer      trace.Tracer
	now         func() time.Time

	mu      sync.Mutex
	session Session
	// starting is closed when an in-flight StartSession returns.
	starting   chan struct{}
	transcript []ChatMessage
	busy       bool
	status     string
	open       bool
	unmounted  bool

	listenerMu   sync.RWMutex
	listeners    map[int]func(Event)
	nextListener int
}

// NewWidget creates a widget whose transcript starts with the greeting.
func NewWidget(cfg WidgetConfig) *Widget {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TurnTimeout <= 0 {
		cfg.TurnTimeout = defaultTurnTimeout
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("clinic.internal.assistant")
	}
	w := &Widget{
		service:     cfg.Service,
		sessionCfg:  cfg.Session,
		toolbox:     cfg.Toolbox,
		turnTimeout: cfg.TurnTimeout,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		tracer:      cfg.Tracer,
		now:         cfg.Now,
		listeners:   make(map[int]func(Event)),
	}
	if strings.TrimSpace(cfg.Greeting) != "" {
		w.transcript = append(w.transcript, ChatMessage{Role: RoleModel, Text: cfg.Greeting, Timestamp: cfg.Now()})
	}
	return w
}

// Open marks the modal open and creates the session if there is none yet.
// ErrSessionUnavailable means the widget should offer a retry.
func (w *Widget) Open(ctx context.Context) error {
	w.mu.Lock()
	if w.unmounted {
		w.mu.Unlock()
		return ErrUnmounted
	}
	w.open = true
	w.mu.Unlock()
	_, err := w.ensureSession(ctx)
	return err
}

// Close hides the modal. The transcript and session survive.
func (w *Widget) Close() {
	w.mu.Lock()
	w.open = false
	w.mu.Unlock()
}

// IsOpen reports whether the modal is showing.
func (w *Widget) IsOpen() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.open
}

// HasSession reports whether the remote session handle exists.
func (w *Widget) HasSession() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session != nil
}

// Busy reports whether a turn is in flight.
func (w *Widget) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.busy
}

// Status returns the transient tool status label, if any.
func (w *Widget) Status() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Transcript returns a copy of the transcript in display order.
func (w *Widget) Transcript() []ChatMessage {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]ChatMessage, len(w.transcript))
	copy(out, w.transcript)
	return out
}

// Unmount discards the widget. Replies still in flight are dropped.
func (w *Widget) Unmount() {
	w.mu.Lock()
	w.unmounted = true
	w.open = false
	w.mu.Unlock()

	w.listenerMu.Lock()
	w.listeners = make(map[int]func(Event))
	w.listenerMu.Unlock()
}

// Subscribe registers fn for widget events and returns its cancel func.
func (w *Widget) Subscribe(fn func(Event)) func() {
	w.listenerMu.Lock()
	id := w.nextListener
	w.nextListener++
	w.listeners[id] = fn
	w.listenerMu.Unlock()

	return func() {
		w.listenerMu.Lock()
		delete(w.listeners, id)
		w.listenerMu.Unlock()
	}
}

// Send runs one turn: echo the visitor text, call the remote service,
// resolve any tool calls, and append exactly one model reply. Transport
// failures become the fixed apology and are never returned.
func (w *Widget) Send(ctx context.Context, text string) (ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		w.metrics.ObserveRejected("empty")
		return ChatMessage{}, ErrEmptyMessage
	}

	w.mu.Lock()
	if w.unmounted {
		w.mu.Unlock()
		return ChatMessage{}, ErrUnmounted
	}
	if w.busy {
		w.mu.Unlock()
		w.metrics.ObserveRejected("busy")
		return ChatMessage{}, ErrBusy
	}
	w.busy = true
	w.mu.Unlock()

	session, err := w.ensureSession(ctx)
	if err != nil {
		w.mu.Lock()
		w.busy = false
		w.mu.Unlock()
		w.metrics.ObserveRejected("no_session")
		return ChatMessage{}, err
	}

	w.mu.Lock()
	if w.unmounted {
		w.busy = false
		w.mu.Unlock()
		return ChatMessage{}, ErrUnmounted
	}
	userMsg := ChatMessage{Role: RoleUser, Text: text, Timestamp: w.now()}
	w.transcript = append(w.transcript, userMsg)
	w.mu.Unlock()

	w.emit(Event{Type: EventMessage, Message: &userMsg, Busy: true})
	w.emit(Event{Type: EventBusy, Busy: true})

	start := w.now()
	turnCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.turnTimeout)
	defer cancel()
	reply, outcome := w.runTurn(turnCtx, session, text)
	w.metrics.ObserveTurn(outcome, w.now().Sub(start).Seconds())

	modelMsg := ChatMessage{Role: RoleModel, Text: reply, Timestamp: w.now()}
	w.mu.Lock()
	w.busy = false
	w.status = ""
	discarded := w.unmounted
	if !discarded {
		w.transcript = append(w.transcript, modelMsg)
	}
	w.mu.Unlock()

	if discarded {
		w.logger.Info("assistant: reply discarded after unmount", "outcome", outcome)
		return ChatMessage{}, ErrUnmounted
	}

	w.emit(Event{Type: EventMessage, Message: &modelMsg})
	w.emit(Event{Type: EventBusy, Busy: false})
	return modelMsg, nil
}

func (w *Widget) runTurn(ctx context.Context, session Session, text string) (reply string, outcome string) {
	ctx, span := w.tracer.Start(ctx, "assistant.turn")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("assistant: turn panicked", "panic", fmt.Sprint(r))
			reply, outcome = FallbackApology, outcomeError
		}
		span.SetAttributes(attribute.String("chat.outcome", outcome))
	}()

	resp, err := session.Send(ctx, TextTurn(text))
	if err != nil {
		span.RecordError(err)
		w.logger.Error("assistant: chat turn failed", "error", err)
		return FallbackApology, outcomeError
	}

	outcome = outcomeReply
	if len(resp.ToolCalls) > 0 {
		results := w.resolveTools(ctx, resp.ToolCalls)
		resp, err = session.Send(ctx, ToolResultTurn(results))
		if err != nil {
			span.RecordError(err)
			w.logger.Error("assistant: tool result turn failed", "error", err, "tool_calls", len(results))
			return FallbackApology, outcomeError
		}
		outcome = outcomeTool
	}

	if strings.TrimSpace(resp.Text) == "" {
		return FallbackEmptyReply, outcomeEmpty
	}
	return resp.Text, outcome
}

func (w *Widget) resolveTools(ctx context.Context, calls []ToolCall) []ToolResult {
	results := make([]ToolResult, 0, len(calls))
	for _, call := range calls {
		toolCtx, span := w.tracer.Start(ctx, "assistant.tool",
			trace.WithAttributes(attribute.String("tool.name", call.Name)))
		result := w.toolbox.Resolve(toolCtx, call, w.setStatus)
		failed := IsErrorResult(result)
		span.SetAttributes(attribute.Bool("tool.failed", failed))
		span.End()

		w.metrics.ObserveToolCall(call.Name, failed)
		w.logger.Info("assistant: tool resolved", "tool", call.Name, "call_id", call.ID, "failed", failed)
		results = append(results, result)
	}
	return results
}

func (w *Widget) setStatus(label string) {
	w.mu.Lock()
	w.status = label
	w.mu.Unlock()
	w.emit(Event{Type: EventStatus, Status: label, Busy: true})
}

// ensureSession returns the session, creating it on first use. StartSession
// runs without holding w.mu; concurrent callers wait for the one in flight.
func (w *Widget) ensureSession(ctx context.Context) (Session, error) {
	w.mu.Lock()
	for w.session == nil && w.starting != nil {
		starting := w.starting
		w.mu.Unlock()
		select {
		case <-starting:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, ctx.Err())
		}
		w.mu.Lock()
	}
	if w.session != nil {
		session := w.session
		w.mu.Unlock()
		return session, nil
	}
	if w.service == nil {
		w.mu.Unlock()
		w.metrics.ObserveSession(ErrSessionUnavailable)
		return nil, ErrSessionUnavailable
	}
	starting := make(chan struct{})
	w.starting = starting
	service, cfg := w.service, w.sessionCfg
	w.mu.Unlock()

	session, err := service.StartSession(ctx, cfg)

	w.mu.Lock()
	w.starting = nil
	if err == nil {
		w.session = session
	}
	w.mu.Unlock()
	close(starting)

	w.metrics.ObserveSession(err)
	if err != nil {
		w.logger.Error("assistant: failed to start chat session", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}
	return session, nil
}

func (w *Widget) emit(ev Event) {
	w.listenerMu.RLock()
	fns := make([]func(Event), 0, len(w.listeners))
	for _, fn := range w.listeners {
		fns = append(fns, fn)
	}
	w.listenerMu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}
