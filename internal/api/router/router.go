package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpmiddleware "github.com/wolfman30/clinic-site/internal/http/middleware"
	"github.com/wolfman30/clinic-site/internal/site"
	"github.com/wolfman30/clinic-site/internal/webchat"
	"github.com/wolfman30/clinic-site/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	SiteHandler        *site.Handler
	ChatHandler        *webchat.Handler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// ChatLimiter throttles chat turns per client IP (optional).
	ChatLimiter httpmiddleware.Limiter

	// ActiveVisitors reports mounted visitors on /health (optional).
	ActiveVisitors func() int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Operational endpoints
	r.Group(func(public chi.Router) {
		var chatConnections func() int
		if cfg.ChatHandler != nil {
			chatConnections = cfg.ChatHandler.ActiveConnections
		}
		public.Get("/health", healthHandler(cfg.ActiveVisitors, chatConnections))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Page and presentation state
	if cfg.SiteHandler != nil {
		h := cfg.SiteHandler
		r.Group(func(page chi.Router) {
			page.Use(middleware.Compress(5))
			page.Get("/", h.Page)
			page.Handle("/static/*", h.Static())
		})
		r.Route("/ui", func(ui chi.Router) {
			ui.Get("/state", h.State)
			ui.Post("/menu/toggle", h.ToggleMenu)
			ui.Post("/viewer/toggle", h.ToggleViewer)
			ui.Post("/faq/{index}/toggle", h.ToggleFAQ)
			ui.Post("/testimonials/next", h.NextTestimonial)
			ui.Post("/testimonials/prev", h.PrevTestimonial)
			ui.Post("/testimonials/{index}", h.JumpTestimonial)
		})
		r.Route("/appointments", func(appt chi.Router) {
			appt.Post("/", h.SubmitAppointment)
			appt.Post("/dismiss", h.DismissAppointment)
		})
		r.Post("/visitor/leave", h.Leave)
	}

	// Chat widget
	if cfg.ChatHandler != nil {
		h := cfg.ChatHandler
		r.Route("/chat", func(chat chi.Router) {
			chat.With(middleware.Compress(5)).Get("/widget.js", h.HandleWidgetJS)
			chat.Post("/open", h.HandleOpen)
			chat.Post("/close", h.HandleClose)
			chat.Get("/transcript", h.HandleTranscript)
			chat.Get("/ws", h.HandleWebSocket)
			if cfg.ChatLimiter != nil {
				h.WithLimiter(cfg.ChatLimiter)
				chat.With(httpmiddleware.RateLimit(cfg.ChatLimiter, cfg.Logger)).Post("/message", h.HandleMessage)
			} else {
				chat.Post("/message", h.HandleMessage)
			}
		})
	}

	return r
}

func healthHandler(activeVisitors, chatConnections func() int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"status": "ok"}
		if activeVisitors != nil {
			resp["visitors"] = activeVisitors()
		}
		if chatConnections != nil {
			resp["chat_connections"] = chatConnections()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
