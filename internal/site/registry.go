package site

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/clinic-site/internal/assistant"
	"github.com/wolfman30/clinic-site/internal/catalog"
	"github.com/wolfman30/clinic-site/internal/observability/metrics"
	"github.com/wolfman30/clinic-site/pkg/logging"
)

// VisitorCookie carries the visitor id between requests.
const VisitorCookie = "clinic_visitor"

const (
	defaultIdleTTL       = 30 * time.Minute
	defaultSweepInterval = time.Minute
)

// WidgetFactory builds the chat widget for a new visitor.
type WidgetFactory func() *assistant.Widget

// RegistryConfig wires a Registry.
type RegistryConfig struct {
	Catalog      *catalog.Catalog
	NewWidget    WidgetFactory
	IdleTTL      time.Duration
	SecureCookie bool
	Now          func() time.Time
	Logger       *logging.Logger
	Metrics      *metrics.SiteMetrics
}

// Registry holds the live visitors. Idle visitors are unmounted by Run.
type Registry struct {
	catalog      *catalog.Catalog
	newWidget    WidgetFactory
	idleTTL      time.Duration
	secureCookie bool
	now          func() time.Time
	logger       *logging.Logger
	metrics      *metrics.SiteMetrics

	mu       sync.Mutex
	visitors map[string]*Visitor
}

func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.Default()
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultIdleTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Registry{
		catalog:      cfg.Catalog,
		newWidget:    cfg.NewWidget,
		idleTTL:      cfg.IdleTTL,
		secureCookie: cfg.SecureCookie,
		now:          cfg.Now,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		visitors:     make(map[string]*Visitor),
	}
}

// Create mounts a new visitor.
func (r *Registry) Create() *Visitor {
	now := r.now()
	var widget *assistant.Widget
	if r.newWidget != nil {
		widget = r.newWidget()
	}
	v := newVisitor(uuid.NewString(), len(r.catalog.FAQs), len(r.catalog.Testimonials), now, widget)

	r.mu.Lock()
	r.visitors[v.ID] = v
	n := len(r.visitors)
	r.mu.Unlock()

	r.metrics.SetActiveVisitors(n)
	r.logger.Debug("site: visitor mounted", "visitor_id", v.ID)
	return v
}

// Lookup returns a live visitor and marks it as seen.
func (r *Registry) Lookup(id string) (*Visitor, bool) {
	r.mu.Lock()
	v, ok := r.visitors[id]
	r.mu.Unlock()
	if ok {
		v.touch(r.now())
	}
	return v, ok
}

// Resolve returns the visitor named by the request cookie, mounting a new
// one and setting the cookie when there is none.
func (r *Registry) Resolve(w http.ResponseWriter, req *http.Request) *Visitor {
	if c, err := req.Cookie(VisitorCookie); err == nil {
		if v, ok := r.Lookup(c.Value); ok {
			return v
		}
	}
	v := r.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     VisitorCookie,
		Value:    v.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return v
}

// Existing returns the request's visitor without mounting a new one.
func (r *Registry) Existing(req *http.Request) (*Visitor, bool) {
	c, err := req.Cookie(VisitorCookie)
	if err != nil {
		return nil, false
	}
	return r.Lookup(c.Value)
}

// Leave unmounts the visitor. Chat replies still in flight are discarded.
func (r *Registry) Leave(id string) bool {
	r.mu.Lock()
	v, ok := r.visitors[id]
	delete(r.visitors, id)
	n := len(r.visitors)
	r.mu.Unlock()
	if !ok {
		return false
	}
	v.unmount()
	r.metrics.SetActiveVisitors(n)
	r.logger.Debug("site: visitor unmounted", "visitor_id", id)
	return true
}

// Len returns the number of live visitors.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visitors)
}

// Sweep unmounts visitors idle longer than the TTL and returns how many.
// Visitors with a chat turn in flight are kept.
func (r *Registry) Sweep() int {
	now := r.now()
	var stale []*Visitor

	r.mu.Lock()
	for id, v := range r.visitors {
		if v.idleSince(now) < r.idleTTL {
			continue
		}
		if v.widget != nil && v.widget.Busy() {
			continue
		}
		stale = append(stale, v)
		delete(r.visitors, id)
	}
	n := len(r.visitors)
	r.mu.Unlock()

	for _, v := range stale {
		v.unmount()
	}
	if len(stale) > 0 {
		r.metrics.SetActiveVisitors(n)
		r.logger.Info("site: idle visitors unmounted", "count", len(stale), "remaining", n)
	}
	return len(stale)
}

// Run sweeps on every interval until ctx is done, then unmounts everyone.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.Shutdown()
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Shutdown unmounts every visitor.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	visitors := r.visitors
	r.visitors = make(map[string]*Visitor)
	r.mu.Unlock()

	for _, v := range visitors {
		v.unmount()
	}
	r.metrics.SetActiveVisitors(0)
}

// Now returns the registry clock's current time.
func (r *Registry) Now() time.Time {
	return r.now()
}
