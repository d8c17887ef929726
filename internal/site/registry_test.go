package site

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/clinic-site/internal/assistant"
	"github.com/wolfman30/clinic-site/internal/catalog"
	"github.com/wolfman30/clinic-site/internal/observability/metrics"
	"github.com/wolfman30/clinic-site/pkg/logging"
)

func newTestRegistry(t *testing.T, clock *fakeClock) *Registry {
	t.Helper()
	return NewRegistry(RegistryConfig{
		Catalog: catalog.Default(),
		NewWidget: func() *assistant.Widget {
			return assistant.NewWidget(assistant.WidgetConfig{Greeting: "hello", Logger: logging.New("error")})
		},
		IdleTTL: 10 * time.Minute,
		Now:     clock.Now,
		Logger:  logging.New("error"),
		Metrics: metrics.NewSiteMetrics(prometheus.NewRegistry()),
	})
}

func TestRegistryResolveSetsCookie(t *testing.T) {
	reg := newTestRegistry(t, newFakeClock())

	rec := httptest.NewRecorder()
	v := reg.Resolve(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotNil(t, v)
	require.NotNil(t, v.Widget())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, VisitorCookie, cookies[0].Name)
	assert.Equal(t, v.ID, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	assert.Same(t, v, reg.Resolve(rec, req))
	assert.Empty(t, rec.Result().Cookies())
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryUnknownCookieMountsNewVisitor(t *testing.T) {
	reg := newTestRegistry(t, newFakeClock())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: VisitorCookie, Value: "stale"})

	v := reg.Resolve(httptest.NewRecorder(), req)
	assert.NotEqual(t, "stale", v.ID)

	_, ok := reg.Existing(req)
	assert.False(t, ok)
}

func TestRegistryLeaveUnmountsWidget(t *testing.T) {
	reg := newTestRegistry(t, newFakeClock())
	v := reg.Create()

	assert.True(t, reg.Leave(v.ID))
	assert.False(t, reg.Leave(v.ID))
	_, err := v.Widget().Send(context.Background(), "hi")
	assert.ErrorIs(t, err, assistant.ErrUnmounted)
	assert.Equal(t, 0, reg.Len())
}

func TestRegistrySweepIdleVisitors(t *testing.T) {
	clock := newFakeClock()
	reg := newTestRegistry(t, clock)

	idle := reg.Create()
	clock.Advance(6 * time.Minute)
	active := reg.Create()
	clock.Advance(5 * time.Minute)

	assert.Equal(t, 1, reg.Sweep())
	_, ok := reg.Lookup(idle.ID)
	assert.False(t, ok)
	_, ok = reg.Lookup(active.ID)
	assert.True(t, ok)

	clock.Advance(9 * time.Minute)
	assert.Equal(t, 0, reg.Sweep(), "lookup refreshed the visitor")
}

func TestRegistryRunShutsDownOnCancel(t *testing.T) {
	reg := newTestRegistry(t, newFakeClock())
	v := reg.Create()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reg.Run(ctx, time.Hour)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, 0, reg.Len())
	_, err := v.Widget().Send(context.Background(), "hi")
	assert.ErrorIs(t, err, assistant.ErrUnmounted)
}

func TestVisitorView(t *testing.T) {
	clock := newFakeClock()
	reg := newTestRegistry(t, clock)
	v := reg.Create()

	v.ToggleMenu()
	v.ToggleFAQ(2)
	v.JumpTestimonial(clock.Now(), 3)
	clock.Advance(TestimonialInterval)

	view := v.View(clock.Now())
	assert.Equal(t, v.ID, view.VisitorID)
	assert.True(t, view.MenuOpen)
	assert.False(t, view.ViewerOpen)
	assert.Equal(t, 2, view.OpenFAQ)
	assert.Equal(t, 4, view.Testimonial)
	assert.Equal(t, FormIdle, view.Form)
	assert.False(t, view.ChatOpen)
}
