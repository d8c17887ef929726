package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/clinic-site/internal/assistant"
	"github.com/wolfman30/clinic-site/internal/catalog"
	httpmiddleware "github.com/wolfman30/clinic-site/internal/http/middleware"
	"github.com/wolfman30/clinic-site/internal/observability/metrics"
	"github.com/wolfman30/clinic-site/internal/site"
	"github.com/wolfman30/clinic-site/internal/webchat"
	"github.com/wolfman30/clinic-site/pkg/logging"
	"golang.org/x/net/websocket"
)

type echoSession struct{}

func (echoSession) Send(_ context.Context, turn assistant.Turn) (assistant.Reply, error) {
	return assistant.Reply{Text: "echo: " + turn.Text}, nil
}

type echoService struct{}

func (echoService) StartSession(context.Context, assistant.SessionConfig) (assistant.Session, error) {
	return echoSession{}, nil
}

func newTestRouter(t *testing.T, limiter httpmiddleware.Limiter) (http.Handler, *site.Registry) {
	t.Helper()

	logger := logging.New("error")
	promReg := prometheus.NewRegistry()
	siteMetrics := metrics.NewSiteMetrics(promReg)
	c := catalog.Default()

	visitors := site.NewRegistry(site.RegistryConfig{
		Catalog: c,
		NewWidget: func() *assistant.Widget {
			return assistant.NewWidget(assistant.WidgetConfig{Service: echoService{}, Greeting: assistant.Greeting(c), Logger: logger})
		},
		Logger:  logger,
		Metrics: siteMetrics,
	})
	t.Cleanup(visitors.Shutdown)

	cfg := &Config{
		Logger:             logger,
		SiteHandler:        site.NewHandler(c, visitors, logger, siteMetrics),
		ChatHandler:        webchat.NewHandler(visitors, nil, logger),
		MetricsHandler:     promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: []string{"https://clinic.example"},
		ChatLimiter:        limiter,
		ActiveVisitors:     visitors.Len,
	}
	return New(cfg), visitors
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRouterHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, float64(0), resp["visitors"])
	assert.Equal(t, float64(0), resp["chat_connections"])
}

func TestRouterPageAndState(t *testing.T) {
	router, visitors := newTestRouter(t, nil)

	rr := serve(router, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), catalog.Default().Doctor.Name)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, 1, visitors.Len())

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodPost, "/ui/faq/0/toggle", nil)
	req.Header.Set("Accept", "application/json")
	req.AddCookie(cookies[0])
	rr = serve(router, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var view site.ViewState
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, 0, view.OpenFAQ)
}

func TestRouterAppointmentFlow(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	form := url.Values{"name": {"Jane Doe"}, "phone": {"555-1234"}}
	req := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := serve(router, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/#contact", rr.Header().Get("Location"))
}

func TestRouterChatMessage(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/chat/message", strings.NewReader(`{"text":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := serve(router, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var state webchat.ChatState
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &state))
	require.NotNil(t, state.Reply)
	assert.Equal(t, "echo: hi", state.Reply.Text)
}

func TestRouterChatRateLimit(t *testing.T) {
	router, _ := newTestRouter(t, httpmiddleware.NewRateLimiter(0, 1))

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/chat/message", strings.NewReader(`{"text":"hi"}`))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "192.0.2.10:1234"
		return serve(router, req).Code
	}
	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())

	rr := serve(router, httptest.NewRequest(http.MethodGet, "/chat/transcript", nil))
	assert.Equal(t, http.StatusOK, rr.Code, "only turns are limited")
}

func TestRouterChatRateLimitCoversWebSocket(t *testing.T) {
	router, _ := newTestRouter(t, httpmiddleware.NewRateLimiter(0, 1))
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/chat/message", "application/json", strings.NewReader(`{"text":"hi"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	conn, err := websocket.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/chat/ws", "", srv.URL)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var msg webchat.OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	assert.Equal(t, "transcript", msg.Type)

	require.NoError(t, websocket.JSON.Send(conn, webchat.InboundMessage{Type: "message", Text: "again"}))
	require.NoError(t, websocket.JSON.Receive(conn, &msg))
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, http.StatusTooManyRequests, msg.Code)
}

func TestRouterWidgetScriptAndStatic(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rr := serve(router, httptest.NewRequest(http.MethodGet, "/chat/widget.js", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/javascript", rr.Header().Get("Content-Type"))

	rr = serve(router, httptest.NewRequest(http.MethodGet, "/static/site.css", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	serve(router, httptest.NewRequest(http.MethodGet, "/", nil))

	rr := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "clinic_site_active_visitors")
}

func TestRouterCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/chat/message", nil)
	req.Header.Set("Origin", "https://clinic.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := serve(router, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://clinic.example", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterUnknownRoute(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	rr := serve(router, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
