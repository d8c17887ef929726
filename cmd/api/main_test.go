package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-site/internal/catalog"
	appconfig "github.com/wolfman30/clinic-site/internal/config"
	"github.com/wolfman30/clinic-site/pkg/logging"
)

func TestSetupMetricsExposesMetrics(t *testing.T) {
	handler, chat, site := setupMetrics()
	require.NotNil(t, handler)

	chat.ObserveTurn("reply", 0.2)
	site.SetActiveVisitors(3)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "clinic_site_active_visitors 3")
	assert.Contains(t, body, "go_goroutines")
}

func TestLoadCatalog(t *testing.T) {
	c, err := loadCatalog("")
	require.NoError(t, err)
	assert.Same(t, catalog.Default(), c)

	_, err = loadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("doctor: ["), 0o600))
	_, err = loadCatalog(bad)
	assert.Error(t, err)
}

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		Port:                   "0",
		Env:                    "test",
		ChatProvider:           "gemini",
		EmailProvider:          "none",
		BookingStepDelay:       0,
		ChatTurnTimeout:        5 * time.Second,
		VisitorIdleTTL:         time.Minute,
		VisitorSweepInterval:   time.Minute,
		ChatRateLimitPerMinute: 30,
	}
}

func TestBuildAppServesSite(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := buildApp(ctx, testConfig(), logging.New("error"))
	require.NoError(t, err)
	defer a.close()
	defer a.visitors.Shutdown()

	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), catalog.Default().Doctor.Name)

	// No Gemini key: the chat reports the session as unavailable.
	req := httptest.NewRequest(http.MethodPost, "/chat/open", nil)
	req.Header.Set("Accept", "application/json")
	rr = httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var state map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &state))
	assert.Equal(t, true, state["retry"])
}

func TestBuildAppRejectsUnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.ChatProvider = "palm"
	_, err := buildApp(context.Background(), cfg, logging.New("error"))
	assert.ErrorContains(t, err, "unknown chat provider")
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, testConfig(), logging.New("error")) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil && !strings.Contains(err.Error(), "address") {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
