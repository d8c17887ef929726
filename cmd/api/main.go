package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/clinic-site/cmd/mainconfig"
	"github.com/wolfman30/clinic-site/internal/api/router"
	"github.com/wolfman30/clinic-site/internal/app/bootstrap"
	"github.com/wolfman30/clinic-site/internal/catalog"
	appconfig "github.com/wolfman30/clinic-site/internal/config"
	"github.com/wolfman30/clinic-site/internal/observability/metrics"
	"github.com/wolfman30/clinic-site/internal/site"
	"github.com/wolfman30/clinic-site/internal/webchat"
	"github.com/wolfman30/clinic-site/pkg/logging"
)

func main() {
	// A missing .env is fine outside local development.
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-site server",
		"env", cfg.Env,
		"port", cfg.Port,
		"chat_provider", cfg.ChatProvider,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	fmt.Println("Server exited gracefully")
}

type app struct {
	handler  http.Handler
	visitors *site.Registry
	closers  []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		a.visitors.Run(sweepCtx, cfg.VisitorSweepInterval)
	}()

	// Create HTTP server. WriteTimeout stays above the chat turn timeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      a.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ChatTurnTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		cancelSweep()
		<-sweepDone
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)

	// Unmount every visitor once no request can reach them.
	cancelSweep()
	<-sweepDone

	if err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// buildApp wires every component from config. ctx bounds background loops
// started here, such as the in-memory rate limiter's eviction.
func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*app, error) {
	a := &app{}

	c, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	metricsHandler, chatMetrics, siteMetrics := setupMetrics()

	loadAWS := func(ctx context.Context) (aws.Config, error) {
		return mainconfig.LoadAWSConfig(ctx, cfg)
	}

	chatService, err := bootstrap.BuildChatService(ctx, cfg, loadAWS, logger)
	if err != nil {
		return nil, err
	}
	emailSender, err := bootstrap.BuildEmailSender(ctx, cfg, loadAWS, logger)
	if err != nil {
		return nil, err
	}
	notifier := bootstrap.BuildDoctorNotifier(emailSender, cfg, c, logger)
	if notifier == nil {
		logger.Info("doctor notifications are simulated")
	}

	newWidget := bootstrap.BuildWidgetFactory(bootstrap.WidgetDeps{
		Catalog:  c,
		Service:  chatService,
		Notifier: notifier,
		Config:   cfg,
		Logger:   logger,
		Metrics:  chatMetrics,
	})

	visitors := site.NewRegistry(site.RegistryConfig{
		Catalog:      c,
		NewWidget:    newWidget,
		IdleTTL:      cfg.VisitorIdleTTL,
		SecureCookie: cfg.IsProduction(),
		Logger:       logger.Component("visitors"),
		Metrics:      siteMetrics,
	})
	a.visitors = visitors

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
	}

	a.handler = router.New(&router.Config{
		Logger:             logger,
		SiteHandler:        site.NewHandler(c, visitors, logger.Component("site"), siteMetrics),
		ChatHandler:        webchat.NewHandler(visitors, nil, logger.Component("webchat")),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		ChatLimiter:        bootstrap.BuildChatLimiter(ctx, cfg, redisClient, logger),
		ActiveVisitors:     visitors.Len,
	})
	return a, nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := catalog.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

func setupMetrics() (http.Handler, *metrics.ChatMetrics, *metrics.SiteMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return handler, metrics.NewChatMetrics(reg), metrics.NewSiteMetrics(reg)
}
