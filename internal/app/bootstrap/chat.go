package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/wolfman30/clinic-site/internal/assistant"
	"github.com/wolfman30/clinic-site/internal/catalog"
	appconfig "github.com/wolfman30/clinic-site/internal/config"
	"github.com/wolfman30/clinic-site/internal/observability/metrics"
	"github.com/wolfman30/clinic-site/internal/site"
	"github.com/wolfman30/clinic-site/pkg/logging"
)

// AWSConfigLoader resolves the shared AWS SDK configuration on demand.
type AWSConfigLoader func(ctx context.Context) (aws.Config, error)

// BuildChatService selects the remote chat provider from config. A provider
// without credentials yields a nil service: widgets then report the session
// as unavailable and offer a retry instead of failing startup.
func BuildChatService(ctx context.Context, cfg *appconfig.Config, loadAWS AWSConfigLoader, logger *logging.Logger) (assistant.ChatService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	switch cfg.ChatProvider {
	case "", "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			logger.Warn("GEMINI_API_KEY not set; chat sessions will be unavailable")
			return nil, nil
		}
		svc, err := assistant.NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID, logger)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: gemini: %w", err)
		}
		logger.Info("chat provider ready", "provider", "gemini")
		return svc, nil
	case "bedrock":
		model := strings.TrimSpace(cfg.BedrockModelID)
		if model == "" {
			logger.Warn("BEDROCK_MODEL_ID not set; chat sessions will be unavailable")
			return nil, nil
		}
		if loadAWS == nil {
			return nil, fmt.Errorf("bootstrap: bedrock requires an aws config loader")
		}
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		svc, err := assistant.NewBedrockService(bedrockruntime.NewFromConfig(awsCfg), model)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: bedrock: %w", err)
		}
		if cfg.ChatWebSearch {
			logger.Warn("bedrock converse has no web search tool; CHAT_WEB_SEARCH is ignored")
		}
		logger.Info("chat provider ready", "provider", "bedrock", "model", model)
		return svc, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown chat provider %q", cfg.ChatProvider)
	}
}

// WidgetDeps carries what every visitor's chat widget shares.
type WidgetDeps struct {
	Catalog  *catalog.Catalog
	Service  assistant.ChatService
	Notifier assistant.DoctorNotifier
	Recorder assistant.BookingRecorder
	Config   *appconfig.Config
	Logger   *logging.Logger
	Metrics  *metrics.ChatMetrics
}

// BuildWidgetFactory returns the constructor the visitor registry calls on
// each new page view. The toolbox and session config are built once.
func BuildWidgetFactory(deps WidgetDeps) site.WidgetFactory {
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.Catalog == nil {
		deps.Catalog = catalog.Default()
	}
	if deps.Config == nil {
		deps.Config = &appconfig.Config{BookingStepDelay: assistant.DefaultStepDelay, ChatWebSearch: true}
	}

	toolbox := assistant.NewToolbox(assistant.NewBookingTool(assistant.BookingToolConfig{
		DoctorName: assistant.DoctorShortName(deps.Catalog),
		StepDelay:  deps.Config.BookingStepDelay,
		NoDelay:    deps.Config.BookingStepDelay <= 0,
		Notifier:   deps.Notifier,
		Recorder:   deps.Recorder,
		Logger:     deps.Logger.Component("booking"),
	}))
	sessionCfg := assistant.NewSessionConfig(deps.Catalog, toolbox)
	sessionCfg.WebSearch = deps.Config.ChatWebSearch
	greeting := assistant.Greeting(deps.Catalog)
	widgetLogger := deps.Logger.Component("assistant")

	return func() *assistant.Widget {
		return assistant.NewWidget(assistant.WidgetConfig{
			Service:     deps.Service,
			Session:     sessionCfg,
			Toolbox:     toolbox,
			Greeting:    greeting,
			TurnTimeout: deps.Config.ChatTurnTimeout,
			Logger:      widgetLogger,
			Metrics:     deps.Metrics,
		})
	}
}
