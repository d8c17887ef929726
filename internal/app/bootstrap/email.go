package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/wolfman30/clinic-site/internal/assistant"
	"github.com/wolfman30/clinic-site/internal/catalog"
	appconfig "github.com/wolfman30/clinic-site/internal/config"
	"github.com/wolfman30/clinic-site/internal/notify"
	"github.com/wolfman30/clinic-site/pkg/logging"
)

// BuildEmailSender selects the outbound email provider. It returns nil when
// email is disabled or the provider has no credentials.
func BuildEmailSender(ctx context.Context, cfg *appconfig.Config, loadAWS AWSConfigLoader, logger *logging.Logger) (notify.EmailSender, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.EmailProvider {
	case "", "none":
		return nil, nil
	case "stub":
		return notify.NewStubEmailSender(logger), nil
	case "sendgrid":
		sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger)
		if sender == nil {
			logger.Warn("SENDGRID_API_KEY not set; doctor emails disabled")
			return nil, nil
		}
		return sender, nil
	case "ses":
		if loadAWS == nil {
			return nil, fmt.Errorf("bootstrap: ses requires an aws config loader")
		}
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.EmailFromAddress,
			FromName:  cfg.EmailFromName,
		}, logger), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown email provider %q", cfg.EmailProvider)
	}
}

// BuildDoctorNotifier emails the doctor about each booking when a sender and
// recipient are configured. A nil result leaves the simulated notifier in place.
func BuildDoctorNotifier(sender notify.EmailSender, cfg *appconfig.Config, c *catalog.Catalog, logger *logging.Logger) assistant.DoctorNotifier {
	if sender == nil || cfg == nil || strings.TrimSpace(cfg.DoctorNotifyEmail) == "" {
		return nil
	}
	if c == nil {
		c = catalog.Default()
	}
	n, err := notify.NewDoctorEmailNotifier(sender, notify.DoctorEmailConfig{
		Recipient:  cfg.DoctorNotifyEmail,
		DoctorName: assistant.DoctorShortName(c),
		Practice:   c.Doctor.Name,
	}, logger)
	if err != nil {
		if logger != nil {
			logger.Warn("doctor email notifier disabled", "error", err)
		}
		return nil
	}
	return n
}
