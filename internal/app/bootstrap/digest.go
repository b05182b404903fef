package bootstrap

import (
	"context"
	"fmt"
	"strings"

	appconfig "github.com/wolfman30/spa-desk/internal/config"
	"github.com/wolfman30/spa-desk/internal/digest"
	"github.com/wolfman30/spa-desk/internal/notify"
	"github.com/wolfman30/spa-desk/pkg/logging"
)

// BuildDigestNotifier picks how the digest is delivered. Without an email
// provider the digest only goes to the log.
func BuildDigestNotifier(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (digest.Notifier, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return digest.LogNotifier{Logger: logger}, nil
	}

	var sender notify.EmailSender
	switch cfg.EmailProvider {
	case "":
		return digest.LogNotifier{Logger: logger}, nil
	case "sendgrid":
		sg := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger)
		if sg == nil {
			return nil, fmt.Errorf("bootstrap: SENDGRID_API_KEY is required for sendgrid email")
		}
		sender = sg
	case "ses":
		ses, err := notify.NewSESSender(ctx, notify.SESConfig{
			Region:    cfg.AWSRegion,
			FromEmail: cfg.EmailFrom,
			FromName:  cfg.EmailFromName,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		sender = ses
	default:
		return nil, fmt.Errorf("bootstrap: unknown email provider %q", cfg.EmailProvider)
	}

	mailer, err := notify.NewDigestMailer(sender, cfg.DigestRecipients, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return mailer, nil
}

// BuildDigestScheduler wires the nightly schedule digest. It returns nil
// when the digest is disabled.
func BuildDigestScheduler(ctx context.Context, cfg *appconfig.Config, lister digest.Lister, logger *logging.Logger) (*digest.Scheduler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if !cfg.DigestEnabled {
		return nil, nil
	}
	if lister == nil {
		return nil, fmt.Errorf("bootstrap: digest needs an appointment lister")
	}
	if logger == nil {
		logger = logging.Default()
	}

	notifier, err := BuildDigestNotifier(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	spec := strings.TrimSpace(cfg.DigestSchedule)
	if spec == "" {
		spec = digest.DefaultSchedule
	}
	loc := cfg.Location()
	scheduler, err := digest.Schedule(spec, loc, digest.NewJob(lister, notifier, loc, logger))
	if err != nil {
		return nil, fmt.Errorf("bootstrap: schedule digest: %w", err)
	}
	logger.Info("schedule digest enabled", "spec", spec, "next_run", scheduler.Next(), "email_provider", cfg.EmailProvider)
	return scheduler, nil
}
