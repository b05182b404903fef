package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/wolfman30/spa-desk/pkg/logging"
)

// DigestMailer emails the nightly schedule digest to a fixed list of
// recipients. It satisfies digest.Notifier.
type DigestMailer struct {
	sender     EmailSender
	recipients []string
	logger     *logging.Logger
}

func NewDigestMailer(sender EmailSender, recipients []string, logger *logging.Logger) (*DigestMailer, error) {
	if sender == nil {
		return nil, errors.New("notify: email sender required")
	}
	var to []string
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			to = append(to, r)
		}
	}
	if len(to) == 0 {
		return nil, errors.New("notify: at least one digest recipient required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DigestMailer{sender: sender, recipients: to, logger: logger}, nil
}

// Notify sends to every recipient and reports every failure.
func (m *DigestMailer) Notify(ctx context.Context, subject, body string) error {
	msg := EmailMessage{
		Subject: subject,
		Body:    body,
		HTML:    "<pre style=\"font-family:monospace\">" + html.EscapeString(body) + "</pre>",
	}

	var errs []error
	for _, to := range m.recipients {
		msg.To = to
		if err := m.sender.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", to, err))
		}
	}
	if len(errs) > 0 {
		m.logger.Warn("digest email partially failed", "failed", len(errs), "recipients", len(m.recipients))
		return fmt.Errorf("notify: digest email: %w", errors.Join(errs...))
	}
	return nil
}
