package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	mail "github.com/wneessen/go-mail"

	"github.com/leo-rullani/backend-video-flix/internal/config"
)

// SMTPSender delivers messages through an SMTP relay.
type SMTPSender struct {
	client *mail.Client
	from   string
}

// NewSMTPSender configures an SMTP client from the email settings.
func NewSMTPSender(cfg config.EmailConfig) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("smtp sender: host is required")
	}

	policy := mail.TLSOpportunistic
	if cfg.UseTLS {
		policy = mail.TLSMandatory
	}
	// The port policy moves port 25 to 587, so the configured port must come after it.
	opts := []mail.Option{mail.WithTLSPortPolicy(policy), mail.WithPort(cfg.Port)}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp sender: %w", err)
	}
	return &SMTPSender{client: client, from: cfg.From}, nil
}

// Send delivers msg as a multipart text and HTML email.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return fmt.Errorf("invalid sender %q: %w", s.from, err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp deliver: %w", err)
	}
	return nil
}

// LogSender logs messages instead of sending them. It is used when no SMTP host is
// configured.
type LogSender struct {
	Logger *slog.Logger
}

// Send logs the recipient, subject and plain text body.
func (s LogSender) Send(_ context.Context, msg Message) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("email not sent, no smtp host configured", "to", msg.To, "subject", msg.Subject, "body", msg.Text)
	return nil
}

// NewSender picks the SMTP sender when a host is configured and the log sender otherwise.
func NewSender(cfg config.EmailConfig, logger *slog.Logger) (Sender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return LogSender{Logger: logger}, nil
	}
	return NewSMTPSender(cfg)
}
