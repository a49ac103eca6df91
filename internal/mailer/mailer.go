package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"strings"

	"github.com/leo-rullani/backend-video-flix/internal/config"
	"github.com/leo-rullani/backend-video-flix/internal/logging"
)

// Message is a rendered email ready to be handed to a Sender.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

var htmlTemplate = template.Must(template.New("email").Parse(`<!doctype html>
<html>
  <head>
    <meta name="viewport" content="width=device-width, initial-scale=1.0" />
    <meta charset="utf-8" />
    <title>{{.Title}}</title>
  </head>
  <body style="margin:0;padding:0;background:#0b0b0b;color:#ffffff;font-family:Arial,sans-serif;">
    <div style="max-width:560px;margin:0 auto;padding:24px;">
      <h2 style="color:#e50914;margin:0 0 16px 0;">{{.Title}}</h2>
      <p style="margin:0 0 24px 0;line-height:1.6;">{{.Message}}</p>
      <a href="{{.Link}}" style="display:inline-block;background:#e50914;color:#ffffff;padding:12px 18px;border-radius:6px;text-decoration:none;">
        {{.Button}}
      </a>
      <p style="margin:24px 0 0 0;font-size:12px;opacity:0.85;word-break:break-all;">
        {{.Link}}
      </p>
    </div>
  </body>
</html>
`))

type emailContent struct {
	Title   string
	Message string
	Button  string
	Link    string
}

// Mailer renders the account emails and hands them to a Sender.
type Mailer struct {
	sender   Sender
	frontend config.FrontendConfig
	debug    bool
	logger   *slog.Logger
}

// New constructs a Mailer. In debug mode every confirmation link is also logged.
func New(sender Sender, frontend config.FrontendConfig, debug bool, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{sender: sender, frontend: frontend, debug: debug, logger: logger}
}

// SendActivation mails the account activation link.
func (m *Mailer) SendActivation(ctx context.Context, email, uid, token string) error {
	link := Link(m.frontend.BaseURL, m.frontend.ActivationPath, uid, token)
	return m.send(ctx, email, "ACTIVATION", link, emailContent{
		Title:   "Activate your Videoflix account",
		Message: "Please activate your account to sign in.",
		Button:  "Activate",
		Link:    link,
	}, "Activate your account:\n"+link)
}

// SendPasswordReset mails the password reset link.
func (m *Mailer) SendPasswordReset(ctx context.Context, email, uid, token string) error {
	link := Link(m.frontend.BaseURL, m.frontend.PasswordResetPath, uid, token)
	return m.send(ctx, email, "RESET", link, emailContent{
		Title:   "Reset your Videoflix password",
		Message: "Set a new password for your account.",
		Button:  "Reset password",
		Link:    link,
	}, "Reset your password:\n"+link)
}

func (m *Mailer) send(ctx context.Context, to, label, link string, content emailContent, text string) error {
	if m.debug {
		logging.FromContext(ctx).Warn("confirmation link", "kind", label, "link", link)
	}

	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, content); err != nil {
		return fmt.Errorf("render %s email: %w", strings.ToLower(label), err)
	}

	msg := Message{To: to, Subject: content.Title, Text: text, HTML: buf.String()}
	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s email: %w", strings.ToLower(label), err)
	}
	return nil
}

// Link builds a frontend confirmation link carrying uid and token as query parameters.
func Link(baseURL, path, uid, token string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	params := url.Values{}
	params.Set("uid", uid)
	params.Set("token", token)
	return strings.TrimRight(baseURL, "/") + path + "?" + params.Encode()
}
