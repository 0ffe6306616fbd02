package auth

import (
	"context"
	"fmt"
	"net/url"

	"github.com/evcraddock/hometrace/internal/email"
)

// Mailer sends magic link emails.
type Mailer struct {
	sender  email.Sender
	baseURL string
}

// NewMailer creates a mailer that builds links against baseURL.
func NewMailer(sender email.Sender, baseURL string) *Mailer {
	return &Mailer{sender: sender, baseURL: baseURL}
}

// SendMagicLink mails a browser login link and returns it.
func (m *Mailer) SendMagicLink(ctx context.Context, to, token string) (string, error) {
	return m.send(ctx, to, "/auth/verify", token,
		"HomeTrace login link",
		"Click the link below to log in to HomeTrace:\n\n%s\n\nThis link expires in 15 minutes and can only be used once.")
}

// SendCLIMagicLink mails a link that finishes with an API key for the CLI.
func (m *Mailer) SendCLIMagicLink(ctx context.Context, to, token string) (string, error) {
	return m.send(ctx, to, "/cli/auth/verify", token,
		"HomeTrace CLI login link",
		"Click the link below to get an API key for the ht command line tool:\n\n%s\n\nThis link expires in 15 minutes and can only be used once.")
}

func (m *Mailer) send(ctx context.Context, to, path, token, subject, bodyFormat string) (string, error) {
	link := fmt.Sprintf("%s%s?token=%s", m.baseURL, path, url.QueryEscape(token))

	if err := m.sender.Send(ctx, email.Message{
		To:      []string{to},
		Subject: subject,
		Body:    fmt.Sprintf(bodyFormat, link),
	}); err != nil {
		return "", fmt.Errorf("sending login email: %w", err)
	}
	return link, nil
}
