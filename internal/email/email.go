// Package email formats and sends plain-text mail over SMTP.
package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// SMTPConfig holds SMTP connection settings.
type SMTPConfig struct {
	Host string `yaml:"host" env:"HT_SMTP_HOST"`
	Port string `yaml:"port" env:"HT_SMTP_PORT" env-default:"587"`
	User string `yaml:"user" env:"HT_SMTP_USER"`
	Pass string `yaml:"pass" env:"HT_SMTP_PASS"`
	From string `yaml:"from" env:"HT_SMTP_FROM"`
}

// IsConfigured returns true if SMTP settings are present.
func (c SMTPConfig) IsConfigured() bool {
	return c.Host != "" && c.From != ""
}

// Message is a plain-text email.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender returns an SMTP sender, or a log-only sender in dev mode or
// when SMTP is not configured.
func NewSender(cfg SMTPConfig, devMode bool) Sender {
	if devMode || !cfg.IsConfigured() {
		return LogSender{}
	}
	return &SMTPSender{cfg: cfg}
}

// LogSender writes messages to the log instead of sending them.
type LogSender struct{}

// Send logs the message.
func (LogSender) Send(ctx context.Context, msg Message) error {
	slog.InfoContext(ctx, "email (not sent)",
		"to", strings.Join(msg.To, ", "),
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}

// SMTPSender sends mail through an SMTP server.
// Port 465 uses implicit TLS; any other port uses STARTTLS when offered.
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender creates an SMTP sender.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send delivers msg. The context bounds the dial and the whole exchange.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if !s.cfg.IsConfigured() {
		return fmt.Errorf("SMTP not configured")
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("no recipients")
	}

	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)
	dialer := &net.Dialer{Timeout: 15 * time.Second}

	var conn net.Conn
	var err error
	if s.cfg.Port == "465" {
		td := &tls.Dialer{NetDialer: dialer, Config: &tls.Config{ServerName: s.cfg.Host}}
		conn, err = td.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dialing %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return errors.Join(fmt.Errorf("setting deadline: %w", err), conn.Close())
		}
	}

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return errors.Join(fmt.Errorf("creating SMTP client: %w", err), conn.Close())
	}
	defer func() {
		if cerr := c.Close(); cerr != nil {
			slog.Debug("closing smtp client", "err", cerr)
		}
	}()

	if s.cfg.Port != "465" {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}

	if s.cfg.User != "" {
		if err := c.Auth(smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range msg.To {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt to %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(Format(s.cfg.From, msg)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}

	return c.Quit()
}

// Format renders msg with RFC 5322 headers.
func Format(from string, msg Message) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", from)
	fmt.Fprintf(&sb, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&sb, "Subject: %s\r\n", msg.Subject)
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(msg.Body)
	return []byte(sb.String())
}

// FormatPrice renders a whole-dollar amount as $1,234,567.
func FormatPrice(n int64) string {
	return "$" + FormatWithCommas(n)
}

// FormatWithCommas groups digits in threes.
func FormatWithCommas(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		return "-" + out
	}
	return out
}
