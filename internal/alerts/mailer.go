package alerts

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sudo-init-do/localfix/internal/config"
)

// Mailer sends one plain or HTML message.
type Mailer interface {
	Send(to, subject, body string) error
}

// NewMailer returns an SMTP mailer, or nil when SMTP is not configured.
func NewMailer(cfg config.SMTPConfig) Mailer {
	if !cfg.Enabled() {
		return nil
	}
	return &smtpMailer{cfg: cfg}
}

type smtpMailer struct {
	cfg config.SMTPConfig
}

func buildMessage(from, to, subject, body string) string {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	contentType := "text/plain"
	lb := strings.ToLower(body)
	if strings.Contains(lb, "<html") || strings.Contains(lb, "<body") || strings.Contains(lb, "<!doctype html") {
		contentType = "text/html"
	}
	fmt.Fprintf(&msg, "Content-Type: %s; charset=\"utf-8\"\r\n", contentType)
	msg.WriteString("\r\n" + body + "\r\n")
	return msg.String()
}

// Send sends a message over implicit TLS.
func (m *smtpMailer) Send(to, subject, body string) error {
	cfg := m.cfg
	addr := cfg.Host + ":" + cfg.Port

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: cfg.Host})
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer c.Close()

	if err := c.Auth(smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.Mail(cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := wc.Write([]byte(buildMessage(cfg.From, to, subject, body))); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return c.Quit()
}
