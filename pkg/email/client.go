// Package email sends member invitations and payment receipts over SMTP
// with gomail.
package email

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/Alijeyrad/medcenter_backend/config"
)

type Client struct {
	enabled bool
	from    string
	timeout time.Duration
	dialer  *gomail.Dialer
}

// New builds a client from the email section. A disabled client accepts
// messages and returns ErrDisabled.
func New(cfg config.EmailConfig) (*Client, error) {
	s := cfg.SMTP
	port := s.Port
	if port == 0 {
		port = 587
	}
	d := gomail.NewDialer(s.Host, port, s.Username, s.Password)
	d.SSL = s.UseTLS
	if s.UseTLS {
		d.TLSConfig = &tls.Config{ServerName: s.Host, MinVersion: tls.VersionTLS12}
	}

	timeout := time.Duration(s.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{enabled: cfg.Enabled, from: cfg.From, timeout: timeout, dialer: d}, nil
}

// Send delivers m, giving up at the configured SMTP timeout or the ctx
// deadline, whichever is sooner.
func (c *Client) Send(ctx context.Context, m Message) error {
	if !c.enabled {
		return ErrDisabled{}
	}
	msg, err := buildMessage(c.from, m)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.dialer.DialAndSend(msg) }()

	select {
	case err := <-done:
		if err != nil {
			return ErrSend{Provider: "smtp", Err: err}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildMessage(from string, m Message) (*gomail.Message, error) {
	from = strings.TrimSpace(from)
	if from == "" {
		return nil, ErrInvalidMessage{Reason: "from is required"}
	}
	subject := strings.TrimSpace(m.Subject)
	if subject == "" {
		return nil, ErrInvalidMessage{Reason: "subject is required"}
	}
	to := cleanAddrs(m.To)
	if len(to) == 0 {
		return nil, ErrInvalidMessage{Reason: "at least one recipient is required"}
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to...)
	if cc := cleanAddrs(m.CC); len(cc) > 0 {
		msg.SetHeader("Cc", cc...)
	}
	if bcc := cleanAddrs(m.BCC); len(bcc) > 0 {
		msg.SetHeader("Bcc", bcc...)
	}
	msg.SetHeader("Subject", subject)
	for k, v := range m.Headers {
		if k, v = strings.TrimSpace(k), strings.TrimSpace(v); k != "" && v != "" {
			msg.SetHeader(k, v)
		}
	}

	text, htmlBody := strings.TrimSpace(m.TextBody) != "", strings.TrimSpace(m.HTMLBody) != ""
	switch {
	case text && htmlBody:
		msg.SetBody("text/plain", m.TextBody)
		msg.AddAlternative("text/html", m.HTMLBody)
	case htmlBody:
		msg.SetBody("text/html", m.HTMLBody)
	case text:
		msg.SetBody("text/plain", m.TextBody)
	default:
		return nil, ErrInvalidMessage{Reason: "a text or html body is required"}
	}
	return msg, nil
}

func cleanAddrs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
