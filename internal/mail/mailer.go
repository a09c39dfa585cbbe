// Package mail sends transactional emails such as password reset links.
package mail

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Options configures the SMTP relay
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer delivers plain-text mail through an SMTP relay. Without a host
// configured it only logs the message.
type SMTPMailer struct {
	opts Options
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer creates a new mailer
func NewSMTPMailer(opts Options) *SMTPMailer {
	return &SMTPMailer{opts: opts, send: smtp.SendMail}
}

// Send delivers a single message to one recipient
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("invalid mail header value")
	}

	if m.opts.Host == "" {
		log.Warn().
			Str("to", to).
			Str("subject", subject).
			Msg("SMTP host not configured, mail not sent")
		return nil
	}

	msg := buildMessage(m.opts.From, to, subject, body)
	addr := net.JoinHostPort(m.opts.Host, strconv.Itoa(m.opts.Port))

	var auth smtp.Auth
	if m.opts.Username != "" {
		auth = smtp.PlainAuth("", m.opts.Username, m.opts.Password, m.opts.Host)
	}

	if err := m.send(addr, auth, m.opts.From, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
