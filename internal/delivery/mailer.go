package delivery

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sunny/internal/config"
)

// Message is one outbound email with an optional attachment.
type Message struct {
	To             string
	Subject        string
	Body           string
	AttachmentPath string
}

// Mailer sends report emails.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
	Configured() error
}

// SMTPMailer delivers through a plain SMTP submission endpoint.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string

	// sendFunc is swapped in tests to capture the wire payload.
	sendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer builds a mailer from configuration.
func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	return &SMTPMailer{
		host:     cfg.Email.SMTPHost,
		port:     cfg.Email.SMTPPort,
		username: cfg.Email.Username,
		password: cfg.Email.Password,
		from:     cfg.Email.FromAddress,
		sendFunc: smtp.SendMail,
	}
}

// WithSendFunc overrides the SMTP send call (used in tests).
func (m *SMTPMailer) WithSendFunc(send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error) {
	m.sendFunc = send
}

// Configured verifies the mailer has enough settings to attempt delivery.
func (m *SMTPMailer) Configured() error {
	if strings.TrimSpace(m.host) == "" {
		return errors.New("smtp host not configured")
	}
	if strings.TrimSpace(m.from) == "" {
		return errors.New("from address not configured")
	}
	return nil
}

// Send builds a MIME message and submits it. The context bounds the attempt
// only loosely: net/smtp has no context support, so cancellation is checked
// before the blocking call.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := m.Configured(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := m.buildMIME(msg)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	if err := m.sendFunc(addr, auth, m.from, []string{msg.To}, payload); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

const mimeBoundary = "sunny-report-boundary"

func (m *SMTPMailer) buildMIME(msg Message) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")

	if msg.AttachmentPath == "" {
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		b.WriteString(msg.Body)
		return []byte(b.String()), nil
	}

	attachment, err := os.ReadFile(msg.AttachmentPath)
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}

	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", mimeBoundary)

	fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(msg.Body)
	b.WriteString("\r\n")

	filename := filepath.Base(msg.AttachmentPath)
	fmt.Fprintf(&b, "--%s\r\n", mimeBoundary)
	fmt.Fprintf(&b, "Content-Type: application/octet-stream; name=%q\r\n", filename)
	b.WriteString("Content-Transfer-Encoding: base64\r\n")
	fmt.Fprintf(&b, "Content-Disposition: attachment; filename=%q\r\n\r\n", filename)

	encoded := base64.StdEncoding.EncodeToString(attachment)
	for len(encoded) > 76 {
		b.WriteString(encoded[:76])
		b.WriteString("\r\n")
		encoded = encoded[76:]
	}
	b.WriteString(encoded)
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "--%s--\r\n", mimeBoundary)

	return []byte(b.String()), nil
}
