// Package smtp sends alert emails through a plain SMTP relay when SES is
// not in use.
package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"crisis-alerts/internal/models"

	"github.com/google/uuid"
)

type Config struct {
	Host        string
	Port        int
	Username    string
	Password    string
	UseTLS      bool
	DefaultFrom string
}

func (c Config) addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

type Sender struct {
	config Config
	dialer net.Dialer
}

func NewSender(cfg Config) *Sender {
	return &Sender{config: cfg, dialer: net.Dialer{Timeout: 10 * time.Second}}
}

func (s *Sender) Provider() string { return "smtp" }

// Send delivers the message to To and every CC address and returns the
// generated Message-ID.
func (s *Sender) Send(ctx context.Context, msg models.EmailMessage) (string, error) {
	if msg.From == "" {
		msg.From = s.config.DefaultFrom
	}
	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.config.Host)

	client, err := s.connect(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	if err = client.Mail(msg.From); err != nil {
		return "", fmt.Errorf("failed to set sender: %w", err)
	}
	for _, rcpt := range msg.Recipients() {
		if err = client.Rcpt(rcpt); err != nil {
			return "", fmt.Errorf("failed to set recipient %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return "", fmt.Errorf("failed to open data writer: %w", err)
	}
	if _, err = w.Write([]byte(buildMessage(msg, messageID))); err != nil {
		return "", fmt.Errorf("failed to write message: %w", err)
	}
	if err = w.Close(); err != nil {
		return "", fmt.Errorf("failed to close data writer: %w", err)
	}

	return messageID, client.Quit()
}

// Verify opens a session, authenticates and quits without sending.
func (s *Sender) Verify(ctx context.Context) error {
	if s.config.DefaultFrom == "" {
		return fmt.Errorf("smtp: default from address is not configured")
	}
	client, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Quit()
}

func (s *Sender) connect(ctx context.Context) (*smtp.Client, error) {
	conn, err := s.dialer.DialContext(ctx, "tcp", s.config.addr())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to start SMTP session: %w", err)
	}

	if s.config.UseTLS {
		if err = client.StartTLS(&tls.Config{ServerName: s.config.Host}); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if s.config.Username != "" && s.config.Password != "" {
		auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
		if err = client.Auth(auth); err != nil {
			client.Close()
			return nil, fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}
	return client, nil
}

func buildMessage(msg models.EmailMessage, messageID string) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("From: %s\r\n", msg.From))
	b.WriteString(fmt.Sprintf("To: %s\r\n", msg.To))
	if len(msg.CC) > 0 {
		b.WriteString(fmt.Sprintf("Cc: %s\r\n", strings.Join(msg.CC, ", ")))
	}
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	b.WriteString(fmt.Sprintf("Message-ID: %s\r\n", messageID))
	b.WriteString("X-Priority: 1\r\n")
	b.WriteString("Importance: high\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))

	return b.String()
}
