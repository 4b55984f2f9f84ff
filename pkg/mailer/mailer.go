// Package mailer delivers a single contact message over SMTP. The network
// send is expected to be invoked through a circuit breaker owned by the
// calling service; this package only implements the transport.
package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Config struct {
	Enable   bool          `mapstructure:"enable"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	To       string        `mapstructure:"to"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type Email struct {
	SenderName    string
	SenderAddress string
	Phone         string
	Body          string
	Context       map[string]string
}

type Receipt struct {
	MessageRef string
	Delivered  bool
	Detail     string
}

type Mailer interface {
	Send(ctx context.Context, email Email) (Receipt, error)
	TestConnection(ctx context.Context) error
	Configured() bool
}

type SMTP struct {
	cfg    Config
	logger *zap.Logger
	tmpl   *template.Template
}

func NewSMTP(cfg Config, logger *zap.Logger) (Mailer, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	tmpl, err := parseBodyTemplate()
	if err != nil {
		return nil, fmt.Errorf("failed to parse mail template: %w", err)
	}

	return &SMTP{cfg: cfg, logger: logger, tmpl: tmpl}, nil
}

func (s *SMTP) Configured() bool {
	return s.cfg.Enable && s.cfg.Host != "" && s.cfg.From != "" && s.cfg.To != ""
}

// Send renders and delivers one message. When the channel is not configured
// it degrades to a synthetic receipt instead of failing, so upstream flows
// are not blocked in environments without mail credentials.
func (s *SMTP) Send(ctx context.Context, email Email) (Receipt, error) {
	if !s.Configured() {
		s.logger.Warn("mailer not configured, skipping delivery",
			zap.String("senderAddress", email.SenderAddress))
		return Receipt{Delivered: false, Detail: "mailer not configured"}, nil
	}

	subject, body, err := s.render(email)
	if err != nil {
		return Receipt{}, err
	}

	messageRef := fmt.Sprintf("<%s@%s>", uuid.NewString(), s.cfg.Host)
	payload := s.buildPayload(messageRef, subject, body, email)

	if err := s.deliver(ctx, payload); err != nil {
		return Receipt{}, err
	}

	return Receipt{
		MessageRef: messageRef,
		Delivered:  true,
		Detail:     "accepted by " + s.cfg.Host,
	}, nil
}

func (s *SMTP) buildPayload(messageRef, subject, body string, email Email) []byte {
	var sb strings.Builder

	fmt.Fprintf(&sb, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&sb, "To: %s\r\n", s.cfg.To)
	if email.SenderAddress != "" {
		fmt.Fprintf(&sb, "Reply-To: %s\r\n", sanitizeHeader(email.SenderAddress))
	}
	fmt.Fprintf(&sb, "Subject: %s\r\n", subject)
	fmt.Fprintf(&sb, "Message-ID: %s\r\n", messageRef)
	fmt.Fprintf(&sb, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)

	return []byte(sb.String())
}

func (s *SMTP) deliver(ctx context.Context, payload []byte) error {
	client, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if s.cfg.Username != "" {
		if ok, _ := client.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
			if err := client.Auth(auth); err != nil {
				return NewDeliveryError(ErrorCodeRejected, err.Error(), err)
			}
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return NewDeliveryError(ErrorCodeRejected, err.Error(), err)
	}

	if err := client.Rcpt(s.cfg.To); err != nil {
		return NewDeliveryError(ErrorCodeRejected, err.Error(), err)
	}

	writer, err := client.Data()
	if err != nil {
		return classifyProtocolError(err)
	}

	if _, err := writer.Write(payload); err != nil {
		return classifyProtocolError(err)
	}

	if err := writer.Close(); err != nil {
		return classifyProtocolError(err)
	}

	return client.Quit()
}

// TestConnection is a best-effort connectivity probe for health reporting.
// It bypasses the circuit breaker on purpose.
func (s *SMTP) TestConnection(ctx context.Context) error {
	if !s.Configured() {
		return errors.New("mailer not configured")
	}

	client, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	return client.Quit()
}

func (s *SMTP) dial(ctx context.Context) (*smtp.Client, error) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	dialer := net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, classifyNetError(err)
	}

	// Bound the whole SMTP dialogue, not just the dial.
	_ = conn.SetDeadline(time.Now().Add(s.cfg.Timeout))

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return nil, classifyProtocolError(err)
	}

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			client.Close()
			return nil, classifyProtocolError(err)
		}
	}

	return client, nil
}

func classifyNetError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewDeliveryError(ErrorCodeTimeout, "", err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewDeliveryError(ErrorCodeTimeout, "", err)
	}
	return NewDeliveryError(ErrorCodeNetworkError, "", err)
}

func classifyProtocolError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewDeliveryError(ErrorCodeTimeout, "", err)
	}
	return NewDeliveryError(ErrorCodeProtocolError, err.Error(), err)
}
