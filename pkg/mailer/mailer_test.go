package mailer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestMailer(t *testing.T, cfg Config) *SMTP {
	t.Helper()

	m, err := NewSMTP(cfg, zap.NewNop())
	assert.NoError(t, err)
	return m.(*SMTP)
}

func TestSMTP_Configured(t *testing.T) {
	t.Run("fully configured", func(t *testing.T) {
		m := newTestMailer(t, Config{
			Enable: true,
			Host:   "smtp.example.com",
			From:   "noreply@example.com",
			To:     "inbox@example.com",
		})
		assert.True(t, m.Configured())
	})

	t.Run("disabled", func(t *testing.T) {
		m := newTestMailer(t, Config{
			Host: "smtp.example.com",
			From: "noreply@example.com",
			To:   "inbox@example.com",
		})
		assert.False(t, m.Configured())
	})

	t.Run("missing recipient", func(t *testing.T) {
		m := newTestMailer(t, Config{
			Enable: true,
			Host:   "smtp.example.com",
			From:   "noreply@example.com",
		})
		assert.False(t, m.Configured())
	})
}

func TestSMTP_Send_NotConfigured(t *testing.T) {
	m := newTestMailer(t, Config{})

	receipt, err := m.Send(context.Background(), Email{
		SenderName:    "Alice",
		SenderAddress: "alice@example.com",
		Body:          "hello",
	})

	assert.NoError(t, err)
	assert.False(t, receipt.Delivered)
	assert.Empty(t, receipt.MessageRef)
	assert.Equal(t, "mailer not configured", receipt.Detail)
}

func TestSMTP_Render(t *testing.T) {
	m := newTestMailer(t, Config{})

	t.Run("escapes markup in user fields", func(t *testing.T) {
		_, body, err := m.render(Email{
			SenderName:    "<script>alert(1)</script>",
			SenderAddress: "alice@example.com",
			Body:          "<b>bold</b>",
		})

		assert.NoError(t, err)
		assert.NotContains(t, body, "<script>")
		assert.Contains(t, body, "&lt;script&gt;")
		assert.NotContains(t, body, "<b>bold</b>")
	})

	t.Run("subject uses sender name", func(t *testing.T) {
		subject, _, err := m.render(Email{
			SenderName:    "Alice",
			SenderAddress: "alice@example.com",
		})

		assert.NoError(t, err)
		assert.Equal(t, "New contact message from Alice", subject)
	})

	t.Run("subject falls back to address", func(t *testing.T) {
		subject, _, err := m.render(Email{SenderAddress: "alice@example.com"})

		assert.NoError(t, err)
		assert.Equal(t, "New contact message from alice@example.com", subject)
	})

	t.Run("phone and context rows are optional", func(t *testing.T) {
		_, body, err := m.render(Email{
			SenderAddress: "alice@example.com",
			Phone:         "555-0100",
			Context:       map[string]string{"order": "42"},
		})

		assert.NoError(t, err)
		assert.Contains(t, body, "555-0100")
		assert.Contains(t, body, "order")
		assert.Contains(t, body, "42")
	})
}

func TestSanitizeHeader(t *testing.T) {
	assert.Equal(t, "a b c", sanitizeHeader("a\rb\nc"))
	assert.Equal(t, "clean", sanitizeHeader("clean"))
}

func TestSMTP_BuildPayload(t *testing.T) {
	m := newTestMailer(t, Config{
		Enable: true,
		Host:   "smtp.example.com",
		From:   "noreply@example.com",
		To:     "inbox@example.com",
	})

	payload := string(m.buildPayload("<ref@smtp.example.com>", "Subject", "<p>body</p>", Email{
		SenderAddress: "alice@example.com\r\nBcc: evil@example.com",
	}))

	headers, body, found := strings.Cut(payload, "\r\n\r\n")
	assert.True(t, found)
	assert.Contains(t, headers, "From: noreply@example.com")
	assert.Contains(t, headers, "To: inbox@example.com")
	assert.Contains(t, headers, "Message-ID: <ref@smtp.example.com>")
	assert.NotContains(t, headers, "\r\nBcc:")
	assert.Contains(t, body, "<p>body</p>")
}
