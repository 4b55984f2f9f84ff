package mailbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseEnvelope(t *testing.T) {
	t.Run("full message", func(t *testing.T) {
		raw := []byte("From: Alice <alice@example.com>\r\n" +
			"Subject: Hello\r\n" +
			"Date: Mon, 02 Jan 2006 15:04:05 -0700\r\n" +
			"\r\n" +
			"body text\r\n")

		env, err := parseEnvelope(7, raw)

		assert.NoError(t, err)
		assert.Equal(t, uint32(7), env.UID)
		assert.Equal(t, "Alice", env.FromName)
		assert.Equal(t, "alice@example.com", env.FromAddress)
		assert.Equal(t, "Hello", env.Subject)
		assert.Equal(t, "body text", env.Body)
		assert.Equal(t, 2006, env.Date.Year())
	})

	t.Run("bare address without display name", func(t *testing.T) {
		raw := []byte("From: bob@example.com\r\nSubject: Hi\r\n\r\nhi\r\n")

		env, err := parseEnvelope(1, raw)

		assert.NoError(t, err)
		assert.Empty(t, env.FromName)
		assert.Equal(t, "bob@example.com", env.FromAddress)
	})

	t.Run("missing from leaves address empty", func(t *testing.T) {
		raw := []byte("Subject: orphan\r\n\r\nno sender\r\n")

		env, err := parseEnvelope(2, raw)

		assert.NoError(t, err)
		assert.Empty(t, env.FromAddress)
		assert.Equal(t, "orphan", env.Subject)
	})

	t.Run("encoded subject is decoded", func(t *testing.T) {
		raw := []byte("From: alice@example.com\r\n" +
			"Subject: =?UTF-8?Q?Gr=C3=BC=C3=9Fe?=\r\n" +
			"\r\nhi\r\n")

		env, err := parseEnvelope(3, raw)

		assert.NoError(t, err)
		assert.Equal(t, "Grüße", env.Subject)
	})

	t.Run("missing date falls back to now", func(t *testing.T) {
		raw := []byte("From: alice@example.com\r\n\r\nhi\r\n")

		before := time.Now()
		env, err := parseEnvelope(4, raw)

		assert.NoError(t, err)
		assert.False(t, env.Date.Before(before.Add(-time.Second)))
	})

	t.Run("not a message", func(t *testing.T) {
		_, err := parseEnvelope(5, []byte("garbage"))
		assert.Error(t, err)
	})
}
