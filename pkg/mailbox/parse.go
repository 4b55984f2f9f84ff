package mailbox

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/mail"
	"strings"
	"time"
)

// parseEnvelope reduces a raw RFC822 message to the fields the pipeline
// ingests. A missing or unparsable From address yields an envelope with an
// empty FromAddress; rejecting it is the poller's call.
func parseEnvelope(seq uint32, raw []byte) (Envelope, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return Envelope{}, fmt.Errorf("unparsable message %d: %w", seq, err)
	}

	env := Envelope{UID: seq}

	if addr, err := mail.ParseAddress(msg.Header.Get("From")); err == nil {
		env.FromName = addr.Name
		env.FromAddress = addr.Address
	}

	env.Subject = decodeHeader(msg.Header.Get("Subject"))

	if date, err := msg.Header.Date(); err == nil {
		env.Date = date
	} else {
		env.Date = time.Now()
	}

	body, err := io.ReadAll(msg.Body)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to read message %d body: %w", seq, err)
	}
	env.Body = strings.TrimSpace(string(body))

	return env, nil
}

func decodeHeader(v string) string {
	decoded, err := new(mime.WordDecoder).DecodeHeader(v)
	if err != nil {
		return v
	}
	return decoded
}
