package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// IMAP is a minimal single-connection IMAP4rev1 client. It is not safe for
// concurrent use; the poller serializes all access behind its cycle lock.
type IMAP struct {
	cfg    Config
	logger *zap.Logger

	conn     net.Conn
	text     *textproto.Conn
	tagSeq   int
	selected bool
}

func NewIMAP(cfg Config, logger *zap.Logger) *IMAP {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &IMAP{cfg: cfg, logger: logger}
}

func (c *IMAP) Connected() bool {
	return c.conn != nil
}

func (c *IMAP) Connect(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)
	dialer := net.Dialer{Timeout: c.cfg.Timeout}

	var conn net.Conn
	var err error
	if c.cfg.TLS {
		conn, err = tls.DialWithDialer(&dialer, "tcp", addr, &tls.Config{ServerName: c.cfg.Host})
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("mailbox dial failed: %w", err)
	}

	c.conn = conn
	c.text = textproto.NewConn(conn)
	c.selected = false

	if err := c.readGreeting(); err != nil {
		c.teardown()
		return err
	}

	if _, err := c.command(fmt.Sprintf("LOGIN %s %s", quote(c.cfg.Username), quote(c.cfg.Password))); err != nil {
		c.teardown()
		return fmt.Errorf("mailbox login failed: %w", err)
	}

	if _, err := c.command(fmt.Sprintf("SELECT %s", quote(c.cfg.Mailbox))); err != nil {
		c.teardown()
		return fmt.Errorf("mailbox select failed: %w", err)
	}
	c.selected = true

	c.logger.Info("mailbox connected",
		zap.String("host", c.cfg.Host),
		zap.String("mailbox", c.cfg.Mailbox))

	return nil
}

func (c *IMAP) SearchUnseen(ctx context.Context) ([]uint32, error) {
	if c.conn == nil {
		return nil, ErrNotConnected
	}

	lines, err := c.command("SEARCH UNSEEN")
	if err != nil {
		return nil, fmt.Errorf("mailbox search failed: %w", err)
	}

	var ids []uint32
	for _, line := range lines {
		rest, ok := strings.CutPrefix(line, "SEARCH")
		if !ok {
			continue
		}
		for _, field := range strings.Fields(rest) {
			n, err := strconv.ParseUint(field, 10, 32)
			if err != nil {
				continue
			}
			ids = append(ids, uint32(n))
		}
	}

	return ids, nil
}

func (c *IMAP) Fetch(ctx context.Context, seq uint32) (Envelope, error) {
	if c.conn == nil {
		return Envelope{}, ErrNotConnected
	}

	// BODY.PEEK keeps the \Seen flag untouched; the poller marks items seen
	// only after the message has been persisted.
	raw, err := c.fetchLiteral(fmt.Sprintf("FETCH %d (BODY.PEEK[])", seq))
	if err != nil {
		return Envelope{}, fmt.Errorf("mailbox fetch failed: %w", err)
	}

	return parseEnvelope(seq, raw)
}

func (c *IMAP) MarkSeen(ctx context.Context, seq uint32) error {
	if c.conn == nil {
		return ErrNotConnected
	}

	if _, err := c.command(fmt.Sprintf("STORE %d +FLAGS (\\Seen)", seq)); err != nil {
		return fmt.Errorf("mailbox store failed: %w", err)
	}

	return nil
}

func (c *IMAP) Close() error {
	if c.conn == nil {
		return nil
	}

	_, _ = c.command("LOGOUT")
	err := c.conn.Close()
	c.conn = nil
	c.text = nil
	c.selected = false

	return err
}

func (c *IMAP) teardown() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = nil
	c.text = nil
	c.selected = false
}

func (c *IMAP) readGreeting() error {
	_ = c.conn.SetDeadline(time.Now().Add(c.cfg.Timeout))

	line, err := c.text.ReadLine()
	if err != nil {
		return fmt.Errorf("mailbox greeting failed: %w", err)
	}
	if !strings.HasPrefix(line, "* OK") && !strings.HasPrefix(line, "* PREAUTH") {
		return fmt.Errorf("unexpected mailbox greeting: %s", line)
	}

	return nil
}

// command sends one tagged command and collects untagged response lines
// until the tagged completion arrives.
func (c *IMAP) command(cmd string) ([]string, error) {
	_ = c.conn.SetDeadline(time.Now().Add(c.cfg.Timeout))

	c.tagSeq++
	tag := fmt.Sprintf("a%03d", c.tagSeq)

	if err := c.text.PrintfLine("%s %s", tag, cmd); err != nil {
		c.teardown()
		return nil, err
	}

	var untagged []string
	for {
		line, err := c.text.ReadLine()
		if err != nil {
			c.teardown()
			return nil, err
		}

		if rest, ok := strings.CutPrefix(line, "* "); ok {
			untagged = append(untagged, rest)
			continue
		}

		if rest, ok := strings.CutPrefix(line, tag+" "); ok {
			if strings.HasPrefix(rest, "OK") {
				return untagged, nil
			}
			return untagged, fmt.Errorf("server replied %s", rest)
		}
	}
}

// fetchLiteral runs a FETCH whose untagged response carries an RFC822
// literal ({size} followed by size raw bytes) and returns the literal.
func (c *IMAP) fetchLiteral(cmd string) ([]byte, error) {
	_ = c.conn.SetDeadline(time.Now().Add(c.cfg.Timeout))

	c.tagSeq++
	tag := fmt.Sprintf("a%03d", c.tagSeq)

	if err := c.text.PrintfLine("%s %s", tag, cmd); err != nil {
		c.teardown()
		return nil, err
	}

	var literal []byte
	for {
		line, err := c.text.ReadLine()
		if err != nil {
			c.teardown()
			return nil, err
		}

		if strings.HasPrefix(line, "* ") {
			size, ok := literalSize(line)
			if !ok {
				continue
			}

			literal = make([]byte, size)
			if _, err := io.ReadFull(c.text.R, literal); err != nil {
				c.teardown()
				return nil, err
			}
			continue
		}

		if rest, ok := strings.CutPrefix(line, tag+" "); ok {
			if strings.HasPrefix(rest, "OK") {
				return literal, nil
			}
			return nil, fmt.Errorf("server replied %s", rest)
		}
	}
}

func literalSize(line string) (int, bool) {
	open := strings.LastIndex(line, "{")
	if open < 0 || !strings.HasSuffix(line, "}") {
		return 0, false
	}

	n, err := strconv.Atoi(line[open+1 : len(line)-1])
	if err != nil || n < 0 {
		return 0, false
	}

	return n, true
}

func quote(v string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v) + `"`
}
