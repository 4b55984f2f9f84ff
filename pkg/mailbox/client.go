// Package mailbox owns the connection to the external inbound mailbox. It
// implements the small IMAP subset the poller needs: search unseen, fetch,
// mark seen.
package mailbox

import (
	"context"
	"errors"
	"time"
)

var ErrNotConnected = errors.New("MAILBOX_NOT_CONNECTED")

type Config struct {
	Enable   bool          `mapstructure:"enable"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	TLS      bool          `mapstructure:"tls"`
	Mailbox  string        `mapstructure:"mailbox"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Envelope is one fetched mailbox item reduced to the fields the pipeline
// ingests.
type Envelope struct {
	UID         uint32
	FromName    string
	FromAddress string
	Subject     string
	Body        string
	Date        time.Time
}

type Client interface {
	Connect(ctx context.Context) error
	SearchUnseen(ctx context.Context) ([]uint32, error)
	Fetch(ctx context.Context, seq uint32) (Envelope, error)
	MarkSeen(ctx context.Context, seq uint32) error
	Close() error
	Connected() bool
}
