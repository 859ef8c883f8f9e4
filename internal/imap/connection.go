package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/client"
)

const dialTimeout = 5 * time.Second

// Config identifies one IMAP account.
type Config struct {
	// Address is host:port.
	Address  string
	Username string
	Password string
	// UseTLS selects implicit TLS. Tests run against plain connections.
	UseTLS bool
}

func (c Config) host() string {
	host, _, err := net.SplitHostPort(c.Address)
	if err != nil {
		return c.Address
	}
	return host
}

// connect dials and logs in. The dial honors ctx's deadline when it is
// sooner than dialTimeout; the connection is closed if login fails.
func connect(ctx context.Context, cfg Config) (*client.Client, error) {
	dialer := &net.Dialer{Timeout: dialTimeout}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}

	var (
		c   *client.Client
		err error
	)
	if cfg.UseTLS {
		c, err = client.DialWithDialerTLS(dialer, cfg.Address, &tls.Config{ServerName: cfg.host()})
	} else {
		c, err = client.DialWithDialer(dialer, cfg.Address)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.Address, err)
	}

	if err := c.Login(cfg.Username, cfg.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("failed to authenticate as %s: %w", cfg.Username, err)
	}

	return c, nil
}
