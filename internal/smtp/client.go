package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const dialTimeout = 10 * time.Second

// Security selects how the connection is protected.
type Security int

const (
	// SecurityTLS is implicit TLS, usually port 465.
	SecurityTLS Security = iota
	// SecurityStartTLS upgrades a plain connection when the server offers it.
	SecurityStartTLS
	// SecurityNone never upgrades. Only used against local test servers.
	SecurityNone
)

// Config identifies one SMTP account.
type Config struct {
	// Address is host:port.
	Address  string
	Username string
	Password string
	Security Security
	// LocalName is sent in EHLO. Defaults to "localhost".
	LocalName string
	// TLS overrides the TLS settings; ServerName defaults to the host.
	TLS *tls.Config
}

// ErrClientClosed is returned by Send after Close.
var ErrClientClosed = errors.New("smtp client closed")

// Client submits messages over a single reused SMTP connection. Concurrent
// sends are serialized.
type Client struct {
	cfg    Config
	logger *logrus.Logger

	mu     sync.Mutex
	conn   net.Conn
	client *gosmtp.Client
	closed bool
}

// NewClient creates a Client. No connection is made until the first send.
func NewClient(cfg Config, logger *logrus.Logger) *Client {
	if cfg.LocalName == "" {
		cfg.LocalName = "localhost"
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Client{cfg: cfg, logger: logger}
}

// Deliver submits an encoded message. from is the envelope sender and
// recipients includes every To, Cc and Bcc address.
func (c *Client) Deliver(ctx context.Context, from string, recipients []string, data []byte) error {
	if len(recipients) == 0 {
		return fmt.Errorf("no recipients")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}

	if err := c.ensureConnected(ctx); err != nil {
		return err
	}

	stop := c.bind(ctx)
	defer stop()

	if err := c.transaction(from, recipients, data); err != nil {
		// The session state is unknown after a failure; start over next time.
		c.drop()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("smtp send interrupted: %w", ctxErr)
		}
		return err
	}

	return nil
}

func (c *Client) transaction(from string, recipients []string, data []byte) error {
	if err := c.client.Mail(from, nil); err != nil {
		return fmt.Errorf("MAIL FROM rejected: %w", err)
	}
	for _, rcpt := range recipients {
		if err := c.client.Rcpt(rcpt, nil); err != nil {
			return fmt.Errorf("RCPT TO %s rejected: %w", rcpt, err)
		}
	}

	w, err := c.client.Data()
	if err != nil {
		return fmt.Errorf("DATA rejected: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("message rejected: %w", err)
	}

	return nil
}

// ensureConnected reuses the open session when it still answers, and dials
// otherwise. Caller must hold mu.
func (c *Client) ensureConnected(ctx context.Context) error {
	if c.client != nil {
		stop := c.bind(ctx)
		err := c.client.Reset()
		stop()
		if err == nil {
			return nil
		}
		c.logger.WithError(err).Debug("SMTP: reconnecting stale session")
		c.drop()
	}

	conn, client, err := c.dial(ctx)
	if err != nil {
		return err
	}
	c.conn = conn
	c.client = client
	return nil
}

func (c *Client) dial(ctx context.Context) (net.Conn, *gosmtp.Client, error) {
	tlsConfig, err := c.tlsConfig()
	if err != nil {
		return nil, nil, err
	}

	var (
		conn   net.Conn
		client *gosmtp.Client
	)
	switch c.cfg.Security {
	case SecurityTLS:
		conn, client, err = c.open(ctx, tlsConfig)
	case SecurityStartTLS:
		conn, client, err = c.openStartTLS(ctx, tlsConfig)
	default:
		conn, client, err = c.open(ctx, nil)
	}
	if err != nil {
		return nil, nil, err
	}

	if c.cfg.Username != "" {
		auth := sasl.NewPlainClient("", c.cfg.Username, c.cfg.Password)
		if err := client.Auth(auth); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	_ = conn.SetDeadline(time.Time{})
	return conn, client, nil
}

func (c *Client) tlsConfig() (*tls.Config, error) {
	host, _, err := net.SplitHostPort(c.cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid smtp address %q: %w", c.cfg.Address, err)
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if c.cfg.TLS != nil {
		cfg = c.cfg.TLS.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	return cfg, nil
}

// connect dials the server, over implicit TLS when tlsConfig is set. ctx's
// deadline covers the whole handshake.
func (c *Client) connect(ctx context.Context, tlsConfig *tls.Config) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: dialTimeout}

	var (
		conn net.Conn
		err  error
	)
	if tlsConfig != nil {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", c.cfg.Address)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", c.cfg.Address)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", c.cfg.Address, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	return conn, nil
}

// open connects and greets with EHLO.
func (c *Client) open(ctx context.Context, tlsConfig *tls.Config) (net.Conn, *gosmtp.Client, error) {
	conn, err := c.connect(ctx, tlsConfig)
	if err != nil {
		return nil, nil, err
	}

	client := gosmtp.NewClient(conn)
	if err := client.Hello(c.cfg.LocalName); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("EHLO failed: %w", err)
	}
	return conn, client, nil
}

// openStartTLS upgrades with STARTTLS when the server advertises it and stays
// in plain text otherwise. The library only upgrades a fresh client, so an
// offering server gets a second connection.
func (c *Client) openStartTLS(ctx context.Context, tlsConfig *tls.Config) (net.Conn, *gosmtp.Client, error) {
	conn, client, err := c.open(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	if ok, _ := client.Extension("STARTTLS"); !ok {
		return conn, client, nil
	}
	_ = client.Quit()

	conn, err = c.connect(ctx, nil)
	if err != nil {
		return nil, nil, err
	}

	client, err = gosmtp.NewClientStartTLS(conn, tlsConfig)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("STARTTLS failed: %w", err)
	}
	if err := client.Hello(c.cfg.LocalName); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("EHLO after STARTTLS failed: %w", err)
	}
	return conn, client, nil
}

// bind applies ctx's deadline to the connection and aborts blocked I/O when
// ctx is cancelled. The returned func undoes both.
func (c *Client) bind(ctx context.Context) func() {
	conn := c.conn
	if conn == nil {
		return func() {}
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	return func() {
		stop()
		_ = conn.SetDeadline(time.Time{})
	}
}

// drop closes the current session. Caller must hold mu.
func (c *Client) drop() {
	if c.client != nil {
		_ = c.client.Close()
	}
	c.client = nil
	c.conn = nil
}

// Verify dials, authenticates and quits on a fresh connection.
func (c *Client) Verify(ctx context.Context) error {
	_, client, err := c.dial(ctx)
	if err != nil {
		return err
	}
	if err := client.Quit(); err != nil {
		_ = client.Close()
		return fmt.Errorf("QUIT failed: %w", err)
	}
	return nil
}

// Close ends the open session, if any. Later sends fail with ErrClientClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.client == nil {
		return nil
	}

	err := c.client.Quit()
	if err != nil {
		_ = c.client.Close()
	}
	c.client = nil
	c.conn = nil
	return err
}

// newMessageID returns a Message-ID in the sender's domain.
func newMessageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = from[at+1:]
	}
	return "<" + uuid.NewString() + "@" + domain + ">"
}
