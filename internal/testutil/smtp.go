package testutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// ReceivedMessage is one message accepted by the test SMTP server.
type ReceivedMessage struct {
	From string
	To   []string
	Data []byte
	// TLS reports whether the session was encrypted when DATA was sent.
	TLS bool
}

// MemoryBackend is a simple in-memory SMTP backend for testing.
type MemoryBackend struct {
	username string
	password string

	mu       sync.Mutex
	messages []*ReceivedMessage
	sessions int
	// rejectRcpt makes every RCPT TO fail while set.
	rejectRcpt bool
}

// NewSession creates a new SMTP session.
func (b *MemoryBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	b.mu.Lock()
	b.sessions++
	b.mu.Unlock()
	_, isTLS := c.TLSConnectionState()
	return &memorySession{backend: b, tls: isTLS}, nil
}

type memorySession struct {
	backend       *MemoryBackend
	authenticated bool
	tls           bool
	from          string
	to            []string
}

func (s *memorySession) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *memorySession) Auth(string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(_, username, password string) error {
		if username != s.backend.username || password != s.backend.password {
			return smtp.ErrAuthFailed
		}
		s.authenticated = true
		return nil
	}), nil
}

func (s *memorySession) Mail(from string, _ *smtp.MailOptions) error {
	if !s.authenticated {
		return smtp.ErrAuthRequired
	}
	s.from = from
	return nil
}

func (s *memorySession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.backend.mu.Lock()
	reject := s.backend.rejectRcpt
	s.backend.mu.Unlock()
	if reject {
		return &smtp.SMTPError{Code: 550, EnhancedCode: smtp.EnhancedCode{5, 1, 1}, Message: "mailbox unavailable"}
	}
	s.to = append(s.to, to)
	return nil
}

func (s *memorySession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()

	s.backend.messages = append(s.backend.messages, &ReceivedMessage{
		From: s.from,
		To:   s.to,
		Data: data,
		TLS:  s.tls,
	})

	return nil
}

func (s *memorySession) Reset() {
	s.from = ""
	s.to = nil
}

func (s *memorySession) Logout() error {
	return nil
}

// TestSMTPServer is an in-memory SMTP server listening on a random local port.
type TestSMTPServer struct {
	Server  *smtp.Server
	Address string
	Backend *MemoryBackend
	// RootCAs trusts the server certificate when STARTTLS is enabled.
	RootCAs *x509.CertPool
}

// NewTestSMTPServer starts a plain-text SMTP server that requires PLAIN auth
// with Username/Password. It is closed when the test ends.
func NewTestSMTPServer(t *testing.T) *TestSMTPServer {
	t.Helper()

	s, err := StartSMTPServer()
	if err != nil {
		t.Fatalf("Failed to start SMTP server: %v", err)
	}
	t.Cleanup(s.Close)

	return s
}

// NewTestSMTPServerStartTLS is NewTestSMTPServer with STARTTLS advertised,
// using a self-signed certificate for 127.0.0.1 trusted by RootCAs.
func NewTestSMTPServerStartTLS(t *testing.T) *TestSMTPServer {
	t.Helper()

	tlsConfig, roots, err := selfSignedTLS()
	if err != nil {
		t.Fatal(err)
	}

	s, err := startSMTPServer(tlsConfig)
	if err != nil {
		t.Fatalf("Failed to start SMTP server: %v", err)
	}
	s.RootCAs = roots
	t.Cleanup(s.Close)

	return s
}

// StartSMTPServer starts the in-memory SMTP server outside of a test. The
// caller closes it.
func StartSMTPServer() (*TestSMTPServer, error) {
	return startSMTPServer(nil)
}

func startSMTPServer(tlsConfig *tls.Config) (*TestSMTPServer, error) {
	be := &MemoryBackend{username: "sender@example.com", password: "test-pass"}

	s := smtp.NewServer(be)
	s.AllowInsecureAuth = true
	s.Domain = "localhost"
	s.ReadTimeout = 10 * time.Second
	s.WriteTimeout = 10 * time.Second
	s.TLSConfig = tlsConfig

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	go func() {
		_ = s.Serve(listener)
	}()

	return &TestSMTPServer{
		Server:  s,
		Address: listener.Addr().String(),
		Backend: be,
	}, nil
}

// Close stops the server.
func (s *TestSMTPServer) Close() {
	_ = s.Server.Close()
}

// Username returns the accepted username.
func (s *TestSMTPServer) Username() string {
	return s.Backend.username
}

// Password returns the accepted password.
func (s *TestSMTPServer) Password() string {
	return s.Backend.password
}

// Messages returns all messages received by the server.
func (s *TestSMTPServer) Messages() []*ReceivedMessage {
	s.Backend.mu.Lock()
	defer s.Backend.mu.Unlock()
	out := make([]*ReceivedMessage, len(s.Backend.messages))
	copy(out, s.Backend.messages)
	return out
}

// Sessions returns how many connections the server has accepted.
func (s *TestSMTPServer) Sessions() int {
	s.Backend.mu.Lock()
	defer s.Backend.mu.Unlock()
	return s.Backend.sessions
}

// RejectRecipients makes the server refuse every recipient while on is true.
func (s *TestSMTPServer) RejectRecipients(on bool) {
	s.Backend.mu.Lock()
	defer s.Backend.mu.Unlock()
	s.Backend.rejectRcpt = on
}
