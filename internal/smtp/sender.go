package smtp

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	gomail "github.com/emersion/go-message/mail"
	"github.com/jhillyerd/enmime"
	"github.com/leadsengine/dashboard/internal/mailbox"
)

// Sender composes outgoing mail and submits it through a Client.
type Sender struct {
	client *Client
	now    func() time.Time
}

// NewSender creates a Sender on top of client.
func NewSender(client *Client) *Sender {
	return &Sender{client: client, now: time.Now}
}

// Send delivers one message and returns its Message-ID.
func (s *Sender) Send(ctx context.Context, mail mailbox.OutgoingMail) (string, error) {
	env, err := resolve(mail)
	if err != nil {
		return "", err
	}

	messageID := newMessageID(env.from.Address)

	data, err := compose(mail, env, messageID, s.now())
	if err != nil {
		return "", err
	}

	if err := s.client.Deliver(ctx, env.from.Address, env.recipients(), data); err != nil {
		return "", err
	}

	return messageID, nil
}

// envelope holds the parsed addresses of one message.
type envelope struct {
	from        *gomail.Address
	to, cc, bcc []*gomail.Address
}

// recipients lists the bare addresses for RCPT TO, Bcc included.
func (e envelope) recipients() []string {
	out := make([]string, 0, len(e.to)+len(e.cc)+len(e.bcc))
	for _, list := range [][]*gomail.Address{e.to, e.cc, e.bcc} {
		for _, a := range list {
			out = append(out, a.Address)
		}
	}
	return out
}

// resolve parses sender and recipients, which may carry display names
// ("Alice <alice@x.com>"). FromName wins over a name inside From.
func resolve(mail mailbox.OutgoingMail) (envelope, error) {
	var env envelope
	if strings.TrimSpace(mail.From) == "" {
		return env, fmt.Errorf("sender address required")
	}

	from, err := gomail.ParseAddress(mail.From)
	if err != nil {
		return env, fmt.Errorf("invalid sender %q: %w", mail.From, err)
	}
	if mail.FromName != "" {
		from.Name = mail.FromName
	}
	env.from = from

	if env.to, err = parseList(mail.To); err != nil {
		return env, err
	}
	if env.cc, err = parseList(mail.CC); err != nil {
		return env, err
	}
	if env.bcc, err = parseList(mail.BCC); err != nil {
		return env, err
	}
	return env, nil
}

func parseList(list []string) ([]*gomail.Address, error) {
	out := make([]*gomail.Address, 0, len(list))
	for _, raw := range list {
		addr, err := gomail.ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient %q: %w", raw, err)
		}
		out = append(out, addr)
	}
	return out, nil
}

// Compose renders mail as an RFC 5322 message. Bcc recipients are not
// written to the headers.
func Compose(mail mailbox.OutgoingMail, messageID string, date time.Time) ([]byte, error) {
	env, err := resolve(mail)
	if err != nil {
		return nil, err
	}
	return compose(mail, env, messageID, date)
}

func compose(mail mailbox.OutgoingMail, env envelope, messageID string, date time.Time) ([]byte, error) {
	b := enmime.Builder().
		From(env.from.Name, env.from.Address).
		Subject(mail.Subject).
		Date(date).
		Header("Message-ID", messageID)

	for _, to := range env.to {
		b = b.To(to.Name, to.Address)
	}
	for _, cc := range env.cc {
		b = b.CC(cc.Name, cc.Address)
	}
	for _, bcc := range env.bcc {
		b = b.BCC(bcc.Name, bcc.Address)
	}

	if mail.Text != "" {
		b = b.Text([]byte(mail.Text))
	}
	if mail.HTML != "" {
		b = b.HTML([]byte(mail.HTML))
	}

	for _, a := range mail.Attachments {
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		b = b.AddAttachment(a.Content, contentType, a.Filename)
	}

	root, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build message: %w", err)
	}

	var buf bytes.Buffer
	if err := root.Encode(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	return buf.Bytes(), nil
}
