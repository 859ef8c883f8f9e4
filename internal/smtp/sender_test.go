package smtp

import (
	"bytes"
	"context"
	"crypto/tls"
	"strings"
	"testing"
	"time"

	"github.com/jhillyerd/enmime"
	"github.com/leadsengine/dashboard/internal/mailbox"
	"github.com/leadsengine/dashboard/internal/models"
	"github.com/leadsengine/dashboard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ mailbox.Sender = (*Sender)(nil)

func testClient(t *testing.T, server *testutil.TestSMTPServer) *Client {
	t.Helper()
	client := NewClient(Config{
		Address:  server.Address,
		Username: server.Username(),
		Password: server.Password(),
		Security: SecurityNone,
	}, nil)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func sampleMail() mailbox.OutgoingMail {
	return mailbox.OutgoingMail{
		FromName: "Leads Engine",
		From:     "team@leadsengine.io",
		To:       []string{"alice@example.com"},
		CC:       []string{"bob@example.com"},
		BCC:      []string{"audit@example.com"},
		Subject:  "Your leads are ready",
		Text:     "Hello Alice",
		HTML:     "<p>Hello Alice</p>",
	}
}

func TestCompose(t *testing.T) {
	mail := sampleMail()
	mail.Attachments = []models.Attachment{
		{Filename: "report.csv", Content: []byte("a,b\n1,2\n"), ContentType: "text/csv"},
		{Filename: "blob.bin", Content: []byte{0x01, 0x02}},
	}
	date := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	data, err := Compose(mail, "<id-1@leadsengine.io>", date)
	require.NoError(t, err)

	env, err := enmime.ReadEnvelope(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, "Your leads are ready", env.GetHeader("Subject"))
	assert.Contains(t, env.GetHeader("From"), "team@leadsengine.io")
	assert.Contains(t, env.GetHeader("To"), "alice@example.com")
	assert.Contains(t, env.GetHeader("Cc"), "bob@example.com")
	assert.Empty(t, env.GetHeader("Bcc"))
	assert.Contains(t, string(data), "<id-1@leadsengine.io>")
	assert.Equal(t, "Hello Alice", strings.TrimSpace(env.Text))
	assert.Contains(t, env.HTML, "<p>Hello Alice</p>")

	require.Len(t, env.Attachments, 2)
	assert.Equal(t, "report.csv", env.Attachments[0].FileName)
	assert.Equal(t, "application/octet-stream", env.Attachments[1].ContentType)
}

func TestComposeRejectsIncompleteMail(t *testing.T) {
	mail := sampleMail()
	mail.From = ""

	_, err := Compose(mail, "<id@x>", time.Now())
	assert.Error(t, err)
}

func TestComposeDisplayNames(t *testing.T) {
	mail := sampleMail()
	mail.FromName = ""
	mail.From = "Leads Team <team@leadsengine.io>"
	mail.To = []string{"Alice <alice@example.com>"}
	mail.CC = []string{`"Bob B." <bob@example.com>`}

	data, err := Compose(mail, "<id-2@leadsengine.io>", time.Now())
	require.NoError(t, err)

	env, err := enmime.ReadEnvelope(bytes.NewReader(data))
	require.NoError(t, err)

	to, err := env.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "Alice", to[0].Name)
	assert.Equal(t, "alice@example.com", to[0].Address)

	cc, err := env.AddressList("Cc")
	require.NoError(t, err)
	require.Len(t, cc, 1)
	assert.Equal(t, "Bob B.", cc[0].Name)
	assert.Equal(t, "bob@example.com", cc[0].Address)

	from, err := env.AddressList("From")
	require.NoError(t, err)
	require.Len(t, from, 1)
	assert.Equal(t, "Leads Team", from[0].Name)
	assert.Equal(t, "team@leadsengine.io", from[0].Address)
}

func TestComposeRejectsInvalidRecipient(t *testing.T) {
	mail := sampleMail()
	mail.To = []string{"not an address"}

	_, err := Compose(mail, "<id@x>", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid recipient")
}

func TestNewMessageID(t *testing.T) {
	id := newMessageID("team@leadsengine.io")
	assert.True(t, strings.HasPrefix(id, "<"))
	assert.True(t, strings.HasSuffix(id, "@leadsengine.io>"))

	assert.True(t, strings.HasSuffix(newMessageID("nobody"), "@localhost>"))
	assert.NotEqual(t, newMessageID("a@b.c"), newMessageID("a@b.c"))
}

func TestSenderSend(t *testing.T) {
	server := testutil.NewTestSMTPServer(t)
	sender := NewSender(testClient(t, server))

	id, err := sender.Send(context.Background(), sampleMail())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(id, "@leadsengine.io>"))

	messages := server.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "team@leadsengine.io", messages[0].From)
	assert.Equal(t, []string{"alice@example.com", "bob@example.com", "audit@example.com"}, messages[0].To)
	assert.Contains(t, string(messages[0].Data), id)
}

func TestSenderSendDisplayNames(t *testing.T) {
	server := testutil.NewTestSMTPServer(t)
	sender := NewSender(testClient(t, server))

	mail := sampleMail()
	mail.From = "Leads Team <team@leadsengine.io>"
	mail.To = []string{"Alice <alice@example.com>"}
	mail.CC = nil
	mail.BCC = []string{"Audit <audit@example.com>"}

	id, err := sender.Send(context.Background(), mail)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(id, "@leadsengine.io>"))

	messages := server.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "team@leadsengine.io", messages[0].From)
	assert.Equal(t, []string{"alice@example.com", "audit@example.com"}, messages[0].To)
	assert.NotContains(t, string(messages[0].Data), "audit@example.com")
}

func TestSenderStartTLS(t *testing.T) {
	server := testutil.NewTestSMTPServerStartTLS(t)
	client := NewClient(Config{
		Address:  server.Address,
		Username: server.Username(),
		Password: server.Password(),
		Security: SecurityStartTLS,
		TLS:      &tls.Config{RootCAs: server.RootCAs},
	}, nil)
	t.Cleanup(func() { _ = client.Close() })

	_, err := NewSender(client).Send(context.Background(), sampleMail())
	require.NoError(t, err)

	messages := server.Messages()
	require.Len(t, messages, 1)
	assert.True(t, messages[0].TLS)

	assert.NoError(t, client.Verify(context.Background()))
}

func TestSenderStartTLSUntrustedCertificate(t *testing.T) {
	server := testutil.NewTestSMTPServerStartTLS(t)
	client := NewClient(Config{
		Address:  server.Address,
		Username: server.Username(),
		Password: server.Password(),
		Security: SecurityStartTLS,
	}, nil)
	t.Cleanup(func() { _ = client.Close() })

	_, err := NewSender(client).Send(context.Background(), sampleMail())
	require.Error(t, err)
	assert.Empty(t, server.Messages())
}

func TestSenderStartTLSNotOffered(t *testing.T) {
	server := testutil.NewTestSMTPServer(t)
	client := NewClient(Config{
		Address:  server.Address,
		Username: server.Username(),
		Password: server.Password(),
		Security: SecurityStartTLS,
	}, nil)
	t.Cleanup(func() { _ = client.Close() })

	_, err := NewSender(client).Send(context.Background(), sampleMail())
	require.NoError(t, err)

	messages := server.Messages()
	require.Len(t, messages, 1)
	assert.False(t, messages[0].TLS)
}

func TestSenderReusesConnection(t *testing.T) {
	server := testutil.NewTestSMTPServer(t)
	sender := NewSender(testClient(t, server))

	for range 3 {
		_, err := sender.Send(context.Background(), sampleMail())
		require.NoError(t, err)
	}

	assert.Len(t, server.Messages(), 3)
	assert.Equal(t, 1, server.Sessions())
}

func TestSenderRecoversAfterRejection(t *testing.T) {
	server := testutil.NewTestSMTPServer(t)
	sender := NewSender(testClient(t, server))

	server.RejectRecipients(true)
	_, err := sender.Send(context.Background(), sampleMail())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mailbox unavailable")

	server.RejectRecipients(false)
	_, err = sender.Send(context.Background(), sampleMail())
	require.NoError(t, err)
	assert.Len(t, server.Messages(), 1)
}

func TestSenderAuthFailure(t *testing.T) {
	server := testutil.NewTestSMTPServer(t)
	client := NewClient(Config{
		Address:  server.Address,
		Username: server.Username(),
		Password: "wrong",
		Security: SecurityNone,
	}, nil)

	_, err := NewSender(client).Send(context.Background(), sampleMail())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to authenticate")
	assert.Empty(t, server.Messages())
}

func TestClientClosed(t *testing.T) {
	server := testutil.NewTestSMTPServer(t)
	client := testClient(t, server)
	require.NoError(t, client.Close())

	_, err := NewSender(client).Send(context.Background(), sampleMail())
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestClientDeliverWithoutRecipients(t *testing.T) {
	server := testutil.NewTestSMTPServer(t)

	err := testClient(t, server).Deliver(context.Background(), "a@b.c", nil, []byte("x"))
	assert.Error(t, err)
}

func TestClientVerify(t *testing.T) {
	server := testutil.NewTestSMTPServer(t)

	assert.NoError(t, testClient(t, server).Verify(context.Background()))

	bad := NewClient(Config{Address: server.Address, Username: "x", Password: "y", Security: SecurityNone}, nil)
	assert.Error(t, bad.Verify(context.Background()))

	unreachable := NewClient(Config{Address: "127.0.0.1:1", Security: SecurityNone}, nil)
	assert.Error(t, unreachable.Verify(context.Background()))
}
