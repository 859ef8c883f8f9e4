package app

import (
	"context"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/leadsengine/dashboard/internal/config"
	"github.com/leadsengine/dashboard/internal/db"
	"github.com/leadsengine/dashboard/internal/models"
	"github.com/leadsengine/dashboard/internal/smtp"
	"github.com/leadsengine/dashboard/internal/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func mailServer(t *testing.T, address, username, password string) config.MailServer {
	t.Helper()
	host, portStr, err := net.SplitHostPort(address)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return config.MailServer{Host: host, Port: port, Username: username, Password: password}
}

func TestSMTPConfig(t *testing.T) {
	secure := SMTPConfig(config.MailServer{Host: "smtp.example.com", Port: 465, Username: "u", Password: "p", Secure: true})
	assert.Equal(t, "smtp.example.com:465", secure.Address)
	assert.Equal(t, smtp.SecurityTLS, secure.Security)

	plain := SMTPConfig(config.MailServer{Host: "smtp.example.com", Port: 587})
	assert.Equal(t, smtp.SecurityStartTLS, plain.Security)
}

func TestIMAPConfig(t *testing.T) {
	cfg := IMAPConfig(config.MailServer{Host: "imap.example.com", Port: 993, Username: "u", Password: "p", Secure: true})
	assert.Equal(t, "imap.example.com:993", cfg.Address)
	assert.True(t, cfg.UseTLS)
}

func TestNewWithoutCredentials(t *testing.T) {
	pool := testutil.NewTestDB(t)
	a := New(&config.Config{SyncLimit: 50, OutboxWorkers: 1}, pool, quietLogger())

	assert.False(t, a.Mail.CanSend())
	assert.False(t, a.Mail.CanSync())
	assert.Nil(t, a.SMTP)
	assert.Nil(t, a.Outbox)
	assert.Nil(t, a.Watcher)

	a.Start(context.Background())
	assert.NoError(t, a.Close(context.Background()))
}

func TestAppDeliversAndSyncs(t *testing.T) {
	pool := testutil.NewTestDB(t)
	imapServer := testutil.NewTestIMAPServer(t)
	smtpServer := testutil.NewTestSMTPServer(t)

	cfg := &config.Config{
		SMTP:             mailServer(t, smtpServer.Address, smtpServer.Username(), smtpServer.Password()),
		IMAP:             mailServer(t, imapServer.Address, imapServer.Username(), imapServer.Password()),
		SyncLimit:        50,
		SyncTimeout:      10 * time.Second,
		SendTimeout:      5 * time.Second,
		IMAPWatch:        true,
		IMAPPollInterval: time.Hour,
		OutboxWorkers:    1,
		OutboxCapacity:   10,
		BrandName:        "Leads Engine AI",
	}
	a := New(cfg, pool, quietLogger())
	require.True(t, a.Mail.CanSend())
	require.True(t, a.Mail.CanSync())
	require.NotNil(t, a.Watcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.Start(ctx)

	result, err := a.Mail.SyncInbox(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Inserted)

	msg, err := a.Mail.Send(ctx, models.Compose{
		FromEmail: "sales@example.com",
		To:        []string{"contact@example.org"},
		Subject:   "Following up",
		Body:      "Hi there",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusQueued, msg.Status)

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	require.NoError(t, a.Close(closeCtx))

	received := smtpServer.Messages()
	require.Len(t, received, 1)
	assert.Equal(t, "sales@example.com", received[0].From)
	assert.True(t, strings.Contains(string(received[0].Data), "Subject: Following up"))

	history, err := a.Mail.Messages(ctx, "contact@example.org", "")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.StatusSent, history[1].Status)
}

func TestAppCloseBeforeStartFailsQueuedMessages(t *testing.T) {
	pool := testutil.NewTestDB(t)
	smtpServer := testutil.NewTestSMTPServer(t)

	cfg := &config.Config{
		SMTP:           mailServer(t, smtpServer.Address, smtpServer.Username(), smtpServer.Password()),
		SyncLimit:      50,
		SendTimeout:    5 * time.Second,
		OutboxWorkers:  1,
		OutboxCapacity: 10,
	}
	a := New(cfg, pool, quietLogger())
	ctx := context.Background()

	msg, err := a.Mail.Send(ctx, models.Compose{
		To:      []string{"contact@example.org"},
		Subject: "Never sent",
		Body:    "Hi there",
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusQueued, msg.Status)

	require.NoError(t, a.Close(ctx))

	assert.Empty(t, smtpServer.Messages())
	stored, err := db.GetMessageByID(ctx, pool, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "before workers started")
}
