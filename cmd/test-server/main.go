package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leadsengine/dashboard/internal/config"
	"github.com/leadsengine/dashboard/internal/db"
	"github.com/leadsengine/dashboard/internal/logging"
	"github.com/leadsengine/dashboard/internal/seed"
	"github.com/leadsengine/dashboard/internal/server"
	"github.com/leadsengine/dashboard/internal/testutil"
	"github.com/leadsengine/dashboard/migrations"
	"github.com/sirupsen/logrus"
)

// inboxFixture is a message the test IMAP server holds before the first sync.
type inboxFixture struct {
	messageID string
	subject   string
	from      string
	body      string
	age       time.Duration
}

var inboxFixtures = []inboxFixture{
	{"<welcome@test>", "Welcome to Leads Engine", seed.TestUserEmail, "Thanks for the onboarding call.", 2 * time.Hour},
	{"<leads@test>", "Lead list question", seed.TestUserEmail, "Can I get more Instagram leads this month?", time.Hour},
	{"<billing@test>", "Invoice", "billing@example.com", "Your invoice is attached.", 10 * time.Minute},
}

func main() {
	logger := logging.New("development", "debug")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.WithError(err).Error("Test server stopped with error")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *logrus.Logger) error {
	logger.Info("Starting test Postgres database...")
	postgres, err := testutil.StartPostgres(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := postgres.Terminate(context.Background()); err != nil {
			logger.WithError(err).Warn("Failed to terminate Postgres container")
		}
	}()

	imapServer, err := testutil.StartIMAPServer()
	if err != nil {
		return fmt.Errorf("failed to start test IMAP server: %w", err)
	}
	defer imapServer.Close()

	smtpServer, err := testutil.StartSMTPServer()
	if err != nil {
		return fmt.Errorf("failed to start test SMTP server: %w", err)
	}
	defer smtpServer.Close()

	if err := seedInbox(imapServer); err != nil {
		return err
	}

	uploads, err := os.MkdirTemp("", "dashboard-uploads-")
	if err != nil {
		return fmt.Errorf("failed to create uploads dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(uploads) }()

	dbCfg, err := testutil.PostgresConfig(ctx, postgres)
	if err != nil {
		return err
	}

	if err := setupTestEnvironment(dbCfg, imapServer, smtpServer, uploads); err != nil {
		return err
	}

	cfg, err := config.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := seedDatabase(ctx, cfg, logger); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"imap":     imapServer.Address,
		"smtp":     smtpServer.Address,
		"admin":    seed.TestAdminEmail,
		"password": seed.TestAdminPassword,
	}).Info("Test server ready for E2E tests. Press Ctrl+C to stop.")

	err = server.Run(ctx, cfg, logger)
	logger.WithField("delivered", len(smtpServer.Messages())).Info("Test SMTP server summary")
	return err
}

// setupTestEnvironment points the regular config loader at the disposable
// services.
func setupTestEnvironment(dbCfg *config.Config, imapServer *testutil.TestIMAPServer, smtpServer *testutil.TestSMTPServer, uploads string) error {
	imapHost, imapPort, err := net.SplitHostPort(imapServer.Address)
	if err != nil {
		return fmt.Errorf("failed to parse IMAP address: %w", err)
	}
	smtpHost, smtpPort, err := net.SplitHostPort(smtpServer.Address)
	if err != nil {
		return fmt.Errorf("failed to parse SMTP address: %w", err)
	}

	env := map[string]string{
		"DASHBOARD_ENV":         "test",
		"DASHBOARD_DB_HOST":     dbCfg.DBHost,
		"DASHBOARD_DB_PORT":     dbCfg.DBPort,
		"DASHBOARD_DB_USER":     dbCfg.DBUsername,
		"DASHBOARD_DB_PASSWORD": dbCfg.DBPassword,
		"DASHBOARD_DB_NAME":     dbCfg.DBName,
		"SMTP_HOST":             smtpHost,
		"SMTP_PORT":             smtpPort,
		"SMTP_USER":             smtpServer.Username(),
		"SMTP_PASS":             smtpServer.Password(),
		"SMTP_SECURE":           "false",
		"IMAP_HOST":             imapHost,
		"IMAP_PORT":             imapPort,
		"IMAP_USER":             imapServer.Username(),
		"IMAP_PASS":             imapServer.Password(),
		"IMAP_SECURE":           "false",
		"IMAP_WATCH":            "true",
		"IMAP_POLL_INTERVAL":    "30s",
		"UPLOADS_ROOT":          uploads,
	}
	if os.Getenv("DASHBOARD_JWT_SECRET") == "" {
		env["DASHBOARD_JWT_SECRET"] = dbCfg.JWTSecret
	}

	for key, value := range env {
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}
	return nil
}

func seedInbox(imapServer *testutil.TestIMAPServer) error {
	now := time.Now()
	for _, f := range inboxFixtures {
		raw := testutil.PlainMessage(f.messageID, f.subject, f.from, imapServer.Username(), f.body, now.Add(-f.age))
		if _, err := imapServer.Append("INBOX", f.messageID, raw); err != nil {
			return fmt.Errorf("failed to add message %s: %w", f.messageID, err)
		}
	}
	return nil
}

// seedDatabase creates the schema, the test admin and the test user's leads
// so the dashboard has data on first load.
func seedDatabase(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	pool, err := db.NewConnection(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.CloseConnection(pool)

	if _, err := migrations.Apply(ctx, pool); err != nil {
		return err
	}
	if _, err := seed.Admin(ctx, pool); err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}
	result, err := seed.Leads(ctx, pool, time.Now())
	if err != nil {
		return fmt.Errorf("failed to seed leads: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"user":  result.User.Email,
		"leads": result.Counts.Total(),
	}).Info("Seeded test data")
	return nil
}
