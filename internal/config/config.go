package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MailServer holds connection parameters for one SMTP or IMAP endpoint.
type MailServer struct {
	Host     string
	Port     int
	Username string
	Password string
	Secure   bool
}

// Configured reports whether credentials are present.
func (m MailServer) Configured() bool {
	return m.Username != "" && m.Password != ""
}

// Address returns host:port.
func (m MailServer) Address() string {
	return fmt.Sprintf("%s:%d", m.Host, m.Port)
}

type Config struct {
	Environment string
	LogLevel    string
	Port        string
	Timezone    string

	DBHost     string
	DBPort     string
	DBUsername string
	DBPassword string
	DBName     string
	DBSSLMode  string

	JWTSecret string
	TokenTTL  time.Duration

	SMTP MailServer
	IMAP MailServer

	SyncLimit        int
	SyncTimeout      time.Duration
	SendTimeout      time.Duration
	IMAPWatch        bool
	IMAPPollInterval time.Duration
	OutboxWorkers    int
	OutboxCapacity   int

	UploadsDir string
	LoginURL   string
	BrandName  string
}

func NewConfig() (*Config, error) {
	env := os.Getenv("DASHBOARD_ENV")
	if env == "" {
		env = "development"
	}

	if env == "development" {
		if err := godotenv.Load(); err != nil {
			fmt.Println("Warning: .env file not found, using environment variables")
		}
	}

	v := newViper()
	if path := v.GetString("DASHBOARD_CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	smtpUser := v.GetString("SMTP_USER")
	smtpPass := v.GetString("SMTP_PASS")

	config := &Config{
		Environment: env,
		LogLevel:    v.GetString("DASHBOARD_LOG_LEVEL"),
		Port:        v.GetString("PORT"),
		Timezone:    v.GetString("TZ"),
		DBHost:      v.GetString("DASHBOARD_DB_HOST"),
		DBPort:      v.GetString("DASHBOARD_DB_PORT"),
		DBUsername:  v.GetString("DASHBOARD_DB_USER"),
		DBPassword:  v.GetString("DASHBOARD_DB_PASSWORD"),
		DBName:      v.GetString("DASHBOARD_DB_NAME"),
		DBSSLMode:   v.GetString("DASHBOARD_DB_SSLMODE"),
		JWTSecret:   v.GetString("DASHBOARD_JWT_SECRET"),
		TokenTTL:    v.GetDuration("DASHBOARD_TOKEN_TTL"),
		SMTP: MailServer{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetInt("SMTP_PORT"),
			Username: smtpUser,
			Password: smtpPass,
			Secure:   v.GetBool("SMTP_SECURE"),
		},
		// The mailbox falls back to the SMTP account when no IMAP login is set.
		IMAP: MailServer{
			Host:     v.GetString("IMAP_HOST"),
			Port:     v.GetInt("IMAP_PORT"),
			Username: firstNonEmpty(v.GetString("IMAP_USER"), smtpUser),
			Password: firstNonEmpty(v.GetString("IMAP_PASS"), smtpPass),
			Secure:   v.GetBool("IMAP_SECURE"),
		},
		SyncLimit:        v.GetInt("MAIL_SYNC_LIMIT"),
		SyncTimeout:      v.GetDuration("MAIL_SYNC_TIMEOUT"),
		SendTimeout:      v.GetDuration("MAIL_SEND_TIMEOUT"),
		IMAPWatch:        v.GetBool("IMAP_WATCH"),
		IMAPPollInterval: v.GetDuration("IMAP_POLL_INTERVAL"),
		OutboxWorkers:    v.GetInt("OUTBOX_WORKERS"),
		OutboxCapacity:   v.GetInt("OUTBOX_CAPACITY"),
		UploadsDir:       v.GetString("UPLOADS_ROOT"),
		LoginURL:         v.GetString("DASHBOARD_LOGIN_URL"),
		BrandName:        v.GetString("DASHBOARD_BRAND_NAME"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("DASHBOARD_LOG_LEVEL", "info")
	v.SetDefault("PORT", "3001")
	v.SetDefault("TZ", "UTC")
	v.SetDefault("DASHBOARD_DB_HOST", "localhost")
	v.SetDefault("DASHBOARD_DB_PORT", "5432")
	v.SetDefault("DASHBOARD_DB_USER", "dashboard")
	v.SetDefault("DASHBOARD_DB_NAME", "dashboard")
	v.SetDefault("DASHBOARD_DB_SSLMODE", "disable")
	v.SetDefault("DASHBOARD_TOKEN_TTL", 12*time.Hour)
	v.SetDefault("SMTP_HOST", "smtp.hostinger.com")
	v.SetDefault("SMTP_PORT", 465)
	v.SetDefault("SMTP_SECURE", true)
	v.SetDefault("IMAP_HOST", "imap.hostinger.com")
	v.SetDefault("IMAP_PORT", 993)
	v.SetDefault("IMAP_SECURE", true)
	v.SetDefault("MAIL_SYNC_LIMIT", 50)
	v.SetDefault("MAIL_SYNC_TIMEOUT", 60*time.Second)
	v.SetDefault("MAIL_SEND_TIMEOUT", 30*time.Second)
	v.SetDefault("IMAP_WATCH", false)
	v.SetDefault("IMAP_POLL_INTERVAL", 5*time.Minute)
	v.SetDefault("OUTBOX_WORKERS", 1)
	v.SetDefault("OUTBOX_CAPACITY", 100)
	v.SetDefault("UPLOADS_ROOT", "public/uploads")
	v.SetDefault("DASHBOARD_LOGIN_URL", "http://localhost:3000/auth/login")
	v.SetDefault("DASHBOARD_BRAND_NAME", "Leads Engine AI")

	return v
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("DASHBOARD_JWT_SECRET is required")
	}

	if c.DBPassword == "" {
		return fmt.Errorf("DASHBOARD_DB_PASSWORD is required")
	}

	if c.SyncLimit <= 0 {
		return fmt.Errorf("MAIL_SYNC_LIMIT must be positive, got %d", c.SyncLimit)
	}

	if c.OutboxWorkers <= 0 {
		return fmt.Errorf("OUTBOX_WORKERS must be positive, got %d", c.OutboxWorkers)
	}

	return nil
}

func (c *Config) GetDatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUsername, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
