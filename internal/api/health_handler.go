package api

import (
	"context"
	"net/http"
	"time"

	"github.com/leadsengine/dashboard/internal/config"
	"github.com/sirupsen/logrus"
)

const healthTimeout = 5 * time.Second

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Verifier checks that the outgoing mail server accepts our credentials.
type Verifier interface {
	Verify(ctx context.Context) error
}

// HealthHandler reports the state of the database and the SMTP account.
type HealthHandler struct {
	db       Pinger
	smtp     Verifier
	smtpConf config.MailServer
	logger   *logrus.Logger
}

// NewHealthHandler creates a HealthHandler. verifier may be nil when SMTP is
// not configured.
func NewHealthHandler(db Pinger, verifier Verifier, smtpConf config.MailServer, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{db: db, smtp: verifier, smtpConf: smtpConf, logger: logger}
}

// Health returns {ok, db} where db is "connected" or "disconnected".
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	state := "connected"
	if err := h.db.Ping(ctx); err != nil {
		h.logger.WithError(err).Warn("HealthHandler: database ping failed")
		state = "disconnected"
	}
	writeOK(w, h.logger, envelope{"db": state})
}

// EmailHealth verifies the SMTP account. Failures are reported in the body,
// never as an HTTP error.
func (h *HealthHandler) EmailHealth(w http.ResponseWriter, r *http.Request) {
	ready := false
	errText := ""

	if h.smtp != nil && h.smtpConf.Configured() {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := h.smtp.Verify(ctx); err != nil {
			errText = truncate(err.Error(), 200)
		} else {
			ready = true
		}
	}

	writeOK(w, h.logger, envelope{
		"ready":   ready,
		"host":    h.smtpConf.Host,
		"port":    h.smtpConf.Port,
		"secure":  h.smtpConf.Secure,
		"userSet": h.smtpConf.Username != "",
		"error":   errText,
	})
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
