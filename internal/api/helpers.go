package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/leadsengine/dashboard/internal/mailbox"
	"github.com/sirupsen/logrus"
)

// MaxBodyBytes caps JSON request bodies. Receipts and attachments travel
// base64-encoded inside them.
const MaxBodyBytes = 20 << 20

// envelope is the shape of every JSON response: {"ok": ..., ...}.
type envelope map[string]any

func writeJSON(w http.ResponseWriter, logger *logrus.Logger, status int, body envelope) {
	if _, ok := body["ok"]; !ok {
		body["ok"] = status < http.StatusBadRequest
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Warn("API: failed to encode response")
	}
}

func writeOK(w http.ResponseWriter, logger *logrus.Logger, body envelope) {
	if body == nil {
		body = envelope{}
	}
	body["ok"] = true
	writeJSON(w, logger, http.StatusOK, body)
}

func writeError(w http.ResponseWriter, logger *logrus.Logger, status int, message string) {
	writeJSON(w, logger, status, envelope{"ok": false, "error": message})
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst unchanged.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
	}
	return fmt.Errorf("invalid JSON body: %w", err)
}

// validationReason returns the user-facing reason of a mailbox validation
// error.
func validationReason(err error) (string, bool) {
	var v *mailbox.ValidationError
	if errors.As(err, &v) {
		return v.Reason, true
	}
	return "", false
}

// queryBool parses "true" case-insensitively; anything else is false.
func queryBool(r *http.Request, key string) bool {
	return strings.EqualFold(strings.TrimSpace(r.URL.Query().Get(key)), "true")
}
