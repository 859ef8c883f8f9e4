package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/leadsengine/dashboard/internal/mailbox"
	"github.com/leadsengine/dashboard/internal/models"
	"github.com/sirupsen/logrus"
)

// MailHandler serves outbound email and the chat views built on the stored
// conversation history.
type MailHandler struct {
	mail   mailbox.MailService
	logger *logrus.Logger
}

func NewMailHandler(mail mailbox.MailService, logger *logrus.Logger) *MailHandler {
	return &MailHandler{mail: mail, logger: logger}
}

// addressList accepts either a JSON string ("a@x, b@y") or an array of strings.
type addressList []string

func (a *addressList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*a = addressList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*a = many
	return nil
}

type attachmentRequest struct {
	Filename      string `json:"filename"`
	ContentBase64 string `json:"contentBase64"`
	ContentType   string `json:"contentType"`
}

type sendRequest struct {
	FromName    string              `json:"fromName"`
	FromEmail   string              `json:"fromEmail"`
	To          addressList         `json:"to"`
	CC          addressList         `json:"cc"`
	BCC         addressList         `json:"bcc"`
	Subject     string              `json:"subject"`
	Body        string              `json:"body"`
	Attachments []attachmentRequest `json:"attachments"`
}

// Send records the message as queued and returns its id. Delivery happens in
// the background.
func (h *MailHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	msg, err := h.mail.Send(r.Context(), models.Compose{
		FromName:    req.FromName,
		FromEmail:   req.FromEmail,
		To:          req.To,
		CC:          req.CC,
		BCC:         req.BCC,
		Subject:     req.Subject,
		Body:        req.Body,
		Attachments: h.decodeAttachments(req.Attachments),
	})
	switch {
	case errors.Is(err, mailbox.ErrTransportNotConfigured):
		writeError(w, h.logger, http.StatusBadRequest, "SMTP credentials missing")
		return
	case err != nil:
		if reason, ok := validationReason(err); ok {
			writeError(w, h.logger, http.StatusBadRequest, reason)
			return
		}
		h.logger.WithError(err).Error("MailHandler: failed to queue email")
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to queue email")
		return
	}

	writeOK(w, h.logger, envelope{
		"queued": msg.Status == models.StatusQueued,
		"id":     msg.ID,
		"status": msg.Status,
	})
}

// decodeAttachments drops entries without a name or with invalid base64.
func (h *MailHandler) decodeAttachments(in []attachmentRequest) []models.Attachment {
	var out []models.Attachment
	for _, a := range in {
		if a.Filename == "" || a.ContentBase64 == "" {
			continue
		}
		content, err := base64.StdEncoding.DecodeString(a.ContentBase64)
		if err != nil {
			h.logger.WithError(err).WithField("filename", a.Filename).Warn("MailHandler: skipping undecodable attachment")
			continue
		}
		out = append(out, models.Attachment{
			Filename:    a.Filename,
			Content:     content,
			ContentType: a.ContentType,
		})
	}
	return out
}

// GetThread returns the subject remembered for ?email=.
func (h *MailHandler) GetThread(w http.ResponseWriter, r *http.Request) {
	subject, err := h.mail.ThreadSubject(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		h.fail(w, err, "Failed to fetch thread subject")
		return
	}
	writeOK(w, h.logger, envelope{"subject": subject})
}

type threadRequest struct {
	Email   string `json:"email"`
	Subject string `json:"subject"`
}

// SetThread remembers the subject used for future messages to a contact.
func (h *MailHandler) SetThread(w http.ResponseWriter, r *http.Request) {
	var req threadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	subject, err := h.mail.SetThreadSubject(r.Context(), req.Email, req.Subject)
	if err != nil {
		h.fail(w, err, "Failed to set thread subject")
		return
	}
	writeOK(w, h.logger, envelope{"subject": subject})
}

// SyncInbox pulls recent inbox messages into the store.
func (h *MailHandler) SyncInbox(w http.ResponseWriter, r *http.Request) {
	result, err := h.mail.SyncInbox(r.Context())
	if errors.Is(err, mailbox.ErrTransportNotConfigured) {
		writeError(w, h.logger, http.StatusBadRequest, "IMAP credentials missing")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("MailHandler: inbox sync failed")
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to sync inbox")
		return
	}

	writeOK(w, h.logger, envelope{
		"fetched":  result.Fetched,
		"inserted": result.Inserted,
		"skipped":  result.Skipped,
	})
}

// Conversations lists the chat sidebar. ?onlyMessaged=true limits it to
// contacts with stored messages.
func (h *MailHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.mail.Conversations(r.Context(), queryBool(r, "onlyMessaged"))
	if err != nil {
		h.fail(w, err, "Failed to fetch conversations")
		return
	}
	writeOK(w, h.logger, envelope{"conversations": conversations})
}

// Messages returns the history with ?email=, optionally filtered by ?subject=.
func (h *MailHandler) Messages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	messages, err := h.mail.Messages(r.Context(), q.Get("email"), q.Get("subject"))
	if err != nil {
		h.fail(w, err, "Failed to fetch messages")
		return
	}
	writeOK(w, h.logger, envelope{"messages": messages})
}

// fail maps validation errors to 400 and everything else to 500 with the
// given message.
func (h *MailHandler) fail(w http.ResponseWriter, err error, message string) {
	if reason, ok := validationReason(err); ok {
		writeError(w, h.logger, http.StatusBadRequest, reason)
		return
	}
	h.logger.WithError(err).Error("MailHandler: " + strings.ToLower(message[:1]) + message[1:])
	writeError(w, h.logger, http.StatusInternalServerError, message)
}
