package mailbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/leadsengine/dashboard/internal/models"
	"github.com/sirupsen/logrus"
)

// Send records an outbound message as queued and hands it to the delivery
// queue. It returns as soon as the message is stored; the final status is
// written by Deliver.
func (s *Service) Send(ctx context.Context, compose models.Compose) (*models.Message, error) {
	if !s.CanSend() {
		return nil, ErrTransportNotConfigured
	}

	to := SplitRecipients(compose.To...)
	if len(to) == 0 || strings.TrimSpace(compose.Subject) == "" {
		return nil, invalid("to and subject required")
	}

	contact := NormalizeAddress(to[0])
	subject := s.threadSubject(ctx, contact, compose.Subject)

	from := s.cfg.Sender
	if strings.Contains(compose.FromEmail, "@") {
		from = strings.TrimSpace(compose.FromEmail)
	}

	mail := OutgoingMail{
		FromName:    strings.TrimSpace(compose.FromName),
		From:        from,
		To:          to,
		CC:          SplitRecipients(compose.CC...),
		BCC:         SplitRecipients(compose.BCC...),
		Subject:     subject,
		Text:        compose.Body,
		HTML:        compose.Body,
		Attachments: validAttachments(compose.Attachments),
	}

	return s.enqueue(ctx, contact, mail)
}

// Notify queues a system message to one recipient. The stored thread subject
// is not applied.
func (s *Service) Notify(ctx context.Context, recipient, subject, text, html string) (*models.Message, error) {
	if !s.CanSend() {
		return nil, ErrTransportNotConfigured
	}

	contact := NormalizeAddress(recipient)
	if contact == "" || subject == "" {
		return nil, invalid("recipient and subject required")
	}

	return s.enqueue(ctx, contact, OutgoingMail{
		FromName: s.cfg.SenderName,
		From:     s.cfg.Sender,
		To:       []string{recipient},
		Subject:  subject,
		Text:     text,
		HTML:     html,
	})
}

func (s *Service) enqueue(ctx context.Context, contact string, mail OutgoingMail) (*models.Message, error) {
	body := mail.Text
	if body == "" {
		body = mail.HTML
	}

	msg := &models.Message{
		FromAddress:  mail.From,
		ToAddresses:  mail.To,
		CCAddresses:  mail.CC,
		BCCAddresses: mail.BCC,
		Subject:      mail.Subject,
		Body:         body,
		SentAt:       time.Now(),
		Direction:    models.DirectionOutbound,
		Contact:      contact,
		Status:       models.StatusQueued,
	}

	if _, err := s.store.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to record outgoing message: %w", err)
	}

	if err := s.queue.Enqueue(DeliveryJob{MessageID: msg.ID, Mail: mail}); err != nil {
		s.logger.WithError(err).WithField("message_id", msg.ID).Error("Mailbox: failed to queue delivery")
		s.finish(ctx, msg.ID, contact, models.StatusUpdate{
			Status: models.StatusFailed,
			Error:  TruncateError(err),
		})
		msg.Status = models.StatusFailed
		msg.Error = TruncateError(err)
	}

	return msg, nil
}

// Deliver makes the single delivery attempt for a queued message and records
// the outcome. It only returns an error when the outcome could not be stored.
func (s *Service) Deliver(ctx context.Context, job DeliveryJob) error {
	externalID, err := s.attempt(ctx, job.Mail)
	contact := job.contact()

	update := models.StatusUpdate{Status: models.StatusSent, ExternalID: externalID}
	if err != nil {
		update = models.StatusUpdate{Status: models.StatusFailed, Error: TruncateError(err)}
		s.logger.WithError(err).WithFields(logrus.Fields{
			"message_id": job.MessageID,
			"contact":    contact,
		}).Warn("Mailbox: delivery failed")
	}

	return s.finish(ctx, job.MessageID, contact, update)
}

// Abandon marks a queued message failed without attempting delivery.
func (s *Service) Abandon(ctx context.Context, job DeliveryJob, reason error) error {
	return s.finish(ctx, job.MessageID, job.contact(), models.StatusUpdate{
		Status: models.StatusFailed,
		Error:  TruncateError(reason),
	})
}

func (job DeliveryJob) contact() string {
	if len(job.Mail.To) == 0 {
		return ""
	}
	return NormalizeAddress(job.Mail.To[0])
}

func (s *Service) attempt(ctx context.Context, mail OutgoingMail) (string, error) {
	if s.sender == nil {
		return "", ErrTransportNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.DeliveryTimeout)
	defer cancel()

	return s.sender.Send(ctx, mail)
}

func (s *Service) finish(ctx context.Context, id, contact string, update models.StatusUpdate) error {
	// The outcome is written even when the request or worker context is gone.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()

	if err := s.store.UpdateMessageStatus(storeCtx, id, update); err != nil {
		s.logger.WithError(err).WithField("message_id", id).Error("Mailbox: failed to record delivery status")
		return fmt.Errorf("failed to record status of message %s: %w", id, err)
	}

	s.publish(Event{
		Type:      EventMessageStatus,
		MessageID: id,
		Contact:   contact,
		Status:    update.Status,
		Error:     update.Error,
	})

	return nil
}

// threadSubject returns the stored subject for contact, or typed when none is
// stored. Lookup failures fall back to typed.
func (s *Service) threadSubject(ctx context.Context, contact, typed string) string {
	thread, err := s.store.Thread(ctx, contact)
	if err != nil {
		s.logger.WithError(err).WithField("contact", contact).Warn("Mailbox: thread lookup failed")
		return typed
	}
	if thread != nil && thread.Subject != "" {
		return thread.Subject
	}
	return typed
}

func validAttachments(in []models.Attachment) []models.Attachment {
	var out []models.Attachment
	for _, a := range in {
		if a.Filename == "" || len(a.Content) == 0 {
			continue
		}
		out = append(out, a)
	}
	return out
}
