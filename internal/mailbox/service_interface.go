package mailbox

import (
	"context"

	"github.com/leadsengine/dashboard/internal/models"
)

// MailService defines the operations the HTTP handlers use.
// This interface allows handlers to be tested with mock implementations.
type MailService interface {
	// SyncInbox pulls recent inbox messages into the store.
	SyncInbox(ctx context.Context) (SyncResult, error)

	// Send stores a queued outbound message and schedules its delivery.
	Send(ctx context.Context, compose models.Compose) (*models.Message, error)

	// Notify queues a system email to a single recipient.
	Notify(ctx context.Context, recipient, subject, text, html string) (*models.Message, error)

	ThreadSubject(ctx context.Context, email string) (string, error)
	SetThreadSubject(ctx context.Context, email, subject string) (string, error)

	// Conversations lists the chat sidebar rows.
	Conversations(ctx context.Context, onlyMessaged bool) ([]models.Conversation, error)

	// Messages returns a contact's chat history oldest first.
	Messages(ctx context.Context, email, subject string) ([]models.ChatMessage, error)

	CanSend() bool
	CanSync() bool
}

// Ensure Service implements MailService interface
var _ MailService = (*Service)(nil)
