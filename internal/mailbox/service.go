package mailbox

import (
	"context"
	"errors"
	"time"

	"github.com/leadsengine/dashboard/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrTransportNotConfigured is returned when no mail account credentials are set.
var ErrTransportNotConfigured = errors.New("mail transport not configured")

// ErrValidation marks a request rejected before any side effect.
var ErrValidation = errors.New("invalid request")

// ValidationError carries the reason shown to the caller. It matches
// ErrValidation with errors.Is.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(reason string) error {
	return &ValidationError{Reason: reason}
}

// Store persists messages and thread subjects. Lookups return nil, nil when
// nothing is stored.
type Store interface {
	MessageExists(ctx context.Context, externalID string) (bool, error)
	// InsertMessage reports false when the external id is already stored.
	InsertMessage(ctx context.Context, msg *models.Message) (bool, error)
	UpdateMessageStatus(ctx context.Context, id string, update models.StatusUpdate) error
	MessagesByContact(ctx context.Context, contact, subject string) ([]*models.Message, error)
	LatestPerContact(ctx context.Context) ([]models.ContactActivity, error)
	Thread(ctx context.Context, contact string) (*models.Thread, error)
	UpsertThread(ctx context.Context, contact, subject string) (*models.Thread, error)
}

// UserDirectory resolves contact addresses to customer accounts.
type UserDirectory interface {
	ListUsers(ctx context.Context) ([]*models.User, error)
	UsersByEmails(ctx context.Context, emails []string) ([]*models.User, error)
}

// RawMessage is a message as listed by the remote mailbox, before its body
// has been downloaded.
type RawMessage struct {
	UID        uint32
	ExternalID string
	From       string
	To         []string
	CC         []string
	Subject    string
	Date       time.Time
	Structure  Part
}

// Session is an open, read-only view of the remote inbox.
type Session interface {
	// FetchRecent lists up to limit of the newest messages, oldest first.
	FetchRecent(ctx context.Context, limit int) ([]RawMessage, error)
	// Download returns the decoded text of one part.
	Download(ctx context.Context, msg RawMessage, part Leaf) (string, error)
	Logout() error
}

// Fetcher opens mailbox sessions.
type Fetcher interface {
	Open(ctx context.Context) (Session, error)
}

// OutgoingMail is a fully resolved message handed to the transport.
type OutgoingMail struct {
	FromName    string
	From        string
	To          []string
	CC          []string
	BCC         []string
	Subject     string
	Text        string
	HTML        string
	Attachments []models.Attachment
}

// Sender delivers mail and returns the transport's message id.
type Sender interface {
	Send(ctx context.Context, mail OutgoingMail) (string, error)
}

// DeliveryJob is the background continuation of a send request.
type DeliveryJob struct {
	MessageID string
	Mail      OutgoingMail
}

// Queue accepts delivery jobs without waiting for them to run.
type Queue interface {
	Enqueue(job DeliveryJob) error
}

// Event types published to the dashboard.
const (
	EventMessageStatus = "message_status"
	EventInboxSynced   = "inbox_synced"
)

// Event is a notification for connected dashboard sessions.
type Event struct {
	Type      string                `json:"type"`
	MessageID string                `json:"messageId,omitempty"`
	Contact   string                `json:"contact,omitempty"`
	Status    models.DeliveryStatus `json:"status,omitempty"`
	Error     string                `json:"error,omitempty"`
	Fetched   int                   `json:"fetched,omitempty"`
	Inserted  int                   `json:"inserted,omitempty"`
}

// Publisher fans events out to listeners.
type Publisher interface {
	Publish(event Event)
}

// Config holds the engine's settings.
type Config struct {
	// Mailbox is the address of the synced inbox; mail from it is outbound.
	Mailbox string
	// Sender is the default From address of outgoing mail.
	Sender string
	// SenderName is the display name used for account notifications.
	SenderName      string
	SyncLimit       int
	SyncTimeout     time.Duration
	DeliveryTimeout time.Duration
}

// Dependencies are the collaborators of a Service. Fetcher and Sender may be
// nil when the corresponding account is not configured.
type Dependencies struct {
	Store     Store
	Users     UserDirectory
	Fetcher   Fetcher
	Sender    Sender
	Queue     Queue
	Publisher Publisher
}

// Service reconciles the remote mailbox with stored conversations.
type Service struct {
	cfg       Config
	store     Store
	users     UserDirectory
	fetcher   Fetcher
	sender    Sender
	queue     Queue
	publisher Publisher
	logger    *logrus.Logger
}

const (
	defaultSyncLimit       = 50
	defaultSyncTimeout     = 60 * time.Second
	defaultDeliveryTimeout = 30 * time.Second
	statusWriteTimeout     = 10 * time.Second
)

// NewService creates a mail service.
func NewService(cfg Config, deps Dependencies, logger *logrus.Logger) *Service {
	if cfg.SyncLimit <= 0 {
		cfg.SyncLimit = defaultSyncLimit
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = defaultSyncTimeout
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = defaultDeliveryTimeout
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = cfg.Sender
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Service{
		cfg:       cfg,
		store:     deps.Store,
		users:     deps.Users,
		fetcher:   deps.Fetcher,
		sender:    deps.Sender,
		queue:     deps.Queue,
		publisher: deps.Publisher,
		logger:    logger,
	}
}

// CanSend reports whether outbound mail is configured.
func (s *Service) CanSend() bool {
	return s.sender != nil && s.queue != nil
}

// CanSync reports whether inbox sync is configured.
func (s *Service) CanSync() bool {
	return s.fetcher != nil
}

func (s *Service) publish(event Event) {
	if s.publisher != nil {
		s.publisher.Publish(event)
	}
}
