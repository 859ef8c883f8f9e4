package models

import "time"

// Direction tells whether a message was received by or sent from the mailbox.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// DeliveryStatus tracks an outbound message through the outbox.
// Inbound messages carry an empty status.
type DeliveryStatus string

const (
	StatusQueued DeliveryStatus = "queued"
	StatusSent   DeliveryStatus = "sent"
	StatusFailed DeliveryStatus = "failed"
)

// Message is a single stored email, inbound or outbound.
type Message struct {
	ID           string         `json:"id"`
	FromAddress  string         `json:"from"`
	ToAddresses  []string       `json:"to"`
	CCAddresses  []string       `json:"cc"`
	BCCAddresses []string       `json:"bcc"`
	Subject      string         `json:"subject"`
	Body         string         `json:"body"`
	SentAt       time.Time      `json:"date"`
	Direction    Direction      `json:"direction"`
	Contact      string         `json:"contact_email"`
	ExternalID   string         `json:"message_id"`
	Status       DeliveryStatus `json:"status,omitempty"`
	Error        string         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// StatusUpdate is the final outcome of a delivery attempt.
type StatusUpdate struct {
	Status     DeliveryStatus
	ExternalID string
	Error      string
}

// Thread is the remembered subject line for a contact.
type Thread struct {
	Contact   string    `json:"contact_email"`
	Subject   string    `json:"subject"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ContactActivity is the latest stored message for one contact.
type ContactActivity struct {
	Contact string
	LastAt  time.Time
	Subject string
	Body    string
}

// Attachment is a file attached to an outbound message.
type Attachment struct {
	Filename    string
	Content     []byte
	ContentType string
}

// Compose is an operator's request to send an email.
type Compose struct {
	FromName    string
	FromEmail   string
	To          []string
	CC          []string
	BCC         []string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Conversation is one row of the chat sidebar.
type Conversation struct {
	Email  string     `json:"email"`
	Name   string     `json:"name"`
	Last   string     `json:"last"`
	Time   *time.Time `json:"time"`
	Seed   string     `json:"seed"`
	Status string     `json:"status"`
}

// ChatMessage is one bubble of a conversation view.
type ChatMessage struct {
	ID        string         `json:"id"`
	Author    string         `json:"author"`
	Text      string         `json:"text"`
	At        time.Time      `json:"at"`
	Status    DeliveryStatus `json:"status"`
	MessageID string         `json:"messageId"`
}
