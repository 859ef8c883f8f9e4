package mailbox

import (
	"context"
	"fmt"
	"strings"

	"github.com/leadsengine/dashboard/internal/models"
)

// Chat authors.
const (
	AuthorMe   = "me"
	AuthorThem = "them"
)

// Conversations lists the chat sidebar. With onlyMessaged, it lists every
// contact with at least one stored message, most recent first; otherwise
// every user, in directory order.
func (s *Service) Conversations(ctx context.Context, onlyMessaged bool) ([]models.Conversation, error) {
	activity, err := s.store.LatestPerContact(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate messages: %w", err)
	}

	if onlyMessaged {
		return s.messagedConversations(ctx, activity)
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	latest := make(map[string]*models.ContactActivity, len(activity))
	for i := range activity {
		latest[activity[i].Contact] = &activity[i]
	}

	conversations := make([]models.Conversation, 0, len(users))
	for _, u := range users {
		conversations = append(conversations, conversation(u.Email, u, latest[NormalizeAddress(u.Email)]))
	}
	return conversations, nil
}

func (s *Service) messagedConversations(ctx context.Context, activity []models.ContactActivity) ([]models.Conversation, error) {
	emails := make([]string, len(activity))
	for i, a := range activity {
		emails[i] = a.Contact
	}

	users, err := s.users.UsersByEmails(ctx, emails)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve contacts: %w", err)
	}
	byEmail := make(map[string]*models.User, len(users))
	for _, u := range users {
		byEmail[NormalizeAddress(u.Email)] = u
	}

	conversations := make([]models.Conversation, 0, len(activity))
	for i := range activity {
		a := &activity[i]
		conversations = append(conversations, conversation(a.Contact, byEmail[a.Contact], a))
	}
	return conversations, nil
}

func conversation(email string, user *models.User, last *models.ContactActivity) models.Conversation {
	c := models.Conversation{
		Email: email,
		Name:  email,
		Seed:  Initials(user, email),
	}
	if user != nil {
		if name := user.DisplayName(); name != "" {
			c.Name = name
		}
		c.Status = user.ComputedStatus()
	}
	if last != nil {
		c.Last = Snippet(last.Subject, last.Body)
		at := last.LastAt
		c.Time = &at
	}
	return c
}

// Messages returns a contact's conversation oldest first, optionally limited
// to one subject.
func (s *Service) Messages(ctx context.Context, email, subject string) ([]models.ChatMessage, error) {
	contact := NormalizeAddress(email)
	if contact == "" {
		return nil, invalid("email required")
	}

	stored, err := s.store.MessagesByContact(ctx, contact, strings.TrimSpace(subject))
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	messages := make([]models.ChatMessage, 0, len(stored))
	for _, m := range stored {
		text := m.Body
		if text == "" {
			text = m.Subject
		}
		messages = append(messages, models.ChatMessage{
			ID:        m.ID,
			Author:    s.author(m),
			Text:      text,
			At:        m.SentAt,
			Status:    m.Status,
			MessageID: m.ExternalID,
		})
	}
	return messages, nil
}

func (s *Service) author(m *models.Message) string {
	if SameAddress(m.FromAddress, s.cfg.Sender) || m.Direction == models.DirectionOutbound {
		return AuthorMe
	}
	return AuthorThem
}

// ThreadSubject returns the subject remembered for a contact, or "" when none is stored.
func (s *Service) ThreadSubject(ctx context.Context, email string) (string, error) {
	contact := NormalizeAddress(email)
	if contact == "" {
		return "", invalid("email required")
	}

	thread, err := s.store.Thread(ctx, contact)
	if err != nil {
		return "", fmt.Errorf("failed to fetch thread subject: %w", err)
	}
	if thread == nil {
		return "", nil
	}
	return thread.Subject, nil
}

// SetThreadSubject creates or overwrites the subject remembered for a contact.
func (s *Service) SetThreadSubject(ctx context.Context, email, subject string) (string, error) {
	contact := NormalizeAddress(email)
	subject = strings.TrimSpace(subject)
	if contact == "" || subject == "" {
		return "", invalid("email and subject required")
	}

	thread, err := s.store.UpsertThread(ctx, contact, subject)
	if err != nil {
		return "", fmt.Errorf("failed to set thread subject: %w", err)
	}
	return thread.Subject, nil
}
