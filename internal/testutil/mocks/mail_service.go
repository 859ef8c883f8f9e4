package mocks

import (
	"context"

	"github.com/leadsengine/dashboard/internal/mailbox"
	"github.com/leadsengine/dashboard/internal/models"
	"github.com/stretchr/testify/mock"
)

// MailService is a testify mock of mailbox.MailService.
type MailService struct {
	mock.Mock
}

var _ mailbox.MailService = (*MailService)(nil)

// NewMailService creates a mock that asserts its expectations when the test ends.
func NewMailService(t interface {
	mock.TestingT
	Cleanup(func())
}) *MailService {
	m := &MailService{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MailService) SyncInbox(ctx context.Context) (mailbox.SyncResult, error) {
	ret := m.Called(ctx)
	return ret.Get(0).(mailbox.SyncResult), ret.Error(1)
}

func (m *MailService) Send(ctx context.Context, compose models.Compose) (*models.Message, error) {
	ret := m.Called(ctx, compose)
	msg, _ := ret.Get(0).(*models.Message)
	return msg, ret.Error(1)
}

func (m *MailService) Notify(ctx context.Context, recipient, subject, text, html string) (*models.Message, error) {
	ret := m.Called(ctx, recipient, subject, text, html)
	msg, _ := ret.Get(0).(*models.Message)
	return msg, ret.Error(1)
}

func (m *MailService) ThreadSubject(ctx context.Context, email string) (string, error) {
	ret := m.Called(ctx, email)
	return ret.String(0), ret.Error(1)
}

func (m *MailService) SetThreadSubject(ctx context.Context, email, subject string) (string, error) {
	ret := m.Called(ctx, email, subject)
	return ret.String(0), ret.Error(1)
}

func (m *MailService) Conversations(ctx context.Context, onlyMessaged bool) ([]models.Conversation, error) {
	ret := m.Called(ctx, onlyMessaged)
	conversations, _ := ret.Get(0).([]models.Conversation)
	return conversations, ret.Error(1)
}

func (m *MailService) Messages(ctx context.Context, email, subject string) ([]models.ChatMessage, error) {
	ret := m.Called(ctx, email, subject)
	messages, _ := ret.Get(0).([]models.ChatMessage)
	return messages, ret.Error(1)
}

func (m *MailService) CanSend() bool {
	return m.Called().Bool(0)
}

func (m *MailService) CanSync() bool {
	return m.Called().Bool(0)
}
