package mailbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/leadsengine/dashboard/internal/models"
	"github.com/sirupsen/logrus"
)

type memoryStore struct {
	mu        sync.Mutex
	messages  []*models.Message
	threads   map[string]*models.Thread
	nextID    int
	threadErr error
	// insertErr and existsErr fail the call for the keyed external id.
	insertErr map[string]error
	existsErr map[string]error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{threads: make(map[string]*models.Thread)}
}

func (m *memoryStore) MessageExists(_ context.Context, externalID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.existsErr[externalID]; err != nil {
		return false, err
	}
	for _, msg := range m.messages {
		if msg.ExternalID == externalID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) InsertMessage(_ context.Context, msg *models.Message) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.insertErr[msg.ExternalID]; err != nil {
		return false, err
	}
	if msg.ExternalID != "" {
		for _, existing := range m.messages {
			if existing.ExternalID == msg.ExternalID {
				return false, nil
			}
		}
	}
	m.nextID++
	msg.ID = fmt.Sprintf("msg-%d", m.nextID)
	stored := *msg
	m.messages = append(m.messages, &stored)
	return true, nil
}

func (m *memoryStore) UpdateMessageStatus(_ context.Context, id string, update models.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.ID == id {
			msg.Status = update.Status
			msg.Error = update.Error
			if update.ExternalID != "" {
				msg.ExternalID = update.ExternalID
			}
			return nil
		}
	}
	return errors.New("message not found")
}

func (m *memoryStore) MessagesByContact(_ context.Context, contact, subject string) ([]*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Message
	for _, msg := range m.messages {
		if msg.Contact == contact && (subject == "" || msg.Subject == subject) {
			c := *msg
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SentAt.Before(out[j].SentAt) })
	return out, nil
}

func (m *memoryStore) LatestPerContact(_ context.Context) ([]models.ContactActivity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := map[string]models.ContactActivity{}
	for _, msg := range m.messages {
		if msg.Contact == "" {
			continue
		}
		if cur, ok := latest[msg.Contact]; !ok || msg.SentAt.After(cur.LastAt) {
			latest[msg.Contact] = models.ContactActivity{
				Contact: msg.Contact,
				LastAt:  msg.SentAt,
				Subject: msg.Subject,
				Body:    msg.Body,
			}
		}
	}
	out := make([]models.ContactActivity, 0, len(latest))
	for _, a := range latest {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastAt.After(out[j].LastAt) })
	return out, nil
}

func (m *memoryStore) Thread(_ context.Context, contact string) (*models.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.threadErr != nil {
		return nil, m.threadErr
	}
	t, ok := m.threads[strings.ToLower(contact)]
	if !ok {
		return nil, nil
	}
	c := *t
	return &c, nil
}

func (m *memoryStore) UpsertThread(_ context.Context, contact, subject string) (*models.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &models.Thread{Contact: strings.ToLower(contact), Subject: subject}
	m.threads[t.Contact] = t
	c := *t
	return &c, nil
}

func (m *memoryStore) byID(id string) *models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.ID == id {
			c := *msg
			return &c
		}
	}
	return nil
}

func (m *memoryStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

type staticUsers struct {
	users []*models.User
}

func (s staticUsers) ListUsers(context.Context) ([]*models.User, error) {
	return s.users, nil
}

func (s staticUsers) UsersByEmails(_ context.Context, emails []string) ([]*models.User, error) {
	var out []*models.User
	for _, u := range s.users {
		for _, e := range emails {
			if strings.EqualFold(u.Email, e) {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

type fakeFetcher struct {
	messages    []RawMessage
	bodies      map[string]string
	downloadErr map[string]error
	openErr     error
	fetchErr    error

	mu      sync.Mutex
	opened  int
	logouts int
}

func (f *fakeFetcher) Open(context.Context) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opened++
	return &fakeSession{fetcher: f}, nil
}

type fakeSession struct {
	fetcher *fakeFetcher
}

func (s *fakeSession) FetchRecent(_ context.Context, limit int) ([]RawMessage, error) {
	if s.fetcher.fetchErr != nil {
		return nil, s.fetcher.fetchErr
	}
	msgs := s.fetcher.messages
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (s *fakeSession) Download(_ context.Context, msg RawMessage, part Leaf) (string, error) {
	key := msg.ExternalID + "/" + part.ID
	if err := s.fetcher.downloadErr[key]; err != nil {
		return "", err
	}
	return s.fetcher.bodies[key], nil
}

func (s *fakeSession) Logout() error {
	s.fetcher.mu.Lock()
	defer s.fetcher.mu.Unlock()
	s.fetcher.logouts++
	return nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []OutgoingMail
	id   string
	err  error
}

func (f *fakeSender) Send(_ context.Context, mail OutgoingMail) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, mail)
	if f.err != nil {
		return "", f.err
	}
	return f.id, nil
}

// heldQueue keeps jobs until the test runs them, so tests can observe the
// queued state before delivery.
type heldQueue struct {
	mu   sync.Mutex
	jobs []DeliveryJob
	err  error
}

func (q *heldQueue) Enqueue(job DeliveryJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *heldQueue) drain(ctx context.Context, s *Service) error {
	q.mu.Lock()
	jobs := q.jobs
	q.jobs = nil
	q.mu.Unlock()
	for _, job := range jobs {
		if err := s.Deliver(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
