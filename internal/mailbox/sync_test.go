package mailbox

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/leadsengine/dashboard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner = "me@x.com"

func newSyncService(store *memoryStore, fetcher Fetcher, publisher Publisher) *Service {
	return NewService(Config{Mailbox: owner, Sender: owner}, Dependencies{
		Store:     store,
		Users:     staticUsers{},
		Fetcher:   fetcher,
		Publisher: publisher,
	}, quietLogger())
}

func plainMessage(id, from, to, subject string, date time.Time) RawMessage {
	return RawMessage{
		ExternalID: id,
		From:       from,
		To:         []string{to},
		Subject:    subject,
		Date:       date,
		Structure: Container{Subtype: "alternative", Children: []Part{
			Leaf{ID: "1", Type: "text", Subtype: "plain"},
			Leaf{ID: "2", Type: "text", Subtype: "html"},
		}},
	}
}

func TestSyncInboxIsIdempotent(t *testing.T) {
	now := time.Now().Add(-time.Hour)
	fetcher := &fakeFetcher{
		messages: []RawMessage{
			plainMessage("<a@x.com>", "alice@x.com", owner, "Hi", now),
			plainMessage("<b@x.com>", owner, "bob@y.com", "Offer", now.Add(time.Minute)),
		},
		bodies: map[string]string{
			"<a@x.com>/1": "hello from alice",
			"<b@x.com>/1": "our offer",
		},
	}
	store := newMemoryStore()
	publisher := &recordingPublisher{}
	svc := newSyncService(store, fetcher, publisher)

	first, err := svc.SyncInbox(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Fetched: 2, Inserted: 2}, first)

	second, err := svc.SyncInbox(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Fetched: 2, Inserted: 0, Skipped: 2}, second)

	assert.Equal(t, 2, store.count())
	assert.Equal(t, 2, fetcher.logouts)
	require.Len(t, publisher.events, 2)
	assert.Equal(t, EventInboxSynced, publisher.events[0].Type)
}

func TestSyncInboxDerivesContactAndDirection(t *testing.T) {
	now := time.Now()
	fetcher := &fakeFetcher{
		messages: []RawMessage{
			plainMessage("<a@x.com>", "Alice <alice@x.com>", owner, "Hi", now),
			plainMessage("<b@x.com>", "ME@x.com", "Bob@Y.com", "Offer", now),
		},
		bodies: map[string]string{"<a@x.com>/1": "hello"},
	}
	store := newMemoryStore()
	svc := newSyncService(store, fetcher, nil)

	_, err := svc.SyncInbox(context.Background())
	require.NoError(t, err)

	alice, err := store.MessagesByContact(context.Background(), "alice@x.com", "")
	require.NoError(t, err)
	require.Len(t, alice, 1)
	assert.Equal(t, models.DirectionInbound, alice[0].Direction)
	assert.Equal(t, "hello", alice[0].Body)
	assert.Equal(t, "alice@x.com", alice[0].FromAddress)

	bob, err := store.MessagesByContact(context.Background(), "bob@y.com", "")
	require.NoError(t, err)
	require.Len(t, bob, 1)
	assert.Equal(t, models.DirectionOutbound, bob[0].Direction)
}

func TestSyncInboxBodyFallbacks(t *testing.T) {
	htmlOnly := RawMessage{
		ExternalID: "<html@x.com>",
		From:       "alice@x.com",
		To:         []string{owner},
		Structure:  Leaf{ID: "1", Type: "text", Subtype: "html"},
	}
	broken := plainMessage("<broken@x.com>", "alice@x.com", owner, "Broken", time.Now())

	fetcher := &fakeFetcher{
		messages:    []RawMessage{htmlOnly, broken},
		downloadErr: map[string]error{"<broken@x.com>/1": errors.New("connection reset")},
	}
	store := newMemoryStore()
	svc := newSyncService(store, fetcher, nil)

	result, err := svc.SyncInbox(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)

	msgs, err := store.MessagesByContact(context.Background(), "alice@x.com", "")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		assert.Empty(t, m.Body)
	}
}

func TestSyncInboxUsesNowForMissingDate(t *testing.T) {
	msg := plainMessage("<nodate@x.com>", "alice@x.com", owner, "No date", time.Time{})
	store := newMemoryStore()
	svc := newSyncService(store, &fakeFetcher{messages: []RawMessage{msg}}, nil)

	before := time.Now()
	_, err := svc.SyncInbox(context.Background())
	require.NoError(t, err)

	msgs, _ := store.MessagesByContact(context.Background(), "alice@x.com", "")
	require.Len(t, msgs, 1)
	assert.False(t, msgs[0].SentAt.Before(before))
}

func TestSyncInboxRespectsLimit(t *testing.T) {
	var messages []RawMessage
	for i := 0; i < 60; i++ {
		id := strconv.Itoa(i)
		messages = append(messages, plainMessage("<"+id+"@x.com>", "alice@x.com", owner, id, time.Now()))
	}
	store := newMemoryStore()
	svc := newSyncService(store, &fakeFetcher{messages: messages}, nil)

	result, err := svc.SyncInbox(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50, result.Fetched)
	assert.Equal(t, 50, store.count())
}

func TestSyncInboxFailures(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		svc := newSyncService(newMemoryStore(), nil, nil)
		_, err := svc.SyncInbox(context.Background())
		assert.ErrorIs(t, err, ErrTransportNotConfigured)
	})

	t.Run("connection failure", func(t *testing.T) {
		fetcher := &fakeFetcher{openErr: errors.New("dial tcp: refused")}
		svc := newSyncService(newMemoryStore(), fetcher, nil)
		_, err := svc.SyncInbox(context.Background())
		assert.ErrorContains(t, err, "failed to open mailbox")
	})

	t.Run("fetch failure still logs out", func(t *testing.T) {
		fetcher := &fakeFetcher{fetchErr: errors.New("BAD command")}
		svc := newSyncService(newMemoryStore(), fetcher, nil)
		_, err := svc.SyncInbox(context.Background())
		assert.ErrorContains(t, err, "failed to fetch messages")
		assert.Equal(t, 1, fetcher.logouts)
	})

	t.Run("cancelled context stops sync", func(t *testing.T) {
		fetcher := &fakeFetcher{messages: []RawMessage{
			plainMessage("<a@x.com>", "alice@x.com", owner, "Hi", time.Now()),
		}}
		store := newMemoryStore()
		svc := newSyncService(store, fetcher, nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := svc.SyncInbox(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, store.count())
		assert.Equal(t, 1, fetcher.logouts)
	})
}

func TestSyncInboxKeepsEarlierMessagesOnFailure(t *testing.T) {
	now := time.Now().Add(-time.Hour)
	messages := []RawMessage{
		plainMessage("<1@x.com>", "alice@x.com", owner, "First", now),
		plainMessage("<2@x.com>", "bob@x.com", owner, "Second", now.Add(time.Minute)),
		plainMessage("<3@x.com>", "carol@x.com", owner, "Third", now.Add(2*time.Minute)),
	}
	storeErr := errors.New("connection reset")

	tests := []struct {
		name  string
		setup func(*memoryStore)
	}{
		{"insert fails", func(s *memoryStore) { s.insertErr = map[string]error{"<2@x.com>": storeErr} }},
		{"existence check fails", func(s *memoryStore) { s.existsErr = map[string]error{"<2@x.com>": storeErr} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &fakeFetcher{
				messages: messages,
				bodies:   map[string]string{"<1@x.com>/1": "first body"},
			}
			store := newMemoryStore()
			tt.setup(store)
			publisher := &recordingPublisher{}
			svc := newSyncService(store, fetcher, publisher)

			result, err := svc.SyncInbox(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, storeErr)
			assert.Contains(t, err.Error(), "<2@x.com>")
			assert.Equal(t, 1, result.Inserted)

			require.Equal(t, 1, store.count())
			exists, err := store.MessageExists(context.Background(), "<1@x.com>")
			require.NoError(t, err)
			assert.True(t, exists)
			assert.Equal(t, 1, fetcher.logouts)
			assert.Empty(t, publisher.events)
		})
	}
}
