package imap

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// RecentRange returns the sequence range holding the newest limit messages of
// a mailbox with total messages. ok is false for an empty mailbox.
func RecentRange(total, limit uint32) (from, to uint32, ok bool) {
	if total == 0 || limit == 0 {
		return 0, 0, false
	}
	from = 1
	if total > limit {
		from = total - limit + 1
	}
	return from, total, true
}

// FetchRecent fetches envelope, body structure and UID of the newest limit
// messages in the selected mailbox, oldest first.
func FetchRecent(c *client.Client, total, limit uint32) ([]*imap.Message, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}

	from, to, ok := RecentRange(total, limit)
	if !ok {
		return []*imap.Message{}, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddRange(from, to)

	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchBodyStructure,
		imap.FetchUid,
	}

	messages := make(chan *imap.Message, to-from+1)
	done := make(chan error, 1)

	go func() {
		done <- c.Fetch(seqSet, items, messages)
	}()

	var result []*imap.Message
	for msg := range messages {
		result = append(result, msg)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].SeqNum < result[j].SeqNum })

	return result, nil
}

// FetchPart downloads one body section by UID without setting \Seen.
func FetchPart(c *client.Client, uid uint32, partID string) (io.Reader, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}

	path, err := parsePartPath(partID)
	if err != nil {
		return nil, err
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	section := &imap.BodySectionName{
		BodyPartName: imap.BodyPartName{Path: path},
		Peek:         true,
	}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	go func() {
		done <- c.UidFetch(seqSet, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	var body imap.Literal
	for msg := range messages {
		if r := msg.GetBody(section); r != nil {
			body = r
		}
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch part %s: %w", partID, err)
	}

	if body == nil {
		return nil, fmt.Errorf("server did not return part %s of message %d", partID, uid)
	}

	return body, nil
}

func parsePartPath(id string) ([]int, error) {
	if id == "" {
		return nil, fmt.Errorf("empty part id")
	}

	fields := strings.Split(id, ".")
	path := make([]int, len(fields))
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid part id %q", id)
		}
		path[i] = n
	}
	return path, nil
}
