package mailbox

import (
	"net/mail"
	"strings"

	"github.com/leadsengine/dashboard/internal/models"
)

const (
	snippetLength  = 80
	maxErrorLength = 500
)

// NormalizeAddress returns the bare, lower-cased address of s, which may be
// given as "Name <addr>". Input that does not parse is trimmed and lower-cased.
func NormalizeAddress(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(s); err == nil {
		return strings.ToLower(addr.Address)
	}
	return strings.ToLower(s)
}

// SameAddress compares two addresses case-insensitively.
func SameAddress(a, b string) bool {
	return NormalizeAddress(a) == NormalizeAddress(b)
}

// DirectionOf classifies a message by whether owner sent it.
func DirectionOf(owner, from string) models.Direction {
	if SameAddress(owner, from) {
		return models.DirectionOutbound
	}
	return models.DirectionInbound
}

// DeriveContact returns the counterparty of a message: the sender, unless the
// owner sent it, in which case the first recipient.
func DeriveContact(owner, from string, to []string) string {
	if from != "" && !SameAddress(owner, from) {
		return NormalizeAddress(from)
	}
	if len(to) > 0 {
		return NormalizeAddress(to[0])
	}
	return ""
}

// SplitRecipients flattens comma-separated recipient strings into a list of
// trimmed, non-empty entries.
func SplitRecipients(values ...string) []string {
	var out []string
	for _, v := range values {
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// Snippet is the subject, or the first 80 characters of the body when the
// subject is empty.
func Snippet(subject, body string) string {
	if subject != "" {
		return subject
	}
	return truncateRunes(body, snippetLength)
}

// TruncateError turns a delivery error into the text stored on a failed message.
func TruncateError(err error) string {
	if err == nil {
		return "unknown error"
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return "unknown error"
	}
	return truncateRunes(msg, maxErrorLength)
}

// Initials builds the avatar seed shown next to a conversation.
func Initials(user *models.User, email string) string {
	var first, last string
	if user != nil {
		first = firstRune(user.FirstName)
		last = firstRune(user.LastName)
	}
	if first == "" {
		first = firstRune(email)
	}
	return strings.ToUpper(first) + last
}

func firstRune(s string) string {
	for _, r := range strings.TrimSpace(s) {
		return string(r)
	}
	return ""
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
