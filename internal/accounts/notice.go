// Package accounts builds the emails sent when an operator changes a
// customer's account status.
package accounts

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/leadsengine/dashboard/internal/models"
)

// Notice is a rendered account email.
type Notice struct {
	Subject string
	Text    string
	HTML    string
}

// Notifier renders notices for one brand and login page.
type Notifier struct {
	Brand    string
	LoginURL string
}

type noticeData struct {
	Headline string
	Message  string
	Button   template.CSS
	LoginURL string
}

var noticeTemplate = template.Must(template.New("notice").Parse(`
<div style="font-family:Arial,sans-serif;line-height:1.5;color:#111">
  <h2 style="margin:0 0 8px">{{.Headline}}</h2>
  <p style="margin:0 0 12px">{{.Message}}</p>
  <p style="margin:0 0 16px">
    <a href="{{.LoginURL}}" style="display:inline-block;background:{{.Button}};color:#fff;text-decoration:none;padding:10px 16px;border-radius:6px">Login</a>
  </p>
  <p style="font-size:12px;color:#555;margin:0">If the button doesn't work, copy and paste this link: {{.LoginURL}}</p>
</div>`))

// StatusChange compares a user before and after an update and returns the
// notice to send, if any. The isActive flag is compared first; when it did
// not move, the status strings are compared case-insensitively.
func (n Notifier) StatusChange(prev, next *models.User) (Notice, bool, error) {
	if next == nil || strings.TrimSpace(next.Email) == "" {
		return Notice{}, false, nil
	}

	if prev == nil {
		prev = &models.User{}
	}

	wasActive := prev.Active()
	nowActive := next.Active()

	switch {
	case !wasActive && nowActive:
		return n.activated()
	case wasActive && !nowActive:
		return n.blocked()
	}

	prevStatus := strings.ToLower(prev.EffectiveStatus())
	nowStatus := strings.ToLower(next.EffectiveStatus())

	switch {
	case prevStatus != "active" && nowStatus == "active":
		return n.activated()
	case prevStatus != "blocked" && nowStatus == "blocked":
		return n.blocked()
	}

	return Notice{}, false, nil
}

func (n Notifier) activated() (Notice, bool, error) {
	return n.render(models.UserStatusActive,
		fmt.Sprintf("Your %s account is now Active. Login: %s", n.Brand, n.LoginURL),
		noticeData{
			Headline: "Your account is now Active",
			Message:  "Welcome back! Click the button below to login.",
			Button:   "#2563eb",
		})
}

func (n Notifier) blocked() (Notice, bool, error) {
	return n.render(models.UserStatusBlocked,
		fmt.Sprintf("Your %s account has been Blocked. You may try to login here: %s", n.Brand, n.LoginURL),
		noticeData{
			Headline: "Your account has been Blocked",
			Message:  "If you believe this is a mistake, please reach out to support.",
			Button:   "#ef4444",
		})
}

func (n Notifier) render(status, text string, data noticeData) (Notice, bool, error) {
	data.LoginURL = n.LoginURL

	var buf bytes.Buffer
	if err := noticeTemplate.Execute(&buf, data); err != nil {
		return Notice{}, false, fmt.Errorf("failed to render account notice: %w", err)
	}

	return Notice{
		Subject: "Account status updated: " + status,
		Text:    text,
		HTML:    strings.TrimSpace(buf.String()),
	}, true, nil
}
