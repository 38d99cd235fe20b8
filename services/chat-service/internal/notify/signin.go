package notify

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/model"
)

// Sender delivers an HTML message with a plain text alternative.
type Sender interface {
	SendHTML(to []string, subject, htmlBody, textBody string) error
}

// SignInMailer e-mails users when a new login signs out their previous device.
type SignInMailer struct {
	sender Sender
}

func NewSignInMailer(sender Sender) *SignInMailer {
	return &SignInMailer{sender: sender}
}

const signInSubject = "New sign-in to your chat account"

var signInTemplate = template.Must(template.New("signin").Parse(
	`<p>Hi {{.Name}},</p>
<p>Your account was just signed in from a new device{{if .IP}} at {{.IP}}{{end}}{{if .UserAgent}} ({{.UserAgent}}){{end}}.
Your previous session has been signed out.</p>
<p>If this wasn't you, change your password.</p>`))

type signInData struct {
	Name      string
	IP        string
	UserAgent string
}

func (m *SignInMailer) NotifyNewSignIn(_ context.Context, user *model.User, session *model.RefreshSession) error {
	data := signInData{
		Name:      user.FirstName,
		IP:        session.IPAddress,
		UserAgent: session.UserAgent,
	}

	var html strings.Builder
	if err := signInTemplate.Execute(&html, data); err != nil {
		return fmt.Errorf("render sign-in notice: %w", err)
	}

	text := fmt.Sprintf(
		"Hi %s,\n\nYour account was just signed in from a new device. Your previous session has been signed out.\n",
		user.FirstName,
	)

	return m.sender.SendHTML([]string{user.Email}, signInSubject, html.String(), text)
}
