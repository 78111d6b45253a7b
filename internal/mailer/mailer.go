package mailer

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Transport is the outbound email delivery port. One implementation per
// underlying channel (SMTP relay, local MTA, external API, file sink).
type Transport interface {
	Name() string
	Send(ctx context.Context, msg Message) (*Receipt, error)
	Verify(ctx context.Context) error
}

// Message is one fully prepared email for a single recipient.
type Message struct {
	To        string
	Subject   string
	HTML      string
	FromName  string
	FromEmail string
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("recipient is required")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("subject is required")
	}
	if strings.TrimSpace(m.HTML) == "" {
		return fmt.Errorf("message body is required")
	}
	if strings.TrimSpace(m.FromEmail) == "" {
		return fmt.Errorf("from email is required")
	}
	return nil
}

// From renders the RFC 5322 originator, e.g. "No Reply <noreply@localhost>".
func (m Message) From() string {
	name := strings.TrimSpace(m.FromName)
	if name == "" {
		return m.FromEmail
	}
	return fmt.Sprintf("%s <%s>", name, m.FromEmail)
}

var htmlTags = regexp.MustCompile(`<[^>]*>`)

// Text derives the plain-text alternative by stripping HTML tags.
func (m Message) Text() string {
	return strings.TrimSpace(htmlTags.ReplaceAllString(m.HTML, ""))
}

// Receipt stores transport call metadata for audit and persistence.
type Receipt struct {
	MessageID string
	Detail    string
}
