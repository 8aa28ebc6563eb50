package mail

import (
	"context"
	"errors"
	"strings"
)

const (
	DefaultSubject = "(No Subject)"
	DefaultSender  = "(Unknown Sender)"
	DefaultDate    = "(Unknown Date)"
)

// Well-known label identifiers understood by every Store implementation.
const (
	LabelInbox  = "INBOX"
	LabelUnread = "UNREAD"
	LabelSpam   = "SPAM"
	LabelTrash  = "TRASH"
)

var ErrNotFound = errors.New("message not found")

// Email is the normalized record the triage pipeline works on.
type Email struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Sender  string `json:"from"`
	Date    string `json:"date"`
	Body    string `json:"body"`
}

type Header struct {
	Name  string
	Value string
}

// Part is one node of a message payload tree. Leaves carry Data as
// base64url text; containers carry Parts.
type Part struct {
	MimeType string
	Charset  string
	Filename string
	Data     string
	Parts    []*Part
}

// Message is a message as returned by a Store, before body extraction.
type Message struct {
	ID       string
	ThreadID string
	LabelIDs []string
	Headers  []Header
	Payload  *Part
}

// Header returns the first header value matching name, case-insensitively.
func (m *Message) Header(name string) string {
	for _, h := range m.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// NewEmail builds an Email from msg and an already extracted body,
// substituting placeholders for absent headers.
func NewEmail(msg *Message, body string) Email {
	return Email{
		ID:      msg.ID,
		Subject: orDefault(msg.Header("Subject"), DefaultSubject),
		Sender:  orDefault(msg.Header("From"), DefaultSender),
		Date:    orDefault(msg.Header("Date"), DefaultDate),
		Body:    body,
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// Store is the mail store the triage pipeline reads from and mutates.
type Store interface {
	// Search returns message ids matching expr. max <= 0 returns every match.
	Search(ctx context.Context, expr string, max int) ([]string, error)
	Get(ctx context.Context, id string) (*Message, error)
	MarkSpam(ctx context.Context, id string) error
	MoveToTrash(ctx context.Context, id string) error
	ModifyLabels(ctx context.Context, id string, add, remove []string) error
}

// Watcher is implemented by stores that can push change notifications.
type Watcher interface {
	Watch(ctx context.Context, topic string) (uint64, error)
}
