package imap

import (
	"fmt"
	"strings"
	"time"

	goimap "github.com/emersion/go-imap/v2"
	"github.com/huavcjj/wavemail/internal/query"
)

// translate converts a search expression into IMAP search criteria and the
// mailbox the search runs in.
func translate(expr string, boxes Mailboxes, now time.Time) (string, *goimap.SearchCriteria, error) {
	q, err := query.Parse(expr)
	if err != nil {
		return "", nil, err
	}

	mailbox := boxes.Inbox
	criteria := &goimap.SearchCriteria{}
	for _, t := range q.Terms {
		if t.Field == query.FieldIn {
			if t.Negated {
				return "", nil, fmt.Errorf("%w: -in:%s", query.ErrUnsupported, t.Value)
			}
			mailbox = boxes.resolve(t.Value)
			continue
		}

		c, err := termCriteria(t, now)
		if err != nil {
			return "", nil, err
		}
		if t.Negated {
			c = negate(c)
		}
		criteria.And(c)
	}
	return mailbox, criteria, nil
}

func termCriteria(t query.Term, now time.Time) (*goimap.SearchCriteria, error) {
	c := &goimap.SearchCriteria{}
	switch t.Field {
	case query.FieldIs:
		switch t.Value {
		case "unread":
			c.NotFlag = []goimap.Flag{goimap.FlagSeen}
		case "read":
			c.Flag = []goimap.Flag{goimap.FlagSeen}
		case "important", "starred":
			c.Flag = []goimap.Flag{goimap.FlagFlagged}
		default:
			return nil, fmt.Errorf("%w: is:%s", query.ErrUnsupported, t.Value)
		}
	case query.FieldHas:
		c.Header = []goimap.SearchCriteriaHeaderField{{Key: "Content-Type", Value: "multipart/mixed"}}
	case query.FieldBefore:
		c.Before = t.Time
	case query.FieldAfter:
		c.Since = t.Time
	case query.FieldNewerThan:
		c.Since = now.Add(-t.Window)
	case query.FieldOlderThan:
		c.Before = now.Add(-t.Window)
	case query.FieldFrom, query.FieldTo, query.FieldSubject:
		c.Header = []goimap.SearchCriteriaHeaderField{{Key: headerKey(t.Field), Value: t.Value}}
	case query.FieldText:
		c.Text = []string{t.Value}
	default:
		return nil, fmt.Errorf("%w: %s", query.ErrUnsupported, t.Field)
	}
	return c, nil
}

// negate flips flag predicates in place and wraps everything else in NOT.
func negate(c *goimap.SearchCriteria) *goimap.SearchCriteria {
	if len(c.Flag)+len(c.NotFlag) > 0 && c.Since.IsZero() && c.Before.IsZero() && len(c.Header) == 0 && len(c.Text) == 0 {
		return &goimap.SearchCriteria{Flag: c.NotFlag, NotFlag: c.Flag}
	}
	return &goimap.SearchCriteria{Not: []goimap.SearchCriteria{*c}}
}

func headerKey(f query.Field) string {
	switch f {
	case query.FieldFrom:
		return "From"
	case query.FieldTo:
		return "To"
	default:
		return "Subject"
	}
}

// resolve maps a folder name from a search expression onto a mailbox.
func (m Mailboxes) resolve(folder string) string {
	switch strings.ToLower(folder) {
	case "inbox":
		return m.Inbox
	case "spam", "junk":
		return m.Spam
	case "trash":
		return m.Trash
	case "archive":
		if m.Archive != "" {
			return m.Archive
		}
	}
	if box, ok := m.Categories[strings.ToLower(folder)]; ok {
		return box
	}
	return folder
}
