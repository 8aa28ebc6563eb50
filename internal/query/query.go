// Package query builds and parses mailbox search expressions.
//
// Expressions use the Gmail search syntax: space separated predicates such
// as "is:unread from:boss@example.com newer_than:1d" combine with AND,
// a leading "-" negates a predicate and "{a b}" is an OR group.
package query

import (
	"fmt"
	"strings"
	"time"
)

type Unit string

const (
	Hours  Unit = "h"
	Days   Unit = "d"
	Months Unit = "m"
	Years  Unit = "y"
)

const dateLayout = "2006/01/02"

func Unread() string        { return "is:unread" }
func Read() string          { return "is:read" }
func Important() string     { return "is:important" }
func Starred() string       { return "is:starred" }
func HasAttachment() string { return "has:attachment" }

func In(folder string) string    { return "in:" + quote(folder) }
func From(sender string) string  { return "from:" + quote(sender) }
func To(recipient string) string { return "to:" + quote(recipient) }
func Subject(s string) string    { return "subject:" + quote(s) }

// Text matches s anywhere in the message body or headers.
func Text(s string) string { return quote(s) }

func Before(t time.Time) string { return "before:" + t.Format(dateLayout) }
func After(t time.Time) string  { return "after:" + t.Format(dateLayout) }

func NewerThan(n int, u Unit) string { return fmt.Sprintf("newer_than:%d%s", n, u) }
func OlderThan(n int, u Unit) string { return fmt.Sprintf("older_than:%d%s", n, u) }

func Not(term string) string {
	if term == "" {
		return ""
	}
	return "-" + term
}

// And joins the non-empty terms.
func And(terms ...string) string {
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// Or groups the non-empty terms so that any of them may match.
func Or(terms ...string) string {
	joined := And(terms...)
	if joined == "" || !strings.Contains(joined, " ") {
		return joined
	}
	return "{" + joined + "}"
}

func quote(s string) string {
	if strings.ContainsAny(s, " \t\"(){}") {
		return `"` + strings.ReplaceAll(s, `"`, "") + `"`
	}
	return s
}
