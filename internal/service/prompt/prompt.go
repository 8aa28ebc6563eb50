// Package prompt renders emails into oracle user content.
package prompt

import (
	"fmt"
	"regexp"

	"github.com/huavcjj/wavemail/internal/domain/mail"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	ssnPattern   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	phonePattern = regexp.MustCompile(`(?:\+?\d{1,3}[\s.\-]?)?(?:\(\d{3}\)|\b\d{3})[\s.\-]?\d{3}[\s.\-]?\d{4}\b`)
)

// Redact replaces e-mail addresses, SSNs and phone numbers with placeholders.
func Redact(s string) string {
	s = emailPattern.ReplaceAllString(s, "[EMAIL]")
	s = ssnPattern.ReplaceAllString(s, "[SSN]")
	return phonePattern.ReplaceAllString(s, "[PHONE]")
}

// Render formats the subject and body of e the way every oracle request expects.
func Render(e mail.Email, redact bool) string {
	subject, body := e.Subject, e.Body
	if redact {
		subject, body = Redact(subject), Redact(body)
	}
	return fmt.Sprintf("Subject: %s\nContent: %s", subject, body)
}
